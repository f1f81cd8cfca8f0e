package auth

import (
	"context"
	"log/slog"
	"testing"
)

func TestSeedAdmin(t *testing.T) {
	store := NewSQLiteStore(testDB(t).DB)
	h := fastHasher(t)
	logger := slog.New(slog.DiscardHandler)
	ctx := context.Background()

	password, err := SeedAdmin(ctx, store, h, "Admin@Zmapp.test", logger)
	if err != nil {
		t.Fatalf("SeedAdmin() error = %v", err)
	}
	if password == "" {
		t.Fatal("SeedAdmin() returned empty password on empty store")
	}
	if v := ValidatePassword(password); len(v) != 0 {
		t.Errorf("seed password fails policy: %v", v)
	}

	admin, err := store.GetByEmail(ctx, "admin@zmapp.test")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if admin.Role != RoleSystemAdmin || !admin.IsActive {
		t.Errorf("seeded admin = role %q active %v", admin.Role, admin.IsActive)
	}
	if !h.Verify(password, admin.PasswordHash) {
		t.Error("seed password does not verify")
	}

	again, err := SeedAdmin(ctx, store, h, "admin@zmapp.test", logger)
	if err != nil || again != "" {
		t.Errorf("second SeedAdmin() = %q, %v; want skipped", again, err)
	}
}

func TestSeedAdmin_InvalidEmail(t *testing.T) {
	store := NewSQLiteStore(testDB(t).DB)
	if _, err := SeedAdmin(context.Background(), store, fastHasher(t), "nope", slog.New(slog.DiscardHandler)); err == nil {
		t.Error("SeedAdmin(invalid email) succeeded")
	}
}
