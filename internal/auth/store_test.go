package auth

import (
	"context"
	"errors"
	"testing"
)

func TestSQLiteStore_CreateAndGet(t *testing.T) {
	store := NewSQLiteStore(testDB(t).DB)
	ctx := context.Background()

	landlord := &Identity{
		Email:        "Landlord@Example.com",
		PasswordHash: "digest",
		Role:         RoleLandlord,
		FirstName:    "Mwila",
		LastName:     "Phiri",
		Phone:        "+260971234567",
		IsActive:     true,
	}
	if err := store.Create(ctx, landlord); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(landlord.ID) != len("usr-")+8 {
		t.Errorf("ID = %q, want usr- prefix and 8 chars", landlord.ID)
	}

	got, err := store.GetByEmail(ctx, "LANDLORD@example.COM")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if got.ID != landlord.ID || got.Email != "landlord@example.com" {
		t.Errorf("GetByEmail() = %s/%s, want %s/landlord@example.com", got.ID, got.Email, landlord.ID)
	}
	if got.Role != RoleLandlord || got.Phone != "+260971234567" || !got.IsActive {
		t.Errorf("GetByEmail() = %+v", got)
	}
	if got.Permissions != nil {
		t.Errorf("landlord Permissions = %+v, want nil", got.Permissions)
	}

	perms := DefaultStaffPermissions()
	staff := &Identity{
		Email:           "staff@example.com",
		PasswordHash:    "digest",
		Role:            "staff",
		OwnerLandlordID: landlord.ID,
		Permissions:     &perms,
		IsActive:        true,
	}
	if err := store.Create(ctx, staff); err != nil {
		t.Fatalf("Create(staff) error = %v", err)
	}
	got, err = store.GetByID(ctx, staff.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Role != RoleStaff || got.OwnerLandlordID != landlord.ID {
		t.Errorf("staff = role %q owner %q", got.Role, got.OwnerLandlordID)
	}
	if got.Permissions == nil || *got.Permissions != perms {
		t.Errorf("staff Permissions = %+v, want %+v", got.Permissions, perms)
	}

	list, err := store.ListStaff(ctx, landlord.ID)
	if err != nil {
		t.Fatalf("ListStaff() error = %v", err)
	}
	if len(list) != 1 || list[0].ID != staff.ID {
		t.Errorf("ListStaff() = %v, want [%s]", list, staff.ID)
	}

	if n, _ := store.Count(ctx); n != 2 { //nolint:errcheck // zero on error fails the test
		t.Errorf("Count() = %d, want 2", n)
	}
}

func TestSQLiteStore_NotFound(t *testing.T) {
	store := NewSQLiteStore(testDB(t).DB)
	ctx := context.Background()

	if _, err := store.GetByID(ctx, "usr-missing"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("GetByID() error = %v, want ErrUserNotFound", err)
	}
	if _, err := store.GetByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("GetByEmail() error = %v, want ErrUserNotFound", err)
	}
	if err := store.SetActive(ctx, "usr-missing", false); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("SetActive() error = %v, want ErrUserNotFound", err)
	}
	if err := store.UpdatePassword(ctx, "usr-missing", "x"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("UpdatePassword() error = %v, want ErrUserNotFound", err)
	}
}

func TestSQLiteStore_UniqueViolations(t *testing.T) {
	store := NewSQLiteStore(testDB(t).DB)
	ctx := context.Background()

	first := &Identity{Email: "dup@example.com", PasswordHash: "d", Role: RoleTenant, Phone: "+260971111111", IsActive: true}
	if err := store.Create(ctx, first); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	sameEmail := &Identity{Email: "DUP@example.com", PasswordHash: "d", Role: RoleTenant, IsActive: true}
	if err := store.Create(ctx, sameEmail); !errors.Is(err, ErrEmailExists) {
		t.Errorf("Create(duplicate email) error = %v, want ErrEmailExists", err)
	}

	samePhone := &Identity{Email: "other@example.com", PasswordHash: "d", Role: RoleTenant, Phone: "+260971111111", IsActive: true}
	if err := store.Create(ctx, samePhone); !errors.Is(err, ErrPhoneExists) {
		t.Errorf("Create(duplicate phone) error = %v, want ErrPhoneExists", err)
	}

	if ok, _ := store.EmailExists(ctx, "Dup@Example.com"); !ok { //nolint:errcheck // false on error fails the test
		t.Error("EmailExists() = false, want true")
	}
	if ok, _ := store.PhoneExists(ctx, "+260971111111"); !ok { //nolint:errcheck // false on error fails the test
		t.Error("PhoneExists() = false, want true")
	}
	if ok, _ := store.PhoneExists(ctx, ""); ok { //nolint:errcheck // true on error fails the test
		t.Error("PhoneExists(\"\") = true, want false")
	}
}

func TestSQLiteStore_StaffRequiresLandlord(t *testing.T) {
	store := NewSQLiteStore(testDB(t).DB)

	orphan := &Identity{Email: "orphan@example.com", PasswordHash: "d", Role: RoleStaff, IsActive: true}
	if err := store.Create(context.Background(), orphan); err == nil {
		t.Error("Create(staff without landlord) succeeded, want constraint error")
	}
}

func TestSQLiteStore_Updates(t *testing.T) {
	store := NewSQLiteStore(testDB(t).DB)
	ctx := context.Background()
	h := fastHasher(t)

	landlord := createIdentity(t, store, h, "l@example.com", "Valid123!", RoleLandlord)
	tenant := createIdentity(t, store, h, "t@example.com", "Valid123!", RoleTenant)

	if err := store.SetActive(ctx, tenant.ID, false); err != nil {
		t.Fatalf("SetActive() error = %v", err)
	}
	got, _ := store.GetByID(ctx, tenant.ID) //nolint:errcheck // checked via fields
	if got.IsActive {
		t.Error("IsActive = true after SetActive(false)")
	}

	if err := store.UpdatePassword(ctx, tenant.ID, "new-digest"); err != nil {
		t.Fatalf("UpdatePassword() error = %v", err)
	}
	got, _ = store.GetByID(ctx, tenant.ID) //nolint:errcheck // checked via fields
	if got.PasswordHash != "new-digest" {
		t.Errorf("PasswordHash = %q, want new-digest", got.PasswordHash)
	}

	// Permissions can only be set on staff rows.
	if err := store.UpdatePermissions(ctx, landlord.ID, StaffPermissions{}); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("UpdatePermissions(landlord) error = %v, want ErrUserNotFound", err)
	}
}
