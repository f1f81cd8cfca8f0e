package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
)

// seedPasswordBytes is the number of random bytes in the seed password.
const seedPasswordBytes = 18

// SeedAdmin creates the first SYSTEM_ADMIN when the store is empty.
// The generated password is logged once and must be changed immediately.
// Returns the generated password, or "" when seeding was skipped.
func SeedAdmin(ctx context.Context, store CredentialStore, hasher *Hasher, email string, logger *slog.Logger) (string, error) {
	count, err := store.Count(ctx)
	if err != nil {
		return "", fmt.Errorf("checking user count: %w", err)
	}
	if count > 0 {
		logger.Info("users exist, skipping admin seed")
		return "", nil
	}

	email = NormalizeEmail(email)
	if !IsValidEmail(email) {
		return "", fmt.Errorf("seed admin email %q is not valid", email)
	}

	raw := make([]byte, seedPasswordBytes)
	if _, err := rand.Read(raw); err != nil { //nolint:govet // shadow: err re-declared in nested scope
		return "", fmt.Errorf("generating seed password: %w", err)
	}
	// The suffix guarantees every character class of the password policy.
	password := base64.RawURLEncoding.EncodeToString(raw) + "aA1!"

	digest, err := hasher.Hash(password)
	if err != nil {
		return "", fmt.Errorf("hashing seed password: %w", err)
	}

	admin := &Identity{
		Email:           email,
		PasswordHash:    digest,
		Role:            RoleSystemAdmin,
		FirstName:       "System",
		LastName:        "Administrator",
		IsActive:        true,
		IsEmailVerified: true,
	}
	if err := store.Create(ctx, admin); err != nil {
		return "", fmt.Errorf("creating seed admin: %w", err)
	}

	logger.Warn("seed admin account created",
		"email", email,
		"password", password,
		"action_required", "change this password immediately",
	)
	return password, nil
}
