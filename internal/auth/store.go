package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

// CredentialStore persists identities. The core reads and writes it only
// through this interface.
type CredentialStore interface {
	Create(ctx context.Context, id *Identity) error
	GetByID(ctx context.Context, id string) (*Identity, error)
	GetByEmail(ctx context.Context, email string) (*Identity, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	PhoneExists(ctx context.Context, phone string) (bool, error)
	Count(ctx context.Context) (int, error)
	ListStaff(ctx context.Context, landlordID string) ([]Identity, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdatePermissions(ctx context.Context, id string, perms StaffPermissions) error
	SetActive(ctx context.Context, id string, active bool) error
	LockoutStore
}

// LockoutStore holds the lockout counters. Each method is a single atomic
// statement so concurrent attempts on one account never lose an update.
type LockoutStore interface {
	// RecordFailedLogin applies the lazy unlock, increments the counter and
	// sets the lock when the threshold is reached.
	RecordFailedLogin(ctx context.Context, id string, threshold int, lockFor time.Duration, now time.Time) (LockState, error)

	// RecordSuccessfulLogin resets the counter and stamps last_login. It
	// returns ErrAccountLocked when a concurrent failure locked the account.
	RecordSuccessfulLogin(ctx context.Context, id string, now time.Time) error

	// ClearLockout releases a lock regardless of its expiry.
	ClearLockout(ctx context.Context, id string) error
}

// SQLiteStore implements CredentialStore on the users table.
type SQLiteStore struct {
	db  *sql.DB
	now Clock
}

// NewSQLiteStore creates a SQLite-backed credential store.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

const identityColumns = `id, email, password_hash, role, first_name, last_name, phone, avatar, address,
	owner_landlord_id, staff_permissions, is_active, is_email_verified, is_phone_verified,
	login_attempts, lock_until, last_login, created_at, updated_at`

// Create inserts a new identity. The ID is generated if empty.
func (s *SQLiteStore) Create(ctx context.Context, id *Identity) error {
	if id.ID == "" {
		id.ID = "usr-" + uuid.NewString()[:8]
	}
	now := s.now().UTC().Truncate(time.Second)
	id.CreatedAt, id.UpdatedAt = now, now
	id.Email = NormalizeEmail(id.Email)
	id.Role = id.Role.Canonical()

	perms, err := encodePermissions(id.Permissions)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (`+identityColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id.ID, id.Email, id.PasswordHash, string(id.Role), id.FirstName, id.LastName,
		nullString(id.Phone), nullString(id.Avatar), nullString(id.Address),
		nullString(id.OwnerLandlordID), perms,
		boolToInt(id.IsActive), boolToInt(id.IsEmailVerified), boolToInt(id.IsPhoneVerified),
		id.LoginAttempts, timeToMillis(id.LockUntil), timeToText(id.LastLogin),
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return uniqueViolation(err, "creating user")
	}
	return nil
}

// GetByID retrieves an identity by its ID.
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (*Identity, error) {
	return scanIdentity(s.db.QueryRowContext(ctx, "SELECT "+identityColumns+" FROM users WHERE id = ?", id))
}

// GetByEmail retrieves an identity by email, ignoring case.
func (s *SQLiteStore) GetByEmail(ctx context.Context, email string) (*Identity, error) {
	return scanIdentity(s.db.QueryRowContext(ctx, "SELECT "+identityColumns+" FROM users WHERE email = ?", NormalizeEmail(email)))
}

// EmailExists reports whether an identity uses email.
func (s *SQLiteStore) EmailExists(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, "SELECT 1 FROM users WHERE email = ?", NormalizeEmail(email))
}

// PhoneExists reports whether an identity uses phone.
func (s *SQLiteStore) PhoneExists(ctx context.Context, phone string) (bool, error) {
	if phone == "" {
		return false, nil
	}
	return s.exists(ctx, "SELECT 1 FROM users WHERE phone = ?", phone)
}

func (s *SQLiteStore) exists(ctx context.Context, query string, arg any) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, query+" LIMIT 1", arg).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking existence: %w", err)
	}
	return true, nil
}

// Count returns the number of identities.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

// ListStaff returns the staff accounts of a landlord, oldest first.
func (s *SQLiteStore) ListStaff(ctx context.Context, landlordID string) ([]Identity, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+identityColumns+" FROM users WHERE owner_landlord_id = ? AND role = ? ORDER BY created_at ASC",
		landlordID, string(RoleStaff))
	if err != nil {
		return nil, fmt.Errorf("listing staff: %w", err)
	}
	defer rows.Close()

	staff := []Identity{}
	for rows.Next() {
		id, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		staff = append(staff, *id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating staff: %w", err)
	}
	return staff, nil
}

// UpdatePassword changes an identity's password digest.
func (s *SQLiteStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return s.update(ctx, "updating password",
		"UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?",
		passwordHash, s.stamp(), id)
}

// UpdatePermissions replaces a staff member's permission flags.
func (s *SQLiteStore) UpdatePermissions(ctx context.Context, id string, perms StaffPermissions) error {
	encoded, err := encodePermissions(&perms)
	if err != nil {
		return err
	}
	return s.update(ctx, "updating permissions",
		"UPDATE users SET staff_permissions = ?, updated_at = ? WHERE id = ? AND role = ?",
		encoded, s.stamp(), id, string(RoleStaff))
}

// SetActive activates or deactivates an identity.
func (s *SQLiteStore) SetActive(ctx context.Context, id string, active bool) error {
	return s.update(ctx, "updating active flag",
		"UPDATE users SET is_active = ?, updated_at = ? WHERE id = ?",
		boolToInt(active), s.stamp(), id)
}

// RecordFailedLogin counts one failed verification in a single statement.
// SET expressions read the row as it was before the update.
func (s *SQLiteStore) RecordFailedLogin(ctx context.Context, id string, threshold int, lockFor time.Duration, now time.Time) (LockState, error) {
	nowMS := now.UnixMilli()

	var (
		attempts  int
		lockUntil sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		UPDATE users SET
			login_attempts = CASE
				WHEN lock_until IS NOT NULL AND lock_until <= @now THEN 1
				ELSE login_attempts + 1
			END,
			lock_until = CASE
				WHEN lock_until IS NOT NULL AND lock_until > @now THEN lock_until
				WHEN (CASE WHEN lock_until IS NOT NULL AND lock_until <= @now THEN 0 ELSE login_attempts END) + 1 >= @threshold
					THEN @now + @lock_ms
				ELSE NULL
			END,
			updated_at = @stamp
		WHERE id = @id
		RETURNING login_attempts, lock_until`,
		sql.Named("now", nowMS),
		sql.Named("threshold", threshold),
		sql.Named("lock_ms", lockFor.Milliseconds()),
		sql.Named("stamp", now.UTC().Format(time.RFC3339)),
		sql.Named("id", id),
	).Scan(&attempts, &lockUntil)
	if errors.Is(err, sql.ErrNoRows) {
		return LockState{}, ErrUserNotFound
	}
	if err != nil {
		return LockState{}, fmt.Errorf("recording failed login: %w", err)
	}

	state := LockState{Attempts: attempts}
	if lockUntil.Valid {
		t := time.UnixMilli(lockUntil.Int64).UTC()
		state.LockedUntil = &t
	}
	return state, nil
}

// RecordSuccessfulLogin resets the counters unless the account is locked at now.
func (s *SQLiteStore) RecordSuccessfulLogin(ctx context.Context, id string, now time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET login_attempts = 0, lock_until = NULL, last_login = ?, updated_at = ?
		WHERE id = ? AND (lock_until IS NULL OR lock_until <= ?)`,
		now.UTC().Format(time.RFC3339), now.UTC().Format(time.RFC3339), id, now.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("recording successful login: %w", err)
	}
	if n, _ := result.RowsAffected(); n > 0 { //nolint:errcheck // always succeeds on SQLite
		return nil
	}

	ok, err := s.exists(ctx, "SELECT 1 FROM users WHERE id = ?", id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUserNotFound
	}
	return ErrAccountLocked
}

// ClearLockout resets the counter and lock.
func (s *SQLiteStore) ClearLockout(ctx context.Context, id string) error {
	return s.update(ctx, "clearing lockout",
		"UPDATE users SET login_attempts = 0, lock_until = NULL, updated_at = ? WHERE id = ?",
		s.stamp(), id)
}

func (s *SQLiteStore) update(ctx context.Context, op, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *SQLiteStore) stamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanIdentity(sc scanner) (*Identity, error) {
	var (
		id                                     Identity
		role                                   string
		phone, avatar, address, owner, perms   sql.NullString
		isActive, emailVerified, phoneVerified int
		lockUntil                              sql.NullInt64
		lastLogin                              sql.NullString
		createdAt, updatedAt                   string
	)

	err := sc.Scan(&id.ID, &id.Email, &id.PasswordHash, &role, &id.FirstName, &id.LastName,
		&phone, &avatar, &address, &owner, &perms,
		&isActive, &emailVerified, &phoneVerified,
		&id.LoginAttempts, &lockUntil, &lastLogin, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}

	id.Role = Role(role).Canonical()
	id.Phone = phone.String
	id.Avatar = avatar.String
	id.Address = address.String
	id.OwnerLandlordID = owner.String
	id.IsActive = isActive != 0
	id.IsEmailVerified = emailVerified != 0
	id.IsPhoneVerified = phoneVerified != 0

	if perms.Valid && perms.String != "" {
		var p StaffPermissions
		if err := json.Unmarshal([]byte(perms.String), &p); err != nil {
			return nil, fmt.Errorf("decoding staff permissions: %w", err)
		}
		id.Permissions = &p
	}
	if lockUntil.Valid {
		t := time.UnixMilli(lockUntil.Int64).UTC()
		id.LockUntil = &t
	}
	if lastLogin.Valid {
		if t, err := time.Parse(time.RFC3339, lastLogin.String); err == nil {
			id.LastLogin = &t
		}
	}
	id.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	id.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled

	return &id, nil
}

func encodePermissions(p *StaffPermissions) (sql.NullString, error) {
	if p == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encoding staff permissions: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

// uniqueViolation maps SQLite UNIQUE failures on users to the matching
// sentinel error.
func uniqueViolation(err error, op string) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		switch {
		case strings.Contains(sqliteErr.Error(), "users.email"):
			return ErrEmailExists
		case strings.Contains(sqliteErr.Error(), "users.phone"):
			return ErrPhoneExists
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func timeToMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func timeToText(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}
