package auth

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// RevocationList is a deny-list of token ids. A revoked token stays listed
// until it would have expired anyway.
type RevocationList interface {
	Revoke(ctx context.Context, jti, userID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

// SQLiteRevocationList implements RevocationList on the revoked_tokens table.
type SQLiteRevocationList struct {
	db  *sql.DB
	now Clock
}

// NewRevocationList creates a SQLite-backed deny-list.
func NewRevocationList(db *sql.DB) *SQLiteRevocationList {
	return &SQLiteRevocationList{db: db, now: time.Now}
}

// Revoke lists jti until expiresAt. Revoking twice is not an error.
func (r *SQLiteRevocationList) Revoke(ctx context.Context, jti, userID string, expiresAt time.Time) error {
	if jti == "" {
		return fmt.Errorf("revoking token: missing token id")
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO revoked_tokens (jti, user_id, expires_at, revoked_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(jti) DO NOTHING`,
		jti, userID, expiresAt.UnixMilli(), r.now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	return nil
}

// IsRevoked reports whether jti is listed and not yet expired.
func (r *SQLiteRevocationList) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		"SELECT 1 FROM revoked_tokens WHERE jti = ? AND expires_at > ?",
		jti, r.now().UnixMilli(),
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking revoked token: %w", err)
	}
	return true, nil
}

// DeleteExpired removes entries whose tokens have expired.
// Returns the number of deleted rows.
func (r *SQLiteRevocationList) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM revoked_tokens WHERE expires_at <= ?", r.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("deleting expired revocations: %w", err)
	}
	count, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return count, nil
}

// RunRevocationCleanup deletes expired entries every interval until ctx is done.
func RunRevocationCleanup(ctx context.Context, list RevocationList, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := list.DeleteExpired(ctx)
			if err != nil {
				logger.Warn("revocation cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug("expired revocations deleted", "count", n)
			}
		}
	}
}
