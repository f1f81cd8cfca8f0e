package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Go-ku/zmapp/internal/auth"
	"github.com/Go-ku/zmapp/internal/infrastructure/database"
	_ "github.com/Go-ku/zmapp/migrations" // registers the embedded schema
)

func testRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "audit.db"), BusyTimeout: 5})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func TestWriteEventAndList(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	events := []auth.Event{
		{Type: auth.EventLoginFailed, Outcome: auth.OutcomeFailure, ActorID: "usr-1", ActorEmail: "a@b.com", SourceIP: "10.0.0.1", Reason: "wrong password", OccurredAt: base},
		{Type: auth.EventLoginFailed, Outcome: auth.OutcomeFailure, ActorEmail: "nobody@b.com", SourceIP: "10.0.0.2", OccurredAt: base.Add(time.Minute)},
		{Type: auth.EventLoginSuccess, Outcome: auth.OutcomeSuccess, ActorID: "usr-1", ActorRole: auth.RoleTenant, OccurredAt: base.Add(2 * time.Minute)},
		{Type: auth.EventAccountUnlocked, Outcome: auth.OutcomeSuccess, ActorID: "usr-admin", TargetID: "usr-1", OccurredAt: base.Add(3 * time.Minute)},
	}
	for _, e := range events {
		if err := repo.WriteEvent(ctx, e); err != nil {
			t.Fatalf("WriteEvent(%s) error = %v", e.Type, err)
		}
	}

	all, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if all.Total != 4 || len(all.Logs) != 4 || all.Limit != defaultLimit {
		t.Fatalf("List() total=%d len=%d limit=%d", all.Total, len(all.Logs), all.Limit)
	}
	if all.Logs[0].Action != string(auth.EventAccountUnlocked) {
		t.Errorf("newest entry = %s, want ACCOUNT_UNLOCKED", all.Logs[0].Action)
	}
	if all.Logs[0].EntityID != "usr-1" || all.Logs[0].UserID != "usr-admin" {
		t.Errorf("unlock entry entity=%q user=%q", all.Logs[0].EntityID, all.Logs[0].UserID)
	}

	failed, err := repo.List(ctx, Filter{Action: string(auth.EventLoginFailed)})
	if err != nil {
		t.Fatalf("List(action) error = %v", err)
	}
	if failed.Total != 2 {
		t.Errorf("LOGIN_FAILED total = %d, want 2", failed.Total)
	}
	oldest := failed.Logs[len(failed.Logs)-1]
	if oldest.SourceIP != "10.0.0.1" || oldest.Outcome != "failure" {
		t.Errorf("oldest failure = %+v", oldest)
	}
	if oldest.Details["reason"] != "wrong password" || oldest.Details["email"] != "a@b.com" {
		t.Errorf("details = %v", oldest.Details)
	}

	byUser, _ := repo.List(ctx, Filter{UserID: "usr-1"}) //nolint:errcheck // nil fails below
	if byUser.Total != 2 {
		t.Errorf("usr-1 total = %d, want 2", byUser.Total)
	}

	since, _ := repo.List(ctx, Filter{Since: base.Add(90 * time.Second)}) //nolint:errcheck // nil fails below
	if since.Total != 2 {
		t.Errorf("since total = %d, want 2", since.Total)
	}

	paged, _ := repo.List(ctx, Filter{Limit: 1, Offset: 1, Outcome: "success"}) //nolint:errcheck // nil fails below
	if paged.Total != 2 || len(paged.Logs) != 1 || paged.Logs[0].Action != string(auth.EventLoginSuccess) {
		t.Errorf("paged = %+v", paged)
	}
}

func TestList_ClampsLimit(t *testing.T) {
	repo := testRepo(t)
	res, err := repo.List(context.Background(), Filter{Limit: 10_000, Offset: -5})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if res.Limit != maxLimit || res.Offset != 0 || res.Logs == nil {
		t.Errorf("List() = limit %d offset %d logs %v", res.Limit, res.Offset, res.Logs)
	}
}

func TestFromEvent(t *testing.T) {
	log := FromEvent(auth.Event{Type: auth.EventLogoutSuccess, Outcome: auth.OutcomeSuccess, ActorID: "usr-1"})
	if log.EntityID != "usr-1" || log.EntityType != "user" || log.Source != "auth" {
		t.Errorf("FromEvent() = %+v", log)
	}
	if log.Details != nil {
		t.Errorf("Details = %v, want nil", log.Details)
	}
}
