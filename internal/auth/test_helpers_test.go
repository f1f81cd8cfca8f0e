package auth

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Go-ku/zmapp/internal/infrastructure/database"
	_ "github.com/Go-ku/zmapp/migrations" // registers the embedded schema
)

// testSecret is long enough for NewTokenCodec.
const testSecret = "test-secret-key-that-is-at-least-32-bytes"

// testDB opens a temporary SQLite database with every migration applied.
// The database is closed when the test completes.
func testDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "auth-test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}
	return db
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fastHasher is an Argon2id hasher with minimal cost so tests stay quick.
func fastHasher(t *testing.T) *Hasher {
	t.Helper()
	h, err := NewHasher(HasherConfig{
		Algorithm:     AlgorithmArgon2id,
		Argon2Time:    1,
		Argon2Memory:  1024,
		Argon2Threads: 1,
		BcryptCost:    4,
	})
	if err != nil {
		t.Fatalf("NewHasher() error = %v", err)
	}
	return h
}

// createIdentity stores an active identity with password.
func createIdentity(t *testing.T, store *SQLiteStore, h *Hasher, email, password string, role Role) *Identity {
	t.Helper()
	digest, err := h.Hash(password)
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	id := &Identity{
		Email:        email,
		PasswordHash: digest,
		Role:         role,
		FirstName:    "Test",
		LastName:     "User",
		IsActive:     true,
	}
	if err := store.Create(context.Background(), id); err != nil {
		t.Fatalf("Create(%s) error = %v", email, err)
	}
	return id
}

// testService wires a Service over a fresh database and a fake clock.
type testService struct {
	svc      *Service
	store    *SQLiteStore
	hasher   *Hasher
	codec    *TokenCodec
	clock    *fakeClock
	captured *captureSink
}

func newTestService(t *testing.T, withRevocation bool) *testService {
	t.Helper()

	db := testDB(t)
	clock := newFakeClock()
	store := NewSQLiteStore(db.DB)
	store.now = clock.Now
	hasher := fastHasher(t)

	codec, err := NewTokenCodec(TokenConfig{Secret: testSecret}, WithTokenClock(clock.Now))
	if err != nil {
		t.Fatalf("NewTokenCodec() error = %v", err)
	}

	sink := &captureSink{}
	recorder := NewRecorder(nil, 64, sink)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		recorder.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	deps := ServiceDeps{
		Store:   store,
		Hasher:  hasher,
		Tokens:  codec,
		Lockout: NewLockout(store, DefaultLockoutPolicy(), WithLockoutClock(clock.Now)),
		Events:  recorder,
		Clock:   clock.Now,
	}
	if withRevocation {
		rl := NewRevocationList(db.DB)
		rl.now = clock.Now
		deps.Revocations = rl
	}

	svc, err := NewService(deps)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return &testService{svc: svc, store: store, hasher: hasher, codec: codec, clock: clock, captured: sink}
}

// captureSink keeps every delivered event.
type captureSink struct {
	mu     sync.Mutex
	events []Event
}

func (c *captureSink) WriteEvent(_ context.Context, e Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *captureSink) types() []EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]EventType, len(c.events))
	for i, e := range c.events {
		out[i] = e.Type
	}
	return out
}

// waitForEvent polls until an event of type t is delivered.
func (c *captureSink) waitForEvent(t *testing.T, want EventType) Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		for _, e := range c.events {
			if e.Type == want {
				c.mu.Unlock()
				return e
			}
		}
		c.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("event %s not delivered; got %v", want, c.types())
	return Event{}
}
