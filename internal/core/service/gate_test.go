package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/szaffarano/korrosync/internal/core/domain"
	"github.com/szaffarano/korrosync/internal/storage"
)

// fakeStore is an in-memory Store for service tests.
type fakeStore struct {
	mu       sync.Mutex
	users    map[string]domain.User
	progress map[string]domain.Progress

	// getUserErr, when set, is returned by GetUser.
	getUserErr error
}

var _ storage.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[string]domain.User),
		progress: make(map[string]domain.Progress),
	}
}

func (f *fakeStore) CreateUser(ctx context.Context, username, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[username]; ok {
		return domain.ErrAlreadyExists.WithDetails("user " + username)
	}
	f.users[username] = domain.User{
		Username:     username,
		PasswordHash: passwordHash,
		LastActivity: time.Now().UnixMilli(),
	}
	return nil
}

func (f *fakeStore) GetUser(ctx context.Context, username string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getUserErr != nil {
		return nil, f.getUserErr
	}
	u, ok := f.users[username]
	if !ok {
		return nil, nil
	}
	copied := u
	return &copied, nil
}

func (f *fakeStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeStore) RemoveUser(ctx context.Context, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[username]; !ok {
		return domain.ErrNotFound.WithDetails("user " + username)
	}
	delete(f.users, username)
	prefix := username + "\x00"
	for key := range f.progress {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(f.progress, key)
		}
	}
	return nil
}

func (f *fakeStore) UpdatePassword(ctx context.Context, username, newHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[username]
	if !ok {
		return domain.ErrNotFound.WithDetails("user " + username)
	}
	u.PasswordHash = newHash
	f.users[username] = u
	return nil
}

func (f *fakeStore) TouchUser(ctx context.Context, username string, at int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[username]
	if !ok {
		return domain.ErrNotFound.WithDetails("user " + username)
	}
	u.LastActivity = at
	f.users[username] = u
	return nil
}

func (f *fakeStore) PutProgress(ctx context.Context, username, document string, p *domain.Progress) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[username]; !ok {
		return domain.ErrNotFound.WithDetails("user " + username)
	}
	f.progress[username+"\x00"+document] = *p
	return nil
}

func (f *fakeStore) GetProgress(ctx context.Context, username, document string) (*domain.Progress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.progress[username+"\x00"+document]
	if !ok {
		return nil, nil
	}
	copied := p
	return &copied, nil
}

func (f *fakeStore) Stats(ctx context.Context) (*storage.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &storage.Stats{
		Users:           uint64(len(f.users)),
		ProgressRecords: uint64(len(f.progress)),
	}, nil
}

func (f *fakeStore) Backup(ctx context.Context, w io.Writer) error { return nil }

func (f *fakeStore) Close() error { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func registerUser(t *testing.T, store *fakeStore, username, password string) {
	t.Helper()
	user, err := domain.NewUser(username, password)
	if err != nil {
		t.Fatalf("failed to build user: %v", err)
	}
	if err := store.CreateUser(context.Background(), user.Username, user.PasswordHash); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
}

func TestGateRateLimit(t *testing.T) {
	store := newFakeStore()
	registerUser(t, store, "alice", "secret")

	gate, err := NewGate(store, &GateConfig{Refill: 2, Burst: 5}, testLogger())
	if err != nil {
		t.Fatalf("failed to create gate: %v", err)
	}

	req := &AdmitRequest{ClientKey: "10.0.0.1", Username: "alice", Password: "secret"}

	// The full burst passes back to back.
	for i := 0; i < 5; i++ {
		if _, err := gate.Admit(context.Background(), req); err != nil {
			t.Fatalf("request %d within burst rejected: %v", i+1, err)
		}
	}

	// The next one is rejected before credentials are looked at.
	_, err = gate.Admit(context.Background(), req)
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited after burst, got %v", err)
	}

	// At 2 req/s one token is back after half a second.
	time.Sleep(600 * time.Millisecond)
	if _, err := gate.Admit(context.Background(), req); err != nil {
		t.Fatalf("expected admission after refill, got %v", err)
	}
}

func TestGateRateLimitPerClient(t *testing.T) {
	store := newFakeStore()
	registerUser(t, store, "alice", "secret")

	gate, err := NewGate(store, &GateConfig{Refill: 2, Burst: 1}, testLogger())
	if err != nil {
		t.Fatalf("failed to create gate: %v", err)
	}

	admit := func(client string) error {
		_, err := gate.Admit(context.Background(), &AdmitRequest{
			ClientKey: client, Username: "alice", Password: "secret",
		})
		return err
	}

	if err := admit("10.0.0.1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := admit("10.0.0.1"); !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited for exhausted client, got %v", err)
	}

	// A different client has its own bucket.
	if err := admit("10.0.0.2"); err != nil {
		t.Fatalf("second client must not share the first bucket: %v", err)
	}
}

func TestGateCredentials(t *testing.T) {
	store := newFakeStore()
	registerUser(t, store, "alice", "secret")

	gate, err := NewGate(store, &GateConfig{Refill: 100, Burst: 100}, testLogger())
	if err != nil {
		t.Fatalf("failed to create gate: %v", err)
	}
	ctx := context.Background()

	t.Run("valid credentials", func(t *testing.T) {
		result, err := gate.Admit(ctx, &AdmitRequest{
			ClientKey: "c1", Username: "alice", Password: "secret",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.User == nil || result.User.Username != "alice" {
			t.Fatalf("expected verified user alice, got %+v", result.User)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := gate.Admit(ctx, &AdmitRequest{
			ClientKey: "c1", Username: "alice", Password: "wrong",
		})
		if !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := gate.Admit(ctx, &AdmitRequest{
			ClientKey: "c1", Username: "nobody", Password: "secret",
		})
		if !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("unknown user and wrong password are indistinguishable", func(t *testing.T) {
		_, errUnknown := gate.Admit(ctx, &AdmitRequest{
			ClientKey: "c1", Username: "nobody", Password: "secret",
		})
		_, errWrong := gate.Admit(ctx, &AdmitRequest{
			ClientKey: "c1", Username: "alice", Password: "wrong",
		})
		if errUnknown.Error() != errWrong.Error() {
			t.Errorf("rejection must not reveal whether the user exists: %q vs %q",
				errUnknown, errWrong)
		}
	})

	t.Run("storage fault passes through", func(t *testing.T) {
		store.getUserErr = domain.ErrStorageError.WithDetails("boom")
		defer func() { store.getUserErr = nil }()

		_, err := gate.Admit(ctx, &AdmitRequest{
			ClientKey: "c1", Username: "alice", Password: "secret",
		})
		if !errors.Is(err, domain.ErrStorageError) {
			t.Fatalf("expected ErrStorageError, got %v", err)
		}
	})
}

func TestGateTouchesLastActivity(t *testing.T) {
	store := newFakeStore()
	registerUser(t, store, "alice", "secret")

	before, _ := store.GetUser(context.Background(), "alice")

	gate, err := NewGate(store, nil, testLogger())
	if err != nil {
		t.Fatalf("failed to create gate: %v", err)
	}

	time.Sleep(5 * time.Millisecond)
	if _, err := gate.Admit(context.Background(), &AdmitRequest{
		ClientKey: "c1", Username: "alice", Password: "secret",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	after, _ := store.GetUser(context.Background(), "alice")
	if after.LastActivity <= before.LastActivity {
		t.Error("expected admission to advance last activity")
	}
}

// Rejections for unknown users must cost roughly the same hashing work as
// rejections for wrong passwords.
func TestGateTimingUniformity(t *testing.T) {
	if testing.Short() {
		t.Skip("timing measurement skipped in short mode")
	}

	store := newFakeStore()
	registerUser(t, store, "alice", "secret")

	gate, err := NewGate(store, &GateConfig{Refill: 1000, Burst: 1000}, testLogger())
	if err != nil {
		t.Fatalf("failed to create gate: %v", err)
	}
	ctx := context.Background()

	measure := func(username string) time.Duration {
		const rounds = 5
		var total time.Duration
		for i := 0; i < rounds; i++ {
			start := time.Now()
			gate.Admit(ctx, &AdmitRequest{ //nolint:errcheck
				ClientKey: fmt.Sprintf("t-%d", i), Username: username, Password: "wrong",
			})
			total += time.Since(start)
		}
		return total / rounds
	}

	known := measure("alice")
	unknown := measure("nobody")

	// Both paths hash. Allow generous scheduler noise, but an unknown user
	// skipping the hash entirely would be an order of magnitude faster.
	if unknown*5 < known {
		t.Errorf("unknown-user path too fast: known=%v unknown=%v", known, unknown)
	}
}

func TestGateLimiterEviction(t *testing.T) {
	gate, err := NewGate(newFakeStore(), &GateConfig{Refill: 2, Burst: 5}, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer gate.Close()

	for _, key := range []string{"198.51.100.1", "198.51.100.2", "198.51.100.3"} {
		if err := gate.CheckRateLimit(key); err != nil {
			t.Fatalf("unexpected rate limit for %s: %v", key, err)
		}
	}
	if got := gate.limiters.size(); got != 3 {
		t.Fatalf("expected 3 limiters, got %d", got)
	}

	t.Run("idle entries dropped", func(t *testing.T) {
		// Age two of the entries past the idle TTL.
		stale := time.Now().Add(-2 * limiterIdleTTL).UnixNano()
		gate.limiters.mu.Lock()
		gate.limiters.limiters["198.51.100.1"].lastSeen.Store(stale)
		gate.limiters.limiters["198.51.100.2"].lastSeen.Store(stale)
		gate.limiters.mu.Unlock()

		if dropped := gate.limiters.sweep(time.Now().Add(-limiterIdleTTL)); dropped != 2 {
			t.Errorf("expected 2 dropped limiters, got %d", dropped)
		}
		if got := gate.limiters.size(); got != 1 {
			t.Errorf("expected 1 limiter after sweep, got %d", got)
		}
	})

	t.Run("active entry survives", func(t *testing.T) {
		if err := gate.CheckRateLimit("198.51.100.3"); err != nil {
			t.Errorf("surviving limiter must still admit: %v", err)
		}
		if dropped := gate.limiters.sweep(time.Now().Add(-limiterIdleTTL)); dropped != 0 {
			t.Errorf("expected no dropped limiters, got %d", dropped)
		}
	})

	t.Run("swept client gets fresh bucket", func(t *testing.T) {
		if err := gate.CheckRateLimit("198.51.100.1"); err != nil {
			t.Errorf("swept client must get a fresh bucket: %v", err)
		}
	})
}
