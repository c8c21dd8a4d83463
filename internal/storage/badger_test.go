package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/szaffarano/korrosync/internal/core/domain"
)

func newTestStore(t *testing.T) (*BadgerStore, string) {
	t.Helper()

	dir, err := os.MkdirTemp("", "korrosync-store-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	cfg := DefaultConfig(dir)
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := Open(cfg)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	return store, dir
}

func mustCreateUser(t *testing.T, store *BadgerStore, username string) {
	t.Helper()

	user, err := domain.NewUser(username, "secret-"+username)
	if err != nil {
		t.Fatalf("failed to build user: %v", err)
	}
	if err := store.CreateUser(context.Background(), user.Username, user.PasswordHash); err != nil {
		t.Fatalf("failed to create user %q: %v", username, err)
	}
}

func TestBadgerStoreUsers(t *testing.T) {
	store, _ := newTestStore(t)
	defer store.Close()
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		mustCreateUser(t, store, "alice")

		user, err := store.GetUser(ctx, "alice")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if user == nil {
			t.Fatal("expected user, got nil")
		}
		if user.Username != "alice" {
			t.Errorf("expected username alice, got %q", user.Username)
		}
		if user.PasswordHash == "" {
			t.Error("expected non-empty password hash")
		}
		if user.LastActivity == 0 {
			t.Error("expected last activity to be set")
		}
	})

	t.Run("duplicate create fails", func(t *testing.T) {
		mustCreateUser(t, store, "bob")

		err := store.CreateUser(ctx, "bob", "another-hash")
		if !errors.Is(err, domain.ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}

		// The original record must be untouched.
		user, err := store.GetUser(ctx, "bob")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if user.PasswordHash == "another-hash" {
			t.Error("failed create must not overwrite existing record")
		}
	})

	t.Run("get absent user", func(t *testing.T) {
		user, err := store.GetUser(ctx, "nobody")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if user != nil {
			t.Errorf("expected nil for absent user, got %+v", user)
		}
	})

	t.Run("empty username rejected", func(t *testing.T) {
		err := store.CreateUser(ctx, "", "hash")
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("username with NUL rejected", func(t *testing.T) {
		err := store.CreateUser(ctx, "al\x00ice", "hash")
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("list", func(t *testing.T) {
		users, err := store.ListUsers(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		names := make(map[string]bool, len(users))
		for _, u := range users {
			names[u.Username] = true
		}
		if !names["alice"] || !names["bob"] {
			t.Errorf("expected alice and bob in listing, got %v", names)
		}
	})
}

func TestBadgerStoreUpdatePassword(t *testing.T) {
	store, _ := newTestStore(t)
	defer store.Close()
	ctx := context.Background()

	mustCreateUser(t, store, "alice")

	before, err := store.GetUser(ctx, "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := store.UpdatePassword(ctx, "alice", "new-hash"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	after, err := store.GetUser(ctx, "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if after.PasswordHash != "new-hash" {
		t.Errorf("expected new hash, got %q", after.PasswordHash)
	}
	if after.LastActivity != before.LastActivity {
		t.Error("password update must not change last activity")
	}

	err = store.UpdatePassword(ctx, "nobody", "hash")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBadgerStoreTouchUser(t *testing.T) {
	store, _ := newTestStore(t)
	defer store.Close()
	ctx := context.Background()

	mustCreateUser(t, store, "alice")

	at := time.Now().Add(time.Hour).UnixMilli()
	if err := store.TouchUser(ctx, "alice", at); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	user, err := store.GetUser(ctx, "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.LastActivity != at {
		t.Errorf("expected last activity %d, got %d", at, user.LastActivity)
	}

	err = store.TouchUser(ctx, "nobody", at)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBadgerStoreProgress(t *testing.T) {
	store, _ := newTestStore(t)
	defer store.Close()
	ctx := context.Background()

	mustCreateUser(t, store, "alice")

	record := &domain.Progress{
		DeviceID:   "dev-1",
		Device:     "boox",
		Percentage: 0.42,
		Progress:   "/body/DocFragment[12]/body/p[4]/text().0",
		Timestamp:  time.Now().UnixMilli(),
	}

	t.Run("put and get", func(t *testing.T) {
		if err := store.PutProgress(ctx, "alice", "doc-1", record); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got, err := store.GetProgress(ctx, "alice", "doc-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got == nil {
			t.Fatal("expected progress, got nil")
		}
		if *got != *record {
			t.Errorf("expected %+v, got %+v", record, got)
		}
	})

	t.Run("upsert replaces", func(t *testing.T) {
		updated := *record
		updated.Percentage = 0.84
		updated.Progress = "/body/DocFragment[20]/body/p[1]/text().0"
		updated.Timestamp = record.Timestamp + 1000

		if err := store.PutProgress(ctx, "alice", "doc-1", &updated); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got, err := store.GetProgress(ctx, "alice", "doc-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if *got != updated {
			t.Errorf("expected replacement %+v, got %+v", updated, got)
		}
	})

	t.Run("absent document", func(t *testing.T) {
		got, err := store.GetProgress(ctx, "alice", "doc-unknown")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != nil {
			t.Errorf("expected nil for absent document, got %+v", got)
		}
	})

	t.Run("unknown user rejected", func(t *testing.T) {
		err := store.PutProgress(ctx, "nobody", "doc-1", record)
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("empty document rejected", func(t *testing.T) {
		err := store.PutProgress(ctx, "alice", "", record)
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestBadgerStoreRemoveUserCascades(t *testing.T) {
	store, _ := newTestStore(t)
	defer store.Close()
	ctx := context.Background()

	mustCreateUser(t, store, "alice")
	mustCreateUser(t, store, "alicia")

	record := &domain.Progress{DeviceID: "dev-1", Device: "boox", Percentage: 0.1, Progress: "p", Timestamp: 1}
	for _, doc := range []string{"doc-1", "doc-2", "doc-3"} {
		if err := store.PutProgress(ctx, "alice", doc, record); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	// A user whose name shares a prefix must not be swept along.
	if err := store.PutProgress(ctx, "alicia", "doc-1", record); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := store.RemoveUser(ctx, "alice"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	user, err := store.GetUser(ctx, "alice")
	if err != nil || user != nil {
		t.Errorf("expected user gone, got user=%v err=%v", user, err)
	}
	for _, doc := range []string{"doc-1", "doc-2", "doc-3"} {
		got, err := store.GetProgress(ctx, "alice", doc)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != nil {
			t.Errorf("expected progress for %q removed, got %+v", doc, got)
		}
	}

	got, err := store.GetProgress(ctx, "alicia", "doc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil {
		t.Error("cascade delete must not touch a prefix-sharing user")
	}

	err = store.RemoveUser(ctx, "nobody")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBadgerStoreStats(t *testing.T) {
	store, _ := newTestStore(t)
	defer store.Close()
	ctx := context.Background()

	mustCreateUser(t, store, "alice")
	mustCreateUser(t, store, "bob")

	record := &domain.Progress{DeviceID: "dev-1", Device: "boox", Percentage: 0.1, Progress: "p", Timestamp: 1}
	if err := store.PutProgress(ctx, "alice", "doc-1", record); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.PutProgress(ctx, "alice", "doc-2", record); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.PutProgress(ctx, "bob", "doc-1", record); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Users != 2 {
		t.Errorf("expected 2 users, got %d", stats.Users)
	}
	if stats.ProgressRecords != 3 {
		t.Errorf("expected 3 progress records, got %d", stats.ProgressRecords)
	}
}

func TestBadgerStorePersistence(t *testing.T) {
	store, dir := newTestStore(t)
	ctx := context.Background()

	mustCreateUser(t, store, "alice")
	record := &domain.Progress{
		DeviceID:   "dev-1",
		Device:     "boox",
		Percentage: 0.42,
		Progress:   "pos",
		Timestamp:  12345,
	}
	if err := store.PutProgress(ctx, "alice", "doc-1", record); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}

	cfg := DefaultConfig(dir)
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	reopened, err := Open(cfg)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer reopened.Close()

	user, err := reopened.GetUser(ctx, "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user == nil {
		t.Fatal("committed user missing after reopen")
	}

	got, err := reopened.GetProgress(ctx, "alice", "doc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || *got != *record {
		t.Errorf("committed progress missing or changed after reopen: %+v", got)
	}
}

func TestBadgerStoreBackup(t *testing.T) {
	store, _ := newTestStore(t)
	defer store.Close()
	ctx := context.Background()

	mustCreateUser(t, store, "alice")

	var buf bytes.Buffer
	if err := store.Backup(ctx, &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.Len() == 0 {
		t.Error("expected non-empty backup stream")
	}
}
