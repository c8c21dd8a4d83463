package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v3"

	"github.com/szaffarano/korrosync/internal/core/domain"
	"github.com/szaffarano/korrosync/internal/storage/codec"
)

// Key prefixes for the two logical tables inside the one data directory.
var (
	userKeyPrefix     = []byte{'u'}
	progressKeyPrefix = []byte{'p'}
)

// Config configures the Badger-backed store.
type Config struct {
	// Dir is the data directory holding the entire durable state.
	Dir string

	// SyncWrites enables fsync after each commit. Default: true; reading
	// progress is small and losing acknowledged syncs is worse than the
	// latency cost.
	SyncWrites bool

	// GCInterval is the interval between value-log GC runs.
	// Default: 10m
	GCInterval time.Duration

	// GCThreshold is the GC discard ratio threshold (0.0-1.0).
	// Default: 0.5
	GCThreshold float64

	// Logger receives engine log output.
	Logger *slog.Logger
}

// DefaultConfig returns the default store configuration.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:         dir,
		SyncWrites:  true,
		GCInterval:  10 * time.Minute,
		GCThreshold: 0.5,
	}
}

// BadgerStore implements Store using Badger v3.
//
// Badger gives the transactional guarantees the contract needs: write
// transactions commit atomically and are serialized at commit time, read
// transactions observe a consistent snapshot, and value buffers handed to
// a read callback are only valid inside that transaction, which is where
// the zero-copy record views operate.
type BadgerStore struct {
	db     *badger.DB
	cfg    Config
	logger *slog.Logger

	stopCh chan struct{}
	doneCh chan struct{}
}

var _ Store = (*BadgerStore)(nil)

// Open opens or creates a Badger-backed store at cfg.Dir.
func Open(cfg Config) (*BadgerStore, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("storage: dir is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.GCInterval <= 0 {
		cfg.GCInterval = 10 * time.Minute
	}
	if cfg.GCThreshold <= 0 {
		cfg.GCThreshold = 0.5
	}

	opts := badger.DefaultOptions(cfg.Dir)
	opts.Logger = &badgerLogger{logger: logger}
	opts.SyncWrites = cfg.SyncWrites
	// Commit-time conflict detection turns racing writers into a
	// retryable StorageBusy instead of silent interleaving.
	opts.DetectConflicts = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, domain.ErrStorageError.WithDetails("open data dir").WithCause(err)
	}

	s := &BadgerStore{
		db:     db,
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	go s.gcLoop()

	logger.Info("store opened",
		"dir", cfg.Dir,
		"sync_writes", cfg.SyncWrites,
		"gc_interval", cfg.GCInterval)

	return s, nil
}

// CreateUser inserts a new user record. The existence check and the
// insert happen in the same write transaction.
func (s *BadgerStore) CreateUser(ctx context.Context, username, passwordHash string) error {
	if err := validUsername(username); err != nil {
		return err
	}

	now := time.Now().UnixMilli()
	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(userKey(username))
		if err == nil {
			return domain.ErrAlreadyExists.WithDetails("user " + username)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		u := domain.User{
			Username:     username,
			PasswordHash: passwordHash,
			LastActivity: now,
		}
		return txn.Set(userKey(username), codec.EncodeUser(&u))
	})
	return s.mapErr(err)
}

// GetUser returns an owned copy of the user record, or (nil, nil).
func (s *BadgerStore) GetUser(ctx context.Context, username string) (*domain.User, error) {
	var user *domain.User

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(username))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			view, err := codec.ParseUser(val)
			if err != nil {
				return err
			}
			user = view.Materialize()
			return nil
		})
	})
	if err != nil {
		return nil, s.mapErr(err)
	}
	return user, nil
}

// ListUsers returns every user as of one read snapshot.
func (s *BadgerStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	var users []domain.User

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = userKeyPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				view, err := codec.ParseUser(val)
				if err != nil {
					return err
				}
				users = append(users, *view.Materialize())
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, s.mapErr(err)
	}
	return users, nil
}

// RemoveUser deletes the user and all of its progress records in one
// transaction. The progress cleanup is a bounded scan over the user's key
// prefix, not a full-table walk.
func (s *BadgerStore) RemoveUser(ctx context.Context, username string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(userKey(username)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return domain.ErrNotFound.WithDetails("user " + username)
			}
			return err
		}

		if err := txn.Delete(userKey(username)); err != nil {
			return err
		}

		prefix := progressPrefix(username)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := txn.Delete(it.Item().KeyCopy(nil)); err != nil {
				return err
			}
		}
		return nil
	})
	return s.mapErr(err)
}

// UpdatePassword replaces the stored hash, keeping the other fields.
func (s *BadgerStore) UpdatePassword(ctx context.Context, username, newHash string) error {
	return s.mutateUser(username, func(u *domain.User) {
		u.PasswordHash = newHash
	})
}

// TouchUser updates only the LastActivity timestamp.
func (s *BadgerStore) TouchUser(ctx context.Context, username string, at int64) error {
	return s.mutateUser(username, func(u *domain.User) {
		u.LastActivity = at
	})
}

// mutateUser reads, modifies, and rewrites a user record in one write
// transaction.
func (s *BadgerStore) mutateUser(username string, mutate func(*domain.User)) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(username))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return domain.ErrNotFound.WithDetails("user " + username)
		}
		if err != nil {
			return err
		}

		var user *domain.User
		err = item.Value(func(val []byte) error {
			view, err := codec.ParseUser(val)
			if err != nil {
				return err
			}
			user = view.Materialize()
			return nil
		})
		if err != nil {
			return err
		}

		mutate(user)
		return txn.Set(userKey(username), codec.EncodeUser(user))
	})
	return s.mapErr(err)
}

// PutProgress upserts the record for (username, document). The user
// existence check runs in the same transaction, so progress can never be
// orphaned by a concurrent user removal.
func (s *BadgerStore) PutProgress(ctx context.Context, username, document string, p *domain.Progress) error {
	if err := validUsername(username); err != nil {
		return err
	}
	if document == "" {
		return domain.ErrInvalidArgument.WithDetails("document must not be empty")
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(userKey(username)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return domain.ErrNotFound.WithDetails("user " + username)
			}
			return err
		}

		return txn.Set(progressKey(username, document), codec.EncodeProgress(p))
	})
	return s.mapErr(err)
}

// GetProgress returns an owned copy of the record, or (nil, nil).
func (s *BadgerStore) GetProgress(ctx context.Context, username, document string) (*domain.Progress, error) {
	var progress *domain.Progress

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(progressKey(username, document))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			view, err := codec.ParseProgress(val)
			if err != nil {
				return err
			}
			progress = view.Materialize()
			return nil
		})
	})
	if err != nil {
		return nil, s.mapErr(err)
	}
	return progress, nil
}

// Stats returns storage statistics. Record counts come from a key-only
// scan inside one read snapshot.
func (s *BadgerStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	lsm, vlog := s.db.Size()
	stats.LSMSize = uint64(lsm)
	stats.ValueLogSize = uint64(vlog)

	err := s.db.View(func(txn *badger.Txn) error {
		stats.Users = countPrefix(txn, userKeyPrefix)
		stats.ProgressRecords = countPrefix(txn, progressKeyPrefix)
		return nil
	})
	if err != nil {
		return nil, s.mapErr(err)
	}
	return stats, nil
}

// Backup streams a consistent snapshot of the store to w using the
// engine's backup mechanism. It runs against a read snapshot, so it is
// safe while writes continue.
func (s *BadgerStore) Backup(ctx context.Context, w io.Writer) error {
	if _, err := s.db.Backup(w, 0); err != nil {
		return domain.ErrStorageError.WithDetails("backup").WithCause(err)
	}
	return nil
}

// Close stops the GC loop and shuts down the engine.
func (s *BadgerStore) Close() error {
	close(s.stopCh)
	<-s.doneCh

	if err := s.db.Close(); err != nil {
		return domain.ErrStorageError.WithDetails("close").WithCause(err)
	}

	s.logger.Info("store closed")
	return nil
}

// gcLoop runs periodic value-log garbage collection.
func (s *BadgerStore) gcLoop() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for {
				err := s.db.RunValueLogGC(s.cfg.GCThreshold)
				if err != nil {
					if !errors.Is(err, badger.ErrNoRewrite) {
						s.logger.Error("value log gc failed", "error", err)
					}
					break
				}
			}

		case <-s.stopCh:
			return
		}
	}
}

// mapErr translates engine faults into the domain taxonomy. Errors that
// already carry a domain code (including codec corruption) pass through.
func (s *BadgerStore) mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case domain.GetErrorCode(err) != "":
		return err
	case errors.Is(err, badger.ErrConflict):
		return domain.ErrStorageBusy.WithCause(err)
	default:
		return domain.ErrStorageError.WithCause(err)
	}
}

func validUsername(username string) error {
	if username == "" {
		return domain.ErrInvalidArgument.WithDetails("username must not be empty")
	}
	for i := 0; i < len(username); i++ {
		if username[i] == 0 {
			return domain.ErrInvalidArgument.WithDetails("username must not contain NUL")
		}
	}
	return nil
}

func userKey(username string) []byte {
	return append([]byte{'u'}, username...)
}

func progressKey(username, document string) []byte {
	return append([]byte{'p'}, codec.ProgressKey(username, document)...)
}

func progressPrefix(username string) []byte {
	return append([]byte{'p'}, codec.ProgressKeyPrefix(username)...)
}

func countPrefix(txn *badger.Txn, prefix []byte) uint64 {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var n uint64
	for it.Rewind(); it.Valid(); it.Next() {
		n++
	}
	return n
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
