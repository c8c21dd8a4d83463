package storage

import (
	"context"
	"io"

	"github.com/szaffarano/korrosync/internal/core/domain"
)

// Store is the capability interface for persisted state. All access to
// users and reading progress goes through it; the HTTP layer reaches it
// via the gatekeeping pipeline, the admin CLI calls it directly.
//
// Implementations must be safe for concurrent use. Errors are values from
// the domain taxonomy: ErrAlreadyExists, ErrNotFound, ErrCorruptRecord,
// ErrStorageBusy (transient, caller may retry), ErrStorageError.
type Store interface {
	// CreateUser inserts a new user with LastActivity set to now.
	// Fails with ErrAlreadyExists if the username is taken.
	CreateUser(ctx context.Context, username, passwordHash string) error

	// GetUser returns the user, or (nil, nil) if absent.
	GetUser(ctx context.Context, username string) (*domain.User, error)

	// ListUsers returns all users as of the start of the read.
	ListUsers(ctx context.Context) ([]domain.User, error)

	// RemoveUser deletes the user and every progress record it owns, in
	// one transaction. Fails with ErrNotFound if the user is absent.
	RemoveUser(ctx context.Context, username string) error

	// UpdatePassword replaces the stored hash. ErrNotFound if absent.
	UpdatePassword(ctx context.Context, username, newHash string) error

	// TouchUser sets LastActivity to the given Unix-millisecond time.
	// ErrNotFound if absent.
	TouchUser(ctx context.Context, username string, at int64) error

	// PutProgress upserts the progress record for (username, document).
	// The previous record, if any, is fully replaced. Fails with
	// ErrNotFound if the user does not exist.
	PutProgress(ctx context.Context, username, document string, p *domain.Progress) error

	// GetProgress returns the record for (username, document), or
	// (nil, nil) if absent.
	GetProgress(ctx context.Context, username, document string) (*domain.Progress, error)

	// Stats reports storage statistics.
	Stats(ctx context.Context) (*Stats, error)

	// Backup streams a consistent snapshot of the whole store to w. Safe
	// to run while the process serves traffic.
	Backup(ctx context.Context, w io.Writer) error

	// Close flushes and shuts down the store.
	Close() error
}

// Stats contains storage statistics.
type Stats struct {
	// Users is the number of user records.
	Users uint64

	// ProgressRecords is the number of progress records.
	ProgressRecords uint64

	// LSMSize is the LSM tree size in bytes.
	LSMSize uint64

	// ValueLogSize is the value log size in bytes.
	ValueLogSize uint64
}
