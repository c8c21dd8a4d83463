package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/szaffarano/korrosync/internal/core/domain"
	"github.com/szaffarano/korrosync/internal/storage"
)

// SyncService handles reading progress synchronization.
type SyncService struct {
	store  storage.Store
	logger *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewSyncService creates a new SyncService.
func NewSyncService(store storage.Store, logger *slog.Logger) *SyncService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncService{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// PushRequest contains one progress update from a reader device.
type PushRequest struct {
	Document   string
	Progress   string
	Percentage float64
	Device     string
	DeviceID   string
}

// PushResponse echoes the document and the server-assigned timestamp.
type PushResponse struct {
	Document  string
	Timestamp int64
}

// Push upserts the progress record for (username, document). The
// timestamp is assigned by the server at write time; client clocks on
// e-readers drift too much to order updates with. Whichever update
// commits last wins.
func (s *SyncService) Push(ctx context.Context, username string, req *PushRequest) (*PushResponse, error) {
	if req.Document == "" {
		return nil, domain.ErrInvalidArgument.WithDetails("document must not be empty")
	}

	ts := s.now().UnixMilli()
	record := &domain.Progress{
		DeviceID:   req.DeviceID,
		Device:     req.Device,
		Percentage: req.Percentage,
		Progress:   req.Progress,
		Timestamp:  ts,
	}

	if err := s.store.PutProgress(ctx, username, req.Document, record); err != nil {
		return nil, err
	}

	s.logger.Debug("progress pushed",
		"username", username,
		"document", req.Document,
		"percentage", req.Percentage)

	return &PushResponse{Document: req.Document, Timestamp: ts}, nil
}

// PullResponse contains the stored progress for one document.
type PullResponse struct {
	Document   string
	Progress   string
	Percentage float64
	Device     string
	DeviceID   string
	Timestamp  int64
}

// Pull returns the stored progress for (username, document). Returns
// ErrNotFound when the document has never been synced.
func (s *SyncService) Pull(ctx context.Context, username, document string) (*PullResponse, error) {
	record, err := s.store.GetProgress(ctx, username, document)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, domain.ErrNotFound.WithDetails("document " + document)
	}

	return &PullResponse{
		Document:   document,
		Progress:   record.Progress,
		Percentage: record.Percentage,
		Device:     record.Device,
		DeviceID:   record.DeviceID,
		Timestamp:  record.Timestamp,
	}, nil
}
