// Package results persists saved snapshot documents and finds the most
// recent one for a (meeting, coder) pair. Backends: flat directory, MinIO
// object store, and an optional git archive layered over either.
package results

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no saved result matches.
var ErrNotFound = errors.New("no saved results")

// FileInfo describes one saved result file.
type FileInfo struct {
	Filename    string    `json:"filename"`
	MeetingDate string    `json:"meeting_date"`
	CoderID     string    `json:"coder_id"`
	ModifiedAt  time.Time `json:"modified"`
}

// Store is a snapshot result store. FindLatest returns the bytes of the
// most recently written document for the pair, or ErrNotFound.
type Store interface {
	Save(ctx context.Context, filename string, data []byte) error
	FindLatest(ctx context.Context, meeting, coderID string) ([]byte, error)
	List(ctx context.Context, coderID string) ([]FileInfo, error)
}
