package storage

import (
	"context"
	"time"
)

// Image is a stored upload document: the original bytes base64-encoded plus
// the text extracted from them.
type Image struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Data      string    `json:"data,omitempty"` // base64-encoded bytes
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Run is a recorded one-shot execution.
type Run struct {
	ID        string    `json:"id"`
	Language  string    `json:"language"`
	Code      string    `json:"code"`
	Output    string    `json:"output"`
	Errors    string    `json:"errors"`
	CreatedAt time.Time `json:"created_at"`
}

// ListOptions controls pagination for list queries.
type ListOptions struct {
	Limit  int
	Offset int
}

// Store is the persistence interface for uploaded images and run history.
type Store interface {
	// SaveImage inserts an image document. The ID field must be set by the caller.
	SaveImage(ctx context.Context, img *Image) error

	// GetImage returns one image document including its data.
	GetImage(ctx context.Context, id string) (*Image, error)

	// ListImages returns image metadata (no data) ordered by created_at descending.
	ListImages(ctx context.Context, opts ListOptions) ([]Image, error)

	// DeleteImage removes an image document.
	DeleteImage(ctx context.Context, id string) error

	// SaveRun records a one-shot execution. The ID field must be set by the caller.
	SaveRun(ctx context.Context, run *Run) error

	// ListRuns returns recorded runs ordered by created_at descending.
	ListRuns(ctx context.Context, opts ListOptions) ([]Run, error)

	// Close releases resources.
	Close() error
}
