// Package sink defines delivery backends for finished captures.
package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Result is a finished capture handed to delivery backends. Data holds
// the raw image or document bytes and never leaves the process through
// a metadata-only backend like the webhook.
type Result struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	Format     string `json:"format"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	FullPage   bool   `json:"full_page"`
	ByteSize   int    `json:"byte_size"`
	DurationMs int64  `json:"duration_ms"`
	Path       string `json:"path,omitempty"`

	Data []byte `json:"-"`
}

// Sink delivers capture results to a backend.
type Sink interface {
	Deliver(ctx context.Context, res *Result) error
	Close() error
}

// File writes capture bytes to the path the request asked for. Results
// without a path pass through untouched.
type File struct{}

func (File) Deliver(_ context.Context, res *Result) error {
	if res.Path == "" || len(res.Data) == 0 {
		return nil
	}
	if dir := filepath.Dir(res.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("sink: mkdir %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(res.Path, res.Data, 0o644); err != nil {
		return fmt.Errorf("sink: write %s: %w", res.Path, err)
	}
	return nil
}

func (File) Close() error { return nil }
