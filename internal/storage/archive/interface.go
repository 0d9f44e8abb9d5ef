// Package archive stores completed backtest results in a local directory or
// an S3-compatible bucket.
package archive

import (
	"context"
	"fmt"
)

// Storage is a flat key/value blob store
type Storage interface {
	// Write stores data at the given path
	Write(ctx context.Context, path string, data []byte) error

	// Read retrieves data from the given path
	Read(ctx context.Context, path string) ([]byte, error)

	// List returns all paths below the directory dir
	List(ctx context.Context, dir string) ([]string, error)

	// Exists checks if data exists at the given path
	Exists(ctx context.Context, path string) (bool, error)
}

// Config selects and configures a backend
type Config struct {
	Backend string // "local" or "s3"
	Path    string // local base directory
	S3      S3Config
}

// NewStorage creates the backend named by cfg.Backend
func NewStorage(cfg Config) (Storage, error) {
	switch cfg.Backend {
	case "", "local":
		if cfg.Path == "" {
			return nil, fmt.Errorf("archive path is required for the local backend")
		}
		return NewLocalFS(cfg.Path)
	case "s3":
		if cfg.S3.Bucket == "" {
			return nil, fmt.Errorf("archive bucket is required for the s3 backend")
		}
		return NewS3(cfg.S3)
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.Backend)
	}
}
