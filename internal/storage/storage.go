// Package storage gives access to the audio containers referenced by VAD
// events. Containers live on local disk or in an S3-compatible bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
)

// Store reads and writes container files.
//
// Paths are slash separated and relative to the store root. Implementations
// are safe for concurrent use.
type Store interface {
	// Open returns the file contents. A missing file yields an error
	// wrapping os.ErrNotExist. The caller closes the reader.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// Create truncates or creates the file. Data is committed on Close.
	Create(ctx context.Context, name string) (io.WriteCloser, error)

	// Exists reports whether the file is present.
	Exists(ctx context.Context, name string) (bool, error)
}

// Backend names accepted by Config.Backend.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

// Config selects and configures a Store.
type Config struct {
	Backend  string
	Dir      string // local root
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string // S3-compatible endpoint (MinIO, R2); path-style when set
}

// New builds the Store described by cfg.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendLocal:
		return NewLocal(cfg.Dir)
	case BackendS3:
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("storage: s3 backend requires a bucket")
		}
		client, err := NewS3Client(ctx, cfg.Region, cfg.Endpoint)
		if err != nil {
			return nil, err
		}
		return NewS3(client, cfg.Bucket, cfg.Prefix), nil
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.Backend)
	}
}

// AudioPath is where the audio container with the given id is stored.
func AudioPath(containerID string) string {
	return path.Join("audio", containerID+".wav")
}
