package blob

import (
	"context"
	"errors"
	"fmt"
	"io"

	appcfg "github.com/medvault/portal/internal/config"
)

// ErrNotFound is returned when no object exists under a key.
var ErrNotFound = errors.New("blob not found")

// Store holds uploaded document bytes addressed by storage key.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// New builds the store selected by cfg.Storage.Driver.
func New(ctx context.Context, cfg *appcfg.AppConfig) (Store, error) {
	switch cfg.Storage.Driver {
	case appcfg.StorageS3:
		return NewS3Store(cfg.Storage.S3)
	case appcfg.StorageLocal, "":
		return NewLocalStore(cfg.UploadDir())
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
}

// ReadAll opens key and reads at most limit bytes (limit <= 0 means unbounded).
func ReadAll(ctx context.Context, s Store, key string, limit int64) ([]byte, error) {
	rc, err := s.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var r io.Reader = rc
	if limit > 0 {
		r = io.LimitReader(rc, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read blob %q: %w", key, err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, fmt.Errorf("blob %q exceeds %d bytes", key, limit)
	}
	return data, nil
}
