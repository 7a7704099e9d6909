package storage

import (
	"context"
	"fmt"

	"github.com/jhoicas/meu-agente-api/internal/application/ports"
	"github.com/jhoicas/meu-agente-api/pkg/config"
)

// New construye el BlobStore según BACKUP_STORAGE_DRIVER.
func New(ctx context.Context, cfg config.StorageConfig) (ports.BlobStore, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryStore(cfg.Prefix), nil
	case "s3":
		return NewS3Store(ctx, S3Config{Bucket: cfg.Bucket, Region: cfg.Region, Endpoint: cfg.Endpoint, Prefix: cfg.Prefix})
	case "gcs":
		return NewGCSStore(ctx, cfg.Bucket, cfg.Prefix)
	default:
		return nil, fmt.Errorf("storage: driver desconocido %q", cfg.Driver)
	}
}
