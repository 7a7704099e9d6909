package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	"github.com/jhoicas/meu-agente-api/internal/application/ports"
	"github.com/jhoicas/meu-agente-api/internal/domain"
)

var _ ports.BlobStore = (*GCSStore)(nil)

// GCSStore backups en Google Cloud Storage. Ubicaciones gs://bucket/key.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSStore usa Application Default Credentials.
func NewGCSStore(ctx context.Context, bucket, prefix string) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs: bucket obligatorio")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs: crear cliente: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket, prefix: prefix}, nil
}

// Put escribe con la precondición DoesNotExist.
func (s *GCSStore) Put(ctx context.Context, name string, blob []byte) (string, error) {
	path := s.prefix + name
	w := s.client.Bucket(s.bucket).Object(path).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	if _, err := w.Write(blob); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("gcs write %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
			return "", domain.ErrBlobExists
		}
		return "", fmt.Errorf("gcs close %s: %w", path, err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, path), nil
}

// Get lee el objeto completo.
func (s *GCSStore) Get(ctx context.Context, location string) ([]byte, error) {
	bucket, path, err := splitLocation("gs://", location)
	if err != nil {
		return nil, err
	}
	r, err := s.client.Bucket(bucket).Object(path).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, domain.ErrBlobNotFound
		}
		return nil, fmt.Errorf("gcs get %s: %w", location, err)
	}
	defer func() { _ = r.Close() }()
	return io.ReadAll(r)
}

// Close cierra el cliente.
func (s *GCSStore) Close() error { return s.client.Close() }
