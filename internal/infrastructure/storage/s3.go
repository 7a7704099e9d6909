package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/jhoicas/meu-agente-api/internal/application/ports"
	"github.com/jhoicas/meu-agente-api/internal/domain"
)

var _ ports.BlobStore = (*S3Store)(nil)

// S3Store backups en S3 (o compatible: MinIO, LocalStack).
// Las ubicaciones tienen la forma s3://bucket/key.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// S3Config configuración del store.
type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string
	Prefix   string
}

// NewS3Store carga la configuración AWS por defecto (env, perfil o rol).
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3: bucket obligatorio")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("s3: cargar configuración AWS: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Store{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Put sube el artefacto con If-None-Match: * para no sobrescribir nunca un backup.
func (s *S3Store) Put(ctx context.Context, name string, blob []byte) (string, error) {
	key := s.prefix + name
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(s.bucket),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(blob),
		ContentType:          aws.String("application/octet-stream"),
		IfNoneMatch:          aws.String("*"),
		ServerSideEncryption: types.ServerSideEncryptionAes256,
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "PreconditionFailed" {
			return "", domain.ErrBlobExists
		}
		return "", fmt.Errorf("s3 put %s: %w", key, err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

// Get descarga el artefacto de la ubicación dada.
func (s *S3Store) Get(ctx context.Context, location string) ([]byte, error) {
	bucket, key, err := splitLocation("s3://", location)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, domain.ErrBlobNotFound
		}
		return nil, fmt.Errorf("s3 get %s: %w", location, err)
	}
	defer func() { _ = out.Body.Close() }()
	return io.ReadAll(out.Body)
}

func splitLocation(scheme, location string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(location, scheme)
	if !ok {
		return "", "", fmt.Errorf("%w: ubicación %q", domain.ErrBlobNotFound, location)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: ubicación %q", domain.ErrBlobNotFound, location)
	}
	return bucket, key, nil
}
