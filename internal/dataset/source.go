package dataset

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

//go:embed places.csv
var bundled []byte

// Source yields the raw places table.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	Name() string
}

type embeddedSource struct{}

// Embedded returns the table compiled into the binary.
func Embedded() Source { return embeddedSource{} }

func (embeddedSource) Open(context.Context) (io.ReadCloser, error) {
	if len(bundled) == 0 {
		return nil, fmt.Errorf("%w: bundled places.csv is empty", ErrDatasetMissing)
	}
	return io.NopCloser(bytes.NewReader(bundled)), nil
}

func (embeddedSource) Name() string { return "bundled places.csv" }

// FileSource reads the table from disk.
type FileSource struct {
	Path string
}

func (s FileSource) Open(context.Context) (io.ReadCloser, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDatasetMissing, s.Path)
		}
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	return f, nil
}

func (s FileSource) Name() string { return s.Path }

// S3Config locates a table stored in an S3-compatible bucket.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
	Bucket    string
	Key       string
}

// S3Source reads the table from object storage.
type S3Source struct {
	client *minio.Client
	bucket string
	key    string
}

// NewS3Source connects to the configured S3 endpoint.
func NewS3Source(cfg S3Config) (*S3Source, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" || cfg.Key == "" {
		return nil, fmt.Errorf("s3 dataset requires endpoint, bucket and key")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	log.Printf("[dataset] using s3://%s/%s on %s", cfg.Bucket, cfg.Key, cfg.Endpoint)
	return &S3Source{client: client, bucket: cfg.Bucket, key: cfg.Key}, nil
}

func (s *S3Source) Open(ctx context.Context) (io.ReadCloser, error) {
	object, err := s.client.GetObject(ctx, s.bucket, s.key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}

	// GetObject is lazy; Stat forces the request so a missing key fails here.
	if _, err := object.Stat(); err != nil {
		object.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s", ErrDatasetMissing, s.Name())
		}
		return nil, fmt.Errorf("failed to stat object in S3: %w", err)
	}
	return object, nil
}

func (s *S3Source) Name() string { return fmt.Sprintf("s3://%s/%s", s.bucket, s.key) }
