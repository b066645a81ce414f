// Package gcs stores uploads in a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"github.com/imrenagi/uploadex/upload"
)

const (
	Prefix = "gcs"

	// SignedURLExpiry bounds the lifetime of returned object URLs.
	SignedURLExpiry = time.Hour
)

// Bucket is the part of a bucket handle the backend needs.
type Bucket interface {
	NewWriter(ctx context.Context, object, contentType string) io.WriteCloser
	Delete(ctx context.Context, object string) error
	Exists(ctx context.Context) (bool, error)
	Create(ctx context.Context) error
	SignedURL(object string, opts *storage.SignedURLOptions) (string, error)
}

type bucketHandle struct {
	handle    *storage.BucketHandle
	projectID string
}

func (b bucketHandle) NewWriter(ctx context.Context, object, contentType string) io.WriteCloser {
	w := b.handle.Object(object).NewWriter(ctx)
	w.ContentType = contentType
	return w
}

func (b bucketHandle) Delete(ctx context.Context, object string) error {
	return b.handle.Object(object).Delete(ctx)
}

func (b bucketHandle) Exists(ctx context.Context) (bool, error) {
	_, err := b.handle.Attrs(ctx)
	if errors.Is(err, storage.ErrBucketNotExist) {
		return false, nil
	}
	return err == nil, err
}

func (b bucketHandle) Create(ctx context.Context) error {
	return b.handle.Create(ctx, b.projectID, nil)
}

func (b bucketHandle) SignedURL(object string, opts *storage.SignedURLOptions) (string, error) {
	return b.handle.SignedURL(object, opts)
}

// Backend writes objects through the GCS writer. Outside emulator mode the
// returned location is a V4 signed URL; in emulator mode it is a direct media
// link on the emulator.
type Backend struct {
	bucket     Bucket
	bucketName string
	endpoint   string
	now        func() time.Time
	log        zerolog.Logger
}

// New creates the storage client. Without an endpoint the service account key
// file authenticates the client and signs URLs; with one, the client talks to
// an emulator without authentication.
func New(ctx context.Context, cfg *upload.GCSConfig, log zerolog.Logger) (*Backend, error) {
	if cfg == nil || cfg.Bucket == "" {
		return nil, upload.Errorf(upload.CodeConfiguration, "missing GCS bucket name")
	}

	var opts []option.ClientOption
	switch {
	case cfg.Endpoint != "":
		opts = append(opts,
			option.WithEndpoint(strings.TrimRight(cfg.Endpoint, "/")+"/storage/v1/"),
			option.WithoutAuthentication())
	case cfg.KeyFilename != "":
		opts = append(opts, option.WithCredentialsFile(cfg.KeyFilename))
	default:
		return nil, upload.Errorf(upload.CodeConfiguration, "missing GCS credentials: provide either keyFilename or use emulator with endpoint")
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, upload.Wrap(upload.CodeConfiguration, err, "error creating storage client")
	}

	return NewWithBucket(bucketHandle{handle: client.Bucket(cfg.Bucket), projectID: cfg.ProjectID}, cfg, log), nil
}

// NewWithBucket wires a Backend around an existing bucket.
func NewWithBucket(bucket Bucket, cfg *upload.GCSConfig, log zerolog.Logger) *Backend {
	return &Backend{
		bucket:     bucket,
		bucketName: cfg.Bucket,
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		now:        time.Now,
		log:        log.With().Str("bucket", cfg.Bucket).Logger(),
	}
}

func (b *Backend) Prefix() string { return Prefix }

func (b *Backend) emulator() bool { return b.endpoint != "" }

func (b *Backend) Put(ctx context.Context, obj upload.Object) (string, error) {
	src, err := obj.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	w := b.bucket.NewWriter(ctx, obj.Key, obj.ContentType)
	if _, err := io.Copy(w, src); err != nil {
		w.Close()
		return "", fmt.Errorf("write object %q: %w", obj.Key, err)
	}
	// the object is only committed once the writer closes cleanly
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close object %q: %w", obj.Key, err)
	}

	return b.ObjectURL(obj.Key)
}

// ObjectURL returns the URL callers use to read object.
func (b *Backend) ObjectURL(object string) (string, error) {
	if b.emulator() {
		return fmt.Sprintf("%s/storage/v1/b/%s/o/%s?alt=media",
			b.endpoint, b.bucketName, url.PathEscape(object)), nil
	}

	u, err := b.bucket.SignedURL(object, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: b.now().Add(SignedURLExpiry),
	})
	if err != nil {
		return "", upload.Wrap(upload.CodeUnknown, err, "failed to generate signed URL")
	}
	return u, nil
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	if err := b.bucket.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete object %q: %w", key, err)
	}
	return nil
}

// EnsureBucket verifies the bucket. Only an emulator bucket is created on
// demand; a missing production bucket is a configuration error.
func (b *Backend) EnsureBucket(ctx context.Context) error {
	exists, err := b.bucket.Exists(ctx)
	if err != nil {
		b.log.Error().Err(err).Msg("failed to check bucket")
		return upload.Wrap(upload.CodeConfiguration, err, "GCS bucket check failed")
	}
	if exists {
		b.log.Debug().Msg("bucket exists")
		return nil
	}
	if !b.emulator() {
		return upload.Errorf(upload.CodeConfiguration, "GCS bucket %q does not exist", b.bucketName)
	}

	if err := b.bucket.Create(ctx); err != nil {
		b.log.Error().Err(err).Msg("failed to create bucket")
		return upload.Wrap(upload.CodeConfiguration, err, "GCS bucket creation failed")
	}
	b.log.Debug().Msg("bucket created")
	return nil
}

var (
	_ upload.Backend     = (*Backend)(nil)
	_ upload.Remover     = (*Backend)(nil)
	_ upload.Provisioner = (*Backend)(nil)
)
