// Package s3 stores uploads in an AWS S3 bucket or any S3 compatible service.
package s3

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"

	"github.com/imrenagi/uploadex/upload"
)

const (
	Prefix = "s3"

	defaultRegion = "us-east-1"
)

// API is the part of the S3 client the backend needs.
type API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// Backend writes objects with PutObject and addresses them by their public
// URL. Access control is left to the bucket policy.
type Backend struct {
	client   API
	bucket   string
	region   string
	endpoint string
	log      zerolog.Logger
}

// New builds an S3 client from static credentials. A custom endpoint switches
// to path-style addressing.
func New(ctx context.Context, cfg *upload.S3Config, log zerolog.Logger) (*Backend, error) {
	if cfg == nil || cfg.Bucket == "" || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" || cfg.Region == "" {
		return nil, upload.Errorf(upload.CodeConfiguration, "S3 config is missing region, bucket, accessKeyId, or secretAccessKey")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, upload.Wrap(upload.CodeConfiguration, err, "failed to load AWS configuration")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewWithClient(client, cfg, log), nil
}

// NewWithClient wires a Backend around an existing client.
func NewWithClient(client API, cfg *upload.S3Config, log zerolog.Logger) *Backend {
	return &Backend{
		client:   client,
		bucket:   cfg.Bucket,
		region:   cfg.Region,
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		log:      log.With().Str("bucket", cfg.Bucket).Logger(),
	}
}

func (b *Backend) Prefix() string { return Prefix }

func (b *Backend) Put(ctx context.Context, obj upload.Object) (string, error) {
	body, err := obj.Open()
	if err != nil {
		return "", err
	}
	defer body.Close()

	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(obj.Key),
		Body:        body,
		ContentType: aws.String(obj.ContentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object %q: %w", obj.Key, err)
	}
	return b.ObjectURL(obj.Key), nil
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %q: %w", key, err)
	}
	return nil
}

// ObjectURL returns the permanent URL of key.
func (b *Backend) ObjectURL(key string) string {
	escaped := (&url.URL{Path: key}).EscapedPath()
	if b.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", b.endpoint, b.bucket, escaped)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", b.bucket, b.region, escaped)
}

// EnsureBucket creates the bucket when HeadBucket cannot see it.
func (b *Backend) EnsureBucket(ctx context.Context) error {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.bucket)})
	if err == nil {
		b.log.Debug().Msg("bucket exists")
		return nil
	}

	b.log.Warn().Err(err).Msg("bucket not found, creating")
	input := &s3.CreateBucketInput{Bucket: aws.String(b.bucket)}
	if b.region != "" && b.region != defaultRegion {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(b.region),
		}
	}
	if _, err := b.client.CreateBucket(ctx, input); err != nil {
		b.log.Error().Err(err).Msg("failed to create bucket")
		return upload.Wrap(upload.CodeConfiguration, err, "S3 bucket check or creation failed")
	}
	b.log.Debug().Msg("bucket created")
	return nil
}

var (
	_ upload.Backend     = (*Backend)(nil)
	_ upload.Remover     = (*Backend)(nil)
	_ upload.Provisioner = (*Backend)(nil)
)
