// Package provider turns a validated upload.Config into the Provider for its
// storage backend.
package provider

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/imrenagi/uploadex/storage/azure"
	"github.com/imrenagi/uploadex/storage/cloudinary"
	"github.com/imrenagi/uploadex/storage/gcs"
	"github.com/imrenagi/uploadex/storage/local"
	"github.com/imrenagi/uploadex/storage/s3"
	"github.com/imrenagi/uploadex/upload"
)

// New builds the backend selected by cfg.Provider (local when empty), runs
// the bucket or container check when it is enabled, and returns the Provider.
// It should be called once per process; the Provider is safe for concurrent use.
func New(ctx context.Context, cfg *upload.Config, opts ...upload.Option) (upload.Provider, error) {
	if cfg == nil {
		return nil, upload.Errorf(upload.CodeConfiguration, "upload options must be a valid object")
	}

	log := upload.NewLogger(cfg.Debug, "provider")
	backend, err := newBackend(ctx, cfg, log)
	if err != nil {
		return nil, upload.AsError(err, "failed to create storage backend")
	}

	if p, ok := backend.(upload.Provisioner); ok && ProvisioningRequested(cfg) {
		log.Debug().Str("provider", backend.Prefix()).Msg("checking bucket")
		if err := p.EnsureBucket(ctx); err != nil {
			e := upload.AsError(err, "bucket check failed")
			if e.Code != upload.CodeConfiguration {
				e = upload.Wrap(upload.CodeConfiguration, err, "bucket check failed")
			}
			return nil, e
		}
	}

	return upload.NewUploader(backend, cfg, opts...), nil
}

func newBackend(ctx context.Context, cfg *upload.Config, log zerolog.Logger) (upload.Backend, error) {
	switch cfg.Provider {
	case "", upload.ProviderLocal:
		return local.New(cfg.Local)
	case upload.ProviderS3:
		return s3.New(ctx, cfg.S3, log)
	case upload.ProviderAzure:
		return azure.New(cfg.Azure, log)
	case upload.ProviderGCS:
		return gcs.New(ctx, cfg.GCS, log)
	case upload.ProviderCloudinary:
		return cloudinary.New(cfg.Cloudinary, log)
	default:
		return nil, upload.Errorf(upload.CodeProviderNotImplemented, "unknown provider: %s", cfg.Provider)
	}
}

// ProvisioningRequested reports whether startup must verify the bucket or
// container of the selected backend. The GCS emulator always gets its bucket
// created.
func ProvisioningRequested(cfg *upload.Config) bool {
	switch cfg.Provider {
	case upload.ProviderS3:
		return cfg.S3 != nil && cfg.S3.CheckBucket
	case upload.ProviderAzure:
		return cfg.Azure != nil && cfg.Azure.CheckContainer
	case upload.ProviderGCS:
		return cfg.GCS != nil && (cfg.GCS.CheckBucket || cfg.GCS.Endpoint != "")
	}
	return false
}
