package upload

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// NewLogger returns the diagnostics logger for component. Diagnostics are
// dropped entirely unless debug is set.
func NewLogger(debug bool, component string) zerolog.Logger {
	if !debug {
		return zerolog.Nop()
	}
	return log.With().Str("component", component).Logger()
}

type Option func(*Uploader)

// WithIDSource replaces the random source used for storage keys.
func WithIDSource(src IDSource) Option {
	return func(u *Uploader) {
		u.namer = NewNamer(src)
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(u *Uploader) {
		u.log = l
	}
}

// WithRetryBaseDelay sets the linear backoff unit between attempts.
func WithRetryBaseDelay(d time.Duration) Option {
	return func(u *Uploader) {
		u.baseDelay = d
	}
}

// Uploader implements Provider on top of a single Backend. Validation, key
// generation, the buffer decision, retries and temp cleanup are identical for
// every backend; only the write itself differs.
type Uploader struct {
	backend   Backend
	cfg       *Config
	namer     Namer
	log       zerolog.Logger
	baseDelay time.Duration
	ins       instruments
}

func NewUploader(backend Backend, cfg *Config, opts ...Option) *Uploader {
	u := &Uploader{
		backend:   backend,
		cfg:       cfg,
		namer:     NewNamer(nil),
		log:       NewLogger(cfg.Debug, backend.Prefix()),
		baseDelay: DefaultRetryBaseDelay,
		ins:       newInstruments(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

var _ Provider = (*Uploader)(nil)

func (u *Uploader) HandleSingleFileUpload(ctx context.Context, f *IncomingFile) (*UploadedFileMeta, error) {
	if f == nil {
		return nil, Errorf(CodeUnknown, "no file uploaded")
	}

	if err := ValidateFile(f, u.cfg.ValidationOptions()); err != nil {
		u.log.Debug().Err(err).Str("file_name", f.OriginalName).Msg("file rejected")
		u.cleanup(f)
		return nil, err
	}

	meta, err := u.store(ctx, f)
	if err != nil {
		u.log.Error().Err(err).Str("file_name", f.OriginalName).Msg("single file upload failed")
		return nil, err
	}
	return meta, nil
}

func (u *Uploader) HandleMultipleFileUpload(ctx context.Context, files []*IncomingFile) ([]*UploadedFileMeta, error) {
	if len(files) == 0 {
		return nil, Errorf(CodeUnknown, "no files uploaded")
	}

	if err := ValidateFiles(files, u.cfg.ValidationOptions()); err != nil {
		u.log.Debug().Err(err).Int("count", len(files)).Msg("batch rejected")
		u.cleanupAll(files)
		return nil, err
	}

	results := make([]*UploadedFileMeta, len(files))
	var g errgroup.Group
	for i, f := range files {
		g.Go(func() error {
			meta, err := u.store(ctx, f)
			if err != nil {
				return err
			}
			results[i] = meta
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		u.log.Error().Err(err).Int("count", len(files)).Msg("multiple file upload failed")
		u.cleanupAll(files)
		u.rollback(ctx, results)
		return nil, AsError(err, "multiple upload failed")
	}
	return results, nil
}

// store writes one validated file and always removes its temp artifact
// before returning.
func (u *Uploader) store(ctx context.Context, f *IncomingFile) (*UploadedFileMeta, error) {
	ctx, span := tracer.Start(ctx, "uploadex.store", trace.WithAttributes(
		attribute.String("provider", u.backend.Prefix()),
		attribute.Int64("size", f.Size),
		attribute.String("mime_type", f.MimeType),
	))
	defer span.End()

	start := time.Now()
	key := u.namer.Generate(f.OriginalName, u.backend.Prefix())

	meta, err := u.write(ctx, f, key)
	u.cleanup(f)
	u.ins.recordUpload(ctx, u.backend.Prefix(), f.Size, start, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, AsError(err, "upload failed")
	}
	span.SetAttributes(attribute.String("stored_name", meta.StoredName))
	return meta, nil
}

func (u *Uploader) write(ctx context.Context, f *IncomingFile, key string) (*UploadedFileMeta, error) {
	useBuffer, err := ShouldUseBuffer(f, u.cfg.memoryThreshold())
	if err != nil {
		return nil, err
	}

	obj := Object{Key: key, ContentType: f.MimeType, Size: f.Size}
	switch {
	case useBuffer:
		obj.Data = f.Buffer
	case f.TempPath != "":
		obj.Path = f.TempPath
	case f.Buffer != nil:
		// over the threshold but the transport already holds it in memory
		obj.Data = f.Buffer
	default:
		return nil, Errorf(CodeUnknown, "no valid file buffer or path")
	}

	mode := "stream"
	if obj.Buffered() {
		mode = "buffer"
	}
	u.log.Debug().
		Str("file_name", f.OriginalName).
		Str("key", key).
		Str("mode", mode).
		Msg("uploading file")

	return RunWithResilience(ctx, func(ctx context.Context) (*UploadedFileMeta, error) {
		location, err := u.backend.Put(ctx, obj)
		if err != nil {
			return nil, err
		}
		u.log.Debug().Str("key", key).Str("location", location).Msg("upload successful")
		return &UploadedFileMeta{
			FileName:   f.OriginalName,
			StoredName: key,
			FilePath:   location,
			MimeType:   f.MimeType,
			Size:       f.Size,
		}, nil
	}, ResilienceOptions{
		Timeout:   u.cfg.UploadTimeout,
		Retries:   u.cfg.UploadRetries,
		BaseDelay: u.baseDelay,
		OnFailureCleanup: func(attempt int, err error) {
			u.ins.recordFailedAttempt(ctx, u.backend.Prefix(), err)
			u.log.Warn().Err(err).Int("attempt", attempt).Str("key", key).Msg("upload attempt failed")
			// a streamed upload still needs its artifact for the next attempt
			if obj.Buffered() {
				u.cleanup(f)
			}
		},
	})
}

func (u *Uploader) cleanup(f *IncomingFile) {
	if err := f.RemoveTemp(); err != nil {
		u.log.Error().Err(err).Str("path", f.TempPath).Msg("cleanup failed")
	}
}

func (u *Uploader) cleanupAll(files []*IncomingFile) {
	for _, f := range files {
		if f != nil {
			u.cleanup(f)
		}
	}
}

// rollback removes objects already written by a batch that failed as a whole.
func (u *Uploader) rollback(ctx context.Context, written []*UploadedFileMeta) {
	remover, ok := u.backend.(Remover)
	if !ok {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, meta := range written {
		if meta == nil {
			continue
		}
		if err := remover.Delete(ctx, meta.StoredName); err != nil {
			u.log.Error().Err(err).Str("key", meta.StoredName).Msg("failed to roll back stored object")
		}
	}
}
