package upload

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	meter  = otel.Meter("github.com/imrenagi/uploadex/upload")
	tracer = otel.Tracer("github.com/imrenagi/uploadex/upload")
)

type instruments struct {
	uploaded       metric.Int64Counter
	failed         metric.Int64Counter
	bytes          metric.Int64Counter
	failedAttempts metric.Int64Counter
	duration       metric.Float64Histogram
}

func newInstruments() instruments {
	var (
		ins  instruments
		errs []error
		err  error
	)
	ins.uploaded, err = meter.Int64Counter("uploadex.files.uploaded",
		metric.WithDescription("Files stored successfully."))
	errs = append(errs, err)
	ins.failed, err = meter.Int64Counter("uploadex.files.failed",
		metric.WithDescription("Files that could not be stored."))
	errs = append(errs, err)
	ins.bytes, err = meter.Int64Counter("uploadex.bytes.uploaded",
		metric.WithDescription("Declared bytes of stored files."),
		metric.WithUnit("By"))
	errs = append(errs, err)
	ins.failedAttempts, err = meter.Int64Counter("uploadex.attempts.failed",
		metric.WithDescription("Backend write attempts that failed or timed out."))
	errs = append(errs, err)
	ins.duration, err = meter.Float64Histogram("uploadex.upload.duration",
		metric.WithDescription("Time spent storing a single file, retries included."),
		metric.WithUnit("s"))
	errs = append(errs, err)

	for _, err := range errs {
		if err != nil {
			log.Error().Err(err).Msg("failed to create upload instrument")
		}
	}
	return ins
}

func (i instruments) recordUpload(ctx context.Context, provider string, size int64, start time.Time, err error) {
	attrs := metric.WithAttributes(attribute.String("provider", provider))
	if i.duration != nil {
		i.duration.Record(ctx, time.Since(start).Seconds(), attrs)
	}
	if err != nil {
		if i.failed != nil {
			i.failed.Add(ctx, 1, metric.WithAttributes(
				attribute.String("provider", provider),
				attribute.String("code", string(CodeOf(err)))))
		}
		return
	}
	if i.uploaded != nil {
		i.uploaded.Add(ctx, 1, attrs)
	}
	if i.bytes != nil {
		i.bytes.Add(ctx, size, attrs)
	}
}

func (i instruments) recordFailedAttempt(ctx context.Context, provider string, err error) {
	if i.failedAttempts == nil {
		return
	}
	i.failedAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("code", string(CodeOf(err)))))
}
