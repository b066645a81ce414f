package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	v1 "github.com/imrenagi/uploadex/api/v1"
	"github.com/imrenagi/uploadex/upload"
)

const serviceName = "uploadex"

type Opts struct {
	Addr         string
	TempDir      string
	OTLPEndpoint string
	Provider     upload.Provider
}

func New(opts Opts) Server {
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}
	s := Server{
		opts: opts,
	}
	return s
}

type Server struct {
	opts Opts
}

// Run serves the upload API until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	log.Info().Msg("starting server")

	telemetryShutdownFn, err := InitTelemetry(ctx, serviceName, s.opts.OTLPEndpoint)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    s.opts.Addr,
		Handler: s.Handler(),
		// ReadTimeout is the maximum duration for reading the entire request, including the body.
		// Uploads are spooled while the body is read, so this bounds the largest accepted file on slow links.
		ReadTimeout: 5 * time.Minute,
		// WriteTimeout covers the provider call, retries included.
		WriteTimeout: 5 * time.Minute,
		// ReadHeaderTimeout is necessary here to prevent slowloris attacks.
		// https://www.cloudflare.com/learning/ddos/ddos-attack-tools/slowloris/
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("Starting http server on %s", s.opts.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		log.Error().Err(err).Msg("http server stopped")
		telemetryShutdownFn(context.Background())
		return err
	}

	gracefulShutdownPeriod := 30 * time.Second
	log.Warn().Msg("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), gracefulShutdownPeriod)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to shutdown http server gracefully")
	}
	log.Warn().Msg("http server gracefully stopped")

	if err := telemetryShutdownFn(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to shutdown telemetry providers")
	}
	return nil
}

// Handler returns the routed and instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := mux.NewRouter()
	mux.Use(
		otelhttp.NewMiddleware("uploadex"),
		LogInterceptor)
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", otelhttp.WithRouteTag("/", http.HandlerFunc(v1.Web()))).Methods(http.MethodGet)

	ctrl := v1.NewController(s.opts.Provider, v1.WithTempDir(s.opts.TempDir))
	apiV1Router := mux.PathPrefix("/api/v1").Subrouter()
	apiV1Router.Handle("/files", otelhttp.WithRouteTag("/api/v1/files", ctrl.SingleUpload())).Methods(http.MethodPost)
	apiV1Router.Handle("/files/batch", otelhttp.WithRouteTag("/api/v1/files/batch", ctrl.MultipleUpload())).Methods(http.MethodPost)
	apiV1Router.Handle("/binary", otelhttp.WithRouteTag("/api/v1/binary", ctrl.BinaryUpload())).Methods(http.MethodPost)

	return mux
}
