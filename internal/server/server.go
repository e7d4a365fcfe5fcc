package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"ruststack/internal/config"
	"ruststack/internal/dispatch"
	"ruststack/internal/dynamo"
	"ruststack/internal/lambda"
	"ruststack/internal/s3"
	"ruststack/pkg/observability"
)

const shutdownTimeout = 30 * time.Second

// Server owns the emulator's HTTP listener and the service engines behind
// it.
type Server struct {
	cfg    *config.Config
	srv    *http.Server
	logger *zap.Logger
}

// New builds the engines, the dispatcher and the listener from one
// configuration.
func New(cfg *config.Config, logger *zap.Logger) *Server {
	enabled := dispatch.Enabled{S3: cfg.S3, DynamoDB: cfg.DynamoDB, Lambda: cfg.Lambda}

	s3Handler := s3.NewHandler(s3.NewService(logger), logger)
	dynamoHandler := dynamo.NewHandler(dynamo.NewService(logger, cfg.StrictQueryLimit), logger)
	lambdaHandler := lambda.NewHandler(logger)

	d := dispatch.New(s3Handler, dynamoHandler, lambdaHandler, enabled, logger)
	handler := NewRouter(d, enabled, observability.NewMetrics(), logger)

	return &Server{
		cfg: cfg,
		srv: &http.Server{
			Addr:         cfg.Addr(),
			Handler:      handler,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		logger: logger,
	}
}

// Handler exposes the assembled handler, for tests driving the server
// through httptest.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Run serves until ctx is canceled, then drains in-flight requests. A bind
// failure returns immediately.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening",
			zap.String("address", s.cfg.Addr()),
			zap.Strings("services", dispatch.Enabled{S3: s.cfg.S3, DynamoDB: s.cfg.DynamoDB, Lambda: s.cfg.Lambda}.Services()),
		)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("shutdown error", zap.Error(err))
		return err
	}
	s.logger.Info("server stopped")
	return nil
}
