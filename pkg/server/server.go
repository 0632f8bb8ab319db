// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server composes the Beacon core into an HTTP service.
//
// The server owns the metric registry, the tracer with its export
// pipeline, and the gin engine with the instrumentation middleware
// applied to every route, including the demo endpoints used to
// exercise the core under load.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/beacon/pkg/config"
	"github.com/AleutianAI/beacon/pkg/logging"
	"github.com/AleutianAI/beacon/pkg/metrics"
	"github.com/AleutianAI/beacon/pkg/middleware"
	"github.com/AleutianAI/beacon/pkg/tracing"
)

// Server bundles the instrumentation core behind an HTTP listener.
type Server struct {
	cfg      config.Config
	log      *logging.Logger
	registry *metrics.Registry
	tracer   *tracing.Tracer
	engine   *gin.Engine
}

// New composes the core from configuration.
//
// Description:
//
//	Builds the registry with process and request metrics, the tracer
//	with a collector exporter (or the log-and-drop fallback when no
//	destination is configured), and the gin engine with recovery and
//	instrumentation middleware. Metric registration failures are
//	returned as errors and should abort startup.
//
// Inputs:
//
//	cfg - Validated configuration.
//	logger - Correlated logger shared by all components.
//
// Outputs:
//
//	*Server - Ready to Run.
//	error - Startup-fatal composition failure.
func New(cfg config.Config, logger *logging.Logger) (*Server, error) {
	registry := metrics.NewRegistry()
	if err := metrics.RegisterProcessMetrics(registry); err != nil {
		return nil, fmt.Errorf("register process metrics: %w", err)
	}

	reqMetrics, err := middleware.NewRequestMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("register request metrics: %w", err)
	}

	var exporter tracing.Exporter
	if cfg.ExportDestination != "" {
		exporter, err = tracing.NewCollectorExporter(cfg.ExportDestination)
		if err != nil {
			return nil, fmt.Errorf("build collector exporter: %w", err)
		}
	}

	tracer := tracing.NewTracer(tracing.Config{
		ServiceName: cfg.ServiceName,
		Exporter:    exporter,
		QueueSize:   cfg.ExportQueueSize,
		Logger:      logger.Slog(),
	})

	s := &Server{
		cfg:      cfg,
		log:      logger,
		registry: registry,
		tracer:   tracer,
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	// Recovery first so it stays outer: the instrumentation defer
	// records the 500 and re-raises, recovery writes the response.
	engine.Use(gin.Recovery())
	engine.Use(middleware.Instrument(tracer, reqMetrics, logger,
		middleware.WithUnmatchedRouteLabel(cfg.UnmatchedRouteLabel)))

	s.registerRoutes(engine)
	s.engine = engine
	return s, nil
}

// Engine returns the underlying gin engine, for tests and embedding.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Registry returns the server's metric registry.
func (s *Server) Registry() *metrics.Registry {
	return s.registry
}

// Tracer returns the server's tracer.
func (s *Server) Tracer() *tracing.Tracer {
	return s.tracer
}

// Run serves HTTP until ctx is canceled, then shuts down gracefully.
//
// Description:
//
//	On cancellation (typically SIGINT/SIGTERM via
//	signal.NotifyContext) the listener stops accepting, in-flight
//	requests get the grace period to finish, and the tracer flushes
//	its export queue within the same bound. Flush failure is logged
//	and does not prevent exit.
//
// Inputs:
//
//	ctx - Cancel to begin shutdown.
//
// Outputs:
//
//	error - Listener failure; nil on clean shutdown.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.ListenPort),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info(gctx, "server listening",
			"addr", srv.Addr,
			"export_destination", s.cfg.ExportDestination,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", srv.Addr, err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.shutdown(srv)
		return nil
	})

	return g.Wait()
}

// shutdown stops the HTTP server and flushes the trace exporter, each
// bounded by the configured grace period.
func (s *Server) shutdown(srv *http.Server) {
	grace := s.cfg.ShutdownGracePeriod
	if grace <= 0 {
		grace = 5 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	s.log.Info(ctx, "shutting down", "grace_period", grace.String())

	if err := srv.Shutdown(ctx); err != nil {
		s.log.Warn(ctx, "http shutdown incomplete", "error", err.Error())
	}
	if err := s.tracer.Shutdown(ctx); err != nil {
		s.log.Warn(ctx, "trace export flush incomplete", "error", err.Error())
	}
}
