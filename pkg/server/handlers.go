// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/beacon/pkg/tracing"
)

// maxSimulatedDelay caps the simulate-latency endpoint so a stray
// query parameter cannot pin a worker for minutes.
const maxSimulatedDelay = 5 * time.Second

// registerRoutes wires the scrape surface, health check, and the demo
// endpoints that exercise the instrumentation core.
//
// Endpoints:
//
//	GET /metrics - Text exposition of the metric registry
//	GET /healthz - Liveness check
//	GET /simulate-latency?delay=500ms - Sleeps, then responds 200
//	GET /simulate-error - Responds 500
//	GET /work - Fans out concurrent child spans
func (s *Server) registerRoutes(engine *gin.Engine) {
	engine.GET("/metrics", s.handleMetrics)
	engine.GET("/healthz", s.handleHealthz)
	engine.GET("/simulate-latency", s.handleSimulateLatency)
	engine.GET("/simulate-error", s.handleSimulateError)
	engine.GET("/work", s.handleWork)
}

// handleMetrics is the scrape surface: a synchronous render of every
// registered metric, directly reflecting current accumulator state.
// Not rate-limited, not cached.
func (s *Server) handleMetrics(c *gin.Context) {
	c.Header("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	c.Status(http.StatusOK)
	if err := s.registry.Render(c.Writer); err != nil {
		s.log.Error(c.Request.Context(), "metrics render failed", "error", err.Error())
	}
}

// handleHealthz reports liveness.
func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": s.cfg.ServiceName})
}

// handleSimulateLatency sleeps for the requested delay (default
// 500ms, capped) inside a child span, then responds 200.
func (s *Server) handleSimulateLatency(c *gin.Context) {
	ctx := c.Request.Context()

	delay := 500 * time.Millisecond
	if raw := c.Query("delay"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "delay must be a non-negative duration"})
			return
		}
		delay = parsed
	}
	if delay > maxSimulatedDelay {
		delay = maxSimulatedDelay
	}

	ctx, span := s.tracer.StartSpan(ctx, "simulate.sleep",
		tracing.String("delay", delay.String()))
	time.Sleep(delay)
	span.End()

	s.log.Info(ctx, "simulated latency complete", "delay", delay.String())
	c.JSON(http.StatusOK, gin.H{"slept": delay.String()})
}

// handleSimulateError responds 500; the middleware classifies the
// request as an error, increments the error counter, and logs a warn
// line.
func (s *Server) handleSimulateError(c *gin.Context) {
	c.JSON(http.StatusInternalServerError, gin.H{"error": "simulated failure"})
}

// handleWork fans a request out into concurrent sub-operations, each
// with its own child span. Every branch sees the request span as its
// ancestor; siblings never observe each other.
func (s *Server) handleWork(c *gin.Context) {
	ctx := c.Request.Context()

	g, gctx := errgroup.WithContext(ctx)
	for _, stage := range []string{"fetch", "transform", "store"} {
		stage := stage
		g.Go(func() error {
			_, span := s.tracer.StartSpan(gctx, "work."+stage)
			defer span.End()
			time.Sleep(5 * time.Millisecond)
			s.log.Debug(gctx, "work stage finished", "stage", stage)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stages": 3})
}
