// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command beacon starts the Beacon instrumented demo server.
//
// Beacon is a single-process observability instrumentation core:
// trace context propagation, RED metric aggregation, and
// trace-correlated structured logging, with a /metrics scrape surface
// and an asynchronous trace export path.
//
// Usage:
//
//	beacon serve
//	beacon serve --port 9090 --service-name checkout
//	beacon serve --config beacon.yaml
//	BEACON_EXPORT_DESTINATION=http://collector:9411/api/v2/spans beacon serve
//
// Example requests:
//
//	curl http://localhost:8080/healthz
//	curl http://localhost:8080/simulate-latency?delay=250ms
//	curl http://localhost:8080/simulate-error
//	curl http://localhost:8080/metrics
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/beacon/pkg/config"
	"github.com/AleutianAI/beacon/pkg/logging"
	"github.com/AleutianAI/beacon/pkg/server"
)

// version is stamped by the release build.
var version = "dev"

var (
	flagConfig      string
	flagPort        int
	flagServiceName string
	flagExportDest  string
	flagLogLevel    string

	rootCmd = &cobra.Command{
		Use:   "beacon",
		Short: "In-process observability instrumentation core",
		Long: `Beacon tracks distributed request traces, aggregates RED metrics
from live traffic, and correlates structured log lines with the active
trace. It exposes a /metrics scrape surface and exports finished spans
to a configurable collector.`,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the instrumented HTTP server",
		RunE:  runServe,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the beacon version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
)

func init() {
	serveCmd.Flags().StringVar(&flagConfig, "config", "", "Path to YAML config file")
	serveCmd.Flags().IntVar(&flagPort, "port", 0, "Listen port (overrides config)")
	serveCmd.Flags().StringVar(&flagServiceName, "service-name", "", "Service name tag on exported spans (overrides config)")
	serveCmd.Flags().StringVar(&flagExportDest, "export-destination", "", "Trace collector URL (overrides config)")
	serveCmd.Flags().StringVar(&flagLogLevel, "log-level", "", "Minimum log level: debug, info, warn, error (overrides config)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}

	// Flags win over file and environment.
	if flagPort != 0 {
		cfg.ListenPort = flagPort
	}
	if flagServiceName != "" {
		cfg.ServiceName = flagServiceName
	}
	if flagExportDest != "" {
		cfg.ExportDestination = flagExportDest
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.LogLevel),
		Service: cfg.ServiceName,
		JSON:    cfg.LogJSON,
	})
	defer logger.Close()

	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("compose server: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
