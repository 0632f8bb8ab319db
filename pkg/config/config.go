// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config defines the Beacon configuration surface.
//
// Configuration is resolved in three layers: defaults, then an
// optional YAML file, then BEACON_* environment variables. The merged
// result is validated before use; an invalid configuration fails
// startup rather than silently producing wrong observability.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds the recognized process options.
//
// Example YAML:
//
//	service_name: checkout
//	export_destination: http://collector:9411/api/v2/spans
//	listen_port: 8080
//	log_level: info
//	unmatched_route_label: unmatched
//	shutdown_grace_period: 5s
type Config struct {
	// ServiceName tags every exported span's resource metadata.
	ServiceName string `yaml:"service_name" validate:"required"`

	// ExportDestination is the trace collector URL. Empty disables
	// export; finished spans are then logged and dropped.
	ExportDestination string `yaml:"export_destination" validate:"omitempty,url"`

	// ListenPort is the port for the HTTP-facing handlers.
	ListenPort int `yaml:"listen_port" validate:"gte=1,lte=65535"`

	// LogLevel is the minimum log level: debug, info, warn, error.
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`

	// LogJSON switches stderr logs to JSON records.
	LogJSON bool `yaml:"log_json"`

	// UnmatchedRouteLabel is the route label for requests matching no
	// registered route. Empty selects raw request paths, accepting
	// unbounded label cardinality on arbitrary incoming paths.
	UnmatchedRouteLabel string `yaml:"unmatched_route_label"`

	// ShutdownGracePeriod bounds export flushing on shutdown.
	ShutdownGracePeriod time.Duration `yaml:"shutdown_grace_period" validate:"gte=0"`

	// ExportQueueSize bounds the finished-span export queue.
	ExportQueueSize int `yaml:"export_queue_size" validate:"gt=0"`
}

// DefaultConfig returns opinionated defaults for development.
func DefaultConfig() Config {
	return Config{
		ServiceName:         "beacon",
		ExportDestination:   "",
		ListenPort:          8080,
		LogLevel:            "info",
		UnmatchedRouteLabel: "unmatched",
		ShutdownGracePeriod: 5 * time.Second,
		ExportQueueSize:     2048,
	}
}

// Load resolves the effective configuration.
//
// Description:
//
//	Starts from DefaultConfig, merges the YAML file at path when path
//	is non-empty, applies environment overrides, then validates.
//
// Inputs:
//
//	path - YAML file path, or "" to skip file loading.
//
// Outputs:
//
//	Config - The validated configuration.
//	error - File, parse, or validation failure; treat as fatal.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// applyEnv overlays BEACON_* environment variables.
//
// Recognized variables:
//   - BEACON_SERVICE_NAME
//   - BEACON_EXPORT_DESTINATION
//   - BEACON_LISTEN_PORT
//   - BEACON_LOG_LEVEL
func (c *Config) applyEnv() {
	if v := os.Getenv("BEACON_SERVICE_NAME"); v != "" {
		c.ServiceName = v
	}
	if v := os.Getenv("BEACON_EXPORT_DESTINATION"); v != "" {
		c.ExportDestination = v
	}
	if v := os.Getenv("BEACON_LISTEN_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.ListenPort = port
		}
	}
	if v := os.Getenv("BEACON_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}
