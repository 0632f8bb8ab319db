// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "beacon.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "beacon", cfg.ServiceName)
	assert.Equal(t, 8080, cfg.ListenPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "unmatched", cfg.UnmatchedRouteLabel)
	assert.Equal(t, 5*time.Second, cfg.ShutdownGracePeriod)
	assert.Equal(t, 2048, cfg.ExportQueueSize)
	assert.Empty(t, cfg.ExportDestination)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
service_name: checkout
export_destination: http://collector:9411/api/v2/spans
listen_port: 9090
log_level: debug
log_json: true
shutdown_grace_period: 10s
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "checkout", cfg.ServiceName)
	assert.Equal(t, "http://collector:9411/api/v2/spans", cfg.ExportDestination)
	assert.Equal(t, 9090, cfg.ListenPort)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.LogJSON)
	assert.Equal(t, 10*time.Second, cfg.ShutdownGracePeriod)
	// Unset file keys keep their defaults.
	assert.Equal(t, 2048, cfg.ExportQueueSize)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadMalformedFile(t *testing.T) {
	path := writeConfig(t, "service_name: [unclosed")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "service_name: from-file\nlisten_port: 9090\n")

	t.Setenv("BEACON_SERVICE_NAME", "from-env")
	t.Setenv("BEACON_LISTEN_PORT", "9191")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.ServiceName)
	assert.Equal(t, 9191, cfg.ListenPort)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty service name", func(c *Config) { c.ServiceName = "" }},
		{"port zero", func(c *Config) { c.ListenPort = 0 }},
		{"port too large", func(c *Config) { c.ListenPort = 70000 }},
		{"unknown log level", func(c *Config) { c.LogLevel = "verbose" }},
		{"bad destination url", func(c *Config) { c.ExportDestination = "not a url" }},
		{"negative grace period", func(c *Config) { c.ShutdownGracePeriod = -time.Second }},
		{"zero queue size", func(c *Config) { c.ExportQueueSize = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
}
