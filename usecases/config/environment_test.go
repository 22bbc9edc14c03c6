//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2024 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv(t *testing.T) {
	t.Setenv("PERSISTENCE_DATA_PATH", "/data")
	t.Setenv("PERSISTENCE_TEMP_SUFFIX", ".partial")
	t.Setenv("PERSISTENCE_FILE_MODE", "0640")
	t.Setenv("PERSISTENCE_RETRY_MAX_ATTEMPTS", "7")
	t.Setenv("PERSISTENCE_RETRY_INTERVAL", "1s")
	t.Setenv("MIGRATIONS_ENABLED", "false")
	t.Setenv("MONITORING_ENABLED", "on")
	t.Setenv("MONITORING_TEXTFILE_PATH", "/metrics/diskstate.prom")
	t.Setenv("LOG_LEVEL", "trace")
	t.Setenv("LOG_FORMAT", "text")

	cfg := Defaults()
	require.NoError(t, FromEnv(&cfg))

	assert.Equal(t, Config{
		Persistence: Persistence{
			DataPath:   "/data",
			TempSuffix: ".partial",
			FileMode:   0o640,
			Retry:      Retry{MaxAttempts: 7, Interval: time.Second},
		},
		Migrations: Migrations{Enabled: false},
		Monitoring: cfg.Monitoring,
		Logging:    Logging{Level: "trace", Format: "text"},
	}, cfg)
	assert.True(t, cfg.Monitoring.Enabled)
	assert.Equal(t, "/metrics/diskstate.prom", cfg.Monitoring.TextfilePath)
}

func TestFromEnv_KeepsUnsetValues(t *testing.T) {
	t.Setenv("MIGRATIONS_ENABLED", "maybe")

	cfg := Defaults()
	require.NoError(t, FromEnv(&cfg))

	expected := Defaults()
	assert.Equal(t, expected, cfg, "only explicit opt-outs disable migrations")
}

func TestFromEnv_Errors(t *testing.T) {
	for name, value := range map[string]string{
		"PERSISTENCE_FILE_MODE":          "rw",
		"PERSISTENCE_RETRY_MAX_ATTEMPTS": "three",
		"PERSISTENCE_RETRY_INTERVAL":     "soon",
	} {
		t.Run(name, func(t *testing.T) {
			t.Setenv(name, value)
			cfg := Defaults()
			err := FromEnv(&cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), name)
		})
	}
}
