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
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"

	entcfg "github.com/weaviate/diskstate/entities/config"
)

// FromEnv takes a *Config as it will respect initial config that has been
// provided by other means (e.g. a config file) and will only extend those
// that are set
func FromEnv(config *Config) error {
	if v := os.Getenv("PERSISTENCE_DATA_PATH"); v != "" {
		config.Persistence.DataPath = v
	}

	if v := os.Getenv("PERSISTENCE_TEMP_SUFFIX"); v != "" {
		config.Persistence.TempSuffix = v
	}

	if v := os.Getenv("PERSISTENCE_FILE_MODE"); v != "" {
		mode, err := ParseFileMode(v)
		if err != nil {
			return errors.Wrap(err, "parse PERSISTENCE_FILE_MODE")
		}
		config.Persistence.FileMode = mode
	}

	if v := os.Getenv("PERSISTENCE_RETRY_MAX_ATTEMPTS"); v != "" {
		asInt, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "parse PERSISTENCE_RETRY_MAX_ATTEMPTS as int")
		}
		config.Persistence.Retry.MaxAttempts = asInt
	}

	if v := os.Getenv("PERSISTENCE_RETRY_INTERVAL"); v != "" {
		interval, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrapf(err, "parse PERSISTENCE_RETRY_INTERVAL as duration")
		}
		config.Persistence.Retry.Interval = interval
	}

	if v := os.Getenv("MIGRATIONS_ENABLED"); v != "" {
		config.Migrations.Enabled = !entcfg.Disabled(v)
	}

	if v := os.Getenv("MONITORING_ENABLED"); v != "" {
		config.Monitoring.Enabled = entcfg.Enabled(v)
	}

	if v := os.Getenv("MONITORING_TEXTFILE_PATH"); v != "" {
		config.Monitoring.TextfilePath = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		config.Logging.Format = v
	}

	return nil
}
