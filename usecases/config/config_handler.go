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
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/weaviate/diskstate/usecases/monitoring"
)

// DefaultConfigFile is used when no config file is given. It may be missing.
const DefaultConfigFile string = "./diskstate.yaml"

const (
	DefaultDataPath         = "./data"
	DefaultTempSuffix       = ".tmp"
	DefaultFileMode         = FileMode(0o644)
	DefaultRetryMaxAttempts = 3
	DefaultRetryInterval    = 50 * time.Millisecond
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "json"
)

type Config struct {
	Persistence Persistence       `json:"persistence" yaml:"persistence"`
	Migrations  Migrations        `json:"migrations" yaml:"migrations"`
	Monitoring  monitoring.Config `json:"monitoring" yaml:"monitoring"`
	Logging     Logging           `json:"logging" yaml:"logging"`
}

type Persistence struct {
	DataPath   string   `json:"dataPath" yaml:"dataPath"`
	TempSuffix string   `json:"tempSuffix" yaml:"tempSuffix"`
	FileMode   FileMode `json:"fileMode" yaml:"fileMode"`
	Retry      Retry    `json:"retry" yaml:"retry"`
}

func (p Persistence) Validate() error {
	if p.DataPath == "" {
		return fmt.Errorf("persistence.dataPath must be set")
	}
	if p.TempSuffix == "" || strings.ContainsAny(p.TempSuffix, `/\`) {
		return fmt.Errorf("persistence.tempSuffix must be a non-empty file name suffix, got %q", p.TempSuffix)
	}
	if p.FileMode&0o200 == 0 {
		return fmt.Errorf("persistence.fileMode %s must be writable by the owner", p.FileMode)
	}
	return p.Retry.Validate()
}

type Retry struct {
	MaxAttempts int           `json:"maxAttempts" yaml:"maxAttempts"`
	Interval    time.Duration `json:"interval" yaml:"interval"`
}

func (r Retry) Validate() error {
	if r.MaxAttempts < 1 {
		return fmt.Errorf("persistence.retry.maxAttempts must be at least 1, got %d", r.MaxAttempts)
	}
	if r.Interval < 0 {
		return fmt.Errorf("persistence.retry.interval must not be negative, got %s", r.Interval)
	}
	return nil
}

type Migrations struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

type Logging struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

func (l Logging) Validate() error {
	switch l.Level {
	case "debug", "trace", "info", "":
	default:
		return fmt.Errorf("logging.level must be one of debug, trace, info, got %q", l.Level)
	}
	switch l.Format {
	case "json", "text", "":
	default:
		return fmt.Errorf("logging.format must be json or text, got %q", l.Format)
	}
	return nil
}

// FileMode is a permission mode written as an octal string, e.g. "0644".
type FileMode os.FileMode

func (m FileMode) String() string {
	return fmt.Sprintf("%#o", uint32(m))
}

func (m *FileMode) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseFileMode(value.Value)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func (m FileMode) MarshalYAML() (interface{}, error) {
	return m.String(), nil
}

func ParseFileMode(s string) (FileMode, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0o"), "0O")
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, errors.Wrapf(err, "parse file mode %q as octal", s)
	}
	if v > 0o777 {
		return 0, fmt.Errorf("file mode %#o has bits outside of the permission bits", v)
	}
	return FileMode(v), nil
}

// Defaults returns the configuration used for everything not set in the
// config file or the environment.
func Defaults() Config {
	return Config{
		Persistence: Persistence{
			DataPath:   DefaultDataPath,
			TempSuffix: DefaultTempSuffix,
			FileMode:   DefaultFileMode,
			Retry: Retry{
				MaxAttempts: DefaultRetryMaxAttempts,
				Interval:    DefaultRetryInterval,
			},
		},
		Migrations: Migrations{Enabled: true},
		Logging: Logging{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

func (c *Config) Validate() error {
	if err := c.Persistence.Validate(); err != nil {
		return configErr(err)
	}
	if err := c.Logging.Validate(); err != nil {
		return configErr(err)
	}
	return nil
}

// Load builds the configuration. The load order for configuration values is
// the following
// 1. Defaults
// 2. Config file
// 3. Environment variables
// If a config option is specified multiple times, the latest one wins.
//
// An explicitly given config file must exist, the default one may be missing.
func Load(configFileName string, logger logrus.FieldLogger) (Config, error) {
	config := Defaults()

	explicit := configFileName != ""
	if !explicit {
		configFileName = DefaultConfigFile
	}

	file, err := os.ReadFile(configFileName)
	if err != nil && (explicit || !os.IsNotExist(err)) {
		return config, configErr(errors.Wrapf(err, "read config file %q", configFileName))
	}

	if len(file) > 0 {
		logger.WithField("action", "config_load").WithField("config_file_path", configFileName).
			Debug("loading config file")
		if err := parseConfigFile(file, configFileName, &config); err != nil {
			return config, configErr(err)
		}
	}

	if err := FromEnv(&config); err != nil {
		return config, configErr(err)
	}

	return config, config.Validate()
}

func parseConfigFile(file []byte, name string, config *Config) error {
	switch ext := filepath.Ext(name); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(file, config); err != nil {
			return fmt.Errorf("error unmarshalling the yaml config file: %w", err)
		}
	case "":
		return fmt.Errorf("config file does not have a file ending, got '%s'", name)
	default:
		return fmt.Errorf("unsupported config file extension '%s', use .yaml or .yml", ext)
	}
	return nil
}

func configErr(err error) error {
	return fmt.Errorf("invalid config: %w", err)
}
