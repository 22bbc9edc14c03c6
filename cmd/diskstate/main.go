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

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/weaviate/diskstate/adapters/repos/textstore"
	"github.com/weaviate/diskstate/usecases/config"
	"github.com/weaviate/diskstate/usecases/migration"
	"github.com/weaviate/diskstate/usecases/migration/profiles"
	"github.com/weaviate/diskstate/usecases/monitoring"
)

// Options represents Command line options
type Options struct {
	ConfigFile string `long:"config-file" description:"path to the yaml config file, defaults to ./diskstate.yaml if present"`
}

type app struct {
	opts   Options
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

type writeCommand struct {
	app   *app
	Key   string `long:"key" required:"true" description:"document key, relative to the data path"`
	Input string `long:"input" default:"-" description:"file to read the content from, - reads stdin"`
}

type migrateCommand struct {
	app    *app
	Key    string `long:"key" required:"true" description:"document key, relative to the data path"`
	DryRun bool   `long:"dry-run" description:"print the migrated document instead of saving it"`
}

type recoverCommand struct {
	app *app
}

func main() {
	a := &app{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
	os.Exit(a.run(os.Args[1:]))
}

func (a *app) run(args []string) int {
	parser := flags.NewParser(&a.opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.AddCommand("write", "Write a document",
		"Safely replace a document with the given content.", &writeCommand{app: a})
	parser.AddCommand("migrate", "Migrate a document",
		"Apply the raw data migrations to a document and save it if it changed.", &migrateCommand{app: a})
	parser.AddCommand("recover", "Recover interrupted writes",
		"Promote or delete the temporary files left behind by interrupted writes.", &recoverCommand{app: a})

	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			fmt.Fprintln(a.stdout, err)
			return 0
		}
		if errors.As(err, &flagsErr) {
			fmt.Fprintln(a.stderr, err)
			return 2
		}

		config.NewLogger(config.Defaults().Logging, a.stderr).
			WithField("action", "diskstate_command").WithError(err).Error("command failed")
		return 1
	}
	return 0
}

// env is everything a command needs, built from the configuration.
type env struct {
	cfg      config.Config
	logger   *logrus.Logger
	store    *textstore.Store
	gatherer prometheus.Gatherer
}

func (a *app) open() (*env, error) {
	boot := config.NewLogger(config.Defaults().Logging, a.stderr)
	cfg, err := config.Load(a.opts.ConfigFile, boot)
	if err != nil {
		return nil, err
	}

	logger := config.NewLogger(cfg.Logging, a.stderr)
	registerer, gatherer := monitoring.Registry(cfg.Monitoring)
	monitoring.InitMetrics(registerer)

	var pipeline *migration.Pipeline
	if cfg.Migrations.Enabled {
		pipeline = migration.New(logger, profiles.New(logger))
	}

	store, err := textstore.New(textstore.Config{
		DataPath:    cfg.Persistence.DataPath,
		TempSuffix:  cfg.Persistence.TempSuffix,
		FileMode:    os.FileMode(cfg.Persistence.FileMode),
		MaxAttempts: cfg.Persistence.Retry.MaxAttempts,
		Interval:    cfg.Persistence.Retry.Interval,
	}, logger, pipeline)
	if err != nil {
		return nil, err
	}

	return &env{cfg: cfg, logger: logger, store: store, gatherer: gatherer}, nil
}

func (e *env) close() {
	if err := monitoring.WriteTextfile(e.cfg.Monitoring.TextfilePath, e.gatherer); err != nil {
		e.logger.WithField("action", "diskstate_metrics").WithError(err).
			Warn("could not write metrics textfile")
	}
}

func (c *writeCommand) Execute(args []string) error {
	e, err := c.app.open()
	if err != nil {
		return err
	}
	defer e.close()

	content, err := c.readInput()
	if err != nil {
		return err
	}

	if err := e.store.Save(context.Background(), c.Key, content); err != nil {
		return err
	}

	e.logger.WithFields(logrus.Fields{
		"action": "diskstate_write",
		"key":    c.Key,
		"bytes":  len(content),
	}).Info("document written")
	return nil
}

func (c *writeCommand) readInput() (string, error) {
	if c.Input == "-" {
		b, err := io.ReadAll(c.app.stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	}

	b, err := os.ReadFile(c.Input)
	if err != nil {
		return "", fmt.Errorf("read input file: %w", err)
	}
	return string(b), nil
}

func (c *migrateCommand) Execute(args []string) error {
	e, err := c.app.open()
	if err != nil {
		return err
	}
	defer e.close()

	ctx := context.Background()
	if c.DryRun {
		migrated, err := e.store.Load(ctx, c.Key)
		if err != nil {
			return err
		}
		_, err = io.WriteString(c.app.stdout, migrated)
		return err
	}

	changed, err := e.store.Migrate(ctx, c.Key)
	if err != nil {
		return err
	}

	e.logger.WithFields(logrus.Fields{
		"action":  "diskstate_migrate",
		"key":     c.Key,
		"changed": changed,
	}).Info("document migrated")
	return nil
}

func (c *recoverCommand) Execute(args []string) error {
	e, err := c.app.open()
	if err != nil {
		return err
	}
	defer e.close()

	fmt.Fprintf(c.app.stdout, "recovered %d temporary file(s)\n", e.store.RecoveredOnOpen())
	return nil
}
