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

// Package textstore keeps named text documents in a directory. Every write
// goes through the safe write protocol, and documents are migrated when
// loaded.
package textstore

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/weaviate/diskstate/entities/diskio"
	enterrors "github.com/weaviate/diskstate/entities/errors"
	"github.com/weaviate/diskstate/usecases/migration"
	"github.com/weaviate/diskstate/usecases/safewrite"
)

var (
	ErrNotFound   = errors.New("document not found")
	ErrInvalidKey = errors.New("invalid document key")
)

type Config struct {
	DataPath   string
	TempSuffix string
	FileMode   os.FileMode

	// MaxAttempts is the number of write attempts per Save, Interval the
	// pause between them.
	MaxAttempts int
	Interval    time.Duration

	// Mover moves temp files into place. Defaults to a diskio.Mover with the
	// default strategies.
	Mover *diskio.Mover
}

type Store struct {
	config   Config
	logger   logrus.FieldLogger
	writer   *safewrite.Writer
	pipeline *migration.Pipeline
	locks    *keyLocks

	recoveredOnOpen int
}

// New opens the store at config.DataPath, creating the directory if needed,
// and recovers temp files left behind by interrupted writes. pipeline may be
// nil, in which case documents are loaded without migration.
func New(config Config, logger logrus.FieldLogger, pipeline *migration.Pipeline) (*Store, error) {
	if config.DataPath == "" {
		return nil, errors.New("empty data path")
	}
	if config.TempSuffix == "" {
		config.TempSuffix = safewrite.DefaultTempSuffix
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultMaxAttempts
	}
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}

	dataPath, err := filepath.Abs(config.DataPath)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve data path %q", config.DataPath)
	}
	config.DataPath = dataPath

	if err := diskio.CreateDirs(config.DataPath, diskio.DefaultDirMode); err != nil {
		return nil, err
	}

	logger = logger.WithField("data_path", config.DataPath)
	s := &Store{
		config:   config,
		logger:   logger,
		pipeline: pipeline,
		locks:    newKeyLocks(),
		writer: safewrite.NewWriter(logger, safewrite.Config{
			TempSuffix: config.TempSuffix,
			BasePath:   config.DataPath,
			FileMode:   config.FileMode,
			Mover:      config.Mover,
		}),
	}

	recovered, err := s.Recover()
	if err != nil {
		return nil, errors.Wrap(err, "recover interrupted writes")
	}
	s.recoveredOnOpen = recovered
	return s, nil
}

// RecoveredOnOpen is the number of temp files New recovered.
func (s *Store) RecoveredOnOpen() int {
	return s.recoveredOnOpen
}

// Path returns the file that holds the document key.
func (s *Store) Path(key string) (string, error) {
	if key == "" || strings.HasSuffix(key, s.config.TempSuffix) {
		return "", errors.Wrapf(ErrInvalidKey, "%q", key)
	}

	path, err := diskio.SanitizeFilePathJoin(s.config.DataPath, filepath.FromSlash(key))
	if err != nil {
		return "", errors.Wrapf(ErrInvalidKey, "%q: %v", key, err)
	}
	return path, nil
}

// Save replaces the document key with content. Transient failures are
// retried, permission errors are not. Keys naming the same file are
// serialized.
func (s *Store) Save(ctx context.Context, key, content string) error {
	path, err := s.Path(key)
	if err != nil {
		return err
	}

	unlock := s.locks.lock(path)
	defer unlock()

	return s.save(ctx, key, path, content)
}

func (s *Store) save(ctx context.Context, key, path, content string) error {
	attempt := 0
	op := func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}

		attempt++
		err := s.writer.WriteSafely(path, content)
		if err != nil && !enterrors.IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		s.logger.WithFields(logrus.Fields{
			"action":  "textstore_save_retry",
			"key":     key,
			"attempt": attempt,
			"next_in": next,
		}).WithError(err).Warn("could not save document, retrying")
	}

	b := backoff.WithContext(constantBackoff(s.config.MaxAttempts, s.config.Interval), ctx)
	err := backoff.RetryNotify(op, b, notify)
	if err != nil {
		return errors.Wrapf(err, "save document %q", key)
	}
	return nil
}

// Load returns the migrated content of the document key, with line
// separators normalized. The file itself is not changed, see Migrate.
//
// If only a temp file of an interrupted write exists, its content is
// returned. The next Save or Recover moves it into place.
func (s *Store) Load(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path, err := s.Path(key)
	if err != nil {
		return "", err
	}

	unlock := s.locks.lock(path)
	defer unlock()

	raw, err := s.read(key, path)
	if err != nil {
		return "", err
	}

	out, err := s.migrate(raw)
	if err != nil {
		return "", errors.Wrapf(err, "load document %q", key)
	}
	return out, nil
}

// Migrate runs the migration pipeline on the document key and saves the
// result if anything changed.
func (s *Store) Migrate(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	path, err := s.Path(key)
	if err != nil {
		return false, err
	}

	unlock := s.locks.lock(path)
	defer unlock()

	raw, err := s.read(key, path)
	if err != nil {
		return false, err
	}

	migrated, err := s.migrate(raw)
	if err != nil {
		return false, errors.Wrapf(err, "migrate document %q", key)
	}
	if migrated == raw {
		return false, nil
	}

	if err := s.save(ctx, key, path, migrated); err != nil {
		return false, err
	}
	return true, nil
}

// SaveAll saves all documents concurrently. Every document is attempted,
// the returned error holds one entry per failed document.
func (s *Store) SaveAll(ctx context.Context, documents map[string]string) error {
	var (
		mu     sync.Mutex
		result *multierror.Error
	)

	eg := enterrors.NewErrorGroupWrapper(s.logger)
	for key, content := range documents {
		eg.Go(func() error {
			if err := s.Save(ctx, key, content); err != nil {
				mu.Lock()
				result = multierror.Append(result, err)
				mu.Unlock()
			}
			return nil
		}, key)
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	return result.ErrorOrNil()
}

// Recover handles the temp files of interrupted writes in the data
// directory and all of its subdirectories.
func (s *Store) Recover() (int, error) {
	recovered := 0
	err := filepath.WalkDir(s.config.DataPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}

		n, err := s.writer.RecoverOrphans(path)
		recovered += n
		return err
	})
	if err != nil {
		return recovered, err
	}

	if recovered > 0 {
		s.logger.WithFields(logrus.Fields{
			"action":    "textstore_recover",
			"recovered": recovered,
		}).Info("recovered temporary files of interrupted writes")
	}
	return recovered, nil
}

func (s *Store) read(key, path string) (string, error) {
	content, err := diskio.ReadNormalized(path)
	if err == nil {
		return content, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}

	tempPath, err := s.writer.TempPath(path)
	if err != nil {
		return "", err
	}
	content, err = diskio.ReadNormalized(tempPath)
	if errors.Is(err, fs.ErrNotExist) {
		return "", errors.Wrapf(ErrNotFound, "%q", key)
	}
	if err != nil {
		return "", err
	}

	s.logger.WithFields(logrus.Fields{
		"action":    "textstore_load_temp",
		"key":       key,
		"temp_path": diskio.Relative(s.config.DataPath, tempPath),
	}).Warn("document is missing but a temporary file of an interrupted write exists, loading the temporary file")
	return content, nil
}

func (s *Store) migrate(data string) (string, error) {
	if s.pipeline == nil {
		return data, nil
	}
	return s.pipeline.Apply(data)
}
