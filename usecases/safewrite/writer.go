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

// Package safewrite replaces text files on disk so that a crash at any point
// leaves either the old or the new content behind, never a partial write.
//
// A write goes through a temporary sibling of the destination:
//
//  1. a leftover temp file from an interrupted write is recovered
//  2. the directories involved are checked for write permission
//  3. the content is written to the temp file
//  4. the temp file and its directory are fsynced
//  5. the destination is deleted
//  6. the temp file is moved onto the destination
//  7. the destination directory is fsynced
//
// If the process dies after step 5 the temp file is the only copy of the
// data. The next write to the same destination promotes it before writing.
package safewrite

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/weaviate/diskstate/entities/diskio"
	"github.com/weaviate/diskstate/usecases/monitoring"
)

const DefaultTempSuffix = ".tmp"

// Stage marks a point in the write protocol that has been completed.
type Stage int

const (
	StageTempWritten Stage = iota + 1
	StageTempSynced
	StageDestinationDeleted
	StageMoved
)

func (s Stage) String() string {
	switch s {
	case StageTempWritten:
		return "temp_written"
	case StageTempSynced:
		return "temp_synced"
	case StageDestinationDeleted:
		return "destination_deleted"
	case StageMoved:
		return "moved"
	default:
		return "unknown"
	}
}

type Config struct {
	// TempSuffix is appended to the destination file name to build the
	// temp sibling. Defaults to DefaultTempSuffix.
	TempSuffix string

	// BasePath, if set, is stripped from paths in log messages and errors.
	BasePath string

	FileMode os.FileMode
	DirMode  os.FileMode

	// Mover is used to move temp files onto their destination. Defaults to
	// a diskio.Mover with the default strategies.
	Mover *diskio.Mover
}

// Writer writes files using the safe write protocol. It holds no per-path
// state, so it can write to different destinations concurrently. Writes to
// the same destination must be serialized by the caller.
type Writer struct {
	config  Config
	logger  logrus.FieldLogger
	mover   *diskio.Mover
	metrics *monitoring.PrometheusMetrics

	// reached is called after each completed stage. A returned error aborts
	// the write as if the process had stopped right there.
	reached func(Stage) error
}

func NewWriter(logger logrus.FieldLogger, config Config) *Writer {
	// Apply defaults for zero values
	if config.TempSuffix == "" {
		config.TempSuffix = DefaultTempSuffix
	}
	if config.FileMode == 0 {
		config.FileMode = diskio.DefaultFileMode
	}
	if config.DirMode == 0 {
		config.DirMode = diskio.DefaultDirMode
	}
	if config.Mover == nil {
		config.Mover = diskio.NewMover(logger)
	}

	return &Writer{
		config:  config,
		logger:  logger,
		mover:   config.Mover,
		metrics: monitoring.GetMetrics(),
		reached: func(Stage) error { return nil },
	}
}

// TempPath returns the temp sibling used while writing path.
func (w *Writer) TempPath(path string) (string, error) {
	return diskio.TempSibling(path, w.config.TempSuffix)
}

// WriteSafely replaces the file at path with content. It does not retry,
// callers that want to ride out interference from other processes should
// retry the whole call.
func (w *Writer) WriteSafely(path, content string) (err error) {
	start := time.Now()
	defer func() {
		w.metrics.SafeWrite(monitoring.Outcome(err), time.Since(start))
	}()

	tempPath, err := w.TempPath(path)
	if err != nil {
		return errors.Wrap(err, "temp file path")
	}

	if err := w.recoverTemp(path, tempPath); err != nil {
		return errors.Wrapf(err, "recover temporary file %s", w.rel(tempPath))
	}

	if err := diskio.CreateParentDirs(tempPath, w.config.DirMode); err != nil {
		return err
	}
	if err := w.checkDirs(path, tempPath); err != nil {
		return err
	}

	if err := diskio.WriteFile(tempPath, content, w.config.FileMode); err != nil {
		// a partial temp file must not be promoted by a later recovery
		os.Remove(tempPath)
		return errors.Wrapf(err, "write temporary file %s", w.rel(tempPath))
	}
	if err := w.reached(StageTempWritten); err != nil {
		return err
	}

	if err := diskio.Fsync(tempPath); err != nil {
		return err
	}
	if err := diskio.FsyncParent(tempPath); err != nil {
		return err
	}
	if err := w.reached(StageTempSynced); err != nil {
		return err
	}

	if _, err := diskio.DeleteIfExists(path); err != nil {
		return errors.Wrapf(err, "delete old file %s", w.rel(path))
	}
	if err := w.reached(StageDestinationDeleted); err != nil {
		return err
	}

	if err := diskio.CreateParentDirs(path, w.config.DirMode); err != nil {
		return err
	}
	if err := w.mover.Move(tempPath, path); err != nil {
		return errors.Wrapf(err, "move temporary file %s to %s", w.rel(tempPath), w.rel(path))
	}
	if err := w.reached(StageMoved); err != nil {
		return err
	}

	return diskio.FsyncParent(path)
}

// checkDirs verifies every distinct directory involved in a write.
func (w *Writer) checkDirs(path, tempPath string) error {
	tempDir := filepath.Dir(tempPath)
	if err := diskio.CheckDirWritable(tempDir); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if dir != tempDir {
		return diskio.CheckDirWritable(dir)
	}
	return nil
}

func (w *Writer) rel(path string) string {
	return diskio.Relative(w.config.BasePath, path)
}
