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

package safewrite

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/weaviate/diskstate/entities/diskio"
	"github.com/weaviate/diskstate/entities/errorcompounder"
)

const (
	recoveryPromoted = "promoted"
	recoveryDeleted  = "deleted"
)

// recoverTemp handles a temp file left behind by an interrupted write. If
// the destination is missing, the temp file may hold the only copy of the
// data and is moved onto the destination. Otherwise it is deleted.
func (w *Writer) recoverTemp(path, tempPath string) error {
	exists, err := diskio.FileExists(tempPath)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	if err := diskio.CheckFileWritable(tempPath); err != nil {
		return err
	}
	if err := w.checkDirs(path, tempPath); err != nil {
		return err
	}

	destExists, err := diskio.FileExists(path)
	if err != nil {
		return err
	}

	log := w.logger.WithFields(logrus.Fields{
		"action":    "safe_write_recover_temp",
		"path":      w.rel(path),
		"temp_path": w.rel(tempPath),
	})

	if !destExists {
		log.WithField("recovery", recoveryPromoted).
			Warnf("found temporary file %s but no file at the destination %s, "+
				"a previous write was probably interrupted, "+
				"moving the temporary file to the destination", w.rel(tempPath), w.rel(path))

		if err := w.mover.Move(tempPath, path); err != nil {
			return err
		}
		w.metrics.TempFileRecovered(recoveryPromoted)
		return nil
	}

	log.WithField("recovery", recoveryDeleted).
		Warnf("found temporary file %s next to the destination %s, "+
			"a previous write was probably interrupted, "+
			"deleting the temporary file", w.rel(tempPath), w.rel(path))

	if err := diskio.Delete(tempPath); err != nil {
		return err
	}
	w.metrics.TempFileRecovered(recoveryDeleted)
	return nil
}

// RecoverOrphans recovers every temp file directly inside dir, as a write
// to its destination would. It returns the number of temp files handled.
// Subdirectories are not visited.
func (w *Writer) RecoverOrphans(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, errors.Wrapf(err, "read directory %s", w.rel(dir))
	}

	ec := errorcompounder.New()
	recovered := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, w.config.TempSuffix) ||
			name == w.config.TempSuffix {
			continue
		}

		tempPath := filepath.Join(dir, name)
		path := strings.TrimSuffix(tempPath, w.config.TempSuffix)
		if err := w.recoverTemp(path, tempPath); err != nil {
			ec.AddWrapf(err, "recover temporary file %s", w.rel(tempPath))
			continue
		}
		recovered++
	}

	return recovered, ec.ToError()
}
