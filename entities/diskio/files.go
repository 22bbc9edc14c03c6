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

package diskio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const (
	DefaultDirMode  os.FileMode = 0o755
	DefaultFileMode os.FileMode = 0o644
)

func FileExists(file string) (bool, error) {
	_, err := os.Stat(file)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Fsync makes sure pending writes to the file at path reach the storage
// device. Regular files are opened for writing, directories for reading.
//
// Not every platform can open or fsync a directory, so any failure while
// syncing a directory is ignored. Failures on regular files are returned.
func Fsync(path string) error {
	info, statErr := os.Stat(path)
	isDir := statErr == nil && info.IsDir()

	flag := os.O_WRONLY
	if isDir {
		flag = os.O_RDONLY
	}

	trackFileOp(opFsync)
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		if isDir {
			return nil
		}
		return errors.Wrapf(err, "fsync file %q", path)
	}
	defer f.Close()

	if err := f.Sync(); err != nil {
		if isDir {
			return nil
		}
		return errors.Wrapf(err, "fsync file %q", path)
	}
	return nil
}

// FsyncParent fsyncs the directory containing path. It does nothing if path
// has no parent component.
func FsyncParent(path string) error {
	parent, ok := parentDir(path)
	if !ok {
		return nil
	}
	return Fsync(parent)
}

// CreateDirs creates dir and any missing parents. It succeeds if dir already
// exists.
func CreateDirs(dir string, perm os.FileMode) error {
	trackFileOp(opMkdir)
	if err := os.MkdirAll(dir, perm); err != nil {
		return errors.Wrapf(err, "create directory %q", dir)
	}
	return nil
}

// CreateParentDirs creates all missing parent directories of path.
func CreateParentDirs(path string, perm os.FileMode) error {
	parent, ok := parentDir(path)
	if !ok {
		return nil
	}
	return CreateDirs(parent, perm)
}

func Delete(path string) error {
	trackFileOp(opDelete)
	if err := os.Remove(path); err != nil {
		return errors.Wrapf(err, "delete file %q", path)
	}
	return nil
}

// DeleteIfExists deletes the file at path and reports whether there was one.
func DeleteIfExists(path string) (bool, error) {
	trackFileOp(opDelete)
	err := os.Remove(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.Wrapf(err, "delete file %q", path)
}

// TempSibling returns the path of the temporary file used while writing path:
// same directory, file name with suffix appended.
func TempSibling(path, suffix string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty path")
	}

	path = filepath.Clean(path)
	name := filepath.Base(path)
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return "", fmt.Errorf("path %q has no file name", path)
	}
	if suffix == "" {
		return "", fmt.Errorf("empty temp file suffix for path %q", path)
	}
	return filepath.Join(filepath.Dir(path), name+suffix), nil
}

// Relative renders path relative to base if path lies below base, and
// returns path unchanged otherwise.
func Relative(base, path string) string {
	if base == "" {
		return path
	}

	rel, err := filepath.Rel(base, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return rel
}

func parentDir(path string) (string, bool) {
	if path == "" {
		return "", false
	}

	parent := filepath.Dir(path)
	if parent == path || (parent == "." && !strings.ContainsRune(path, filepath.Separator)) {
		return "", false
	}
	return parent, true
}

// SanitizeFilePathJoin joins a root path and a relative file path, ensuring that the resulting path is within the root
// path. It assumes that the relativeFilePath is attacker controlled.
func SanitizeFilePathJoin(rootPath string, relativeFilePath string) (string, error) {
	// Resolve symlinks in root path
	rootPath, err := filepath.EvalSymlinks(rootPath)
	if err != nil {
		return "", fmt.Errorf("resolve symlinks for root path %q: %w", rootPath, err)
	}

	// clean the path to remove any ../ or ./ sequences
	cleanFilePath := filepath.Clean(relativeFilePath)
	if filepath.IsAbs(cleanFilePath) {
		return "", fmt.Errorf("relative file path %q is an absolute path", relativeFilePath)
	}
	combinedPath := filepath.Join(rootPath, cleanFilePath)
	finalPath := filepath.Clean(combinedPath)

	rel, err := filepath.Rel(rootPath, finalPath)
	if err != nil {
		return "", fmt.Errorf("make %q relative to %q: %w", finalPath, rootPath, err)
	}
	if rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("file path %q is outside root %q", finalPath, rootPath)
	}
	return finalPath, nil
}
