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

//go:build windows

package diskio

import (
	"os"

	"github.com/pkg/errors"

	enterrors "github.com/weaviate/diskstate/entities/errors"
)

// CheckFileWritable fails with an enterrors.ErrPermission error if the
// existing file at path carries the read-only attribute.
func CheckFileWritable(path string) error {
	trackFileOp(opAccess)
	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrapf(err, "stat file %q", path)
	}
	if info.Mode().Perm()&0o200 == 0 {
		return enterrors.NewPermission(os.ErrPermission, "missing write permission for file %q", path)
	}
	return nil
}

// CheckDirWritable only verifies that path is an existing directory. The
// read-only attribute is ignored for directories on Windows, and there is no
// separate access permission.
func CheckDirWritable(path string) error {
	trackFileOp(opAccess)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsPermission(err) {
			return enterrors.NewPermission(err, "missing access permission for directory %q", path)
		}
		return errors.Wrapf(err, "stat directory %q", path)
	}
	if !info.IsDir() {
		return errors.Errorf("%q is not a directory", path)
	}
	return nil
}
