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

//go:build !windows

package diskio

import (
	"golang.org/x/sys/unix"

	enterrors "github.com/weaviate/diskstate/entities/errors"
)

// CheckFileWritable fails with an enterrors.ErrPermission error if the
// existing file at path is not writable.
func CheckFileWritable(path string) error {
	trackFileOp(opAccess)
	if err := unix.Access(path, unix.W_OK); err != nil {
		return enterrors.NewPermission(err, "missing write permission for file %q", path)
	}
	return nil
}

// CheckDirWritable fails with an enterrors.ErrPermission error unless the
// existing directory at path is both writable and accessible, which is what
// creating and renaming files inside of it requires.
func CheckDirWritable(path string) error {
	trackFileOp(opAccess)
	if err := unix.Access(path, unix.W_OK); err != nil {
		return enterrors.NewPermission(err, "missing write permission for directory %q", path)
	}
	if err := unix.Access(path, unix.X_OK); err != nil {
		return enterrors.NewPermission(err, "missing execute (access) permission for directory %q", path)
	}
	return nil
}
