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

package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrPermission is matched by every failed up-front permission check.
	ErrPermission = errors.New("missing permission")

	// ErrMigration is matched by every failed raw data migration.
	ErrMigration = errors.New("raw data migration failed")
)

// PermissionError is returned before any state is mutated when a file or
// directory involved in a write is not writable or accessible.
type PermissionError struct {
	Msg string
	Err error
}

func (e *PermissionError) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return fmt.Sprintf("%s: %v", e.Msg, e.Err)
}

func (e *PermissionError) Unwrap() error {
	return e.Err
}

func (e *PermissionError) Is(target error) bool {
	return target == ErrPermission
}

func NewPermission(cause error, format string, a ...any) error {
	return &PermissionError{Msg: fmt.Sprintf(format, a...), Err: cause}
}

// IsTransient reports whether retrying may succeed without outside
// intervention. Missing permissions and migrations that could not interpret
// their input fail the same way on every attempt.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrPermission) || errors.Is(err, ErrMigration) {
		return false
	}

	return true
}
