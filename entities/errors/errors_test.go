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
	"io/fs"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{name: "nil", err: nil, transient: false},
		{name: "plain io error", err: fs.ErrClosed, transient: true},
		{name: "os permission during write", err: fs.ErrPermission, transient: true},
		{
			name:      "permission check",
			err:       NewPermission(fs.ErrPermission, "missing write permission for directory %q", "/data"),
			transient: false,
		},
		{name: "migration", err: ErrMigration, transient: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.transient, IsTransient(tt.err))
		})
	}
}

func TestPermissionError(t *testing.T) {
	err := NewPermission(fs.ErrPermission, "missing write permission for directory %q", "/data")

	assert.True(t, errors.Is(err, ErrPermission))
	assert.True(t, errors.Is(err, fs.ErrPermission), "cause must stay reachable")
	assert.Equal(t, `missing write permission for directory "/data": permission denied`, err.Error())
}

func TestErrorGroupWrapper_RecoversPanics(t *testing.T) {
	logger, hook := test.NewNullLogger()
	eg := NewErrorGroupWrapper(logger)

	eg.Go(func() error { return nil })
	eg.Go(func() error { panic("boom") }, "key-1")

	err := eg.Wait()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "error_group_panic", hook.LastEntry().Data["action"])
}
