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
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weaviate/diskstate/entities/diskio"
	enterrors "github.com/weaviate/diskstate/entities/errors"
	"github.com/weaviate/diskstate/usecases/monitoring"
)

var errSimulatedCrash = errors.New("simulated crash")

func crashAfter(w *Writer, stage Stage) {
	w.reached = func(s Stage) error {
		if s == stage {
			return errSimulatedCrash
		}
		return nil
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func assertMissing(t *testing.T, path string) {
	t.Helper()
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "%q must not exist", path)
}

func recoveryEntries(hook *test.Hook) []*logrus.Entry {
	var out []*logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Data["action"] == "safe_write_recover_temp" {
			out = append(out, e)
		}
	}
	return out
}

func TestWriteSafely(t *testing.T) {
	logger, hook := test.NewNullLogger()
	w := NewWriter(logger, Config{})
	dir := t.TempDir()
	path := filepath.Join(dir, "save.yml")

	t.Run("new file", func(t *testing.T) {
		require.NoError(t, w.WriteSafely(path, "a: 1\n"))
		assert.Equal(t, "a: 1\n", readFile(t, path))
		assertMissing(t, path+DefaultTempSuffix)
	})

	t.Run("replace existing file", func(t *testing.T) {
		require.NoError(t, w.WriteSafely(path, "a: 2\n"))
		assert.Equal(t, "a: 2\n", readFile(t, path))
		assertMissing(t, path+DefaultTempSuffix)
	})

	t.Run("missing parent directories", func(t *testing.T) {
		nested := filepath.Join(dir, "a", "b", "save.yml")
		require.NoError(t, w.WriteSafely(nested, "nested"))
		assert.Equal(t, "nested", readFile(t, nested))
	})

	t.Run("empty content", func(t *testing.T) {
		require.NoError(t, w.WriteSafely(path, ""))
		assert.Equal(t, "", readFile(t, path))
	})

	assert.Empty(t, hook.AllEntries(), "the success path does not log")
}

func TestWriteSafely_CustomSuffixAndMode(t *testing.T) {
	logger, _ := test.NewNullLogger()
	w := NewWriter(logger, Config{TempSuffix: ".partial", FileMode: 0o600})
	path := filepath.Join(t.TempDir(), "save.yml")

	crashAfter(w, StageTempWritten)
	require.ErrorIs(t, w.WriteSafely(path, "data"), errSimulatedCrash)
	assert.Equal(t, "data", readFile(t, path+".partial"))

	info, err := os.Stat(path + ".partial")
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestWriteSafely_CrashPoints(t *testing.T) {
	const (
		oldContent = "old content\n"
		newContent = "new content\n"
	)

	prev, next := oldContent, newContent
	tests := []struct {
		stage    Stage
		existing bool
		dest     *string
		temp     *string
	}{
		{stage: StageTempWritten, existing: true, dest: &prev, temp: &next},
		{stage: StageTempSynced, existing: true, dest: &prev, temp: &next},
		{stage: StageDestinationDeleted, existing: true, dest: nil, temp: &next},
		{stage: StageMoved, existing: true, dest: &next, temp: nil},
		{stage: StageTempWritten, existing: false, dest: nil, temp: &next},
		{stage: StageTempSynced, existing: false, dest: nil, temp: &next},
		{stage: StageDestinationDeleted, existing: false, dest: nil, temp: &next},
		{stage: StageMoved, existing: false, dest: &next, temp: nil},
	}

	for _, tt := range tests {
		name := tt.stage.String()
		if tt.existing {
			name += " with existing destination"
		}
		t.Run(name, func(t *testing.T) {
			logger, _ := test.NewNullLogger()
			path := filepath.Join(t.TempDir(), "save.yml")
			tempPath := path + DefaultTempSuffix
			if tt.existing {
				require.NoError(t, os.WriteFile(path, []byte(oldContent), 0o644))
			}

			w := NewWriter(logger, Config{})
			crashAfter(w, tt.stage)
			require.ErrorIs(t, w.WriteSafely(path, newContent), errSimulatedCrash)

			if tt.dest == nil {
				assertMissing(t, path)
			} else {
				assert.Equal(t, *tt.dest, readFile(t, path))
			}
			if tt.temp == nil {
				assertMissing(t, tempPath)
			} else {
				assert.Equal(t, *tt.temp, readFile(t, tempPath))
			}

			// the next write always ends with exactly its own content
			restarted := NewWriter(logger, Config{})
			require.NoError(t, restarted.WriteSafely(path, "after restart\n"))
			assert.Equal(t, "after restart\n", readFile(t, path))
			assertMissing(t, tempPath)
		})
	}
}

func TestWriteSafely_RecoveryIdempotence(t *testing.T) {
	logger, _ := test.NewNullLogger()
	path := filepath.Join(t.TempDir(), "save.yml")
	tempPath := path + DefaultTempSuffix

	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(tempPath, []byte("leftover"), 0o644))

		w := NewWriter(logger, Config{})
		require.NoError(t, w.WriteSafely(path, "content"))
		require.NoError(t, w.WriteSafely(path, "content"))

		assert.Equal(t, "content", readFile(t, path))
		assertMissing(t, tempPath)
	}
}

func TestWriteSafely_PromotesTempWithoutDestination(t *testing.T) {
	logger, hook := test.NewNullLogger()
	reg := prometheus.NewRegistry()
	metrics := monitoring.InitMetrics(reg)
	t.Cleanup(func() { monitoring.InitMetrics(&monitoring.NoopPrometheusRegistery{}) })

	dir := t.TempDir()
	path := filepath.Join(dir, "save.yml")
	tempPath := path + DefaultTempSuffix
	require.NoError(t, os.WriteFile(tempPath, []byte("recovered"), 0o644))

	w := NewWriter(logger, Config{BasePath: dir})

	var promoted string
	w.reached = func(s Stage) error {
		if s == StageTempWritten {
			// the leftover was promoted before the new temp file was written
			promoted = readFile(t, path)
		}
		return nil
	}

	require.NoError(t, w.WriteSafely(path, "new"))
	assert.Equal(t, "recovered", promoted)
	assert.Equal(t, "new", readFile(t, path))
	assertMissing(t, tempPath)

	entries := recoveryEntries(hook)
	require.Len(t, entries, 1)
	assert.Equal(t, logrus.WarnLevel, entries[0].Level)
	assert.Equal(t, recoveryPromoted, entries[0].Data["recovery"])
	assert.Equal(t, "save.yml.tmp", entries[0].Data["temp_path"], "paths are relative to the base path")
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.TempFileRecoveries.WithLabelValues(recoveryPromoted)))
}

func TestWriteSafely_DeletesRedundantTemp(t *testing.T) {
	logger, hook := test.NewNullLogger()
	path := filepath.Join(t.TempDir(), "save.yml")
	tempPath := path + DefaultTempSuffix
	require.NoError(t, os.WriteFile(path, []byte("current"), 0o644))
	require.NoError(t, os.WriteFile(tempPath, []byte("stale"), 0o644))

	w := NewWriter(logger, Config{})
	require.NoError(t, w.WriteSafely(path, "new"))

	assert.Equal(t, "new", readFile(t, path))
	assertMissing(t, tempPath)

	entries := recoveryEntries(hook)
	require.Len(t, entries, 1)
	assert.Equal(t, recoveryDeleted, entries[0].Data["recovery"])
}

func TestWriteSafely_EndToEnd(t *testing.T) {
	logger, hook := test.NewNullLogger()
	path := filepath.Join(t.TempDir(), "P")
	tempPath := path + ".tmp"

	w := NewWriter(logger, Config{})
	crashAfter(w, StageTempSynced)
	require.Error(t, w.WriteSafely(path, "alpha"))

	assert.Equal(t, "alpha", readFile(t, tempPath))
	assertMissing(t, path)

	require.NoError(t, NewWriter(logger, Config{}).WriteSafely(path, "alpha"))
	assert.Equal(t, "alpha", readFile(t, path))
	assertMissing(t, tempPath)
	assert.Len(t, recoveryEntries(hook), 1)
}

func TestWriteSafely_MoveFallback(t *testing.T) {
	logger, hook := test.NewNullLogger()
	path := filepath.Join(t.TempDir(), "save.yml")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	var copyAndDelete diskio.MoveStrategy
	for _, s := range diskio.DefaultMoveStrategies() {
		if s.Name == diskio.StrategyCopyAndDelete {
			copyAndDelete = s
		}
	}
	mover := diskio.NewMover(logger,
		diskio.MoveStrategy{
			Name: diskio.StrategyAtomicRename,
			Move: func(string, string) error { return errors.New("rename unavailable") },
		},
		copyAndDelete,
	)

	w := NewWriter(logger, Config{Mover: mover})
	require.NoError(t, w.WriteSafely(path, "new"))

	assert.Equal(t, "new", readFile(t, path))
	assertMissing(t, path+DefaultTempSuffix)

	entries := hook.AllEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, logrus.WarnLevel, entries[0].Level)
	assert.Equal(t, "atomic_move_fallback", entries[0].Data["action"])
}

func TestWriteSafely_PermissionDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}

	logger, _ := test.NewNullLogger()
	dir := filepath.Join(t.TempDir(), "readonly")
	require.NoError(t, os.Mkdir(dir, 0o755))
	path := filepath.Join(dir, "save.yml")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))
	require.NoError(t, os.Chmod(dir, 0o555))
	t.Cleanup(func() { os.Chmod(dir, 0o755) })

	err := NewWriter(logger, Config{}).WriteSafely(path, "new")
	require.Error(t, err)
	assert.ErrorIs(t, err, enterrors.ErrPermission)
	assert.False(t, enterrors.IsTransient(err))

	assert.Equal(t, "old", readFile(t, path))
	assertMissing(t, path+DefaultTempSuffix)
}

func TestRecoverOrphans(t *testing.T) {
	logger, hook := test.NewNullLogger()
	dir := t.TempDir()

	// promoted: no destination
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yml.tmp"), []byte("a"), 0o644))
	// deleted: destination exists
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yml"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yml.tmp"), []byte("stale"), 0o644))
	// ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.yml"), []byte("c"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".tmp"), []byte("?"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.tmp"), 0o755))

	w := NewWriter(logger, Config{})
	recovered, err := w.RecoverOrphans(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, recovered)

	assert.Equal(t, "a", readFile(t, filepath.Join(dir, "a.yml")))
	assert.Equal(t, "b", readFile(t, filepath.Join(dir, "b.yml")))
	assertMissing(t, filepath.Join(dir, "a.yml.tmp"))
	assertMissing(t, filepath.Join(dir, "b.yml.tmp"))
	assert.Len(t, recoveryEntries(hook), 2)

	t.Run("second run is a no-op", func(t *testing.T) {
		hook.Reset()
		recovered, err := w.RecoverOrphans(dir)
		require.NoError(t, err)
		assert.Equal(t, 0, recovered)
		assert.Empty(t, hook.AllEntries())
	})

	t.Run("missing directory", func(t *testing.T) {
		recovered, err := w.RecoverOrphans(filepath.Join(dir, "missing"))
		require.NoError(t, err)
		assert.Equal(t, 0, recovered)
	})
}
