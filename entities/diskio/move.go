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
	"hash/crc32"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/weaviate/diskstate/entities/errorcompounder"
	"github.com/weaviate/diskstate/usecases/monitoring"
)

const (
	StrategyAtomicRename  = "atomic rename"
	StrategyReplace       = "replace"
	StrategyLink          = "link"
	StrategyCopyAndDelete = "copy and delete"
)

// MoveStrategy is one way of moving a file onto a target path, replacing any
// file at the target.
type MoveStrategy struct {
	Name string
	Move func(source, target string) error
}

// DefaultMoveStrategies returns the strategies in the order they are tried:
// an atomic rename, then progressively weaker fallbacks.
func DefaultMoveStrategies() []MoveStrategy {
	return []MoveStrategy{
		{Name: StrategyAtomicRename, Move: moveAtomicRename},
		{Name: StrategyReplace, Move: moveReplace},
		{Name: StrategyLink, Move: moveLink},
		{Name: StrategyCopyAndDelete, Move: moveCopyAndDelete},
	}
}

// Mover moves files using an ordered list of strategies. The first strategy
// that succeeds ends the move. Moving to a fallback is logged as a warning,
// since the move then succeeds with weaker guarantees.
//
// A successful Move does not guarantee that the rename is persisted, callers
// need to FsyncParent(target) for that.
type Mover struct {
	strategies []MoveStrategy
	logger     logrus.FieldLogger
	metrics    *monitoring.PrometheusMetrics
}

// NewMover uses DefaultMoveStrategies if no strategies are given.
func NewMover(logger logrus.FieldLogger, strategies ...MoveStrategy) *Mover {
	if len(strategies) == 0 {
		strategies = DefaultMoveStrategies()
	}

	s := make([]MoveStrategy, len(strategies))
	copy(s, strategies)

	return &Mover{
		strategies: s,
		logger:     logger,
		metrics:    monitoring.GetMetrics(),
	}
}

// AtomicMove moves source to target with the default strategies.
func AtomicMove(source, target string, logger logrus.FieldLogger) error {
	return NewMover(logger).Move(source, target)
}

func (m *Mover) Move(source, target string) error {
	if err := CreateParentDirs(target, DefaultDirMode); err != nil {
		return err
	}

	ec := errorcompounder.New()
	for i, strategy := range m.strategies {
		err := strategy.Move(source, target)
		if err == nil {
			return nil
		}
		ec.AddWrapf(err, "%s", strategy.Name)

		if i == len(m.strategies)-1 {
			break
		}

		next := m.strategies[i+1]
		m.metrics.MoveFallback(next.Name)
		m.logger.WithFields(logrus.Fields{
			"action":        "atomic_move_fallback",
			"source":        source,
			"target":        target,
			"strategy":      strategy.Name,
			"next_strategy": next.Name,
			"cross_device":  isCrossDevice(err),
		}).WithError(err).
			Warnf("could not move file %q to %q using %s, attempting %s",
				source, target, strategy.Name, next.Name)
	}

	last := m.strategies[len(m.strategies)-1].Name
	return errors.Wrapf(ec.ToError(), "%s file %q to %q", last, source, target)
}

func moveAtomicRename(source, target string) error {
	trackFileOp(opRename)
	return renameAtomic(source, target)
}

// moveReplace removes the target before renaming. Between the two calls
// there is no file at target.
func moveReplace(source, target string) error {
	if err := requireFile(source); err != nil {
		return err
	}
	if _, err := DeleteIfExists(target); err != nil {
		return err
	}

	trackFileOp(opRename)
	return os.Rename(source, target)
}

// moveLink creates a second name for source at target and then drops the
// source name. If the source name cannot be dropped, the link is undone so
// that no duplicate remains.
func moveLink(source, target string) error {
	if err := requireFile(source); err != nil {
		return err
	}
	if _, err := DeleteIfExists(target); err != nil {
		return err
	}

	trackFileOp(opLink)
	if err := os.Link(source, target); err != nil {
		return err
	}

	trackFileOp(opDelete)
	if err := os.Remove(source); err != nil {
		os.Remove(target)
		return errors.Wrapf(err, "remove source %q after linking", source)
	}
	return nil
}

// moveCopyAndDelete copies source to target, persists the copy, verifies it
// and only then deletes source.
func moveCopyAndDelete(source, target string) error {
	if err := copyFile(source, target); err != nil {
		return err
	}

	want, err := checksum(source)
	if err != nil {
		return err
	}
	got, err := checksum(target)
	if err != nil {
		return err
	}
	if want != got {
		os.Remove(target)
		return errors.Errorf("checksum of copy %q does not match source %q", target, source)
	}

	return Delete(source)
}

func copyFile(source, target string) error {
	trackFileOp(opCopy)
	src, err := os.Open(source)
	if err != nil {
		return errors.Wrapf(err, "open source %q", source)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return errors.Wrapf(err, "stat source %q", source)
	}

	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return errors.Wrapf(err, "create target %q", target)
	}

	if _, err := io.Copy(NewMeteredWriter(dst, trackBytesWritten), src); err != nil {
		dst.Close()
		return errors.Wrapf(err, "copy %q to %q", source, target)
	}
	if err := dst.Close(); err != nil {
		return errors.Wrapf(err, "close target %q", target)
	}

	if err := Fsync(target); err != nil {
		return err
	}
	return FsyncParent(target)
}

func checksum(path string) (uint32, error) {
	trackFileOp(opChecksum)
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrapf(err, "open %q for checksum", path)
	}
	defer f.Close()

	h := crc32.NewIEEE()
	if _, err := io.Copy(h, f); err != nil {
		return 0, errors.Wrapf(err, "checksum %q", path)
	}
	return h.Sum32(), nil
}

func requireFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return errors.Errorf("%q is a directory", path)
	}
	return nil
}
