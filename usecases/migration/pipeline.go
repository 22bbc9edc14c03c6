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

// Package migration rewrites raw persisted text before it is parsed. A
// Pipeline runs an ordered list of steps, each a pure string transformation.
package migration

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	enterrors "github.com/weaviate/diskstate/entities/errors"
	"github.com/weaviate/diskstate/usecases/monitoring"
)

type Step interface {
	// Name identifies the step in logs and errors.
	Name() string
	Apply(data string) (string, error)
}

type funcStep struct {
	name  string
	apply func(string) (string, error)
}

func (s *funcStep) Name() string {
	return s.name
}

func (s *funcStep) Apply(data string) (string, error) {
	return s.apply(data)
}

// NewStep turns a function into a named Step.
func NewStep(name string, apply func(data string) (string, error)) Step {
	return &funcStep{name: name, apply: apply}
}

// Error is returned when a step fails. It matches enterrors.ErrMigration.
type Error struct {
	Step string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("raw data migration failed at step %q: %v", e.Step, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == enterrors.ErrMigration
}

type State int

const (
	StateNotRun State = iota
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNotRun:
		return "not_run"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type StepResult struct {
	Name    string
	State   State
	Changed bool
	Took    time.Duration
}

// Report lists every step of a pipeline run in order, including the ones
// that never ran.
type Report struct {
	Steps []StepResult
}

// Changed reports whether any step modified the data.
func (r Report) Changed() bool {
	for _, s := range r.Steps {
		if s.Changed {
			return true
		}
	}
	return false
}

type Pipeline struct {
	steps   []Step
	logger  logrus.FieldLogger
	metrics *monitoring.PrometheusMetrics
}

// New builds a pipeline that applies steps in the given order.
func New(logger logrus.FieldLogger, steps ...Step) *Pipeline {
	s := make([]Step, len(steps))
	copy(s, steps)

	return &Pipeline{
		steps:   s,
		logger:  logger,
		metrics: monitoring.GetMetrics(),
	}
}

// StepNames returns the names of the steps in order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Name()
	}
	return names
}

// Apply runs all steps on data. Empty data is returned as is without
// running any step. If a step fails, no further step runs and only the
// error is returned.
func (p *Pipeline) Apply(data string) (string, error) {
	out, _, err := p.ApplyWithReport(data)
	return out, err
}

func (p *Pipeline) ApplyWithReport(data string) (string, Report, error) {
	report := Report{Steps: make([]StepResult, len(p.steps))}
	for i, s := range p.steps {
		report.Steps[i] = StepResult{Name: s.Name(), State: StateNotRun}
	}

	if data == "" {
		return data, report, nil
	}

	current := data
	for i, step := range p.steps {
		name := step.Name()
		p.logger.WithFields(logrus.Fields{
			"action": "raw_data_migration",
			"step":   name,
		}).Debugf("applying raw data migration: %s", name)

		start := time.Now()
		out, err := runStep(step, current)
		took := time.Since(start)
		p.metrics.MigrationStep(name, monitoring.Outcome(err), took)

		report.Steps[i].Took = took
		if err != nil {
			report.Steps[i].State = StateFailed
			return "", report, &Error{Step: name, Err: err}
		}

		report.Steps[i].State = StateSucceeded
		report.Steps[i].Changed = out != current
		current = out
	}

	return current, report, nil
}

func runStep(step Step, data string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = ""
			err = errors.Errorf("panic: %v", r)
		}
	}()

	return step.Apply(data)
}
