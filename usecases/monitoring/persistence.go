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

package monitoring

import (
	"time"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

func Outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}

func (pm *PrometheusMetrics) FileOp(operation string) {
	if pm == nil {
		return
	}

	pm.FileIOOps.WithLabelValues(operation).Inc()
}

func (pm *PrometheusMetrics) BytesWritten(n int64) {
	if pm == nil {
		return
	}

	pm.FileIOBytes.WithLabelValues("write").Add(float64(n))
}

func (pm *PrometheusMetrics) BytesRead(n int64) {
	if pm == nil {
		return
	}

	pm.FileIOBytes.WithLabelValues("read").Add(float64(n))
}

// MoveFallback records that the given, weaker strategy is about to be tried.
func (pm *PrometheusMetrics) MoveFallback(strategy string) {
	if pm == nil {
		return
	}

	pm.MoveFallbacks.WithLabelValues(strategy).Inc()
}

func (pm *PrometheusMetrics) TempFileRecovered(action string) {
	if pm == nil {
		return
	}

	pm.TempFileRecoveries.WithLabelValues(action).Inc()
}

func (pm *PrometheusMetrics) SafeWrite(outcome string, took time.Duration) {
	if pm == nil {
		return
	}

	pm.SafeWrites.WithLabelValues(outcome).Inc()
	pm.SafeWriteDurations.Observe(took.Seconds())
}

func (pm *PrometheusMetrics) MigrationStep(step, outcome string, took time.Duration) {
	if pm == nil {
		return
	}

	pm.MigrationSteps.WithLabelValues(step, outcome).Inc()
	pm.MigrationDurations.WithLabelValues(step).Observe(took.Seconds())
}
