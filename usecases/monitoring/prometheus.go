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
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config controls whether metrics are registered and where a snapshot of
// them is written for a node_exporter textfile collector.
type Config struct {
	Enabled      bool   `json:"enabled" yaml:"enabled"`
	TextfilePath string `json:"textfile_path" yaml:"textfile_path"`
}

type PrometheusMetrics struct {
	Registerer prometheus.Registerer

	FileIOOps          *prometheus.CounterVec
	FileIOBytes        *prometheus.CounterVec
	MoveFallbacks      *prometheus.CounterVec
	TempFileRecoveries *prometheus.CounterVec
	SafeWrites         *prometheus.CounterVec
	SafeWriteDurations prometheus.Histogram
	MigrationSteps     *prometheus.CounterVec
	MigrationDurations *prometheus.HistogramVec
}

var (
	msMu sync.Mutex
	ms   *PrometheusMetrics
)

// GetMetrics returns the process-wide metrics. Unless InitMetrics was called
// before, the collectors are registered on a no-op registry: they still count,
// but nothing is exported.
func GetMetrics() *PrometheusMetrics {
	msMu.Lock()
	defer msMu.Unlock()

	if ms == nil {
		ms = newPrometheusMetrics(noop)
	}
	return ms
}

// InitMetrics registers a fresh set of collectors on r and makes them the
// process-wide metrics.
func InitMetrics(r prometheus.Registerer) *PrometheusMetrics {
	msMu.Lock()
	defer msMu.Unlock()

	ms = newPrometheusMetrics(r)
	return ms
}

func newPrometheusMetrics(r prometheus.Registerer) *PrometheusMetrics {
	return &PrometheusMetrics{
		Registerer: r,

		FileIOOps: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Name: "diskstate_file_io_ops_total",
			Help: "Number of file system operations by type",
		}, []string{"operation"}),
		FileIOBytes: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Name: "diskstate_file_io_bytes_total",
			Help: "Number of bytes read or written by the persistence layer",
		}, []string{"direction"}),
		MoveFallbacks: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Name: "diskstate_move_fallbacks_total",
			Help: "Number of times a weaker move strategy had to be used",
		}, []string{"strategy"}),
		TempFileRecoveries: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Name: "diskstate_temp_file_recoveries_total",
			Help: "Leftover temporary files found before a write, by the action taken",
		}, []string{"action"}),
		SafeWrites: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Name: "diskstate_safe_writes_total",
			Help: "Number of safe write attempts by outcome",
		}, []string{"outcome"}),
		SafeWriteDurations: promauto.With(r).NewHistogram(prometheus.HistogramOpts{
			Name:    "diskstate_safe_write_duration_seconds",
			Help:    "Duration of the complete safe write protocol",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		MigrationSteps: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Name: "diskstate_raw_data_migration_steps_total",
			Help: "Number of raw data migration step runs by step and outcome",
		}, []string{"step", "outcome"}),
		MigrationDurations: promauto.With(r).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "diskstate_raw_data_migration_duration_seconds",
			Help:    "Duration of a single raw data migration step",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"step"}),
	}
}
