// Package metrics records publish outcomes as Prometheus metrics.
//
// Publishing is a batch job, so metrics are collected on a private registry
// and written once per run in the node_exporter textfile format.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/uhthomas/bazel-central-registry/publisher"
)

const namespace = "bcr_publish"

// Metrics holds the collectors for a publish run.
type Metrics struct {
	registry *prometheus.Registry

	filesUploaded prometheus.Counter
	filesDeleted  prometheus.Counter
	filesSkipped  prometheus.Counter
	bytesUploaded prometheus.Counter
	duration      prometheus.Gauge
	lastSuccess   prometheus.Gauge
	stepFailures  *prometheus.CounterVec
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		filesUploaded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_uploaded_total",
			Help:      "Number of objects uploaded.",
		}),
		filesDeleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_deleted_total",
			Help:      "Number of remote objects deleted by the modules mirror.",
		}),
		filesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_skipped_total",
			Help:      "Number of unchanged module files left in place.",
		}),
		bytesUploaded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_uploaded_total",
			Help:      "Number of bytes uploaded.",
		}),
		duration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "duration_seconds",
			Help:      "Wall time of the last publish run.",
		}),
		lastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful publish run.",
		}),
		stepFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_failures_total",
			Help:      "Number of failed publish steps by step and error code.",
		}, []string{"step", "code"}),
	}
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe records result and err from a publish run finished at now.
// result may be nil.
func (m *Metrics) Observe(result *publisher.Result, err error, now time.Time) {
	if result != nil {
		m.filesUploaded.Add(float64(result.FilesUploaded))
		m.filesDeleted.Add(float64(result.FilesDeleted))
		m.filesSkipped.Add(float64(result.FilesSkipped))
		m.bytesUploaded.Add(float64(result.BytesUploaded))
		m.duration.Set(result.Duration.Seconds())
	}

	if err == nil {
		if result == nil || !result.DryRun {
			m.lastSuccess.Set(float64(now.Unix()))
		}
		return
	}

	var perr *publisher.Error
	if errors.As(err, &perr) {
		m.stepFailures.WithLabelValues(string(perr.Step), string(perr.Code)).Inc()
		return
	}
	m.stepFailures.WithLabelValues("setup", string(publisher.CodeFor(err))).Inc()
}

// WriteTextfile atomically writes every metric to path.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
