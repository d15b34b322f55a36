// Package metrics exports batch pipeline activity as Prometheus metrics.
//
//	m := metrics.New(prometheus.DefaultRegisterer, params.ShardIndex())
//	br, _ := reader.NewDataReader(params, core, reader.WithObserver(m))
package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/grokify/omnibatch"
	"github.com/grokify/omnibatch/reader"
)

// Metrics holds the pipeline metrics of one worker. It implements
// reader.Observer.
type Metrics struct {
	BatchesTotal   prometheus.Counter
	InstancesTotal prometheus.Counter
	PaddingTotal   prometheus.Counter
	SkippedTotal   prometheus.Counter
	ErrorsTotal    *prometheus.CounterVec
	BatchSize      prometheus.Histogram
}

// New registers the pipeline metrics with reg, labelled with the shard
// index. A nil reg creates unregistered metrics.
func New(reg prometheus.Registerer, shard int) *Metrics {
	factory := promauto.With(reg)
	labels := prometheus.Labels{"shard": strconv.Itoa(shard)}

	return &Metrics{
		BatchesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name:        "omnibatch_batches_total",
			Help:        "Total number of batches returned",
			ConstLabels: labels,
		}),
		InstancesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name:        "omnibatch_instances_total",
			Help:        "Total number of real instances returned in batches",
			ConstLabels: labels,
		}),
		PaddingTotal: factory.NewCounter(prometheus.CounterOpts{
			Name:        "omnibatch_padding_instances_total",
			Help:        "Total number of filler instances added to padded batches",
			ConstLabels: labels,
		}),
		SkippedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name:        "omnibatch_skipped_instances_total",
			Help:        "Total number of instances discarded by the skip phase",
			ConstLabels: labels,
		}),
		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "omnibatch_read_errors_total",
			Help:        "Total number of read errors by kind",
			ConstLabels: labels,
		}, []string{"kind"}),
		BatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:        "omnibatch_batch_size",
			Help:        "Number of instances per batch, padding included",
			Buckets:     prometheus.ExponentialBuckets(1, 2, 14),
			ConstLabels: labels,
		}),
	}
}

// BatchRead implements reader.Observer.
func (m *Metrics) BatchRead(b *omnibatch.Batch) {
	m.BatchesTotal.Inc()
	m.InstancesTotal.Add(float64(len(b.Real())))
	m.PaddingTotal.Add(float64(b.NumPadding))
	m.BatchSize.Observe(float64(b.Size()))
}

// InstancesSkipped implements reader.Observer.
func (m *Metrics) InstancesSkipped(n int64) {
	m.SkippedTotal.Add(float64(n))
}

// ReadFailed implements reader.Observer.
func (m *Metrics) ReadFailed(err error) {
	m.ErrorsTotal.WithLabelValues(ErrorKind(err)).Inc()
}

// ErrorKind classifies a pipeline error for the errors metric.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, omnibatch.ErrSchema):
		return "schema"
	case errors.Is(err, omnibatch.ErrInvalidInstance):
		return "invalid_instance"
	case errors.Is(err, omnibatch.ErrNotFound):
		return "not_found"
	case errors.Is(err, omnibatch.ErrPermissionDenied):
		return "permission_denied"
	default:
		return "other"
	}
}

var _ reader.Observer = (*Metrics)(nil)
