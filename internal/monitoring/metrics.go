// Package monitoring exposes run metrics and a small operational HTTP
// surface for the harvester.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors the pipeline records into. Each
// Metrics owns its registry so parallel runs and tests never fight over
// global registration.
type Metrics struct {
	registry *prometheus.Registry

	PagesFetched     prometheus.Counter
	FetchErrors      *prometheus.CounterVec
	FetchDuration    prometheus.Histogram
	PagesParsed      prometheus.Counter
	ParseErrors      prometheus.Counter
	RecordsExtracted prometheus.Counter
	ExtractionErrors prometheus.Counter
	Identities       prometheus.Gauge
	RecordsWritten   prometheus.Counter
	WriteErrors      prometheus.Counter
	QueueDepth       prometheus.Gauge
}

// NewMetrics creates and registers the collector set.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(registry)

	const namespace = "recordharvester"

	return &Metrics{
		registry: registry,
		PagesFetched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_fetched_total",
			Help:      "Pages fetched successfully",
		}),
		FetchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Fetch failures by error kind",
		}, []string{"kind"}),
		FetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Wall time per successful fetch including retries",
			Buckets:   prometheus.DefBuckets,
		}),
		PagesParsed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_parsed_total",
			Help:      "Pages parsed into record blocks",
		}),
		ParseErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_errors_total",
			Help:      "Pages whose structure did not match the template",
		}),
		RecordsExtracted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_extracted_total",
			Help:      "Raw blocks converted into normalized records",
		}),
		ExtractionErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_errors_total",
			Help:      "Blocks with no extractable field",
		}),
		Identities: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "identities",
			Help:      "Distinct merged identities in the working set",
		}),
		RecordsWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_written_total",
			Help:      "Merged records delivered to the sink",
		}),
		WriteErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "write_errors_total",
			Help:      "Sink write failures",
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "URLs waiting to be fetched",
		}),
	}
}

// Registry exposes the backing registry for the metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
