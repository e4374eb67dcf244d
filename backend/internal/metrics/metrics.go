package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ambled/genealogy-neo4j-import/backend/internal/constants"
	"github.com/ambled/genealogy-neo4j-import/backend/internal/importer"
)

// Import outcomes
const (
	OutcomeCommitted = "committed"
	OutcomeDryRun    = "dry_run"
	OutcomeFailed    = "failed"
)

type metrics struct {
	importsTotal  *prometheus.CounterVec
	nodesTotal    *prometheus.CounterVec
	relsTotal     prometheus.Counter
	importLatency *prometheus.HistogramVec
	inProgress    prometheus.Gauge
}

var metricsSingleton = sync.OnceValue(func() *metrics {
	return &metrics{
		importsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gedimport",
			Name:      "imports_total",
			Help:      "Total number of imports by outcome.",
		}, []string{"outcome"}),
		nodesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gedimport",
			Name:      "nodes_total",
			Help:      "Nodes touched by committed imports.",
		}, []string{"label", "action"}),
		relsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "gedimport",
			Name:      "relationships_total",
			Help:      "Relationships created by committed imports.",
		}),
		importLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gedimport",
			Name:      "import_duration_seconds",
			Help:      "Latency distribution for imports.",
			Buckets: []float64{
				0.01, 0.05, 0.1, 0.5,
				1, 5, 10, 30,
				60, 300,
			},
		}, []string{"outcome"}),
		inProgress: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "gedimport",
			Name:      "import_in_progress",
			Help:      "Whether an import is currently running (1/0).",
		}),
	}
})

func getMetrics() *metrics {
	return metricsSingleton()
}

// ImportStarted marks an import as running
func ImportStarted() {
	getMetrics().inProgress.Set(1)
}

// ImportFinished records the outcome of an import. result is ignored when
// err is set.
func ImportFinished(result *importer.Result, err error, elapsed time.Duration) {
	m := getMetrics()
	m.inProgress.Set(0)

	outcome := OutcomeCommitted
	switch {
	case err != nil:
		outcome = OutcomeFailed
	case result.DryRun:
		outcome = OutcomeDryRun
	}
	m.importsTotal.WithLabelValues(outcome).Inc()
	m.importLatency.WithLabelValues(outcome).Observe(elapsed.Seconds())

	if outcome != OutcomeCommitted {
		return
	}
	m.nodesTotal.WithLabelValues(constants.LabelFamily, "created").Add(float64(result.Families))
	m.nodesTotal.WithLabelValues(constants.LabelPerson, "created").Add(float64(result.PersonsCreated))
	m.nodesTotal.WithLabelValues(constants.LabelPerson, "reused").Add(float64(result.PersonsReused))
	m.nodesTotal.WithLabelValues(constants.LabelSource, "created").Add(float64(result.SourcesCreated))
	m.nodesTotal.WithLabelValues(constants.LabelSource, "reused").Add(float64(result.SourcesReused))
	m.nodesTotal.WithLabelValues(constants.LabelPlace, "created").Add(float64(result.PlacesCreated))
	m.nodesTotal.WithLabelValues(constants.LabelPlace, "reused").Add(float64(result.PlacesReused))
	m.nodesTotal.WithLabelValues(constants.LabelEvent, "created").Add(float64(result.Events))
	m.relsTotal.Add(float64(result.Relationships))
}
