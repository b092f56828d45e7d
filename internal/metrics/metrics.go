// Package metrics exposes reasoner activity as Prometheus collectors.
//
// A nil *Metrics is valid and records nothing, so callers wire metrics only
// when a registry is configured.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"saturn/internal/incremental"
	"saturn/internal/saturation"
	"saturn/internal/taxonomy"
)

const namespace = "saturn"

// Metrics holds the reasoner collectors.
type Metrics struct {
	runsTotal        *prometheus.CounterVec
	runDuration      prometheus.Histogram
	conclusionsTotal *prometheus.CounterVec
	duplicatesTotal  prometheus.Counter
	contextsDrained  prometheus.Counter
	stageDuration    *prometheus.HistogramVec
	maintenanceTotal *prometheus.CounterVec
	taxonomyNodes    prometheus.Gauge
	taxonomyInstance prometheus.Gauge
	unsatisfiable    prometheus.Gauge
}

// New creates the collectors and registers them with reg. A nil registerer
// yields a nil *Metrics.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		return nil, nil
	}

	m := &Metrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "saturation",
			Name:      "runs_total",
			Help:      "Saturation runs by final status",
		}, []string{"status"}),

		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "saturation",
			Name:      "run_duration_seconds",
			Help:      "Wall time of saturation runs",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120},
		}),

		conclusionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "saturation",
			Name:      "conclusions_total",
			Help:      "New conclusions processed, by conclusion kind",
		}, []string{"kind"}),

		duplicatesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "saturation",
			Name:      "duplicate_conclusions_total",
			Help:      "Conclusions dropped because the context already held them",
		}),

		contextsDrained: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "saturation",
			Name:      "contexts_drained_total",
			Help:      "Context claims that drained a context queue",
		}),

		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "incremental",
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each incremental maintenance stage",
			Buckets:   []float64{0.0001, 0.001, 0.01, 0.1, 1, 10},
		}, []string{"stage"}),

		maintenanceTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "incremental",
			Name:      "contexts_total",
			Help:      "Contexts touched by incremental maintenance, by action",
		}, []string{"action"}),

		taxonomyNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "taxonomy",
			Name:      "nodes",
			Help:      "Class nodes in the last built taxonomy",
		}),

		taxonomyInstance: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "taxonomy",
			Name:      "instance_nodes",
			Help:      "Individual nodes in the last built taxonomy",
		}),

		unsatisfiable: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "taxonomy",
			Name:      "unsatisfiable_classes",
			Help:      "Named classes equivalent to owl:Nothing, owl:Nothing excluded",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.runsTotal,
		m.runDuration,
		m.conclusionsTotal,
		m.duplicatesTotal,
		m.contextsDrained,
		m.stageDuration,
		m.maintenanceTotal,
		m.taxonomyNodes,
		m.taxonomyInstance,
		m.unsatisfiable,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveRun records one saturation run.
func (m *Metrics) ObserveRun(res saturation.Result) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(res.Status.String()).Inc()
	m.runDuration.Observe(res.Stats.Duration.Seconds())
	for kind, n := range res.Stats.ByKind {
		m.conclusionsTotal.WithLabelValues(kind.String()).Add(float64(n))
	}
	m.duplicatesTotal.Add(float64(res.Stats.Duplicates))
	m.contextsDrained.Add(float64(res.Stats.ContextsDrained))
}

// ObserveMaintenance records one incremental pass, including its
// saturation run.
func (m *Metrics) ObserveMaintenance(rep incremental.Report) {
	if m == nil {
		return
	}
	for stage, d := range rep.Stages {
		m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	}
	m.maintenanceTotal.WithLabelValues("seeded").Add(float64(rep.Seeds))
	m.maintenanceTotal.WithLabelValues("cleared").Add(float64(rep.Cleared))
	m.maintenanceTotal.WithLabelValues("dropped").Add(float64(rep.Dropped))
	m.maintenanceTotal.WithLabelValues("refired").Add(float64(rep.Refired))
	m.ObserveRun(rep.Result)
}

// ObserveTaxonomy records the shape of a freshly built taxonomy.
func (m *Metrics) ObserveTaxonomy(t *taxonomy.Taxonomy) {
	if m == nil || t == nil {
		return
	}
	m.taxonomyNodes.Set(float64(len(t.Nodes())))
	m.taxonomyInstance.Set(float64(len(t.Instances())))
	m.unsatisfiable.Set(float64(len(t.Bottom().Members()) - 1))
}
