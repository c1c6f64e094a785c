// Package metrics exposes engine counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "payroll"

// Outcome labels.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Recorder owns a private registry so tests and multiple servers in one
// process never collide on the default one.
//
// All methods are safe on a nil *Recorder, which records nothing.
type Recorder struct {
	registry *prometheus.Registry

	productionEntries *prometheus.CounterVec
	dayTransitions    *prometheus.CounterVec
	payrollRuns       *prometheus.CounterVec
	recordsGenerated  prometheus.Counter
	runDuration       prometheus.Histogram
	netPayTotal       prometheus.Counter
}

func New() *Recorder {
	r := &Recorder{registry: prometheus.NewRegistry()}

	r.productionEntries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "production",
		Name:      "entries_total",
		Help:      "Production entry writes by operation and outcome.",
	}, []string{"operation", "outcome"})

	r.dayTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "production",
		Name:      "day_transitions_total",
		Help:      "Production day lock state changes.",
	}, []string{"transition"})

	r.payrollRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_total",
		Help:      "Payroll period generations by outcome.",
	}, []string{"outcome"})

	r.recordsGenerated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_generated_total",
		Help:      "Payroll records written.",
	})

	r.runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Wall time of a payroll period generation.",
		Buckets:   prometheus.DefBuckets,
	})

	r.netPayTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "net_pay_total",
		Help:      "Sum of net pay across generated records, in currency units.",
	})

	r.registry.MustRegister(
		r.productionEntries,
		r.dayTransitions,
		r.payrollRuns,
		r.recordsGenerated,
		r.runDuration,
		r.netPayTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry exposes the underlying registry for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Recorder) ProductionEntry(operation, outcome string) {
	if r == nil {
		return
	}
	r.productionEntries.WithLabelValues(operation, outcome).Inc()
}

func (r *Recorder) DayTransition(transition string) {
	if r == nil {
		return
	}
	r.dayTransitions.WithLabelValues(transition).Inc()
}

// PayrollRun records one generation attempt.
func (r *Recorder) PayrollRun(outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.payrollRuns.WithLabelValues(outcome).Inc()
	r.runDuration.Observe(elapsed.Seconds())
}

func (r *Recorder) RecordGenerated(netPay float64) {
	if r == nil {
		return
	}
	r.recordsGenerated.Inc()
	r.netPayTotal.Add(netPay)
}
