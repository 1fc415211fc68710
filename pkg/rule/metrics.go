package rule

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	invocations *prometheus.CounterVec
	defects     *prometheus.CounterVec
	runDuration prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	if reg == nil {
		return nil, nil
	}
	invocations, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ilscan_rule_invocations_total",
		Help: "Rule invocations by rule and outcome",
	}, []string{"rule", "outcome"}))
	if err != nil {
		return nil, err
	}
	defects, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ilscan_rule_defects_total",
		Help: "Defects reported by rule, severity and suppression",
	}, []string{"rule", "severity", "suppressed"}))
	if err != nil {
		return nil, err
	}
	runDuration, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ilscan_run_duration_seconds",
		Help:    "Duration of complete rule runs",
		Buckets: prometheus.DefBuckets,
	}))
	if err != nil {
		return nil, err
	}
	return &metrics{invocations: invocations, defects: defects, runDuration: runDuration}, nil
}

// register adds c to reg, reusing an identical collector that is already
// registered so several runners can share one registry.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, err
	}
	return c, nil
}

func (m *metrics) outcome(rule string, o Outcome) {
	if m == nil {
		return
	}
	m.invocations.WithLabelValues(rule, o.String()).Inc()
}

func (m *metrics) defect(d Defect, suppressed bool) {
	if m == nil {
		return
	}
	m.defects.WithLabelValues(d.Rule, d.Severity.String(), strconv.FormatBool(suppressed)).Inc()
}

func (m *metrics) observeRun(start time.Time) {
	if m == nil {
		return
	}
	m.runDuration.Observe(time.Since(start).Seconds())
}
