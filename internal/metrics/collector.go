// Package metrics publishes per-run results to a Prometheus pushgateway.
// Suite runs are batch jobs, so metrics are collected into an owned
// registry and pushed once at the end instead of being scraped.
package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/bryantbiggs/aws-for-fluent-bit/internal/validation"
)

const pushJobName = "fluent-bit-load-test"

// Collector accumulates one run's results.
type Collector struct {
	registry *prometheus.Registry

	cases     *prometheus.CounterVec
	missing   *prometheus.GaugeVec
	duplicate *prometheus.GaugeVec
	passed    prometheus.Gauge
}

// NewCollector builds a collector with an empty registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		cases: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "load_test_cases_total",
				Help: "Validated test cases by outcome",
			},
			[]string{"source", "throughput", "result"},
		),
		missing: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "load_test_missing_records",
				Help: "Records lost between the logger and the destination",
			},
			[]string{"source", "throughput"},
		),
		duplicate: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "load_test_duplicate_records",
				Help: "Records delivered more than once",
			},
			[]string{"source", "throughput"},
		),
		passed: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "load_test_run_passed",
				Help: "Whether the run cleared the validation bar",
			},
		),
	}
	c.registry.MustRegister(c.cases, c.missing, c.duplicate, c.passed)
	return c
}

// ObserveCase records one validated case. Counts that could not be parsed
// from the validator report are skipped rather than reported as zero.
func (c *Collector) ObserveCase(v *validation.Case, failed bool) {
	result := "pass"
	if failed {
		result = "fail"
	}
	c.cases.WithLabelValues(v.LoggerName, v.Throughput, result).Inc()

	if missing, err := v.Output.Int(validation.KeyMissing); err == nil {
		c.missing.WithLabelValues(v.LoggerName, v.Throughput).Set(float64(missing))
	}
	if duplicate, err := v.Output.Int(validation.KeyDuplicate); err == nil {
		c.duplicate.WithLabelValues(v.LoggerName, v.Throughput).Set(float64(duplicate))
	}
}

// SetRunPassed records the overall verdict.
func (c *Collector) SetRunPassed(passed bool) {
	if passed {
		c.passed.Set(1)
	} else {
		c.passed.Set(0)
	}
}

// Push publishes the collected run to a pushgateway, grouped by platform
// and plugin so consecutive runs do not clobber each other.
func (c *Collector) Push(ctx context.Context, url, platform, plugin string) error {
	err := push.New(url, pushJobName).
		Gatherer(c.registry).
		Grouping("platform", platform).
		Grouping("plugin", plugin).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("metrics: push to %s: %w", url, err)
	}
	return nil
}
