// Package bench runs the REST versus GraphQL benchmark against a running
// set of services: health checks, data setup, both scenarios, comparison
// and report.
package bench

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ethpandaops/gatewaybench/pkg/compare"
	"github.com/ethpandaops/gatewaybench/pkg/config"
	"github.com/ethpandaops/gatewaybench/pkg/fsutil"
	"github.com/ethpandaops/gatewaybench/pkg/metrics"
	"github.com/ethpandaops/gatewaybench/pkg/scenario"
	"github.com/ethpandaops/gatewaybench/pkg/services"
	"github.com/ethpandaops/gatewaybench/pkg/sysinfo"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrServiceUnavailable is returned when a required service fails its
// health check. No setup or scenario runs after it.
var ErrServiceUnavailable = errors.New("required services unavailable")

// Config for the harness.
type Config struct {
	Benchmark config.BenchmarkConfig
	Owner     *fsutil.Owner
	// Console receives the comparison table. Nil disables it.
	Console io.Writer
	// HTTPClient is used for every service call. Nil uses a default client.
	HTTPClient *http.Client
}

// Harness runs a complete benchmark.
type Harness struct {
	log       logrus.FieldLogger
	cfg       *Config
	client    *services.Client
	collector *metrics.Collector
	now       func() time.Time
}

// NewHarness creates a new benchmark harness.
func NewHarness(log logrus.FieldLogger, cfg *Config) *Harness {
	return &Harness{
		log:       log.WithField("component", "bench"),
		cfg:       cfg,
		client:    services.NewClient(log, &cfg.Benchmark, cfg.HTTPClient),
		collector: metrics.NewCollector(log),
		now:       time.Now,
	}
}

// Run executes the benchmark and writes its report. It fails only when a
// required service is unavailable or the report cannot be written; a
// scenario failure is recorded in the report instead.
func (h *Harness) Run(ctx context.Context) (*Report, error) {
	started := h.now()
	runID := fmt.Sprintf("%s-%s", started.UTC().Format("20060102-150405"), uuid.NewString()[:8])

	log := h.log.WithField("run_id", runID)
	log.Info("Starting benchmark")

	if err := h.CheckHealth(ctx); err != nil {
		return nil, err
	}

	setup := h.Setup(ctx)

	report := &Report{
		RunID:     runID,
		StartedAt: started.UTC(),
		UserID:    setup.UserID,
		Services:  h.serviceURLs(),
		Setup:     setup,
		System:    sysinfo.Collect(ctx, h.log),
	}

	rest, err := h.collector.Measure(ctx, scenario.NewFanOut(h.log, h.client, setup.UserID))
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
	}

	graphql, err := h.collector.Measure(ctx, scenario.NewAggregated(h.log, h.client, setup.UserID))
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
	}

	report.Comparison = compare.Compare(*rest, *graphql)
	report.Verdict = report.Comparison.Verdict()
	report.FinishedAt = h.now().UTC()

	if h.cfg.Console != nil {
		if err := compare.Render(h.cfg.Console, report.Comparison); err != nil {
			log.WithError(err).Warn("Failed to render comparison")
		}
	}

	dir, err := WriteReport(h.cfg.Benchmark.ResultsDir, report, h.cfg.Owner)
	if err != nil {
		return report, fmt.Errorf("writing report: %w", err)
	}

	report.Dir = dir

	log.WithFields(logrus.Fields{
		"dir":     dir,
		"verdict": report.Verdict,
		"errors":  len(report.Errors),
	}).Info("Benchmark completed")

	return report, nil
}

func (h *Harness) serviceURLs() map[string]string {
	out := make(map[string]string, len(h.cfg.Benchmark.Services))
	for name := range h.cfg.Benchmark.Services {
		out[name] = h.cfg.Benchmark.ServiceURL(name)
	}

	return out
}
