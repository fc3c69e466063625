// Package metrics measures benchmark scenarios: wall-clock time, request
// count, payload size and how much data each scenario retrieved.
package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ScenarioMetrics is the measurement of one scenario execution.
type ScenarioMetrics struct {
	Scenario           string    `json:"scenario"`
	StartTime          time.Time `json:"start_time"`
	TotalRequests      int       `json:"total_requests"`
	TotalTimeMs        float64   `json:"total_time_ms"`
	TotalDataSizeBytes int64     `json:"total_data_size_bytes"`
	OrdersRetrieved    int       `json:"orders_retrieved"`
	ItemsRetrieved     int       `json:"items_retrieved"`
	Error              string    `json:"error,omitempty"`
}

// Plan is a scenario that can be measured.
type Plan interface {
	Name() string
	Run(ctx context.Context, rec *Recorder) error
}

// Recorder accumulates counters for a single scenario. Once Finish has been
// called further updates are ignored.
type Recorder struct {
	mu       sync.Mutex
	m        ScenarioMetrics
	started  time.Time
	finished bool
}

// NewRecorder starts recording a scenario at the given time.
func NewRecorder(scenario string, start time.Time) *Recorder {
	return &Recorder{
		m: ScenarioMetrics{
			Scenario:  scenario,
			StartTime: start,
		},
		started: start,
	}
}

// Request counts one issued HTTP call.
func (r *Recorder) Request() {
	r.update(func(m *ScenarioMetrics) { m.TotalRequests++ })
}

// Received adds the body size of a successfully received response.
func (r *Recorder) Received(bytes int64) {
	r.update(func(m *ScenarioMetrics) { m.TotalDataSizeBytes += bytes })
}

// Orders adds retrieved orders.
func (r *Recorder) Orders(n int) {
	r.update(func(m *ScenarioMetrics) { m.OrdersRetrieved += n })
}

// Items adds retrieved order items.
func (r *Recorder) Items(n int) {
	r.update(func(m *ScenarioMetrics) { m.ItemsRetrieved += n })
}

func (r *Recorder) update(fn func(m *ScenarioMetrics)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finished {
		return
	}

	fn(&r.m)
}

// Finish freezes the recorder with the elapsed time up to end and returns
// the final metrics. A failed scenario keeps its counts but no time.
// Calling it again returns the same value.
func (r *Recorder) Finish(end time.Time, err error) ScenarioMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.finished {
		if err != nil {
			r.m.Error = err.Error()
		} else {
			r.m.TotalTimeMs = float64(end.Sub(r.started).Microseconds()) / 1000
		}

		r.finished = true
	}

	return r.m
}

// Collector runs plans and measures them.
type Collector struct {
	log logrus.FieldLogger
	now func() time.Time
}

// NewCollector creates a new collector.
func NewCollector(log logrus.FieldLogger) *Collector {
	return &Collector{
		log: log.WithField("component", "metrics"),
		now: time.Now,
	}
}

// Measure runs plan and returns its metrics. When the plan fails the
// partial metrics are returned together with the error.
func (c *Collector) Measure(ctx context.Context, plan Plan) (*ScenarioMetrics, error) {
	log := c.log.WithField("scenario", plan.Name())
	log.Info("Running scenario")

	rec := NewRecorder(plan.Name(), c.now())

	runErr := plan.Run(ctx, rec)

	m := rec.Finish(c.now(), runErr)

	fields := logrus.Fields{
		"requests": m.TotalRequests,
		"time_ms":  m.TotalTimeMs,
		"bytes":    m.TotalDataSizeBytes,
		"orders":   m.OrdersRetrieved,
		"items":    m.ItemsRetrieved,
	}

	if runErr != nil {
		log.WithFields(fields).WithError(runErr).Error("Scenario failed")

		return &m, fmt.Errorf("scenario %s: %w", plan.Name(), runErr)
	}

	log.WithFields(fields).Info("Scenario completed")

	return &m, nil
}
