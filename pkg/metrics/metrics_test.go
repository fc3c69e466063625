package metrics

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type planFunc struct {
	name string
	run  func(ctx context.Context, rec *Recorder) error
}

func (p planFunc) Name() string { return p.name }

func (p planFunc) Run(ctx context.Context, rec *Recorder) error { return p.run(ctx, rec) }

func testCollector() *Collector {
	log := logrus.New()
	log.SetOutput(io.Discard)

	return NewCollector(log)
}

// fakeClock returns successive times spaced by step.
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	next := start

	return func() time.Time {
		t := next
		next = next.Add(step)

		return t
	}
}

func TestCollector_Measure(t *testing.T) {
	c := testCollector()
	start := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	c.now = fakeClock(start, 1500*time.Microsecond)

	m, err := c.Measure(context.Background(), planFunc{
		name: "rest",
		run: func(_ context.Context, rec *Recorder) error {
			rec.Request()
			rec.Received(120)
			rec.Orders(2)
			rec.Request()
			rec.Items(1)

			return nil
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "rest", m.Scenario)
	assert.Equal(t, start, m.StartTime)
	assert.Equal(t, 2, m.TotalRequests)
	assert.Equal(t, int64(120), m.TotalDataSizeBytes)
	assert.Equal(t, 2, m.OrdersRetrieved)
	assert.Equal(t, 1, m.ItemsRetrieved)
	assert.InDelta(t, 1.5, m.TotalTimeMs, 0.0001)
	assert.Empty(t, m.Error)
}

func TestCollector_MeasureFailureKeepsPartialCounts(t *testing.T) {
	fatal := errors.New("order service unreachable")

	m, err := testCollector().Measure(context.Background(), planFunc{
		name: "rest",
		run: func(_ context.Context, rec *Recorder) error {
			rec.Request()

			return fatal
		},
	})
	require.ErrorIs(t, err, fatal)
	require.NotNil(t, m)

	assert.Equal(t, 1, m.TotalRequests)
	assert.Zero(t, m.TotalDataSizeBytes)
	assert.Zero(t, m.TotalTimeMs, "a failed scenario has no comparable time")
	assert.Equal(t, "order service unreachable", m.Error)
}

func TestRecorder_FrozenAfterFinish(t *testing.T) {
	start := time.Now()
	rec := NewRecorder("graphql", start)

	rec.Request()

	first := rec.Finish(start.Add(10*time.Millisecond), nil)

	rec.Request()
	rec.Received(500)
	rec.Items(3)

	second := rec.Finish(start.Add(time.Hour), errors.New("late"))

	assert.Equal(t, first, second)
	assert.Equal(t, 1, second.TotalRequests)
	assert.InDelta(t, 10.0, second.TotalTimeMs, 0.0001)
	assert.Empty(t, second.Error)
}
