// Package compare derives the difference between the REST fan-out and the
// GraphQL aggregated measurements.
package compare

import (
	"fmt"
	"math"
	"strings"

	"github.com/ethpandaops/gatewaybench/pkg/metrics"
)

// Compared metric names.
const (
	MetricTotalTimeMs     = "total_time_ms"
	MetricTotalRequests   = "total_requests"
	MetricOrdersRetrieved = "orders_retrieved"
	MetricItemsRetrieved  = "items_retrieved"
	MetricTotalDataSize   = "total_data_size_bytes"
)

// ComparisonResult is the difference of one metric. Delta is REST minus
// GraphQL. Percent is nil when it was not computed.
type ComparisonResult struct {
	MetricName   string   `json:"metric_name"`
	RestValue    float64  `json:"rest_value"`
	GraphQLValue float64  `json:"graphql_value"`
	Delta        float64  `json:"delta"`
	Percent      *float64 `json:"percent,omitempty"`
}

// Comparison is the full result of comparing two scenario measurements.
type Comparison struct {
	Rest    metrics.ScenarioMetrics `json:"rest"`
	GraphQL metrics.ScenarioMetrics `json:"graphql"`
	Results []ComparisonResult      `json:"results"`

	// TimePercent is the share of REST time saved by GraphQL. Nil when the
	// REST time is zero or either scenario failed.
	TimePercent *float64 `json:"time_percent,omitempty"`
	// RequestReductionPercent is the share of REST requests saved by
	// GraphQL. Nil when REST issued no requests.
	RequestReductionPercent *float64 `json:"request_reduction_percent,omitempty"`
}

// Compare builds the comparison of rest against graphql.
func Compare(rest, graphql metrics.ScenarioMetrics) Comparison {
	c := Comparison{
		Rest:    rest,
		GraphQL: graphql,
	}

	if rest.Error == "" && graphql.Error == "" && rest.TotalTimeMs != 0 {
		p := round2((rest.TotalTimeMs - graphql.TotalTimeMs) / rest.TotalTimeMs * 100)
		c.TimePercent = &p
	}

	if rest.TotalRequests != 0 {
		p := round2(float64(rest.TotalRequests-graphql.TotalRequests) / float64(rest.TotalRequests) * 100)
		c.RequestReductionPercent = &p
	}

	c.Results = []ComparisonResult{
		result(MetricTotalTimeMs, rest.TotalTimeMs, graphql.TotalTimeMs, c.TimePercent),
		result(MetricTotalRequests, float64(rest.TotalRequests), float64(graphql.TotalRequests), c.RequestReductionPercent),
		result(MetricOrdersRetrieved, float64(rest.OrdersRetrieved), float64(graphql.OrdersRetrieved), nil),
		result(MetricItemsRetrieved, float64(rest.ItemsRetrieved), float64(graphql.ItemsRetrieved), nil),
		result(MetricTotalDataSize, float64(rest.TotalDataSizeBytes), float64(graphql.TotalDataSizeBytes), nil),
	}

	return c
}

func result(name string, rest, graphql float64, percent *float64) ComparisonResult {
	return ComparisonResult{
		MetricName:   name,
		RestValue:    rest,
		GraphQLValue: graphql,
		Delta:        rest - graphql,
		Percent:      percent,
	}
}

// Result returns the comparison of the named metric.
func (c Comparison) Result(name string) (ComparisonResult, bool) {
	for _, r := range c.Results {
		if r.MetricName == name {
			return r, true
		}
	}

	return ComparisonResult{}, false
}

// Failed lists the scenarios that aborted.
func (c Comparison) Failed() []string {
	var failed []string

	for _, m := range []metrics.ScenarioMetrics{c.Rest, c.GraphQL} {
		if m.Error != "" {
			failed = append(failed, m.Scenario)
		}
	}

	return failed
}

// Verdict summarises which scenario was faster. A failed scenario makes the
// comparison unavailable. Equal times win over a missing percentage.
func (c Comparison) Verdict() string {
	if failed := c.Failed(); len(failed) > 0 {
		return fmt.Sprintf("comparison unavailable: scenario %s failed", strings.Join(failed, ", "))
	}

	delta := c.Rest.TotalTimeMs - c.GraphQL.TotalTimeMs

	switch {
	case delta == 0:
		return "same execution time"
	case c.TimePercent == nil:
		return "time comparison unavailable"
	case delta > 0:
		return fmt.Sprintf("GraphQL faster by %.2f%%", *c.TimePercent)
	default:
		return fmt.Sprintf("REST faster by %.2f%%", math.Abs(*c.TimePercent))
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
