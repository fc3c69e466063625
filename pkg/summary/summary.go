// Package summary aggregates executed test units into a run summary and
// renders it for the console, markdown and JUnit consumers.
package summary

import (
	"github.com/ethpandaops/gatewaybench/pkg/executor"
)

// RunSummary is the aggregated outcome of an orchestrator run. It is built
// once by Aggregate and not modified afterwards.
type RunSummary struct {
	Results         []executor.TestResult `json:"results"`
	FailedCount     int                   `json:"failed_count"`
	OverallExitCode int                   `json:"overall_exit_code"`
}

// Aggregate derives a RunSummary from results, keeping their order.
func Aggregate(results []executor.TestResult) RunSummary {
	s := RunSummary{
		Results: make([]executor.TestResult, len(results)),
	}

	copy(s.Results, results)

	for _, r := range results {
		if !r.Passed() {
			s.FailedCount++
		}
	}

	if s.FailedCount > 0 {
		s.OverallExitCode = 1
	}

	return s
}

// Total returns the number of executed units.
func (s RunSummary) Total() int {
	return len(s.Results)
}

// PassedCount returns the number of units that exited 0.
func (s RunSummary) PassedCount() int {
	return len(s.Results) - s.FailedCount
}

// Passed returns the results of units that exited 0.
func (s RunSummary) Passed() []executor.TestResult {
	return s.filter(true)
}

// Failed returns the results of units that exited non-zero.
func (s RunSummary) Failed() []executor.TestResult {
	return s.filter(false)
}

func (s RunSummary) filter(passed bool) []executor.TestResult {
	out := make([]executor.TestResult, 0, len(s.Results))

	for _, r := range s.Results {
		if r.Passed() == passed {
			out = append(out, r)
		}
	}

	return out
}
