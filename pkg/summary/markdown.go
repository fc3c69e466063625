package summary

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders s as a markdown document.
func RenderMarkdown(s RunSummary, runID string, startedAt time.Time) string {
	var sb strings.Builder

	sb.Grow(1024)

	fmt.Fprintf(&sb, "# Test Run: %s\n\n", runID)

	sb.WriteString("## Overview\n\n")
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|---|---|\n")

	status := "passed"
	if s.OverallExitCode != 0 {
		status = "failed"
	}

	fmt.Fprintf(&sb, "| Status | %s |\n", status)

	if !startedAt.IsZero() {
		fmt.Fprintf(&sb, "| Started | %s |\n", startedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	}

	fmt.Fprintf(&sb, "| Units | %d |\n", s.Total())
	fmt.Fprintf(&sb, "| Passed | %d |\n", s.PassedCount())
	fmt.Fprintf(&sb, "| Failed | %d |\n", s.FailedCount)
	sb.WriteByte('\n')

	if s.Total() == 0 {
		sb.WriteString("No test units were executed.\n")

		return sb.String()
	}

	sb.WriteString("## Units\n\n")
	sb.WriteString("| Unit | Result | Exit Code | Duration |\n")
	sb.WriteString("|---|---|---|---|\n")

	for _, r := range s.Results {
		result := "✅ pass"
		if !r.Passed() {
			result = "❌ fail"
		}

		fmt.Fprintf(&sb, "| `%s` | %s | %d | %s |\n", r.Name, result, r.ExitCode, formatDuration(r.Duration))
	}

	if failed := s.Failed(); len(failed) > 0 {
		sb.WriteString("\n## Failures\n\n")

		for _, r := range failed {
			fmt.Fprintf(&sb, "- `%s` exited with %d, see `%s`\n", r.Name, r.ExitCode, r.LogPath)
		}
	}

	return sb.String()
}
