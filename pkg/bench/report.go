package bench

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ethpandaops/gatewaybench/pkg/compare"
	"github.com/ethpandaops/gatewaybench/pkg/fsutil"
	"github.com/ethpandaops/gatewaybench/pkg/sysinfo"
)

// Report file names inside a run directory.
const (
	ReportJSONFile     = "report.json"
	ReportMarkdownFile = "report.md"
)

// Report is the outcome of one benchmark run.
type Report struct {
	RunID      string              `json:"run_id"`
	Dir        string              `json:"-"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
	UserID     string              `json:"user_id"`
	Services   map[string]string   `json:"services"`
	Setup      *SetupResult        `json:"setup"`
	System     *sysinfo.SystemInfo `json:"system,omitempty"`
	Comparison compare.Comparison  `json:"comparison"`
	Verdict    string              `json:"verdict"`
	Errors     []string            `json:"errors,omitempty"`
}

// WriteReport writes report.json and report.md into a directory named
// after the run under resultsDir and returns that directory.
func WriteReport(resultsDir string, r *Report, owner *fsutil.Owner) (string, error) {
	dir := filepath.Join(resultsDir, r.RunID)

	if err := fsutil.MkdirAll(dir, owner); err != nil {
		return "", fmt.Errorf("creating run dir: %w", err)
	}

	if err := fsutil.WriteJSON(filepath.Join(dir, ReportJSONFile), r, owner); err != nil {
		return "", fmt.Errorf("writing %s: %w", ReportJSONFile, err)
	}

	md := RenderMarkdown(r)
	if err := fsutil.WriteFile(filepath.Join(dir, ReportMarkdownFile), []byte(md), owner); err != nil {
		return "", fmt.Errorf("writing %s: %w", ReportMarkdownFile, err)
	}

	return dir, nil
}

// RenderMarkdown renders r as a markdown document.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	sb.Grow(4096)

	fmt.Fprintf(&sb, "# Benchmark Run: %s\n\n", r.RunID)

	writeOverview(&sb, r)
	writeComparison(&sb, r.Comparison)
	writeSetup(&sb, r.Setup)
	writeServices(&sb, r.Services)
	writeSystem(&sb, r.System)

	if len(r.Errors) > 0 {
		sb.WriteString("## Errors\n\n")

		for _, e := range r.Errors {
			fmt.Fprintf(&sb, "- %s\n", e)
		}

		sb.WriteByte('\n')
	}

	return sb.String()
}

func writeOverview(sb *strings.Builder, r *Report) {
	sb.WriteString("## Overview\n\n")
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|---|---|\n")
	fmt.Fprintf(sb, "| Verdict | %s |\n", r.Verdict)
	fmt.Fprintf(sb, "| User | `%s` |\n", r.UserID)

	if !r.StartedAt.IsZero() {
		fmt.Fprintf(sb, "| Started | %s |\n", r.StartedAt.Format("2006-01-02 15:04:05 UTC"))
	}

	if !r.FinishedAt.IsZero() && !r.StartedAt.IsZero() {
		fmt.Fprintf(sb, "| Duration | %s |\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	}

	sb.WriteByte('\n')
}

func writeComparison(sb *strings.Builder, c compare.Comparison) {
	sb.WriteString("## Comparison\n\n")
	sb.WriteString("| Metric | REST | GraphQL | Delta | Percent |\n")
	sb.WriteString("|---|---|---|---|---|\n")

	for _, res := range c.Results {
		percent := "n/a"
		if res.Percent != nil {
			percent = fmt.Sprintf("%.2f%%", *res.Percent)
		}

		fmt.Fprintf(sb, "| %s | %g | %g | %g | %s |\n",
			res.MetricName, res.RestValue, res.GraphQLValue, res.Delta, percent)
	}

	sb.WriteByte('\n')
}

func writeSetup(sb *strings.Builder, s *SetupResult) {
	if s == nil {
		return
	}

	sb.WriteString("## Setup\n\n")
	fmt.Fprintf(sb, "- Registered user: %t\n", s.Registered)
	fmt.Fprintf(sb, "- Products: %d\n", len(s.ProductIDs))
	fmt.Fprintf(sb, "- Orders created: %d\n", len(s.OrderIDs))

	for _, w := range s.Warnings {
		fmt.Fprintf(sb, "- ⚠️ %s\n", w)
	}

	sb.WriteByte('\n')
}

func writeServices(sb *strings.Builder, svcs map[string]string) {
	if len(svcs) == 0 {
		return
	}

	names := make([]string, 0, len(svcs))
	for name := range svcs {
		names = append(names, name)
	}

	sort.Strings(names)

	sb.WriteString("## Services\n\n")
	sb.WriteString("| Service | URL |\n")
	sb.WriteString("|---|---|\n")

	for _, name := range names {
		fmt.Fprintf(sb, "| %s | %s |\n", name, svcs[name])
	}

	sb.WriteByte('\n')
}

func writeSystem(sb *strings.Builder, sys *sysinfo.SystemInfo) {
	if sys == nil {
		return
	}

	sb.WriteString("## System\n\n")
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|---|---|\n")

	if sys.Hostname != "" {
		fmt.Fprintf(sb, "| Hostname | %s |\n", sys.Hostname)
	}

	if sys.CPUModel != "" {
		fmt.Fprintf(sb, "| CPU | %s |\n", sys.CPUModel)
	}

	if sys.CPUCores > 0 {
		fmt.Fprintf(sb, "| Cores | %d |\n", sys.CPUCores)
	}

	if sys.MemoryTotalGB > 0 {
		fmt.Fprintf(sb, "| Memory | %.1f GB |\n", sys.MemoryTotalGB)
	}

	if sys.Platform != "" {
		platform := sys.Platform
		if sys.PlatformVersion != "" {
			platform += " " + sys.PlatformVersion
		}

		fmt.Fprintf(sb, "| Platform | %s |\n", platform)
	}

	fmt.Fprintf(sb, "| OS / Arch | %s / %s |\n", sys.OS, sys.Arch)

	sb.WriteByte('\n')
}
