package summary

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/docker/go-units"
	"github.com/olekukonko/tablewriter"
)

// WriteFailureReport prints every failed unit with its exit code and log
// path, followed by a totals line.
func WriteFailureReport(w io.Writer, s RunSummary) error {
	failed := s.Failed()

	if len(failed) > 0 {
		if _, err := fmt.Fprintf(w, "\nFailed test units (%d):\n", len(failed)); err != nil {
			return err
		}

		for _, r := range failed {
			if _, err := fmt.Fprintf(w, "  %s: exit code %d, log: %s\n", r.Name, r.ExitCode, r.LogPath); err != nil {
				return err
			}
		}
	}

	_, err := fmt.Fprintf(w, "\n%d units, %d passed, %d failed\n", s.Total(), s.PassedCount(), s.FailedCount)

	return err
}

// RenderTable writes a per-unit result table.
func RenderTable(w io.Writer, s RunSummary) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Unit", "Result", "Exit", "Duration"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("│")
	table.SetRowSeparator("─")
	table.SetHeaderLine(true)
	table.SetBorder(true)
	table.SetTablePadding(" ")
	table.SetNoWhiteSpace(false)

	rows := make([][]string, 0, len(s.Results))

	for _, r := range s.Results {
		status := "PASS"
		if !r.Passed() {
			status = "FAIL"
		}

		rows = append(rows, []string{
			r.Name,
			status,
			strconv.Itoa(r.ExitCode),
			formatDuration(r.Duration),
		})
	}

	table.AppendBulk(rows)
	table.Render()
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}

	return units.HumanDuration(d)
}
