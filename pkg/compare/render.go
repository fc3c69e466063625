package compare

import (
	"fmt"
	"io"
	"strconv"

	"github.com/docker/go-units"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

// Render writes the comparison table followed by the verdict.
func Render(w io.Writer, c Comparison) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Metric", "REST", "GraphQL", "Delta", "Percent"})
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

	rows := make([][]string, 0, len(c.Results))

	for _, r := range c.Results {
		rows = append(rows, []string{
			r.MetricName,
			formatValue(r.MetricName, r.RestValue),
			formatValue(r.MetricName, r.GraphQLValue),
			formatValue(r.MetricName, r.Delta),
			formatPercent(r.Percent),
		})
	}

	table.AppendBulk(rows)
	table.Render()

	verdict := c.Verdict()

	switch {
	case c.TimePercent == nil:
		verdict = color.New(color.FgYellow).Sprint(verdict)
	case *c.TimePercent > 0:
		verdict = color.New(color.FgGreen, color.Bold).Sprint(verdict)
	}

	_, err := fmt.Fprintf(w, "\nVerdict: %s\n", verdict)

	return err
}

func formatValue(metric string, v float64) string {
	switch metric {
	case MetricTotalTimeMs:
		return strconv.FormatFloat(v, 'f', 2, 64) + " ms"
	case MetricTotalDataSize:
		if v < 0 {
			return "-" + units.HumanSize(-v)
		}

		return units.HumanSize(v)
	default:
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
}

func formatPercent(p *float64) string {
	if p == nil {
		return "n/a"
	}

	return strconv.FormatFloat(*p, 'f', 2, 64) + "%"
}
