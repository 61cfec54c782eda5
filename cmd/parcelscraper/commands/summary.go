package commands

import (
	"io"

	"parcelscraper/internal/notify"

	"github.com/jedib0t/go-pretty/v6/table"
)

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(out)
	return t
}

func renderSummary(out io.Writer, summary notify.Summary) {
	t := newTable(out)
	t.SetTitle("Run " + summary.RunID)
	t.AppendHeader(table.Row{"Year", "Accepted", "Empty", "Split", "Irreducible", "Failed", "No rows", "Rows written"})
	for _, y := range summary.Years {
		r := y.Report
		t.AppendRow(table.Row{y.Year, r.Accepted, r.Empty, r.Split, r.Irreducible, r.Failed, r.Integrity, r.RowsWritten})
	}
	total := summary.Total()
	t.AppendFooter(table.Row{"Total", total.Accepted, total.Empty, total.Split, total.Irreducible, total.Failed, total.Integrity, total.RowsWritten})
	t.Render()

	if len(total.Failures) == 0 {
		return
	}
	failures := newTable(out)
	failures.SetTitle("Dropped ranges")
	failures.AppendHeader(table.Row{"Range", "Error"})
	for _, f := range total.Failures {
		failures.AppendRow(table.Row{f.Range.String(), f.Err})
	}
	failures.Render()
}
