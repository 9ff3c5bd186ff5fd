package exporter

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"github.com/VladMinzatu/simtrace/internal/trace"
)

// WriteSummary renders the busiest functions of a run as a table, followed by
// the run counters. top <= 0 lists every function.
func WriteSummary(w io.Writer, run trace.Summary, stats *trace.Stats, top int) error {
	funcs := stats.Functions()
	if top > 0 && len(funcs) > top {
		funcs = funcs[:top]
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Function", "Entry", "Instructions", "Share", "Entries"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, f := range funcs {
		table.Append([]string{
			f.Name,
			fmt.Sprintf("%08x", f.Addr),
			humanize.Comma(int64(f.Instructions)),
			share(f.Instructions, stats.Total()),
			humanize.Comma(int64(f.Entries)),
		})
	}
	table.Render()

	_, err := fmt.Fprintf(w, "lines: %s, instructions: %s, discarded: %s, unknown code: %s, CCA warnings: %s\n",
		humanize.Comma(int64(run.Lines)),
		humanize.Comma(int64(run.Records)),
		humanize.Comma(int64(run.Discarded)),
		humanize.Comma(int64(run.OutOfRange)),
		humanize.Comma(int64(run.CCAWarnings)),
	)
	return err
}

func share(n, total uint64) string {
	if total == 0 {
		return "-"
	}
	return fmt.Sprintf("%.2f%%", float64(n)/float64(total)*100)
}
