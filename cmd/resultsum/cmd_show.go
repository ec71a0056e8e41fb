package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spboyer/resultsum/internal/dataset"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// maxColumnWidth caps a column so long experiment names don't push the
// metrics off screen.
const maxColumnWidth = 40

func newShowCommand() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show <results.csv>",
		Short: "Print a result table",
		Long: `Show prints a table written by collect. On a terminal the columns are
aligned; when the output is piped the CSV is passed through unchanged.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := dataset.ReadTable(args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			switch format {
			case "auto":
				if isTerminal(w) {
					printTable(w, t)
					return nil
				}
				return dataset.WriteCSV(w, t)
			case "table":
				printTable(w, t)
				return nil
			case "csv":
				return dataset.WriteCSV(w, t)
			}
			return fmt.Errorf("unknown format %q: must be auto, table or csv", format)
		},
	}
	cmd.Flags().StringVar(&format, "format", "auto", "Output format: auto | table | csv")
	return cmd
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func printTable(w io.Writer, t *dataset.Table) {
	widths := make([]int, len(t.Header))
	for i, h := range t.Header {
		widths[i] = displayWidth(h)
	}
	for _, rec := range t.Records {
		for i, v := range rec {
			widths[i] = max(widths[i], displayWidth(v))
		}
	}
	for i := range widths {
		widths[i] = min(widths[i], maxColumnWidth)
	}

	total := 0
	for _, wd := range widths {
		total += wd + 2
	}
	writeCells(w, t.Header, widths)
	fmt.Fprintf(w, "%s\n", strings.Repeat("─", max(total-2, 0))) //nolint:errcheck
	for _, rec := range t.Records {
		writeCells(w, rec, widths)
	}
}

func writeCells(w io.Writer, cells []string, widths []int) {
	parts := make([]string, len(cells))
	for i, c := range cells {
		c = truncateName(c, widths[i])
		if i == len(cells)-1 {
			parts[i] = c
		} else {
			parts[i] = padRight(c, widths[i])
		}
	}
	fmt.Fprintln(w, strings.Join(parts, "  ")) //nolint:errcheck
}

func displayWidth(s string) int {
	return runewidth.StringWidth(s)
}

// truncateName shortens s to at most maxWidth display cells, marking the cut
// with an ellipsis.
func truncateName(s string, maxWidth int) string {
	if displayWidth(s) <= maxWidth {
		return s
	}
	return runewidth.Truncate(s, maxWidth, "…")
}

// padRight pads s with spaces so its terminal display width reaches width.
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}
