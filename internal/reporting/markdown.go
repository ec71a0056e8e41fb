// Package reporting renders collection results as CSV tables, a markdown
// summary and its HTML conversion.
package reporting

import (
	"bytes"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"

	"github.com/spboyer/resultsum/internal/aggregate"
	"github.com/spboyer/resultsum/internal/summary"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Summary file names written next to results.csv.
const (
	MarkdownFile = "summary.md"
	HTMLFile     = "summary.html"
)

// Entry is one experiment's winning row with the confidence interval of
// each reported metric.
type Entry struct {
	Row       summary.Row
	Intervals map[string]summary.Describe
}

// Failure is an experiment that could not be summarised.
type Failure struct {
	Experiment string
	Err        error
}

// Batch is everything the summary document reports.
type Batch struct {
	Optimization string
	Direction    aggregate.Direction
	Reducer      string
	Level        float64
	Metrics      []string
	Entries      []Entry
	Failures     []Failure
}

// InterpretScore returns a plain-language label for a score in [0, 1]
// where higher is better.
func InterpretScore(score float64) string {
	switch {
	case score >= 0.9:
		return "Excellent"
	case score >= 0.8:
		return "Good"
	case score >= 0.7:
		return "Fair"
	case score >= 0.5:
		return "Poor"
	default:
		return "No better than chance"
	}
}

// FormatMarkdown renders the batch as a markdown document with one table
// row per experiment.
func FormatMarkdown(b Batch) string {
	var sb strings.Builder

	sb.WriteString("# Results summary\n\n")
	fmt.Fprintf(&sb, "Best configuration per experiment by `%s` (%s), reduced with `%s`.", b.Optimization, b.Direction, b.Reducer)
	if b.Level > 0 {
		fmt.Fprintf(&sb, " Intervals are %.0f%% bootstrap percentiles.", b.Level*100)
	}
	sb.WriteString("\n\n")

	if len(b.Entries) == 0 {
		sb.WriteString("No experiment produced results.\n")
	} else {
		header := []string{"Experiment", "Job", "Model", "Features"}
		header = append(header, b.Metrics...)
		writeRow(&sb, header)
		sep := make([]string, len(header))
		for i := range sep {
			sep[i] = "---"
		}
		writeRow(&sb, sep)

		for _, e := range b.Entries {
			r := e.Row
			cells := []string{r.Experiment, fmt.Sprintf("%s (%s)", r.JobLabel, r.Job), r.Model, fmt.Sprintf("%d", r.NTop)}
			for _, m := range b.Metrics {
				cells = append(cells, formatCell(e, m))
			}
			writeRow(&sb, cells)
		}
	}

	if b.Direction == aggregate.HigherIsBetter && len(b.Entries) > 0 {
		sb.WriteString("\n## Interpretation\n\n")
		key := aggregate.OptimizationKey(b.Optimization)
		for _, e := range b.Entries {
			mean, ok := e.Row.Means[key]
			if !ok {
				continue
			}
			fmt.Fprintf(&sb, "- **%s**: %s %s\n", escape(e.Row.Experiment),
				finiteOr(mean, func(v float64) string { return fmt.Sprintf("%.3f", v) }, "n/a"),
				finiteOr(mean, InterpretScore, "undefined"))
		}
	}

	if len(b.Failures) > 0 {
		sb.WriteString("\n## Failed experiments\n\n")
		for _, f := range b.Failures {
			fmt.Fprintf(&sb, "- `%s`: %s\n", f.Experiment, escape(f.Err.Error()))
		}
	}
	return sb.String()
}

func formatCell(e Entry, metric string) string {
	values := e.Row.Values[metric]
	if len(values) == 0 {
		return ""
	}
	three := func(v float64) string { return fmt.Sprintf("%.3f", v) }
	cell := finiteOr(e.Row.Means[metric], three, "NaN")
	if d, ok := e.Intervals[metric]; ok && len(values) > 1 {
		cell += fmt.Sprintf(" [%s, %s]", finiteOr(d.CI.Lower, three, "NaN"), finiteOr(d.CI.Upper, three, "NaN"))
	}
	return cell
}

func writeRow(sb *strings.Builder, cells []string) {
	sb.WriteString("|")
	for _, c := range cells {
		sb.WriteString(" ")
		sb.WriteString(escape(c))
		sb.WriteString(" |")
	}
	sb.WriteString("\n")
}

func escape(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

const htmlHeader = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; }
th, td { border: 1px solid #ccc; padding: 4px 8px; text-align: left; }
</style>
</head>
<body>
`

const htmlFooter = "</body>\n</html>\n"

// RenderHTML converts a markdown document to a standalone HTML page.
func RenderHTML(markdown []byte, title string) ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))

	var body bytes.Buffer
	if err := md.Convert(markdown, &body); err != nil {
		return nil, fmt.Errorf("rendering markdown: %w", err)
	}

	var out bytes.Buffer
	fmt.Fprintf(&out, htmlHeader, html.EscapeString(title))
	out.Write(body.Bytes())
	out.WriteString(htmlFooter)
	return out.Bytes(), nil
}

// WriteSummary writes summary.md, and summary.html when withHTML is set,
// into dir.
func WriteSummary(dir string, b Batch, withHTML bool) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating results directory: %w", err)
	}
	md := []byte(FormatMarkdown(b))
	if err := os.WriteFile(filepath.Join(dir, MarkdownFile), md, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", MarkdownFile, err)
	}
	if !withHTML {
		return nil
	}
	page, err := RenderHTML(md, "Results summary")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, HTMLFile), page, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", HTMLFile, err)
	}
	return nil
}
