package reporting

import (
	"math"
	"strconv"

	"github.com/spboyer/resultsum/internal/aggregate"
	"github.com/spboyer/resultsum/internal/dataset"
	"github.com/spboyer/resultsum/internal/summary"
	"github.com/spboyer/resultsum/internal/threshold"
)

// Column names shared by the batch result tables.
const (
	ColExperiment = "experiment"
	ColBestJob    = "best_job"
	ColBestModel  = "best_model"
	ColBestNTop   = "best_n_top"
)

func rowPrefix(r summary.Row) []string {
	return []string{r.Experiment, r.JobLabel, r.Model, strconv.Itoa(r.NTop)}
}

// ResultsTable has one row per experiment with the reduced value of every
// metric at the winning cell.
func ResultsTable(rows []summary.Row, metrics []string) *dataset.Table {
	t := dataset.NewTable(append([]string{ColExperiment, ColBestJob, ColBestModel, ColBestNTop}, metrics...)...)
	for _, r := range rows {
		rec := rowPrefix(r)
		for _, m := range metrics {
			rec = append(rec, formatMean(r, m))
		}
		t.Records = append(t.Records, rec)
	}
	return t
}

// LongResultsTable explodes every experiment row into one row per
// bootstrap value. Metrics with fewer values than the longest list leave
// their trailing cells empty.
func LongResultsTable(rows []summary.Row, metrics []string) *dataset.Table {
	t := dataset.NewTable(append([]string{ColExperiment, ColBestJob, ColBestModel, ColBestNTop}, metrics...)...)
	for _, r := range rows {
		n := 0
		for _, m := range metrics {
			n = max(n, len(r.Values[m]))
		}
		for i := range n {
			rec := rowPrefix(r)
			for _, m := range metrics {
				v := r.Values[m]
				if i < len(v) {
					rec = append(rec, dataset.FormatFloat(v[i]))
				} else {
					rec = append(rec, "")
				}
			}
			t.Records = append(t.Records, rec)
		}
	}
	return t
}

func formatMean(r summary.Row, metric string) string {
	v, ok := r.Means[metric]
	if !ok || len(r.Values[metric]) == 0 {
		return ""
	}
	return dataset.FormatFloat(v)
}

// HeatmapTable lays out a reduced metric as models by job labels. Absent
// cells are written empty.
func HeatmapTable(t *aggregate.Table[float64]) *dataset.Table {
	header := []string{"model"}
	for j := range t.Jobs {
		header = append(header, summary.JobLabel(j))
	}
	out := dataset.NewTable(header...)
	for i, model := range t.Models {
		rec := []string{model}
		for j := range t.Jobs {
			if v, ok := t.At(i, j); ok {
				rec = append(rec, dataset.FormatFloat(v))
			} else {
				rec = append(rec, "")
			}
		}
		out.Records = append(out.Records, rec)
	}
	return out
}

// StrategiesTable maps the job labels used as heatmap columns back to the
// jobs they stand for.
func StrategiesTable(jobs []string) *dataset.Table {
	t := dataset.NewTable("label", "job")
	for j, job := range jobs {
		t.Records = append(t.Records, []string{summary.JobLabel(j), job})
	}
	return t
}

// MeanROCTable writes a mean ROC curve point by point, with the model it
// belongs to and its mean AUC repeated on every row.
func MeanROCTable(model string, c threshold.MeanCurve) *dataset.Table {
	t := dataset.NewTable("model", "fpr", "tpr", "tpr_low", "tpr_high", "auc", "auc_std")
	auc, std := dataset.FormatFloat(c.AUC), dataset.FormatFloat(c.AUCStd)
	for i := range c.FPR {
		t.Records = append(t.Records, []string{
			model,
			dataset.FormatFloat(c.FPR[i]),
			dataset.FormatFloat(c.TPR[i]),
			dataset.FormatFloat(c.TPRLow[i]),
			dataset.FormatFloat(c.TPRHigh[i]),
			auc, std,
		})
	}
	return t
}

// RankingTable writes a feature ranking, least important first.
func RankingTable(r summary.Ranking) *dataset.Table {
	t := dataset.NewTable("feature", "score", "weight")
	for _, fw := range r {
		t.Records = append(t.Records, []string{fw.Feature, strconv.Itoa(fw.Score), dataset.FormatFloat(fw.Weight)})
	}
	return t
}

// finiteOr renders v, or fallback when v is NaN or infinite.
func finiteOr(v float64, format func(float64) string, fallback string) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return format(v)
}
