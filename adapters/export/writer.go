package export

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"gobiome/domain/assoc"
	"gobiome/internal"
	"gobiome/internal/analysis"
	apperrors "gobiome/internal/errors"
)

// TableWriter persists result and comparison tables to flat tabular files.
// The output format follows the target path extension: .csv or .xlsx.
type TableWriter struct {
	log *internal.Logger
}

// NewTableWriter creates a writer for result exports
func NewTableWriter() *TableWriter {
	return &TableWriter{log: internal.DefaultLogger}
}

var resultHeader = []string{
	"feature", "term", "estimate", "std_err", "statistic",
	"p_value", "adj_p_value", "n", "fit_error",
}

// WriteResults writes one association sweep, one row per feature, in the
// table's row order
func (w *TableWriter) WriteResults(path string, table *assoc.ResultTable) error {
	rows := make([][]string, 0, len(table.Rows)+1)
	rows = append(rows, resultHeader)
	for _, r := range table.Rows {
		rows = append(rows, []string{
			string(r.Feature),
			r.Term,
			formatFloat(r.Estimate),
			formatFloat(r.StdErr),
			formatFloat(r.Statistic),
			formatFloat(r.PValue),
			formatFloat(r.AdjPValue),
			strconv.Itoa(r.SampleSize),
			r.FitError,
		})
	}
	if err := w.writeRows(path, rows); err != nil {
		return err
	}
	w.log.Info("[Export] wrote %d %s results to %s", len(table.Rows), table.Model, path)
	return nil
}

var comparisonHeader = []string{
	"feature", "univar_estimate", "univar_adj_p",
	"multivar_estimate", "multivar_adj_p", "retained",
}

// WriteComparison writes the retention verdict per univariate-significant feature
func (w *TableWriter) WriteComparison(path string, table *assoc.ComparisonTable) error {
	rows := make([][]string, 0, len(table.Rows)+1)
	rows = append(rows, comparisonHeader)
	for _, r := range table.Rows {
		rows = append(rows, []string{
			string(r.Feature),
			formatFloat(r.UnivarEstimate),
			formatFloat(r.UnivarAdjP),
			formatFloat(r.MultivarEstimate),
			formatFloat(r.MultivarAdjP),
			strconv.FormatBool(r.Retained),
		})
	}
	if err := w.writeRows(path, rows); err != nil {
		return err
	}
	w.log.Info("[Export] wrote comparison (%d rows, %d lost) to %s",
		len(table.Rows), table.LostCount(), path)
	return nil
}

var volcanoHeader = []string{
	"feature", "estimate", "neg_log10_adj_p", "significant",
}

// WriteVolcano writes the plotting table behind the volcano figure: effect
// estimate against -log10 of the adjusted p-value, flagged at the table's
// alpha. Failed fits are skipped.
func (w *TableWriter) WriteVolcano(path string, table *assoc.ResultTable) error {
	rows := make([][]string, 0, len(table.Rows)+1)
	rows = append(rows, volcanoHeader)
	for _, r := range table.Rows {
		if r.Failed() {
			continue
		}
		rows = append(rows, []string{
			string(r.Feature),
			formatFloat(r.Estimate),
			formatFloat(negLog10(r.AdjPValue)),
			strconv.FormatBool(r.SignificantAt(table.Alpha)),
		})
	}
	if err := w.writeRows(path, rows); err != nil {
		return err
	}
	w.log.Info("[Export] wrote volcano table to %s", path)
	return nil
}

// WritePCAScores writes per-subject component scores with variance shares in
// the header row, e.g. pc1 (31.2%)
func (w *TableWriter) WritePCAScores(path string, result *analysis.PCAResult) error {
	header := []string{"subject_id"}
	for i, prop := range result.Proportions {
		header = append(header, fmt.Sprintf("pc%d (%.1f%%)", i+1, prop*100))
	}
	rows := make([][]string, 0, len(result.Scores)+1)
	rows = append(rows, header)
	for i, score := range result.Scores {
		row := []string{string(result.SubjectIDs[i])}
		for _, v := range score {
			row = append(row, formatFloat(v))
		}
		rows = append(rows, row)
	}
	if err := w.writeRows(path, rows); err != nil {
		return err
	}
	w.log.Info("[Export] wrote %d PCA scores to %s", len(result.Scores), path)
	return nil
}

func (w *TableWriter) writeRows(path string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperrors.ExportError(path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return w.writeCSV(path, rows)
	case ".xlsx":
		return w.writeXLSX(path, rows)
	default:
		return apperrors.ExportError(path, fmt.Errorf("unsupported output format %q", filepath.Ext(path)))
	}
}

func (w *TableWriter) writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return apperrors.ExportError(path, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.WriteAll(rows); err != nil {
		return apperrors.ExportError(path, err)
	}
	return nil
}

func (w *TableWriter) writeXLSX(path string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return apperrors.ExportError(path, err)
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			// Round-trip numerics as numbers so spreadsheet consumers
			// do not see them as text
			if i > 0 {
				if parsed, perr := strconv.ParseFloat(v, 64); perr == nil {
					values[j] = parsed
					continue
				}
			}
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return apperrors.ExportError(path, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return apperrors.ExportError(path, err)
	}
	return nil
}

// formatFloat keeps NaN as an explicit marker rather than the empty string so
// downstream joins stay unambiguous
func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func negLog10(p float64) float64 {
	if p <= 0 {
		return math.Inf(1)
	}
	return -math.Log10(p)
}
