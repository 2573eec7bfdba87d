package report

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"gobiome/domain/assoc"
	"gobiome/domain/cohort"
	"gobiome/domain/core"
	"gobiome/internal"
	"gobiome/internal/analysis"
	apperrors "gobiome/internal/errors"
)

// Input collects everything one run produced, in the order the pipeline
// produced it
type Input struct {
	RunID        core.RunID
	CreatedAt    core.Timestamp
	Bundle       *cohort.Bundle
	Summary      *analysis.CohortSummary
	PCA          *analysis.PCAResult
	Univariate   *assoc.ResultTable
	Multivariate *assoc.ResultTable
	Comparison   *assoc.ComparisonTable
}

// Builder renders a run report: markdown first, then HTML from the same
// source via gomarkdown
type Builder struct {
	log *internal.Logger
}

func NewBuilder() *Builder {
	return &Builder{log: internal.DefaultLogger}
}

// Markdown renders the full run report as a markdown document
func (b *Builder) Markdown(in *Input) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Association Run %s\n\n", in.RunID)
	fmt.Fprintf(&sb, "Generated %s\n\n", in.CreatedAt.Time().Format("2006-01-02 15:04:05 MST"))

	b.writeCohortSection(&sb, in)
	b.writePCASection(&sb, in.PCA)
	b.writeSweepSection(&sb, "Univariate Sweep", in.Univariate)
	b.writeSweepSection(&sb, "Multivariate Sweep", in.Multivariate)
	b.writeComparisonSection(&sb, in.Comparison)

	return sb.String()
}

// WriteHTML renders the markdown report to a standalone HTML file
func (b *Builder) WriteHTML(path string, in *Input) error {
	md := b.Markdown(in)

	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Tables)
	renderer := html.NewRenderer(html.RendererOptions{
		Title: fmt.Sprintf("Association Run %s", in.RunID),
		Flags: html.CommonFlags | html.CompletePage,
	})
	rendered := markdown.ToHTML([]byte(md), p, renderer)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperrors.ExportError(path, err)
	}
	if err := os.WriteFile(path, rendered, 0o644); err != nil {
		return apperrors.ExportError(path, err)
	}
	b.log.Info("[Report] wrote HTML report to %s", path)
	return nil
}

func (b *Builder) writeCohortSection(sb *strings.Builder, in *Input) {
	bundle := in.Bundle
	fmt.Fprintf(sb, "## Cohort\n\n")
	fmt.Fprintf(sb, "- Subjects: %d\n", bundle.Metadata.RowCount())
	fmt.Fprintf(sb, "- Features: %d\n", bundle.Abundance.FeatureCount())
	fmt.Fprintf(sb, "- Join: %d matched, %d metadata-only, %d abundance-only\n",
		bundle.Report.Joined, len(bundle.Report.MetadataOnly), len(bundle.Report.AbundanceOnly))
	fmt.Fprintf(sb, "- Fingerprint: `%s`\n\n", bundle.Fingerprint)

	if len(bundle.Warnings) > 0 {
		fmt.Fprintf(sb, "### Warnings\n\n")
		for _, code := range bundle.Warnings {
			fmt.Fprintf(sb, "- `%s`\n", code)
		}
		sb.WriteString("\n")
	}

	if in.Summary != nil {
		b.writeSummaryTable(sb, in.Summary)
	}
}

func (b *Builder) writeSummaryTable(sb *strings.Builder, summary *analysis.CohortSummary) {
	fmt.Fprintf(sb, "### Metadata Columns\n\n")
	fmt.Fprintf(sb, "| column | type | mean | sd | median | missing |\n")
	fmt.Fprintf(sb, "|---|---|---|---|---|---|\n")
	for _, col := range summary.Columns {
		if col.Type == cohort.TypeCategorical {
			fmt.Fprintf(sb, "| %s | %s | %s | | | %d |\n",
				col.Key, col.Type, levelString(col.Levels), col.Missing)
			continue
		}
		fmt.Fprintf(sb, "| %s | %s | %.3g | %.3g | %.3g | %d |\n",
			col.Key, col.Type, col.Mean, col.StdDev, col.Median, col.Missing)
	}
	sb.WriteString("\n")
}

func (b *Builder) writePCASection(sb *strings.Builder, pca *analysis.PCAResult) {
	if pca == nil {
		return
	}
	fmt.Fprintf(sb, "## Principal Components\n\n")
	for i, prop := range pca.Proportions {
		fmt.Fprintf(sb, "- PC%d explains %.1f%% of variance\n", i+1, prop*100)
	}
	sb.WriteString("\n")
}

func (b *Builder) writeSweepSection(sb *strings.Builder, title string, table *assoc.ResultTable) {
	if table == nil {
		return
	}
	significant := table.Significant()
	fmt.Fprintf(sb, "## %s\n\n", title)
	fmt.Fprintf(sb, "- Model: `%s`, term `%s`, FDR %s, alpha %g\n",
		table.Model, table.Term, table.FDRMethod, table.Alpha)
	fmt.Fprintf(sb, "- Features tested: %d (%d fit failures)\n", len(table.Rows), table.FailedCount())
	fmt.Fprintf(sb, "- Significant after adjustment: %d\n\n", len(significant))

	if len(significant) == 0 {
		return
	}
	sort.Slice(significant, func(i, j int) bool {
		return significant[i].AdjPValue < significant[j].AdjPValue
	})
	limit := len(significant)
	if limit > 25 {
		limit = 25
	}
	fmt.Fprintf(sb, "| feature | estimate | adj p | direction |\n")
	fmt.Fprintf(sb, "|---|---|---|---|\n")
	for _, r := range significant[:limit] {
		fmt.Fprintf(sb, "| %s | %.4g | %.3g | %s |\n",
			r.Feature, r.Estimate, r.AdjPValue, r.Direction())
	}
	if limit < len(significant) {
		fmt.Fprintf(sb, "\n%d further significant features omitted.\n", len(significant)-limit)
	}
	sb.WriteString("\n")
}

func (b *Builder) writeComparisonSection(sb *strings.Builder, table *assoc.ComparisonTable) {
	if table == nil {
		return
	}
	fmt.Fprintf(sb, "## Covariate Adjustment\n\n")
	retained := len(table.Rows) - table.LostCount()
	fmt.Fprintf(sb, "Of %d univariate hits, %d remain significant after covariate adjustment and %d do not.\n\n",
		len(table.Rows), retained, table.LostCount())

	if len(table.Rows) == 0 {
		return
	}
	fmt.Fprintf(sb, "| feature | univar adj p | multivar adj p | retained |\n")
	fmt.Fprintf(sb, "|---|---|---|---|\n")
	for _, r := range table.Rows {
		fmt.Fprintf(sb, "| %s | %.3g | %s | %t |\n",
			r.Feature, r.UnivarAdjP, formatP(r.MultivarAdjP), r.Retained)
	}
	sb.WriteString("\n")
}

func levelString(levels map[string]int) string {
	keys := make([]string, 0, len(levels))
	for k := range levels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, levels[k]))
	}
	return strings.Join(parts, ", ")
}

func formatP(p float64) string {
	if math.IsNaN(p) {
		return "n/a"
	}
	return fmt.Sprintf("%.3g", p)
}
