package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"gobiome/adapters/export"
	"gobiome/domain/assoc"
	"gobiome/domain/cohort"
	"gobiome/domain/core"
	"gobiome/internal"
	"gobiome/internal/analysis"
	"gobiome/internal/config"
	"gobiome/internal/report"
	"gobiome/ports"
)

// defaultPCAComponents is what the PC1/PC2 scatter consumers need
const defaultPCAComponents = 2

// PipelineService runs the full association pipeline: load, summarize,
// decompose, sweep twice, compare, export
type PipelineService struct {
	loader  ports.CohortLoaderPort
	modeler ports.AssociationPort
	writer  *export.TableWriter
	report  *report.Builder
	cfg     *config.Config
	log     *internal.Logger
}

// RunResult is the auditable record of one complete pipeline run
type RunResult struct {
	RunID            core.RunID     `json:"run_id"`
	Fingerprint      core.Hash      `json:"fingerprint"`
	Subjects         int            `json:"subjects"`
	Features         int            `json:"features"`
	UnivariateHits   int            `json:"univariate_hits"`
	MultivariateHits int            `json:"multivariate_hits"`
	LostAfterAdjust  int            `json:"lost_after_adjust"`
	FitFailures      int            `json:"fit_failures"`
	RuntimeMs        int64          `json:"runtime_ms"`
	CreatedAt        core.Timestamp `json:"created_at"`

	Bundle       *cohort.Bundle         `json:"-"`
	Summary      *analysis.CohortSummary `json:"-"`
	PCA          *analysis.PCAResult     `json:"-"`
	Univariate   *assoc.ResultTable      `json:"-"`
	Multivariate *assoc.ResultTable      `json:"-"`
	Comparison   *assoc.ComparisonTable  `json:"-"`
}

// NewPipelineService wires the pipeline from its ports
func NewPipelineService(loader ports.CohortLoaderPort, modeler ports.AssociationPort, cfg *config.Config) *PipelineService {
	return &PipelineService{
		loader:  loader,
		modeler: modeler,
		writer:  export.NewTableWriter(),
		report:  report.NewBuilder(),
		cfg:     cfg,
		log:     internal.DefaultLogger,
	}
}

// Execute runs every stage and writes all outputs under the configured
// output directory
func (s *PipelineService) Execute(ctx context.Context) (*RunResult, error) {
	startTime := time.Now()
	runID := core.NewRunID()
	s.log.Info("[Pipeline] run %s starting", runID)

	bundle, err := s.loader.LoadCohort(ctx, ports.CohortLoadRequest{
		MetadataPath:  s.cfg.Data.MetadataFile,
		AbundancePath: s.cfg.Data.AbundanceFile,
		SubjectColumn: s.cfg.Data.SubjectColumn,
	})
	if err != nil {
		return nil, fmt.Errorf("cohort load failed: %w", err)
	}
	return s.ExecuteWithBundle(ctx, runID, bundle, startTime)
}

// ExecuteWithBundle runs the analysis stages against an already-loaded
// cohort. Callers that generate cohorts in memory enter here.
func (s *PipelineService) ExecuteWithBundle(ctx context.Context, runID core.RunID, bundle *cohort.Bundle, startTime time.Time) (*RunResult, error) {
	summary, err := analysis.Summarize(bundle.Metadata)
	if err != nil {
		return nil, fmt.Errorf("cohort summary failed: %w", err)
	}

	pca, err := analysis.ComputePCA(bundle.Abundance, defaultPCAComponents)
	if err != nil {
		return nil, fmt.Errorf("pca failed: %w", err)
	}

	univariate, err := s.modeler.RunSweep(ctx, bundle, assoc.ModelUnivariate)
	if err != nil {
		return nil, fmt.Errorf("univariate sweep failed: %w", err)
	}

	multivariate, err := s.modeler.RunSweep(ctx, bundle, assoc.ModelMultivariate)
	if err != nil {
		return nil, fmt.Errorf("multivariate sweep failed: %w", err)
	}

	comparison, err := analysis.NewComparator().Compare(univariate, multivariate)
	if err != nil {
		return nil, fmt.Errorf("comparison failed: %w", err)
	}

	if err := s.writeOutputs(runID, bundle, summary, pca, univariate, multivariate, comparison, startTime); err != nil {
		return nil, err
	}

	result := &RunResult{
		RunID:            runID,
		Fingerprint:      runFingerprint(bundle, univariate, multivariate, comparison),
		Subjects:         bundle.Metadata.RowCount(),
		Features:         bundle.Abundance.FeatureCount(),
		UnivariateHits:   len(univariate.Significant()),
		MultivariateHits: len(multivariate.Significant()),
		LostAfterAdjust:  comparison.LostCount(),
		FitFailures:      univariate.FailedCount() + multivariate.FailedCount(),
		RuntimeMs:        time.Since(startTime).Milliseconds(),
		CreatedAt:        core.Now(),
		Bundle:           bundle,
		Summary:          summary,
		PCA:              pca,
		Univariate:       univariate,
		Multivariate:     multivariate,
		Comparison:       comparison,
	}

	s.log.Info("[Pipeline] run %s done in %dms: %d univariate hits, %d retained, fingerprint %s",
		runID, result.RuntimeMs, result.UnivariateHits,
		result.UnivariateHits-result.LostAfterAdjust, result.Fingerprint)
	return result, nil
}

func (s *PipelineService) writeOutputs(
	runID core.RunID,
	bundle *cohort.Bundle,
	summary *analysis.CohortSummary,
	pca *analysis.PCAResult,
	univariate, multivariate *assoc.ResultTable,
	comparison *assoc.ComparisonTable,
	startTime time.Time,
) error {
	dir := s.cfg.Output.Dir

	if err := s.writer.WriteResults(filepath.Join(dir, "univariate.csv"), univariate); err != nil {
		return err
	}
	if err := s.writer.WriteResults(filepath.Join(dir, "multivariate.csv"), multivariate); err != nil {
		return err
	}
	if err := s.writer.WriteComparison(filepath.Join(dir, "comparison.csv"), comparison); err != nil {
		return err
	}
	if err := s.writer.WriteVolcano(filepath.Join(dir, "volcano_univariate.csv"), univariate); err != nil {
		return err
	}
	if err := s.writer.WriteVolcano(filepath.Join(dir, "volcano_multivariate.csv"), multivariate); err != nil {
		return err
	}
	if err := s.writer.WritePCAScores(filepath.Join(dir, "pca_scores.csv"), pca); err != nil {
		return err
	}

	if s.cfg.Output.ReportHTML {
		in := &report.Input{
			RunID:        runID,
			CreatedAt:    core.Now(),
			Bundle:       bundle,
			Summary:      summary,
			PCA:          pca,
			Univariate:   univariate,
			Multivariate: multivariate,
			Comparison:   comparison,
		}
		if err := s.report.WriteHTML(filepath.Join(dir, "report.html"), in); err != nil {
			return err
		}
	}
	return nil
}

// runFingerprint hashes the input cohort and every output table so two runs
// over identical data are byte-comparable
func runFingerprint(bundle *cohort.Bundle, uni, multi *assoc.ResultTable, cmp *assoc.ComparisonTable) core.Hash {
	data := fmt.Sprintf("run|%s|%s|%s|%s", bundle.Fingerprint, uni.Fingerprint, multi.Fingerprint, cmp.Fingerprint)
	return core.NewHash([]byte(data))
}
