package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"gobiome/adapters/export"
	"gobiome/adapters/stats/engine"
	"gobiome/adapters/tabular"
	"gobiome/app"
	"gobiome/domain/assoc"
	"gobiome/domain/cohort"
	"gobiome/internal/analysis"
	"gobiome/internal/config"
	"gobiome/ports"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	rootCmd := &cobra.Command{
		Use:   "gobiome-cli",
		Short: "Microbiome disease association sweeps with FDR control",
	}

	rootCmd.AddCommand(
		newRunCmd(),
		newSummaryCmd(),
		newPCACmd(),
		newAssocCmd(),
		newCompareCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// dataFlags are shared by every command that loads a cohort
type dataFlags struct {
	metadata      string
	abundance     string
	subjectColumn string
}

func (f *dataFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.metadata, "metadata", "", "Metadata table path (.csv or .xlsx)")
	cmd.Flags().StringVar(&f.abundance, "abundance", "", "Abundance table path (.csv or .xlsx)")
	cmd.Flags().StringVar(&f.subjectColumn, "subject-column", "", "Subject ID column (auto-detected when empty)")
}

func (f *dataFlags) apply(cfg *config.Config) {
	if f.metadata != "" {
		cfg.Data.MetadataFile = f.metadata
	}
	if f.abundance != "" {
		cfg.Data.AbundanceFile = f.abundance
	}
	if f.subjectColumn != "" {
		cfg.Data.SubjectColumn = f.subjectColumn
	}
}

// modelFlags configure the association sweeps
type modelFlags struct {
	alpha          float64
	fdrMethod      string
	workers        int
	referenceLevel string
}

func (f *modelFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.alpha, "alpha", 0.05, "Adjusted-p significance threshold")
	cmd.Flags().StringVar(&f.fdrMethod, "fdr", "BY", "FDR method: BY or BH")
	cmd.Flags().IntVar(&f.workers, "workers", 1, "Per-feature fit workers")
	cmd.Flags().StringVar(&f.referenceLevel, "reference-level", "", "Categorical reference level")
}

func (f *modelFlags) apply(cfg *config.Config) {
	cfg.Model.Alpha = f.alpha
	cfg.Model.FDRMethod = f.fdrMethod
	cfg.Model.Workers = f.workers
	if f.referenceLevel != "" {
		cfg.Model.ReferenceLevel = f.referenceLevel
	}
}

func loadConfig(data *dataFlags, model *modelFlags) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if data != nil {
		data.apply(cfg)
	}
	if model != nil {
		model.apply(cfg)
	}
	if cfg.Data.MetadataFile == "" || cfg.Data.AbundanceFile == "" {
		return nil, fmt.Errorf("metadata and abundance paths are required (flags or METADATA_FILE/ABUNDANCE_FILE)")
	}
	return cfg, nil
}

func buildEngine(cfg *config.Config) ports.AssociationPort {
	return engine.NewAssociationEngine(
		engine.WithAlpha(cfg.Model.Alpha),
		engine.WithFDRMethod(assoc.FDRMethod(cfg.Model.FDRMethod)),
		engine.WithWorkers(cfg.Model.Workers),
		engine.WithReferenceLevel(cfg.Model.ReferenceLevel),
	)
}

func loadBundle(cmd *cobra.Command, cfg *config.Config) (*cohort.Bundle, error) {
	loader := tabular.NewCohortLoader(cfg.Data.SumTolerance)
	return loader.LoadCohort(cmd.Context(), ports.CohortLoadRequest{
		MetadataPath:  cfg.Data.MetadataFile,
		AbundancePath: cfg.Data.AbundanceFile,
		SubjectColumn: cfg.Data.SubjectColumn,
	})
}

func newRunCmd() *cobra.Command {
	var data dataFlags
	var model modelFlags
	var outputDir string
	var reportHTML bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline: load, summarize, PCA, both sweeps, comparison, export",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(&data, &model)
			if err != nil {
				return err
			}
			if outputDir != "" {
				cfg.Output.Dir = outputDir
			}
			cfg.Output.ReportHTML = reportHTML

			loader := tabular.NewCohortLoader(cfg.Data.SumTolerance)
			service := app.NewPipelineService(loader, buildEngine(cfg), cfg)
			result, err := service.Execute(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}

	data.register(cmd)
	model.register(cmd)
	cmd.Flags().StringVar(&outputDir, "output", "", "Output directory (default ./results)")
	cmd.Flags().BoolVar(&reportHTML, "report", false, "Also write an HTML run report")
	return cmd
}

func newSummaryCmd() *cobra.Command {
	var data dataFlags

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print descriptive statistics for the joined cohort",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(&data, nil)
			if err != nil {
				return err
			}
			bundle, err := loadBundle(cmd, cfg)
			if err != nil {
				return err
			}
			summary, err := analysis.Summarize(bundle.Metadata)
			if err != nil {
				return err
			}
			return printJSON(summary)
		},
	}

	data.register(cmd)
	return cmd
}

func newPCACmd() *cobra.Command {
	var data dataFlags
	var components int
	var output string

	cmd := &cobra.Command{
		Use:   "pca",
		Short: "Project the abundance matrix onto its principal components",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(&data, nil)
			if err != nil {
				return err
			}
			bundle, err := loadBundle(cmd, cfg)
			if err != nil {
				return err
			}
			result, err := analysis.ComputePCA(bundle.Abundance, components)
			if err != nil {
				return err
			}
			if output != "" {
				return export.NewTableWriter().WritePCAScores(output, result)
			}
			for i, prop := range result.Proportions {
				fmt.Printf("PC%d: %.1f%% of variance\n", i+1, prop*100)
			}
			return nil
		},
	}

	data.register(cmd)
	cmd.Flags().IntVar(&components, "components", 2, "Number of components to keep")
	cmd.Flags().StringVar(&output, "output", "", "Write per-subject scores to this path instead of printing")
	return cmd
}

func newAssocCmd() *cobra.Command {
	var data dataFlags
	var model modelFlags
	var modelType string
	var output string

	cmd := &cobra.Command{
		Use:   "assoc",
		Short: "Run one association sweep (univariate or multivariate)",
		RunE: func(cmd *cobra.Command, args []string) error {
			mt := assoc.ModelType(modelType)
			if mt != assoc.ModelUnivariate && mt != assoc.ModelMultivariate {
				return fmt.Errorf("invalid model %q (use univariate or multivariate)", modelType)
			}
			cfg, err := loadConfig(&data, &model)
			if err != nil {
				return err
			}
			bundle, err := loadBundle(cmd, cfg)
			if err != nil {
				return err
			}
			table, err := buildEngine(cfg).RunSweep(cmd.Context(), bundle, mt)
			if err != nil {
				return err
			}
			if output != "" {
				return export.NewTableWriter().WriteResults(output, table)
			}
			fmt.Printf("%d features tested, %d significant at alpha %g (%s), %d fit failures\n",
				len(table.Rows), len(table.Significant()), table.Alpha, table.FDRMethod, table.FailedCount())
			return nil
		},
	}

	data.register(cmd)
	model.register(cmd)
	cmd.Flags().StringVar(&modelType, "model", "univariate", "Model: univariate or multivariate")
	cmd.Flags().StringVar(&output, "output", "", "Write the result table to this path instead of printing counts")
	return cmd
}

func newCompareCmd() *cobra.Command {
	var data dataFlags
	var model modelFlags
	var output string

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Run both sweeps and report which hits survive covariate adjustment",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(&data, &model)
			if err != nil {
				return err
			}
			bundle, err := loadBundle(cmd, cfg)
			if err != nil {
				return err
			}
			eng := buildEngine(cfg)
			univariate, err := eng.RunSweep(cmd.Context(), bundle, assoc.ModelUnivariate)
			if err != nil {
				return err
			}
			multivariate, err := eng.RunSweep(cmd.Context(), bundle, assoc.ModelMultivariate)
			if err != nil {
				return err
			}
			comparison, err := analysis.NewComparator().Compare(univariate, multivariate)
			if err != nil {
				return err
			}
			if output != "" {
				return export.NewTableWriter().WriteComparison(output, comparison)
			}
			return printJSON(comparison)
		},
	}

	data.register(cmd)
	model.register(cmd)
	cmd.Flags().StringVar(&output, "output", "", "Write the comparison table to this path instead of printing")
	return cmd
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
