package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/craigvandotcom/eatzone/internal/analysis"
	"github.com/craigvandotcom/eatzone/internal/eval"
)

func newEvalCmd() *cobra.Command {
	var (
		datasetPath string
		provider    string
		model       string
		sampleSize  int
		outDir      string
	)

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate ingredient extraction against a labeled dataset",
		Long: `Runs every meal photo in a labeled dataset through the extraction
pipeline and scores the results against the labels.

Datasets are Parquet or JSONL files with one record per meal: an image
path plus the expected ingredient names and zones. Each run writes a
YAML report so runs can be diffed across providers and models.`,
		Example: `  # Evaluate the default provider on a full dataset
  eatzone eval --dataset meals.parquet

  # Sample 20 records against Gemini
  eatzone eval --dataset meals.jsonl --provider gemini --sample 20`,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner := eval.NewRunner(analysis.NewService())
			agg, path, err := runner.Run(cmd.Context(), eval.Options{
				DatasetPath: datasetPath,
				Provider:    provider,
				Model:       model,
				SampleSize:  sampleSize,
				OutDir:      outDir,
			})
			if err != nil {
				return err
			}

			fmt.Printf("Evaluated %d meals (%d failed)\n", agg.TotalRecords, agg.FailureCount)
			fmt.Printf("  precision: %.3f\n", agg.MeanPrecision)
			fmt.Printf("  recall:    %.3f\n", agg.MeanRecall)
			fmt.Printf("  F1:        %.3f\n", agg.MeanF1)
			fmt.Printf("  zones:     %.3f\n", agg.MeanZoneAccuracy)
			fmt.Printf("Report written to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&datasetPath, "dataset", "", "Path to a .parquet or .jsonl dataset (required)")
	cmd.Flags().StringVar(&provider, "provider", "", "LLM provider: ollama, openai, or gemini")
	cmd.Flags().StringVar(&model, "model", "", "Model name (defaults to the provider's default)")
	cmd.Flags().IntVar(&sampleSize, "sample", 0, "Number of records to evaluate (0 = all)")
	cmd.Flags().StringVar(&outDir, "out", "evals", "Directory for YAML reports")
	_ = cmd.MarkFlagRequired("dataset")

	return cmd
}
