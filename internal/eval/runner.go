// Package eval drives offline evaluation runs: load a labeled meal
// dataset, run each photo through the extraction pipeline, score the
// output, and write a YAML report.
package eval

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/craigvandotcom/eatzone/internal/eval/dataset"
	"github.com/craigvandotcom/eatzone/internal/eval/metrics"
	"github.com/craigvandotcom/eatzone/internal/eval/results"
	"github.com/craigvandotcom/eatzone/internal/models"
)

// Extractor runs image analysis. Satisfied by analysis.Service.
type Extractor interface {
	AnalyzeImages(ctx context.Context, images []string, provider, model string) (*models.AnalysisResult, error)
}

// Options configures an evaluation run.
type Options struct {
	DatasetPath string
	Provider    string
	Model       string
	SampleSize  int    // 0 means the whole dataset
	OutDir      string // defaults to evals/
}

// Runner executes evaluation runs against an extractor.
type Runner struct {
	extractor Extractor
}

func NewRunner(extractor Extractor) *Runner {
	return &Runner{extractor: extractor}
}

// Run evaluates the dataset and writes the YAML report. It returns the
// aggregate statistics and the report path.
func (r *Runner) Run(ctx context.Context, opts Options) (*metrics.AggregateResults, string, error) {
	loader := dataset.NewLoader(opts.DatasetPath)
	records, err := loader.Load(opts.SampleSize)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load dataset: %w", err)
	}
	if len(records) == 0 {
		return nil, "", fmt.Errorf("dataset %s contains no records", opts.DatasetPath)
	}

	slog.Info("Starting evaluation run",
		"dataset", opts.DatasetPath,
		"records", len(records),
		"provider", opts.Provider,
		"model", opts.Model)

	mealResults := make([]metrics.MealResult, 0, len(records))
	for i := range records {
		record := &records[i]
		result := r.evaluateRecord(ctx, loader, record, opts)
		if result.Error != "" {
			slog.Warn("Evaluation failed for record", "id", record.ID, "err", result.Error)
		} else {
			slog.Info("Evaluated record",
				"id", record.ID,
				"f1", fmt.Sprintf("%.2f", result.Comparison.F1),
				"duration", result.ProcessingTime)
		}
		mealResults = append(mealResults, result)

		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
	}

	agg := metrics.Aggregate(mealResults, opts.Provider, opts.Model)
	path, err := results.SaveToYAML(opts.OutDir, opts.DatasetPath, agg)
	if err != nil {
		return nil, "", err
	}

	slog.Info("Evaluation run complete",
		"f1", fmt.Sprintf("%.2f", agg.MeanF1),
		"zone_accuracy", fmt.Sprintf("%.2f", agg.MeanZoneAccuracy),
		"report", path)
	return agg, path, nil
}

func (r *Runner) evaluateRecord(ctx context.Context, loader *dataset.Loader, record *dataset.MealRecord, opts Options) metrics.MealResult {
	result := metrics.MealResult{ID: record.ID, Description: record.Description}

	uri, err := loadImageURI(loader.ResolveImage(record))
	if err != nil {
		result.Error = err.Error()
		return result
	}

	start := time.Now()
	extracted, err := r.extractor.AnalyzeImages(ctx, []string{uri}, opts.Provider, opts.Model)
	result.ProcessingTime = time.Since(start)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.Comparison = metrics.CompareIngredients(record.Ingredients(), extracted.Ingredients)
	return result
}

// loadImageURI reads an image file and encodes it as a data URI.
func loadImageURI(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}

	var mime string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		mime = "image/jpeg"
	case ".png":
		mime = "image/png"
	case ".gif":
		mime = "image/gif"
	case ".webp":
		mime = "image/webp"
	default:
		return "", fmt.Errorf("unsupported image extension %s", filepath.Ext(path))
	}

	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
