// Package results writes evaluation runs to YAML files so runs can be
// diffed across providers, models, and prompt changes.
package results

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/craigvandotcom/eatzone/internal/eval/metrics"
)

// RunConfig records what was evaluated.
type RunConfig struct {
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	DatasetPath string `yaml:"datasetpath"`
	SampleSize  int    `yaml:"samplesize"`
	Timestamp   string `yaml:"timestamp"`
}

// RunSummary holds the run-level statistics.
type RunSummary struct {
	TotalRecords     int     `yaml:"totalrecords"`
	SuccessCount     int     `yaml:"successcount"`
	FailureCount     int     `yaml:"failurecount"`
	MeanPrecision    float64 `yaml:"meanprecision"`
	MeanRecall       float64 `yaml:"meanrecall"`
	MeanF1           float64 `yaml:"meanf1"`
	MeanZoneAccuracy float64 `yaml:"meanzoneaccuracy"`
	TotalSeconds     float64 `yaml:"totalseconds"`
}

// MealResult is the per-meal section of the YAML output.
type MealResult struct {
	ID           string   `yaml:"id"`
	Description  string   `yaml:"description,omitempty"`
	Precision    float64  `yaml:"precision"`
	Recall       float64  `yaml:"recall"`
	F1           float64  `yaml:"f1"`
	ZoneAccuracy float64  `yaml:"zoneaccuracy"`
	Missing      []string `yaml:"missing,omitempty"`
	Spurious     []string `yaml:"spurious,omitempty"`
	Error        string   `yaml:"error,omitempty"`
}

// RunSpec is the complete YAML document for one evaluation run.
type RunSpec struct {
	Config  RunConfig    `yaml:"config"`
	Summary RunSummary   `yaml:"summary"`
	Results []MealResult `yaml:"results"`
}

// SaveToYAML writes one run to outDir, named by timestamp and model.
// It returns the path of the written file.
func SaveToYAML(outDir, datasetPath string, agg *metrics.AggregateResults) (string, error) {
	if outDir == "" {
		outDir = "evals"
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create results directory: %w", err)
	}

	timestamp := agg.EvaluationDate.Format("2006-01-02_15-04-05")

	spec := RunSpec{
		Config: RunConfig{
			Provider:    agg.Provider,
			Model:       agg.Model,
			DatasetPath: datasetPath,
			SampleSize:  agg.TotalRecords,
			Timestamp:   timestamp,
		},
		Summary: RunSummary{
			TotalRecords:     agg.TotalRecords,
			SuccessCount:     agg.SuccessCount,
			FailureCount:     agg.FailureCount,
			MeanPrecision:    agg.MeanPrecision,
			MeanRecall:       agg.MeanRecall,
			MeanF1:           agg.MeanF1,
			MeanZoneAccuracy: agg.MeanZoneAccuracy,
			TotalSeconds:     agg.TotalProcessingTime.Seconds(),
		},
		Results: make([]MealResult, 0, len(agg.Results)),
	}

	for _, r := range agg.Results {
		result := MealResult{
			ID:          r.ID,
			Description: r.Description,
			Error:       r.Error,
		}
		if r.Comparison != nil {
			result.Precision = r.Comparison.Precision
			result.Recall = r.Comparison.Recall
			result.F1 = r.Comparison.F1
			result.ZoneAccuracy = r.Comparison.ZoneAccuracy
			result.Missing = r.Comparison.Missing
			result.Spurious = r.Comparison.Spurious
		}
		spec.Results = append(spec.Results, result)
	}

	data, err := yaml.Marshal(&spec)
	if err != nil {
		return "", fmt.Errorf("failed to marshal results: %w", err)
	}

	filename := fmt.Sprintf("eval_%s_%s.yaml", timestamp, sanitize(agg.Model))
	path := filepath.Join(outDir, filename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write results file: %w", err)
	}
	return path, nil
}

func sanitize(model string) string {
	out := make([]rune, 0, len(model))
	for _, r := range model {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return fmt.Sprintf("run_%d", time.Now().Unix())
	}
	return string(out)
}
