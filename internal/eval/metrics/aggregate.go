package metrics

import "time"

// MealResult is the outcome of evaluating one labeled meal.
type MealResult struct {
	ID             string
	Description    string
	Comparison     *Comparison
	ProcessingTime time.Duration
	Error          string // non-empty when extraction failed
}

// AggregateResults summarizes a full evaluation run.
type AggregateResults struct {
	TotalRecords int
	SuccessCount int
	FailureCount int

	MeanPrecision    float64
	MeanRecall       float64
	MeanF1           float64
	MeanZoneAccuracy float64

	AverageProcessingTime time.Duration
	TotalProcessingTime   time.Duration

	Results []MealResult

	EvaluationDate time.Time
	Provider       string
	Model          string
}

// Aggregate rolls per-meal results into run-level statistics. Failed
// extractions count against the run but not against the quality means.
func Aggregate(results []MealResult, provider, model string) *AggregateResults {
	agg := &AggregateResults{
		TotalRecords:   len(results),
		Results:        results,
		EvaluationDate: time.Now(),
		Provider:       provider,
		Model:          model,
	}

	var precision, recall, f1, zone float64
	for _, r := range results {
		agg.TotalProcessingTime += r.ProcessingTime
		if r.Error != "" || r.Comparison == nil {
			agg.FailureCount++
			continue
		}
		agg.SuccessCount++
		precision += r.Comparison.Precision
		recall += r.Comparison.Recall
		f1 += r.Comparison.F1
		zone += r.Comparison.ZoneAccuracy
	}

	if agg.SuccessCount > 0 {
		n := float64(agg.SuccessCount)
		agg.MeanPrecision = precision / n
		agg.MeanRecall = recall / n
		agg.MeanF1 = f1 / n
		agg.MeanZoneAccuracy = zone / n
	}
	if agg.TotalRecords > 0 {
		agg.AverageProcessingTime = agg.TotalProcessingTime / time.Duration(agg.TotalRecords)
	}

	return agg
}
