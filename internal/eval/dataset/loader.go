// Package dataset loads labeled meal datasets for offline evaluation of
// the ingredient-extraction pipeline. Both Parquet and JSONL files are
// supported.
package dataset

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"
)

// Loader reads meal records from a dataset file.
type Loader struct {
	datasetPath string
}

func NewLoader(datasetPath string) *Loader {
	return &Loader{datasetPath: datasetPath}
}

// Load reads records from the dataset file. limit caps the number of
// records returned (0 means all).
func (l *Loader) Load(limit int) ([]MealRecord, error) {
	switch ext := strings.ToLower(filepath.Ext(l.datasetPath)); ext {
	case ".parquet":
		return l.loadParquet(limit)
	case ".jsonl", ".json":
		return l.loadJSONL(limit)
	default:
		return nil, fmt.Errorf("unsupported dataset format %s (supported: .parquet, .jsonl)", ext)
	}
}

// ResolveImage returns the absolute path of a record's photo, resolving
// relative paths against the dataset file's directory.
func (l *Loader) ResolveImage(record *MealRecord) string {
	if filepath.IsAbs(record.ImagePath) {
		return record.ImagePath
	}
	return filepath.Join(filepath.Dir(l.datasetPath), record.ImagePath)
}

func (l *Loader) loadJSONL(limit int) ([]MealRecord, error) {
	file, err := os.Open(l.datasetPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset file: %w", err)
	}
	defer file.Close()

	var records []MealRecord
	scanner := bufio.NewScanner(file)
	const maxCapacity = 10 * 1024 * 1024
	scanner.Buffer(make([]byte, maxCapacity), maxCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var record MealRecord
		if err := json.Unmarshal(line, &record); err != nil {
			return nil, fmt.Errorf("failed to parse JSON at line %d: %w", lineNum, err)
		}
		records = append(records, record)
		if limit > 0 && len(records) >= limit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading dataset: %w", err)
	}

	slog.Debug("Loaded JSONL dataset", "path", l.datasetPath, "records", len(records))
	return records, nil
}

func (l *Loader) loadParquet(limit int) ([]MealRecord, error) {
	file, err := os.Open(l.datasetPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	reader := parquet.NewGenericReader[MealRecord](pf)
	defer reader.Close()

	var records []MealRecord
	rows := make([]MealRecord, 128)

	for limit == 0 || len(records) < limit {
		n, err := reader.Read(rows)
		if n > 0 {
			if limit > 0 && len(records)+n > limit {
				n = limit - len(records)
			}
			records = append(records, rows[:n]...)
		}
		if err != nil {
			break
		}
	}

	slog.Debug("Loaded parquet dataset", "path", l.datasetPath, "records", len(records), "total_rows", pf.NumRows())
	return records, nil
}
