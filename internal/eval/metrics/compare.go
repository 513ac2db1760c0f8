// Package metrics scores extracted ingredient lists against labeled
// ground truth.
package metrics

import (
	"strings"

	"github.com/craigvandotcom/eatzone/internal/models"
)

// fuzzyThreshold is the minimum name similarity that still counts as the
// same ingredient. "red bell pepper" vs "bell pepper" should match;
// "rice" vs "ice cream" should not.
const fuzzyThreshold = 0.8

// IngredientMatch pairs one expected ingredient with the extracted
// ingredient it was matched to, if any.
type IngredientMatch struct {
	Expected  string
	Actual    string
	Score     float64 // name similarity, 0.0 to 1.0
	ZoneMatch bool
}

// Comparison is the per-meal scoring result.
type Comparison struct {
	Matches  []IngredientMatch
	Missing  []string // labeled but not extracted
	Spurious []string // extracted but not labeled

	Precision    float64
	Recall       float64
	F1           float64
	ZoneAccuracy float64 // over matched pairs only
}

// CompareIngredients matches extracted ingredients to the labeled set by
// normalized name with fuzzy tolerance, then computes precision, recall,
// F1 and zone accuracy. Each extracted ingredient is consumed by at most
// one label.
func CompareIngredients(expected, actual []models.Ingredient) *Comparison {
	cmp := &Comparison{}
	used := make([]bool, len(actual))

	for _, want := range expected {
		bestIdx := -1
		bestScore := 0.0
		wantNorm := normalizeName(want.Name)

		for i, got := range actual {
			if used[i] {
				continue
			}
			score := similarity(wantNorm, normalizeName(got.Name))
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}

		if bestIdx >= 0 && bestScore >= fuzzyThreshold {
			used[bestIdx] = true
			cmp.Matches = append(cmp.Matches, IngredientMatch{
				Expected:  want.Name,
				Actual:    actual[bestIdx].Name,
				Score:     bestScore,
				ZoneMatch: want.Zone == actual[bestIdx].Zone,
			})
		} else {
			cmp.Missing = append(cmp.Missing, want.Name)
		}
	}

	for i, got := range actual {
		if !used[i] {
			cmp.Spurious = append(cmp.Spurious, got.Name)
		}
	}

	matched := float64(len(cmp.Matches))
	if len(actual) > 0 {
		cmp.Precision = matched / float64(len(actual))
	}
	if len(expected) > 0 {
		cmp.Recall = matched / float64(len(expected))
	}
	if cmp.Precision+cmp.Recall > 0 {
		cmp.F1 = 2 * cmp.Precision * cmp.Recall / (cmp.Precision + cmp.Recall)
	}

	if len(cmp.Matches) > 0 {
		zoneHits := 0
		for _, m := range cmp.Matches {
			if m.ZoneMatch {
				zoneHits++
			}
		}
		cmp.ZoneAccuracy = float64(zoneHits) / matched
	}

	return cmp
}

func normalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// similarity calculates a similarity ratio (0.0 to 1.0) using
// Levenshtein distance. A substring relationship between multi-word
// names scores at least the fuzzy threshold.
func similarity(s1, s2 string) float64 {
	if s1 == s2 {
		return 1.0
	}
	if s1 == "" || s2 == "" {
		return 0.0
	}
	if strings.Contains(s1, s2) || strings.Contains(s2, s1) {
		shorter, longer := len(s1), len(s2)
		if shorter > longer {
			shorter, longer = longer, shorter
		}
		ratio := float64(shorter) / float64(longer)
		if ratio < fuzzyThreshold {
			ratio = fuzzyThreshold
		}
		return ratio
	}

	distance := levenshteinDistance(s1, s2)
	maxLen := len(s1)
	if len(s2) > maxLen {
		maxLen = len(s2)
	}
	return 1.0 - float64(distance)/float64(maxLen)
}

func levenshteinDistance(s1, s2 string) int {
	r1 := []rune(s1)
	r2 := []rune(s2)

	prev := make([]int, len(r2)+1)
	curr := make([]int, len(r2)+1)

	for j := 0; j <= len(r2); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(r1); i++ {
		curr[0] = i
		for j := 1; j <= len(r2); j++ {
			cost := 1
			if r1[i-1] == r2[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}

	return prev[len(r2)]
}
