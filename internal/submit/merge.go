package submit

import (
	"strings"

	"github.com/craigvandotcom/eatzone/internal/models"
)

// MergeIngredients folds AI-sourced ingredients into the user's existing
// set and returns a new slice; neither input is mutated. Precedence is
// user edits > AI classification > defaults: an ingredient the user already
// has keeps every user-set field, and AI values only fill gaps. New AI
// ingredients arrive with the unzoned default when the service gave no
// usable zone.
func MergeIngredients(existing, ai []models.Ingredient) []models.Ingredient {
	merged := make([]models.Ingredient, len(existing))
	copy(merged, existing)

	seen := make(map[string]int, len(existing))
	for i, ing := range existing {
		seen[normalizeName(ing.Name)] = i
	}

	for _, ing := range ai {
		key := normalizeName(ing.Name)
		if key == "" {
			continue
		}
		if i, ok := seen[key]; ok {
			// The user already has this ingredient; only fill in a
			// classification they never set.
			if !merged[i].Zone.Valid() {
				merged[i].Zone = defaultZone(ing.Zone)
			}
			continue
		}
		ing.Zone = defaultZone(ing.Zone)
		ing.FromAI = true
		merged = append(merged, ing)
		seen[key] = len(merged) - 1
	}
	return merged
}

// MergeName pre-fills the meal name from the AI summary only when the user
// has not typed one; a user-entered name is never overwritten.
func MergeName(userName, aiSummary string) string {
	if strings.TrimSpace(userName) != "" {
		return userName
	}
	return aiSummary
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func defaultZone(z models.Zone) models.Zone {
	if z.Valid() {
		return z
	}
	return models.ZoneUnzoned
}
