package models

import "time"

// Zone is the traffic-light classification assigned to an ingredient,
// indicating dietary desirability.
type Zone string

const (
	ZoneGreen   Zone = "green"
	ZoneYellow  Zone = "yellow"
	ZoneRed     Zone = "red"
	ZoneUnzoned Zone = "unzoned"
)

// Valid reports whether z is one of the four known zones.
func (z Zone) Valid() bool {
	switch z {
	case ZoneGreen, ZoneYellow, ZoneRed, ZoneUnzoned:
		return true
	}
	return false
}

// Ingredient is a single food component of an entry.
type Ingredient struct {
	Name    string `json:"name"`
	Zone    Zone   `json:"zone"`
	Organic bool   `json:"organic"`
	// FromAI marks ingredients sourced from the analysis service rather
	// than typed by the user. User edits always win over AI values.
	FromAI bool `json:"from_ai,omitempty"`
}

// Entry represents one logged meal.
type Entry struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Notes       string       `json:"notes,omitempty"`
	Ingredients []Ingredient `json:"ingredients"`
	// Images holds the normalized data-URI payloads the entry was built
	// from. They exist only for the duration of a submission.
	Images    []string  `json:"images,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	CreatedAt time.Time `json:"created_at"`
}

// AnalysisResult is the ingredient-analysis service's answer for one batch.
type AnalysisResult struct {
	MealSummary string       `json:"mealSummary"`
	Ingredients []Ingredient `json:"ingredients"`
}
