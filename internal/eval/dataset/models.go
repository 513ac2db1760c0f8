package dataset

import "github.com/craigvandotcom/eatzone/internal/models"

// MealRecord is one labeled meal in the evaluation dataset. Ingredient
// names and zones are parallel lists so the parquet schema stays flat.
type MealRecord struct {
	ID          string `json:"id" parquet:"id"`
	Description string `json:"description" parquet:"description"`

	// Path to the meal photo, relative to the dataset file.
	ImagePath string `json:"image_path" parquet:"image_path"`

	IngredientNames []string `json:"ingredient_names" parquet:"ingredient_names,list"`
	IngredientZones []string `json:"ingredient_zones" parquet:"ingredient_zones,list"`
}

// Ingredients converts the parallel label lists into model ingredients.
// A missing or invalid zone label degrades to unzoned.
func (r *MealRecord) Ingredients() []models.Ingredient {
	out := make([]models.Ingredient, 0, len(r.IngredientNames))
	for i, name := range r.IngredientNames {
		zone := models.ZoneUnzoned
		if i < len(r.IngredientZones) {
			if z := models.Zone(r.IngredientZones[i]); z.Valid() {
				zone = z
			}
		}
		out = append(out, models.Ingredient{Name: name, Zone: zone})
	}
	return out
}
