// Package analysis implements both sides of the ingredient-analysis
// boundary: the HTTP client the submission coordinator talks to, and the
// provider-backed service that answers those requests in serve mode.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/craigvandotcom/eatzone/internal/gemini"
	"github.com/craigvandotcom/eatzone/internal/models"
	"github.com/craigvandotcom/eatzone/internal/ollama"
	"github.com/craigvandotcom/eatzone/internal/openai"
	"github.com/craigvandotcom/eatzone/internal/providers"
)

// Service extracts ingredients from meal photos via a vision-capable LLM.
type Service struct{}

// NewService returns a new analysis service.
func NewService() *Service {
	return &Service{}
}

// AnalyzeImages runs one batch of data-URI images through the configured
// provider and returns the meal summary and classified ingredients. An empty
// ingredient list is a valid answer, not an error.
func (s *Service) AnalyzeImages(ctx context.Context, images []string, providerName, model string) (*models.AnalysisResult, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("no images to analyze")
	}

	if providerName == "" {
		providerName = os.Getenv("ANALYSIS_PROVIDER")
		if providerName == "" {
			providerName = "ollama"
		}
	}
	if model == "" {
		model = defaultModel(providerName)
	}

	provider, err := providerFor(providerName)
	if err != nil {
		return nil, err
	}

	raw, err := provider.ExtractText(ctx, providers.Config{
		Model:       model,
		Temperature: 0.1, // low temperature for consistent, factual output
		Prompt:      buildIngredientPrompt(len(images)),
		Images:      images,
	})
	if err != nil {
		return nil, fmt.Errorf("analysis provider failed: %w", err)
	}

	result := parseAnalysisResponse(raw)
	slog.Info("Analyzed meal images",
		"provider", providerName, "model", model,
		"images", len(images), "ingredients", len(result.Ingredients))
	return result, nil
}

func providerFor(name string) (providers.Provider, error) {
	switch name {
	case "openai":
		return openai.New(), nil
	case "ollama":
		return ollama.New(), nil
	case "gemini":
		return gemini.New(), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", name)
	}
}

func defaultModel(provider string) string {
	switch provider {
	case "openai":
		if model := os.Getenv("OPENAI_MODEL"); model != "" {
			return model
		}
		return "gpt-4o"
	case "ollama":
		if model := os.Getenv("OLLAMA_MODEL"); model != "" {
			return model
		}
		return "llava:13b"
	case "gemini":
		if model := os.Getenv("GEMINI_MODEL"); model != "" {
			return model
		}
		return "gemini-1.5-flash"
	default:
		return ""
	}
}

func buildIngredientPrompt(imageCount int) string {
	subject := "this photo of a meal"
	if imageCount > 1 {
		subject = fmt.Sprintf("these %d photos of one meal", imageCount)
	}

	return fmt.Sprintf(`You are a nutritionist cataloging the contents of meals from photographs.

Analyze %s and identify every distinct ingredient you can see.

INSTRUCTIONS:
1. Name each ingredient plainly (e.g. "brown rice", "grilled chicken", "avocado").
2. For each ingredient, judge whether it appears to be organic/whole-food
   (unprocessed) or not. When in doubt, mark organic as false.
3. Classify each ingredient into a dietary zone:
   - "green" for whole, minimally processed foods
   - "yellow" for moderately processed foods
   - "red" for heavily processed foods, refined sugars, seed oils
   - "unzoned" when you cannot judge
4. Write a short meal summary (a handful of words, like a dish name).
5. Do not invent ingredients that are not visible.

OUTPUT FORMAT:
Respond with ONLY a JSON object:

{
  "mealSummary": "...",
  "ingredients": [
    {"name": "...", "organic": false, "zone": "green"}
  ]
}

If no food is visible, return an empty ingredients array. Be precise and
report only what is clearly present.`, subject)
}

// parseAnalysisResponse decodes the provider's JSON answer, tolerating
// markdown code fences around it. Unparseable output degrades to an empty
// result rather than failing the batch.
func parseAnalysisResponse(response string) *models.AnalysisResult {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	response = strings.TrimSpace(response)

	var result models.AnalysisResult
	if err := json.Unmarshal([]byte(response), &result); err != nil {
		slog.Warn("Failed to parse analysis response, returning empty result", "error", err)
		return &models.AnalysisResult{}
	}

	for i := range result.Ingredients {
		result.Ingredients[i].FromAI = true
		if !result.Ingredients[i].Zone.Valid() {
			result.Ingredients[i].Zone = models.ZoneUnzoned
		}
	}
	return &result
}
