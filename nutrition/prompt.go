package nutrition

import (
	"fmt"
	"sort"
	"strings"
)

// buildTextPrompt assembles the text-mode prompt from structured product
// metadata. The output contract pins the exact JSON shape the parser
// validates, including the sustainability block.
func buildTextPrompt(product *ProductData) string {
	var sb strings.Builder

	sb.WriteString("You are a nutrition expert evaluating a packaged food product for an Italian consumer app. ")
	sb.WriteString("Respond with a single JSON object and nothing else. All human-readable text must be in Italian.\n\n")

	sb.WriteString("PRODUCT:\n")
	if product.Name != "" {
		sb.WriteString(fmt.Sprintf("- Name: %s\n", product.Name))
	}
	if product.Brand != "" {
		sb.WriteString(fmt.Sprintf("- Brand: %s\n", product.Brand))
	}
	if len(product.Nutrients) > 0 {
		sb.WriteString("- Nutrients per 100g:\n")
		keys := make([]string, 0, len(product.Nutrients))
		for k := range product.Nutrients {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("  - %s: %s\n", k, product.Nutrients[k]))
		}
	}
	if len(product.Additives) > 0 {
		sb.WriteString(fmt.Sprintf("- Additives: %s\n", strings.Join(product.Additives, ", ")))
	}
	if len(product.Labels) > 0 {
		sb.WriteString(fmt.Sprintf("- Labels: %s\n", strings.Join(product.Labels, ", ")))
	}
	if product.NutriScore != "" {
		sb.WriteString(fmt.Sprintf("- Nutri-Score: %s\n", product.NutriScore))
	}
	if product.NovaGroup > 0 {
		sb.WriteString(fmt.Sprintf("- NOVA group: %d\n", product.NovaGroup))
	}
	if product.EcoScore != "" {
		sb.WriteString(fmt.Sprintf("- Eco-Score: %s\n", product.EcoScore))
	}
	sb.WriteString("\n")

	sb.WriteString("OUTPUT FORMAT (JSON object, no markdown, no commentary):\n")
	sb.WriteString(`{
  "healthScore": <integer 0-100>,
  "analysis": "<at most 2 sentences in Italian>",
  "pros": [{"title": "...", "detail": "..."}],
  "cons": [{"title": "...", "detail": "..."}],
  "recommendations": ["<at most 2 items>"],
  "sustainabilityScore": <integer 0-100>,
  "sustainabilityAnalysis": "<at most 2 sentences in Italian>",
  "sustainabilityPros": [{"title": "...", "detail": "..."}],
  "sustainabilityCons": [{"title": "...", "detail": "..."}],
  "sustainabilityRecommendations": ["<at most 2 items>"],
  "explanations": {"nutriScore": "...", "novaGroup": "...", "ecoScore": "..."}
}`)
	sb.WriteString("\n\nRULES:\n")
	sb.WriteString("- Do NOT restate the Nutri-Score, NOVA group or Eco-Score as pros or cons; the app shows them separately.\n")
	sb.WriteString("- Every field listed above is required.\n")

	return sb.String()
}

// buildPhotoPrompt assembles the photo-mode prompt. The image travels as an
// inline part next to this text; the contract covers the three calorie
// estimation types and forbids the sustainability block, which photo
// results never carry.
func buildPhotoPrompt(photo *PhotoData) string {
	var sb strings.Builder

	sb.WriteString("You are a nutrition expert analyzing a photo of a food product or meal for an Italian consumer app. ")
	sb.WriteString("Respond with a single JSON object and nothing else. All human-readable text must be in Italian.\n\n")

	if photo.Hint != "" {
		sb.WriteString(fmt.Sprintf("USER HINT: %s\n\n", photo.Hint))
	}

	sb.WriteString("OUTPUT FORMAT (JSON object, no markdown, no commentary):\n")
	sb.WriteString(`{
  "healthScore": <integer 0-100>,
  "analysis": "<at most 2 sentences in Italian>",
  "pros": [{"title": "...", "detail": "..."}],
  "cons": [{"title": "...", "detail": "..."}],
  "recommendations": ["<at most 2 items>"],
  "calorieEstimationType": "<breakdown | per_100g | per_serving_packaged>",
  "caloriesEstimate": "<human-readable, e.g. 'Totale: ~620 kcal' or '~450 kcal per 100g'>",
  "suggestedPortionGrams": <integer, optional>,
  "ingredientsBreakdown": [
    {"id": "<stable-id>", "name": "...", "quantity": <integer>,
     "estimatedWeightGrams": <number>, "estimatedCaloriesKcal": <number>,
     "estimatedProteinsGrams": <number>, "estimatedCarbsGrams": <number>, "estimatedFatsGrams": <number>}
  ]
}`)
	sb.WriteString("\n\nRULES:\n")
	sb.WriteString("- Use \"breakdown\" for prepared meals with identifiable components and itemize every component.\n")
	sb.WriteString("- Use \"per_100g\" or \"per_serving_packaged\" for single packaged products and leave ingredientsBreakdown empty.\n")
	sb.WriteString("- Do not include sustainability fields of any kind.\n")

	return sb.String()
}

// buildIngredientPrompt asks for the nutrition of one named ingredient.
// When no weight is given the model assumes an average portion.
func buildIngredientPrompt(name string, weightGrams *float64) string {
	var sb strings.Builder

	sb.WriteString("You are a nutrition database. Estimate the nutrition of a single ingredient.\n\n")
	if weightGrams != nil {
		sb.WriteString(fmt.Sprintf("INGREDIENT: %s, %.0f grams\n\n", name, *weightGrams))
	} else {
		sb.WriteString(fmt.Sprintf("INGREDIENT: %s (assume an average portion and report its weight)\n\n", name))
	}

	sb.WriteString("Respond with a single JSON object and nothing else:\n")
	sb.WriteString(`{
  "caloriesKcal": <number, required>,
  "weightGrams": <number>,
  "proteinsGrams": <number>,
  "carbsGrams": <number>,
  "fatsGrams": <number>
}`)

	return sb.String()
}
