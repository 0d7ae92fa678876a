package nutrition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validTextResponse = `{
	"healthScore": 72,
	"sustainabilityScore": 55,
	"analysis": "Buon profilo nutrizionale complessivo.",
	"sustainabilityAnalysis": "Impatto ambientale moderato.",
	"pros": [{"title": "Fibre", "detail": "Ricco di fibre"}],
	"cons": [{"title": "Sale", "detail": "Contenuto di sodio elevato"}],
	"sustainabilityPros": [{"title": "Confezione", "detail": "Imballaggio riciclabile"}],
	"sustainabilityCons": [{"title": "Olio di palma", "detail": "Presente olio di palma"}],
	"recommendations": ["Consumare con moderazione"],
	"sustainabilityRecommendations": ["Preferire alternative locali"],
	"explanations": {"nutriScore": "Il punteggio riflette zuccheri e fibre"}
}`

func TestParser_Parse_TextMode(t *testing.T) {
	p := NewParser(nil)

	result, failure := p.Parse("```json\n"+validTextResponse+"\n```", ModeText)
	require.Nil(t, failure)
	require.NotNil(t, result)

	assert.Equal(t, 72, result.HealthScore)
	assert.Equal(t, 55, result.SustainabilityScore)
	assert.Equal(t, "Buon profilo nutrizionale complessivo.", result.Analysis)
	assert.Len(t, result.Pros, 1)
	assert.Len(t, result.SustainabilityCons, 1)
	assert.Equal(t, []string{"Consumare con moderazione"}, result.Recommendations)
	require.NotNil(t, result.Explanations)
	assert.Equal(t, "Il punteggio riflette zuccheri e fibre", result.Explanations.NutriScore)
}

func TestParser_Parse_PhotoModeZeroesSustainability(t *testing.T) {
	p := NewParser(nil)

	raw := `{
		"healthScore": 60,
		"sustainabilityScore": 80,
		"analysis": "Piatto di pasta al pomodoro.",
		"sustainabilityAnalysis": "non richiesta",
		"pros": [],
		"cons": [],
		"sustainabilityPros": [{"title": "x", "detail": "y"}],
		"recommendations": [],
		"caloriesEstimate": "Totale: ~620 kcal",
		"calorieEstimationType": "per_100g"
	}`

	result, failure := p.Parse(raw, ModePhoto)
	require.Nil(t, failure)

	// Photo mode has no sustainability contract; whatever the model
	// volunteered is dropped.
	assert.Equal(t, 0, result.SustainabilityScore)
	assert.Empty(t, result.SustainabilityAnalysis)
	assert.Nil(t, result.SustainabilityPros)
	assert.Nil(t, result.SustainabilityCons)
	assert.Nil(t, result.SustainabilityRecommendations)

	assert.Equal(t, 60, result.HealthScore)
	assert.Equal(t, "Totale: ~620 kcal", result.CaloriesEstimate)
	assert.Equal(t, EstimationPer100g, result.CalorieEstimationType)
}

func TestParser_Parse_Failures(t *testing.T) {
	p := NewParser(nil)

	tests := []struct {
		name   string
		raw    string
		mode   Mode
		reason FailureReason
	}{
		{
			name:   "no JSON at all",
			raw:    "Mi dispiace, non posso analizzare questo prodotto.",
			mode:   ModeText,
			reason: NoJSONFound,
		},
		{
			name:   "unbalanced object",
			raw:    `{"healthScore": 72, "analysis": "tronc`,
			mode:   ModeText,
			reason: NoJSONFound,
		},
		{
			name:   "missing core fields",
			raw:    `{"healthScore": 72}`,
			mode:   ModeText,
			reason: CoreFieldsInvalid,
		},
		{
			name:   "health score not a number",
			raw:    `{"healthScore": "alto", "analysis": "x", "pros": [], "cons": [], "recommendations": []}`,
			mode:   ModeText,
			reason: CoreFieldsInvalid,
		},
		{
			name:   "photo mode missing calorie fields",
			raw:    `{"healthScore": 60, "analysis": "x", "pros": [], "cons": [], "recommendations": []}`,
			mode:   ModePhoto,
			reason: CoreFieldsInvalid,
		},
		{
			name:   "photo mode bad estimation type",
			raw:    `{"healthScore": 60, "analysis": "x", "pros": [], "cons": [], "recommendations": [], "caloriesEstimate": "~100 kcal", "calorieEstimationType": "guess"}`,
			mode:   ModePhoto,
			reason: CoreFieldsInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, failure := p.Parse(tt.raw, tt.mode)
			assert.Nil(t, result)
			require.NotNil(t, failure)
			assert.Equal(t, tt.reason, failure.Reason)
			if tt.reason == CoreFieldsInvalid {
				require.NotNil(t, failure.Report)
				assert.NotEmpty(t, failure.Report.Errors)
			}
		})
	}
}

func TestParser_Parse_TextModeSustainabilityDegrades(t *testing.T) {
	p := NewParser(nil)

	// Sustainability block absent entirely: warnings, not errors.
	raw := `{"healthScore": 40, "analysis": "ok", "pros": [], "cons": [], "recommendations": []}`
	result, failure := p.Parse(raw, ModeText)
	require.Nil(t, failure)
	assert.Equal(t, 0, result.SustainabilityScore)
	assert.Empty(t, result.SustainabilityAnalysis)
}

func TestParser_Parse_Breakdown(t *testing.T) {
	p := NewParser(nil)

	raw := `{
		"healthScore": 65, "analysis": "Piatto misto", "pros": [], "cons": [], "recommendations": [],
		"caloriesEstimate": "Totale: ~540 kcal",
		"calorieEstimationType": "breakdown",
		"ingredientsBreakdown": [
			{"id": "ing-1", "name": "Pasta", "estimatedWeightGrams": 120, "estimatedCaloriesKcal": 420, "estimatedProteinsGrams": 14.5},
			{"id": "ing-2", "name": "Pomodoro", "quantity": 2, "estimatedWeightGrams": 60, "estimatedCaloriesKcal": 60}
		]
	}`

	result, failure := p.Parse(raw, ModePhoto)
	require.Nil(t, failure)
	require.Len(t, result.IngredientsBreakdown, 2)

	first := result.IngredientsBreakdown[0]
	assert.Equal(t, "ing-1", first.ID)
	assert.Equal(t, 1, first.Quantity)
	assert.Equal(t, 120.0, first.EstimatedWeightGrams)
	require.NotNil(t, first.EstimatedProteinsGrams)
	assert.Equal(t, 14.5, *first.EstimatedProteinsGrams)
	assert.Nil(t, first.EstimatedFatsGrams)

	assert.Equal(t, 2, result.IngredientsBreakdown[1].Quantity)
}

func TestParser_Parse_BreakdownDroppedOnBadElement(t *testing.T) {
	p := NewParser(nil)

	// One element missing calories: the whole breakdown is dropped, the
	// parse still succeeds.
	raw := `{
		"healthScore": 65, "analysis": "Piatto misto", "pros": [], "cons": [], "recommendations": [],
		"caloriesEstimate": "Totale: ~540 kcal",
		"calorieEstimationType": "breakdown",
		"ingredientsBreakdown": [
			{"id": "ing-1", "name": "Pasta", "estimatedWeightGrams": 120, "estimatedCaloriesKcal": 420},
			{"id": "ing-2", "name": "Pomodoro", "estimatedWeightGrams": 60}
		]
	}`

	result, failure := p.Parse(raw, ModePhoto)
	require.Nil(t, failure)
	assert.Empty(t, result.IngredientsBreakdown)
	assert.Equal(t, EstimationBreakdown, result.CalorieEstimationType)
}

func TestParser_Parse_BreakdownDiscardedForNonBreakdownType(t *testing.T) {
	p := NewParser(nil)

	raw := `{
		"healthScore": 65, "analysis": "Snack confezionato", "pros": [], "cons": [], "recommendations": [],
		"caloriesEstimate": "~480 kcal per 100g",
		"calorieEstimationType": "per_100g",
		"ingredientsBreakdown": [
			{"id": "ing-1", "name": "Biscotto", "estimatedWeightGrams": 30, "estimatedCaloriesKcal": 150}
		]
	}`

	result, failure := p.Parse(raw, ModePhoto)
	require.Nil(t, failure)
	assert.Empty(t, result.IngredientsBreakdown)
	assert.Equal(t, EstimationPer100g, result.CalorieEstimationType)
}

func TestCoercePortion(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  *int
	}{
		{name: "number", input: float64(80), want: intPtr(80)},
		{name: "numeric string", input: "80", want: intPtr(80)},
		{name: "padded string", input: " 80 ", want: intPtr(80)},
		{name: "non-numeric string", input: "una porzione", want: nil},
		{name: "nil", input: nil, want: nil},
		{name: "bool", input: true, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := coercePortion(tt.input)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func intPtr(n int) *int { return &n }
