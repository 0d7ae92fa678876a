// Package nutrition implements the AI nutrition analysis engine: it turns
// unreliable free-text model responses into validated, typed nutrition
// records, with mode-specific validation, content filtering, fallback
// synthesis and short-TTL result caching.
package nutrition

// Mode selects the analysis flow: text mode works from structured product
// metadata (barcode lookup), photo mode from an image of the product or meal.
type Mode string

const (
	ModeText  Mode = "text"
	ModePhoto Mode = "photo"
)

// CalorieEstimationType describes how the model estimated calories.
type CalorieEstimationType string

const (
	// EstimationBreakdown itemizes a meal into named components.
	EstimationBreakdown CalorieEstimationType = "breakdown"
	// EstimationPer100g expresses calories as a rate per 100g.
	EstimationPer100g CalorieEstimationType = "per_100g"
	// EstimationPerServing expresses calories per packaged serving.
	EstimationPerServing CalorieEstimationType = "per_serving_packaged"
)

// ValidEstimationType reports whether t is one of the known enum values.
func ValidEstimationType(t CalorieEstimationType) bool {
	switch t {
	case EstimationBreakdown, EstimationPer100g, EstimationPerServing:
		return true
	}
	return false
}

// ScoredPoint is a single pro or con item rendered in the UI.
type ScoredPoint struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// Explanations carries optional per-score free text, independent of the
// numeric scores themselves.
type Explanations struct {
	NutriScore string `json:"nutriScore,omitempty"`
	NovaGroup  string `json:"novaGroup,omitempty"`
	EcoScore   string `json:"ecoScore,omitempty"`
}

// AnalysisResult is an immutable snapshot of one AI evaluation.
// In photo mode all sustainability fields are zero/empty by contract.
type AnalysisResult struct {
	HealthScore         int    `json:"healthScore"`
	SustainabilityScore int    `json:"sustainabilityScore"`
	Analysis            string `json:"analysis"`
	// SustainabilityAnalysis is empty in photo mode.
	SustainabilityAnalysis string `json:"sustainabilityAnalysis,omitempty"`

	Pros               []ScoredPoint `json:"pros"`
	Cons               []ScoredPoint `json:"cons"`
	SustainabilityPros []ScoredPoint `json:"sustainabilityPros,omitempty"`
	SustainabilityCons []ScoredPoint `json:"sustainabilityCons,omitempty"`

	// Recommendations are advisory, max 2 each by prompt contract
	// (not enforced here).
	Recommendations               []string `json:"recommendations"`
	SustainabilityRecommendations []string `json:"sustainabilityRecommendations,omitempty"`

	// CalorieEstimationType is empty when the model produced no calorie
	// estimation (text mode responses typically omit it).
	CalorieEstimationType CalorieEstimationType `json:"calorieEstimationType,omitempty"`

	// IngredientsBreakdown is populated iff CalorieEstimationType is
	// EstimationBreakdown.
	IngredientsBreakdown []EstimatedIngredient `json:"ingredientsBreakdown,omitempty"`

	// CaloriesEstimate is the human-readable estimate, mode-dependent
	// (e.g. "Totale: ~620 kcal" or "~450 kcal per 100g").
	CaloriesEstimate string `json:"caloriesEstimate,omitempty"`

	// SuggestedPortionGrams is dropped (nil) when the model value cannot
	// be coerced to an integer.
	SuggestedPortionGrams *int `json:"suggestedPortionGrams,omitempty"`

	Explanations *Explanations `json:"explanations,omitempty"`
}

// IsComplete reports whether a persisted analysis can be reused without a
// new model call: the health score slot is populated and the analysis text
// is non-empty.
func (a *AnalysisResult) IsComplete() bool {
	return a != nil && a.Analysis != ""
}

// EstimatedIngredient is one editable line item of a breakdown estimation.
type EstimatedIngredient struct {
	// ID is the stable key. Model-generated items keep the id from the
	// response; user-added items live in the "user-" namespace so later
	// diffing can tell them apart.
	ID       string `json:"id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`

	EstimatedWeightGrams  float64 `json:"estimatedWeightGrams"`
	EstimatedCaloriesKcal float64 `json:"estimatedCaloriesKcal"`

	EstimatedProteinsGrams *float64 `json:"estimatedProteinsGrams,omitempty"`
	EstimatedCarbsGrams    *float64 `json:"estimatedCarbsGrams,omitempty"`
	EstimatedFatsGrams     *float64 `json:"estimatedFatsGrams,omitempty"`
}

// IngredientEstimate is the outcome of a single-ingredient model call.
// It never carries a Go error: failures are reported through Success and a
// user-facing ErrorMessage.
type IngredientEstimate struct {
	Success      bool
	CaloriesKcal float64
	// WeightGrams is the portion the model assumed when the caller gave no
	// weight; nil when the model did not report one.
	WeightGrams  *float64
	ProteinsG    *float64
	CarbsG       *float64
	FatsG        *float64
	ErrorMessage string
}

// SourceData is the mode-specific input to the prompt builder: ProductData
// for text mode, PhotoData for photo mode.
type SourceData interface {
	sourceData()
}

// ProductData is structured product metadata for text-mode analysis.
type ProductData struct {
	Name      string
	Brand     string
	Nutrients map[string]string // per-100g nutrient table, e.g. "energia" -> "2100 kJ"
	Additives []string
	Labels    []string

	// Third-party classification signals, consumed as input, never computed.
	NutriScore string // letter A-E, empty if unknown
	NovaGroup  int    // 1-4, 0 if unknown
	EcoScore   string // letter A-E, empty if unknown
}

func (*ProductData) sourceData() {}

// PhotoData is an image payload plus free-text hint for photo-mode analysis.
type PhotoData struct {
	ImageData []byte
	MIMEType  string // declared MIME type, e.g. "image/jpeg"
	Hint      string // optional free-text hint from the user
}

func (*PhotoData) sourceData() {}

// Outcome tags an analysis result with how it was produced: a validated
// parse of the model response, or a degraded fallback synthesis.
type Outcome struct {
	Result *AnalysisResult

	// Fallback is true when the result was synthesized because the model
	// response could not be parsed or failed core validation.
	Fallback bool

	// Reused is true when the result came from the cache or a persisted
	// record, without a model call.
	Reused bool
}
