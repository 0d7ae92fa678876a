package nutrition

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"

	"github.com/scanly/nutriengine/llm"
)

// FailureReason classifies why a model response could not be parsed.
type FailureReason string

const (
	// NoJSONFound means the response contained no balanced JSON object.
	NoJSONFound FailureReason = "no_json_found"
	// MalformedJSON means the extracted span did not decode.
	MalformedJSON FailureReason = "malformed_json"
	// CoreFieldsInvalid means required fields were missing or mistyped.
	CoreFieldsInvalid FailureReason = "core_fields_invalid"
)

// ParseFailure describes a failed parse. These route to the fallback
// synthesizer; they are never surfaced to the caller as errors.
type ParseFailure struct {
	Reason FailureReason
	Report *Report // non-nil for CoreFieldsInvalid
}

// Parser turns raw model text into a validated AnalysisResult.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a parser. A nil logger uses slog.Default().
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// Parse extracts, validates and normalizes a model response for the given
// mode. Exactly one of the return values is non-nil.
func (p *Parser) Parse(raw string, mode Mode) (*AnalysisResult, *ParseFailure) {
	span := llm.ExtractJSON(raw)
	if span == "" {
		return nil, &ParseFailure{Reason: NoJSONFound}
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(span), &obj); err != nil {
		p.logger.Debug("Model response span did not decode", "error", err)
		return nil, &ParseFailure{Reason: MalformedJSON}
	}

	report := schema{mode: mode}.validate(obj)
	for _, w := range report.Warnings {
		p.logger.Warn("Model response field degraded", "field", w.Field, "code", w.Code, "mode", mode)
	}
	if !report.Valid() {
		for _, e := range report.Errors {
			p.logger.Warn("Model response failed validation", "field", e.Field, "code", e.Code, "mode", mode)
		}
		return nil, &ParseFailure{Reason: CoreFieldsInvalid, Report: report}
	}

	result := p.build(obj, mode)
	normalize(result, mode)
	return result, nil
}

// build assembles the result from the validated object. Core fields are
// known well-typed at this point; optional fields extract tolerantly.
func (p *Parser) build(obj map[string]any, mode Mode) *AnalysisResult {
	result := &AnalysisResult{
		HealthScore:     asInt(obj["healthScore"]),
		Analysis:        asString(obj["analysis"]),
		Pros:            asPoints(obj["pros"]),
		Cons:            asPoints(obj["cons"]),
		Recommendations: asStrings(obj["recommendations"]),
	}

	result.SustainabilityScore = asInt(obj["sustainabilityScore"])
	result.SustainabilityAnalysis = asString(obj["sustainabilityAnalysis"])
	result.SustainabilityPros = asPoints(obj["sustainabilityPros"])
	result.SustainabilityCons = asPoints(obj["sustainabilityCons"])
	result.SustainabilityRecommendations = asStrings(obj["sustainabilityRecommendations"])

	result.CaloriesEstimate = asString(obj["caloriesEstimate"])
	result.SuggestedPortionGrams = coercePortion(obj["suggestedPortionGrams"])
	result.Explanations = asExplanations(obj["explanations"])

	if t, ok := obj["calorieEstimationType"].(string); ok && ValidEstimationType(CalorieEstimationType(t)) {
		result.CalorieEstimationType = CalorieEstimationType(t)
	}

	p.applyBreakdown(result, obj)
	return result
}

// applyBreakdown validates and attaches the ingredients breakdown.
// A malformed breakdown is logged and dropped, leaving the ledger empty;
// it never fails the whole parse. A breakdown supplied alongside a
// non-breakdown estimation type is discarded with a warning (the model was
// asked not to produce one; merging would guess intent).
func (p *Parser) applyBreakdown(result *AnalysisResult, obj map[string]any) {
	raw, ok := obj["ingredientsBreakdown"].([]any)
	if !ok || len(raw) == 0 {
		if result.CalorieEstimationType == EstimationBreakdown {
			p.logger.Warn("Breakdown estimation type without a usable ingredientsBreakdown list")
		}
		return
	}

	if result.CalorieEstimationType != EstimationBreakdown {
		p.logger.Warn("Discarding ingredientsBreakdown for non-breakdown estimation type",
			"type", result.CalorieEstimationType, "items", len(raw))
		return
	}

	items := make([]EstimatedIngredient, 0, len(raw))
	for i, el := range raw {
		m, isMap := el.(map[string]any)
		if !isMap {
			p.logger.Warn("Dropping ingredientsBreakdown: element is not an object", "index", i)
			return
		}
		id, idOK := m["id"].(string)
		name, nameOK := m["name"].(string)
		weight, weightOK := m["estimatedWeightGrams"].(float64)
		kcal, kcalOK := m["estimatedCaloriesKcal"].(float64)
		if !idOK || !nameOK || !weightOK || !kcalOK {
			p.logger.Warn("Dropping ingredientsBreakdown: element missing required fields", "index", i)
			return
		}

		item := EstimatedIngredient{
			ID:                    id,
			Name:                  name,
			Quantity:              1,
			EstimatedWeightGrams:  weight,
			EstimatedCaloriesKcal: kcal,
		}
		if q := asInt(m["quantity"]); q >= 1 {
			item.Quantity = q
		}
		item.EstimatedProteinsGrams = asOptFloat(m["estimatedProteinsGrams"])
		item.EstimatedCarbsGrams = asOptFloat(m["estimatedCarbsGrams"])
		item.EstimatedFatsGrams = asOptFloat(m["estimatedFatsGrams"])
		items = append(items, item)
	}

	result.IngredientsBreakdown = items
}

// normalize enforces the mode invariants on a successfully parsed result:
// photo mode zeroes the whole sustainability block regardless of what the
// model returned.
func normalize(result *AnalysisResult, mode Mode) {
	if mode != ModePhoto {
		return
	}
	result.SustainabilityScore = 0
	result.SustainabilityAnalysis = ""
	result.SustainabilityPros = nil
	result.SustainabilityCons = nil
	result.SustainabilityRecommendations = nil
}

// coercePortion accepts a numeric portion, coerces a string via integer
// parse, and drops the field otherwise.
func coercePortion(v any) *int {
	switch t := v.(type) {
	case float64:
		n := int(t)
		return &n
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return &n
		}
	}
	return nil
}

// --- tolerant extraction helpers ---

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) int {
	f, ok := v.(float64)
	if !ok {
		return 0
	}
	return int(f)
}

func asOptFloat(v any) *float64 {
	f, ok := v.(float64)
	if !ok || f < 0 {
		return nil
	}
	return &f
}

func asStrings(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, el := range list {
		if s, isStr := el.(string); isStr {
			out = append(out, s)
		}
	}
	return out
}

func asPoints(v any) []ScoredPoint {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]ScoredPoint, 0, len(list))
	for _, el := range list {
		m, isMap := el.(map[string]any)
		if !isMap {
			continue
		}
		out = append(out, ScoredPoint{
			Title:  asString(m["title"]),
			Detail: asString(m["detail"]),
		})
	}
	return out
}

func asExplanations(v any) *Explanations {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	e := &Explanations{
		NutriScore: asString(m["nutriScore"]),
		NovaGroup:  asString(m["novaGroup"]),
		EcoScore:   asString(m["ecoScore"]),
	}
	if e.NutriScore == "" && e.NovaGroup == "" && e.EcoScore == "" {
		return nil
	}
	return e
}
