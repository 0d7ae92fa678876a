package nutrition

import (
	"log/slog"
	"regexp"
)

// Score extraction patterns for responses that failed JSON parsing. The
// model usually still emits the score fields somewhere in the text.
var (
	healthScorePattern         = regexp.MustCompile(`(?i)"?healthScore"?\s*[:=]\s*"?(\d{1,3})`)
	sustainabilityScorePattern = regexp.MustCompile(`(?i)"?sustainabilityScore"?\s*[:=]\s*"?(\d{1,3})`)
)

const defaultScore = 50

// Synthesizer builds a best-effort degraded result when parsing or core
// validation fails, preserving whatever score fragments can be extracted
// from the raw text.
type Synthesizer struct {
	logger *slog.Logger
}

// NewSynthesizer creates a fallback synthesizer. A nil logger uses
// slog.Default().
func NewSynthesizer(logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{logger: logger}
}

// Synthesize produces a canned low-information result for the given mode.
// Photo mode always gets a per-100g estimation type and a placeholder
// calories string so the UI never renders an empty calorie section.
func (s *Synthesizer) Synthesize(raw string, mode Mode) *AnalysisResult {
	health := extractScore(healthScorePattern, raw)
	s.logger.Info("Synthesizing fallback analysis", "mode", mode, "health_score", health)

	result := &AnalysisResult{
		HealthScore: health,
		Analysis:    "Analisi automatica non disponibile per questo prodotto. I dettagli potrebbero essere incompleti.",
		Pros: []ScoredPoint{{
			Title:  "Prodotto analizzato",
			Detail: "Il prodotto è stato valutato, ma la risposta del modello non conteneva dettagli leggibili.",
		}},
		Cons: []ScoredPoint{{
			Title:  "Analisi incompleta",
			Detail: "Non è stato possibile estrarre punti di forza e di debolezza dettagliati.",
		}},
		Recommendations: []string{"Riprova l'analisi per ottenere un risultato completo."},
	}

	switch mode {
	case ModePhoto:
		// Never leave calorie fields absent in photo mode: the UI relies
		// on an estimation type being set.
		result.CalorieEstimationType = EstimationPer100g
		result.CaloriesEstimate = "~100 kcal per 100g (stima indicativa)"
	default:
		result.SustainabilityScore = extractScore(sustainabilityScorePattern, raw)
		result.SustainabilityAnalysis = "Valutazione di sostenibilità non disponibile."
		result.SustainabilityPros = []ScoredPoint{{
			Title:  "Dati non disponibili",
			Detail: "La risposta del modello non conteneva una valutazione di sostenibilità leggibile.",
		}}
		result.SustainabilityCons = []ScoredPoint{{
			Title:  "Valutazione incompleta",
			Detail: "Impatto ambientale non determinato.",
		}}
		result.SustainabilityRecommendations = []string{"Riprova l'analisi per la valutazione di sostenibilità."}
	}

	return result
}

// extractScore pulls the first captured score from raw and clamps it to
// [1,100]; absent scores default to 50.
func extractScore(pattern *regexp.Regexp, raw string) int {
	matches := pattern.FindStringSubmatch(raw)
	if len(matches) < 2 {
		return defaultScore
	}

	score := 0
	for _, ch := range matches[1] {
		score = score*10 + int(ch-'0')
	}
	if score < 1 {
		return 1
	}
	if score > 100 {
		return 100
	}
	return score
}
