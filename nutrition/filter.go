package nutrition

import (
	"regexp"
	"strings"
)

// Keywords whose presence in a title marks the item as a restatement of a
// numeric score already rendered elsewhere in the UI.
var scoreKeywords = []string{
	"NOVA",
	"GRUPPO NOVA",
	"NUTRI-SCORE",
	"NUTRISCORE",
}

// Eco keywords are filtered only outside photo mode: photo results carry no
// eco signal, so there is nothing to restate.
var ecoKeywords = []string{
	"ECO-SCORE",
	"ECOSCORE",
}

// Exact score-restatement title patterns, matched even when the generic
// keyword check misses (e.g. unusual spacing).
var (
	letterScorePattern = regexp.MustCompile(`(?i)^\s*(nutri[\s-]?score|eco[\s-]?score)\s*:\s*[A-E]\s*$`)
	novaScorePattern   = regexp.MustCompile(`(?i)^\s*(gruppo\s+)?nova\s*:\s*[1-4]\s*$`)
)

// Canned restatement phrases the model tends to put in item details.
var restatementPhrases = []string{
	"il nutri-score di questo prodotto è",
	"il gruppo nova di questo prodotto è",
	"l'eco-score di questo prodotto è",
	"questo prodotto ha un nutri-score",
	"questo prodotto appartiene al gruppo nova",
}

// FilterPoints removes pro/con items that merely restate a numeric score
// shown elsewhere in the UI. Filtering is pure content deduplication: it
// only ever drops the matched items, never rewrites survivors.
func FilterPoints(items []ScoredPoint, mode Mode) []ScoredPoint {
	if len(items) == 0 {
		return items
	}

	kept := make([]ScoredPoint, 0, len(items))
	for _, item := range items {
		if isScoreRestatement(item, mode) {
			continue
		}
		kept = append(kept, item)
	}
	return kept
}

func isScoreRestatement(item ScoredPoint, mode Mode) bool {
	title := strings.ToUpper(item.Title)
	for _, kw := range scoreKeywords {
		if strings.Contains(title, kw) {
			return true
		}
	}
	if mode != ModePhoto {
		for _, kw := range ecoKeywords {
			if strings.Contains(title, kw) {
				return true
			}
		}
	}

	if letterScorePattern.MatchString(item.Title) || novaScorePattern.MatchString(item.Title) {
		return true
	}

	detail := strings.ToLower(item.Detail)
	for _, phrase := range restatementPhrases {
		if strings.Contains(detail, phrase) {
			return true
		}
	}
	return false
}
