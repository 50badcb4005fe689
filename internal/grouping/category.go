package grouping

import "strings"

// Fixed sub-topic taxonomy. Order is both match priority and display order.
var categoryOrder = []string{
	"launch", "features", "technical", "ethical", "business", "criticism", "other",
}

// categoryKeywords maps each taxonomy category to its keyword family. The
// first family with a hit wins.
var categoryKeywords = map[string][]string{
	"launch":    {"launch", "release", "released", "unveil", "announces", "announced", "introduces", "rollout", "available now", "ships"},
	"features":  {"feature", "capability", "update", "upgrade", "now supports", "adds", "improvement", "new version"},
	"technical": {"architecture", "benchmark", "parameters", "training", "inference", "latency", "context window", "api", "open source", "weights", "paper"},
	"ethical":   {"safety", "alignment", "bias", "ethics", "ethical", "misuse", "deepfake", "privacy", "copyright", "regulation"},
	"business":  {"funding", "valuation", "revenue", "acquisition", "partnership", "deal", "enterprise", "pricing", "ipo", "market share"},
	"criticism": {"criticism", "criticized", "backlash", "controversy", "lawsuit", "complaint", "concerns", "fails", "problem", "outage"},
}

// Classify assigns a sub-topic category to item text. Defaults to "other".
func Classify(text string) string {
	lower := strings.ToLower(text)
	for _, category := range categoryOrder {
		for _, kw := range categoryKeywords[category] {
			if strings.Contains(lower, kw) {
				return category
			}
		}
	}
	return "other"
}
