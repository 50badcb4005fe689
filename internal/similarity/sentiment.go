package similarity

import "strings"

// Small polarity lexicon tuned for spoken-word tech news. Good enough to
// tell an enthusiastic launch recap from a takedown of the same event.
var positiveWords = map[string]bool{
	"amazing": true, "breakthrough": true, "impressive": true, "great": true,
	"excellent": true, "powerful": true, "innovative": true, "exciting": true,
	"remarkable": true, "milestone": true, "success": true, "successful": true,
	"improved": true, "improvement": true, "faster": true, "better": true,
	"best": true, "win": true, "wins": true, "stunning": true, "incredible": true,
	"promising": true, "excited": true, "love": true, "huge": true,
}

var negativeWords = map[string]bool{
	"concern": true, "concerns": true, "concerning": true, "worried": true,
	"dangerous": true, "danger": true, "risk": true, "risks": true, "risky": true,
	"failure": true, "failed": true, "fails": true, "problem": true,
	"problems": true, "criticism": true, "criticized": true, "backlash": true,
	"lawsuit": true, "scandal": true, "layoffs": true, "worse": true,
	"worst": true, "disappointing": true, "disappointed": true, "broken": true,
	"flawed": true, "misleading": true, "unsafe": true, "threat": true,
}

// SentimentScore computes a lexicon polarity score in [-1, 1] for item text.
// 0 means neutral or no signal.
func SentimentScore(text string) float64 {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return 0
	}

	var pos, neg int
	for _, w := range words {
		w = strings.Trim(w, ".,!?:;\"'()-[]")
		if positiveWords[w] {
			pos++
		} else if negativeWords[w] {
			neg++
		}
	}

	total := pos + neg
	if total == 0 {
		return 0
	}
	return float64(pos-neg) / float64(total)
}
