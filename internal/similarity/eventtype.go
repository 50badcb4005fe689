package similarity

import "strings"

// Event types recognized by the keyword classifier.
const (
	EventModelRelease = "model_release"
	EventLaunch       = "product_launch"
	EventAnnouncement = "company_announcement"
	EventResearch     = "research"
	EventRegulation   = "regulation"
	EventPartnership  = "partnership"
	EventFunding      = "funding"
	EventOther        = "other"
)

// eventKeywords maps keyword families to event types. Order matters: the
// first family with a hit wins, so more specific families come first.
var eventKeywords = []struct {
	eventType string
	keywords  []string
}{
	{EventModelRelease, []string{"model release", "new model", "weights", "checkpoint", "foundation model", "frontier model"}},
	{EventLaunch, []string{"launch", "launches", "launched", "release", "released", "rollout", "rolls out", "ships", "shipped", "unveil"}},
	{EventFunding, []string{"funding", "raises", "raised", "valuation", "investment", "series a", "series b", "series c"}},
	{EventPartnership, []string{"partnership", "partners with", "teams up", "collaboration", "joint venture", "deal with"}},
	{EventRegulation, []string{"regulation", "regulator", "lawsuit", "sues", "antitrust", "eu ai act", "executive order", "banned", "compliance"}},
	{EventResearch, []string{"paper", "research", "study", "benchmark", "researchers", "breakthrough", "arxiv"}},
	{EventAnnouncement, []string{"announces", "announced", "announcement", "reveals", "introduces", "plans to"}},
}

// ClassifyEventType assigns an event type to item text using keyword
// heuristics. Returns EventOther when nothing matches.
func ClassifyEventType(text string) string {
	lower := strings.ToLower(text)
	for _, family := range eventKeywords {
		for _, kw := range family.keywords {
			if strings.Contains(lower, kw) {
				return family.eventType
			}
		}
	}
	return EventOther
}

// NormalizeEntity lowercases and trims an entity surface form so that
// "OpenAI" and "openai " compare equal.
func NormalizeEntity(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}
