// Package dedup collapses near-duplicate items from independent channels
// into canonical clusters, within a run and across runs.
package dedup

import (
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sander-arti/AI-nyhetsagent-sub001/internal/models"
	"github.com/sander-arti/AI-nyhetsagent-sub001/internal/reputation"
	"github.com/sander-arti/AI-nyhetsagent-sub001/internal/similarity"
	"github.com/sander-arti/AI-nyhetsagent-sub001/internal/temporal"
)

// ContextualItem pairs a ParsedItem with everything the engine derives for
// it. The underlying item is never mutated.
type ContextualItem struct {
	Item            models.ParsedItem `json:"item"`
	PublishedAt     time.Time         `json:"published_at"`
	Phase           temporal.Phase    `json:"phase"`
	Window          temporal.Window   `json:"window"`
	AgeHours        float64           `json:"age_hours"`
	Embedding       []float64         `json:"embedding,omitempty"`
	EventType       string            `json:"event_type"`
	Sentiment       float64           `json:"sentiment"`
	EntityCount     int               `json:"entity_count"`
	ContentQuality  float64           `json:"content_quality"`
	ContextualScore float64           `json:"contextual_score"`
	IsFirstReport   bool              `json:"is_first_report"`
}

// scorerView adapts a ContextualItem to the similarity scorer's input.
func (c *ContextualItem) scorerView() similarity.Item {
	return similarity.Item{
		Embedding:   c.Embedding,
		Entities:    c.Item.Entities,
		EventType:   c.EventType,
		PublishedAt: c.PublishedAt,
		Sentiment:   c.Sentiment,
	}
}

// Decorator builds ContextualItems from raw parsed items.
type Decorator struct {
	temporal *temporal.Builder
	tracker  *reputation.Tracker
}

// NewDecorator creates a decorator.
func NewDecorator(tb *temporal.Builder, tracker *reputation.Tracker) *Decorator {
	return &Decorator{temporal: tb, tracker: tracker}
}

// Decorate derives contextual state for every item in the batch. Items are
// independent, so derivation runs in parallel; order is preserved.
// A malformed timestamp degrades that item to the historical phase and is
// logged, never fatal.
func (d *Decorator) Decorate(items []models.ParsedItem, discoveredAt time.Time) []*ContextualItem {
	out := make([]*ContextualItem, len(items))

	var g errgroup.Group
	g.SetLimit(8)
	for i := range items {
		i := i
		g.Go(func() error {
			out[i] = d.decorateOne(items[i], discoveredAt)
			return nil
		})
	}
	g.Wait()

	return out
}

func (d *Decorator) decorateOne(item models.ParsedItem, discoveredAt time.Time) *ContextualItem {
	tc, err := d.temporal.Build(item.PublishedAt, discoveredAt)
	if err != nil {
		log.Printf("item %s: %v (treating as historical)", item.Key(), err)
	}

	text := item.Text()
	ci := &ContextualItem{
		Item:           item,
		PublishedAt:    tc.PublishedAt,
		Phase:          tc.Phase,
		Window:         tc.Window,
		AgeHours:       tc.AgeHours,
		EventType:      similarity.ClassifyEventType(text),
		Sentiment:      similarity.SentimentScore(text),
		EntityCount:    len(item.Entities),
		ContentQuality: contentQuality(item),
	}
	ci.ContextualScore = d.contextualScore(ci)
	return ci
}

// contextualScore is the composite used for canonical selection: a blend of
// extraction confidence, upstream relevance, source reliability, content
// quality and entity richness.
func (d *Decorator) contextualScore(ci *ContextualItem) float64 {
	rep := d.tracker.Get(ci.Item.Source)

	entityRichness := float64(ci.EntityCount) / 3
	if entityRichness > 1 {
		entityRichness = 1
	}

	return 0.30*confidenceValue(ci.Item.Confidence) +
		0.25*clamp01(ci.Item.RelevanceScore) +
		0.20*rep.ReliabilityScore +
		0.15*ci.ContentQuality +
		0.10*entityRichness
}

// contentQuality estimates how much usable substance an item carries.
func contentQuality(item models.ParsedItem) float64 {
	q := 0.0

	textLen := float64(len(item.Text()))
	if textLen > 200 {
		textLen = 200
	}
	q += 0.5 * (textLen / 200)

	if len(item.Entities) > 0 {
		q += 0.25
	}
	if item.RawContext != "" {
		q += 0.25
	}
	return q
}

func confidenceValue(c models.Confidence) float64 {
	switch c {
	case models.ConfidenceHigh:
		return 1.0
	case models.ConfidenceMedium:
		return 0.6
	default:
		return 0.3
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
