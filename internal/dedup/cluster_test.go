package dedup

import (
	"math"
	"testing"
	"time"

	"github.com/sander-arti/AI-nyhetsagent-sub001/internal/models"
	"github.com/sander-arti/AI-nyhetsagent-sub001/internal/reputation"
	"github.com/sander-arti/AI-nyhetsagent-sub001/internal/similarity"
	"github.com/sander-arti/AI-nyhetsagent-sub001/internal/temporal"
)

func member(id, source string, published time.Time, entities []string, score float64) *ContextualItem {
	return &ContextualItem{
		Item: models.ParsedItem{
			ID: id, Source: source, Entities: entities,
			Confidence: models.ConfidenceMedium,
		},
		PublishedAt:     published,
		Phase:           temporal.PhaseBreaking,
		Embedding:       []float64{1, 0},
		EntityCount:     len(entities),
		ContextualScore: score,
	}
}

func TestAbsorbKeepsCanonicalOnTie(t *testing.T) {
	tracker := reputation.NewTracker(nil)
	base := time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)

	first := member("first", "Source A", base, []string{"Sora"}, 0.7)
	second := member("second", "Source B", base.Add(time.Minute), []string{"Sora"}, 0.7)

	c := newCluster(first, tracker, base)
	c.absorb(second, similarity.Result{Overall: 0.9}, tracker)

	if c.Canonical.Item.ID != "first" {
		t.Errorf("equal scores must keep the earlier canonical, got %s", c.Canonical.Item.ID)
	}

	third := member("third", "Source C", base.Add(2*time.Minute), []string{"Sora"}, 0.71)
	c.absorb(third, similarity.Result{Overall: 0.9}, tracker)
	if c.Canonical.Item.ID != "third" {
		t.Errorf("strictly higher score must replace the canonical, got %s", c.Canonical.Item.ID)
	}
}

func TestRecomputeSourceDiversity(t *testing.T) {
	tracker := reputation.NewTracker(nil)
	base := time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)

	c := newCluster(member("a", "Source A", base, []string{"Sora"}, 0.7), tracker, base)
	if c.SourceDiversity != 1 {
		t.Errorf("singleton diversity = %v, want 1", c.SourceDiversity)
	}

	c.absorb(member("b", "Source A", base.Add(time.Minute), []string{"Sora"}, 0.5), similarity.Result{}, tracker)
	c.absorb(member("c", "Source B", base.Add(2*time.Minute), []string{"Sora"}, 0.5), similarity.Result{}, tracker)

	if math.Abs(c.SourceDiversity-2.0/3.0) > 1e-9 {
		t.Errorf("diversity = %v, want 2/3", c.SourceDiversity)
	}
	if math.Abs(c.AvgSourceReputation-0.5) > 1e-9 {
		t.Errorf("unseen sources should average the neutral reputation, got %v", c.AvgSourceReputation)
	}
}

func TestRecomputeCommonEntities(t *testing.T) {
	tracker := reputation.NewTracker(nil)
	base := time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)

	c := newCluster(member("a", "Source A", base, []string{"Sora", "OpenAI"}, 0.7), tracker, base)
	c.absorb(member("b", "Source B", base.Add(time.Minute), []string{"sora", "Hollywood"}, 0.5), similarity.Result{}, tracker)

	if len(c.CommonEntities) != 1 || c.CommonEntities[0] != "Sora" {
		t.Errorf("common entities = %v, want [Sora] with display casing preserved", c.CommonEntities)
	}
}

func TestRecomputeSentimentAlignment(t *testing.T) {
	tracker := reputation.NewTracker(nil)
	base := time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)

	a := member("a", "Source A", base, []string{"Sora"}, 0.7)
	a.Sentiment = 1
	b := member("b", "Source B", base.Add(time.Minute), []string{"Sora"}, 0.5)
	b.Sentiment = -1

	c := newCluster(a, tracker, base)
	if c.SentimentAlignment != 1 {
		t.Errorf("singleton alignment = %v, want 1", c.SentimentAlignment)
	}
	c.absorb(b, similarity.Result{}, tracker)
	if c.SentimentAlignment != 0 {
		t.Errorf("opposed members alignment = %v, want 0", c.SentimentAlignment)
	}
}

func TestCoverageClassifiesNewDetails(t *testing.T) {
	tracker := reputation.NewTracker(nil)
	base := time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)

	c := newCluster(member("a", "Source A", base, []string{"Sora"}, 0.7), tracker, base)
	c.absorb(member("b", "Source B", base.Add(time.Minute), []string{"Sora", "Hollywood"}, 0.5), similarity.Result{}, tracker)
	c.absorb(member("c", "Source C", base.Add(2*time.Minute), []string{"Sora"}, 0.5), similarity.Result{}, tracker)

	want := []string{CoverageFirstReport, CoverageNewDetails, CoverageConfirmation}
	if len(c.Coverage) != len(want) {
		t.Fatalf("coverage length = %d, want %d", len(c.Coverage), len(want))
	}
	for i, ev := range c.Coverage {
		if ev.AddedValue != want[i] {
			t.Errorf("coverage[%d] = %s, want %s", i, ev.AddedValue, want[i])
		}
	}
}
