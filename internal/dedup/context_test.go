package dedup

import (
	"testing"
	"time"

	"github.com/sander-arti/AI-nyhetsagent-sub001/internal/config"
	"github.com/sander-arti/AI-nyhetsagent-sub001/internal/models"
	"github.com/sander-arti/AI-nyhetsagent-sub001/internal/reputation"
	"github.com/sander-arti/AI-nyhetsagent-sub001/internal/temporal"
)

func testDecorator() *Decorator {
	cfg := config.Defaults()
	return NewDecorator(temporal.NewBuilder(cfg.Temporal), reputation.NewTracker(nil))
}

func TestDecoratePreservesOrder(t *testing.T) {
	d := testDecorator()
	now := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)

	items := make([]models.ParsedItem, 20)
	for i := range items {
		items[i] = models.ParsedItem{
			ID:          string(rune('a' + i)),
			Title:       "OpenAI launches Sora",
			PublishedAt: now.Add(-time.Hour).Format(time.RFC3339),
		}
	}

	out := d.Decorate(items, now)
	if len(out) != len(items) {
		t.Fatalf("got %d decorated items, want %d", len(out), len(items))
	}
	for i, ci := range out {
		if ci.Item.ID != items[i].ID {
			t.Fatalf("order not preserved at %d: %s", i, ci.Item.ID)
		}
	}
}

func TestDecorateMalformedTimestampDegradesToHistorical(t *testing.T) {
	d := testDecorator()
	now := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)

	out := d.Decorate([]models.ParsedItem{
		{ID: "bad", Title: "Sora launch", PublishedAt: "not-a-date"},
	}, now)

	if out[0].Phase != temporal.PhaseHistorical {
		t.Errorf("malformed timestamp should degrade to historical, got %s", out[0].Phase)
	}
	if out[0].Window != temporal.Window90d {
		t.Errorf("malformed timestamp should land in the widest window, got %s", out[0].Window)
	}
}

func TestDecorateDerivesEventTypeAndEntityCount(t *testing.T) {
	d := testDecorator()
	now := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)

	out := d.Decorate([]models.ParsedItem{
		{
			ID: "a", Title: "OpenAI launches Sora",
			Entities:    []string{"Sora", "OpenAI"},
			PublishedAt: now.Add(-time.Hour).Format(time.RFC3339),
		},
	}, now)

	if out[0].EventType != "product_launch" {
		t.Errorf("event type = %q, want product_launch", out[0].EventType)
	}
	if out[0].EntityCount != 2 {
		t.Errorf("entity count = %d, want 2", out[0].EntityCount)
	}
}

func TestContextualScoreRanksRicherItemsHigher(t *testing.T) {
	d := testDecorator()
	now := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	published := now.Add(-time.Hour).Format(time.RFC3339)

	out := d.Decorate([]models.ParsedItem{
		{
			ID: "rich", Title: "OpenAI launches Sora video model",
			Summary:    "OpenAI launches Sora, a text to video generator, with early access for creators",
			Entities:   []string{"Sora", "OpenAI", "Hollywood"},
			Confidence: models.ConfidenceHigh, RelevanceScore: 0.9,
			RawContext: "full transcript excerpt", PublishedAt: published,
		},
		{
			ID: "thin", Title: "Sora news",
			Confidence: models.ConfidenceLow, RelevanceScore: 0.3,
			PublishedAt: published,
		},
	}, now)

	if out[0].ContextualScore <= out[1].ContextualScore {
		t.Errorf("rich item score %v should exceed thin item score %v",
			out[0].ContextualScore, out[1].ContextualScore)
	}
}
