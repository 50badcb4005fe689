package grouping

import (
	"testing"

	"github.com/sander-arti/AI-nyhetsagent-sub001/internal/config"
	"github.com/sander-arti/AI-nyhetsagent-sub001/internal/dedup"
	"github.com/sander-arti/AI-nyhetsagent-sub001/internal/models"
)

func testGroupingConfig() config.Grouping {
	return config.Grouping{
		MinGroupSize:   2,
		TLDRMax:        5,
		BreakingCutoff: 0.85,
		MajorCutoff:    0.65,
		Entities: []config.EntityPattern{
			{Pattern: "sora", Entity: "Sora", Type: "product"},
			{Pattern: "gemini", Entity: "Gemini", Type: "product"},
			{Pattern: "claude", Entity: "Claude", Type: "product"},
			{Pattern: "google deepmind", Entity: "Google DeepMind", Type: "company"},
			{Pattern: "google", Entity: "Google", Type: "company"},
		},
	}
}

func singletonCluster(id, title string, entities []string, relevance float64, conf models.Confidence) *dedup.Cluster {
	ci := &dedup.ContextualItem{
		Item: models.ParsedItem{
			ID: id, VideoID: "vid-" + id, Source: "Channel " + id,
			Type: models.TypeNews, Title: title,
			Entities: entities, Confidence: conf, RelevanceScore: relevance,
		},
		IsFirstReport: true,
	}
	return &dedup.Cluster{
		ID:        "cluster-" + id,
		Canonical: ci,
		Members:   []*dedup.ContextualItem{ci},
	}
}

func TestGroupBucketsByPrimaryEntity(t *testing.T) {
	g := NewGrouper(testGroupingConfig())

	clusters := []*dedup.Cluster{
		singletonCluster("1", "Sora launches in Europe", []string{"Sora"}, 0.9, models.ConfidenceHigh),
		singletonCluster("2", "Sora pricing announced", []string{"Sora", "OpenAI"}, 0.7, models.ConfidenceMedium),
		singletonCluster("3", "Gemini benchmark results", []string{"Gemini"}, 0.8, models.ConfidenceHigh),
		singletonCluster("4", "Claude adds new feature", []string{"Claude"}, 0.6, models.ConfidenceMedium),
		singletonCluster("5", "Obscure startup demo", []string{"TinyLab"}, 0.5, models.ConfidenceLow),
	}

	brief := g.Group(clusters, dedup.Stats{})

	if len(brief.EntityGroups) != 1 {
		t.Fatalf("only Sora reaches min_group_size: got %d groups", len(brief.EntityGroups))
	}
	tc := brief.EntityGroups[0]
	if tc.MainEntity != "Sora" || tc.EntityType != "product" {
		t.Errorf("group = %s/%s, want Sora/product", tc.MainEntity, tc.EntityType)
	}
	if tc.RelevanceScore != 0.9 {
		t.Errorf("group relevance should be the max member relevance, got %v", tc.RelevanceScore)
	}
	if tc.Confidence != "high" {
		t.Errorf("group confidence should be the best member confidence, got %s", tc.Confidence)
	}

	// Gemini, Claude and the unmatched cluster fall through standalone.
	if len(brief.Standalone) != 3 {
		t.Fatalf("expected 3 standalone items, got %d", len(brief.Standalone))
	}
	if brief.Standalone[0].Title != "Gemini benchmark results" {
		t.Errorf("standalone items should be relevance-ordered, got %q first", brief.Standalone[0].Title)
	}
}

func TestGroupPrefersLongestPattern(t *testing.T) {
	g := NewGrouper(testGroupingConfig())

	c := singletonCluster("1", "Google DeepMind research milestone", []string{"Google DeepMind"}, 0.8, models.ConfidenceHigh)
	entity, etype := g.primaryEntity(c)
	if entity != "Google DeepMind" || etype != "company" {
		t.Errorf("got %s/%s, want the more specific Google DeepMind match", entity, etype)
	}
}

func TestGroupMultiSourceAttribution(t *testing.T) {
	g := NewGrouper(testGroupingConfig())

	canonical := &dedup.ContextualItem{
		Item: models.ParsedItem{
			ID: "a", VideoID: "vidA", Source: "AI Explained",
			Title: "Sora launches in Europe", Entities: []string{"Sora"},
			Confidence: models.ConfidenceHigh, RelevanceScore: 0.9,
		},
		IsFirstReport: true,
	}
	second := &dedup.ContextualItem{
		Item: models.ParsedItem{
			ID: "b", VideoID: "vidB", Source: "Matt Wolfe",
			Title: "Sora is out", Entities: []string{"Sora", "Hollywood"},
			Confidence: models.ConfidenceMedium, RelevanceScore: 0.7,
		},
	}
	cluster := &dedup.Cluster{
		ID:        "c1",
		Canonical: canonical,
		Members:   []*dedup.ContextualItem{canonical, second},
	}

	brief := g.Group([]*dedup.Cluster{cluster}, dedup.Stats{})

	if len(brief.Standalone) != 1 {
		t.Fatalf("single cluster below min_group_size goes standalone, got %d", len(brief.Standalone))
	}
	item := brief.Standalone[0]
	if len(item.Sources) != 2 {
		t.Fatalf("expected both sources credited, got %d", len(item.Sources))
	}
	if !item.Sources[0].FirstReport || item.Sources[1].FirstReport {
		t.Errorf("first-report flag misplaced: %+v", item.Sources)
	}
	if len(item.UniqueAspects) != 1 || item.UniqueAspects[0] != "Hollywood" {
		t.Errorf("unique aspects = %v, want [Hollywood]", item.UniqueAspects)
	}
}

func TestBuildTLDRCapsAndLabels(t *testing.T) {
	g := NewGrouper(testGroupingConfig())

	clusters := []*dedup.Cluster{
		singletonCluster("1", "Story one", []string{"A"}, 0.95, models.ConfidenceHigh),
		singletonCluster("2", "Story two", []string{"B"}, 0.80, models.ConfidenceHigh),
		singletonCluster("3", "Story three", []string{"C"}, 0.70, models.ConfidenceMedium),
		singletonCluster("4", "Story four", []string{"D"}, 0.60, models.ConfidenceMedium),
		singletonCluster("5", "Story five", []string{"E"}, 0.50, models.ConfidenceLow),
		singletonCluster("6", "Story six", []string{"F"}, 0.40, models.ConfidenceLow),
	}

	brief := g.Group(clusters, dedup.Stats{})

	if len(brief.TLDR) != 5 {
		t.Fatalf("TL;DR should cap at 5, got %d", len(brief.TLDR))
	}
	if brief.TLDR[0].Title != "Story one" || brief.TLDR[0].Label != "breaking" {
		t.Errorf("top entry = %q/%q, want Story one/breaking", brief.TLDR[0].Title, brief.TLDR[0].Label)
	}
	if brief.TLDR[1].Label != "major" {
		t.Errorf("0.80 relevance should label major, got %q", brief.TLDR[1].Label)
	}
	if brief.TLDR[4].Label != "notable" {
		t.Errorf("0.50 relevance should label notable, got %q", brief.TLDR[4].Label)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"OpenAI launches Sora", "launch"},
		{"Claude now supports larger context window", "features"},
		{"New benchmark beats the previous record", "technical"},
		{"Deepfake misuse worries regulators", "ethical"},
		{"Startup closes funding round", "business"},
		{"Users report backlash over pricing change", "criticism"},
		{"Nothing matches here", "other"},
	}
	for _, tt := range tests {
		if got := Classify(tt.text); got != tt.want {
			t.Errorf("Classify(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}
