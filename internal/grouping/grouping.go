// Package grouping arranges deduplicated items by primary entity and
// sub-topic for presentation, and selects TL;DR candidates.
package grouping

import (
	"sort"
	"strings"

	"github.com/sander-arti/AI-nyhetsagent-sub001/internal/config"
	"github.com/sander-arti/AI-nyhetsagent-sub001/internal/dedup"
)

// SourceAttribution credits one channel's coverage of an item or group.
type SourceAttribution struct {
	Source      string `json:"source"`
	VideoID     string `json:"video_id"`
	ItemID      string `json:"item_id"`
	FirstReport bool   `json:"first_report,omitempty"`
}

// ClusteredItem wraps a deduplicated item for presentation.
type ClusteredItem struct {
	Title          string              `json:"title"`
	Summary        string              `json:"summary,omitempty"`
	Category       string              `json:"category"`
	RelevanceScore float64             `json:"relevance_score"`
	Confidence     string              `json:"confidence"`
	UniqueAspects  []string            `json:"unique_aspects,omitempty"`
	Sources        []SourceAttribution `json:"sources"`
}

// SubTopic groups a topic cluster's items by category.
type SubTopic struct {
	Category  string          `json:"category"`
	Items     []ClusteredItem `json:"items"`
	ItemCount int             `json:"item_count"`
}

// TopicCluster groups items that share a primary entity.
type TopicCluster struct {
	MainEntity     string              `json:"main_entity"`
	EntityType     string              `json:"entity_type"`
	SubTopics      []SubTopic          `json:"sub_topics"`
	RelevanceScore float64             `json:"relevance_score"`
	Sources        []SourceAttribution `json:"sources"`
	Confidence     string              `json:"confidence"`
}

// TLDREntry is one highlighted item in the brief's summary section.
type TLDREntry struct {
	Label          string  `json:"label"` // breaking / major / notable
	Title          string  `json:"title"`
	Entity         string  `json:"entity,omitempty"`
	RelevanceScore float64 `json:"relevance_score"`
	SourceCount    int     `json:"source_count"`
}

// Brief is the engine's final output, handed to rendering/notification.
type Brief struct {
	EntityGroups []TopicCluster  `json:"entity_groups"`
	Standalone   []ClusteredItem `json:"standalone_items"`
	TLDR         []TLDREntry     `json:"tldr"`
	Stats        dedup.Stats     `json:"stats"`
}

// Grouper builds the presentation grouping from dedup output.
type Grouper struct {
	cfg      config.Grouping
	patterns []config.EntityPattern
}

// NewGrouper creates a grouper. Entity patterns are ordered most-specific
// first so "gpt-4o" wins over "gpt" and "google deepmind" over "google".
func NewGrouper(cfg config.Grouping) *Grouper {
	patterns := make([]config.EntityPattern, len(cfg.Entities))
	copy(patterns, cfg.Entities)
	sort.SliceStable(patterns, func(i, j int) bool {
		return len(patterns[i].Pattern) > len(patterns[j].Pattern)
	})
	return &Grouper{cfg: cfg, patterns: patterns}
}

// Group builds the brief from the surviving deduplicated clusters: each
// cluster is represented by its canonical; entities below min_group_size
// stay standalone.
func (g *Grouper) Group(clusters []*dedup.Cluster, stats dedup.Stats) *Brief {
	type bucket struct {
		entity     string
		entityType string
		clusters   []*dedup.Cluster
	}
	buckets := make(map[string]*bucket)
	var unmatched []*dedup.Cluster

	for _, c := range clusters {
		entity, etype := g.primaryEntity(c)
		if entity == "" {
			unmatched = append(unmatched, c)
			continue
		}
		b, ok := buckets[entity]
		if !ok {
			b = &bucket{entity: entity, entityType: etype}
			buckets[entity] = b
		}
		b.clusters = append(b.clusters, c)
	}

	brief := &Brief{Stats: stats}

	entities := make([]string, 0, len(buckets))
	for e := range buckets {
		entities = append(entities, e)
	}
	sort.Strings(entities)

	for _, e := range entities {
		b := buckets[e]
		if len(b.clusters) < g.cfg.MinGroupSize {
			unmatched = append(unmatched, b.clusters...)
			continue
		}
		brief.EntityGroups = append(brief.EntityGroups, g.buildTopicCluster(b.entity, b.entityType, b.clusters))
	}

	// Standalone items keep deterministic order: by relevance, then title.
	for _, c := range unmatched {
		brief.Standalone = append(brief.Standalone, g.buildItem(c))
	}
	sort.SliceStable(brief.Standalone, func(i, j int) bool {
		if brief.Standalone[i].RelevanceScore != brief.Standalone[j].RelevanceScore {
			return brief.Standalone[i].RelevanceScore > brief.Standalone[j].RelevanceScore
		}
		return brief.Standalone[i].Title < brief.Standalone[j].Title
	})

	sort.SliceStable(brief.EntityGroups, func(i, j int) bool {
		return brief.EntityGroups[i].RelevanceScore > brief.EntityGroups[j].RelevanceScore
	})

	brief.TLDR = g.buildTLDR(brief)
	return brief
}

// primaryEntity resolves at most one entity per cluster against the pattern
// table. One entity per item keeps a story out of multiple topic buckets.
func (g *Grouper) primaryEntity(c *dedup.Cluster) (entity, entityType string) {
	item := c.Canonical.Item
	haystack := strings.ToLower(item.Text())

	// Extracted entities are the strongest signal; free text is fallback.
	for _, p := range g.patterns {
		for _, e := range item.Entities {
			if strings.Contains(strings.ToLower(e), p.Pattern) {
				return p.Entity, p.Type
			}
		}
	}
	for _, p := range g.patterns {
		if strings.Contains(haystack, p.Pattern) {
			return p.Entity, p.Type
		}
	}
	return "", ""
}

func (g *Grouper) buildTopicCluster(entity, entityType string, clusters []*dedup.Cluster) TopicCluster {
	tc := TopicCluster{
		MainEntity: entity,
		EntityType: entityType,
	}

	byCategory := make(map[string][]ClusteredItem)
	var maxRelevance float64
	bestConfidence := "low"

	for _, c := range clusters {
		item := g.buildItem(c)
		byCategory[item.Category] = append(byCategory[item.Category], item)

		if item.RelevanceScore > maxRelevance {
			maxRelevance = item.RelevanceScore
		}
		if confidenceRank(item.Confidence) > confidenceRank(bestConfidence) {
			bestConfidence = item.Confidence
		}
		tc.Sources = append(tc.Sources, item.Sources...)
	}

	for _, category := range categoryOrder {
		items, ok := byCategory[category]
		if !ok {
			continue
		}
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].RelevanceScore > items[j].RelevanceScore
		})
		tc.SubTopics = append(tc.SubTopics, SubTopic{
			Category:  category,
			Items:     items,
			ItemCount: len(items),
		})
	}

	tc.RelevanceScore = maxRelevance
	tc.Confidence = bestConfidence
	return tc
}

// buildItem turns a cluster into one presentation item carrying full
// multi-source attribution.
func (g *Grouper) buildItem(c *dedup.Cluster) ClusteredItem {
	item := c.Canonical.Item

	ci := ClusteredItem{
		Title:          item.Title,
		Summary:        item.Summary,
		Category:       Classify(item.Text()),
		RelevanceScore: item.RelevanceScore,
		Confidence:     string(item.Confidence),
	}

	for _, m := range c.Members {
		ci.Sources = append(ci.Sources, SourceAttribution{
			Source:      m.Item.Source,
			VideoID:     m.Item.VideoID,
			ItemID:      m.Item.Key(),
			FirstReport: m.IsFirstReport,
		})
		if m != c.Canonical {
			ci.UniqueAspects = append(ci.UniqueAspects, uniqueAspects(c.Canonical, m)...)
		}
	}
	return ci
}

// uniqueAspects lists entities a non-canonical member adds over the
// canonical's view of the story.
func uniqueAspects(canonical, member *dedup.ContextualItem) []string {
	seen := make(map[string]bool, len(canonical.Item.Entities))
	for _, e := range canonical.Item.Entities {
		seen[strings.ToLower(e)] = true
	}
	var extra []string
	for _, e := range member.Item.Entities {
		if !seen[strings.ToLower(e)] {
			extra = append(extra, e)
		}
	}
	return extra
}

// buildTLDR selects the highest-relevance entries across groups and
// standalone items, up to the configured cap.
func (g *Grouper) buildTLDR(brief *Brief) []TLDREntry {
	var entries []TLDREntry

	for _, tc := range brief.EntityGroups {
		for _, st := range tc.SubTopics {
			for _, item := range st.Items {
				entries = append(entries, TLDREntry{
					Title:          item.Title,
					Entity:         tc.MainEntity,
					RelevanceScore: item.RelevanceScore,
					SourceCount:    len(item.Sources),
				})
			}
		}
	}
	for _, item := range brief.Standalone {
		entries = append(entries, TLDREntry{
			Title:          item.Title,
			RelevanceScore: item.RelevanceScore,
			SourceCount:    len(item.Sources),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].RelevanceScore != entries[j].RelevanceScore {
			return entries[i].RelevanceScore > entries[j].RelevanceScore
		}
		return entries[i].Title < entries[j].Title
	})

	if len(entries) > g.cfg.TLDRMax {
		entries = entries[:g.cfg.TLDRMax]
	}
	for i := range entries {
		entries[i].Label = g.label(entries[i].RelevanceScore)
	}
	return entries
}

func (g *Grouper) label(relevance float64) string {
	switch {
	case relevance >= g.cfg.BreakingCutoff:
		return "breaking"
	case relevance >= g.cfg.MajorCutoff:
		return "major"
	default:
		return "notable"
	}
}

func confidenceRank(c string) int {
	switch c {
	case "high":
		return 2
	case "medium":
		return 1
	default:
		return 0
	}
}
