package dedup

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/sander-arti/AI-nyhetsagent-sub001/internal/reputation"
	"github.com/sander-arti/AI-nyhetsagent-sub001/internal/similarity"
	"github.com/sander-arti/AI-nyhetsagent-sub001/internal/temporal"
)

// CoverageEvent is one entry in a cluster's coverage timeline.
type CoverageEvent struct {
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
	ItemID      string    `json:"item_id"`
	Confidence  string    `json:"confidence"`
	AddedValue  string    `json:"added_value"`
}

// Added-value classifications for coverage events.
const (
	CoverageFirstReport  = "first_report"
	CoverageNewDetails   = "new_details"
	CoverageConfirmation = "confirmation"
)

// Cluster is the unit of deduplication: one real-world event, reported by
// one or more channels. Membership only ever grows within a run.
type Cluster struct {
	ID                  string                       `json:"id"`
	Canonical           *ContextualItem              `json:"canonical"`
	Members             []*ContextualItem            `json:"members"`
	SimilarityScores    map[string]similarity.Result `json:"similarity_scores,omitempty"`
	FirstReportedBy     string                       `json:"first_reported_by"`
	FirstReportedAt     time.Time                    `json:"first_reported_at"`
	Coverage            []CoverageEvent              `json:"coverage"`
	SourceDiversity     float64                      `json:"source_diversity"`
	AvgSourceReputation float64                      `json:"avg_source_reputation"`
	CommonEntities      []string                     `json:"common_entities"`
	EventType           string                       `json:"event_type"`
	SentimentAlignment  float64                      `json:"sentiment_alignment"`
	QualityScore        float64                      `json:"quality_score"`
	IsHistoricalMatch   bool                         `json:"is_historical_match"`
	HistoricalClusterID string                       `json:"historical_cluster_id,omitempty"`
	CreatedAt           time.Time                    `json:"created_at"`
}

// newCluster seeds a cluster with its first member.
func newCluster(item *ContextualItem, tracker *reputation.Tracker, now time.Time) *Cluster {
	c := &Cluster{
		ID:               uuid.NewString(),
		Canonical:        item,
		Members:          []*ContextualItem{item},
		SimilarityScores: make(map[string]similarity.Result),
		EventType:        item.EventType,
		CreatedAt:        now,
	}
	c.Recompute(tracker)
	return c
}

// Phase is the cluster's story phase for threshold selection: the phase of
// its canonical member.
func (c *Cluster) Phase() temporal.Phase {
	return c.Canonical.Phase
}

// Size returns the member count.
func (c *Cluster) Size() int {
	return len(c.Members)
}

// absorb adds an item to the cluster and re-derives every membership-scoped
// field. The canonical is replaced only when the incoming item scores
// strictly higher; ties keep the earlier canonical so repeated runs over the
// same batch pick the same representative.
func (c *Cluster) absorb(item *ContextualItem, score similarity.Result, tracker *reputation.Tracker) {
	c.Members = append(c.Members, item)
	c.SimilarityScores[item.Item.Key()] = score

	if item.ContextualScore > c.Canonical.ContextualScore {
		c.Canonical = item
	}

	c.Recompute(tracker)
}

// Recompute re-derives diversity, reputation, entity intersection, sentiment
// alignment, the coverage timeline and the quality score. Called on every
// membership change, and by the store when folding members into a persisted
// cluster.
func (c *Cluster) Recompute(tracker *reputation.Tracker) {
	c.recomputeFirstReport()
	c.recomputeCoverage()
	c.recomputeSources(tracker)
	c.recomputeEntities()
	c.recomputeSentiment()
	c.recomputeQuality()
}

func (c *Cluster) recomputeFirstReport() {
	earliest := c.Members[0]
	for _, m := range c.Members[1:] {
		if m.PublishedAt.Before(earliest.PublishedAt) {
			earliest = m
		}
	}
	for _, m := range c.Members {
		m.IsFirstReport = m == earliest
	}
	c.FirstReportedBy = earliest.Item.Source
	c.FirstReportedAt = earliest.PublishedAt
}

func (c *Cluster) recomputeCoverage() {
	seen := make(map[string]bool)
	events := make([]CoverageEvent, 0, len(c.Members))
	for _, m := range c.Members {
		events = append(events, CoverageEvent{
			Source:      m.Item.Source,
			PublishedAt: m.PublishedAt,
			ItemID:      m.Item.Key(),
			Confidence:  string(m.Item.Confidence),
			AddedValue:  c.addedValue(m, seen),
		})
		for _, e := range m.Item.Entities {
			seen[normalize(e)] = true
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].PublishedAt.Before(events[j].PublishedAt)
	})
	c.Coverage = events
}

/// addedValue classifies what a member contributed: the first report, new
// entities the cluster had not seen, or plain confirmation.
func (c *Cluster) addedValue(m *ContextualItem, seenEntities map[string]bool) string {
	if m.IsFirstReport {
		return CoverageFirstReport
	}
	for _, e := range m.Item.Entities {
		if !seenEntities[normalize(e)] {
			return CoverageNewDetails
		}
	}
	return CoverageConfirmation
}

func (c *Cluster) recomputeSources(tracker *reputation.Tracker) {
	unique := make(map[string]bool, len(c.Members))
	var repSum float64
	for _, m := range c.Members {
		unique[m.Item.Source] = true
		repSum += tracker.Get(m.Item.Source).ReliabilityScore
	}
	c.SourceDiversity = float64(len(unique)) / float64(len(c.Members))
	c.AvgSourceReputation = repSum / float64(len(c.Members))
}

func (c *Cluster) recomputeEntities() {
	counts := make(map[string]int)
	display := make(map[string]string)
	for _, m := range c.Members {
		dedup := make(map[string]bool)
		for _, e := range m.Item.Entities {
			n := normalize(e)
			if dedup[n] {
				continue
			}
			dedup[n] = true
			counts[n]++
			if _, ok := display[n]; !ok {
				display[n] = e
			}
		}
	}

	var common []string
	for n, count := range counts {
		if count == len(c.Members) {
			common = append(common, display[n])
		}
	}
	sort.Strings(common)
	c.CommonEntities = common
}

// recomputeSentiment sets the mean pairwise sentiment alignment across
// members. A singleton is perfectly aligned with itself.
func (c *Cluster) recomputeSentiment() {
	n := len(c.Members)
	if n < 2 {
		c.SentimentAlignment = 1
		return
	}
	var sum float64
	var pairs int
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := c.Members[i].Sentiment - c.Members[j].Sentiment
			if d < 0 {
				d = -d
			}
			sum += 1 - d/2
			pairs++
		}
	}
	c.SentimentAlignment = sum / float64(pairs)
}

func (c *Cluster) recomputeQuality() {
	var confSum float64
	for _, m := range c.Members {
		confSum += confidenceValue(m.Item.Confidence)
	}
	avgConf := confSum / float64(len(c.Members))
	c.QualityScore = 0.4*c.AvgSourceReputation + 0.3*c.SourceDiversity + 0.3*avgConf
}

func normalize(e string) string {
	return similarity.NormalizeEntity(e)
}
