package dedup

import (
	"errors"
	"log"
	"time"

	"github.com/sander-arti/AI-nyhetsagent-sub001/internal/config"
	"github.com/sander-arti/AI-nyhetsagent-sub001/internal/similarity"
)

// Outcome is the cross-run matching decision for one new cluster.
type Outcome string

const (
	OutcomeMerged          Outcome = "merged"
	OutcomeMarkedDuplicate Outcome = "marked_duplicate"
	OutcomeKeptSeparate    Outcome = "kept_separate"
)

// MatchDecision records the outcome of matching one new cluster against the
// persisted cluster store. Decisions are persisted keyed by the canonical
// item so re-running the matcher reproduces them instead of merging twice.
type MatchDecision struct {
	ItemID              string  `json:"item_id"`
	ClusterID           string  `json:"cluster_id"`
	Outcome             Outcome `json:"outcome"`
	HistoricalClusterID string  `json:"historical_cluster_id,omitempty"`
	Score               float64 `json:"score,omitempty"`
}

// Matcher compares this run's clusters against clusters persisted by
// earlier runs.
type Matcher struct {
	cfg    config.Historical
	scorer *similarity.Scorer
}

// NewMatcher creates a historical cross-run matcher.
func NewMatcher(cfg config.Historical, scorer *similarity.Scorer) *Matcher {
	return &Matcher{cfg: cfg, scorer: scorer}
}

// Match decides merged / marked_duplicate / kept_separate for every new
// cluster. prior holds decisions persisted by earlier runs, keyed by
// canonical item id; a cluster whose canonical already has a decision gets
// the identical decision back (idempotence). Matched clusters get their
// historical back-reference set; a structural merge is only chosen while the
// historical cluster is young enough that its rendered output has not
// shipped, otherwise the new cluster is flagged duplicate and left intact.
func (m *Matcher) Match(clusters []*Cluster, history []*Cluster, prior map[string]MatchDecision, now time.Time) []MatchDecision {
	decisions := make([]MatchDecision, 0, len(clusters))

	for _, c := range clusters {
		itemID := c.Canonical.Item.Key()

		if prev, ok := prior[itemID]; ok {
			c.applyDecision(prev)
			decisions = append(decisions, prev)
			continue
		}

		d := m.matchOne(c, history, now)
		c.applyDecision(d)
		decisions = append(decisions, d)
	}

	return decisions
}

func (m *Matcher) matchOne(c *Cluster, history []*Cluster, now time.Time) MatchDecision {
	d := MatchDecision{
		ItemID:    c.Canonical.Item.Key(),
		ClusterID: c.ID,
		Outcome:   OutcomeKeptSeparate,
	}

	cutoff := now.AddDate(0, 0, -m.cfg.WindowDays)

	var best *Cluster
	var bestScore float64
	for _, h := range history {
		if h.FirstReportedAt.Before(cutoff) {
			continue
		}
		score, err := m.scorer.Score(c.Canonical.scorerView(), h.Canonical.scorerView())
		if err != nil {
			if !errors.Is(err, similarity.ErrNoEmbedding) {
				log.Printf("historical match for cluster %s: %v", c.ID, err)
			}
			continue
		}
		if score.Overall > bestScore {
			best = h
			bestScore = score.Overall
		}
	}

	if best == nil || bestScore < m.cfg.MatchThreshold {
		return d
	}

	d.HistoricalClusterID = best.ID
	d.Score = bestScore

	age := now.Sub(best.CreatedAt).Hours()
	if age <= m.cfg.MergeWindowHours {
		d.Outcome = OutcomeMerged
	} else {
		d.Outcome = OutcomeMarkedDuplicate
	}
	return d
}

// applyDecision writes the match back-reference onto the cluster. The
// reference is a lookup key into the cluster store, never a live edge.
func (c *Cluster) applyDecision(d MatchDecision) {
	switch d.Outcome {
	case OutcomeMerged, OutcomeMarkedDuplicate:
		c.IsHistoricalMatch = true
		c.HistoricalClusterID = d.HistoricalClusterID
	default:
		c.IsHistoricalMatch = false
		c.HistoricalClusterID = ""
	}
}
