package dedup

import (
	"errors"
	"log"
	"sort"
	"time"

	"github.com/sander-arti/AI-nyhetsagent-sub001/internal/config"
	"github.com/sander-arti/AI-nyhetsagent-sub001/internal/reputation"
	"github.com/sander-arti/AI-nyhetsagent-sub001/internal/similarity"
	"github.com/sander-arti/AI-nyhetsagent-sub001/internal/temporal"
)

// Result holds the output of a within-run clustering pass.
type Result struct {
	Clusters []*Cluster // multi-member clusters plus singletons, in creation order
	Warnings []string
}

// Engine performs single-pass incremental clustering over a run's items.
type Engine struct {
	cfg     config.Clustering
	scorer  *similarity.Scorer
	tracker *reputation.Tracker
}

// NewEngine creates a clustering engine.
func NewEngine(cfg config.Clustering, scorer *similarity.Scorer, tracker *reputation.Tracker) *Engine {
	return &Engine{cfg: cfg, scorer: scorer, tracker: tracker}
}

// Cluster groups items into clusters. Items are processed in a single
// deterministic order; each item is compared against every open cluster's
// canonical only, and joins the best-scoring cluster whose score clears the
// threshold of the more restrictive story phase. Items that cannot be scored
// (no embedding) or that carry too few entities go standalone.
func (e *Engine) Cluster(items []*ContextualItem, now time.Time) *Result {
	ordered := make([]*ContextualItem, len(items))
	copy(ordered, items)
	sortItems(ordered)

	r := &Result{}
	for _, item := range ordered {
		e.place(item, r, now)
	}

	log.Printf("Clustering complete: %d items into %d clusters", len(items), len(r.Clusters))
	return r
}

// sortItems orders items for deterministic processing: discovery order is
// batch order, so the tie-break is video then in-video offset.
func sortItems(items []*ContextualItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Item.VideoID != b.Item.VideoID {
			return a.Item.VideoID < b.Item.VideoID
		}
		return offsetOf(a) < offsetOf(b)
	})
}

func offsetOf(c *ContextualItem) int {
	if c.Item.Timestamp != nil {
		return *c.Item.Timestamp
	}
	return 0
}

func (e *Engine) place(item *ContextualItem, r *Result, now time.Time) {
	if len(item.Embedding) == 0 {
		r.Warnings = append(r.Warnings, "degraded dedup: no embedding for item "+item.Item.Key())
		r.Clusters = append(r.Clusters, newCluster(item, e.tracker, now))
		return
	}

	joinable := item.EntityCount >= e.cfg.MinEntities

	var best *Cluster
	var bestScore similarity.Result
	if joinable {
		for _, c := range r.Clusters {
			// Entity-poor singletons never grow into multi-member clusters.
			if c.Canonical.EntityCount < e.cfg.MinEntities {
				continue
			}
			score, err := e.scorer.Score(item.scorerView(), c.Canonical.scorerView())
			if err != nil {
				if !errors.Is(err, similarity.ErrNoEmbedding) {
					log.Printf("scoring item %s against cluster %s: %v", item.Item.Key(), c.ID, err)
				}
				continue
			}
			if best == nil || score.Overall > bestScore.Overall {
				best = c
				bestScore = score
			}
		}
	}

	if best != nil {
		phase := temporal.Restrictive(item.Phase, best.Phase())
		if bestScore.Overall >= e.thresholdFor(phase) {
			best.absorb(item, bestScore, e.tracker)
			return
		}
	}

	r.Clusters = append(r.Clusters, newCluster(item, e.tracker, now))
}

// thresholdFor maps a story phase to its join threshold. Breaking news
// demands the strongest similarity evidence; historical the least.
func (e *Engine) thresholdFor(p temporal.Phase) float64 {
	switch p {
	case temporal.PhaseBreaking:
		return e.cfg.BreakingThreshold
	case temporal.PhaseFollowUp:
		return e.cfg.FollowUpThreshold
	case temporal.PhaseAnalysis:
		return e.cfg.AnalysisThreshold
	default:
		return e.cfg.HistoricalThreshold
	}
}
