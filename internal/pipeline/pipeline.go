// Package pipeline orchestrates one dedup run end to end.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/sander-arti/AI-nyhetsagent-sub001/internal/config"
	"github.com/sander-arti/AI-nyhetsagent-sub001/internal/database"
	"github.com/sander-arti/AI-nyhetsagent-sub001/internal/dedup"
	"github.com/sander-arti/AI-nyhetsagent-sub001/internal/grouping"
	"github.com/sander-arti/AI-nyhetsagent-sub001/internal/llm"
	"github.com/sander-arti/AI-nyhetsagent-sub001/internal/models"
	"github.com/sander-arti/AI-nyhetsagent-sub001/internal/reputation"
	"github.com/sander-arti/AI-nyhetsagent-sub001/internal/similarity"
	"github.com/sander-arti/AI-nyhetsagent-sub001/internal/temporal"
)

// Run statuses recorded in run reports.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the outcome of a full dedup run.
type Result struct {
	RunID  string
	Status string
	Steps  []StepResult
	Brief  *grouping.Brief
	Stats  dedup.Stats
}

// Pipeline wires the dedup engine's stages together for one run.
type Pipeline struct {
	cfg      *config.Config
	db       *database.DB
	embedder llm.Embedder
}

// New creates a pipeline. The embedder may be nil; the run then degrades
// every item to standalone with warnings instead of failing.
func New(cfg *config.Config, db *database.DB, embedder llm.Embedder) *Pipeline {
	return &Pipeline{cfg: cfg, db: db, embedder: embedder}
}

// Run deduplicates and groups one batch of items. Per-item failures degrade
// that item only; configuration and persistence failures abort the run
// before anything is committed.
func (p *Pipeline) Run(ctx context.Context, batch *models.Batch) (*Result, error) {
	started := time.Now()

	runID := batch.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	r := &Result{RunID: runID, Status: StatusFailed}

	// Step 1: load persisted state. Dedup without history is unsafe, so a
	// load failure is fatal to the run.
	log.Println("Step 1/6: Loading reputations and cluster history...")
	reps, err := p.db.LoadReputations()
	if err != nil {
		return r, p.fail(r, "Load", err)
	}
	tracker := reputation.NewTracker(reps)

	window := time.Duration(p.cfg.Historical.WindowDays) * 24 * time.Hour
	history, err := p.db.LoadRecentClusters(window)
	if err != nil {
		return r, p.fail(r, "Load", err)
	}
	prior, err := p.db.LoadMatchDecisions()
	if err != nil {
		return r, p.fail(r, "Load", err)
	}
	p.step(r, "Load", fmt.Sprintf("%d sources, %d historical clusters, %d prior decisions",
		len(reps), len(history), len(prior)))

	// Step 2: derive temporal and contextual state per item.
	log.Println("Step 2/6: Building item context...")
	decorator := dedup.NewDecorator(temporal.NewBuilder(p.cfg.Temporal), tracker)
	items := decorator.Decorate(batch.Items, batch.DiscoveredAt)
	p.step(r, "Context", fmt.Sprintf("%d items decorated", len(items)))

	// Step 3: prefetch embeddings ahead of the sequential clustering pass.
	log.Println("Step 3/6: Fetching embeddings...")
	embedded := p.embed(ctx, items)
	p.step(r, "Embed", fmt.Sprintf("%d/%d items embedded", embedded, len(items)))

	// Step 4: within-run clustering.
	log.Println("Step 4/6: Clustering...")
	scorer := similarity.NewScorer(p.cfg.Similarity)
	engine := dedup.NewEngine(p.cfg.Clustering, scorer, tracker)
	clusterResult := engine.Cluster(items, batch.DiscoveredAt)
	p.step(r, "Cluster", fmt.Sprintf("%d clusters from %d items",
		len(clusterResult.Clusters), len(items)))

	// Step 5: cross-run matching.
	log.Println("Step 5/6: Matching against history...")
	matcher := dedup.NewMatcher(p.cfg.Historical, scorer)
	decisions := matcher.Match(clusterResult.Clusters, history, prior, batch.DiscoveredAt)
	p.step(r, "Match", summarizeDecisions(decisions))

	p.recordOutcomes(tracker, clusterResult.Clusters, prior)

	// Step 6: entity grouping and commit.
	log.Println("Step 6/6: Grouping and committing...")
	stats := dedup.Collect(clusterResult, decisions)
	stats.ProcessingMs = time.Since(started).Milliseconds()
	if err := stats.Verify(); err != nil {
		if dbErr := p.db.SaveRunReport(runID, StatusFailed, stats); dbErr != nil {
			log.Printf("recording failed run %s: %v", runID, dbErr)
		}
		return r, p.fail(r, "Group", err)
	}

	grouper := grouping.NewGrouper(p.cfg.Grouping)
	brief := grouper.Group(clusterResult.Clusters, stats)

	if err := p.db.CommitRun(runID, clusterResult.Clusters, decisions,
		tracker.Snapshot(), stats, StatusSuccess); err != nil {
		return r, p.fail(r, "Commit", err)
	}
	p.step(r, "Commit", fmt.Sprintf("%d entity groups, %d standalone, %d TL;DR entries",
		len(brief.EntityGroups), len(brief.Standalone), len(brief.TLDR)))

	r.Status = StatusSuccess
	r.Brief = brief
	r.Stats = stats
	return r, nil
}

// embed attaches embeddings to items, returning how many succeeded.
func (p *Pipeline) embed(ctx context.Context, items []*dedup.ContextualItem) int {
	texts := make([]string, len(items))
	for i, it := range items {
		texts[i] = it.Item.Text()
	}

	prefetcher := llm.NewPrefetcher(p.embedder,
		p.cfg.Embedding.RatePerSecond,
		time.Duration(p.cfg.Embedding.TimeoutSeconds)*time.Second)
	embeddings := prefetcher.Fetch(ctx, texts)

	count := 0
	for i, emb := range embeddings {
		items[i].Embedding = emb
		if len(emb) > 0 {
			count++
		}
	}
	return count
}

// recordOutcomes feeds each clustered item back into the reputation tracker.
// Response time is measured from the cluster's first report; validation pass
// is what upstream consensus already decided, approximated by confidence.
// Clusters whose decision is replayed from a prior run were already credited
// by that run and are skipped.
func (p *Pipeline) recordOutcomes(tracker *reputation.Tracker, clusters []*dedup.Cluster, prior map[string]dedup.MatchDecision) {
	for _, c := range clusters {
		if _, ok := prior[c.Canonical.Item.Key()]; ok {
			continue
		}
		for _, m := range c.Members {
			response := m.PublishedAt.Sub(c.FirstReportedAt).Hours()
			if response < 0 {
				response = 0
			}
			tracker.RecordOutcome(m.Item.Source, reputation.Outcome{
				WasFirstReport:   m.IsFirstReport,
				PassedValidation: m.Item.Confidence != models.ConfidenceLow,
				ResponseHours:    response,
				Entities:         m.Item.Entities,
			})
		}
	}
}

func (p *Pipeline) step(r *Result, name, summary string) {
	r.Steps = append(r.Steps, StepResult{Name: name, Summary: summary})
}

func (p *Pipeline) fail(r *Result, name string, err error) error {
	r.Steps = append(r.Steps, StepResult{Name: name, Err: err})
	return fmt.Errorf("%s: %w", name, err)
}

func summarizeDecisions(decisions []dedup.MatchDecision) string {
	var merged, duplicate, separate int
	for _, d := range decisions {
		switch d.Outcome {
		case dedup.OutcomeMerged:
			merged++
		case dedup.OutcomeMarkedDuplicate:
			duplicate++
		default:
			separate++
		}
	}
	return fmt.Sprintf("%d merged, %d marked duplicate, %d kept separate",
		merged, duplicate, separate)
}
