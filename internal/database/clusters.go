package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sander-arti/AI-nyhetsagent-sub001/internal/dedup"
	"github.com/sander-arti/AI-nyhetsagent-sub001/internal/reputation"
)

// LoadRecentClusters returns persisted clusters whose first report falls
// inside the given window, newest first. Canonicals are restored with their
// embeddings so the historical matcher can score against them.
func (db *DB) LoadRecentClusters(window time.Duration) ([]*dedup.Cluster, error) {
	cutoff := time.Now().UTC().Add(-window).Format(time.RFC3339)

	rows, err := db.conn.Query(
		`SELECT id, canonical, event_type, common_entities, first_reported_by,
		first_reported_at, source_diversity, avg_source_reputation,
		sentiment_alignment, quality_score, is_historical_match,
		historical_cluster_id, created_at
		FROM clusters WHERE first_reported_at >= ?
		ORDER BY first_reported_at DESC`, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("loading recent clusters: %w", err)
	}
	defer rows.Close()

	var clusters []*dedup.Cluster
	for rows.Next() {
		c, err := scanCluster(rows)
		if err != nil {
			return nil, err
		}
		clusters = append(clusters, c)
	}
	return clusters, rows.Err()
}

func scanCluster(rows *sql.Rows) (*dedup.Cluster, error) {
	var c dedup.Cluster
	var canonicalJSON, entitiesJSON string
	var eventType, firstBy, firstAt, histID, createdAt sql.NullString
	var isHistorical int

	if err := rows.Scan(&c.ID, &canonicalJSON, &eventType, &entitiesJSON,
		&firstBy, &firstAt, &c.SourceDiversity, &c.AvgSourceReputation,
		&c.SentimentAlignment, &c.QualityScore, &isHistorical,
		&histID, &createdAt); err != nil {
		return nil, fmt.Errorf("scanning cluster: %w", err)
	}

	var canonical dedup.ContextualItem
	if err := json.Unmarshal([]byte(canonicalJSON), &canonical); err != nil {
		return nil, fmt.Errorf("decoding canonical for cluster %s: %w", c.ID, err)
	}
	c.Canonical = &canonical
	c.Members = []*dedup.ContextualItem{&canonical}

	if entitiesJSON != "" {
		if err := json.Unmarshal([]byte(entitiesJSON), &c.CommonEntities); err != nil {
			c.CommonEntities = nil
		}
	}
	c.EventType = eventType.String
	c.FirstReportedBy = firstBy.String
	if firstAt.Valid {
		if t, err := time.Parse(time.RFC3339, firstAt.String); err == nil {
			c.FirstReportedAt = t
		}
	}
	if createdAt.Valid {
		if t, err := time.Parse(time.RFC3339, createdAt.String); err == nil {
			c.CreatedAt = t
		}
	}
	c.IsHistoricalMatch = isHistorical != 0
	c.HistoricalClusterID = histID.String
	return &c, nil
}

// LoadMatchDecisions returns all persisted cross-run match decisions keyed
// by canonical item id.
func (db *DB) LoadMatchDecisions() (map[string]dedup.MatchDecision, error) {
	rows, err := db.conn.Query(
		`SELECT item_id, cluster_id, outcome, historical_cluster_id, score
		FROM historical_matches`,
	)
	if err != nil {
		return nil, fmt.Errorf("loading match decisions: %w", err)
	}
	defer rows.Close()

	out := make(map[string]dedup.MatchDecision)
	for rows.Next() {
		var d dedup.MatchDecision
		var histID sql.NullString
		var outcome string
		if err := rows.Scan(&d.ItemID, &d.ClusterID, &outcome, &histID, &d.Score); err != nil {
			return nil, fmt.Errorf("scanning match decision: %w", err)
		}
		d.Outcome = dedup.Outcome(outcome)
		d.HistoricalClusterID = histID.String
		out[d.ItemID] = d
	}
	return out, rows.Err()
}

// CommitRun persists one run's results in a single transaction: clusters,
// members, coverage, match decisions, reputation snapshot and the run
// report. A cancelled or failed run therefore leaves no partial state.
// Clusters whose decision is "merged" are folded into their historical
// cluster instead of being stored as new rows.
func (db *DB) CommitRun(runID string, clusters []*dedup.Cluster, decisions []dedup.MatchDecision, reps map[string]*reputation.Reputation, stats dedup.Stats, status string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin run commit: %w", err)
	}
	defer tx.Rollback()

	// A retried run replaces its own rows instead of duplicating them;
	// cluster ids are minted fresh per run, so the old rows must go first.
	for _, stmt := range []string{
		`DELETE FROM coverage_events WHERE cluster_id IN (SELECT id FROM clusters WHERE run_id = ?)`,
		`DELETE FROM cluster_members WHERE cluster_id IN (SELECT id FROM clusters WHERE run_id = ?)`,
		`DELETE FROM clusters WHERE run_id = ?`,
	} {
		if _, err := tx.Exec(stmt, runID); err != nil {
			return fmt.Errorf("clearing rows of run %s: %w", runID, err)
		}
	}

	merged := make(map[string]string) // new cluster id -> historical cluster id
	for _, d := range decisions {
		if d.Outcome == dedup.OutcomeMerged {
			merged[d.ClusterID] = d.HistoricalClusterID
		}
	}

	for _, c := range clusters {
		if histID, ok := merged[c.ID]; ok {
			if err := mergeIntoHistorical(tx, histID, c, reps); err != nil {
				return err
			}
			continue
		}
		if err := insertCluster(tx, runID, c); err != nil {
			return err
		}
	}

	for _, d := range decisions {
		if _, err := tx.Exec(
			`INSERT INTO historical_matches (item_id, cluster_id, outcome, historical_cluster_id, score)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(item_id) DO NOTHING`,
			d.ItemID, d.ClusterID, string(d.Outcome), nullable(d.HistoricalClusterID), d.Score,
		); err != nil {
			return fmt.Errorf("saving match decision for %s: %w", d.ItemID, err)
		}
	}

	if err := saveReputationsTx(tx, reps); err != nil {
		return err
	}

	if _, err := tx.Exec(runReportSQL, runReportArgs(runID, status, stats)...); err != nil {
		return fmt.Errorf("saving run report: %w", err)
	}

	return tx.Commit()
}

const runReportSQL = `INSERT OR REPLACE INTO run_reports
	(run_id, status, total_items, grouped_items, standalone_items,
	 clusters_created, historical_merged, marked_duplicate, kept_separate,
	 warnings, processing_ms)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func runReportArgs(runID, status string, stats dedup.Stats) []any {
	return []any{
		runID, status, stats.TotalItems, stats.GroupedItems, stats.StandaloneItems,
		stats.ClustersCreated, stats.HistoricalMerged, stats.MarkedDuplicate,
		stats.KeptSeparate, strings.Join(stats.Warnings, "\n"), stats.ProcessingMs,
	}
}

// SaveRunReport persists a run report outside a run commit, for runs that
// fail after stats exist but before anything is committed.
func (db *DB) SaveRunReport(runID, status string, stats dedup.Stats) error {
	if _, err := db.conn.Exec(runReportSQL, runReportArgs(runID, status, stats)...); err != nil {
		return fmt.Errorf("saving run report: %w", err)
	}
	return nil
}

func insertCluster(tx *sql.Tx, runID string, c *dedup.Cluster) error {
	canonicalJSON, err := json.Marshal(c.Canonical)
	if err != nil {
		return fmt.Errorf("marshaling canonical for cluster %s: %w", c.ID, err)
	}
	entitiesJSON, err := json.Marshal(c.CommonEntities)
	if err != nil {
		return fmt.Errorf("marshaling entities for cluster %s: %w", c.ID, err)
	}

	if _, err := tx.Exec(
		`INSERT INTO clusters
		(id, run_id, canonical, event_type, common_entities, first_reported_by,
		 first_reported_at, member_count, source_diversity, avg_source_reputation,
		 sentiment_alignment, quality_score, is_historical_match,
		 historical_cluster_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, runID, string(canonicalJSON), c.EventType, string(entitiesJSON),
		c.FirstReportedBy, c.FirstReportedAt.UTC().Format(time.RFC3339),
		c.Size(), c.SourceDiversity, c.AvgSourceReputation,
		c.SentimentAlignment, c.QualityScore, boolToInt(c.IsHistoricalMatch),
		nullable(c.HistoricalClusterID), c.CreatedAt.UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("inserting cluster %s: %w", c.ID, err)
	}

	return insertMembers(tx, c.ID, c, 0)
}

// mergeIntoHistorical folds a merged cluster's members into the persisted
// historical cluster and re-derives every membership-scoped aggregate over
// the combined membership, the same way a within-run join does.
func mergeIntoHistorical(tx *sql.Tx, histID string, c *dedup.Cluster, reps map[string]*reputation.Reputation) error {
	var count int
	if err := tx.QueryRow(
		"SELECT member_count FROM clusters WHERE id = ?", histID,
	).Scan(&count); err != nil {
		return fmt.Errorf("looking up historical cluster %s: %w", histID, err)
	}

	if err := insertMembers(tx, histID, c, count); err != nil {
		return err
	}

	members, err := loadMembersTx(tx, histID)
	if err != nil {
		return err
	}
	if len(members) == 0 {
		return nil
	}

	combined := &dedup.Cluster{ID: histID, Members: members}
	combined.Recompute(reputation.NewTracker(reps))

	entitiesJSON, err := json.Marshal(combined.CommonEntities)
	if err != nil {
		return fmt.Errorf("marshaling entities for cluster %s: %w", histID, err)
	}

	if _, err := tx.Exec(
		`UPDATE clusters SET
		member_count = ?, first_reported_by = ?, first_reported_at = ?,
		source_diversity = ?, avg_source_reputation = ?, sentiment_alignment = ?,
		quality_score = ?, common_entities = ?
		WHERE id = ?`,
		len(members), combined.FirstReportedBy,
		combined.FirstReportedAt.UTC().Format(time.RFC3339),
		combined.SourceDiversity, combined.AvgSourceReputation,
		combined.SentimentAlignment, combined.QualityScore,
		string(entitiesJSON), histID,
	); err != nil {
		return fmt.Errorf("updating historical cluster %s: %w", histID, err)
	}
	return nil
}

func loadMembersTx(tx *sql.Tx, clusterID string) ([]*dedup.ContextualItem, error) {
	rows, err := tx.Query(
		"SELECT item FROM cluster_members WHERE cluster_id = ? ORDER BY position", clusterID,
	)
	if err != nil {
		return nil, fmt.Errorf("loading members of cluster %s: %w", clusterID, err)
	}
	defer rows.Close()

	var members []*dedup.ContextualItem
	for rows.Next() {
		var itemJSON string
		if err := rows.Scan(&itemJSON); err != nil {
			return nil, fmt.Errorf("scanning member of cluster %s: %w", clusterID, err)
		}
		var m dedup.ContextualItem
		if err := json.Unmarshal([]byte(itemJSON), &m); err != nil {
			return nil, fmt.Errorf("decoding member of cluster %s: %w", clusterID, err)
		}
		members = append(members, &m)
	}
	return members, rows.Err()
}

func insertMembers(tx *sql.Tx, clusterID string, c *dedup.Cluster, basePosition int) error {
	for i, m := range c.Members {
		// Member embeddings are large and only the canonical's is needed
		// for future matching; strip them before storage.
		slim := *m
		slim.Embedding = nil
		itemJSON, err := json.Marshal(&slim)
		if err != nil {
			return fmt.Errorf("marshaling member %s: %w", m.Item.Key(), err)
		}

		if _, err := tx.Exec(
			`INSERT INTO cluster_members (cluster_id, item_id, position, item)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(cluster_id, item_id) DO NOTHING`,
			clusterID, m.Item.Key(), basePosition+i, string(itemJSON),
		); err != nil {
			return fmt.Errorf("inserting member %s: %w", m.Item.Key(), err)
		}
	}

	for _, ev := range c.Coverage {
		if _, err := tx.Exec(
			`INSERT INTO coverage_events
			(cluster_id, item_id, source, published_at, confidence, added_value)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(cluster_id, item_id) DO NOTHING`,
			clusterID, ev.ItemID, ev.Source,
			ev.PublishedAt.UTC().Format(time.RFC3339), ev.Confidence, ev.AddedValue,
		); err != nil {
			return fmt.Errorf("inserting coverage event for %s: %w", ev.ItemID, err)
		}
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
