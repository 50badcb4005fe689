package database

import (
	"database/sql"
	"fmt"
)

// Stats contains aggregate database statistics for the status command.
type Stats struct {
	Runs            int
	Clusters        int
	MultiSource     int
	ItemsTracked    int
	SourcesTracked  int
	MatchesRecorded int
}

// GetStats returns aggregate statistics across all persisted runs.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}
	queries := []struct {
		dest  *int
		query string
	}{
		{&s.Runs, "SELECT COUNT(*) FROM run_reports"},
		{&s.Clusters, "SELECT COUNT(*) FROM clusters"},
		{&s.MultiSource, "SELECT COUNT(*) FROM clusters WHERE member_count >= 2"},
		{&s.ItemsTracked, "SELECT COUNT(*) FROM cluster_members"},
		{&s.SourcesTracked, "SELECT COUNT(*) FROM source_reputations"},
		{&s.MatchesRecorded, "SELECT COUNT(*) FROM historical_matches"},
	}
	for _, q := range queries {
		if err := db.conn.QueryRow(q.query).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("collecting stats: %w", err)
		}
	}
	return s, nil
}

// ClusterSummary is a listing row for the clusters command.
type ClusterSummary struct {
	ID              string
	RunID           string
	MemberCount     int
	EventType       string
	CommonEntities  string
	FirstReportedBy string
	FirstReportedAt string
	QualityScore    float64
}

// ListClusters returns the most recent clusters, highest quality first
// within each run.
func (db *DB) ListClusters(limit int) ([]ClusterSummary, error) {
	rows, err := db.conn.Query(
		`SELECT id, run_id, member_count, event_type, common_entities,
		first_reported_by, first_reported_at, quality_score
		FROM clusters
		ORDER BY first_reported_at DESC, quality_score DESC
		LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing clusters: %w", err)
	}
	defer rows.Close()

	var out []ClusterSummary
	for rows.Next() {
		var c ClusterSummary
		var eventType, entities, firstBy, firstAt sql.NullString
		if err := rows.Scan(&c.ID, &c.RunID, &c.MemberCount, &eventType,
			&entities, &firstBy, &firstAt, &c.QualityScore); err != nil {
			return nil, fmt.Errorf("scanning cluster summary: %w", err)
		}
		c.EventType = eventType.String
		c.CommonEntities = entities.String
		c.FirstReportedBy = firstBy.String
		c.FirstReportedAt = firstAt.String
		out = append(out, c)
	}
	return out, rows.Err()
}
