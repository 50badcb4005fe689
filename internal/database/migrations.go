package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS source_reputations (
    source_id TEXT PRIMARY KEY,
    reliability_score REAL NOT NULL DEFAULT 0.5,
    avg_response_hours REAL NOT NULL DEFAULT 0,
    specialization TEXT,
    historical_accuracy REAL NOT NULL DEFAULT 0.5,
    total_items INTEGER NOT NULL DEFAULT 0,
    first_reports INTEGER NOT NULL DEFAULT 0,
    updated_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS clusters (
    id TEXT PRIMARY KEY,
    run_id TEXT NOT NULL,
    canonical TEXT NOT NULL,
    event_type TEXT,
    common_entities TEXT,
    first_reported_by TEXT,
    first_reported_at TEXT,
    member_count INTEGER NOT NULL DEFAULT 0,
    source_diversity REAL NOT NULL DEFAULT 0,
    avg_source_reputation REAL NOT NULL DEFAULT 0,
    sentiment_alignment REAL NOT NULL DEFAULT 0,
    quality_score REAL NOT NULL DEFAULT 0,
    is_historical_match INTEGER NOT NULL DEFAULT 0,
    historical_cluster_id TEXT,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS cluster_members (
    cluster_id TEXT NOT NULL REFERENCES clusters(id),
    item_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    item TEXT NOT NULL,
    PRIMARY KEY (cluster_id, item_id)
);

CREATE TABLE IF NOT EXISTS coverage_events (
    cluster_id TEXT NOT NULL REFERENCES clusters(id),
    item_id TEXT NOT NULL,
    source TEXT NOT NULL,
    published_at TEXT,
    confidence TEXT,
    added_value TEXT,
    PRIMARY KEY (cluster_id, item_id)
);

CREATE TABLE IF NOT EXISTS historical_matches (
    item_id TEXT PRIMARY KEY,
    cluster_id TEXT NOT NULL,
    outcome TEXT NOT NULL,
    historical_cluster_id TEXT,
    score REAL NOT NULL DEFAULT 0,
    decided_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS run_reports (
    run_id TEXT PRIMARY KEY,
    status TEXT NOT NULL,
    total_items INTEGER NOT NULL DEFAULT 0,
    grouped_items INTEGER NOT NULL DEFAULT 0,
    standalone_items INTEGER NOT NULL DEFAULT 0,
    clusters_created INTEGER NOT NULL DEFAULT 0,
    historical_merged INTEGER NOT NULL DEFAULT 0,
    marked_duplicate INTEGER NOT NULL DEFAULT 0,
    kept_separate INTEGER NOT NULL DEFAULT 0,
    warnings TEXT,
    processing_ms INTEGER NOT NULL DEFAULT 0,
    generated_at TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_clusters_run ON clusters(run_id);
CREATE INDEX IF NOT EXISTS idx_clusters_first_reported ON clusters(first_reported_at);
CREATE INDEX IF NOT EXISTS idx_members_cluster ON cluster_members(cluster_id);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
