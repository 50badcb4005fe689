package database

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/sander-arti/AI-nyhetsagent-sub001/internal/reputation"
)

// LoadReputations returns all persisted source reputations keyed by source id.
func (db *DB) LoadReputations() (map[string]*reputation.Reputation, error) {
	rows, err := db.conn.Query(
		`SELECT source_id, reliability_score, avg_response_hours, specialization,
		historical_accuracy, total_items, first_reports
		FROM source_reputations`,
	)
	if err != nil {
		return nil, fmt.Errorf("loading reputations: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*reputation.Reputation)
	for rows.Next() {
		var r reputation.Reputation
		var specJSON sql.NullString
		if err := rows.Scan(&r.SourceID, &r.ReliabilityScore, &r.AvgResponseHours,
			&specJSON, &r.HistoricalAccuracy, &r.TotalItems, &r.FirstReports); err != nil {
			return nil, fmt.Errorf("scanning reputation: %w", err)
		}
		if specJSON.Valid && specJSON.String != "" {
			if err := json.Unmarshal([]byte(specJSON.String), &r.Specialization); err != nil {
				r.Specialization = nil
			}
		}
		out[r.SourceID] = &r
	}
	return out, rows.Err()
}

// saveReputationsTx upserts a reputation snapshot inside the run transaction.
func saveReputationsTx(tx *sql.Tx, reps map[string]*reputation.Reputation) error {
	for id, r := range reps {
		var specJSON *string
		if len(r.Specialization) > 0 {
			data, err := json.Marshal(r.Specialization)
			if err != nil {
				return fmt.Errorf("marshaling specialization for %s: %w", id, err)
			}
			s := string(data)
			specJSON = &s
		}

		if _, err := tx.Exec(
			`INSERT INTO source_reputations
			(source_id, reliability_score, avg_response_hours, specialization,
			 historical_accuracy, total_items, first_reports, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, datetime('now'))
			ON CONFLICT(source_id) DO UPDATE SET
			reliability_score=excluded.reliability_score,
			avg_response_hours=excluded.avg_response_hours,
			specialization=excluded.specialization,
			historical_accuracy=excluded.historical_accuracy,
			total_items=excluded.total_items,
			first_reports=excluded.first_reports,
			updated_at=excluded.updated_at`,
			id, r.ReliabilityScore, r.AvgResponseHours, specJSON,
			r.HistoricalAccuracy, r.TotalItems, r.FirstReports,
		); err != nil {
			return fmt.Errorf("saving reputation for %s: %w", id, err)
		}
	}
	return nil
}
