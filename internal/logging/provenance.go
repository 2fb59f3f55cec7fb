package logging

import (
	"database/sql"
	"fmt"
	"time"
)

// #region log-resolution
// LogResolution writes a resolution entry to the resolution_log table.
func LogResolution(db *sql.DB, entry ResolutionEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO resolution_log (episode_id, version_id, round, intent, proposed_json, grounded_json, match_key, match_objects, outcome, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.EpisodeID,
		nullIfEmpty(entry.VersionID),
		entry.Round,
		entry.Intent,
		nullIfEmpty(entry.ProposedJSON),
		nullIfEmpty(entry.GroundedJSON),
		nullIfEmpty(entry.MatchKey),
		entry.MatchObjects,
		entry.Outcome,
		nullIfEmpty(entry.Reason),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log resolution: %w", err)
	}
	return nil
}

// #endregion log-resolution

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
