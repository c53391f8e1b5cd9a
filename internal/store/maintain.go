package store

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// HealthReport is the outcome of CheckHealth. Status is "healthy",
// "warnings", or "errors"; Errors are integrity problems, Warnings are
// advisory.
type HealthReport struct {
	Status        string   `json:"status"`
	SchemaVersion string   `json:"schema_version"`
	FTSEnabled    bool     `json:"fts_enabled"`
	SizeBytes     int64    `json:"size_bytes"`
	Errors        []string `json:"errors"`
	Warnings      []string `json:"warnings"`
}

// CheckHealth inspects the store for drift: schema version, search index
// coverage, file permissions, and file size. It never mutates anything.
func (s *Store) CheckHealth() (*HealthReport, error) {
	r := &HealthReport{Errors: []string{}, Warnings: []string{}}
	r.Warnings = append(r.Warnings, s.warnings...)

	version, err := s.metaGet("schema_version")
	if err != nil {
		return nil, fmt.Errorf("hindsight: health check: %w", err)
	}
	r.SchemaVersion = version
	if version == "" {
		r.Errors = append(r.Errors, "schema version missing from meta")
	} else if version != strconv.Itoa(schemaVersion) {
		r.Errors = append(r.Errors, fmt.Sprintf(
			"schema version %s is outdated, current is %d", version, schemaVersion))
	}

	r.FTSEnabled = s.ftsEnabled
	if s.ftsEnabled {
		var indexed, decisions, commits int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM memory_fts").Scan(&indexed); err != nil {
			return nil, fmt.Errorf("hindsight: health check: %w", err)
		}
		if err := s.db.QueryRow("SELECT COUNT(*) FROM decisions").Scan(&decisions); err != nil {
			return nil, fmt.Errorf("hindsight: health check: %w", err)
		}
		if err := s.db.QueryRow("SELECT COUNT(*) FROM commits").Scan(&commits); err != nil {
			return nil, fmt.Errorf("hindsight: health check: %w", err)
		}
		if indexed != decisions+commits {
			r.Errors = append(r.Errors, fmt.Sprintf(
				"search index has %d entries, expected %d (%d decisions + %d commits)",
				indexed, decisions+commits, decisions, commits))
		}
	}

	if info, err := os.Stat(s.cfg.Path); err == nil {
		r.SizeBytes = info.Size()
		if perm := info.Mode().Perm(); perm != 0o600 {
			r.Warnings = append(r.Warnings, fmt.Sprintf(
				"database file permissions are %o, expected 600", perm))
		}
		if info.Size() > s.cfg.LargeSizeBytes {
			r.Warnings = append(r.Warnings, fmt.Sprintf(
				"database file is %d bytes; consider purging old events", info.Size()))
		}
	} else {
		r.Warnings = append(r.Warnings, fmt.Sprintf("could not stat database file: %v", err))
	}

	switch {
	case len(r.Errors) > 0:
		r.Status = "errors"
	case len(r.Warnings) > 0:
		r.Status = "warnings"
	default:
		r.Status = "healthy"
	}
	return r, nil
}

// PurgeOldEvents deletes events older than retentionDays. Decisions,
// commits, and iterations are never purged. Returns the number of rows
// removed.
func (s *Store) PurgeOldEvents(retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, &ValidationError{Field: "retention_days", Reason: "must be positive"}
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Format(time.RFC3339)
	res, err := s.db.Exec(`DELETE FROM events WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("hindsight: purge events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("hindsight: purge events: %w", err)
	}
	return n, nil
}

// GetStats reports entity counts and store metadata.
func (s *Store) GetStats() (*Stats, error) {
	st := &Stats{FTSEnabled: s.ftsEnabled}
	counts := []struct {
		query string
		dst   *int
	}{
		{"SELECT COUNT(*) FROM iterations", &st.TotalIterations},
		{"SELECT COUNT(*) FROM decisions", &st.TotalDecisions},
		{"SELECT COUNT(*) FROM commits", &st.TotalCommits},
		{"SELECT COUNT(*) FROM events", &st.TotalEvents},
	}
	for _, c := range counts {
		if err := s.db.QueryRow(c.query).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("hindsight: stats: %w", err)
		}
	}
	var err error
	if st.SchemaVersion, err = s.metaGet("schema_version"); err != nil {
		return nil, fmt.Errorf("hindsight: stats: %w", err)
	}
	if st.CreatedAt, err = s.metaGet("created_at"); err != nil {
		return nil, fmt.Errorf("hindsight: stats: %w", err)
	}
	return st, nil
}
