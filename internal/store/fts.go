package store

import (
	"database/sql"
	"fmt"
)

// initSearchIndex probes for FTS5 support and, when present, creates the
// memory_fts virtual table plus the insert triggers that feed it. On the
// first creation the existing decisions and commits are backfilled so a
// file that predates the index is still fully searchable. Without FTS5
// the store silently degrades to LIKE search.
func (s *Store) initSearchIndex() error {
	// Probe with a throwaway table. The sqlite build either has the
	// fts5 module compiled in or it errors here.
	if _, err := s.db.Exec("CREATE VIRTUAL TABLE _fts_probe USING fts5(probe)"); err != nil {
		s.ftsEnabled = false
		return s.metaSet("fts_enabled", "0")
	}
	if _, err := s.db.Exec("DROP TABLE _fts_probe"); err != nil {
		return fmt.Errorf("drop probe table: %w", err)
	}
	s.ftsEnabled = true

	var name string
	err := s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name='memory_fts'",
	).Scan(&name)
	existed := err == nil
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("check index table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS memory_fts USING fts5(
		    source_type, source_id, content
		)`); err != nil {
		return fmt.Errorf("create index table: %w", err)
	}

	// Triggers mirror new rows into the index. Updates and deletes are
	// rare enough that a stale index entry is acceptable; the health
	// check reports drift.
	triggers := []string{
		`CREATE TRIGGER IF NOT EXISTS decisions_fts_insert AFTER INSERT ON decisions BEGIN
		    INSERT INTO memory_fts (source_type, source_id, content)
		    VALUES ('decision', CAST(NEW.id AS TEXT),
		            COALESCE(NEW.title, '') || ' ' ||
		            COALESCE(NEW.context, '') || ' ' ||
		            COALESCE(NEW.chosen, '') || ' ' ||
		            COALESCE(NEW.alternatives, '') || ' ' ||
		            COALESCE(NEW.rationale, ''));
		END`,
		`CREATE TRIGGER IF NOT EXISTS commits_fts_insert AFTER INSERT ON commits BEGIN
		    INSERT INTO memory_fts (source_type, source_id, content)
		    VALUES ('commit', CAST(NEW.id AS TEXT), COALESCE(NEW.message, ''));
		END`,
	}
	for _, t := range triggers {
		if _, err := s.db.Exec(t); err != nil {
			return fmt.Errorf("create trigger: %w", err)
		}
	}

	if !existed {
		if err := s.backfillSearchIndex(); err != nil {
			return fmt.Errorf("backfill index: %w", err)
		}
	}

	return s.metaSet("fts_enabled", "1")
}

// backfillSearchIndex indexes every pre-existing decision and commit.
// Runs exactly once, when memory_fts is first created.
func (s *Store) backfillSearchIndex() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`
		INSERT INTO memory_fts (source_type, source_id, content)
		SELECT 'decision', CAST(id AS TEXT),
		       COALESCE(title, '') || ' ' ||
		       COALESCE(context, '') || ' ' ||
		       COALESCE(chosen, '') || ' ' ||
		       COALESCE(alternatives, '') || ' ' ||
		       COALESCE(rationale, '')
		FROM decisions`); err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.Exec(`
		INSERT INTO memory_fts (source_type, source_id, content)
		SELECT 'commit', CAST(id AS TEXT), COALESCE(message, '')
		FROM commits`); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
