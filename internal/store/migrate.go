package store

import (
	"fmt"
	"io"
	"os"
	"strconv"
)

// schemaVersion is the version this build writes. Older files are
// migrated forward step by step; newer files are refused.
const schemaVersion = 3

// schemaSQL is the full current-version schema. Every statement is
// idempotent, so executing it against an existing file only fills gaps;
// column-level changes to existing tables live in migrations below.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS iterations (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    command          TEXT NOT NULL,
    description      TEXT,
    status           TEXT NOT NULL DEFAULT 'active',
    started_at       TEXT NOT NULL,
    completed_at     TEXT,
    phases_completed TEXT NOT NULL DEFAULT '[]',
    artifacts        TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS decisions (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    iteration_id INTEGER REFERENCES iterations(id),
    title        TEXT NOT NULL,
    context      TEXT,
    chosen       TEXT NOT NULL,
    alternatives TEXT NOT NULL DEFAULT '[]',
    rationale    TEXT,
    impact       TEXT,
    phase        TEXT,
    tags         TEXT NOT NULL DEFAULT '[]',
    status       TEXT NOT NULL DEFAULT 'active',
    decided_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS commits (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    sha           TEXT NOT NULL UNIQUE,
    message       TEXT,
    author        TEXT,
    files_changed INTEGER,
    insertions    INTEGER,
    deletions     INTEGER,
    files         TEXT NOT NULL DEFAULT '[]',
    committed_at  TEXT NOT NULL,
    iteration_id  INTEGER REFERENCES iterations(id)
);

CREATE TABLE IF NOT EXISTS commit_links (
    commit_id   INTEGER NOT NULL REFERENCES commits(id),
    decision_id INTEGER NOT NULL REFERENCES decisions(id),
    link_type   TEXT NOT NULL DEFAULT 'implements',
    PRIMARY KEY (commit_id, decision_id)
);

CREATE TABLE IF NOT EXISTS events (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    iteration_id INTEGER REFERENCES iterations(id),
    event_type   TEXT NOT NULL,
    phase        TEXT,
    payload      TEXT,
    created_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS decision_links (
    source_id  INTEGER NOT NULL REFERENCES decisions(id),
    target_id  INTEGER NOT NULL REFERENCES decisions(id),
    link_type  TEXT NOT NULL,
    created_at TEXT NOT NULL,
    PRIMARY KEY (source_id, target_id)
);

CREATE TABLE IF NOT EXISTS pinned_items (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    item_type   TEXT NOT NULL,
    item_id     INTEGER,
    item_ref    TEXT,
    note        TEXT,
    priority    INTEGER NOT NULL DEFAULT 5,
    auto_pinned INTEGER NOT NULL DEFAULT 0,
    pinned_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS actions (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    action_type  TEXT NOT NULL,
    payload      TEXT,
    status       TEXT NOT NULL DEFAULT 'pending',
    created_at   TEXT NOT NULL,
    processed_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_iterations_status ON iterations(status);
CREATE INDEX IF NOT EXISTS idx_decisions_iteration ON decisions(iteration_id);
CREATE INDEX IF NOT EXISTS idx_commits_iteration ON commits(iteration_id);
CREATE INDEX IF NOT EXISTS idx_events_iteration ON events(iteration_id);
CREATE INDEX IF NOT EXISTS idx_events_type ON events(event_type);
CREATE INDEX IF NOT EXISTS idx_decision_links_target ON decision_links(target_id);
CREATE INDEX IF NOT EXISTS idx_pinned_items_type ON pinned_items(item_type);
CREATE INDEX IF NOT EXISTS idx_actions_status ON actions(status);
`

// migrations maps a from-version to the statements that bring the file
// to from+1. ALTER TABLE ADD COLUMN is not idempotent in SQLite, which
// is exactly why these run at most once, guarded by the recorded version.
var migrations = map[int][]string{
	// v1 -> v2: decision lifecycle (tags, status), commit file lists,
	// and the decision relationship graph.
	1: {
		`ALTER TABLE decisions ADD COLUMN tags TEXT NOT NULL DEFAULT '[]'`,
		`ALTER TABLE decisions ADD COLUMN status TEXT NOT NULL DEFAULT 'active'`,
		`ALTER TABLE commits ADD COLUMN files TEXT NOT NULL DEFAULT '[]'`,
		`CREATE TABLE IF NOT EXISTS decision_links (
		    source_id  INTEGER NOT NULL REFERENCES decisions(id),
		    target_id  INTEGER NOT NULL REFERENCES decisions(id),
		    link_type  TEXT NOT NULL,
		    created_at TEXT NOT NULL,
		    PRIMARY KEY (source_id, target_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_decision_links_target ON decision_links(target_id)`,
	},
	// v2 -> v3: pinned items and the collaborator action queue.
	2: {
		`CREATE TABLE IF NOT EXISTS pinned_items (
		    id          INTEGER PRIMARY KEY AUTOINCREMENT,
		    item_type   TEXT NOT NULL,
		    item_id     INTEGER,
		    item_ref    TEXT,
		    note        TEXT,
		    priority    INTEGER NOT NULL DEFAULT 5,
		    auto_pinned INTEGER NOT NULL DEFAULT 0,
		    pinned_at   TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS actions (
		    id           INTEGER PRIMARY KEY AUTOINCREMENT,
		    action_type  TEXT NOT NULL,
		    payload      TEXT,
		    status       TEXT NOT NULL DEFAULT 'pending',
		    created_at   TEXT NOT NULL,
		    processed_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pinned_items_type ON pinned_items(item_type)`,
		`CREATE INDEX IF NOT EXISTS idx_actions_status ON actions(status)`,
	},
}

// ensureSchema creates a fresh schema or migrates an existing one to
// schemaVersion.
func (s *Store) ensureSchema() error {
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("hindsight: create schema: %w", err)
	}

	raw, err := s.metaGet("schema_version")
	if err != nil {
		return fmt.Errorf("hindsight: read schema version: %w", err)
	}
	if raw == "" {
		// Fresh file. schemaSQL already created everything at the
		// current shape; just stamp it.
		if err := s.metaSet("schema_version", strconv.Itoa(schemaVersion)); err != nil {
			return fmt.Errorf("hindsight: stamp schema version: %w", err)
		}
		if err := s.metaSet("created_at", now()); err != nil {
			return fmt.Errorf("hindsight: stamp created_at: %w", err)
		}
		return nil
	}

	version, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("hindsight: malformed schema version %q", raw)
	}
	if version > schemaVersion {
		return fmt.Errorf("hindsight: schema version %d: %w", version, ErrSchemaTooNew)
	}
	if version < schemaVersion {
		return s.migrate(version)
	}
	return nil
}

// migrate walks the file from version to schemaVersion, one transaction
// per step so a failure leaves the file at a consistent intermediate
// version. A .bak copy is taken first; failure to back up is recorded as
// a warning, not a fatal error.
func (s *Store) migrate(version int) error {
	if err := copyFile(s.cfg.Path, s.cfg.Path+".bak"); err != nil {
		s.warnings = append(s.warnings, fmt.Sprintf("pre-migration backup failed: %v", err))
	}

	for v := version; v < schemaVersion; v++ {
		stmts, ok := migrations[v]
		if !ok {
			return fmt.Errorf("hindsight: no migration path from version %d", v)
		}
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("hindsight: migrate v%d: begin: %w", v, err)
		}
		for _, stmt := range stmts {
			if _, err := tx.Exec(stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("hindsight: migrate v%d -> v%d: %w", v, v+1, err)
			}
		}
		if _, err := tx.Exec(
			"INSERT OR REPLACE INTO meta (key, value) VALUES ('schema_version', ?)",
			strconv.Itoa(v+1),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("hindsight: migrate v%d: stamp version: %w", v, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("hindsight: migrate v%d: commit: %w", v, err)
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
