// Package store implements the persistent memory engine for Hindsight.
//
// It uses SQLite (WAL mode, FTS5 when available) to record workflow
// iterations, design decisions, commits, and timeline events for a single
// project, so that later sessions can query history with evidence instead
// of guesswork. Everything else (MCP server, CLI, TUI) talks to this.
//
// Every text field is passed through the redaction filter in sanitize.go
// before it reaches disk; see that file for the secret catalog.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ─── Types ───────────────────────────────────────────────────────────────────

// Iteration is one unit of work (a feature, fix, spike...). At most one
// iteration is active at a time in normal operation; the store does not
// enforce that, but ActiveIteration resolves ties by highest id.
type Iteration struct {
	ID              int64    `json:"id"`
	Command         string   `json:"command"`
	Description     *string  `json:"description,omitempty"`
	Status          string   `json:"status"`
	StartedAt       string   `json:"started_at"`
	CompletedAt     *string  `json:"completed_at,omitempty"`
	PhasesCompleted []string `json:"phases_completed"`
	Artifacts       []string `json:"artifacts"`
}

// Decision is a recorded design choice.
type Decision struct {
	ID           int64    `json:"id"`
	IterationID  *int64   `json:"iteration_id,omitempty"`
	Title        string   `json:"title"`
	Context      *string  `json:"context,omitempty"`
	Chosen       string   `json:"chosen"`
	Alternatives []string `json:"alternatives"`
	Rationale    *string  `json:"rationale,omitempty"`
	Impact       *string  `json:"impact,omitempty"`
	Phase        *string  `json:"phase,omitempty"`
	Tags         []string `json:"tags"`
	Status       string   `json:"status"`
	DecidedAt    string   `json:"decided_at"`
}

// Commit is a version-control commit reference. SHAs are unique; logging
// an already-known SHA is an idempotent no-op.
type Commit struct {
	ID           int64    `json:"id"`
	SHA          string   `json:"sha"`
	Message      *string  `json:"message,omitempty"`
	Author       *string  `json:"author,omitempty"`
	FilesChanged *int64   `json:"files_changed,omitempty"`
	Insertions   *int64   `json:"insertions,omitempty"`
	Deletions    *int64   `json:"deletions,omitempty"`
	Files        []string `json:"files"`
	CommittedAt  string   `json:"committed_at"`
	IterationID  *int64   `json:"iteration_id,omitempty"`
}

// DecisionLink is a directed, typed edge between two decisions. No reverse
// edge is stored; DecisionLinks looks both ways at query time.
type DecisionLink struct {
	SourceID  int64  `json:"source_id"`
	TargetID  int64  `json:"target_id"`
	LinkType  string `json:"link_type"`
	CreatedAt string `json:"created_at"`
}

// CommitLink associates a commit with the decision it implements,
// reverts, or relates to.
type CommitLink struct {
	CommitID   int64  `json:"commit_id"`
	DecisionID int64  `json:"decision_id"`
	LinkType   string `json:"link_type"`
}

// Event is an append-only timeline entry tied to an iteration. Events are
// the only entity subject to retention-based deletion.
type Event struct {
	ID          int64   `json:"id"`
	IterationID *int64  `json:"iteration_id,omitempty"`
	EventType   string  `json:"event_type"`
	Phase       *string `json:"phase,omitempty"`
	Payload     Payload `json:"payload,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

// PinnedItem marks a record (by id or textual ref) as worth keeping in
// front of a returning session.
type PinnedItem struct {
	ID         int64   `json:"id"`
	ItemType   string  `json:"item_type"`
	ItemID     *int64  `json:"item_id,omitempty"`
	ItemRef    *string `json:"item_ref,omitempty"`
	Note       *string `json:"note,omitempty"`
	Priority   int     `json:"priority"`
	AutoPinned bool    `json:"auto_pinned"`
	PinnedAt   string  `json:"pinned_at"`
}

// Action is a queued request from a collaborator surface, consumed by
// whoever polls PendingActions.
type Action struct {
	ID          int64   `json:"id"`
	ActionType  string  `json:"action_type"`
	Payload     Payload `json:"payload,omitempty"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"created_at"`
	ProcessedAt *string `json:"processed_at,omitempty"`
}

// Payload is the structured document attached to events and actions.
// It is persisted as JSON; every string leaf (including strings nested in
// maps and slices) is redacted before serialization.
type Payload map[string]any

// sanitized returns a deep copy of the payload with every string leaf run
// through Sanitize.
func (p Payload) sanitized() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = sanitizeValue(v)
	}
	return out
}

func sanitizeValue(v any) any {
	switch x := v.(type) {
	case string:
		return Sanitize(x)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = sanitizeValue(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = sanitizeValue(e)
		}
		return out
	default:
		return v
	}
}

// Stats summarizes the store for dashboards and the CLI.
type Stats struct {
	TotalIterations int    `json:"total_iterations"`
	TotalDecisions  int    `json:"total_decisions"`
	TotalCommits    int    `json:"total_commits"`
	TotalEvents     int    `json:"total_events"`
	SchemaVersion   string `json:"schema_version"`
	CreatedAt       string `json:"created_at"`
	FTSEnabled      bool   `json:"fts_enabled"`
}

// SessionContext is the bundle a reconnecting session needs to resume:
// where the workflow is, what matters, and what is waiting.
type SessionContext struct {
	Iteration      *Iteration   `json:"iteration,omitempty"`
	Decisions      []Decision   `json:"decisions"`
	PinnedItems    []PinnedItem `json:"pinned_items"`
	PendingActions []Action     `json:"pending_actions"`
}

// ─── Errors ──────────────────────────────────────────────────────────────────

// ValidationError reports caller-supplied data that violates an invariant.
// Nothing was written; the caller must fix the input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ErrSchemaTooNew is returned when the on-disk schema version is newer
// than this build understands. There is no downgrade path; refusing to
// open is the only safe move.
var ErrSchemaTooNew = fmt.Errorf("store file was written by a newer version")

// ─── Config ──────────────────────────────────────────────────────────────────

type Config struct {
	// Path is the database file location. The parent directory is
	// created on open if missing.
	Path string
	// MaxSearchResults caps the limit a caller may request from Search.
	MaxSearchResults int
	// ExportLimit bounds how many decisions a markdown export renders.
	ExportLimit int
	// LargeSizeBytes is the file size above which the health check warns.
	LargeSizeBytes int64
}

func DefaultConfig() Config {
	return Config{
		Path:             filepath.Join(".hindsight", "memory.db"),
		MaxSearchResults: 20,
		ExportLimit:      1000,
		LargeSizeBytes:   50 * 1024 * 1024,
	}
}

// Merge returns a new Config where every non-zero field of o overrides
// the receiver. Neither value is mutated.
func (c Config) Merge(o Config) Config {
	out := c
	if o.Path != "" {
		out.Path = o.Path
	}
	if o.MaxSearchResults > 0 {
		out.MaxSearchResults = o.MaxSearchResults
	}
	if o.ExportLimit > 0 {
		out.ExportLimit = o.ExportLimit
	}
	if o.LargeSizeBytes > 0 {
		out.LargeSizeBytes = o.LargeSizeBytes
	}
	return out
}

// ─── Store ───────────────────────────────────────────────────────────────────

type Store struct {
	db  *sql.DB
	cfg Config

	ftsEnabled bool
	// warnings collects non-fatal problems from open (failed backup,
	// failed chmod); CheckHealth surfaces them.
	warnings []string
}

// New opens (or creates) the store at cfg.Path, migrating an older file
// to the current schema first. Repeated opens of the same file are
// idempotent.
func New(cfg Config) (*Store, error) {
	cfg = DefaultConfig().Merge(cfg)

	if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("hindsight: create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("hindsight: open database: %w", err)
	}

	// WAL for concurrent readers, foreign keys for integrity. These are
	// per-connection settings: any other tool opening the same file must
	// apply them too.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("hindsight: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, cfg: cfg}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.initSearchIndex(); err != nil {
		db.Close()
		return nil, fmt.Errorf("hindsight: search index: %w", err)
	}

	// Owner-only read/write. Best-effort: some filesystems cannot
	// represent this, and the data is still correct without it.
	if err := os.Chmod(cfg.Path, 0o600); err != nil {
		s.warnings = append(s.warnings, fmt.Sprintf("could not tighten file permissions: %v", err))
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.cfg.Path
}

// FTSEnabled reports whether native full-text search is active. When
// false, Search falls back to substring matching.
func (s *Store) FTSEnabled() bool {
	return s.ftsEnabled
}

// ─── Meta ────────────────────────────────────────────────────────────────────

func (s *Store) metaGet(key string) (string, error) {
	var v string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return v, err
}

func (s *Store) metaSet(key, value string) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)", key, value,
	)
	return err
}

// ─── Query building ──────────────────────────────────────────────────────────

// whereClause accumulates predicate/argument pairs so filtered queries
// stay parameterized without ad-hoc string assembly at call sites.
type whereClause struct {
	conds []string
	args  []any
}

func (w *whereClause) add(cond string, args ...any) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *whereClause) sql() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// now returns the write timestamp: RFC 3339 in UTC, so lexicographic
// comparison matches chronological order.
func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// marshalList serializes a string list column. A nil list serializes as
// an empty JSON array, never NULL, matching the column defaults.
func marshalList(items []string) string {
	if items == nil {
		items = []string{}
	}
	b, _ := json.Marshal(items)
	return string(b)
}

// unmarshalList tolerates NULL and malformed text, returning an empty
// list rather than failing a whole row scan.
func unmarshalList(raw sql.NullString) []string {
	if !raw.Valid || raw.String == "" {
		return []string{}
	}
	var items []string
	if err := json.Unmarshal([]byte(raw.String), &items); err != nil {
		return []string{}
	}
	return items
}

// mergeTags unions two tag lists, de-duplicating while preserving
// first-seen order.
func mergeTags(existing, added []string) []string {
	seen := make(map[string]bool, len(existing)+len(added))
	merged := make([]string, 0, len(existing)+len(added))
	for _, t := range append(append([]string{}, existing...), added...) {
		if seen[t] {
			continue
		}
		seen[t] = true
		merged = append(merged, t)
	}
	return merged
}
