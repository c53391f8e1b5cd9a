package store

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// SourceKind identifies which entity a search result wraps. The set is
// closed: a result is exactly one of these, and consumers can switch on
// it exhaustively.
type SourceKind string

const (
	SourceDecision SourceKind = "decision"
	SourceCommit   SourceKind = "commit"
)

// SearchResult is a tagged union: Kind says which of Decision/Commit is
// set, and exactly one of them always is.
type SearchResult struct {
	Kind     SourceKind `json:"kind"`
	Decision *Decision  `json:"decision,omitempty"`
	Commit   *Commit    `json:"commit,omitempty"`
}

// date returns the result's comparable timestamp for the since/until
// filters: decided_at for decisions, committed_at for commits.
func (r SearchResult) date() string {
	switch r.Kind {
	case SourceDecision:
		return r.Decision.DecidedAt
	case SourceCommit:
		return r.Commit.CommittedAt
	}
	return ""
}

// SearchOptions narrows Search. Since/Until are RFC 3339 timestamps
// compared lexicographically (inclusive). Tags and Status apply only to
// decisions; when either is set, commits are excluded from the results
// entirely because commits carry neither field.
type SearchOptions struct {
	Limit       int
	IterationID *int64
	Since       string
	Until       string
	Tags        []string
	Status      string
}

func (o SearchOptions) hasPostFilters() bool {
	return o.Since != "" || o.Until != "" || len(o.Tags) > 0 || o.Status != ""
}

// Search finds decisions and commits matching query. With FTS5 it runs a
// ranked full-text match; without, it falls back to case-insensitive
// substring search over the same fields. Post-filters (date range, tags,
// status) are applied in Go on an over-fetched candidate set, so a
// filtered search may return fewer than Limit results even when more
// matches exist deeper in the index.
func (s *Store) Search(query string, opts SearchOptions) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &ValidationError{Field: "query", Reason: "must not be empty"}
	}
	if opts.Limit <= 0 || opts.Limit > s.cfg.MaxSearchResults {
		opts.Limit = s.cfg.MaxSearchResults
	}

	fetch := opts.Limit
	if opts.hasPostFilters() {
		// Over-fetch so post-filtering still has a chance to fill the
		// requested page.
		fetch = opts.Limit * 3
	}

	var results []SearchResult
	var err error
	if s.ftsEnabled {
		results, err = s.searchFTS(query, fetch, opts.IterationID)
	} else {
		results, err = s.searchLike(query, fetch, opts.IterationID)
	}
	if err != nil {
		return nil, err
	}

	results = applyPostFilters(results, opts)
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

// searchFTS runs a ranked match against memory_fts, then loads each hit
// as a typed row. The query is wrapped as a quoted phrase so user input
// cannot inject FTS5 operators.
func (s *Store) searchFTS(query string, limit int, iterationID *int64) ([]SearchResult, error) {
	phrase := `"` + strings.ReplaceAll(query, `"`, `""`) + `"`
	rows, err := s.db.Query(`
		SELECT source_type, source_id FROM memory_fts
		WHERE memory_fts MATCH ? ORDER BY rank LIMIT ?`,
		phrase, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("hindsight: search: %w", err)
	}
	defer rows.Close()

	type hit struct {
		kind SourceKind
		id   int64
	}
	var hits []hit
	for rows.Next() {
		var kind, rawID string
		if err := rows.Scan(&kind, &rawID); err != nil {
			return nil, fmt.Errorf("hindsight: search: %w", err)
		}
		id, err := strconv.ParseInt(rawID, 10, 64)
		if err != nil {
			continue
		}
		hits = append(hits, hit{SourceKind(kind), id})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("hindsight: search: %w", err)
	}

	var results []SearchResult
	for _, h := range hits {
		switch h.kind {
		case SourceDecision:
			d, err := s.fetchDecision(h.id, iterationID)
			if err != nil {
				return nil, err
			}
			if d != nil {
				results = append(results, SearchResult{Kind: SourceDecision, Decision: d})
			}
		case SourceCommit:
			c, err := s.fetchCommit(h.id, iterationID)
			if err != nil {
				return nil, err
			}
			if c != nil {
				results = append(results, SearchResult{Kind: SourceCommit, Commit: c})
			}
		}
	}
	return results, nil
}

// searchLike is the degraded path for sqlite builds without FTS5:
// substring match over decision text fields first, then commit messages
// to fill the remaining slots.
func (s *Store) searchLike(query string, limit int, iterationID *int64) ([]SearchResult, error) {
	pattern := "%" + query + "%"

	var w whereClause
	w.add("(title LIKE ? OR context LIKE ? OR chosen LIKE ? OR rationale LIKE ?)",
		pattern, pattern, pattern, pattern)
	if iterationID != nil {
		w.add("iteration_id = ?", *iterationID)
	}
	rows, err := s.db.Query(
		decisionColumns+w.sql()+` ORDER BY id DESC LIMIT ?`,
		append(w.args, limit)...,
	)
	if err != nil {
		return nil, fmt.Errorf("hindsight: search: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("hindsight: search: %w", err)
		}
		results = append(results, SearchResult{Kind: SourceDecision, Decision: d})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("hindsight: search: %w", err)
	}

	remaining := limit - len(results)
	if remaining <= 0 {
		return results, nil
	}

	var cw whereClause
	cw.add("message LIKE ?", pattern)
	if iterationID != nil {
		cw.add("iteration_id = ?", *iterationID)
	}
	crows, err := s.db.Query(
		commitColumns+cw.sql()+` ORDER BY id DESC LIMIT ?`,
		append(cw.args, remaining)...,
	)
	if err != nil {
		return nil, fmt.Errorf("hindsight: search: %w", err)
	}
	defer crows.Close()
	for crows.Next() {
		c, err := scanCommit(crows)
		if err != nil {
			return nil, fmt.Errorf("hindsight: search: %w", err)
		}
		results = append(results, SearchResult{Kind: SourceCommit, Commit: c})
	}
	return results, crows.Err()
}

// applyPostFilters keeps only results passing the date, tag, and status
// predicates. Tag and status filters drop commits outright.
func applyPostFilters(results []SearchResult, opts SearchOptions) []SearchResult {
	if !opts.hasPostFilters() {
		return results
	}
	var out []SearchResult
	for _, r := range results {
		if opts.Since != "" && r.date() < opts.Since {
			continue
		}
		if opts.Until != "" && r.date() > opts.Until {
			continue
		}
		if len(opts.Tags) > 0 || opts.Status != "" {
			if r.Kind != SourceDecision {
				continue
			}
			if len(opts.Tags) > 0 && !tagsIntersect(r.Decision.Tags, opts.Tags) {
				continue
			}
			if opts.Status != "" && r.Decision.Status != opts.Status {
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

func (s *Store) fetchDecision(id int64, iterationID *int64) (*Decision, error) {
	var w whereClause
	w.add("id = ?", id)
	if iterationID != nil {
		w.add("iteration_id = ?", *iterationID)
	}
	row := s.db.QueryRow(decisionColumns+w.sql(), w.args...)
	d, err := scanDecision(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("hindsight: fetch decision: %w", err)
	}
	return d, nil
}

func (s *Store) fetchCommit(id int64, iterationID *int64) (*Commit, error) {
	var w whereClause
	w.add("id = ?", id)
	if iterationID != nil {
		w.add("iteration_id = ?", *iterationID)
	}
	row := s.db.QueryRow(commitColumns+w.sql(), w.args...)
	c, err := scanCommit(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("hindsight: fetch commit: %w", err)
	}
	return c, nil
}
