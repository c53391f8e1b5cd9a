package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// validDecisionStatuses gates UpdateDecisionStatus. Decisions start
// 'active' and move through review outcomes; free-form statuses would
// break the status search filter.
var validDecisionStatuses = map[string]bool{
	"active":     true,
	"superseded": true,
	"deprecated": true,
}

// validLinkTypes gates the decision graph edges.
var validLinkTypes = map[string]bool{
	"supersedes":  true,
	"depends_on":  true,
	"contradicts": true,
	"relates":     true,
}

// validCommitLinkTypes gates commit-to-decision associations.
var validCommitLinkTypes = map[string]bool{
	"implements": true,
	"reverts":    true,
	"relates":    true,
}

type scanner interface {
	Scan(dest ...any) error
}

// ─── Iterations ──────────────────────────────────────────────────────────────

// StartIteration opens a new unit of work. It does not close a previous
// active iteration; overlapping iterations are legal and ActiveIteration
// picks the newest.
func (s *Store) StartIteration(command, description string) (*Iteration, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return nil, &ValidationError{Field: "command", Reason: "must not be empty"}
	}
	ts := now()
	res, err := s.db.Exec(`
		INSERT INTO iterations (command, description, status, started_at)
		VALUES (?, ?, 'active', ?)`,
		Sanitize(command), sanitizePtr(nullableString(description)), ts,
	)
	if err != nil {
		return nil, fmt.Errorf("hindsight: start iteration: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("hindsight: start iteration: %w", err)
	}
	return s.GetIteration(id)
}

// ActiveIteration returns the newest iteration still marked active, or
// nil when none is.
func (s *Store) ActiveIteration() (*Iteration, error) {
	row := s.db.QueryRow(iterationColumns + ` WHERE status = 'active' ORDER BY id DESC LIMIT 1`)
	it, err := scanIteration(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("hindsight: active iteration: %w", err)
	}
	return it, nil
}

// GetIteration returns the iteration with the given id, or nil when it
// does not exist.
func (s *Store) GetIteration(id int64) (*Iteration, error) {
	row := s.db.QueryRow(iterationColumns+` WHERE id = ?`, id)
	it, err := scanIteration(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("hindsight: get iteration: %w", err)
	}
	return it, nil
}

// LatestIteration returns the most recent iteration regardless of
// status, or nil when the store holds none. Fallback for callers that
// want context when nothing is active.
func (s *Store) LatestIteration() (*Iteration, error) {
	row := s.db.QueryRow(iterationColumns + ` ORDER BY id DESC LIMIT 1`)
	it, err := scanIteration(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("hindsight: latest iteration: %w", err)
	}
	return it, nil
}

// CompleteIteration closes the active iteration with the given status
// (completed, abandoned, ...). Status is free-form on purpose: workflows
// invent their own terminal states. Returns nil when nothing was active.
func (s *Store) CompleteIteration(status string) (*Iteration, error) {
	active, err := s.ActiveIteration()
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, nil
	}
	return s.CompleteIterationByID(active.ID, status)
}

// CompleteIterationByID closes a specific iteration, active or not.
func (s *Store) CompleteIterationByID(id int64, status string) (*Iteration, error) {
	if strings.TrimSpace(status) == "" {
		status = "completed"
	}
	if _, err := s.db.Exec(
		`UPDATE iterations SET status = ?, completed_at = ? WHERE id = ?`,
		Sanitize(status), now(), id,
	); err != nil {
		return nil, fmt.Errorf("hindsight: complete iteration: %w", err)
	}
	return s.GetIteration(id)
}

// AddIterationPhase appends phase to the iteration's completed-phase
// list if not already present.
func (s *Store) AddIterationPhase(id int64, phase string) error {
	return s.appendIterationList(id, "phases_completed", phase)
}

// AddIterationArtifact records a produced artifact path on the iteration.
func (s *Store) AddIterationArtifact(id int64, artifact string) error {
	return s.appendIterationList(id, "artifacts", artifact)
}

func (s *Store) appendIterationList(id int64, column, item string) error {
	item = strings.TrimSpace(item)
	if item == "" {
		return &ValidationError{Field: column, Reason: "must not be empty"}
	}
	var raw sql.NullString
	err := s.db.QueryRow(
		fmt.Sprintf("SELECT %s FROM iterations WHERE id = ?", column), id,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return &ValidationError{Field: "iteration_id", Reason: fmt.Sprintf("iteration %d not found", id)}
	}
	if err != nil {
		return fmt.Errorf("hindsight: read iteration %s: %w", column, err)
	}
	items := unmarshalList(raw)
	for _, existing := range items {
		if existing == item {
			return nil
		}
	}
	items = append(items, Sanitize(item))
	if _, err := s.db.Exec(
		fmt.Sprintf("UPDATE iterations SET %s = ? WHERE id = ?", column),
		marshalList(items), id,
	); err != nil {
		return fmt.Errorf("hindsight: update iteration %s: %w", column, err)
	}
	return nil
}

const iterationColumns = `SELECT id, command, description, status, started_at,
	completed_at, phases_completed, artifacts FROM iterations`

func scanIteration(row scanner) (*Iteration, error) {
	var it Iteration
	var phases, artifacts sql.NullString
	err := row.Scan(&it.ID, &it.Command, &it.Description, &it.Status,
		&it.StartedAt, &it.CompletedAt, &phases, &artifacts)
	if err != nil {
		return nil, err
	}
	it.PhasesCompleted = unmarshalList(phases)
	it.Artifacts = unmarshalList(artifacts)
	return &it, nil
}

// ─── Decisions ───────────────────────────────────────────────────────────────

// DecisionParams carries the caller-facing fields of LogDecision. Title
// and Chosen are required; IterationID defaults to the active iteration.
type DecisionParams struct {
	Title        string
	Context      string
	Chosen       string
	Alternatives []string
	Rationale    string
	Impact       string
	Phase        string
	Tags         []string
	IterationID  *int64
}

// LogDecision records a design choice. All free text is redacted before
// write; tags are de-duplicated preserving order.
func (s *Store) LogDecision(p DecisionParams) (*Decision, error) {
	p.Title = strings.TrimSpace(p.Title)
	p.Chosen = strings.TrimSpace(p.Chosen)
	if p.Title == "" {
		return nil, &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if p.Chosen == "" {
		return nil, &ValidationError{Field: "chosen", Reason: "must not be empty"}
	}

	iterID, err := s.resolveIteration(p.IterationID)
	if err != nil {
		return nil, err
	}
	tags := mergeTags(nil, sanitizeList(p.Tags))

	res, err := s.db.Exec(`
		INSERT INTO decisions (iteration_id, title, context, chosen,
			alternatives, rationale, impact, phase, tags, status, decided_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 'active', ?)`,
		iterID,
		Sanitize(p.Title),
		sanitizePtr(nullableString(p.Context)),
		Sanitize(p.Chosen),
		marshalList(sanitizeList(p.Alternatives)),
		sanitizePtr(nullableString(p.Rationale)),
		sanitizePtr(nullableString(p.Impact)),
		sanitizePtr(nullableString(p.Phase)),
		marshalList(tags),
		now(),
	)
	if err != nil {
		return nil, fmt.Errorf("hindsight: log decision: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("hindsight: log decision: %w", err)
	}
	return s.GetDecision(id)
}

// GetDecision returns the decision with the given id, or nil when it
// does not exist.
func (s *Store) GetDecision(id int64) (*Decision, error) {
	row := s.db.QueryRow(decisionColumns+` WHERE id = ?`, id)
	d, err := scanDecision(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("hindsight: get decision: %w", err)
	}
	return d, nil
}

// DecisionFilter narrows Decisions. Zero values mean "no filter"; Tags
// matches decisions carrying at least one of the listed tags.
type DecisionFilter struct {
	IterationID *int64
	Status      string
	Tags        []string
	Limit       int
}

// Decisions lists decisions newest-first.
func (s *Store) Decisions(f DecisionFilter) ([]Decision, error) {
	var w whereClause
	if f.IterationID != nil {
		w.add("iteration_id = ?", *f.IterationID)
	}
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}
	if tags := sanitizeList(f.Tags); len(tags) > 0 {
		// Tags are a JSON array column; each element is stored quoted, so a
		// substring match on the quoted tag matches whole tags only.
		var conds []string
		var args []any
		for _, tag := range tags {
			conds = append(conds, "tags LIKE ?")
			args = append(args, `%"`+tag+`"%`)
		}
		w.add("("+strings.Join(conds, " OR ")+")", args...)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		decisionColumns+w.sql()+` ORDER BY id DESC LIMIT ?`,
		append(w.args, limit)...,
	)
	if err != nil {
		return nil, fmt.Errorf("hindsight: list decisions: %w", err)
	}
	defer rows.Close()

	var out []Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("hindsight: list decisions: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// UpdateDecisionStatus moves a decision to a new lifecycle status. An
// unknown id affects no rows and is not an error.
func (s *Store) UpdateDecisionStatus(id int64, status string) error {
	if !validDecisionStatuses[status] {
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", status)}
	}
	if _, err := s.db.Exec(`UPDATE decisions SET status = ? WHERE id = ?`, status, id); err != nil {
		return fmt.Errorf("hindsight: update decision status: %w", err)
	}
	return nil
}

// AddDecisionTags unions new tags into a decision's tag list and returns
// the resulting list. An unknown id reads back as an empty set and the
// write affects no rows; not an error.
func (s *Store) AddDecisionTags(id int64, tags []string) ([]string, error) {
	var raw sql.NullString
	err := s.db.QueryRow(`SELECT tags FROM decisions WHERE id = ?`, id).Scan(&raw)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("hindsight: read decision tags: %w", err)
	}
	merged := mergeTags(unmarshalList(raw), sanitizeList(tags))
	if _, err := s.db.Exec(`UPDATE decisions SET tags = ? WHERE id = ?`,
		marshalList(merged), id); err != nil {
		return nil, fmt.Errorf("hindsight: update decision tags: %w", err)
	}
	return merged, nil
}

// LinkDecisions creates a typed edge between two decisions. Returns
// false without error when the edge already exists.
func (s *Store) LinkDecisions(sourceID, targetID int64, linkType string) (bool, error) {
	if !validLinkTypes[linkType] {
		return false, &ValidationError{Field: "link_type", Reason: fmt.Sprintf("unknown link type %q", linkType)}
	}
	if sourceID == targetID {
		return false, &ValidationError{Field: "target_id", Reason: "cannot link a decision to itself"}
	}
	for _, id := range []int64{sourceID, targetID} {
		d, err := s.GetDecision(id)
		if err != nil {
			return false, err
		}
		if d == nil {
			return false, &ValidationError{Field: "id", Reason: fmt.Sprintf("decision %d not found", id)}
		}
	}
	res, err := s.db.Exec(`
		INSERT OR IGNORE INTO decision_links (source_id, target_id, link_type, created_at)
		VALUES (?, ?, ?, ?)`,
		sourceID, targetID, linkType, now(),
	)
	if err != nil {
		return false, fmt.Errorf("hindsight: link decisions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// DecisionLinks returns the edges touching a decision: those it points
// at and those pointing at it.
func (s *Store) DecisionLinks(id int64) (outgoing, incoming []DecisionLink, err error) {
	outgoing, err = s.queryLinks(
		`SELECT source_id, target_id, link_type, created_at
		 FROM decision_links WHERE source_id = ? ORDER BY created_at`, id)
	if err != nil {
		return nil, nil, err
	}
	incoming, err = s.queryLinks(
		`SELECT source_id, target_id, link_type, created_at
		 FROM decision_links WHERE target_id = ? ORDER BY created_at`, id)
	if err != nil {
		return nil, nil, err
	}
	return outgoing, incoming, nil
}

func (s *Store) queryLinks(query string, args ...any) ([]DecisionLink, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("hindsight: decision links: %w", err)
	}
	defer rows.Close()
	var out []DecisionLink
	for rows.Next() {
		var l DecisionLink
		if err := rows.Scan(&l.SourceID, &l.TargetID, &l.LinkType, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("hindsight: decision links: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

const decisionColumns = `SELECT id, iteration_id, title, context, chosen,
	alternatives, rationale, impact, phase, tags, status, decided_at FROM decisions`

func scanDecision(row scanner) (*Decision, error) {
	var d Decision
	var alternatives, tags sql.NullString
	err := row.Scan(&d.ID, &d.IterationID, &d.Title, &d.Context, &d.Chosen,
		&alternatives, &d.Rationale, &d.Impact, &d.Phase, &tags, &d.Status,
		&d.DecidedAt)
	if err != nil {
		return nil, err
	}
	d.Alternatives = unmarshalList(alternatives)
	d.Tags = unmarshalList(tags)
	return &d, nil
}

func tagsIntersect(have, want []string) bool {
	for _, h := range have {
		for _, w := range want {
			if h == w {
				return true
			}
		}
	}
	return false
}

// ─── Commits ─────────────────────────────────────────────────────────────────

// CommitParams carries the caller-facing fields of LogCommit. SHA is
// required; IterationID defaults to the active iteration; CommittedAt
// defaults to the current time.
type CommitParams struct {
	SHA          string
	Message      string
	Author       string
	FilesChanged *int64
	Insertions   *int64
	Deletions    *int64
	Files        []string
	CommittedAt  string
	IterationID  *int64
}

// LogCommit records a commit reference. Logging a SHA that already
// exists is a no-op: the existing row's id is returned with created
// false, and the stored row is left untouched.
func (s *Store) LogCommit(p CommitParams) (id int64, created bool, err error) {
	p.SHA = strings.TrimSpace(p.SHA)
	if p.SHA == "" {
		return 0, false, &ValidationError{Field: "sha", Reason: "must not be empty"}
	}
	iterID, err := s.resolveIteration(p.IterationID)
	if err != nil {
		return 0, false, err
	}
	ts := p.CommittedAt
	if ts == "" {
		ts = now()
	}

	res, err := s.db.Exec(`
		INSERT OR IGNORE INTO commits (sha, message, author, files_changed,
			insertions, deletions, files, committed_at, iteration_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.SHA,
		sanitizePtr(nullableString(p.Message)),
		sanitizePtr(nullableString(p.Author)),
		p.FilesChanged, p.Insertions, p.Deletions,
		marshalList(sanitizeList(p.Files)),
		ts, iterID,
	)
	if err != nil {
		return 0, false, fmt.Errorf("hindsight: log commit: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = s.db.QueryRow(`SELECT id FROM commits WHERE sha = ?`, p.SHA).Scan(&id)
		if err != nil {
			return 0, false, fmt.Errorf("hindsight: log commit: %w", err)
		}
		return id, false, nil
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, false, fmt.Errorf("hindsight: log commit: %w", err)
	}
	return id, true, nil
}

// GetCommit returns the commit with the given SHA, or nil when unknown.
func (s *Store) GetCommit(sha string) (*Commit, error) {
	row := s.db.QueryRow(commitColumns+` WHERE sha = ?`, sha)
	c, err := scanCommit(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("hindsight: get commit: %w", err)
	}
	return c, nil
}

// LinkCommit associates the commit with the given SHA to a decision.
// Returns false without error when the association already exists.
func (s *Store) LinkCommit(sha string, decisionID int64, linkType string) (bool, error) {
	if linkType == "" {
		linkType = "implements"
	}
	if !validCommitLinkTypes[linkType] {
		return false, &ValidationError{Field: "link_type", Reason: fmt.Sprintf("unknown link type %q", linkType)}
	}
	c, err := s.GetCommit(sha)
	if err != nil {
		return false, err
	}
	if c == nil {
		return false, &ValidationError{Field: "sha", Reason: fmt.Sprintf("commit %s not found", sha)}
	}
	d, err := s.GetDecision(decisionID)
	if err != nil {
		return false, err
	}
	if d == nil {
		return false, &ValidationError{Field: "decision_id", Reason: fmt.Sprintf("decision %d not found", decisionID)}
	}
	res, err := s.db.Exec(`
		INSERT OR IGNORE INTO commit_links (commit_id, decision_id, link_type)
		VALUES (?, ?, ?)`,
		c.ID, decisionID, linkType,
	)
	if err != nil {
		return false, fmt.Errorf("hindsight: link commit: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// CommitsForDecision lists the commits linked to a decision, newest
// first.
func (s *Store) CommitsForDecision(decisionID int64) ([]Commit, error) {
	rows, err := s.db.Query(commitColumns+`
		WHERE id IN (SELECT commit_id FROM commit_links WHERE decision_id = ?)
		ORDER BY committed_at DESC`, decisionID)
	if err != nil {
		return nil, fmt.Errorf("hindsight: commits for decision: %w", err)
	}
	defer rows.Close()
	var out []Commit
	for rows.Next() {
		c, err := scanCommit(rows)
		if err != nil {
			return nil, fmt.Errorf("hindsight: commits for decision: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

const commitColumns = `SELECT id, sha, message, author, files_changed,
	insertions, deletions, files, committed_at, iteration_id FROM commits`

func scanCommit(row scanner) (*Commit, error) {
	var c Commit
	var files sql.NullString
	err := row.Scan(&c.ID, &c.SHA, &c.Message, &c.Author, &c.FilesChanged,
		&c.Insertions, &c.Deletions, &files, &c.CommittedAt, &c.IterationID)
	if err != nil {
		return nil, err
	}
	c.Files = unmarshalList(files)
	return &c, nil
}

// ─── Events ──────────────────────────────────────────────────────────────────

// LogEvent appends a timeline entry. IterationID defaults to the active
// iteration; the payload is deep-sanitized before serialization.
func (s *Store) LogEvent(eventType, phase string, payload Payload, iterationID *int64) (*Event, error) {
	eventType = strings.TrimSpace(eventType)
	if eventType == "" {
		return nil, &ValidationError{Field: "event_type", Reason: "must not be empty"}
	}
	iterID, err := s.resolveIteration(iterationID)
	if err != nil {
		return nil, err
	}
	var payloadJSON *string
	if payload != nil {
		b, err := json.Marshal(payload.sanitized())
		if err != nil {
			return nil, &ValidationError{Field: "payload", Reason: "not serializable"}
		}
		payloadJSON = nullableString(string(b))
	}
	ts := now()
	res, err := s.db.Exec(`
		INSERT INTO events (iteration_id, event_type, phase, payload, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		iterID, Sanitize(eventType), sanitizePtr(nullableString(phase)), payloadJSON, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("hindsight: log event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("hindsight: log event: %w", err)
	}
	row := s.db.QueryRow(eventColumns+` WHERE id = ?`, id)
	return scanEvent(row)
}

// Timeline lists events in chronological order, optionally scoped to an
// iteration and event type. Insertion order breaks created_at ties.
func (s *Store) Timeline(iterationID *int64, eventType string, limit int) ([]Event, error) {
	var w whereClause
	if iterationID != nil {
		w.add("iteration_id = ?", *iterationID)
	}
	if eventType != "" {
		w.add("event_type = ?", eventType)
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		eventColumns+w.sql()+` ORDER BY id ASC LIMIT ?`,
		append(w.args, limit)...,
	)
	if err != nil {
		return nil, fmt.Errorf("hindsight: timeline: %w", err)
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("hindsight: timeline: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

const eventColumns = `SELECT id, iteration_id, event_type, phase, payload,
	created_at FROM events`

func scanEvent(row scanner) (*Event, error) {
	var e Event
	var payload sql.NullString
	err := row.Scan(&e.ID, &e.IterationID, &e.EventType, &e.Phase, &payload, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	if payload.Valid && payload.String != "" {
		// Tolerate unparseable payloads from older writers.
		_ = json.Unmarshal([]byte(payload.String), &e.Payload)
	}
	return &e, nil
}

// ─── Shared ──────────────────────────────────────────────────────────────────

// resolveIteration returns the explicit iteration id when given,
// otherwise the active iteration's id, otherwise nil.
func (s *Store) resolveIteration(explicit *int64) (*int64, error) {
	if explicit != nil {
		return explicit, nil
	}
	active, err := s.ActiveIteration()
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, nil
	}
	return &active.ID, nil
}
