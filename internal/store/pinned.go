package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// ─── Pinned items ────────────────────────────────────────────────────────────

// PinParams carries the caller-facing fields of Pin. Exactly one of
// ItemID or ItemRef should be set; Priority defaults to 5.
type PinParams struct {
	ItemType   string
	ItemID     *int64
	ItemRef    string
	Note       string
	Priority   int
	AutoPinned bool
}

// Pin marks an item to be surfaced to returning sessions. Higher
// priority sorts first in PinnedItems.
func (s *Store) Pin(p PinParams) (*PinnedItem, error) {
	p.ItemType = strings.TrimSpace(p.ItemType)
	if p.ItemType == "" {
		return nil, &ValidationError{Field: "item_type", Reason: "must not be empty"}
	}
	if p.ItemID == nil && strings.TrimSpace(p.ItemRef) == "" {
		return nil, &ValidationError{Field: "item_ref", Reason: "either item_id or item_ref is required"}
	}
	if p.Priority == 0 {
		p.Priority = 5
	}
	auto := 0
	if p.AutoPinned {
		auto = 1
	}
	res, err := s.db.Exec(`
		INSERT INTO pinned_items (item_type, item_id, item_ref, note, priority, auto_pinned, pinned_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ItemType, p.ItemID,
		sanitizePtr(nullableString(p.ItemRef)),
		sanitizePtr(nullableString(p.Note)),
		p.Priority, auto, now(),
	)
	if err != nil {
		return nil, fmt.Errorf("hindsight: pin item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("hindsight: pin item: %w", err)
	}
	row := s.db.QueryRow(pinnedColumns+` WHERE id = ?`, id)
	return scanPinned(row)
}

// PinnedItems lists pins highest-priority first, newest first within a
// priority. An empty itemType returns every pin.
func (s *Store) PinnedItems(itemType string) ([]PinnedItem, error) {
	var w whereClause
	if itemType != "" {
		w.add("item_type = ?", itemType)
	}
	rows, err := s.db.Query(pinnedColumns+w.sql()+` ORDER BY priority DESC, id DESC`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("hindsight: pinned items: %w", err)
	}
	defer rows.Close()
	var out []PinnedItem
	for rows.Next() {
		p, err := scanPinned(rows)
		if err != nil {
			return nil, fmt.Errorf("hindsight: pinned items: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// Unpin removes a pin. Returns false without error when the id is
// unknown.
func (s *Store) Unpin(id int64) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM pinned_items WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("hindsight: unpin item: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// UpdatePinPriority changes a pin's sort weight.
func (s *Store) UpdatePinPriority(id int64, priority int) error {
	res, err := s.db.Exec(`UPDATE pinned_items SET priority = ? WHERE id = ?`, priority, id)
	if err != nil {
		return fmt.Errorf("hindsight: update pin priority: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &ValidationError{Field: "id", Reason: fmt.Sprintf("pinned item %d not found", id)}
	}
	return nil
}

const pinnedColumns = `SELECT id, item_type, item_id, item_ref, note,
	priority, auto_pinned, pinned_at FROM pinned_items`

func scanPinned(row scanner) (*PinnedItem, error) {
	var p PinnedItem
	var auto int
	err := row.Scan(&p.ID, &p.ItemType, &p.ItemID, &p.ItemRef, &p.Note,
		&p.Priority, &auto, &p.PinnedAt)
	if err != nil {
		return nil, err
	}
	p.AutoPinned = auto != 0
	return &p, nil
}

// ─── Action queue ────────────────────────────────────────────────────────────

// CreateAction queues a request from a collaborator surface.
func (s *Store) CreateAction(actionType string, payload Payload) (*Action, error) {
	actionType = strings.TrimSpace(actionType)
	if actionType == "" {
		return nil, &ValidationError{Field: "action_type", Reason: "must not be empty"}
	}
	var payloadJSON *string
	if payload != nil {
		b, err := json.Marshal(payload.sanitized())
		if err != nil {
			return nil, &ValidationError{Field: "payload", Reason: "not serializable"}
		}
		payloadJSON = nullableString(string(b))
	}
	res, err := s.db.Exec(`
		INSERT INTO actions (action_type, payload, status, created_at)
		VALUES (?, ?, 'pending', ?)`,
		actionType, payloadJSON, now(),
	)
	if err != nil {
		return nil, fmt.Errorf("hindsight: create action: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("hindsight: create action: %w", err)
	}
	row := s.db.QueryRow(actionColumns+` WHERE id = ?`, id)
	return scanAction(row)
}

// PendingActions lists unprocessed actions oldest-first, so consumers
// handle requests in arrival order.
func (s *Store) PendingActions() ([]Action, error) {
	rows, err := s.db.Query(actionColumns + ` WHERE status = 'pending' ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("hindsight: pending actions: %w", err)
	}
	defer rows.Close()
	var out []Action
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("hindsight: pending actions: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// MarkActionProcessed retires a queued action. Returns false without
// error when the id is unknown or already processed.
func (s *Store) MarkActionProcessed(id int64) (bool, error) {
	res, err := s.db.Exec(
		`UPDATE actions SET status = 'processed', processed_at = ? WHERE id = ? AND status = 'pending'`,
		now(), id,
	)
	if err != nil {
		return false, fmt.Errorf("hindsight: mark action processed: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

const actionColumns = `SELECT id, action_type, payload, status, created_at,
	processed_at FROM actions`

func scanAction(row scanner) (*Action, error) {
	var a Action
	var payload sql.NullString
	err := row.Scan(&a.ID, &a.ActionType, &payload, &a.Status, &a.CreatedAt, &a.ProcessedAt)
	if err != nil {
		return nil, err
	}
	if payload.Valid && payload.String != "" {
		_ = json.Unmarshal([]byte(payload.String), &a.Payload)
	}
	return &a, nil
}

// ─── Session context & checkpoints ───────────────────────────────────────────

// GetSessionContext assembles what a reconnecting session needs: the
// active iteration, its recent decisions, every pin, and the pending
// action queue.
func (s *Store) GetSessionContext() (*SessionContext, error) {
	ctx := &SessionContext{
		Decisions:      []Decision{},
		PinnedItems:    []PinnedItem{},
		PendingActions: []Action{},
	}
	active, err := s.ActiveIteration()
	if err != nil {
		return nil, err
	}
	ctx.Iteration = active
	if active != nil {
		decisions, err := s.Decisions(DecisionFilter{IterationID: &active.ID, Limit: 10})
		if err != nil {
			return nil, err
		}
		if decisions != nil {
			ctx.Decisions = decisions
		}
	}
	pins, err := s.PinnedItems("")
	if err != nil {
		return nil, err
	}
	if pins != nil {
		ctx.PinnedItems = pins
	}
	actions, err := s.PendingActions()
	if err != nil {
		return nil, err
	}
	if actions != nil {
		ctx.PendingActions = actions
	}
	return ctx, nil
}

// EventsAfter returns events with id greater than afterID, oldest first.
// Pollers use it as a change feed cursor.
func (s *Store) EventsAfter(afterID int64, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(
		eventColumns+` WHERE id > ? ORDER BY id ASC LIMIT ?`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("hindsight: events after: %w", err)
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("hindsight: events after: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// DecisionsAfter returns decisions with id greater than afterID, oldest
// first.
func (s *Store) DecisionsAfter(afterID int64, limit int) ([]Decision, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(
		decisionColumns+` WHERE id > ? ORDER BY id ASC LIMIT ?`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("hindsight: decisions after: %w", err)
	}
	defer rows.Close()
	var out []Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("hindsight: decisions after: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// CommitsAfter returns commits with id greater than afterID, oldest
// first.
func (s *Store) CommitsAfter(afterID int64, limit int) ([]Commit, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(
		commitColumns+` WHERE id > ? ORDER BY id ASC LIMIT ?`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("hindsight: commits after: %w", err)
	}
	defer rows.Close()
	var out []Commit
	for rows.Next() {
		c, err := scanCommit(rows)
		if err != nil {
			return nil, fmt.Errorf("hindsight: commits after: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// PinnedItemsAfter returns pins with id greater than afterID, oldest
// first.
func (s *Store) PinnedItemsAfter(afterID int64, limit int) ([]PinnedItem, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(
		pinnedColumns+` WHERE id > ? ORDER BY id ASC LIMIT ?`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("hindsight: pins after: %w", err)
	}
	defer rows.Close()
	var out []PinnedItem
	for rows.Next() {
		p, err := scanPinned(rows)
		if err != nil {
			return nil, fmt.Errorf("hindsight: pins after: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}
