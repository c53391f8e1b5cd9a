package store

import (
	"errors"
	"testing"
)

func TestPinOrdersByPriority(t *testing.T) {
	s := newTestStore(t)

	for _, p := range []PinParams{
		{ItemType: "note", ItemRef: "low", Priority: 1},
		{ItemType: "note", ItemRef: "high", Priority: 10},
		{ItemType: "note", ItemRef: "mid"}, // defaults to 5
	} {
		if _, err := s.Pin(p); err != nil {
			t.Fatalf("pin %q: %v", p.ItemRef, err)
		}
	}

	pins, err := s.PinnedItems("")
	if err != nil {
		t.Fatalf("pinned items: %v", err)
	}
	if len(pins) != 3 {
		t.Fatalf("expected 3 pins, got %d", len(pins))
	}
	order := []string{"high", "mid", "low"}
	for i, want := range order {
		if derefString(pins[i].ItemRef) != want {
			t.Fatalf("expected %v, got %q at %d", order, derefString(pins[i].ItemRef), i)
		}
	}
}

func TestPinFiltersByType(t *testing.T) {
	s := newTestStore(t)

	d, _ := s.LogDecision(DecisionParams{Title: "pin me", Chosen: "c"})
	if _, err := s.Pin(PinParams{ItemType: "decision", ItemID: &d.ID}); err != nil {
		t.Fatalf("pin decision: %v", err)
	}
	if _, err := s.Pin(PinParams{ItemType: "note", ItemRef: "remember the soak test"}); err != nil {
		t.Fatalf("pin note: %v", err)
	}

	decisions, err := s.PinnedItems("decision")
	if err != nil {
		t.Fatalf("pinned items: %v", err)
	}
	if len(decisions) != 1 || decisions[0].ItemID == nil || *decisions[0].ItemID != d.ID {
		t.Fatalf("unexpected filtered pins: %+v", decisions)
	}
}

func TestPinValidation(t *testing.T) {
	s := newTestStore(t)

	var ve *ValidationError
	if _, err := s.Pin(PinParams{ItemRef: "x"}); !errors.As(err, &ve) {
		t.Fatalf("expected missing item_type rejection, got %v", err)
	}
	if _, err := s.Pin(PinParams{ItemType: "note"}); !errors.As(err, &ve) {
		t.Fatalf("expected missing id/ref rejection, got %v", err)
	}
}

func TestUnpin(t *testing.T) {
	s := newTestStore(t)

	p, err := s.Pin(PinParams{ItemType: "note", ItemRef: "temp"})
	if err != nil {
		t.Fatalf("pin: %v", err)
	}

	removed, err := s.Unpin(p.ID)
	if err != nil {
		t.Fatalf("unpin: %v", err)
	}
	if !removed {
		t.Fatal("expected unpin to remove")
	}
	removed, err = s.Unpin(p.ID)
	if err != nil {
		t.Fatalf("unpin again: %v", err)
	}
	if removed {
		t.Fatal("expected second unpin to be a no-op")
	}
}

func TestUpdatePinPriorityReorders(t *testing.T) {
	s := newTestStore(t)

	low, _ := s.Pin(PinParams{ItemType: "note", ItemRef: "was low", Priority: 1})
	if _, err := s.Pin(PinParams{ItemType: "note", ItemRef: "was high", Priority: 9}); err != nil {
		t.Fatalf("pin: %v", err)
	}

	if err := s.UpdatePinPriority(low.ID, 20); err != nil {
		t.Fatalf("update priority: %v", err)
	}
	pins, err := s.PinnedItems("")
	if err != nil {
		t.Fatalf("pinned items: %v", err)
	}
	if pins[0].ID != low.ID {
		t.Fatalf("expected boosted pin first, got %+v", pins[0])
	}

	var ve *ValidationError
	if err := s.UpdatePinPriority(999, 1); !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for unknown pin, got %v", err)
	}
}

func TestActionQueueLifecycle(t *testing.T) {
	s := newTestStore(t)

	a, err := s.CreateAction("export_decisions", Payload{"path": "out.md"})
	if err != nil {
		t.Fatalf("create action: %v", err)
	}
	if a.Status != "pending" {
		t.Fatalf("expected pending, got %q", a.Status)
	}
	if _, err := s.CreateAction("refresh", nil); err != nil {
		t.Fatalf("create action: %v", err)
	}

	pending, err := s.PendingActions()
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != a.ID {
		t.Fatalf("expected oldest-first pending queue, got %+v", pending)
	}

	done, err := s.MarkActionProcessed(a.ID)
	if err != nil {
		t.Fatalf("mark processed: %v", err)
	}
	if !done {
		t.Fatal("expected action to be retired")
	}
	done, err = s.MarkActionProcessed(a.ID)
	if err != nil {
		t.Fatalf("mark processed again: %v", err)
	}
	if done {
		t.Fatal("expected second retire to be a no-op")
	}

	pending, err = s.PendingActions()
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending action, got %d", len(pending))
	}
}

func TestGetSessionContext(t *testing.T) {
	s := newTestStore(t)

	it, _ := s.StartIteration("feature:resume", "")
	if _, err := s.LogDecision(DecisionParams{Title: "context decision", Chosen: "c"}); err != nil {
		t.Fatalf("log: %v", err)
	}
	if _, err := s.Pin(PinParams{ItemType: "note", ItemRef: "read the runbook"}); err != nil {
		t.Fatalf("pin: %v", err)
	}
	if _, err := s.CreateAction("refresh", nil); err != nil {
		t.Fatalf("create action: %v", err)
	}

	ctx, err := s.GetSessionContext()
	if err != nil {
		t.Fatalf("session context: %v", err)
	}
	if ctx.Iteration == nil || ctx.Iteration.ID != it.ID {
		t.Fatalf("expected active iteration, got %+v", ctx.Iteration)
	}
	if len(ctx.Decisions) != 1 || len(ctx.PinnedItems) != 1 || len(ctx.PendingActions) != 1 {
		t.Fatalf("incomplete context: %+v", ctx)
	}
}

func TestGetSessionContextEmptyStore(t *testing.T) {
	s := newTestStore(t)

	ctx, err := s.GetSessionContext()
	if err != nil {
		t.Fatalf("session context: %v", err)
	}
	if ctx.Iteration != nil {
		t.Fatalf("expected nil iteration, got %+v", ctx.Iteration)
	}
	// Collections are empty, never nil, so JSON renders [] not null.
	if ctx.Decisions == nil || ctx.PinnedItems == nil || ctx.PendingActions == nil {
		t.Fatal("expected empty non-nil collections")
	}
}

func TestEventsAfterCursor(t *testing.T) {
	s := newTestStore(t)

	var lastID int64
	for i := 0; i < 5; i++ {
		e, err := s.LogEvent("tick", "", nil, nil)
		if err != nil {
			t.Fatalf("log event: %v", err)
		}
		if i == 2 {
			lastID = e.ID
		}
	}

	events, err := s.EventsAfter(lastID, 0)
	if err != nil {
		t.Fatalf("events after: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events after cursor, got %d", len(events))
	}
	if events[0].ID <= lastID || events[0].ID >= events[1].ID {
		t.Fatalf("expected ascending ids after cursor, got %+v", events)
	}
}

func TestPinnedItemsAfterCursor(t *testing.T) {
	s := newTestStore(t)

	first, err := s.Pin(PinParams{ItemType: "note", ItemRef: "old"})
	if err != nil {
		t.Fatalf("pin: %v", err)
	}
	if _, err := s.Pin(PinParams{ItemType: "note", ItemRef: "new", Priority: 10}); err != nil {
		t.Fatalf("pin: %v", err)
	}

	// Cursor order is insertion order, not priority order.
	pins, err := s.PinnedItemsAfter(first.ID, 0)
	if err != nil {
		t.Fatalf("pins after: %v", err)
	}
	if len(pins) != 1 || derefString(pins[0].ItemRef) != "new" {
		t.Fatalf("expected only the pin after the cursor, got %+v", pins)
	}
}
