package store

import (
	"errors"
	"testing"
)

func TestCheckHealthOnFreshStore(t *testing.T) {
	s := newTestStore(t)

	r, err := s.CheckHealth()
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if r.Status != "healthy" {
		t.Fatalf("expected healthy, got %q (errors=%v warnings=%v)", r.Status, r.Errors, r.Warnings)
	}
	if r.SchemaVersion != "3" {
		t.Fatalf("expected schema version 3, got %q", r.SchemaVersion)
	}
}

func TestCheckHealthDetectsIndexDrift(t *testing.T) {
	s := newTestStore(t)
	if !s.FTSEnabled() {
		t.Skip("sqlite build lacks fts5")
	}

	if _, err := s.LogDecision(DecisionParams{Title: "indexed", Chosen: "c"}); err != nil {
		t.Fatalf("log: %v", err)
	}
	// Orphan an index entry to force a count mismatch.
	if _, err := s.db.Exec(
		`INSERT INTO memory_fts (source_type, source_id, content) VALUES ('decision', '999', 'ghost')`,
	); err != nil {
		t.Fatalf("seed drift: %v", err)
	}

	r, err := s.CheckHealth()
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if r.Status != "errors" || len(r.Errors) == 0 {
		t.Fatalf("expected index drift error, got %+v", r)
	}
}

func TestPurgeOldEvents(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.LogEvent("recent", "", nil, nil); err != nil {
		t.Fatalf("log: %v", err)
	}
	// Backdate one event past the retention window.
	if _, err := s.db.Exec(`
		INSERT INTO events (event_type, created_at)
		VALUES ('ancient', '2020-01-01T00:00:00Z')`); err != nil {
		t.Fatalf("seed old event: %v", err)
	}

	n, err := s.PurgeOldEvents(30)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 purged event, got %d", n)
	}

	remaining, err := s.Timeline(nil, "", 0)
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(remaining) != 1 || remaining[0].EventType != "recent" {
		t.Fatalf("wrong events survived: %+v", remaining)
	}
}

func TestPurgeLeavesDecisionsAndCommits(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.LogDecision(DecisionParams{Title: "keep", Chosen: "c"}); err != nil {
		t.Fatalf("log decision: %v", err)
	}
	if _, _, err := s.LogCommit(CommitParams{SHA: "0123456789012345678901234567890123456789", CommittedAt: "2020-01-01T00:00:00Z"}); err != nil {
		t.Fatalf("log commit: %v", err)
	}

	if _, err := s.PurgeOldEvents(1); err != nil {
		t.Fatalf("purge: %v", err)
	}

	st, err := s.GetStats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.TotalDecisions != 1 || st.TotalCommits != 1 {
		t.Fatalf("purge touched non-events: %+v", st)
	}
}

func TestPurgeRejectsNonPositiveRetention(t *testing.T) {
	s := newTestStore(t)

	var ve *ValidationError
	if _, err := s.PurgeOldEvents(0); !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, err := s.PurgeOldEvents(-5); !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestGetStatsCounts(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.StartIteration("feature:stats", ""); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := s.LogDecision(DecisionParams{Title: "d", Chosen: "c"}); err != nil {
		t.Fatalf("log decision: %v", err)
	}
	if _, err := s.LogEvent("e", "", nil, nil); err != nil {
		t.Fatalf("log event: %v", err)
	}

	st, err := s.GetStats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.TotalIterations != 1 || st.TotalDecisions != 1 || st.TotalEvents != 1 || st.TotalCommits != 0 {
		t.Fatalf("unexpected counts: %+v", st)
	}
	if st.SchemaVersion != "3" || st.CreatedAt == "" {
		t.Fatalf("unexpected metadata: %+v", st)
	}
}
