package store

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func seedSearchData(t *testing.T, s *Store) (itID int64) {
	t.Helper()
	it, err := s.StartIteration("feature:caching", "")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := s.LogDecision(DecisionParams{
		Title:     "adopt redis caching",
		Context:   "database reads dominate latency",
		Chosen:    "redis with ttl",
		Rationale: "hot keys repeat",
		Tags:      []string{"caching", "infra"},
	}); err != nil {
		t.Fatalf("log decision: %v", err)
	}
	if _, _, err := s.LogCommit(CommitParams{
		SHA:     strings.Repeat("ef", 20),
		Message: "add redis caching layer",
	}); err != nil {
		t.Fatalf("log commit: %v", err)
	}
	if _, err := s.CompleteIteration(""); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := s.LogDecision(DecisionParams{
		Title:  "caching outside iteration",
		Chosen: "local map",
		Tags:   []string{"caching"},
	}); err != nil {
		t.Fatalf("log decision: %v", err)
	}
	return it.ID
}

func TestSearchFindsDecisionsAndCommits(t *testing.T) {
	s := newTestStore(t)
	seedSearchData(t, s)

	results, err := s.Search("caching", SearchOptions{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	var decisions, commits int
	for _, r := range results {
		switch r.Kind {
		case SourceDecision:
			if r.Decision == nil || r.Commit != nil {
				t.Fatalf("malformed decision result: %+v", r)
			}
			decisions++
		case SourceCommit:
			if r.Commit == nil || r.Decision != nil {
				t.Fatalf("malformed commit result: %+v", r)
			}
			commits++
		default:
			t.Fatalf("unknown result kind %q", r.Kind)
		}
	}
	if decisions != 2 || commits != 1 {
		t.Fatalf("expected 2 decisions and 1 commit, got %d and %d", decisions, commits)
	}
}

func TestSearchScopesToIteration(t *testing.T) {
	s := newTestStore(t)
	itID := seedSearchData(t, s)

	results, err := s.Search("caching", SearchOptions{IterationID: &itID})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	for _, r := range results {
		switch r.Kind {
		case SourceDecision:
			if r.Decision.IterationID == nil || *r.Decision.IterationID != itID {
				t.Fatalf("result outside iteration: %+v", r.Decision)
			}
		case SourceCommit:
			if r.Commit.IterationID == nil || *r.Commit.IterationID != itID {
				t.Fatalf("result outside iteration: %+v", r.Commit)
			}
		}
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 scoped results, got %d", len(results))
	}
}

func TestSearchTagFilterExcludesCommits(t *testing.T) {
	s := newTestStore(t)
	seedSearchData(t, s)

	results, err := s.Search("caching", SearchOptions{Tags: []string{"infra"}})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Kind != SourceDecision || results[0].Decision.Title != "adopt redis caching" {
		t.Fatalf("unexpected result: %+v", results[0])
	}
}

func TestSearchStatusFilter(t *testing.T) {
	s := newTestStore(t)
	seedSearchData(t, s)

	d, err := s.Decisions(DecisionFilter{Tags: []string{"infra"}})
	if err != nil || len(d) != 1 {
		t.Fatalf("seed lookup failed: %v %d", err, len(d))
	}
	if err := s.UpdateDecisionStatus(d[0].ID, "superseded"); err != nil {
		t.Fatalf("update: %v", err)
	}

	results, err := s.Search("caching", SearchOptions{Status: "superseded"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].Decision.ID != d[0].ID {
		t.Fatalf("unexpected status-filtered results: %+v", results)
	}
}

func TestSearchDateRange(t *testing.T) {
	s := newTestStore(t)
	seedSearchData(t, s)

	// Everything was written just now; a window ending long ago
	// matches nothing, a window starting long ago matches everything.
	past, err := s.Search("caching", SearchOptions{Until: "2020-01-01T00:00:00Z"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(past) != 0 {
		t.Fatalf("expected no results before 2020, got %d", len(past))
	}

	recent, err := s.Search("caching", SearchOptions{Since: "2020-01-01T00:00:00Z"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected all results since 2020, got %d", len(recent))
	}
}

func TestSearchRespectsLimit(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 10; i++ {
		if _, err := s.LogDecision(DecisionParams{
			Title:  fmt.Sprintf("widget option %d", i),
			Chosen: "widget",
		}); err != nil {
			t.Fatalf("log: %v", err)
		}
	}

	results, err := s.Search("widget", SearchOptions{Limit: 4})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	s := newTestStore(t)

	var ve *ValidationError
	if _, err := s.Search("  ", SearchOptions{}); !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestSearchQuotesAreHarmless(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.LogDecision(DecisionParams{Title: `the "best" option`, Chosen: "c"}); err != nil {
		t.Fatalf("log: %v", err)
	}

	// Embedded quotes must not be interpreted as FTS5 syntax.
	if _, err := s.Search(`"best" AND syntax`, SearchOptions{}); err != nil {
		t.Fatalf("quoted query errored: %v", err)
	}
}

func TestSearchLikeFallback(t *testing.T) {
	s := newTestStore(t)
	seedSearchData(t, s)

	// Force the degraded path regardless of sqlite build.
	s.ftsEnabled = false

	results, err := s.Search("caching", SearchOptions{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 fallback results, got %d", len(results))
	}
	// Decisions come before commits in the fallback ordering.
	if results[0].Kind != SourceDecision || results[len(results)-1].Kind != SourceCommit {
		t.Fatalf("unexpected fallback ordering: %+v", results)
	}
}

func TestSearchLikeFallbackFillsWithCommits(t *testing.T) {
	s := newTestStore(t)
	seedSearchData(t, s)
	s.ftsEnabled = false

	results, err := s.Search("caching", SearchOptions{Limit: 3})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected limit to be filled, got %d", len(results))
	}
}
