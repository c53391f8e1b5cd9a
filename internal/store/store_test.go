package store

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Path = filepath.Join(t.TempDir(), "memory.db")

	s, err := New(cfg)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func TestNewCreatesDataDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deep", "memory.db")
	s, err := New(Config{Path: path})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("database file not created: %v", err)
	}
}

func TestNewIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.db")

	s1, err := New(Config{Path: path})
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if _, err := s1.LogDecision(DecisionParams{Title: "keep me", Chosen: "yes"}); err != nil {
		t.Fatalf("log decision: %v", err)
	}
	s1.Close()

	s2, err := New(Config{Path: path})
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer s2.Close()

	decisions, err := s2.Decisions(DecisionFilter{})
	if err != nil {
		t.Fatalf("list decisions: %v", err)
	}
	if len(decisions) != 1 || decisions[0].Title != "keep me" {
		t.Fatalf("expected data to survive reopen, got %+v", decisions)
	}
}

func TestNewTightensFilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no unix permissions on windows")
	}
	s := newTestStore(t)

	info, err := os.Stat(s.Path())
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected 0600 permissions, got %o", perm)
	}
}

func TestConfigMergeOverridesNonZeroFields(t *testing.T) {
	base := DefaultConfig()
	merged := base.Merge(Config{Path: "/tmp/other.db", MaxSearchResults: 7})

	if merged.Path != "/tmp/other.db" {
		t.Fatalf("expected path override, got %q", merged.Path)
	}
	if merged.MaxSearchResults != 7 {
		t.Fatalf("expected limit override, got %d", merged.MaxSearchResults)
	}
	if merged.ExportLimit != base.ExportLimit {
		t.Fatalf("expected export limit to keep default, got %d", merged.ExportLimit)
	}
	// The receiver must not be mutated.
	if base.Path == "/tmp/other.db" {
		t.Fatal("merge mutated the receiver")
	}
}

func TestMetaRoundTrip(t *testing.T) {
	s := newTestStore(t)

	if err := s.metaSet("flavor", "umami"); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, err := s.metaGet("flavor")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v != "umami" {
		t.Fatalf("expected umami, got %q", v)
	}

	missing, err := s.metaGet("nope")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != "" {
		t.Fatalf("expected empty for missing key, got %q", missing)
	}
}

func TestMergeTagsDeduplicatesPreservingOrder(t *testing.T) {
	got := mergeTags([]string{"a", "b"}, []string{"b", "c", "a", "d"})
	want := []string{"a", "b", "c", "d"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}
