package mcp

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	mcppkg "github.com/mark3labs/mcp-go/mcp"

	"github.com/hindsightdb/hindsight/internal/store"
)

func newMCPTestStore(t *testing.T) *store.Store {
	t.Helper()
	cfg := store.DefaultConfig()
	cfg.Path = filepath.Join(t.TempDir(), "memory.db")

	s, err := store.New(cfg)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func callResultText(t *testing.T, res *mcppkg.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatalf("expected non-empty tool result")
	}
	text, ok := mcppkg.AsTextContent(res.Content[0])
	if !ok {
		t.Fatalf("expected text content")
	}
	return text.Text
}

func callTool(t *testing.T, h func(context.Context, mcppkg.CallToolRequest) (*mcppkg.CallToolResult, error), args map[string]any) *mcppkg.CallToolResult {
	t.Helper()
	req := mcppkg.CallToolRequest{Params: mcppkg.CallToolParams{Arguments: args}}
	res, err := h(context.Background(), req)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return res
}

func TestNewServerRegistersTools(t *testing.T) {
	s := newMCPTestStore(t)
	srv := NewServer(s)
	if srv == nil {
		t.Fatalf("expected MCP server instance")
	}
}

func TestHandleLogDecisionAndSearch(t *testing.T) {
	s := newMCPTestStore(t)

	res := callTool(t, handleLogDecision(s), map[string]any{
		"title":        "Adopt event sourcing",
		"chosen":       "append-only event log",
		"alternatives": "crud updates, snapshots only",
		"tags":         "architecture, storage",
	})
	if res.IsError {
		t.Fatalf("unexpected log error: %s", callResultText(t, res))
	}
	if !strings.Contains(callResultText(t, res), "Decision #1 recorded") {
		t.Fatalf("unexpected log output: %q", callResultText(t, res))
	}

	res = callTool(t, handleSearch(s), map[string]any{"query": "sourcing"})
	if res.IsError {
		t.Fatalf("unexpected search error: %s", callResultText(t, res))
	}
	text := callResultText(t, res)
	if !strings.Contains(text, "Adopt event sourcing") {
		t.Fatalf("search missed the decision: %q", text)
	}
}

func TestHandleLogDecisionRequiresTitle(t *testing.T) {
	s := newMCPTestStore(t)

	res := callTool(t, handleLogDecision(s), map[string]any{"chosen": "x"})
	if !res.IsError {
		t.Fatalf("expected tool error for missing title")
	}
}

func TestHandleSearchReportsNoMatches(t *testing.T) {
	s := newMCPTestStore(t)

	res := callTool(t, handleSearch(s), map[string]any{"query": "nonexistent"})
	if res.IsError {
		t.Fatalf("unexpected error: %s", callResultText(t, res))
	}
	if !strings.Contains(callResultText(t, res), "No matches") {
		t.Fatalf("unexpected output: %q", callResultText(t, res))
	}
}

func TestHandleLogCommitIsIdempotent(t *testing.T) {
	s := newMCPTestStore(t)
	sha := strings.Repeat("a1", 20)

	res := callTool(t, handleLogCommit(s), map[string]any{"sha": sha, "message": "first"})
	if res.IsError {
		t.Fatalf("unexpected error: %s", callResultText(t, res))
	}
	if !strings.Contains(callResultText(t, res), "recorded as #1") {
		t.Fatalf("unexpected output: %q", callResultText(t, res))
	}

	res = callTool(t, handleLogCommit(s), map[string]any{"sha": sha, "message": "second"})
	if !strings.Contains(callResultText(t, res), "already recorded as #1") {
		t.Fatalf("expected idempotent response, got %q", callResultText(t, res))
	}
}

func TestHandleManageIterationLifecycle(t *testing.T) {
	s := newMCPTestStore(t)

	res := callTool(t, handleManageIteration(s), map[string]any{
		"action": "start", "command": "feature:mcp", "description": "wire the protocol",
	})
	if res.IsError {
		t.Fatalf("start failed: %s", callResultText(t, res))
	}

	res = callTool(t, handleManageIteration(s), map[string]any{
		"action": "add_phase", "value": "design",
	})
	if res.IsError {
		t.Fatalf("add_phase failed: %s", callResultText(t, res))
	}

	res = callTool(t, handleGetIteration(s), map[string]any{})
	text := callResultText(t, res)
	if !strings.Contains(text, "feature:mcp") || !strings.Contains(text, "design") {
		t.Fatalf("unexpected iteration output: %q", text)
	}

	res = callTool(t, handleManageIteration(s), map[string]any{"action": "complete"})
	if !strings.Contains(callResultText(t, res), `closed with status "completed"`) {
		t.Fatalf("unexpected complete output: %q", callResultText(t, res))
	}

	// Nothing active anymore.
	res = callTool(t, handleManageIteration(s), map[string]any{"action": "complete"})
	if !strings.Contains(callResultText(t, res), "No active iteration") {
		t.Fatalf("unexpected output: %q", callResultText(t, res))
	}
}

func TestHandleManageIterationRejectsUnknownAction(t *testing.T) {
	s := newMCPTestStore(t)

	res := callTool(t, handleManageIteration(s), map[string]any{"action": "pause"})
	if !res.IsError {
		t.Fatalf("expected tool error for unknown action")
	}
}

func TestHandleLogEventWithPayload(t *testing.T) {
	s := newMCPTestStore(t)

	res := callTool(t, handleLogEvent(s), map[string]any{
		"event_type": "phase_started",
		"phase":      "design",
		"payload":    map[string]any{"detail": "kickoff"},
	})
	if res.IsError {
		t.Fatalf("unexpected error: %s", callResultText(t, res))
	}
	if !strings.Contains(callResultText(t, res), "phase_started") {
		t.Fatalf("unexpected output: %q", callResultText(t, res))
	}
}

func TestHandleUpdateDecisionRequiresChange(t *testing.T) {
	s := newMCPTestStore(t)
	d, err := s.LogDecision(store.DecisionParams{Title: "t", Chosen: "c"})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	res := callTool(t, handleUpdateDecision(s), map[string]any{"id": float64(d.ID)})
	if !res.IsError {
		t.Fatalf("expected tool error when no change requested")
	}

	res = callTool(t, handleUpdateDecision(s), map[string]any{
		"id": float64(d.ID), "status": "superseded", "add_tags": "legacy",
	})
	text := callResultText(t, res)
	if !strings.Contains(text, "status=superseded") || !strings.Contains(text, "legacy") {
		t.Fatalf("unexpected update output: %q", text)
	}
}

func TestHandlePinAndContext(t *testing.T) {
	s := newMCPTestStore(t)

	res := callTool(t, handlePin(s), map[string]any{
		"item_type": "note",
		"item_ref":  "soak test before release",
		"priority":  float64(9),
	})
	if res.IsError {
		t.Fatalf("pin failed: %s", callResultText(t, res))
	}

	res = callTool(t, handleContext(s), map[string]any{})
	text := callResultText(t, res)
	if !strings.Contains(text, "No active iteration") {
		t.Fatalf("expected empty-iteration notice: %q", text)
	}
	if !strings.Contains(text, "soak test before release") {
		t.Fatalf("expected pin in context: %q", text)
	}
}

func TestHandleImportRejectsUnknownKind(t *testing.T) {
	s := newMCPTestStore(t)

	res := callTool(t, handleImport(s), map[string]any{"kind": "csv", "path": "/tmp"})
	if !res.IsError {
		t.Fatalf("expected tool error for unknown import kind")
	}
}

func TestHandleExportWritesFile(t *testing.T) {
	s := newMCPTestStore(t)
	if _, err := s.LogDecision(store.DecisionParams{Title: "exported", Chosen: "c"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "log.md")
	res := callTool(t, handleExport(s), map[string]any{"path": path})
	if res.IsError {
		t.Fatalf("export failed: %s", callResultText(t, res))
	}
	if !strings.Contains(callResultText(t, res), "Exported 1 decisions") {
		t.Fatalf("unexpected output: %q", callResultText(t, res))
	}
}

func TestHandleStatsAndHealth(t *testing.T) {
	s := newMCPTestStore(t)

	res := callTool(t, handleStats(s), map[string]any{})
	if res.IsError {
		t.Fatalf("stats failed: %s", callResultText(t, res))
	}
	if !strings.Contains(callResultText(t, res), "Schema: v3") {
		t.Fatalf("unexpected stats output: %q", callResultText(t, res))
	}

	res = callTool(t, handleHealth(s), map[string]any{})
	if res.IsError {
		t.Fatalf("health failed: %s", callResultText(t, res))
	}
	if !strings.Contains(callResultText(t, res), "Status: healthy") {
		t.Fatalf("unexpected health output: %q", callResultText(t, res))
	}
}
