// Package mcp exposes the Hindsight memory store to AI coding agents
// over the Model Context Protocol.
//
// Every tool is a thin formatter around a public store operation; no
// behavior lives here. Tool errors use NewToolResultError so the agent
// sees the failure as content instead of a protocol fault.
package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hindsightdb/hindsight/internal/store"
)

const instructions = `Hindsight is a persistent project memory. Use it to record design
decisions, commits, and workflow events as you make them, and to search
past history before re-deciding anything.

Typical flow:
1. memory_context at session start to see where the work stands.
2. memory_search before proposing a design that may already be settled.
3. memory_log_decision when a choice is made, memory_log_commit after
   committing, memory_link_commit to connect the two.
4. memory_manage_iteration to open and close units of work.`

// NewServer builds the MCP server with every memory tool registered.
func NewServer(s *store.Store) *server.MCPServer {
	srv := server.NewMCPServer(
		"hindsight",
		"0.1.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(instructions),
	)

	srv.AddTool(mcp.NewTool("memory_context",
		mcp.WithDescription("Get the resume bundle: active iteration, its recent decisions, pinned items, and pending actions. Call this first in a new session."),
	), handleContext(s))

	srv.AddTool(mcp.NewTool("memory_search",
		mcp.WithDescription("Full-text search over decisions and commits. Supports iteration, date-range, tag, and status filters."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search terms")),
		mcp.WithNumber("limit", mcp.Description("Max results (default 20)")),
		mcp.WithNumber("iteration_id", mcp.Description("Restrict to one iteration")),
		mcp.WithString("since", mcp.Description("Only results at or after this RFC 3339 timestamp")),
		mcp.WithString("until", mcp.Description("Only results at or before this RFC 3339 timestamp")),
		mcp.WithString("tags", mcp.Description("Comma-separated tags; matches decisions carrying any of them (excludes commits)")),
		mcp.WithString("status", mcp.Description("Decision status filter (excludes commits)")),
	), handleSearch(s))

	srv.AddTool(mcp.NewTool("memory_log_decision",
		mcp.WithDescription("Record a design decision. Binds to the active iteration unless iteration_id is given."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Short decision title")),
		mcp.WithString("chosen", mcp.Required(), mcp.Description("The selected option")),
		mcp.WithString("context", mcp.Description("Problem background")),
		mcp.WithString("alternatives", mcp.Description("Comma-separated rejected options")),
		mcp.WithString("rationale", mcp.Description("Why this option won")),
		mcp.WithString("impact", mcp.Description("Expected consequences")),
		mcp.WithString("phase", mcp.Description("Workflow phase this belongs to")),
		mcp.WithString("tags", mcp.Description("Comma-separated tags")),
		mcp.WithNumber("iteration_id", mcp.Description("Explicit iteration binding")),
	), handleLogDecision(s))

	srv.AddTool(mcp.NewTool("memory_log_commit",
		mcp.WithDescription("Record a commit by SHA. Logging a known SHA is a safe no-op."),
		mcp.WithString("sha", mcp.Required(), mcp.Description("Full commit SHA")),
		mcp.WithString("message", mcp.Description("Commit subject")),
		mcp.WithString("author", mcp.Description("Author name")),
		mcp.WithNumber("files_changed", mcp.Description("Changed file count")),
		mcp.WithNumber("insertions", mcp.Description("Inserted line count")),
		mcp.WithNumber("deletions", mcp.Description("Deleted line count")),
		mcp.WithString("files", mcp.Description("Comma-separated touched paths")),
		mcp.WithNumber("iteration_id", mcp.Description("Explicit iteration binding")),
	), handleLogCommit(s))

	srv.AddTool(mcp.NewTool("memory_log_event",
		mcp.WithDescription("Append a workflow event to the timeline."),
		mcp.WithString("event_type", mcp.Required(), mcp.Description("Event kind, e.g. phase_started")),
		mcp.WithString("phase", mcp.Description("Workflow phase")),
		mcp.WithObject("payload", mcp.Description("Structured event details")),
		mcp.WithNumber("iteration_id", mcp.Description("Explicit iteration binding")),
	), handleLogEvent(s))

	srv.AddTool(mcp.NewTool("memory_manage_iteration",
		mcp.WithDescription("Start or complete an iteration, or record a finished phase / produced artifact on one."),
		mcp.WithString("action", mcp.Required(), mcp.Description("One of: start, complete, add_phase, add_artifact")),
		mcp.WithString("command", mcp.Description("For start: what this iteration does")),
		mcp.WithString("description", mcp.Description("For start: longer description")),
		mcp.WithString("status", mcp.Description("For complete: terminal status (default completed)")),
		mcp.WithNumber("iteration_id", mcp.Description("For complete/add_phase/add_artifact: target iteration (default active)")),
		mcp.WithString("value", mcp.Description("For add_phase/add_artifact: the phase name or artifact path")),
	), handleManageIteration(s))

	srv.AddTool(mcp.NewTool("memory_get_iteration",
		mcp.WithDescription("Get one iteration by id, or the active iteration when id is omitted."),
		mcp.WithNumber("id", mcp.Description("Iteration id")),
	), handleGetIteration(s))

	srv.AddTool(mcp.NewTool("memory_get_decisions",
		mcp.WithDescription("List decisions newest-first with optional filters."),
		mcp.WithNumber("iteration_id", mcp.Description("Restrict to one iteration")),
		mcp.WithString("status", mcp.Description("Decision status filter")),
		mcp.WithString("tags", mcp.Description("Comma-separated tags; matches any")),
		mcp.WithNumber("limit", mcp.Description("Max results (default 50)")),
	), handleGetDecisions(s))

	srv.AddTool(mcp.NewTool("memory_get_timeline",
		mcp.WithDescription("List timeline events in chronological order."),
		mcp.WithNumber("iteration_id", mcp.Description("Restrict to one iteration")),
		mcp.WithString("event_type", mcp.Description("Event kind filter")),
		mcp.WithNumber("limit", mcp.Description("Max results (default 50)")),
	), handleGetTimeline(s))

	srv.AddTool(mcp.NewTool("memory_update_decision",
		mcp.WithDescription("Change a decision's lifecycle status and/or add tags."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Decision id")),
		mcp.WithString("status", mcp.Description("New status: active, superseded, deprecated")),
		mcp.WithString("add_tags", mcp.Description("Comma-separated tags to union in")),
	), handleUpdateDecision(s))

	srv.AddTool(mcp.NewTool("memory_link_decisions",
		mcp.WithDescription("Create a typed edge between two decisions (supersedes, depends_on, contradicts, relates)."),
		mcp.WithNumber("source_id", mcp.Required(), mcp.Description("Decision the edge starts from")),
		mcp.WithNumber("target_id", mcp.Required(), mcp.Description("Decision the edge points at")),
		mcp.WithString("link_type", mcp.Required(), mcp.Description("Edge type")),
	), handleLinkDecisions(s))

	srv.AddTool(mcp.NewTool("memory_link_commit",
		mcp.WithDescription("Associate a commit with the decision it implements, reverts, or relates to."),
		mcp.WithString("sha", mcp.Required(), mcp.Description("Commit SHA")),
		mcp.WithNumber("decision_id", mcp.Required(), mcp.Description("Decision id")),
		mcp.WithString("link_type", mcp.Description("implements (default), reverts, or relates")),
	), handleLinkCommit(s))

	srv.AddTool(mcp.NewTool("memory_pin",
		mcp.WithDescription("Pin an item so returning sessions see it first. Higher priority sorts first."),
		mcp.WithString("item_type", mcp.Required(), mcp.Description("What kind of thing is pinned, e.g. decision, note")),
		mcp.WithNumber("item_id", mcp.Description("Record id, for stored items")),
		mcp.WithString("item_ref", mcp.Description("Free-text reference, for unstored items")),
		mcp.WithString("note", mcp.Description("Why this is pinned")),
		mcp.WithNumber("priority", mcp.Description("Sort weight (default 5)")),
	), handlePin(s))

	srv.AddTool(mcp.NewTool("memory_unpin",
		mcp.WithDescription("Remove a pinned item by its pin id."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Pin id")),
	), handleUnpin(s))

	srv.AddTool(mcp.NewTool("memory_pinned",
		mcp.WithDescription("List pinned items, highest priority first."),
		mcp.WithString("item_type", mcp.Description("Restrict to one item type")),
	), handlePinned(s))

	srv.AddTool(mcp.NewTool("memory_stats",
		mcp.WithDescription("Entity counts and store metadata."),
	), handleStats(s))

	srv.AddTool(mcp.NewTool("memory_health",
		mcp.WithDescription("Integrity check: schema version, search index coverage, file permissions, file size."),
	), handleHealth(s))

	srv.AddTool(mcp.NewTool("memory_purge",
		mcp.WithDescription("Delete events older than the retention window. Decisions and commits are never purged."),
		mcp.WithNumber("retention_days", mcp.Required(), mcp.Description("Keep events newer than this many days")),
	), handlePurge(s))

	srv.AddTool(mcp.NewTool("memory_export",
		mcp.WithDescription("Write decisions to a markdown decision log."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Output file path")),
		mcp.WithNumber("iteration_id", mcp.Description("Restrict to one iteration")),
	), handleExport(s))

	srv.AddTool(mcp.NewTool("memory_import",
		mcp.WithDescription("Backfill memory from outside sources: kind=git imports commit history, kind=adr imports markdown decision records."),
		mcp.WithString("kind", mcp.Required(), mcp.Description("git or adr")),
		mcp.WithString("path", mcp.Required(), mcp.Description("Repository path (git) or directory of *.md files (adr)")),
		mcp.WithNumber("limit", mcp.Description("For git: max commits to read (default 100)")),
	), handleImport(s))

	return srv
}

// ─── Handlers ────────────────────────────────────────────────────────────────

func handleContext(s *store.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sc, err := s.GetSessionContext()
		if err != nil {
			return mcp.NewToolResultError("Failed to get context: " + err.Error()), nil
		}

		var b strings.Builder
		if sc.Iteration == nil {
			b.WriteString("No active iteration.\n")
		} else {
			it := sc.Iteration
			fmt.Fprintf(&b, "Active iteration #%d: %s (started %s)\n", it.ID, it.Command, it.StartedAt)
			if len(it.PhasesCompleted) > 0 {
				fmt.Fprintf(&b, "Phases completed: %s\n", strings.Join(it.PhasesCompleted, ", "))
			}
		}

		if len(sc.Decisions) > 0 {
			b.WriteString("\nRecent decisions:\n")
			for _, d := range sc.Decisions {
				fmt.Fprintf(&b, "  #%d [%s] %s — %s\n", d.ID, d.Status, d.Title, truncate(d.Chosen, 120))
			}
		}
		if len(sc.PinnedItems) > 0 {
			b.WriteString("\nPinned:\n")
			for _, p := range sc.PinnedItems {
				fmt.Fprintf(&b, "  [p%d] %s %s\n", p.Priority, p.ItemType, pinLabel(p))
			}
		}
		if len(sc.PendingActions) > 0 {
			b.WriteString("\nPending actions:\n")
			for _, a := range sc.PendingActions {
				fmt.Fprintf(&b, "  #%d %s (queued %s)\n", a.ID, a.ActionType, a.CreatedAt)
			}
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}

func handleSearch(s *store.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, _ := req.GetArguments()["query"].(string)
		opts := store.SearchOptions{
			Limit:       intArg(req, "limit", 0),
			IterationID: idArg(req, "iteration_id"),
			Status:      stringArg(req, "status"),
			Tags:        tagsArg(req, "tags"),
		}
		opts.Since = stringArg(req, "since")
		opts.Until = stringArg(req, "until")

		results, err := s.Search(query, opts)
		if err != nil {
			return mcp.NewToolResultError("Search failed: " + err.Error()), nil
		}
		if len(results) == 0 {
			return mcp.NewToolResultText(fmt.Sprintf("No matches for: %q", query)), nil
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Found %d matches:\n\n", len(results))
		for i, r := range results {
			switch r.Kind {
			case store.SourceDecision:
				d := r.Decision
				fmt.Fprintf(&b, "[%d] decision #%d (%s) — %s\n    chosen: %s\n    %s\n\n",
					i+1, d.ID, d.Status, d.Title, truncate(d.Chosen, 200), d.DecidedAt)
			case store.SourceCommit:
				c := r.Commit
				fmt.Fprintf(&b, "[%d] commit %s — %s\n    %s\n\n",
					i+1, shortSHA(c.SHA), truncate(derefString(c.Message), 200), c.CommittedAt)
			}
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}

func handleLogDecision(s *store.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		d, err := s.LogDecision(store.DecisionParams{
			Title:        stringArg(req, "title"),
			Context:      stringArg(req, "context"),
			Chosen:       stringArg(req, "chosen"),
			Alternatives: tagsArg(req, "alternatives"),
			Rationale:    stringArg(req, "rationale"),
			Impact:       stringArg(req, "impact"),
			Phase:        stringArg(req, "phase"),
			Tags:         tagsArg(req, "tags"),
			IterationID:  idArg(req, "iteration_id"),
		})
		if err != nil {
			return mcp.NewToolResultError("Failed to log decision: " + err.Error()), nil
		}
		binding := "no iteration"
		if d.IterationID != nil {
			binding = fmt.Sprintf("iteration #%d", *d.IterationID)
		}
		return mcp.NewToolResultText(fmt.Sprintf("Decision #%d recorded: %q (%s)", d.ID, d.Title, binding)), nil
	}
}

func handleLogCommit(s *store.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		p := store.CommitParams{
			SHA:         stringArg(req, "sha"),
			Message:     stringArg(req, "message"),
			Author:      stringArg(req, "author"),
			Files:       tagsArg(req, "files"),
			IterationID: idArg(req, "iteration_id"),
		}
		p.FilesChanged = numArg(req, "files_changed")
		p.Insertions = numArg(req, "insertions")
		p.Deletions = numArg(req, "deletions")

		id, created, err := s.LogCommit(p)
		if err != nil {
			return mcp.NewToolResultError("Failed to log commit: " + err.Error()), nil
		}
		if !created {
			return mcp.NewToolResultText(fmt.Sprintf("Commit %s already recorded as #%d", shortSHA(p.SHA), id)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Commit %s recorded as #%d", shortSHA(p.SHA), id)), nil
	}
}

func handleLogEvent(s *store.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var payload store.Payload
		if raw, ok := req.GetArguments()["payload"].(map[string]any); ok {
			payload = store.Payload(raw)
		}
		e, err := s.LogEvent(stringArg(req, "event_type"), stringArg(req, "phase"), payload, idArg(req, "iteration_id"))
		if err != nil {
			return mcp.NewToolResultError("Failed to log event: " + err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Event #%d (%s) recorded at %s", e.ID, e.EventType, e.CreatedAt)), nil
	}
}

func handleManageIteration(s *store.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		action, _ := req.GetArguments()["action"].(string)
		switch action {
		case "start":
			it, err := s.StartIteration(stringArg(req, "command"), stringArg(req, "description"))
			if err != nil {
				return mcp.NewToolResultError("Failed to start iteration: " + err.Error()), nil
			}
			return mcp.NewToolResultText(fmt.Sprintf("Iteration #%d started: %s", it.ID, it.Command)), nil

		case "complete":
			var it *store.Iteration
			var err error
			if id := idArg(req, "iteration_id"); id != nil {
				it, err = s.CompleteIterationByID(*id, stringArg(req, "status"))
			} else {
				it, err = s.CompleteIteration(stringArg(req, "status"))
			}
			if err != nil {
				return mcp.NewToolResultError("Failed to complete iteration: " + err.Error()), nil
			}
			if it == nil {
				return mcp.NewToolResultText("No active iteration to complete."), nil
			}
			return mcp.NewToolResultText(fmt.Sprintf("Iteration #%d closed with status %q", it.ID, it.Status)), nil

		case "add_phase", "add_artifact":
			id, err := resolveIterationArg(s, req)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			value := stringArg(req, "value")
			if action == "add_phase" {
				err = s.AddIterationPhase(id, value)
			} else {
				err = s.AddIterationArtifact(id, value)
			}
			if err != nil {
				return mcp.NewToolResultError("Failed to update iteration: " + err.Error()), nil
			}
			return mcp.NewToolResultText(fmt.Sprintf("Iteration #%d updated: %s %q", id, action, value)), nil

		default:
			return mcp.NewToolResultError("action must be one of: start, complete, add_phase, add_artifact"), nil
		}
	}
}

func handleGetIteration(s *store.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var it *store.Iteration
		var err error
		if id := idArg(req, "id"); id != nil {
			it, err = s.GetIteration(*id)
		} else {
			it, err = s.ActiveIteration()
		}
		if err != nil {
			return mcp.NewToolResultError("Failed to get iteration: " + err.Error()), nil
		}
		if it == nil {
			return mcp.NewToolResultText("No matching iteration."), nil
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Iteration #%d: %s\nStatus: %s\nStarted: %s\n", it.ID, it.Command, it.Status, it.StartedAt)
		if it.Description != nil {
			fmt.Fprintf(&b, "Description: %s\n", *it.Description)
		}
		if it.CompletedAt != nil {
			fmt.Fprintf(&b, "Completed: %s\n", *it.CompletedAt)
		}
		if len(it.PhasesCompleted) > 0 {
			fmt.Fprintf(&b, "Phases: %s\n", strings.Join(it.PhasesCompleted, ", "))
		}
		if len(it.Artifacts) > 0 {
			fmt.Fprintf(&b, "Artifacts: %s\n", strings.Join(it.Artifacts, ", "))
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}

func handleGetDecisions(s *store.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		decisions, err := s.Decisions(store.DecisionFilter{
			IterationID: idArg(req, "iteration_id"),
			Status:      stringArg(req, "status"),
			Tags:        tagsArg(req, "tags"),
			Limit:       intArg(req, "limit", 0),
		})
		if err != nil {
			return mcp.NewToolResultError("Failed to list decisions: " + err.Error()), nil
		}
		if len(decisions) == 0 {
			return mcp.NewToolResultText("No decisions recorded."), nil
		}

		var b strings.Builder
		fmt.Fprintf(&b, "%d decisions:\n\n", len(decisions))
		for _, d := range decisions {
			tags := ""
			if len(d.Tags) > 0 {
				tags = " [" + strings.Join(d.Tags, ", ") + "]"
			}
			fmt.Fprintf(&b, "#%d (%s)%s %s\n    chosen: %s\n    %s\n\n",
				d.ID, d.Status, tags, d.Title, truncate(d.Chosen, 200), d.DecidedAt)
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}

func handleGetTimeline(s *store.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		events, err := s.Timeline(idArg(req, "iteration_id"), stringArg(req, "event_type"), intArg(req, "limit", 0))
		if err != nil {
			return mcp.NewToolResultError("Failed to load timeline: " + err.Error()), nil
		}
		if len(events) == 0 {
			return mcp.NewToolResultText("No events recorded."), nil
		}

		var b strings.Builder
		fmt.Fprintf(&b, "%d events (oldest first):\n\n", len(events))
		for _, e := range events {
			phase := ""
			if e.Phase != nil {
				phase = " / " + *e.Phase
			}
			fmt.Fprintf(&b, "#%d %s%s — %s\n", e.ID, e.EventType, phase, e.CreatedAt)
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}

func handleUpdateDecision(s *store.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := int64(intArg(req, "id", 0))
		if id == 0 {
			return mcp.NewToolResultError("id is required"), nil
		}
		status := stringArg(req, "status")
		addTags := tagsArg(req, "add_tags")
		if status == "" && len(addTags) == 0 {
			return mcp.NewToolResultError("provide status and/or add_tags"), nil
		}

		if status != "" {
			if err := s.UpdateDecisionStatus(id, status); err != nil {
				return mcp.NewToolResultError("Failed to update status: " + err.Error()), nil
			}
		}
		var tags []string
		if len(addTags) > 0 {
			var err error
			tags, err = s.AddDecisionTags(id, addTags)
			if err != nil {
				return mcp.NewToolResultError("Failed to add tags: " + err.Error()), nil
			}
		}

		msg := fmt.Sprintf("Decision #%d updated", id)
		if status != "" {
			msg += fmt.Sprintf(", status=%s", status)
		}
		if len(tags) > 0 {
			msg += fmt.Sprintf(", tags=[%s]", strings.Join(tags, ", "))
		}
		return mcp.NewToolResultText(msg), nil
	}
}

func handleLinkDecisions(s *store.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		source := int64(intArg(req, "source_id", 0))
		target := int64(intArg(req, "target_id", 0))
		linkType := stringArg(req, "link_type")

		created, err := s.LinkDecisions(source, target, linkType)
		if err != nil {
			return mcp.NewToolResultError("Failed to link decisions: " + err.Error()), nil
		}
		if !created {
			return mcp.NewToolResultText(fmt.Sprintf("Link #%d -%s-> #%d already exists", source, linkType, target)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Linked #%d -%s-> #%d", source, linkType, target)), nil
	}
}

func handleLinkCommit(s *store.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sha := stringArg(req, "sha")
		decisionID := int64(intArg(req, "decision_id", 0))

		created, err := s.LinkCommit(sha, decisionID, stringArg(req, "link_type"))
		if err != nil {
			return mcp.NewToolResultError("Failed to link commit: " + err.Error()), nil
		}
		if !created {
			return mcp.NewToolResultText(fmt.Sprintf("Commit %s already linked to decision #%d", shortSHA(sha), decisionID)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Linked commit %s to decision #%d", shortSHA(sha), decisionID)), nil
	}
}

func handlePin(s *store.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		p, err := s.Pin(store.PinParams{
			ItemType: stringArg(req, "item_type"),
			ItemID:   idArg(req, "item_id"),
			ItemRef:  stringArg(req, "item_ref"),
			Note:     stringArg(req, "note"),
			Priority: intArg(req, "priority", 0),
		})
		if err != nil {
			return mcp.NewToolResultError("Failed to pin: " + err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Pinned %s %s as pin #%d (priority %d)",
			p.ItemType, pinLabel(*p), p.ID, p.Priority)), nil
	}
}

func handleUnpin(s *store.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := int64(intArg(req, "id", 0))
		removed, err := s.Unpin(id)
		if err != nil {
			return mcp.NewToolResultError("Failed to unpin: " + err.Error()), nil
		}
		if !removed {
			return mcp.NewToolResultText(fmt.Sprintf("No pin #%d", id)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Pin #%d removed", id)), nil
	}
}

func handlePinned(s *store.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		pins, err := s.PinnedItems(stringArg(req, "item_type"))
		if err != nil {
			return mcp.NewToolResultError("Failed to list pins: " + err.Error()), nil
		}
		if len(pins) == 0 {
			return mcp.NewToolResultText("Nothing pinned."), nil
		}

		var b strings.Builder
		fmt.Fprintf(&b, "%d pinned items:\n\n", len(pins))
		for _, p := range pins {
			note := ""
			if p.Note != nil {
				note = " — " + *p.Note
			}
			fmt.Fprintf(&b, "#%d [p%d] %s %s%s\n", p.ID, p.Priority, p.ItemType, pinLabel(p), note)
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}

func handleStats(s *store.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		st, err := s.GetStats()
		if err != nil {
			return mcp.NewToolResultError("Failed to get stats: " + err.Error()), nil
		}
		search := "substring fallback"
		if st.FTSEnabled {
			search = "full-text"
		}
		return mcp.NewToolResultText(fmt.Sprintf(
			"Memory stats:\n- Iterations: %d\n- Decisions: %d\n- Commits: %d\n- Events: %d\n- Schema: v%s (created %s)\n- Search: %s",
			st.TotalIterations, st.TotalDecisions, st.TotalCommits, st.TotalEvents,
			st.SchemaVersion, st.CreatedAt, search)), nil
	}
}

func handleHealth(s *store.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		r, err := s.CheckHealth()
		if err != nil {
			return mcp.NewToolResultError("Health check failed: " + err.Error()), nil
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Status: %s\nSchema: v%s\nSize: %d bytes\n", r.Status, r.SchemaVersion, r.SizeBytes)
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "ERROR: %s\n", e)
		}
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "warning: %s\n", w)
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}

func handlePurge(s *store.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		n, err := s.PurgeOldEvents(intArg(req, "retention_days", 0))
		if err != nil {
			return mcp.NewToolResultError("Purge failed: " + err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Purged %d old events", n)), nil
	}
}

func handleExport(s *store.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path := stringArg(req, "path")
		if path == "" {
			return mcp.NewToolResultError("path is required"), nil
		}
		n, err := s.ExportDecisionsMarkdown(path, idArg(req, "iteration_id"))
		if err != nil {
			return mcp.NewToolResultError("Export failed: " + err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Exported %d decisions to %s", n, path)), nil
	}
}

func handleImport(s *store.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		kind := stringArg(req, "kind")
		path := stringArg(req, "path")
		if path == "" {
			return mcp.NewToolResultError("path is required"), nil
		}
		switch kind {
		case "git":
			n, err := s.ImportGitHistory(path, intArg(req, "limit", 0))
			if err != nil {
				return mcp.NewToolResultError("Git import failed: " + err.Error()), nil
			}
			return mcp.NewToolResultText(fmt.Sprintf("Imported %d commits from %s", n, path)), nil
		case "adr":
			n, err := s.ImportDecisionRecords(path)
			if err != nil {
				return mcp.NewToolResultError("Decision record import failed: " + err.Error()), nil
			}
			return mcp.NewToolResultText(fmt.Sprintf("Imported %d decision records from %s", n, path)), nil
		default:
			return mcp.NewToolResultError("kind must be git or adr"), nil
		}
	}
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func stringArg(req mcp.CallToolRequest, key string) string {
	v, _ := req.GetArguments()[key].(string)
	return v
}

func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// idArg reads an optional numeric id as a nullable int64.
func idArg(req mcp.CallToolRequest, key string) *int64 {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return nil
	}
	id := int64(v)
	return &id
}

// numArg reads an optional count as a nullable int64.
func numArg(req mcp.CallToolRequest, key string) *int64 {
	return idArg(req, key)
}

// tagsArg splits a comma-separated argument, dropping empty entries.
func tagsArg(req mcp.CallToolRequest, key string) []string {
	raw, _ := req.GetArguments()[key].(string)
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func resolveIterationArg(s *store.Store, req mcp.CallToolRequest) (int64, error) {
	if id := idArg(req, "iteration_id"); id != nil {
		return *id, nil
	}
	active, err := s.ActiveIteration()
	if err != nil {
		return 0, err
	}
	if active == nil {
		return 0, fmt.Errorf("no active iteration; pass iteration_id")
	}
	return active.ID, nil
}

func pinLabel(p store.PinnedItem) string {
	if p.ItemID != nil {
		return fmt.Sprintf("#%d", *p.ItemID)
	}
	return derefString(p.ItemRef)
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
