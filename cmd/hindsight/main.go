// Hindsight — Project memory for iterative development workflows.
//
// Usage:
//
//	hindsight mcp                  Start MCP server (stdio transport)
//	hindsight tui                  Launch interactive terminal UI
//	hindsight search <query>       Search decisions and commits
//	hindsight decision <title>..   Record a decision from the CLI
//	hindsight context              Show resume context for a new session
//	hindsight stats                Show memory statistics
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hindsightdb/hindsight/internal/mcp"
	"github.com/hindsightdb/hindsight/internal/store"
	"github.com/hindsightdb/hindsight/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := store.DefaultConfig()

	// Allow overriding the store file via env
	if path := os.Getenv("HINDSIGHT_DB"); path != "" {
		cfg.Path = path
	}

	switch os.Args[1] {
	case "mcp":
		cmdMCP(cfg)
	case "tui":
		cmdTUI(cfg)
	case "start":
		cmdStart(cfg)
	case "complete":
		cmdComplete(cfg)
	case "decision":
		cmdDecision(cfg)
	case "decisions":
		cmdDecisions(cfg)
	case "search":
		cmdSearch(cfg)
	case "timeline":
		cmdTimeline(cfg)
	case "context":
		cmdContext(cfg)
	case "pin":
		cmdPin(cfg)
	case "pinned":
		cmdPinned(cfg)
	case "stats":
		cmdStats(cfg)
	case "health":
		cmdHealth(cfg)
	case "purge":
		cmdPurge(cfg)
	case "export":
		cmdExport(cfg)
	case "import-git":
		cmdImportGit(cfg)
	case "import-adrs":
		cmdImportADRs(cfg)
	case "version", "--version", "-v":
		fmt.Printf("hindsight %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// ─── Commands ────────────────────────────────────────────────────────────────

func cmdMCP(cfg store.Config) {
	s, err := store.New(cfg)
	if err != nil {
		fatal(err)
	}
	defer s.Close()

	mcpSrv := mcp.NewServer(s)
	if err := mcpserver.ServeStdio(mcpSrv); err != nil {
		fatal(err)
	}
}

func cmdTUI(cfg store.Config) {
	s, err := store.New(cfg)
	if err != nil {
		fatal(err)
	}
	defer s.Close()

	model := tui.New(s, version)
	p := tea.NewProgram(model)
	if _, err := p.Run(); err != nil {
		fatal(err)
	}
}

func cmdStart(cfg store.Config) {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: hindsight start <command> [description...]")
		os.Exit(1)
	}

	command := os.Args[2]
	description := strings.Join(os.Args[3:], " ")

	s, err := store.New(cfg)
	if err != nil {
		fatal(err)
	}
	defer s.Close()

	it, err := s.StartIteration(command, description)
	if err != nil {
		fatal(err)
	}

	fmt.Printf("Iteration #%d started: %s\n", it.ID, it.Command)
}

func cmdComplete(cfg store.Config) {
	status := ""
	if len(os.Args) > 2 {
		status = os.Args[2]
	}

	s, err := store.New(cfg)
	if err != nil {
		fatal(err)
	}
	defer s.Close()

	it, err := s.CompleteIteration(status)
	if err != nil {
		fatal(err)
	}
	if it == nil {
		fmt.Println("No active iteration to complete.")
		return
	}

	fmt.Printf("Iteration #%d (%s) closed with status %q\n", it.ID, it.Command, it.Status)
}

func cmdDecision(cfg store.Config) {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: hindsight decision <title> [--chosen TEXT] [--context TEXT] [--rationale TEXT] [--tags a,b,c]")
		os.Exit(1)
	}

	p := store.DecisionParams{Title: os.Args[2]}

	for i := 3; i < len(os.Args); i++ {
		switch os.Args[i] {
		case "--chosen":
			if i+1 < len(os.Args) {
				p.Chosen = os.Args[i+1]
				i++
			}
		case "--context":
			if i+1 < len(os.Args) {
				p.Context = os.Args[i+1]
				i++
			}
		case "--rationale":
			if i+1 < len(os.Args) {
				p.Rationale = os.Args[i+1]
				i++
			}
		case "--tags":
			if i+1 < len(os.Args) {
				p.Tags = splitTags(os.Args[i+1])
				i++
			}
		}
	}
	// Shorthand: title doubles as the chosen option when none given
	if p.Chosen == "" {
		p.Chosen = p.Title
	}

	s, err := store.New(cfg)
	if err != nil {
		fatal(err)
	}
	defer s.Close()

	d, err := s.LogDecision(p)
	if err != nil {
		fatal(err)
	}

	fmt.Printf("Decision #%d recorded: %q\n", d.ID, d.Title)
}

func cmdDecisions(cfg store.Config) {
	f := store.DecisionFilter{Limit: 20}

	for i := 2; i < len(os.Args); i++ {
		switch os.Args[i] {
		case "--status":
			if i+1 < len(os.Args) {
				f.Status = os.Args[i+1]
				i++
			}
		case "--tag":
			if i+1 < len(os.Args) {
				f.Tags = append(f.Tags, os.Args[i+1])
				i++
			}
		case "--iteration":
			if i+1 < len(os.Args) {
				if n, err := strconv.ParseInt(os.Args[i+1], 10, 64); err == nil {
					f.IterationID = &n
				}
				i++
			}
		case "--limit":
			if i+1 < len(os.Args) {
				if n, err := strconv.Atoi(os.Args[i+1]); err == nil {
					f.Limit = n
				}
				i++
			}
		}
	}

	s, err := store.New(cfg)
	if err != nil {
		fatal(err)
	}
	defer s.Close()

	decisions, err := s.Decisions(f)
	if err != nil {
		fatal(err)
	}

	if len(decisions) == 0 {
		fmt.Println("No decisions recorded yet.")
		return
	}

	for _, d := range decisions {
		tags := ""
		if len(d.Tags) > 0 {
			tags = " [" + strings.Join(d.Tags, ",") + "]"
		}
		fmt.Printf("#%d (%s) %s%s\n    %s\n    %s\n\n",
			d.ID, d.Status, d.Title, tags,
			truncate(d.Chosen, 150),
			d.DecidedAt)
	}
}

func cmdSearch(cfg store.Config) {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: hindsight search <query> [--status STATUS] [--tag TAG] [--since DATE] [--until DATE] [--limit N]")
		os.Exit(1)
	}

	// Collect the query (everything that's not a flag)
	var queryParts []string
	opts := store.SearchOptions{Limit: 10}

	for i := 2; i < len(os.Args); i++ {
		switch os.Args[i] {
		case "--status":
			if i+1 < len(os.Args) {
				opts.Status = os.Args[i+1]
				i++
			}
		case "--tag":
			if i+1 < len(os.Args) {
				opts.Tags = append(opts.Tags, os.Args[i+1])
				i++
			}
		case "--since":
			if i+1 < len(os.Args) {
				opts.Since = os.Args[i+1]
				i++
			}
		case "--until":
			if i+1 < len(os.Args) {
				opts.Until = os.Args[i+1]
				i++
			}
		case "--limit":
			if i+1 < len(os.Args) {
				if n, err := strconv.Atoi(os.Args[i+1]); err == nil {
					opts.Limit = n
				}
				i++
			}
		default:
			queryParts = append(queryParts, os.Args[i])
		}
	}

	query := strings.Join(queryParts, " ")
	if query == "" {
		fmt.Fprintln(os.Stderr, "error: search query is required")
		os.Exit(1)
	}

	s, err := store.New(cfg)
	if err != nil {
		fatal(err)
	}
	defer s.Close()

	results, err := s.Search(query, opts)
	if err != nil {
		fatal(err)
	}

	if len(results) == 0 {
		fmt.Printf("No matches for: %q\n", query)
		return
	}

	fmt.Printf("Found %d matches:\n\n", len(results))
	for i, r := range results {
		switch r.Kind {
		case store.SourceDecision:
			d := r.Decision
			fmt.Printf("[%d] decision #%d (%s) — %s\n    %s\n    %s\n\n",
				i+1, d.ID, d.Status, d.Title,
				truncate(d.Chosen, 200),
				d.DecidedAt)
		case store.SourceCommit:
			c := r.Commit
			msg := ""
			if c.Message != nil {
				msg = *c.Message
			}
			fmt.Printf("[%d] commit %s — %s\n    %s\n\n",
				i+1, shortSHA(c.SHA), truncate(msg, 200), c.CommittedAt)
		}
	}
}

func cmdTimeline(cfg store.Config) {
	limit := 20
	eventType := ""
	var iterationID *int64

	for i := 2; i < len(os.Args); i++ {
		switch os.Args[i] {
		case "--type":
			if i+1 < len(os.Args) {
				eventType = os.Args[i+1]
				i++
			}
		case "--iteration":
			if i+1 < len(os.Args) {
				if n, err := strconv.ParseInt(os.Args[i+1], 10, 64); err == nil {
					iterationID = &n
				}
				i++
			}
		case "--limit":
			if i+1 < len(os.Args) {
				if n, err := strconv.Atoi(os.Args[i+1]); err == nil {
					limit = n
				}
				i++
			}
		}
	}

	s, err := store.New(cfg)
	if err != nil {
		fatal(err)
	}
	defer s.Close()

	events, err := s.Timeline(iterationID, eventType, limit)
	if err != nil {
		fatal(err)
	}

	if len(events) == 0 {
		fmt.Println("No events recorded yet.")
		return
	}

	for _, e := range events {
		phase := ""
		if e.Phase != nil {
			phase = " / " + *e.Phase
		}
		iter := ""
		if e.IterationID != nil {
			iter = fmt.Sprintf("  (iteration #%d)", *e.IterationID)
		}
		fmt.Printf("#%d %s  %s%s%s\n", e.ID, e.CreatedAt, e.EventType, phase, iter)
	}
}

func cmdContext(cfg store.Config) {
	s, err := store.New(cfg)
	if err != nil {
		fatal(err)
	}
	defer s.Close()

	ctx, err := s.GetSessionContext()
	if err != nil {
		fatal(err)
	}

	if ctx.Iteration == nil {
		fmt.Println("No active iteration.")
	} else {
		it := ctx.Iteration
		fmt.Printf("Active iteration #%d: %s (since %s)\n", it.ID, it.Command, it.StartedAt)
		if len(it.PhasesCompleted) > 0 {
			fmt.Printf("  Phases: %s\n", strings.Join(it.PhasesCompleted, " → "))
		}
	}

	if len(ctx.Decisions) > 0 {
		fmt.Printf("\nRecent decisions:\n")
		for _, d := range ctx.Decisions {
			fmt.Printf("  #%d (%s) %s\n", d.ID, d.Status, d.Title)
		}
	}

	if len(ctx.PinnedItems) > 0 {
		fmt.Printf("\nPinned:\n")
		for _, p := range ctx.PinnedItems {
			fmt.Printf("  [p%d] %s %s\n", p.Priority, p.ItemType, pinLabel(p))
		}
	}

	if len(ctx.PendingActions) > 0 {
		fmt.Printf("\nPending actions: %d\n", len(ctx.PendingActions))
	}
}

func cmdPin(cfg store.Config) {
	if len(os.Args) < 4 {
		fmt.Fprintln(os.Stderr, "usage: hindsight pin <item_type> <id-or-ref> [--note TEXT] [--priority N]")
		os.Exit(1)
	}

	p := store.PinParams{ItemType: os.Args[2]}
	if n, err := strconv.ParseInt(os.Args[3], 10, 64); err == nil {
		p.ItemID = &n
	} else {
		p.ItemRef = os.Args[3]
	}

	for i := 4; i < len(os.Args); i++ {
		switch os.Args[i] {
		case "--note":
			if i+1 < len(os.Args) {
				p.Note = os.Args[i+1]
				i++
			}
		case "--priority":
			if i+1 < len(os.Args) {
				if n, err := strconv.Atoi(os.Args[i+1]); err == nil {
					p.Priority = n
				}
				i++
			}
		}
	}

	s, err := store.New(cfg)
	if err != nil {
		fatal(err)
	}
	defer s.Close()

	pin, err := s.Pin(p)
	if err != nil {
		fatal(err)
	}

	fmt.Printf("Pinned %s %s as #%d (priority %d)\n", pin.ItemType, pinLabel(*pin), pin.ID, pin.Priority)
}

func cmdPinned(cfg store.Config) {
	itemType := ""
	if len(os.Args) > 2 {
		itemType = os.Args[2]
	}

	s, err := store.New(cfg)
	if err != nil {
		fatal(err)
	}
	defer s.Close()

	pins, err := s.PinnedItems(itemType)
	if err != nil {
		fatal(err)
	}

	if len(pins) == 0 {
		fmt.Println("Nothing pinned yet.")
		return
	}

	for _, p := range pins {
		note := ""
		if p.Note != nil {
			note = " — " + truncate(*p.Note, 100)
		}
		fmt.Printf("#%d [p%d] %s %s%s\n", p.ID, p.Priority, p.ItemType, pinLabel(p), note)
	}
}

func cmdStats(cfg store.Config) {
	s, err := store.New(cfg)
	if err != nil {
		fatal(err)
	}
	defer s.Close()

	stats, err := s.GetStats()
	if err != nil {
		fatal(err)
	}

	search := "LIKE fallback"
	if stats.FTSEnabled {
		search = "FTS5"
	}

	fmt.Printf("Hindsight Memory Stats\n")
	fmt.Printf("  Iterations: %d\n", stats.TotalIterations)
	fmt.Printf("  Decisions:  %d\n", stats.TotalDecisions)
	fmt.Printf("  Commits:    %d\n", stats.TotalCommits)
	fmt.Printf("  Events:     %d\n", stats.TotalEvents)
	fmt.Printf("  Schema:     v%s (created %s)\n", stats.SchemaVersion, stats.CreatedAt)
	fmt.Printf("  Search:     %s\n", search)
	fmt.Printf("  Database:   %s\n", s.Path())
}

func cmdHealth(cfg store.Config) {
	s, err := store.New(cfg)
	if err != nil {
		fatal(err)
	}
	defer s.Close()

	report, err := s.CheckHealth()
	if err != nil {
		fatal(err)
	}

	fmt.Printf("Status: %s\n", report.Status)
	fmt.Printf("  Schema:  v%s\n", report.SchemaVersion)
	fmt.Printf("  FTS:     %t\n", report.FTSEnabled)
	fmt.Printf("  Size:    %d bytes\n", report.SizeBytes)
	for _, e := range report.Errors {
		fmt.Printf("  error:   %s\n", e)
	}
	for _, w := range report.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}

	if report.Status == "errors" {
		os.Exit(1)
	}
}

func cmdPurge(cfg store.Config) {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: hindsight purge <retention_days>")
		os.Exit(1)
	}

	days, err := strconv.Atoi(os.Args[2])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid retention days %q\n", os.Args[2])
		os.Exit(1)
	}

	s, err := store.New(cfg)
	if err != nil {
		fatal(err)
	}
	defer s.Close()

	n, err := s.PurgeOldEvents(days)
	if err != nil {
		fatal(err)
	}

	fmt.Printf("Purged %d events older than %d days\n", n, days)
}

func cmdExport(cfg store.Config) {
	outFile := "decisions.md"
	var iterationID *int64

	for i := 2; i < len(os.Args); i++ {
		switch os.Args[i] {
		case "--iteration":
			if i+1 < len(os.Args) {
				if n, err := strconv.ParseInt(os.Args[i+1], 10, 64); err == nil {
					iterationID = &n
				}
				i++
			}
		default:
			outFile = os.Args[i]
		}
	}

	s, err := store.New(cfg)
	if err != nil {
		fatal(err)
	}
	defer s.Close()

	n, err := s.ExportDecisionsMarkdown(outFile, iterationID)
	if err != nil {
		fatal(err)
	}

	fmt.Printf("Exported %d decisions to %s\n", n, outFile)
}

func cmdImportGit(cfg store.Config) {
	repoPath := "."
	limit := 100

	for i := 2; i < len(os.Args); i++ {
		switch os.Args[i] {
		case "--limit":
			if i+1 < len(os.Args) {
				if n, err := strconv.Atoi(os.Args[i+1]); err == nil {
					limit = n
				}
				i++
			}
		default:
			repoPath = os.Args[i]
		}
	}

	s, err := store.New(cfg)
	if err != nil {
		fatal(err)
	}
	defer s.Close()

	n, err := s.ImportGitHistory(repoPath, limit)
	if err != nil {
		fatal(err)
	}

	fmt.Printf("Imported %d commits from %s\n", n, repoPath)
}

func cmdImportADRs(cfg store.Config) {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: hindsight import-adrs <directory>")
		os.Exit(1)
	}

	dir := os.Args[2]

	s, err := store.New(cfg)
	if err != nil {
		fatal(err)
	}
	defer s.Close()

	n, err := s.ImportDecisionRecords(dir)
	if err != nil {
		fatal(err)
	}

	fmt.Printf("Imported %d decision records from %s\n", n, dir)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func printUsage() {
	fmt.Printf(`hindsight v%s — Project memory for iterative development workflows

Usage:
  hindsight <command> [arguments]

Commands:
  mcp                      Start MCP server (stdio transport, for any AI agent)
  tui                      Launch interactive terminal UI
  start <cmd> [desc]       Start a new iteration
  complete [status]        Complete the active iteration (default: completed)
  decision <title>         Record a decision [--chosen TEXT] [--context TEXT] [--rationale TEXT] [--tags a,b]
  decisions                List decisions [--status S] [--tag T] [--iteration N] [--limit N]
  search <query>           Search decisions and commits [--status S] [--tag T] [--since DATE] [--until DATE] [--limit N]
  timeline                 Show recent events [--type T] [--iteration N] [--limit N]
  context                  Show resume context: active iteration, recent decisions, pins
  pin <type> <id-or-ref>   Pin an item [--note TEXT] [--priority N]
  pinned [type]            List pinned items
  stats                    Show memory statistics
  health                   Run store health checks (exit 1 on errors)
  purge <days>             Delete events older than the retention window
  export [file]            Export decisions to markdown [--iteration N] (default: decisions.md)
  import-git [repo]        Import commits from git history [--limit N] (default: .)
  import-adrs <dir>        Import markdown architecture decision records
  version                  Print version
  help                     Show this help

Environment:
  HINDSIGHT_DB             Override store file path (default: .hindsight/memory.db)

MCP Configuration (add to your agent's config):
  {
    "mcp": {
      "hindsight": {
        "type": "stdio",
        "command": "hindsight",
        "args": ["mcp"]
      }
    }
  }
`, version)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "hindsight: %s\n", err)
	os.Exit(1)
}

func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func pinLabel(p store.PinnedItem) string {
	if p.ItemID != nil {
		return fmt.Sprintf("#%d", *p.ItemID)
	}
	if p.ItemRef != nil {
		return *p.ItemRef
	}
	return "?"
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
