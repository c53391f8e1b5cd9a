package store

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// ─── Markdown export ─────────────────────────────────────────────────────────

// ExportDecisionsMarkdown renders decisions to a markdown decision log
// at path, newest first, optionally scoped to one iteration. Returns the
// number of decisions written. Stored text is already redacted, so the
// export never leaks secrets.
func (s *Store) ExportDecisionsMarkdown(path string, iterationID *int64) (int, error) {
	decisions, err := s.Decisions(DecisionFilter{
		IterationID: iterationID,
		Limit:       s.cfg.ExportLimit,
	})
	if err != nil {
		return 0, err
	}

	var b strings.Builder
	b.WriteString("# Decision Log\n\n")
	b.WriteString(fmt.Sprintf("Exported %s\n\n", now()))

	for _, d := range decisions {
		b.WriteString(fmt.Sprintf("## %s\n\n", d.Title))
		b.WriteString(fmt.Sprintf("- **Date**: %s\n", d.DecidedAt))
		b.WriteString(fmt.Sprintf("- **Status**: %s\n", d.Status))
		if len(d.Tags) > 0 {
			b.WriteString(fmt.Sprintf("- **Tags**: %s\n", strings.Join(d.Tags, ", ")))
		}
		b.WriteString("\n")
		if d.Context != nil {
			b.WriteString(fmt.Sprintf("### Context\n\n%s\n\n", *d.Context))
		}
		b.WriteString(fmt.Sprintf("### Decision\n\n%s\n\n", d.Chosen))
		if len(d.Alternatives) > 0 {
			b.WriteString("### Alternatives\n\n")
			for _, a := range d.Alternatives {
				b.WriteString(fmt.Sprintf("- %s\n", a))
			}
			b.WriteString("\n")
		}
		if d.Rationale != nil {
			b.WriteString(fmt.Sprintf("### Rationale\n\n%s\n\n", *d.Rationale))
		}
		b.WriteString("---\n\n")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("hindsight: export decisions: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return 0, fmt.Errorf("hindsight: export decisions: %w", err)
	}
	return len(decisions), nil
}

// ─── Git history import ──────────────────────────────────────────────────────

// ImportGitHistory backfills commits from the git log of repoPath. Known
// SHAs are skipped, so re-running the import is safe. Returns how many
// new commits were recorded.
func (s *Store) ImportGitHistory(repoPath string, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	cmd := exec.Command("git", "-C", repoPath, "log",
		fmt.Sprintf("--max-count=%d", limit),
		"--format=%H|%s|%an|%aI", "--name-only")
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("hindsight: import git history: %w", err)
	}

	imported := 0
	var cur *CommitParams
	flush := func() error {
		if cur == nil {
			return nil
		}
		n := int64(len(cur.Files))
		cur.FilesChanged = &n
		_, created, err := s.LogCommit(*cur)
		if err != nil {
			return err
		}
		if created {
			imported++
		}
		cur = nil
		return nil
	}

	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		// Header lines carry the pipe-separated format fields; anything
		// else is a file path from --name-only.
		if parts := strings.SplitN(line, "|", 4); len(parts) == 4 && len(parts[0]) == 40 {
			if err := flush(); err != nil {
				return imported, err
			}
			cur = &CommitParams{
				SHA:         parts[0],
				Message:     parts[1],
				Author:      parts[2],
				CommittedAt: parts[3],
			}
			continue
		}
		if cur != nil {
			cur.Files = append(cur.Files, line)
		}
	}
	if err := flush(); err != nil {
		return imported, err
	}
	return imported, nil
}

// ─── Decision record import ──────────────────────────────────────────────────

// adrSections maps markdown headings to decision fields, with the
// Spanish variants the format is commonly written in.
var (
	adrContextHeadings  = []string{"## Context", "## Contexto"}
	adrDecisionHeadings = []string{"## Decision", "## Decisión"}
)

// ImportDecisionRecords reads every *.md file in dir as an architecture
// decision record: the first level-1 heading becomes the title, the
// Context and Decision sections map to their fields, and each imported
// decision is tagged "imported-adr". Files missing either the title or
// the Decision section, and titles already imported, are skipped.
// Returns how many decisions were created.
func (s *Store) ImportDecisionRecords(dir string) (int, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.md"))
	if err != nil {
		return 0, fmt.Errorf("hindsight: import decision records: %w", err)
	}
	sort.Strings(paths)

	imported := 0
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return imported, fmt.Errorf("hindsight: import decision records: %w", err)
		}
		content := string(raw)

		title := extractHeading(content)
		if title == "" {
			continue
		}
		exists, err := s.adrImported(title)
		if err != nil {
			return imported, err
		}
		if exists {
			continue
		}

		context := extractSection(content, adrContextHeadings)
		chosen := extractSection(content, adrDecisionHeadings)
		if chosen == "" {
			continue
		}

		if _, err := s.LogDecision(DecisionParams{
			Title:   title,
			Context: context,
			Chosen:  chosen,
			Tags:    []string{"imported-adr"},
		}); err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}

func (s *Store) adrImported(title string) (bool, error) {
	existing, err := s.Decisions(DecisionFilter{Tags: []string{"imported-adr"}, Limit: s.cfg.ExportLimit})
	if err != nil {
		return false, err
	}
	for _, d := range existing {
		if d.Title == title {
			return true, nil
		}
	}
	return false, nil
}

// extractHeading returns the text of the first level-1 markdown heading.
func extractHeading(content string) string {
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "# "))
		}
	}
	return ""
}

// extractSection returns the body between any of the given headings and
// the next level-1 or level-2 heading. Deeper headings stay part of
// the section body.
func extractSection(content string, headings []string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		matched := false
		for _, h := range headings {
			if trimmed == h {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		var body []string
		for _, next := range lines[i+1:] {
			t := strings.TrimSpace(next)
			if strings.HasPrefix(t, "# ") || strings.HasPrefix(t, "## ") {
				break
			}
			body = append(body, next)
		}
		return strings.TrimSpace(strings.Join(body, "\n"))
	}
	return ""
}
