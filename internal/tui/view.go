package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/hindsightdb/hindsight/internal/store"
)

// ─── Logo ────────────────────────────────────────────────────────────────────

func renderLogo() string {
	logoText := []string{
		`    __  __ ____ _   __ ____   _____ ____ ______ __  __ ______`,
		`   / / / //  _// | / // __ \ / ___//  _// ____// / / //_  __/`,
		`  / /_/ / / / /  |/ // / / / \__ \ / / / / __ / /_/ /  / /   `,
		` / __  /_/ / / /|  // /_/ / ___/ // / / /_/ // __  /  / /    `,
		`/_/ /_//___//_/ |_//_____/ /____/___/ \____//_/ /_/  /_/     `,
	}

	frameStyle := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(colorOverlay).
		Padding(0, 1).
		MarginBottom(1)

	textStyle := lipgloss.NewStyle().Foreground(colorText).Bold(true)
	accentStyle := lipgloss.NewStyle().Foreground(colorLavender).Bold(true)
	taglineStyle := lipgloss.NewStyle().Foreground(colorSubtext).Italic(true)

	var b strings.Builder

	// Header line inside box
	b.WriteString(accentStyle.Render(" ⚡ MEMORY ONLINE ") + strings.Repeat(" ", 30) + accentStyle.Render(" DB: OK ") + "\n\n")

	// Logo body
	for _, line := range logoText {
		b.WriteString(" " + textStyle.Render(line) + "\n")
	}
	b.WriteString("\n")

	// Footer inside box
	b.WriteString(taglineStyle.Render(" > hindsight — decide once, remember forever"))

	return frameStyle.Render(b.String()) + "\n"
}

// ─── View (main router) ─────────────────────────────────────────────────────

func (m Model) View() string {
	var content string

	switch m.Screen {
	case ScreenDashboard:
		content = m.viewDashboard()
	case ScreenSearch:
		content = m.viewSearch()
	case ScreenSearchResults:
		content = m.viewSearchResults()
	case ScreenDecisions:
		content = m.viewDecisions()
	case ScreenDecisionDetail:
		content = m.viewDecisionDetail()
	case ScreenTimeline:
		content = m.viewTimeline()
	case ScreenPinned:
		content = m.viewPinned()
	default:
		content = "Unknown screen"
	}

	// Show error if present
	if m.ErrorMsg != "" {
		content += "\n" + errorStyle.Render("Error: "+m.ErrorMsg)
	}

	return appStyle.Render(content)
}

// ─── Dashboard ───────────────────────────────────────────────────────────────

func (m Model) viewDashboard() string {
	var b strings.Builder

	// Logo header
	b.WriteString(renderLogo())
	b.WriteString("\n")

	// Stats card
	if m.Stats != nil {
		statsContent := fmt.Sprintf(
			"%s %s\n%s %s\n%s %s\n%s %s",
			statNumberStyle.Render(fmt.Sprintf("%d", m.Stats.TotalIterations)),
			statLabelStyle.Render("iterations"),
			statNumberStyle.Render(fmt.Sprintf("%d", m.Stats.TotalDecisions)),
			statLabelStyle.Render("decisions"),
			statNumberStyle.Render(fmt.Sprintf("%d", m.Stats.TotalCommits)),
			statLabelStyle.Render("commits"),
			statNumberStyle.Render(fmt.Sprintf("%d", m.Stats.TotalEvents)),
			statLabelStyle.Render("events"),
		)
		b.WriteString(statCardStyle.Render(statsContent))
		b.WriteString("\n")
	} else {
		b.WriteString(statCardStyle.Render("Loading stats..."))
		b.WriteString("\n")
	}

	// Active iteration banner
	if m.ActiveIteration != nil {
		it := m.ActiveIteration
		b.WriteString(titleStyle.Render("  Active Iteration"))
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("  %s %s  %s\n",
			idStyle.Render(fmt.Sprintf("#%d", it.ID)),
			listItemStyle.Render(it.Command),
			timestampStyle.Render("since "+it.StartedAt)))
		if len(it.PhasesCompleted) > 0 {
			b.WriteString(fmt.Sprintf("    %s\n",
				contentPreviewStyle.Render("phases: "+strings.Join(it.PhasesCompleted, " → "))))
		}
		b.WriteString("\n")
	}

	// Menu
	b.WriteString(titleStyle.Render("  Actions"))
	b.WriteString("\n")

	for i, item := range dashboardMenuItems {
		if i == m.Cursor {
			b.WriteString(menuSelectedStyle.Render("▸ " + item))
		} else {
			b.WriteString(menuItemStyle.Render("  " + item))
		}
		b.WriteString("\n")
	}

	// Help
	b.WriteString(helpStyle.Render(fmt.Sprintf("\n  v%s • j/k navigate • enter select • s search • q quit", m.Version)))

	return b.String()
}

// ─── Search ──────────────────────────────────────────────────────────────────

func (m Model) viewSearch() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("  Search Memory"))
	b.WriteString("\n\n")

	b.WriteString(searchInputStyle.Render(m.SearchInput.View()))
	b.WriteString("\n\n")

	b.WriteString(helpStyle.Render("  Type a query and press enter • esc go back"))

	return b.String()
}

// ─── Search Results ──────────────────────────────────────────────────────────

func (m Model) viewSearchResults() string {
	var b strings.Builder

	resultCount := len(m.SearchResults)
	header := fmt.Sprintf("  Search: %q — %d result", m.SearchQuery, resultCount)
	if resultCount != 1 {
		header += "s"
	}
	b.WriteString(headerStyle.Render(header))
	b.WriteString("\n")

	if resultCount == 0 {
		b.WriteString(noResultsStyle.Render("Nothing matched. Try a different query."))
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("  / new search • esc back"))
		return b.String()
	}

	visibleItems := (m.Height - 10) / 2 // 2 lines per result item
	if visibleItems < 3 {
		visibleItems = 3
	}

	end := m.Scroll + visibleItems
	if end > resultCount {
		end = resultCount
	}

	for i := m.Scroll; i < end; i++ {
		b.WriteString(m.renderSearchResult(i, m.SearchResults[i]))
	}

	// Scroll indicator
	if resultCount > visibleItems {
		b.WriteString(fmt.Sprintf("\n  %s",
			timestampStyle.Render(fmt.Sprintf("showing %d-%d of %d", m.Scroll+1, end, resultCount))))
	}

	b.WriteString(helpStyle.Render("\n  j/k navigate • enter detail • / search • esc back"))

	return b.String()
}

// ─── Decisions ───────────────────────────────────────────────────────────────

func (m Model) viewDecisions() string {
	var b strings.Builder

	count := len(m.Decisions)
	header := fmt.Sprintf("  Decisions — %d total", count)
	b.WriteString(headerStyle.Render(header))
	b.WriteString("\n")

	if count == 0 {
		b.WriteString(noResultsStyle.Render("No decisions recorded yet."))
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("  esc back"))
		return b.String()
	}

	visibleItems := (m.Height - 8) / 2 // 2 lines per decision item
	if visibleItems < 3 {
		visibleItems = 3
	}

	end := m.Scroll + visibleItems
	if end > count {
		end = count
	}

	for i := m.Scroll; i < end; i++ {
		b.WriteString(m.renderDecisionListItem(i, m.Decisions[i]))
	}

	if count > visibleItems {
		b.WriteString(fmt.Sprintf("\n  %s",
			timestampStyle.Render(fmt.Sprintf("showing %d-%d of %d", m.Scroll+1, end, count))))
	}

	b.WriteString(helpStyle.Render("\n  j/k navigate • enter detail • esc back"))

	return b.String()
}

// ─── Decision Detail ─────────────────────────────────────────────────────────

func (m Model) viewDecisionDetail() string {
	var b strings.Builder

	if m.SelectedDecision == nil {
		b.WriteString(headerStyle.Render("  Decision Detail"))
		b.WriteString("\n")
		b.WriteString(noResultsStyle.Render("Loading..."))
		return b.String()
	}

	d := m.SelectedDecision

	header := fmt.Sprintf("  Decision #%d", d.ID)
	b.WriteString(headerStyle.Render(header))
	b.WriteString("\n")

	// Metadata rows
	b.WriteString(fmt.Sprintf("%s %s\n",
		detailLabelStyle.Render("Title:"),
		detailValueStyle.Bold(true).Render(d.Title)))

	b.WriteString(fmt.Sprintf("%s %s\n",
		detailLabelStyle.Render("Status:"),
		typeBadgeStyle.Render(d.Status)))

	b.WriteString(fmt.Sprintf("%s %s\n",
		detailLabelStyle.Render("Decided:"),
		timestampStyle.Render(d.DecidedAt)))

	if d.IterationID != nil {
		b.WriteString(fmt.Sprintf("%s %s\n",
			detailLabelStyle.Render("Iteration:"),
			idStyle.Render(fmt.Sprintf("#%d", *d.IterationID))))
	}
	if d.Phase != nil {
		b.WriteString(fmt.Sprintf("%s %s\n",
			detailLabelStyle.Render("Phase:"),
			detailValueStyle.Render(*d.Phase)))
	}
	if len(d.Tags) > 0 {
		b.WriteString(fmt.Sprintf("%s %s\n",
			detailLabelStyle.Render("Tags:"),
			tagStyle.Render(strings.Join(d.Tags, ", "))))
	}

	// Body sections, scrollable as one block
	var body []string
	addSection := func(title, text string) {
		if text == "" {
			return
		}
		body = append(body, sectionHeadingStyle.Render("  "+title))
		for _, line := range strings.Split(text, "\n") {
			body = append(body, detailContentStyle.Render(line))
		}
	}
	if d.Context != nil {
		addSection("Context", *d.Context)
	}
	addSection("Chosen", d.Chosen)
	if len(d.Alternatives) > 0 {
		body = append(body, sectionHeadingStyle.Render("  Alternatives"))
		for _, a := range d.Alternatives {
			body = append(body, detailContentStyle.Render("• "+a))
		}
	}
	if d.Rationale != nil {
		addSection("Rationale", *d.Rationale)
	}
	if d.Impact != nil {
		addSection("Impact", *d.Impact)
	}
	if len(m.OutgoingLinks) > 0 || len(m.IncomingLinks) > 0 {
		body = append(body, sectionHeadingStyle.Render("  Links"))
		for _, l := range m.OutgoingLinks {
			body = append(body, detailContentStyle.Render(
				fmt.Sprintf("→ %s decision #%d", l.LinkType, l.TargetID)))
		}
		for _, l := range m.IncomingLinks {
			body = append(body, detailContentStyle.Render(
				fmt.Sprintf("← decision #%d %s this", l.SourceID, l.LinkType)))
		}
	}
	if len(m.LinkedCommits) > 0 {
		body = append(body, sectionHeadingStyle.Render("  Commits"))
		for _, c := range m.LinkedCommits {
			msg := ""
			if c.Message != nil {
				msg = truncateStr(*c.Message, 60)
			}
			body = append(body, detailContentStyle.Render(
				fmt.Sprintf("%s  %s", shortSHA(c.SHA), msg)))
		}
	}

	maxLines := m.Height - 14
	if maxLines < 5 {
		maxLines = 5
	}
	maxScroll := len(body) - maxLines
	if maxScroll < 0 {
		maxScroll = 0
	}
	if m.DetailScroll > maxScroll {
		m.DetailScroll = maxScroll
	}
	end := m.DetailScroll + maxLines
	if end > len(body) {
		end = len(body)
	}
	b.WriteString("\n")
	for i := m.DetailScroll; i < end; i++ {
		b.WriteString(body[i])
		b.WriteString("\n")
	}
	if len(body) > maxLines {
		b.WriteString(fmt.Sprintf("\n  %s",
			timestampStyle.Render(fmt.Sprintf("line %d-%d of %d", m.DetailScroll+1, end, len(body)))))
	}

	b.WriteString(helpStyle.Render("\n  j/k scroll • esc back"))

	return b.String()
}

// ─── Timeline ────────────────────────────────────────────────────────────────

func (m Model) viewTimeline() string {
	var b strings.Builder

	count := len(m.Events)
	b.WriteString(headerStyle.Render(fmt.Sprintf("  Timeline — %d events", count)))
	b.WriteString("\n")

	if count == 0 {
		b.WriteString(noResultsStyle.Render("No events recorded yet."))
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("  esc back"))
		return b.String()
	}

	visibleItems := m.Height - 8
	if visibleItems < 5 {
		visibleItems = 5
	}
	end := m.Scroll + visibleItems
	if end > count {
		end = count
	}

	for i := m.Scroll; i < end; i++ {
		e := m.Events[i]
		phase := ""
		if e.Phase != nil {
			phase = " / " + *e.Phase
		}
		iter := ""
		if e.IterationID != nil {
			iter = "  " + idStyle.Render(fmt.Sprintf("it#%d", *e.IterationID))
		}
		b.WriteString(fmt.Sprintf("  %s %s %s%s%s\n",
			timelineConnectorStyle.Render("│"),
			timestampStyle.Render(e.CreatedAt),
			typeBadgeStyle.Render(e.EventType),
			timelineItemStyle.Render(phase),
			iter))
	}

	if count > visibleItems {
		b.WriteString(fmt.Sprintf("\n  %s",
			timestampStyle.Render(fmt.Sprintf("showing %d-%d of %d", m.Scroll+1, end, count))))
	}

	b.WriteString(helpStyle.Render("\n  j/k scroll • esc back"))

	return b.String()
}

// ─── Pinned ──────────────────────────────────────────────────────────────────

func (m Model) viewPinned() string {
	var b strings.Builder

	count := len(m.Pins)
	b.WriteString(headerStyle.Render(fmt.Sprintf("  Pinned Items — %d total", count)))
	b.WriteString("\n")

	if count == 0 {
		b.WriteString(noResultsStyle.Render("Nothing pinned yet."))
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("  esc back"))
		return b.String()
	}

	visibleItems := m.Height - 8
	if visibleItems < 5 {
		visibleItems = 5
	}
	end := m.Scroll + visibleItems
	if end > count {
		end = count
	}

	for i := m.Scroll; i < end; i++ {
		p := m.Pins[i]
		cursor := "  "
		style := listItemStyle
		if i == m.Cursor {
			cursor = "▸ "
			style = listSelectedStyle
		}

		label := ""
		if p.ItemID != nil {
			label = fmt.Sprintf("#%d", *p.ItemID)
		} else if p.ItemRef != nil {
			label = truncateStr(*p.ItemRef, 50)
		}
		note := ""
		if p.Note != nil {
			note = "  " + contentPreviewStyle.Render(truncateStr(*p.Note, 60))
		}

		b.WriteString(fmt.Sprintf("%s%s %s %s%s\n",
			cursor,
			statNumberStyle.Render(fmt.Sprintf("p%d", p.Priority)),
			typeBadgeStyle.Render(fmt.Sprintf("[%-10s]", p.ItemType)),
			style.Render(label),
			note))
	}

	if count > visibleItems {
		b.WriteString(fmt.Sprintf("\n  %s",
			timestampStyle.Render(fmt.Sprintf("showing %d-%d of %d", m.Scroll+1, end, count))))
	}

	b.WriteString(helpStyle.Render("\n  j/k navigate • enter open decision • esc back"))

	return b.String()
}

// ─── Shared Renderers ────────────────────────────────────────────────────────

func (m Model) renderSearchResult(index int, r store.SearchResult) string {
	cursor := "  "
	style := listItemStyle
	if index == m.Cursor {
		cursor = "▸ "
		style = listSelectedStyle
	}

	switch r.Kind {
	case store.SourceDecision:
		d := r.Decision
		line := fmt.Sprintf("%s%s %s %s  %s\n",
			cursor,
			idStyle.Render(fmt.Sprintf("#%-5d", d.ID)),
			typeBadgeStyle.Render("[decision]"),
			style.Render(truncateStr(d.Title, 50)),
			timestampStyle.Render(d.DecidedAt))
		line += contentPreviewStyle.Render(truncateStr(d.Chosen, 80)) + "\n"
		return line
	case store.SourceCommit:
		c := r.Commit
		msg := ""
		if c.Message != nil {
			msg = *c.Message
		}
		line := fmt.Sprintf("%s%s %s %s  %s\n",
			cursor,
			idStyle.Render(shortSHA(c.SHA)),
			typeBadgeStyle.Render("[commit]  "),
			style.Render(truncateStr(msg, 50)),
			timestampStyle.Render(c.CommittedAt))
		if len(c.Files) > 0 {
			line += contentPreviewStyle.Render(truncateStr(strings.Join(c.Files, ", "), 80)) + "\n"
		} else {
			line += "\n"
		}
		return line
	}
	return ""
}

func (m Model) renderDecisionListItem(index int, d store.Decision) string {
	cursor := "  "
	style := listItemStyle
	if index == m.Cursor {
		cursor = "▸ "
		style = listSelectedStyle
	}

	tags := ""
	if len(d.Tags) > 0 {
		tags = "  " + tagStyle.Render(strings.Join(d.Tags, ","))
	}

	line := fmt.Sprintf("%s%s %s %s%s  %s\n",
		cursor,
		idStyle.Render(fmt.Sprintf("#%-5d", d.ID)),
		typeBadgeStyle.Render(fmt.Sprintf("[%-10s]", d.Status)),
		style.Render(truncateStr(d.Title, 50)),
		tags,
		timestampStyle.Render(d.DecidedAt))

	// Chosen option preview on second line
	preview := truncateStr(d.Chosen, 80)
	if preview != "" {
		line += contentPreviewStyle.Render(preview) + "\n"
	}

	return line
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func truncateStr(s string, max int) string {
	// Remove newlines for single-line display
	s = strings.ReplaceAll(s, "\n", " ")
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
