package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/chasedowdell/SprintSwarm/internal/backlog"
	"github.com/chasedowdell/SprintSwarm/internal/codebase"
	"github.com/chasedowdell/SprintSwarm/internal/codestore"
	"github.com/chasedowdell/SprintSwarm/internal/planning"
	"github.com/chasedowdell/SprintSwarm/internal/project"
	"github.com/chasedowdell/SprintSwarm/internal/standup"
)

var (
	colorAccent  = lipgloss.Color("#20B9B4")
	colorSuccess = lipgloss.Color("#2CD7C7")
	colorWarning = lipgloss.Color("#F4D03F")
	colorError   = lipgloss.Color("#E74C3C")
	colorMuted   = lipgloss.Color("#6C7A89")
)

var styles = struct {
	title   lipgloss.Style
	bold    lipgloss.Style
	muted   lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	error   lipgloss.Style
	box     lipgloss.Style
}{
	title:   lipgloss.NewStyle().Bold(true).Foreground(colorAccent),
	bold:    lipgloss.NewStyle().Bold(true),
	muted:   lipgloss.NewStyle().Foreground(colorMuted),
	success: lipgloss.NewStyle().Foreground(colorSuccess),
	warning: lipgloss.NewStyle().Foreground(colorWarning),
	error:   lipgloss.NewStyle().Foreground(colorError),
	box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorAccent).
		Padding(0, 1),
}

func statusStyle(s backlog.Status) lipgloss.Style {
	switch s {
	case backlog.StatusDone:
		return styles.success
	case backlog.StatusInProgress:
		return styles.warning
	default:
		return styles.muted
	}
}

func renderItems(w io.Writer, namespace string, items []backlog.WorkItem) {
	fmt.Fprintln(w, styles.title.Render(fmt.Sprintf("%s (%d)", namespace, len(items))))
	if len(items) == 0 {
		fmt.Fprintln(w, styles.muted.Render("  empty"))
		return
	}
	for _, it := range items {
		status := statusStyle(it.Status).Render(fmt.Sprintf("%-11s", it.Status))
		line := fmt.Sprintf("  %s %4d  %s  %s", styles.muted.Render(shortID(it.ID)), it.Priority, status, it.Description)
		if name := it.AssigneeName(); name != "" {
			line += styles.muted.Render(" @" + name)
		}
		fmt.Fprintln(w, line)
	}
}

func renderStructure(w io.Writer, s project.Structure) {
	var b strings.Builder
	b.WriteString(styles.bold.Render(s.ArchitectureParadigm))
	if s.ProjectPhilosophy != "" {
		b.WriteString("\n" + s.ProjectPhilosophy)
	}
	for _, f := range s.Files {
		b.WriteString(fmt.Sprintf("\n  %s  %s", f.FilePath(), styles.muted.Render(f.Purpose)))
	}
	fmt.Fprintln(w, styles.box.Render(b.String()))
}

func renderPlan(w io.Writer, planned []planning.PlannedItem) {
	fmt.Fprintln(w, styles.title.Render(fmt.Sprintf("Planned %d items", len(planned))))
	for _, p := range planned {
		fmt.Fprintf(w, "  %s %s\n", styles.muted.Render(shortID(p.Item.ID)), p.Item.Description)
		for _, t := range p.Tasks {
			fmt.Fprintf(w, "    - %s\n", t.Description)
		}
	}
}

func renderSummary(w io.Writer, s standup.Summary) {
	head := fmt.Sprintf("Standup %s  %s", shortID(s.RunID), s.Duration.Round(time.Millisecond))
	fmt.Fprintln(w, styles.title.Render(head))

	for _, item := range s.Items {
		mark := styles.success.Render("ok")
		if item.Failed() {
			mark = styles.error.Render(string(item.Failure))
		}
		fmt.Fprintf(w, "  [%s] %s\n", mark, item.Item.Description)
		for _, t := range item.Tasks {
			if t.Err != nil {
				fmt.Fprintf(w, "      %s %s: %v\n", styles.error.Render(string(t.Failure)), t.Description, t.Err)
				continue
			}
			fmt.Fprintf(w, "      %s %s %s\n", styles.success.Render(string(t.Decision)), t.FilePath, styles.muted.Render(t.Description))
		}
	}

	counts := fmt.Sprintf("items %d processed, %d failed; tasks %d succeeded, %d failed",
		s.ItemsProcessed, s.ItemsFailed, s.TasksSucceeded, s.TasksFailed)
	fmt.Fprintln(w, styles.bold.Render(counts))
	if len(s.Failures) > 0 {
		kinds := make([]string, 0, len(s.Failures))
		for k, n := range s.Failures {
			kinds = append(kinds, fmt.Sprintf("%s=%d", k, n))
		}
		sort.Strings(kinds)
		fmt.Fprintln(w, styles.warning.Render("failures: "+strings.Join(kinds, " ")))
	}
	if s.Canceled {
		fmt.Fprintln(w, styles.warning.Render("canceled before the backlog was drained"))
	}
}

func renderMatches(w io.Writer, matches []codebase.Match) {
	if len(matches) == 0 {
		fmt.Fprintln(w, styles.muted.Render("no matches"))
		return
	}
	for _, m := range matches {
		fmt.Fprintf(w, "%s %s\n", styles.muted.Render(fmt.Sprintf("%.3f", m.Score)), styles.bold.Render(m.ArtifactKey))
		if m.Description != "" {
			fmt.Fprintf(w, "      %s\n", m.Description)
		}
	}
}

func renderStats(w io.Writer, s codebase.Stats) {
	line := fmt.Sprintf("indexed %d of %d functions in %d files (%d unchanged, %d removed)",
		s.Indexed, s.Functions, s.Files, s.Skipped, s.Removed)
	fmt.Fprintln(w, styles.title.Render(line))
	if s.Failed > 0 {
		fmt.Fprintln(w, styles.warning.Render(fmt.Sprintf("%d functions could not be summarized", s.Failed)))
	}
}

func renderHistory(w io.Writer, commits []codestore.Commit) {
	if len(commits) == 0 {
		fmt.Fprintln(w, styles.muted.Render("no commits"))
		return
	}
	for _, c := range commits {
		fmt.Fprintf(w, "%s %s  %s %s\n",
			styles.muted.Render(shortID(c.ID)),
			c.Date.Format(time.DateTime),
			c.Message,
			styles.muted.Render("@"+c.Author))
	}
}
