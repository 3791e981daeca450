package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/planterhq/planter/internal/filesystem"
	"github.com/planterhq/planter/internal/traversal"
)

//nolint:gochecknoglobals
var (
	createdStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575"))

	matchesStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))

	conflictStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF5F87"))

	targetStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#5F87FF"))

	summaryStyle = lipgloss.NewStyle().
			Faint(true)
)

// renderReport renders a report as a long directory listing, one line
// per visited path in first-visited order, followed by a summary of the
// operations the run recorded.
func renderReport(report *traversal.Report, applied bool) string {
	var b strings.Builder

	for _, res := range report.Entries() {
		b.WriteString(renderEntry(res))
		b.WriteString("\n")
	}

	b.WriteString(renderSummary(report, applied))

	return b.String()
}

func renderEntry(res *traversal.PathResult) string {
	line := fmt.Sprintf("%s%s %-8s %-8s %s",
		kindChar(res.Kind), res.Mode.Symbolic(), res.Owner, res.Group, res.Path)

	if res.Target != "" {
		line += targetStyle.Render(" -> " + res.Target)
	}

	switch res.Outcome {
	case traversal.OutcomeCreated:
		line += createdStyle.Render("  [created]")
	case traversal.OutcomeAlreadyMatches:
		if len(res.Operations) > 0 {
			line += createdStyle.Render("  [updated]")
		} else {
			line += matchesStyle.Render("  [matches]")
		}
	case traversal.OutcomeConflict:
		line += conflictStyle.Render("  [conflict]")
		if res.Err != nil {
			line += conflictStyle.Render(" " + res.Err.Error())
		}
	}

	return line
}

func renderSummary(report *traversal.Report, applied bool) string {
	var (
		created   int
		matches   int
		conflicts int
		updates   int
		bytes     uint64
	)

	for _, res := range report.Entries() {
		switch res.Outcome {
		case traversal.OutcomeCreated:
			created++
		case traversal.OutcomeAlreadyMatches:
			matches++
			if len(res.Operations) > 0 {
				updates++
			}
		case traversal.OutcomeConflict:
			conflicts++
		}
	}

	for _, op := range report.Operations() {
		if op.Kind == traversal.OpCreateFile {
			bytes += uint64(op.Size)
		}
	}

	verb := "simulated"
	if applied {
		verb = "applied"
	}

	summary := fmt.Sprintf("%s: %d created, %d matching (%d updated), %d conflicting; %s of file content",
		verb, created, matches, updates, conflicts, humanize.IBytes(bytes))

	return summaryStyle.Render(summary) + "\n"
}

func kindChar(kind filesystem.Kind) string {
	switch kind {
	case filesystem.KindDirectory:
		return "d"
	case filesystem.KindSymlink:
		return "l"
	case filesystem.KindFile:
		return "-"
	default:
		return "?"
	}
}
