package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Treasury Activity Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	if r.Network != "" {
		sb.WriteString(fmt.Sprintf("Network: %s\n\n", r.Network))
	}

	// Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Operations | %d |\n", r.Summary.TotalOperations))
	sb.WriteString(fmt.Sprintf("| Confirmed | %d |\n", r.Summary.Confirmed))
	sb.WriteString(fmt.Sprintf("| Rejected | %d |\n", r.Summary.Rejected))
	sb.WriteString(fmt.Sprintf("| Timed Out | %d |\n", r.Summary.TimedOut))
	sb.WriteString(fmt.Sprintf("| In Flight | %d |\n", r.Summary.InFlight))
	sb.WriteString(fmt.Sprintf("| Events | %d |\n", r.Summary.TotalEvents))
	if r.Summary.TotalEvents > 0 {
		sb.WriteString(fmt.Sprintf("| Ledger Range | %d - %d |\n", r.Summary.FirstLedger, r.Summary.LastLedger))
	}
	sb.WriteString("\n")

	// Operations
	sb.WriteString("## Operations\n\n")
	if len(r.Operations) > 0 {
		sb.WriteString("| Created | Contract | Method | State | Tx | Error |\n")
		sb.WriteString("|---------|----------|--------|-------|----|-------|\n")
		for _, o := range r.Operations {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s |\n",
				formatTime(o.CreatedAt), o.Contract, o.Method, o.State,
				shortHash(o.TxHash), escapeCell(o.ErrorKind)))
		}
	} else {
		sb.WriteString("No operations recorded.\n")
	}
	sb.WriteString("\n")

	// Actions
	sb.WriteString("## Actions\n\n")
	if len(r.ActionCounts) > 0 {
		sb.WriteString("| Contract | Action | Count |\n")
		sb.WriteString("|----------|--------|-------|\n")
		for _, a := range r.ActionCounts {
			sb.WriteString(fmt.Sprintf("| %s | %s | %d |\n", a.Contract, a.Action, a.Count))
		}
	} else {
		sb.WriteString("No contract activity observed.\n")
	}
	sb.WriteString("\n")

	// Activity
	sb.WriteString("## Activity\n\n")
	if len(r.Activity) > 0 {
		sb.WriteString("| Ledger | Contract | Topics | Value | Tx |\n")
		sb.WriteString("|--------|----------|--------|-------|----|\n")
		for _, a := range r.Activity {
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s |\n",
				a.Ledger, a.Contract, joinTopics(a.Topics), escapeCell(a.Value), shortHash(a.TxHash)))
		}
	} else {
		sb.WriteString("No contract activity observed.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

func shortHash(h string) string {
	if len(h) <= 12 {
		return h
	}
	return h[:8] + "…"
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
