package reporting

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder
	run := r.Run

	// Header
	sb.WriteString(fmt.Sprintf("# Reconciliation Report: %s\n\n", run.Season))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Run: `%s` | Status: %s | Started: %s\n\n",
		run.RunID, run.Status, run.StartedAt.UTC().Format(time.RFC3339)))

	// Run Summary
	sb.WriteString("## Run Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Candidates Read | %d |\n", run.CandidatesRead))
	sb.WriteString(fmt.Sprintf("| Duplicate Rows | %d |\n", run.DuplicateCandidates))
	sb.WriteString(fmt.Sprintf("| Prefiltered | %d |\n", run.Prefiltered))
	sb.WriteString(fmt.Sprintf("| Remote Records | %d |\n", run.RemoteRecords))
	sb.WriteString(fmt.Sprintf("| Malformed Remotes | %d |\n", run.MalformedRemotes))
	sb.WriteString(fmt.Sprintf("| Remote Overrides | %d |\n", run.RemoteOverrides))
	sb.WriteString(fmt.Sprintf("| Ambiguous Remotes | %d |\n", run.AmbiguousRemotes))
	sb.WriteString(fmt.Sprintf("| Invalid Addresses | %d |\n", run.InvalidAddresses))
	sb.WriteString(fmt.Sprintf("| Excluded | %d |\n", run.Excluded))
	sb.WriteString(fmt.Sprintf("| Below Threshold | %d |\n", run.BelowThreshold))
	sb.WriteString(fmt.Sprintf("| Kept | %d |\n", run.Kept))
	sb.WriteString(fmt.Sprintf("| Total Waifu | %s |\n", num(run.TotalWaifu)))
	sb.WriteString(fmt.Sprintf("| Total Llama | %s |\n", num(run.TotalLlama)))
	sb.WriteString(fmt.Sprintf("| Total Base | %s |\n", num(run.TotalBase)))
	sb.WriteString("\n")

	// Sources
	sb.WriteString("## Reward Sources\n\n")
	sb.WriteString("| Source | Rows | Base Total |\n")
	sb.WriteString("|--------|------|------------|\n")
	for _, s := range r.Sources {
		sb.WriteString(fmt.Sprintf("| %s | %d | %s |\n", s.Source, s.Rows, num(s.BaseTotal)))
	}
	sb.WriteString("\n")

	// Top recipients
	sb.WriteString("## Top Recipients\n\n")
	if len(r.TopRecipients) > 0 {
		sb.WriteString("| # | Address | Base Total | Source |\n")
		sb.WriteString("|---|---------|------------|--------|\n")
		for i, row := range r.TopRecipients {
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s |\n", i+1, row.Address, num(row.BaseTotal), row.Source))
		}
	} else {
		sb.WriteString("No rows stored for this run.\n")
	}
	sb.WriteString("\n")

	// Overrides
	sb.WriteString("## Largest Remote Overrides\n\n")
	if len(r.LargestOverrides) > 0 {
		sb.WriteString("| Address | Local | Remote | Delta |\n")
		sb.WriteString("|---------|-------|--------|-------|\n")
		for _, row := range r.LargestOverrides {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
				row.Address, num(row.LocalTotal), num(row.RemoteTotal), num(row.Delta)))
		}
	} else {
		sb.WriteString("No remote overrides.\n")
	}
	sb.WriteString("\n")

	// History
	sb.WriteString("## Season History\n\n")
	sb.WriteString("| Run | Started | Status | Kept | Total Base |\n")
	sb.WriteString("|-----|---------|--------|------|------------|\n")
	for _, h := range r.SeasonHistory {
		id := h.RunID
		if h.Current {
			id = "**" + id + "**"
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %d | %s |\n",
			id, h.StartedAt.UTC().Format(time.RFC3339), h.Status, h.Kept, num(h.TotalBase)))
	}

	return sb.String()
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
