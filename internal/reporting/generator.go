// Package reporting renders reports of stored reconciliation runs.
package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"airdrop-reconciler/internal/domain"
	"airdrop-reconciler/internal/storage"
)

// DefaultTopN is the row limit of the ranking tables.
const DefaultTopN = 10

// Generator produces reports from stored runs.
type Generator struct {
	runStore storage.RunStore
	topN     int
	now      func() time.Time
}

// NewGenerator creates a new report generator.
func NewGenerator(runStore storage.RunStore) *Generator {
	return &Generator{
		runStore: runStore,
		topN:     DefaultTopN,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// WithTopN sets the row limit of the ranking tables. Values <= 0 are ignored.
func (g *Generator) WithTopN(n int) *Generator {
	if n > 0 {
		g.topN = n
	}
	return g
}

// Generate builds the report of one run.
// Returns storage.ErrNotFound if the run does not exist.
func (g *Generator) Generate(ctx context.Context, runID string) (*Report, error) {
	run, err := g.runStore.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}

	records, err := g.runStore.GetRecords(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("get records %s: %w", runID, err)
	}

	runs, err := g.runStore.ListRuns(ctx, run.Season)
	if err != nil {
		return nil, fmt.Errorf("list runs %s: %w", run.Season, err)
	}

	return &Report{
		GeneratedAt:      g.now(),
		Run:              run,
		Sources:          sourceBreakdown(records),
		TopRecipients:    topRecipients(records, g.topN),
		LargestOverrides: largestOverrides(records, g.topN),
		SeasonHistory:    seasonHistory(runs, runID),
	}, nil
}

func sourceBreakdown(records []domain.ReconciledRecord) []SourceRow {
	rows := []SourceRow{
		{Source: domain.RewardSourceLocal},
		{Source: domain.RewardSourceRemote},
	}
	for _, r := range records {
		i := 0
		if r.Source == domain.RewardSourceRemote {
			i = 1
		}
		rows[i].Rows++
		rows[i].BaseTotal += r.BaseTotal
	}
	return rows
}

func topRecipients(records []domain.ReconciledRecord, n int) []RecipientRow {
	rows := make([]RecipientRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, RecipientRow{Address: r.Address, BaseTotal: r.BaseTotal, Source: r.Source})
	}

	// Deterministic: base total DESC, address ASC
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].BaseTotal != rows[j].BaseTotal {
			return rows[i].BaseTotal > rows[j].BaseTotal
		}
		return rows[i].Address < rows[j].Address
	})

	if len(rows) > n {
		rows = rows[:n]
	}
	return rows
}

func largestOverrides(records []domain.ReconciledRecord, n int) []OverrideRow {
	var rows []OverrideRow
	for _, r := range records {
		if r.Source != domain.RewardSourceRemote {
			continue
		}
		rows = append(rows, OverrideRow{
			Address:     r.Address,
			LocalTotal:  r.LocalBaseTotal,
			RemoteTotal: r.BaseTotal,
			Delta:       r.BaseTotal - r.LocalBaseTotal,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Delta != rows[j].Delta {
			return rows[i].Delta > rows[j].Delta
		}
		return rows[i].Address < rows[j].Address
	})

	if len(rows) > n {
		rows = rows[:n]
	}
	return rows
}

func seasonHistory(runs []*domain.RunSummary, current string) []HistoryRow {
	rows := make([]HistoryRow, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, HistoryRow{
			RunID:     r.RunID,
			StartedAt: r.StartedAt,
			Status:    r.Status,
			Kept:      r.Kept,
			TotalBase: r.TotalBase,
			Current:   r.RunID == current,
		})
	}
	return rows
}
