// Package pipeline wires the reconciliation stages into a single run:
// read candidates, build the exclusion set, resolve remote stats, reconcile,
// filter, aggregate, then write and persist the result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"airdrop-reconciler/internal/aggregate"
	"airdrop-reconciler/internal/domain"
	"airdrop-reconciler/internal/eligibility"
	"airdrop-reconciler/internal/exclusion"
	"airdrop-reconciler/internal/observability"
	"airdrop-reconciler/internal/reconcile"
	"airdrop-reconciler/internal/stats"
	"airdrop-reconciler/internal/statsapi"
	"airdrop-reconciler/internal/storage"
	"airdrop-reconciler/internal/tabular"
)

// Config is the explicit run configuration.
type Config struct {
	Season        string
	CandidatePath string

	// Exclusion sources. Empty paths are skipped.
	ClusterGlob     string
	ClaimedPath     string
	ExtraExclusions []string
	// ExclusionList names the stored list read as an extra source and
	// updated with the file-based set when an ExclusionStore is attached.
	// ExtraExclusions apply to this run only and are never stored.
	ExclusionList string

	// StatsPath is a remote stats dump. When empty and a StatsGetter is
	// attached, stats are fetched live for every candidate.
	StatsPath       string
	DuplicatePolicy stats.DuplicatePolicy
	Workers         int
	RequestDelay    time.Duration

	// OutputPath is the result table destination. Empty skips writing.
	OutputPath  string
	SortByTotal bool
}

// Pipeline runs one reconciliation.
type Pipeline struct {
	cfg            Config
	logger         *zap.Logger
	getter         statsapi.StatsGetter
	runStore       storage.RunStore
	snapshotStore  storage.RewardSnapshotStore
	exclusionStore storage.ExclusionStore
	clock          func() time.Time
	newID          func() string
}

// New creates a pipeline for cfg.
func New(cfg Config) *Pipeline {
	return &Pipeline{
		cfg:    cfg,
		logger: zap.NewNop(),
		clock:  func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// WithLogger sets the logger.
func (p *Pipeline) WithLogger(logger *zap.Logger) *Pipeline {
	if logger != nil {
		p.logger = logger
	}
	return p
}

// WithStatsGetter enables live stats fetching when no dump is configured.
func (p *Pipeline) WithStatsGetter(g statsapi.StatsGetter) *Pipeline {
	p.getter = g
	return p
}

// WithRunStore persists run summaries and final rows.
func (p *Pipeline) WithRunStore(s storage.RunStore) *Pipeline {
	p.runStore = s
	return p
}

// WithSnapshotStore captures final rows into the snapshot history.
func (p *Pipeline) WithSnapshotStore(s storage.RewardSnapshotStore) *Pipeline {
	p.snapshotStore = s
	return p
}

// WithExclusionStore reads and updates the stored exclusion list.
func (p *Pipeline) WithExclusionStore(s storage.ExclusionStore) *Pipeline {
	p.exclusionStore = s
	return p
}

// WithClock sets a custom clock function for deterministic output.
func (p *Pipeline) WithClock(clock func() time.Time) *Pipeline {
	p.clock = clock
	return p
}

// WithIDGenerator sets the run ID generator.
func (p *Pipeline) WithIDGenerator(gen func() string) *Pipeline {
	p.newID = gen
	return p
}

// Run executes the pipeline with default collaborators.
func Run(ctx context.Context, cfg Config, logger *zap.Logger) (*domain.RunSummary, error) {
	return New(cfg).WithLogger(logger).Run(ctx)
}

// Run executes the pipeline. When every candidate is filtered out it returns
// the summary with status empty together with aggregate.ErrEmptyResult, and no
// output file is written.
func (p *Pipeline) Run(ctx context.Context) (*domain.RunSummary, error) {
	start := p.clock()
	summary := &domain.RunSummary{
		RunID:     p.newID(),
		Season:    p.cfg.Season,
		StartedAt: start,
	}
	log := p.logger.With(zap.String("run_id", summary.RunID), zap.String("season", p.cfg.Season))

	// 1. Candidates
	layout := tabular.NewLayout(p.cfg.Season)
	table, err := tabular.ReadCandidatesFile(p.cfg.CandidatePath, layout)
	if err != nil {
		return nil, fmt.Errorf("read candidates: %w", err)
	}
	for _, rowErr := range table.Skipped {
		log.Warn("skipping candidate row", zap.Int("line", rowErr.Line), zap.Error(rowErr.Err))
	}
	for _, dup := range table.Duplicates {
		log.Warn("dropping duplicate candidate row", zap.Int("line", dup.Line), zap.Error(dup.Err))
	}
	summary.CandidatesRead = len(table.Candidates)
	summary.DuplicateCandidates = len(table.Duplicates)
	log.Info("candidates loaded",
		zap.String("path", p.cfg.CandidatePath),
		zap.Int("rows", len(table.Candidates)),
		zap.Int("skipped", len(table.Skipped)),
		zap.Int("duplicates", len(table.Duplicates)),
	)

	// 2. Exclusion set
	excluded, err := p.buildExclusions(ctx, log)
	if err != nil {
		return nil, err
	}

	// 3. Remote stats
	resolver, malformed, err := p.resolveStats(ctx, log, table.Candidates)
	if err != nil {
		return nil, err
	}
	summary.RemoteRecords = resolver.Len()
	summary.MalformedRemotes = malformed
	if ambiguous := resolver.Ambiguous(); len(ambiguous) > 0 {
		log.Warn("remote records carry neither revisedTokens nor totalTokens; using local totals",
			zap.Int("count", len(ambiguous)),
			zap.Stringers("addresses", ambiguous),
		)
	}

	// 4. Reconcile and filter
	candidates, prefiltered := eligibility.Prefilter(table.Candidates, resolver)
	summary.Prefiltered = prefiltered
	observability.RecordCandidates(len(table.Candidates), len(table.Skipped), len(table.Duplicates), prefiltered)

	reconciled, rst := reconcile.ReconcileAll(candidates, resolver)
	summary.RemoteOverrides = rst.RemoteOverrides
	summary.AmbiguousRemotes = rst.AmbiguousRemotes
	observability.RecordReconciliation(rst.RemoteOverrides, rst.AmbiguousRemotes, malformed)

	kept, diag := eligibility.Filter(reconciled, excluded)
	summary.InvalidAddresses = diag.InvalidAddress
	summary.Excluded = diag.Excluded
	summary.BelowThreshold = diag.BelowThreshold
	summary.Kept = diag.Kept
	observability.RecordFilter(diag.InvalidAddress, diag.Excluded, diag.BelowThreshold, diag.Kept)

	log.Info("records filtered",
		zap.Int("input", diag.Input),
		zap.Int("kept", diag.Kept),
		zap.Int("invalid_address", diag.InvalidAddress),
		zap.Int("excluded", diag.Excluded),
		zap.Int("below_threshold", diag.BelowThreshold),
		zap.Int("remote_overrides", rst.RemoteOverrides),
	)
	for kind, n := range diag.InvalidByKind {
		log.Debug("invalid addresses by kind", zap.String("kind", string(kind)), zap.Int("count", n))
	}

	if p.cfg.SortByTotal {
		aggregate.SortByTotalDesc(kept)
	}

	// 5. Aggregate
	rs, err := aggregate.Aggregate(kept)
	if errors.Is(err, aggregate.ErrEmptyResult) {
		summary.Status = domain.RunStatusEmpty
		summary.CompletedAt = p.clock()
		log.Warn("no records survived filtering; no output written")
		if perr := p.persist(ctx, summary, nil); perr != nil {
			return nil, perr
		}
		observability.RecordRun(string(summary.Status), summary.CompletedAt.Sub(start).Seconds())
		return summary, err
	}
	if err != nil {
		return nil, err
	}
	summary.TotalWaifu = rs.TotalWaifu
	summary.TotalLlama = rs.TotalLlama
	summary.TotalBase = rs.TotalBase

	// 6. Output, committed only once the run is persisted
	var tmp string
	if p.cfg.OutputPath != "" {
		tmp, err = writeTemp(p.cfg.OutputPath, layout, table.Header, rs)
		if err != nil {
			return nil, fmt.Errorf("write result: %w", err)
		}
		summary.OutputPath = p.cfg.OutputPath
	}

	summary.Status = domain.RunStatusCompleted
	summary.CompletedAt = p.clock()
	if err := p.persist(ctx, summary, rs.Records); err != nil {
		if tmp != "" {
			os.Remove(tmp)
		}
		return nil, err
	}
	if tmp != "" {
		if err := os.Rename(tmp, p.cfg.OutputPath); err != nil {
			os.Remove(tmp)
			return nil, fmt.Errorf("write result: %w", err)
		}
	}

	observability.RecordRun(string(summary.Status), summary.CompletedAt.Sub(start).Seconds())
	observability.UpdateTotals(rs.TotalWaifu, rs.TotalLlama, rs.TotalBase)

	log.Info("reconciliation complete",
		zap.Int("rows", len(rs.Records)),
		zap.Float64("total_base", rs.TotalBase),
		zap.String("output", summary.OutputPath),
	)
	return summary, nil
}

// buildExclusions unions the file and store sources, writes that set back to
// the stored list, then adds the run-only extra exclusions.
func (p *Pipeline) buildExclusions(ctx context.Context, log *zap.Logger) (*exclusion.Set, error) {
	var sources []exclusion.Source
	if p.cfg.ClusterGlob != "" {
		clusters, err := exclusion.ClusterFileSources(p.cfg.ClusterGlob)
		if err != nil {
			return nil, fmt.Errorf("cluster files: %w", err)
		}
		if len(clusters) == 0 {
			log.Warn("no cluster files matched", zap.String("pattern", p.cfg.ClusterGlob))
		}
		sources = append(sources, clusters...)
	}
	if p.cfg.ClaimedPath != "" {
		sources = append(sources, exclusion.CSVFileSource{Path: p.cfg.ClaimedPath, Column: "Address"})
	}
	if p.exclusionStore != nil && p.cfg.ExclusionList != "" {
		sources = append(sources, exclusion.StoreSource{Store: p.exclusionStore, List: p.cfg.ExclusionList})
	}

	set, err := exclusion.Build(ctx, log, sources...)
	if err != nil {
		return nil, fmt.Errorf("build exclusion set: %w", err)
	}

	if p.exclusionStore != nil && p.cfg.ExclusionList != "" && set.Len() > 0 {
		if err := p.exclusionStore.InsertBulk(ctx, p.cfg.ExclusionList, set.Addresses()); err != nil {
			return nil, fmt.Errorf("store exclusion list: %w", err)
		}
	}

	if len(p.cfg.ExtraExclusions) > 0 {
		extra, err := exclusion.Build(ctx, log, exclusion.ListSource{Label: "run", Items: p.cfg.ExtraExclusions})
		if err != nil {
			return nil, fmt.Errorf("build exclusion set: %w", err)
		}
		set = set.Union(extra)
	}

	observability.UpdateExclusionSetSize(set.Len())
	return set, nil
}

// resolveStats loads or fetches remote stats and indexes them. Records with
// unparsable figures are kept without figures; their count is returned.
func (p *Pipeline) resolveStats(ctx context.Context, log *zap.Logger, candidates []domain.CandidateRecord) (*stats.Resolver, int, error) {
	var (
		records  []domain.RemoteStatRecord
		problems []stats.FigureError
	)

	switch {
	case p.cfg.StatsPath != "":
		recs, probs, err := stats.LoadFile(p.cfg.StatsPath)
		if err != nil {
			return nil, 0, err
		}
		records, problems = recs, probs
	case p.getter != nil:
		addrs := make([]string, 0, len(candidates))
		for _, c := range candidates {
			addrs = append(addrs, c.Address.String())
		}
		res, err := statsapi.NewFetcher(p.getter, p.cfg.Workers, p.cfg.RequestDelay, log).FetchAll(ctx, addrs)
		if err != nil {
			return nil, 0, fmt.Errorf("fetch remote stats: %w", err)
		}
		records, problems = statsapi.RemoteRecords(res.Stats)
	default:
		log.Info("no remote stats source configured; using local totals")
	}

	for _, fe := range problems {
		log.Warn("ignoring malformed remote figure",
			zap.Int("record", fe.Index),
			zap.Stringer("address", fe.Address),
			zap.String("field", fe.Field),
			zap.Error(fe.Err),
		)
	}

	resolver, err := stats.Index(records, p.cfg.DuplicatePolicy)
	if err != nil {
		return nil, 0, fmt.Errorf("index remote stats: %w", err)
	}
	if resolver.Duplicates() > 0 {
		log.Warn("duplicate remote records resolved",
			zap.Int("duplicates", resolver.Duplicates()),
			zap.String("policy", string(p.cfg.DuplicatePolicy)),
		)
	}
	return resolver, len(problems), nil
}

// persist stores the run and its rows atomically, then captures the snapshots.
func (p *Pipeline) persist(ctx context.Context, summary *domain.RunSummary, records []domain.ReconciledRecord) error {
	if p.runStore != nil {
		if err := p.runStore.SaveRun(ctx, summary, records); err != nil {
			return fmt.Errorf("store run: %w", err)
		}
	}

	if p.snapshotStore != nil && len(records) > 0 {
		snapshots := make([]*domain.RewardSnapshot, len(records))
		for i, r := range records {
			snapshots[i] = &domain.RewardSnapshot{
				RunID:    summary.RunID,
				Season:   summary.Season,
				Position: i,
				Record:   r,
			}
		}
		if err := p.snapshotStore.InsertBulk(ctx, snapshots); err != nil {
			return fmt.Errorf("store snapshots: %w", err)
		}
	}
	return nil
}

// writeTemp writes the result table next to path and returns the temporary name.
func writeTemp(path string, layout tabular.Layout, header []string, rs *domain.ResultSet) (string, error) {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", err
	}
	if err := f.Chmod(0o644); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := tabular.WriteResult(f, layout, header, rs); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
