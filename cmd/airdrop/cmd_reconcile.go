package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"airdrop-reconciler/internal/aggregate"
	"airdrop-reconciler/internal/domain"
	"airdrop-reconciler/internal/pipeline"
	"airdrop-reconciler/internal/stats"
	"airdrop-reconciler/internal/statsapi"
	"airdrop-reconciler/internal/tabular"
)

func newReconcileCmd(a *app) *cobra.Command {
	var (
		candidates, clusters, claimed, statsPath, output, policy, list string
		exclude                                                        []string
		live, sortByTotal, persist                                     bool
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile, filter and total the candidate reward table",
		Long: `Reads the candidate reward table, takes the larger of the local and remote
base totals per address, removes invalid, excluded and sub-one-token rows,
and writes the result with a blank row and a TOTAL row.

When nothing survives filtering, "No data to write." is printed and no file
is produced.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			override(&cfg.Inputs.CandidatePath, candidates)
			override(&cfg.Inputs.ClusterGlob, clusters)
			override(&cfg.Inputs.ClaimedPath, claimed)
			override(&cfg.Inputs.StatsPath, statsPath)
			override(&cfg.Output.Path, output)
			override(&cfg.DuplicatePolicy, policy)
			if err := cfg.ValidateReconcile(); err != nil {
				return err
			}
			if cfg.Output.Path == "" {
				cfg.Output.Path = fmt.Sprintf("filtered_miner_rewards_%s.csv", time.Now().Format("20060102_150405"))
			}
			dup, err := stats.ParsePolicy(cfg.DuplicatePolicy)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			p := pipeline.New(pipeline.Config{
				Season:          cfg.Season,
				CandidatePath:   cfg.Inputs.CandidatePath,
				ClusterGlob:     cfg.Inputs.ClusterGlob,
				ClaimedPath:     cfg.Inputs.ClaimedPath,
				ExtraExclusions: exclude,
				ExclusionList:   list,
				StatsPath:       cfg.Inputs.StatsPath,
				DuplicatePolicy: dup,
				Workers:         cfg.StatsAPI.Workers,
				RequestDelay:    cfg.StatsAPI.RequestDelay,
				OutputPath:      cfg.Output.Path,
				SortByTotal:     sortByTotal,
			}).WithLogger(a.logger)

			if live && cfg.Inputs.StatsPath == "" {
				if cfg.StatsAPI.Endpoint == "" {
					return fmt.Errorf("--live requires stats_api.endpoint")
				}
				p.WithStatsGetter(statsapi.NewClient(cfg.StatsAPI.Endpoint, statsapi.WithTimeout(cfg.StatsAPI.Timeout)))
			}

			if persist {
				st, err := openStores(ctx, a.logger, cfg, true)
				if err != nil {
					return err
				}
				defer st.close()
				if st.runs != nil {
					p.WithRunStore(st.runs)
				}
				if st.exclusions != nil {
					p.WithExclusionStore(st.exclusions)
				}
				if st.snapshots != nil {
					p.WithSnapshotStore(st.snapshots)
				}
			}

			summary, err := p.Run(ctx)
			if errors.Is(err, aggregate.ErrEmptyResult) {
				fmt.Fprintln(cmd.OutOrStdout(), "No data to write.")
				return nil
			}
			if err != nil {
				return err
			}

			printSummary(cmd, summary)
			a.logger.Debug("run summary", zap.Any("summary", summary))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&candidates, "candidates", "", "Candidate reward table (CSV)")
	f.StringVar(&clusters, "clusters", "", "Glob of sybil cluster files")
	f.StringVar(&claimed, "claimed", "", "Claimed addresses file (CSV with Address column)")
	f.StringVar(&statsPath, "stats", "", "Remote stats dump (JSON array)")
	f.StringVarP(&output, "output", "o", "", "Output table (default filtered_miner_rewards_<timestamp>.csv)")
	f.StringVar(&policy, "duplicate-policy", "", "Duplicate remote record policy: last-write-wins, keep-higher, reject-conflict")
	f.StringSliceVar(&exclude, "exclude", nil, "Additional addresses to exclude")
	f.StringVar(&list, "exclusion-list", "", "Stored exclusion list to read and update (requires --persist)")
	f.BoolVar(&live, "live", false, "Fetch remote stats from the stats API when no dump is given")
	f.BoolVar(&sortByTotal, "sort", false, "Sort rows by total reward, descending")
	f.BoolVar(&persist, "persist", false, "Store the run in the configured databases")
	return cmd
}

func printSummary(cmd *cobra.Command, s *domain.RunSummary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s (%s)\n", s.RunID, s.Season)
	fmt.Fprintf(out, "  candidates read:    %d\n", s.CandidatesRead)
	fmt.Fprintf(out, "  duplicate rows:     %d\n", s.DuplicateCandidates)
	fmt.Fprintf(out, "  prefiltered:        %d\n", s.Prefiltered)
	fmt.Fprintf(out, "  malformed remotes:  %d\n", s.MalformedRemotes)
	fmt.Fprintf(out, "  remote overrides:   %d\n", s.RemoteOverrides)
	fmt.Fprintf(out, "  ambiguous remotes:  %d\n", s.AmbiguousRemotes)
	fmt.Fprintf(out, "  invalid addresses:  %d\n", s.InvalidAddresses)
	fmt.Fprintf(out, "  excluded:           %d\n", s.Excluded)
	fmt.Fprintf(out, "  below threshold:    %d\n", s.BelowThreshold)
	fmt.Fprintf(out, "  kept:               %d\n", s.Kept)
	fmt.Fprintf(out, "  total base tokens:  %s\n", tabular.FormatAmount(s.TotalBase))
	fmt.Fprintf(out, "Results saved to %s\n", s.OutputPath)
}

// override replaces *dst with v when v is set.
func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
