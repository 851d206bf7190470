package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"airdrop-reconciler/internal/config"
	"airdrop-reconciler/internal/rewards"
	"airdrop-reconciler/internal/statsapi"
	"airdrop-reconciler/internal/tabular"
)

func newCalculateCmd(a *app) *cobra.Command {
	var dump, addressFile, endpoint, output string

	cmd := &cobra.Command{
		Use:   "calculate",
		Short: "Compute the local candidate reward table from daily rewards",
		Long: `Sums each miner's daily waifu and llama reward tokens into a candidate row
(base total = waifu + llama), sorted by total descending. Stats come from a
dump written by fetch-stats (--stats) or are fetched live.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			override(&cfg.Inputs.AddressFile, addressFile)
			override(&cfg.StatsAPI.Endpoint, endpoint)
			ms, err := loadMinerStats(cmd.Context(), a, cfg, dump)
			if err != nil {
				return err
			}

			rows, sum, err := rewards.Calculate(ms)
			if err != nil {
				return err
			}
			if sum.Undecodable > 0 {
				a.logger.Warn("skipped undecodable stats payloads", zap.Int("count", sum.Undecodable))
			}

			if output == "" {
				output = fmt.Sprintf("miner_rewards_%s.csv", time.Now().Format("20060102_150405"))
			}
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}
			if err := tabular.WriteCandidates(f, tabular.NewLayout(cfg.Season), rows); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Miners: %d\n", sum.Miners)
			fmt.Fprintf(out, "Total waifu reward tokens: %s\n", tabular.FormatAmount(sum.TotalWaifu))
			fmt.Fprintf(out, "Total llama reward tokens: %s\n", tabular.FormatAmount(sum.TotalLlama))
			fmt.Fprintf(out, "Results saved to %s\n", output)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&dump, "stats", "", "Stats dump written by fetch-stats")
	f.StringVar(&addressFile, "addresses", "", "Newline-delimited address file (live fetch)")
	f.StringVar(&endpoint, "endpoint", "", "Stats API endpoint (live fetch)")
	f.StringVarP(&output, "output", "o", "", "Output table (default miner_rewards_<timestamp>.csv)")
	return cmd
}

// loadMinerStats reads a fetch-stats dump, or fetches live when dump is empty.
func loadMinerStats(ctx context.Context, a *app, cfg *config.Config, dump string) ([]statsapi.MinerStats, error) {
	if dump != "" {
		f, err := os.Open(dump)
		if err != nil {
			return nil, fmt.Errorf("open stats dump: %w", err)
		}
		defer f.Close()
		return statsapi.ReadDump(f)
	}

	if err := cfg.ValidateFetch(); err != nil {
		return nil, err
	}
	res, err := fetchStats(ctx, a.logger, cfg)
	if err != nil {
		return nil, err
	}
	return res.Stats, nil
}
