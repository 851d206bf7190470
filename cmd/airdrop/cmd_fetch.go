package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"airdrop-reconciler/internal/addresslist"
	"airdrop-reconciler/internal/config"
	"airdrop-reconciler/internal/statsapi"
)

func newFetchStatsCmd(a *app) *cobra.Command {
	var addressFile, endpoint, output string
	var workers, maxAddresses int

	cmd := &cobra.Command{
		Use:   "fetch-stats",
		Short: "Fetch per-address stats from the stats API into a JSON dump",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			override(&cfg.Inputs.AddressFile, addressFile)
			override(&cfg.StatsAPI.Endpoint, endpoint)
			if workers > 0 {
				cfg.StatsAPI.Workers = workers
			}
			if maxAddresses > 0 {
				cfg.StatsAPI.MaxAddresses = maxAddresses
			}
			if err := cfg.ValidateFetch(); err != nil {
				return err
			}

			res, err := fetchStats(cmd.Context(), a.logger, cfg)
			if err != nil {
				return err
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}
			if err := statsapi.WriteDump(f, res.Stats); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Fetched %d of %d addresses (%d failed); saved to %s\n",
				res.Succeeded, res.Succeeded+res.Failed, res.Failed, output)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&addressFile, "addresses", "", "Newline-delimited address file")
	f.StringVar(&endpoint, "endpoint", "", "Stats API endpoint")
	f.StringVarP(&output, "output", "o", "miner_stats.json", "Output JSON dump")
	f.IntVar(&workers, "workers", 0, "Concurrent requests (overrides config)")
	f.IntVar(&maxAddresses, "max-addresses", 0, "Only query the first N addresses")
	return cmd
}

// fetchStats loads the address list and queries the stats API for every address.
func fetchStats(ctx context.Context, logger *zap.Logger, cfg *config.Config) (*statsapi.FetchResult, error) {
	addrs, err := addresslist.Load(cfg.Inputs.AddressFile, cfg.StatsAPI.MaxAddresses)
	if err != nil {
		return nil, err
	}
	logger.Info("fetching stats",
		zap.Int("addresses", len(addrs)),
		zap.Int("workers", cfg.StatsAPI.Workers),
		zap.Duration("request_delay", cfg.StatsAPI.RequestDelay),
	)

	client := statsapi.NewClient(cfg.StatsAPI.Endpoint, statsapi.WithTimeout(cfg.StatsAPI.Timeout))
	return statsapi.NewFetcher(client, cfg.StatsAPI.Workers, cfg.StatsAPI.RequestDelay, logger).FetchAll(ctx, addrs)
}
