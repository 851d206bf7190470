package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"airdrop-reconciler/internal/features"
)

func newFeaturesCmd(a *app) *cobra.Command {
	var dump, addressFile, endpoint, output string
	window := features.SeasonTwo

	cmd := &cobra.Command{
		Use:   "features",
		Short: "Build per-miner daily activity vectors",
		Long: `Writes one row per miner: the number of history days inside the window and,
for each of those days in date order, a llama and a waifu flag (1 when the day
carried points). The s2Rewards history is used when present, otherwise
dailyPoints. Rows are padded with zeros to the longest vector.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			override(&cfg.Inputs.AddressFile, addressFile)
			override(&cfg.StatsAPI.Endpoint, endpoint)
			if err := window.Validate(); err != nil {
				return err
			}
			ms, err := loadMinerStats(cmd.Context(), a, cfg, dump)
			if err != nil {
				return err
			}

			vectors, sum, err := features.Build(ms, window)
			if err != nil {
				return err
			}
			if sum.Undecodable > 0 {
				a.logger.Warn("skipped undecodable stats payloads", zap.Int("count", sum.Undecodable))
			}
			if sum.NoHistory > 0 {
				a.logger.Info("miners without daily history", zap.Int("count", sum.NoHistory))
			}

			out := cmd.OutOrStdout()
			if len(vectors) == 0 {
				fmt.Fprintln(out, "No feature vectors to save")
				return nil
			}

			if output == "" {
				output = fmt.Sprintf("miner_feature_vectors_%s.csv", time.Now().Format("20060102_150405"))
			}
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}
			if err := features.Write(f, vectors); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}

			fmt.Fprintf(out, "Miners: %d\n", sum.Miners)
			fmt.Fprintf(out, "Longest history: %d days (%s to %s)\n", sum.MaxDays, window.Start, window.End)
			fmt.Fprintf(out, "Results saved to %s\n", output)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&dump, "stats", "", "Stats dump written by fetch-stats")
	f.StringVar(&addressFile, "addresses", "", "Newline-delimited address file (live fetch)")
	f.StringVar(&endpoint, "endpoint", "", "Stats API endpoint (live fetch)")
	f.StringVar(&window.Start, "from", window.Start, "First day of the window (YYYY-MM-DD)")
	f.StringVar(&window.End, "to", window.End, "Last day of the window (YYYY-MM-DD)")
	f.StringVarP(&output, "output", "o", "", "Output table (default miner_feature_vectors_<timestamp>.csv)")
	return cmd
}
