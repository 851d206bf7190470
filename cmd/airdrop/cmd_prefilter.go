package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"airdrop-reconciler/internal/tabular"
)

func newPrefilterCmd(a *app) *cobra.Command {
	var input, output string
	var ignore, seasonColumns []string

	cmd := &cobra.Command{
		Use:   "prefilter",
		Short: "Drop rows without any token reward from a results table",
		Long: `Keeps a row only if some token column is non-zero and some season total
column is non-zero. Token columns are all columns except Address and the
ignored ones.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if input == "" || output == "" {
				return fmt.Errorf("--input and --output are required")
			}

			in, err := os.Open(input)
			if err != nil {
				return fmt.Errorf("open input: %w", err)
			}
			defer in.Close()

			out, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}

			st, err := tabular.FilterRows(in, out, tabular.RowFilterOptions{
				IgnoreColumns: ignore,
				SeasonColumns: seasonColumns,
			})
			if err != nil {
				out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}

			a.logger.Info("prefilter complete",
				zap.String("input", input),
				zap.Int("removed", st.Removed),
				zap.Int("remaining", st.Remaining),
			)

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Original row count: %d\n", st.Original)
			fmt.Fprintf(w, "Rows removed: %d\n", st.Removed)
			fmt.Fprintf(w, "Remaining rows: %d\n", st.Remaining)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&input, "input", "i", "", "Input results table")
	f.StringVarP(&output, "output", "o", "", "Filtered output table")
	f.StringSliceVar(&ignore, "ignore", []string{"S1 Llama Points", "S1 Waifu Points"}, "Columns excluded from the token check")
	f.StringSliceVar(&seasonColumns, "season-columns", []string{"S1 Total Base Tokens", "S1 Total Bonus Tokens"}, "Columns of which at least one must be non-zero")
	return cmd
}
