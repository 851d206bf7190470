package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"airdrop-reconciler/internal/reporting"
	"airdrop-reconciler/internal/storage"
)

func newReportCmd(a *app) *cobra.Command {
	var output string
	var top int

	cmd := &cobra.Command{
		Use:   "report <run-id>",
		Short: "Render a Markdown report of a stored reconciliation run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if a.cfg.Database.PostgresDSN == "" {
				return errors.New("report requires database.postgres_dsn")
			}

			st, err := openStores(ctx, a.logger, a.cfg, false)
			if err != nil {
				return err
			}
			defer st.close()

			return writeReport(ctx, st.runs, args[0], top, output, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().IntVar(&top, "top", reporting.DefaultTopN, "rows in ranking tables")
	return cmd
}

func writeReport(ctx context.Context, runs storage.RunStore, runID string, top int, output string, stdout io.Writer) error {
	report, err := reporting.NewGenerator(runs).WithTopN(top).Generate(ctx, runID)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return err
	}

	md := reporting.RenderMarkdown(report)
	if output == "" {
		_, err := fmt.Fprint(stdout, md)
		return err
	}
	return os.WriteFile(output, []byte(md), 0o644)
}
