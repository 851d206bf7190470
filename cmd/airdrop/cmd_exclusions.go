package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"airdrop-reconciler/internal/exclusion"
)

func newExclusionsCmd(a *app) *cobra.Command {
	var clusters, claimed, output, list string
	var persist bool

	cmd := &cobra.Command{
		Use:   "exclusions",
		Short: "Collect sybil and claimed addresses into one exclusion file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			override(&cfg.Inputs.ClusterGlob, clusters)
			override(&cfg.Inputs.ClaimedPath, claimed)
			override(&cfg.Output.ExclusionsPath, output)

			var sources []exclusion.Source
			if cfg.Inputs.ClusterGlob != "" {
				found, err := exclusion.ClusterFileSources(cfg.Inputs.ClusterGlob)
				if err != nil {
					return err
				}
				sources = append(sources, found...)
			}
			if cfg.Inputs.ClaimedPath != "" {
				sources = append(sources, exclusion.CSVFileSource{Path: cfg.Inputs.ClaimedPath, Column: "Address"})
			}

			ctx := cmd.Context()
			set, err := exclusion.Build(ctx, a.logger, sources...)
			if err != nil {
				return err
			}

			f, err := os.Create(cfg.Output.ExclusionsPath)
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}
			if err := exclusion.WriteCSV(f, set); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}

			if persist {
				st, err := openStores(ctx, a.logger, cfg, false)
				if err != nil {
					return err
				}
				defer st.close()
				if st.exclusions == nil {
					return fmt.Errorf("--persist requires database.postgres_dsn")
				}
				if err := st.exclusions.InsertBulk(ctx, list, set.Addresses()); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Collected %d unique addresses into %s\n", set.Len(), cfg.Output.ExclusionsPath)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&clusters, "clusters", "", "Glob of sybil cluster files")
	f.StringVar(&claimed, "claimed", "", "Claimed addresses file (CSV with Address column)")
	f.StringVarP(&output, "output", "o", "", "Output file (default unique_addresses.csv)")
	f.StringVar(&list, "list", "exclusions", "Stored list name used with --persist")
	f.BoolVar(&persist, "persist", false, "Also store the addresses in PostgreSQL")
	return cmd
}
