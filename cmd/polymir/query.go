package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/mirtk/polymir/internal/duckdb"
)

func newQueryCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query results accumulated across samples",
	}
	cmd.PersistentFlags().StringVar(&dbPath, "results-db", "", "DuckDB file written by 'run --results-db'")
	cmd.MarkPersistentFlagRequired("results-db")

	cmd.AddCommand(newQueryExpressionCmd(&dbPath))
	cmd.AddCommand(newQuerySuspiciousCmd(&dbPath))
	return cmd
}

func newQueryExpressionCmd(dbPath *string) *cobra.Command {
	var granularity string

	cmd := &cobra.Command{
		Use:   "expression <feature>",
		Short: "Show one feature's counts in every stored sample",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := duckdb.Open(*dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			counts, err := store.ExpressionAcrossSamples(granularity, args[0])
			if err != nil {
				return err
			}
			if len(counts) == 0 {
				fmt.Printf("no stored counts for %s %q\n", granularity, args[0])
				return nil
			}

			samples := make([]string, 0, len(counts))
			for sample := range counts {
				samples = append(samples, sample)
			}
			sort.Strings(samples)
			for _, sample := range samples {
				fmt.Printf("%s\t%d\n", sample, counts[sample])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&granularity, "granularity", duckdb.GranularityMature,
		"feature granularity: hairpin, mature or isomir")
	return cmd
}

func newQuerySuspiciousCmd(dbPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "suspicious",
		Short: "List variant sites flagged highly suspicious in any sample",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := duckdb.Open(*dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			sites, err := store.SuspiciousSites()
			if err != nil {
				return err
			}
			if len(sites) == 0 {
				fmt.Println("no suspicious sites stored")
				return nil
			}
			fmt.Println("sample\tsite\tchrom\tpos\tgenotype\tinconsistent_rate")
			for _, s := range sites {
				fmt.Printf("%s\t%s\t%s\t%d\t%s\t%.6f\n",
					s.Sample, s.Site, s.Chrom, s.Pos, s.Genotype, s.Rate)
			}
			return nil
		},
	}
}
