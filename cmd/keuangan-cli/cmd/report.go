package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func summaryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show totals, balance, expense ratio and the largest expense",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := printSummary(cmd.OutOrStdout(), a.engine.Summarize()); err != nil {
				return err
			}
			if a.engine.Dirty() {
				fmt.Fprintln(cmd.OutOrStdout(), warn.Sprint("Warning: the store is behind the ledger"))
			}
			return nil
		},
	}
}

func seriesCmd(a *app) *cobra.Command {
	c := &cobra.Command{
		Use:   "series",
		Short: "Show chart series",
	}
	c.AddCommand(seriesDateCmd(a), seriesCategoryCmd(a))
	return c
}

func seriesDateCmd(a *app) *cobra.Command {
	var year, month int
	c := &cobra.Command{
		Use:   "date",
		Short: "Income and expense summed per date",
		Long: `Income and expense summed per date, one row per date that has records.
With --year and --month every day of that month is listed, zero-filled.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			yearSet, monthSet := cmd.Flags().Changed("year"), cmd.Flags().Changed("month")
			if yearSet != monthSet {
				return fmt.Errorf("--year and --month must be given together")
			}
			if yearSet {
				if month < 1 || month > 12 {
					return fmt.Errorf("--month must be between 1 and 12, got %d", month)
				}
				return printDatePoints(cmd.OutOrStdout(), a.engine.DailySeries(year, month))
			}
			return printDatePoints(cmd.OutOrStdout(), a.engine.SeriesByDate().Merged())
		},
	}
	c.Flags().IntVar(&year, "year", 0, "calendar year of the daily axis")
	c.Flags().IntVar(&month, "month", 0, "month (1-12) of the daily axis")
	return c
}

func seriesCategoryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "category",
		Short: "Expenses summed per category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printCategories(cmd.OutOrStdout(), a.engine.SeriesByCategory())
		},
	}
}
