package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func incomeCmd(a *app) *cobra.Command {
	c := &cobra.Command{
		Use:   "income",
		Short: "Manage income records",
	}
	c.AddCommand(incomeAddCmd(a), incomeListCmd(a), incomeDeleteCmd(a))
	return c
}

func incomeAddCmd(a *app) *cobra.Command {
	var date string
	c := &cobra.Command{
		Use:   "add <source> <amount>",
		Short: "Append an income record",
		Example: `  keuangan-cli income add gaji 5000000
  keuangan-cli income add bonus 250000,50 --date 2025-01-31`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, amount, err := parseDateAmount(date, args[1])
			if err != nil {
				return err
			}
			income, err := a.engine.AppendIncome(cmd.Context(), d, args[0], amount)
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added income #%d: %s %s\n", len(income)-1, args[0], amount.Rupiah())
			return nil
		},
	}
	c.Flags().StringVar(&date, "date", "", "date as YYYY-MM-DD (default today)")
	return c
}

func incomeListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List income records with their positions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printIncome(cmd.OutOrStdout(), a.engine.Income())
		},
	}
}

func incomeDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <position>",
		Short: "Delete the income record at a zero-based position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := parsePosition(args[0])
			if err != nil {
				return err
			}
			if _, err := a.engine.DeleteIncome(cmd.Context(), pos); err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted income #%d\n", pos)
			return nil
		},
	}
}
