package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func expenseCmd(a *app) *cobra.Command {
	c := &cobra.Command{
		Use:     "expense",
		Aliases: []string{"expenses"},
		Short:   "Manage expense records",
	}
	c.AddCommand(expenseAddCmd(a), expenseListCmd(a), expenseDeleteCmd(a), expenseClearCmd(a))
	return c
}

func expenseAddCmd(a *app) *cobra.Command {
	var (
		date     string
		category string
	)
	c := &cobra.Command{
		Use:   "add <name> <amount>",
		Short: "Append an expense record",
		Example: `  keuangan-cli expense add makan 50000 --category food
  keuangan-cli expense add transport 200000 --date 2025-01-03`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, amount, err := parseDateAmount(date, args[1])
			if err != nil {
				return err
			}
			expenses, err := a.engine.AppendExpense(cmd.Context(), d, args[0], amount, category)
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added expense #%d: %s %s\n", len(expenses)-1, args[0], amount.Rupiah())
			return nil
		},
	}
	c.Flags().StringVar(&date, "date", "", "date as YYYY-MM-DD (default today)")
	c.Flags().StringVar(&category, "category", "", "expense category")
	return c
}

func expenseListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List expense records with their positions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printExpenses(cmd.OutOrStdout(), a.engine.Expenses())
		},
	}
}

func expenseDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <position>",
		Short: "Delete the expense record at a zero-based position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := parsePosition(args[0])
			if err != nil {
				return err
			}
			if _, err := a.engine.DeleteExpense(cmd.Context(), pos); err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted expense #%d\n", pos)
			return nil
		},
	}
}

func expenseClearCmd(a *app) *cobra.Command {
	var yes bool
	c := &cobra.Command{
		Use:   "clear",
		Short: "Delete every expense record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to clear %d expenses without --yes", len(a.engine.Expenses()))
			}
			if err := a.engine.ClearExpenses(cmd.Context()); err != nil {
				return describe(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), warn.Sprint("All expenses cleared"))
			return nil
		},
	}
	c.Flags().BoolVar(&yes, "yes", false, "confirm clearing all expenses")
	return c
}
