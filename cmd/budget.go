package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/enrich-cli/internal/cost"
	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/ratelimit"
)

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Inspect and reset monthly provider call budgets",
}

var budgetShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show this month's usage per provider",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		guard := ratelimit.NewGuard(st, cfg.Providers)
		guard.Load(ctx)

		formatBudgets(cmd.OutOrStdout(), guard.Snapshot(), cost.NewCalculator(cfg.Pricing))
		return nil
	},
}

var budgetResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Zero the current month's call count for a provider",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		provider, _ := cmd.Flags().GetString("provider")

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		guard := ratelimit.NewGuard(st, cfg.Providers)
		guard.Load(ctx)
		if err := guard.Reset(ctx, provider); err != nil {
			return eris.Wrap(err, "budget reset")
		}

		b := guard.Budget(provider)
		fmt.Fprintf(cmd.OutOrStdout(), "Reset %s budget for %s.\n", b.Provider, b.MonthKey)
		return nil
	},
}

func init() {
	budgetResetCmd.Flags().String("provider", "", "provider name, e.g. jina or firecrawl (required)")
	_ = budgetResetCmd.MarkFlagRequired("provider")

	budgetCmd.AddCommand(budgetShowCmd)
	budgetCmd.AddCommand(budgetResetCmd)
	rootCmd.AddCommand(budgetCmd)
}

// formatBudgets writes one row per provider budget to w, with the
// estimated month-to-date spend.
func formatBudgets(out io.Writer, budgets []model.RateBudget, calc *cost.Calculator) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PROVIDER\tMONTH\tCALLS\tLIMIT\tREMAINING\tMIN_INTERVAL\tEST_SPEND")
	_, _ = fmt.Fprintln(w, "--------\t-----\t-----\t-----\t---------\t------------\t---------")

	for _, b := range budgets {
		limit, remaining := "unlimited", "-"
		if b.MonthlyLimit > 0 {
			limit = fmt.Sprintf("%d", b.MonthlyLimit)
			remaining = fmt.Sprintf("%d", b.Remaining())
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\t$%.2f\n",
			b.Provider,
			b.MonthKey,
			b.Calls,
			limit,
			remaining,
			b.MinInterval,
			calc.Estimate(b),
		)
	}
	_, _ = fmt.Fprintf(w, "TOTAL\t\t\t\t\t\t$%.2f\n", calc.Total(budgets))
	_ = w.Flush()
}
