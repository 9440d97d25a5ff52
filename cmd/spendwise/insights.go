package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/spendwise/internal/cache"
	"github.com/Veraticus/spendwise/internal/cli"
	"github.com/Veraticus/spendwise/internal/model"
)

func insightsCmd() *cobra.Command {
	var (
		month   string
		refetch bool
	)

	cmd := &cobra.Command{
		Use:   "insights",
		Short: "Monthly spending summary",
		Long:  `Show totals, the change from last month and the top categories for a month.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if month == "" {
				month = time.Now().Format("2006-01")
			}
			return withApp(ctx, true, func(a *app) error {
				var opts []cache.QueryOption
				if refetch {
					opts = append(opts, cache.WithRefetch())
				}

				var (
					insight    model.MonthlyInsight
					comparison model.MonthComparison
				)
				g, gctx := errgroup.WithContext(ctx)
				g.Go(func() (err error) {
					insight, err = a.queries.GetMonthlyInsight(gctx, month, opts...)
					return err
				})
				g.Go(func() (err error) {
					comparison, err = a.queries.GetComparison(gctx, month, opts...)
					return err
				})
				if err := g.Wait(); err != nil {
					return err
				}

				printInsight(cmd.OutOrStdout(), insight, comparison)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "month as YYYY-MM (default: this month)")
	cmd.Flags().BoolVar(&refetch, "refresh", false, "ignore cached data")

	cmd.AddCommand(insightsRecalculateCmd())
	return cmd
}

func printInsight(w io.Writer, insight model.MonthlyInsight, comparison model.MonthComparison) {
	title := insight.Month
	if t, err := time.Parse("2006-01", insight.Month); err == nil {
		title = t.Format("January 2006")
	}
	fmt.Fprintln(w, cli.FormatTitle(title))
	fmt.Fprintf(w, "Spent    %s  %s\n", model.FormatAmount(insight.TotalSpending), change(comparison.SpendingChange, true))
	fmt.Fprintf(w, "Received %s  %s\n", model.FormatAmount(insight.TotalIncome), change(comparison.IncomeChange, false))

	if len(insight.CategoryData) == 0 {
		return
	}
	rows := make([][]string, 0, len(insight.CategoryData))
	for _, c := range insight.CategoryData {
		rows = append(rows, []string{
			c.Category,
			model.FormatAmount(c.Amount),
			fmt.Sprintf("%.1f%%", c.Percentage),
			fmt.Sprint(c.TransactionCount),
		})
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, cli.RenderTable([]string{"Category", "Amount", "Share", "Count"}, rows))
}

// change renders a percent change; for spending a rise is bad news.
func change(pct float64, spending bool) string {
	text := fmt.Sprintf("%+.1f%% vs last month", pct)
	switch {
	case pct == 0:
		return cli.SubtleStyle.Render(text)
	case (pct > 0) == spending:
		return cli.ErrorStyle.Render(text)
	default:
		return cli.SuccessStyle.Render(text)
	}
}

func insightsRecalculateCmd() *cobra.Command {
	var month string

	cmd := &cobra.Command{
		Use:   "recalculate",
		Short: "Rebuild a month's insight from its transactions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if month == "" {
				month = time.Now().Format("2006-01")
			}
			return withApp(ctx, true, func(a *app) error {
				insight, err := a.queries.Recalculate(ctx, month)
				if err != nil {
					return printValidation(cmd.ErrOrStderr(), err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Recalculated %s: %s spent",
					insight.Month, model.FormatAmount(insight.TotalSpending))))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "month as YYYY-MM (default: this month)")
	return cmd
}

func aiCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ai",
		Short: "AI advice, predictions and unusual transactions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "summary",
		Short: "Highlights, warnings and suggestions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return withApp(ctx, true, func(a *app) error {
				resp, err := a.queries.GetAIInsights(ctx)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				fmt.Fprintln(w, cli.TitleStyle.Render(cli.RobotIcon+" "+resp.Summary))
				printBullets(w, cli.SuccessStyle.Render("+"), resp.Highlights)
				printBullets(w, cli.WarningStyle.Render("!"), resp.Warnings)
				printBullets(w, cli.InfoStyle.Render("→"), resp.Suggestions)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "advice",
		Short: "Personalized recommendations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return withApp(ctx, true, func(a *app) error {
				resp, err := a.queries.GetAdvice(ctx)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if resp.Summary != "" {
					fmt.Fprintln(w, resp.Summary)
				}
				rows := make([][]string, 0, len(resp.Recommendations))
				for _, r := range resp.Recommendations {
					rows = append(rows, []string{string(r.Priority), r.Title, r.Description})
				}
				fmt.Fprintln(w, cli.RenderTable([]string{"Priority", "Advice", "Details"}, rows))
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "predictions",
		Short: "Next month's predicted spending",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return withApp(ctx, true, func(a *app) error {
				resp, err := a.queries.GetPredictions(ctx)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "Predicted total %s (%.0f%% confidence)\n",
					model.FormatAmount(resp.TotalPredicted), resp.Confidence*100)
				rows := make([][]string, 0, len(resp.ByCategory))
				for _, p := range resp.ByCategory {
					rows = append(rows, []string{p.Category, model.FormatAmount(p.PredictedAmount), p.Trend})
				}
				fmt.Fprintln(w, cli.RenderTable([]string{"Category", "Predicted", "Trend"}, rows))
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "anomalies",
		Short: "Transactions that look unusual",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return withApp(ctx, true, func(a *app) error {
				anomalies, err := a.queries.GetAnomalies(ctx)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if len(anomalies) == 0 {
					fmt.Fprintln(w, cli.FormatSuccess("Nothing unusual"))
					return nil
				}
				rows := make([][]string, 0, len(anomalies))
				for _, an := range anomalies {
					rows = append(rows, []string{
						string(an.Severity),
						dateOnly(an.Transaction.Date),
						an.Transaction.Narration,
						model.FormatSigned(an.Transaction.Amount, an.Transaction.Type),
						an.Reason,
					})
				}
				fmt.Fprintln(w, cli.RenderTable([]string{"Severity", "Date", "Narration", "Amount", "Reason"}, rows))
				return nil
			})
		},
	})

	cmd.AddCommand(aiNarrativeCmd())
	return cmd
}

func aiNarrativeCmd() *cobra.Command {
	var month string

	cmd := &cobra.Command{
		Use:   "narrative",
		Short: "A written summary of one month",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if month == "" {
				month = time.Now().Format("2006-01")
			}
			return withApp(ctx, true, func(a *app) error {
				resp, err := a.queries.GetNarrative(ctx, month)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				fmt.Fprintln(w, resp.Summary)
				printBullets(w, cli.SuccessStyle.Render("+"), resp.Highlights)
				printBullets(w, cli.InfoStyle.Render("→"), resp.Recommendations)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "month as YYYY-MM (default: this month)")
	return cmd
}

func printBullets(w io.Writer, marker string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintln(w, marker+" "+strings.Join(items, "\n"+marker+" "))
}
