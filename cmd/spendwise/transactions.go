package main

import (
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/Veraticus/spendwise/internal/cache"
	"github.com/Veraticus/spendwise/internal/cli"
	"github.com/Veraticus/spendwise/internal/model"
	"github.com/Veraticus/spendwise/internal/queries"
)

func transactionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "transactions",
		Aliases: []string{"txn"},
		Short:   "Browse categorized transactions",
	}

	cmd.AddCommand(transactionsListCmd())
	cmd.AddCommand(transactionsShowCmd())

	return cmd
}

func transactionsListCmd() *cobra.Command {
	var (
		filters model.TransactionFilters
		txType  string
		all     bool
		refetch bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			switch model.TransactionType(txType) {
			case "", model.TypeDebit, model.TypeCredit:
				filters.Type = model.TransactionType(txType)
			default:
				return fmt.Errorf("invalid --type %q: use debit or credit", txType)
			}
			filters.Page = 1

			return withApp(ctx, true, func(a *app) error {
				var opts []cache.QueryOption
				if refetch || all {
					opts = append(opts, cache.WithRefetch())
				}
				page, err := a.queries.GetTransactions(ctx, filters, opts...)
				if err != nil {
					return err
				}

				if all && page.HasMore {
					bar := progressbar.NewOptions(page.Total,
						progressbar.OptionSetWriter(cmd.ErrOrStderr()),
						progressbar.OptionSetDescription("Fetching transactions"),
						progressbar.OptionShowCount(),
						progressbar.OptionClearOnFinish(),
					)
					_ = bar.Set(len(page.Data))
					for page.HasMore {
						if page, err = a.queries.NextTransactions(ctx, filters); err != nil {
							_ = bar.Exit()
							return err
						}
						_ = bar.Set(len(page.Data))
					}
					_ = bar.Finish()
				}

				printTransactions(cmd.OutOrStdout(), page)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&txType, "type", "", "only debit or credit transactions")
	cmd.Flags().StringVar(&filters.Category, "category", "", "only this category")
	cmd.Flags().StringVar(&filters.StartDate, "from", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&filters.EndDate, "to", "", "end date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&filters.Limit, "limit", queries.DefaultPageSize, "page size")
	cmd.Flags().BoolVar(&all, "all", false, "fetch every page")
	cmd.Flags().BoolVar(&refetch, "refresh", false, "ignore cached data")
	return cmd
}

func printTransactions(w io.Writer, page model.Page[model.Transaction]) {
	if len(page.Data) == 0 {
		fmt.Fprintln(w, cli.FormatInfo("No transactions yet. Link an account to get started."))
		return
	}

	rows := make([][]string, 0, len(page.Data))
	for _, txn := range page.Data {
		narration := txn.Narration
		if txn.IsAnomaly {
			narration = "! " + narration
		}
		rows = append(rows, []string{
			dateOnly(txn.Date),
			narration,
			txn.Category,
			model.FormatSigned(txn.Amount, txn.Type),
			txn.ID,
		})
	}
	fmt.Fprintln(w, cli.RenderTable([]string{"Date", "Narration", "Category", "Amount", "ID"}, rows))

	footer := fmt.Sprintf("%d of %d", len(page.Data), page.Total)
	if page.HasMore {
		footer += ", use --all for the rest"
	}
	fmt.Fprintln(w, cli.SubtleStyle.Render(footer))
}

func transactionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withApp(ctx, true, func(a *app) error {
				txn, err := a.queries.GetTransaction(ctx, args[0])
				if err != nil {
					return err
				}

				rows := [][]string{
					{"Date", dateOnly(txn.Date)},
					{"Narration", txn.Narration},
					{"Amount", model.FormatSigned(txn.Amount, txn.Type)},
					{"Balance", model.FormatAmount(txn.Balance)},
					{"Category", txn.Category},
					{"Categorized by", categorizedBy(txn)},
				}
				if txn.IsAnomaly && txn.AnomalyReason != nil {
					rows = append(rows, []string{"Unusual", *txn.AnomalyReason})
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.RenderTable([]string{"Field", "Value"}, rows))
				return nil
			})
		},
	}
}

func categorizedBy(txn model.Transaction) string {
	if txn.CategorizationMethod == "" {
		return "unknown"
	}
	if txn.AIConfidence != nil {
		return fmt.Sprintf("%s (%.0f%% confidence)", txn.CategorizationMethod, *txn.AIConfidence*100)
	}
	return txn.CategorizationMethod
}
