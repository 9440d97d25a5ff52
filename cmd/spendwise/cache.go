package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spendwise/internal/cli"
)

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear cached API responses",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Drop every cached response",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return withApp(ctx, false, func(a *app) error {
				if err := a.cache.Reset(ctx); err != nil {
					return fmt.Errorf("failed to clear cache: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Cache cleared"))
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "prune",
		Short: "Remove expired cached responses",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return withApp(ctx, false, func(a *app) error {
				n, err := a.db.CleanupExpired(ctx)
				if err != nil {
					return fmt.Errorf("failed to prune cache: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Removed %d expired responses", n)))
				return nil
			})
		},
	})

	return cmd
}
