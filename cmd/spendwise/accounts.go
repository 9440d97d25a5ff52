package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spendwise/internal/cache"
	"github.com/Veraticus/spendwise/internal/certs"
	"github.com/Veraticus/spendwise/internal/cli"
	"github.com/Veraticus/spendwise/internal/common"
	"github.com/Veraticus/spendwise/internal/model"
	"github.com/Veraticus/spendwise/internal/mono"
)

func accountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage linked bank accounts",
		Long:  `List, link, sync, and unlink bank accounts connected through Mono.`,
	}

	cmd.AddCommand(accountsListCmd())
	cmd.AddCommand(accountsLinkCmd())
	cmd.AddCommand(accountsSyncCmd())
	cmd.AddCommand(accountsUnlinkCmd())

	return cmd
}

func accountsListCmd() *cobra.Command {
	var refetch bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List linked accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return withApp(ctx, true, func(a *app) error {
				var opts []cache.QueryOption
				if refetch {
					opts = append(opts, cache.WithRefetch())
				}
				accounts, err := a.queries.GetAccounts(ctx, opts...)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(accounts) == 0 {
					fmt.Fprintln(out, cli.FormatInfo("No linked accounts. Use 'spendwise accounts link' to add one."))
					return nil
				}

				rows := make([][]string, 0, len(accounts))
				for _, acc := range accounts {
					synced := "never"
					if acc.LastSyncedAt != nil {
						synced = dateOnly(*acc.LastSyncedAt)
					}
					rows = append(rows, []string{
						acc.ID,
						acc.InstitutionName,
						acc.AccountType,
						acc.AccountNumber,
						model.FormatAmount(acc.Balance),
						synced,
					})
				}
				fmt.Fprintln(out, cli.RenderTable([]string{"ID", "Bank", "Type", "Number", "Balance", "Synced"}, rows))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&refetch, "refresh", false, "ignore cached data")
	return cmd
}

func accountsLinkCmd() *cobra.Command {
	var (
		addr      string
		useTLS    bool
		noBrowser bool
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "link",
		Short: "Link a bank account with Mono Connect",
		Long: `Link a bank account using Mono Connect.

This command will:
1. Start a local web server
2. Open Mono Connect in your browser
3. Exchange the authorization code with SpendWise
4. Show the linked account`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return withApp(ctx, true, func(a *app) error {
				if err := a.cfg.RequireMonoKey(); err != nil {
					return err
				}

				opts := []mono.Option{mono.WithAddr(addr), mono.WithLogger(a.logger.With("component", "mono"))}
				if useTLS {
					store := certs.NewStore(filepath.Join(filepath.Dir(a.cfg.StoragePath), "certs"))
					cert, err := store.Certificate()
					if err != nil {
						return fmt.Errorf("failed to load localhost certificate: %w", err)
					}
					fmt.Fprintln(cmd.ErrOrStderr(), cli.FormatInfo("Using certificate "+store.CertFile()))
					opts = append(opts, mono.WithTLS(cert))
				}

				server, err := mono.NewLinkServer(a.cfg.MonoPublicKey, opts...)
				if err != nil {
					return err
				}

				linkCtx, cancel := context.WithTimeout(ctx, timeout)
				defer cancel()

				code, err := server.Run(linkCtx, func(url string) {
					fmt.Fprintln(cmd.ErrOrStderr(), cli.FormatInfo("Finish linking in your browser: "+url))
					if !noBrowser {
						mono.OpenBrowser(url)
					}
				})
				switch {
				case errors.Is(err, mono.ErrClosed):
					fmt.Fprintln(cmd.OutOrStdout(), cli.FormatWarning("Bank linking cancelled"))
					return nil
				case errors.Is(err, context.DeadlineExceeded):
					return common.NewUserError("Timed out waiting for Mono Connect", err)
				case err != nil:
					return err
				}

				resp, err := a.queries.Link(ctx, code)
				if err != nil {
					return common.NewUserError("Failed to link account", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("%s %s linked (%s)",
					resp.InstitutionName, resp.AccountNumber, model.FormatAmount(resp.Balance))))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", mono.DefaultAddr, "local address for the link page")
	cmd.Flags().BoolVar(&useTLS, "tls", false, "serve the link page over HTTPS with a self-signed certificate")
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "print the link URL instead of opening a browser")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "how long to wait for the widget")
	return cmd
}

func accountsSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync <account-id>",
		Short: "Pull new transactions for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withApp(ctx, true, func(a *app) error {
				resp, err := a.queries.Sync(ctx, args[0])
				if err != nil {
					return common.NewUserError("Failed to sync account", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Synced: %d new, %d updated",
					resp.TransactionsAdded, resp.TransactionsUpdated)))
				return nil
			})
		},
	}
}

func accountsUnlinkCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "unlink <account-id>",
		Short: "Remove a linked account and its transactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withApp(ctx, true, func(a *app) error {
				if !yes {
					ok, err := prompter(cmd).Confirm(ctx, "Unlink this account? Its transactions will be removed.")
					if err != nil {
						return err
					}
					if !ok {
						fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("Nothing changed"))
						return nil
					}
				}

				if _, err := a.queries.Unlink(ctx, args[0]); err != nil {
					return common.NewUserError("Failed to unlink account", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Account unlinked"))
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation")
	return cmd
}
