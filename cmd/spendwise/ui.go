package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spendwise/internal/tui"
	"github.com/Veraticus/spendwise/internal/tui/themes"
	"github.com/Veraticus/spendwise/internal/ui"
)

func uiCmd() *cobra.Command {
	var (
		theme     string
		noMouse   bool
		noBrowser bool
	)

	cmd := &cobra.Command{
		Use:   "ui",
		Short: "Open the interactive dashboard",
		Long: `Open the full-screen dashboard.

Pull down with the mouse or press r to refresh, 1-4 to switch screens,
? for help and q to quit.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return withApp(ctx, false, func(a *app) error {
				gate := ui.NewGate(a.session, func(ctx context.Context) error {
					_, err := a.queries.RestoreSession(ctx)
					return err
				},
					ui.WithSplashMinimum(a.cfg.SplashMinimum),
					ui.WithGateLogger(a.logger.With("component", "gate")),
				)

				return tui.Run(ctx, tui.Deps{
					Queries:      a.queries,
					Gate:         gate,
					Notifier:     a.notifier,
					Connectivity: a.connectivity,
				},
					tui.WithTheme(themes.GetTheme(theme)),
					tui.WithLogger(a.logger.With("component", "tui")),
					tui.WithSplashMinimum(a.cfg.SplashMinimum),
					tui.WithMonoKey(a.cfg.MonoPublicKey),
					tui.WithMouse(!noMouse),
					tui.WithBrowser(!noBrowser),
				)
			})
		},
	}
	cmd.Flags().StringVar(&theme, "theme", "default", "color theme (default, catppuccin-mocha)")
	cmd.Flags().BoolVar(&noMouse, "no-mouse", false, "disable mouse input and pull-to-refresh")
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "do not open a browser when linking accounts")
	return cmd
}
