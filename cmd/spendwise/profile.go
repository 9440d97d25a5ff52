package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spendwise/internal/cache"
	"github.com/Veraticus/spendwise/internal/cli"
	"github.com/Veraticus/spendwise/internal/model"
)

func profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "View or update your profile",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return withApp(ctx, true, func(a *app) error {
				user, err := a.queries.Me(ctx, cache.WithRefetch())
				if err != nil {
					return err
				}
				a.session.SetUser(&user)

				fmt.Fprintln(cmd.OutOrStdout(), cli.RenderTable(
					[]string{"Field", "Value"},
					[][]string{
						{"Name", user.Name},
						{"Email", user.Email},
						{"Verified", fmt.Sprint(user.IsEmailVerified)},
						{"Member since", dateOnly(user.CreatedAt)},
					},
				))
				return nil
			})
		},
	})
	cmd.AddCommand(profileUpdateCmd())

	return cmd
}

func profileUpdateCmd() *cobra.Command {
	var req model.UpdateUserRequest

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change your name or email",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if req.Name == "" && req.Email == "" {
				return fmt.Errorf("nothing to update: pass --name or --email")
			}
			return withApp(ctx, true, func(a *app) error {
				user, err := a.queries.UpdateProfile(ctx, req)
				if err != nil {
					return printValidation(cmd.ErrOrStderr(), err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Profile updated: %s <%s>", user.Name, user.Email)))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "new display name")
	cmd.Flags().StringVar(&req.Email, "email", "", "new email")
	return cmd
}

func dateOnly(s string) string {
	if len(s) > 10 {
		return s[:10]
	}
	return s
}
