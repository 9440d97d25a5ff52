package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Veraticus/spendwise/internal/cli"
	"github.com/Veraticus/spendwise/internal/common"
	"github.com/Veraticus/spendwise/internal/model"
	"github.com/Veraticus/spendwise/internal/queries"
)

func authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Sign in and manage your session",
		Long:  `Sign in, register, and manage passwords and email verification.`,
	}

	cmd.AddCommand(authLoginCmd())
	cmd.AddCommand(authRegisterCmd())
	cmd.AddCommand(authLogoutCmd())
	cmd.AddCommand(authStatusCmd())
	cmd.AddCommand(authRefreshCmd())
	cmd.AddCommand(authForgotCmd())
	cmd.AddCommand(authResetCmd())
	cmd.AddCommand(authVerifyCmd())
	cmd.AddCommand(authResendCmd())
	cmd.AddCommand(authChangePasswordCmd())

	return cmd
}

func prompter(cmd *cobra.Command) *cli.Prompter {
	return cli.NewPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
}

// flagOrAsk returns the flag's value, prompting for it when empty.
func flagOrAsk(ctx context.Context, cmd *cobra.Command, p *cli.Prompter, flag, label string) (string, error) {
	if v, _ := cmd.Flags().GetString(flag); v != "" {
		return v, nil
	}
	return p.Ask(ctx, label)
}

// printValidation lists field errors one per line and returns err unchanged.
func printValidation(w io.Writer, err error) error {
	var verr *queries.ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	for name, msg := range verr.Fields {
		fmt.Fprintln(w, cli.FormatError(fmt.Sprintf("%s: %s", name, msg)))
	}
	return common.NewUserError("Please fix the errors above", err)
}

func authLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to SpendWise",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			p := prompter(cmd)

			email, err := flagOrAsk(ctx, cmd, p, "email", "Email")
			if err != nil {
				return err
			}
			password, err := p.Secret(ctx, "Password")
			if err != nil {
				return err
			}

			return withApp(ctx, false, func(a *app) error {
				user, err := a.queries.Login(ctx, model.LoginCredentials{Email: email, Password: password})
				if err != nil {
					return printValidation(cmd.ErrOrStderr(), err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Signed in as "+user.Name))
				if !user.IsEmailVerified {
					fmt.Fprintln(cmd.OutOrStdout(), cli.FormatWarning("Your email is not verified. Run: spendwise auth verify"))
				}
				return nil
			})
		},
	}
	cmd.Flags().String("email", "", "account email")
	return cmd
}

func authRegisterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a SpendWise account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			p := prompter(cmd)

			name, err := flagOrAsk(ctx, cmd, p, "name", "Name")
			if err != nil {
				return err
			}
			email, err := flagOrAsk(ctx, cmd, p, "email", "Email")
			if err != nil {
				return err
			}
			password, err := p.Secret(ctx, "Password")
			if err != nil {
				return err
			}

			return withApp(ctx, false, func(a *app) error {
				user, err := a.queries.Register(ctx, model.RegisterData{Name: name, Email: email, Password: password})
				if err != nil {
					return printValidation(cmd.ErrOrStderr(), err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Welcome, "+user.Name+"!"))
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("Check "+user.Email+" for a verification code, then run: spendwise auth verify"))
				return nil
			})
		},
	}
	cmd.Flags().String("name", "", "display name")
	cmd.Flags().String("email", "", "account email")
	return cmd
}

func authLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget cached data",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return withApp(ctx, false, func(a *app) error {
				if err := a.queries.Logout(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Signed out"))
				return nil
			})
		},
	}
}

func authStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), false, func(a *app) error {
				out := cmd.OutOrStdout()
				st := a.session.State()
				if !st.IsAuthenticated {
					fmt.Fprintln(out, cli.FormatInfo("Not signed in"))
					return nil
				}

				verified := cli.SuccessStyle.Render("verified")
				if !st.User.IsEmailVerified {
					verified = cli.WarningStyle.Render("not verified")
				}
				fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Signed in as %s <%s>", st.User.Name, st.User.Email)))
				fmt.Fprintln(out, "  Email:  "+verified)
				fmt.Fprintln(out, "  Server: "+a.cfg.APIURL)
				fmt.Fprintln(out, "  Access: "+tokenExpiry(a, time.Now()))
				return nil
			})
		},
	}
}

func tokenExpiry(a *app, now time.Time) string {
	exp, err := a.session.AccessTokenExpiry()
	switch {
	case err != nil:
		a.logger.Debug("Could not read token expiry", "error", err)
		return "expiry unknown"
	case exp.IsZero():
		return "does not expire"
	case exp.Before(now):
		return "expired " + humanize.RelTime(exp, now, "ago", "from now") + ", renewed on next request"
	default:
		return "expires " + humanize.RelTime(exp, now, "ago", "from now")
	}
}

func authRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Renew the access token now",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return withApp(ctx, true, func(a *app) error {
				if err := a.queries.Client().RefreshSession(ctx); err != nil {
					return common.NewUserError("Could not renew the session. Sign in again with: spendwise auth login", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Session renewed"))
				return nil
			})
		},
	}
}

func authForgotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forgot",
		Short: "Email a password reset link",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			email, err := flagOrAsk(ctx, cmd, prompter(cmd), "email", "Email")
			if err != nil {
				return err
			}
			return withApp(ctx, false, func(a *app) error {
				msg, err := a.queries.ForgotPassword(ctx, email)
				if err != nil {
					return printValidation(cmd.ErrOrStderr(), err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo(msg))
				return nil
			})
		},
	}
	cmd.Flags().String("email", "", "account email")
	return cmd
}

func authResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Set a new password with a reset token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			p := prompter(cmd)
			token, err := flagOrAsk(ctx, cmd, p, "token", "Reset token")
			if err != nil {
				return err
			}
			password, err := p.Secret(ctx, "New password")
			if err != nil {
				return err
			}
			return withApp(ctx, false, func(a *app) error {
				err := a.queries.ResetPassword(ctx, model.ResetPasswordRequest{Token: token, NewPassword: password})
				if err != nil {
					return printValidation(cmd.ErrOrStderr(), err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Password reset. Sign in with: spendwise auth login"))
				return nil
			})
		},
	}
	cmd.Flags().String("token", "", "token from the reset email")
	return cmd
}

func authVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify [code]",
		Short: "Verify your email with the emailed code",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var code string
			if len(args) == 1 {
				code = args[0]
			} else {
				var err error
				if code, err = prompter(cmd).Ask(ctx, "Verification code"); err != nil {
					return err
				}
			}
			return withApp(ctx, false, func(a *app) error {
				user, err := a.queries.Verify(ctx, code)
				if err != nil {
					return printValidation(cmd.ErrOrStderr(), err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(user.Email+" verified"))
				return nil
			})
		},
	}
}

func authResendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resend",
		Short: "Send a new verification code",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return withApp(ctx, false, func(a *app) error {
				email, _ := cmd.Flags().GetString("email")
				if email == "" {
					if user := a.session.State().User; user != nil {
						email = user.Email
					}
				}
				if email == "" {
					var err error
					if email, err = prompter(cmd).Ask(ctx, "Email"); err != nil {
						return err
					}
				}
				if err := a.queries.ResendVerification(ctx, email); err != nil {
					return printValidation(cmd.ErrOrStderr(), err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("Verification code sent to "+email))
				return nil
			})
		},
	}
	cmd.Flags().String("email", "", "account email (default: the signed-in user)")
	return cmd
}

func authChangePasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "change-password",
		Short: "Change your password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return withApp(ctx, true, func(a *app) error {
				p := prompter(cmd)
				current, err := p.Secret(ctx, "Current password")
				if err != nil {
					return err
				}
				next, err := p.Secret(ctx, "New password")
				if err != nil {
					return err
				}
				err = a.queries.ChangePassword(ctx, model.ChangePasswordRequest{CurrentPassword: current, NewPassword: next})
				if err != nil {
					return printValidation(cmd.ErrOrStderr(), err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Password changed"))
				return nil
			})
		},
	}
}
