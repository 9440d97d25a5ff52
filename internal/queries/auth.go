package queries

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/spendwise/internal/api"
	"github.com/Veraticus/spendwise/internal/cache"
	"github.com/Veraticus/spendwise/internal/common"
	"github.com/Veraticus/spendwise/internal/model"
)

// Messages shown when authentication fails. They never say which field was wrong.
const (
	LoginFailedMessage    = "Invalid email or password. Please try again."
	RegisterFailedMessage = "Registration failed. Please try again."
	ForgotPasswordMessage = "If an account exists, a reset email has been sent."
)

// DashboardRecentLimit is the number of recent transactions on the dashboard.
const DashboardRecentLimit = 5

func (q *Queries) bindSession() {
	q.LogoutMutation = cache.Mutation[None, struct{}]{
		Name: "logout",
		Run: func(ctx context.Context, _ None) (struct{}, error) {
			return struct{}{}, q.client.Logout(ctx)
		},
		Invalidates: invalidate[None](cache.AllTypes()...),
	}
}

// Login authenticates and installs the session.
func (q *Queries) Login(ctx context.Context, creds model.LoginCredentials) (*model.User, error) {
	if err := ValidateLogin(creds); err != nil {
		return nil, err
	}

	q.session.SetLoading(true)
	resp, err := q.client.Login(ctx, creds)
	if err != nil {
		q.logger.Debug("Login failed", "error", err)
		q.session.SetError(LoginFailedMessage)
		return nil, common.NewUserError(LoginFailedMessage, err)
	}

	q.session.SetCredentials(&resp.User, resp.AccessToken, resp.RefreshToken)
	q.logger.Info("Logged in", "user_id", resp.User.ID)
	return &resp.User, nil
}

// Register creates an account and signs it in.
func (q *Queries) Register(ctx context.Context, data model.RegisterData) (*model.User, error) {
	if err := ValidateRegister(data); err != nil {
		return nil, err
	}

	q.session.SetLoading(true)
	resp, err := q.client.Register(ctx, data)
	if err != nil {
		q.logger.Debug("Registration failed", "error", err)
		q.session.SetError(RegisterFailedMessage)
		return nil, common.NewUserError(RegisterFailedMessage, err)
	}

	q.session.SetCredentials(&resp.User, resp.AccessToken, resp.RefreshToken)
	q.logger.Info("Registered", "user_id", resp.User.ID)
	return &resp.User, nil
}

// ForgotPassword requests a reset email. It reports success whatever the
// backend answers so that callers cannot probe which emails exist.
func (q *Queries) ForgotPassword(ctx context.Context, email string) (string, error) {
	var v validator
	v.email("email", email)
	if err := v.err(); err != nil {
		return "", err
	}

	if _, err := q.client.ForgotPassword(ctx, model.ForgotPasswordRequest{Email: email}); err != nil {
		q.logger.Debug("Forgot password request failed", "error", err)
	}
	return ForgotPasswordMessage, nil
}

// ResetPassword sets a new password with an emailed token.
func (q *Queries) ResetPassword(ctx context.Context, req model.ResetPasswordRequest) error {
	if err := ValidatePasswordReset(req); err != nil {
		return err
	}
	if _, err := q.client.ResetPassword(ctx, req); err != nil {
		return common.NewUserError("Failed to reset password. The link may have expired.", err)
	}
	return nil
}

// Verify confirms the user's email. A session in the response replaces the current one.
func (q *Queries) Verify(ctx context.Context, code string) (*model.User, error) {
	if err := requireFields(field{"code", code}); err != nil {
		return nil, err
	}
	resp, err := cache.Mutate(ctx, q.cache, q.VerifyEmail, model.VerifyEmailRequest{Token: code})
	if err != nil {
		return nil, err
	}
	if resp.AccessToken != "" {
		q.session.SetCredentials(&resp.User, resp.AccessToken, resp.RefreshToken)
	} else {
		q.session.SetUser(&resp.User)
	}
	return &resp.User, nil
}

// ResendVerification sends a new verification code.
func (q *Queries) ResendVerification(ctx context.Context, email string) error {
	var v validator
	v.email("email", email)
	if err := v.err(); err != nil {
		return err
	}
	_, err := q.client.ResendVerification(ctx, model.ResendVerificationRequest{Email: email})
	return err
}

// ChangePassword changes the signed-in user's password.
func (q *Queries) ChangePassword(ctx context.Context, req model.ChangePasswordRequest) error {
	if err := ValidatePasswordChange(req); err != nil {
		return err
	}
	_, err := q.client.ChangePassword(ctx, req)
	return err
}

// Logout revokes the session, clears the token store and drops every cached
// response. A failed revoke does not keep the user signed in.
func (q *Queries) Logout(ctx context.Context) error {
	if q.session.Token() != nil {
		if _, err := cache.Mutate(ctx, q.cache, q.LogoutMutation, None{}); err != nil {
			q.logger.Debug("Logout request failed", "error", err)
		}
	}
	q.session.Logout()
	return q.cache.Reset(ctx)
}

// RestoreSession checks stored credentials against the backend. Without an
// access token it ends the loading phase and returns ErrNotAuthenticated.
func (q *Queries) RestoreSession(ctx context.Context) (*model.User, error) {
	if q.session.Token() == nil {
		q.session.SetLoading(false)
		return nil, common.ErrNotAuthenticated
	}

	user, err := cache.Query(ctx, q.cache, q.CurrentUser, None{}, cache.WithRefetch())
	switch {
	case err == nil:
		q.session.SetUser(&user)
		q.session.SetLoading(false)
		return &user, nil
	case errors.Is(err, api.ErrUnauthorized):
		q.session.Logout()
		return nil, common.ErrSessionExpired
	default:
		// Offline or server trouble: keep the stored session.
		q.logger.Warn("Could not verify session", "error", err)
		q.session.SetLoading(false)
		st := q.session.State()
		if st.User != nil {
			return st.User, err
		}
		return nil, err
	}
}

// Dashboard is everything the overview screen shows.
type Dashboard struct {
	Insight    *model.MonthlyInsight
	Comparison *model.MonthComparison
	Accounts   []model.BankAccount
	Recent     []model.Transaction
	Month      string
}

// LoadDashboard fetches the dashboard queries concurrently. With refetch set
// every query bypasses the cache, as a pull-to-refresh does.
func (q *Queries) LoadDashboard(ctx context.Context, now time.Time, refetch bool) (*Dashboard, error) {
	var opts []cache.QueryOption
	if refetch {
		opts = append(opts, cache.WithRefetch())
	}

	d := &Dashboard{Month: model.CurrentMonth(now)}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		accounts, err := q.GetAccounts(gctx, opts...)
		d.Accounts = accounts
		return err
	})
	g.Go(func() error {
		page, err := q.GetTransactions(gctx, model.TransactionFilters{Page: 1, Limit: DashboardRecentLimit}, opts...)
		d.Recent = page.Data
		return err
	})
	g.Go(func() error {
		insight, err := q.GetMonthlyInsight(gctx, d.Month, opts...)
		if err == nil {
			d.Insight = &insight
		}
		return err
	})
	g.Go(func() error {
		cmp, err := q.GetComparison(gctx, d.Month, opts...)
		if err == nil {
			d.Comparison = &cmp
		}
		return err
	})

	if err := g.Wait(); err != nil {
		return d, err
	}
	return d, nil
}

// RefreshDashboard refetches every dashboard query.
func (q *Queries) RefreshDashboard(ctx context.Context, now time.Time) (*Dashboard, error) {
	return q.LoadDashboard(ctx, now, true)
}
