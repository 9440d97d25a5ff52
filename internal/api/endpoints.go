package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Veraticus/spendwise/internal/model"
)

// Login exchanges credentials for a session.
func (c *Client) Login(ctx context.Context, creds model.LoginCredentials) (*model.AuthResponse, error) {
	var resp model.AuthResponse
	if err := c.Do(ctx, Request{Method: http.MethodPost, Path: "/auth/login", Body: creds}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Register creates an account and returns its session.
func (c *Client) Register(ctx context.Context, data model.RegisterData) (*model.AuthResponse, error) {
	var resp model.AuthResponse
	if err := c.Do(ctx, Request{Method: http.MethodPost, Path: "/auth/register", Body: data}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout revokes the session server-side.
func (c *Client) Logout(ctx context.Context) error {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: "/auth/logout"}, nil)
}

// Refresh exchanges a refresh token for a new pair without touching the session.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*model.TokenPair, error) {
	var pair model.TokenPair
	err := c.send(ctx, Request{
		Method: http.MethodPost,
		Path:   "/auth/refresh",
		Body:   model.RefreshRequest{RefreshToken: refreshToken},
	}, &pair)
	if err != nil {
		return nil, err
	}
	return &pair, nil
}

// ForgotPassword requests a password reset email.
func (c *Client) ForgotPassword(ctx context.Context, req model.ForgotPasswordRequest) (*model.MessageResponse, error) {
	return c.message(ctx, http.MethodPost, "/auth/forgot-password", req)
}

// ResetPassword sets a new password using a reset token.
func (c *Client) ResetPassword(ctx context.Context, req model.ResetPasswordRequest) (*model.MessageResponse, error) {
	return c.message(ctx, http.MethodPost, "/auth/reset-password", req)
}

// VerifyEmail confirms an email address with the emailed code. The backend
// answers with a fresh session for the verified user.
func (c *Client) VerifyEmail(ctx context.Context, req model.VerifyEmailRequest) (*model.AuthResponse, error) {
	var resp model.AuthResponse
	if err := c.Do(ctx, Request{Method: http.MethodPost, Path: "/auth/verify-email", Body: req}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ResendVerification sends a new verification code.
func (c *Client) ResendVerification(ctx context.Context, req model.ResendVerificationRequest) (*model.MessageResponse, error) {
	return c.message(ctx, http.MethodPost, "/auth/resend-verification", req)
}

// ChangePassword changes the signed-in user's password.
func (c *Client) ChangePassword(ctx context.Context, req model.ChangePasswordRequest) (*model.MessageResponse, error) {
	return c.message(ctx, http.MethodPost, "/auth/change-password", req)
}

// CurrentUser returns the signed-in user.
func (c *Client) CurrentUser(ctx context.Context) (*model.User, error) {
	var user model.User
	if err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/users/me"}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateCurrentUser patches the signed-in user's profile.
func (c *Client) UpdateCurrentUser(ctx context.Context, req model.UpdateUserRequest) (*model.User, error) {
	var user model.User
	if err := c.Do(ctx, Request{Method: http.MethodPatch, Path: "/users/me", Body: req}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Accounts lists linked bank accounts.
func (c *Client) Accounts(ctx context.Context) ([]model.BankAccount, error) {
	var resp model.AccountsResponse
	if err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/mono/accounts"}, &resp); err != nil {
		return nil, err
	}
	return resp.Accounts, nil
}

// LinkAccount links the account authorized by a Mono Connect code.
func (c *Client) LinkAccount(ctx context.Context, req model.LinkAccountRequest) (*model.LinkAccountResponse, error) {
	var resp model.LinkAccountResponse
	if err := c.Do(ctx, Request{Method: http.MethodPost, Path: "/mono/link", Body: req}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UnlinkAccount removes a linked account.
func (c *Client) UnlinkAccount(ctx context.Context, accountID string) (*model.MessageResponse, error) {
	return c.message(ctx, http.MethodDelete, "/mono/accounts/"+url.PathEscape(accountID), nil)
}

// SyncAccount pulls fresh transactions for an account.
func (c *Client) SyncAccount(ctx context.Context, accountID string) (*model.SyncAccountResponse, error) {
	var resp model.SyncAccountResponse
	path := "/mono/accounts/" + url.PathEscape(accountID) + "/sync"
	if err := c.Do(ctx, Request{Method: http.MethodPost, Path: path}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Transactions fetches one page of transactions.
func (c *Client) Transactions(ctx context.Context, f model.TransactionFilters) (*model.TransactionsResponse, error) {
	var resp model.TransactionsResponse
	if err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/transactions", Query: transactionQuery(f)}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Transaction fetches a single transaction.
func (c *Client) Transaction(ctx context.Context, id string) (*model.Transaction, error) {
	var resp model.TransactionResponse
	if err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/transactions/" + url.PathEscape(id)}, &resp); err != nil {
		return nil, err
	}
	return &resp.Transaction, nil
}

// MonthlyInsights returns the insight for a month.
func (c *Client) MonthlyInsights(ctx context.Context, p model.MonthlyInsightsParams) (*model.MonthlyInsight, error) {
	var resp model.MonthlyInsightsResponse
	q := params("month", p.Month)
	if err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/insights/monthly", Query: q}, &resp); err != nil {
		return nil, err
	}
	return &resp.Insights, nil
}

// CategoryBreakdown returns spending per category.
func (c *Client) CategoryBreakdown(ctx context.Context, p model.CategoryBreakdownParams) ([]model.CategoryBreakdown, error) {
	var resp model.CategoryBreakdownResponse
	q := params("month", p.Month, "startDate", p.StartDate, "endDate", p.EndDate)
	if err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/insights/categories", Query: q}, &resp); err != nil {
		return nil, err
	}
	if resp.Breakdown.Categories == nil {
		return []model.CategoryBreakdown{}, nil
	}
	return resp.Breakdown.Categories, nil
}

// Comparison compares two months.
func (c *Client) Comparison(ctx context.Context, p model.ComparisonParams) (*model.MonthComparison, error) {
	var resp model.ComparisonResponse
	q := params("currentMonth", p.CurrentMonth, "previousMonth", p.PreviousMonth)
	if err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/insights/comparison", Query: q}, &resp); err != nil {
		return nil, err
	}
	return &resp.Comparison, nil
}

// RecalculateInsights recomputes a month's insight server-side.
func (c *Client) RecalculateInsights(ctx context.Context, req model.RecalculateRequest) (*model.MonthlyInsight, error) {
	var resp model.MonthlyInsightsResponse
	if err := c.Do(ctx, Request{Method: http.MethodPost, Path: "/insights/recalculate", Body: req}, &resp); err != nil {
		return nil, err
	}
	return &resp.Insights, nil
}

// InsightNarrative returns the AI narrative for a month.
func (c *Client) InsightNarrative(ctx context.Context, p model.MonthlyInsightsParams) (*model.AIInsight, error) {
	var resp model.AIInsight
	if err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/insights/ai", Query: params("month", p.Month)}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Anomalies lists transactions flagged as unusual.
func (c *Client) Anomalies(ctx context.Context) ([]model.Anomaly, error) {
	var resp []model.Anomaly
	if err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/ai/anomalies"}, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Advice returns financial recommendations.
func (c *Client) Advice(ctx context.Context) (*model.AdviceResponse, error) {
	var resp model.AdviceResponse
	if err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/ai/advice"}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Predictions returns next month's spending forecast.
func (c *Client) Predictions(ctx context.Context) (*model.PredictionResponse, error) {
	var resp model.PredictionResponse
	if err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/ai/predictions"}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AIInsights returns highlights, warnings and suggestions.
func (c *Client) AIInsights(ctx context.Context) (*model.AIInsightsResponse, error) {
	var resp model.AIInsightsResponse
	if err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/ai/insights"}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) message(ctx context.Context, method, path string, body any) (*model.MessageResponse, error) {
	var resp model.MessageResponse
	if err := c.Do(ctx, Request{Method: method, Path: path, Body: body}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func transactionQuery(f model.TransactionFilters) url.Values {
	q := params("startDate", f.StartDate, "endDate", f.EndDate, "category", f.Category, "type", string(f.Type))
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	return q
}

// params builds query values from key/value pairs, skipping empty values.
func params(kv ...string) url.Values {
	q := url.Values{}
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] != "" {
			q.Set(kv[i], kv[i+1])
		}
	}
	return q
}
