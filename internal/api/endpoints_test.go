package api

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spendwise/internal/model"
	"github.com/Veraticus/spendwise/internal/session"
	"github.com/Veraticus/spendwise/internal/testutil"
)

const (
	testTimeout = 2 * time.Second
	testTick    = 10 * time.Millisecond
)

func TestLoginAndRegister(t *testing.T) {
	backend := testutil.NewBackend(t)
	client := NewClient(backend.URL(), session.New(context.Background(), nil))
	ctx := context.Background()

	resp, err := client.Login(ctx, model.LoginCredentials{Email: testutil.DefaultEmail, Password: testutil.DefaultPassword})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, testutil.DefaultEmail, resp.User.Email)

	_, err = client.Login(ctx, model.LoginCredentials{Email: testutil.DefaultEmail, Password: "wrong"})
	require.ErrorIs(t, err, ErrUnauthorized)

	reg, err := client.Register(ctx, model.RegisterData{Email: "grace@example.com", Password: "hopper-123", Name: "Grace"})
	require.NoError(t, err)
	assert.Equal(t, "Grace", reg.User.Name)

	_, err = client.Register(ctx, model.RegisterData{Email: "grace@example.com", Password: "hopper-123", Name: "Grace"})
	require.Error(t, err)
	assert.Equal(t, 409, StatusCode(err))
}

func TestRefreshLeavesSessionAlone(t *testing.T) {
	backend := testutil.NewBackend(t)
	store := session.New(context.Background(), nil)
	client := NewClient(backend.URL(), store)
	ctx := context.Background()

	resp, err := client.Login(ctx, model.LoginCredentials{Email: testutil.DefaultEmail, Password: testutil.DefaultPassword})
	require.NoError(t, err)

	pair, err := client.Refresh(ctx, resp.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, resp.AccessToken, pair.AccessToken)
	assert.NotEqual(t, resp.RefreshToken, pair.RefreshToken)
	assert.Empty(t, store.State().AccessToken)

	_, err = client.Refresh(ctx, resp.RefreshToken)
	require.ErrorIs(t, err, ErrUnauthorized, "a used refresh token is rejected")
	assert.Equal(t, 2, backend.Calls("POST /auth/refresh"))
}

func TestTransactionsPaging(t *testing.T) {
	client, _, _ := newSignedInClient(t)
	ctx := context.Background()

	first, err := client.Transactions(ctx, model.TransactionFilters{Page: 1, Limit: 20})
	require.NoError(t, err)
	assert.Len(t, first.Transactions, 20)
	assert.Equal(t, 45, first.Total)
	assert.True(t, first.HasMore)

	last, err := client.Transactions(ctx, model.TransactionFilters{Page: 3, Limit: 20})
	require.NoError(t, err)
	assert.Len(t, last.Transactions, 5)
	assert.False(t, last.HasMore)

	txn, err := client.Transaction(ctx, first.Transactions[0].ID)
	require.NoError(t, err)
	assert.Equal(t, first.Transactions[0].ID, txn.ID)
}

func TestAccountLifecycle(t *testing.T) {
	client, _, backend := newSignedInClient(t)
	ctx := context.Background()

	linked, err := client.LinkAccount(ctx, model.LinkAccountRequest{Code: "code_abc"})
	require.NoError(t, err)
	assert.Equal(t, []string{"code_abc"}, backend.LinkCodes)

	synced, err := client.SyncAccount(ctx, linked.ID)
	require.NoError(t, err)
	assert.Equal(t, linked.ID, synced.AccountID)

	_, err = client.UnlinkAccount(ctx, linked.ID)
	require.NoError(t, err)

	accounts, err := client.Accounts(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 2)
}

func TestInsightAndAIEndpoints(t *testing.T) {
	client, _, backend := newSignedInClient(t)
	ctx := context.Background()

	insight, err := client.MonthlyInsights(ctx, model.MonthlyInsightsParams{Month: "2026-09"})
	require.NoError(t, err)
	assert.Equal(t, backend.Insight.TopCategory, insight.TopCategory)

	cats, err := client.CategoryBreakdown(ctx, model.CategoryBreakdownParams{})
	require.NoError(t, err)
	assert.Len(t, cats, len(backend.Insight.CategoryData))

	cmp, err := client.Comparison(ctx, model.ComparisonParams{CurrentMonth: "2026-09"})
	require.NoError(t, err)
	assert.Equal(t, "2026-08", cmp.PreviousMonth.Month)

	_, err = client.RecalculateInsights(ctx, model.RecalculateRequest{Month: "2026-09"})
	require.NoError(t, err)

	narrative, err := client.InsightNarrative(ctx, model.MonthlyInsightsParams{})
	require.NoError(t, err)
	assert.NotEmpty(t, narrative.Summary)

	_, err = client.Anomalies(ctx)
	require.NoError(t, err)

	advice, err := client.Advice(ctx)
	require.NoError(t, err)
	assert.Len(t, advice.Recommendations, 3)

	pred, err := client.Predictions(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, pred.ByCategory)

	ai, err := client.AIInsights(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, ai.Suggestions)
}

func TestTransactionQuery(t *testing.T) {
	q := transactionQuery(model.TransactionFilters{Category: "Shopping", Type: model.TypeDebit, Page: 2, Limit: 20})
	assert.Equal(t, url.Values{
		"category": {"Shopping"},
		"type":     {"debit"},
		"page":     {"2"},
		"limit":    {"20"},
	}, q)

	assert.Empty(t, transactionQuery(model.TransactionFilters{}))
}
