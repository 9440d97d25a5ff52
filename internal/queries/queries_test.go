package queries

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spendwise/internal/api"
	"github.com/Veraticus/spendwise/internal/cache"
	"github.com/Veraticus/spendwise/internal/common"
	"github.com/Veraticus/spendwise/internal/model"
	"github.com/Veraticus/spendwise/internal/session"
	"github.com/Veraticus/spendwise/internal/storage"
	"github.com/Veraticus/spendwise/internal/testutil"
)

type fixture struct {
	q       *Queries
	backend *testutil.Backend
	db      *storage.SQLiteStorage
	store   *session.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend := testutil.NewBackend(t)
	db := testutil.SetupTestDB(t)
	store := session.New(context.Background(), db)
	client := api.NewClient(backend.URL(), store)
	c := cache.New(cache.WithPersistence(db, time.Minute))
	t.Cleanup(c.Close)
	return &fixture{q: New(client, c, store), backend: backend, db: db, store: store}
}

func signedIn(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t)
	_, err := f.q.Login(context.Background(), model.LoginCredentials{Email: testutil.DefaultEmail, Password: testutil.DefaultPassword})
	require.NoError(t, err)
	f.backend.ResetCalls()
	return f
}

func TestLoginThenTransparentRefresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.q.Login(ctx, model.LoginCredentials{Email: testutil.DefaultEmail, Password: testutil.DefaultPassword})
	require.NoError(t, err)
	assert.Equal(t, testutil.DefaultEmail, user.Email)

	st := f.store.State()
	require.True(t, st.IsAuthenticated)
	assert.False(t, st.IsLoading)
	at1, rt1 := st.AccessToken, st.RefreshToken

	creds, err := f.db.LoadCredentials(ctx)
	require.NoError(t, err)
	assert.Equal(t, at1, creds.AccessToken)
	assert.Equal(t, rt1, creds.RefreshToken)
	require.NotNil(t, creds.User)
	assert.Equal(t, user.ID, creds.User.ID)

	f.backend.ExpireAccessTokens()
	accounts, err := f.q.GetAccounts(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 2)

	st = f.store.State()
	assert.NotEqual(t, at1, st.AccessToken)
	assert.NotEqual(t, rt1, st.RefreshToken)
	assert.True(t, st.IsAuthenticated)
	assert.Equal(t, 1, f.backend.Calls("POST /auth/refresh"))
	assert.Equal(t, 2, f.backend.Calls("GET /mono/accounts"))

	creds, err = f.db.LoadCredentials(ctx)
	require.NoError(t, err)
	assert.Equal(t, st.AccessToken, creds.AccessToken)
	assert.Equal(t, st.RefreshToken, creds.RefreshToken)
}

func TestLoginFailureIsGeneric(t *testing.T) {
	f := newFixture(t)

	_, err := f.q.Login(context.Background(), model.LoginCredentials{Email: testutil.DefaultEmail, Password: "not-the-password"})
	require.Error(t, err)
	assert.Equal(t, LoginFailedMessage, common.UserMessage(err))

	st := f.store.State()
	assert.Equal(t, LoginFailedMessage, st.Error)
	assert.False(t, st.IsAuthenticated)
	assert.False(t, st.IsLoading)
}

func TestValidationHappensBeforeRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.q.Login(ctx, model.LoginCredentials{Email: "not-an-email", Password: ""})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.NotEmpty(t, verr.Field("email"))
	assert.NotEmpty(t, verr.Field("password"))

	_, err = f.q.Register(ctx, model.RegisterData{Email: "grace@example.com", Password: "short", Name: "G"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Password must be at least 8 characters", verr.Field("password"))
	assert.Equal(t, "Name must be at least 2 characters", verr.Field("name"))
	assert.Empty(t, verr.Field("email"))

	assert.Zero(t, f.backend.Calls("POST /auth/login"))
	assert.Zero(t, f.backend.Calls("POST /auth/register"))
}

func TestValidators(t *testing.T) {
	tests := []struct {
		err    error
		name   string
		fields []string
	}{
		{name: "valid login", err: ValidateLogin(model.LoginCredentials{Email: "a@b.com", Password: "Secret123"})},
		{name: "login without tld", err: ValidateLogin(model.LoginCredentials{Email: "a@b", Password: "x"}), fields: []string{"email"}},
		{name: "display name email", err: ValidateLogin(model.LoginCredentials{Email: "Ada <a@b.com>", Password: "x"}), fields: []string{"email"}},
		{name: "empty profile", err: ValidateProfile(model.UpdateUserRequest{}), fields: []string{"name"}},
		{name: "profile email only", err: ValidateProfile(model.UpdateUserRequest{Email: "new@example.com"})},
		{name: "same password", err: ValidatePasswordChange(model.ChangePasswordRequest{CurrentPassword: "Secret123", NewPassword: "Secret123"}), fields: []string{"newPassword"}},
		{name: "reset without token", err: ValidatePasswordReset(model.ResetPasswordRequest{NewPassword: "Secret123"}), fields: []string{"token"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if len(tt.fields) == 0 {
				assert.NoError(t, tt.err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, tt.err, &verr)
			assert.Len(t, verr.Fields, len(tt.fields))
			for _, name := range tt.fields {
				assert.NotEmpty(t, verr.Field(name), name)
			}
		})
	}
}

func TestForgotPasswordAlwaysSucceeds(t *testing.T) {
	f := newFixture(t)
	f.backend.FailRoute("POST /auth/forgot-password", 404)

	msg, err := f.q.ForgotPassword(context.Background(), "nobody@example.com")
	require.NoError(t, err)
	assert.Equal(t, ForgotPasswordMessage, msg)
	assert.Equal(t, 1, f.backend.Calls("POST /auth/forgot-password"))
}

func TestTransactionsAccumulatePages(t *testing.T) {
	f := signedIn(t)
	ctx := context.Background()
	filters := model.TransactionFilters{}

	page, err := f.q.GetTransactions(ctx, filters)
	require.NoError(t, err)
	assert.Len(t, page.Data, 20)
	assert.Equal(t, 1, page.Page)
	assert.True(t, page.HasMore)

	page, err = f.q.NextTransactions(ctx, filters)
	require.NoError(t, err)
	assert.Len(t, page.Data, 40)
	assert.Equal(t, 2, page.Page)

	page, err = f.q.NextTransactions(ctx, filters)
	require.NoError(t, err)
	assert.Len(t, page.Data, 45)
	assert.False(t, page.HasMore)
	assert.Equal(t, 45, page.Total)
	assert.Equal(t, f.backend.Transactions[0].ID, page.Data[0].ID)
	assert.Equal(t, f.backend.Transactions[44].ID, page.Data[44].ID)

	page, err = f.q.NextTransactions(ctx, filters)
	require.NoError(t, err)
	assert.Len(t, page.Data, 45)
	assert.Equal(t, 3, f.backend.Calls("GET /transactions"))

	page, err = f.q.GetTransactions(ctx, filters)
	require.NoError(t, err)
	assert.Len(t, page.Data, 20, "page 1 replaces the accumulated list")
	assert.Equal(t, 4, f.backend.Calls("GET /transactions"))
}

func TestTransactionFiltersAreSeparateLists(t *testing.T) {
	f := signedIn(t)
	ctx := context.Background()
	category := f.backend.Transactions[0].Category

	all, err := f.q.GetTransactions(ctx, model.TransactionFilters{})
	require.NoError(t, err)

	filtered, err := f.q.GetTransactions(ctx, model.TransactionFilters{Category: category})
	require.NoError(t, err)
	require.NotEmpty(t, filtered.Data)
	for _, txn := range filtered.Data {
		assert.Equal(t, category, txn.Category)
	}

	again, ok := cache.Peek(f.q.Cache(), f.q.Transactions, model.TransactionFilters{Page: 1, Limit: DefaultPageSize})
	require.True(t, ok)
	assert.Equal(t, all.Data, again.Data)
	assert.Equal(t, 2, f.backend.Calls("GET /transactions"))
}

func TestForcedFirstPageReplacesList(t *testing.T) {
	f := signedIn(t)
	ctx := context.Background()
	filters := model.TransactionFilters{}

	first, err := f.q.GetTransactions(ctx, filters)
	require.NoError(t, err)
	require.Len(t, first.Data, 20)

	f.backend.Transactions = f.backend.Transactions[5:]
	want := append([]model.Transaction{}, f.backend.Transactions[:20]...)

	second, err := f.q.GetTransactions(ctx, filters, cache.WithRefetch())
	require.NoError(t, err)
	assert.Equal(t, want, second.Data, "only the second response is kept")
	assert.Equal(t, 40, second.Total)
	assert.Equal(t, 1, second.Page)
	assert.Equal(t, 2, f.backend.Calls("GET /transactions"))

	cached, ok := cache.Peek(f.q.Cache(), f.q.Transactions, model.TransactionFilters{Page: 1, Limit: DefaultPageSize})
	require.True(t, ok)
	assert.Equal(t, want, cached.Data)
}

func TestPagingOneFilterLeavesOthersAlone(t *testing.T) {
	f := signedIn(t)
	ctx := context.Background()

	debits := 0
	for _, txn := range f.backend.Transactions {
		if txn.Type == model.TypeDebit {
			debits++
		}
	}
	require.Greater(t, debits, 5)

	debitFilter := model.TransactionFilters{Type: model.TypeDebit, Limit: 5}
	everything := model.TransactionFilters{}

	_, err := f.q.GetTransactions(ctx, debitFilter)
	require.NoError(t, err)
	before, err := f.q.GetTransactions(ctx, everything)
	require.NoError(t, err)

	debitPage, err := f.q.NextTransactions(ctx, debitFilter)
	require.NoError(t, err)
	assert.Equal(t, 2, debitPage.Page)
	assert.Len(t, debitPage.Data, min(10, debits))
	for _, txn := range debitPage.Data {
		assert.Equal(t, model.TypeDebit, txn.Type)
	}

	after, ok := cache.Peek(f.q.Cache(), f.q.Transactions, model.TransactionFilters{Page: 1, Limit: DefaultPageSize})
	require.True(t, ok)
	assert.Equal(t, before, after, "the unfiltered list is untouched")
	assert.Equal(t, 3, f.backend.Calls("GET /transactions"))
}

func TestUnlinkRefetchesTransactions(t *testing.T) {
	f := signedIn(t)
	ctx := context.Background()
	removed := f.backend.Accounts[0].ID

	_, err := f.q.GetTransactions(ctx, model.TransactionFilters{})
	require.NoError(t, err)
	_, err = f.q.GetAccounts(ctx)
	require.NoError(t, err)
	_, err = f.q.GetAnomalies(ctx)
	require.NoError(t, err)

	_, err = f.q.Unlink(ctx, removed)
	require.NoError(t, err)

	page, err := f.q.GetTransactions(ctx, model.TransactionFilters{})
	require.NoError(t, err)
	for _, txn := range page.Data {
		assert.NotEqual(t, removed, txn.AccountID)
	}
	accounts, err := f.q.GetAccounts(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 1)

	_, err = f.q.GetAnomalies(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, f.backend.Calls("GET /transactions"))
	assert.Equal(t, 2, f.backend.Calls("GET /mono/accounts"))
	assert.Equal(t, 1, f.backend.Calls("GET /ai/anomalies"), "AI results carry no account tags")
}

func TestLinkInvalidatesAccountList(t *testing.T) {
	f := signedIn(t)
	ctx := context.Background()

	_, err := f.q.GetTransactions(ctx, model.TransactionFilters{})
	require.NoError(t, err)

	_, err = f.q.Link(ctx, "")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	linked, err := f.q.Link(ctx, "code_123")
	require.NoError(t, err)

	accounts, err := f.q.GetAccounts(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 3)
	assert.Equal(t, linked.ID, accounts[2].ID)

	_, err = f.q.GetTransactions(ctx, model.TransactionFilters{})
	require.NoError(t, err)
	assert.Equal(t, 1, f.backend.Calls("GET /transactions"))
}

func TestRecalculateInvalidatesInsights(t *testing.T) {
	f := signedIn(t)
	ctx := context.Background()

	insight, err := f.q.GetMonthlyInsight(ctx, "2026-09")
	require.NoError(t, err)
	assert.Equal(t, "2026-09", insight.Month)

	_, err = f.q.GetMonthlyInsight(ctx, "2026-09")
	require.NoError(t, err)
	assert.Equal(t, 1, f.backend.Calls("GET /insights/monthly"))

	_, err = f.q.Recalculate(ctx, "2026-09")
	require.NoError(t, err)

	_, err = f.q.GetMonthlyInsight(ctx, "2026-09")
	require.NoError(t, err)
	assert.Equal(t, 2, f.backend.Calls("GET /insights/monthly"))
}

func TestUpdateProfile(t *testing.T) {
	f := signedIn(t)
	ctx := context.Background()

	_, err := f.q.Me(ctx)
	require.NoError(t, err)

	_, err = f.q.UpdateProfile(ctx, model.UpdateUserRequest{Name: "A"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	user, err := f.q.UpdateProfile(ctx, model.UpdateUserRequest{Name: "Ada Lovelace"})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", user.Name)
	assert.Equal(t, "Ada Lovelace", f.store.State().User.Name)

	me, err := f.q.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", me.Name)
	assert.Equal(t, 2, f.backend.Calls("GET /users/me"))
}

func TestVerifyInstallsNewSession(t *testing.T) {
	f := signedIn(t)
	ctx := context.Background()
	before := f.store.State().AccessToken

	_, err := f.q.Verify(ctx, "000000")
	require.Error(t, err)
	assert.Equal(t, 400, api.StatusCode(err))

	user, err := f.q.Verify(ctx, testutil.VerificationCode)
	require.NoError(t, err)
	assert.True(t, user.IsEmailVerified)

	st := f.store.State()
	assert.True(t, st.User.IsEmailVerified)
	assert.NotEqual(t, before, st.AccessToken)
}

func TestLogoutClearsEverything(t *testing.T) {
	f := signedIn(t)
	ctx := context.Background()

	_, err := f.q.GetAccounts(ctx)
	require.NoError(t, err)
	require.Positive(t, f.q.Cache().Len())

	f.backend.FailRoute("POST /auth/logout", 500)
	require.NoError(t, f.q.Logout(ctx))

	st := f.store.State()
	assert.False(t, st.IsAuthenticated)
	assert.Empty(t, st.AccessToken)
	assert.Zero(t, f.q.Cache().Len())
	assert.Equal(t, 1, f.backend.Calls("POST /auth/logout"))

	creds, err := f.db.LoadCredentials(ctx)
	require.NoError(t, err)
	assert.Empty(t, creds.AccessToken)
	assert.Nil(t, creds.User)

	_, err = f.db.GetResponse(ctx, f.q.Accounts.Key(None{}))
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestRestoreSession(t *testing.T) {
	t.Run("no stored tokens", func(t *testing.T) {
		f := newFixture(t)
		f.store.SetLoading(true)

		_, err := f.q.RestoreSession(context.Background())
		require.ErrorIs(t, err, common.ErrNotAuthenticated)
		assert.False(t, f.store.State().IsLoading)
		assert.Zero(t, f.backend.Calls("GET /users/me"))
	})

	t.Run("valid tokens", func(t *testing.T) {
		f := signedIn(t)

		user, err := f.q.RestoreSession(context.Background())
		require.NoError(t, err)
		assert.Equal(t, testutil.DefaultEmail, user.Email)
		assert.True(t, f.store.State().IsAuthenticated)
	})

	t.Run("session expired", func(t *testing.T) {
		f := signedIn(t)
		f.backend.ExpireAccessTokens()
		f.backend.SetRefreshFails(true)

		_, err := f.q.RestoreSession(context.Background())
		require.ErrorIs(t, err, common.ErrSessionExpired)
		assert.False(t, f.store.State().IsAuthenticated)
	})

	t.Run("backend down keeps session", func(t *testing.T) {
		f := signedIn(t)
		f.backend.FailRoute("GET /users/me", 503)

		user, err := f.q.RestoreSession(context.Background())
		require.Error(t, err)
		require.NotNil(t, user)
		assert.True(t, f.store.State().IsAuthenticated)
		assert.False(t, f.store.State().IsLoading)
	})
}

func TestLoadDashboard(t *testing.T) {
	f := signedIn(t)
	ctx := context.Background()
	now := time.Date(2026, 9, 14, 12, 0, 0, 0, time.UTC)

	d, err := f.q.LoadDashboard(ctx, now, false)
	require.NoError(t, err)
	assert.Equal(t, "2026-09", d.Month)
	assert.Len(t, d.Accounts, 2)
	assert.Len(t, d.Recent, DashboardRecentLimit)
	require.NotNil(t, d.Insight)
	require.NotNil(t, d.Comparison)
	assert.Equal(t, "2026-08", d.Comparison.PreviousMonth.Month)

	_, err = f.q.LoadDashboard(ctx, now, false)
	require.NoError(t, err)
	assert.Equal(t, 1, f.backend.Calls("GET /mono/accounts"))

	_, err = f.q.RefreshDashboard(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 2, f.backend.Calls("GET /mono/accounts"))
	assert.Equal(t, 2, f.backend.Calls("GET /insights/comparison"))
}

func TestAIQueries(t *testing.T) {
	f := signedIn(t)
	ctx := context.Background()

	advice, err := f.q.GetAdvice(ctx)
	require.NoError(t, err)
	assert.Equal(t, f.backend.Advice.Summary, advice.Summary)

	predictions, err := f.q.GetPredictions(ctx)
	require.NoError(t, err)
	assert.Equal(t, f.backend.Predictions.TotalPredicted, predictions.TotalPredicted)

	insights, err := f.q.GetAIInsights(ctx)
	require.NoError(t, err)
	assert.Equal(t, f.backend.AIInsights.Summary, insights.Summary)

	_, err = f.q.GetAdvice(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, f.backend.Calls("GET /ai/advice"))
}
