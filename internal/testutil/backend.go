package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/spendwise/internal/model"
)

// Default credentials of the seeded backend user.
const (
	DefaultEmail    = "ada@example.com"
	DefaultPassword = "correct-horse"

	// VerificationCode is the only code POST /auth/verify-email accepts.
	VerificationCode = "123456"
)

// Backend is an in-process fake of the SpendWise API served under /api.
type Backend struct {
	Server       *httptest.Server
	failures     map[string]int
	calls        map[string]int
	access       map[string]string
	refresh      map[string]string
	passwords    map[string]string
	users        map[string]*model.User
	Faker        *Faker
	Insight      model.MonthlyInsight
	Previous     model.MonthlyInsight
	Advice       model.AdviceResponse
	Predictions  model.PredictionResponse
	AIInsights   model.AIInsightsResponse
	Accounts     []model.BankAccount
	Transactions []model.Transaction
	LinkCodes    []string
	seq          int
	mu           sync.Mutex
	refreshFails bool
}

// NewBackend starts a fake API seeded with one user, two accounts and
// 45 transactions. The server is closed when the test ends.
func NewBackend(t *testing.T) *Backend {
	t.Helper()

	faker := NewFaker(42)
	b := &Backend{
		Faker:     faker,
		failures:  make(map[string]int),
		calls:     make(map[string]int),
		access:    make(map[string]string),
		refresh:   make(map[string]string),
		passwords: make(map[string]string),
		users:     make(map[string]*model.User),
	}

	user := faker.User()
	user.Email = DefaultEmail
	b.users[user.ID] = &user
	b.passwords[user.Email] = DefaultPassword

	b.Accounts = []model.BankAccount{faker.Account(), faker.Account()}
	b.Transactions = faker.Transactions(45, b.Accounts[0].ID, b.Accounts[1].ID)
	sort.SliceStable(b.Transactions, func(i, j int) bool {
		return b.Transactions[i].Date > b.Transactions[j].Date
	})
	b.Insight = faker.MonthlyInsight("2026-09")
	b.Previous = faker.MonthlyInsight("2026-08")
	b.Advice = faker.Advice()
	b.Predictions = faker.Predictions()
	b.AIInsights = faker.AIInsights()

	b.Server = httptest.NewServer(b.routes())
	t.Cleanup(b.Server.Close)
	return b
}

// URL returns the API base URL.
func (b *Backend) URL() string {
	return b.Server.URL + "/api"
}

// User returns the seeded user.
func (b *Backend) User() model.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, u := range b.users {
		if u.Email == DefaultEmail {
			return *u
		}
	}
	return model.User{}
}

// IssueTokens creates a valid token pair for the seeded user.
func (b *Backend) IssueTokens() (accessToken, refreshToken string) {
	user := b.User()
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.issueLocked(user.ID)
}

// ExpireAccessTokens invalidates every access token, keeping refresh tokens.
func (b *Backend) ExpireAccessTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.access = make(map[string]string)
}

// SetRefreshFails makes POST /auth/refresh answer 401.
func (b *Backend) SetRefreshFails(fail bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshFails = fail
}

// FailRoute forces route ("METHOD /path" without /api) to answer status.
// A zero status clears the failure.
func (b *Backend) FailRoute(route string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if status == 0 {
		delete(b.failures, route)
		return
	}
	b.failures[route] = status
}

// Calls reports how many times route was requested.
func (b *Backend) Calls(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[route]
}

// ResetCalls clears the request counters.
func (b *Backend) ResetCalls() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = make(map[string]int)
}

func (b *Backend) issueLocked(userID string) (string, string) {
	b.seq++
	accessToken := fmt.Sprintf("access-%d", b.seq)
	refreshToken := fmt.Sprintf("refresh-%d", b.seq)
	b.access[accessToken] = userID
	b.refresh[refreshToken] = userID
	return accessToken, refreshToken
}

type handler func(w http.ResponseWriter, r *http.Request, userID string)

func (b *Backend) routes() http.Handler {
	mux := http.NewServeMux()

	public := map[string]handler{
		"POST /auth/login":               b.login,
		"POST /auth/register":            b.register,
		"POST /auth/refresh":             b.refreshTokens,
		"POST /auth/forgot-password":     b.message("If the email exists, a reset link has been sent"),
		"POST /auth/reset-password":      b.message("Password reset successfully"),
		"POST /auth/verify-email":        b.verifyEmail,
		"POST /auth/resend-verification": b.message("Verification code sent"),
	}
	protected := map[string]handler{
		"POST /auth/logout":             b.logout,
		"POST /auth/change-password":    b.message("Password changed successfully"),
		"GET /users/me":                 b.me,
		"PATCH /users/me":               b.updateMe,
		"GET /mono/accounts":            b.accounts,
		"POST /mono/link":               b.link,
		"DELETE /mono/accounts/{id}":    b.unlink,
		"POST /mono/accounts/{id}/sync": b.sync,
		"GET /transactions":             b.transactions,
		"GET /transactions/{id}":        b.transaction,
		"GET /insights/monthly":         b.monthly,
		"GET /insights/categories":      b.categories,
		"GET /insights/comparison":      b.comparison,
		"POST /insights/recalculate":    b.monthly,
		"GET /insights/ai":              b.narrative,
		"GET /ai/anomalies":             b.anomalies,
		"GET /ai/advice":                b.jsonOf(func() any { return b.Advice }),
		"GET /ai/predictions":           b.jsonOf(func() any { return b.Predictions }),
		"GET /ai/insights":              b.jsonOf(func() any { return b.AIInsights }),
	}

	for route, h := range public {
		mux.HandleFunc(prefixed(route), b.wrap(route, h, false))
	}
	for route, h := range protected {
		mux.HandleFunc(prefixed(route), b.wrap(route, h, true))
	}
	return mux
}

func prefixed(route string) string {
	method, path, _ := strings.Cut(route, " ")
	return method + " /api" + path
}

func (b *Backend) wrap(route string, h handler, auth bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.calls[route]++
		status := b.failures[route]
		var userID string
		var ok bool
		if auth {
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			userID, ok = b.access[token]
		}
		b.mu.Unlock()

		if status != 0 {
			writeError(w, status, http.StatusText(status))
			return
		}
		if auth && !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		h(w, r, userID)
	}
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request, _ string) {
	var creds model.LoginCredentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.passwords[creds.Email] != creds.Password || creds.Password == "" {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	for _, u := range b.users {
		if u.Email == creds.Email {
			access, refresh := b.issueLocked(u.ID)
			writeJSON(w, http.StatusOK, model.AuthResponse{User: *u, AccessToken: access, RefreshToken: refresh})
			return
		}
	}
	writeError(w, http.StatusUnauthorized, "Invalid credentials")
}

func (b *Backend) register(w http.ResponseWriter, r *http.Request, _ string) {
	var data model.RegisterData
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.passwords[data.Email]; exists {
		writeError(w, http.StatusConflict, "User with this email already exists")
		return
	}
	user := b.Faker.User()
	user.Email = data.Email
	user.Name = data.Name
	user.IsEmailVerified = false
	b.users[user.ID] = &user
	b.passwords[data.Email] = data.Password

	access, refresh := b.issueLocked(user.ID)
	writeJSON(w, http.StatusCreated, model.AuthResponse{User: user, AccessToken: access, RefreshToken: refresh})
}

func (b *Backend) refreshTokens(w http.ResponseWriter, r *http.Request, _ string) {
	var req model.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	userID, ok := b.refresh[req.RefreshToken]
	if b.refreshFails || !ok {
		writeError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	delete(b.refresh, req.RefreshToken)
	access, refresh := b.issueLocked(userID)
	writeJSON(w, http.StatusOK, model.TokenPair{AccessToken: access, RefreshToken: refresh})
}

func (b *Backend) verifyEmail(w http.ResponseWriter, r *http.Request, _ string) {
	var req model.VerifyEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Token != VerificationCode {
		writeError(w, http.StatusBadRequest, "Invalid or expired verification code")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, u := range b.users {
		if u.Email == DefaultEmail {
			u.IsEmailVerified = true
			access, refresh := b.issueLocked(u.ID)
			writeJSON(w, http.StatusOK, model.AuthResponse{User: *u, AccessToken: access, RefreshToken: refresh})
			return
		}
	}
	writeError(w, http.StatusNotFound, "User not found")
}

func (b *Backend) logout(w http.ResponseWriter, r *http.Request, _ string) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	b.mu.Lock()
	delete(b.access, token)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, model.MessageResponse{Message: "Logged out successfully"})
}

func (b *Backend) me(w http.ResponseWriter, _ *http.Request, userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, b.users[userID])
}

func (b *Backend) updateMe(w http.ResponseWriter, r *http.Request, userID string) {
	var req model.UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	user := b.users[userID]
	if req.Name != "" {
		user.Name = req.Name
	}
	if req.Email != "" {
		user.Email = req.Email
	}
	user.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	writeJSON(w, http.StatusOK, user)
}

func (b *Backend) accounts(w http.ResponseWriter, _ *http.Request, _ string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, model.AccountsResponse{Accounts: append([]model.BankAccount{}, b.Accounts...)})
}

func (b *Backend) link(w http.ResponseWriter, r *http.Request, _ string) {
	var req model.LinkAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	account := b.Faker.Account()
	b.Accounts = append(b.Accounts, account)
	b.LinkCodes = append(b.LinkCodes, req.Code)
	writeJSON(w, http.StatusCreated, model.LinkAccountResponse{
		ID:              account.ID,
		InstitutionName: account.InstitutionName,
		AccountType:     account.AccountType,
		AccountNumber:   account.AccountNumber,
		Currency:        account.Currency,
		Balance:         account.Balance,
		Message:         "Account linked successfully",
	})
}

func (b *Backend) unlink(w http.ResponseWriter, r *http.Request, _ string) {
	id := r.PathValue("id")

	b.mu.Lock()
	defer b.mu.Unlock()

	for i, a := range b.Accounts {
		if a.ID == id {
			b.Accounts = append(b.Accounts[:i], b.Accounts[i+1:]...)
			kept := b.Transactions[:0]
			for _, txn := range b.Transactions {
				if txn.AccountID != id {
					kept = append(kept, txn)
				}
			}
			b.Transactions = kept
			writeJSON(w, http.StatusOK, model.MessageResponse{Message: "Account unlinked successfully"})
			return
		}
	}
	writeError(w, http.StatusNotFound, "Account not found")
}

func (b *Backend) sync(w http.ResponseWriter, r *http.Request, _ string) {
	id := r.PathValue("id")

	b.mu.Lock()
	defer b.mu.Unlock()

	for i, a := range b.Accounts {
		if a.ID == id {
			now := time.Now().UTC().Format(time.RFC3339)
			b.Accounts[i].LastSyncedAt = &now
			writeJSON(w, http.StatusOK, model.SyncAccountResponse{AccountID: id, LastSyncedAt: now})
			return
		}
	}
	writeError(w, http.StatusNotFound, "Account not found")
}

func (b *Backend) transactions(w http.ResponseWriter, r *http.Request, _ string) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit < 1 {
		limit = 20
	}

	b.mu.Lock()
	var matched []model.Transaction
	for _, txn := range b.Transactions {
		if c := q.Get("category"); c != "" && txn.Category != c {
			continue
		}
		if t := q.Get("type"); t != "" && string(txn.Type) != t {
			continue
		}
		if s := q.Get("startDate"); s != "" && txn.Date[:10] < s {
			continue
		}
		if e := q.Get("endDate"); e != "" && txn.Date[:10] > e {
			continue
		}
		matched = append(matched, txn)
	}
	b.mu.Unlock()

	start := (page - 1) * limit
	end := start + limit
	if start > len(matched) {
		start = len(matched)
	}
	if end > len(matched) {
		end = len(matched)
	}

	writeJSON(w, http.StatusOK, model.TransactionsResponse{
		Transactions: append([]model.Transaction{}, matched[start:end]...),
		Total:        len(matched),
		Page:         page,
		Limit:        limit,
		HasMore:      end < len(matched),
	})
}

func (b *Backend) transaction(w http.ResponseWriter, r *http.Request, _ string) {
	id := r.PathValue("id")

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, txn := range b.Transactions {
		if txn.ID == id {
			writeJSON(w, http.StatusOK, model.TransactionResponse{Transaction: txn})
			return
		}
	}
	writeError(w, http.StatusNotFound, "Transaction not found")
}

func (b *Backend) monthly(w http.ResponseWriter, _ *http.Request, _ string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, model.MonthlyInsightsResponse{Insights: b.Insight, Message: "ok"})
}

func (b *Backend) categories(w http.ResponseWriter, _ *http.Request, _ string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var resp model.CategoryBreakdownResponse
	resp.Month = b.Insight.Month
	resp.TotalSpending = b.Insight.TotalSpending
	resp.Breakdown.Categories = b.Insight.CategoryData
	writeJSON(w, http.StatusOK, resp)
}

func (b *Backend) comparison(w http.ResponseWriter, _ *http.Request, _ string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	change := 0.0
	if b.Previous.TotalSpending != 0 {
		change = (b.Insight.TotalSpending - b.Previous.TotalSpending) / b.Previous.TotalSpending * 100
	}
	writeJSON(w, http.StatusOK, model.ComparisonResponse{Comparison: model.MonthComparison{
		CurrentMonth:   b.Insight,
		PreviousMonth:  b.Previous,
		SpendingChange: round2(change),
	}})
}

func (b *Backend) narrative(w http.ResponseWriter, _ *http.Request, _ string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, model.AIInsight{
		Summary:         b.AIInsights.Summary,
		Highlights:      b.AIInsights.Highlights,
		Recommendations: b.AIInsights.Suggestions,
	})
}

func (b *Backend) anomalies(w http.ResponseWriter, _ *http.Request, _ string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	anomalies := []model.Anomaly{}
	for _, txn := range b.Transactions {
		if txn.IsAnomaly && txn.AnomalyReason != nil && txn.AnomalySeverity != nil {
			anomalies = append(anomalies, model.Anomaly{
				TransactionID: txn.ID,
				Transaction:   txn,
				Reason:        *txn.AnomalyReason,
				Severity:      *txn.AnomalySeverity,
			})
		}
	}
	writeJSON(w, http.StatusOK, anomalies)
}

func (b *Backend) message(msg string) handler {
	return func(w http.ResponseWriter, _ *http.Request, _ string) {
		writeJSON(w, http.StatusOK, model.MessageResponse{Message: msg})
	}
}

func (b *Backend) jsonOf(fn func() any) handler {
	return func(w http.ResponseWriter, _ *http.Request, _ string) {
		b.mu.Lock()
		v := fn()
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, v)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"statusCode": status, "message": msg})
}
