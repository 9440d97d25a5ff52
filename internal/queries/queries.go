// Package queries binds every backend endpoint to the entity cache with the
// tags it provides or invalidates, and implements the session flows on top.
package queries

import (
	"log/slog"

	"github.com/Veraticus/spendwise/internal/api"
	"github.com/Veraticus/spendwise/internal/cache"
	"github.com/Veraticus/spendwise/internal/model"
	"github.com/Veraticus/spendwise/internal/session"
)

// DefaultPageSize is the transactions page size used by list views.
const DefaultPageSize = 20

// None is the argument of endpoints that take no parameters.
type None struct{}

// Queries exposes the cached endpoints and the session flows.
type Queries struct {
	client  *api.Client
	cache   *cache.Cache
	session *session.Store
	logger  *slog.Logger

	Accounts       cache.Endpoint[None, []model.BankAccount]
	Transactions   cache.Endpoint[model.TransactionFilters, model.Page[model.Transaction]]
	Transaction    cache.Endpoint[string, model.Transaction]
	CurrentUser    cache.Endpoint[None, model.User]
	MonthlyInsight cache.Endpoint[model.MonthlyInsightsParams, model.MonthlyInsight]
	Categories     cache.Endpoint[model.CategoryBreakdownParams, []model.CategoryBreakdown]
	Comparison     cache.Endpoint[model.ComparisonParams, model.MonthComparison]
	Narrative      cache.Endpoint[model.MonthlyInsightsParams, model.AIInsight]
	Anomalies      cache.Endpoint[None, []model.Anomaly]
	Advice         cache.Endpoint[None, model.AdviceResponse]
	Predictions    cache.Endpoint[None, model.PredictionResponse]
	AIInsights     cache.Endpoint[None, model.AIInsightsResponse]

	LinkAccount         cache.Mutation[model.LinkAccountRequest, *model.LinkAccountResponse]
	UnlinkAccount       cache.Mutation[string, *model.MessageResponse]
	SyncAccount         cache.Mutation[string, *model.SyncAccountResponse]
	UpdateCurrentUser   cache.Mutation[model.UpdateUserRequest, *model.User]
	VerifyEmail         cache.Mutation[model.VerifyEmailRequest, *model.AuthResponse]
	RecalculateInsights cache.Mutation[model.RecalculateRequest, *model.MonthlyInsight]
	LogoutMutation      cache.Mutation[None, struct{}]
}

// New wires the endpoints to client and c.
func New(client *api.Client, c *cache.Cache, store *session.Store) *Queries {
	q := &Queries{
		client:  client,
		cache:   c,
		session: store,
		logger:  slog.Default().With("component", "queries"),
	}
	q.bindAccounts()
	q.bindTransactions()
	q.bindUsers()
	q.bindInsights()
	q.bindAI()
	q.bindSession()
	return q
}

// Cache returns the entity cache.
func (q *Queries) Cache() *cache.Cache {
	return q.cache
}

// Client returns the API client.
func (q *Queries) Client() *api.Client {
	return q.client
}

// Session returns the token store.
func (q *Queries) Session() *session.Store {
	return q.session
}

func provide[A, R any](tags ...cache.Tag) func(R, error, A) []cache.Tag {
	return func(R, error, A) []cache.Tag {
		return tags
	}
}

func invalidate[A any](tags ...cache.Tag) func(A) []cache.Tag {
	return func(A) []cache.Tag {
		return tags
	}
}
