package tui

import (
	"github.com/Veraticus/spendwise/internal/model"
	"github.com/Veraticus/spendwise/internal/queries"
)

// Signals from the shared state machines. They carry no payload because
// observers run on other goroutines and may arrive out of order; the model
// reads the current value when it handles them.
type (
	gateChangedMsg         struct{}
	toastsChangedMsg       struct{}
	connectivityChangedMsg struct{}
	pullChangedMsg         struct{ screen Screen }
	cacheUpdatedMsg        struct{ screen Screen }
)

// Data loading messages.
type dashboardLoadedMsg struct {
	err       error
	dashboard *queries.Dashboard
}

type transactionsLoadedMsg struct {
	err     error
	filters model.TransactionFilters
	page    model.Page[model.Transaction]
	more    bool
}

type transactionLoadedMsg struct {
	err         error
	transaction model.Transaction
}

type accountsLoadedMsg struct {
	err      error
	accounts []model.BankAccount
}

type aiLoadedMsg struct {
	err         error
	advice      model.AdviceResponse
	predictions model.PredictionResponse
	insights    model.AIInsightsResponse
	anomalies   []model.Anomaly
}

// Action results.
type loginResultMsg struct {
	err  error
	user *model.User
}

type accountActionMsg struct {
	err     error
	action  string
	message string
}

type refreshDoneMsg struct {
	err    error
	screen Screen
}

type loggedOutMsg struct {
	err error
}

// panicMsg carries a recovered panic to the fallback screen.
type panicMsg struct {
	err error
}
