package model

// BankAccount is an account linked through the Mono aggregator.
type BankAccount struct {
	LastSyncedAt    *string `json:"lastSyncedAt"`
	ID              string  `json:"id"`
	MonoAccountID   string  `json:"monoAccountId"`
	InstitutionName string  `json:"institutionName"`
	AccountType     string  `json:"accountType"`
	AccountNumber   string  `json:"accountNumber"`
	Currency        string  `json:"currency"`
	Balance         float64 `json:"balance"`
	IsActive        bool    `json:"isActive"`
}

// AccountsResponse is the envelope of GET /mono/accounts.
type AccountsResponse struct {
	Accounts []BankAccount `json:"accounts"`
}

// LinkAccountRequest carries the authorization code produced by the Mono widget.
type LinkAccountRequest struct {
	Code string `json:"code"`
}

// LinkAccountResponse is returned by POST /mono/link.
type LinkAccountResponse struct {
	ID              string  `json:"id"`
	InstitutionName string  `json:"institutionName"`
	AccountType     string  `json:"accountType"`
	AccountNumber   string  `json:"accountNumber"`
	Currency        string  `json:"currency"`
	Message         string  `json:"message"`
	Balance         float64 `json:"balance"`
}

// SyncAccountResponse is returned by POST /mono/accounts/:id/sync.
type SyncAccountResponse struct {
	AccountID           string `json:"accountId"`
	LastSyncedAt        string `json:"lastSyncedAt"`
	TransactionsAdded   int    `json:"transactionsAdded"`
	TransactionsUpdated int    `json:"transactionsUpdated"`
}
