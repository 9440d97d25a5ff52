package model

// TransactionType is the direction of money movement.
type TransactionType string

// Transaction directions.
const (
	TypeDebit  TransactionType = "debit"
	TypeCredit TransactionType = "credit"
)

// Severity grades anomalies and advice priority.
type Severity string

// Severity levels.
const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Transaction is a single categorized bank transaction.
type Transaction struct {
	AIConfidence         *float64        `json:"aiConfidence"`
	AnomalyReason        *string         `json:"anomalyReason"`
	AnomalySeverity      *Severity       `json:"anomalySeverity"`
	ID                   string          `json:"id"`
	AccountID            string          `json:"accountId"`
	Type                 TransactionType `json:"type"`
	Narration            string          `json:"narration"`
	Date                 string          `json:"date"`
	Category             string          `json:"category"`
	CategorizationMethod string          `json:"categorizationMethod"`
	Amount               float64         `json:"amount"`
	Balance              float64         `json:"balance"`
	IsAnomaly            bool            `json:"isAnomaly"`
}

// TransactionFilters selects a page of transactions. Every field except Page
// identifies the accumulated list the page belongs to.
type TransactionFilters struct {
	StartDate string          `json:"startDate,omitempty"`
	EndDate   string          `json:"endDate,omitempty"`
	Category  string          `json:"category,omitempty"`
	Type      TransactionType `json:"type,omitempty"`
	Page      int             `json:"page"`
	Limit     int             `json:"limit"`
}

// ListKey returns the filters with the page number removed.
func (f TransactionFilters) ListKey() TransactionFilters {
	f.Page = 0
	return f
}

// Page is a window of a server-side list.
type Page[T any] struct {
	Data    []T  `json:"data"`
	Total   int  `json:"total"`
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	HasMore bool `json:"hasMore"`
}

// TransactionsResponse is the envelope of GET /transactions.
type TransactionsResponse struct {
	Transactions []Transaction `json:"transactions"`
	Total        int           `json:"total"`
	Page         int           `json:"page"`
	Limit        int           `json:"limit"`
	HasMore      bool          `json:"hasMore"`
}

// ToPage converts the envelope into a Page.
func (r TransactionsResponse) ToPage() Page[Transaction] {
	return Page[Transaction]{
		Data:    r.Transactions,
		Total:   r.Total,
		Page:    r.Page,
		Limit:   r.Limit,
		HasMore: r.HasMore,
	}
}

// TransactionResponse is the envelope of GET /transactions/:id.
type TransactionResponse struct {
	Transaction Transaction `json:"transaction"`
}
