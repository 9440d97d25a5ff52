package components

import "github.com/Veraticus/spendwise/internal/model"

// TransactionSelectedMsg is sent when a transaction is opened from the list.
type TransactionSelectedMsg struct {
	Transaction model.Transaction
	Index       int
}

// LoadMoreMsg asks for the page after the last one loaded.
type LoadMoreMsg struct {
	Filters model.TransactionFilters
}

// FilterChangedMsg is sent when the list switches to another filter set.
type FilterChangedMsg struct {
	Filters model.TransactionFilters
}

// BackToListMsg requests to go back to the transaction list.
type BackToListMsg struct{}
