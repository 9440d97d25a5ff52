package model

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

const currencySymbol = "₦"

// FormatAmount renders an amount with grouping and two decimals, e.g. ₦12,500.00.
func FormatAmount(amount float64) string {
	rounded := decimal.NewFromFloat(amount).Abs().Round(2).InexactFloat64()
	return currencySymbol + humanize.FormatFloat("#,###.##", rounded)
}

// FormatSigned prefixes debits with "-" and credits with "+".
func FormatSigned(amount float64, t TransactionType) string {
	prefix := "+"
	if t == TypeDebit {
		prefix = "-"
	}
	return prefix + FormatAmount(amount)
}

// Totals sums debits and credits without float drift.
func Totals(txns []Transaction) (spent, received decimal.Decimal) {
	spent, received = decimal.Zero, decimal.Zero
	for _, t := range txns {
		amount := decimal.NewFromFloat(t.Amount).Abs()
		if t.Type == TypeDebit {
			spent = spent.Add(amount)
		} else {
			received = received.Add(amount)
		}
	}
	return spent, received
}

// CurrentMonth returns now as YYYY-MM.
func CurrentMonth(now time.Time) string {
	return now.Format("2006-01")
}

// PreviousMonth returns the month before a YYYY-MM value.
func PreviousMonth(month string) (string, error) {
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return "", fmt.Errorf("invalid month %q: %w", month, err)
	}
	return t.AddDate(0, -1, 0).Format("2006-01"), nil
}

// MonthOption is a selectable month.
type MonthOption struct {
	Value string
	Label string
}

// LastMonths returns the n most recent months, newest first.
func LastMonths(now time.Time, n int) []MonthOption {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	options := make([]MonthOption, 0, n)
	for i := 0; i < n; i++ {
		d := first.AddDate(0, -i, 0)
		options = append(options, MonthOption{
			Value: d.Format("2006-01"),
			Label: d.Format("January 2006"),
		})
	}
	return options
}
