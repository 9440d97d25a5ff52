package testutil

import (
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/Veraticus/spendwise/internal/model"
)

// Categories used by generated transactions.
var Categories = []string{
	"Food & Dining", "Transportation", "Shopping", "Bills & Utilities",
	"Entertainment", "Health", "Transfer", "Salary",
}

var institutions = []string{"GTBank", "Access Bank", "Zenith Bank", "First Bank", "Kuda", "Opay"}

// Faker generates deterministic domain records.
type Faker struct {
	f *gofakeit.Faker
}

// NewFaker returns a generator seeded with seed.
func NewFaker(seed int64) *Faker {
	return &Faker{f: gofakeit.New(seed)}
}

// User generates a user.
func (g *Faker) User() model.User {
	created := g.f.DateRange(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC))
	return model.User{
		ID:              g.f.UUID(),
		Email:           g.f.Email(),
		Name:            g.f.Name(),
		CreatedAt:       created.Format(time.RFC3339),
		UpdatedAt:       created.Format(time.RFC3339),
		IsEmailVerified: g.f.Bool(),
	}
}

// Account generates a linked bank account.
func (g *Faker) Account() model.BankAccount {
	synced := time.Now().Add(-time.Duration(g.f.Number(1, 72)) * time.Hour).Format(time.RFC3339)
	return model.BankAccount{
		ID:              g.f.UUID(),
		MonoAccountID:   g.f.UUID(),
		InstitutionName: g.f.RandomString(institutions),
		AccountType:     g.f.RandomString([]string{"savings", "current"}),
		AccountNumber:   g.f.Numerify("##########"),
		Currency:        "NGN",
		Balance:         round2(g.f.Float64Range(1000, 2_000_000)),
		IsActive:        true,
		LastSyncedAt:    &synced,
	}
}

// Transaction generates a transaction for accountID.
func (g *Faker) Transaction(accountID string) model.Transaction {
	txnType := model.TypeDebit
	if g.f.Number(1, 4) == 1 {
		txnType = model.TypeCredit
	}
	date := g.f.DateRange(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC))
	confidence := round2(g.f.Float64Range(0.5, 1))

	txn := model.Transaction{
		ID:                   g.f.UUID(),
		AccountID:            accountID,
		Type:                 txnType,
		Narration:            fmt.Sprintf("POS %s %s", g.f.Company(), g.f.City()),
		Date:                 date.Format(time.RFC3339),
		Category:             g.f.RandomString(Categories),
		CategorizationMethod: g.f.RandomString([]string{"rule", "ai", "manual"}),
		Amount:               round2(g.f.Float64Range(100, 250_000)),
		Balance:              round2(g.f.Float64Range(1000, 2_000_000)),
		AIConfidence:         &confidence,
	}

	if g.f.Number(1, 10) == 1 {
		reason := g.f.Sentence(6)
		severity := model.Severity(g.f.RandomString([]string{"low", "medium", "high"}))
		txn.IsAnomaly = true
		txn.AnomalyReason = &reason
		txn.AnomalySeverity = &severity
	}
	return txn
}

// Transactions generates n transactions spread over accountIDs.
func (g *Faker) Transactions(n int, accountIDs ...string) []model.Transaction {
	if len(accountIDs) == 0 {
		accountIDs = []string{g.f.UUID()}
	}
	txns := make([]model.Transaction, n)
	for i := range txns {
		txns[i] = g.Transaction(accountIDs[i%len(accountIDs)])
	}
	return txns
}

// MonthlyInsight generates an insight for month (YYYY-MM).
func (g *Faker) MonthlyInsight(month string) model.MonthlyInsight {
	cats := make([]model.CategoryBreakdown, 0, 4)
	var total float64
	for _, name := range Categories[:4] {
		amount := round2(g.f.Float64Range(5000, 150_000))
		total += amount
		cats = append(cats, model.CategoryBreakdown{
			Category:         name,
			Amount:           amount,
			TransactionCount: g.f.Number(1, 40),
		})
	}
	top := cats[0]
	for i := range cats {
		cats[i].Percentage = round2(cats[i].Amount / total * 100)
		if cats[i].Amount > top.Amount {
			top = cats[i]
		}
	}

	return model.MonthlyInsight{
		ID:            g.f.UUID(),
		Month:         month,
		TotalSpending: round2(total),
		TotalIncome:   round2(g.f.Float64Range(200_000, 900_000)),
		TopCategory:   top.Category,
		CategoryData:  cats,
	}
}

// Advice generates a set of recommendations.
func (g *Faker) Advice() model.AdviceResponse {
	recs := make([]model.FinancialAdvice, 3)
	for i := range recs {
		recs[i] = model.FinancialAdvice{
			Title:       g.f.Sentence(4),
			Description: g.f.Sentence(12),
			Priority:    model.Severity(g.f.RandomString([]string{"low", "medium", "high"})),
			Category:    g.f.RandomString(Categories),
		}
	}
	return model.AdviceResponse{Summary: g.f.Sentence(10), Recommendations: recs}
}

// Predictions generates a spending forecast.
func (g *Faker) Predictions() model.PredictionResponse {
	var resp model.PredictionResponse
	for _, name := range Categories[:3] {
		p := model.CategoryPrediction{
			Category:        name,
			PredictedAmount: round2(g.f.Float64Range(5000, 100_000)),
			Confidence:      round2(g.f.Float64Range(0.5, 0.95)),
			Trend:           g.f.RandomString([]string{"increasing", "decreasing", "stable"}),
		}
		resp.TotalPredicted += p.PredictedAmount
		resp.ByCategory = append(resp.ByCategory, p)
	}
	resp.TotalPredicted = round2(resp.TotalPredicted)
	resp.Confidence = round2(g.f.Float64Range(0.6, 0.9))
	return resp
}

// AIInsights generates highlights, warnings and suggestions.
func (g *Faker) AIInsights() model.AIInsightsResponse {
	return model.AIInsightsResponse{
		Summary:     g.f.Sentence(12),
		Highlights:  []string{g.f.Sentence(6), g.f.Sentence(6)},
		Warnings:    []string{g.f.Sentence(6)},
		Suggestions: []string{g.f.Sentence(8), g.f.Sentence(8)},
	}
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
