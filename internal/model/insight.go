package model

// CategoryBreakdown is one category's share of spending.
type CategoryBreakdown struct {
	Category         string  `json:"category"`
	Amount           float64 `json:"amount"`
	Percentage       float64 `json:"percentage"`
	TransactionCount int     `json:"transactionCount"`
}

// MonthlyInsight summarizes a month of activity.
type MonthlyInsight struct {
	AIInsights    *string             `json:"aiInsights"`
	ID            string              `json:"id"`
	Month         string              `json:"month"`
	TopCategory   string              `json:"topCategory"`
	CategoryData  []CategoryBreakdown `json:"categoryData"`
	TotalSpending float64             `json:"totalSpending"`
	TotalIncome   float64             `json:"totalIncome"`
}

// MonthComparison compares two months.
type MonthComparison struct {
	CurrentMonth   MonthlyInsight `json:"currentMonth"`
	PreviousMonth  MonthlyInsight `json:"previousMonth"`
	SpendingChange float64        `json:"spendingChange"`
	IncomeChange   float64        `json:"incomeChange"`
}

// MonthlyInsightsParams selects a month (YYYY-MM); empty means current.
type MonthlyInsightsParams struct {
	Month string `json:"month,omitempty"`
}

// CategoryBreakdownParams selects the breakdown window.
type CategoryBreakdownParams struct {
	Month     string `json:"month,omitempty"`
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
}

// ComparisonParams selects the compared months.
type ComparisonParams struct {
	CurrentMonth  string `json:"currentMonth"`
	PreviousMonth string `json:"previousMonth,omitempty"`
}

// RecalculateRequest is the body of POST /insights/recalculate.
type RecalculateRequest struct {
	Month string `json:"month"`
}

// MonthlyInsightsResponse is the envelope of GET /insights/monthly and POST /insights/recalculate.
type MonthlyInsightsResponse struct {
	Insights MonthlyInsight `json:"insights"`
	Message  string         `json:"message"`
}

// ComparisonResponse is the envelope of GET /insights/comparison.
type ComparisonResponse struct {
	Comparison MonthComparison `json:"comparison"`
	Message    string          `json:"message"`
}

// CategoryBreakdownResponse is the envelope of GET /insights/categories.
type CategoryBreakdownResponse struct {
	Breakdown struct {
		Categories []CategoryBreakdown `json:"categories"`
	} `json:"breakdown"`
	Month         string  `json:"month"`
	TotalSpending float64 `json:"totalSpending"`
}
