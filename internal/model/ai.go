package model

// AIInsight is the narrative summary returned by GET /insights/ai.
type AIInsight struct {
	Summary         string   `json:"summary"`
	Highlights      []string `json:"highlights"`
	Recommendations []string `json:"recommendations"`
}

// Anomaly flags an unusual transaction.
type Anomaly struct {
	TransactionID string      `json:"transactionId"`
	Reason        string      `json:"reason"`
	Severity      Severity    `json:"severity"`
	Transaction   Transaction `json:"transaction"`
}

// FinancialAdvice is one recommendation.
type FinancialAdvice struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    Severity `json:"priority"`
	Category    string   `json:"category"`
}

// AdviceResponse is returned by GET /ai/advice.
type AdviceResponse struct {
	Summary         string            `json:"summary"`
	Recommendations []FinancialAdvice `json:"recommendations"`
}

// CategoryPrediction forecasts one category.
type CategoryPrediction struct {
	Category        string  `json:"category"`
	Trend           string  `json:"trend"`
	PredictedAmount float64 `json:"predictedAmount"`
	Confidence      float64 `json:"confidence"`
}

// PredictionResponse is returned by GET /ai/predictions.
type PredictionResponse struct {
	ByCategory     []CategoryPrediction `json:"byCategory"`
	TotalPredicted float64              `json:"totalPredicted"`
	Confidence     float64              `json:"confidence"`
}

// AIInsightsResponse is returned by GET /ai/insights.
type AIInsightsResponse struct {
	Summary     string   `json:"summary"`
	Highlights  []string `json:"highlights"`
	Warnings    []string `json:"warnings"`
	Suggestions []string `json:"suggestions"`
}
