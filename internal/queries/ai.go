package queries

import (
	"context"

	"github.com/Veraticus/spendwise/internal/cache"
	"github.com/Veraticus/spendwise/internal/model"
)

func (q *Queries) bindAI() {
	ai := cache.TypeTag(cache.TagAI)

	q.Anomalies = cache.Endpoint[None, []model.Anomaly]{
		Name: "getAnomalies",
		Fetch: func(ctx context.Context, _ None) ([]model.Anomaly, error) {
			return q.client.Anomalies(ctx)
		},
		Provides: provide[None, []model.Anomaly](ai),
	}

	q.Advice = cache.Endpoint[None, model.AdviceResponse]{
		Name: "getAdvice",
		Fetch: func(ctx context.Context, _ None) (model.AdviceResponse, error) {
			a, err := q.client.Advice(ctx)
			if err != nil {
				return model.AdviceResponse{}, err
			}
			return *a, nil
		},
		Provides: provide[None, model.AdviceResponse](ai),
	}

	q.Predictions = cache.Endpoint[None, model.PredictionResponse]{
		Name: "getPredictions",
		Fetch: func(ctx context.Context, _ None) (model.PredictionResponse, error) {
			p, err := q.client.Predictions(ctx)
			if err != nil {
				return model.PredictionResponse{}, err
			}
			return *p, nil
		},
		Provides: provide[None, model.PredictionResponse](ai),
	}

	q.AIInsights = cache.Endpoint[None, model.AIInsightsResponse]{
		Name: "getInsights",
		Fetch: func(ctx context.Context, _ None) (model.AIInsightsResponse, error) {
			i, err := q.client.AIInsights(ctx)
			if err != nil {
				return model.AIInsightsResponse{}, err
			}
			return *i, nil
		},
		Provides: provide[None, model.AIInsightsResponse](ai),
	}
}

// GetAnomalies lists flagged transactions.
func (q *Queries) GetAnomalies(ctx context.Context, opts ...cache.QueryOption) ([]model.Anomaly, error) {
	return cache.Query(ctx, q.cache, q.Anomalies, None{}, opts...)
}

// GetAdvice returns recommendations.
func (q *Queries) GetAdvice(ctx context.Context, opts ...cache.QueryOption) (model.AdviceResponse, error) {
	return cache.Query(ctx, q.cache, q.Advice, None{}, opts...)
}

// GetPredictions returns the spending forecast.
func (q *Queries) GetPredictions(ctx context.Context, opts ...cache.QueryOption) (model.PredictionResponse, error) {
	return cache.Query(ctx, q.cache, q.Predictions, None{}, opts...)
}

// GetAIInsights returns highlights, warnings and suggestions.
func (q *Queries) GetAIInsights(ctx context.Context, opts ...cache.QueryOption) (model.AIInsightsResponse, error) {
	return cache.Query(ctx, q.cache, q.AIInsights, None{}, opts...)
}
