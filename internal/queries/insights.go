package queries

import (
	"context"

	"github.com/Veraticus/spendwise/internal/cache"
	"github.com/Veraticus/spendwise/internal/model"
)

func (q *Queries) bindInsights() {
	insights := cache.TypeTag(cache.TagInsights)

	q.MonthlyInsight = cache.Endpoint[model.MonthlyInsightsParams, model.MonthlyInsight]{
		Name: "getMonthlyInsights",
		Fetch: func(ctx context.Context, p model.MonthlyInsightsParams) (model.MonthlyInsight, error) {
			insight, err := q.client.MonthlyInsights(ctx, p)
			if err != nil {
				return model.MonthlyInsight{}, err
			}
			return *insight, nil
		},
		Provides: provide[model.MonthlyInsightsParams, model.MonthlyInsight](insights),
	}

	q.Categories = cache.Endpoint[model.CategoryBreakdownParams, []model.CategoryBreakdown]{
		Name: "getCategoryBreakdown",
		Fetch: func(ctx context.Context, p model.CategoryBreakdownParams) ([]model.CategoryBreakdown, error) {
			return q.client.CategoryBreakdown(ctx, p)
		},
		Provides: provide[model.CategoryBreakdownParams, []model.CategoryBreakdown](insights),
	}

	q.Comparison = cache.Endpoint[model.ComparisonParams, model.MonthComparison]{
		Name: "getComparison",
		Fetch: func(ctx context.Context, p model.ComparisonParams) (model.MonthComparison, error) {
			cmp, err := q.client.Comparison(ctx, p)
			if err != nil {
				return model.MonthComparison{}, err
			}
			return *cmp, nil
		},
		Provides: provide[model.ComparisonParams, model.MonthComparison](insights),
	}

	q.Narrative = cache.Endpoint[model.MonthlyInsightsParams, model.AIInsight]{
		Name: "getAIInsights",
		Fetch: func(ctx context.Context, p model.MonthlyInsightsParams) (model.AIInsight, error) {
			n, err := q.client.InsightNarrative(ctx, p)
			if err != nil {
				return model.AIInsight{}, err
			}
			return *n, nil
		},
		Provides: provide[model.MonthlyInsightsParams, model.AIInsight](insights),
	}

	q.RecalculateInsights = cache.Mutation[model.RecalculateRequest, *model.MonthlyInsight]{
		Name: "recalculateInsights",
		Run: func(ctx context.Context, req model.RecalculateRequest) (*model.MonthlyInsight, error) {
			return q.client.RecalculateInsights(ctx, req)
		},
		Invalidates: invalidate[model.RecalculateRequest](insights),
	}
}

// GetMonthlyInsight returns the insight for month; empty means the current month.
func (q *Queries) GetMonthlyInsight(ctx context.Context, month string, opts ...cache.QueryOption) (model.MonthlyInsight, error) {
	return cache.Query(ctx, q.cache, q.MonthlyInsight, model.MonthlyInsightsParams{Month: month}, opts...)
}

// GetCategories returns the spending breakdown.
func (q *Queries) GetCategories(ctx context.Context, p model.CategoryBreakdownParams, opts ...cache.QueryOption) ([]model.CategoryBreakdown, error) {
	return cache.Query(ctx, q.cache, q.Categories, p, opts...)
}

// GetComparison compares month with the month before it.
func (q *Queries) GetComparison(ctx context.Context, month string, opts ...cache.QueryOption) (model.MonthComparison, error) {
	prev, err := model.PreviousMonth(month)
	if err != nil {
		return model.MonthComparison{}, &ValidationError{Fields: map[string]string{"month": "must be YYYY-MM"}}
	}
	return cache.Query(ctx, q.cache, q.Comparison, model.ComparisonParams{CurrentMonth: month, PreviousMonth: prev}, opts...)
}

// GetNarrative returns the AI narrative for month.
func (q *Queries) GetNarrative(ctx context.Context, month string, opts ...cache.QueryOption) (model.AIInsight, error) {
	return cache.Query(ctx, q.cache, q.Narrative, model.MonthlyInsightsParams{Month: month}, opts...)
}

// Recalculate recomputes the insight for month.
func (q *Queries) Recalculate(ctx context.Context, month string) (*model.MonthlyInsight, error) {
	if err := requireFields(field{"month", month}); err != nil {
		return nil, err
	}
	return cache.Mutate(ctx, q.cache, q.RecalculateInsights, model.RecalculateRequest{Month: month})
}
