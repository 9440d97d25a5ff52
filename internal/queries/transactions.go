package queries

import (
	"context"

	"github.com/Veraticus/spendwise/internal/cache"
	"github.com/Veraticus/spendwise/internal/model"
)

func (q *Queries) bindTransactions() {
	q.Transactions = cache.Endpoint[model.TransactionFilters, model.Page[model.Transaction]]{
		Name: "getTransactions",
		Fetch: func(ctx context.Context, f model.TransactionFilters) (model.Page[model.Transaction], error) {
			resp, err := q.client.Transactions(ctx, f)
			if err != nil {
				return model.Page[model.Transaction]{}, err
			}
			return resp.ToPage(), nil
		},
		SerializeArgs: func(f model.TransactionFilters) any {
			return f.ListKey()
		},
		Merge:        q.mergePages,
		ForceRefetch: func(arg, last model.TransactionFilters) bool { return arg.Page != last.Page },
		Provides: func(p model.Page[model.Transaction], _ error, _ model.TransactionFilters) []cache.Tag {
			tags := make([]cache.Tag, 0, len(p.Data)+1)
			for _, txn := range p.Data {
				tags = append(tags, cache.IDTag(cache.TagTransactions, txn.ID))
			}
			return append(tags, cache.ListTag(cache.TagTransactions))
		},
	}

	q.Transaction = cache.Endpoint[string, model.Transaction]{
		Name: "getTransaction",
		Fetch: func(ctx context.Context, id string) (model.Transaction, error) {
			txn, err := q.client.Transaction(ctx, id)
			if err != nil {
				return model.Transaction{}, err
			}
			return *txn, nil
		},
		Provides: func(_ model.Transaction, _ error, id string) []cache.Tag {
			return []cache.Tag{cache.IDTag(cache.TagTransactions, id)}
		},
	}
}

// mergePages replaces the list on page 1 and appends later pages, taking
// the paging metadata from the newest response.
func (q *Queries) mergePages(current, incoming model.Page[model.Transaction], f model.TransactionFilters) model.Page[model.Transaction] {
	if f.Page <= 1 {
		return incoming
	}
	if incoming.Page != current.Page+1 {
		q.logger.Warn("Transactions page arrived out of order",
			"have", current.Page,
			"got", incoming.Page)
	}

	data := make([]model.Transaction, 0, len(current.Data)+len(incoming.Data))
	data = append(data, current.Data...)
	data = append(data, incoming.Data...)

	return model.Page[model.Transaction]{
		Data:    data,
		Total:   incoming.Total,
		Page:    incoming.Page,
		Limit:   incoming.Limit,
		HasMore: incoming.HasMore,
	}
}

// GetTransactions fetches a page and returns the accumulated list for the filters.
func (q *Queries) GetTransactions(ctx context.Context, f model.TransactionFilters, opts ...cache.QueryOption) (model.Page[model.Transaction], error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultPageSize
	}
	return cache.Query(ctx, q.cache, q.Transactions, f, opts...)
}

// NextTransactions loads the page after the accumulated one, if any.
func (q *Queries) NextTransactions(ctx context.Context, f model.TransactionFilters) (model.Page[model.Transaction], error) {
	if f.Limit < 1 {
		f.Limit = DefaultPageSize
	}
	f.Page = 1
	current, ok := cache.Peek(q.cache, q.Transactions, f)
	if !ok {
		return q.GetTransactions(ctx, f)
	}
	if !current.HasMore {
		return current, nil
	}
	f.Page = current.Page + 1
	return cache.Query(ctx, q.cache, q.Transactions, f)
}

// GetTransaction fetches one transaction.
func (q *Queries) GetTransaction(ctx context.Context, id string, opts ...cache.QueryOption) (model.Transaction, error) {
	if err := requireFields(field{"transaction id", id}); err != nil {
		return model.Transaction{}, err
	}
	return cache.Query(ctx, q.cache, q.Transaction, id, opts...)
}
