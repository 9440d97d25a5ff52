package queries

import (
	"context"

	"github.com/Veraticus/spendwise/internal/cache"
	"github.com/Veraticus/spendwise/internal/model"
)

func (q *Queries) bindAccounts() {
	q.Accounts = cache.Endpoint[None, []model.BankAccount]{
		Name: "getAccounts",
		Fetch: func(ctx context.Context, _ None) ([]model.BankAccount, error) {
			return q.client.Accounts(ctx)
		},
		Provides: func(accounts []model.BankAccount, _ error, _ None) []cache.Tag {
			tags := make([]cache.Tag, 0, len(accounts)+1)
			for _, a := range accounts {
				tags = append(tags, cache.IDTag(cache.TagAccounts, a.ID))
			}
			return append(tags, cache.ListTag(cache.TagAccounts))
		},
	}

	q.LinkAccount = cache.Mutation[model.LinkAccountRequest, *model.LinkAccountResponse]{
		Name: "linkAccount",
		Run: func(ctx context.Context, req model.LinkAccountRequest) (*model.LinkAccountResponse, error) {
			return q.client.LinkAccount(ctx, req)
		},
		Invalidates: invalidate[model.LinkAccountRequest](cache.ListTag(cache.TagAccounts)),
	}

	q.UnlinkAccount = cache.Mutation[string, *model.MessageResponse]{
		Name: "unlinkAccount",
		Run: func(ctx context.Context, id string) (*model.MessageResponse, error) {
			return q.client.UnlinkAccount(ctx, id)
		},
		Invalidates: accountChangeTags,
	}

	q.SyncAccount = cache.Mutation[string, *model.SyncAccountResponse]{
		Name: "syncAccount",
		Run: func(ctx context.Context, id string) (*model.SyncAccountResponse, error) {
			return q.client.SyncAccount(ctx, id)
		},
		Invalidates: accountChangeTags,
	}
}

// accountChangeTags covers an account whose transactions may have changed.
func accountChangeTags(id string) []cache.Tag {
	return []cache.Tag{
		cache.IDTag(cache.TagAccounts, id),
		cache.ListTag(cache.TagAccounts),
		cache.ListTag(cache.TagTransactions),
	}
}

// GetAccounts returns the linked accounts.
func (q *Queries) GetAccounts(ctx context.Context, opts ...cache.QueryOption) ([]model.BankAccount, error) {
	return cache.Query(ctx, q.cache, q.Accounts, None{}, opts...)
}

// Link links the account authorized by code.
func (q *Queries) Link(ctx context.Context, code string) (*model.LinkAccountResponse, error) {
	if err := requireFields(field{"code", code}); err != nil {
		return nil, err
	}
	return cache.Mutate(ctx, q.cache, q.LinkAccount, model.LinkAccountRequest{Code: code})
}

// Unlink removes a linked account.
func (q *Queries) Unlink(ctx context.Context, id string) (*model.MessageResponse, error) {
	if err := requireFields(field{"account id", id}); err != nil {
		return nil, err
	}
	return cache.Mutate(ctx, q.cache, q.UnlinkAccount, id)
}

// Sync pulls fresh transactions for an account.
func (q *Queries) Sync(ctx context.Context, id string) (*model.SyncAccountResponse, error) {
	if err := requireFields(field{"account id", id}); err != nil {
		return nil, err
	}
	return cache.Mutate(ctx, q.cache, q.SyncAccount, id)
}
