package queries

import (
	"context"

	"github.com/Veraticus/spendwise/internal/cache"
	"github.com/Veraticus/spendwise/internal/model"
)

func (q *Queries) bindUsers() {
	q.CurrentUser = cache.Endpoint[None, model.User]{
		Name: "getCurrentUser",
		Fetch: func(ctx context.Context, _ None) (model.User, error) {
			user, err := q.client.CurrentUser(ctx)
			if err != nil {
				return model.User{}, err
			}
			return *user, nil
		},
		Provides: provide[None, model.User](cache.TypeTag(cache.TagUser)),
	}

	q.UpdateCurrentUser = cache.Mutation[model.UpdateUserRequest, *model.User]{
		Name: "updateCurrentUser",
		Run: func(ctx context.Context, req model.UpdateUserRequest) (*model.User, error) {
			return q.client.UpdateCurrentUser(ctx, req)
		},
		Invalidates: invalidate[model.UpdateUserRequest](cache.TypeTag(cache.TagUser)),
	}

	q.VerifyEmail = cache.Mutation[model.VerifyEmailRequest, *model.AuthResponse]{
		Name: "verifyEmail",
		Run: func(ctx context.Context, req model.VerifyEmailRequest) (*model.AuthResponse, error) {
			return q.client.VerifyEmail(ctx, req)
		},
		Invalidates: invalidate[model.VerifyEmailRequest](cache.TypeTag(cache.TagUser)),
	}
}

// Me returns the signed-in user.
func (q *Queries) Me(ctx context.Context, opts ...cache.QueryOption) (model.User, error) {
	return cache.Query(ctx, q.cache, q.CurrentUser, None{}, opts...)
}

// UpdateProfile changes the user's name or email and refreshes the stored user.
func (q *Queries) UpdateProfile(ctx context.Context, req model.UpdateUserRequest) (*model.User, error) {
	if err := ValidateProfile(req); err != nil {
		return nil, err
	}
	user, err := cache.Mutate(ctx, q.cache, q.UpdateCurrentUser, req)
	if err != nil {
		return nil, err
	}
	q.session.SetUser(user)
	return user, nil
}
