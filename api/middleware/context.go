package middleware

import (
	"context"

	"github.com/commitforge/commitforge-backend/pkg/db/models"
)

type contextKey string

const (
	ctxUser         contextKey = "user"
	ctxSubscription contextKey = "subscription"
)

// UserFromContext returns the authenticated user, or nil outside an
// authenticated route.
func UserFromContext(ctx context.Context) *models.User {
	if ctx == nil {
		return nil
	}
	if u, ok := ctx.Value(ctxUser).(*models.User); ok {
		return u
	}
	return nil
}

// SubscriptionFromContext returns the account's subscription snapshot loaded
// during authentication; nil when the account has none.
func SubscriptionFromContext(ctx context.Context) *models.Subscription {
	if ctx == nil {
		return nil
	}
	if s, ok := ctx.Value(ctxSubscription).(*models.Subscription); ok {
		return s
	}
	return nil
}

// WithUser injects the authenticated user into the context.
func WithUser(ctx context.Context, user *models.User) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxUser, user)
}

// WithSubscription injects the subscription snapshot into the context.
func WithSubscription(ctx context.Context, sub *models.Subscription) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxSubscription, sub)
}
