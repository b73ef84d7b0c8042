package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/commitforge/commitforge-backend/api/responses"
	pkgauth "github.com/commitforge/commitforge-backend/pkg/auth"
	"github.com/commitforge/commitforge-backend/pkg/config"
	"github.com/commitforge/commitforge-backend/pkg/db/models"
	pkgerrors "github.com/commitforge/commitforge-backend/pkg/errors"
	"github.com/commitforge/commitforge-backend/pkg/logger"
)

type userLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type subscriptionLoader interface {
	FindSubscriptionByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
}

// Auth validates a bearer token and seeds the request context with the
// account and its subscription snapshot, so downstream gates never hit the
// database again.
func Auth(cfg config.JWTConfig, users userLoader, subs subscriptionLoader, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgauth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			user, err := users.FindByID(r.Context(), claims.UserID)
			if err != nil {
				if isNotFound(err) {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "account no longer exists"))
					return
				}
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load account"))
				return
			}

			sub, err := subs.FindSubscriptionByUserID(r.Context(), user.ID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load subscription"))
				return
			}

			ctx := WithUser(r.Context(), user)
			ctx = WithSubscription(ctx, sub)
			if logg != nil {
				ctx = logg.WithUserID(ctx, user.ID.String())
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
