package middleware

import (
	"net/http"

	"github.com/commitforge/commitforge-backend/api/responses"
	"github.com/commitforge/commitforge-backend/internal/subscriptions"
	"github.com/commitforge/commitforge-backend/pkg/enums"
	pkgerrors "github.com/commitforge/commitforge-backend/pkg/errors"
	"github.com/commitforge/commitforge-backend/pkg/logger"
)

// RequireSubscription gates a route on a live subscription. With no plans
// listed any entitled subscription passes; otherwise the plan tier must be in
// the list. Trialing accounts are not yet entitled: the first invoice has to
// settle before paid features unlock.
func RequireSubscription(logg *logger.Logger, plans ...enums.PlanTier) func(http.Handler) http.Handler {
	allowed := map[enums.PlanTier]bool{}
	for _, plan := range plans {
		allowed[plan] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sub := SubscriptionFromContext(r.Context())
			if sub == nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeForbidden, "an active subscription is required"))
				return
			}
			if !subscriptions.IsEntitledStatus(sub.Status) {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeForbidden, "subscription is not active").
						WithDetails(map[string]any{"status": sub.Status}))
				return
			}
			if len(allowed) > 0 && !allowed[sub.Plan] {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeForbidden, "plan does not include this feature").
						WithDetails(map[string]any{"required_plans": plans}))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireTeamPlan gates a route to team and enterprise accounts.
func RequireTeamPlan(logg *logger.Logger) func(http.Handler) http.Handler {
	return RequireSubscription(logg, enums.PlanTierTeam, enums.PlanTierEnterprise)
}

// RequireEnterprisePlan gates a route to enterprise accounts.
func RequireEnterprisePlan(logg *logger.Logger) func(http.Handler) http.Handler {
	return RequireSubscription(logg, enums.PlanTierEnterprise)
}
