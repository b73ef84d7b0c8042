package controllers

import (
	"net/http"

	"github.com/commitforge/commitforge-backend/api/middleware"
	"github.com/commitforge/commitforge-backend/api/responses"
	"github.com/commitforge/commitforge-backend/api/validators"
	"github.com/commitforge/commitforge-backend/internal/subscriptions"
	pkgerrors "github.com/commitforge/commitforge-backend/pkg/errors"
	"github.com/commitforge/commitforge-backend/pkg/logger"
)

type checkoutRequest struct {
	Plan string `json:"plan" validate:"required,oneof=individual team enterprise"`
}

type updatePlanRequest struct {
	NewPlan string `json:"newPlan" validate:"required,oneof=individual team enterprise"`
}

// SubscriptionCheckout starts a hosted checkout for the requested plan.
func SubscriptionCheckout(svc *subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := middleware.UserFromContext(r.Context())
		if user == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		var body checkoutRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		url, err := svc.StartCheckout(r.Context(), user, body.Plan)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"checkoutUrl": url})
	}
}

// SubscriptionUpdate switches the account to a different plan.
func SubscriptionUpdate(svc *subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := middleware.UserFromContext(r.Context())
		if user == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		var body updatePlanRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.ChangePlan(r.Context(), user.ID, body.NewPlan); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snapshot, err := svc.Status(r.Context(), user.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshot)
	}
}

// SubscriptionCancel schedules cancellation at period end.
func SubscriptionCancel(svc *subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := middleware.UserFromContext(r.Context())
		if user == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		if err := svc.Cancel(r.Context(), user.ID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snapshot, err := svc.Status(r.Context(), user.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"canceled":         true,
			"effectiveAt":      snapshot.CurrentPeriodEnd,
			"subscriptionInfo": snapshot,
		})
	}
}

// SubscriptionPortal opens a billing-portal session.
func SubscriptionPortal(svc *subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := middleware.UserFromContext(r.Context())
		if user == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		url, err := svc.PortalURL(r.Context(), user)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"portalUrl": url})
	}
}

// SubscriptionStatus reports the account's current subscription state.
func SubscriptionStatus(svc *subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := middleware.UserFromContext(r.Context())
		if user == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		snapshot, err := svc.Status(r.Context(), user.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshot)
	}
}
