package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/commitforge/commitforge-backend/api/middleware"
	"github.com/commitforge/commitforge-backend/api/responses"
	"github.com/commitforge/commitforge-backend/api/validators"
	"github.com/commitforge/commitforge-backend/internal/teams"
	"github.com/commitforge/commitforge-backend/internal/users"
	"github.com/commitforge/commitforge-backend/pkg/db/models"
	pkgerrors "github.com/commitforge/commitforge-backend/pkg/errors"
	"github.com/commitforge/commitforge-backend/pkg/logger"
)

// usageLister is the slice of billing persistence the usage endpoint needs.
type usageLister interface {
	FindUsage(ctx context.Context, userID uuid.UUID, month string) (*models.UsageStat, error)
	ListUsage(ctx context.Context, userID uuid.UUID, fromMonth string) ([]models.UsageStat, error)
}

// UserMe returns the authenticated account with its subscription snapshot.
func UserMe(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := middleware.UserFromContext(r.Context())
		if user == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		payload := map[string]any{
			"user": users.FromModel(user),
		}
		if sub := middleware.SubscriptionFromContext(r.Context()); sub != nil {
			payload["subscription"] = map[string]any{
				"status":            sub.Status,
				"plan":              sub.Plan,
				"currentPeriodEnd":  sub.CurrentPeriodEnd,
				"cancelAtPeriodEnd": sub.CancelAtPeriodEnd,
			}
		}
		responses.WriteSuccess(w, payload)
	}
}

type updateProfileRequest struct {
	Name     string  `json:"name" validate:"required,min=1,max=120"`
	Company  *string `json:"company,omitempty" validate:"omitempty,max=120"`
	Timezone *string `json:"timezone,omitempty" validate:"omitempty,max=64"`
}

// UserUpdateMe updates mutable profile fields.
func UserUpdateMe(repo *users.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := middleware.UserFromContext(r.Context())
		if user == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		var body updateProfileRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := repo.UpdateProfile(r.Context(), user.ID, body.Name, body.Company, body.Timezone); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update profile"))
			return
		}

		updated, err := repo.FindByID(r.Context(), user.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload profile"))
			return
		}
		responses.WriteSuccess(w, users.FromModel(updated))
	}
}

const usageHistoryMonths = 6

// UserUsage reports the current month's counters plus recent history.
func UserUsage(billingRepo usageLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := middleware.UserFromContext(r.Context())
		if user == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		now := time.Now().UTC()
		currentMonth := now.Format("2006-01")
		fromMonth := now.AddDate(0, -(usageHistoryMonths - 1), 0).Format("2006-01")

		rows, err := billingRepo.ListUsage(r.Context(), user.ID, fromMonth)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load usage"))
			return
		}

		current := models.UsageStat{UserID: user.ID, Month: currentMonth}
		if row, err := billingRepo.FindUsage(r.Context(), user.ID, currentMonth); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load usage"))
			return
		} else if row != nil {
			current = *row
		}

		responses.WriteSuccess(w, map[string]any{
			"currentMonth": map[string]any{
				"month":            current.Month,
				"commitsGenerated": current.CommitsGenerated,
				"tokensUsed":       current.TokensUsed,
			},
			"history": rows,
		})
	}
}

// TeamList returns the account's team roster.
func TeamList(svc *teams.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := middleware.UserFromContext(r.Context())
		if user == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		members, err := svc.List(r.Context(), user.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"members": members})
	}
}

type inviteRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role,omitempty" validate:"omitempty,oneof=member admin"`
}

// TeamInvite adds a seat to the account's team.
func TeamInvite(svc *teams.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := middleware.UserFromContext(r.Context())
		if user == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		var body inviteRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		member, err := svc.Invite(r.Context(), teams.InviteInput{
			OwnerID: user.ID,
			Email:   body.Email,
			Role:    body.Role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, member)
	}
}

// TeamRemove deletes a seat.
func TeamRemove(svc *teams.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := middleware.UserFromContext(r.Context())
		if user == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		memberID, err := uuid.Parse(chi.URLParam(r, "memberId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid member id"))
			return
		}

		if err := svc.Remove(r.Context(), user.ID, memberID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"removed": true})
	}
}
