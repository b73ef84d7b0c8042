package controllers

import (
	"net/http"
	"strings"

	"github.com/commitforge/commitforge-backend/api/middleware"
	"github.com/commitforge/commitforge-backend/api/responses"
	"github.com/commitforge/commitforge-backend/api/validators"
	"github.com/commitforge/commitforge-backend/internal/commits"
	pkgerrors "github.com/commitforge/commitforge-backend/pkg/errors"
	"github.com/commitforge/commitforge-backend/pkg/logger"
	"github.com/commitforge/commitforge-backend/pkg/pagination"
)

type generateRequest struct {
	Diff               string `json:"diff" validate:"required"`
	Style              string `json:"style,omitempty" validate:"omitempty,oneof=conventional descriptive emoji semantic ticket"`
	CustomInstructions string `json:"customInstructions,omitempty" validate:"omitempty,max=500"`
}

// CommitGenerate produces a commit message for the submitted diff.
func CommitGenerate(svc *commits.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := middleware.UserFromContext(r.Context())
		if user == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		var body generateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Generate(r.Context(), commits.GenerateInput{
			UserID:             user.ID,
			Diff:               body.Diff,
			Style:              body.Style,
			CustomInstructions: body.CustomInstructions,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// CommitHistory lists the account's generated messages, newest first.
func CommitHistory(svc *commits.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := middleware.UserFromContext(r.Context())
		if user == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.History(r.Context(), user.ID, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// CommitStyles lists the built-in styles.
func CommitStyles(svc *commits.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]any{"styles": svc.Styles()})
	}
}
