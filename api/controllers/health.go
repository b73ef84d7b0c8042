package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/commitforge/commitforge-backend/api/responses"
	"github.com/commitforge/commitforge-backend/pkg/config"
	"github.com/commitforge/commitforge-backend/pkg/db"
	pkgerrors "github.com/commitforge/commitforge-backend/pkg/errors"
	"github.com/commitforge/commitforge-backend/pkg/logger"
	"github.com/commitforge/commitforge-backend/pkg/redis"
)

// HealthLive reports process liveness only.
func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{
			"status": "ok",
			"env":    cfg.App.Env,
		})
	}
}

// HealthReady checks the dependencies the request path needs.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		checks := map[string]string{}
		healthy := true

		if dbP != nil {
			if err := dbP.Ping(ctx); err != nil {
				checks["database"] = "unavailable"
				healthy = false
			} else {
				checks["database"] = "ok"
			}
		}
		if redisP != nil {
			if err := redisP.Ping(ctx); err != nil {
				checks["redis"] = "unavailable"
				healthy = false
			} else {
				checks["redis"] = "ok"
			}
		}

		if !healthy {
			responses.WriteError(ctx, logg, w,
				pkgerrors.New(pkgerrors.CodeDependency, "dependencies unavailable").WithDetails(checks))
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"status": "ok",
			"checks": checks,
		})
	}
}
