package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/commitforge/commitforge-backend/pkg/logger"
	"github.com/commitforge/commitforge-backend/pkg/metrics"
)

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

type stripeWebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type stripeClient interface {
	SigningSecret() string
}

// maxWebhookBody bounds the request body read; Stripe events are small.
const maxWebhookBody = 1 << 20

// StripeWebhook verifies, deduplicates, and applies billing events. The
// response contract is Stripe's: any non-2xx triggers redelivery, so failures
// release the idempotency claim before responding.
func StripeWebhook(svc StripeWebhookService, client stripeClient, guard stripeWebhookGuard, billingMetrics *metrics.BillingMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil || client == nil || guard == nil {
			writeWebhookError(w, http.StatusInternalServerError)
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			writeWebhookError(w, http.StatusBadRequest)
			return
		}

		sigHeader := r.Header.Get("Stripe-Signature")
		event, err := webhook.ConstructEvent(payload, sigHeader, client.SigningSecret())
		if err != nil {
			if logg != nil {
				logg.Warn(ctx, "stripe webhook signature rejected")
			}
			billingMetrics.IncWebhookEvent("unknown", "signature_rejected")
			writeWebhookError(w, http.StatusBadRequest)
			return
		}

		alreadyProcessed, err := guard.CheckAndMark(ctx, event.ID)
		if err != nil {
			writeWebhookError(w, http.StatusInternalServerError)
			return
		}
		if alreadyProcessed {
			if logg != nil {
				logCtx := logg.WithField(ctx, "event_id", event.ID)
				logg.Info(logCtx, "stripe event already processed")
			}
			billingMetrics.IncWebhookDuplicate()
			writeWebhookReceived(w)
			return
		}

		if err := svc.HandleEvent(ctx, &event); err != nil {
			// release the claim so Stripe's redelivery can retry
			_ = guard.Delete(ctx, event.ID)
			if logg != nil {
				logCtx := logg.WithField(ctx, "event_id", event.ID)
				logg.Error(logCtx, "stripe event processing failed", err)
			}
			billingMetrics.IncWebhookEvent(string(event.Type), "failed")
			writeWebhookError(w, http.StatusBadRequest)
			return
		}

		billingMetrics.IncWebhookEvent(string(event.Type), "processed")
		writeWebhookReceived(w)
	}
}

func writeWebhookReceived(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]bool{"received": true})
}

func writeWebhookError(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "Webhook error"})
}
