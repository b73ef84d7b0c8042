package subscriptions

import (
	"github.com/commitforge/commitforge-backend/pkg/enums"
	pkgerrors "github.com/commitforge/commitforge-backend/pkg/errors"
)

// StatusNone is the implicit state before any subscription row exists.
const StatusNone enums.SubscriptionStatus = ""

// EventKind identifies the lifecycle events the billing provider delivers.
type EventKind string

const (
	EventSubscriptionCreated EventKind = "subscription_created"
	EventSubscriptionUpdated EventKind = "subscription_updated"
	EventSubscriptionDeleted EventKind = "subscription_deleted"
	EventPaymentSucceeded    EventKind = "payment_succeeded"
	EventPaymentFailed       EventKind = "payment_failed"
)

// LifecycleEvent is one inbound billing event reduced to what the state
// machine needs. ReportedStatus is only meaningful for created/updated.
type LifecycleEvent struct {
	Kind           EventKind
	ReportedStatus enums.SubscriptionStatus
}

// statusEdges enumerates every legal target per current status. Canceled is
// terminal.
var statusEdges = map[enums.SubscriptionStatus][]enums.SubscriptionStatus{
	StatusNone: {
		enums.SubscriptionStatusTrialing,
		enums.SubscriptionStatusActive,
	},
	enums.SubscriptionStatusTrialing: {
		enums.SubscriptionStatusTrialing,
		enums.SubscriptionStatusActive,
		enums.SubscriptionStatusPastDue,
		enums.SubscriptionStatusCanceled,
	},
	enums.SubscriptionStatusActive: {
		enums.SubscriptionStatusActive,
		enums.SubscriptionStatusPastDue,
		enums.SubscriptionStatusCanceled,
	},
	enums.SubscriptionStatusPastDue: {
		enums.SubscriptionStatusPastDue,
		enums.SubscriptionStatusActive,
		enums.SubscriptionStatusCanceled,
	},
	enums.SubscriptionStatusCanceled: {
		enums.SubscriptionStatusCanceled,
	},
}

// Transition computes the next subscription status for a lifecycle event.
// Illegal moves return a state-conflict error and leave the caller's record
// untouched.
func Transition(current enums.SubscriptionStatus, event LifecycleEvent) (enums.SubscriptionStatus, error) {
	switch event.Kind {
	case EventSubscriptionCreated:
		if current != StatusNone {
			return current, pkgerrors.New(pkgerrors.CodeStateConflict, "subscription already exists").
				WithDetails(map[string]any{"current_status": current.String()})
		}
		if event.ReportedStatus != enums.SubscriptionStatusTrialing && event.ReportedStatus != enums.SubscriptionStatusActive {
			return current, pkgerrors.New(pkgerrors.CodeStateConflict, "new subscription must start trialing or active").
				WithDetails(map[string]any{"reported_status": event.ReportedStatus.String()})
		}
		return event.ReportedStatus, nil

	case EventSubscriptionUpdated:
		if current == StatusNone {
			return current, pkgerrors.New(pkgerrors.CodeStateConflict, "no subscription to update")
		}
		if !event.ReportedStatus.IsValid() {
			return current, pkgerrors.New(pkgerrors.CodeStateConflict, "unknown reported status").
				WithDetails(map[string]any{"reported_status": event.ReportedStatus.String()})
		}
		return step(current, event.ReportedStatus)

	case EventSubscriptionDeleted:
		if current == StatusNone {
			return current, pkgerrors.New(pkgerrors.CodeStateConflict, "no subscription to delete")
		}
		return enums.SubscriptionStatusCanceled, nil

	case EventPaymentFailed:
		if current == StatusNone {
			return current, pkgerrors.New(pkgerrors.CodeStateConflict, "no subscription for failed payment")
		}
		if current == enums.SubscriptionStatusCanceled {
			// ledger still records the failure; status stays terminal
			return current, nil
		}
		return step(current, enums.SubscriptionStatusPastDue)

	case EventPaymentSucceeded:
		// a following subscription-updated restores active; the payment
		// itself never moves the status
		return current, nil

	default:
		return current, pkgerrors.New(pkgerrors.CodeInternal, "unknown lifecycle event").
			WithDetails(map[string]any{"event_kind": string(event.Kind)})
	}
}

func step(current, target enums.SubscriptionStatus) (enums.SubscriptionStatus, error) {
	for _, candidate := range statusEdges[current] {
		if candidate == target {
			return target, nil
		}
	}
	return current, pkgerrors.New(pkgerrors.CodeStateConflict, "illegal status transition").
		WithDetails(map[string]any{
			"current_status": current.String(),
			"target_status":  target.String(),
		})
}

// IsEntitledStatus reports whether the status grants API access. Trialing is
// deliberately excluded: only active subscriptions pass the request gate.
func IsEntitledStatus(status enums.SubscriptionStatus) bool {
	return status == enums.SubscriptionStatusActive
}
