package subscriptions

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/commitforge/commitforge-backend/pkg/db/models"
	"github.com/commitforge/commitforge-backend/pkg/enums"
	pkgerrors "github.com/commitforge/commitforge-backend/pkg/errors"
)

// ErrStaleEvent marks a subscription update whose billing period predates the
// stored one. The provider delivered events out of order; callers skip the
// event instead of regressing state.
var ErrStaleEvent = pkgerrors.New(pkgerrors.CodeStateConflict, "stale subscription event")

// BuildSubscriptionFromStripe maps a provider subscription into the canonical model.
func BuildSubscriptionFromStripe(stripeSub *stripe.Subscription, userID uuid.UUID, plan enums.PlanTier) (*models.Subscription, error) {
	if stripeSub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stripe subscription is nil")
	}
	reported, err := mapStripeStatus(stripeSub.Status)
	if err != nil {
		return nil, err
	}
	status, err := Transition(StatusNone, LifecycleEvent{
		Kind:           EventSubscriptionCreated,
		ReportedStatus: reported,
	})
	if err != nil {
		return nil, err
	}

	customerID := ""
	if stripeSub.Customer != nil {
		customerID = stripeSub.Customer.ID
	}

	startTS, endTS := periodFromSubscription(stripeSub)

	return &models.Subscription{
		UserID:               userID,
		StripeSubscriptionID: stripeSub.ID,
		StripeCustomerID:     customerID,
		Plan:                 plan,
		Status:               status,
		CurrentPeriodStart:   toTimePtr(startTS),
		CurrentPeriodEnd:     toTimePtr(endTS),
		CancelAtPeriodEnd:    stripeSub.CancelAtPeriodEnd,
		TrialEnd:             toTimePtr(stripeSub.TrialEnd),
		CanceledAt:           toTimePtr(stripeSub.CanceledAt),
	}, nil
}

// UpdateSubscriptionFromStripe mutates the stored subscription with new
// provider data. Status changes go through Transition; an event whose period
// end predates the stored period returns ErrStaleEvent and leaves the target
// unchanged.
func UpdateSubscriptionFromStripe(target *models.Subscription, stripeSub *stripe.Subscription, plan *enums.PlanTier) error {
	if target == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "target subscription is nil")
	}
	if stripeSub == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "stripe subscription is nil")
	}

	startTS, endTS := periodFromSubscription(stripeSub)
	if endTS != 0 && target.CurrentPeriodEnd != nil {
		if incoming := time.Unix(endTS, 0).UTC(); incoming.Before(target.CurrentPeriodEnd.UTC()) {
			return ErrStaleEvent
		}
	}

	reported, err := mapStripeStatus(stripeSub.Status)
	if err != nil {
		return err
	}
	status, err := Transition(target.Status, LifecycleEvent{
		Kind:           EventSubscriptionUpdated,
		ReportedStatus: reported,
	})
	if err != nil {
		return err
	}

	target.StripeSubscriptionID = stripeSub.ID
	target.Status = status
	if plan != nil {
		target.Plan = *plan
	}
	target.CurrentPeriodStart = toTimePtr(startTS)
	target.CurrentPeriodEnd = toTimePtr(endTS)
	target.CancelAtPeriodEnd = stripeSub.CancelAtPeriodEnd
	target.TrialEnd = toTimePtr(stripeSub.TrialEnd)
	target.CanceledAt = toTimePtr(stripeSub.CanceledAt)
	if status != enums.SubscriptionStatusPastDue {
		target.PaymentFailedAt = nil
	}
	return nil
}

// MarkSubscriptionDeleted cancels the stored subscription.
func MarkSubscriptionDeleted(target *models.Subscription, canceledAt int64, now time.Time) error {
	if target == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "target subscription is nil")
	}
	status, err := Transition(target.Status, LifecycleEvent{Kind: EventSubscriptionDeleted})
	if err != nil {
		return err
	}
	target.Status = status
	if ts := toTimePtr(canceledAt); ts != nil {
		target.CanceledAt = ts
	} else {
		utc := now.UTC()
		target.CanceledAt = &utc
	}
	return nil
}

// UserIDFromMetadata extracts the account ID attached to provider metadata at
// checkout time.
func UserIDFromMetadata(metadata map[string]string) (uuid.UUID, error) {
	if metadata == nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription metadata is required")
	}
	userID, ok := metadata["user_id"]
	if !ok || strings.TrimSpace(userID) == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "user_id missing from metadata")
	}
	id, err := uuid.Parse(strings.TrimSpace(userID))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user_id metadata")
	}
	return id, nil
}

// PriceIDFromSubscription pulls the first item's price ID, if any.
func PriceIDFromSubscription(sub *stripe.Subscription) string {
	if sub == nil || sub.Items == nil || len(sub.Items.Data) == 0 {
		return ""
	}
	if sub.Items.Data[0].Price != nil {
		return sub.Items.Data[0].Price.ID
	}
	return ""
}

func periodFromSubscription(sub *stripe.Subscription) (int64, int64) {
	if sub == nil || sub.Items == nil || len(sub.Items.Data) == 0 {
		return 0, 0
	}
	item := sub.Items.Data[0]
	return item.CurrentPeriodStart, item.CurrentPeriodEnd
}

func toTimePtr(ts int64) *time.Time {
	if ts == 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}

var stripeStatusAliases = map[stripe.SubscriptionStatus]enums.SubscriptionStatus{
	stripe.SubscriptionStatusTrialing:          enums.SubscriptionStatusTrialing,
	stripe.SubscriptionStatusActive:            enums.SubscriptionStatusActive,
	stripe.SubscriptionStatusPastDue:           enums.SubscriptionStatusPastDue,
	stripe.SubscriptionStatusUnpaid:            enums.SubscriptionStatusPastDue,
	stripe.SubscriptionStatusCanceled:          enums.SubscriptionStatusCanceled,
	stripe.SubscriptionStatusIncomplete:        enums.SubscriptionStatusPastDue,
	stripe.SubscriptionStatusIncompleteExpired: enums.SubscriptionStatusCanceled,
	stripe.SubscriptionStatusPaused:            enums.SubscriptionStatusCanceled,
}

func mapStripeStatus(raw stripe.SubscriptionStatus) (enums.SubscriptionStatus, error) {
	if mapped, ok := stripeStatusAliases[raw]; ok {
		return mapped, nil
	}
	if parsed, err := enums.ParseSubscriptionStatus(strings.ToLower(strings.TrimSpace(string(raw)))); err == nil {
		return parsed, nil
	}
	return "", pkgerrors.New(pkgerrors.CodeDependency, "unknown stripe subscription status "+string(raw))
}
