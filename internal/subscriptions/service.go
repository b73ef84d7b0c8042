package subscriptions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/commitforge/commitforge-backend/internal/billing"
	"github.com/commitforge/commitforge-backend/pkg/config"
	"github.com/commitforge/commitforge-backend/pkg/db/models"
	"github.com/commitforge/commitforge-backend/pkg/enums"
	pkgerrors "github.com/commitforge/commitforge-backend/pkg/errors"
	"github.com/commitforge/commitforge-backend/pkg/logger"
)

type ServiceParams struct {
	BillingRepo billing.Repository
	Stripe      StripeBillingClient
	Plans       *PlanCatalog
	Stripecfg   config.StripeConfig
	Frontend    config.FrontendConfig
	Logger      *logger.Logger
}

// Service drives checkout, plan changes, and cancellation against the billing
// provider. Local state only ever changes through webhook deliveries, so these
// calls never write subscription rows themselves.
type Service struct {
	billingRepo billing.Repository
	stripe      StripeBillingClient
	plans       *PlanCatalog
	stripeCfg   config.StripeConfig
	frontend    config.FrontendConfig
	logg        *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.BillingRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "billing repo required")
	}
	if params.Stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	if params.Plans == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "plan catalog required")
	}
	return &Service{
		billingRepo: params.BillingRepo,
		stripe:      params.Stripe,
		plans:       params.Plans,
		stripeCfg:   params.Stripecfg,
		frontend:    params.Frontend,
		logg:        params.Logger,
	}, nil
}

// StartCheckout creates a hosted checkout session for the requested plan and
// returns its redirect URL. Accounts with a live subscription must use the
// plan-change or portal flows instead.
func (s *Service) StartCheckout(ctx context.Context, user *models.User, plan string) (string, error) {
	if user == nil || user.ID == uuid.Nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "user is required")
	}
	tier, err := enums.ParsePlanTier(plan)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid plan")
	}
	if user.StripeCustomerID == "" {
		return "", pkgerrors.New(pkgerrors.CodeStateConflict, "account has no billing customer")
	}

	existing, err := s.billingRepo.FindSubscriptionByUserID(ctx, user.ID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "look up subscription")
	}
	if existing != nil && existing.Status != enums.SubscriptionStatusCanceled {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "an active subscription already exists")
	}

	priceID, err := s.plans.PriceForTier(tier)
	if err != nil {
		return "", err
	}

	params := &stripe.CheckoutSessionParams{
		Customer:   stripe.String(user.StripeCustomerID),
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(s.frontend.URL + "/dashboard?checkout=success"),
		CancelURL:  stripe.String(s.frontend.URL + "/pricing?checkout=canceled"),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(priceID),
			Quantity: stripe.Int64(1),
		}},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"user_id": user.ID.String()},
		},
	}
	if s.stripeCfg.TrialDays > 0 {
		params.SubscriptionData.TrialPeriodDays = stripe.Int64(s.stripeCfg.TrialDays)
	}

	session, err := s.stripe.CreateCheckoutSession(ctx, params)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}
	return session.URL, nil
}

// ChangePlan switches the subscription's price with proration. The new plan
// tier lands locally via the subscription-updated webhook.
func (s *Service) ChangePlan(ctx context.Context, userID uuid.UUID, plan string) error {
	tier, err := enums.ParsePlanTier(plan)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid plan")
	}

	sub, err := s.requireActiveSubscription(ctx, userID)
	if err != nil {
		return err
	}
	if sub.Plan == tier {
		return pkgerrors.New(pkgerrors.CodeValidation, "already on this plan")
	}

	priceID, err := s.plans.PriceForTier(tier)
	if err != nil {
		return err
	}

	current, err := s.stripe.GetSubscription(ctx, sub.StripeSubscriptionID, nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load provider subscription")
	}
	if current.Items == nil || len(current.Items.Data) == 0 {
		return pkgerrors.New(pkgerrors.CodeDependency, "provider subscription has no items")
	}

	_, err = s.stripe.UpdateSubscription(ctx, sub.StripeSubscriptionID, &stripe.SubscriptionParams{
		Items: []*stripe.SubscriptionItemsParams{{
			ID:    stripe.String(current.Items.Data[0].ID),
			Price: stripe.String(priceID),
		}},
		ProrationBehavior: stripe.String("create_prorations"),
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update provider subscription")
	}
	return nil
}

// Cancel schedules cancellation at period end. The status flip to canceled
// arrives later through the subscription-deleted webhook.
func (s *Service) Cancel(ctx context.Context, userID uuid.UUID) error {
	sub, err := s.requireActiveSubscription(ctx, userID)
	if err != nil {
		return err
	}

	_, err = s.stripe.UpdateSubscription(ctx, sub.StripeSubscriptionID, &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "schedule cancellation")
	}
	return nil
}

// PortalURL opens a billing-portal session for self-service payment details.
func (s *Service) PortalURL(ctx context.Context, user *models.User) (string, error) {
	if user == nil || user.StripeCustomerID == "" {
		return "", pkgerrors.New(pkgerrors.CodeStateConflict, "account has no billing customer")
	}

	session, err := s.stripe.CreatePortalSession(ctx, &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(user.StripeCustomerID),
		ReturnURL: stripe.String(s.frontend.URL + "/dashboard"),
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create portal session")
	}
	return session.URL, nil
}

// StatusSnapshot is what clients render on the billing page.
type StatusSnapshot struct {
	HasSubscription   bool                      `json:"hasSubscription"`
	Status            *enums.SubscriptionStatus `json:"status,omitempty"`
	Plan              *enums.PlanTier           `json:"plan,omitempty"`
	CurrentPeriodEnd  *time.Time                `json:"currentPeriodEnd,omitempty"`
	TrialEnd          *time.Time                `json:"trialEnd,omitempty"`
	CancelAtPeriodEnd bool                      `json:"cancelAtPeriodEnd"`
}

// Status reports the account's subscription state, or an empty snapshot when
// none exists.
func (s *Service) Status(ctx context.Context, userID uuid.UUID) (*StatusSnapshot, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	sub, err := s.billingRepo.FindSubscriptionByUserID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "look up subscription")
	}
	if sub == nil {
		return &StatusSnapshot{}, nil
	}
	return &StatusSnapshot{
		HasSubscription:   true,
		Status:            &sub.Status,
		Plan:              &sub.Plan,
		CurrentPeriodEnd:  sub.CurrentPeriodEnd,
		TrialEnd:          sub.TrialEnd,
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}, nil
}

// requireActiveSubscription loads the subscription and rejects anything that
// is not strictly active. Plan changes and cancellation are only offered to
// accounts in good standing; trialing and past_due callers get a 400.
func (s *Service) requireActiveSubscription(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	sub, err := s.billingRepo.FindSubscriptionByUserID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "look up subscription")
	}
	if sub == nil || sub.Status != enums.SubscriptionStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no active subscription")
	}
	return sub, nil
}
