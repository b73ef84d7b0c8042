package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/commitforge/commitforge-backend/internal/billing"
	"github.com/commitforge/commitforge-backend/internal/subscriptions"
	"github.com/commitforge/commitforge-backend/pkg/db/models"
	"github.com/commitforge/commitforge-backend/pkg/enums"
	pkgerrors "github.com/commitforge/commitforge-backend/pkg/errors"
	"github.com/commitforge/commitforge-backend/pkg/logger"
	"github.com/commitforge/commitforge-backend/pkg/metrics"
)

type userRepository interface {
	FindByStripeCustomerID(ctx context.Context, customerID string) (*models.User, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	BillingRepo       billing.Repository
	UserRepo          userRepository
	Plans             *subscriptions.PlanCatalog
	TransactionRunner txRunner
	Logger            *logger.Logger
	Metrics           *metrics.BillingMetrics
}

// Service applies billing provider events to persisted subscription state.
type Service struct {
	billingRepo billing.Repository
	userRepo    userRepository
	plans       *subscriptions.PlanCatalog
	txRunner    txRunner
	logg        *logger.Logger
	metrics     *metrics.BillingMetrics
}

func NewService(params ServiceParams) (*Service, error) {
	if params.BillingRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "billing repo required")
	}
	if params.UserRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "user repo required")
	}
	if params.Plans == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "plan catalog required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &Service{
		billingRepo: params.BillingRepo,
		userRepo:    params.UserRepo,
		plans:       params.Plans,
		txRunner:    params.TransactionRunner,
		logg:        params.Logger,
		metrics:     params.Metrics,
	}, nil
}

// HandleEvent routes one verified event to its handler. A nil return
// acknowledges the delivery; any error makes the provider redeliver, so
// handlers stay retryable.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCustomerSubscriptionCreated,
		stripe.EventTypeCustomerSubscriptionUpdated:
		var stripeSub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode subscription event")
		}
		return s.syncSubscription(ctx, &stripeSub, false)

	case stripe.EventTypeCustomerSubscriptionDeleted:
		var stripeSub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode subscription event")
		}
		return s.syncSubscription(ctx, &stripeSub, true)

	case stripe.EventTypeInvoicePaid, stripe.EventTypeInvoicePaymentSucceeded:
		return s.recordInvoice(ctx, event, enums.PaymentStatusSucceeded)

	case stripe.EventTypeInvoicePaymentFailed:
		return s.recordInvoice(ctx, event, enums.PaymentStatusFailed)

	case stripe.EventTypeCheckoutSessionCompleted:
		// subscription state arrives via customer.subscription.created
		s.info(ctx, "checkout session completed")
		return nil

	default:
		return nil
	}
}

func (s *Service) syncSubscription(ctx context.Context, stripeSub *stripe.Subscription, deleted bool) error {
	if stripeSub == nil || stripeSub.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription is required")
	}

	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.billingRepo.WithTx(tx)
		stored, err := repo.FindSubscriptionByStripeID(ctx, stripeSub.ID)
		if err != nil {
			return err
		}

		tier := s.plans.TierForPrice(ctx, subscriptions.PriceIDFromSubscription(stripeSub))

		if stored == nil {
			if deleted {
				// nothing to cancel; acknowledge rather than retry forever
				s.warn(ctx, "delete event for unknown subscription "+stripeSub.ID)
				return nil
			}
			return s.createSubscription(ctx, repo, stripeSub, tier)
		}

		from := stored.Status
		if deleted {
			if err := subscriptions.MarkSubscriptionDeleted(stored, stripeSub.CanceledAt, time.Now()); err != nil {
				return s.skipConflict(ctx, err)
			}
		} else {
			if err := subscriptions.UpdateSubscriptionFromStripe(stored, stripeSub, &tier); err != nil {
				return s.skipConflict(ctx, err)
			}
		}
		if err := repo.UpdateSubscription(ctx, stored); err != nil {
			return err
		}
		if from != stored.Status {
			s.metrics.IncTransition(from.String(), stored.Status.String())
		}
		return nil
	})
}

func (s *Service) createSubscription(ctx context.Context, repo billing.Repository, stripeSub *stripe.Subscription, tier enums.PlanTier) error {
	userID, err := s.resolveUserID(ctx, stripeSub)
	if err != nil {
		return err
	}

	built, err := subscriptions.BuildSubscriptionFromStripe(stripeSub, userID, tier)
	if err != nil {
		return s.skipConflict(ctx, err)
	}
	if err := repo.CreateSubscription(ctx, built); err != nil {
		return err
	}
	if err := repo.EnsureUsageRow(ctx, userID, time.Now().UTC().Format("2006-01")); err != nil {
		return err
	}
	s.metrics.IncTransition(subscriptions.StatusNone.String(), built.Status.String())
	return nil
}

func (s *Service) resolveUserID(ctx context.Context, stripeSub *stripe.Subscription) (uuid.UUID, error) {
	userID, metaErr := subscriptions.UserIDFromMetadata(stripeSub.Metadata)
	if metaErr == nil {
		return userID, nil
	}
	if stripeSub.Customer == nil || stripeSub.Customer.ID == "" {
		return uuid.Nil, metaErr
	}
	user, err := s.userRepo.FindByStripeCustomerID(ctx, stripeSub.Customer.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, pkgerrors.New(pkgerrors.CodeNotFound, "no account for stripe customer "+stripeSub.Customer.ID)
		}
		return uuid.Nil, err
	}
	return user.ID, nil
}

type invoicePayload struct {
	ID               string `json:"id"`
	Subscription     string `json:"subscription"`
	AmountPaid       int64  `json:"amount_paid"`
	AmountDue        int64  `json:"amount_due"`
	Currency         string `json:"currency"`
	LastPaymentError *struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
	StatusTransitions struct {
		PaidAt int64 `json:"paid_at"`
	} `json:"status_transitions"`
}

func (s *Service) recordInvoice(ctx context.Context, event *stripe.Event, status enums.PaymentStatus) error {
	var payload invoicePayload
	if err := json.Unmarshal(event.Data.Raw, &payload); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode invoice event")
	}
	if payload.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "invoice id missing")
	}
	if payload.Subscription == "" {
		// one-off invoices carry no subscription; nothing to ledger here
		return nil
	}

	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.billingRepo.WithTx(tx)

		existing, err := repo.FindPaymentByInvoiceID(ctx, payload.ID)
		if err != nil {
			return err
		}
		if existing == nil {
			payment := &models.Payment{
				StripeInvoiceID:      payload.ID,
				StripeSubscriptionID: payload.Subscription,
				Currency:             payload.Currency,
				Status:               status,
			}
			if status == enums.PaymentStatusSucceeded {
				payment.Amount = decimal.New(payload.AmountPaid, -2)
				if payload.StatusTransitions.PaidAt != 0 {
					paidAt := time.Unix(payload.StatusTransitions.PaidAt, 0).UTC()
					payment.PaidAt = &paidAt
				}
			} else {
				payment.Amount = decimal.New(payload.AmountDue, -2)
				if payload.LastPaymentError != nil && payload.LastPaymentError.Message != "" {
					payment.FailureReason = &payload.LastPaymentError.Message
				}
			}
			if err := repo.CreatePayment(ctx, payment); err != nil {
				return err
			}
		}

		if status != enums.PaymentStatusFailed {
			return nil
		}

		stored, err := repo.FindSubscriptionByStripeID(ctx, payload.Subscription)
		if err != nil {
			return err
		}
		if stored == nil {
			s.warn(ctx, "failed payment for unknown subscription "+payload.Subscription)
			return nil
		}

		from := stored.Status
		next, err := subscriptions.Transition(stored.Status, subscriptions.LifecycleEvent{Kind: subscriptions.EventPaymentFailed})
		if err != nil {
			return s.skipConflict(ctx, err)
		}
		if next == stored.Status && stored.PaymentFailedAt != nil {
			return nil
		}
		stored.Status = next
		now := time.Now().UTC()
		stored.PaymentFailedAt = &now
		if err := repo.UpdateSubscription(ctx, stored); err != nil {
			return err
		}
		if from != next {
			s.metrics.IncTransition(from.String(), next.String())
		}
		return nil
	})
}

// skipConflict acknowledges stale or out-of-order events instead of letting
// the provider retry them forever.
func (s *Service) skipConflict(ctx context.Context, err error) error {
	if appErr := pkgerrors.As(err); appErr != nil && appErr.Code() == pkgerrors.CodeStateConflict {
		s.warn(ctx, "skipping billing event: "+appErr.Message())
		return nil
	}
	return err
}

func (s *Service) warn(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Warn(ctx, msg)
	}
}

func (s *Service) info(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Info(ctx, msg)
	}
}
