package stripewebhook

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/commitforge/commitforge-backend/internal/billing"
	"github.com/commitforge/commitforge-backend/internal/subscriptions"
	"github.com/commitforge/commitforge-backend/pkg/config"
	"github.com/commitforge/commitforge-backend/pkg/db/models"
	"github.com/commitforge/commitforge-backend/pkg/enums"
)

func newTestService(t *testing.T, billingRepo billing.Repository, userRepo userRepository) *Service {
	t.Helper()

	plans, err := subscriptions.NewPlanCatalog(config.StripeConfig{
		PriceIndividual: "price_individual",
		PriceTeam:       "price_team",
		PriceEnterprise: "price_enterprise",
	}, nil)
	require.NoError(t, err)

	service, err := NewService(ServiceParams{
		BillingRepo:       billingRepo,
		UserRepo:          userRepo,
		Plans:             plans,
		TransactionRunner: &stubTxRunner{},
	})
	require.NoError(t, err)
	return service
}

func subscriptionEvent(t *testing.T, eventType stripe.EventType, sub *stripe.Subscription) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(sub)
	require.NoError(t, err)
	return &stripe.Event{
		ID:   "evt_" + uuid.NewString(),
		Type: eventType,
		Data: &stripe.EventData{Raw: raw},
	}
}

func invoiceEvent(t *testing.T, eventType stripe.EventType, payload map[string]any) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return &stripe.Event{
		ID:   "evt_" + uuid.NewString(),
		Type: eventType,
		Data: &stripe.EventData{Raw: raw},
	}
}

func testStripeSub(id string, status stripe.SubscriptionStatus, userID uuid.UUID, priceID string, periodStart, periodEnd int64) *stripe.Subscription {
	return &stripe.Subscription{
		ID:       id,
		Status:   status,
		Customer: &stripe.Customer{ID: "cus_test"},
		Metadata: map[string]string{"user_id": userID.String()},
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{{
				Price:              &stripe.Price{ID: priceID},
				CurrentPeriodStart: periodStart,
				CurrentPeriodEnd:   periodEnd,
			}},
		},
	}
}

func TestHandleEventCreatesSubscriptionAndUsageRow(t *testing.T) {
	userID := uuid.New()
	repo := newStubBillingRepo()
	service := newTestService(t, repo, &stubUserRepo{})

	event := subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionCreated,
		testStripeSub("sub_new", stripe.SubscriptionStatusTrialing, userID, "price_team", 100, 200))

	require.NoError(t, service.HandleEvent(context.Background(), event))

	require.Len(t, repo.created, 1)
	created := repo.created[0]
	assert.Equal(t, userID, created.UserID)
	assert.Equal(t, enums.PlanTierTeam, created.Plan)
	assert.Equal(t, enums.SubscriptionStatusTrialing, created.Status)
	assert.Len(t, repo.usageRows, 1, "expected usage row initialized")
}

func TestHandleEventResolvesUserByCustomerWhenMetadataMissing(t *testing.T) {
	userID := uuid.New()
	repo := newStubBillingRepo()
	service := newTestService(t, repo, &stubUserRepo{user: &models.User{ID: userID, StripeCustomerID: "cus_test"}})

	sub := testStripeSub("sub_new", stripe.SubscriptionStatusActive, uuid.Nil, "price_individual", 100, 200)
	sub.Metadata = nil
	event := subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionCreated, sub)

	require.NoError(t, service.HandleEvent(context.Background(), event))
	require.Len(t, repo.created, 1)
	assert.Equal(t, userID, repo.created[0].UserID)
}

func TestHandleEventUpdateIsIdempotent(t *testing.T) {
	userID := uuid.New()
	repo := newStubBillingRepo()
	service := newTestService(t, repo, &stubUserRepo{})

	created := subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionCreated,
		testStripeSub("sub_1", stripe.SubscriptionStatusTrialing, userID, "price_team", 100, 200))
	require.NoError(t, service.HandleEvent(context.Background(), created))

	update := testStripeSub("sub_1", stripe.SubscriptionStatusActive, userID, "price_team", 200, 300)
	for i := 0; i < 3; i++ {
		event := subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionUpdated, update)
		require.NoError(t, service.HandleEvent(context.Background(), event))
	}

	stored := repo.bySubID("sub_1")
	require.NotNil(t, stored)
	assert.Equal(t, enums.SubscriptionStatusActive, stored.Status)
	require.NotNil(t, stored.CurrentPeriodEnd)
	assert.Equal(t, int64(300), stored.CurrentPeriodEnd.Unix())
}

func TestHandleEventSkipsStaleUpdate(t *testing.T) {
	userID := uuid.New()
	repo := newStubBillingRepo()
	service := newTestService(t, repo, &stubUserRepo{})

	created := subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionCreated,
		testStripeSub("sub_1", stripe.SubscriptionStatusActive, userID, "price_team", 200, 300))
	require.NoError(t, service.HandleEvent(context.Background(), created))

	// an older billing period arriving late must not regress state
	stale := subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionUpdated,
		testStripeSub("sub_1", stripe.SubscriptionStatusTrialing, userID, "price_team", 100, 200))
	require.NoError(t, service.HandleEvent(context.Background(), stale))

	stored := repo.bySubID("sub_1")
	require.NotNil(t, stored)
	assert.Equal(t, enums.SubscriptionStatusActive, stored.Status)
	assert.Equal(t, int64(300), stored.CurrentPeriodEnd.Unix())
}

func TestHandleEventDeletedCancels(t *testing.T) {
	userID := uuid.New()
	repo := newStubBillingRepo()
	service := newTestService(t, repo, &stubUserRepo{})

	created := subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionCreated,
		testStripeSub("sub_1", stripe.SubscriptionStatusActive, userID, "price_enterprise", 100, 200))
	require.NoError(t, service.HandleEvent(context.Background(), created))

	deleted := testStripeSub("sub_1", stripe.SubscriptionStatusCanceled, userID, "price_enterprise", 100, 200)
	deleted.CanceledAt = time.Now().Unix()
	require.NoError(t, service.HandleEvent(context.Background(),
		subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionDeleted, deleted)))

	stored := repo.bySubID("sub_1")
	require.NotNil(t, stored)
	assert.Equal(t, enums.SubscriptionStatusCanceled, stored.Status)
	require.NotNil(t, stored.CanceledAt)
}

func TestHandleEventDeletedUnknownSubscriptionAcks(t *testing.T) {
	repo := newStubBillingRepo()
	service := newTestService(t, repo, &stubUserRepo{})

	deleted := testStripeSub("sub_ghost", stripe.SubscriptionStatusCanceled, uuid.New(), "price_team", 100, 200)
	require.NoError(t, service.HandleEvent(context.Background(),
		subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionDeleted, deleted)))
	assert.Empty(t, repo.created)
	assert.Empty(t, repo.updated)
}

func TestHandleEventPaymentFailedMarksPastDue(t *testing.T) {
	userID := uuid.New()
	repo := newStubBillingRepo()
	service := newTestService(t, repo, &stubUserRepo{})

	created := subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionCreated,
		testStripeSub("sub_1", stripe.SubscriptionStatusActive, userID, "price_team", 100, 200))
	require.NoError(t, service.HandleEvent(context.Background(), created))

	failed := invoiceEvent(t, stripe.EventTypeInvoicePaymentFailed, map[string]any{
		"id":                 "in_1",
		"subscription":       "sub_1",
		"amount_due":         2900,
		"currency":           "usd",
		"last_payment_error": map[string]any{"message": "card_declined"},
	})
	require.NoError(t, service.HandleEvent(context.Background(), failed))

	stored := repo.bySubID("sub_1")
	require.NotNil(t, stored)
	assert.Equal(t, enums.SubscriptionStatusPastDue, stored.Status)
	require.NotNil(t, stored.PaymentFailedAt)

	require.Len(t, repo.payments, 1)
	payment := repo.payments[0]
	assert.Equal(t, enums.PaymentStatusFailed, payment.Status)
	require.NotNil(t, payment.FailureReason)
	assert.Equal(t, "card_declined", *payment.FailureReason)
	assert.Equal(t, "29", payment.Amount.String())
}

func TestHandleEventPaymentSucceededDoesNotMoveStatus(t *testing.T) {
	userID := uuid.New()
	repo := newStubBillingRepo()
	service := newTestService(t, repo, &stubUserRepo{})

	created := subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionCreated,
		testStripeSub("sub_1", stripe.SubscriptionStatusTrialing, userID, "price_team", 100, 200))
	require.NoError(t, service.HandleEvent(context.Background(), created))

	paid := invoiceEvent(t, stripe.EventTypeInvoicePaid, map[string]any{
		"id":                 "in_1",
		"subscription":       "sub_1",
		"amount_paid":        2900,
		"currency":           "usd",
		"status_transitions": map[string]any{"paid_at": time.Now().Unix()},
	})
	require.NoError(t, service.HandleEvent(context.Background(), paid))

	stored := repo.bySubID("sub_1")
	assert.Equal(t, enums.SubscriptionStatusTrialing, stored.Status)
	require.Len(t, repo.payments, 1)
	assert.Equal(t, enums.PaymentStatusSucceeded, repo.payments[0].Status)
	require.NotNil(t, repo.payments[0].PaidAt)
}

func TestHandleEventInvoiceRedeliveryAppendsOnce(t *testing.T) {
	userID := uuid.New()
	repo := newStubBillingRepo()
	service := newTestService(t, repo, &stubUserRepo{})

	created := subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionCreated,
		testStripeSub("sub_1", stripe.SubscriptionStatusActive, userID, "price_team", 100, 200))
	require.NoError(t, service.HandleEvent(context.Background(), created))

	payload := map[string]any{
		"id":           "in_1",
		"subscription": "sub_1",
		"amount_due":   2900,
		"currency":     "usd",
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, service.HandleEvent(context.Background(),
			invoiceEvent(t, stripe.EventTypeInvoicePaymentFailed, payload)))
	}

	assert.Len(t, repo.payments, 1)
	assert.Equal(t, enums.SubscriptionStatusPastDue, repo.bySubID("sub_1").Status)
}

// Full lifecycle: trial signup, payment failure, recovery.
func TestHandleEventLifecycleScenario(t *testing.T) {
	userID := uuid.New()
	repo := newStubBillingRepo()
	service := newTestService(t, repo, &stubUserRepo{})
	ctx := context.Background()

	created := subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionCreated,
		testStripeSub("sub_team", stripe.SubscriptionStatusTrialing, userID, "price_team", 100, 200))
	require.NoError(t, service.HandleEvent(ctx, created))

	stored := repo.bySubID("sub_team")
	require.NotNil(t, stored)
	assert.Equal(t, enums.PlanTierTeam, stored.Plan)
	assert.Equal(t, enums.SubscriptionStatusTrialing, stored.Status)

	failed := invoiceEvent(t, stripe.EventTypeInvoicePaymentFailed, map[string]any{
		"id":           "in_fail",
		"subscription": "sub_team",
		"amount_due":   4900,
		"currency":     "usd",
	})
	require.NoError(t, service.HandleEvent(ctx, failed))
	assert.Equal(t, enums.SubscriptionStatusPastDue, repo.bySubID("sub_team").Status)
	require.Len(t, repo.payments, 1)

	recovered := subscriptionEvent(t, stripe.EventTypeCustomerSubscriptionUpdated,
		testStripeSub("sub_team", stripe.SubscriptionStatusActive, userID, "price_team", 200, 300))
	require.NoError(t, service.HandleEvent(ctx, recovered))

	stored = repo.bySubID("sub_team")
	assert.Equal(t, enums.SubscriptionStatusActive, stored.Status)
	assert.Nil(t, stored.PaymentFailedAt)
	assert.Len(t, repo.payments, 1, "recovery must not touch the payment ledger")
	assert.Equal(t, enums.PaymentStatusFailed, repo.payments[0].Status)
}

func TestHandleEventIgnoresUnrelatedTypes(t *testing.T) {
	repo := newStubBillingRepo()
	service := newTestService(t, repo, &stubUserRepo{})

	event := &stripe.Event{
		Type: stripe.EventType("customer.created"),
		Data: &stripe.EventData{Raw: []byte(`{}`)},
	}
	require.NoError(t, service.HandleEvent(context.Background(), event))
	assert.Empty(t, repo.created)
}

type usageKey struct {
	userID uuid.UUID
	month  string
}

type stubBillingRepo struct {
	subs      map[string]*models.Subscription
	created   []*models.Subscription
	updated   []*models.Subscription
	payments  []*models.Payment
	usageRows map[usageKey]*models.UsageStat
}

func newStubBillingRepo() *stubBillingRepo {
	return &stubBillingRepo{
		subs:      map[string]*models.Subscription{},
		usageRows: map[usageKey]*models.UsageStat{},
	}
}

func (s *stubBillingRepo) bySubID(stripeID string) *models.Subscription {
	return s.subs[stripeID]
}

func (s *stubBillingRepo) WithTx(tx *gorm.DB) billing.Repository { return s }

func (s *stubBillingRepo) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	s.created = append(s.created, sub)
	s.subs[sub.StripeSubscriptionID] = sub
	return nil
}

func (s *stubBillingRepo) UpdateSubscription(ctx context.Context, sub *models.Subscription) error {
	s.updated = append(s.updated, sub)
	s.subs[sub.StripeSubscriptionID] = sub
	return nil
}

func (s *stubBillingRepo) FindSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error) {
	return s.subs[stripeSubscriptionID], nil
}

func (s *stubBillingRepo) FindSubscriptionByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	for _, sub := range s.subs {
		if sub.UserID == userID {
			return sub, nil
		}
	}
	return nil, nil
}

func (s *stubBillingRepo) CreatePayment(ctx context.Context, payment *models.Payment) error {
	s.payments = append(s.payments, payment)
	return nil
}

func (s *stubBillingRepo) FindPaymentByInvoiceID(ctx context.Context, stripeInvoiceID string) (*models.Payment, error) {
	for _, payment := range s.payments {
		if payment.StripeInvoiceID == stripeInvoiceID {
			return payment, nil
		}
	}
	return nil, nil
}

func (s *stubBillingRepo) ListPaymentsBySubscription(ctx context.Context, stripeSubscriptionID string) ([]models.Payment, error) {
	var out []models.Payment
	for _, payment := range s.payments {
		if payment.StripeSubscriptionID == stripeSubscriptionID {
			out = append(out, *payment)
		}
	}
	return out, nil
}

func (s *stubBillingRepo) EnsureUsageRow(ctx context.Context, userID uuid.UUID, month string) error {
	key := usageKey{userID, month}
	if _, ok := s.usageRows[key]; !ok {
		s.usageRows[key] = &models.UsageStat{UserID: userID, Month: month}
	}
	return nil
}

func (s *stubBillingRepo) IncrementUsage(ctx context.Context, userID uuid.UUID, month string, commits, tokens int64) error {
	key := usageKey{userID, month}
	if _, ok := s.usageRows[key]; !ok {
		s.usageRows[key] = &models.UsageStat{UserID: userID, Month: month}
	}
	s.usageRows[key].CommitsGenerated += commits
	s.usageRows[key].TokensUsed += tokens
	return nil
}

func (s *stubBillingRepo) FindUsage(ctx context.Context, userID uuid.UUID, month string) (*models.UsageStat, error) {
	return s.usageRows[usageKey{userID, month}], nil
}

func (s *stubBillingRepo) ListUsage(ctx context.Context, userID uuid.UUID, fromMonth string) ([]models.UsageStat, error) {
	var out []models.UsageStat
	for key, row := range s.usageRows {
		if key.userID == userID && key.month >= fromMonth {
			out = append(out, *row)
		}
	}
	return out, nil
}

type stubUserRepo struct {
	user *models.User
}

func (s *stubUserRepo) FindByStripeCustomerID(ctx context.Context, customerID string) (*models.User, error) {
	if s.user == nil || s.user.StripeCustomerID != customerID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

type stubTxRunner struct{}

func (s *stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}
