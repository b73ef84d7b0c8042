package subscriptions

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	"github.com/commitforge/commitforge-backend/internal/billing"
	"github.com/commitforge/commitforge-backend/pkg/config"
	"github.com/commitforge/commitforge-backend/pkg/db/models"
	"github.com/commitforge/commitforge-backend/pkg/enums"
	pkgerrors "github.com/commitforge/commitforge-backend/pkg/errors"
	"gorm.io/gorm"
)

func newSubscriptionService(t *testing.T, repo *stubSubRepo, client *stubStripeBilling) *Service {
	t.Helper()
	plans, err := NewPlanCatalog(testStripeConfig(), nil)
	require.NoError(t, err)
	service, err := NewService(ServiceParams{
		BillingRepo: repo,
		Stripe:      client,
		Plans:       plans,
		Stripecfg:   testStripeConfig(),
		Frontend:    config.FrontendConfig{URL: "https://app.example.com"},
	})
	require.NoError(t, err)
	return service
}

func billingUser() *models.User {
	return &models.User{ID: uuid.New(), Email: "dev@example.com", StripeCustomerID: "cus_1"}
}

func TestStartCheckoutReturnsSessionURL(t *testing.T) {
	repo := &stubSubRepo{}
	client := &stubStripeBilling{checkoutURL: "https://checkout.stripe.com/c/pay/cs_1"}
	service := newSubscriptionService(t, repo, client)
	user := billingUser()

	url, err := service.StartCheckout(context.Background(), user, "team")
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_1", url)

	require.NotNil(t, client.checkoutParams)
	params := client.checkoutParams
	assert.Equal(t, "cus_1", *params.Customer)
	require.Len(t, params.LineItems, 1)
	assert.Equal(t, "price_team", *params.LineItems[0].Price)
	assert.Equal(t, user.ID.String(), params.SubscriptionData.Metadata["user_id"])
	assert.Contains(t, *params.SuccessURL, "https://app.example.com")
}

func TestStartCheckoutRejectsInvalidPlan(t *testing.T) {
	service := newSubscriptionService(t, &stubSubRepo{}, &stubStripeBilling{})

	_, err := service.StartCheckout(context.Background(), billingUser(), "platinum")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestStartCheckoutRejectsLiveSubscription(t *testing.T) {
	user := billingUser()
	repo := &stubSubRepo{sub: &models.Subscription{
		UserID: user.ID,
		Status: enums.SubscriptionStatusActive,
	}}
	service := newSubscriptionService(t, repo, &stubStripeBilling{})

	_, err := service.StartCheckout(context.Background(), user, "team")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestStartCheckoutAllowsReplacingCanceledSubscription(t *testing.T) {
	user := billingUser()
	repo := &stubSubRepo{sub: &models.Subscription{
		UserID: user.ID,
		Status: enums.SubscriptionStatusCanceled,
	}}
	client := &stubStripeBilling{checkoutURL: "https://checkout.stripe.com/c/pay/cs_2"}
	service := newSubscriptionService(t, repo, client)

	_, err := service.StartCheckout(context.Background(), user, "individual")
	require.NoError(t, err)
}

func TestChangePlanSwapsPrice(t *testing.T) {
	user := billingUser()
	repo := &stubSubRepo{sub: &models.Subscription{
		UserID:               user.ID,
		StripeSubscriptionID: "sub_1",
		Plan:                 enums.PlanTierIndividual,
		Status:               enums.SubscriptionStatusActive,
	}}
	client := &stubStripeBilling{remote: &stripe.Subscription{
		ID: "sub_1",
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{{ID: "si_1"}},
		},
	}}
	service := newSubscriptionService(t, repo, client)

	require.NoError(t, service.ChangePlan(context.Background(), user.ID, "team"))

	require.NotNil(t, client.updateParams)
	require.Len(t, client.updateParams.Items, 1)
	assert.Equal(t, "si_1", *client.updateParams.Items[0].ID)
	assert.Equal(t, "price_team", *client.updateParams.Items[0].Price)
}

func TestChangePlanRejectsSamePlan(t *testing.T) {
	user := billingUser()
	repo := &stubSubRepo{sub: &models.Subscription{
		UserID: user.ID,
		Plan:   enums.PlanTierTeam,
		Status: enums.SubscriptionStatusActive,
	}}
	service := newSubscriptionService(t, repo, &stubStripeBilling{})

	err := service.ChangePlan(context.Background(), user.ID, "team")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestCancelSchedulesAtPeriodEnd(t *testing.T) {
	user := billingUser()
	repo := &stubSubRepo{sub: &models.Subscription{
		UserID:               user.ID,
		StripeSubscriptionID: "sub_1",
		Status:               enums.SubscriptionStatusActive,
	}}
	client := &stubStripeBilling{}
	service := newSubscriptionService(t, repo, client)

	require.NoError(t, service.Cancel(context.Background(), user.ID))
	require.NotNil(t, client.updateParams)
	require.NotNil(t, client.updateParams.CancelAtPeriodEnd)
	assert.True(t, *client.updateParams.CancelAtPeriodEnd)
}

func TestCancelWithoutSubscriptionIsRejected(t *testing.T) {
	service := newSubscriptionService(t, &stubSubRepo{}, &stubStripeBilling{})

	err := service.Cancel(context.Background(), uuid.New())
	require.Error(t, err)
	typed := pkgerrors.As(err)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	assert.Equal(t, 400, pkgerrors.MetadataFor(typed.Code()).HTTPStatus)
}

func TestChangePlanAndCancelRequireActiveStatus(t *testing.T) {
	client := &stubStripeBilling{}
	for _, status := range []enums.SubscriptionStatus{
		enums.SubscriptionStatusTrialing,
		enums.SubscriptionStatusPastDue,
		enums.SubscriptionStatusCanceled,
	} {
		user := billingUser()
		repo := &stubSubRepo{sub: &models.Subscription{
			UserID:               user.ID,
			StripeSubscriptionID: "sub_1",
			Plan:                 enums.PlanTierIndividual,
			Status:               status,
		}}
		service := newSubscriptionService(t, repo, client)

		err := service.ChangePlan(context.Background(), user.ID, "team")
		require.Error(t, err, "change plan with status %s", status)
		assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

		err = service.Cancel(context.Background(), user.ID)
		require.Error(t, err, "cancel with status %s", status)
		assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
		assert.Nil(t, client.updateParams, "provider must not be called for status %s", status)
	}
}

func TestStatusSnapshot(t *testing.T) {
	user := billingUser()
	repo := &stubSubRepo{sub: &models.Subscription{
		UserID:            user.ID,
		Plan:              enums.PlanTierTeam,
		Status:            enums.SubscriptionStatusActive,
		CancelAtPeriodEnd: true,
	}}
	service := newSubscriptionService(t, repo, &stubStripeBilling{})

	snapshot, err := service.Status(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, snapshot.HasSubscription)
	assert.Equal(t, enums.SubscriptionStatusActive, *snapshot.Status)
	assert.Equal(t, enums.PlanTierTeam, *snapshot.Plan)
	assert.True(t, snapshot.CancelAtPeriodEnd)

	empty, err := service.Status(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, empty.HasSubscription)
	assert.Nil(t, empty.Status)
}

func TestPortalURL(t *testing.T) {
	client := &stubStripeBilling{portalURL: "https://billing.stripe.com/p/session_1"}
	service := newSubscriptionService(t, &stubSubRepo{}, client)

	url, err := service.PortalURL(context.Background(), billingUser())
	require.NoError(t, err)
	assert.Equal(t, "https://billing.stripe.com/p/session_1", url)

	_, err = service.PortalURL(context.Background(), &models.User{ID: uuid.New()})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
}

type stubSubRepo struct {
	sub *models.Subscription
}

func (s *stubSubRepo) WithTx(tx *gorm.DB) billing.Repository { return s }

func (s *stubSubRepo) FindSubscriptionByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	if s.sub != nil && s.sub.UserID == userID {
		return s.sub, nil
	}
	return nil, nil
}

func (s *stubSubRepo) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	return nil
}

func (s *stubSubRepo) UpdateSubscription(ctx context.Context, sub *models.Subscription) error {
	return nil
}

func (s *stubSubRepo) FindSubscriptionByStripeID(ctx context.Context, id string) (*models.Subscription, error) {
	return nil, nil
}

func (s *stubSubRepo) CreatePayment(ctx context.Context, payment *models.Payment) error { return nil }

func (s *stubSubRepo) FindPaymentByInvoiceID(ctx context.Context, id string) (*models.Payment, error) {
	return nil, nil
}

func (s *stubSubRepo) ListPaymentsBySubscription(ctx context.Context, id string) ([]models.Payment, error) {
	return nil, nil
}

func (s *stubSubRepo) EnsureUsageRow(ctx context.Context, userID uuid.UUID, month string) error {
	return nil
}

func (s *stubSubRepo) IncrementUsage(ctx context.Context, userID uuid.UUID, month string, commits, tokens int64) error {
	return nil
}

func (s *stubSubRepo) FindUsage(ctx context.Context, userID uuid.UUID, month string) (*models.UsageStat, error) {
	return nil, nil
}

func (s *stubSubRepo) ListUsage(ctx context.Context, userID uuid.UUID, fromMonth string) ([]models.UsageStat, error) {
	return nil, nil
}

type stubStripeBilling struct {
	checkoutURL    string
	portalURL      string
	remote         *stripe.Subscription
	checkoutParams *stripe.CheckoutSessionParams
	updateParams   *stripe.SubscriptionParams
}

func (s *stubStripeBilling) CreateCustomer(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error) {
	return &stripe.Customer{ID: "cus_1"}, nil
}

func (s *stubStripeBilling) CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	s.checkoutParams = params
	return &stripe.CheckoutSession{URL: s.checkoutURL}, nil
}

func (s *stubStripeBilling) CreatePortalSession(ctx context.Context, params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error) {
	return &stripe.BillingPortalSession{URL: s.portalURL}, nil
}

func (s *stubStripeBilling) GetSubscription(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	return s.remote, nil
}

func (s *stubStripeBilling) UpdateSubscription(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	s.updateParams = params
	return &stripe.Subscription{ID: id}, nil
}
