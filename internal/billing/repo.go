package billing

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/commitforge/commitforge-backend/pkg/db/models"
)

// Repository handles billing persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateSubscription(ctx context.Context, subscription *models.Subscription) error
	UpdateSubscription(ctx context.Context, subscription *models.Subscription) error
	FindSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error)
	FindSubscriptionByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	CreatePayment(ctx context.Context, payment *models.Payment) error
	FindPaymentByInvoiceID(ctx context.Context, stripeInvoiceID string) (*models.Payment, error)
	ListPaymentsBySubscription(ctx context.Context, stripeSubscriptionID string) ([]models.Payment, error)
	EnsureUsageRow(ctx context.Context, userID uuid.UUID, month string) error
	IncrementUsage(ctx context.Context, userID uuid.UUID, month string, commits, tokens int64) error
	FindUsage(ctx context.Context, userID uuid.UUID, month string) (*models.UsageStat, error)
	ListUsage(ctx context.Context, userID uuid.UUID, fromMonth string) ([]models.UsageStat, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a billing repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateSubscription(ctx context.Context, subscription *models.Subscription) error {
	if subscription.ID == uuid.Nil {
		subscription.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(subscription).Error
}

func (r *repository) UpdateSubscription(ctx context.Context, subscription *models.Subscription) error {
	return r.db.WithContext(ctx).Save(subscription).Error
}

func (r *repository) FindSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error) {
	if stripeSubscriptionID == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var sub models.Subscription
	if err := r.db.WithContext(ctx).
		Where("stripe_subscription_id = ?", stripeSubscriptionID).
		First(&sub).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (r *repository) FindSubscriptionByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		First(&sub).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (r *repository) CreatePayment(ctx context.Context, payment *models.Payment) error {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) FindPaymentByInvoiceID(ctx context.Context, stripeInvoiceID string) (*models.Payment, error) {
	if stripeInvoiceID == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var payment models.Payment
	if err := r.db.WithContext(ctx).
		Where("stripe_invoice_id = ?", stripeInvoiceID).
		First(&payment).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

func (r *repository) ListPaymentsBySubscription(ctx context.Context, stripeSubscriptionID string) ([]models.Payment, error) {
	var payments []models.Payment
	if err := r.db.WithContext(ctx).
		Where("stripe_subscription_id = ?", stripeSubscriptionID).
		Order("created_at DESC").
		Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repository) EnsureUsageRow(ctx context.Context, userID uuid.UUID, month string) error {
	row := models.UsageStat{ID: uuid.New(), UserID: userID, Month: month}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "month"}},
			DoNothing: true,
		}).
		Create(&row).Error
}

// IncrementUsage upserts the (user, month) counter row and bumps both
// counters atomically in the database.
func (r *repository) IncrementUsage(ctx context.Context, userID uuid.UUID, month string, commits, tokens int64) error {
	row := models.UsageStat{
		ID:               uuid.New(),
		UserID:           userID,
		Month:            month,
		CommitsGenerated: commits,
		TokensUsed:       tokens,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "month"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"commits_generated": gorm.Expr("usage_stats.commits_generated + ?", commits),
				"tokens_used":       gorm.Expr("usage_stats.tokens_used + ?", tokens),
			}),
		}).
		Create(&row).Error
}

func (r *repository) FindUsage(ctx context.Context, userID uuid.UUID, month string) (*models.UsageStat, error) {
	var usage models.UsageStat
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND month = ?", userID, month).
		First(&usage).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &usage, nil
}

// ListUsage returns the per-month counters from fromMonth onward, newest
// first. Months are "YYYY-MM" strings, so lexical order is chronological.
func (r *repository) ListUsage(ctx context.Context, userID uuid.UUID, fromMonth string) ([]models.UsageStat, error) {
	var rows []models.UsageStat
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND month >= ?", userID, fromMonth).
		Order("month DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
