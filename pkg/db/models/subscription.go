package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/commitforge/commitforge-backend/pkg/enums"
)

// Subscription persists Stripe subscription state per user. The row is keyed by
// the Stripe subscription ID so webhook deliveries can upsert regardless of
// arrival order.
type Subscription struct {
	ID                   uuid.UUID                `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID               uuid.UUID                `gorm:"column:user_id;type:uuid;not null;index"`
	StripeSubscriptionID string                   `gorm:"column:stripe_subscription_id;not null;unique"`
	StripeCustomerID     string                   `gorm:"column:stripe_customer_id;not null;index"`
	Plan                 enums.PlanTier           `gorm:"column:plan;type:plan_tier;not null;default:'individual'"`
	Status               enums.SubscriptionStatus `gorm:"column:status;type:subscription_status;not null"`
	CurrentPeriodStart   *time.Time               `gorm:"column:current_period_start"`
	CurrentPeriodEnd     *time.Time               `gorm:"column:current_period_end"`
	CancelAtPeriodEnd    bool                     `gorm:"column:cancel_at_period_end;not null;default:false"`
	TrialEnd             *time.Time               `gorm:"column:trial_end"`
	CanceledAt           *time.Time               `gorm:"column:canceled_at"`
	PaymentFailedAt      *time.Time               `gorm:"column:payment_failed_at"`
	CreatedAt            time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
