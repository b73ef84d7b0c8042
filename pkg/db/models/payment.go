package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/commitforge/commitforge-backend/pkg/enums"
)

// Payment is the append-only ledger of billing attempts. Rows are never
// updated after insert; the stripe_invoice_id unique index absorbs webhook
// redelivery.
type Payment struct {
	ID                   uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	StripeInvoiceID      string              `gorm:"column:stripe_invoice_id;not null;unique"`
	StripeSubscriptionID string              `gorm:"column:stripe_subscription_id;not null;index"`
	Amount               decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency             string              `gorm:"column:currency;not null;default:'usd'"`
	Status               enums.PaymentStatus `gorm:"column:status;type:payment_status;not null"`
	FailureReason        *string             `gorm:"column:failure_reason"`
	PaidAt               *time.Time          `gorm:"column:paid_at"`
	CreatedAt            time.Time           `gorm:"column:created_at;autoCreateTime"`
}
