package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents the canonical identity entity.
type User struct {
	ID               uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email            string     `gorm:"type:text;not null;uniqueIndex"`
	PasswordHash     string     `gorm:"column:password_hash;not null"`
	Name             string     `gorm:"column:name;not null"`
	Company          *string    `gorm:"column:company"`
	Timezone         *string    `gorm:"column:timezone"`
	StripeCustomerID string     `gorm:"column:stripe_customer_id;not null;uniqueIndex"`
	LastLoginAt      *time.Time `gorm:"column:last_login_at"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
