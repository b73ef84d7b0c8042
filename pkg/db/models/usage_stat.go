package models

import (
	"time"

	"github.com/google/uuid"
)

// UsageStat counts a single user's generation activity for one calendar
// month. Month is formatted "2006-01"; the (user_id, month) pair is unique
// so increments can upsert.
type UsageStat struct {
	ID               uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID           uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_usage_stats_user_month"`
	Month            string    `gorm:"column:month;not null;uniqueIndex:idx_usage_stats_user_month"`
	CommitsGenerated int64     `gorm:"column:commits_generated;not null;default:0"`
	TokensUsed       int64     `gorm:"column:tokens_used;not null;default:0"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
