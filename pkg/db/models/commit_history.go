package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/commitforge/commitforge-backend/pkg/enums"
)

// CommitHistory records one generated commit message. DiffPreview holds at
// most the first 500 characters of the submitted diff.
type CommitHistory struct {
	ID          uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID      uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	Message     string            `gorm:"column:message;not null"`
	Style       enums.CommitStyle `gorm:"column:style;type:commit_style;not null"`
	DiffPreview string            `gorm:"column:diff_preview;not null"`
	TokensUsed  int64             `gorm:"column:tokens_used;not null;default:0"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime;index"`
}

func (CommitHistory) TableName() string {
	return "commit_history"
}
