package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/commitforge/commitforge-backend/pkg/enums"
)

// TeamMember is a seat on a team-plan owner's account. The owner counts
// toward the plan's seat limit; invited members start as "invited" and flip
// to "active" when they accept.
type TeamMember struct {
	ID        uuid.UUID            `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID   uuid.UUID            `gorm:"column:owner_id;type:uuid;not null;uniqueIndex:idx_team_members_owner_email"`
	Email     string               `gorm:"column:email;not null;uniqueIndex:idx_team_members_owner_email"`
	Role      enums.TeamMemberRole `gorm:"column:role;type:team_member_role;not null;default:'member'"`
	Status    string               `gorm:"column:status;not null;default:'invited'"`
	CreatedAt time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
