package teams

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/commitforge/commitforge-backend/pkg/db/models"
)

// Repository handles team-member persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, member *models.TeamMember) error
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.TeamMember, error)
	CountByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error)
	FindByOwnerAndEmail(ctx context.Context, ownerID uuid.UUID, email string) (*models.TeamMember, error)
	Delete(ctx context.Context, ownerID, memberID uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a team repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, member *models.TeamMember) error {
	if member.ID == uuid.Nil {
		member.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(member).Error
}

func (r *repository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.TeamMember, error) {
	var members []models.TeamMember
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at ASC").
		Find(&members).Error
	return members, err
}

func (r *repository) CountByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.TeamMember{}).
		Where("owner_id = ?", ownerID).
		Count(&count).Error
	return count, err
}

func (r *repository) FindByOwnerAndEmail(ctx context.Context, ownerID uuid.UUID, email string) (*models.TeamMember, error) {
	var member models.TeamMember
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND email = ?", ownerID, email).
		First(&member).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

func (r *repository) Delete(ctx context.Context, ownerID, memberID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("owner_id = ? AND id = ?", ownerID, memberID).
		Delete(&models.TeamMember{})
	return result.RowsAffected > 0, result.Error
}
