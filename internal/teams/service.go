package teams

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/commitforge/commitforge-backend/internal/billing"
	"github.com/commitforge/commitforge-backend/pkg/db/models"
	"github.com/commitforge/commitforge-backend/pkg/enums"
	pkgerrors "github.com/commitforge/commitforge-backend/pkg/errors"
	"github.com/commitforge/commitforge-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	Repo              Repository
	BillingRepo       billing.Repository
	TransactionRunner txRunner
	Logger            *logger.Logger
}

// Service manages seats on a team-plan account. The seat cap comes from the
// owner's plan tier, counted with the owner included.
type Service struct {
	repo        Repository
	billingRepo billing.Repository
	txRunner    txRunner
	logg        *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "team repo required")
	}
	if params.BillingRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "billing repo required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &Service{
		repo:        params.Repo,
		billingRepo: params.BillingRepo,
		txRunner:    params.TransactionRunner,
		logg:        params.Logger,
	}, nil
}

type InviteInput struct {
	OwnerID uuid.UUID
	Email   string
	Role    string
}

// Invite adds a seat for the given email. The cap check and the insert run in
// one transaction so concurrent invites cannot oversubscribe the team.
func (s *Service) Invite(ctx context.Context, input InviteInput) (*models.TeamMember, error) {
	if input.OwnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a valid email is required")
	}

	role := enums.TeamMemberRoleMember
	if input.Role != "" {
		parsed, err := enums.ParseTeamMemberRole(input.Role)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid role")
		}
		role = parsed
	}

	var member *models.TeamMember
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		sub, err := s.billingRepo.WithTx(tx).FindSubscriptionByUserID(ctx, input.OwnerID)
		if err != nil {
			return err
		}
		if sub == nil {
			return pkgerrors.New(pkgerrors.CodeForbidden, "no subscription on this account")
		}

		limit := sub.Plan.TeamMemberLimit()
		if limit == 1 {
			return pkgerrors.New(pkgerrors.CodeForbidden, "plan does not include team seats")
		}

		existing, err := repo.FindByOwnerAndEmail(ctx, input.OwnerID, email)
		if err != nil {
			return err
		}
		if existing != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "member already invited")
		}

		if limit > 0 {
			count, err := repo.CountByOwner(ctx, input.OwnerID)
			if err != nil {
				return err
			}
			// the owner occupies one seat
			if count+1 >= int64(limit) {
				return pkgerrors.New(pkgerrors.CodeForbidden, "team seat limit reached")
			}
		}

		member = &models.TeamMember{
			OwnerID: input.OwnerID,
			Email:   email,
			Role:    role,
			Status:  "invited",
		}
		return repo.Create(ctx, member)
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

// List returns the owner's team, invitation order.
func (s *Service) List(ctx context.Context, ownerID uuid.UUID) ([]models.TeamMember, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	members, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list team members")
	}
	if members == nil {
		members = []models.TeamMember{}
	}
	return members, nil
}

// Remove deletes a seat. Removing an unknown member is a not-found error so
// callers can distinguish it from success.
func (s *Service) Remove(ctx context.Context, ownerID, memberID uuid.UUID) error {
	if ownerID == uuid.Nil || memberID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "owner and member ids are required")
	}
	removed, err := s.repo.Delete(ctx, ownerID, memberID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove team member")
	}
	if !removed {
		return pkgerrors.New(pkgerrors.CodeNotFound, "team member not found")
	}
	return nil
}
