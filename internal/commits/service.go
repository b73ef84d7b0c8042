package commits

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/commitforge/commitforge-backend/internal/billing"
	"github.com/commitforge/commitforge-backend/pkg/db/models"
	"github.com/commitforge/commitforge-backend/pkg/enums"
	pkgerrors "github.com/commitforge/commitforge-backend/pkg/errors"
	"github.com/commitforge/commitforge-backend/pkg/logger"
	"github.com/commitforge/commitforge-backend/pkg/metrics"
	"github.com/commitforge/commitforge-backend/pkg/openai"
	"github.com/commitforge/commitforge-backend/pkg/pagination"
)

const generationTemperature = 0.7

// generator is the completion surface the service needs; satisfied by
// *openai.Client.
type generator interface {
	Complete(ctx context.Context, req openai.CompletionRequest) (*openai.Completion, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	Repo              Repository
	BillingRepo       billing.Repository
	Generator         generator
	TransactionRunner txRunner
	Logger            *logger.Logger
	Metrics           *metrics.BillingMetrics
}

// Service orchestrates commit-message generation: validate the request, call
// the model, then persist the history row and usage counters together.
type Service struct {
	repo        Repository
	billingRepo billing.Repository
	generator   generator
	txRunner    txRunner
	logg        *logger.Logger
	metrics     *metrics.BillingMetrics
	now         func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "commit repo required")
	}
	if params.BillingRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "billing repo required")
	}
	if params.Generator == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "generator required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &Service{
		repo:        params.Repo,
		billingRepo: params.BillingRepo,
		generator:   params.Generator,
		txRunner:    params.TransactionRunner,
		logg:        params.Logger,
		metrics:     params.Metrics,
		now:         time.Now,
	}, nil
}

type GenerateInput struct {
	UserID             uuid.UUID
	Diff               string
	Style              string
	CustomInstructions string
}

type GenerateResult struct {
	Message    string            `json:"message"`
	Style      enums.CommitStyle `json:"style"`
	TokensUsed int64             `json:"tokensUsed"`
}

// Generate produces a commit message for the submitted diff. Validation
// failures leave no trace; a successful generation writes the history row and
// the monthly usage increment in one transaction.
func (s *Service) Generate(ctx context.Context, input GenerateInput) (*GenerateResult, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if strings.TrimSpace(input.Diff) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "diff is required")
	}

	style := enums.CommitStyleConventional
	if input.Style != "" {
		parsed, err := enums.ParseCommitStyle(input.Style)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid commit style")
		}
		style = parsed
	}

	started := s.now()
	completion, err := s.generator.Complete(ctx, openai.CompletionRequest{
		Messages:    buildMessages(style, input.Diff, input.CustomInstructions),
		Temperature: generationTemperature,
	})
	if err != nil {
		s.metrics.IncGenerationFailure(style.String())
		if s.logg != nil {
			s.logg.Error(ctx, "commit generation failed", err)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "generation failed")
	}
	s.metrics.ObserveGeneration(style.String(), s.now().Sub(started))

	message := strings.TrimSpace(completion.Content)
	tokens := completion.TotalTokens()

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		entry := &models.CommitHistory{
			UserID:      input.UserID,
			Message:     message,
			Style:       style,
			DiffPreview: truncateDiff(input.Diff),
			TokensUsed:  tokens,
		}
		if err := s.repo.WithTx(tx).Create(ctx, entry); err != nil {
			return err
		}
		month := s.now().UTC().Format("2006-01")
		return s.billingRepo.WithTx(tx).IncrementUsage(ctx, input.UserID, month, 1, tokens)
	})
	if err != nil {
		return nil, err
	}

	return &GenerateResult{
		Message:    message,
		Style:      style,
		TokensUsed: tokens,
	}, nil
}

type HistoryPage struct {
	Entries    []models.CommitHistory `json:"entries"`
	Total      int64                  `json:"total"`
	NextCursor string                 `json:"nextCursor,omitempty"`
}

// History lists a user's generated messages, newest first, with the total
// count across all pages.
func (s *Service) History(ctx context.Context, userID uuid.UUID, params pagination.Params) (*HistoryPage, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	entries, next, err := s.repo.List(ctx, userID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list commit history")
	}
	if entries == nil {
		entries = []models.CommitHistory{}
	}
	total, err := s.repo.CountForUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count commit history")
	}
	return &HistoryPage{Entries: entries, Total: total, NextCursor: next}, nil
}

// Styles returns the supported commit styles in display order.
func (s *Service) Styles() []enums.CommitStyle {
	return enums.AllCommitStyles()
}
