package commits

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/commitforge/commitforge-backend/internal/billing"
	"github.com/commitforge/commitforge-backend/pkg/db/models"
	"github.com/commitforge/commitforge-backend/pkg/enums"
	pkgerrors "github.com/commitforge/commitforge-backend/pkg/errors"
	"github.com/commitforge/commitforge-backend/pkg/openai"
	"github.com/commitforge/commitforge-backend/pkg/pagination"
)

func newCommitService(t *testing.T, gen generator) (*Service, *stubCommitRepo, *stubUsageRepo) {
	t.Helper()
	repo := &stubCommitRepo{}
	usage := &stubUsageRepo{}
	service, err := NewService(ServiceParams{
		Repo:              repo,
		BillingRepo:       usage,
		Generator:         gen,
		TransactionRunner: &stubTxRunner{},
	})
	require.NoError(t, err)
	return service, repo, usage
}

func TestGeneratePersistsHistoryAndUsage(t *testing.T) {
	gen := &stubGenerator{completion: &openai.Completion{
		Content:          "feat(api): add checkout endpoint\n",
		PromptTokens:     150,
		CompletionTokens: 30,
	}}
	service, repo, usage := newCommitService(t, gen)

	userID := uuid.New()
	result, err := service.Generate(context.Background(), GenerateInput{
		UserID: userID,
		Diff:   "diff --git a/api.go b/api.go\n+func Checkout() {}",
		Style:  "conventional",
	})
	require.NoError(t, err)

	assert.Equal(t, "feat(api): add checkout endpoint", result.Message)
	assert.Equal(t, enums.CommitStyleConventional, result.Style)
	assert.Equal(t, int64(180), result.TokensUsed)

	require.Len(t, repo.created, 1)
	entry := repo.created[0]
	assert.Equal(t, userID, entry.UserID)
	assert.Equal(t, int64(180), entry.TokensUsed)

	assert.Equal(t, int64(1), usage.commits)
	assert.Equal(t, int64(180), usage.tokens)
}

func TestGenerateDefaultsToConventionalStyle(t *testing.T) {
	gen := &stubGenerator{completion: &openai.Completion{Content: "fix: handle nil pointer"}}
	service, _, _ := newCommitService(t, gen)

	result, err := service.Generate(context.Background(), GenerateInput{
		UserID: uuid.New(),
		Diff:   "diff",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.CommitStyleConventional, result.Style)
	require.Len(t, gen.requests, 1)
	assert.Contains(t, gen.requests[0].Messages[0].Content, "Conventional Commits")
}

func TestGenerateRejectsEmptyDiffWithoutSideEffects(t *testing.T) {
	gen := &stubGenerator{completion: &openai.Completion{Content: "unused"}}
	service, repo, usage := newCommitService(t, gen)

	_, err := service.Generate(context.Background(), GenerateInput{
		UserID: uuid.New(),
		Diff:   "   \n",
	})
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeValidation, appErr.Code())

	assert.Empty(t, gen.requests, "provider must not be called")
	assert.Empty(t, repo.created)
	assert.Zero(t, usage.commits)
}

func TestGenerateRejectsUnknownStyle(t *testing.T) {
	gen := &stubGenerator{completion: &openai.Completion{Content: "unused"}}
	service, _, _ := newCommitService(t, gen)

	_, err := service.Generate(context.Background(), GenerateInput{
		UserID: uuid.New(),
		Diff:   "diff",
		Style:  "haiku",
	})
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeValidation, appErr.Code())
}

func TestGenerateProviderFailureLeavesNoTrace(t *testing.T) {
	gen := &stubGenerator{err: errors.New("upstream timeout")}
	service, repo, usage := newCommitService(t, gen)

	_, err := service.Generate(context.Background(), GenerateInput{
		UserID: uuid.New(),
		Diff:   "diff",
	})
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeDependency, appErr.Code())

	assert.Empty(t, repo.created)
	assert.Zero(t, usage.commits)
}

func TestGenerateTruncatesDiffPreview(t *testing.T) {
	gen := &stubGenerator{completion: &openai.Completion{Content: "chore: bulk update"}}
	service, repo, _ := newCommitService(t, gen)

	_, err := service.Generate(context.Background(), GenerateInput{
		UserID: uuid.New(),
		Diff:   strings.Repeat("x", 2000),
	})
	require.NoError(t, err)
	require.Len(t, repo.created, 1)
	assert.Len(t, repo.created[0].DiffPreview, 500)

	// the full diff still goes to the provider
	require.Len(t, gen.requests, 1)
	assert.Contains(t, gen.requests[0].Messages[1].Content, strings.Repeat("x", 2000))
}

func TestGenerateIncludesCustomInstructions(t *testing.T) {
	gen := &stubGenerator{completion: &openai.Completion{Content: "fix: fr translation"}}
	service, _, _ := newCommitService(t, gen)

	_, err := service.Generate(context.Background(), GenerateInput{
		UserID:             uuid.New(),
		Diff:               "diff",
		CustomInstructions: "mention the ticket ABC-42",
	})
	require.NoError(t, err)
	require.Len(t, gen.requests, 1)
	assert.Contains(t, gen.requests[0].Messages[1].Content, "mention the ticket ABC-42")
}

func TestHistoryReportsTotalAcrossPages(t *testing.T) {
	service, repo, _ := newCommitService(t, &stubGenerator{})
	userID := uuid.New()

	for i := 0; i < 3; i++ {
		repo.created = append(repo.created, &models.CommitHistory{
			ID:      uuid.New(),
			UserID:  userID,
			Message: "chore: tidy",
		})
	}
	repo.created = append(repo.created, &models.CommitHistory{
		ID:     uuid.New(),
		UserID: uuid.New(),
	})

	page, err := service.History(context.Background(), userID, pagination.Params{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Entries, 3)
	assert.Equal(t, int64(3), page.Total)
}

func TestStylesListsAllStyles(t *testing.T) {
	service, _, _ := newCommitService(t, &stubGenerator{})
	assert.Equal(t, enums.AllCommitStyles(), service.Styles())
}

type stubGenerator struct {
	completion *openai.Completion
	err        error
	requests   []openai.CompletionRequest
}

func (s *stubGenerator) Complete(ctx context.Context, req openai.CompletionRequest) (*openai.Completion, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	return s.completion, nil
}

type stubCommitRepo struct {
	created []*models.CommitHistory
}

func (s *stubCommitRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubCommitRepo) Create(ctx context.Context, entry *models.CommitHistory) error {
	s.created = append(s.created, entry)
	return nil
}

func (s *stubCommitRepo) List(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.CommitHistory, string, error) {
	var out []models.CommitHistory
	for _, entry := range s.created {
		if entry.UserID == userID {
			out = append(out, *entry)
		}
	}
	return out, "", nil
}

func (s *stubCommitRepo) CountForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	entries, _, _ := s.List(ctx, userID, pagination.Params{})
	return int64(len(entries)), nil
}

// stubUsageRepo implements billing.Repository; only the usage methods matter here.
type stubUsageRepo struct {
	commits int64
	tokens  int64
}

func (s *stubUsageRepo) WithTx(tx *gorm.DB) billing.Repository { return s }

func (s *stubUsageRepo) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	return nil
}

func (s *stubUsageRepo) UpdateSubscription(ctx context.Context, sub *models.Subscription) error {
	return nil
}

func (s *stubUsageRepo) FindSubscriptionByStripeID(ctx context.Context, id string) (*models.Subscription, error) {
	return nil, nil
}

func (s *stubUsageRepo) FindSubscriptionByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	return nil, nil
}

func (s *stubUsageRepo) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return nil
}

func (s *stubUsageRepo) FindPaymentByInvoiceID(ctx context.Context, id string) (*models.Payment, error) {
	return nil, nil
}

func (s *stubUsageRepo) ListPaymentsBySubscription(ctx context.Context, id string) ([]models.Payment, error) {
	return nil, nil
}

func (s *stubUsageRepo) EnsureUsageRow(ctx context.Context, userID uuid.UUID, month string) error {
	return nil
}

func (s *stubUsageRepo) IncrementUsage(ctx context.Context, userID uuid.UUID, month string, commits, tokens int64) error {
	s.commits += commits
	s.tokens += tokens
	return nil
}

func (s *stubUsageRepo) FindUsage(ctx context.Context, userID uuid.UUID, month string) (*models.UsageStat, error) {
	return nil, nil
}

func (s *stubUsageRepo) ListUsage(ctx context.Context, userID uuid.UUID, fromMonth string) ([]models.UsageStat, error) {
	return nil, nil
}

type stubTxRunner struct{}

func (s *stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}
