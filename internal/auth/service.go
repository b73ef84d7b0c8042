package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/commitforge/commitforge-backend/internal/users"
	pkgauth "github.com/commitforge/commitforge-backend/pkg/auth"
	"github.com/commitforge/commitforge-backend/pkg/config"
	"github.com/commitforge/commitforge-backend/pkg/db/models"
	pkgerrors "github.com/commitforge/commitforge-backend/pkg/errors"
	"github.com/commitforge/commitforge-backend/pkg/logger"
	"github.com/commitforge/commitforge-backend/pkg/security"
)

// userRepository is the persistence surface registration and login need.
type userRepository interface {
	Create(ctx context.Context, dto users.CreateUserDTO) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// customerCreator mints billing customers; satisfied by the Stripe wrapper.
type customerCreator interface {
	CreateCustomer(ctx context.Context, params *stripe.CustomerParams) (*stripe.Customer, error)
}

type ServiceParams struct {
	UserRepo userRepository
	Billing  customerCreator
	JWT      config.JWTConfig
	Password config.PasswordConfig
	Logger   *logger.Logger
}

// Service handles account registration and credential login. Every account
// gets a billing customer at signup so webhook events can always be resolved
// back to a user.
type Service struct {
	userRepo userRepository
	billing  customerCreator
	jwtCfg   config.JWTConfig
	pwCfg    config.PasswordConfig
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.UserRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "user repo required")
	}
	if params.Billing == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "billing client required")
	}
	if params.JWT.Secret == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "jwt secret required")
	}
	return &Service{
		userRepo: params.UserRepo,
		billing:  params.Billing,
		jwtCfg:   params.JWT,
		pwCfg:    params.Password,
		logg:     params.Logger,
		now:      time.Now,
	}, nil
}

type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Company  *string
	Timezone *string
}

type AuthResult struct {
	Token string         `json:"token"`
	User  *users.UserDTO `json:"user"`
}

// Register creates the account, its billing customer, and an access token. If
// the billing customer cannot be created the account row is rolled back so the
// signup can simply be retried.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	email := normalizeEmail(input.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if len(input.Password) < 8 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "look up email")
	}
	if existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
	}

	hash, err := security.HashPassword(input.Password, s.pwCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user, err := s.userRepo.Create(ctx, users.CreateUserDTO{
		Email:        email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(input.Name),
		Company:      input.Company,
		Timezone:     input.Timezone,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
	}

	customer, err := s.billing.CreateCustomer(ctx, &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(user.Name),
		Metadata: map[string]string{
			"user_id": user.ID.String(),
		},
	})
	if err != nil {
		if delErr := s.userRepo.Delete(ctx, user.ID); delErr != nil && s.logg != nil {
			s.logg.Error(ctx, "rollback user after billing failure", delErr)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create billing customer")
	}

	if err := s.userRepo.SetStripeCustomerID(ctx, user.ID, customer.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store billing customer id")
	}
	user.StripeCustomerID = customer.ID

	token, err := pkgauth.MintAccessToken(s.jwtCfg, s.now(), pkgauth.AccessTokenPayload{
		UserID: user.ID,
		Email:  user.Email,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}

	return &AuthResult{Token: token, User: users.FromModel(user)}, nil
}

type LoginInput struct {
	Email    string
	Password string
}

// Login verifies credentials and returns a fresh access token. Unknown email
// and wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	email := normalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email and password are required")
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "look up email")
	}

	ok, err := security.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}

	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, s.now().UTC()); err != nil && s.logg != nil {
		// non-fatal; the login itself succeeded
		s.logg.Warn(ctx, "update last login failed")
	}

	token, err := pkgauth.MintAccessToken(s.jwtCfg, s.now(), pkgauth.AccessTokenPayload{
		UserID: user.ID,
		Email:  user.Email,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}

	return &AuthResult{Token: token, User: users.FromModel(user)}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
