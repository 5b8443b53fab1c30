package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-triage/internal/auth"
	"github.com/spec-kit/helpdesk-triage/internal/domain"
	"github.com/spec-kit/helpdesk-triage/internal/queue"
	"github.com/spec-kit/helpdesk-triage/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-triage/pkg/util/errorutil"
)

// AuthService handles registration, login and account management.
type AuthService struct {
	users      repository.UserRepository
	tokens     *auth.TokenManager
	publisher  queue.Publisher
	logger     *zap.Logger
	bcryptCost int
}

// AuthDependencies bundles collaborators for the auth service.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	Tokens     *auth.TokenManager
	Publisher  queue.Publisher
	Logger     *zap.Logger
	BcryptCost int
}

func NewAuthService(deps AuthDependencies) *AuthService {
	return &AuthService{
		users:      deps.UserRepo,
		tokens:     deps.Tokens,
		publisher:  deps.Publisher,
		logger:     deps.Logger,
		bcryptCost: deps.BcryptCost,
	}
}

// RegisterInput describes the signup payload.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Skills   []string
}

// AuthResult carries the authenticated user and their token.
type AuthResult struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// Register creates a new account with the base role and enqueues the
// signup event for the welcome email.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	name := strings.TrimSpace(input.Name)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if name == "" || email == "" || input.Password == "" {
		return nil, apperrors.NewValidationError("name, email and password are required", nil)
	}
	if !strings.Contains(email, "@") {
		return nil, apperrors.NewValidationError("invalid email address", nil)
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("email already registered", nil)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		Skills:       input.Skills,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, queue.Message{Name: queue.EventUserSignedUp, Email: user.Email}); err != nil {
			s.logger.Warn("failed to enqueue signup event", zap.String("email", user.Email), zap.Error(err))
		}
	}

	return s.issueToken(user)
}

// Login verifies credentials and issues a token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, apperrors.MapError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	return s.issueToken(user)
}

// ProfileUpdate describes self-service account changes. Nil fields are
// left untouched; a password change requires the current password.
type ProfileUpdate struct {
	Name            *string
	Skills          []string
	Password        *string
	CurrentPassword string
}

// UpdateProfile applies the caller's own account changes.
func (s *AuthService) UpdateProfile(ctx context.Context, caller *domain.User, update ProfileUpdate) (*domain.User, error) {
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, apperrors.NewValidationError("name cannot be empty", nil)
		}
		caller.Name = name
	}
	if update.Skills != nil {
		caller.Skills = update.Skills
	}
	if update.Password != nil {
		if err := auth.ComparePassword(caller.PasswordHash, update.CurrentPassword); err != nil {
			return nil, apperrors.NewUnauthorized("current password does not match")
		}
		hash, err := auth.HashPassword(*update.Password, s.bcryptCost)
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		caller.PasswordHash = hash
	}
	if err := s.users.Update(ctx, caller); err != nil {
		return nil, apperrors.MapError(err)
	}
	return caller, nil
}

// ListUsers returns every account, for the admin panel.
func (s *AuthService) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return users, nil
}

// AdminUserUpdate describes the role/skill changes admins apply.
type AdminUserUpdate struct {
	Role   *domain.Role
	Skills []string
}

// UpdateUser applies an admin's change to another account.
func (s *AuthService) UpdateUser(ctx context.Context, id string, update AdminUserUpdate) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"id": id})
		}
		return nil, apperrors.MapError(err)
	}

	if update.Role != nil {
		if !update.Role.Valid() {
			return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": *update.Role})
		}
		user.Role = *update.Role
	}
	if update.Skills != nil {
		user.Skills = update.Skills
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// GetUser loads one account by id.
func (s *AuthService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

func (s *AuthService) issueToken(user *domain.User) (*AuthResult, error) {
	token, expiresAt, err := s.tokens.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &AuthResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}
