package service

import (
	"context"

	"github.com/medstock/medstock-backend/internal/identity/events"
	"github.com/medstock/medstock-backend/internal/identity/jwt"
	"github.com/medstock/medstock-backend/internal/identity/repository"
	"github.com/medstock/medstock-backend/pkg/config"
	"github.com/medstock/medstock-backend/pkg/errors"
	"github.com/medstock/medstock-backend/pkg/logger"
	"github.com/medstock/medstock-backend/pkg/permissions"
	"github.com/medstock/medstock-backend/pkg/principal"
	"golang.org/x/crypto/bcrypt"
)

// UserService handles account management and authentication
type UserService struct {
	repo       *repository.UserRepository
	jwtManager *jwt.Manager
	publisher  *events.IdentityEventPublisher
	logger     *logger.Logger
}

// NewUserService creates a new user service
func NewUserService(
	repo *repository.UserRepository,
	jwtManager *jwt.Manager,
	publisher *events.IdentityEventPublisher,
	log *logger.Logger,
) *UserService {
	return &UserService{
		repo:       repo,
		jwtManager: jwtManager,
		publisher:  publisher,
		logger:     log,
	}
}

// CreateUserInput is the input for creating a user
type CreateUserInput struct {
	Username      string  `json:"username" validate:"required,min=3,max=64"`
	Password      string  `json:"password" validate:"required,min=8"`
	FullName      string  `json:"full_name" validate:"required"`
	Email         *string `json:"email" validate:"omitempty,email"`
	Role          string  `json:"role" validate:"required,oneof=administrator pharmacist doctor nurse"`
	LicenseNumber *string `json:"license_number"`
}

// CreateUser creates a new staff account
func (s *UserService) CreateUser(ctx context.Context, input *CreateUserInput) (*repository.User, error) {
	if !permissions.ValidRole(input.Role) {
		return nil, errors.BadRequest("unknown role: " + input.Role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Internal("failed to hash password")
	}

	user := &repository.User{
		Username:      input.Username,
		PasswordHash:  string(hash),
		FullName:      input.FullName,
		Email:         input.Email,
		Role:          input.Role,
		LicenseNumber: input.LicenseNumber,
		IsActive:      true,
	}
	if p := principal.FromContext(ctx); p != nil && !p.IsSystem() {
		user.CreatedBy = &p.ID
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.publisher.PublishUserCreated(ctx, user)
	s.logger.Info().
		Str("user_id", user.ID).
		Str("username", user.Username).
		Str("role", user.Role).
		Msg("user created")

	return user, nil
}

// Authenticate verifies credentials and returns the user plus a token pair.
// The same error is returned for unknown usernames and wrong passwords.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*repository.User, *jwt.TokenPair, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, nil, errors.InvalidCredentials()
		}
		return nil, nil, err
	}

	if !user.IsActive {
		return nil, nil, errors.InvalidCredentials()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, errors.InvalidCredentials()
	}

	pair, err := s.jwtManager.GenerateTokenPair(&jwt.UserInfo{
		ID:       user.ID,
		Username: user.Username,
		Name:     user.FullName,
		Role:     user.Role,
	})
	if err != nil {
		return nil, nil, errors.Internal("failed to generate tokens")
	}

	if err := s.repo.UpdateLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn().Err(err).Str("user_id", user.ID).Msg("failed to record login time")
	}

	return user, pair, nil
}

// Refresh exchanges a valid refresh token for a new token pair
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*jwt.TokenPair, error) {
	claims, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.TokenInvalid()
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, errors.TokenInvalid()
	}

	return s.jwtManager.GenerateTokenPair(&jwt.UserInfo{
		ID:       user.ID,
		Username: user.Username,
		Name:     user.FullName,
		Role:     user.Role,
	})
}

// ChangePassword changes the caller's own password after verifying the
// current one.
func (s *UserService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return errors.InvalidCredentials()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return errors.Internal("failed to hash password")
	}

	if err := s.repo.UpdatePassword(ctx, userID, string(hash)); err != nil {
		return err
	}

	s.logger.Info().Str("user_id", userID).Msg("password changed")
	return nil
}

// GetUser gets a user by ID
func (s *UserService) GetUser(ctx context.Context, id string) (*repository.User, error) {
	return s.repo.GetByID(ctx, id)
}

// ListUsers lists all users
func (s *UserService) ListUsers(ctx context.Context) ([]*repository.User, error) {
	return s.repo.List(ctx)
}

// ListDoctors lists active users holding the doctor role
func (s *UserService) ListDoctors(ctx context.Context) ([]*repository.User, error) {
	return s.repo.ListByRole(ctx, permissions.RoleDoctor)
}

// UpdateUserInput is the input for updating a user's profile
type UpdateUserInput struct {
	FullName      string  `json:"full_name" validate:"required"`
	Email         *string `json:"email" validate:"omitempty,email"`
	LicenseNumber *string `json:"license_number"`
	IsActive      bool    `json:"is_active"`
}

// UpdateUser updates a user's profile fields
func (s *UserService) UpdateUser(ctx context.Context, id string, input *UpdateUserInput) (*repository.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	user.FullName = input.FullName
	user.Email = input.Email
	user.LicenseNumber = input.LicenseNumber
	user.IsActive = input.IsActive

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// ChangeRole changes a user's role. The last active administrator cannot
// be demoted.
func (s *UserService) ChangeRole(ctx context.Context, id, role string) error {
	if !permissions.ValidRole(role) {
		return errors.BadRequest("unknown role: " + role)
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if user.Role == permissions.RoleAdministrator && role != permissions.RoleAdministrator {
		count, err := s.repo.CountByRole(ctx, permissions.RoleAdministrator)
		if err != nil {
			return err
		}
		if count <= 1 {
			return errors.Conflict("cannot demote the last administrator")
		}
	}

	return s.repo.UpdateRole(ctx, id, role)
}

// DeactivateUser disables a user account. The last active administrator
// cannot be deactivated.
func (s *UserService) DeactivateUser(ctx context.Context, id string) error {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if user.Role == permissions.RoleAdministrator {
		count, err := s.repo.CountByRole(ctx, permissions.RoleAdministrator)
		if err != nil {
			return err
		}
		if count <= 1 {
			return errors.Conflict("cannot deactivate the last administrator")
		}
	}

	return s.repo.Deactivate(ctx, id)
}

// EnsureDefaultAdmin provisions the bootstrap administrator account when no
// active administrator exists. Called once at startup.
func (s *UserService) EnsureDefaultAdmin(ctx context.Context, cfg *config.BootstrapConfig) error {
	count, err := s.repo.CountByRole(ctx, permissions.RoleAdministrator)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return errors.Internal("failed to hash bootstrap password")
	}

	admin := &repository.User{
		Username:     cfg.AdminUsername,
		PasswordHash: string(hash),
		FullName:     "System Administrator",
		Role:         permissions.RoleAdministrator,
		IsActive:     true,
	}

	if err := s.repo.Create(ctx, admin); err != nil {
		return err
	}

	s.logger.Warn().
		Str("username", cfg.AdminUsername).
		Msg("bootstrap administrator created with default credentials, rotate the password immediately")

	return nil
}
