package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tmarchal/authcore/internal/auth"
	"github.com/tmarchal/authcore/internal/models"
	"github.com/tmarchal/authcore/pkg/crypto"
	apperrors "github.com/tmarchal/authcore/pkg/errors"
	"github.com/tmarchal/authcore/pkg/metrics"
)

// MinPasswordLength is the server-side password policy, re-checked on every
// path that writes a credential hash.
const MinPasswordLength = 6

// RegisterInput captures the details required to create a new account.
type RegisterInput struct {
	Email        string
	Password     string
	Name         string
	Age          *int
	DateOfBirth  *time.Time
	FavoriteFood string
}

// ProfileUpdate carries a partial profile change; nil fields are left untouched.
type ProfileUpdate struct {
	Name         *string
	Age          *int
	DateOfBirth  *time.Time
	FavoriteFood *string
}

// AccountService manages the credential store: registration, login, and
// profile reads/updates. Password hashes are written here and by the reset
// transaction in OTPService, nowhere else.
type AccountService struct {
	db    *gorm.DB
	jwt   *auth.JWTService
	audit *AuditService
}

// NewAccountService constructs an AccountService with its collaborators.
func NewAccountService(db *gorm.DB, jwt *auth.JWTService, audit *AuditService) (*AccountService, error) {
	if db == nil {
		return nil, errors.New("account service: db is required")
	}
	if jwt == nil {
		return nil, errors.New("account service: jwt service is required")
	}
	return &AccountService{db: db, jwt: jwt, audit: audit}, nil
}

// Register creates a new account and returns it with a freshly minted session token.
func (s *AccountService) Register(ctx context.Context, input RegisterInput, evt EventContext) (*models.User, string, error) {
	email, ok := normalizeEmail(input.Email)
	if !ok {
		return nil, "", apperrors.NewBadRequest("a valid email is required")
	}
	if len(input.Password) < MinPasswordLength {
		return nil, "", apperrors.ErrWeakPassword
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, "", apperrors.NewBadRequest("name is required")
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, "", fmt.Errorf("account service: hash password: %w", err)
	}

	user := &models.User{
		Email:        email,
		Password:     hashed,
		Name:         name,
		Age:          input.Age,
		DateOfBirth:  input.DateOfBirth,
		FavoriteFood: strings.TrimSpace(input.FavoriteFood),
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, "", apperrors.NewBadRequest("User already exists with this email")
		}
		return nil, "", fmt.Errorf("account service: create user: %w", err)
	}

	token, err := s.jwt.Generate(user.ID, user.Email)
	if err != nil {
		return nil, "", fmt.Errorf("account service: issue token: %w", err)
	}

	if s.audit != nil {
		evt.Email = email
		s.audit.RegisterSuccess(ctx, evt, user.ID)
	}

	return user, token, nil
}

// Login verifies the supplied credentials and issues a session token. Unknown
// accounts and wrong passwords produce the same error so responses do not
// reveal whether the email is registered.
func (s *AccountService) Login(ctx context.Context, email, password string, evt EventContext) (*models.User, string, error) {
	normalized, ok := normalizeEmail(email)
	if !ok || password == "" {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, "", apperrors.ErrInvalidCredentials
	}
	evt.Email = normalized

	var user models.User
	err := s.db.WithContext(ctx).Take(&user, "email = ?", normalized).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		if s.audit != nil {
			s.audit.LoginFailed(ctx, evt, "user not found")
		}
		return nil, "", apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", fmt.Errorf("account service: query user: %w", err)
	}

	if !crypto.VerifyPassword(user.Password, password) {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		if s.audit != nil {
			s.audit.LoginFailed(ctx, evt, "invalid password")
		}
		return nil, "", apperrors.ErrInvalidCredentials
	}

	token, err := s.jwt.Generate(user.ID, user.Email)
	if err != nil {
		return nil, "", fmt.Errorf("account service: issue token: %w", err)
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	if s.audit != nil {
		s.audit.LoginSuccess(ctx, evt, user.ID, user.Name)
	}

	return &user, token, nil
}

// GetUser fetches an account by id.
func (s *AccountService) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Take(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("account service: query user: %w", err)
	}
	return &user, nil
}

// UpdateProfile applies a partial profile update and returns the refreshed account.
func (s *AccountService) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*models.User, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	changes := map[string]any{}
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, apperrors.NewBadRequest("name must not be empty")
		}
		changes["name"] = name
	}
	if update.Age != nil {
		if *update.Age < 0 || *update.Age > 150 {
			return nil, apperrors.NewBadRequest("age must be between 0 and 150")
		}
		changes["age"] = *update.Age
	}
	if update.DateOfBirth != nil {
		changes["date_of_birth"] = *update.DateOfBirth
	}
	if update.FavoriteFood != nil {
		changes["favorite_food"] = strings.TrimSpace(*update.FavoriteFood)
	}

	if len(changes) == 0 {
		return nil, apperrors.NewBadRequest("no fields to update")
	}

	if err := s.db.WithContext(ctx).Model(user).Updates(changes).Error; err != nil {
		return nil, fmt.Errorf("account service: update profile: %w", err)
	}

	return s.GetUser(ctx, userID)
}
