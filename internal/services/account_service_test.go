package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tmarchal/authcore/internal/auth"
	apperrors "github.com/tmarchal/authcore/pkg/errors"
)

func newAccountFixture(t *testing.T) (*AccountService, *gorm.DB, *auth.JWTService) {
	t.Helper()
	db := newTestDB(t)
	jwtService, err := auth.NewJWTService(auth.JWTConfig{Secret: "test-secret"})
	require.NoError(t, err)
	svc, err := NewAccountService(db, jwtService, nil)
	require.NoError(t, err)
	return svc, db, jwtService
}

func TestRegisterCreatesUserAndToken(t *testing.T) {
	svc, _, jwtService := newAccountFixture(t)

	age := 30
	user, token, err := svc.Register(context.Background(), RegisterInput{
		Email:        "Alice@Example.com",
		Password:     "password123",
		Name:         "Alice",
		Age:          &age,
		FavoriteFood: "ramen",
	}, EventContext{})
	require.NoError(t, err)
	require.NotEmpty(t, user.ID)
	require.Equal(t, "alice@example.com", user.Email, "email is stored lower-cased")
	require.NotEmpty(t, token)

	claims, err := jwtService.Validate(token)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.UserID)
	require.Equal(t, user.Email, claims.Email)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _, _ := newAccountFixture(t)

	input := RegisterInput{Email: "alice@example.com", Password: "password123", Name: "Alice"}
	_, _, err := svc.Register(context.Background(), input, EventContext{})
	require.NoError(t, err)

	_, _, err = svc.Register(context.Background(), input, EventContext{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "already exists")
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	svc, _, _ := newAccountFixture(t)

	_, _, err := svc.Register(context.Background(), RegisterInput{
		Email:    "alice@example.com",
		Password: "short",
		Name:     "Alice",
	}, EventContext{})
	require.ErrorIs(t, err, apperrors.ErrWeakPassword)
}

func TestLoginSuccess(t *testing.T) {
	svc, db, _ := newAccountFixture(t)
	created := createTestUser(t, db, "alice@example.com", "password123")

	user, token, err := svc.Login(context.Background(), "alice@example.com", "password123", EventContext{})
	require.NoError(t, err)
	require.Equal(t, created.ID, user.ID)
	require.NotEmpty(t, token)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	svc, db, _ := newAccountFixture(t)
	createTestUser(t, db, "alice@example.com", "password123")

	_, _, wrongPassword := svc.Login(context.Background(), "alice@example.com", "wrongpass", EventContext{})
	_, _, unknownUser := svc.Login(context.Background(), "bob@example.com", "password123", EventContext{})

	require.ErrorIs(t, wrongPassword, apperrors.ErrInvalidCredentials)
	require.ErrorIs(t, unknownUser, apperrors.ErrInvalidCredentials)
	require.Equal(t, wrongPassword.Error(), unknownUser.Error())
}

func TestGetUserUnknownID(t *testing.T) {
	svc, _, _ := newAccountFixture(t)

	_, err := svc.GetUser(context.Background(), "00000000-0000-0000-0000-000000000000")
	require.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func TestUpdateProfilePartialUpdate(t *testing.T) {
	svc, db, _ := newAccountFixture(t)
	user := createTestUser(t, db, "alice@example.com", "password123")

	name := "Alice Cooper"
	age := 35
	dob := time.Date(1991, 4, 2, 0, 0, 0, 0, time.UTC)
	updated, err := svc.UpdateProfile(context.Background(), user.ID, ProfileUpdate{
		Name:        &name,
		Age:         &age,
		DateOfBirth: &dob,
	})
	require.NoError(t, err)
	require.Equal(t, "Alice Cooper", updated.Name)
	require.NotNil(t, updated.Age)
	require.Equal(t, 35, *updated.Age)
	require.Equal(t, "alice@example.com", updated.Email, "untouched fields survive")
}

func TestUpdateProfileNoFields(t *testing.T) {
	svc, db, _ := newAccountFixture(t)
	user := createTestUser(t, db, "alice@example.com", "password123")

	_, err := svc.UpdateProfile(context.Background(), user.ID, ProfileUpdate{})
	require.Error(t, err)
}
