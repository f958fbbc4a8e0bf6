package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tmarchal/authcore/internal/middleware"
	"github.com/tmarchal/authcore/internal/services"
	apperrors "github.com/tmarchal/authcore/pkg/errors"
	"github.com/tmarchal/authcore/pkg/response"
)

// AuthHandler serves registration, login, session verification and profile
// endpoints.
type AuthHandler struct {
	accounts *services.AccountService
	audit    *services.AuditService
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(accounts *services.AccountService, audit *services.AuditService) *AuthHandler {
	return &AuthHandler{accounts: accounts, audit: audit}
}

type registerRequest struct {
	Email        string     `json:"email" validate:"required,email"`
	Password     string     `json:"password" validate:"required,min=6"`
	Name         string     `json:"name" validate:"required"`
	Age          *int       `json:"age" validate:"omitempty,gte=0,lte=150"`
	DateOfBirth  *time.Time `json:"date_of_birth"`
	FavoriteFood string     `json:"favorite_food"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type profileUpdateRequest struct {
	Name         *string    `json:"name"`
	Age          *int       `json:"age" validate:"omitempty,gte=0,lte=150"`
	DateOfBirth  *time.Time `json:"date_of_birth"`
	FavoriteFood *string    `json:"favorite_food"`
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, token, err := h.accounts.Register(c.Request.Context(), services.RegisterInput{
		Email:        req.Email,
		Password:     req.Password,
		Name:         req.Name,
		Age:          req.Age,
		DateOfBirth:  req.DateOfBirth,
		FavoriteFood: req.FavoriteFood,
	}, eventContext(c, req.Email))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusCreated, gin.H{
		"message": "User created successfully",
		"user":    user,
		"token":   token,
	})
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, token, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password, eventContext(c, req.Email))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{
		"message": "Login successful",
		"user":    user,
		"token":   token,
	})
}

// Verify handles GET /api/auth/verify. Reaching it means the auth middleware
// accepted the token, so it only has to report the bound identity.
func (h *AuthHandler) Verify(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		response.Error(c, apperrors.ErrInvalidToken)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{
		"valid": true,
		"user": gin.H{
			"id":    claims.UserID,
			"email": claims.Email,
		},
	})
}

// Logout handles POST /api/auth/logout. Tokens are stateless so there is
// nothing to revoke server side; the endpoint exists to audit the event.
func (h *AuthHandler) Logout(c *gin.Context) {
	email, _ := c.Get(middleware.ContextKeyEmail)
	emailStr, _ := email.(string)
	h.audit.Logout(c.Request.Context(), eventContext(c, emailStr))

	response.JSON(c, http.StatusOK, gin.H{
		"message": "Logout successful",
	})
}

// Profile handles GET /api/auth/profile.
func (h *AuthHandler) Profile(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Error(c, apperrors.ErrInvalidToken)
		return
	}

	user, err := h.accounts.GetUser(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"user": user})
}

// UpdateProfile handles PUT /api/auth/profile.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Error(c, apperrors.ErrInvalidToken)
		return
	}

	var req profileUpdateRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.accounts.UpdateProfile(c.Request.Context(), userID, services.ProfileUpdate{
		Name:         req.Name,
		Age:          req.Age,
		DateOfBirth:  req.DateOfBirth,
		FavoriteFood: req.FavoriteFood,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{
		"message": "Profile updated successfully",
		"user":    user,
	})
}
