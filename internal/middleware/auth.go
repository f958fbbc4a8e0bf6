package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tmarchal/authcore/internal/auth"
	apperrors "github.com/tmarchal/authcore/pkg/errors"
	"github.com/tmarchal/authcore/pkg/response"
)

const (
	// ContextKeyUserID is the gin context key holding the authenticated user id.
	ContextKeyUserID = "user_id"
	// ContextKeyEmail is the gin context key holding the authenticated email.
	ContextKeyEmail = "email"
	// ContextKeyClaims is the gin context key holding the full token claims.
	ContextKeyClaims = "claims"
)

// RequireAuth validates the bearer token on incoming requests and stores the
// resolved identity in the request context. A missing token yields 401 and an
// unverifiable one 403, matching the distinction between "you forgot the
// header" and "your session is no longer valid".
func RequireAuth(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c)
		if token == "" {
			response.AbortError(c, apperrors.ErrTokenRequired)
			return
		}

		claims, err := jwtService.Validate(token)
		if err != nil {
			response.AbortError(c, apperrors.ErrInvalidToken)
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyEmail, claims.Email)
		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// OptionalAuth resolves the bearer token when one is present and valid, and
// lets the request through anonymously otherwise. For endpoints that must
// acknowledge regardless of session state, such as logout.
func OptionalAuth(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := extractBearerToken(c); token != "" {
			if claims, err := jwtService.Validate(token); err == nil {
				c.Set(ContextKeyUserID, claims.UserID)
				c.Set(ContextKeyEmail, claims.Email)
				c.Set(ContextKeyClaims, claims)
			}
		}
		c.Next()
	}
}

func extractBearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// CurrentUserID returns the authenticated user id stored by RequireAuth.
func CurrentUserID(c *gin.Context) (string, bool) {
	value, ok := c.Get(ContextKeyUserID)
	if !ok {
		return "", false
	}
	id, ok := value.(string)
	return id, ok && id != ""
}

// CurrentClaims returns the validated token claims stored by RequireAuth.
func CurrentClaims(c *gin.Context) (*auth.Claims, bool) {
	value, ok := c.Get(ContextKeyClaims)
	if !ok {
		return nil, false
	}
	claims, ok := value.(*auth.Claims)
	return claims, ok
}
