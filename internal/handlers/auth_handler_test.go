package handlers_test

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestRegisterEndpoint(t *testing.T) {
	f := newFixture(t)

	recorder := f.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"email":    "alice@example.com",
		"password": "password123",
		"name":     "Alice",
		"age":      30,
	})
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())

	body := decode(t, recorder)
	require.Equal(t, "User created successfully", body["message"])
	require.NotEmpty(t, body["token"])

	user := body["user"].(map[string]any)
	require.Equal(t, "alice@example.com", user["email"])
	require.NotContains(t, user, "password", "hash must never be serialised")
}

func TestRegisterEndpointRejectsInvalidBody(t *testing.T) {
	f := newFixture(t)

	recorder := f.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"email":    "not-an-email",
		"password": "password123",
		"name":     "Alice",
	})
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	require.Contains(t, decode(t, recorder), "error")
}

func TestLoginEndpoint(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice@example.com", "password123")

	recorder := f.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "alice@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	body := decode(t, recorder)
	require.Equal(t, "Login successful", body["message"])
	require.NotEmpty(t, body["token"])
}

func TestLoginEndpointWrongPassword(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice@example.com", "password123")

	recorder := f.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "alice@example.com",
		"password": "wrongpass",
	})
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
	require.Equal(t, "Invalid email or password", decode(t, recorder)["error"])
}

func TestVerifyEndpoint(t *testing.T) {
	f := newFixture(t)
	userID, token := f.register(t, "alice@example.com", "password123")

	recorder := f.do(t, http.MethodGet, "/api/auth/verify", token, nil)
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	body := decode(t, recorder)
	require.Equal(t, true, body["valid"])
	user := body["user"].(map[string]any)
	require.Equal(t, userID, user["id"])
	require.Equal(t, "alice@example.com", user["email"])
}

func TestVerifyEndpointMissingToken(t *testing.T) {
	f := newFixture(t)

	recorder := f.do(t, http.MethodGet, "/api/auth/verify", "", nil)
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
	require.Equal(t, "Access token required", decode(t, recorder)["error"])
}

func TestVerifyEndpointInvalidToken(t *testing.T) {
	f := newFixture(t)

	recorder := f.do(t, http.MethodGet, "/api/auth/verify", "not-a-token", nil)
	require.Equal(t, http.StatusForbidden, recorder.Code)
	require.Equal(t, "Invalid or expired token", decode(t, recorder)["error"])
}

func TestLogoutEndpoint(t *testing.T) {
	f := newFixture(t)
	_, token := f.register(t, "alice@example.com", "password123")

	recorder := f.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, "Logout successful", decode(t, recorder)["message"])
}

func TestLogoutAcknowledgesWithoutValidToken(t *testing.T) {
	f := newFixture(t)

	// An expired or absent session is the common case at logout; the
	// acknowledgement must come back regardless.
	for _, token := range []string{"", "not-a-token"} {
		recorder := f.do(t, http.MethodPost, "/api/auth/logout", token, nil)
		require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
		require.Equal(t, "Logout successful", decode(t, recorder)["message"])
	}
}

func TestProfileRoundTrip(t *testing.T) {
	f := newFixture(t)
	_, token := f.register(t, "alice@example.com", "password123")

	recorder := f.do(t, http.MethodGet, "/api/auth/profile", token, nil)
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	user := decode(t, recorder)["user"].(map[string]any)
	require.Equal(t, "alice@example.com", user["email"])

	recorder = f.do(t, http.MethodPut, "/api/auth/profile", token, gin.H{
		"name":          "Alice Cooper",
		"favorite_food": "ramen",
	})
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	body := decode(t, recorder)
	require.Equal(t, "Profile updated successfully", body["message"])
	user = body["user"].(map[string]any)
	require.Equal(t, "Alice Cooper", user["name"])
	require.Equal(t, "ramen", user["favorite_food"])
}

func TestProfileRequiresAuth(t *testing.T) {
	f := newFixture(t)

	recorder := f.do(t, http.MethodGet, "/api/auth/profile", "", nil)
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestLegacyAliasRoutes(t *testing.T) {
	f := newFixture(t)

	recorder := f.do(t, http.MethodPost, "/api/register", "", gin.H{
		"email":    "alice@example.com",
		"password": "password123",
		"name":     "Alice",
	})
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())

	recorder = f.do(t, http.MethodPost, "/api/login", "", gin.H{
		"email":    "alice@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
}

func TestHealthEndpoint(t *testing.T) {
	f := newFixture(t)

	recorder := f.do(t, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, "ok", decode(t, recorder)["status"])
}
