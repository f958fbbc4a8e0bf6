package handlers_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/tmarchal/authcore/internal/services"
)

func requestOTP(t *testing.T, f *fixture, email string) string {
	t.Helper()
	recorder := f.do(t, http.MethodPost, "/api/password/request-otp", "", gin.H{"email": email})
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	body := decode(t, recorder)
	require.Equal(t, "10 minutes", body["expires_in"])
	otp, ok := body["otp"].(string)
	require.True(t, ok, "dev echo must include the code")
	return otp
}

func TestRequestOTPEndpoint(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice@example.com", "password123")

	otp := requestOTP(t, f, "alice@example.com")
	require.Regexp(t, `^\d{6}$`, otp)
}

func TestRequestOTPExpiryFollowsConfiguration(t *testing.T) {
	cases := []struct {
		expiry time.Duration
		want   string
	}{
		{5 * time.Minute, "5 minutes"},
		{time.Minute, "1 minute"},
	}

	for _, tc := range cases {
		f := newFixture(t, services.WithOTPExpiry(tc.expiry))
		f.register(t, "alice@example.com", "password123")

		recorder := f.do(t, http.MethodPost, "/api/password/request-otp", "", gin.H{"email": "alice@example.com"})
		require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
		require.Equal(t, tc.want, decode(t, recorder)["expires_in"])
	}
}

func TestRequestOTPUnknownEmail(t *testing.T) {
	f := newFixture(t)

	recorder := f.do(t, http.MethodPost, "/api/password/request-otp", "", gin.H{
		"email": "nobody@example.com",
	})
	require.Equal(t, http.StatusNotFound, recorder.Code)
	require.Equal(t, "User not found", decode(t, recorder)["error"])
}

func TestVerifyOTPEndpoint(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice@example.com", "password123")
	otp := requestOTP(t, f, "alice@example.com")

	recorder := f.do(t, http.MethodPost, "/api/password/verify-otp", "", gin.H{
		"email": "alice@example.com",
		"otp":   otp,
	})
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	require.Equal(t, true, decode(t, recorder)["valid"])
}

func TestVerifyOTPEndpointWrongCode(t *testing.T) {
	f := newFixture(t, services.WithCodeGenerator(func() (string, error) { return "123456", nil }))
	f.register(t, "alice@example.com", "password123")
	requestOTP(t, f, "alice@example.com")

	recorder := f.do(t, http.MethodPost, "/api/password/verify-otp", "", gin.H{
		"email": "alice@example.com",
		"otp":   "654321",
	})
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, false, decode(t, recorder)["valid"])
}

func TestResetPasswordEndpoint(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice@example.com", "password123")
	otp := requestOTP(t, f, "alice@example.com")

	recorder := f.do(t, http.MethodPost, "/api/password/reset", "", gin.H{
		"email":       "alice@example.com",
		"otp":         otp,
		"new_password": "newpassword",
	})
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	require.Equal(t, "Password reset successful", decode(t, recorder)["message"])

	// Old credential is dead, the new one works.
	recorder = f.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "alice@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusUnauthorized, recorder.Code)

	recorder = f.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "alice@example.com",
		"password": "newpassword",
	})
	require.Equal(t, http.StatusOK, recorder.Code)
}

func TestResetPasswordEndpointReplayRejected(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice@example.com", "password123")
	otp := requestOTP(t, f, "alice@example.com")

	payload := gin.H{
		"email":       "alice@example.com",
		"otp":         otp,
		"new_password": "newpassword",
	}
	recorder := f.do(t, http.MethodPost, "/api/password/reset", "", payload)
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = f.do(t, http.MethodPost, "/api/password/reset", "", payload)
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	require.Equal(t, "Invalid or expired OTP", decode(t, recorder)["error"])
}

func TestResetPasswordEndpointWeakPassword(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice@example.com", "password123")
	otp := requestOTP(t, f, "alice@example.com")

	recorder := f.do(t, http.MethodPost, "/api/password/reset", "", gin.H{
		"email":       "alice@example.com",
		"otp":         otp,
		"new_password": "short",
	})
	require.Equal(t, http.StatusBadRequest, recorder.Code)
	require.Equal(t, "Password must be at least 6 characters", decode(t, recorder)["error"])
}

func TestPasswordResetFullFlow(t *testing.T) {
	f := newFixture(t, services.WithCodeGenerator(func() (string, error) { return "123456", nil }))
	f.register(t, "user@example.com", "oldpassword")

	otp := requestOTP(t, f, "user@example.com")
	require.Equal(t, "123456", otp)

	recorder := f.do(t, http.MethodPost, "/api/password/verify-otp", "", gin.H{
		"email": "user@example.com",
		"otp":   "123456",
	})
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, true, decode(t, recorder)["valid"])

	recorder = f.do(t, http.MethodPost, "/api/password/reset", "", gin.H{
		"email":       "user@example.com",
		"otp":         "123456",
		"new_password": "newpass1",
	})
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, "Password reset successful", decode(t, recorder)["message"])

	recorder = f.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "user@example.com",
		"password": "newpass1",
	})
	require.Equal(t, http.StatusOK, recorder.Code)

	// The consumed code no longer verifies.
	recorder = f.do(t, http.MethodPost, "/api/password/verify-otp", "", gin.H{
		"email": "user@example.com",
		"otp":   "123456",
	})
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, false, decode(t, recorder)["valid"])
}

func TestCleanupExpiredEndpoint(t *testing.T) {
	f := newFixture(t)

	// Unauthenticated: this is the cron entry point.
	recorder := f.do(t, http.MethodDelete, "/api/password/cleanup-expired", "", nil)
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	body := decode(t, recorder)
	require.Equal(t, "Expired OTPs cleaned up successfully", body["message"])
	require.Contains(t, body, "deleted_count")
}

func TestOTPStatusEndpoint(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice@example.com", "password123")
	otp := requestOTP(t, f, "alice@example.com")

	recorder := f.do(t, http.MethodGet, "/api/password/otp-status/alice@example.com", "", nil)
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	body := decode(t, recorder)
	require.Equal(t, "alice@example.com", body["email"])
	recent := body["recent_otps"].([]any)
	require.Len(t, recent, 1)
	entry := recent[0].(map[string]any)
	require.Equal(t, otp, entry["otp_code"])
	require.Equal(t, false, entry["used"])
	require.Equal(t, false, entry["is_expired"])
}

func TestAuditLogEndpoint(t *testing.T) {
	f := newFixture(t)
	_, token := f.register(t, "alice@example.com", "password123")

	recorder := f.do(t, http.MethodGet, "/api/logs?event_type=register_success", token, nil)
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	body := decode(t, recorder)
	logs := body["logs"].([]any)
	require.Len(t, logs, 1)
	pagination := body["pagination"].(map[string]any)
	require.EqualValues(t, 1, pagination["total_logs"])
	require.EqualValues(t, 1, pagination["current_page"])
	require.EqualValues(t, 50, pagination["per_page"])
}

func TestAuditLogByUserEndpoint(t *testing.T) {
	f := newFixture(t)
	_, token := f.register(t, "alice@example.com", "password123")
	f.register(t, "bob@example.com", "password123")

	recorder := f.do(t, http.MethodGet, "/api/logs/user/bob@example.com", token, nil)
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	body := decode(t, recorder)
	require.Equal(t, "bob@example.com", body["email"])
	require.Len(t, body["logs"].([]any), 1)
}

func TestAuditLogStatsEndpoint(t *testing.T) {
	f := newFixture(t)
	_, token := f.register(t, "alice@example.com", "password123")

	for i := 0; i < 2; i++ {
		recorder := f.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
			"email":    "alice@example.com",
			"password": "password123",
		})
		require.Equal(t, http.StatusOK, recorder.Code)
	}

	recorder := f.do(t, http.MethodGet, "/api/logs/stats", token, nil)
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	body := decode(t, recorder)
	eventStats := body["event_statistics"].([]any)
	require.NotEmpty(t, eventStats)
	top := eventStats[0].(map[string]any)
	require.Equal(t, "login_success", top["event_type"])
	require.EqualValues(t, 2, top["count"])

	active := body["most_active_users"].([]any)
	require.Len(t, active, 1)
	require.Equal(t, "alice@example.com", active[0].(map[string]any)["email"])
}
