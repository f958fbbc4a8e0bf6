package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tmarchal/authcore/internal/api"
	"github.com/tmarchal/authcore/internal/app"
	"github.com/tmarchal/authcore/internal/auth"
	"github.com/tmarchal/authcore/internal/database"
	"github.com/tmarchal/authcore/internal/services"
)

type fixture struct {
	router *gin.Engine
	db     *gorm.DB
	jwt    *auth.JWTService
	otp    *services.OTPService
}

func newFixture(t *testing.T, otpOpts ...services.OTPOption) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.AutoMigrate(db))

	jwtService, err := auth.NewJWTService(auth.JWTConfig{Secret: "test-secret", Issuer: "authcore"})
	require.NoError(t, err)

	auditService, err := services.NewAuditService(db)
	require.NoError(t, err)

	accountService, err := services.NewAccountService(db, jwtService, auditService)
	require.NoError(t, err)

	otpService, err := services.NewOTPService(db, nil, auditService, otpOpts...)
	require.NoError(t, err)

	cfg := &app.Config{}
	cfg.Auth.OTP.DevEcho = true
	cfg.Monitoring.Health.Enabled = true

	router := api.NewRouter(cfg, db, api.Services{
		JWT:      jwtService,
		Accounts: accountService,
		OTP:      otpService,
		Audit:    auditService,
	})

	return &fixture{router: router, db: db, jwt: jwtService, otp: otpService}
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	f.router.ServeHTTP(recorder, req)
	return recorder
}

func decode(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	return body
}

func (f *fixture) register(t *testing.T, email, password string) (userID, token string) {
	t.Helper()
	recorder := f.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"email":    email,
		"password": password,
		"name":     "Test User",
	})
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())
	body := decode(t, recorder)
	user := body["user"].(map[string]any)
	return user["id"].(string), body["token"].(string)
}
