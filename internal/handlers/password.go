package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tmarchal/authcore/internal/services"
	"github.com/tmarchal/authcore/pkg/response"
)

// PasswordHandler serves the OTP based password reset flow.
type PasswordHandler struct {
	otp *services.OTPService

	// devEcho includes the raw code in the request-otp response instead of
	// relying on email delivery. Development only.
	devEcho bool
}

// NewPasswordHandler creates a PasswordHandler.
func NewPasswordHandler(otp *services.OTPService, devEcho bool) *PasswordHandler {
	return &PasswordHandler{otp: otp, devEcho: devEcho}
}

type requestOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type verifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=6,numeric"`
}

type resetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	OTP         string `json:"otp" validate:"required,len=6,numeric"`
	NewPassword string `json:"new_password" validate:"required"`
}

// RequestOTP handles POST /api/password/request-otp.
func (h *PasswordHandler) RequestOTP(c *gin.Context) {
	var req requestOTPRequest
	if !bindAndValidate(c, &req) {
		return
	}

	issued, err := h.otp.RequestCode(c.Request.Context(), req.Email, eventContext(c, req.Email))
	if err != nil {
		response.Error(c, err)
		return
	}

	body := gin.H{
		"message":    "OTP sent",
		"expires_in": formatExpiry(h.otp.Expiry()),
	}
	if h.devEcho {
		body["message"] = "OTP sent (dev mode)"
		body["otp"] = issued.Code
	}
	response.JSON(c, http.StatusOK, body)
}

func formatExpiry(d time.Duration) string {
	minutes := int(d.Round(time.Minute) / time.Minute)
	if minutes <= 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}

// VerifyOTP handles POST /api/password/verify-otp. The check does not consume
// the code; only the reset itself does.
func (h *PasswordHandler) VerifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	if !bindAndValidate(c, &req) {
		return
	}

	valid, err := h.otp.VerifyCode(c.Request.Context(), req.Email, req.OTP)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"valid": valid})
}

// Reset handles POST /api/password/reset.
func (h *PasswordHandler) Reset(c *gin.Context) {
	var req resetPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	err := h.otp.ResetPassword(c.Request.Context(), req.Email, req.OTP, req.NewPassword, eventContext(c, req.Email))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{
		"message": "Password reset successful",
	})
}

// CleanupExpired handles DELETE /api/password/cleanup-expired.
func (h *PasswordHandler) CleanupExpired(c *gin.Context) {
	deleted, err := h.otp.CleanupExpired(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{
		"message":       "Expired OTPs cleaned up successfully",
		"deleted_count": deleted,
	})
}

// OTPStatus handles GET /api/password/otp-status/:email. It dumps the five
// most recent ledger entries for the account including raw codes, so the route
// is only registered in dev-echo mode.
func (h *PasswordHandler) OTPStatus(c *gin.Context) {
	email := c.Param("email")

	statuses, err := h.otp.RecentCodes(c.Request.Context(), email, 5)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{
		"email":       email,
		"recent_otps": statuses,
	})
}
