package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tmarchal/authcore/internal/models"
	"github.com/tmarchal/authcore/pkg/crypto"
	apperrors "github.com/tmarchal/authcore/pkg/errors"
	"github.com/tmarchal/authcore/pkg/logger"
	"github.com/tmarchal/authcore/pkg/mail"
	"github.com/tmarchal/authcore/pkg/metrics"
)

// DefaultOTPExpiry is the validity window for issued one-time codes.
const DefaultOTPExpiry = 10 * time.Minute

// OTPOption customises the OTPService.
type OTPOption func(*OTPService)

// WithOTPExpiry overrides the code lifetime.
func WithOTPExpiry(d time.Duration) OTPOption {
	return func(s *OTPService) {
		if d > 0 {
			s.expiry = d
		}
	}
}

// WithOTPClock injects a custom time source.
func WithOTPClock(clock func() time.Time) OTPOption {
	return func(s *OTPService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithCodeGenerator replaces the random code source, primarily for tests.
func WithCodeGenerator(generate func() (string, error)) OTPOption {
	return func(s *OTPService) {
		if generate != nil {
			s.generate = generate
		}
	}
}

// IssuedCode is the result of a successful code request.
type IssuedCode struct {
	Code      string
	ExpiresAt time.Time
}

// OTPService implements the one-time-code ledger behind the password reset
// flow: issuing codes, checking them, and the atomic reset transaction that
// consumes them.
type OTPService struct {
	db       *gorm.DB
	mailer   mail.Mailer
	audit    *AuditService
	log      *zap.Logger
	expiry   time.Duration
	generate func() (string, error)
	now      func() time.Time
}

// NewOTPService constructs an OTPService with the provided dependencies. The
// mailer may be nil in development setups; the code is then only available
// through the handler's dev echo.
func NewOTPService(db *gorm.DB, mailer mail.Mailer, audit *AuditService, opts ...OTPOption) (*OTPService, error) {
	if db == nil {
		return nil, errors.New("otp service: db is required")
	}

	service := &OTPService{
		db:       db,
		mailer:   mailer,
		audit:    audit,
		log:      logger.WithModule("otp"),
		expiry:   DefaultOTPExpiry,
		generate: crypto.GenerateNumericCode,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// Expiry exposes the configured code lifetime.
func (s *OTPService) Expiry() time.Duration {
	return s.expiry
}

// RequestCode issues a fresh code for the account registered under email.
// Invalidating prior codes and inserting the new one happen inside a single
// transaction so concurrent requests cannot leave two codes active.
func (s *OTPService) RequestCode(ctx context.Context, email string, evt EventContext) (*IssuedCode, error) {
	normalized, ok := normalizeEmail(email)
	if !ok {
		return nil, apperrors.NewBadRequest("Email is required")
	}
	evt.Email = normalized

	user, err := s.findUserByEmail(ctx, normalized)
	if err != nil {
		return nil, err
	}

	code, err := s.generate()
	if err != nil {
		return nil, fmt.Errorf("otp service: generate code: %w", err)
	}

	now := s.now()
	issued := &models.OneTimeCode{
		UserID:    user.ID,
		Code:      code,
		ExpiresAt: now.Add(s.expiry),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.OneTimeCode{}).
			Where("user_id = ? AND consumed = ?", user.ID, false).
			Update("consumed", true).Error; err != nil {
			return fmt.Errorf("invalidate prior codes: %w", err)
		}
		if err := tx.Create(issued).Error; err != nil {
			return fmt.Errorf("store code: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("otp service: issue code: %w", err)
	}

	metrics.OTPIssued.Inc()
	if s.audit != nil {
		s.audit.PasswordResetRequested(ctx, evt, user.ID, issued.ExpiresAt)
	}

	if s.mailer != nil {
		message := mail.Message{
			To:      []string{normalized},
			Subject: "Your password reset code",
			Body:    resetMailBody(code, s.expiry),
		}
		// Delivery failure does not revoke the code: it is already committed
		// and the caller can retry the request or use the dev echo.
		if mailErr := s.mailer.Send(ctx, message); mailErr != nil && !errors.Is(mailErr, mail.ErrSMTPDisabled) {
			s.log.Error("reset code delivery failed",
				zap.String("email", normalized),
				zap.Error(mailErr))
		}
	}

	return &IssuedCode{Code: code, ExpiresAt: issued.ExpiresAt}, nil
}

// VerifyCode reports whether the code is currently valid for the account. It
// never mutates the ledger, so clients may call it any number of times before
// committing to a reset.
func (s *OTPService) VerifyCode(ctx context.Context, email, code string) (bool, error) {
	normalized, ok := normalizeEmail(email)
	if !ok || code == "" {
		return false, apperrors.NewBadRequest("Email and OTP are required")
	}

	user, err := s.findUserByEmail(ctx, normalized)
	if err != nil {
		return false, err
	}

	var count int64
	if err := s.activeCodeQuery(s.db.WithContext(ctx), user.ID, code).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("otp service: check code: %w", err)
	}

	valid := count > 0
	if valid {
		metrics.OTPVerifications.WithLabelValues("valid").Inc()
	} else {
		metrics.OTPVerifications.WithLabelValues("invalid").Inc()
	}

	return valid, nil
}

// ResetPassword rewrites the account's credential hash and consumes the code
// as one atomic unit. Wrong, expired, and already-consumed codes all fail with
// the same undifferentiated error.
func (s *OTPService) ResetPassword(ctx context.Context, email, code, newPassword string, evt EventContext) error {
	normalized, ok := normalizeEmail(email)
	if !ok || code == "" {
		return apperrors.NewBadRequest("Email, OTP, and new_password are required")
	}
	if len(newPassword) < MinPasswordLength {
		return apperrors.ErrWeakPassword
	}
	evt.Email = normalized

	user, err := s.findUserByEmail(ctx, normalized)
	if err != nil {
		return err
	}

	hashed, err := crypto.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("otp service: hash password: %w", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var match models.OneTimeCode
		if err := s.activeCodeQuery(tx, user.ID, code).Take(&match).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrInvalidCode
			}
			return fmt.Errorf("find code: %w", err)
		}

		// Guarded consume: a concurrent reset racing on the same code loses here.
		consume := tx.Model(&models.OneTimeCode{}).
			Where("id = ? AND consumed = ?", match.ID, false).
			Update("consumed", true)
		if consume.Error != nil {
			return fmt.Errorf("consume code: %w", consume.Error)
		}
		if consume.RowsAffected == 0 {
			return apperrors.ErrInvalidCode
		}

		if err := tx.Model(&models.User{}).
			Where("id = ?", user.ID).
			Update("password", hashed).Error; err != nil {
			return fmt.Errorf("update credential: %w", err)
		}

		return nil
	})
	if err != nil {
		metrics.PasswordResets.WithLabelValues("failure").Inc()
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return appErr
		}
		return fmt.Errorf("otp service: reset password: %w", err)
	}

	metrics.PasswordResets.WithLabelValues("success").Inc()
	if s.audit != nil {
		s.audit.PasswordResetCompleted(ctx, evt, user.ID)
	}

	return nil
}

// CodeStatus describes one ledger entry for the diagnostic listing.
type CodeStatus struct {
	Code      string    `json:"otp_code"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Consumed  bool      `json:"used"`
	Expired   bool      `json:"is_expired"`
}

// RecentCodes returns the most recent ledger entries for the account, raw
// codes included. Diagnostic use only; the HTTP layer keeps it out of
// production builds.
func (s *OTPService) RecentCodes(ctx context.Context, email string, limit int) ([]CodeStatus, error) {
	normalized, ok := normalizeEmail(email)
	if !ok {
		return nil, apperrors.NewBadRequest("Email is required")
	}
	if limit <= 0 || limit > 20 {
		limit = 5
	}

	user, err := s.findUserByEmail(ctx, normalized)
	if err != nil {
		return nil, err
	}

	var rows []models.OneTimeCode
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", user.ID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("otp service: list codes: %w", err)
	}

	now := s.now()
	statuses := make([]CodeStatus, 0, len(rows))
	for _, row := range rows {
		statuses = append(statuses, CodeStatus{
			Code:      row.Code,
			CreatedAt: row.CreatedAt,
			ExpiresAt: row.ExpiresAt,
			Consumed:  row.Consumed,
			Expired:   now.After(row.ExpiresAt),
		})
	}
	return statuses, nil
}

// CleanupExpired deletes ledger rows whose expiry has passed. Expiry is
// checked on every read, so this is housekeeping rather than a safety measure.
func (s *OTPService) CleanupExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at < ?", s.now()).
		Delete(&models.OneTimeCode{})
	if result.Error != nil {
		return 0, fmt.Errorf("otp service: cleanup expired: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *OTPService) findUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Take(&user, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("otp service: query user: %w", err)
	}
	return &user, nil
}

func (s *OTPService) activeCodeQuery(db *gorm.DB, userID, code string) *gorm.DB {
	return db.Model(&models.OneTimeCode{}).
		Where("user_id = ? AND code = ? AND consumed = ? AND expires_at > ?",
			userID, code, false, s.now())
}

func resetMailBody(code string, expiry time.Duration) string {
	return fmt.Sprintf(
		"Your password reset code is %s.\n\nIt expires in %d minutes. If you did not request a reset, you can ignore this message.\n",
		code, int(expiry.Minutes()),
	)
}
