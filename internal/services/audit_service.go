package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tmarchal/authcore/internal/models"
	"github.com/tmarchal/authcore/pkg/logger"
)

// EventContext carries the request metadata attached to every audit event.
type EventContext struct {
	Email     string
	IPAddress string
	UserAgent string
}

// AuditListOptions controls pagination and filtering for audit queries.
type AuditListOptions struct {
	Page      int
	PageSize  int
	EventType string
	Email     string
}

// AuditService persists structured auth events as JSONB rows. Writes are
// best-effort: a failed insert is logged and swallowed so auditing can never
// break the request that triggered it.
type AuditService struct {
	db  *gorm.DB
	log *zap.Logger
	now func() time.Time
}

// NewAuditService constructs an AuditService using the provided database handle.
func NewAuditService(db *gorm.DB) (*AuditService, error) {
	if db == nil {
		return nil, errors.New("audit service: db is required")
	}
	return &AuditService{
		db:  db,
		log: logger.WithModule("audit"),
		now: time.Now,
	}, nil
}

// WithClock overrides the clock used for event timestamps (primarily for testing).
func (s *AuditService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Record writes a single audit event. The payload merges the event type,
// message, and request metadata with any event-specific extra fields.
func (s *AuditService) Record(ctx context.Context, eventType, message string, evt EventContext, extra map[string]any) {
	if strings.TrimSpace(eventType) == "" {
		return
	}

	data := datatypes.JSONMap{
		"event_type": eventType,
		"message":    message,
		"timestamp":  s.now().UTC().Format(time.RFC3339),
	}
	if email := strings.TrimSpace(strings.ToLower(evt.Email)); email != "" {
		data["email"] = email
	}
	if ip := strings.TrimSpace(evt.IPAddress); ip != "" {
		data["ip_address"] = ip
	}
	if ua := strings.TrimSpace(evt.UserAgent); ua != "" {
		data["user_agent"] = ua
	}
	for k, v := range extra {
		if k != "" {
			data[k] = v
		}
	}

	if err := s.db.WithContext(ctx).Create(&models.AuditEvent{Data: data}).Error; err != nil {
		s.log.Warn("audit write failed",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}

// LoginSuccess records a successful login.
func (s *AuditService) LoginSuccess(ctx context.Context, evt EventContext, userID, name string) {
	s.Record(ctx, "login_success", "User login successful", evt, map[string]any{
		"user_id":   userID,
		"user_name": name,
	})
}

// LoginFailed records a failed login attempt with its internal reason. The
// reason is stored for operators only and never surfaced to the client.
func (s *AuditService) LoginFailed(ctx context.Context, evt EventContext, reason string) {
	s.Record(ctx, "login_failed", "User login failed", evt, map[string]any{
		"failure_reason": reason,
	})
}

// RegisterSuccess records a completed registration.
func (s *AuditService) RegisterSuccess(ctx context.Context, evt EventContext, userID string) {
	s.Record(ctx, "register_success", "User registration successful", evt, map[string]any{
		"user_id": userID,
	})
}

// Logout records a client-initiated logout notification.
func (s *AuditService) Logout(ctx context.Context, evt EventContext) {
	s.Record(ctx, "logout", "User logout", evt, nil)
}

// PasswordResetRequested records the issuance of a one-time code.
func (s *AuditService) PasswordResetRequested(ctx context.Context, evt EventContext, userID string, expiresAt time.Time) {
	s.Record(ctx, "password_reset_request", "Password reset requested", evt, map[string]any{
		"user_id":        userID,
		"otp_expires_at": expiresAt.UTC().Format(time.RFC3339),
	})
}

// PasswordResetCompleted records a successful reset transaction.
func (s *AuditService) PasswordResetCompleted(ctx context.Context, evt EventContext, userID string) {
	s.Record(ctx, "password_reset_completed", "Password reset completed", evt, map[string]any{
		"user_id": userID,
	})
}

// List returns paginated audit events ordered by creation time descending.
func (s *AuditService) List(ctx context.Context, opts AuditListOptions) ([]models.AuditEvent, int64, error) {
	page := opts.Page
	if page <= 0 {
		page = 1
	}
	perPage := opts.PageSize
	if perPage <= 0 || perPage > 200 {
		perPage = 50
	}

	query := s.db.WithContext(ctx).Model(&models.AuditEvent{})
	if eventType := strings.TrimSpace(opts.EventType); eventType != "" {
		query = query.Where(datatypes.JSONQuery("data").Equals(eventType, "event_type"))
	}
	if email := strings.TrimSpace(strings.ToLower(opts.Email)); email != "" {
		query = query.Where(datatypes.JSONQuery("data").Equals(email, "email"))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("audit service: count events: %w", err)
	}

	var events []models.AuditEvent
	if err := query.
		Order("created_at DESC").
		Limit(perPage).
		Offset((page - 1) * perPage).
		Find(&events).Error; err != nil {
		return nil, 0, fmt.Errorf("audit service: list events: %w", err)
	}

	return events, total, nil
}

// EventTypeCount is one row of the per-event-type breakdown.
type EventTypeCount struct {
	EventType string `json:"event_type"`
	Count     int64  `json:"count"`
}

// DailyCount is one day's successful login total.
type DailyCount struct {
	Date       string `json:"date"`
	LoginCount int64  `json:"login_count"`
}

// ActiveUser is one row of the most-active-accounts ranking.
type ActiveUser struct {
	Email      string `json:"email"`
	LoginCount int64  `json:"login_count"`
}

// AuditStats summarises the event log for the admin dashboard.
type AuditStats struct {
	EventStatistics []EventTypeCount `json:"event_statistics"`
	DailyLogins     []DailyCount     `json:"daily_logins_last_7_days"`
	MostActiveUsers []ActiveUser     `json:"most_active_users"`
}

// Stats aggregates event counts, a 7-day login histogram, and the ten most
// active accounts. Aggregation happens in Go because JSON-path GROUP BY
// differs per database dialect.
func (s *AuditService) Stats(ctx context.Context) (*AuditStats, error) {
	eventCounts := map[string]int64{}
	daily := map[string]int64{}
	perUser := map[string]int64{}
	cutoff := s.now().AddDate(0, 0, -7)

	var batch []models.AuditEvent
	result := s.db.WithContext(ctx).Model(&models.AuditEvent{}).
		FindInBatches(&batch, 500, func(_ *gorm.DB, _ int) error {
			for _, event := range batch {
				eventType, _ := event.Data["event_type"].(string)
				if eventType == "" {
					continue
				}
				eventCounts[eventType]++
				if eventType != "login_success" {
					continue
				}
				if email, _ := event.Data["email"].(string); email != "" {
					perUser[email]++
				}
				if !event.CreatedAt.Before(cutoff) {
					daily[event.CreatedAt.Format("2006-01-02")]++
				}
			}
			return nil
		})
	if result.Error != nil {
		return nil, fmt.Errorf("audit service: aggregate stats: %w", result.Error)
	}

	stats := &AuditStats{
		EventStatistics: make([]EventTypeCount, 0, len(eventCounts)),
		DailyLogins:     make([]DailyCount, 0, len(daily)),
		MostActiveUsers: make([]ActiveUser, 0, len(perUser)),
	}
	for eventType, count := range eventCounts {
		stats.EventStatistics = append(stats.EventStatistics, EventTypeCount{EventType: eventType, Count: count})
	}
	sort.Slice(stats.EventStatistics, func(i, j int) bool {
		if stats.EventStatistics[i].Count != stats.EventStatistics[j].Count {
			return stats.EventStatistics[i].Count > stats.EventStatistics[j].Count
		}
		return stats.EventStatistics[i].EventType < stats.EventStatistics[j].EventType
	})

	for date, count := range daily {
		stats.DailyLogins = append(stats.DailyLogins, DailyCount{Date: date, LoginCount: count})
	}
	sort.Slice(stats.DailyLogins, func(i, j int) bool {
		return stats.DailyLogins[i].Date > stats.DailyLogins[j].Date
	})

	for email, count := range perUser {
		stats.MostActiveUsers = append(stats.MostActiveUsers, ActiveUser{Email: email, LoginCount: count})
	}
	sort.Slice(stats.MostActiveUsers, func(i, j int) bool {
		if stats.MostActiveUsers[i].LoginCount != stats.MostActiveUsers[j].LoginCount {
			return stats.MostActiveUsers[i].LoginCount > stats.MostActiveUsers[j].LoginCount
		}
		return stats.MostActiveUsers[i].Email < stats.MostActiveUsers[j].Email
	})
	if len(stats.MostActiveUsers) > 10 {
		stats.MostActiveUsers = stats.MostActiveUsers[:10]
	}

	return stats, nil
}

// CleanupOlderThan removes audit events past the retention window, returning
// the number of rows deleted.
func (s *AuditService) CleanupOlderThan(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, nil
	}

	cutoff := s.now().AddDate(0, 0, -days)
	result := s.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.AuditEvent{})
	if result.Error != nil {
		return 0, fmt.Errorf("audit service: cleanup: %w", result.Error)
	}

	return result.RowsAffected, nil
}
