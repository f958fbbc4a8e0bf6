package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/tmarchal/authcore/internal/services"
	"github.com/tmarchal/authcore/pkg/logger"
)

const (
	defaultOTPSchedule   = "0 * * * *" // hourly
	defaultAuditSchedule = "30 3 * * *" // daily, off-peak
)

// Cleaner runs the periodic maintenance jobs: purging expired one-time codes
// and trimming old audit events.
type Cleaner struct {
	otp   *services.OTPService
	audit *services.AuditService
	log   *zap.Logger

	cron          *cron.Cron
	otpSchedule   string
	auditSchedule string
	retentionDays int
}

// Option customises a Cleaner.
type Option func(*Cleaner)

// WithOTPSchedule overrides the cron expression for the expired-code purge.
func WithOTPSchedule(expr string) Option {
	return func(c *Cleaner) { c.otpSchedule = expr }
}

// WithAuditSchedule overrides the cron expression for the audit trim.
func WithAuditSchedule(expr string) Option {
	return func(c *Cleaner) { c.auditSchedule = expr }
}

// WithAuditRetentionDays sets how long audit events are kept. Zero disables
// the audit trim entirely.
func WithAuditRetentionDays(days int) Option {
	return func(c *Cleaner) { c.retentionDays = days }
}

// NewCleaner creates a Cleaner with the default schedules.
func NewCleaner(otp *services.OTPService, audit *services.AuditService, opts ...Option) *Cleaner {
	c := &Cleaner{
		otp:           otp,
		audit:         audit,
		log:           logger.WithModule("maintenance"),
		otpSchedule:   defaultOTPSchedule,
		auditSchedule: defaultAuditSchedule,
		retentionDays: 90,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start registers the jobs and begins the scheduler. Jobs already in flight
// when Stop is called are allowed to finish.
func (c *Cleaner) Start() error {
	c.cron = cron.New()

	if _, err := c.cron.AddFunc(c.otpSchedule, func() {
		c.runOTPCleanup(context.Background())
	}); err != nil {
		return err
	}

	if c.retentionDays > 0 {
		if _, err := c.cron.AddFunc(c.auditSchedule, func() {
			c.runAuditCleanup(context.Background())
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	c.log.Info("maintenance scheduler started",
		zap.String("otp_schedule", c.otpSchedule),
		zap.String("audit_schedule", c.auditSchedule),
		zap.Int("audit_retention_days", c.retentionDays),
	)
	return nil
}

// Stop halts the scheduler and waits for running jobs to complete.
func (c *Cleaner) Stop() {
	if c.cron == nil {
		return
	}
	ctx := c.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(30 * time.Second):
		c.log.Warn("timed out waiting for maintenance jobs to finish")
	}
}

// RunOnce executes every maintenance job immediately. Used at startup so a
// long-stopped instance does not wait a full schedule interval to catch up.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	var errs error
	errs = multierr.Append(errs, c.runOTPCleanup(ctx))
	if c.retentionDays > 0 {
		errs = multierr.Append(errs, c.runAuditCleanup(ctx))
	}
	return errs
}

func (c *Cleaner) runOTPCleanup(ctx context.Context) error {
	deleted, err := c.otp.CleanupExpired(ctx)
	if err != nil {
		c.log.Error("expired otp cleanup failed", zap.Error(err))
		return err
	}
	if deleted > 0 {
		c.log.Info("expired otp cleanup finished", zap.Int64("deleted", deleted))
	}
	return nil
}

func (c *Cleaner) runAuditCleanup(ctx context.Context) error {
	deleted, err := c.audit.CleanupOlderThan(ctx, c.retentionDays)
	if err != nil {
		c.log.Error("audit event cleanup failed", zap.Error(err))
		return err
	}
	if deleted > 0 {
		c.log.Info("audit event cleanup finished",
			zap.Int64("deleted", deleted),
			zap.Int("retention_days", c.retentionDays),
		)
	}
	return nil
}
