package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/tmarchal/authcore/internal/api"
	"github.com/tmarchal/authcore/internal/app"
	"github.com/tmarchal/authcore/internal/app/maintenance"
	"github.com/tmarchal/authcore/internal/auth"
	"github.com/tmarchal/authcore/internal/database"
	"github.com/tmarchal/authcore/internal/services"
	"github.com/tmarchal/authcore/pkg/logger"
	"github.com/tmarchal/authcore/pkg/mail"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		logger.Error("server exited with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func run(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("authcore", flag.ContinueOnError)
	configPath := flags.String("config", "", "additional directory to search for config.yaml")
	if err := flags.Parse(args); err != nil {
		return err
	}

	var paths []string
	if *configPath != "" {
		paths = append(paths, *configPath)
	}
	cfg, err := app.LoadConfig(paths...)
	if err != nil {
		return err
	}

	if err := logger.Init(cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	db, err := database.Open(database.Config{
		Driver:   cfg.Database.Driver,
		Path:     cfg.Database.Path,
		DSN:      cfg.Database.DSN,
		Host:     databaseHost(cfg),
		Port:     databasePort(cfg),
		Name:     databaseName(cfg),
		User:     databaseUser(cfg),
		Password: databasePassword(cfg),
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	jwtService, err := auth.NewJWTService(auth.JWTConfig{
		Secret:   cfg.Auth.JWT.Secret,
		Issuer:   cfg.Auth.JWT.Issuer,
		TokenTTL: cfg.Auth.JWT.TTL,
	})
	if err != nil {
		return fmt.Errorf("init jwt service: %w", err)
	}

	mailer, err := mail.NewSMTPMailer(mail.SMTPSettings{
		Enabled:  cfg.Email.SMTP.Enabled,
		Host:     cfg.Email.SMTP.Host,
		Port:     cfg.Email.SMTP.Port,
		Username: cfg.Email.SMTP.Username,
		Password: cfg.Email.SMTP.Password,
		From:     cfg.Email.SMTP.From,
		UseTLS:   cfg.Email.SMTP.UseTLS,
		Timeout:  cfg.Email.SMTP.Timeout,
	})
	if err != nil {
		return fmt.Errorf("init mailer: %w", err)
	}

	auditService, err := services.NewAuditService(db)
	if err != nil {
		return fmt.Errorf("init audit service: %w", err)
	}

	accountService, err := services.NewAccountService(db, jwtService, auditService)
	if err != nil {
		return fmt.Errorf("init account service: %w", err)
	}

	otpOpts := []services.OTPOption{}
	if cfg.Auth.OTP.Expiry > 0 {
		otpOpts = append(otpOpts, services.WithOTPExpiry(cfg.Auth.OTP.Expiry))
	}
	otpService, err := services.NewOTPService(db, mailer, auditService, otpOpts...)
	if err != nil {
		return fmt.Errorf("init otp service: %w", err)
	}

	cleaner := maintenance.NewCleaner(otpService, auditService,
		maintenance.WithAuditRetentionDays(cfg.Audit.RetentionDays),
	)
	if err := cleaner.Start(); err != nil {
		return fmt.Errorf("start maintenance scheduler: %w", err)
	}
	defer cleaner.Stop()

	if err := cleaner.RunOnce(ctx); err != nil {
		logger.Warn("startup maintenance run reported errors", zap.Error(err))
	}

	router := api.NewRouter(cfg, db, api.Services{
		JWT:      jwtService,
		Accounts: accountService,
		OTP:      otpService,
		Audit:    auditService,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func databaseHost(cfg *app.Config) string {
	if cfg.Database.Driver == "mysql" {
		return cfg.Database.MySQL.Host
	}
	return cfg.Database.Postgres.Host
}

func databasePort(cfg *app.Config) int {
	if cfg.Database.Driver == "mysql" {
		return cfg.Database.MySQL.Port
	}
	return cfg.Database.Postgres.Port
}

func databaseName(cfg *app.Config) string {
	if cfg.Database.Driver == "mysql" {
		return cfg.Database.MySQL.Database
	}
	return cfg.Database.Postgres.Database
}

func databaseUser(cfg *app.Config) string {
	if cfg.Database.Driver == "mysql" {
		return cfg.Database.MySQL.Username
	}
	return cfg.Database.Postgres.Username
}

func databasePassword(cfg *app.Config) string {
	if cfg.Database.Driver == "mysql" {
		return cfg.Database.MySQL.Password
	}
	return cfg.Database.Postgres.Password
}
