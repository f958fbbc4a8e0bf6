package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/tmarchal/authcore/internal/app"
	"github.com/tmarchal/authcore/internal/auth"
	"github.com/tmarchal/authcore/internal/handlers"
	"github.com/tmarchal/authcore/internal/middleware"
	"github.com/tmarchal/authcore/internal/services"
)

// Services bundles the wired application services the router depends on.
type Services struct {
	JWT      *auth.JWTService
	Accounts *services.AccountService
	OTP      *services.OTPService
	Audit    *services.AuditService
}

// NewRouter builds the gin engine with all middleware and routes registered.
func NewRouter(cfg *app.Config, db *gorm.DB, svc Services) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORS())
	router.Use(middleware.Metrics())

	authHandler := handlers.NewAuthHandler(svc.Accounts, svc.Audit)
	passwordHandler := handlers.NewPasswordHandler(svc.OTP, cfg.Auth.OTP.DevEcho)
	auditHandler := handlers.NewAuditHandler(svc.Audit)
	healthHandler := handlers.NewHealthHandler(db)

	requireAuth := middleware.RequireAuth(svc.JWT)

	api := router.Group("/api")
	{
		// Legacy top-level aliases kept for older clients.
		api.POST("/register", authHandler.Register)
		api.POST("/login", authHandler.Login)

		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.GET("/verify", requireAuth, authHandler.Verify)
			// Logout acknowledges even with a missing or expired token.
			authGroup.POST("/logout", middleware.OptionalAuth(svc.JWT), authHandler.Logout)
			authGroup.GET("/profile", requireAuth, authHandler.Profile)
			authGroup.PUT("/profile", requireAuth, authHandler.UpdateProfile)
		}

		passwordGroup := api.Group("/password")
		{
			passwordGroup.POST("/request-otp", passwordHandler.RequestOTP)
			passwordGroup.POST("/verify-otp", passwordHandler.VerifyOTP)
			passwordGroup.POST("/reset", passwordHandler.Reset)
			// Unauthenticated so an external cron can hit it.
			passwordGroup.DELETE("/cleanup-expired", passwordHandler.CleanupExpired)
			if cfg.Auth.OTP.DevEcho {
				passwordGroup.GET("/otp-status/:email", passwordHandler.OTPStatus)
			}
		}

		logsGroup := api.Group("/logs", requireAuth)
		{
			logsGroup.GET("", auditHandler.List)
			logsGroup.GET("/user/:email", auditHandler.ListByUser)
			logsGroup.GET("/events/:eventType", auditHandler.ListByEvent)
			logsGroup.GET("/stats", auditHandler.Stats)
		}

		if cfg.Monitoring.Health.Enabled {
			api.GET("/health", healthHandler.Check)
		}
	}

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		router.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	return router
}
