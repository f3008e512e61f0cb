package router

import (
	"net/http"
	"time"

	"duka/config"
	"duka/internal/domain"
	"duka/internal/handler"
	"duka/internal/middleware"
	"duka/internal/repository"
	"duka/internal/service"
	"duka/internal/ws"
	"duka/pkg/audit"
	"duka/pkg/mpesa"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func Setup(cfg *config.Config, db *gorm.DB, trail *audit.Trail) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RateLimit(middleware.NewInMemoryRateLimiter(100, 60*time.Second)))

	// Repositories
	userRepo := repository.NewUserRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)

	// Audit feed
	auditHub := ws.NewHub()
	trail.SetObserver(auditHub.Broadcast)

	// Services
	authSvc := service.NewAuthService(cfg, userRepo)
	gateway := mpesa.NewClient(cfg.Daraja.BaseURL, cfg.Daraja.Timeout, trail.Append)
	checkoutSvc := service.NewCheckoutService(gateway, paymentRepo, trail)

	// Handlers
	authHandler := handler.NewAuthHandler(authSvc)
	checkoutHandler := handler.NewCheckoutHandler(checkoutSvc)
	paymentHandler := handler.NewPaymentHandler(paymentRepo)

	authMw := middleware.AuthRequired(&cfg.JWT)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
		}

		checkoutLimiter := middleware.NewInMemoryRateLimiter(5, time.Minute)
		api.POST("/checkout/mpesa", authMw, middleware.RateLimitByUser(checkoutLimiter), checkoutHandler.Initiate)

		me := api.Group("/me")
		me.Use(authMw)
		{
			me.GET("/payments", paymentHandler.ListMine)
		}

		admin := api.Group("/admin")
		admin.Use(authMw, middleware.RequireRole(domain.RoleAdmin))
		{
			admin.GET("/payments", paymentHandler.ListRecent)
		}

		api.GET("/ws/audit", ws.AuditFeed(&cfg.JWT, auditHub))
	}

	return r
}
