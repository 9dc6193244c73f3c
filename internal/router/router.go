package router

import (
	"context"
	"time"

	"stkpay/config"
	"stkpay/internal/handler"
	"stkpay/internal/middleware"
	"stkpay/internal/repository"
	"stkpay/internal/service"
	"stkpay/internal/ws"
	applog "stkpay/pkg/log"
	"stkpay/pkg/mpesa"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps are the outbound integrations chosen in main.
type Deps struct {
	Provider     mpesa.Provider
	TokenFetcher service.TokenFetcher
	Uploader     service.ProofUploader // nil disables proof uploads
}

// Setup wires repositories, services and handlers. ctx bounds background
// goroutines such as the rate limiter sweeper.
func Setup(ctx context.Context, cfg *config.Config, db *gorm.DB, deps Deps) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(applog.Component("http")))
	r.Use(cors.New(corsConfig(cfg.CORS)))

	// Repositories
	userRepo := repository.NewUserRepository(db)
	txRepo := repository.NewTransactionRepository(db)
	manualRepo := repository.NewManualPaymentRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	hub := ws.NewHub()

	// Services
	paymentSvc := service.NewPaymentService(deps.Provider, txRepo, auditRepo, hub)
	manualSvc := service.NewManualPaymentService(manualRepo, auditRepo, deps.Uploader)
	authSvc := service.NewAuthService(cfg, userRepo, auditRepo)
	diagSvc := service.NewDiagnosticsService(cfg.Mpesa, deps.TokenFetcher)

	// Handlers
	paymentHandler := handler.NewPaymentHandler(paymentSvc)
	callbackHandler := handler.NewCallbackHandler(paymentSvc)
	manualHandler := handler.NewManualPaymentHandler(manualSvc)
	diagHandler := handler.NewDiagnosticsHandler(diagSvc)
	authHandler := handler.NewAuthHandler(authSvc)

	r.GET("/healthz", handler.Health)

	// Daraja delivers every callback from a handful of addresses, so the
	// confirmation route sits outside the per-IP limiter.
	r.POST("/payment/confirm", callbackHandler.Confirm)

	api := r.Group("", middleware.RateLimit(middleware.NewInMemoryRateLimiter(ctx, cfg.RateLimit.PerMinute, time.Minute)))

	payment := api.Group("/payment")
	{
		payment.POST("/initiate", paymentHandler.Initiate)
		payment.GET("/status", paymentHandler.Status)
		payment.POST("/query", paymentHandler.Query)
	}

	authRequired := middleware.AuthRequired(&cfg.JWT)
	adminRequired := middleware.AdminRequired()

	manual := api.Group("/manual-payment")
	{
		manual.POST("", manualHandler.Submit)
		manual.PATCH("", authRequired, adminRequired, manualHandler.Verify)
		manual.POST("/:id/proof", manualHandler.UploadProof)
	}

	api.POST("/admin/login", authHandler.Login)
	api.GET("/diagnostics", authRequired, adminRequired, diagHandler.Get)
	api.GET("/ws/payment", ws.UpgradePaymentWS(hub, paymentSvc))

	return r
}

func corsConfig(c config.CORSConfig) cors.Config {
	out := cors.Config{
		AllowMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}
	for _, o := range c.AllowOrigins {
		if o == "*" {
			out.AllowAllOrigins = true
			return out
		}
	}
	if len(c.AllowOrigins) == 0 {
		out.AllowAllOrigins = true
		return out
	}
	out.AllowOrigins = c.AllowOrigins
	out.AllowCredentials = true
	return out
}
