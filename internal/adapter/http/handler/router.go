package handler

import (
	"rewards-ledger/config"
	"rewards-ledger/internal/adapter/http/middleware"
	redisStore "rewards-ledger/internal/adapter/storage/redis"
	"rewards-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	WalletSvc      ports.WalletService
	CoinSvc        ports.CoinService
	TaskSvc        ports.TaskRewardService
	ReferralSvc    ports.ReferralService
	WithdrawalSvc  ports.WithdrawalService
	AdminWalletSvc ports.AdminWalletService
	SigSvc         ports.SignatureService
	TokenSvc       ports.TokenService
	Providers      map[string]config.ProviderConfig
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep, verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Payout provider callbacks (HMAC-verified, no JWT)
	webhookHandler := NewWebhookHandler(deps.WithdrawalSvc, deps.SigSvc, deps.Providers, deps.Logger)
	r.POST("/webhooks/payouts/:provider", webhookHandler.HandlePayout)

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// API v1 routes
	v1 := r.Group("/api/v1")

	// --- Public routes (no auth) ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/register", rl("auth_register"), authHandler.Register)
		auth.POST("/login", rl("auth_login"), authHandler.Login)
	}

	// --- JWT-authenticated routes ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	walletHandler := NewWalletHandler(deps.WalletSvc, deps.CoinSvc)
	withdrawalHandler := NewWithdrawalHandler(deps.WithdrawalSvc)

	wallet := v1.Group("/wallet", jwtAuth)
	{
		wallet.GET("", rl("wallet"), walletHandler.GetWallet)
		wallet.GET("/transactions", rl("wallet"), walletHandler.ListTransactions)
		wallet.POST("/convert", rl("convert"), walletHandler.Convert)
		wallet.POST("/withdraw", rl("withdraw"), withdrawalHandler.Withdraw)
	}

	// --- Admin routes (JWT + admin claim) ---
	adminHandler := NewAdminHandler(deps.TaskSvc, deps.ReferralSvc, deps.AdminWalletSvc)
	admin := v1.Group("/admin", jwtAuth, middleware.AdminOnly())
	{
		admin.POST("/submissions/:id/review", rl("admin"), adminHandler.ReviewSubmission)
		admin.POST("/referrals/:id/review", rl("admin"), adminHandler.ReviewReferral)
		admin.POST("/wallets/adjust", rl("admin"), adminHandler.AdjustWallet)
	}

	return r
}
