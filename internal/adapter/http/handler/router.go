package handler

import (
	"merchant-wallet/internal/adapter/http/middleware"
	"merchant-wallet/internal/core/domain"
	"merchant-wallet/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc          ports.AuthService
	MerchantSvc      ports.MerchantService
	TopUpSvc         ports.TopUpService
	FeedSvc          ports.FeedService
	CallbackVerifier ports.CallbackVerifier
	TokenSvc         ports.TokenService
	RateLimiter      ports.RateLimiter // nil = rate limiting disabled
	HealthCheckers   []ports.HealthChecker
	AuditSvc         ports.AuditService  // nil = audit logging disabled
	MetricsGatherer  prometheus.Gatherer // nil = no /metrics endpoint
	Logger           zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	if deps.MetricsGatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.MetricsGatherer, promhttp.HandlerOpts{})))
	}

	rules := middleware.DefaultRateLimitRules()
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimiter == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimiter, group, rule, deps.Logger)
	}

	v1 := r.Group("/api/v1")

	// --- Public routes ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	v1.POST("/auth/login", rl("auth_login"), authHandler.Login)

	callbackHandler := NewCallbackHandler(deps.CallbackVerifier, deps.TopUpSvc, deps.Logger)
	v1.POST("/payments/phonepe/callback", rl("callback"), callbackHandler.PhonePe)

	// --- Session routes ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	merchantHandler := NewMerchantHandler(deps.MerchantSvc)
	dashboardHandler := NewDashboardHandler(deps.MerchantSvc, deps.FeedSvc)
	walletHandler := NewWalletHandler(deps.MerchantSvc, deps.TopUpSvc)

	agent := v1.Group("/agent", jwtAuth, middleware.RequireRole(domain.RoleAgent), rl("agent"))
	{
		agent.POST("/merchants", merchantHandler.Onboard)
		agent.GET("/merchants", merchantHandler.ListForAgent)
		agent.GET("/merchants/:id", merchantHandler.GetForAgent)
		agent.GET("/dashboard/stats", dashboardHandler.AgentStats)
	}

	merchant := v1.Group("/merchant", jwtAuth, middleware.RequireRole(domain.RoleMerchant))
	{
		merchant.GET("/wallet", rl("merchant"), walletHandler.GetWallet)
		merchant.POST("/wallet/topup/initiate", rl("topup_initiate"), walletHandler.InitiateTopUp)
		merchant.GET("/wallet/topup/verify", rl("topup_verify"), walletHandler.VerifyTopUp)
		merchant.GET("/transactions", rl("merchant"), dashboardHandler.ListTransactions)
	}

	admin := v1.Group("/admin", jwtAuth, middleware.RequireRole(domain.RoleAdmin), rl("admin"))
	{
		admin.GET("/merchants/:id", merchantHandler.Get)
		admin.PATCH("/merchants/:id/status", merchantHandler.UpdateStatus)
	}

	return r
}
