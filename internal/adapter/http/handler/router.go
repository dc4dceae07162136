package handler

import (
	"github.com/joaojf/banking-system/internal/adapter/http/middleware"
	redisStore "github.com/joaojf/banking-system/internal/adapter/storage/redis"
	"github.com/joaojf/banking-system/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AccountSvc     ports.AccountService
	LedgerSvc      ports.LedgerService
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

	accountHandler := NewAccountHandler(deps.AccountSvc, deps.LedgerSvc)
	accounts := v1.Group("/accounts")
	{
		accounts.POST("", rl("accounts"), accountHandler.Create)
		accounts.GET("", rl("accounts"), accountHandler.List)
		accounts.GET("/:identifier", rl("accounts"), accountHandler.Get)
		accounts.DELETE("/:identifier", rl("accounts"), accountHandler.Delete)
		accounts.GET("/:identifier/balance", rl("accounts"), accountHandler.Balance)
		accounts.GET("/:identifier/statement", rl("accounts"), accountHandler.Statement)
		accounts.GET("/:identifier/audit", rl("accounts"), accountHandler.Audit)
	}

	operationHandler := NewOperationHandler(deps.LedgerSvc)
	operations := v1.Group("/operations")
	{
		operations.POST("/deposit", rl("operations"), operationHandler.Deposit)
		operations.POST("/withdraw", rl("operations"), operationHandler.Withdraw)
		operations.POST("/transfer", rl("operations"), operationHandler.Transfer)
	}

	return r
}
