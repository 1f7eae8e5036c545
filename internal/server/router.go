package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"orderdesk/internal/auth"
	"orderdesk/internal/handler"
	"orderdesk/internal/middleware"
	"orderdesk/internal/store"
)

type Deps struct {
	Store           *store.Store
	TokenConfig     auth.TokenConfig
	SignInRateLimit int
}

func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	limit := deps.SignInRateLimit
	if limit <= 0 {
		limit = 10
	}
	signInLimiter := middleware.RateLimitMiddleware(middleware.NewRateLimiter(limit, time.Minute))

	authHandler := &handler.AuthHandler{Store: deps.Store, TokenConfig: deps.TokenConfig}
	r.POST("/v1/accounts", signInLimiter, authHandler.Register)
	r.POST("/v1/auth/signin", signInLimiter, authHandler.SignIn)

	protected := r.Group("/v1")
	protected.Use(middleware.RequireAuth(deps.TokenConfig, deps.Store))
	protected.POST("/auth/signout", authHandler.SignOut)
	protected.GET("/me", authHandler.Me)

	orderHandler := &handler.OrderHandler{Store: deps.Store}
	protected.GET("/orders", orderHandler.List)
	protected.POST("/orders", orderHandler.Create)
	protected.GET("/orders/:id", orderHandler.Get)
	protected.POST("/orders/:id/close", orderHandler.Close)

	liveHandler := &handler.LiveHandler{Store: deps.Store}
	protected.GET("/collections/:name/live", liveHandler.Serve)

	return r
}
