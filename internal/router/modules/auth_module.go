package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/breadjournal/server/internal/container"
	handlers "github.com/breadjournal/server/internal/interface/http"
	"github.com/breadjournal/server/internal/interface/middleware"
	"github.com/breadjournal/server/pkg/helpers"
)

// AuthModule wires the account auth handlers and JWT middleware into routes.
// Public: signup, verify, resend, login, forgot-password, reset-password.
// Protected: GET /api/auth/me.
type AuthModule struct {
	Handler *handlers.AuthHandler
	JWT     *helpers.JWTManager
}

func NewAuthModule(h *handlers.AuthHandler, jwt *helpers.JWTManager) *AuthModule {
	return &AuthModule{Handler: h, JWT: jwt}
}

func (m *AuthModule) Register(rg *gin.RouterGroup) {
	rdb := container.GetRedis()

	// Public endpoints with IP-based rate limits. Code submission endpoints
	// get a higher ceiling than code issuance.
	signupLimiter := middleware.RateLimit(rdb, 5, time.Minute, middleware.KeyByIPAndPath(), nil)
	verifyLimiter := middleware.RateLimit(rdb, 30, time.Minute, middleware.KeyByIPAndPath(), nil)
	resendLimiter := middleware.RateLimit(rdb, 5, time.Minute, middleware.KeyByIPAndPath(), nil)
	loginLimiter := middleware.RateLimit(rdb, 10, time.Minute, middleware.KeyByIP(), nil)
	forgotLimiter := middleware.RateLimit(rdb, 5, time.Minute, middleware.KeyByIPAndPath(), nil)
	resetLimiter := middleware.RateLimit(rdb, 30, time.Minute, middleware.KeyByIPAndPath(), nil)

	rg.POST("/auth/signup", signupLimiter, m.Handler.Signup)
	rg.POST("/auth/verify", verifyLimiter, m.Handler.Verify)
	rg.POST("/auth/resend", resendLimiter, m.Handler.Resend)
	rg.POST("/auth/login", loginLimiter, m.Handler.Login)
	rg.POST("/auth/forgot-password", forgotLimiter, m.Handler.ForgotPassword)
	rg.POST("/auth/reset-password", resetLimiter, m.Handler.ResetPassword)

	// Protected
	auth := rg.Group("/")
	auth.Use(middleware.RequireAuth(m.JWT))
	{
		auth.GET("/auth/me", m.Handler.Me)
	}
}
