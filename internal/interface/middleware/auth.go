package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/breadjournal/server/pkg/helpers"
	"github.com/breadjournal/server/pkg/response"
)

// Context keys set by the auth middlewares.
const (
	CtxUserIDKey   = "userID"
	CtxUsernameKey = "userName"
	CtxEmailKey    = "userEmail"
)

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func setIdentity(c *gin.Context, claims *helpers.Claims) {
	c.Set(CtxUserIDKey, claims.UserID)
	c.Set(CtxUsernameKey, claims.Username)
	c.Set(CtxEmailKey, claims.Email)
}

// RequireAuth validates the bearer token and injects the identity claims
// into the Gin context. Absent or invalid tokens reject the request.
func RequireAuth(jwt *helpers.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			response.AbortError(c, http.StatusUnauthorized, "access token required", nil)
			return
		}
		claims, err := jwt.Parse(token)
		if err != nil {
			response.AbortError(c, http.StatusUnauthorized, "invalid or expired token", nil)
			return
		}
		setIdentity(c, claims)
		c.Next()
	}
}

// OptionalAuth resolves the bearer token when present and valid, and treats
// everything else as an anonymous request. Used by routes that serve both
// public and authenticated views.
func OptionalAuth(jwt *helpers.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c); token != "" {
			if claims, err := jwt.Parse(token); err == nil {
				setIdentity(c, claims)
			}
		}
		c.Next()
	}
}
