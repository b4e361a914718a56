package handler

import (
	"net/http"
	"strings"
	"time"

	"livechat/backend/internal/auth"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	sessionClaimsKey = "session_claims"
	adminKeyHeader   = "X-Admin-Key"
)

// zapLoggerMiddleware logs one line per request.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// RequireSession accepts the session credential as a Bearer token or, for
// websocket upgrades from browsers, as the token query parameter.
func (h *Handler) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if header := strings.TrimSpace(c.GetHeader("Authorization")); header != "" {
			if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
				return
			}
			token = strings.TrimSpace(header[7:])
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		claims, err := h.Tokens.Parse(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set(sessionClaimsKey, claims)
		c.Next()
	}
}

// RequireAdmin checks the operator key from the X-Admin-Key header or the
// key query parameter.
func (h *Handler) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(adminKeyHeader)
		if key == "" {
			key = c.Query("key")
		}
		if !h.AdminKey.Check(key) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid admin key"})
			return
		}
		c.Next()
	}
}

func sessionClaims(c *gin.Context) auth.Claims {
	v, _ := c.Get(sessionClaimsKey)
	claims, _ := v.(auth.Claims)
	return claims
}
