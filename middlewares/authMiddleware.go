package middlewares

import (
	"net/http"
	"strings"

	authUtils "civicsync/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	UserIDKey  = "user_id"
	AuthCookie = "auth_token"
)

// AuthMiddleware accepts a bearer token or the auth_token cookie and stores
// the caller's id under UserIDKey.
func AuthMiddleware(secret string, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "No authorization token provided"})
			return
		}

		userID, err := authUtils.ParseToken(tokenString, secret)
		if err != nil {
			log.Debug("token validation failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization token"})
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// OptionalAuth sets UserIDKey when a valid token is present and lets the
// request through either way.
func OptionalAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString := bearerToken(c); tokenString != "" {
			if userID, err := authUtils.ParseToken(tokenString, secret); err == nil {
				c.Set(UserIDKey, userID)
			}
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	if authHeader := c.Request.Header.Get("Authorization"); authHeader != "" {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	if cookie, err := c.Cookie(AuthCookie); err == nil {
		return cookie
	}
	return ""
}
