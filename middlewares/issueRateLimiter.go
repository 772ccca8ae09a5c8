package middlewares

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// IssueRateLimiter caps how many issues one user may file per day. It must
// run after AuthMiddleware.
func IssueRateLimiter(rdb *redis.Client, queuePrefix string, limit int, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(UserIDKey)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
			return
		}

		ctx := c.Request.Context()
		userKey := queuePrefix + ":" + userID

		count, err := rdb.Incr(ctx, userKey).Result()
		if err != nil {
			log.Error("rate limiter incr failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "redis error incrementing count"})
			return
		}

		// Set TTL only for the first increment of the window.
		if count == 1 {
			if err := rdb.Expire(ctx, userKey, 24*time.Hour).Err(); err != nil {
				log.Error("rate limiter expire failed", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "redis error setting TTL"})
				return
			}
		}

		if count > int64(limit) {
			retryAfter, _ := rdb.TTL(ctx, userKey).Result()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": retryAfter.Seconds(),
			})
			return
		}

		c.Next()
	}
}
