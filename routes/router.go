package routes

import (
	"net/http"
	"time"

	"civicsync/controllers"
	"civicsync/middlewares"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Options configures the engine returned by NewRouter.
type Options struct {
	JWTSecret   string
	CORSOrigins []string
	// IssueLimiter throttles issue creation. Nil disables it.
	IssueLimiter gin.HandlerFunc
	Log          *zap.Logger
}

// NewRouter assembles middleware and every API route group.
func NewRouter(h *controllers.Handler, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(middlewares.RequestLogger(opts.Log), gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     opts.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middlewares.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middlewares.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	requireAuth := middlewares.AuthMiddleware(opts.JWTSecret, opts.Log)
	optionalAuth := middlewares.OptionalAuth(opts.JWTSecret)

	api := r.Group("/api")
	AuthRoutes(api, h, requireAuth)
	IssueRoutes(api, h, requireAuth, optionalAuth, opts.IssueLimiter)
	PublicRoutes(api, h)

	return r
}
