package routes

import (
	"civicsync/controllers"

	"github.com/gin-gonic/gin"
)

// AuthRoutes sets up the authentication routes
func AuthRoutes(api *gin.RouterGroup, h *controllers.Handler, requireAuth gin.HandlerFunc) {
	auth := api.Group("/auth")
	{
		auth.POST("/register", h.RegisterUser)
		auth.POST("/login", h.LoginUser)
		auth.POST("/logout", h.LogoutUser)
		auth.GET("/me", requireAuth, h.GetMe)
		auth.PATCH("/me", requireAuth, h.UpdateMe)
	}

	profile := api.Group("/profile", requireAuth)
	{
		profile.GET("/transactions", h.GetTransactions)
	}

	notifications := api.Group("/notifications", requireAuth)
	{
		notifications.GET("", h.GetNotifications)
		notifications.POST("/:id/read", h.MarkNotificationRead)
	}
}

// PublicRoutes serves the unauthenticated dashboards
func PublicRoutes(api *gin.RouterGroup, h *controllers.Handler) {
	api.GET("/leaderboard", h.GetLeaderboard)
	api.GET("/stats", h.GetStats)
}
