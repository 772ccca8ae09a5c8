package routes

import (
	"civicsync/controllers"

	"github.com/gin-gonic/gin"
)

// IssueRoutes sets up the issue routes. createLimit runs ahead of issue
// creation and may be nil.
func IssueRoutes(api *gin.RouterGroup, h *controllers.Handler, requireAuth, optionalAuth, createLimit gin.HandlerFunc) {
	issue := api.Group("/issues")
	{
		create := []gin.HandlerFunc{requireAuth}
		if createLimit != nil {
			create = append(create, createLimit)
		}
		issue.POST("", append(create, h.CreateIssue)...)

		issue.GET("", optionalAuth, h.GetAllIssues)
		issue.GET("/mine", requireAuth, h.GetMyIssues)
		issue.GET("/map", h.GetMapIssues)
		issue.GET("/stream", h.StreamIssues)
		issue.GET("/:id", optionalAuth, h.GetIssue)

		issue.POST("/:id/claim", requireAuth, h.ClaimIssue)
		issue.POST("/:id/resolve", requireAuth, h.ResolveIssue)
		issue.PATCH("/:id", requireAuth, h.UpdateIssue)
		issue.POST("/:id/vote", requireAuth, h.HandleVoteOnIssue)
	}
}
