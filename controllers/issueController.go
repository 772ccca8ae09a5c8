package controllers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"civicsync/lifecycle"
	"civicsync/middlewares"
	"civicsync/models"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const mapIssueLimit = 500

// IssueWithVotes is the issue shape returned to clients.
type IssueWithVotes struct {
	models.Issue
	Votes        int64                  `json:"votes"`
	UserHasVoted bool                   `json:"userHasVoted"`
	CreatedBy    map[string]interface{} `json:"createdBy"`
}

// viewerID reads the optional caller id without failing the request.
func viewerID(c *gin.Context) *primitive.ObjectID {
	userID := c.GetString(middlewares.UserIDKey)
	if userID == "" {
		return nil
	}
	id, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil
	}
	return &id
}

// decorate attaches vote counts and reporter info. Anonymous issues keep the
// reporter hidden from everyone except the reporter.
func (h *Handler) decorate(ctx context.Context, issues []models.Issue, viewer *primitive.ObjectID) ([]IssueWithVotes, error) {
	names := make(map[primitive.ObjectID]string)
	out := make([]IssueWithVotes, 0, len(issues))

	for _, issue := range issues {
		votes, err := h.store.Votes().Count(ctx, issue.ID)
		if err != nil {
			return nil, err
		}

		userHasVoted := false
		if viewer != nil {
			if userHasVoted, err = h.store.Votes().HasVoted(ctx, issue.ID, *viewer); err != nil {
				return nil, err
			}
		}

		ownIssue := viewer != nil && *viewer == issue.ReporterID
		createdBy := map[string]interface{}{"name": "Anonymous"}
		if issue.IsAnonymous && !ownIssue {
			issue.ReporterID = primitive.NilObjectID
		} else {
			name, seen := names[issue.ReporterID]
			if !seen {
				if reporter, err := h.store.Profiles().Get(ctx, issue.ReporterID); err == nil {
					name = reporter.FullName
				}
				names[issue.ReporterID] = name
			}
			createdBy = map[string]interface{}{"id": issue.ReporterID, "name": name}
		}

		out = append(out, IssueWithVotes{
			Issue:        issue,
			Votes:        votes,
			UserHasVoted: userHasVoted,
			CreatedBy:    createdBy,
		})
	}
	return out, nil
}

func parseFilter(c *gin.Context) (models.IssueFilter, error) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	filter := models.IssueFilter{
		Search: strings.TrimSpace(c.Query("search")),
		Oldest: c.Query("sort") == "oldest",
		Page:   page,
		Limit:  limit,
	}

	if v := strings.ToLower(c.Query("status")); v != "" && v != "all" {
		filter.Status = models.IssueStatus(v)
		if !filter.Status.Valid() {
			return filter, errors.New("invalid status")
		}
	}
	if v := strings.ToLower(c.Query("category")); v != "" && v != "all" {
		filter.Category = models.IssueCategory(v)
		if !filter.Category.Valid() {
			return filter, errors.New("invalid category")
		}
	}
	if v := strings.ToLower(c.Query("priority")); v != "" && v != "all" {
		filter.Priority = models.IssuePriority(v)
		if !filter.Priority.Valid() {
			return filter, errors.New("invalid priority")
		}
	}
	filter.Normalize()
	return filter, nil
}

func (h *Handler) listIssues(c *gin.Context, filter models.IssueFilter) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	issues, total, err := h.store.Issues().List(ctx, filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	decorated, err := h.decorate(ctx, issues, viewerID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	totalPages := int((total + int64(filter.Limit) - 1) / int64(filter.Limit))
	c.JSON(http.StatusOK, gin.H{
		"issues":      decorated,
		"totalIssues": total,
		"totalPages":  totalPages,
		"currentPage": filter.Page,
	})
}

// CreateIssue files a new issue for the authenticated citizen
func (h *Handler) CreateIssue(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	var input models.IssueInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	issue, err := h.lifecycle.ReportIssue(ctx, sess, input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, issue)
}

// GetAllIssues handles retrieving issues with filtering, pagination and vote counts
func (h *Handler) GetAllIssues(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.listIssues(c, filter)
}

// GetMyIssues lists issues reported by the caller
func (h *Handler) GetMyIssues(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	filter, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	filter.ReporterID = &userID
	h.listIssues(c, filter)
}

// GetMapIssues returns issues that carry coordinates
func (h *Handler) GetMapIssues(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	issues, err := h.store.Issues().Located(ctx, mapIssueLimit)
	if err != nil {
		h.respondError(c, err)
		return
	}

	points := make([]gin.H, 0, len(issues))
	for _, issue := range issues {
		points = append(points, gin.H{
			"id":        issue.ID,
			"title":     issue.Title,
			"category":  issue.Category,
			"status":    issue.Status,
			"priority":  issue.Priority,
			"latitude":  issue.Latitude,
			"longitude": issue.Longitude,
			"address":   issue.Address,
		})
	}
	c.JSON(http.StatusOK, gin.H{"issues": points})
}

// GetIssue retrieves an issue by its ID with vote information
func (h *Handler) GetIssue(c *gin.Context) {
	issueID, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	issue, err := h.store.Issues().Get(ctx, issueID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Issue not found"})
			return
		}
		h.respondError(c, err)
		return
	}

	decorated, err := h.decorate(ctx, []models.Issue{*issue}, viewerID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, decorated[0])
}

// ClaimIssue moves a pending issue into progress for the calling official
func (h *Handler) ClaimIssue(c *gin.Context) {
	h.transition(c, func(ctx context.Context, sess lifecycle.Session, id primitive.ObjectID) (*models.Issue, error) {
		return h.lifecycle.ClaimIssue(ctx, sess, id)
	})
}

// ResolveIssue closes an issue and credits the reporter
func (h *Handler) ResolveIssue(c *gin.Context) {
	var input struct {
		GovernmentNotes *string `json:"governmentNotes" binding:"omitempty,max=2000"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	h.transition(c, func(ctx context.Context, sess lifecycle.Session, id primitive.ObjectID) (*models.Issue, error) {
		return h.lifecycle.ResolveIssue(ctx, sess, id, input.GovernmentNotes)
	})
}

// UpdateIssue edits notes and department without touching status
func (h *Handler) UpdateIssue(c *gin.Context) {
	var input struct {
		GovernmentNotes    *string `json:"governmentNotes" binding:"omitempty,max=2000"`
		AssignedDepartment *string `json:"assignedDepartment" binding:"omitempty,max=100"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.transition(c, func(ctx context.Context, sess lifecycle.Session, id primitive.ObjectID) (*models.Issue, error) {
		return h.lifecycle.UpdateIssueDetails(ctx, sess, id, input.GovernmentNotes, input.AssignedDepartment)
	})
}

func (h *Handler) transition(c *gin.Context, op func(context.Context, lifecycle.Session, primitive.ObjectID) (*models.Issue, error)) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	issueID, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	issue, err := op(ctx, sess, issueID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, issue)
}

// HandleVoteOnIssue toggles the user's vote on an issue
func (h *Handler) HandleVoteOnIssue(c *gin.Context) {
	issueID, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	if _, err := h.store.Issues().Get(ctx, issueID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Issue not found"})
			return
		}
		h.respondError(c, err)
		return
	}

	result, err := h.store.Votes().Toggle(ctx, issueID, userID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	message := "Vote removed successfully"
	if result.Voted {
		message = "Vote cast successfully"
	}
	c.JSON(http.StatusOK, gin.H{
		"message":      message,
		"voted":        result.Voted,
		"votes":        result.Votes,
		"userHasVoted": result.Voted,
	})
}

// StreamIssues pushes issue status changes to the client as server-sent events
func (h *Handler) StreamIssues(c *gin.Context) {
	ctx := c.Request.Context()
	ch, err := h.bus.Subscribe(ctx)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case event, open := <-ch:
			if !open {
				return false
			}
			c.SSEvent(event.Type, event)
			return true
		}
	})
}
