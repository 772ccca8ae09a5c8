package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"civicsync/events"
	"civicsync/ledger"
	"civicsync/lifecycle"
	"civicsync/middlewares"
	"civicsync/models"
	"civicsync/repository"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const requestTimeout = 10 * time.Second

// LeaderboardCache serves leaderboard pages, calling fetch on a miss.
type LeaderboardCache interface {
	Load(ctx context.Context, userType models.UserType, limit int, fetch func(context.Context) ([]models.LeaderboardEntry, error)) ([]models.LeaderboardEntry, error)
}

// AuthSettings controls token issuance and the auth cookie.
type AuthSettings struct {
	Secret         string
	TokenTTL       time.Duration
	Production     bool
	Domain         string
	GovernmentCode string
}

// Handler carries the dependencies shared by every route.
type Handler struct {
	store       repository.Store
	lifecycle   *lifecycle.Controller
	bus         events.Bus
	leaderboard LeaderboardCache
	ranks       ledger.RankTable
	auth        AuthSettings
	log         *zap.Logger
}

func New(store repository.Store, lc *lifecycle.Controller, bus events.Bus, leaderboard LeaderboardCache, ranks ledger.RankTable, auth AuthSettings, log *zap.Logger) *Handler {
	return &Handler{
		store:       store,
		lifecycle:   lc,
		bus:         bus,
		leaderboard: leaderboard,
		ranks:       ranks,
		auth:        auth,
		log:         log,
	}
}

func (h *Handler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), requestTimeout)
}

// currentUserID returns the authenticated caller, or false after writing a
// 401/400 response.
func currentUserID(c *gin.Context) (primitive.ObjectID, bool) {
	userID := c.GetString(middlewares.UserIDKey)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return primitive.NilObjectID, false
	}
	return id, true
}

func (h *Handler) session(c *gin.Context) (lifecycle.Session, bool) {
	id, ok := currentUserID(c)
	return lifecycle.Session{ActorID: id}, ok
}

func pathID(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return primitive.NilObjectID, false
	}
	return id, true
}

// respondError maps domain errors onto HTTP statuses.
func (h *Handler) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, models.ErrIllegalTransition),
		errors.Is(err, models.ErrConcurrentModification),
		errors.Is(err, models.ErrDuplicateReward):
		status = http.StatusConflict
	case errors.Is(err, models.ErrInvalidInput),
		errors.Is(err, models.ErrInvalidAmount),
		errors.Is(err, models.ErrEmailTaken):
		status = http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}

	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(status, gin.H{"error": "Something went wrong"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
