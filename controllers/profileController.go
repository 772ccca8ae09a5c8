package controllers

import (
	"context"
	"net/http"
	"strconv"

	"civicsync/models"

	"github.com/gin-gonic/gin"
)

const (
	transactionHistoryLimit = 50
	leaderboardMaxLimit     = 100
)

// GetTransactions returns the caller's civic coin history, newest first
func (h *Handler) GetTransactions(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	entries, err := h.store.Ledger().ListForUser(ctx, userID, transactionHistoryLimit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": entries})
}

// GetLeaderboard ranks profiles by civic coin balance
func (h *Handler) GetLeaderboard(c *gin.Context) {
	var userType models.UserType
	if v := c.Query("type"); v != "" && v != "all" {
		userType = models.UserType(v)
		if !userType.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user type"})
			return
		}
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(leaderboardMaxLimit)))
	if limit < 1 || limit > leaderboardMaxLimit {
		limit = leaderboardMaxLimit
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	fetch := func(ctx context.Context) ([]models.LeaderboardEntry, error) {
		profiles, err := h.store.Profiles().Leaderboard(ctx, userType, limit)
		if err != nil {
			return nil, err
		}
		entries := make([]models.LeaderboardEntry, 0, len(profiles))
		for i, p := range profiles {
			entries = append(entries, models.LeaderboardEntry{
				Position:        i + 1,
				ID:              p.ID,
				FullName:        p.FullName,
				UserType:        p.UserType,
				CivicCoins:      p.CivicCoins,
				Rank:            p.Rank,
				TotalReports:    p.TotalReports,
				ResolvedReports: p.ResolvedReports,
			})
		}
		return entries, nil
	}

	var (
		entries []models.LeaderboardEntry
		err     error
	)
	if h.leaderboard != nil {
		entries, err = h.leaderboard.Load(ctx, userType, limit, fetch)
	} else {
		entries, err = fetch(ctx)
	}
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}

// GetStats returns platform-wide issue counters
func (h *Handler) GetStats(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	stats, err := h.store.Issues().Stats(ctx)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
