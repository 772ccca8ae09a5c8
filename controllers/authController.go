package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"civicsync/middlewares"
	"civicsync/models"
	authUtils "civicsync/utils"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func profileResponse(p *models.Profile) gin.H {
	return gin.H{
		"id":              p.ID,
		"fullName":        p.FullName,
		"email":           p.Email,
		"userType":        p.UserType,
		"department":      p.Department,
		"governmentId":    p.GovernmentID,
		"phoneNumber":     p.PhoneNumber,
		"address":         p.Address,
		"civicCoins":      p.CivicCoins,
		"rank":            p.Rank,
		"totalReports":    p.TotalReports,
		"resolvedReports": p.ResolvedReports,
		"createdAt":       p.CreatedAt,
	}
}

// RegisterUser handles profile registration
func (h *Handler) RegisterUser(c *gin.Context) {
	var input struct {
		FullName       string `json:"fullName" binding:"required,max=100"`
		Email          string `json:"email" binding:"required,email"`
		Password       string `json:"password" binding:"required,min=6"`
		UserType       string `json:"userType" binding:"omitempty,oneof=citizen government"`
		Department     string `json:"department" binding:"max=100"`
		GovernmentCode string `json:"governmentCode"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userType := models.Citizen
	if input.UserType != "" {
		userType = models.UserType(input.UserType)
	}
	if userType == models.Government && h.auth.GovernmentCode != "" && input.GovernmentCode != h.auth.GovernmentCode {
		c.JSON(http.StatusForbidden, gin.H{"error": "Invalid government registration code"})
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	now := time.Now()
	profile := models.Profile{
		ID:        primitive.NewObjectID(),
		FullName:  strings.TrimSpace(input.FullName),
		Email:     strings.ToLower(strings.TrimSpace(input.Email)),
		Password:  input.Password,
		UserType:  userType,
		Rank:      h.ranks.RankFor(0),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if userType == models.Government {
		profile.Department = strings.TrimSpace(input.Department)
	}

	if err := profile.HashPassword(); err != nil {
		h.log.Error("error hashing password", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
		return
	}

	if err := h.store.Profiles().Create(ctx, &profile); err != nil {
		if errors.Is(err, models.ErrEmailTaken) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "User with this email already exists"})
			return
		}
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, profileResponse(&profile))
}

// LoginUser handles login and sets the auth cookie
func (h *Handler) LoginUser(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	profile, err := h.store.Profiles().GetByEmail(ctx, input.Email)
	if err != nil || !profile.ComparePassword(input.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := authUtils.GenerateToken(profile.ID.Hex(), h.auth.Secret, h.auth.TokenTTL)
	if err != nil {
		h.log.Error("error generating token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
		return
	}

	// For production, don't set domain to allow cross-origin cookies
	domain := h.auth.Domain
	if h.auth.Production {
		domain = ""
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     middlewares.AuthCookie,
		Value:    token,
		MaxAge:   int(h.auth.TokenTTL.Seconds()),
		Path:     "/",
		Domain:   domain,
		Secure:   h.auth.Production,
		HttpOnly: true,
		SameSite: http.SameSiteNoneMode,
	})

	resp := profileResponse(profile)
	resp["token"] = token
	c.JSON(http.StatusOK, resp)
}

// GetMe returns the authenticated profile with its unread notification count
func (h *Handler) GetMe(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	profile, err := h.store.Profiles().Get(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		h.respondError(c, err)
		return
	}
	unread, err := h.store.Notifications().UnreadCount(ctx, userID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := profileResponse(profile)
	resp["unreadNotifications"] = unread
	c.JSON(http.StatusOK, resp)
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}

// UpdateMe edits the caller's own contact details. Account type, coins and
// rank stay untouched.
func (h *Handler) UpdateMe(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var input struct {
		FullName     *string `json:"fullName" binding:"omitempty,min=1,max=100"`
		PhoneNumber  *string `json:"phoneNumber" binding:"omitempty,max=30"`
		Address      *string `json:"address" binding:"omitempty,max=300"`
		Department   *string `json:"department" binding:"omitempty,max=100"`
		GovernmentID *string `json:"governmentId" binding:"omitempty,max=100"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	update := models.ProfileUpdate{
		FullName:     trimmed(input.FullName),
		PhoneNumber:  trimmed(input.PhoneNumber),
		Address:      trimmed(input.Address),
		Department:   trimmed(input.Department),
		GovernmentID: trimmed(input.GovernmentID),
		UpdatedAt:    time.Now(),
	}
	if update.FullName != nil && *update.FullName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fullName cannot be empty"})
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	current, err := h.store.Profiles().Get(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		h.respondError(c, err)
		return
	}
	if !current.IsGovernment() && (update.Department != nil || update.GovernmentID != nil) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "department and governmentId are for government staff only"})
		return
	}

	profile, err := h.store.Profiles().UpdateDetails(ctx, userID, update)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profileResponse(profile))
}

// LogoutUser clears the auth_token cookie
func (h *Handler) LogoutUser(c *gin.Context) {
	c.SetCookie(middlewares.AuthCookie, "", -1, "/", h.auth.Domain, h.auth.Production, true)
	c.JSON(http.StatusOK, gin.H{
		"message": "Logged out successfully",
	})
}
