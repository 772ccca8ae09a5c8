package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const notificationLimit = 10

// GetNotifications returns the caller's latest notifications
func (h *Handler) GetNotifications(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	notifications, err := h.store.Notifications().ListForUser(ctx, userID, notificationLimit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	unread, err := h.store.Notifications().UnreadCount(ctx, userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"notifications": notifications,
		"unread":        unread,
	})
}

// MarkNotificationRead flags one of the caller's notifications as read
func (h *Handler) MarkNotificationRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	if err := h.store.Notifications().MarkRead(ctx, id, userID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
}
