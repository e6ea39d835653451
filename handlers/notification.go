package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"pwashop/database/repository"
	"pwashop/middleware"
	"pwashop/models"
	"pwashop/services/notification"
	"pwashop/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NotificationHandler serves /api/notifications.
type NotificationHandler struct {
	Service notification.NotificationService
}

func NewNotificationHandler(svc notification.NotificationService) *NotificationHandler {
	return &NotificationHandler{Service: svc}
}

type subscribeRequest struct {
	Subscription models.PushSubscription `json:"subscription"`
}

func (h *NotificationHandler) VapidPublicKeyHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"publicKey": h.Service.VapidPublicKey()})
}

func (h *NotificationHandler) SubscribeHandler(c *gin.Context) {
	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}

	err := h.Service.SaveSubscription(c.Request.Context(), c.GetString(middleware.ContextUserID), req.Subscription)
	switch {
	case errors.Is(err, notification.ErrInvalidSubscription):
		utils.JSONError(c, http.StatusBadRequest, "Invalid push subscription", "")
		return
	case errors.Is(err, notification.ErrUserNotFound):
		utils.JSONError(c, http.StatusNotFound, "User not found", "")
		return
	case err != nil:
		getLogger(c).Error("Failed to save push subscription", zap.Error(err))
		utils.JSONError(c, http.StatusInternalServerError, "Failed to save push subscription", "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Push subscription saved successfully"})
}

func (h *NotificationHandler) UnsubscribeHandler(c *gin.Context) {
	if err := h.Service.RemoveSubscription(c.Request.Context(), c.GetString(middleware.ContextUserID)); err != nil {
		getLogger(c).Error("Failed to remove push subscription", zap.Error(err))
		utils.JSONError(c, http.StatusInternalServerError, "Failed to remove push subscription", "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Push subscription removed successfully"})
}

func (h *NotificationHandler) SendHandler(c *gin.Context) {
	caller, ok := middleware.CurrentUser(c)
	if !ok {
		utils.JSONError(c, http.StatusUnauthorized, "Unauthorized", "")
		return
	}

	var req notification.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}

	err := h.Service.SendToUser(c.Request.Context(), caller, req)
	switch {
	case errors.Is(err, notification.ErrUserNotFound):
		utils.JSONError(c, http.StatusNotFound, "User not found", "")
		return
	case errors.Is(err, notification.ErrNotSubscribed):
		utils.JSONError(c, http.StatusBadRequest, "User not subscribed to push notifications", "")
		return
	case err != nil:
		getLogger(c).Error("Error sending push notification", zap.Error(err))
		utils.JSONError(c, http.StatusInternalServerError, "Failed to send push notification", "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Push notification sent successfully"})
}

func (h *NotificationHandler) BroadcastHandler(c *gin.Context) {
	var req notification.BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}

	res, err := h.Service.Broadcast(c.Request.Context(), req)
	if err != nil {
		getLogger(c).Error("Broadcast failed", zap.Error(err))
		utils.JSONError(c, http.StatusInternalServerError, "Broadcast failed", "")
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *NotificationHandler) ListHandler(c *gin.Context) {
	page, _ := strconv.ParseInt(c.DefaultQuery("page", "1"), 10, 64)
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)
	opts := repository.NotificationListOptions{
		Page:       page,
		Limit:      limit,
		UnreadOnly: c.Query("unreadOnly") == "true",
	}

	res, err := h.Service.List(c.Request.Context(), c.GetString(middleware.ContextUserID), opts)
	if err != nil {
		getLogger(c).Error("Failed to list notifications", zap.Error(err))
		utils.JSONError(c, http.StatusInternalServerError, "Failed to fetch notifications", "")
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *NotificationHandler) MarkReadHandler(c *gin.Context) {
	n, err := h.Service.MarkRead(c.Request.Context(), c.GetString(middleware.ContextUserID), c.Param("id"))
	if errors.Is(err, notification.ErrNotificationMissing) {
		utils.JSONError(c, http.StatusNotFound, "Notification not found", "")
		return
	}
	if err != nil {
		getLogger(c).Error("Failed to mark notification read", zap.Error(err))
		utils.JSONError(c, http.StatusInternalServerError, "Failed to mark notification as read", "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read", "notification": n})
}

func (h *NotificationHandler) MarkAllReadHandler(c *gin.Context) {
	updated, err := h.Service.MarkAllRead(c.Request.Context(), c.GetString(middleware.ContextUserID))
	if err != nil {
		getLogger(c).Error("Failed to mark notifications read", zap.Error(err))
		utils.JSONError(c, http.StatusInternalServerError, "Failed to mark notifications as read", "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "All notifications marked as read", "updated": updated})
}
