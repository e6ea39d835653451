package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"pwashop/middleware"
	"pwashop/models"
	"pwashop/services/backgroundsync"
	"pwashop/services/lifecycle"
	"pwashop/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Lifecycle is the slice of *lifecycle.Controller the handlers drive.
type Lifecycle interface {
	Run(ctx context.Context) error
	Status(ctx context.Context) lifecycle.Status
}

// SyncQueue is the slice of *backgroundsync.Syncer the handlers drive.
type SyncQueue interface {
	Supported() bool
	Register(ctx context.Context, userID, tag string) error
	Queue(ctx context.Context, userID, tag string, action models.SyncAction) (string, bool, error)
	Pending(ctx context.Context, userID, tag string) (int64, error)
}

// OfflineStore is the slice of *localstore.Store the handlers drive.
type OfflineStore interface {
	SetProducts(ctx context.Context, userID string, products []json.RawMessage) error
	Clear(ctx context.Context, userID string) error
}

// ServiceWorkerHandler exposes lifecycle, background sync and client
// persistence under /sw. Sync and persistence belong to the caller set by
// JWTAuthUserMiddleware.
type ServiceWorkerHandler struct {
	Lifecycle Lifecycle
	Sync      SyncQueue
	Offline   OfflineStore
}

func NewServiceWorkerHandler(lc Lifecycle, sync SyncQueue, offline OfflineStore) *ServiceWorkerHandler {
	return &ServiceWorkerHandler{Lifecycle: lc, Sync: sync, Offline: offline}
}

func callerID(c *gin.Context) (string, bool) {
	userID := c.GetString(middleware.ContextUserID)
	if userID == "" {
		utils.JSONError(c, http.StatusUnauthorized, "Unauthorized", "")
		return "", false
	}
	return userID, true
}

func (h *ServiceWorkerHandler) StatusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.Lifecycle.Status(c.Request.Context()))
}

// UpdateHandler reinstalls and activates the configured cache version.
func (h *ServiceWorkerHandler) UpdateHandler(c *gin.Context) {
	if err := h.Lifecycle.Run(c.Request.Context()); err != nil {
		getLogger(c).Error("Cache update failed", zap.Error(err))
		utils.JSONError(c, http.StatusBadGateway, "Cache update failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, h.Lifecycle.Status(c.Request.Context()))
}

func (h *ServiceWorkerHandler) RegisterSyncHandler(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	tag := c.Param("tag")
	if !h.Sync.Supported() {
		c.JSON(http.StatusOK, gin.H{"tag": tag, "registered": false})
		return
	}
	if err := h.Sync.Register(c.Request.Context(), userID, tag); err != nil {
		// Registration is best effort.
		getLogger(c).Warn("Background sync registration failed", zap.String("tag", tag), zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"tag": tag, "registered": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tag": tag, "registered": true})
}

type queueActionRequest struct {
	Method string          `json:"method" binding:"required"`
	Path   string          `json:"path" binding:"required"`
	Header http.Header     `json:"header"`
	Body   json.RawMessage `json:"body"`
}

// QueueActionHandler stores a mutation for replay. The replay carries the
// caller's own Authorization header, never one from the body.
func (h *ServiceWorkerHandler) QueueActionHandler(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	tag := c.Param("tag")
	var req queueActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}

	header := req.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	header.Set("Authorization", c.GetHeader("Authorization"))
	action := models.SyncAction{
		IdempotencyKey: c.GetHeader(backgroundsync.IdempotencyHeader),
		Method:         req.Method,
		Path:           req.Path,
		Header:         header,
		Body:           req.Body,
	}
	key, added, err := h.Sync.Queue(c.Request.Context(), userID, tag, action)
	if errors.Is(err, backgroundsync.ErrInvalidAction) {
		utils.JSONError(c, http.StatusBadRequest, "Invalid sync action", err.Error())
		return
	}
	if err != nil {
		getLogger(c).Error("Failed to queue sync action", zap.String("tag", tag), zap.Error(err))
		utils.JSONError(c, http.StatusInternalServerError, "Failed to queue sync action", "")
		return
	}

	pending, _ := h.Sync.Pending(c.Request.Context(), userID, tag)
	status := http.StatusAccepted
	if !added {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"idempotencyKey": key, "queued": added, "pending": pending})
}

func (h *ServiceWorkerHandler) SetProductsHandler(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	var products []json.RawMessage
	if err := c.ShouldBindJSON(&products); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}
	if err := h.Offline.SetProducts(c.Request.Context(), userID, products); err != nil {
		getLogger(c).Error("Failed to persist offline products", zap.Error(err))
		utils.JSONError(c, http.StatusInternalServerError, "Failed to store products", "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"stored": len(products)})
}

func (h *ServiceWorkerHandler) ClearOfflineHandler(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	if err := h.Offline.Clear(c.Request.Context(), userID); err != nil {
		getLogger(c).Error("Failed to clear offline data", zap.Error(err))
		utils.JSONError(c, http.StatusInternalServerError, "Failed to clear offline data", "")
		return
	}
	c.Status(http.StatusNoContent)
}
