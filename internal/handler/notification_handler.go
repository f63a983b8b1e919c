package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"kickspot/internal/model"
	"kickspot/internal/service"
)

type NotificationHandler struct {
	service *service.NotificationService
	logger  *zap.Logger
}

func NewNotificationHandler(svc *service.NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{service: svc, logger: logger}
}

// List 返回当前用户的通知分页
// GET /api/v1/notifications?page=1&page_size=20&unread_only=true
func (h *NotificationHandler) List(c *gin.Context) {
	r, ok := mustRecipient(c)
	if !ok {
		return
	}

	page, err := parsePage(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	inbox, err := h.service.List(c.Request.Context(), r, page)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": inbox.Items,
		"page":          inbox.Page,
		"page_size":     inbox.PageSize,
		"total":         inbox.Total,
		"unread_count":  inbox.UnreadCount,
		"latest_id":     inbox.LatestID,
	})
}

// UnreadCount GET /api/v1/notifications/unread-count
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	r, ok := mustRecipient(c)
	if !ok {
		return
	}
	count, err := h.service.UnreadCount(c.Request.Context(), r)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}

// MarkRead PATCH /api/v1/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	r, ok := mustRecipient(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.service.MarkRead(c.Request.Context(), r, id); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "read", "id": id})
}

// MarkAllRead PATCH /api/v1/notifications/mark-all-read
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	r, ok := mustRecipient(c)
	if !ok {
		return
	}
	updated, err := h.service.MarkAllRead(c.Request.Context(), r)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

// Delete DELETE /api/v1/notifications/:id
func (h *NotificationHandler) Delete(c *gin.Context) {
	r, ok := mustRecipient(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), r, id); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted", "id": id})
}

type sendRequest struct {
	RecipientRole string         `json:"recipient_role" binding:"required"`
	RecipientID   int64          `json:"recipient_id" binding:"required"`
	Type          model.Type     `json:"type" binding:"required"`
	Title         string         `json:"title"`
	Message       string         `json:"message"`
	Priority      model.Priority `json:"priority"`
	Metadata      model.Metadata `json:"metadata"`
	OrderID       *int64         `json:"order_id"`
	ProductID     *int64         `json:"product_id"`
}

// Send 管理员手动发送通知
// POST /api/v1/notifications
func (h *NotificationHandler) Send(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	n, err := h.service.Send(c.Request.Context(), model.Draft{
		Recipient: model.Recipient{Role: model.Role(req.RecipientRole), ID: req.RecipientID},
		Type:      req.Type,
		Title:     req.Title,
		Message:   req.Message,
		Priority:  req.Priority,
		Metadata:  req.Metadata,
		OrderID:   req.OrderID,
		ProductID: req.ProductID,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, n)
}

func parsePage(c *gin.Context) (model.Page, error) {
	var p model.Page
	var err error
	if v := c.Query("page"); v != "" {
		if p.Page, err = strconv.Atoi(v); err != nil {
			return p, &model.ValidationError{Field: "page", Reason: "must be an integer"}
		}
		if err := p.Validate(); err != nil {
			return p, err
		}
	}
	if v := c.Query("page_size"); v != "" {
		if p.PageSize, err = strconv.Atoi(v); err != nil {
			return p, &model.ValidationError{Field: "page_size", Reason: "must be an integer"}
		}
	}
	if v := c.Query("unread_only"); v != "" {
		if p.UnreadOnly, err = strconv.ParseBool(v); err != nil {
			return p, &model.ValidationError{Field: "unread_only", Reason: "must be a boolean"}
		}
	}
	return p.Normalize(), nil
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id parameter"})
		return 0, false
	}
	return id, true
}
