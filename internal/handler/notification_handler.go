package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SalahKhadir/ecotrace-pfa-sub000/internal/models"
	"github.com/SalahKhadir/ecotrace-pfa-sub000/internal/service"
	appErrors "github.com/SalahKhadir/ecotrace-pfa-sub000/pkg/errors"
	"github.com/SalahKhadir/ecotrace-pfa-sub000/pkg/response"
)

// NotificationHandler exposes notification listing and bookkeeping endpoints.
type NotificationHandler struct {
	service      *service.NotificationService
	pollInterval time.Duration
}

// NewNotificationHandler creates a new handler. pollInterval paces the
// server-sent event stream.
func NewNotificationHandler(svc *service.NotificationService, pollInterval time.Duration) *NotificationHandler {
	return &NotificationHandler{service: svc, pollInterval: pollInterval}
}

// List godoc
// @Summary List notifications for the current user
// @Tags Notifications
// @Produce json
// @Param unread query bool false "Only unread"
// @Success 200 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	unreadOnly := c.Query("unread") == "true"
	notifications, err := h.service.List(c.Request.Context(), recipientFromClaims(claims), unreadOnly)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, notifications, nil)
}

// Stream godoc
// @Summary Stream notifications as server-sent events
// @Tags Notifications
// @Produce text/event-stream
// @Success 200 {object} response.Envelope
// @Router /notifications/stream [get]
func (h *NotificationHandler) Stream(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	poller := service.NewNotificationPoller(h.service, recipientFromClaims(claims), h.pollInterval, nil)
	updates := make(chan []models.Notification, 1)
	unsubscribe := poller.Subscribe(func(notifications []models.Notification) {
		// Drop the update when the client is still consuming the previous
		// one; the next poll carries the full set anyway.
		select {
		case updates <- notifications:
		default:
		}
	})
	defer unsubscribe()

	poller.Start(c.Request.Context())
	defer poller.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case notifications := <-updates:
			c.SSEvent("notifications", notifications)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// UnreadCount godoc
// @Summary Count unread notifications
// @Tags Notifications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /notifications/unread-count [get]
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	count, err := h.service.UnreadCount(c.Request.Context(), recipientFromClaims(claims))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"count": count}, nil)
}

// MarkRead godoc
// @Summary Mark one notification as read
// @Tags Notifications
// @Produce json
// @Param id path string true "Notification ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /notifications/{id}/read [post]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.MarkRead(c.Request.Context(), c.Param("id"), recipientFromClaims(claims)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// MarkAllRead godoc
// @Summary Mark all notifications as read
// @Tags Notifications
// @Produce json
// @Success 204 {object} response.Envelope
// @Router /notifications/read-all [post]
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.MarkAllRead(c.Request.Context(), recipientFromClaims(claims)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Delete godoc
// @Summary Delete one notification
// @Tags Notifications
// @Produce json
// @Param id path string true "Notification ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /notifications/{id} [delete]
func (h *NotificationHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), recipientFromClaims(claims)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ClearAll godoc
// @Summary Delete all notifications for the current user
// @Tags Notifications
// @Produce json
// @Success 204 {object} response.Envelope
// @Router /notifications [delete]
func (h *NotificationHandler) ClearAll(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.ClearAll(c.Request.Context(), recipientFromClaims(claims)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func recipientFromClaims(claims *models.JWTClaims) models.Recipient {
	return models.Recipient{UserID: claims.UserID, Role: claims.Role}
}
