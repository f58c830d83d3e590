package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SalahKhadir/ecotrace-pfa-sub000/internal/middleware"
	"github.com/SalahKhadir/ecotrace-pfa-sub000/internal/models"
	"github.com/SalahKhadir/ecotrace-pfa-sub000/internal/service"
)

type notificationStoreStub struct {
	notifications []models.Notification
}

func (s *notificationStoreStub) Create(ctx context.Context, notification *models.Notification) error {
	return nil
}

func (s *notificationStoreStub) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, error) {
	return s.notifications, nil
}

func (s *notificationStoreStub) CountUnread(ctx context.Context, recipient models.Recipient) (int, error) {
	return len(s.notifications), nil
}

func (s *notificationStoreStub) MarkRead(ctx context.Context, id string, recipient models.Recipient, readAt time.Time) error {
	return nil
}

func (s *notificationStoreStub) MarkAllRead(ctx context.Context, recipient models.Recipient, readAt time.Time) error {
	return nil
}

func (s *notificationStoreStub) Delete(ctx context.Context, id string, recipient models.Recipient) error {
	return nil
}

func (s *notificationStoreStub) ClearAll(ctx context.Context, recipient models.Recipient) error {
	return nil
}

// closeNotifyRecorder adds the http.CloseNotifier method that
// gin.Context.Stream requires and httptest.ResponseRecorder lacks.
type closeNotifyRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func (r *closeNotifyRecorder) CloseNotify() <-chan bool { return r.closed }

func TestNotificationStreamEmitsEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &notificationStoreStub{notifications: []models.Notification{
		{ID: "notif-1", Title: "Demande approuvée", Type: models.NotificationSuccess, Category: models.CategoryRequest, TargetRole: models.RoleParticulier},
	}}
	svc := service.NewNotificationService(store, nil, nil, service.NotificationConfig{})
	h := NewNotificationHandler(svc, 10*time.Millisecond)

	w := &closeNotifyRecorder{httptest.NewRecorder(), make(chan bool, 1)}
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(http.MethodGet, "/api/notifications/stream", nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(req.Context())
	defer cancel()
	c.Request = req.WithContext(ctx)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleParticulier})

	time.AfterFunc(100*time.Millisecond, cancel)
	h.Stream(c)

	body := w.Body.String()
	assert.Contains(t, body, "event:notifications")
	assert.Contains(t, body, "notif-1")
	assert.Contains(t, body, "Demande approuvée")
}

func TestNotificationStreamRequiresAuth(t *testing.T) {
	svc := service.NewNotificationService(&notificationStoreStub{}, nil, nil, service.NotificationConfig{})
	h := NewNotificationHandler(svc, time.Second)

	c, w := newRequestTestContext(t, nil, http.MethodGet, "/api/notifications/stream", nil)
	h.Stream(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
