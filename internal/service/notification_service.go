package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/SalahKhadir/ecotrace-pfa-sub000/internal/models"
	appErrors "github.com/SalahKhadir/ecotrace-pfa-sub000/pkg/errors"
	"github.com/SalahKhadir/ecotrace-pfa-sub000/pkg/jobs"
)

type notificationStore interface {
	Create(ctx context.Context, notification *models.Notification) error
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, error)
	CountUnread(ctx context.Context, recipient models.Recipient) (int, error)
	MarkRead(ctx context.Context, id string, recipient models.Recipient, readAt time.Time) error
	MarkAllRead(ctx context.Context, recipient models.Recipient, readAt time.Time) error
	Delete(ctx context.Context, id string, recipient models.Recipient) error
	ClearAll(ctx context.Context, recipient models.Recipient) error
}

// NotificationConfig tunes delivery behaviour.
type NotificationConfig struct {
	SyntheticFallback bool
	CacheTTL          time.Duration
	QueueWorkers      int
	QueueRetries      int
}

// NotificationService delivers one notification per relevant role or user on
// every workflow transition and serves the read/unread bookkeeping.
type NotificationService struct {
	repo   notificationStore
	cache  *CacheService
	queue  *jobs.Queue
	logger *zap.Logger
	config NotificationConfig
}

// NewNotificationService constructs the service and its dispatch queue.
func NewNotificationService(repo notificationStore, cache *CacheService, logger *zap.Logger, config NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = time.Minute
	}
	s := &NotificationService{repo: repo, cache: cache, logger: logger, config: config}
	s.queue = jobs.NewQueue("notifications", s.handleDispatch, jobs.QueueConfig{
		Workers:    config.QueueWorkers,
		MaxRetries: config.QueueRetries,
		Logger:     logger,
	})
	return s
}

// Start launches the asynchronous dispatch workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the dispatch workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Dispatch delivers a notification. Delivery goes through the worker queue so
// workflow transitions never block on the notification write; when the queue
// is not running the write happens inline.
func (s *NotificationService) Dispatch(ctx context.Context, notification *models.Notification) {
	if notification == nil {
		return
	}
	if err := s.queue.Enqueue(jobs.Job{Type: "notification", Payload: notification}); err != nil {
		if createErr := s.create(ctx, notification); createErr != nil {
			s.logger.Warn("notification dispatch failed",
				zap.String("title", notification.Title), zap.Error(createErr))
		}
	}
}

func (s *NotificationService) handleDispatch(ctx context.Context, job jobs.Job) error {
	notification, ok := job.Payload.(*models.Notification)
	if !ok {
		s.logger.Warn("unexpected notification job payload", zap.String("job_id", job.ID))
		return nil
	}
	return s.create(ctx, notification)
}

func (s *NotificationService) create(ctx context.Context, notification *models.Notification) error {
	if err := s.repo.Create(ctx, notification); err != nil {
		return err
	}
	s.invalidate(ctx, notification)
	return nil
}

// List returns the recipient's notifications, newest first. When the store
// is unreachable and the synthetic fallback is enabled, a fixed role-specific
// example set marked Synthetic=true is served instead of the error.
func (s *NotificationService) List(ctx context.Context, recipient models.Recipient, unreadOnly bool) ([]models.Notification, error) {
	notifications, err := s.repo.List(ctx, models.NotificationFilter{Recipient: recipient, UnreadOnly: unreadOnly})
	if err != nil {
		if s.config.SyntheticFallback {
			s.logger.Warn("notification store unavailable, serving synthetic fallback",
				zap.String("user_id", recipient.UserID), zap.Error(err))
			return syntheticNotifications(recipient.Role), nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "notifications unavailable")
	}
	return notifications, nil
}

// UnreadCount returns the number of unread notifications, cached per user.
func (s *NotificationService) UnreadCount(ctx context.Context, recipient models.Recipient) (int, error) {
	key := unreadCountKey(recipient.UserID)
	var cached int
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}
	count, err := s.repo.CountUnread(ctx, recipient)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count unread notifications")
	}
	if err := s.cache.Set(ctx, key, count, s.config.CacheTTL); err != nil {
		s.logger.Debug("unread count cache write failed", zap.Error(err))
	}
	return count, nil
}

// MarkRead flags a notification as read. Re-marking is a no-op; ids that are
// unknown or addressed to another recipient report NOT_FOUND.
func (s *NotificationService) MarkRead(ctx context.Context, id string, recipient models.Recipient) error {
	if err := s.repo.MarkRead(ctx, id, recipient, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	s.invalidateRecipient(ctx, recipient)
	return nil
}

// MarkAllRead flags every unread notification for the recipient. Idempotent.
func (s *NotificationService) MarkAllRead(ctx context.Context, recipient models.Recipient) error {
	if err := s.repo.MarkAllRead(ctx, recipient, time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notifications read")
	}
	s.invalidateRecipient(ctx, recipient)
	return nil
}

// Delete removes a notification permanently. Ids that are unknown or
// addressed to another recipient report NOT_FOUND.
func (s *NotificationService) Delete(ctx context.Context, id string, recipient models.Recipient) error {
	if err := s.repo.Delete(ctx, id, recipient); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete notification")
	}
	s.invalidateRecipient(ctx, recipient)
	return nil
}

// ClearAll removes every notification for the recipient. Idempotent.
func (s *NotificationService) ClearAll(ctx context.Context, recipient models.Recipient) error {
	if err := s.repo.ClearAll(ctx, recipient); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear notifications")
	}
	s.invalidateRecipient(ctx, recipient)
	return nil
}

func (s *NotificationService) invalidate(ctx context.Context, notification *models.Notification) {
	if notification.TargetUserID != nil {
		_ = s.cache.Invalidate(ctx, unreadCountKey(*notification.TargetUserID))
		return
	}
	// Role broadcasts can affect any user holding the role; drop all counters.
	_ = s.cache.Invalidate(ctx, "notifications:unread:*")
}

func (s *NotificationService) invalidateRecipient(ctx context.Context, recipient models.Recipient) {
	_ = s.cache.Invalidate(ctx, unreadCountKey(recipient.UserID))
}

func unreadCountKey(userID string) string {
	return fmt.Sprintf("notifications:unread:%s", userID)
}

// syntheticNotifications returns the fixed role-specific example set used when
// the store is unreachable. Entries are clearly marked Synthetic.
func syntheticNotifications(role models.UserRole) []models.Notification {
	now := time.Now().UTC()
	base := models.Notification{
		Type:       models.NotificationInfo,
		Category:   models.CategorySystem,
		TargetRole: role,
		Synthetic:  true,
		CreatedAt:  now,
	}
	var out []models.Notification
	switch role {
	case models.RoleAdmin:
		n := base
		n.ID = "synthetic-admin-1"
		n.Title = "Demandes en attente"
		n.Message = "Des demandes de collecte attendent votre validation."
		out = append(out, n)
	case models.RoleLogistique:
		n := base
		n.ID = "synthetic-logistique-1"
		n.Title = "Demandes approuvées"
		n.Message = "Des demandes approuvées attendent une planification."
		out = append(out, n)
	case models.RoleTransporteur:
		n := base
		n.ID = "synthetic-transporteur-1"
		n.Title = "Collectes planifiées"
		n.Message = "Des collectes planifiées attendent une prise en charge."
		out = append(out, n)
	case models.RoleTechnicien:
		n := base
		n.ID = "synthetic-technicien-1"
		n.Title = "Déchets reçus"
		n.Message = "Des déchets livrés attendent une valorisation."
		out = append(out, n)
	default:
		n := base
		n.ID = "synthetic-requester-1"
		n.Title = "Suivi de vos demandes"
		n.Message = "Consultez l'état de vos demandes de collecte."
		out = append(out, n)
	}
	return out
}
