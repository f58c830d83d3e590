package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/SalahKhadir/ecotrace-pfa-sub000/internal/models"
)

const notificationColumns = `id, title, message, type, category, target_role, target_user_id,
       action_entity, action_id, is_read, read_at, created_at`

// NotificationRepository persists workflow notifications.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a new notification row.
func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO notifications
	(id, title, message, type, category, target_role, target_user_id, action_entity, action_id, is_read, read_at, created_at)
	VALUES (:id, :title, :message, :type, :category, :target_role, :target_user_id, :action_entity, :action_id, :is_read, :read_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":             notification.ID,
		"title":          notification.Title,
		"message":        notification.Message,
		"type":           notification.Type,
		"category":       notification.Category,
		"target_role":    notification.TargetRole,
		"target_user_id": notification.TargetUserID,
		"action_entity":  notification.ActionEntity,
		"action_id":      notification.ActionID,
		"is_read":        notification.Read,
		"read_at":        notification.ReadAt,
		"created_at":     notification.CreatedAt,
	}); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// recipientClause scopes rows to notifications addressed to the user directly
// or broadcast to the user's role.
func recipientClause(args *[]interface{}, recipient models.Recipient) string {
	*args = append(*args, recipient.UserID)
	userArg := len(*args)
	*args = append(*args, recipient.Role)
	roleArg := len(*args)
	return fmt.Sprintf("(target_user_id = $%d OR (target_user_id IS NULL AND target_role = $%d))", userArg, roleArg)
}

// List returns notifications for the recipient, newest first.
func (r *NotificationRepository) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, error) {
	args := make([]interface{}, 0, 3)
	conditions := []string{recipientClause(&args, filter.Recipient)}
	if filter.UnreadOnly {
		conditions = append(conditions, "is_read = FALSE")
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM notifications WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		notificationColumns, strings.Join(conditions, " AND "), limit, offset)
	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, args...); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, nil
}

// CountUnread returns the number of unread notifications for the recipient.
func (r *NotificationRepository) CountUnread(ctx context.Context, recipient models.Recipient) (int, error) {
	args := make([]interface{}, 0, 2)
	clause := recipientClause(&args, recipient)
	query := fmt.Sprintf("SELECT COUNT(*) FROM notifications WHERE %s AND is_read = FALSE", clause)
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead flags a notification as read. Re-marking an already-read row is a
// no-op; an unknown id, or one addressed to someone else, yields sql.ErrNoRows.
func (r *NotificationRepository) MarkRead(ctx context.Context, id string, recipient models.Recipient, readAt time.Time) error {
	args := []interface{}{id, readAt}
	clause := recipientClause(&args, recipient)
	query := fmt.Sprintf("UPDATE notifications SET is_read = TRUE, read_at = COALESCE(read_at, $2) WHERE id = $1 AND %s", clause)
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check notification read rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkAllRead flags every unread notification for the recipient.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, recipient models.Recipient, readAt time.Time) error {
	args := []interface{}{readAt}
	clause := recipientClause(&args, recipient)
	query := fmt.Sprintf("UPDATE notifications SET is_read = TRUE, read_at = COALESCE(read_at, $1) WHERE %s AND is_read = FALSE", clause)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	return nil
}

// Delete removes a notification permanently. An unknown id, or one addressed
// to someone else, yields sql.ErrNoRows.
func (r *NotificationRepository) Delete(ctx context.Context, id string, recipient models.Recipient) error {
	args := []interface{}{id}
	clause := recipientClause(&args, recipient)
	query := fmt.Sprintf("DELETE FROM notifications WHERE id = $1 AND %s", clause)
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check notification delete rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ClearAll removes every notification for the recipient.
func (r *NotificationRepository) ClearAll(ctx context.Context, recipient models.Recipient) error {
	args := make([]interface{}, 0, 2)
	clause := recipientClause(&args, recipient)
	query := fmt.Sprintf("DELETE FROM notifications WHERE %s", clause)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clear notifications: %w", err)
	}
	return nil
}
