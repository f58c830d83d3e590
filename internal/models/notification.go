package models

import "time"

// NotificationType classifies visual severity for consumers.
type NotificationType string

const (
	NotificationInfo    NotificationType = "INFO"
	NotificationSuccess NotificationType = "SUCCESS"
	NotificationWarning NotificationType = "WARNING"
	NotificationError   NotificationType = "ERROR"
	NotificationUrgent  NotificationType = "URGENT"
)

// NotificationCategory groups notifications by the workflow step that produced them.
type NotificationCategory string

const (
	CategoryRequest      NotificationCategory = "DEMANDE"
	CategoryCollection   NotificationCategory = "COLLECTE"
	CategoryValorization NotificationCategory = "VALORISATION"
	CategorySystem       NotificationCategory = "SYSTEME"
)

// Notification is an event record directed at a role or a specific user.
// Once read it never reverts to unread; deletion is permanent.
type Notification struct {
	ID           string               `db:"id" json:"id"`
	Title        string               `db:"title" json:"title"`
	Message      string               `db:"message" json:"message"`
	Type         NotificationType     `db:"type" json:"type"`
	Category     NotificationCategory `db:"category" json:"category"`
	TargetRole   UserRole             `db:"target_role" json:"target_role"`
	TargetUserID *string              `db:"target_user_id" json:"target_user_id,omitempty"`
	ActionEntity *string              `db:"action_entity" json:"action_entity,omitempty"`
	ActionID     *string              `db:"action_id" json:"action_id,omitempty"`
	Read         bool                 `db:"is_read" json:"read"`
	ReadAt       *time.Time           `db:"read_at" json:"read_at,omitempty"`
	Synthetic    bool                 `db:"-" json:"synthetic,omitempty"`
	CreatedAt    time.Time            `db:"created_at" json:"created_at"`
}

// Recipient identifies who a notification listing is scoped to.
type Recipient struct {
	UserID string
	Role   UserRole
}

// NotificationFilter constrains listing queries.
type NotificationFilter struct {
	Recipient  Recipient
	UnreadOnly bool
	Limit      int
	Offset     int
}
