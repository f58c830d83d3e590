package models

import "time"

// CollectionStatus follows the two-phase transport handshake:
// PLANIFIEE -> EN_COURS (receipt confirmed) -> TERMINEE (delivery confirmed),
// with ANNULEE reachable from the two non-terminal states.
type CollectionStatus string

const (
	CollectionStatusPlanned   CollectionStatus = "PLANIFIEE"
	CollectionStatusInTransit CollectionStatus = "EN_COURS"
	CollectionStatusCompleted CollectionStatus = "TERMINEE"
	CollectionStatusCancelled CollectionStatus = "ANNULEE"
)

// CanTransition reports whether a collection may move to the target status.
func (s CollectionStatus) CanTransition(target CollectionStatus) bool {
	switch s {
	case CollectionStatusPlanned:
		return target == CollectionStatusInTransit || target == CollectionStatusCancelled
	case CollectionStatusInTransit:
		return target == CollectionStatusCompleted || target == CollectionStatusCancelled
	default:
		return false
	}
}

// Collection is a scheduled pickup derived from exactly one approved request.
type Collection struct {
	ID            string           `db:"id" json:"id"`
	Reference     string           `db:"reference" json:"reference"`
	RequestID     string           `db:"request_id" json:"request_id"`
	ScheduledDate time.Time        `db:"scheduled_date" json:"scheduled_date"`
	TransporterID *string          `db:"transporter_id" json:"transporter_id,omitempty"`
	Address       string           `db:"address" json:"address"`
	Status        CollectionStatus `db:"status" json:"status"`
	Instructions  string           `db:"instructions" json:"instructions"`
	CancelReason  *string          `db:"cancel_reason" json:"cancel_reason,omitempty"`
	ReceivedAt    *time.Time       `db:"received_at" json:"received_at,omitempty"`
	DeliveredAt   *time.Time       `db:"delivered_at" json:"delivered_at,omitempty"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
}

// CollectionFilter constrains listing queries.
type CollectionFilter struct {
	Status        []CollectionStatus
	TransporterID string
	RequestID     string
	Limit         int
	Offset        int
}
