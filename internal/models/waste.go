package models

import "time"

// WasteItemStatus tracks technician processing of a delivered batch:
// NOUVEAU -> EN_COURS -> TERMINE. TERMINE is immutable.
type WasteItemStatus string

const (
	WasteStatusNew        WasteItemStatus = "NOUVEAU"
	WasteStatusProcessing WasteItemStatus = "EN_COURS"
	WasteStatusProcessed  WasteItemStatus = "TERMINE"
)

// CanTransition reports whether a waste item may move to the target status.
func (s WasteItemStatus) CanTransition(target WasteItemStatus) bool {
	switch s {
	case WasteStatusNew:
		return target == WasteStatusProcessing
	case WasteStatusProcessing:
		return target == WasteStatusProcessed
	default:
		return false
	}
}

// WasteOutcome is the valorization decision recorded by the technician.
type WasteOutcome string

const (
	OutcomePending WasteOutcome = "EN_ATTENTE"
	OutcomeRecycle WasteOutcome = "A_RECYCLER"
	OutcomeDestroy WasteOutcome = "A_DETRUIRE"
)

// WasteItem is a physical batch produced when a collection is delivered.
type WasteItem struct {
	ID                string          `db:"id" json:"id"`
	CollectionID      string          `db:"collection_id" json:"collection_id"`
	Type              WasteType       `db:"type" json:"type"`
	Category          string          `db:"category" json:"category"`
	Quantity          float64         `db:"quantity" json:"quantity"`
	Condition         string          `db:"condition" json:"condition"`
	Status            WasteItemStatus `db:"status" json:"status"`
	Outcome           WasteOutcome    `db:"outcome" json:"outcome"`
	QuantityValorized *float64        `db:"quantity_valorized" json:"quantity_valorized,omitempty"`
	YieldPct          *float64        `db:"yield_pct" json:"yield_pct,omitempty"`
	TechnicianID      *string         `db:"technician_id" json:"technician_id,omitempty"`
	Notes             *string         `db:"notes" json:"notes,omitempty"`
	ProcessedAt       *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
}

// WasteItemFilter constrains listing queries.
type WasteItemFilter struct {
	Status       []WasteItemStatus
	CollectionID string
	TechnicianID string
	Limit        int
	Offset       int
}
