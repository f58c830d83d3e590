package models

import "time"

// RequestStatus captures the lifecycle of a collection request.
// Transitions only move forward: EN_ATTENTE is the single entry state,
// REJETEE is terminal, APPROUVEE may still advance to PLANIFIEE when a
// collection is scheduled against the request.
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "EN_ATTENTE"
	RequestStatusApproved  RequestStatus = "APPROUVEE"
	RequestStatusRejected  RequestStatus = "REJETEE"
	RequestStatusScheduled RequestStatus = "PLANIFIEE"
)

// CanTransition reports whether a request may move to the target status.
func (s RequestStatus) CanTransition(target RequestStatus) bool {
	switch s {
	case RequestStatusPending:
		return target == RequestStatusApproved || target == RequestStatusRejected
	case RequestStatusApproved:
		return target == RequestStatusScheduled
	default:
		return false
	}
}

// RequestPriority set by the reviewing administrator.
type RequestPriority string

const (
	PriorityLow    RequestPriority = "BASSE"
	PriorityNormal RequestPriority = "NORMALE"
	PriorityHigh   RequestPriority = "HAUTE"
)

// WasteType enumerates accepted waste categories.
type WasteType string

const (
	WasteTypeElectronic WasteType = "ELECTRONIQUE"
	WasteTypePlastic    WasteType = "PLASTIQUE"
	WasteTypePaper      WasteType = "PAPIER"
	WasteTypeMetal      WasteType = "METAL"
	WasteTypeGlass      WasteType = "VERRE"
	WasteTypeOrganic    WasteType = "ORGANIQUE"
	WasteTypeOther      WasteType = "AUTRE"
)

// CollectionMode distinguishes on-site pickup from drop-off.
type CollectionMode string

const (
	ModeOnSite  CollectionMode = "A_DOMICILE"
	ModeDropOff CollectionMode = "DEPOT"
)

// Request is a submitted ask for waste collection awaiting admin decision.
type Request struct {
	ID              string          `db:"id" json:"id"`
	Reference       string          `db:"reference" json:"reference"`
	RequesterID     string          `db:"requester_id" json:"requester_id"`
	WasteType       WasteType       `db:"waste_type" json:"waste_type"`
	Quantity        string          `db:"quantity" json:"quantity"`
	Description     string          `db:"description" json:"description"`
	DesiredDate     time.Time       `db:"desired_date" json:"desired_date"`
	TimeSlot        string          `db:"time_slot" json:"time_slot"`
	Mode            CollectionMode  `db:"mode" json:"mode"`
	Address         string          `db:"address" json:"address"`
	Phone           string          `db:"phone" json:"phone"`
	Instructions    string          `db:"instructions" json:"instructions"`
	PhotoPath       *string         `db:"photo_path" json:"photo_path,omitempty"`
	Status          RequestStatus   `db:"status" json:"status"`
	RejectionReason *string         `db:"rejection_reason" json:"rejection_reason,omitempty"`
	AdminNotes      *string         `db:"admin_notes" json:"admin_notes,omitempty"`
	Priority        RequestPriority `db:"priority" json:"priority"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	DecidedAt       *time.Time      `db:"decided_at" json:"decided_at,omitempty"`
}

// RequestFilter constrains listing queries.
type RequestFilter struct {
	Status      []RequestStatus
	RequesterID string
	WasteType   WasteType
	Priority    RequestPriority
	Limit       int
	Offset      int
}
