package dto

import (
	"time"

	"github.com/SalahKhadir/ecotrace-pfa-sub000/internal/models"
)

// CreateRequestPayload captures a citizen or company collection ask.
type CreateRequestPayload struct {
	WasteType    string    `json:"waste_type" form:"waste_type" validate:"required"`
	Quantity     string    `json:"quantity" form:"quantity" validate:"required"`
	Description  string    `json:"description" form:"description" validate:"required"`
	DesiredDate  time.Time `json:"desired_date" form:"desired_date" time_format:"2006-01-02" validate:"required"`
	TimeSlot     string    `json:"time_slot" form:"time_slot" validate:"required"`
	Mode         string    `json:"mode" form:"mode" validate:"required"`
	Address      string    `json:"address" form:"address" validate:"required"`
	Phone        string    `json:"phone" form:"phone" validate:"required"`
	Instructions string    `json:"instructions" form:"instructions"`
}

// ApproveRequestPayload carries the admin approval decision.
type ApproveRequestPayload struct {
	Priority string `json:"priority"`
	Notes    string `json:"notes"`
}

// RejectRequestPayload carries the admin rejection decision. Motif is mandatory.
type RejectRequestPayload struct {
	Motif string `json:"motif" validate:"required"`
	Notes string `json:"notes"`
}

// RequestQuery mirrors supported listing filters.
type RequestQuery struct {
	Status      []models.RequestStatus
	RequesterID string
	WasteType   models.WasteType
	Limit       int
	Offset      int
}
