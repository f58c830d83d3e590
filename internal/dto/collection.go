package dto

import (
	"time"

	"github.com/SalahKhadir/ecotrace-pfa-sub000/internal/models"
)

// ScheduleCollectionPayload converts an approved request into a planned pickup.
// Transporter assignment may be deferred.
type ScheduleCollectionPayload struct {
	RequestID     string    `json:"request_id" validate:"required"`
	Date          time.Time `json:"date" validate:"required"`
	TransporterID *string   `json:"transporter_id"`
	Instructions  string    `json:"instructions"`
}

// AssignTransporterPayload binds a transporter to a planned collection.
type AssignTransporterPayload struct {
	TransporterID string `json:"transporter_id" validate:"required"`
}

// ConfirmReceptionPayload marks physical pickup by the assigned transporter.
type ConfirmReceptionPayload struct {
	Notes string `json:"notes"`
}

// ExtraItemPayload describes supplementary waste discovered on-site.
type ExtraItemPayload struct {
	Type      string  `json:"type" validate:"required"`
	Category  string  `json:"category"`
	Quantity  float64 `json:"quantity" validate:"required,gt=0"`
	Condition string  `json:"condition"`
}

// ConfirmDeliveryPayload marks hand-off to the technician. Notes are mandatory.
type ConfirmDeliveryPayload struct {
	Notes          string             `json:"notes" validate:"required"`
	ActualQuantity *float64           `json:"actual_quantity"`
	ExtraItems     []ExtraItemPayload `json:"extra_items"`
}

// CancelCollectionPayload records the cancellation motive.
type CancelCollectionPayload struct {
	Motif string `json:"motif" validate:"required"`
}

// CollectionQuery mirrors supported listing filters.
type CollectionQuery struct {
	Status        []models.CollectionStatus
	TransporterID string
	Limit         int
	Offset        int
}
