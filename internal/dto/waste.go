package dto

import "github.com/SalahKhadir/ecotrace-pfa-sub000/internal/models"

// FinalizeValorizationPayload records the terminal processing decision.
type FinalizeValorizationPayload struct {
	Outcome           string   `json:"outcome" validate:"required"`
	QuantityValorized *float64 `json:"quantity_valorized"`
	YieldPct          *float64 `json:"yield_pct" validate:"omitempty,gte=0,lte=100"`
	Notes             string   `json:"notes"`
}

// WasteItemQuery mirrors supported listing filters.
type WasteItemQuery struct {
	Status       []models.WasteItemStatus
	CollectionID string
	Limit        int
	Offset       int
}
