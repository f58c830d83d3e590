package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/SalahKhadir/ecotrace-pfa-sub000/internal/dto"
	"github.com/SalahKhadir/ecotrace-pfa-sub000/internal/models"
	"github.com/SalahKhadir/ecotrace-pfa-sub000/internal/service"
	appErrors "github.com/SalahKhadir/ecotrace-pfa-sub000/pkg/errors"
	"github.com/SalahKhadir/ecotrace-pfa-sub000/pkg/response"
)

// WasteHandler exposes the technician valorization endpoints.
type WasteHandler struct {
	service *service.WasteService
}

// NewWasteHandler creates a new handler.
func NewWasteHandler(svc *service.WasteService) *WasteHandler {
	return &WasteHandler{service: svc}
}

// Start godoc
// @Summary Start processing a waste item
// @Tags Valorization
// @Produce json
// @Param id path string true "Waste item ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /waste-items/{id}/start [post]
func (h *WasteHandler) Start(c *gin.Context) {
	item, err := h.service.Start(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Finalize godoc
// @Summary Record the valorization outcome
// @Tags Valorization
// @Accept json
// @Produce json
// @Param id path string true "Waste item ID"
// @Param payload body dto.FinalizeValorizationPayload true "Outcome"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /waste-items/{id}/finalize [post]
func (h *WasteHandler) Finalize(c *gin.Context) {
	var payload dto.FinalizeValorizationPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid valorization payload"))
		return
	}
	item, err := h.service.Finalize(c.Request.Context(), c.Param("id"), payload, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Get godoc
// @Summary Fetch a single waste item
// @Tags Valorization
// @Produce json
// @Param id path string true "Waste item ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /waste-items/{id} [get]
func (h *WasteHandler) Get(c *gin.Context) {
	item, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// List godoc
// @Summary List waste items
// @Tags Valorization
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param collection_id query string false "Filter by collection"
// @Success 200 {object} response.Envelope
// @Router /waste-items [get]
func (h *WasteHandler) List(c *gin.Context) {
	query := dto.WasteItemQuery{
		CollectionID: c.Query("collection_id"),
		Limit:        intQuery(c, "limit"),
		Offset:       intQuery(c, "offset"),
	}
	for _, raw := range splitQuery(c.Query("status")) {
		query.Status = append(query.Status, models.WasteItemStatus(strings.ToUpper(raw)))
	}
	items, err := h.service.List(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}
