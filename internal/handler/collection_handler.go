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

// CollectionHandler exposes scheduling and transport endpoints.
type CollectionHandler struct {
	service *service.CollectionService
}

// NewCollectionHandler creates a new handler.
func NewCollectionHandler(svc *service.CollectionService) *CollectionHandler {
	return &CollectionHandler{service: svc}
}

// Schedule godoc
// @Summary Plan a collection for an approved request
// @Tags Collections
// @Accept json
// @Produce json
// @Param payload body dto.ScheduleCollectionPayload true "Schedule details"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /collections [post]
func (h *CollectionHandler) Schedule(c *gin.Context) {
	var payload dto.ScheduleCollectionPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid schedule payload"))
		return
	}
	collection, err := h.service.Schedule(c.Request.Context(), payload, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, collection)
}

// AssignTransporter godoc
// @Summary Assign a transporter to a planned collection
// @Tags Collections
// @Accept json
// @Produce json
// @Param id path string true "Collection ID"
// @Param payload body dto.AssignTransporterPayload true "Transporter"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /collections/{id}/assign [post]
func (h *CollectionHandler) AssignTransporter(c *gin.Context) {
	var payload dto.AssignTransporterPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "transporter_id is required"))
		return
	}
	collection, err := h.service.AssignTransporter(c.Request.Context(), c.Param("id"), payload, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, collection, nil)
}

// ConfirmReception godoc
// @Summary Confirm physical pickup (phase one)
// @Tags Collections
// @Accept json
// @Produce json
// @Param id path string true "Collection ID"
// @Param payload body dto.ConfirmReceptionPayload false "Optional notes"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /collections/{id}/reception [post]
func (h *CollectionHandler) ConfirmReception(c *gin.Context) {
	var payload dto.ConfirmReceptionPayload
	if err := c.ShouldBindJSON(&payload); err != nil && err.Error() != "EOF" {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reception payload"))
		return
	}
	collection, err := h.service.ConfirmReception(c.Request.Context(), c.Param("id"), payload, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, collection, nil)
}

// ConfirmDelivery godoc
// @Summary Confirm hand-off to the technician (phase two)
// @Tags Collections
// @Accept json
// @Produce json
// @Param id path string true "Collection ID"
// @Param payload body dto.ConfirmDeliveryPayload true "Delivery notes and extra items"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /collections/{id}/delivery [post]
func (h *CollectionHandler) ConfirmDelivery(c *gin.Context) {
	var payload dto.ConfirmDeliveryPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "delivery notes are required"))
		return
	}
	collection, err := h.service.ConfirmDelivery(c.Request.Context(), c.Param("id"), payload, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, collection, nil)
}

// Cancel godoc
// @Summary Cancel a planned or in-transit collection
// @Tags Collections
// @Accept json
// @Produce json
// @Param id path string true "Collection ID"
// @Param payload body dto.CancelCollectionPayload true "Cancellation motive"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /collections/{id}/cancel [post]
func (h *CollectionHandler) Cancel(c *gin.Context) {
	var payload dto.CancelCollectionPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "cancellation motive is required"))
		return
	}
	collection, err := h.service.Cancel(c.Request.Context(), c.Param("id"), payload, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, collection, nil)
}

// Get godoc
// @Summary Fetch a single collection
// @Tags Collections
// @Produce json
// @Param id path string true "Collection ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /collections/{id} [get]
func (h *CollectionHandler) Get(c *gin.Context) {
	collection, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, collection, nil)
}

// List godoc
// @Summary List collections
// @Description Transporters only see their own assignments
// @Tags Collections
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Success 200 {object} response.Envelope
// @Router /collections [get]
func (h *CollectionHandler) List(c *gin.Context) {
	query := dto.CollectionQuery{
		TransporterID: c.Query("transporter_id"),
		Limit:         intQuery(c, "limit"),
		Offset:        intQuery(c, "offset"),
	}
	for _, raw := range splitQuery(c.Query("status")) {
		query.Status = append(query.Status, models.CollectionStatus(strings.ToUpper(raw)))
	}
	collections, err := h.service.List(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, collections, nil)
}
