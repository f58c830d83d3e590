package handler

import (
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/SalahKhadir/ecotrace-pfa-sub000/internal/dto"
	"github.com/SalahKhadir/ecotrace-pfa-sub000/internal/models"
	"github.com/SalahKhadir/ecotrace-pfa-sub000/internal/service"
	appErrors "github.com/SalahKhadir/ecotrace-pfa-sub000/pkg/errors"
	"github.com/SalahKhadir/ecotrace-pfa-sub000/pkg/response"
	"github.com/SalahKhadir/ecotrace-pfa-sub000/pkg/storage"
)

// RequestHandler exposes the request intake and decision endpoints.
type RequestHandler struct {
	service     *service.RequestService
	attachments *storage.LocalStorage
	maxFileSize int64
}

// NewRequestHandler creates a new handler. attachments may be nil when photo
// uploads are disabled.
func NewRequestHandler(svc *service.RequestService, attachments *storage.LocalStorage, maxFileSize int64) *RequestHandler {
	if maxFileSize <= 0 {
		maxFileSize = 5 << 20
	}
	return &RequestHandler{service: svc, attachments: attachments, maxFileSize: maxFileSize}
}

// Create godoc
// @Summary Submit a collection request
// @Description Create a new waste collection request, optionally with a photo attachment (multipart)
// @Tags Requests
// @Accept mpfd
// @Produce json
// @Param waste_type formData string true "Waste type"
// @Param quantity formData string true "Estimated quantity"
// @Param photo formData file false "Photo of the waste"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /requests [post]
func (h *RequestHandler) Create(c *gin.Context) {
	var payload dto.CreateRequestPayload
	if err := c.ShouldBind(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid request payload"))
		return
	}

	var photoPath *string
	if file, err := c.FormFile("photo"); err == nil && h.attachments != nil {
		if file.Size > h.maxFileSize {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "photo exceeds the maximum allowed size"))
			return
		}
		src, err := file.Open()
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read photo"))
			return
		}
		defer src.Close() //nolint:errcheck
		name := fmt.Sprintf("requests/%s%s", uuid.NewString(), filepath.Ext(file.Filename))
		stored, err := h.attachments.SaveStream(name, src)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store photo"))
			return
		}
		photoPath = &stored
	}

	request, err := h.service.Submit(c.Request.Context(), payload, claimsFromContext(c), photoPath)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// Approve godoc
// @Summary Approve a pending request
// @Tags Requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.ApproveRequestPayload false "Decision details"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /requests/{id}/approve [post]
func (h *RequestHandler) Approve(c *gin.Context) {
	var payload dto.ApproveRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil && err.Error() != "EOF" {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid approval payload"))
		return
	}
	request, err := h.service.Approve(c.Request.Context(), c.Param("id"), payload, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Reject godoc
// @Summary Reject a pending request
// @Tags Requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.RejectRequestPayload true "Rejection motive"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /requests/{id}/reject [post]
func (h *RequestHandler) Reject(c *gin.Context) {
	var payload dto.RejectRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "rejection motive is required"))
		return
	}
	request, err := h.service.Reject(c.Request.Context(), c.Param("id"), payload, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Get godoc
// @Summary Fetch a single request
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /requests/{id} [get]
func (h *RequestHandler) Get(c *gin.Context) {
	request, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// List godoc
// @Summary List requests
// @Description List requests visible to the caller; requesters only see their own
// @Tags Requests
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param waste_type query string false "Waste type filter"
// @Success 200 {object} response.Envelope
// @Router /requests [get]
func (h *RequestHandler) List(c *gin.Context) {
	query := dto.RequestQuery{
		RequesterID: c.Query("requester_id"),
		WasteType:   models.WasteType(strings.ToUpper(c.Query("waste_type"))),
		Limit:       intQuery(c, "limit"),
		Offset:      intQuery(c, "offset"),
	}
	for _, raw := range splitQuery(c.Query("status")) {
		query.Status = append(query.Status, models.RequestStatus(strings.ToUpper(raw)))
	}
	requests, err := h.service.List(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

// Photo godoc
// @Summary Download the photo attached to a request
// @Tags Requests
// @Produce octet-stream
// @Param id path string true "Request ID"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /requests/{id}/photo [get]
func (h *RequestHandler) Photo(c *gin.Context) {
	request, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if request.PhotoPath == nil || h.attachments == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "request has no photo"))
		return
	}
	file, err := h.attachments.Open(*request.PhotoPath)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "photo file is missing"))
		return
	}
	defer file.Close() //nolint:errcheck
	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read photo"))
		return
	}
	contentType := mime.TypeByExtension(filepath.Ext(*request.PhotoPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, info.Size(), contentType, file, nil)
}

func splitQuery(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func intQuery(c *gin.Context, key string) int {
	value, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return value
}
