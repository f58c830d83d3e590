package handler

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/SalahKhadir/ecotrace-pfa-sub000/internal/models"
	"github.com/SalahKhadir/ecotrace-pfa-sub000/internal/service"
	"github.com/SalahKhadir/ecotrace-pfa-sub000/pkg/response"
)

// ReportHandler serves downloadable operational summaries.
type ReportHandler struct {
	service *service.ReportService
}

// NewReportHandler creates a new handler.
func NewReportHandler(svc *service.ReportService) *ReportHandler {
	return &ReportHandler{service: svc}
}

// Collections godoc
// @Summary Download the collections report
// @Tags Reports
// @Produce octet-stream
// @Param format query string false "csv or pdf (default csv)"
// @Param status query string false "Comma separated statuses"
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Router /reports/collections [get]
func (h *ReportHandler) Collections(c *gin.Context) {
	var statuses []models.CollectionStatus
	for _, raw := range splitQuery(c.Query("status")) {
		statuses = append(statuses, models.CollectionStatus(strings.ToUpper(raw)))
	}
	file, err := h.service.CollectionsReport(c.Request.Context(), statuses, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	serveReport(c, file)
}

// Valorization godoc
// @Summary Download the valorization report
// @Tags Reports
// @Produce octet-stream
// @Param format query string false "csv or pdf (default csv)"
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Router /reports/valorization [get]
func (h *ReportHandler) Valorization(c *gin.Context) {
	file, err := h.service.ValorizationReport(c.Request.Context(), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	serveReport(c, file)
}

func serveReport(c *gin.Context, file *service.ReportFile) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, file.Filename))
	c.Data(200, file.ContentType, file.Data)
}
