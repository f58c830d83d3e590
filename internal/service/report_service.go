package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/SalahKhadir/ecotrace-pfa-sub000/internal/models"
	appErrors "github.com/SalahKhadir/ecotrace-pfa-sub000/pkg/errors"
	"github.com/SalahKhadir/ecotrace-pfa-sub000/pkg/export"
)

// ReportFormat enumerates supported export formats.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

type reportCollectionLister interface {
	List(ctx context.Context, filter models.CollectionFilter) ([]models.Collection, error)
}

type reportWasteLister interface {
	List(ctx context.Context, filter models.WasteItemFilter) ([]models.WasteItem, error)
}

// ReportFile is a rendered report ready for download.
type ReportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ReportService renders operational summaries as CSV or PDF.
type ReportService struct {
	collections reportCollectionLister
	waste       reportWasteLister
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
	logger      *zap.Logger
}

// NewReportService constructs the service.
func NewReportService(collections reportCollectionLister, waste reportWasteLister, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		collections: collections,
		waste:       waste,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		logger:      logger,
	}
}

// CollectionsReport summarizes collections, optionally narrowed by status.
func (s *ReportService) CollectionsReport(ctx context.Context, statuses []models.CollectionStatus, format string) (*ReportFile, error) {
	fmtKind, err := parseFormat(format)
	if err != nil {
		return nil, err
	}
	collections, err := s.collections.List(ctx, models.CollectionFilter{Status: statuses, Limit: 200})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load collections for report")
	}

	headers := []string{"Référence", "Date", "Statut", "Adresse", "Réceptionnée", "Livrée"}
	rows := make([]map[string]string, 0, len(collections))
	for _, c := range collections {
		rows = append(rows, map[string]string{
			"Référence":    c.Reference,
			"Date":         c.ScheduledDate.Format("02/01/2006"),
			"Statut":       string(c.Status),
			"Adresse":      c.Address,
			"Réceptionnée": formatTime(c.ReceivedAt),
			"Livrée":       formatTime(c.DeliveredAt),
		})
	}
	dataset := export.Dataset{
		Headers: headers,
		Rows:    rows,
		Footer:  map[string]string{"Référence": fmt.Sprintf("Total: %d", len(rows))},
	}
	return s.render(dataset, "rapport des collectes", "collectes", fmtKind)
}

// ValorizationReport summarizes processed waste items with outcome totals.
func (s *ReportService) ValorizationReport(ctx context.Context, format string) (*ReportFile, error) {
	fmtKind, err := parseFormat(format)
	if err != nil {
		return nil, err
	}
	items, err := s.waste.List(ctx, models.WasteItemFilter{Limit: 200})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load waste items for report")
	}

	headers := []string{"Type", "Quantité", "Statut", "Décision", "Rendement", "Traité le"}
	rows := make([]map[string]string, 0, len(items))
	var recycled, destroyed int
	var totalQuantity float64
	for _, item := range items {
		totalQuantity += item.Quantity
		switch item.Outcome {
		case models.OutcomeRecycle:
			recycled++
		case models.OutcomeDestroy:
			destroyed++
		}
		rows = append(rows, map[string]string{
			"Type":      string(item.Type),
			"Quantité":  fmt.Sprintf("%.2f", item.Quantity),
			"Statut":    string(item.Status),
			"Décision":  string(item.Outcome),
			"Rendement": formatPct(item.YieldPct),
			"Traité le": formatTime(item.ProcessedAt),
		})
	}
	dataset := export.Dataset{
		Headers: headers,
		Rows:    rows,
		Footer: map[string]string{
			"Type":     fmt.Sprintf("Total: %d", len(rows)),
			"Quantité": fmt.Sprintf("%.2f", totalQuantity),
			"Décision": fmt.Sprintf("%d recyclés / %d détruits", recycled, destroyed),
		},
	}
	return s.render(dataset, "rapport de valorisation", "valorisation", fmtKind)
}

func (s *ReportService) render(dataset export.Dataset, title, slug string, format ReportFormat) (*ReportFile, error) {
	stamp := time.Now().Format("20060102")
	switch format {
	case ReportFormatPDF:
		data, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf report")
		}
		return &ReportFile{
			Filename:    fmt.Sprintf("%s-%s.pdf", slug, stamp),
			ContentType: "application/pdf",
			Data:        data,
		}, nil
	default:
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv report")
		}
		return &ReportFile{
			Filename:    fmt.Sprintf("%s-%s.csv", slug, stamp),
			ContentType: "text/csv",
			Data:        data,
		}, nil
	}
}

func parseFormat(raw string) (ReportFormat, error) {
	switch ReportFormat(strings.ToLower(strings.TrimSpace(raw))) {
	case ReportFormatPDF:
		return ReportFormatPDF, nil
	case ReportFormatCSV, "":
		return ReportFormatCSV, nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}

func formatTime(ts *time.Time) string {
	if ts == nil {
		return ""
	}
	return ts.Format("02/01/2006 15:04")
}

func formatPct(value *float64) string {
	if value == nil {
		return ""
	}
	return fmt.Sprintf("%.1f%%", *value)
}
