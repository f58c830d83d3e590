package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SalahKhadir/ecotrace-pfa-sub000/internal/models"
	appErrors "github.com/SalahKhadir/ecotrace-pfa-sub000/pkg/errors"
)

type stubCollectionLister struct {
	collections []models.Collection
	filter      *models.CollectionFilter
}

func (s *stubCollectionLister) List(ctx context.Context, filter models.CollectionFilter) ([]models.Collection, error) {
	s.filter = &filter
	return s.collections, nil
}

type stubWasteLister struct {
	items []models.WasteItem
}

func (s *stubWasteLister) List(ctx context.Context, filter models.WasteItemFilter) ([]models.WasteItem, error) {
	return s.items, nil
}

func reportFixtures() (*stubCollectionLister, *stubWasteLister) {
	received := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	delivered := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	yield := 85.0

	collections := &stubCollectionLister{collections: []models.Collection{
		{
			Reference:     "COL-AAAA1111",
			ScheduledDate: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
			Status:        models.CollectionStatusCompleted,
			Address:       "12 rue des Lilas",
			ReceivedAt:    &received,
			DeliveredAt:   &delivered,
		},
		{
			Reference:     "COL-BBBB2222",
			ScheduledDate: time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC),
			Status:        models.CollectionStatusPlanned,
			Address:       "3 avenue du Port",
		},
	}}
	waste := &stubWasteLister{items: []models.WasteItem{
		{Type: models.WasteTypeElectronic, Quantity: 25, Status: models.WasteStatusProcessed, Outcome: models.OutcomeRecycle, YieldPct: &yield, ProcessedAt: &delivered},
		{Type: models.WasteTypePlastic, Quantity: 3.5, Status: models.WasteStatusProcessed, Outcome: models.OutcomeDestroy},
		{Type: models.WasteTypePaper, Quantity: 10, Status: models.WasteStatusNew, Outcome: models.OutcomePending},
	}}
	return collections, waste
}

func TestCollectionsReportCSV(t *testing.T) {
	collections, waste := reportFixtures()
	svc := NewReportService(collections, waste, nil)

	file, err := svc.CollectionsReport(context.Background(), []models.CollectionStatus{models.CollectionStatusCompleted}, "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.True(t, strings.HasPrefix(file.Filename, "collectes-"))
	assert.True(t, strings.HasSuffix(file.Filename, ".csv"))

	content := string(file.Data)
	assert.Contains(t, content, "Référence")
	assert.Contains(t, content, "COL-AAAA1111")
	assert.Contains(t, content, "12 rue des Lilas")
	assert.Contains(t, content, "Total: 2")

	require.NotNil(t, collections.filter)
	assert.Equal(t, []models.CollectionStatus{models.CollectionStatusCompleted}, collections.filter.Status)
}

func TestCollectionsReportPDF(t *testing.T) {
	collections, waste := reportFixtures()
	svc := NewReportService(collections, waste, nil)

	file, err := svc.CollectionsReport(context.Background(), nil, "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, strings.HasSuffix(file.Filename, ".pdf"))
	assert.True(t, len(file.Data) > 0)
	assert.Equal(t, "%PDF", string(file.Data[:4]))
}

func TestValorizationReportTotals(t *testing.T) {
	collections, waste := reportFixtures()
	svc := NewReportService(collections, waste, nil)

	file, err := svc.ValorizationReport(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", file.ContentType)

	content := string(file.Data)
	assert.Contains(t, content, "Total: 3")
	assert.Contains(t, content, "38.50")
	assert.Contains(t, content, "1 recyclés / 1 détruits")
	assert.Contains(t, content, "85.0%")
}

func TestReportUnsupportedFormat(t *testing.T) {
	collections, waste := reportFixtures()
	svc := NewReportService(collections, waste, nil)

	_, err := svc.CollectionsReport(context.Background(), nil, "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
