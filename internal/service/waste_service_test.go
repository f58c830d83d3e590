package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SalahKhadir/ecotrace-pfa-sub000/internal/dto"
	"github.com/SalahKhadir/ecotrace-pfa-sub000/internal/models"
	"github.com/SalahKhadir/ecotrace-pfa-sub000/internal/repository"
	appErrors "github.com/SalahKhadir/ecotrace-pfa-sub000/pkg/errors"
)

type mockWasteStore struct {
	items  map[string]models.WasteItem
	listed *models.WasteItemFilter
}

func (m *mockWasteStore) GetByID(ctx context.Context, id string) (*models.WasteItem, error) {
	if item, ok := m.items[id]; ok {
		return &item, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockWasteStore) List(ctx context.Context, filter models.WasteItemFilter) ([]models.WasteItem, error) {
	m.listed = &filter
	var out []models.WasteItem
	for _, item := range m.items {
		out = append(out, item)
	}
	return out, nil
}

func (m *mockWasteStore) Start(ctx context.Context, id, technicianID string) error {
	item, ok := m.items[id]
	if !ok || item.Status != models.WasteStatusNew {
		return sql.ErrNoRows
	}
	item.Status = models.WasteStatusProcessing
	item.TechnicianID = &technicianID
	m.items[id] = item
	return nil
}

func (m *mockWasteStore) Finalize(ctx context.Context, params repository.FinalizeParams) error {
	item, ok := m.items[params.ID]
	if !ok || item.Status != models.WasteStatusProcessing {
		return sql.ErrNoRows
	}
	item.Status = models.WasteStatusProcessed
	item.Outcome = params.Outcome
	item.QuantityValorized = params.QuantityValorized
	item.YieldPct = params.YieldPct
	item.Notes = params.Notes
	item.ProcessedAt = &params.ProcessedAt
	m.items[params.ID] = item
	return nil
}

func technicianClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleTechnicien}
}

func newWasteItem(status models.WasteItemStatus, technicianID *string) map[string]models.WasteItem {
	return map[string]models.WasteItem{
		"item-1": {
			ID:           "item-1",
			CollectionID: "col-1",
			Type:         models.WasteTypeElectronic,
			Quantity:     25,
			Status:       status,
			Outcome:      models.OutcomePending,
			TechnicianID: technicianID,
		},
	}
}

func TestWasteStart(t *testing.T) {
	repo := &mockWasteStore{items: newWasteItem(models.WasteStatusNew, nil)}
	svc := NewWasteService(repo, &mockNotifier{}, &mockAudit{}, nil, nil, nil)

	item, err := svc.Start(context.Background(), "item-1", technicianClaims("tech-1"))
	require.NoError(t, err)
	assert.Equal(t, models.WasteStatusProcessing, item.Status)
	require.NotNil(t, item.TechnicianID)
	assert.Equal(t, "tech-1", *item.TechnicianID)

	_, err = svc.Start(context.Background(), "item-1", technicianClaims("tech-2"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestWasteStartMissingItem(t *testing.T) {
	svc := NewWasteService(&mockWasteStore{items: map[string]models.WasteItem{}}, &mockNotifier{}, nil, nil, nil, nil)

	_, err := svc.Start(context.Background(), "missing", technicianClaims("tech-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestWasteFinalizeRecordsOutcome(t *testing.T) {
	tech := "tech-1"
	repo := &mockWasteStore{items: newWasteItem(models.WasteStatusProcessing, &tech)}
	notifier := &mockNotifier{}
	svc := NewWasteService(repo, notifier, &mockAudit{}, nil, nil, nil)

	valorized := 20.0
	yield := 80.0
	payload := dto.FinalizeValorizationPayload{
		Outcome:           "a_recycler",
		QuantityValorized: &valorized,
		YieldPct:          &yield,
		Notes:             "composants récupérés",
	}
	item, err := svc.Finalize(context.Background(), "item-1", payload, technicianClaims("tech-1"))
	require.NoError(t, err)
	assert.Equal(t, models.WasteStatusProcessed, item.Status)
	assert.Equal(t, models.OutcomeRecycle, item.Outcome)
	require.NotNil(t, item.YieldPct)
	assert.Equal(t, 80.0, *item.YieldPct)
	require.NotNil(t, item.ProcessedAt)

	logistics := notifier.forRole(models.RoleLogistique)
	require.Len(t, logistics, 1)
	assert.Equal(t, models.CategoryValorization, logistics[0].Category)
	assert.Contains(t, logistics[0].Message, "à recycler")
}

func TestWasteFinalizeOutcomeValidation(t *testing.T) {
	tech := "tech-1"
	repo := &mockWasteStore{items: newWasteItem(models.WasteStatusProcessing, &tech)}
	svc := NewWasteService(repo, &mockNotifier{}, nil, nil, nil, nil)

	_, err := svc.Finalize(context.Background(), "item-1", dto.FinalizeValorizationPayload{Outcome: "EN_ATTENTE"}, technicianClaims("tech-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Finalize(context.Background(), "item-1", dto.FinalizeValorizationPayload{}, technicianClaims("tech-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestWasteFinalizeIsTerminal(t *testing.T) {
	tech := "tech-1"
	repo := &mockWasteStore{items: newWasteItem(models.WasteStatusProcessing, &tech)}
	svc := NewWasteService(repo, &mockNotifier{}, nil, nil, nil, nil)

	payload := dto.FinalizeValorizationPayload{Outcome: "A_DETRUIRE"}
	_, err := svc.Finalize(context.Background(), "item-1", payload, technicianClaims("tech-1"))
	require.NoError(t, err)

	_, err = svc.Finalize(context.Background(), "item-1", payload, technicianClaims("tech-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestWasteFinalizeWrongTechnician(t *testing.T) {
	tech := "tech-1"
	repo := &mockWasteStore{items: newWasteItem(models.WasteStatusProcessing, &tech)}
	svc := NewWasteService(repo, &mockNotifier{}, nil, nil, nil, nil)

	_, err := svc.Finalize(context.Background(), "item-1", dto.FinalizeValorizationPayload{Outcome: "A_RECYCLER"}, technicianClaims("tech-2"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestWasteListAppliesFilter(t *testing.T) {
	repo := &mockWasteStore{items: newWasteItem(models.WasteStatusNew, nil)}
	svc := NewWasteService(repo, &mockNotifier{}, nil, nil, nil, nil)

	_, err := svc.List(context.Background(), dto.WasteItemQuery{CollectionID: "col-1", Limit: 10}, technicianClaims("tech-1"))
	require.NoError(t, err)
	require.NotNil(t, repo.listed)
	assert.Equal(t, "col-1", repo.listed.CollectionID)
	assert.Equal(t, 10, repo.listed.Limit)
}
