package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SalahKhadir/ecotrace-pfa-sub000/internal/dto"
	"github.com/SalahKhadir/ecotrace-pfa-sub000/internal/models"
)

type wasteStoreCreator struct {
	*mockWasteStore
}

func (w *wasteStoreCreator) CreateBatch(ctx context.Context, items []models.WasteItem) error {
	for i := range items {
		item := items[i]
		if item.ID == "" {
			item.ID = "item-" + string(item.Type)
		}
		w.items[item.ID] = item
	}
	return nil
}

// Drives a request through the complete lifecycle: intake, approval,
// scheduling, the two-phase transport handshake and valorization.
func TestFullWorkflowRoundTrip(t *testing.T) {
	ctx := context.Background()
	notifier := &mockNotifier{}
	audit := &mockAudit{}

	requests := &mockRequestStore{}
	collections := newMockCollectionStore()
	waste := &wasteStoreCreator{mockWasteStore: &mockWasteStore{items: make(map[string]models.WasteItem)}}
	users := &mockUserReader{users: map[string]models.User{
		"trans-1": {ID: "trans-1", Role: models.RoleTransporteur, Active: true},
	}}

	requestSvc := NewRequestService(requests, notifier, audit, nil, nil, nil)
	collectionSvc := NewCollectionService(collections, requests, users, waste, notifier, audit, nil, nil, nil)
	wasteSvc := NewWasteService(waste.mockWasteStore, notifier, audit, nil, nil, nil)

	request, err := requestSvc.Submit(ctx, validCreatePayload(), requesterClaims("user-1"), nil)
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusPending, request.Status)

	request, err = requestSvc.Approve(ctx, request.ID, dto.ApproveRequestPayload{Priority: "HAUTE"}, adminClaims())
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusApproved, request.Status)

	transporter := "trans-1"
	collection, err := collectionSvc.Schedule(ctx, dto.ScheduleCollectionPayload{
		RequestID:     request.ID,
		Date:          time.Now().UTC().Add(72 * time.Hour),
		TransporterID: &transporter,
	}, logistiqueClaims())
	require.NoError(t, err)
	require.Equal(t, models.CollectionStatusPlanned, collection.Status)
	assert.Equal(t, models.RequestStatusScheduled, requests.requests[request.ID].Status)

	collection, err = collectionSvc.ConfirmReception(ctx, collection.ID, dto.ConfirmReceptionPayload{}, transporterClaims("trans-1"))
	require.NoError(t, err)
	require.Equal(t, models.CollectionStatusInTransit, collection.Status)

	collection, err = collectionSvc.ConfirmDelivery(ctx, collection.ID, dto.ConfirmDeliveryPayload{Notes: "livraison complète"}, transporterClaims("trans-1"))
	require.NoError(t, err)
	require.Equal(t, models.CollectionStatusCompleted, collection.Status)
	require.Len(t, waste.items, 1)

	var itemID string
	for id := range waste.items {
		itemID = id
	}
	item, err := wasteSvc.Start(ctx, itemID, technicianClaims("tech-1"))
	require.NoError(t, err)
	require.Equal(t, models.WasteStatusProcessing, item.Status)

	item, err = wasteSvc.Finalize(ctx, itemID, dto.FinalizeValorizationPayload{Outcome: "A_RECYCLER"}, technicianClaims("tech-1"))
	require.NoError(t, err)
	assert.Equal(t, models.WasteStatusProcessed, item.Status)
	assert.Equal(t, models.OutcomeRecycle, item.Outcome)

	// Every hand-off notified someone: admins on submit, logistics and the
	// requester on approval, the transporter and requester on scheduling,
	// technicians on delivery, logistics again on valorization.
	assert.NotEmpty(t, notifier.forRole(models.RoleAdmin))
	assert.NotEmpty(t, notifier.forRole(models.RoleLogistique))
	assert.NotEmpty(t, notifier.forRole(models.RoleTechnicien))
	assert.NotEmpty(t, notifier.forUser("user-1"))
	assert.NotEmpty(t, notifier.forUser("trans-1"))
	assert.GreaterOrEqual(t, len(audit.logs), 6)
}
