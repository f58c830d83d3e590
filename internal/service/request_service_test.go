package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SalahKhadir/ecotrace-pfa-sub000/internal/dto"
	"github.com/SalahKhadir/ecotrace-pfa-sub000/internal/models"
	"github.com/SalahKhadir/ecotrace-pfa-sub000/internal/repository"
	appErrors "github.com/SalahKhadir/ecotrace-pfa-sub000/pkg/errors"
)

type mockRequestStore struct {
	requests map[string]models.Request
	created  *models.Request
	listed   *models.RequestFilter
}

func (m *mockRequestStore) Create(ctx context.Context, request *models.Request) error {
	if m.requests == nil {
		m.requests = make(map[string]models.Request)
	}
	if request.ID == "" {
		request.ID = "new-request"
	}
	if request.CreatedAt.IsZero() {
		request.CreatedAt = time.Now().UTC()
	}
	m.requests[request.ID] = *request
	m.created = request
	return nil
}

func (m *mockRequestStore) GetByID(ctx context.Context, id string) (*models.Request, error) {
	if r, ok := m.requests[id]; ok {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRequestStore) List(ctx context.Context, filter models.RequestFilter) ([]models.Request, error) {
	m.listed = &filter
	var out []models.Request
	for _, r := range m.requests {
		if filter.RequesterID != "" && r.RequesterID != filter.RequesterID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *mockRequestStore) Decide(ctx context.Context, params repository.DecideRequestParams) error {
	r, ok := m.requests[params.ID]
	if !ok || r.Status != models.RequestStatusPending {
		return sql.ErrNoRows
	}
	r.Status = params.Status
	r.Priority = params.Priority
	r.AdminNotes = params.AdminNotes
	r.RejectionReason = params.RejectionReason
	r.DecidedAt = &params.DecidedAt
	m.requests[params.ID] = r
	return nil
}

func (m *mockRequestStore) MarkScheduled(ctx context.Context, id string) error {
	r, ok := m.requests[id]
	if !ok || r.Status != models.RequestStatusApproved {
		return sql.ErrNoRows
	}
	r.Status = models.RequestStatusScheduled
	m.requests[id] = r
	return nil
}

type mockNotifier struct {
	dispatched []models.Notification
}

func (m *mockNotifier) Dispatch(ctx context.Context, notification *models.Notification) {
	m.dispatched = append(m.dispatched, *notification)
}

func (m *mockNotifier) forRole(role models.UserRole) []models.Notification {
	var out []models.Notification
	for _, n := range m.dispatched {
		if n.TargetRole == role && n.TargetUserID == nil {
			out = append(out, n)
		}
	}
	return out
}

func (m *mockNotifier) forUser(userID string) []models.Notification {
	var out []models.Notification
	for _, n := range m.dispatched {
		if n.TargetUserID != nil && *n.TargetUserID == userID {
			out = append(out, n)
		}
	}
	return out
}

type mockAudit struct {
	logs []models.AuditLog
}

func (m *mockAudit) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, *log)
	return nil
}

func requesterClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleParticulier}
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
}

func validCreatePayload() dto.CreateRequestPayload {
	return dto.CreateRequestPayload{
		WasteType:   "ELECTRONIQUE",
		Quantity:    "25 kg",
		Description: "Vieux ordinateurs",
		DesiredDate: time.Now().UTC().Add(72 * time.Hour),
		TimeSlot:    "matin",
		Mode:        "A_DOMICILE",
		Address:     "12 rue des Lilas",
		Phone:       "0601020304",
	}
}

func TestRequestSubmitCreatesPendingAndNotifiesAdmins(t *testing.T) {
	repo := &mockRequestStore{}
	notifier := &mockNotifier{}
	audit := &mockAudit{}
	svc := NewRequestService(repo, notifier, audit, nil, nil, nil)

	request, err := svc.Submit(context.Background(), validCreatePayload(), requesterClaims("user-1"), nil)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPending, request.Status)
	assert.Equal(t, models.PriorityNormal, request.Priority)
	assert.Equal(t, "user-1", request.RequesterID)
	assert.NotEmpty(t, request.Reference)
	assert.Contains(t, request.Reference, "DEM-")

	admins := notifier.forRole(models.RoleAdmin)
	require.Len(t, admins, 1)
	assert.Equal(t, models.CategoryRequest, admins[0].Category)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionRequestSubmit, audit.logs[0].Action)
}

func TestRequestSubmitRejectsInvalidInput(t *testing.T) {
	svc := NewRequestService(&mockRequestStore{}, &mockNotifier{}, nil, nil, nil, nil)

	payload := validCreatePayload()
	payload.WasteType = "URANIUM"
	_, err := svc.Submit(context.Background(), payload, requesterClaims("user-1"), nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	payload = validCreatePayload()
	payload.DesiredDate = time.Now().UTC().Add(-48 * time.Hour)
	_, err = svc.Submit(context.Background(), payload, requesterClaims("user-1"), nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRequestApproveFromPending(t *testing.T) {
	repo := &mockRequestStore{requests: map[string]models.Request{
		"req-1": {ID: "req-1", Reference: "DEM-11111111", RequesterID: "user-1", Status: models.RequestStatusPending, Priority: models.PriorityNormal},
	}}
	notifier := &mockNotifier{}
	svc := NewRequestService(repo, notifier, &mockAudit{}, nil, nil, nil)

	request, err := svc.Approve(context.Background(), "req-1", dto.ApproveRequestPayload{Priority: "HAUTE", Notes: "urgent"}, adminClaims())
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusApproved, request.Status)
	assert.Equal(t, models.PriorityHigh, request.Priority)
	require.NotNil(t, request.DecidedAt)

	assert.Len(t, notifier.forRole(models.RoleLogistique), 1)
	assert.Len(t, notifier.forUser("user-1"), 1)
}

func TestRequestApproveAlreadyDecided(t *testing.T) {
	repo := &mockRequestStore{requests: map[string]models.Request{
		"req-1": {ID: "req-1", Status: models.RequestStatusRejected},
	}}
	svc := NewRequestService(repo, &mockNotifier{}, nil, nil, nil, nil)

	_, err := svc.Approve(context.Background(), "req-1", dto.ApproveRequestPayload{}, adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestRequestRejectRequiresMotif(t *testing.T) {
	repo := &mockRequestStore{requests: map[string]models.Request{
		"req-1": {ID: "req-1", RequesterID: "user-1", Status: models.RequestStatusPending},
	}}
	svc := NewRequestService(repo, &mockNotifier{}, nil, nil, nil, nil)

	_, err := svc.Reject(context.Background(), "req-1", dto.RejectRequestPayload{Motif: "   "}, adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	request, err := svc.Reject(context.Background(), "req-1", dto.RejectRequestPayload{Motif: "hors zone"}, adminClaims())
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusRejected, request.Status)
	require.NotNil(t, request.RejectionReason)
	assert.Equal(t, "hors zone", *request.RejectionReason)
}

func TestRequestRejectNotifiesRequesterWithMotif(t *testing.T) {
	repo := &mockRequestStore{requests: map[string]models.Request{
		"req-1": {ID: "req-1", Reference: "DEM-22222222", RequesterID: "user-9", Status: models.RequestStatusPending},
	}}
	notifier := &mockNotifier{}
	svc := NewRequestService(repo, notifier, nil, nil, nil, nil)

	_, err := svc.Reject(context.Background(), "req-1", dto.RejectRequestPayload{Motif: "adresse invalide"}, adminClaims())
	require.NoError(t, err)

	direct := notifier.forUser("user-9")
	require.Len(t, direct, 1)
	assert.Contains(t, direct[0].Message, "adresse invalide")
}

func TestRequestGetScoping(t *testing.T) {
	repo := &mockRequestStore{requests: map[string]models.Request{
		"req-1": {ID: "req-1", RequesterID: "user-1", Status: models.RequestStatusPending},
	}}
	svc := NewRequestService(repo, &mockNotifier{}, nil, nil, nil, nil)

	_, err := svc.Get(context.Background(), "req-1", requesterClaims("user-2"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	found, err := svc.Get(context.Background(), "req-1", requesterClaims("user-1"))
	require.NoError(t, err)
	assert.Equal(t, "req-1", found.ID)

	_, err = svc.Get(context.Background(), "missing", adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestRequestListForcesOwnerFilterForRequesters(t *testing.T) {
	repo := &mockRequestStore{requests: map[string]models.Request{
		"req-1": {ID: "req-1", RequesterID: "user-1"},
		"req-2": {ID: "req-2", RequesterID: "user-2"},
	}}
	svc := NewRequestService(repo, &mockNotifier{}, nil, nil, nil, nil)

	out, err := svc.List(context.Background(), dto.RequestQuery{RequesterID: "user-2"}, requesterClaims("user-1"))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "user-1", out[0].RequesterID)
	assert.Equal(t, "user-1", repo.listed.RequesterID)
}
