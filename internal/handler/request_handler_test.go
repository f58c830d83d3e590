package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SalahKhadir/ecotrace-pfa-sub000/internal/middleware"
	"github.com/SalahKhadir/ecotrace-pfa-sub000/internal/models"
	"github.com/SalahKhadir/ecotrace-pfa-sub000/internal/repository"
	"github.com/SalahKhadir/ecotrace-pfa-sub000/internal/service"
)

type requestStoreStub struct {
	requests map[string]models.Request
	filter   *models.RequestFilter
}

func (s *requestStoreStub) Create(ctx context.Context, request *models.Request) error {
	if request.ID == "" {
		request.ID = "new-request"
	}
	if s.requests == nil {
		s.requests = make(map[string]models.Request)
	}
	s.requests[request.ID] = *request
	return nil
}

func (s *requestStoreStub) GetByID(ctx context.Context, id string) (*models.Request, error) {
	if r, ok := s.requests[id]; ok {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

func (s *requestStoreStub) List(ctx context.Context, filter models.RequestFilter) ([]models.Request, error) {
	s.filter = &filter
	return nil, nil
}

func (s *requestStoreStub) Decide(ctx context.Context, params repository.DecideRequestParams) error {
	r, ok := s.requests[params.ID]
	if !ok || r.Status != models.RequestStatusPending {
		return sql.ErrNoRows
	}
	r.Status = params.Status
	s.requests[params.ID] = r
	return nil
}

type notifierStub struct{}

func (notifierStub) Dispatch(ctx context.Context, notification *models.Notification) {}

func newRequestTestContext(t *testing.T, claims *models.JWTClaims, method, target string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(method, target, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope
}

func TestRequestHandlerCreate(t *testing.T) {
	store := &requestStoreStub{}
	svc := service.NewRequestService(store, notifierStub{}, nil, nil, nil, nil)
	handler := NewRequestHandler(svc, nil, 0)

	body, _ := json.Marshal(map[string]interface{}{
		"waste_type":   "PLASTIQUE",
		"quantity":     "10 kg",
		"description":  "Bouteilles",
		"desired_date": time.Now().UTC().Add(48 * time.Hour).Format(time.RFC3339),
		"time_slot":    "matin",
		"mode":         "A_DOMICILE",
		"address":      "3 avenue du Port",
		"phone":        "0600000000",
	})
	claims := &models.JWTClaims{UserID: "user-1", Role: models.RoleParticulier}
	c, w := newRequestTestContext(t, claims, http.MethodPost, "/requests", body)

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	envelope := decodeEnvelope(t, w)
	data, ok := envelope["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "EN_ATTENTE", data["status"])
	assert.Contains(t, data["reference"], "DEM-")
}

func TestRequestHandlerCreateInvalidBody(t *testing.T) {
	svc := service.NewRequestService(&requestStoreStub{}, notifierStub{}, nil, nil, nil, nil)
	handler := NewRequestHandler(svc, nil, 0)

	claims := &models.JWTClaims{UserID: "user-1", Role: models.RoleParticulier}
	c, w := newRequestTestContext(t, claims, http.MethodPost, "/requests", []byte(`{"waste_type":"PLASTIQUE"}`))

	handler.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequestHandlerApproveEmptyBody(t *testing.T) {
	store := &requestStoreStub{requests: map[string]models.Request{
		"req-1": {ID: "req-1", RequesterID: "user-1", Status: models.RequestStatusPending},
	}}
	svc := service.NewRequestService(store, notifierStub{}, nil, nil, nil, nil)
	handler := NewRequestHandler(svc, nil, 0)

	claims := &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
	c, w := newRequestTestContext(t, claims, http.MethodPost, "/requests/req-1/approve", nil)
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}

	handler.Approve(c)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.RequestStatusApproved, store.requests["req-1"].Status)
}

func TestRequestHandlerRejectWithoutMotif(t *testing.T) {
	store := &requestStoreStub{requests: map[string]models.Request{
		"req-1": {ID: "req-1", Status: models.RequestStatusPending},
	}}
	svc := service.NewRequestService(store, notifierStub{}, nil, nil, nil, nil)
	handler := NewRequestHandler(svc, nil, 0)

	claims := &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
	c, w := newRequestTestContext(t, claims, http.MethodPost, "/requests/req-1/reject", []byte(`{}`))
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}

	handler.Reject(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	envelope := decodeEnvelope(t, w)
	require.NotNil(t, envelope["error"])
}

func TestRequestHandlerGetNotFound(t *testing.T) {
	svc := service.NewRequestService(&requestStoreStub{}, notifierStub{}, nil, nil, nil, nil)
	handler := NewRequestHandler(svc, nil, 0)

	claims := &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
	c, w := newRequestTestContext(t, claims, http.MethodGet, "/requests/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	handler.Get(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
	envelope := decodeEnvelope(t, w)
	errBody, ok := envelope["error"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "NOT_FOUND", errBody["code"])
}

func TestRequestHandlerListParsesQuery(t *testing.T) {
	store := &requestStoreStub{}
	svc := service.NewRequestService(store, notifierStub{}, nil, nil, nil, nil)
	handler := NewRequestHandler(svc, nil, 0)

	claims := &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
	target := fmt.Sprintf("/requests?status=%s&waste_type=plastique&limit=25&offset=50", "en_attente,approuvee")
	c, w := newRequestTestContext(t, claims, http.MethodGet, target, nil)

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, store.filter)
	assert.Equal(t, []models.RequestStatus{models.RequestStatusPending, models.RequestStatusApproved}, store.filter.Status)
	assert.Equal(t, models.WasteTypePlastic, store.filter.WasteType)
	assert.Equal(t, 25, store.filter.Limit)
	assert.Equal(t, 50, store.filter.Offset)
}
