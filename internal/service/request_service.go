package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/SalahKhadir/ecotrace-pfa-sub000/internal/dto"
	"github.com/SalahKhadir/ecotrace-pfa-sub000/internal/models"
	"github.com/SalahKhadir/ecotrace-pfa-sub000/internal/repository"
	appErrors "github.com/SalahKhadir/ecotrace-pfa-sub000/pkg/errors"
)

type requestStore interface {
	Create(ctx context.Context, request *models.Request) error
	GetByID(ctx context.Context, id string) (*models.Request, error)
	List(ctx context.Context, filter models.RequestFilter) ([]models.Request, error)
	Decide(ctx context.Context, params repository.DecideRequestParams) error
}

type notificationDispatcher interface {
	Dispatch(ctx context.Context, notification *models.Notification)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// RequestService handles intake and the admin approval gate.
type RequestService struct {
	repo      requestStore
	notifier  notificationDispatcher
	audit     auditLogger
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRequestService constructs the service.
func NewRequestService(repo requestStore, notifier notificationDispatcher, audit auditLogger, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *RequestService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RequestService{repo: repo, notifier: notifier, audit: audit, metrics: metrics, validator: validate, logger: logger}
}

// Submit validates the payload and creates a pending request.
func (s *RequestService) Submit(ctx context.Context, payload dto.CreateRequestPayload, requester *models.JWTClaims, photoPath *string) (*models.Request, error) {
	if requester == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request payload")
	}
	wasteType, err := parseWasteType(payload.WasteType)
	if err != nil {
		return nil, err
	}
	mode, err := parseMode(payload.Mode)
	if err != nil {
		return nil, err
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	if payload.DesiredDate.Before(today) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "desired date must not be in the past")
	}

	request := &models.Request{
		Reference:    newReference("DEM"),
		RequesterID:  requester.UserID,
		WasteType:    wasteType,
		Quantity:     payload.Quantity,
		Description:  payload.Description,
		DesiredDate:  payload.DesiredDate,
		TimeSlot:     payload.TimeSlot,
		Mode:         mode,
		Address:      payload.Address,
		Phone:        payload.Phone,
		Instructions: payload.Instructions,
		PhotoPath:    photoPath,
		Status:       models.RequestStatusPending,
		Priority:     models.PriorityNormal,
	}
	if err := s.repo.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create request")
	}

	s.metrics.RecordTransition("request", string(models.RequestStatusPending))
	s.notifier.Dispatch(ctx, &models.Notification{
		Title:        "Nouvelle demande de collecte",
		Message:      fmt.Sprintf("La demande %s attend votre validation.", request.Reference),
		Type:         models.NotificationInfo,
		Category:     models.CategoryRequest,
		TargetRole:   models.RoleAdmin,
		ActionEntity: optionalString("request"),
		ActionID:     &request.ID,
	})
	s.emitAudit(ctx, requester.UserID, models.AuditActionRequestSubmit, request.ID)
	return request, nil
}

// Approve moves a pending request to APPROUVEE, storing priority and notes.
func (s *RequestService) Approve(ctx context.Context, id string, payload dto.ApproveRequestPayload, actor *models.JWTClaims) (*models.Request, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	request, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !request.Status.CanTransition(models.RequestStatusApproved) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("request %s cannot be approved from status %s", request.Reference, request.Status))
	}
	priority := request.Priority
	if payload.Priority != "" {
		priority, err = parsePriority(payload.Priority)
		if err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	params := repository.DecideRequestParams{
		ID:         request.ID,
		Status:     models.RequestStatusApproved,
		Priority:   priority,
		AdminNotes: optionalString(payload.Notes),
		DecidedAt:  now,
	}
	if err := s.repo.Decide(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "request already decided")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve request")
	}
	request.Status = models.RequestStatusApproved
	request.Priority = priority
	request.AdminNotes = params.AdminNotes
	request.DecidedAt = &now

	s.metrics.RecordTransition("request", string(models.RequestStatusApproved))
	s.notifier.Dispatch(ctx, &models.Notification{
		Title:        "Demande approuvée",
		Message:      fmt.Sprintf("La demande %s est approuvée et attend une planification.", request.Reference),
		Type:         models.NotificationSuccess,
		Category:     models.CategoryRequest,
		TargetRole:   models.RoleLogistique,
		ActionEntity: optionalString("request"),
		ActionID:     &request.ID,
	})
	s.notifier.Dispatch(ctx, &models.Notification{
		Title:        "Votre demande est approuvée",
		Message:      fmt.Sprintf("Votre demande %s a été approuvée.", request.Reference),
		Type:         models.NotificationSuccess,
		Category:     models.CategoryRequest,
		TargetUserID: &request.RequesterID,
		ActionEntity: optionalString("request"),
		ActionID:     &request.ID,
	})
	s.emitAudit(ctx, actor.UserID, models.AuditActionRequestApprove, request.ID)
	return request, nil
}

// Reject moves a pending request to REJETEE. A motive is mandatory.
func (s *RequestService) Reject(ctx context.Context, id string, payload dto.RejectRequestPayload, actor *models.JWTClaims) (*models.Request, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if strings.TrimSpace(payload.Motif) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejection motive is required")
	}
	request, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !request.Status.CanTransition(models.RequestStatusRejected) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("request %s cannot be rejected from status %s", request.Reference, request.Status))
	}

	now := time.Now().UTC()
	params := repository.DecideRequestParams{
		ID:              request.ID,
		Status:          models.RequestStatusRejected,
		Priority:        request.Priority,
		AdminNotes:      optionalString(payload.Notes),
		RejectionReason: optionalString(payload.Motif),
		DecidedAt:       now,
	}
	if err := s.repo.Decide(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "request already decided")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject request")
	}
	request.Status = models.RequestStatusRejected
	request.RejectionReason = params.RejectionReason
	request.AdminNotes = params.AdminNotes
	request.DecidedAt = &now

	s.metrics.RecordTransition("request", string(models.RequestStatusRejected))
	s.notifier.Dispatch(ctx, &models.Notification{
		Title:        "Votre demande est rejetée",
		Message:      fmt.Sprintf("La demande %s a été rejetée: %s", request.Reference, payload.Motif),
		Type:         models.NotificationWarning,
		Category:     models.CategoryRequest,
		TargetUserID: &request.RequesterID,
		ActionEntity: optionalString("request"),
		ActionID:     &request.ID,
	})
	s.emitAudit(ctx, actor.UserID, models.AuditActionRequestReject, request.ID)
	return request, nil
}

// Get returns a request enforcing scope: requesters only see their own.
func (s *RequestService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Request, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	request, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role.IsRequester() && request.RequesterID != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	return request, nil
}

// List returns requests visible to the actor.
func (s *RequestService) List(ctx context.Context, query dto.RequestQuery, actor *models.JWTClaims) ([]models.Request, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	filter := models.RequestFilter{
		Status:    query.Status,
		WasteType: query.WasteType,
		Limit:     query.Limit,
		Offset:    query.Offset,
	}
	if actor.Role.IsRequester() {
		filter.RequesterID = actor.UserID
	} else if query.RequesterID != "" {
		filter.RequesterID = query.RequesterID
	}
	requests, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	return requests, nil
}

func (s *RequestService) load(ctx context.Context, id string) (*models.Request, error) {
	request, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	return request, nil
}

func (s *RequestService) emitAudit(ctx context.Context, userID, action, resourceID string) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "request",
		ResourceID: &resourceID,
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

func parseWasteType(raw string) (models.WasteType, error) {
	switch models.WasteType(strings.ToUpper(strings.TrimSpace(raw))) {
	case models.WasteTypeElectronic:
		return models.WasteTypeElectronic, nil
	case models.WasteTypePlastic:
		return models.WasteTypePlastic, nil
	case models.WasteTypePaper:
		return models.WasteTypePaper, nil
	case models.WasteTypeMetal:
		return models.WasteTypeMetal, nil
	case models.WasteTypeGlass:
		return models.WasteTypeGlass, nil
	case models.WasteTypeOrganic:
		return models.WasteTypeOrganic, nil
	case models.WasteTypeOther:
		return models.WasteTypeOther, nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, "unsupported waste type")
	}
}

func parseMode(raw string) (models.CollectionMode, error) {
	switch models.CollectionMode(strings.ToUpper(strings.TrimSpace(raw))) {
	case models.ModeOnSite:
		return models.ModeOnSite, nil
	case models.ModeDropOff:
		return models.ModeDropOff, nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, "unsupported collection mode")
	}
}

func parsePriority(raw string) (models.RequestPriority, error) {
	switch models.RequestPriority(strings.ToUpper(strings.TrimSpace(raw))) {
	case models.PriorityLow:
		return models.PriorityLow, nil
	case models.PriorityNormal:
		return models.PriorityNormal, nil
	case models.PriorityHigh:
		return models.PriorityHigh, nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, "unsupported priority")
	}
}
