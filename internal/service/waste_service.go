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

type wasteStore interface {
	GetByID(ctx context.Context, id string) (*models.WasteItem, error)
	List(ctx context.Context, filter models.WasteItemFilter) ([]models.WasteItem, error)
	Start(ctx context.Context, id, technicianID string) error
	Finalize(ctx context.Context, params repository.FinalizeParams) error
}

// WasteService covers the technician valorization workflow.
type WasteService struct {
	repo      wasteStore
	notifier  notificationDispatcher
	audit     auditLogger
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewWasteService constructs the service.
func NewWasteService(repo wasteStore, notifier notificationDispatcher, audit auditLogger, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *WasteService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WasteService{repo: repo, notifier: notifier, audit: audit, metrics: metrics, validator: validate, logger: logger}
}

// Start moves a NOUVEAU item to EN_COURS and binds the acting technician.
func (s *WasteService) Start(ctx context.Context, id string, actor *models.JWTClaims) (*models.WasteItem, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	item, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !item.Status.CanTransition(models.WasteStatusProcessing) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("waste item cannot start processing from status %s", item.Status))
	}
	if err := s.repo.Start(ctx, item.ID, actor.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "waste item already started")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to start valorization")
	}
	item.Status = models.WasteStatusProcessing
	item.TechnicianID = &actor.UserID

	s.metrics.RecordTransition("waste_item", string(models.WasteStatusProcessing))
	s.emitAudit(ctx, actor.UserID, models.AuditActionWasteStart, item.ID)
	return item, nil
}

// Finalize records the terminal valorization outcome. TERMINE items never
// change again; a concurrent finalize loses.
func (s *WasteService) Finalize(ctx context.Context, id string, payload dto.FinalizeValorizationPayload, actor *models.JWTClaims) (*models.WasteItem, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid valorization payload")
	}
	outcome, err := parseOutcome(payload.Outcome)
	if err != nil {
		return nil, err
	}
	item, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !item.Status.CanTransition(models.WasteStatusProcessed) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("waste item cannot be finalized from status %s", item.Status))
	}
	if item.TechnicianID != nil && actor.Role == models.RoleTechnicien && *item.TechnicianID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "waste item is handled by another technician")
	}

	now := time.Now().UTC()
	params := repository.FinalizeParams{
		ID:                item.ID,
		Outcome:           outcome,
		QuantityValorized: payload.QuantityValorized,
		YieldPct:          payload.YieldPct,
		Notes:             optionalString(payload.Notes),
		ProcessedAt:       now,
	}
	if err := s.repo.Finalize(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "waste item already finalized")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to finalize valorization")
	}
	item.Status = models.WasteStatusProcessed
	item.Outcome = outcome
	item.QuantityValorized = payload.QuantityValorized
	item.YieldPct = payload.YieldPct
	item.Notes = params.Notes
	item.ProcessedAt = &now

	s.metrics.RecordTransition("waste_item", string(models.WasteStatusProcessed))
	s.notifier.Dispatch(ctx, &models.Notification{
		Title:        "Valorisation terminée",
		Message:      fmt.Sprintf("Un lot de la collecte a été traité: %s.", outcomeLabel(outcome)),
		Type:         models.NotificationSuccess,
		Category:     models.CategoryValorization,
		TargetRole:   models.RoleLogistique,
		ActionEntity: optionalString("waste_item"),
		ActionID:     &item.ID,
	})
	s.emitAudit(ctx, actor.UserID, models.AuditActionWasteFinalize, item.ID)
	return item, nil
}

// Get returns a single waste item.
func (s *WasteService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.WasteItem, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	return s.load(ctx, id)
}

// List returns waste items matching the query.
func (s *WasteService) List(ctx context.Context, query dto.WasteItemQuery, actor *models.JWTClaims) ([]models.WasteItem, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	filter := models.WasteItemFilter{
		Status:       query.Status,
		CollectionID: query.CollectionID,
		Limit:        query.Limit,
		Offset:       query.Offset,
	}
	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list waste items")
	}
	return items, nil
}

func (s *WasteService) load(ctx context.Context, id string) (*models.WasteItem, error) {
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "waste item not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load waste item")
	}
	return item, nil
}

func (s *WasteService) emitAudit(ctx context.Context, userID, action, resourceID string) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "waste_item",
		ResourceID: &resourceID,
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

func parseOutcome(raw string) (models.WasteOutcome, error) {
	switch models.WasteOutcome(strings.ToUpper(strings.TrimSpace(raw))) {
	case models.OutcomeRecycle:
		return models.OutcomeRecycle, nil
	case models.OutcomeDestroy:
		return models.OutcomeDestroy, nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, "outcome must be A_RECYCLER or A_DETRUIRE")
	}
}

func outcomeLabel(outcome models.WasteOutcome) string {
	switch outcome {
	case models.OutcomeRecycle:
		return "à recycler"
	case models.OutcomeDestroy:
		return "à détruire"
	default:
		return string(outcome)
	}
}
