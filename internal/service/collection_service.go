package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/SalahKhadir/ecotrace-pfa-sub000/internal/dto"
	"github.com/SalahKhadir/ecotrace-pfa-sub000/internal/models"
	"github.com/SalahKhadir/ecotrace-pfa-sub000/internal/repository"
	appErrors "github.com/SalahKhadir/ecotrace-pfa-sub000/pkg/errors"
)

type collectionStore interface {
	Create(ctx context.Context, collection *models.Collection) error
	GetByID(ctx context.Context, id string) (*models.Collection, error)
	GetByRequestID(ctx context.Context, requestID string) (*models.Collection, error)
	List(ctx context.Context, filter models.CollectionFilter) ([]models.Collection, error)
	AssignTransporter(ctx context.Context, id, transporterID string) error
	Transition(ctx context.Context, params repository.TransitionParams) error
}

type requestLookup interface {
	GetByID(ctx context.Context, id string) (*models.Request, error)
	MarkScheduled(ctx context.Context, id string) error
}

type userReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type wasteCreator interface {
	CreateBatch(ctx context.Context, items []models.WasteItem) error
}

// CollectionService orchestrates scheduling and the transport handshake.
type CollectionService struct {
	repo      collectionStore
	requests  requestLookup
	users     userReader
	waste     wasteCreator
	notifier  notificationDispatcher
	audit     auditLogger
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCollectionService constructs the service.
func NewCollectionService(repo collectionStore, requests requestLookup, users userReader, waste wasteCreator, notifier notificationDispatcher, audit auditLogger, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *CollectionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CollectionService{
		repo:      repo,
		requests:  requests,
		users:     users,
		waste:     waste,
		notifier:  notifier,
		audit:     audit,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// Schedule plans a pickup for an approved request. Exactly one collection may
// exist per request; a second attempt returns a conflict.
func (s *CollectionService) Schedule(ctx context.Context, payload dto.ScheduleCollectionPayload, actor *models.JWTClaims) (*models.Collection, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}

	request, err := s.requests.GetByID(ctx, payload.RequestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	switch request.Status {
	case models.RequestStatusApproved:
	case models.RequestStatusScheduled:
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("request %s already has a collection", request.Reference))
	default:
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("request %s cannot be scheduled from status %s", request.Reference, request.Status))
	}

	if payload.TransporterID != nil {
		if err := s.checkTransporter(ctx, *payload.TransporterID); err != nil {
			return nil, err
		}
	}

	collection := &models.Collection{
		Reference:     newReference("COL"),
		RequestID:     request.ID,
		ScheduledDate: payload.Date,
		TransporterID: payload.TransporterID,
		Address:       request.Address,
		Status:        models.CollectionStatusPlanned,
		Instructions:  payload.Instructions,
	}
	if err := s.repo.Create(ctx, collection); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("request %s already has a collection", request.Reference))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create collection")
	}
	if err := s.requests.MarkScheduled(ctx, request.ID); err != nil && !errors.Is(err, sql.ErrNoRows) {
		s.logger.Warn("failed to mark request scheduled", zap.String("request_id", request.ID), zap.Error(err))
	}

	s.metrics.RecordTransition("collection", string(models.CollectionStatusPlanned))
	if payload.TransporterID != nil {
		s.notifier.Dispatch(ctx, &models.Notification{
			Title:        "Nouvelle collecte assignée",
			Message:      fmt.Sprintf("La collecte %s vous a été assignée pour le %s.", collection.Reference, collection.ScheduledDate.Format("02/01/2006")),
			Type:         models.NotificationInfo,
			Category:     models.CategoryCollection,
			TargetUserID: payload.TransporterID,
			ActionEntity: optionalString("collection"),
			ActionID:     &collection.ID,
		})
	}
	s.notifier.Dispatch(ctx, &models.Notification{
		Title:        "Collecte planifiée",
		Message:      fmt.Sprintf("Votre demande %s est planifiée pour le %s.", request.Reference, collection.ScheduledDate.Format("02/01/2006")),
		Type:         models.NotificationInfo,
		Category:     models.CategoryCollection,
		TargetUserID: &request.RequesterID,
		ActionEntity: optionalString("collection"),
		ActionID:     &collection.ID,
	})
	s.emitAudit(ctx, actor.UserID, models.AuditActionCollectionPlan, collection.ID)
	return collection, nil
}

// AssignTransporter binds a transporter to a still-planned collection.
func (s *CollectionService) AssignTransporter(ctx context.Context, id string, payload dto.AssignTransporterPayload, actor *models.JWTClaims) (*models.Collection, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	collection, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if collection.Status != models.CollectionStatusPlanned {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("collection %s is %s, transporter can only change while planned", collection.Reference, collection.Status))
	}
	if err := s.checkTransporter(ctx, payload.TransporterID); err != nil {
		return nil, err
	}
	if err := s.repo.AssignTransporter(ctx, collection.ID, payload.TransporterID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "collection is no longer planned")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign transporter")
	}
	collection.TransporterID = &payload.TransporterID

	s.notifier.Dispatch(ctx, &models.Notification{
		Title:        "Nouvelle collecte assignée",
		Message:      fmt.Sprintf("La collecte %s vous a été assignée pour le %s.", collection.Reference, collection.ScheduledDate.Format("02/01/2006")),
		Type:         models.NotificationInfo,
		Category:     models.CategoryCollection,
		TargetUserID: &payload.TransporterID,
		ActionEntity: optionalString("collection"),
		ActionID:     &collection.ID,
	})
	s.emitAudit(ctx, actor.UserID, models.AuditActionCollectionAssign, collection.ID)
	return collection, nil
}

// ConfirmReception is phase one of the handshake: the assigned transporter
// confirms physical pickup, moving the collection to EN_COURS.
func (s *CollectionService) ConfirmReception(ctx context.Context, id string, payload dto.ConfirmReceptionPayload, actor *models.JWTClaims) (*models.Collection, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	collection, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if collection.TransporterID == nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			"a transporter must be assigned before reception can be confirmed")
	}
	if actor.Role == models.RoleTransporteur && *collection.TransporterID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "collection is assigned to another transporter")
	}
	if !collection.Status.CanTransition(models.CollectionStatusInTransit) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("collection %s cannot start transit from status %s", collection.Reference, collection.Status))
	}

	now := time.Now().UTC()
	params := repository.TransitionParams{
		ID:         collection.ID,
		From:       models.CollectionStatusPlanned,
		To:         models.CollectionStatusInTransit,
		ReceivedAt: &now,
	}
	if err := s.repo.Transition(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "collection is no longer planned")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to confirm reception")
	}
	collection.Status = models.CollectionStatusInTransit
	collection.ReceivedAt = &now

	s.metrics.RecordTransition("collection", string(models.CollectionStatusInTransit))
	s.notifyRequester(ctx, collection, "Collecte en cours",
		fmt.Sprintf("La collecte %s a été récupérée par le transporteur.", collection.Reference), models.NotificationInfo)
	s.notifier.Dispatch(ctx, &models.Notification{
		Title:        "Collecte en transit",
		Message:      fmt.Sprintf("La collecte %s est en cours d'acheminement.", collection.Reference),
		Type:         models.NotificationInfo,
		Category:     models.CategoryCollection,
		TargetRole:   models.RoleLogistique,
		ActionEntity: optionalString("collection"),
		ActionID:     &collection.ID,
	})
	s.emitAudit(ctx, actor.UserID, models.AuditActionCollectionReceive, collection.ID)
	return collection, nil
}

// ConfirmDelivery is phase two: hand-off to the technician. It completes the
// collection and materializes the waste items the technician will process.
func (s *CollectionService) ConfirmDelivery(ctx context.Context, id string, payload dto.ConfirmDeliveryPayload, actor *models.JWTClaims) (*models.Collection, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "delivery notes are required")
	}
	collection, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if collection.TransporterID == nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			"a transporter must be assigned before delivery can be confirmed")
	}
	if actor.Role == models.RoleTransporteur && *collection.TransporterID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "collection is assigned to another transporter")
	}
	if !collection.Status.CanTransition(models.CollectionStatusCompleted) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("collection %s cannot be delivered from status %s", collection.Reference, collection.Status))
	}

	request, err := s.requests.GetByID(ctx, collection.RequestID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load originating request")
	}
	items, err := buildWasteItems(collection, request, payload)
	if err != nil {
		return nil, err
	}

	// The batch insert goes first: if it fails the collection stays EN_COURS
	// and the transporter can confirm the delivery again.
	if err := s.waste.CreateBatch(ctx, items); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register delivered waste")
	}

	now := time.Now().UTC()
	params := repository.TransitionParams{
		ID:          collection.ID,
		From:        models.CollectionStatusInTransit,
		To:          models.CollectionStatusCompleted,
		DeliveredAt: &now,
	}
	if err := s.repo.Transition(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "collection is no longer in transit")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to confirm delivery")
	}
	collection.Status = models.CollectionStatusCompleted
	collection.DeliveredAt = &now

	s.metrics.RecordTransition("collection", string(models.CollectionStatusCompleted))
	s.notifier.Dispatch(ctx, &models.Notification{
		Title:        "Nouveau lot à valoriser",
		Message:      fmt.Sprintf("La collecte %s a été livrée: %d lot(s) à traiter.", collection.Reference, len(items)),
		Type:         models.NotificationInfo,
		Category:     models.CategoryValorization,
		TargetRole:   models.RoleTechnicien,
		ActionEntity: optionalString("collection"),
		ActionID:     &collection.ID,
	})
	s.notifyRequester(ctx, collection, "Collecte terminée",
		fmt.Sprintf("La collecte %s a été livrée au centre de valorisation.", collection.Reference), models.NotificationSuccess)
	s.emitAudit(ctx, actor.UserID, models.AuditActionCollectionDeliver, collection.ID)
	return collection, nil
}

// Cancel aborts a planned or in-transit collection. A motive is mandatory.
func (s *CollectionService) Cancel(ctx context.Context, id string, payload dto.CancelCollectionPayload, actor *models.JWTClaims) (*models.Collection, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if strings.TrimSpace(payload.Motif) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cancellation motive is required")
	}
	collection, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !collection.Status.CanTransition(models.CollectionStatusCancelled) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("collection %s cannot be cancelled from status %s", collection.Reference, collection.Status))
	}

	params := repository.TransitionParams{
		ID:           collection.ID,
		From:         collection.Status,
		To:           models.CollectionStatusCancelled,
		CancelReason: optionalString(payload.Motif),
	}
	if err := s.repo.Transition(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "collection status changed concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel collection")
	}
	collection.Status = models.CollectionStatusCancelled
	collection.CancelReason = params.CancelReason

	s.metrics.RecordTransition("collection", string(models.CollectionStatusCancelled))
	if collection.TransporterID != nil {
		s.notifier.Dispatch(ctx, &models.Notification{
			Title:        "Collecte annulée",
			Message:      fmt.Sprintf("La collecte %s a été annulée: %s", collection.Reference, payload.Motif),
			Type:         models.NotificationWarning,
			Category:     models.CategoryCollection,
			TargetUserID: collection.TransporterID,
			ActionEntity: optionalString("collection"),
			ActionID:     &collection.ID,
		})
	}
	s.notifyRequester(ctx, collection, "Collecte annulée",
		fmt.Sprintf("La collecte %s a été annulée: %s", collection.Reference, payload.Motif), models.NotificationWarning)
	s.emitAudit(ctx, actor.UserID, models.AuditActionCollectionCancel, collection.ID)
	return collection, nil
}

// Get returns a collection with role scoping applied.
func (s *CollectionService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Collection, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	collection, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case actor.Role == models.RoleTransporteur:
		if collection.TransporterID == nil || *collection.TransporterID != actor.UserID {
			return nil, appErrors.ErrForbidden
		}
	case actor.Role.IsRequester():
		request, err := s.requests.GetByID(ctx, collection.RequestID)
		if err != nil || request.RequesterID != actor.UserID {
			return nil, appErrors.ErrForbidden
		}
	}
	return collection, nil
}

// List returns collections visible to the actor. Transporters only see their
// own assignments.
func (s *CollectionService) List(ctx context.Context, query dto.CollectionQuery, actor *models.JWTClaims) ([]models.Collection, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	filter := models.CollectionFilter{
		Status: query.Status,
		Limit:  query.Limit,
		Offset: query.Offset,
	}
	if actor.Role == models.RoleTransporteur {
		filter.TransporterID = actor.UserID
	} else if query.TransporterID != "" {
		filter.TransporterID = query.TransporterID
	}
	collections, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list collections")
	}
	return collections, nil
}

func (s *CollectionService) load(ctx context.Context, id string) (*models.Collection, error) {
	collection, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "collection not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load collection")
	}
	return collection, nil
}

func (s *CollectionService) checkTransporter(ctx context.Context, id string) error {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "transporter not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify transporter")
	}
	if user.Role != models.RoleTransporteur {
		return appErrors.Clone(appErrors.ErrValidation, "user is not a transporter")
	}
	if !user.Active {
		return appErrors.Clone(appErrors.ErrValidation, "transporter account is inactive")
	}
	return nil
}

func (s *CollectionService) notifyRequester(ctx context.Context, collection *models.Collection, title, message string, kind models.NotificationType) {
	request, err := s.requests.GetByID(ctx, collection.RequestID)
	if err != nil {
		s.logger.Warn("failed to resolve requester for notification",
			zap.String("collection_id", collection.ID), zap.Error(err))
		return
	}
	s.notifier.Dispatch(ctx, &models.Notification{
		Title:        title,
		Message:      message,
		Type:         kind,
		Category:     models.CategoryCollection,
		TargetUserID: &request.RequesterID,
		ActionEntity: optionalString("collection"),
		ActionID:     &collection.ID,
	})
}

func (s *CollectionService) emitAudit(ctx context.Context, userID, action, resourceID string) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "collection",
		ResourceID: &resourceID,
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

// buildWasteItems turns the delivered load into technician work items: one
// base item from the originating request plus any extras declared on-site.
func buildWasteItems(collection *models.Collection, request *models.Request, payload dto.ConfirmDeliveryPayload) ([]models.WasteItem, error) {
	quantity := parseQuantity(request.Quantity)
	if payload.ActualQuantity != nil && *payload.ActualQuantity > 0 {
		quantity = *payload.ActualQuantity
	}
	items := []models.WasteItem{{
		CollectionID: collection.ID,
		Type:         request.WasteType,
		Category:     request.Description,
		Quantity:     quantity,
		Status:       models.WasteStatusNew,
		Outcome:      models.OutcomePending,
		Notes:        optionalString(payload.Notes),
	}}
	for _, extra := range payload.ExtraItems {
		wasteType, err := parseWasteType(extra.Type)
		if err != nil {
			return nil, err
		}
		if extra.Quantity <= 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "extra item quantity must be positive")
		}
		items = append(items, models.WasteItem{
			CollectionID: collection.ID,
			Type:         wasteType,
			Category:     extra.Category,
			Quantity:     extra.Quantity,
			Condition:    extra.Condition,
			Status:       models.WasteStatusNew,
			Outcome:      models.OutcomePending,
		})
	}
	return items, nil
}

// parseQuantity extracts the leading numeric part from free-form quantity
// text such as "25 kg". Defaults to 1 when nothing parses.
func parseQuantity(raw string) float64 {
	raw = strings.TrimSpace(raw)
	end := 0
	for end < len(raw) && (raw[end] >= '0' && raw[end] <= '9' || raw[end] == '.' || raw[end] == ',') {
		end++
	}
	if end == 0 {
		return 1
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(raw[:end], ",", "."), 64)
	if err != nil || value <= 0 {
		return 1
	}
	return value
}
