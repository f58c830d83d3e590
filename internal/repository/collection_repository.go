package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/SalahKhadir/ecotrace-pfa-sub000/internal/models"
)

// ErrDuplicateKey flags unique-constraint violations to the service layer.
var ErrDuplicateKey = errors.New("duplicate key")

const collectionColumns = `id, reference, request_id, scheduled_date, transporter_id, address, status,
       instructions, cancel_reason, received_at, delivered_at, created_at`

// CollectionRepository persists scheduled pickups.
type CollectionRepository struct {
	db *sqlx.DB
}

// NewCollectionRepository constructs the repository.
func NewCollectionRepository(db *sqlx.DB) *CollectionRepository {
	return &CollectionRepository{db: db}
}

// Create inserts a new collection. The request_id column carries a UNIQUE
// constraint enforcing the one-to-one invariant; violations surface as
// ErrDuplicateKey.
func (r *CollectionRepository) Create(ctx context.Context, collection *models.Collection) error {
	if collection.ID == "" {
		collection.ID = uuid.NewString()
	}
	if collection.Status == "" {
		collection.Status = models.CollectionStatusPlanned
	}
	if collection.CreatedAt.IsZero() {
		collection.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO collections
	(id, reference, request_id, scheduled_date, transporter_id, address, status, instructions, cancel_reason, received_at, delivered_at, created_at)
	VALUES (:id, :reference, :request_id, :scheduled_date, :transporter_id, :address, :status, :instructions, :cancel_reason, :received_at, :delivered_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, collection); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create collection: %w", err)
	}
	return nil
}

// GetByID fetches a collection by identifier.
func (r *CollectionRepository) GetByID(ctx context.Context, id string) (*models.Collection, error) {
	query := fmt.Sprintf("SELECT %s FROM collections WHERE id = $1", collectionColumns)
	var collection models.Collection
	if err := r.db.GetContext(ctx, &collection, query, id); err != nil {
		return nil, err
	}
	return &collection, nil
}

// GetByRequestID fetches the collection planned for a given request, if any.
func (r *CollectionRepository) GetByRequestID(ctx context.Context, requestID string) (*models.Collection, error) {
	query := fmt.Sprintf("SELECT %s FROM collections WHERE request_id = $1", collectionColumns)
	var collection models.Collection
	if err := r.db.GetContext(ctx, &collection, query, requestID); err != nil {
		return nil, err
	}
	return &collection, nil
}

// List returns collections matching the filter (latest first).
func (r *CollectionRepository) List(ctx context.Context, filter models.CollectionFilter) ([]models.Collection, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 3)
	builder.WriteString(fmt.Sprintf("SELECT %s FROM collections", collectionColumns))

	conditions := make([]string, 0, 3)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.TransporterID != "" {
		args = append(args, filter.TransporterID)
		conditions = append(conditions, fmt.Sprintf("transporter_id = $%d", len(args)))
	}
	if filter.RequestID != "" {
		args = append(args, filter.RequestID)
		conditions = append(conditions, fmt.Sprintf("request_id = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var collections []models.Collection
	if err := r.db.SelectContext(ctx, &collections, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return collections, nil
}

// AssignTransporter binds a transporter while the collection is still planned.
func (r *CollectionRepository) AssignTransporter(ctx context.Context, id, transporterID string) error {
	query := fmt.Sprintf("UPDATE collections SET transporter_id = $2 WHERE id = $1 AND status = '%s'",
		models.CollectionStatusPlanned)
	result, err := r.db.ExecContext(ctx, query, id, transporterID)
	if err != nil {
		return fmt.Errorf("assign transporter: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check transporter assignment rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// TransitionParams groups the guarded status change columns.
type TransitionParams struct {
	ID           string
	From         models.CollectionStatus
	To           models.CollectionStatus
	ReceivedAt   *time.Time
	DeliveredAt  *time.Time
	CancelReason *string
}

// Transition moves a collection between statuses. The expected source status
// is part of the WHERE clause, so a stale caller gets sql.ErrNoRows instead
// of clobbering a concurrent transition.
func (r *CollectionRepository) Transition(ctx context.Context, params TransitionParams) error {
	setParts := []string{"status = :status"}
	if params.ReceivedAt != nil {
		setParts = append(setParts, "received_at = :received_at")
	}
	if params.DeliveredAt != nil {
		setParts = append(setParts, "delivered_at = :delivered_at")
	}
	if params.CancelReason != nil {
		setParts = append(setParts, "cancel_reason = :cancel_reason")
	}
	query := fmt.Sprintf("UPDATE collections SET %s WHERE id = :id AND status = '%s'",
		strings.Join(setParts, ", "), params.From)
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":            params.ID,
		"status":        params.To,
		"received_at":   params.ReceivedAt,
		"delivered_at":  params.DeliveredAt,
		"cancel_reason": params.CancelReason,
	})
	if err != nil {
		return fmt.Errorf("transition collection: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check collection transition rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
