package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/SalahKhadir/ecotrace-pfa-sub000/internal/models"
)

const requestColumns = `id, reference, requester_id, waste_type, quantity, description, desired_date, time_slot,
       mode, address, phone, instructions, photo_path, status, rejection_reason, admin_notes, priority, created_at, decided_at`

// RequestRepository persists collection requests.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository constructs the repository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create inserts a new request row.
func (r *RequestRepository) Create(ctx context.Context, request *models.Request) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.Status == "" {
		request.Status = models.RequestStatusPending
	}
	if request.Priority == "" {
		request.Priority = models.PriorityNormal
	}
	if request.CreatedAt.IsZero() {
		request.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO requests
	(id, reference, requester_id, waste_type, quantity, description, desired_date, time_slot, mode, address, phone, instructions, photo_path, status, rejection_reason, admin_notes, priority, created_at, decided_at)
	VALUES (:id, :reference, :requester_id, :waste_type, :quantity, :description, :desired_date, :time_slot, :mode, :address, :phone, :instructions, :photo_path, :status, :rejection_reason, :admin_notes, :priority, :created_at, :decided_at)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return nil
}

// GetByID fetches a request by identifier.
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*models.Request, error) {
	query := fmt.Sprintf("SELECT %s FROM requests WHERE id = $1", requestColumns)
	var request models.Request
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// List returns requests matching the filter (latest first).
func (r *RequestRepository) List(ctx context.Context, filter models.RequestFilter) ([]models.Request, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 4)
	builder.WriteString(fmt.Sprintf("SELECT %s FROM requests", requestColumns))

	conditions := make([]string, 0, 4)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.RequesterID != "" {
		args = append(args, filter.RequesterID)
		conditions = append(conditions, fmt.Sprintf("requester_id = $%d", len(args)))
	}
	if filter.WasteType != "" {
		args = append(args, filter.WasteType)
		conditions = append(conditions, fmt.Sprintf("waste_type = $%d", len(args)))
	}
	if filter.Priority != "" {
		args = append(args, filter.Priority)
		conditions = append(conditions, fmt.Sprintf("priority = $%d", len(args)))
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

	var requests []models.Request
	if err := r.db.SelectContext(ctx, &requests, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return requests, nil
}

// DecideRequestParams groups mutable columns for the admin decision.
type DecideRequestParams struct {
	ID              string
	Status          models.RequestStatus
	Priority        models.RequestPriority
	AdminNotes      *string
	RejectionReason *string
	DecidedAt       time.Time
}

// Decide persists the approve/reject outcome. The WHERE clause guards the
// transition so a concurrent decision loses with sql.ErrNoRows.
func (r *RequestRepository) Decide(ctx context.Context, params DecideRequestParams) error {
	query := fmt.Sprintf(`UPDATE requests
	SET status = :status, priority = :priority, admin_notes = :admin_notes, rejection_reason = :rejection_reason, decided_at = :decided_at
	WHERE id = :id AND status = '%s'`, models.RequestStatusPending)
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":               params.ID,
		"status":           params.Status,
		"priority":         params.Priority,
		"admin_notes":      params.AdminNotes,
		"rejection_reason": params.RejectionReason,
		"decided_at":       params.DecidedAt,
	})
	if err != nil {
		return fmt.Errorf("decide request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check request decision rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkScheduled denormalizes the scheduling step onto the request.
// Only an approved request may advance.
func (r *RequestRepository) MarkScheduled(ctx context.Context, id string) error {
	query := fmt.Sprintf("UPDATE requests SET status = '%s' WHERE id = $1 AND status = '%s'",
		models.RequestStatusScheduled, models.RequestStatusApproved)
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("mark request scheduled: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check request schedule rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
