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

const wasteColumns = `id, collection_id, type, category, quantity, condition, status, outcome,
       quantity_valorized, yield_pct, technician_id, notes, processed_at, created_at`

// WasteRepository persists waste item batches.
type WasteRepository struct {
	db *sqlx.DB
}

// NewWasteRepository constructs the repository.
func NewWasteRepository(db *sqlx.DB) *WasteRepository {
	return &WasteRepository{db: db}
}

// CreateBatch inserts the items produced by a delivery inside one transaction.
func (r *WasteRepository) CreateBatch(ctx context.Context, items []models.WasteItem) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin waste batch: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `INSERT INTO waste_items
	(id, collection_id, type, category, quantity, condition, status, outcome, quantity_valorized, yield_pct, technician_id, notes, processed_at, created_at)
	VALUES (:id, :collection_id, :type, :category, :quantity, :condition, :status, :outcome, :quantity_valorized, :yield_pct, :technician_id, :notes, :processed_at, :created_at)`
	now := time.Now().UTC()
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.NewString()
		}
		if items[i].Status == "" {
			items[i].Status = models.WasteStatusNew
		}
		if items[i].Outcome == "" {
			items[i].Outcome = models.OutcomePending
		}
		if items[i].CreatedAt.IsZero() {
			items[i].CreatedAt = now
		}
		if _, err := tx.NamedExecContext(ctx, query, items[i]); err != nil {
			return fmt.Errorf("insert waste item: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit waste batch: %w", err)
	}
	return nil
}

// GetByID fetches a waste item by identifier.
func (r *WasteRepository) GetByID(ctx context.Context, id string) (*models.WasteItem, error) {
	query := fmt.Sprintf(`SELECT %s FROM waste_items WHERE id = $1`, wasteColumns)
	var item models.WasteItem
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		return nil, err
	}
	return &item, nil
}

// List returns waste items matching the filter (latest first).
func (r *WasteRepository) List(ctx context.Context, filter models.WasteItemFilter) ([]models.WasteItem, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 3)
	builder.WriteString(fmt.Sprintf("SELECT %s FROM waste_items", wasteColumns))

	conditions := make([]string, 0, 3)
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CollectionID != "" {
		args = append(args, filter.CollectionID)
		conditions = append(conditions, fmt.Sprintf("collection_id = $%d", len(args)))
	}
	if filter.TechnicianID != "" {
		args = append(args, filter.TechnicianID)
		conditions = append(conditions, fmt.Sprintf("technician_id = $%d", len(args)))
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

	var items []models.WasteItem
	if err := r.db.SelectContext(ctx, &items, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list waste items: %w", err)
	}
	return items, nil
}

// Start assigns the acting technician and moves the item to EN_COURS.
func (r *WasteRepository) Start(ctx context.Context, id, technicianID string) error {
	query := fmt.Sprintf("UPDATE waste_items SET status = '%s', technician_id = $2 WHERE id = $1 AND status = '%s'",
		models.WasteStatusProcessing, models.WasteStatusNew)
	result, err := r.db.ExecContext(ctx, query, id, technicianID)
	if err != nil {
		return fmt.Errorf("start valorization: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check valorization start rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// FinalizeParams groups the terminal valorization columns.
type FinalizeParams struct {
	ID                string
	Outcome           models.WasteOutcome
	QuantityValorized *float64
	YieldPct          *float64
	Notes             *string
	ProcessedAt       time.Time
}

// Finalize records the valorization outcome. The status guard makes a second
// finalize fail with sql.ErrNoRows, leaving the first outcome untouched.
func (r *WasteRepository) Finalize(ctx context.Context, params FinalizeParams) error {
	query := fmt.Sprintf(`UPDATE waste_items
	SET status = '%s', outcome = :outcome, quantity_valorized = :quantity_valorized, yield_pct = :yield_pct, notes = :notes, processed_at = :processed_at
	WHERE id = :id AND status = '%s'`, models.WasteStatusProcessed, models.WasteStatusProcessing)
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":                 params.ID,
		"outcome":            params.Outcome,
		"quantity_valorized": params.QuantityValorized,
		"yield_pct":          params.YieldPct,
		"notes":              params.Notes,
		"processed_at":       params.ProcessedAt,
	})
	if err != nil {
		return fmt.Errorf("finalize valorization: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check valorization finalize rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
