package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/SalahKhadir/ecotrace-pfa-sub000/internal/models"
)

func TestWasteRepositoryCreateBatch(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewWasteRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO waste_items")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO waste_items")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	items := []models.WasteItem{
		{CollectionID: "col-1", Type: models.WasteTypeElectronic, Quantity: 25},
		{CollectionID: "col-1", Type: models.WasteTypePlastic, Quantity: 3, Category: "Bidons"},
	}
	require.NoError(t, repo.CreateBatch(context.Background(), items))
	require.NotEmpty(t, items[0].ID)
	require.Equal(t, models.WasteStatusNew, items[0].Status)
	require.Equal(t, models.OutcomePending, items[1].Outcome)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWasteRepositoryCreateBatchEmpty(t *testing.T) {
	db, _, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewWasteRepository(db)
	require.NoError(t, repo.CreateBatch(context.Background(), nil))
}

func TestWasteRepositoryStartGuard(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewWasteRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE waste_items SET status")).
		WithArgs("waste-1", "tech-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Start(context.Background(), "waste-1", "tech-1"))

	// A second start matches zero rows.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE waste_items SET status")).
		WithArgs("waste-1", "tech-2").
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.ErrorIs(t, repo.Start(context.Background(), "waste-1", "tech-2"), sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWasteRepositoryFinalizeGuard(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewWasteRepository(db)
	yield := 85.0
	params := FinalizeParams{
		ID:          "waste-1",
		Outcome:     models.OutcomeRecycle,
		YieldPct:    &yield,
		ProcessedAt: time.Now().UTC(),
	}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE waste_items")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Finalize(context.Background(), params))

	// A second finalize loses, leaving the first outcome untouched.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE waste_items")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.ErrorIs(t, repo.Finalize(context.Background(), params), sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
