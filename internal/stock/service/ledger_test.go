package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmatrack/pharmatrack-backend/internal/stock/repository"
	"github.com/pharmatrack/pharmatrack-backend/internal/stock/service"
	"github.com/pharmatrack/pharmatrack-backend/pkg/actor"
	"github.com/pharmatrack/pharmatrack-backend/pkg/database"
	"github.com/pharmatrack/pharmatrack-backend/pkg/errors"
	"github.com/pharmatrack/pharmatrack-backend/pkg/logger"
	"github.com/pharmatrack/pharmatrack-backend/pkg/testutil"
)

func newMockLedger(t *testing.T) (*service.LedgerService, *testutil.MockDB) {
	t.Helper()

	mockDB := testutil.NewMockDB(t)
	t.Cleanup(func() { mockDB.Close() })

	log := logger.New("test", "test")
	db := database.NewFromSqlx(mockDB.DB, log)

	lotRepo := repository.NewLotRepository(db)
	movementRepo := repository.NewMovementRepository(db)
	stockView := repository.NewStockViewRepository(db)

	return service.NewLedgerService(db, lotRepo, movementRepo, stockView, nil, log), mockDB
}

func testActor() actor.Actor {
	return actor.Actor{ID: "e7a3cbb4-9c3f-4d26-a847-27f4e80f5c3a", Name: "Test Operator"}
}

func validLotInput() service.CreateLotInput {
	return service.CreateLotInput{
		ProductID:       "PROD-001",
		LotNumber:       "LOT-1",
		InitialQuantity: 50,
		PurchasePrice:   decimal.RequireFromString("2.50"),
		ReceivedDate:    time.Now(),
		ExpiryDate:      time.Now().AddDate(0, 0, 20),
		Status:          repository.StatusInStock,
	}
}

func TestLedgerService_CreateLot_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*service.CreateLotInput)
	}{
		{"unknown status", func(in *service.CreateLotInput) {
			in.Status = "destroyed"
		}},
		{"empty status with quantity", func(in *service.CreateLotInput) {
			in.Status = repository.StatusEmpty
		}},
		{"exhausted status with quantity", func(in *service.CreateLotInput) {
			in.Status = repository.StatusExhausted
		}},
		{"in_stock with zero quantity", func(in *service.CreateLotInput) {
			in.InitialQuantity = 0
		}},
		{"negative quantity", func(in *service.CreateLotInput) {
			in.InitialQuantity = -5
		}},
		{"past expiry date", func(in *service.CreateLotInput) {
			in.ExpiryDate = time.Now().AddDate(0, 0, -1)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger, mockDB := newMockLedger(t)

			in := validLotInput()
			tt.mutate(&in)

			// Rejected at the boundary, nothing reaches the database.
			lot, err := ledger.CreateLot(context.Background(), in, testActor())
			assert.Nil(t, lot)
			assert.True(t, errors.Is(err, errors.ErrValidation))
			mockDB.ExpectationsWereMet(t)
		})
	}
}

// setLocalZone pins the process-wide zone so date handling can be checked
// away from UTC. Restored on cleanup.
func setLocalZone(t *testing.T, name string) {
	t.Helper()

	loc, err := time.LoadLocation(name)
	require.NoError(t, err)

	prev := time.Local
	time.Local = loc
	t.Cleanup(func() { time.Local = prev })
}

func TestLedgerService_CreateLot_AcceptsExpiryTodayWestOfUTC(t *testing.T) {
	// Date-only fields parse to midnight UTC, which is earlier than local
	// midnight in negative-offset zones. A lot expiring today is still valid.
	setLocalZone(t, "America/New_York")

	ledger, mockDB := newMockLedger(t)

	now := time.Now().UTC()
	in := validLotInput()
	in.ExpiryDate = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("INSERT INTO lots").
		WillReturnRows(testutil.MockRows("created_at", "updated_at").AddRow(now, now))
	mockDB.ExpectQuery("INSERT INTO movements").
		WillReturnRows(testutil.MockRows("recorded_at").AddRow(now))
	mockDB.ExpectCommit()

	lot, err := ledger.CreateLot(context.Background(), in, testActor())
	require.NoError(t, err)
	assert.NotEmpty(t, lot.ID)
	mockDB.ExpectationsWereMet(t)
}

func TestLedgerService_CreateLot_WritesLotAndEntryMovement(t *testing.T) {
	ledger, mockDB := newMockLedger(t)

	now := time.Now()
	mockDB.ExpectBegin()
	mockDB.ExpectQuery("INSERT INTO lots").
		WillReturnRows(testutil.MockRows("created_at", "updated_at").AddRow(now, now))
	mockDB.ExpectQuery("INSERT INTO movements").
		WillReturnRows(testutil.MockRows("recorded_at").AddRow(now))
	mockDB.ExpectCommit()

	lot, err := ledger.CreateLot(context.Background(), validLotInput(), testActor())
	require.NoError(t, err)

	assert.NotEmpty(t, lot.ID)
	assert.Equal(t, 50, lot.InitialQuantity)
	assert.Equal(t, 50, lot.CurrentQuantity)
	mockDB.ExpectationsWereMet(t)
}

func TestLedgerService_CreateLot_RollsBackWhenMovementFails(t *testing.T) {
	ledger, mockDB := newMockLedger(t)

	now := time.Now()
	mockDB.ExpectBegin()
	mockDB.ExpectQuery("INSERT INTO lots").
		WillReturnRows(testutil.MockRows("created_at", "updated_at").AddRow(now, now))
	mockDB.ExpectQuery("INSERT INTO movements").
		WillReturnError(assert.AnError)
	mockDB.ExpectRollback()

	lot, err := ledger.CreateLot(context.Background(), validLotInput(), testActor())
	assert.Error(t, err)
	assert.Nil(t, lot)
	mockDB.ExpectationsWereMet(t)
}

func lotRow(id string, current int) *sqlmock.Rows {
	now := time.Now()
	return testutil.MockRows(
		"id", "product_id", "lot_number", "initial_quantity", "current_quantity",
		"purchase_price", "received_date", "expiry_date", "status", "created_by",
		"created_at", "updated_at",
	).AddRow(
		id, "PROD-001", "LOT-1", 50, current,
		"2.50", now, now.AddDate(0, 0, 20), "in_stock", "someone",
		now, now,
	)
}

func TestLedgerService_AdjustQuantity_RejectsNegative(t *testing.T) {
	ledger, mockDB := newMockLedger(t)

	movement, err := ledger.AdjustQuantity(context.Background(), "some-lot", -1, "", testActor())
	assert.Nil(t, movement)
	assert.True(t, errors.Is(err, errors.ErrValidation))
	mockDB.ExpectationsWereMet(t)
}

func TestLedgerService_AdjustQuantity_RecordsUnsignedDelta(t *testing.T) {
	tests := []struct {
		name        string
		current     int
		newQuantity int
		wantDelta   int
	}{
		{"decrease", 50, 30, 20},
		{"increase", 50, 80, 30},
		{"no change", 50, 50, 0},
		{"down to zero", 50, 0, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger, mockDB := newMockLedger(t)

			lotID := "0c0ffe60-1111-4a4a-9999-aaaaaaaaaaaa"
			now := time.Now()

			mockDB.ExpectBegin()
			mockDB.ExpectQuery("SELECT * FROM lots WHERE id = $1 FOR UPDATE").
				WillReturnRows(lotRow(lotID, tt.current))
			mockDB.ExpectExec("UPDATE lots SET current_quantity").
				WillReturnResult(sqlmock.NewResult(0, 1))
			mockDB.ExpectQuery("INSERT INTO movements").
				WillReturnRows(testutil.MockRows("recorded_at").AddRow(now))
			mockDB.ExpectCommit()

			// Post-commit advisory alert check.
			mockDB.ExpectQuery("SELECT SUM(current_quantity) FROM lots").
				WillReturnRows(testutil.MockRows("sum").AddRow(tt.newQuantity))

			movement, err := ledger.AdjustQuantity(context.Background(), lotID, tt.newQuantity, "stock recount", testActor())
			require.NoError(t, err)

			assert.Equal(t, repository.MovementAdjustment, movement.MovementType)
			assert.Equal(t, tt.wantDelta, movement.Quantity)
			assert.Equal(t, tt.current, movement.QuantityBefore)
			assert.Equal(t, tt.newQuantity, movement.QuantityAfter)
			mockDB.ExpectationsWereMet(t)
		})
	}
}

func TestLedgerService_ChangeStatus_RejectsQuantityMismatch(t *testing.T) {
	tests := []struct {
		name      string
		current   int
		newStatus string
	}{
		{"in_stock with zero quantity", 0, repository.StatusInStock},
		{"empty with remaining quantity", 5, repository.StatusEmpty},
		{"exhausted with remaining quantity", 5, repository.StatusExhausted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger, mockDB := newMockLedger(t)

			lotID := "0c0ffe60-1111-4a4a-9999-aaaaaaaaaaaa"
			mockDB.ExpectBegin()
			mockDB.ExpectQuery("SELECT * FROM lots WHERE id = $1 FOR UPDATE").
				WillReturnRows(lotRow(lotID, tt.current))
			mockDB.ExpectRollback()

			err := ledger.ChangeStatus(context.Background(), lotID, tt.newStatus, testActor())
			assert.True(t, errors.Is(err, errors.ErrValidation))
			mockDB.ExpectationsWereMet(t)
		})
	}
}

func TestLedgerService_ChangeStatus_UnknownStatus(t *testing.T) {
	ledger, mockDB := newMockLedger(t)

	err := ledger.ChangeStatus(context.Background(), "some-lot", "misplaced", testActor())
	assert.True(t, errors.Is(err, errors.ErrValidation))
	mockDB.ExpectationsWereMet(t)
}
