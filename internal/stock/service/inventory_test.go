package service_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmatrack/pharmatrack-backend/internal/stock/repository"
	"github.com/pharmatrack/pharmatrack-backend/internal/stock/service"
	"github.com/pharmatrack/pharmatrack-backend/pkg/database"
	"github.com/pharmatrack/pharmatrack-backend/pkg/errors"
	"github.com/pharmatrack/pharmatrack-backend/pkg/logger"
	"github.com/pharmatrack/pharmatrack-backend/pkg/testutil"
)

func newMockInventory(t *testing.T) (*service.InventoryService, *testutil.MockDB) {
	t.Helper()

	mockDB := testutil.NewMockDB(t)
	t.Cleanup(func() { mockDB.Close() })

	log := logger.New("test", "test")
	db := database.NewFromSqlx(mockDB.DB, log)

	lotRepo := repository.NewLotRepository(db)
	movementRepo := repository.NewMovementRepository(db)
	stockView := repository.NewStockViewRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	ledger := service.NewLedgerService(db, lotRepo, movementRepo, stockView, nil, log)

	return service.NewInventoryService(db, sessionRepo, lotRepo, ledger, nil, log), mockDB
}

func sessionRow(id, sessionType, status string) *sqlmock.Rows {
	return testutil.MockRows(
		"id", "reference", "session_type", "status", "created_by",
		"created_at", "closed_at", "closed_by",
	).AddRow(
		id, "INV-20260831-ABCD1234", sessionType, status, "someone",
		time.Now(), nil, nil,
	)
}

func TestInventoryService_StartSession_UnknownType(t *testing.T) {
	inventory, mockDB := newMockInventory(t)

	session, err := inventory.StartSession(context.Background(), "annual", testActor())
	assert.Nil(t, session)
	assert.True(t, errors.Is(err, errors.ErrValidation))
	mockDB.ExpectationsWereMet(t)
}

func TestInventoryService_StartSession_FullSeedsLines(t *testing.T) {
	inventory, mockDB := newMockInventory(t)

	mockDB.ExpectBegin()
	mockDB.ExpectQuery("INSERT INTO inventory_sessions").
		WillReturnRows(testutil.MockRows("created_at").AddRow(time.Now()))
	mockDB.ExpectExec("INSERT INTO inventory_lines").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mockDB.ExpectCommit()

	session, err := inventory.StartSession(context.Background(), repository.SessionFull, testActor())
	require.NoError(t, err)

	assert.Equal(t, repository.SessionInProgress, session.Status)
	assert.True(t, strings.HasPrefix(session.Reference, "INV-"))
	mockDB.ExpectationsWereMet(t)
}

func TestInventoryService_StartSession_PartialStartsEmpty(t *testing.T) {
	inventory, mockDB := newMockInventory(t)

	// No line insert for a partial session.
	mockDB.ExpectBegin()
	mockDB.ExpectQuery("INSERT INTO inventory_sessions").
		WillReturnRows(testutil.MockRows("created_at").AddRow(time.Now()))
	mockDB.ExpectCommit()

	session, err := inventory.StartSession(context.Background(), repository.SessionPartial, testActor())
	require.NoError(t, err)
	assert.Equal(t, repository.SessionPartial, session.SessionType)
	mockDB.ExpectationsWereMet(t)
}

func TestInventoryService_RecordCount_RejectsNegative(t *testing.T) {
	inventory, mockDB := newMockInventory(t)

	line, err := inventory.RecordCount(context.Background(), "some-session", "some-lot", -1)
	assert.Nil(t, line)
	assert.True(t, errors.Is(err, errors.ErrValidation))
	mockDB.ExpectationsWereMet(t)
}

func TestInventoryService_RecordCount_ComputesDiscrepancy(t *testing.T) {
	inventory, mockDB := newMockInventory(t)

	sessionID := "11111111-2222-4333-8444-555555555555"
	lotID := "aaaaaaaa-bbbb-4ccc-8ddd-eeeeeeeeeeee"
	lineID := "99999999-8888-4777-8666-555555555555"

	mockDB.ExpectQuery("SELECT * FROM inventory_sessions WHERE id = $1").
		WillReturnRows(sessionRow(sessionID, repository.SessionPartial, repository.SessionInProgress))
	mockDB.ExpectQuery("SELECT * FROM inventory_lines WHERE session_id = $1 AND lot_id = $2").
		WillReturnRows(testutil.MockRows(
			"id", "session_id", "lot_id", "product_id", "theoretical",
			"counted", "discrepancy", "counted_at", "created_at",
		).AddRow(lineID, sessionID, lotID, "PROD-001", 50, nil, nil, nil, time.Now()))
	mockDB.ExpectExec("UPDATE inventory_lines").
		WithArgs(47, -3, lineID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	line, err := inventory.RecordCount(context.Background(), sessionID, lotID, 47)
	require.NoError(t, err)

	require.NotNil(t, line.Counted)
	assert.Equal(t, 47, *line.Counted)
	require.NotNil(t, line.Discrepancy)
	assert.Equal(t, -3, *line.Discrepancy)
	mockDB.ExpectationsWereMet(t)
}

func TestInventoryService_RecordCount_ClosedSession(t *testing.T) {
	inventory, mockDB := newMockInventory(t)

	sessionID := "11111111-2222-4333-8444-555555555555"
	mockDB.ExpectQuery("SELECT * FROM inventory_sessions WHERE id = $1").
		WillReturnRows(sessionRow(sessionID, repository.SessionFull, repository.SessionClosed))

	line, err := inventory.RecordCount(context.Background(), sessionID, "some-lot", 10)
	assert.Nil(t, line)
	assert.True(t, errors.Is(err, errors.ErrConflict))
	mockDB.ExpectationsWereMet(t)
}

func TestInventoryService_CloseSession_RefusesUncountedLines(t *testing.T) {
	inventory, mockDB := newMockInventory(t)

	sessionID := "11111111-2222-4333-8444-555555555555"
	mockDB.ExpectQuery("SELECT * FROM inventory_sessions WHERE id = $1").
		WillReturnRows(sessionRow(sessionID, repository.SessionPartial, repository.SessionInProgress))
	mockDB.ExpectQuery("SELECT COUNT(*) AS total").
		WillReturnRows(testutil.MockRows("total", "uncounted", "matched").AddRow(3, 1, 2))

	session, err := inventory.CloseSession(context.Background(), sessionID, testActor())
	assert.Nil(t, session)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))
	assert.Contains(t, err.Error(), "1 lines still uncounted")
	mockDB.ExpectationsWereMet(t)
}

func TestInventoryService_Progress_EmptySession(t *testing.T) {
	inventory, mockDB := newMockInventory(t)

	sessionID := "11111111-2222-4333-8444-555555555555"
	mockDB.ExpectQuery("SELECT * FROM inventory_sessions WHERE id = $1").
		WillReturnRows(sessionRow(sessionID, repository.SessionTargeted, repository.SessionInProgress))
	mockDB.ExpectQuery("SELECT COUNT(*) AS total").
		WillReturnRows(testutil.MockRows("total", "uncounted", "matched").AddRow(0, 0, 0))

	progress, err := inventory.Progress(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Zero(t, progress)
	mockDB.ExpectationsWereMet(t)
}

func TestInventoryService_ApplyLine_RequiresCount(t *testing.T) {
	inventory, mockDB := newMockInventory(t)

	sessionID := "11111111-2222-4333-8444-555555555555"
	lotID := "aaaaaaaa-bbbb-4ccc-8ddd-eeeeeeeeeeee"

	mockDB.ExpectQuery("SELECT * FROM inventory_sessions WHERE id = $1").
		WillReturnRows(sessionRow(sessionID, repository.SessionPartial, repository.SessionInProgress))
	mockDB.ExpectQuery("SELECT * FROM inventory_lines WHERE session_id = $1 AND lot_id = $2").
		WillReturnRows(testutil.MockRows(
			"id", "session_id", "lot_id", "product_id", "theoretical",
			"counted", "discrepancy", "counted_at", "created_at",
		).AddRow("line-1", sessionID, lotID, "PROD-001", 50, nil, nil, nil, time.Now()))

	movement, err := inventory.ApplyLine(context.Background(), sessionID, lotID, testActor())
	assert.Nil(t, movement)
	assert.True(t, errors.Is(err, errors.ErrConflict))
	mockDB.ExpectationsWereMet(t)
}
