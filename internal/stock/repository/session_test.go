package repository_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmatrack/pharmatrack-backend/internal/stock/repository"
	"github.com/pharmatrack/pharmatrack-backend/pkg/database"
	"github.com/pharmatrack/pharmatrack-backend/pkg/errors"
)

func startSession(t *testing.T, ctx context.Context, db *database.DB, sessionType string) *repository.InventorySession {
	t.Helper()

	sessionRepo := repository.NewSessionRepository(db)
	session := &repository.InventorySession{
		ID:          uuid.New().String(),
		Reference:   "INV-TEST-" + uuid.New().String()[:8],
		SessionType: sessionType,
		Status:      repository.SessionInProgress,
		CreatedBy:   uuid.New().String(),
	}

	err := db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if err := sessionRepo.CreateTx(ctx, tx, session); err != nil {
			return err
		}
		if sessionType == repository.SessionFull {
			if _, err := sessionRepo.SeedFullTx(ctx, tx, session.ID); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	return session
}

func TestSessionRepository_FullSessionSeedsInStockLots(t *testing.T) {
	integrationOnly(t)
	ctx := context.Background()
	db := suite.SetupStockSchema(t, ctx, "session-seed")

	productID := insertProduct(t, ctx, db, "Ibuprofen 400mg")
	lotA := createLot(t, ctx, db, newLot(productID, 30, 60))
	lotB := createLot(t, ctx, db, newLot(productID, 20, 90))
	lotC := createLot(t, ctx, db, newLot(productID, 15, 120))

	// Quarantined and empty lots are not part of a full count.
	quarantined := newLot(productID, 40, 60)
	quarantined.Status = repository.StatusQuarantine
	createLot(t, ctx, db, quarantined)

	session := startSession(t, ctx, db, repository.SessionFull)

	sessionRepo := repository.NewSessionRepository(db)
	lines, err := sessionRepo.ListLines(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, lines, 3)

	byLot := make(map[string]*repository.InventoryLine, len(lines))
	for _, line := range lines {
		byLot[line.LotID] = line
	}
	for _, lot := range []*repository.Lot{lotA, lotB, lotC} {
		line, ok := byLot[lot.ID]
		require.True(t, ok, "missing line for lot %s", lot.LotNumber)
		assert.Equal(t, lot.CurrentQuantity, line.Theoretical)
		require.NotNil(t, line.Counted)
		assert.Equal(t, lot.CurrentQuantity, *line.Counted)
		require.NotNil(t, line.Discrepancy)
		assert.Equal(t, 0, *line.Discrepancy)
		assert.NotNil(t, line.CountedAt)
	}

	// An untouched full session reads as fully reconciled.
	total, uncounted, matched := lineCounts(t, ctx, sessionRepo, session.ID)
	assert.Equal(t, 3, total)
	assert.Equal(t, 0, uncounted)
	assert.Equal(t, 3, matched)
}

func TestSessionRepository_CountIntroducesDiscrepancy(t *testing.T) {
	integrationOnly(t)
	ctx := context.Background()
	db := suite.SetupStockSchema(t, ctx, "session-count")

	productID := insertProduct(t, ctx, db, "Aspirin")
	lot := createLot(t, ctx, db, newLot(productID, 50, 60))
	createLot(t, ctx, db, newLot(productID, 25, 90))

	session := startSession(t, ctx, db, repository.SessionFull)
	sessionRepo := repository.NewSessionRepository(db)

	line, err := sessionRepo.GetLineByLot(ctx, session.ID, lot.ID)
	require.NoError(t, err)

	// Physical count finds 47, three short of the frozen theoretical.
	require.NoError(t, sessionRepo.UpdateCount(ctx, line.ID, 47, -3))

	line, err = sessionRepo.GetLineByLot(ctx, session.ID, lot.ID)
	require.NoError(t, err)
	require.NotNil(t, line.Counted)
	assert.Equal(t, 47, *line.Counted)
	require.NotNil(t, line.Discrepancy)
	assert.Equal(t, -3, *line.Discrepancy)

	total, uncounted, matched := lineCounts(t, ctx, sessionRepo, session.ID)
	assert.Equal(t, 2, total)
	assert.Equal(t, 0, uncounted)
	assert.Equal(t, 1, matched)

	// A re-count overwrites the previous one.
	require.NoError(t, sessionRepo.UpdateCount(ctx, line.ID, 50, 0))
	_, _, matched = lineCounts(t, ctx, sessionRepo, session.ID)
	assert.Equal(t, 2, matched)
}

func TestSessionRepository_PartialSessionLines(t *testing.T) {
	integrationOnly(t)
	ctx := context.Background()
	db := suite.SetupStockSchema(t, ctx, "session-partial")

	productID := insertProduct(t, ctx, db, "Omeprazole")
	lot := createLot(t, ctx, db, newLot(productID, 40, 60))
	createLot(t, ctx, db, newLot(productID, 10, 90))

	session := startSession(t, ctx, db, repository.SessionPartial)
	sessionRepo := repository.NewSessionRepository(db)

	// Partial sessions start empty.
	lines, err := sessionRepo.ListLines(ctx, session.ID)
	require.NoError(t, err)
	assert.Empty(t, lines)

	line := &repository.InventoryLine{
		ID:          uuid.New().String(),
		SessionID:   session.ID,
		LotID:       lot.ID,
		ProductID:   productID,
		Theoretical: lot.CurrentQuantity,
	}
	require.NoError(t, sessionRepo.AddLine(ctx, line))
	assert.False(t, line.CreatedAt.IsZero())

	// The same lot cannot be enrolled twice in one session.
	dup := &repository.InventoryLine{
		ID:          uuid.New().String(),
		SessionID:   session.ID,
		LotID:       lot.ID,
		ProductID:   productID,
		Theoretical: lot.CurrentQuantity,
	}
	err = sessionRepo.AddLine(ctx, dup)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))

	total, uncounted, matched := lineCounts(t, ctx, sessionRepo, session.ID)
	assert.Equal(t, 1, total)
	assert.Equal(t, 1, uncounted)
	assert.Equal(t, 0, matched)
}

func TestSessionRepository_Close(t *testing.T) {
	integrationOnly(t)
	ctx := context.Background()
	db := suite.SetupStockSchema(t, ctx, "session-close")

	productID := insertProduct(t, ctx, db, "Metformin")
	createLot(t, ctx, db, newLot(productID, 60, 60))

	session := startSession(t, ctx, db, repository.SessionFull)
	sessionRepo := repository.NewSessionRepository(db)

	closedBy := uuid.New().String()
	require.NoError(t, sessionRepo.Close(ctx, session.ID, closedBy))

	closed, err := sessionRepo.GetByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.SessionClosed, closed.Status)
	require.NotNil(t, closed.ClosedAt)
	require.NotNil(t, closed.ClosedBy)
	assert.Equal(t, closedBy, *closed.ClosedBy)

	// Closing is terminal.
	err = sessionRepo.Close(ctx, session.ID, closedBy)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))
}

func TestSessionRepository_ListFiltersByStatus(t *testing.T) {
	integrationOnly(t)
	ctx := context.Background()
	db := suite.SetupStockSchema(t, ctx, "session-list")

	open := startSession(t, ctx, db, repository.SessionCyclic)
	done := startSession(t, ctx, db, repository.SessionTargeted)

	sessionRepo := repository.NewSessionRepository(db)
	require.NoError(t, sessionRepo.Close(ctx, done.ID, uuid.New().String()))

	inProgress, err := sessionRepo.List(ctx, repository.SessionInProgress, 20, 0)
	require.NoError(t, err)
	require.Len(t, inProgress, 1)
	assert.Equal(t, open.ID, inProgress[0].ID)

	all, err := sessionRepo.List(ctx, "", 20, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func lineCounts(t *testing.T, ctx context.Context, repo *repository.SessionRepository, sessionID string) (total, uncounted, matched int) {
	t.Helper()
	total, uncounted, matched, err := repo.LineCounts(ctx, sessionID)
	require.NoError(t, err)
	return total, uncounted, matched
}
