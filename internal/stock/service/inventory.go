package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/pharmatrack/pharmatrack-backend/internal/stock/events"
	"github.com/pharmatrack/pharmatrack-backend/internal/stock/repository"
	"github.com/pharmatrack/pharmatrack-backend/pkg/actor"
	"github.com/pharmatrack/pharmatrack-backend/pkg/database"
	"github.com/pharmatrack/pharmatrack-backend/pkg/errors"
	"github.com/pharmatrack/pharmatrack-backend/pkg/logger"
)

// InventoryService runs reconciliation sessions: snapshot theoretical
// quantities, record physical counts, surface discrepancies. Counting
// never touches live stock; applying a correction is an explicit, separate
// adjustment through the ledger with its own movement record.
type InventoryService struct {
	db          *database.DB
	sessionRepo *repository.SessionRepository
	lotRepo     *repository.LotRepository
	ledger      *LedgerService
	publisher   *events.StockEventPublisher
	logger      *logger.Logger
}

// NewInventoryService creates a new inventory service
func NewInventoryService(
	db *database.DB,
	sessionRepo *repository.SessionRepository,
	lotRepo *repository.LotRepository,
	ledger *LedgerService,
	publisher *events.StockEventPublisher,
	log *logger.Logger,
) *InventoryService {
	return &InventoryService{
		db:          db,
		sessionRepo: sessionRepo,
		lotRepo:     lotRepo,
		ledger:      ledger,
		publisher:   publisher,
		logger:      log,
	}
}

// SessionWithLines is a session together with its lines and progress.
type SessionWithLines struct {
	*repository.InventorySession
	Lines    []*repository.InventoryLine `json:"lines"`
	Progress float64                     `json:"progress"`
}

// StartSession opens a new reconciliation session. A full session
// atomically snapshots every in-stock lot into lines; other types start
// empty and are populated by the operator.
func (s *InventoryService) StartSession(ctx context.Context, sessionType string, by actor.Actor) (*repository.InventorySession, error) {
	if !repository.ValidSessionType(sessionType) {
		return nil, errors.Validation(map[string]string{
			"session_type": "unknown session type",
		})
	}

	session := &repository.InventorySession{
		ID:          uuid.New().String(),
		Reference:   newSessionReference(),
		SessionType: sessionType,
		Status:      repository.SessionInProgress,
		CreatedBy:   by.ID,
	}

	var seeded int
	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if err := s.sessionRepo.CreateTx(ctx, tx, session); err != nil {
			return err
		}
		if sessionType == repository.SessionFull {
			n, err := s.sessionRepo.SeedFullTx(ctx, tx, session.ID)
			if err != nil {
				return err
			}
			seeded = n
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("session_id", session.ID).
		Str("reference", session.Reference).
		Str("session_type", sessionType).
		Int("lines_seeded", seeded).
		Msg("inventory session started")

	return session, nil
}

func newSessionReference() string {
	suffix := strings.ToUpper(uuid.New().String()[:8])
	return fmt.Sprintf("INV-%s-%s", time.Now().Format("20060102"), suffix)
}

// GetSession gets a session with its lines and progress
func (s *InventoryService) GetSession(ctx context.Context, sessionID string) (*SessionWithLines, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	lines, err := s.sessionRepo.ListLines(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	matched := 0
	for _, line := range lines {
		if line.Discrepancy != nil && *line.Discrepancy == 0 {
			matched++
		}
	}

	return &SessionWithLines{
		InventorySession: session,
		Lines:            lines,
		Progress:         progressPercent(matched, len(lines)),
	}, nil
}

// ListSessions lists sessions newest first, optionally filtered by status
func (s *InventoryService) ListSessions(ctx context.Context, status string, limit, offset int) ([]*repository.InventorySession, error) {
	if status != "" && status != repository.SessionInProgress && status != repository.SessionClosed {
		return nil, errors.BadRequest("unknown session status")
	}
	return s.sessionRepo.List(ctx, status, limit, offset)
}

// AddLine adds one lot to an in-progress session, freezing the lot's
// current quantity as the line's theoretical value.
func (s *InventoryService) AddLine(ctx context.Context, sessionID, lotID string) (*repository.InventoryLine, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != repository.SessionInProgress {
		return nil, errors.Conflict("session is not in progress")
	}

	lot, err := s.lotRepo.GetByID(ctx, lotID)
	if err != nil {
		return nil, err
	}

	line := &repository.InventoryLine{
		ID:          uuid.New().String(),
		SessionID:   sessionID,
		LotID:       lot.ID,
		ProductID:   lot.ProductID,
		Theoretical: lot.CurrentQuantity,
	}
	if err := s.sessionRepo.AddLine(ctx, line); err != nil {
		return nil, err
	}
	return line, nil
}

// RecordCount records the physically counted quantity for a lot's line and
// recomputes its discrepancy. Live stock is not touched.
func (s *InventoryService) RecordCount(ctx context.Context, sessionID, lotID string, counted int) (*repository.InventoryLine, error) {
	if counted < 0 {
		return nil, errors.Validation(map[string]string{
			"counted": "counted quantity must not be negative",
		})
	}

	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != repository.SessionInProgress {
		return nil, errors.Conflict("session is not in progress")
	}

	line, err := s.sessionRepo.GetLineByLot(ctx, sessionID, lotID)
	if err != nil {
		return nil, err
	}

	discrepancy := counted - line.Theoretical
	if err := s.sessionRepo.UpdateCount(ctx, line.ID, counted, discrepancy); err != nil {
		return nil, err
	}

	line.Counted = &counted
	line.Discrepancy = &discrepancy
	now := time.Now()
	line.CountedAt = &now

	return line, nil
}

// Progress reports the share of lines whose count matches their
// theoretical, as a percentage. A freshly seeded full session reads 100
// until a count introduces a discrepancy.
func (s *InventoryService) Progress(ctx context.Context, sessionID string) (float64, error) {
	if _, err := s.sessionRepo.GetByID(ctx, sessionID); err != nil {
		return 0, err
	}

	total, _, matched, err := s.sessionRepo.LineCounts(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	return progressPercent(matched, total), nil
}

func progressPercent(matched, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(matched) / float64(total) * 100
}

// CloseSession closes an in-progress session once every line has a count.
// Closing is terminal and does not mutate live stock.
func (s *InventoryService) CloseSession(ctx context.Context, sessionID string, by actor.Actor) (*repository.InventorySession, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != repository.SessionInProgress {
		return nil, errors.Conflict("session is not in progress")
	}

	total, uncounted, matched, err := s.sessionRepo.LineCounts(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if uncounted > 0 {
		return nil, errors.Conflict(fmt.Sprintf("%d lines still uncounted", uncounted))
	}

	if err := s.sessionRepo.Close(ctx, sessionID, by.ID); err != nil {
		return nil, err
	}

	session, err = s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("session_id", session.ID).
		Str("reference", session.Reference).
		Int("total_lines", total).
		Int("lines_with_delta", total-matched).
		Msg("inventory session closed")

	s.publisher.PublishSessionClosed(ctx, session, total, total-matched)

	return session, nil
}

// ApplyLine pushes a counted discrepancy into live stock via a normal
// ledger adjustment. Deliberately a separate call from RecordCount so
// counting and correcting keep distinct audit trails.
func (s *InventoryService) ApplyLine(ctx context.Context, sessionID, lotID string, by actor.Actor) (*repository.Movement, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	line, err := s.sessionRepo.GetLineByLot(ctx, sessionID, lotID)
	if err != nil {
		return nil, err
	}
	if line.Counted == nil {
		return nil, errors.Conflict("line has no recorded count")
	}

	reason := fmt.Sprintf("inventory reconciliation %s", session.Reference)
	return s.ledger.AdjustQuantity(ctx, lotID, *line.Counted, reason, by)
}
