package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/pharmatrack/pharmatrack-backend/internal/stock/events"
	"github.com/pharmatrack/pharmatrack-backend/internal/stock/repository"
	"github.com/pharmatrack/pharmatrack-backend/pkg/actor"
	"github.com/pharmatrack/pharmatrack-backend/pkg/database"
	"github.com/pharmatrack/pharmatrack-backend/pkg/errors"
	"github.com/pharmatrack/pharmatrack-backend/pkg/logger"
)

// LedgerService owns lot creation, quantity adjustment, and status
// transitions. Every quantity mutation commits together with its movement
// record in one transaction; neither is ever visible without the other.
type LedgerService struct {
	db           *database.DB
	lotRepo      *repository.LotRepository
	movementRepo *repository.MovementRepository
	stockView    *repository.StockViewRepository
	publisher    *events.StockEventPublisher
	logger       *logger.Logger
}

// NewLedgerService creates a new ledger service
func NewLedgerService(
	db *database.DB,
	lotRepo *repository.LotRepository,
	movementRepo *repository.MovementRepository,
	stockView *repository.StockViewRepository,
	publisher *events.StockEventPublisher,
	log *logger.Logger,
) *LedgerService {
	return &LedgerService{
		db:           db,
		lotRepo:      lotRepo,
		movementRepo: movementRepo,
		stockView:    stockView,
		publisher:    publisher,
		logger:       log,
	}
}

// CreateLotInput carries the fields needed to receive a new lot into stock.
type CreateLotInput struct {
	ProductID       string
	LotNumber       string
	InitialQuantity int
	PurchasePrice   decimal.Decimal
	ReceivedDate    time.Time
	ExpiryDate      time.Time
	Status          string
}

// CreateLot receives a new lot and writes its entry movement atomically.
// The lot starts with current quantity equal to initial quantity.
func (s *LedgerService) CreateLot(ctx context.Context, in CreateLotInput, by actor.Actor) (*repository.Lot, error) {
	if details := validateNewLot(in); len(details) > 0 {
		return nil, errors.Validation(details)
	}

	lot := &repository.Lot{
		ID:              uuid.New().String(),
		ProductID:       in.ProductID,
		LotNumber:       in.LotNumber,
		InitialQuantity: in.InitialQuantity,
		CurrentQuantity: in.InitialQuantity,
		PurchasePrice:   in.PurchasePrice,
		ReceivedDate:    in.ReceivedDate,
		ExpiryDate:      in.ExpiryDate,
		Status:          in.Status,
	}
	lot.CreatedBy = by.ID

	movement := &repository.Movement{
		ProductID:      in.ProductID,
		MovementType:   repository.MovementEntry,
		Quantity:       in.InitialQuantity,
		QuantityBefore: 0,
		QuantityAfter:  in.InitialQuantity,
		PerformedBy:    by.ID,
	}

	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if err := s.lotRepo.CreateTx(ctx, tx, lot); err != nil {
			return err
		}
		movement.LotID = lot.ID
		return s.movementRepo.AppendTx(ctx, tx, movement)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("lot_id", lot.ID).
		Str("product_id", lot.ProductID).
		Int("quantity", lot.CurrentQuantity).
		Msg("lot created")

	s.publisher.PublishMovementRecorded(ctx, movement)

	return lot, nil
}

func validateNewLot(in CreateLotInput) map[string]string {
	details := map[string]string{}

	if !repository.ValidStatus(in.Status) {
		details["status"] = "unknown lot status"
	}
	if in.InitialQuantity < 0 {
		details["initial_quantity"] = "quantity must not be negative"
	}
	if repository.ZeroQuantityStatus(in.Status) && in.InitialQuantity > 0 {
		details["status"] = "status requires quantity 0"
	}
	if in.Status == repository.StatusInStock && in.InitialQuantity <= 0 {
		details["initial_quantity"] = "in_stock lot requires quantity > 0"
	}
	if dateOf(in.ExpiryDate).Before(today()) {
		details["expiry_date"] = "expiry date must not be in the past"
	}

	return details
}

// AdjustQuantity sets a lot to an absolute new quantity and records the
// adjustment movement. The before-quantity is re-read under a row lock so
// concurrent adjustments serialize instead of recording stale values.
//
// A lot reaching 0 keeps its current status; transitioning it out of
// in_stock is the operator's explicit ChangeStatus call. Aggregate views
// already exclude zero-quantity lots, so the state is transient and
// accepted.
func (s *LedgerService) AdjustQuantity(ctx context.Context, lotID string, newQuantity int, reason string, by actor.Actor) (*repository.Movement, error) {
	if newQuantity < 0 {
		return nil, errors.Validation(map[string]string{
			"new_quantity": "quantity must not be negative",
		})
	}

	var movement *repository.Movement

	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		lot, err := s.lotRepo.GetForUpdateTx(ctx, tx, lotID)
		if err != nil {
			return err
		}

		delta := newQuantity - lot.CurrentQuantity
		if delta < 0 {
			delta = -delta
		}

		movement = &repository.Movement{
			ProductID:      lot.ProductID,
			LotID:          lot.ID,
			MovementType:   repository.MovementAdjustment,
			Quantity:       delta,
			QuantityBefore: lot.CurrentQuantity,
			QuantityAfter:  newQuantity,
			PerformedBy:    by.ID,
		}
		if reason != "" {
			movement.Reason = &reason
		}

		if err := s.lotRepo.UpdateQuantityTx(ctx, tx, lot.ID, newQuantity); err != nil {
			return err
		}
		return s.movementRepo.AppendTx(ctx, tx, movement)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("lot_id", lotID).
		Int("quantity_before", movement.QuantityBefore).
		Int("quantity_after", movement.QuantityAfter).
		Msg("lot quantity adjusted")

	s.publisher.PublishMovementRecorded(ctx, movement)
	s.checkStockAlerts(ctx, movement.ProductID)

	return movement, nil
}

// ChangeStatus transitions a lot's status. No movement is recorded since
// the quantity does not change.
func (s *LedgerService) ChangeStatus(ctx context.Context, lotID, newStatus string, by actor.Actor) error {
	if !repository.ValidStatus(newStatus) {
		return errors.Validation(map[string]string{
			"status": "unknown lot status",
		})
	}

	var productID string

	err := s.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		lot, err := s.lotRepo.GetForUpdateTx(ctx, tx, lotID)
		if err != nil {
			return err
		}
		productID = lot.ProductID

		if newStatus == repository.StatusInStock && lot.CurrentQuantity == 0 {
			return errors.Validation(map[string]string{
				"status": "cannot set in_stock with quantity 0",
			})
		}
		if repository.ZeroQuantityStatus(newStatus) && lot.CurrentQuantity > 0 {
			return errors.Validation(map[string]string{
				"status": "status requires quantity 0",
			})
		}

		return s.lotRepo.UpdateStatusTx(ctx, tx, lot.ID, newStatus)
	})
	if err != nil {
		return err
	}

	s.logger.Info().
		Str("lot_id", lotID).
		Str("status", newStatus).
		Str("actor_id", by.ID).
		Msg("lot status changed")

	// Leaving in_stock removes the lot from aggregate totals.
	s.checkStockAlerts(ctx, productID)

	return nil
}

// GetLot gets a lot by ID
func (s *LedgerService) GetLot(ctx context.Context, id string) (*repository.Lot, error) {
	return s.lotRepo.GetByID(ctx, id)
}

// ListLots lists lots with optional status filtering and pagination
func (s *LedgerService) ListLots(ctx context.Context, page, perPage int, status string) ([]*repository.Lot, int64, error) {
	if status != "" && !repository.ValidStatus(status) {
		return nil, 0, errors.BadRequest("unknown lot status")
	}
	return s.lotRepo.List(ctx, page, perPage, status)
}

// ListLotsByProduct lists a product's lots, soonest expiry first
func (s *LedgerService) ListLotsByProduct(ctx context.Context, productID string) ([]*repository.Lot, error) {
	return s.lotRepo.ListByProduct(ctx, productID)
}

// RecentMovements lists movements within the last windowDays, newest first
func (s *LedgerService) RecentMovements(ctx context.Context, windowDays, limit int) ([]*repository.Movement, error) {
	if windowDays <= 0 {
		return nil, errors.BadRequest("window must be positive")
	}
	if limit <= 0 {
		return nil, errors.BadRequest("limit must be positive")
	}
	return s.movementRepo.Recent(ctx, windowDays, limit)
}

// LotMovements lists the full journal for one lot, oldest first
func (s *LedgerService) LotMovements(ctx context.Context, lotID string) ([]*repository.Movement, error) {
	if _, err := s.lotRepo.GetByID(ctx, lotID); err != nil {
		return nil, err
	}
	return s.movementRepo.ListByLot(ctx, lotID)
}

// checkStockAlerts publishes a stock alert event when a mutation left the
// product low or out of stock. Advisory only, failures are logged and
// dropped.
func (s *LedgerService) checkStockAlerts(ctx context.Context, productID string) {
	total, err := s.stockView.TotalStock(ctx, productID)
	if err != nil {
		s.logger.Warn().Err(err).Str("product_id", productID).Msg("stock alert check failed")
		return
	}

	switch {
	case total == 0:
		s.publisher.PublishStockAlert(ctx, AlertOutOfStock, productID, 0, 0)
	case total < LowStockThreshold:
		s.publisher.PublishStockAlert(ctx, AlertLowStock, productID, total, LowStockThreshold-total)
	}
}

// dateOf reduces a timestamp to its calendar date at midnight UTC. Expiry
// and received dates are date-only values parsed as midnight UTC, so all
// date arithmetic stays in UTC regardless of the server's local zone.
func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// today is the current calendar date at midnight UTC.
func today() time.Time {
	return dateOf(time.Now().UTC())
}
