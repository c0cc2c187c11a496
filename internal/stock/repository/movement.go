package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pharmatrack/pharmatrack-backend/pkg/database"
)

// Movement types
const (
	MovementEntry      = "entry"
	MovementExit       = "exit"
	MovementAdjustment = "adjustment"
)

// Movement is an immutable record of one quantity transition on one lot.
// Rows are only ever inserted, inside the same transaction as the lot
// mutation they describe.
type Movement struct {
	ID             string    `db:"id" json:"id"`
	ProductID      string    `db:"product_id" json:"product_id"`
	LotID          string    `db:"lot_id" json:"lot_id"`
	MovementType   string    `db:"movement_type" json:"movement_type"`
	Quantity       int       `db:"quantity" json:"quantity"`
	QuantityBefore int       `db:"quantity_before" json:"quantity_before"`
	QuantityAfter  int       `db:"quantity_after" json:"quantity_after"`
	Reason         *string   `db:"reason" json:"reason,omitempty"`
	PerformedBy    string    `db:"performed_by" json:"performed_by"`
	RecordedAt     time.Time `db:"recorded_at" json:"recorded_at"`
}

// MovementRepository handles movement journal persistence
type MovementRepository struct {
	db *database.DB
}

// NewMovementRepository creates a new movement repository
func NewMovementRepository(db *database.DB) *MovementRepository {
	return &MovementRepository{db: db}
}

// AppendTx appends a movement inside an open transaction. There is no
// exported plain Append: a movement must never commit without its lot
// mutation.
func (r *MovementRepository) AppendTx(ctx context.Context, tx *sqlx.Tx, m *Movement) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}

	query := `
		INSERT INTO movements (
			id, product_id, lot_id, movement_type, quantity,
			quantity_before, quantity_after, reason, performed_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING recorded_at
	`

	err := tx.QueryRowxContext(ctx, query,
		m.ID, m.ProductID, m.LotID, m.MovementType, m.Quantity,
		m.QuantityBefore, m.QuantityAfter, m.Reason, m.PerformedBy,
	).Scan(&m.RecordedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// Recent lists movements recorded within the last windowDays, most recent
// first, bounded by limit.
func (r *MovementRepository) Recent(ctx context.Context, windowDays, limit int) ([]*Movement, error) {
	var movements []*Movement
	query := `
		SELECT * FROM movements
		WHERE recorded_at >= NOW() - INTERVAL '1 day' * $1
		ORDER BY recorded_at DESC
		LIMIT $2
	`
	if err := r.db.SelectContext(ctx, &movements, query, windowDays, limit); err != nil {
		return nil, err
	}
	return movements, nil
}

// ListByLot lists the full journal for one lot, oldest first
func (r *MovementRepository) ListByLot(ctx context.Context, lotID string) ([]*Movement, error) {
	var movements []*Movement
	query := `
		SELECT * FROM movements
		WHERE lot_id = $1
		ORDER BY recorded_at
	`
	if err := r.db.SelectContext(ctx, &movements, query, lotID); err != nil {
		return nil, err
	}
	return movements, nil
}
