package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/pharmatrack/pharmatrack-backend/pkg/database"
	"github.com/pharmatrack/pharmatrack-backend/pkg/errors"
)

// Lot statuses. This is a closed set: no other value is valid.
const (
	StatusInStock    = "in_stock"
	StatusExhausted  = "exhausted"
	StatusEmpty      = "empty"
	StatusQuarantine = "quarantine"
	StatusWithdrawn  = "withdrawn"
	StatusExpired    = "expired"
)

// ValidStatus reports whether s belongs to the closed lot status set.
func ValidStatus(s string) bool {
	switch s {
	case StatusInStock, StatusExhausted, StatusEmpty, StatusQuarantine, StatusWithdrawn, StatusExpired:
		return true
	}
	return false
}

// ZeroQuantityStatus reports whether s requires the lot quantity to be zero.
func ZeroQuantityStatus(s string) bool {
	return s == StatusEmpty || s == StatusExhausted
}

// Lot represents one received batch of a product. Lots are never deleted:
// a depleted lot is kept with quantity 0 for audit history.
type Lot struct {
	ID              string          `db:"id" json:"id"`
	ProductID       string          `db:"product_id" json:"product_id"`
	LotNumber       string          `db:"lot_number" json:"lot_number"`
	InitialQuantity int             `db:"initial_quantity" json:"initial_quantity"`
	CurrentQuantity int             `db:"current_quantity" json:"current_quantity"`
	PurchasePrice   decimal.Decimal `db:"purchase_price" json:"purchase_price"`
	ReceivedDate    time.Time       `db:"received_date" json:"received_date"`
	ExpiryDate      time.Time       `db:"expiry_date" json:"expiry_date"`
	Status          string          `db:"status" json:"status"`
	CreatedBy       string          `db:"created_by" json:"created_by"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// LotRepository handles lot persistence
type LotRepository struct {
	db *database.DB
}

// NewLotRepository creates a new lot repository
func NewLotRepository(db *database.DB) *LotRepository {
	return &LotRepository{db: db}
}

// CreateTx inserts a lot inside an open transaction. The matching entry
// movement is written by the caller in the same transaction.
func (r *LotRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, lot *Lot) error {
	if lot.ID == "" {
		lot.ID = uuid.New().String()
	}

	query := `
		INSERT INTO lots (
			id, product_id, lot_number, initial_quantity, current_quantity,
			purchase_price, received_date, expiry_date, status, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`

	err := tx.QueryRowxContext(ctx, query,
		lot.ID, lot.ProductID, lot.LotNumber, lot.InitialQuantity, lot.CurrentQuantity,
		lot.PurchasePrice, lot.ReceivedDate, lot.ExpiryDate, lot.Status, lot.CreatedBy,
	).Scan(&lot.CreatedAt, &lot.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID gets a lot by ID
func (r *LotRepository) GetByID(ctx context.Context, id string) (*Lot, error) {
	var lot Lot
	query := `SELECT * FROM lots WHERE id = $1`
	if err := r.db.GetContext(ctx, &lot, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("lot")
		}
		return nil, err
	}
	return &lot, nil
}

// GetForUpdateTx re-reads a lot under a row lock. Adjustments must compute
// their before-quantity from this read, not from an earlier snapshot.
func (r *LotRepository) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id string) (*Lot, error) {
	var lot Lot
	query := `SELECT * FROM lots WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &lot, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("lot")
		}
		return nil, err
	}
	return &lot, nil
}

// UpdateQuantityTx sets a lot's current quantity inside an open transaction.
func (r *LotRepository) UpdateQuantityTx(ctx context.Context, tx *sqlx.Tx, id string, quantity int) error {
	query := `UPDATE lots SET current_quantity = $2, updated_at = NOW() WHERE id = $1`
	result, err := tx.ExecContext(ctx, query, id, quantity)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("lot")
	}
	return nil
}

// UpdateStatusTx sets a lot's status inside an open transaction.
func (r *LotRepository) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id string, status string) error {
	query := `UPDATE lots SET status = $2, updated_at = NOW() WHERE id = $1`
	result, err := tx.ExecContext(ctx, query, id, status)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("lot")
	}
	return nil
}

// ListByProduct lists lots for a product, soonest expiry first
func (r *LotRepository) ListByProduct(ctx context.Context, productID string) ([]*Lot, error) {
	var lots []*Lot
	query := `
		SELECT * FROM lots
		WHERE product_id = $1
		ORDER BY expiry_date
	`
	if err := r.db.SelectContext(ctx, &lots, query, productID); err != nil {
		return nil, err
	}
	return lots, nil
}

// List lists lots with optional status filtering and pagination
func (r *LotRepository) List(ctx context.Context, page, perPage int, status string) ([]*Lot, int64, error) {
	var total int64
	args := []interface{}{}

	countQuery := `SELECT COUNT(*) FROM lots`
	query := `SELECT * FROM lots`

	if status != "" {
		countQuery += ` WHERE status = $1`
		query += ` WHERE status = $1`
		args = append(args, status)
	}

	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	query += ` ORDER BY expiry_date`
	if status != "" {
		query += ` LIMIT $2 OFFSET $3`
	} else {
		query += ` LIMIT $1 OFFSET $2`
	}
	args = append(args, perPage, offset)

	var lots []*Lot
	if err := r.db.SelectContext(ctx, &lots, query, args...); err != nil {
		return nil, 0, err
	}

	return lots, total, nil
}

// ListInStock lists all in-stock lots holding quantity, soonest expiry first.
// Used to seed full inventory sessions.
func (r *LotRepository) ListInStock(ctx context.Context) ([]*Lot, error) {
	var lots []*Lot
	query := `
		SELECT * FROM lots
		WHERE status = $1 AND current_quantity > 0
		ORDER BY expiry_date
	`
	if err := r.db.SelectContext(ctx, &lots, query, StatusInStock); err != nil {
		return nil, err
	}
	return lots, nil
}
