package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pharmatrack/pharmatrack-backend/pkg/database"
)

// ProductFixture represents test catalog product data
type ProductFixture struct {
	ProductID      string
	Name           string
	Category       string
	Supplier       string
	AlertThreshold int
}

// LotFixture represents test lot data
type LotFixture struct {
	ID              string
	ProductID       string
	LotNumber       string
	InitialQuantity int
	CurrentQuantity int
	PurchasePrice   string
	ReceivedDate    time.Time
	ExpiryDate      time.Time
	Status          string
	CreatedBy       string
}

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{sequence: 0}
}

// nextSeq returns the next sequence number for unique values
func (f *FixtureFactory) nextSeq() int {
	f.sequence++
	return f.sequence
}

// Product creates a catalog product fixture with defaults
func (f *FixtureFactory) Product(opts ...func(*ProductFixture)) ProductFixture {
	seq := f.nextSeq()

	p := ProductFixture{
		ProductID:      uuid.New().String(),
		Name:           fmt.Sprintf("Product %d", seq),
		Category:       "analgesic",
		Supplier:       "Test Pharma GmbH",
		AlertThreshold: 10,
	}

	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// Lot creates a lot fixture with defaults: 50 units in stock, received
// today, expiring in 90 days.
func (f *FixtureFactory) Lot(productID string, opts ...func(*LotFixture)) LotFixture {
	seq := f.nextSeq()
	now := time.Now()

	l := LotFixture{
		ID:              uuid.New().String(),
		ProductID:       productID,
		LotNumber:       fmt.Sprintf("LOT-%04d", seq),
		InitialQuantity: 50,
		CurrentQuantity: 50,
		PurchasePrice:   "2.50",
		ReceivedDate:    now,
		ExpiryDate:      now.AddDate(0, 0, 90),
		Status:          "in_stock",
		CreatedBy:       uuid.New().String(),
	}

	for _, opt := range opts {
		opt(&l)
	}
	return l
}

// WithQuantity sets both initial and current quantity
func WithQuantity(qty int) func(*LotFixture) {
	return func(l *LotFixture) {
		l.InitialQuantity = qty
		l.CurrentQuantity = qty
	}
}

// WithExpiryInDays sets the expiry date relative to today
func WithExpiryInDays(days int) func(*LotFixture) {
	return func(l *LotFixture) {
		l.ExpiryDate = time.Now().AddDate(0, 0, days)
	}
}

// WithStatus sets the lot status
func WithStatus(status string) func(*LotFixture) {
	return func(l *LotFixture) {
		l.Status = status
	}
}

// InsertProduct writes a product fixture into the catalog cache table
func InsertProduct(ctx context.Context, db *database.DB, p ProductFixture) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO product_catalog (product_id, name, category, supplier, alert_threshold)
		VALUES ($1, $2, $3, $4, $5)
	`, p.ProductID, p.Name, p.Category, p.Supplier, p.AlertThreshold)
	return err
}

// InsertLot writes a lot fixture directly, bypassing the ledger. Use the
// ledger service instead when the test cares about movements.
func InsertLot(ctx context.Context, db *database.DB, l LotFixture) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO lots (
			id, product_id, lot_number, initial_quantity, current_quantity,
			purchase_price, received_date, expiry_date, status, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, l.ID, l.ProductID, l.LotNumber, l.InitialQuantity, l.CurrentQuantity,
		l.PurchasePrice, l.ReceivedDate, l.ExpiryDate, l.Status, l.CreatedBy)
	return err
}
