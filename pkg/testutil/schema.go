package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// StockMigrations returns the stock service DDL, applied in order. The
// check constraint names are load-bearing: the database error mapper keys
// on them to produce typed validation errors.
func StockMigrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS product_catalog (
			product_id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			category VARCHAR(100) NOT NULL DEFAULT '',
			supplier VARCHAR(255),
			alert_threshold INT NOT NULL DEFAULT 10,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS lots (
			id UUID PRIMARY KEY,
			product_id VARCHAR(64) NOT NULL,
			lot_number VARCHAR(100) NOT NULL,
			initial_quantity INT NOT NULL,
			current_quantity INT NOT NULL,
			purchase_price NUMERIC(12,2) NOT NULL DEFAULT 0,
			received_date DATE NOT NULL,
			expiry_date DATE NOT NULL,
			status VARCHAR(20) NOT NULL,
			created_by VARCHAR(64) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT quantity_non_negative CHECK (current_quantity >= 0 AND initial_quantity >= 0),
			CONSTRAINT status_valid CHECK (status IN ('in_stock', 'exhausted', 'empty', 'quarantine', 'withdrawn', 'expired'))
		)`,
		`CREATE INDEX IF NOT EXISTS lots_product_idx ON lots (product_id)`,
		`CREATE INDEX IF NOT EXISTS lots_expiry_idx ON lots (expiry_date)`,
		`CREATE TABLE IF NOT EXISTS movements (
			id UUID PRIMARY KEY,
			product_id VARCHAR(64) NOT NULL,
			lot_id UUID NOT NULL REFERENCES lots(id),
			movement_type VARCHAR(20) NOT NULL,
			quantity INT NOT NULL,
			quantity_before INT NOT NULL,
			quantity_after INT NOT NULL,
			reason TEXT,
			performed_by VARCHAR(64) NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT movement_type_valid CHECK (movement_type IN ('entry', 'exit', 'adjustment'))
		)`,
		`CREATE INDEX IF NOT EXISTS movements_lot_idx ON movements (lot_id)`,
		`CREATE INDEX IF NOT EXISTS movements_recorded_idx ON movements (recorded_at)`,
		`CREATE TABLE IF NOT EXISTS inventory_sessions (
			id UUID PRIMARY KEY,
			reference VARCHAR(50) NOT NULL,
			session_type VARCHAR(20) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'in_progress',
			created_by VARCHAR(64) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			closed_at TIMESTAMPTZ,
			closed_by VARCHAR(64),
			CONSTRAINT session_type_valid CHECK (session_type IN ('full', 'partial', 'cyclic', 'targeted')),
			CONSTRAINT session_status_valid CHECK (status IN ('in_progress', 'closed'))
		)`,
		`CREATE TABLE IF NOT EXISTS inventory_lines (
			id UUID PRIMARY KEY,
			session_id UUID NOT NULL REFERENCES inventory_sessions(id) ON DELETE CASCADE,
			lot_id UUID NOT NULL REFERENCES lots(id),
			product_id VARCHAR(64) NOT NULL,
			theoretical INT NOT NULL,
			counted INT,
			discrepancy INT,
			counted_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT one_line_per_lot UNIQUE (session_id, lot_id)
		)`,
	}
}

// TestSchema is an isolated schema created for one test
type TestSchema struct {
	Name string
	DSN  string
}

// SchemaManager creates and drops per-test schemas. Each test gets its own
// schema so integration tests can run in parallel against one container.
type SchemaManager struct {
	db      *sqlx.DB
	baseDSN string
	schemas []TestSchema
	mu      sync.Mutex
}

// NewSchemaManager creates a new schema manager for tests
func NewSchemaManager(db *sqlx.DB, baseDSN string) *SchemaManager {
	return &SchemaManager{
		db:      db,
		baseDSN: baseDSN,
		schemas: make([]TestSchema, 0),
	}
}

// CreateSchema creates an isolated schema and applies the given migrations.
// The returned DSN pins search_path to the new schema, so connections made
// with it only see that schema's tables.
func (sm *SchemaManager) CreateSchema(ctx context.Context, name string, migrations []string) (*TestSchema, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	suffix := strings.ReplaceAll(uuid.New().String()[:8], "-", "")
	schemaName := fmt.Sprintf("test_%s_%s", strings.ReplaceAll(strings.ToLower(name), "-", "_"), suffix)

	if _, err := sm.db.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA %s", schemaName)); err != nil {
		return nil, fmt.Errorf("failed to create test schema: %w", err)
	}

	for _, migration := range migrations {
		if _, err := sm.db.ExecContext(ctx, fmt.Sprintf("SET search_path TO %s", schemaName)); err != nil {
			return nil, fmt.Errorf("failed to set search_path: %w", err)
		}
		if _, err := sm.db.ExecContext(ctx, migration); err != nil {
			return nil, fmt.Errorf("failed to apply migration: %w", err)
		}
	}

	if _, err := sm.db.ExecContext(ctx, "SET search_path TO public"); err != nil {
		return nil, fmt.Errorf("failed to reset search_path: %w", err)
	}

	s := TestSchema{
		Name: schemaName,
		DSN:  schemaDSN(sm.baseDSN, schemaName),
	}

	sm.schemas = append(sm.schemas, s)
	return &s, nil
}

// DropSchema removes a test schema and everything in it
func (sm *SchemaManager) DropSchema(ctx context.Context, s *TestSchema) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, err := sm.db.ExecContext(ctx, fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", s.Name)); err != nil {
		return fmt.Errorf("failed to drop test schema: %w", err)
	}
	return nil
}

// Cleanup drops every schema this manager created
func (sm *SchemaManager) Cleanup(ctx context.Context) error {
	sm.mu.Lock()
	schemas := make([]TestSchema, len(sm.schemas))
	copy(schemas, sm.schemas)
	sm.mu.Unlock()

	for i := range schemas {
		if err := sm.DropSchema(ctx, &schemas[i]); err != nil {
			return err
		}
	}
	return nil
}

// schemaDSN appends a search_path runtime parameter to a lib/pq DSN.
// pq forwards unrecognized parameters to the server, so every connection
// opened with the result lands in the given schema.
func schemaDSN(baseDSN, schema string) string {
	sep := "?"
	if strings.Contains(baseDSN, "?") {
		sep = "&"
	}
	return baseDSN + sep + "search_path=" + schema
}
