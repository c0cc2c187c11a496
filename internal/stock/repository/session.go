package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/pharmatrack/pharmatrack-backend/pkg/database"
	"github.com/pharmatrack/pharmatrack-backend/pkg/errors"
)

// Session types
const (
	SessionFull     = "full"
	SessionPartial  = "partial"
	SessionCyclic   = "cyclic"
	SessionTargeted = "targeted"
)

// Session statuses. Closed is terminal, sessions are never reopened.
const (
	SessionInProgress = "in_progress"
	SessionClosed     = "closed"
)

// ValidSessionType reports whether t is a known session type.
func ValidSessionType(t string) bool {
	switch t {
	case SessionFull, SessionPartial, SessionCyclic, SessionTargeted:
		return true
	}
	return false
}

// InventorySession is a physical count campaign. A full session snapshots
// every in-stock lot at creation; the other types start empty and grow as
// lines are added.
type InventorySession struct {
	ID          string     `db:"id" json:"id"`
	Reference   string     `db:"reference" json:"reference"`
	SessionType string     `db:"session_type" json:"session_type"`
	Status      string     `db:"status" json:"status"`
	CreatedBy   string     `db:"created_by" json:"created_by"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	ClosedAt    *time.Time `db:"closed_at" json:"closed_at,omitempty"`
	ClosedBy    *string    `db:"closed_by" json:"closed_by,omitempty"`
}

// InventoryLine pairs a lot with its theoretical quantity frozen at the
// moment the line was created. The theoretical value is never refreshed
// afterwards, even if the live lot moves.
type InventoryLine struct {
	ID          string     `db:"id" json:"id"`
	SessionID   string     `db:"session_id" json:"session_id"`
	LotID       string     `db:"lot_id" json:"lot_id"`
	ProductID   string     `db:"product_id" json:"product_id"`
	Theoretical int        `db:"theoretical" json:"theoretical"`
	Counted     *int       `db:"counted" json:"counted,omitempty"`
	Discrepancy *int       `db:"discrepancy" json:"discrepancy,omitempty"`
	CountedAt   *time.Time `db:"counted_at" json:"counted_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// SessionRepository handles inventory session and line persistence
type SessionRepository struct {
	db *database.DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// CreateTx inserts a new session inside an open transaction.
func (r *SessionRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, s *InventorySession) error {
	query := `
		INSERT INTO inventory_sessions (id, reference, session_type, status, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	err := tx.QueryRowxContext(ctx, query,
		s.ID, s.Reference, s.SessionType, s.Status, s.CreatedBy,
	).Scan(&s.CreatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// SeedFullTx creates one line per in-stock lot, freezing each lot's current
// quantity as the theoretical value. Counted starts equal to theoretical as
// a placeholder, so an untouched full session reads as fully reconciled.
// Runs in the same transaction as session creation so a full session is
// never observable half seeded.
func (r *SessionRepository) SeedFullTx(ctx context.Context, tx *sqlx.Tx, sessionID string) (int, error) {
	query := `
		INSERT INTO inventory_lines (id, session_id, lot_id, product_id, theoretical, counted, discrepancy, counted_at)
		SELECT gen_random_uuid(), $1, id, product_id, current_quantity, current_quantity, 0, NOW()
		FROM lots
		WHERE status = $2 AND current_quantity > 0
	`
	result, err := tx.ExecContext(ctx, query, sessionID, StatusInStock)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return 0, appErr
		}
		return 0, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// GetByID gets a session by ID
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*InventorySession, error) {
	var s InventorySession
	query := `SELECT * FROM inventory_sessions WHERE id = $1`
	if err := r.db.GetContext(ctx, &s, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("inventory session")
		}
		return nil, err
	}
	return &s, nil
}

// List lists sessions newest first, optionally filtered by status
func (r *SessionRepository) List(ctx context.Context, status string, limit, offset int) ([]*InventorySession, error) {
	var sessions []*InventorySession
	var err error
	if status != "" {
		query := `
			SELECT * FROM inventory_sessions WHERE status = $1
			ORDER BY created_at DESC LIMIT $2 OFFSET $3
		`
		err = r.db.SelectContext(ctx, &sessions, query, status, limit, offset)
	} else {
		query := `
			SELECT * FROM inventory_sessions
			ORDER BY created_at DESC LIMIT $1 OFFSET $2
		`
		err = r.db.SelectContext(ctx, &sessions, query, limit, offset)
	}
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

// AddLine inserts a single line into a session
func (r *SessionRepository) AddLine(ctx context.Context, line *InventoryLine) error {
	query := `
		INSERT INTO inventory_lines (id, session_id, lot_id, product_id, theoretical)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		line.ID, line.SessionID, line.LotID, line.ProductID, line.Theoretical,
	).Scan(&line.CreatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetLineByLot gets a session's line for a given lot
func (r *SessionRepository) GetLineByLot(ctx context.Context, sessionID, lotID string) (*InventoryLine, error) {
	var line InventoryLine
	query := `SELECT * FROM inventory_lines WHERE session_id = $1 AND lot_id = $2`
	if err := r.db.GetContext(ctx, &line, query, sessionID, lotID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("inventory line")
		}
		return nil, err
	}
	return &line, nil
}

// UpdateCount records a counted quantity and its discrepancy against the
// frozen theoretical. Re-counting a line overwrites the previous count.
func (r *SessionRepository) UpdateCount(ctx context.Context, lineID string, counted, discrepancy int) error {
	query := `
		UPDATE inventory_lines
		SET counted = $1, discrepancy = $2, counted_at = NOW()
		WHERE id = $3
	`
	result, err := r.db.ExecContext(ctx, query, counted, discrepancy, lineID)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("inventory line")
	}
	return nil
}

// ListLines lists a session's lines in creation order
func (r *SessionRepository) ListLines(ctx context.Context, sessionID string) ([]*InventoryLine, error) {
	var lines []*InventoryLine
	query := `SELECT * FROM inventory_lines WHERE session_id = $1 ORDER BY created_at, id`
	if err := r.db.SelectContext(ctx, &lines, query, sessionID); err != nil {
		return nil, err
	}
	return lines, nil
}

// LineCounts returns the total number of lines, how many remain uncounted,
// and how many counted lines match their theoretical exactly.
func (r *SessionRepository) LineCounts(ctx context.Context, sessionID string) (total, uncounted, matched int, err error) {
	query := `
		SELECT COUNT(*) AS total,
		       COUNT(*) FILTER (WHERE counted_at IS NULL) AS uncounted,
		       COUNT(*) FILTER (WHERE discrepancy = 0) AS matched
		FROM inventory_lines WHERE session_id = $1
	`
	var row struct {
		Total     int `db:"total"`
		Uncounted int `db:"uncounted"`
		Matched   int `db:"matched"`
	}
	if err := r.db.GetContext(ctx, &row, query, sessionID); err != nil {
		return 0, 0, 0, err
	}
	return row.Total, row.Uncounted, row.Matched, nil
}

// Close marks an in-progress session closed. Returns a conflict when the
// session is already closed.
func (r *SessionRepository) Close(ctx context.Context, sessionID, closedBy string) error {
	query := `
		UPDATE inventory_sessions
		SET status = $1, closed_at = NOW(), closed_by = $2
		WHERE id = $3 AND status = $4
	`
	result, err := r.db.ExecContext(ctx, query, SessionClosed, closedBy, sessionID, SessionInProgress)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.Conflict("session is not in progress")
	}
	return nil
}
