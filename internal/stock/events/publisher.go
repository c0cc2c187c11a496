package events

import (
	"context"

	"github.com/pharmatrack/pharmatrack-backend/internal/stock/repository"
	"github.com/pharmatrack/pharmatrack-backend/pkg/logger"
	"github.com/pharmatrack/pharmatrack-backend/pkg/messaging"
)

// StockEventPublisher publishes stock ledger events. A nil publisher is
// valid and drops everything, which keeps services testable without a
// broker.
type StockEventPublisher struct {
	publisher *messaging.Publisher
	logger    *logger.Logger
}

// NewStockEventPublisher creates a new stock event publisher
func NewStockEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*StockEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeStockEvents, "stock-service", log)
	if err != nil {
		return nil, err
	}

	return &StockEventPublisher{
		publisher: publisher,
		logger:    log,
	}, nil
}

// PublishMovementRecorded publishes a movement recorded event
func (p *StockEventPublisher) PublishMovementRecorded(ctx context.Context, m *repository.Movement) {
	if p == nil {
		return
	}

	reason := ""
	if m.Reason != nil {
		reason = *m.Reason
	}

	data := messaging.MovementRecordedEvent{
		MovementID:     m.ID,
		ProductID:      m.ProductID,
		LotID:          m.LotID,
		MovementType:   m.MovementType,
		Quantity:       m.Quantity,
		QuantityBefore: m.QuantityBefore,
		QuantityAfter:  m.QuantityAfter,
		PerformedBy:    m.PerformedBy,
		Reason:         reason,
	}

	if err := p.publisher.Publish(ctx, messaging.EventMovementRecorded, data); err != nil {
		p.logger.Error().Err(err).Str("lot_id", m.LotID).Msg("failed to publish movement recorded event")
	}
}

// PublishStockAlert publishes a stock alert event
func (p *StockEventPublisher) PublishStockAlert(ctx context.Context, alertType, productID string, totalStock, deficit int) {
	if p == nil {
		return
	}

	data := messaging.StockAlertEvent{
		AlertType:  alertType,
		ProductID:  productID,
		TotalStock: totalStock,
		Deficit:    deficit,
	}

	if err := p.publisher.Publish(ctx, messaging.EventStockAlert, data); err != nil {
		p.logger.Error().Err(err).Str("product_id", productID).Msg("failed to publish stock alert event")
	}
}

// PublishSessionClosed publishes a session closed event
func (p *StockEventPublisher) PublishSessionClosed(ctx context.Context, s *repository.InventorySession, totalLines, linesWithDelta int) {
	if p == nil {
		return
	}

	closedBy := ""
	if s.ClosedBy != nil {
		closedBy = *s.ClosedBy
	}

	data := messaging.SessionClosedEvent{
		SessionID:      s.ID,
		Reference:      s.Reference,
		SessionType:    s.SessionType,
		TotalLines:     totalLines,
		LinesWithDelta: linesWithDelta,
		ClosedBy:       closedBy,
	}

	if err := p.publisher.Publish(ctx, messaging.EventSessionClosed, data); err != nil {
		p.logger.Error().Err(err).Str("session_id", s.ID).Msg("failed to publish session closed event")
	}
}
