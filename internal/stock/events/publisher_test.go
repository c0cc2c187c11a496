package events_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmatrack/pharmatrack-backend/internal/stock/events"
	"github.com/pharmatrack/pharmatrack-backend/internal/stock/repository"
	"github.com/pharmatrack/pharmatrack-backend/pkg/messaging"
)

func TestNilPublisher_DropsEventsSafely(t *testing.T) {
	var p *events.StockEventPublisher
	ctx := context.Background()

	// Services run with a nil publisher in tests and when the broker is
	// unavailable, so every publish path must tolerate it.
	p.PublishMovementRecorded(ctx, &repository.Movement{
		ID:           uuid.New().String(),
		LotID:        uuid.New().String(),
		MovementType: repository.MovementEntry,
	})
	p.PublishStockAlert(ctx, "low_stock", "PROD-001", 4, 6)
	p.PublishSessionClosed(ctx, &repository.InventorySession{
		ID:        uuid.New().String(),
		Reference: "INV-20260831-TEST",
	}, 3, 1)
}

func TestMovementRecordedEvent_CarriesJournalFields(t *testing.T) {
	reason := "damaged packaging"
	movement := &repository.Movement{
		ID:             uuid.New().String(),
		ProductID:      "PROD-001",
		LotID:          uuid.New().String(),
		MovementType:   repository.MovementAdjustment,
		Quantity:       8,
		QuantityBefore: 50,
		QuantityAfter:  42,
		Reason:         &reason,
		PerformedBy:    uuid.New().String(),
		RecordedAt:     time.Now(),
	}

	event := messaging.MovementRecordedEvent{
		MovementID:     movement.ID,
		ProductID:      movement.ProductID,
		LotID:          movement.LotID,
		MovementType:   movement.MovementType,
		Quantity:       movement.Quantity,
		QuantityBefore: movement.QuantityBefore,
		QuantityAfter:  movement.QuantityAfter,
		PerformedBy:    movement.PerformedBy,
		Reason:         reason,
	}

	assert.Equal(t, movement.ID, event.MovementID)
	assert.Equal(t, "adjustment", event.MovementType)
	assert.Equal(t, 8, event.Quantity)
	assert.Equal(t, 50, event.QuantityBefore)
	assert.Equal(t, 42, event.QuantityAfter)
	assert.Equal(t, reason, event.Reason)
}

func TestStockAlertEvent_JSONSerialization(t *testing.T) {
	event := messaging.StockAlertEvent{
		AlertType:  "low_stock",
		ProductID:  "PROD-001",
		TotalStock: 4,
		Deficit:    6,
	}

	data, err := json.Marshal(event)
	require.NoError(t, err)

	var parsed messaging.StockAlertEvent
	require.NoError(t, json.Unmarshal(data, &parsed))

	assert.Equal(t, event.AlertType, parsed.AlertType)
	assert.Equal(t, event.ProductID, parsed.ProductID)
	assert.Equal(t, event.TotalStock, parsed.TotalStock)
	assert.Equal(t, event.Deficit, parsed.Deficit)
}

func TestSessionClosedEvent_JSONSerialization(t *testing.T) {
	event := messaging.SessionClosedEvent{
		SessionID:      uuid.New().String(),
		Reference:      "INV-20260831-ABCD1234",
		SessionType:    repository.SessionFull,
		TotalLines:     12,
		LinesWithDelta: 2,
		ClosedBy:       uuid.New().String(),
	}

	data, err := json.Marshal(event)
	require.NoError(t, err)

	var parsed messaging.SessionClosedEvent
	require.NoError(t, json.Unmarshal(data, &parsed))

	assert.Equal(t, event.SessionID, parsed.SessionID)
	assert.Equal(t, event.Reference, parsed.Reference)
	assert.Equal(t, event.SessionType, parsed.SessionType)
	assert.Equal(t, event.TotalLines, parsed.TotalLines)
	assert.Equal(t, event.LinesWithDelta, parsed.LinesWithDelta)
	assert.Equal(t, event.ClosedBy, parsed.ClosedBy)
}

func TestEventEnvelope_RoundTrip(t *testing.T) {
	data := messaging.StockAlertEvent{
		AlertType:  "out_of_stock",
		ProductID:  "PROD-002",
		TotalStock: 0,
	}

	event, err := messaging.NewEvent(messaging.EventStockAlert, "stock-service", uuid.New().String(), data)
	require.NoError(t, err)
	assert.Equal(t, messaging.EventStockAlert, event.Type)
	assert.NotEmpty(t, event.ID)

	var parsed messaging.StockAlertEvent
	require.NoError(t, event.UnmarshalData(&parsed))
	assert.Equal(t, data, parsed)
}
