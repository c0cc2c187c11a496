package messaging

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types
const (
	// Catalog events (consumed; published by the product catalog service)
	EventProductCreated = "catalog.product.created"
	EventProductUpdated = "catalog.product.updated"
	EventProductDeleted = "catalog.product.deleted"

	// Stock events (published by this service)
	EventMovementRecorded = "stock.movement.recorded"
	EventStockAlert       = "stock.alert.triggered"
	EventSessionClosed    = "stock.session.closed"
)

// Exchange names
const (
	ExchangeCatalogEvents = "catalog.events"
	ExchangeStockEvents   = "stock.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Catalog events

// ProductCreatedEvent is published by the catalog when a product is created
type ProductCreatedEvent struct {
	ProductID      string `json:"product_id"`
	Name           string `json:"name"`
	Category       string `json:"category"`
	Supplier       string `json:"supplier,omitempty"`
	AlertThreshold int    `json:"alert_threshold"`
}

// ProductUpdatedEvent is published by the catalog when a product is updated
type ProductUpdatedEvent struct {
	ProductID      string `json:"product_id"`
	Name           string `json:"name"`
	Category       string `json:"category"`
	Supplier       string `json:"supplier,omitempty"`
	AlertThreshold int    `json:"alert_threshold"`
}

// ProductDeletedEvent is published by the catalog when a product is deleted
type ProductDeletedEvent struct {
	ProductID string `json:"product_id"`
}

// Stock events

// MovementRecordedEvent is published for every committed quantity change
type MovementRecordedEvent struct {
	MovementID     string `json:"movement_id"`
	ProductID      string `json:"product_id"`
	LotID          string `json:"lot_id"`
	MovementType   string `json:"movement_type"`
	Quantity       int    `json:"quantity"`
	QuantityBefore int    `json:"quantity_before"`
	QuantityAfter  int    `json:"quantity_after"`
	PerformedBy    string `json:"performed_by"`
	Reason         string `json:"reason,omitempty"`
}

// StockAlertEvent is published when a mutation pushes a product across an
// alert boundary (low stock, out of stock)
type StockAlertEvent struct {
	AlertType  string `json:"alert_type"`
	ProductID  string `json:"product_id"`
	TotalStock int    `json:"total_stock"`
	Deficit    int    `json:"deficit,omitempty"`
}

// SessionClosedEvent is published when an inventory session is closed
type SessionClosedEvent struct {
	SessionID      string `json:"session_id"`
	Reference      string `json:"reference"`
	SessionType    string `json:"session_type"`
	TotalLines     int    `json:"total_lines"`
	LinesWithDelta int    `json:"lines_with_delta"`
	ClosedBy       string `json:"closed_by"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return fmt.Sprintf("%d-%d", time.Now().UnixNano(), time.Now().Nanosecond()%10000)
}
