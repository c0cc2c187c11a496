package consumers

import (
	"context"

	"github.com/pharmatrack/pharmatrack-backend/internal/stock/repository"
	"github.com/pharmatrack/pharmatrack-backend/pkg/logger"
	"github.com/pharmatrack/pharmatrack-backend/pkg/messaging"
)

// CatalogEventHandler applies catalog events to the local product cache
// (testable without RabbitMQ). The ledger only ever reads product data from
// this cache.
type CatalogEventHandler struct {
	productCacheRepo *repository.ProductCacheRepository
	logger           *logger.Logger
}

// NewCatalogEventHandler creates a new handler for testing purposes
func NewCatalogEventHandler(productCacheRepo *repository.ProductCacheRepository, log *logger.Logger) *CatalogEventHandler {
	return &CatalogEventHandler{
		productCacheRepo: productCacheRepo,
		logger:           log,
	}
}

// HandleEvent processes a catalog event and updates the product cache
func (h *CatalogEventHandler) HandleEvent(ctx context.Context, event *messaging.Event) error {
	switch event.Type {
	case messaging.EventProductCreated:
		return h.handleProductCreated(ctx, event)
	case messaging.EventProductUpdated:
		return h.handleProductUpdated(ctx, event)
	case messaging.EventProductDeleted:
		return h.handleProductDeleted(ctx, event)
	default:
		h.logger.Warn().Str("event_type", event.Type).Msg("unknown event type received")
		return nil
	}
}

// CatalogEventConsumer keeps the local product cache in sync with the
// catalog service.
type CatalogEventConsumer struct {
	consumer *messaging.Consumer
	handler  *CatalogEventHandler
	logger   *logger.Logger
}

// NewCatalogEventConsumer creates a new catalog event consumer
func NewCatalogEventConsumer(rmq *messaging.RabbitMQ, productCacheRepo *repository.ProductCacheRepository, log *logger.Logger) (*CatalogEventConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, "stock-service.catalog-events", log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangeCatalogEvents, "catalog.product.#"); err != nil {
		return nil, err
	}

	handler := NewCatalogEventHandler(productCacheRepo, log)

	c := &CatalogEventConsumer{
		consumer: consumer,
		handler:  handler,
		logger:   log,
	}

	consumer.RegisterHandler(messaging.EventProductCreated, handler.handleProductCreated)
	consumer.RegisterHandler(messaging.EventProductUpdated, handler.handleProductUpdated)
	consumer.RegisterHandler(messaging.EventProductDeleted, handler.handleProductDeleted)

	return c, nil
}

// Start starts consuming messages
func (c *CatalogEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

func (h *CatalogEventHandler) handleProductCreated(ctx context.Context, event *messaging.Event) error {
	var data messaging.ProductCreatedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	h.logger.Info().
		Str("product_id", data.ProductID).
		Str("name", data.Name).
		Msg("received product created event")

	return h.productCacheRepo.Set(ctx, cachedProduct(data.ProductID, data.Name, data.Category, data.Supplier, data.AlertThreshold))
}

func (h *CatalogEventHandler) handleProductUpdated(ctx context.Context, event *messaging.Event) error {
	var data messaging.ProductUpdatedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	h.logger.Info().
		Str("product_id", data.ProductID).
		Msg("received product updated event")

	return h.productCacheRepo.Set(ctx, cachedProduct(data.ProductID, data.Name, data.Category, data.Supplier, data.AlertThreshold))
}

func (h *CatalogEventHandler) handleProductDeleted(ctx context.Context, event *messaging.Event) error {
	var data messaging.ProductDeletedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	h.logger.Info().
		Str("product_id", data.ProductID).
		Msg("received product deleted event")

	return h.productCacheRepo.Delete(ctx, data.ProductID)
}

func cachedProduct(id, name, category, supplier string, threshold int) *repository.CachedProduct {
	p := &repository.CachedProduct{
		ProductID:      id,
		Name:           name,
		Category:       category,
		AlertThreshold: threshold,
	}
	if supplier != "" {
		p.Supplier = &supplier
	}
	return p
}
