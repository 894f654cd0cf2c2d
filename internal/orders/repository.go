package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/pagination"
)

var meter = otel.Meter("storefront/orders")

// ErrNotCreated is returned when an insert succeeds but the stored record
// cannot be read back.
var ErrNotCreated = errors.New("order could not be created")

// Store is the persistence surface the repository needs. InsertOrder converts
// product ids to the store's reference type and fails with
// domain.ErrInvalidID when one is malformed.
type Store interface {
	InsertOrder(ctx context.Context, order domain.Order) (string, error)
	FindOrderByID(ctx context.Context, id string) (*domain.Order, error)
	CountOrdersByUser(ctx context.Context, userID string) (int64, error)
	// FindOrdersByUser returns one page of the user's orders ordered by id.
	FindOrdersByUser(ctx context.Context, userID string, page pagination.Request) ([]domain.Order, error)
	FindProductsByIDs(ctx context.Context, ids []string) ([]domain.Product, error)
}

type OrderRepository struct {
	store      Store
	logger     *slog.Logger
	unresolved metric.Int64Counter
}

func NewOrderRepository(store Store, logger *slog.Logger) (*OrderRepository, error) {
	unresolved, err := meter.Int64Counter("storefront.orders.unresolved_lines",
		metric.WithDescription("Order lines dropped from responses because their product no longer resolves"),
	)
	if err != nil {
		return nil, err
	}

	return &OrderRepository{store: store, logger: logger, unresolved: unresolved}, nil
}

func (r *OrderRepository) Add(ctx context.Context, order domain.Order) (*domain.Order, error) {
	order.ID = ""

	id, err := r.store.InsertOrder(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	created, err := r.store.FindOrderByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("read back order %s: %w", id, err)
	}
	if created == nil {
		return nil, ErrNotCreated
	}

	return created, nil
}

// ListByUser returns one page of the user's orders, each joined with the
// name and price of the products it references, plus the user's total order
// count. Products for the whole page are fetched in a single batch. Lines
// whose product cannot be found are left out of the result and do not
// contribute to the order total.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string, page pagination.Request) ([]domain.EnrichedOrder, int64, error) {
	total, err := r.store.CountOrdersByUser(ctx, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	if total == 0 || int64(page.Offset) >= total {
		return []domain.EnrichedOrder{}, total, nil
	}

	orders, err := r.store.FindOrdersByUser(ctx, userID, page)
	if err != nil {
		return nil, 0, fmt.Errorf("find orders: %w", err)
	}

	productIDs := domain.ProductIDs(orders)
	productsByID := make(map[string]domain.Product, len(productIDs))
	if len(productIDs) > 0 {
		products, err := r.store.FindProductsByIDs(ctx, productIDs)
		if err != nil {
			return nil, 0, fmt.Errorf("find products: %w", err)
		}
		for _, p := range products {
			productsByID[p.ID] = p
		}
	}

	enriched, unresolved := domain.Enrich(orders, productsByID)
	if unresolved > 0 {
		r.unresolved.Add(ctx, int64(unresolved))
		r.logger.Debug("dropped unresolved order lines", "user_id", userID, "count", unresolved)
	}

	return enriched, total, nil
}
