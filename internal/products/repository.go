package products

import (
	"context"
	"errors"
	"fmt"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/pagination"
)

// ErrNotCreated is returned when an insert succeeds but the stored record
// cannot be read back.
var ErrNotCreated = errors.New("product could not be created")

// Store is the persistence surface the repository needs. Implementations
// translate ProductFilter into their native query language.
type Store interface {
	InsertProduct(ctx context.Context, product domain.Product) (string, error)
	FindProductByID(ctx context.Context, id string) (*domain.Product, error)
	CountProducts(ctx context.Context, filter domain.ProductFilter) (int64, error)
	// FindProducts returns one page of matches ordered by id, without sizes.
	FindProducts(ctx context.Context, filter domain.ProductFilter, page pagination.Request) ([]domain.Product, error)
}

type ProductRepository struct {
	store Store
}

func NewProductRepository(store Store) *ProductRepository {
	return &ProductRepository{store: store}
}

func (r *ProductRepository) Add(ctx context.Context, product domain.Product) (*domain.Product, error) {
	product.ID = ""

	id, err := r.store.InsertProduct(ctx, product)
	if err != nil {
		return nil, fmt.Errorf("insert product: %w", err)
	}

	created, err := r.store.FindProductByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("read back product %s: %w", id, err)
	}
	if created == nil {
		return nil, ErrNotCreated
	}

	return created, nil
}

// List returns the requested page of matching products together with the
// total number of matches, counted before pagination is applied.
func (r *ProductRepository) List(ctx context.Context, filter domain.ProductFilter, page pagination.Request) ([]domain.Product, int64, error) {
	total, err := r.store.CountProducts(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	if total == 0 || int64(page.Offset) >= total {
		return []domain.Product{}, total, nil
	}

	products, err := r.store.FindProducts(ctx, filter, page)
	if err != nil {
		return nil, 0, fmt.Errorf("find products: %w", err)
	}

	return products, total, nil
}
