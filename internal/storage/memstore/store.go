// Package memstore is an in-process document store for local development
// and tests. Records are kept in insertion order, which is also id order.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/pagination"
)

type Store struct {
	mu       sync.RWMutex
	products []domain.Product
	orders   []domain.Order
}

func New() *Store {
	return &Store{}
}

func (s *Store) Ping(context.Context) error {
	return nil
}

func (s *Store) InsertProduct(_ context.Context, product domain.Product) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product.ID = uuid.NewString()
	product.Sizes = slices.Clone(product.Sizes)
	s.products = append(s.products, product)
	return product.ID, nil
}

func (s *Store) FindProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.products {
		if p.ID == id {
			p.Sizes = slices.Clone(p.Sizes)
			return &p, nil
		}
	}
	return nil, nil
}

func (s *Store) CountProducts(_ context.Context, filter domain.ProductFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, p := range s.products {
		if matchProduct(p, filter) {
			n++
		}
	}
	return n, nil
}

func (s *Store) FindProducts(_ context.Context, filter domain.ProductFilter, page pagination.Request) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []domain.Product
	for _, p := range s.products {
		if matchProduct(p, filter) {
			p.Sizes = nil
			matches = append(matches, p)
		}
	}
	return window(matches, page), nil
}

func (s *Store) FindProductsByIDs(_ context.Context, ids []string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found []domain.Product
	for _, p := range s.products {
		if slices.Contains(ids, p.ID) {
			p.Sizes = slices.Clone(p.Sizes)
			found = append(found, p)
		}
	}
	return found, nil
}

func (s *Store) InsertOrder(_ context.Context, order domain.Order) (string, error) {
	items := make([]domain.OrderItem, 0, len(order.Items))
	for _, item := range order.Items {
		ref, err := uuid.Parse(item.ProductID)
		if err != nil {
			return "", fmt.Errorf("%w: product id %q", domain.ErrInvalidID, item.ProductID)
		}
		items = append(items, domain.OrderItem{ProductID: ref.String(), Qty: item.Qty})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	order.ID = uuid.NewString()
	order.Items = items
	s.orders = append(s.orders, order)
	return order.ID, nil
}

func (s *Store) FindOrderByID(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, o := range s.orders {
		if o.ID == id {
			o.Items = slices.Clone(o.Items)
			return &o, nil
		}
	}
	return nil, nil
}

func (s *Store) CountOrdersByUser(_ context.Context, userID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, o := range s.orders {
		if o.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (s *Store) FindOrdersByUser(_ context.Context, userID string, page pagination.Request) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []domain.Order
	for _, o := range s.orders {
		if o.UserID == userID {
			o.Items = slices.Clone(o.Items)
			matches = append(matches, o)
		}
	}
	return window(matches, page), nil
}

func matchProduct(p domain.Product, filter domain.ProductFilter) bool {
	if filter.Name != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(filter.Name)) {
		return false
	}
	if filter.Size != "" && !slices.ContainsFunc(p.Sizes, func(s domain.Size) bool { return s.Size == filter.Size }) {
		return false
	}
	return true
}

func window[T any](items []T, page pagination.Request) []T {
	if page.Offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if page.Limit > 0 && page.Offset+page.Limit < end {
		end = page.Offset + page.Limit
	}
	return items[page.Offset:end]
}
