// Package pgstore persists products and orders in PostgreSQL, keeping the
// nested parts of each document (sizes, order items) in JSONB columns.
package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/pagination"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

type Options struct {
	ConnectTimeout time.Duration
	// QueryTimeout bounds every statement issued by the store.
	QueryTimeout time.Duration
}

// Open returns a traced connection pool after verifying connectivity.
func Open(ctx context.Context, dsn string, opts Options) (*sql.DB, error) {
	db, err := telemetry.OpenDB("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	pingCtx := ctx
	if opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, opts.ConnectTimeout)
		defer cancel()
	}
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return db, nil
}

type Store struct {
	db           *sql.DB
	queryTimeout time.Duration
}

func New(db *sql.DB, queryTimeout time.Duration) *Store {
	return &Store{db: db, queryTimeout: queryTimeout}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

func (s *Store) InsertProduct(ctx context.Context, product domain.Product) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	sizes := product.Sizes
	if sizes == nil {
		sizes = []domain.Size{}
	}
	sizesJSON, err := json.Marshal(sizes)
	if err != nil {
		return "", err
	}

	id := uuid.New().String()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, price, sizes)
		VALUES ($1, $2, $3, $4::jsonb)
	`, id, product.Name, product.Price, string(sizesJSON))
	if err != nil {
		return "", err
	}

	return id, nil
}

func (s *Store) FindProductByID(ctx context.Context, id string) (*domain.Product, error) {
	ref, err := parseID(id)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	product := &domain.Product{}
	var sizesJSON []byte
	err = s.db.QueryRowContext(ctx, `
		SELECT id, name, price, sizes
		FROM products
		WHERE id = $1
	`, ref).Scan(&product.ID, &product.Name, &product.Price, &sizesJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(sizesJSON, &product.Sizes); err != nil {
		return nil, fmt.Errorf("decode sizes: %w", err)
	}

	return product, nil
}

func (s *Store) CountProducts(ctx context.Context, filter domain.ProductFilter) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	where, args, err := productWhere(filter)
	if err != nil {
		return 0, err
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products"+where, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) FindProducts(ctx context.Context, filter domain.ProductFilter, page pagination.Request) ([]domain.Product, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	where, args, err := productWhere(filter)
	if err != nil {
		return nil, err
	}
	args = append(args, page.Limit, page.Offset)
	query := fmt.Sprintf("SELECT id, name, price FROM products%s ORDER BY seq LIMIT $%d OFFSET $%d",
		where, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	products := []domain.Product{}
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price); err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

// FindProductsByIDs ignores ids that are not UUIDs; they cannot match any
// stored product.
func (s *Store) FindProductsByIDs(ctx context.Context, ids []string) ([]domain.Product, error) {
	refs := make([]string, 0, len(ids))
	for _, id := range ids {
		if ref, err := parseID(id); err == nil {
			refs = append(refs, ref)
		}
	}
	if len(refs) == 0 {
		return nil, nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, price
		FROM products
		WHERE id = ANY($1::uuid[])
	`, pq.Array(refs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price); err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (s *Store) InsertOrder(ctx context.Context, order domain.Order) (string, error) {
	items := make([]domain.OrderItem, 0, len(order.Items))
	for _, item := range order.Items {
		ref, err := parseID(item.ProductID)
		if err != nil {
			return "", err
		}
		items = append(items, domain.OrderItem{ProductID: ref, Qty: item.Qty})
	}

	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return "", err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	id := uuid.New().String()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, items)
		VALUES ($1, $2, $3::jsonb)
	`, id, order.UserID, string(itemsJSON))
	if err != nil {
		return "", err
	}

	return id, nil
}

func (s *Store) FindOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	ref, err := parseID(id)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	order := &domain.Order{}
	var itemsJSON []byte
	err = s.db.QueryRowContext(ctx, `
		SELECT id, user_id, items
		FROM orders
		WHERE id = $1
	`, ref).Scan(&order.ID, &order.UserID, &itemsJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}

	return order, nil
}

func (s *Store) CountOrdersByUser(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var total int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM orders WHERE user_id = $1
	`, userID).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) FindOrdersByUser(ctx context.Context, userID string, page pagination.Request) ([]domain.Order, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, items
		FROM orders
		WHERE user_id = $1
		ORDER BY seq
		LIMIT $2 OFFSET $3
	`, userID, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orders := []domain.Order{}
	for rows.Next() {
		var order domain.Order
		var itemsJSON []byte
		if err := rows.Scan(&order.ID, &order.UserID, &itemsJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
			return nil, fmt.Errorf("decode items of order %s: %w", order.ID, err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}

// productWhere renders the WHERE clause for a product listing. Placeholders
// are numbered from $1 in the order of the returned args.
func productWhere(filter domain.ProductFilter) (string, []any, error) {
	var conds []string
	var args []any

	if filter.Name != "" {
		args = append(args, "%"+escapeLike(filter.Name)+"%")
		conds = append(conds, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	if filter.Size != "" {
		containment, err := json.Marshal([]map[string]string{{"size": filter.Size}})
		if err != nil {
			return "", nil, err
		}
		args = append(args, string(containment))
		conds = append(conds, fmt.Sprintf("sizes @> $%d::jsonb", len(args)))
	}

	if len(conds) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func parseID(id string) (string, error) {
	ref, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidID, id)
	}
	return ref.String(), nil
}
