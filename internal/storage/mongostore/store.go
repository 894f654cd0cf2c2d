// Package mongostore persists products and orders as MongoDB documents.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/pagination"
)

const (
	ProductsCollection = "products"
	OrdersCollection   = "orders"
)

type sizeDocument struct {
	Size     string `bson:"size"`
	Quantity int    `bson:"quantity"`
}

type productDocument struct {
	ID    primitive.ObjectID `bson:"_id,omitempty"`
	Name  string             `bson:"name"`
	Price float64            `bson:"price"`
	Sizes []sizeDocument     `bson:"sizes"`
}

type orderItemDocument struct {
	ProductID primitive.ObjectID `bson:"productId"`
	Qty       int                `bson:"qty"`
}

type orderDocument struct {
	ID     primitive.ObjectID  `bson:"_id,omitempty"`
	UserID string              `bson:"userId"`
	Items  []orderItemDocument `bson:"items"`
}

type Store struct {
	db       *mongo.Database
	products *mongo.Collection
	orders   *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{
		db:       db,
		products: db.Collection(ProductsCollection),
		orders:   db.Collection(OrdersCollection),
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, readpref.Primary())
}

// EnsureIndexes creates the indexes backing the list queries. It is
// idempotent and safe to call on every startup.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	if _, err := s.orders.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "_id", Value: 1}},
	}); err != nil {
		return fmt.Errorf("create orders index: %w", err)
	}

	if _, err := s.products.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "sizes.size", Value: 1}},
	}); err != nil {
		return fmt.Errorf("create products index: %w", err)
	}

	return nil
}

func (s *Store) InsertProduct(ctx context.Context, product domain.Product) (string, error) {
	doc := productDocument{
		Name:  product.Name,
		Price: product.Price,
		Sizes: make([]sizeDocument, 0, len(product.Sizes)),
	}
	for _, size := range product.Sizes {
		doc.Sizes = append(doc.Sizes, sizeDocument{Size: size.Size, Quantity: size.Quantity})
	}

	res, err := s.products.InsertOne(ctx, doc)
	if err != nil {
		return "", err
	}
	return insertedID(res)
}

func (s *Store) FindProductByID(ctx context.Context, id string) (*domain.Product, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var doc productDocument
	if err := s.products.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}

	product := doc.toDomain()
	return &product, nil
}

func (s *Store) CountProducts(ctx context.Context, filter domain.ProductFilter) (int64, error) {
	return s.products.CountDocuments(ctx, productQuery(filter))
}

func (s *Store) FindProducts(ctx context.Context, filter domain.ProductFilter, page pagination.Request) ([]domain.Product, error) {
	opts := pageOptions(page).SetProjection(bson.M{"sizes": 0})

	cursor, err := s.products.Find(ctx, productQuery(filter), opts)
	if err != nil {
		return nil, err
	}

	var docs []productDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	products := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		products = append(products, doc.toDomain())
	}
	return products, nil
}

// FindProductsByIDs ignores ids that are not valid ObjectIDs; they cannot
// match any stored product.
func (s *Store) FindProductsByIDs(ctx context.Context, ids []string) ([]domain.Product, error) {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return nil, nil
	}

	cursor, err := s.products.Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, err
	}

	var docs []productDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	products := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		products = append(products, doc.toDomain())
	}
	return products, nil
}

func (s *Store) InsertOrder(ctx context.Context, order domain.Order) (string, error) {
	doc := orderDocument{
		UserID: order.UserID,
		Items:  make([]orderItemDocument, 0, len(order.Items)),
	}
	for _, item := range order.Items {
		oid, err := parseID(item.ProductID)
		if err != nil {
			return "", err
		}
		doc.Items = append(doc.Items, orderItemDocument{ProductID: oid, Qty: item.Qty})
	}

	res, err := s.orders.InsertOne(ctx, doc)
	if err != nil {
		return "", err
	}
	return insertedID(res)
}

func (s *Store) FindOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var doc orderDocument
	if err := s.orders.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}

	order := doc.toDomain()
	return &order, nil
}

func (s *Store) CountOrdersByUser(ctx context.Context, userID string) (int64, error) {
	return s.orders.CountDocuments(ctx, bson.M{"userId": userID})
}

func (s *Store) FindOrdersByUser(ctx context.Context, userID string, page pagination.Request) ([]domain.Order, error) {
	cursor, err := s.orders.Find(ctx, bson.M{"userId": userID}, pageOptions(page))
	if err != nil {
		return nil, err
	}

	var docs []orderDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, doc.toDomain())
	}
	return orders, nil
}

// productQuery builds the find filter for a product listing. The name is
// escaped so it matches as a literal substring.
func productQuery(filter domain.ProductFilter) bson.M {
	query := bson.M{}
	if filter.Name != "" {
		query["name"] = primitive.Regex{Pattern: regexp.QuoteMeta(filter.Name), Options: "i"}
	}
	if filter.Size != "" {
		query["sizes.size"] = filter.Size
	}
	return query
}

// pageOptions sorts by _id so that skip/limit windows are stable.
func pageOptions(page pagination.Request) *options.FindOptions {
	return options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetSkip(int64(page.Offset)).
		SetLimit(int64(page.Limit))
}

func parseID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", domain.ErrInvalidID, id)
	}
	return oid, nil
}

func insertedID(res *mongo.InsertOneResult) (string, error) {
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	return oid.Hex(), nil
}

func (d productDocument) toDomain() domain.Product {
	product := domain.Product{
		ID:    d.ID.Hex(),
		Name:  d.Name,
		Price: d.Price,
	}
	if d.Sizes != nil {
		product.Sizes = make([]domain.Size, 0, len(d.Sizes))
		for _, s := range d.Sizes {
			product.Sizes = append(product.Sizes, domain.Size{Size: s.Size, Quantity: s.Quantity})
		}
	}
	return product
}

func (d orderDocument) toDomain() domain.Order {
	order := domain.Order{
		ID:     d.ID.Hex(),
		UserID: d.UserID,
		Items:  make([]domain.OrderItem, 0, len(d.Items)),
	}
	for _, item := range d.Items {
		order.Items = append(order.Items, domain.OrderItem{ProductID: item.ProductID.Hex(), Qty: item.Qty})
	}
	return order
}
