package products

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/pagination"
	"github.com/joao-fontenele/storefront/internal/validation"
)

var meter = otel.Meter("storefront/products")

type Repository interface {
	Add(ctx context.Context, product domain.Product) (*domain.Product, error)
	List(ctx context.Context, filter domain.ProductFilter, page pagination.Request) ([]domain.Product, int64, error)
}

type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type Handler struct {
	repo      Repository
	publisher Publisher
	logger    *slog.Logger
	validate  *validator.Validate
	maxLimit  int
	created   metric.Int64Counter
}

type Option func(*Handler)

// WithMaxLimit caps the page size accepted by HandleList.
func WithMaxLimit(limit int) Option {
	return func(h *Handler) {
		h.maxLimit = limit
	}
}

// NewHandler builds the products HTTP handler. publisher may be nil, in which
// case no product.created events are emitted.
func NewHandler(repo Repository, publisher Publisher, logger *slog.Logger, opts ...Option) (*Handler, error) {
	created, err := meter.Int64Counter("storefront.products.created",
		metric.WithDescription("Number of products created"),
	)
	if err != nil {
		return nil, err
	}

	h := &Handler{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		validate:  validation.New(),
		maxLimit:  pagination.MaxLimit,
		created:   created,
	}
	for _, opt := range opts {
		opt(h)
	}

	return h, nil
}

// String fields are pointers so that an absent field can be told apart from
// an empty one; only presence is enforced.
type sizeRequest struct {
	Size     *string `json:"size" validate:"required"`
	Quantity *int    `json:"quantity" validate:"required,gte=0"`
}

type createProductRequest struct {
	Name  *string       `json:"name" validate:"required"`
	Price *float64      `json:"price" validate:"required,gte=0"`
	Sizes []sizeRequest `json:"sizes" validate:"required,dive"`
}

func (req createProductRequest) toDomain() domain.Product {
	sizes := make([]domain.Size, 0, len(req.Sizes))
	for _, s := range req.Sizes {
		sizes = append(sizes, domain.Size{Size: *s.Size, Quantity: *s.Quantity})
	}
	return domain.Product{Name: *req.Name, Price: *req.Price, Sizes: sizes}
}

type createdResponse struct {
	ID string `json:"id"`
}

type productSummary struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, http.StatusBadRequest, validation.Message(err))
		return
	}

	product, err := h.repo.Add(r.Context(), req.toDomain())
	if err != nil {
		if errors.Is(err, ErrNotCreated) {
			h.writeError(w, http.StatusBadRequest, "Product could not be created.")
			return
		}
		h.logger.Error("failed to create product", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.created.Add(r.Context(), 1)

	if h.publisher != nil {
		event := domain.ProductCreatedEvent{
			ProductID: product.ID,
			Name:      product.Name,
			Price:     product.Price,
			Timestamp: time.Now().UTC(),
		}
		if err := h.publisher.Publish(r.Context(), product.ID, event); err != nil {
			h.logger.Error("failed to publish product created event", "error", err, "product_id", product.ID)
		}
	}

	h.logger.Info("product created", "product_id", product.ID)
	h.writeJSON(w, http.StatusCreated, createdResponse{ID: product.ID})
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, err := pagination.FromQuery(q, h.maxLimit)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	filter := domain.ProductFilter{
		Name: q.Get("name"),
		Size: q.Get("size"),
	}

	products, total, err := h.repo.List(r.Context(), filter, page)
	if err != nil {
		h.logger.Error("failed to list products", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	summaries := make([]productSummary, 0, len(products))
	for _, p := range products {
		summaries = append(summaries, productSummary{ID: p.ID, Name: p.Name, Price: p.Price})
	}

	h.logger.Info("products listed", "count", len(summaries), "total", total)
	h.writeJSON(w, http.StatusOK, pagination.NewEnvelope(summaries, page, total))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
