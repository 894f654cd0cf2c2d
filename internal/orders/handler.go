package orders

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/pagination"
	"github.com/joao-fontenele/storefront/internal/validation"
)

type Repository interface {
	Add(ctx context.Context, order domain.Order) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string, page pagination.Request) ([]domain.EnrichedOrder, int64, error)
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

// WithMaxLimit caps the page size accepted by HandleListByUser.
func WithMaxLimit(limit int) Option {
	return func(h *Handler) {
		h.maxLimit = limit
	}
}

// NewHandler builds the orders HTTP handler. publisher may be nil, in which
// case no order.created events are emitted.
func NewHandler(repo Repository, publisher Publisher, logger *slog.Logger, opts ...Option) (*Handler, error) {
	created, err := meter.Int64Counter("storefront.orders.created",
		metric.WithDescription("Number of orders created"),
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
// an empty one. An empty productId is left to the store, which rejects it as
// malformed.
type orderItemRequest struct {
	ProductID *string `json:"productId" validate:"required"`
	Qty       int     `json:"qty" validate:"gt=0"`
}

type createOrderRequest struct {
	UserID *string            `json:"userId" validate:"required"`
	Items  []orderItemRequest `json:"items" validate:"required,dive"`
}

func (req createOrderRequest) toDomain() domain.Order {
	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, domain.OrderItem{ProductID: *item.ProductID, Qty: item.Qty})
	}
	return domain.Order{UserID: *req.UserID, Items: items}
}

type createdResponse struct {
	ID string `json:"id"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, http.StatusBadRequest, validation.Message(err))
		return
	}

	order, err := h.repo.Add(r.Context(), req.toDomain())
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidID):
			h.writeError(w, http.StatusBadRequest, "invalid product id")
		case errors.Is(err, ErrNotCreated):
			h.writeError(w, http.StatusBadRequest, "Order could not be created.")
		default:
			h.logger.Error("failed to create order", "error", err)
			h.writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	h.created.Add(r.Context(), 1)

	if h.publisher != nil {
		event := domain.OrderCreatedEvent{
			OrderID:   order.ID,
			UserID:    order.UserID,
			Items:     order.Items,
			Timestamp: time.Now().UTC(),
		}
		if err := h.publisher.Publish(r.Context(), order.ID, event); err != nil {
			h.logger.Error("failed to publish order created event", "error", err, "order_id", order.ID)
		}
	}

	h.logger.Info("order created", "order_id", order.ID, "user_id", order.UserID)
	h.writeJSON(w, http.StatusCreated, createdResponse{ID: order.ID})
}

func (h *Handler) HandleListByUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	page, err := pagination.FromQuery(r.URL.Query(), h.maxLimit)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	orders, total, err := h.repo.ListByUser(r.Context(), userID, page)
	if err != nil {
		h.logger.Error("failed to list orders", "error", err, "user_id", userID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("orders listed", "user_id", userID, "count", len(orders), "total", total)
	h.writeJSON(w, http.StatusOK, pagination.NewEnvelope(orders, page, total))
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
