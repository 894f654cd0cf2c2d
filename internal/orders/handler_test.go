package orders

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/pagination"
	"github.com/joao-fontenele/storefront/internal/storage/memstore"
)

type stubRepository struct {
	addErr  error
	listErr error
}

func (s stubRepository) Add(context.Context, domain.Order) (*domain.Order, error) {
	return nil, s.addErr
}

func (s stubRepository) ListByUser(context.Context, string, pagination.Request) ([]domain.EnrichedOrder, int64, error) {
	return nil, 0, s.listErr
}

type capturePublisher struct {
	events []domain.OrderCreatedEvent
}

func (p *capturePublisher) Publish(_ context.Context, _ string, event any) error {
	p.events = append(p.events, event.(domain.OrderCreatedEvent))
	return nil
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, string, any) error {
	return errors.New("broker down")
}

type listResponse struct {
	Data []domain.EnrichedOrder `json:"data"`
	Page pagination.Info        `json:"page"`
}

func newRouter(t *testing.T, repo Repository, publisher Publisher) http.Handler {
	t.Helper()
	h, err := NewHandler(repo, publisher, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("failed to create handler: %v", err)
	}

	r := chi.NewRouter()
	r.Post("/orders", h.HandleCreate)
	r.Get("/orders/{userId}", h.HandleListByUser)
	return r
}

func newMemoryRouter(t *testing.T, publisher Publisher) (http.Handler, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	repo, err := NewOrderRepository(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	return newRouter(t, repo, publisher), store
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandler_CreateAndList(t *testing.T) {
	publisher := &capturePublisher{}
	router, store := newMemoryRouter(t, publisher)

	shirt, err := store.InsertProduct(context.Background(), domain.Product{Name: "Shirt", Price: 15})
	if err != nil {
		t.Fatalf("failed to insert product: %v", err)
	}
	hat, err := store.InsertProduct(context.Background(), domain.Product{Name: "Hat", Price: 7.5})
	if err != nil {
		t.Fatalf("failed to insert product: %v", err)
	}

	body := `{"userId":"user-42","items":[{"productId":"` + shirt + `","qty":2},{"productId":"` + hat + `","qty":1}]}`
	rec := do(router, http.MethodPost, "/orders", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var created map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if created["id"] == "" {
		t.Fatal("expected order id to be set")
	}
	if len(publisher.events) != 1 || publisher.events[0].OrderID != created["id"] {
		t.Fatalf("expected one order created event, got %+v", publisher.events)
	}

	rec = do(router, http.MethodGet, "/orders/user-42", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var resp listResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Data) != 1 {
		t.Fatalf("expected 1 order, got %d", len(resp.Data))
	}
	order := resp.Data[0]
	if order.ID != created["id"] {
		t.Errorf("expected order id %s, got %s", created["id"], order.ID)
	}
	if order.Total != 37.5 {
		t.Errorf("expected total 37.5, got %v", order.Total)
	}
	if len(order.Items) != 2 || order.Items[0].ProductDetails.Name != "Shirt" || order.Items[1].ProductDetails.Name != "Hat" {
		t.Errorf("unexpected lines: %+v", order.Items)
	}
	if resp.Page.Limit != 1 || resp.Page.Next != nil || resp.Page.Previous != nil {
		t.Errorf("unexpected page info: %+v", resp.Page)
	}
}

func TestHandler_HandleListByUser_NoOrders(t *testing.T) {
	router, _ := newMemoryRouter(t, nil)

	rec := do(router, http.MethodGet, "/orders/ghost", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	want := `{"data":[],"page":{"limit":0,"next":null,"previous":null}}`
	if strings.TrimSpace(rec.Body.String()) != want {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestHandler_HandleListByUser_DanglingProduct(t *testing.T) {
	router, _ := newMemoryRouter(t, nil)

	body := `{"userId":"user-7","items":[{"productId":"` + uuid.NewString() + `","qty":1}]}`
	if rec := do(router, http.MethodPost, "/orders", body); rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec := do(router, http.MethodGet, "/orders/user-7", "")

	var resp listResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Data) != 1 {
		t.Fatalf("expected 1 order, got %d", len(resp.Data))
	}
	if len(resp.Data[0].Items) != 0 || resp.Data[0].Total != 0 {
		t.Errorf("expected empty order, got %+v", resp.Data[0])
	}
}

func TestHandler_HandleCreate_Errors(t *testing.T) {
	tests := []struct {
		name       string
		repo       Repository
		body       string
		wantStatus int
		wantError  string
	}{
		{
			name:       "malformed json",
			repo:       stubRepository{},
			body:       `{"userId": 12}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid request body",
		},
		{
			name:       "non positive qty",
			repo:       stubRepository{},
			body:       `{"userId":"u","items":[{"productId":"p","qty":0}]}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "items[0].qty must be gt 0",
		},
		{
			name:       "missing items",
			repo:       stubRepository{},
			body:       `{"userId":"u"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "items is required",
		},
		{
			name:       "missing user id",
			repo:       stubRepository{},
			body:       `{"items":[]}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "userId is required",
		},
		{
			name:       "missing product id",
			repo:       stubRepository{},
			body:       `{"userId":"u","items":[{"qty":1}]}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "items[0].productId is required",
		},
		{
			name:       "malformed product id",
			repo:       stubRepository{addErr: domain.ErrInvalidID},
			body:       `{"userId":"u","items":[{"productId":"p","qty":1}]}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid product id",
		},
		{
			name:       "not created",
			repo:       stubRepository{addErr: ErrNotCreated},
			body:       `{"userId":"u","items":[]}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Order could not be created.",
		},
		{
			name:       "store failure",
			repo:       stubRepository{addErr: errors.New("i/o timeout")},
			body:       `{"userId":"u","items":[]}`,
			wantStatus: http.StatusInternalServerError,
			wantError:  "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newRouter(t, tt.repo, nil)

			rec := do(router, http.MethodPost, "/orders", tt.body)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			var resp map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp["error"] != tt.wantError {
				t.Errorf("expected error %q, got %q", tt.wantError, resp["error"])
			}
		})
	}
}

func TestHandler_HandleCreate_EmptyStrings(t *testing.T) {
	t.Run("empty user id is accepted", func(t *testing.T) {
		router, _ := newMemoryRouter(t, nil)

		rec := do(router, http.MethodPost, "/orders", `{"userId":"","items":[]}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
		}
	})

	t.Run("empty product id is rejected by the store", func(t *testing.T) {
		router, _ := newMemoryRouter(t, nil)

		rec := do(router, http.MethodPost, "/orders", `{"userId":"u","items":[{"productId":"","qty":1}]}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
		}
		var resp map[string]string
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp["error"] != "invalid product id" {
			t.Errorf("expected error %q, got %q", "invalid product id", resp["error"])
		}
	})
}

func TestHandler_PublishFailureDoesNotFailRequest(t *testing.T) {
	router, _ := newMemoryRouter(t, failingPublisher{})

	rec := do(router, http.MethodPost, "/orders", `{"userId":"u","items":[]}`)

	if rec.Code != http.StatusCreated {
		t.Errorf("expected status 201, got %d", rec.Code)
	}
}

func TestHandler_HandleListByUser_Errors(t *testing.T) {
	t.Run("invalid offset", func(t *testing.T) {
		router := newRouter(t, stubRepository{}, nil)

		rec := do(router, http.MethodGet, "/orders/u?offset=-2", "")

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
	})

	t.Run("store failure", func(t *testing.T) {
		router := newRouter(t, stubRepository{listErr: errors.New("boom")}, nil)

		rec := do(router, http.MethodGet, "/orders/u", "")

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", rec.Code)
		}
	})
}
