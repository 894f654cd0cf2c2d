package server

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
	"time"

	"github.com/joao-fontenele/storefront/internal/orders"
	"github.com/joao-fontenele/storefront/internal/products"
	"github.com/joao-fontenele/storefront/internal/storage/memstore"
)

type downStore struct{}

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

// hangingStore blocks until the ping context is done.
type hangingStore struct{}

func (hangingStore) Ping(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func newTestRouter(t *testing.T, pinger Pinger, metrics http.Handler) http.Handler {
	t.Helper()
	return newTestRouterWithHealthTimeout(t, pinger, metrics, 0)
}

func newTestRouterWithHealthTimeout(t *testing.T, pinger Pinger, metrics http.Handler, healthTimeout time.Duration) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memstore.New()

	productHandler, err := products.NewHandler(products.NewProductRepository(store), nil, logger)
	if err != nil {
		t.Fatalf("failed to create product handler: %v", err)
	}
	orderRepo, err := orders.NewOrderRepository(store, logger)
	if err != nil {
		t.Fatalf("failed to create order repository: %v", err)
	}
	orderHandler, err := orders.NewHandler(orderRepo, nil, logger)
	if err != nil {
		t.Fatalf("failed to create order handler: %v", err)
	}

	if pinger == nil {
		pinger = store
	}

	return NewRouter(Deps{
		Products:       productHandler,
		Orders:         orderHandler,
		Store:          pinger,
		Metrics:        metrics,
		Logger:         logger,
		ServiceName:    "storefront-test",
		HealthTimeout:  healthTimeout,
		AllowedOrigins: []string{"*"},
	})
}

func TestRouter_Welcome(t *testing.T) {
	router := newTestRouter(t, nil, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["message"] == "" {
		t.Error("expected a welcome message")
	}
}

func TestRouter_Health(t *testing.T) {
	tests := []struct {
		name       string
		pinger     Pinger
		wantStatus int
		wantBody   string
	}{
		{name: "store reachable", wantStatus: http.StatusOK, wantBody: "ok"},
		{name: "store down", pinger: downStore{}, wantStatus: http.StatusServiceUnavailable, wantBody: "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(t, tt.pinger, nil)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}

			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if body["status"] != tt.wantBody {
				t.Errorf("expected status %q, got %q", tt.wantBody, body["status"])
			}
		})
	}
}

func TestRouter_HealthUsesConfiguredTimeout(t *testing.T) {
	router := newTestRouterWithHealthTimeout(t, hangingStore{}, nil, 50*time.Millisecond)

	start := time.Now()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	elapsed := time.Since(start)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, rec.Code)
	}
	if elapsed >= defaultHealthTimeout {
		t.Errorf("expected ping to give up after the configured timeout, took %s", elapsed)
	}
}

func TestRouter_ProductsAndOrders(t *testing.T) {
	router := newTestRouter(t, nil, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/products",
		strings.NewReader(`{"name":"Tee","price":12.5,"sizes":[{"size":"M","quantity":3}]}`)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create product: expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/orders",
		strings.NewReader(`{"userId":"u1","items":[{"productId":"`+created.ID+`","qty":2}]}`)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create order: expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/u1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list orders: expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var list struct {
		Data []struct {
			Total float64 `json:"total"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(list.Data) != 1 || list.Data[0].Total != 25 {
		t.Errorf("expected one order totalling 25, got %+v", list.Data)
	}
}

func TestRouter_RequestID(t *testing.T) {
	router := newTestRouter(t, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
}

func TestRouter_Metrics(t *testing.T) {
	t.Run("mounted when provided", func(t *testing.T) {
		metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		})
		router := newTestRouter(t, nil, metrics)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if rec.Body.String() != "# metrics" {
			t.Errorf("unexpected body %q", rec.Body.String())
		}
	})

	t.Run("absent otherwise", func(t *testing.T) {
		router := newTestRouter(t, nil, nil)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
	})
}

func TestRouter_CORSPreflight(t *testing.T) {
	router := newTestRouter(t, nil, nil)

	req := httptest.NewRequest(http.MethodOptions, "/products", nil)
	req.Header.Set("Origin", "http://shop.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected Access-Control-Allow-Origin *, got %q", got)
	}
}
