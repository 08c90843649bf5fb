package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"storefront-svc/circuitbreaker"
	"storefront-svc/config"

	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Razorpay {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewRazorpay(config.GatewayConfig{
		BaseURL:   server.URL,
		KeyID:     "rzp_test_key",
		KeySecret: "secret",
	}, zaptest.NewLogger(t))
}

func TestCreateOrder_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/orders" {
			t.Errorf("Expected POST /orders, got %s %s", r.Method, r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "rzp_test_key" || pass != "secret" {
			t.Errorf("Expected basic auth rzp_test_key/secret, got %q/%q", user, pass)
		}

		var body createOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("Failed to decode request: %v", err)
			return
		}
		if body.Amount != 185000 || body.Currency != "INR" || body.Receipt != "order-1" {
			t.Errorf("Unexpected request body: %+v", body)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"order_Rzp123","entity":"order","amount":185000,"currency":"INR","receipt":"order-1","status":"created"}`))
	})

	order, err := client.CreateOrder(context.Background(), 185000, "INR", "order-1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if order.ID != "order_Rzp123" {
		t.Errorf("Expected gateway order id order_Rzp123, got %s", order.ID)
	}
	if order.Amount != 185000 {
		t.Errorf("Expected amount 185000, got %d", order.Amount)
	}
}

func TestCreateOrder_APIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"amount must be at least INR 1.00"}}`))
	})

	_, err := client.CreateOrder(context.Background(), 50, "INR", "order-2")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Code != "BAD_REQUEST_ERROR" {
		t.Errorf("Unexpected API error: %+v", apiErr)
	}
}

func TestCreateOrder_ClientErrorsDoNotTripBreaker(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	for i := 0; i < 10; i++ {
		client.CreateOrder(context.Background(), 100, "INR", "order-3")
	}
	if client.circuitBreaker.GetState() != circuitbreaker.StateClosed {
		t.Errorf("Expected breaker closed, got %s", client.circuitBreaker.GetState())
	}
}

func TestCreateOrder_ServerErrorsOpenBreaker(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	})

	for i := 0; i < 5; i++ {
		client.CreateOrder(context.Background(), 100, "INR", "order-4")
	}

	_, err := client.CreateOrder(context.Background(), 100, "INR", "order-4")
	if !errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		t.Errorf("Expected ErrCircuitOpen, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 5 {
		t.Errorf("Expected 5 upstream calls, got %d", got)
	}
}
