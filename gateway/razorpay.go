package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"storefront-svc/circuitbreaker"
	"storefront-svc/config"
	"storefront-svc/middleware"
	"storefront-svc/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

// APIError is a non-2xx answer from the gateway.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("razorpay: %d %s: %s", e.StatusCode, e.Code, e.Description)
}

// Razorpay talks to the Razorpay Orders API.
type Razorpay struct {
	baseURL        string
	keyID          string
	keySecret      string
	httpClient     *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	logger         *zap.Logger
}

func NewRazorpay(cfg config.GatewayConfig, logger *zap.Logger) *Razorpay {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Razorpay{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		keyID:      cfg.KeyID,
		keySecret:  cfg.KeySecret,
		httpClient: &http.Client{Timeout: timeout},
		circuitBreaker: circuitbreaker.New(circuitbreaker.Settings{
			Name:         "razorpay",
			MaxFailures:  5,
			ResetTimeout: 30 * time.Second,
			IsFailure:    isGatewayFailure,
			OnStateChange: func(name string, from, to circuitbreaker.State) {
				middleware.RecordCircuitState(name, int(to))
				logger.Warn("Circuit breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		}),
		logger: logger,
	}
}

// isGatewayFailure counts transport errors and 5xx answers. A 4xx means the
// gateway is up and rejected our request.
func isGatewayFailure(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	return true
}

type createOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type errorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (r *Razorpay) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (models.GatewayOrder, error) {
	ctx, span := otel.Tracer("storefront-service").Start(ctx, "Razorpay.CreateOrder")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("payment.amount", amount),
		attribute.String("payment.receipt", receipt),
	)

	body, err := json.Marshal(createOrderRequest{Amount: amount, Currency: currency, Receipt: receipt})
	if err != nil {
		return models.GatewayOrder{}, fmt.Errorf("failed to encode order request: %w", err)
	}

	var order models.GatewayOrder
	err = r.circuitBreaker.Execute(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/orders", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.SetBasicAuth(r.keyID, r.keySecret)
		req.Header.Set("Content-Type", "application/json")
		otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

		resp, err := r.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("razorpay request failed: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return fmt.Errorf("failed to read razorpay response: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			apiErr := &APIError{StatusCode: resp.StatusCode}
			var er errorResponse
			if json.Unmarshal(data, &er) == nil {
				apiErr.Code = er.Error.Code
				apiErr.Description = er.Error.Description
			}
			return apiErr
		}
		if err := json.Unmarshal(data, &order); err != nil {
			return fmt.Errorf("failed to decode razorpay order: %w", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			span.SetAttributes(attribute.String("circuit.state", "open"))
		}
		return models.GatewayOrder{}, err
	}

	r.logger.Info("Razorpay order created",
		zap.String("gateway_order_id", order.ID),
		zap.String("receipt", receipt),
		zap.Int64("amount", amount),
	)
	return order, nil
}
