package vendorclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fairyhunter13/dispatchd/internal/adapter/observability"
	"github.com/fairyhunter13/dispatchd/internal/domain"
	"github.com/fairyhunter13/dispatchd/internal/service/ratelimiter"
)

const maxResponseBytes = 1 << 20

const healthCheckTimeout = 5 * time.Second

// Client implements the vendor client port. One HTTP client, rate bucket,
// and circuit breaker exist per configured vendor.
type Client struct {
	registry    *Registry
	limiters    *ratelimiter.VendorLimiter
	breakers    *observability.CircuitBreakerManager
	webhookBase string
	clients     map[string]*http.Client
	health      *http.Client
}

// New wires vendors into the shared limiter registry and breaker manager.
// webhookBase is the externally reachable base URL async vendors post back
// to.
func New(vendors []domain.VendorConfig, webhookBase string, limiters *ratelimiter.VendorLimiter, breakers *observability.CircuitBreakerManager) *Client {
	transport := otelhttp.NewTransport(http.DefaultTransport,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return fmt.Sprintf("Vendor %s %s", r.Method, r.URL.Host)
		}),
	)

	clients := make(map[string]*http.Client, len(vendors))
	for _, v := range vendors {
		limiters.Register(v.Name, ratelimiter.NewBucketConfigFromPerMinute(v.RateLimitPerMinute))

		cfg := observability.DefaultCircuitBreakerConfig()
		cfg.LatencyThreshold = v.Timeout()
		breakers.GetOrCreate(breakerName(v.Name), cfg)

		clients[v.Name] = &http.Client{
			Timeout:   v.Timeout(),
			Transport: transport,
		}
	}
	return &Client{
		registry:    NewRegistry(vendors),
		limiters:    limiters,
		breakers:    breakers,
		webhookBase: strings.TrimRight(webhookBase, "/"),
		clients:     clients,
		health:      &http.Client{Timeout: healthCheckTimeout, Transport: transport},
	}
}

func breakerName(vendor string) string { return "vendor:" + vendor }

// Call delivers a job payload to the named vendor and returns the outcome.
// Vendor failures of any kind (unknown vendor, open breaker, timeout,
// transport fault, non-2xx) come back as an error result, never as a Go
// error.
func (c *Client) Call(ctx domain.Context, vendorName string, payload json.RawMessage, requestID string) domain.VendorResult {
	tracer := otel.Tracer("vendorclient")
	ctx, span := tracer.Start(ctx, "vendor.Call", trace.WithAttributes(
		attribute.String("vendor", vendorName),
		attribute.String("request_id", requestID),
	))
	defer span.End()

	vendor, err := c.registry.Resolve(vendorName)
	if err != nil {
		return errorResult(false, err.Error())
	}

	if err := c.limiters.Acquire(ctx, vendorName); err != nil {
		return errorResult(vendor.IsAsync, err.Error())
	}

	body, err := c.buildBody(vendor, payload, requestID)
	if err != nil {
		return errorResult(vendor.IsAsync, err.Error())
	}

	breaker, _ := c.breakers.Get(breakerName(vendor.Name))
	start := time.Now()
	var data json.RawMessage
	execErr := breaker.Execute(ctx, func(ctx context.Context) error {
		var callErr error
		data, callErr = c.post(ctx, vendor, body, requestID)
		return callErr
	})
	elapsed := time.Since(start)

	if execErr != nil {
		observability.ObserveVendorCall(vendor.Name, "error", elapsed.Seconds())
		slog.Warn("vendor call failed",
			slog.String("vendor", vendor.Name),
			slog.String("request_id", requestID),
			slog.Duration("elapsed", elapsed),
			slog.Any("error", execErr))
		return errorResult(vendor.IsAsync, execErr.Error())
	}

	observability.ObserveVendorCall(vendor.Name, "success", elapsed.Seconds())
	slog.Info("vendor call succeeded",
		slog.String("vendor", vendor.Name),
		slog.String("request_id", requestID),
		slog.Duration("elapsed", elapsed))
	return domain.VendorResult{Data: data, IsAsync: vendor.IsAsync, Status: domain.CallSuccess}
}

// buildBody merges the client payload with the dispatch envelope. Async
// vendors also receive the webhook URL they must post the result to.
func (c *Client) buildBody(vendor domain.VendorConfig, payload json.RawMessage, requestID string) ([]byte, error) {
	merged := map[string]any{}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &merged); err != nil {
			return nil, fmt.Errorf("payload is not a JSON object: %w", err)
		}
	}
	merged["requestId"] = requestID
	merged["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	if vendor.IsAsync {
		merged["webhookUrl"] = c.webhookBase + "/vendor-webhook/" + vendor.Name
	}
	return json.Marshal(merged)
}

func (c *Client) post(ctx context.Context, vendor domain.VendorConfig, body []byte, requestID string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, vendor.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.clients[vendor.Name].Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(respBody)
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		return nil, fmt.Errorf("%w: %s returned status %d: %s", domain.ErrVendor, vendor.Name, resp.StatusCode, snippet)
	}
	if len(respBody) == 0 || !json.Valid(respBody) {
		// Keep non-JSON replies queryable instead of failing the job.
		wrapped, _ := json.Marshal(map[string]string{"raw": string(respBody)})
		return wrapped, nil
	}
	return respBody, nil
}

// HealthCheckAll probes every vendor's health endpoint concurrently.
func (c *Client) HealthCheckAll(ctx domain.Context) map[string]bool {
	vendors := c.registry.All()
	results := make(map[string]bool, len(vendors))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, v := range vendors {
		wg.Add(1)
		go func(v domain.VendorConfig) {
			defer wg.Done()
			ok := c.healthCheck(ctx, v)
			mu.Lock()
			results[v.Name] = ok
			mu.Unlock()
		}(v)
	}
	wg.Wait()
	return results
}

// healthCheck probes GET /health on the vendor's origin.
func (c *Client) healthCheck(ctx context.Context, v domain.VendorConfig) bool {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	u, err := url.Parse(v.URL)
	if err != nil {
		return false
	}
	u.Path = "/health"
	u.RawQuery = ""

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return false
	}
	resp, err := c.health.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func errorResult(isAsync bool, msg string) domain.VendorResult {
	if msg == "" {
		msg = "HTTP request failed"
	}
	return domain.VendorResult{IsAsync: isAsync, Status: domain.CallError, Error: msg}
}
