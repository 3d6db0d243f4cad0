package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"claimgate/internal/gateway"
	"claimgate/internal/transforms"
	dErrors "claimgate/pkg/domain-errors"
	"claimgate/pkg/platform/circuit"
)

// DefaultCacheTTL bounds how long enrichment responses are reused.
const DefaultCacheTTL = 5 * time.Minute

// ConvertResult is the unit-conversion collaborator's response.
type ConvertResult struct {
	Result float64 `json:"result"`
	Rate   float64 `json:"rate"`
}

// Client calls the enrichment services through the SSRF gateway. Identical
// concurrent lookups are deduplicated and successful responses cached. A
// tripped circuit breaker short-circuits straight to the caller's fallback
// until its cooldown elapses, then admits probe calls so a recovered
// collaborator closes it again.
type Client struct {
	gateway  *gateway.Gateway
	baseURL  string
	cache    Cache
	cacheTTL time.Duration
	breaker  *circuit.Breaker
	group    singleflight.Group
	logger   *slog.Logger
}

// NewClient builds an enrichment client. cache must not be nil; pass a
// MemoryCache when Redis is not configured.
func NewClient(gw *gateway.Gateway, baseURL string, cache Cache, ttl time.Duration, logger *slog.Logger) *Client {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Client{
		gateway:  gw,
		baseURL:  baseURL,
		cache:    cache,
		cacheTTL: ttl,
		breaker:  circuit.New("enrichment", circuit.WithFailureThreshold(5), circuit.WithSuccessThreshold(2)),
		logger:   logger,
	}
}

// post runs one deduplicated, cached call against an enrichment endpoint.
func (c *Client) post(ctx context.Context, path, cacheKey string, payload any) ([]byte, error) {
	if data, ok := c.cache.Get(ctx, cacheKey); ok {
		return data, nil
	}

	if c.breaker.IsOpen() {
		return nil, dErrors.Newf(dErrors.CodeUnavailable, "enrichment circuit open for %s", path)
	}

	result, err, _ := c.group.Do(cacheKey, func() (any, error) {
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal enrichment request: %w", err)
		}
		data, err := c.gateway.SafeFetch(ctx, http.MethodPost, c.baseURL+path, body)
		if err != nil {
			if _, change := c.breaker.RecordFailure(); change.Opened {
				c.logger.WarnContext(ctx, "enrichment circuit opened", "path", path, "error", err)
			}
			return nil, toDomain(err)
		}
		if _, change := c.breaker.RecordSuccess(); change.Closed {
			c.logger.InfoContext(ctx, "enrichment circuit closed", "path", path)
		}
		c.cache.Set(ctx, cacheKey, data, c.cacheTTL)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

// Check implements transforms.RecallLookup against the recall collaborator.
func (c *Client) Check(ctx context.Context, product string) (transforms.RecallStatus, error) {
	data, err := c.post(ctx, "/check", "recall:"+product, map[string]string{"product": product})
	if err != nil {
		return transforms.RecallStatus{}, err
	}
	var status transforms.RecallStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return transforms.RecallStatus{}, fmt.Errorf("decode recall response: %w", err)
	}
	return status, nil
}

// OCRResult is the text-extraction collaborator's response. Boxes are
// left as raw JSON; nothing in the pipeline consumes the geometry.
type OCRResult struct {
	Text       string          `json:"text"`
	Confidence float64         `json:"confidence"`
	Boxes      json.RawMessage `json:"boxes,omitempty"`
}

// OCR sends a base64-encoded image to the text-extraction collaborator.
// Responses are not cached; two captures of the same label rarely share
// bytes.
func (c *Client) OCR(ctx context.Context, imageBase64 string) (OCRResult, error) {
	if c.breaker.IsOpen() {
		return OCRResult{}, dErrors.New(dErrors.CodeUnavailable, "enrichment circuit open for /ocr")
	}
	body, err := json.Marshal(map[string]string{"base64": imageBase64})
	if err != nil {
		return OCRResult{}, fmt.Errorf("marshal ocr request: %w", err)
	}
	data, err := c.gateway.SafeFetch(ctx, http.MethodPost, c.baseURL+"/ocr", body)
	if err != nil {
		if _, change := c.breaker.RecordFailure(); change.Opened {
			c.logger.WarnContext(ctx, "enrichment circuit opened", "path", "/ocr", "error", err)
		}
		return OCRResult{}, toDomain(err)
	}
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.InfoContext(ctx, "enrichment circuit closed", "path", "/ocr")
	}
	var result OCRResult
	if err := json.Unmarshal(data, &result); err != nil {
		return OCRResult{}, fmt.Errorf("decode ocr response: %w", err)
	}
	return result, nil
}

// Convert calls the unit-conversion collaborator.
func (c *Client) Convert(ctx context.Context, from, to string, value float64) (ConvertResult, error) {
	key := fmt.Sprintf("convert:%s:%s:%g", from, to, value)
	data, err := c.post(ctx, "/convert", key, map[string]any{"from": from, "to": to, "value": value})
	if err != nil {
		return ConvertResult{}, err
	}
	var result ConvertResult
	if err := json.Unmarshal(data, &result); err != nil {
		return ConvertResult{}, fmt.Errorf("decode convert response: %w", err)
	}
	return result, nil
}

// Alts requests alternative compliant phrasings for a flagged claim.
func (c *Client) Alts(ctx context.Context, query, claimContext string) ([]string, error) {
	key := "alts:" + query + ":" + claimContext
	data, err := c.post(ctx, "/alts", key, map[string]string{"query": query, "context": claimContext})
	if err != nil {
		return nil, err
	}
	var response struct {
		Suggestions []string `json:"suggestions"`
	}
	if err := json.Unmarshal(data, &response); err != nil {
		return nil, fmt.Errorf("decode alts response: %w", err)
	}
	return response.Suggestions, nil
}

// toDomain translates gateway failures into the caller-visible taxonomy.
// Other errors pass through unchanged.
func toDomain(err error) error {
	switch {
	case errors.Is(err, gateway.ErrRejected):
		return dErrors.New(dErrors.CodeSSRFRejected, err.Error())
	case errors.Is(err, gateway.ErrTimeout):
		return dErrors.New(dErrors.CodeTimeout, err.Error())
	}
	return err
}

// Health probes the collaborator's health endpoint.
func (c *Client) Health(ctx context.Context) error {
	data, err := c.gateway.SafeFetch(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return toDomain(err)
	}
	var response struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(data, &response); err != nil {
		return fmt.Errorf("decode health response: %w", err)
	}
	if response.Status != "ok" {
		return fmt.Errorf("enrichment unhealthy: %q", response.Status)
	}
	return nil
}
