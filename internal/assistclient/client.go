// internal/assistclient/client.go
package assistclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/assistant-operate/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// AnalyzeTimeout bounds a single analyze round trip.
	AnalyzeTimeout = 60 * time.Second

	analyzePath = "/analyze"
	healthPath  = "/health"

	// responseFormat asks the endpoint for machine-readable output.
	responseFormat = "json"

	// maxBodySize caps how much of a response body is read.
	maxBodySize = 10 << 20
)

// RawResponse is a decoded response body whose shape is not known yet: a JSON object, array,
// string or scalar.
type RawResponse = any

type analyzeRequest struct {
	Image     string `json:"image"`
	Prompt    string `json:"prompt"`
	Objective string `json:"objective"`
	Format    string `json:"format"`
}

// Client talks to the reasoning endpoint. Each call is a single attempt; retrying is up to
// the caller.
type Client struct {
	baseURL        string
	userAgent      string
	analyzeTimeout time.Duration
	healthTimeout  time.Duration
	httpClient    *http.Client
	logger        *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. A nil client is ignored.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New creates a Client for the endpoint described by cfg.
func New(cfg config.AssistantConfig, logger *zap.Logger, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("assistclient: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		baseURL:        strings.TrimRight(cfg.APIURL, "/"),
		userAgent:      cfg.UserAgent,
		analyzeTimeout: AnalyzeTimeout,
		healthTimeout:  cfg.HealthTimeout,
		httpClient:     &http.Client{Timeout: AnalyzeTimeout},
		logger:         logger.Named("assistclient"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the endpoint base address in use.
func (c *Client) BaseURL() string { return c.baseURL }

// Analyze posts a screenshot, prompt and objective to the analyze route and returns the
// decoded response body. Failures are *APIError values matching ErrAPIUnreachable,
// ErrAPITimeout or ErrAPIRequest.
func (c *Client) Analyze(ctx context.Context, imageBase64, prompt, objective string) (RawResponse, error) {
	// The bound holds even when a caller-supplied http.Client has no Timeout.
	ctx, cancel := context.WithTimeout(ctx, c.analyzeTimeout)
	defer cancel()

	url := c.baseURL + analyzePath
	body, err := json.Marshal(analyzeRequest{
		Image:     imageBase64,
		Prompt:    prompt,
		Objective: objective,
		Format:    responseFormat,
	})
	if err != nil {
		return nil, &APIError{Op: "analyze", URL: url, Kind: ErrAPIRequest, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	requestID := uuid.NewString()
	log := c.logger.With(zap.String("request_id", requestID))
	log.Debug("Calling assistant endpoint", zap.String("url", url), zap.Int("image_bytes", len(imageBase64)))

	start := time.Now()
	raw, err := c.do(ctx, "analyze", http.MethodPost, url, requestID, body)
	if err != nil {
		log.Warn("Assistant call failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
		return nil, err
	}
	log.Debug("Assistant call complete", zap.Duration("duration", time.Since(start)))
	return raw, nil
}

// Health checks liveness via GET /health and returns the decoded body. Any non-200 status
// means the endpoint is down.
func (c *Client) Health(ctx context.Context) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	url := c.baseURL + healthPath
	return c.do(ctx, "health", http.MethodGet, url, uuid.NewString(), nil)
}

func (c *Client) do(ctx context.Context, op, method, url, requestID string, body []byte) (any, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, &APIError{Op: op, URL: url, Kind: ErrAPIRequest, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Op: op, URL: url, Kind: classify(err), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, &APIError{Op: op, URL: url, Kind: classify(err), Err: fmt.Errorf("read body: %w", err)}
	}
	if len(data) > maxBodySize {
		return nil, &APIError{Op: op, URL: url, Kind: ErrAPIRequest, StatusCode: resp.StatusCode,
			Err: fmt.Errorf("response body exceeds %d bytes", maxBodySize)}
	}

	if !statusOK(op, resp.StatusCode) {
		return nil, &APIError{Op: op, URL: url, Kind: ErrAPIRequest, StatusCode: resp.StatusCode,
			Err: fmt.Errorf("unexpected status %s: %s", resp.Status, snippet(data))}
	}

	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, &APIError{Op: op, URL: url, Kind: ErrAPIRequest, StatusCode: resp.StatusCode,
			Err: fmt.Errorf("malformed JSON body: %w", err)}
	}
	return decoded, nil
}

// statusOK accepts any 2xx for analyze; health requires exactly 200.
func statusOK(op string, code int) bool {
	if op == "health" {
		return code == http.StatusOK
	}
	return code >= 200 && code < 300
}

func snippet(data []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(data))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
