package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	// BaseURL is the Google AI Studio API base URL
	BaseURL = "https://generativelanguage.googleapis.com/v1beta"

	// LiveURL is the BidiGenerateContent websocket endpoint
	LiveURL = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	// DefaultTimeout for API requests
	DefaultTimeout = 2 * time.Minute

	// MaxImagesPerRequest is the maximum images per API call
	MaxImagesPerRequest = 16

	// MaxFileSize is the maximum file size per image (20MB)
	MaxFileSize = 20 * 1024 * 1024

	previewLen = 120
)

// Client is the Google Gemini API client
type Client struct {
	apiKey     string
	baseURL    string
	liveURL    string
	httpClient *http.Client
	debug      bool
	logger     *slog.Logger
	observer   Observer
}

// ClientOption configures the Client
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL (for testing)
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		parsed, err := url.Parse(baseURL)
		if err != nil {
			return
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return
		}
		if parsed.Host == "" {
			return
		}
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithLiveURL sets a custom websocket endpoint for Live sessions (for testing)
func WithLiveURL(liveURL string) ClientOption {
	return func(c *Client) {
		parsed, err := url.Parse(liveURL)
		if err != nil || parsed.Host == "" {
			return
		}
		if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
			return
		}
		c.liveURL = liveURL
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP client timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithDebug logs request and response bodies at debug level
func WithDebug(debug bool) ClientOption {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver registers a callback for request/response exchanges
func WithObserver(obs Observer) ClientOption {
	return func(c *Client) {
		c.observer = obs
	}
}

// NewClient creates a new Google Gemini API client
func NewClient(apiKey string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	c := &Client{
		apiKey:  apiKey,
		baseURL: BaseURL,
		liveURL: LiveURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// NewClientFromEnv creates a client using GEMINI_API_KEY, GOOGLE_API_KEY or API_KEY
func NewClientFromEnv(opts ...ClientOption) (*Client, error) {
	for _, name := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY", "API_KEY"} {
		if key := os.Getenv(name); key != "" {
			return NewClient(key, opts...)
		}
	}
	return nil, fmt.Errorf("GEMINI_API_KEY, GOOGLE_API_KEY or API_KEY environment variable not set")
}

// GenerateContent makes a generateContent call against model
func (c *Client) GenerateContent(ctx context.Context, model string, req *GenerateContentRequest) (*GenerateContentResponse, error) {
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if req == nil || len(req.Contents) == 0 {
		return nil, fmt.Errorf("at least one content is required")
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, url.PathEscape(model))
	op := OperationFrom(ctx)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	c.logger.Debug("gemini request",
		"op", op,
		"model", model,
		"endpoint", endpoint,
		"parts", countParts(req),
		"bytes", len(body))
	c.emit(Exchange{
		Phase:     PhaseRequest,
		Operation: op,
		Model:     model,
		Request:   describeRequest(endpoint, req, len(body)),
	})

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.fail(op, model, 0, start, err)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.fail(op, model, resp.StatusCode, start, err)
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if c.debug {
		preview := respBody
		if len(preview) > 2000 {
			preview = preview[:2000]
		}
		c.logger.Debug("gemini response body", "op", op, "status", resp.StatusCode, "body", string(preview))
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := parseAPIError(resp.StatusCode, respBody)
		c.fail(op, model, resp.StatusCode, start, apiErr)
		return nil, apiErr
	}

	var result GenerateContentResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		c.fail(op, model, resp.StatusCode, start, err)
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	info := &ResponseInfo{
		StatusCode:     resp.StatusCode,
		Latency:        time.Since(start),
		ContentPreview: truncate(result.Text(), previewLen),
	}
	if u := result.UsageMetadata; u != nil {
		info.TokensInput = u.PromptTokenCount
		info.TokensOutput = u.CandidatesTokenCount
		info.TokensTotal = u.TotalTokenCount
	}
	c.logger.Debug("gemini response",
		"op", op,
		"model", model,
		"status", resp.StatusCode,
		"latency", info.Latency,
		"tokens", info.TokensTotal)
	c.emit(Exchange{Phase: PhaseResponse, Operation: op, Model: model, Response: info})

	return &result, nil
}

func parseAPIError(status int, body []byte) *APIError {
	var apiErr struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Error.Message == "" {
		return &APIError{
			StatusCode: status,
			Message:    fmt.Sprintf("API error (status %d)", status),
			Details:    truncate(string(body), 500),
		}
	}
	return &APIError{
		StatusCode: status,
		Message:    apiErr.Error.Message,
		Details:    apiErr.Error.Status,
	}
}

func (c *Client) fail(op, model string, status int, start time.Time, err error) {
	c.logger.Warn("gemini request failed", "op", op, "model", model, "status", status, "err", err)
	c.emit(Exchange{
		Phase:     PhaseError,
		Operation: op,
		Model:     model,
		Response: &ResponseInfo{
			StatusCode:   status,
			Latency:      time.Since(start),
			ErrorMessage: err.Error(),
		},
	})
}

func (c *Client) emit(ex Exchange) {
	if c.observer == nil {
		return
	}
	if ex.Time.IsZero() {
		ex.Time = time.Now()
	}
	c.observer(ex)
}

func describeRequest(endpoint string, req *GenerateContentRequest, size int) *RequestInfo {
	info := &RequestInfo{
		Endpoint:      endpoint,
		Method:        http.MethodPost,
		TotalDataSize: int64(size),
	}
	for _, content := range req.Contents {
		for _, p := range content.Parts {
			if p == nil {
				continue
			}
			if p.InlineData != nil {
				info.ImageCount++
			}
			if p.Text != "" {
				info.PromptPreview = truncate(p.Text, previewLen)
			}
		}
	}
	for _, tool := range req.Tools {
		if tool.GoogleSearch != nil {
			info.Tools = append(info.Tools, "googleSearch")
		}
		if tool.GoogleMaps != nil {
			info.Tools = append(info.Tools, "googleMaps")
		}
	}
	return info
}

func countParts(req *GenerateContentRequest) int {
	n := 0
	for _, content := range req.Contents {
		n += len(content.Parts)
	}
	return n
}

// CleanJSON strips a surrounding markdown code fence from model output
func CleanJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimSuffix(text, "```")
		text = strings.TrimSpace(text)
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(text, "```")
		text = strings.TrimSpace(text)
	}
	return text
}

func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", "")

	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
