package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/monorkin/home-network-monitor/internal/version"
)

const (
	USER_AGENT_PREFIX = "home-network-monitor/"
	REQUEST_ID_HEADER = "X-Request-ID"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *responseCache
	logger     *slog.Logger
	now        func() time.Time
}

type ClientOption func(*Client)

// WithLogger enables request logging.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(client *Client) {
		client.logger = logger
	}
}

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = httpClient
	}
}

func WithCacheTTL(ttl time.Duration) ClientOption {
	return func(client *Client) {
		if ttl > 0 {
			client.cache.ttl = ttl
		}
	}
}

// WithClock replaces time.Now for cache bookkeeping.
func WithClock(now func() time.Time) ClientOption {
	return func(client *Client) {
		client.now = now
	}
}

// RequestOptions mirrors the options of a single request. Body is JSON encoded.
type RequestOptions struct {
	Method   string
	Body     any
	UseCache bool
}

func (options RequestOptions) method() string {
	if options.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(options.Method)
}

func (options RequestOptions) cacheable() bool {
	return options.UseCache && options.method() == http.MethodGet
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	client := &Client{
		baseURL:    SanitizeBaseURL(baseURL),
		httpClient: &http.Client{},
		cache:      newResponseCache(DefaultCacheTTL),
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

func (client *Client) BaseURL() string {
	return client.baseURL
}

func (client *Client) log(level slog.Level, msg string, args ...any) {
	if client.logger != nil {
		client.logger.Log(context.Background(), level, msg, args...)
	}
}

// Request performs a JSON request against the appliance and returns the raw body.
// Cached GET responses younger than the cache TTL are returned without a request.
// Two concurrent callers missing the cache both fetch.
func (client *Client) Request(ctx context.Context, endpoint string, options RequestOptions) (json.RawMessage, error) {
	key := cacheKey(endpoint, options)

	if options.cacheable() {
		if data, ok := client.cache.get(key, client.now()); ok {
			client.log(slog.LevelDebug, "Cache hit", "endpoint", endpoint)
			return data, nil
		}
	}

	data, err := client.fetch(ctx, endpoint, options)
	if err != nil {
		client.log(slog.LevelError, "API request failed", "endpoint", endpoint, "error", err)
		return nil, err
	}

	if options.cacheable() {
		client.cache.set(key, data, client.now())
	}

	return data, nil
}

// Invalidate drops every cached response whose endpoint starts with endpointPrefix.
func (client *Client) Invalidate(endpointPrefix string) {
	removed := client.cache.invalidate(endpointPrefix)
	client.log(slog.LevelDebug, "Cache invalidated", "prefix", endpointPrefix, "entries", removed)
}

func (client *Client) fetch(ctx context.Context, endpoint string, options RequestOptions) (json.RawMessage, error) {
	var body io.Reader
	if options.Body != nil {
		encoded, err := json.Marshal(options.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, options.method(), client.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.New().String()
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")
	request.Header.Set("User-Agent", USER_AGENT_PREFIX+version.GetVersion())
	request.Header.Set(REQUEST_ID_HEADER, requestID)

	client.log(slog.LevelDebug, "API request", "method", request.Method, "endpoint", endpoint, "request_id", requestID)

	response, err := client.httpClient.Do(request)
	if err != nil {
		return nil, &TransportError{Endpoint: endpoint, Err: err}
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, &TransportError{
			Endpoint:   endpoint,
			StatusCode: response.StatusCode,
			Status:     reasonPhrase(response),
		}
	}

	data, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, &TransportError{Endpoint: endpoint, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if !json.Valid(data) {
		return nil, &TransportError{Endpoint: endpoint, Err: fmt.Errorf("response is not valid JSON")}
	}

	return json.RawMessage(data), nil
}

// call performs a request and unwraps the appliance's success envelope into out.
func (client *Client) call(ctx context.Context, endpoint string, options RequestOptions, out any) error {
	data, err := client.Request(ctx, endpoint, options)
	if err != nil {
		return err
	}

	env, err := decodeEnvelope(data)
	if err != nil {
		return &TransportError{Endpoint: endpoint, Err: err}
	}

	if !env.ok() {
		return newApplicationError(endpoint, env.Message, env.Error)
	}

	if out == nil {
		return nil
	}

	if err := env.decode(out); err != nil {
		return &TransportError{Endpoint: endpoint, Err: fmt.Errorf("failed to unmarshal response: %w", err)}
	}

	return nil
}

// reasonPhrase is the status line's text without the code, or the standard text
// when the server sent none.
func reasonPhrase(response *http.Response) string {
	reason := strings.TrimSpace(strings.TrimPrefix(response.Status, strconv.Itoa(response.StatusCode)))
	if reason == "" {
		return http.StatusText(response.StatusCode)
	}
	return reason
}

func SanitizeBaseURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	return strings.TrimRight(trimmed, "/")
}
