// Package http provides the shared outbound HTTP client used by capability
// handlers and the webhook lifecycle manager. It layers retries with backoff
// and circuit breaking on top of net/http and normalizes responses to JSON.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"workflow-engine/internal/circuitbreaker"
	"workflow-engine/internal/common/errors"
)

// ClientConfig holds HTTP client configuration
type ClientConfig struct {
	Timeout             time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	Transport           http.RoundTripper
}

// DefaultClientConfig returns default HTTP client configuration
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:             10 * time.Second,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
}

// ClientOption is a function that modifies ClientConfig
type ClientOption func(*ClientConfig)

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.Timeout = timeout
	}
}

// WithTransport sets a custom transport
func WithTransport(transport http.RoundTripper) ClientOption {
	return func(c *ClientConfig) {
		c.Transport = transport
	}
}

// NewHTTPClient creates a new HTTP client with the given options
func NewHTTPClient(opts ...ClientOption) *http.Client {
	cfg := DefaultClientConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	transport := cfg.Transport
	if transport == nil {
		transport = &http.Transport{
			MaxIdleConns:        cfg.MaxIdleConns,
			MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
			IdleConnTimeout:     cfg.IdleConnTimeout,
		}
	}

	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
	}
}

// RetryConfig for HTTP client retry logic
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterFactor  float64
}

// DefaultRetryConfig returns sensible defaults for HTTP retries
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2.0,
		JitterFactor:  0.1,
	}
}

// RequestOptions describes a single outbound request
type RequestOptions struct {
	Method      string
	URL         string
	Body        io.Reader
	Headers     map[string]string
	BearerToken string
}

// Response represents an HTTP response with parsed body
type Response struct {
	StatusCode int
	Body       interface{} // parsed JSON, or string when the body is not JSON
	RawBody    []byte
	Duration   time.Duration
}

// IsSuccess reports whether the status code is 2xx
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// BodyMap returns the body as a map when the response was a JSON object
func (r *Response) BodyMap() (map[string]interface{}, bool) {
	m, ok := r.Body.(map[string]interface{})
	return m, ok
}

// Client wraps http.Client with retries and circuit breaking
type Client struct {
	client         *http.Client
	retryConfig    *RetryConfig
	circuitBreaker *circuitbreaker.GoBreakerAdapter
}

// NewClient creates a wrapped HTTP client
func NewClient(opts ...ClientOption) *Client {
	return &Client{
		client:      NewHTTPClient(opts...),
		retryConfig: DefaultRetryConfig(),
	}
}

// WithCircuitBreaker adds circuit breaker protection for all requests
func (c *Client) WithCircuitBreaker(cb *circuitbreaker.GoBreakerAdapter) *Client {
	c.circuitBreaker = cb
	return c
}

// WithRetryConfig sets custom retry configuration
func (c *Client) WithRetryConfig(config *RetryConfig) *Client {
	c.retryConfig = config
	return c
}

// Get performs a GET request
func (c *Client) Get(ctx context.Context, url string, token string, headers map[string]string) (*Response, error) {
	return c.Request(ctx, &RequestOptions{Method: http.MethodGet, URL: url, BearerToken: token, Headers: headers})
}

// PostJSON performs a POST request with a JSON body
func (c *Client) PostJSON(ctx context.Context, url string, payload interface{}, token string, headers map[string]string) (*Response, error) {
	body, err := encodeJSON(payload)
	if err != nil {
		return nil, err
	}
	return c.Request(ctx, &RequestOptions{Method: http.MethodPost, URL: url, Body: body, BearerToken: token, Headers: withJSONContentType(headers)})
}

// PutJSON performs a PUT request with a JSON body
func (c *Client) PutJSON(ctx context.Context, url string, payload interface{}, token string, headers map[string]string) (*Response, error) {
	body, err := encodeJSON(payload)
	if err != nil {
		return nil, err
	}
	return c.Request(ctx, &RequestOptions{Method: http.MethodPut, URL: url, Body: body, BearerToken: token, Headers: withJSONContentType(headers)})
}

// PostForm performs a POST request with a form-encoded body
func (c *Client) PostForm(ctx context.Context, requestURL string, values url.Values, headers map[string]string) (*Response, error) {
	if headers == nil {
		headers = make(map[string]string)
	}
	headers["Content-Type"] = "application/x-www-form-urlencoded"
	return c.Request(ctx, &RequestOptions{
		Method:  http.MethodPost,
		URL:     requestURL,
		Body:    strings.NewReader(values.Encode()),
		Headers: headers,
	})
}

// Delete performs a DELETE request
func (c *Client) Delete(ctx context.Context, url string, token string, headers map[string]string) (*Response, error) {
	return c.Request(ctx, &RequestOptions{Method: http.MethodDelete, URL: url, BearerToken: token, Headers: headers})
}

// Request performs an HTTP request with retries and circuit breaking
func (c *Client) Request(ctx context.Context, opts *RequestOptions) (*Response, error) {
	bodyBytes, err := readRequestBody(opts.Body)
	if err != nil {
		return nil, errors.InternalError("failed to read request body", err)
	}

	var response *Response
	attempt := func() error {
		var reqErr error
		response, reqErr = c.executeRequest(ctx, opts, bodyBytes)
		return reqErr
	}

	retry := c.retryConfig
	delay := retry.InitialDelay
	var lastErr error
	for i := 0; i < retry.MaxAttempts; i++ {
		lastErr = attempt()
		if lastErr == nil || !isRetryable(lastErr) {
			return response, lastErr
		}

		if i == retry.MaxAttempts-1 {
			break
		}

		jitter := time.Duration(rand.Float64() * retry.JitterFactor * float64(delay))
		select {
		case <-ctx.Done():
			return nil, errors.TimeoutError(fmt.Sprintf("%s %s", opts.Method, opts.URL))
		case <-time.After(delay + jitter):
		}

		delay = time.Duration(float64(delay) * retry.BackoffFactor)
		if delay > retry.MaxDelay {
			delay = retry.MaxDelay
		}
	}

	return response, lastErr
}

func (c *Client) executeRequest(ctx context.Context, opts *RequestOptions, bodyBytes []byte) (*Response, error) {
	start := time.Now()

	var bodyReader io.Reader
	if bodyBytes != nil {
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, opts.Method, opts.URL, bodyReader)
	if err != nil {
		return nil, errors.InternalError("failed to create request", err)
	}

	for key, value := range opts.Headers {
		req.Header.Set(key, value)
	}
	if opts.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+opts.BearerToken)
	}

	var resp *http.Response
	doRequest := func() error {
		var httpErr error
		resp, httpErr = c.client.Do(req)
		return httpErr
	}

	if c.circuitBreaker != nil {
		err = c.circuitBreaker.Execute(ctx, doRequest)
	} else {
		err = doRequest()
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.TimeoutError(fmt.Sprintf("%s %s", opts.Method, opts.URL))
		}
		return nil, errors.ConnectionError("request failed", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.InternalError("failed to read response body", err)
	}

	response := &Response{
		StatusCode: resp.StatusCode,
		Body:       parseResponseBody(responseBody),
		RawBody:    responseBody,
		Duration:   time.Since(start),
	}

	if response.IsSuccess() {
		return response, nil
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return response, errors.ConnectionError(fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(responseBody)), nil)
	}

	return response, errors.ValidationError(fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(responseBody)))
}

func parseResponseBody(body []byte) interface{} {
	if len(body) == 0 {
		return ""
	}

	var jsonResponse interface{}
	if err := json.Unmarshal(body, &jsonResponse); err == nil {
		return jsonResponse
	}
	return string(body)
}

func readRequestBody(body io.Reader) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	return io.ReadAll(body)
}

func encodeJSON(payload interface{}) (io.Reader, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.InternalError("failed to encode request body", err)
	}
	return bytes.NewReader(data), nil
}

func withJSONContentType(headers map[string]string) map[string]string {
	out := map[string]string{"Content-Type": "application/json"}
	for k, v := range headers {
		out[k] = v
	}
	return out
}

// Connection and server-side errors are worth retrying; validation errors
// (4xx) are not.
func isRetryable(err error) bool {
	return errors.IsType(err, errors.ErrTypeConnection)
}
