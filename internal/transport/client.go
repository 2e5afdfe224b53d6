package transport

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

//go:generate mockgen -destination=mocks/mock_exchanger.go -package=mocks -source=client.go Exchanger

const (
	// DefaultTimeout is the default timeout for a single exchange
	DefaultTimeout = 60 * time.Second

	// MaxResponseSize is the default maximum response size (512MB)
	MaxResponseSize = 512 * 1024 * 1024

	// UserAgent is the user agent string for sync requests
	UserAgent = "colsync/1.0"

	// HeaderSessionKey carries the session key obtained at login
	HeaderSessionKey = "X-Colsync-Key"

	// HeaderSyncSession identifies one client process to the remote
	HeaderSyncSession = "X-Colsync-Session"
)

// Request is the payload of one exchange
type Request struct {
	Payload     []byte
	SessionKey  string
	ContentType string
}

// Response is the remote's answer to one exchange
type Response struct {
	StatusCode int
	Status     string
	URL        string
	Body       []byte
}

// OK reports whether the remote accepted the request
func (r *Response) OK() bool {
	return r.StatusCode == http.StatusOK
}

// Exchanger performs a single request/response exchange with the remote
type Exchanger interface {
	// Exchange sends req to the endpoint. Transport failures are returned as *Error,
	// an unusable custom endpoint as *URLError. Non-success statuses are not errors.
	Exchange(ctx context.Context, ep Endpoint, req Request) (*Response, error)
}

// HTTPClient is the HTTP implementation of Exchanger
type HTTPClient struct {
	client          *http.Client
	router          *Router
	maxResponseSize int64
	session         string
}

// ClientOption configures an HTTPClient
type ClientOption func(*HTTPClient)

// WithHTTPClient replaces the underlying *http.Client
func WithHTTPClient(c *http.Client) ClientOption {
	return func(h *HTTPClient) {
		h.client = c
	}
}

// WithTimeout sets the per-exchange timeout. Zero keeps DefaultTimeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(h *HTTPClient) {
		if timeout > 0 {
			h.client.Timeout = timeout
		}
	}
}

// WithMaxResponseSize limits how many bytes a response may carry
func WithMaxResponseSize(size int64) ClientOption {
	return func(h *HTTPClient) {
		if size > 0 {
			h.maxResponseSize = size
		}
	}
}

// NewHTTPClient creates an exchanger sending requests to the endpoints resolved by router
func NewHTTPClient(router *Router, opts ...ClientOption) *HTTPClient {
	h := &HTTPClient{
		client:          &http.Client{Timeout: DefaultTimeout},
		router:          router,
		maxResponseSize: MaxResponseSize,
		session:         uuid.NewString(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Exchange performs one POST request against the endpoint
func (c *HTTPClient) Exchange(ctx context.Context, ep Endpoint, req Request) (*Response, error) {
	target, err := c.router.Resolve(ep)
	if err != nil {
		return nil, err
	}

	body, err := compress(req.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to compress request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	httpReq.Header.Set("User-Agent", UserAgent)
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Content-Encoding", "gzip")
	httpReq.Header.Set(HeaderSyncSession, c.session)
	if req.SessionKey != "" {
		httpReq.Header.Set(HeaderSessionKey, req.SessionKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, Classify(ep.Method, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.ContentLength > c.maxResponseSize {
		return nil, fmt.Errorf("%s: %w: %d bytes", ep.Method, ErrResponseTooLarge, resp.ContentLength)
	}

	limitedReader := io.LimitReader(resp.Body, c.maxResponseSize+1)
	data, err := io.ReadAll(limitedReader)
	if err != nil {
		return nil, Classify(ep.Method, err)
	}
	if int64(len(data)) > c.maxResponseSize {
		return nil, fmt.Errorf("%s: %w", ep.Method, ErrResponseTooLarge)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		URL:        target,
		Body:       data,
	}, nil
}

func compress(payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(payload); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
