package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/socialfeed/feedclient/auth"
	"github.com/socialfeed/feedclient/auth/refresh"
)

// DefaultBaseURL is the API location used by the development setup.
const DefaultBaseURL = "http://localhost:8000"

// maxErrorBody caps how much of an error response is kept in an APIError.
const maxErrorBody = 64 << 10

// Client sends JSON requests to the feed API through an authenticating Transport.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	store      auth.TokenStore
	logger     *zap.Logger
}

type options struct {
	base      http.RoundTripper
	timeout   time.Duration
	refresher auth.Refresher
	observer  auth.SessionObserver
	logger    *zap.Logger

	singleFlight bool
}

// Option configures a Client.
type Option interface {
	apply(o *options)
}

type optionFunc func(o *options)

func (fn optionFunc) apply(o *options) {
	fn(o)
}

// WithLogger sets the logger of the client and its transport.
func WithLogger(logger *zap.Logger) Option {
	return optionFunc(func(o *options) {
		o.logger = logger
	})
}

// WithBaseTransport sets the transport requests are eventually sent with.
func WithBaseTransport(base http.RoundTripper) Option {
	return optionFunc(func(o *options) {
		o.base = base
	})
}

// WithTimeout sets the timeout of every request (including the refresh call).
func WithTimeout(timeout time.Duration) Option {
	return optionFunc(func(o *options) {
		o.timeout = timeout
	})
}

// WithRefresher replaces the default refresher calling the API's refresh endpoint.
func WithRefresher(refresher auth.Refresher) Option {
	return optionFunc(func(o *options) {
		o.refresher = refresher
	})
}

// WithSessionObserver sets the observer notified when the session expires.
func WithSessionObserver(observer auth.SessionObserver) Option {
	return optionFunc(func(o *options) {
		o.observer = observer
	})
}

// WithSingleFlightRefresh makes concurrent unauthorized requests share a single refresh call.
func WithSingleFlightRefresh(enabled bool) Option {
	return optionFunc(func(o *options) {
		o.singleFlight = enabled
	})
}

// New returns a new Client for the API at baseURL (DefaultBaseURL if empty).
func New(baseURL string, store auth.TokenStore, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}

	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base URL must be absolute: %q", baseURL)
	}

	var o options
	for _, opt := range opts {
		opt.apply(&o)
	}

	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	if o.refresher == nil {
		o.refresher = refresh.NewHTTPRefresher(u.String(), refresh.WithHTTPClient(&http.Client{
			Transport: o.base,
			Timeout:   o.timeout,
		}))
	}

	if o.singleFlight {
		o.refresher = refresh.NewSingleFlight(o.refresher)
	}

	transport := Transport{
		Base:      o.base,
		Store:     store,
		Refresher: o.refresher,
		Observer:  o.observer,
		Logger:    o.logger,
	}

	return &Client{
		baseURL: u,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   o.timeout,
		},
		store:  store,
		logger: o.logger,
	}, nil
}

// BaseURL returns the API location.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Store returns the token store of the session.
func (c *Client) Store() auth.TokenStore {
	return c.store
}

// Get sends a GET request and decodes the response into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, http.MethodGet, path, query, nil, out)
}

// Post sends body as JSON and decodes the response into out.
func (c *Client) Post(ctx context.Context, path string, body any, out any) error {
	return c.Do(ctx, http.MethodPost, path, nil, body, out)
}

// Delete sends a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil, out)
}

// Do sends a request to path (relative to the base URL) with body encoded as JSON
// and decodes a successful response into out.
//
// Body and out may be nil. Responses outside of the 2xx range are returned as *APIError.
func (c *Client) Do(ctx context.Context, method string, path string, query url.Values, body any, out any) error {
	var reader io.Reader

	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}

		reader = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, query, reader)
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	return c.send(req, out)
}

// PostMultipart uploads content as a single multipart form file field.
func (c *Client) PostMultipart(ctx context.Context, path string, field string, filename string, content io.Reader, out any) error {
	var buf bytes.Buffer

	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		return err
	}

	if _, err := io.Copy(part, content); err != nil {
		return fmt.Errorf("reading upload: %w", err)
	}

	if err := writer.Close(); err != nil {
		return err
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, nil, bytes.NewReader(buf.Bytes()))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", writer.FormDataContentType())

	return c.send(req, out)
}

func (c *Client) newRequest(ctx context.Context, method string, path string, query url.Values, body io.Reader) (*http.Request, error) {
	u := c.baseURL.JoinPath(path)

	// JoinPath cleans away trailing slashes the API relies on.
	if strings.HasSuffix(path, "/") && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")

	return req, nil
}

func (c *Client) send(req *http.Request, out any) error {
	logger := c.logger.With(zap.String("method", req.Method), zap.String("path", req.URL.Path))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error("API error", zap.Error(err))

		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		logger.Error("API error", zap.Int("status", resp.StatusCode), zap.ByteString("body", body))

		return &APIError{
			Method:     req.Method,
			Path:       req.URL.Path,
			StatusCode: resp.StatusCode,
			Body:       body,
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response of %s %s: %w", req.Method, req.URL.Path, err)
	}

	return nil
}
