package refresh

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/socialfeed/feedclient/auth"
)

// Path is the token refresh endpoint relative to the API base URL.
const Path = "/accounts/api/token/refresh/"

// maxErrorBody caps how much of a rejected refresh response is kept in the error.
const maxErrorBody = 4 << 10

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

// HTTPRefresher exchanges refresh tokens at the token refresh endpoint.
//
// It talks to the endpoint with a plain HTTP client: refresh requests never
// carry a bearer token and are never retried.
type HTTPRefresher struct {
	endpoint string
	client   *http.Client
}

// Option configures an HTTPRefresher.
type Option interface {
	apply(r *HTTPRefresher)
}

type optionFunc func(r *HTTPRefresher)

func (fn optionFunc) apply(r *HTTPRefresher) {
	fn(r)
}

// WithHTTPClient sets the HTTP client used for refresh calls.
func WithHTTPClient(client *http.Client) Option {
	return optionFunc(func(r *HTTPRefresher) {
		r.client = client
	})
}

// NewHTTPRefresher returns a new HTTPRefresher for the API at baseURL.
func NewHTTPRefresher(baseURL string, opts ...Option) HTTPRefresher {
	r := HTTPRefresher{
		endpoint: strings.TrimRight(baseURL, "/") + Path,
	}

	for _, opt := range opts {
		opt.apply(&r)
	}

	if r.client == nil {
		r.client = http.DefaultClient
	}

	return r
}

// Refresh implements auth.Refresher.
func (r HTTPRefresher) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	if refreshToken == "" {
		return auth.TokenPair{}, auth.ErrNoRefreshToken
	}

	body, err := json.Marshal(refreshRequest{Refresh: refreshToken})
	if err != nil {
		return auth.TokenPair{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return auth.TokenPair{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return auth.TokenPair{}, &auth.RefreshError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		text := strings.TrimSpace(string(message))
		if text == "" {
			text = http.StatusText(resp.StatusCode)
		}

		return auth.TokenPair{}, &auth.RefreshError{
			StatusCode: resp.StatusCode,
			Err:        errors.New(text),
		}
	}

	var pair auth.TokenPair

	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
		return auth.TokenPair{}, &auth.RefreshError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("decoding refresh response: %w", err),
		}
	}

	if pair.Access == "" {
		return auth.TokenPair{}, &auth.RefreshError{
			StatusCode: resp.StatusCode,
			Err:        errors.New("refresh response carries no access token"),
		}
	}

	return pair, nil
}
