package authn

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/socialfeed/feedclient/auth"
)

// Path is the password grant endpoint relative to the API base URL.
const Path = "/accounts/api/token/"

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Authenticator starts and ends sessions against the token endpoint.
type Authenticator struct {
	endpoint string
	client   *http.Client
	store    auth.TokenStore
}

// Option configures an Authenticator.
type Option interface {
	apply(a *Authenticator)
}

type optionFunc func(a *Authenticator)

func (fn optionFunc) apply(a *Authenticator) {
	fn(a)
}

// WithHTTPClient sets the HTTP client used for login calls.
func WithHTTPClient(client *http.Client) Option {
	return optionFunc(func(a *Authenticator) {
		a.client = client
	})
}

// NewAuthenticator returns a new Authenticator persisting sessions in store.
func NewAuthenticator(baseURL string, store auth.TokenStore, opts ...Option) Authenticator {
	a := Authenticator{
		endpoint: strings.TrimRight(baseURL, "/") + Path,
		store:    store,
	}

	for _, opt := range opts {
		opt.apply(&a)
	}

	if a.client == nil {
		a.client = http.DefaultClient
	}

	return a
}

// Login exchanges a username and password for a token pair and stores it.
//
// It returns auth.ErrAuthenticationFailed if the credentials are rejected.
func (a Authenticator) Login(ctx context.Context, username string, password string) (auth.TokenPair, error) {
	if username == "" || password == "" {
		return auth.TokenPair{}, auth.ErrAuthenticationFailed
	}

	body, err := json.Marshal(credentials{Username: username, Password: password})
	if err != nil {
		return auth.TokenPair{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return auth.TokenPair{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return auth.TokenPair{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusBadRequest:
		return auth.TokenPair{}, auth.ErrAuthenticationFailed
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return auth.TokenPair{}, fmt.Errorf("login: unexpected status %d", resp.StatusCode)
	}

	var pair auth.TokenPair

	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
		return auth.TokenPair{}, fmt.Errorf("decoding login response: %w", err)
	}

	if pair.Access == "" || pair.Refresh == "" {
		return auth.TokenPair{}, fmt.Errorf("login response is missing tokens")
	}

	// A previous session may have left a refresh token behind; start clean.
	if err := auth.ClearTokens(ctx, a.store); err != nil {
		return auth.TokenPair{}, err
	}

	if err := auth.SaveTokens(ctx, a.store, pair); err != nil {
		return auth.TokenPair{}, err
	}

	return pair, nil
}

// Logout removes the stored session.
func (a Authenticator) Logout(ctx context.Context) error {
	return auth.ClearTokens(ctx, a.store)
}

// Authenticated reports whether an access token is stored.
//
// The token itself is not validated: an expired token still counts, it is
// renewed on its first rejected use.
func (a Authenticator) Authenticated(ctx context.Context) (bool, error) {
	token, err := a.store.AccessToken(ctx)
	if err != nil {
		return false, err
	}

	return token != "", nil
}
