package client_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socialfeed/feedclient/auth"
	"github.com/socialfeed/feedclient/auth/store"
	"github.com/socialfeed/feedclient/client"
	"github.com/socialfeed/feedclient/internal/apitest"
)

const echoPath = "/echo/"

type echoResponse struct {
	Username      string `json:"username"`
	Authorization string `json:"authorization"`
	Body          string `json:"body"`
}

// newServer starts a fake API with a protected endpoint echoing the request.
func newServer(t *testing.T) *apitest.Server {
	t.Helper()

	server := apitest.New(t)

	server.Router.Path(echoPath).Handler(server.Protected(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		apitest.WriteJSON(w, http.StatusOK, echoResponse{
			Username:      apitest.Username(r),
			Authorization: r.Header.Get("Authorization"),
			Body:          string(body),
		})
	}))

	return server
}

type sessionRecorder struct {
	mu      sync.Mutex
	reasons []error
}

func (r *sessionRecorder) SessionExpired(_ context.Context, reason error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reasons = append(r.reasons, reason)
}

func (r *sessionRecorder) Reasons() []error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]error(nil), r.reasons...)
}

func newClient(t *testing.T, server *apitest.Server, tokens auth.TokenStore, opts ...client.Option) (*client.Client, *sessionRecorder) {
	t.Helper()

	recorder := &sessionRecorder{}

	c, err := client.New(server.URL, tokens, append([]client.Option{client.WithSessionObserver(recorder)}, opts...)...)
	require.NoError(t, err)

	return c, recorder
}

func TestTransport_Authorization(t *testing.T) {
	ctx := context.Background()

	t.Run("OK", func(t *testing.T) {
		server := newServer(t)
		pair := server.IssueTokens("user")

		tokens := &store.InMemoryTokenStore{}
		require.NoError(t, auth.SaveTokens(ctx, tokens, pair))

		c, recorder := newClient(t, server, tokens)

		var response echoResponse
		err := c.Get(ctx, echoPath, nil, &response)
		require.NoError(t, err)

		assert.Equal(t, "Bearer "+pair.Access, response.Authorization)
		assert.Equal(t, "user", response.Username)
		assert.Equal(t, 0, server.Calls(apitest.RefreshPath))
		assert.Empty(t, recorder.Reasons())
	})

	t.Run("Anonymous", func(t *testing.T) {
		var header []string

		server := apitest.New(t)
		server.Router.Path("/public/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header = r.Header.Values("Authorization")

			apitest.WriteJSON(w, http.StatusOK, map[string]string{})
		})

		c, _ := newClient(t, server, &store.InMemoryTokenStore{})

		err := c.Get(ctx, "/public/", nil, nil)
		require.NoError(t, err)

		assert.Empty(t, header)
	})
}

func TestTransport_Refresh(t *testing.T) {
	ctx := context.Background()

	t.Run("OK", func(t *testing.T) {
		server := newServer(t)
		pair := server.IssueTokens("user")
		server.RevokeAccessTokens()

		tokens := &store.InMemoryTokenStore{}
		require.NoError(t, auth.SaveTokens(ctx, tokens, pair))

		c, recorder := newClient(t, server, tokens)

		var response echoResponse
		err := c.Post(ctx, echoPath, map[string]string{"content": "hello"}, &response)
		require.NoError(t, err)

		access, err := tokens.AccessToken(ctx)
		require.NoError(t, err)
		assert.NotEqual(t, pair.Access, access)
		assert.Equal(t, "Bearer "+access, response.Authorization)
		assert.JSONEq(t, `{"content":"hello"}`, response.Body, "the retried request must carry the original body")

		refresh, err := tokens.RefreshToken(ctx)
		require.NoError(t, err)
		assert.Equal(t, pair.Refresh, refresh, "the refresh token is kept when the server does not rotate it")

		assert.Equal(t, 1, server.Calls(apitest.RefreshPath))
		assert.Equal(t, 2, server.Calls(echoPath))
		assert.Empty(t, recorder.Reasons())
	})

	t.Run("Rotation", func(t *testing.T) {
		server := newServer(t)
		server.RotateRefreshTokens(true)
		pair := server.IssueTokens("user")
		server.RevokeAccessTokens()

		tokens := &store.InMemoryTokenStore{}
		require.NoError(t, auth.SaveTokens(ctx, tokens, pair))

		c, _ := newClient(t, server, tokens)

		err := c.Get(ctx, echoPath, nil, nil)
		require.NoError(t, err)

		refresh, err := tokens.RefreshToken(ctx)
		require.NoError(t, err)
		assert.NotEmpty(t, refresh)
		assert.NotEqual(t, pair.Refresh, refresh)
	})

	t.Run("RefreshFailed", func(t *testing.T) {
		server := newServer(t)
		pair := server.IssueTokens("user")
		server.RevokeAccessTokens()
		server.FailRefresh(http.StatusUnauthorized)

		tokens := &store.InMemoryTokenStore{}
		require.NoError(t, auth.SaveTokens(ctx, tokens, pair))

		c, recorder := newClient(t, server, tokens)

		err := c.Get(ctx, echoPath, nil, nil)
		require.Error(t, err)

		var refreshErr *auth.RefreshError
		require.ErrorAs(t, err, &refreshErr, "the caller receives the refresh error, not the original one")
		assert.Equal(t, http.StatusUnauthorized, refreshErr.StatusCode)
		assert.False(t, client.IsUnauthorized(err))

		access, _ := tokens.AccessToken(ctx)
		refresh, _ := tokens.RefreshToken(ctx)
		assert.Empty(t, access)
		assert.Empty(t, refresh)

		reasons := recorder.Reasons()
		require.Len(t, reasons, 1)
		assert.ErrorAs(t, reasons[0], &refreshErr)

		assert.Equal(t, 1, server.Calls(apitest.RefreshPath))
		assert.Equal(t, 1, server.Calls(echoPath))
	})

	t.Run("Canceled", func(t *testing.T) {
		server := newServer(t)
		pair := server.IssueTokens("user")
		server.RevokeAccessTokens()

		tokens := &store.InMemoryTokenStore{}
		require.NoError(t, auth.SaveTokens(ctx, tokens, pair))

		entered := make(chan struct{})
		release := make(chan struct{})
		done := make(chan struct{})

		refresher := auth.RefresherFunc(func(context.Context, string) (auth.TokenPair, error) {
			defer close(done)

			close(entered)
			<-release

			return auth.TokenPair{Access: "new", Refresh: "rotated"}, nil
		})

		c, recorder := newClient(t, server, tokens, client.WithRefresher(refresher), client.WithSingleFlightRefresh(true))

		requestCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		errs := make(chan error, 1)
		go func() {
			errs <- c.Get(requestCtx, echoPath, nil, nil)
		}()

		<-entered
		cancel()

		err := <-errs
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)

		close(release)
		<-done

		access, _ := tokens.AccessToken(ctx)
		refresh, _ := tokens.RefreshToken(ctx)
		assert.Equal(t, pair.Access, access, "an abandoned refresh does not end the session")
		assert.Equal(t, pair.Refresh, refresh)
		assert.Empty(t, recorder.Reasons())
	})

	t.Run("NoRefreshToken", func(t *testing.T) {
		server := newServer(t)
		pair := server.IssueTokens("user")
		server.RevokeAccessTokens()

		tokens := &store.InMemoryTokenStore{}
		require.NoError(t, tokens.SetAccessToken(ctx, pair.Access))

		c, recorder := newClient(t, server, tokens)

		err := c.Get(ctx, echoPath, nil, nil)
		require.Error(t, err)

		assert.True(t, client.IsUnauthorized(err), "the original unauthorized error is propagated")

		access, _ := tokens.AccessToken(ctx)
		assert.Empty(t, access)

		assert.Equal(t, []error{auth.ErrNoRefreshToken}, recorder.Reasons())
		assert.Equal(t, 0, server.Calls(apitest.RefreshPath))
	})

	t.Run("AlreadyRetried", func(t *testing.T) {
		server := newServer(t)
		pair := server.IssueTokens("user")
		server.RevokeAccessTokens()

		tokens := &store.InMemoryTokenStore{}
		require.NoError(t, auth.SaveTokens(ctx, tokens, pair))

		c, recorder := newClient(t, server, tokens)

		err := c.Get(client.MarkRetried(ctx), echoPath, nil, nil)
		require.Error(t, err)

		assert.True(t, client.IsUnauthorized(err))
		assert.Equal(t, 0, server.Calls(apitest.RefreshPath))
		assert.Empty(t, recorder.Reasons())

		access, _ := tokens.AccessToken(ctx)
		assert.Equal(t, pair.Access, access, "tokens are left alone")
	})

	t.Run("UnauthorizedAfterRefresh", func(t *testing.T) {
		server := apitest.New(t)
		server.Router.Path("/forbidden/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apitest.WriteJSON(w, http.StatusUnauthorized, map[string]string{"detail": "nope"})
		})
		pair := server.IssueTokens("user")

		tokens := &store.InMemoryTokenStore{}
		require.NoError(t, auth.SaveTokens(ctx, tokens, pair))

		c, _ := newClient(t, server, tokens)

		err := c.Get(ctx, "/forbidden/", nil, nil)
		require.Error(t, err)

		assert.True(t, client.IsUnauthorized(err))
		assert.Equal(t, 1, server.Calls(apitest.RefreshPath), "no second refresh for the retried request")
		assert.Equal(t, 2, server.Calls("/forbidden/"))
	})

	t.Run("OtherStatus", func(t *testing.T) {
		server := apitest.New(t)
		server.Router.Path("/missing/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apitest.WriteJSON(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		})

		c, _ := newClient(t, server, &store.InMemoryTokenStore{})

		err := c.Get(ctx, "/missing/", nil, nil)
		require.Error(t, err)

		var apiErr *client.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
		assert.Equal(t, "Not found.", apiErr.Detail())
		assert.Equal(t, 0, server.Calls(apitest.RefreshPath))
	})
}

func TestTransport_ConcurrentRefresh(t *testing.T) {
	ctx := context.Background()

	const requests = 5

	testCases := []struct {
		name         string
		singleFlight bool
		refreshCalls func(t *testing.T, calls int)
	}{
		{
			name:         "SingleFlight",
			singleFlight: true,
			refreshCalls: func(t *testing.T, calls int) {
				assert.Equal(t, 1, calls)
			},
		},
		{
			name:         "Independent",
			singleFlight: false,
			refreshCalls: func(t *testing.T, calls int) {
				assert.GreaterOrEqual(t, calls, 1)
				assert.LessOrEqual(t, calls, requests)
			},
		},
	}

	for _, testCase := range testCases {
		testCase := testCase

		t.Run(testCase.name, func(t *testing.T) {
			server := newServer(t)
			pair := server.IssueTokens("user")
			server.RevokeAccessTokens()

			tokens := &store.InMemoryTokenStore{}
			require.NoError(t, auth.SaveTokens(ctx, tokens, pair))

			c, recorder := newClient(t, server, tokens, client.WithSingleFlightRefresh(testCase.singleFlight))

			release := server.HoldRefresh()

			var wg sync.WaitGroup
			errs := make(chan error, requests)

			for i := 0; i < requests; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()

					errs <- c.Get(ctx, echoPath, nil, nil)
				}()
			}

			require.Eventually(t, func() bool {
				return server.Calls(echoPath) == requests
			}, time.Second, time.Millisecond)

			// Give every request time to reach the refresher.
			time.Sleep(50 * time.Millisecond)
			release()

			wg.Wait()
			close(errs)

			for err := range errs {
				assert.NoError(t, err)
			}

			testCase.refreshCalls(t, server.Calls(apitest.RefreshPath))
			assert.Empty(t, recorder.Reasons())
		})
	}
}

func TestTransport_StoreError(t *testing.T) {
	server := newServer(t)

	storeErr := errors.New("store unavailable")

	c, err := client.New(server.URL, &failingStore{err: storeErr})
	require.NoError(t, err)

	err = c.Get(context.Background(), echoPath, nil, nil)
	require.Error(t, err)

	assert.ErrorIs(t, err, storeErr)
	assert.Equal(t, 0, server.Calls(echoPath))
}

type failingStore struct {
	store.InMemoryTokenStore

	err error
}

func (s *failingStore) AccessToken(context.Context) (string, error) {
	return "", s.err
}
