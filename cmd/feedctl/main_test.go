package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socialfeed/feedclient/feed"
	"github.com/socialfeed/feedclient/internal/apitest"
)

type result struct {
	code   int
	stdout string
	stderr string
}

type harness struct {
	t      *testing.T
	server *apitest.Server
	config string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	server := apitest.New(t)
	server.AddUser("alice", "secret")

	dir := t.TempDir()
	config := filepath.Join(dir, "feedctl.yaml")

	content := "baseURL: " + server.URL + "\n" +
		"tokenStore:\n" +
		"  type: file\n" +
		"  config:\n" +
		"    path: " + filepath.Join(dir, "tokens.json") + "\n"

	require.NoError(t, os.WriteFile(config, []byte(content), 0o600))

	return &harness{
		t:      t,
		server: server,
		config: config,
	}
}

func (h *harness) run(stdin string, args ...string) result {
	h.t.Helper()

	var stdout, stderr bytes.Buffer

	code := run(context.Background(), append([]string{"--config", h.config}, args...), strings.NewReader(stdin), &stdout, &stderr)

	return result{
		code:   code,
		stdout: stdout.String(),
		stderr: stderr.String(),
	}
}

func TestSession(t *testing.T) {
	h := newHarness(t)

	r := h.run("", "status")
	require.Equal(t, 0, r.code, r.stderr)
	assert.Equal(t, "Not logged in\n", r.stdout)

	r = h.run("secret\n", "login", "alice")
	require.Equal(t, 0, r.code, r.stderr)
	assert.Equal(t, "Logged in as alice\n", r.stdout)

	r = h.run("", "status")
	require.Equal(t, 0, r.code, r.stderr)
	assert.Contains(t, r.stdout, "Logged in as: alice\n")
	assert.Contains(t, r.stdout, "Access token expires in: ")
	assert.Contains(t, r.stdout, "Refresh token stored: true\n")

	r = h.run("", "whoami")
	require.Equal(t, 0, r.code, r.stderr)
	assert.Equal(t, "Username: alice\nEmail: alice@example.com\n", r.stdout)

	r = h.run("", "logout")
	require.Equal(t, 0, r.code, r.stderr)

	r = h.run("", "whoami")
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.stderr, "not logged in, run feedctl login")
}

func TestLogin_Error(t *testing.T) {
	h := newHarness(t)

	r := h.run("", "login", "alice", "--password", "wrong")

	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.stderr, "login failed: invalid username or password")
}

func TestSessionExpired(t *testing.T) {
	h := newHarness(t)

	r := h.run("", "login", "alice", "--password", "secret")
	require.Equal(t, 0, r.code, r.stderr)

	h.server.RevokeAccessTokens()
	h.server.FailRefresh(http.StatusUnauthorized)

	r = h.run("", "whoami")

	assert.Equal(t, 1, r.code)
	assert.Equal(t, "session expired, run feedctl login\n", r.stderr)

	r = h.run("", "status")
	require.Equal(t, 0, r.code, r.stderr)
	assert.Equal(t, "Not logged in\n", r.stdout, "the session is cleared")
}

func TestSessionRenewed(t *testing.T) {
	h := newHarness(t)

	r := h.run("", "login", "alice", "--password", "secret")
	require.Equal(t, 0, r.code, r.stderr)

	h.server.RevokeAccessTokens()

	r = h.run("", "whoami")
	require.Equal(t, 0, r.code, r.stderr)

	assert.Contains(t, r.stdout, "Username: alice")
	assert.Equal(t, 1, h.server.Calls(apitest.RefreshPath))
}

func TestRoute(t *testing.T) {
	h := newHarness(t)

	testCases := []struct {
		path     string
		expected string
	}{
		{"/login", "/login: allowed (login)\n"},
		{"/create", "/create: redirect to /login\n"},
		{"/nowhere", "/nowhere: redirect to /login\n"},
	}

	for _, testCase := range testCases {
		testCase := testCase

		t.Run(testCase.path, func(t *testing.T) {
			r := h.run("", "route", testCase.path)
			require.Equal(t, 0, r.code, r.stderr)

			assert.Equal(t, testCase.expected, r.stdout)
		})
	}
}

func TestPostsList(t *testing.T) {
	h := newHarness(t)

	var page string

	h.server.Router.Path("/posts/").Methods(http.MethodGet).Handler(h.server.Protected(func(w http.ResponseWriter, r *http.Request) {
		page = r.URL.Query().Get("page")
		next := "http://testserver/posts/?page=3"

		apitest.WriteJSON(w, http.StatusOK, feed.PostListResponse{
			Count: 7,
			Next:  &next,
			Results: []feed.Post{
				{ID: 3, Title: "hello", AuthorUsername: "bob", CategoryName: "general", LikeCount: 2, IsLiked: true},
			},
		})
	}))

	r := h.run("", "login", "alice", "--password", "secret")
	require.Equal(t, 0, r.code, r.stderr)

	r = h.run("", "posts", "list", "--page", "2")
	require.Equal(t, 0, r.code, r.stderr)

	assert.Equal(t, "2", page)

	lines := strings.Split(strings.TrimSpace(r.stdout), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, []string{"ID", "TITLE", "AUTHOR", "CATEGORY", "LIKES", "CREATED"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"3", "hello", "bob", "general", "2", "*"}, strings.Fields(lines[1]))
	assert.Equal(t, "7 posts in total, next page: --page 3", lines[3])
}

func TestRender(t *testing.T) {
	h := newHarness(t)

	r := h.run("see [IMAGE: /media/cat.png]", "posts", "render", "-")
	require.Equal(t, 0, r.code, r.stderr)

	assert.Equal(t, `see <img src="/media/cat.png" alt="post image" class="content-image" />`+"\n", r.stdout)
}

func TestInvalidID(t *testing.T) {
	h := newHarness(t)

	r := h.run("", "login", "alice", "--password", "secret")
	require.Equal(t, 0, r.code, r.stderr)

	r = h.run("", "like", "abc")

	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.stderr, "invalid id: abc")
}

func TestPostsCreate(t *testing.T) {
	h := newHarness(t)

	var got map[string]any

	h.server.Router.Path("/posts/create/").Methods(http.MethodPost).Handler(h.server.Protected(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)

		apitest.WriteJSON(w, http.StatusCreated, feed.CreatePostResponse{Message: "created", PostID: 12, Author: apitest.Username(r)})
	}))

	r := h.run("", "login", "alice", "--password", "secret")
	require.Equal(t, 0, r.code, r.stderr)

	r = h.run("", "posts", "create", "--title", "t", "--body", "b", "--category", "2", "--nsfw", "--profane")
	require.Equal(t, 0, r.code, r.stderr)

	assert.Equal(t, "Created post 12\n", r.stdout)
	assert.Equal(t, map[string]any{
		"title":      "t",
		"body":       "b",
		"category":   "2",
		"is_nsfw":    true,
		"is_profane": true,
	}, got)
}
