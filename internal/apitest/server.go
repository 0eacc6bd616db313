// Package apitest provides an in-process fake of the feed API authentication endpoints for tests.
package apitest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/docker/libtrust"
	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/exp/maps"

	"github.com/socialfeed/feedclient/auth"
)

// Endpoint paths served by Server.
const (
	TokenPath        = "/accounts/api/token/"
	RefreshPath      = "/accounts/api/token/refresh/"
	SignupPath       = "/accounts/api/signup/"
	UserPath         = "/accounts/api/user/"
	ProfileImagePath = "/accounts/api/user/image/"
)

// Server is a fake feed API.
//
// It issues ES256 access tokens and opaque refresh tokens, and serves the
// account endpoints. Tests register additional resources on Router and wrap
// them with Protected to require a valid access token.
type Server struct {
	*httptest.Server

	Router *mux.Router

	signingKey libtrust.PrivateKey

	mu            sync.Mutex
	users         map[string]string
	accessTokens  map[string]string
	refreshTokens map[string]string
	calls         map[string]int
	refreshStatus int
	rotate        bool
	refreshGate   chan struct{}
}

// New starts a Server that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()

	signingKey, err := libtrust.GenerateECP256PrivateKey()
	if err != nil {
		t.Fatalf("generating signing key: %v", err)
	}

	s := &Server{
		Router:        mux.NewRouter(),
		signingKey:    signingKey,
		users:         make(map[string]string),
		accessTokens:  make(map[string]string),
		refreshTokens: make(map[string]string),
		calls:         make(map[string]int),
	}

	s.Router.Use(s.count)
	s.Router.Path(TokenPath).Methods(http.MethodPost).HandlerFunc(s.login)
	s.Router.Path(RefreshPath).Methods(http.MethodPost).HandlerFunc(s.refresh)
	s.Router.Path(SignupPath).Methods(http.MethodPost).HandlerFunc(s.signup)
	s.Router.Path(UserPath).Methods(http.MethodGet).Handler(s.Protected(s.user))
	s.Router.Path(ProfileImagePath).Methods(http.MethodPost).Handler(s.Protected(s.profileImage))

	s.Server = httptest.NewServer(s.Router)
	t.Cleanup(s.Close)

	return s
}

type userKey struct{}

// Username returns the user authenticated by Protected.
func Username(r *http.Request) string {
	username, _ := r.Context().Value(userKey{}).(string)

	return username
}

// Protected rejects requests without a valid bearer token the same way the real API does.
func (s *Server) Protected(handler http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			WriteJSON(w, http.StatusUnauthorized, map[string]string{
				"detail": "Authentication credentials were not provided.",
			})

			return
		}

		username, ok := s.verifyAccessToken(token)
		if !ok {
			WriteJSON(w, http.StatusUnauthorized, map[string]string{
				"detail": "Given token not valid for any token type",
				"code":   "token_not_valid",
			})

			return
		}

		handler(w, r.WithContext(context.WithValue(r.Context(), userKey{}, username)))
	})
}

// AddUser registers a user that can log in with password.
func (s *Server) AddUser(username string, password string) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[username] = string(hash)
}

// IssueTokens creates a valid token pair for username without going through login.
func (s *Server) IssueTokens(username string) auth.TokenPair {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.issue(username)
}

// RevokeAccessTokens invalidates every access token issued so far.
func (s *Server) RevokeAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accessTokens = make(map[string]string)
}

// FailRefresh makes the refresh endpoint answer with status (0 restores normal operation).
func (s *Server) FailRefresh(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.refreshStatus = status
}

// RotateRefreshTokens makes the refresh endpoint issue a new refresh token on every call.
func (s *Server) RotateRefreshTokens(rotate bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rotate = rotate
}

// HoldRefresh blocks refresh requests until the returned function is called.
func (s *Server) HoldRefresh() (release func()) {
	gate := make(chan struct{})

	s.mu.Lock()
	s.refreshGate = gate
	s.mu.Unlock()

	var once sync.Once

	return func() {
		once.Do(func() {
			close(gate)
		})
	}
}

// Calls returns how many requests reached path.
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls[path]
}

// AccessTokens returns the currently valid access tokens and their users.
func (s *Server) AccessTokens() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return maps.Clone(s.accessTokens)
}

// WriteJSON writes v as a JSON response.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[r.URL.Path]++
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

type claims struct {
	jwt.RegisteredClaims

	UserID    string `json:"user_id"`
	TokenType string `json:"token_type"`
}

// issue must be called with s.mu held.
func (s *Server) issue(username string) auth.TokenPair {
	now := time.Now()

	id, err := uuid.NewV4()
	if err != nil {
		panic(err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(now.Add(5 * time.Minute)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        id.String(),
		},
		UserID:    username,
		TokenType: "access",
	})
	token.Header["kid"] = s.signingKey.KeyID()

	access, err := token.SignedString(s.signingKey.CryptoPrivateKey())
	if err != nil {
		panic(err)
	}

	refreshID, err := uuid.NewV4()
	if err != nil {
		panic(err)
	}

	s.accessTokens[access] = username
	s.refreshTokens[refreshID.String()] = username

	return auth.TokenPair{
		Access:  access,
		Refresh: refreshID.String(),
	}
}

func (s *Server) verifyAccessToken(token string) (string, bool) {
	var c claims

	parsed, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (interface{}, error) {
		return s.signingKey.PublicKey().CryptoPublicKey(), nil
	})
	if err != nil || !parsed.Valid {
		return "", false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	username, ok := s.accessTokens[token]

	return username, ok
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var credentials struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&credentials); err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})

		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	hash, ok := s.users[credentials.Username]
	if !ok || bcrypt.CompareHashAndPassword([]byte(hash), []byte(credentials.Password)) != nil {
		WriteJSON(w, http.StatusUnauthorized, map[string]string{
			"detail": "No active account found with the given credentials",
		})

		return
	}

	WriteJSON(w, http.StatusOK, s.issue(credentials.Username))
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	gate := s.refreshGate
	s.mu.Unlock()

	if gate != nil {
		<-gate
	}

	var request struct {
		Refresh string `json:"refresh"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})

		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refreshStatus != 0 {
		WriteJSON(w, s.refreshStatus, map[string]string{"detail": "Token is invalid or expired"})

		return
	}

	username, ok := s.refreshTokens[request.Refresh]
	if !ok {
		WriteJSON(w, http.StatusUnauthorized, map[string]string{
			"detail": "Token is invalid or expired",
			"code":   "token_not_valid",
		})

		return
	}

	pair := s.issue(username)

	// issue always mints a refresh token; drop it unless rotation is on.
	if !s.rotate {
		delete(s.refreshTokens, pair.Refresh)
		pair.Refresh = ""
	} else {
		delete(s.refreshTokens, request.Refresh)
	}

	WriteJSON(w, http.StatusOK, pair)
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Username        string `json:"username"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirmPassword"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})

		return
	}

	if request.Username == "" || request.Password == "" {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"detail": "username and password are required"})

		return
	}

	s.mu.Lock()
	_, exists := s.users[request.Username]
	s.mu.Unlock()

	if exists {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"detail": "username already taken"})

		return
	}

	s.AddUser(request.Username, request.Password)

	WriteJSON(w, http.StatusCreated, map[string]any{
		"username":         request.Username,
		"is_pass_verified": false,
	})
}

func (s *Server) user(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"username":         Username(r),
		"email":            Username(r) + "@example.com",
		"is_pass_verified": true,
	})
}

func (s *Server) profileImage(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})

		return
	}
	defer file.Close()

	WriteJSON(w, http.StatusOK, map[string]any{
		"profile_img": "/media/profile/" + header.Filename,
	})
}
