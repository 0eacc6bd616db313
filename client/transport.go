package client

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"

	"github.com/socialfeed/feedclient/auth"
)

// RequestIDHeader carries a per-request identifier; retries reuse the identifier of the original request.
const RequestIDHeader = "X-Request-Id"

// Transport is an http.RoundTripper that authenticates requests with the stored access token
// and renews the session once when the API answers with 401 Unauthorized.
//
// For every request:
//   - the stored access token (if any) is sent as a bearer token
//   - a 401 response on a request that was not retried yet triggers a single
//     token refresh followed by a single retry of the original request
//   - if the stored access token changed while the request was in flight,
//     the request is retried once with the stored token instead of refreshing
//   - when the session cannot be renewed, the stored tokens are removed and
//     Observer is told that the session expired
//   - a refresh abandoned because the request's context ended leaves the
//     stored tokens alone
type Transport struct {
	// Base is the transport used to send requests. http.DefaultTransport is used if nil.
	Base http.RoundTripper

	Store     auth.TokenStore
	Refresher auth.Refresher
	Observer  auth.SessionObserver

	Logger *zap.Logger
}

func (t Transport) base() http.RoundTripper {
	if t.Base == nil {
		return http.DefaultTransport
	}

	return t.Base
}

func (t Transport) logger() *zap.Logger {
	if t.Logger == nil {
		return zap.NewNop()
	}

	return t.Logger
}

// RoundTrip implements http.RoundTripper.
func (t Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	req, err := replayable(req)
	if err != nil {
		return nil, err
	}

	if req.Header.Get(RequestIDHeader) == "" {
		if id, err := uuid.NewV4(); err == nil {
			req.Header.Set(RequestIDHeader, id.String())
		}
	}

	accessToken, err := t.Store.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	if accessToken != "" {
		setBearer(req, accessToken)
	}

	resp, err := t.base().RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized || IsRetried(ctx) {
		return resp, nil
	}

	return t.recover(MarkRetried(ctx), req, resp, accessToken)
}

// recover handles the first unauthorized response of a request.
func (t Transport) recover(ctx context.Context, req *http.Request, resp *http.Response, sentToken string) (*http.Response, error) {
	logger := t.logger().With(
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.String("request_id", req.Header.Get(RequestIDHeader)),
	)

	// Another request may have renewed the session while this one was in flight.
	currentToken, err := t.Store.AccessToken(ctx)
	if err != nil {
		discard(resp)

		return nil, err
	}

	if currentToken != "" && currentToken != sentToken {
		logger.Debug("access token changed in flight, retrying with the current token")

		discard(resp)

		return t.retry(ctx, req, currentToken)
	}

	refreshToken, err := t.Store.RefreshToken(ctx)
	if err != nil {
		discard(resp)

		return nil, err
	}

	if refreshToken == "" || t.Refresher == nil {
		logger.Info("unauthorized and no refresh token available, ending session")

		if err := t.Store.DeleteAccessToken(ctx); err != nil {
			logger.Error("removing access token", zap.Error(err))
		}

		t.expire(ctx, auth.ErrNoRefreshToken)

		return resp, nil
	}

	discard(resp)

	logger.Debug("access token rejected, refreshing")

	pair, err := t.Refresher.Refresh(ctx, refreshToken)
	if err != nil && ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		// The caller gave up; the session itself may still be renewed by a shared refresh.
		logger.Debug("token refresh abandoned", zap.Error(err))

		return nil, err
	}

	if err != nil {
		logger.Error("token refresh failed", zap.Error(err))

		if err := auth.ClearTokens(ctx, t.Store); err != nil {
			logger.Error("removing tokens", zap.Error(err))
		}

		t.expire(ctx, err)

		return nil, err
	}

	if err := auth.SaveTokens(ctx, t.Store, pair); err != nil {
		return nil, err
	}

	logger.Debug("token refreshed, retrying request")

	return t.retry(ctx, req, pair.Access)
}

func (t Transport) retry(ctx context.Context, req *http.Request, accessToken string) (*http.Response, error) {
	retry := req.Clone(ctx)

	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}

		retry.Body = body
	}

	setBearer(retry, accessToken)

	return t.base().RoundTrip(retry)
}

func (t Transport) expire(ctx context.Context, reason error) {
	if t.Observer == nil {
		return
	}

	t.Observer.SessionExpired(ctx, reason)
}

func setBearer(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
}

// replayable returns a clone of req whose body can be sent more than once.
func replayable(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())

	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return clone, nil
	}

	data, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, err
	}

	clone.Body = io.NopCloser(bytes.NewReader(data))
	clone.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	clone.ContentLength = int64(len(data))

	return clone, nil
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	resp.Body.Close()
}
