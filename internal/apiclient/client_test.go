package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/netplus/netprep/internal/apierr"
	"github.com/netplus/netprep/internal/auth"
	"github.com/netplus/netprep/internal/netstatus"
	"github.com/netplus/netprep/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// delayRecorder replaces the backoff wait and records the requested delays.
type delayRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (d *delayRecorder) sleep(_ context.Context, delay time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.delays = append(d.delays, delay)
	return nil
}

func (d *delayRecorder) recorded() []time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]time.Duration(nil), d.delays...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newClient(t *testing.T, url string, opts ...Option) *Client {
	t.Helper()
	c, err := New(url, opts...)
	require.NoError(t, err)
	return c
}

func newTokenStore() *auth.TokenStore {
	return auth.NewTokenStore(storage.NewMemoryStorage(), storage.NewMemoryStorage())
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New("")
	assert.ErrorIs(t, err, ErrNoBaseURL)
}

func TestClient_GetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/items", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		writeJSON(w, http.StatusOK, map[string]any{"id": "c1", "score": 90})
	}))
	defer srv.Close()

	c := newClient(t, srv.URL+"/api/")
	resp, err := c.Get(t.Context(), "/items", RequestConfig{})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "OK", resp.StatusText)
	assert.Equal(t, map[string]any{"id": "c1", "score": float64(90)}, resp.Data)
	assert.Contains(t, resp.Headers.Get("Content-Type"), "application/json")

	type item struct {
		ID    string `json:"id"`
		Score int    `json:"score"`
	}
	decoded, err := Decode[item](resp)
	require.NoError(t, err)
	assert.Equal(t, item{ID: "c1", Score: 90}, decoded)
}

func TestClient_TextBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("pong"))
	}))
	defer srv.Close()

	resp, err := newClient(t, srv.URL).Get(t.Context(), "ping", RequestConfig{})
	require.NoError(t, err)
	assert.Equal(t, "pong", resp.Data)
}

func TestClient_BuildURL(t *testing.T) {
	c := newClient(t, "http://localhost:3000/api")

	assert.Equal(t, "http://localhost:3000/api/progress", c.buildURL("/progress", nil))
	assert.Equal(t, "http://localhost:3000/api/progress", c.buildURL("progress", nil))
	assert.Equal(t,
		"http://localhost:3000/api/progress?category=ipv4&done=true&limit=10",
		c.buildURL("/progress", map[string]any{"limit": 10, "done": true, "category": "ipv4"}),
	)
}

func TestClient_PostBodyAndMethods(t *testing.T) {
	var seen []string
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Method)
		mu.Unlock()

		if r.Method == http.MethodPost {
			var body map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "v", body["k"])
		}
		writeJSON(w, http.StatusOK, map[string]any{})
	}))
	defer srv.Close()

	c := newClient(t, srv.URL)
	ctx := t.Context()
	_, err := c.Post(ctx, "/x", map[string]string{"k": "v"}, RequestConfig{})
	require.NoError(t, err)
	_, err = c.Put(ctx, "/x", nil, RequestConfig{})
	require.NoError(t, err)
	_, err = c.Patch(ctx, "/x", nil, RequestConfig{})
	require.NoError(t, err)
	_, err = c.Delete(ctx, "/x", RequestConfig{})
	require.NoError(t, err)

	assert.Equal(t, []string{"POST", "PUT", "PATCH", "DELETE"}, seen)
}

func TestClient_InterceptorOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "second", r.Header.Get("X-Trace"))
		writeJSON(w, http.StatusOK, map[string]any{})
	}))
	defer srv.Close()

	var order []string
	c := newClient(t, srv.URL)
	c.AddRequestInterceptor(func(ctx context.Context, cfg RequestConfig) (RequestConfig, error) {
		order = append(order, "req1")
		return cfg.WithHeader("X-Trace", "first"), nil
	})
	c.AddRequestInterceptor(func(ctx context.Context, cfg RequestConfig) (RequestConfig, error) {
		order = append(order, "req2")
		assert.Equal(t, "first", cfg.Headers["X-Trace"])
		return cfg.WithHeader("X-Trace", "second"), nil
	})
	c.AddResponseInterceptor(func(ctx context.Context, resp *Response) (*Response, error) {
		order = append(order, "resp1")
		resp.Data = "rewritten"
		return resp, nil
	})
	c.AddResponseInterceptor(func(ctx context.Context, resp *Response) (*Response, error) {
		order = append(order, "resp2")
		assert.Equal(t, "rewritten", resp.Data)
		return resp, nil
	})

	cfg := RequestConfig{Headers: map[string]string{"X-Other": "1"}}
	resp, err := c.Get(t.Context(), "/", cfg)
	require.NoError(t, err)
	assert.Equal(t, "rewritten", resp.Data)
	assert.Equal(t, []string{"req1", "req2", "resp1", "resp2"}, order)
	assert.NotContains(t, cfg.Headers, "X-Trace", "interceptors must not mutate the caller's config")
}

func TestClient_RequestInterceptorError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	c := newClient(t, srv.URL)
	c.AddRequestInterceptor(func(ctx context.Context, cfg RequestConfig) (RequestConfig, error) {
		return RequestConfig{}, assert.AnError
	})

	_, err := c.Get(t.Context(), "/", RequestConfig{})
	assert.Equal(t, apierr.CodeUnknown, apierr.CodeOf(err))
	assert.Equal(t, int32(0), hits.Load())
}

func TestClient_ExhaustedRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"message": "down"})
	}))
	defer srv.Close()

	rec := &delayRecorder{}
	c := newClient(t, srv.URL, WithMaxRetries(3), WithSleep(rec.sleep))

	_, err := c.Get(t.Context(), "/", RequestConfig{})
	require.Error(t, err)

	var apiErr *apierr.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierr.CodeServiceUnavailable, apiErr.Code)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Equal(t, int32(4), hits.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, rec.recorded())
}

func TestClient_NoRetry(t *testing.T) {
	tests := []struct {
		name   string
		status int
		cfg    RequestConfig
		code   apierr.Code
	}{
		{name: "skip retry", status: http.StatusInternalServerError, cfg: RequestConfig{SkipRetry: true}, code: apierr.CodeServerError},
		{name: "not retryable", status: http.StatusNotFound, code: apierr.CodeNotFound},
		{name: "forbidden", status: http.StatusForbidden, code: apierr.CodeForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				writeJSON(w, tt.status, map[string]any{})
			}))
			defer srv.Close()

			rec := &delayRecorder{}
			c := newClient(t, srv.URL, WithSleep(rec.sleep))
			_, err := c.Get(t.Context(), "/", tt.cfg)

			assert.Equal(t, tt.code, apierr.CodeOf(err))
			assert.Equal(t, int32(1), hits.Load())
			assert.Empty(t, rec.recorded())
		})
	}
}

func TestClient_RetryThenSuccess(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			writeJSON(w, http.StatusBadGateway, map[string]any{})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}))
	defer srv.Close()

	rec := &delayRecorder{}
	resp, err := newClient(t, srv.URL, WithSleep(rec.sleep)).Get(t.Context(), "/", RequestConfig{})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ok": true}, resp.Data)
	assert.Equal(t, int32(3), hits.Load())
	assert.Len(t, rec.recorded(), 2)
}

func TestClient_ValidationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"message": "invalid",
			"errors":  []map[string]string{{"field": "email", "message": "required"}},
		})
	}))
	defer srv.Close()

	_, err := newClient(t, srv.URL).Post(t.Context(), "/register", map[string]string{}, RequestConfig{})

	var apiErr *apierr.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierr.CodeValidationError, apiErr.Code)
	assert.Equal(t, map[string]string{"email": "required"}, apiErr.Details)
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := newClient(t, srv.URL, WithMaxRetries(0))
	_, err := c.Get(t.Context(), "/", RequestConfig{Timeout: 50 * time.Millisecond})

	var apiErr *apierr.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierr.CodeTimeout, apiErr.Code)
	assert.True(t, apiErr.Retryable)
}

func TestClient_TimeoutIsRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	rec := &delayRecorder{}
	c := newClient(t, srv.URL, WithMaxRetries(2), WithSleep(rec.sleep))
	_, err := c.Get(t.Context(), "/", RequestConfig{Timeout: 30 * time.Millisecond})

	assert.Equal(t, apierr.CodeTimeout, apierr.CodeOf(err))
	assert.Equal(t, int32(3), hits.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.recorded())
}

func TestClient_CallerCancel(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	rec := &delayRecorder{}
	c := newClient(t, srv.URL, WithMaxRetries(3), WithSleep(rec.sleep))
	_, err := c.Get(ctx, "/", RequestConfig{Timeout: time.Second})

	require.ErrorIs(t, err, context.DeadlineExceeded)
	var apiErr *apierr.Error
	assert.False(t, errors.As(err, &apiErr))
	assert.Equal(t, int32(1), hits.Load())
	assert.Empty(t, rec.recorded())
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newClient(t, url, WithMaxRetries(0)).Get(t.Context(), "/", RequestConfig{})
	assert.Equal(t, apierr.CodeNetworkError, apierr.CodeOf(err))
}

// authServer serves /auth/refresh and /data. /data accepts only the current token.
type authServer struct {
	*httptest.Server

	mu           sync.Mutex
	validToken   string
	refreshOK    bool
	refreshHits  atomic.Int32
	dataHits     atomic.Int32
	seenBearer   []string
	refreshDelay time.Duration
}

func newAuthServer(t *testing.T, validToken string, refreshOK bool, refreshDelay time.Duration) *authServer {
	s := &authServer{validToken: validToken, refreshOK: refreshOK, refreshDelay: refreshDelay}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/refresh":
			s.refreshHits.Add(1)
			assert.Empty(t, r.Header.Get("Authorization"))
			time.Sleep(s.refreshDelay)

			var body auth.RefreshRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			if !s.refreshOK || body.RefreshToken == "" {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"code": "UNAUTHORIZED"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"token": "fresh", "refreshToken": "r2"})

		case "/data":
			s.dataHits.Add(1)
			got := r.Header.Get("Authorization")
			s.mu.Lock()
			s.seenBearer = append(s.seenBearer, got)
			s.mu.Unlock()
			if got != "Bearer "+s.validToken {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"code": "TOKEN_EXPIRED", "message": "jwt expired"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"items": []int{1, 2}})

		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *authServer) bearers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.seenBearer...)
}

func TestClient_RefreshAndReplay(t *testing.T) {
	srv := newAuthServer(t, "fresh", true, 0)
	store := newTokenStore()
	require.NoError(t, store.StoreAuth(auth.Tokens{AccessToken: "stale", RefreshToken: "r1"}, "", false))

	rec := &delayRecorder{}
	c := newClient(t, srv.URL, WithTokenStore(store), WithSleep(rec.sleep))

	resp, err := c.Get(t.Context(), "/data", RequestConfig{})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"items": []any{float64(1), float64(2)}}, resp.Data)

	assert.Equal(t, int32(1), srv.refreshHits.Load())
	assert.Equal(t, int32(2), srv.dataHits.Load())
	assert.Equal(t, []string{"Bearer stale", "Bearer fresh"}, srv.bearers())
	assert.Empty(t, rec.recorded(), "the replay is not a policy retry")

	assert.Equal(t, "fresh", store.AccessToken())
	assert.Equal(t, "r2", store.RefreshToken())
}

func TestClient_RefreshFailureLogsOut(t *testing.T) {
	srv := newAuthServer(t, "fresh", false, 0)
	store := newTokenStore()
	require.NoError(t, store.StoreAuth(auth.Tokens{AccessToken: "stale", RefreshToken: "r1"}, "user", true))

	c := newClient(t, srv.URL, WithTokenStore(store))
	_, err := c.Get(t.Context(), "/data", RequestConfig{})

	assert.Equal(t, apierr.CodeTokenExpired, apierr.CodeOf(err))
	assert.Equal(t, int32(1), srv.refreshHits.Load())
	assert.Equal(t, int32(1), srv.dataHits.Load())
	assert.Empty(t, store.AccessToken())
	assert.Empty(t, store.RefreshToken())
	assert.False(t, store.RememberMe())
}

func TestClient_NoRefreshToken(t *testing.T) {
	srv := newAuthServer(t, "fresh", true, 0)
	store := newTokenStore()
	require.NoError(t, store.StoreAuth(auth.Tokens{AccessToken: "stale"}, "", false))

	_, err := newClient(t, srv.URL, WithTokenStore(store)).Get(t.Context(), "/data", RequestConfig{})
	assert.Equal(t, apierr.CodeTokenExpired, apierr.CodeOf(err))
	assert.Equal(t, int32(0), srv.refreshHits.Load())
}

func TestClient_ReplayHappensOnce(t *testing.T) {
	// the refreshed token is still rejected
	srv := newAuthServer(t, "never-valid", true, 0)
	store := newTokenStore()
	require.NoError(t, store.StoreAuth(auth.Tokens{AccessToken: "stale", RefreshToken: "r1"}, "", false))

	_, err := newClient(t, srv.URL, WithTokenStore(store)).Get(t.Context(), "/data", RequestConfig{})
	assert.Equal(t, apierr.CodeTokenExpired, apierr.CodeOf(err))
	assert.Equal(t, int32(1), srv.refreshHits.Load())
	assert.Equal(t, int32(2), srv.dataHits.Load())
}

func TestClient_ConcurrentRefreshIsSingleFlight(t *testing.T) {
	srv := newAuthServer(t, "fresh", true, 200*time.Millisecond)
	store := newTokenStore()
	require.NoError(t, store.StoreAuth(auth.Tokens{AccessToken: "stale", RefreshToken: "r1"}, "", false))

	c := newClient(t, srv.URL, WithTokenStore(store))

	const n = 5
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Get(t.Context(), "/data", RequestConfig{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), srv.refreshHits.Load())
	assert.Equal(t, "fresh", store.AccessToken())
}

func TestClient_ProactiveRefresh(t *testing.T) {
	srv := newAuthServer(t, "fresh", true, 0)
	store := newTokenStore()

	soon := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(10 * time.Second)),
	})
	token, err := soon.SignedString([]byte("k"))
	require.NoError(t, err)
	require.NoError(t, store.StoreAuth(auth.Tokens{AccessToken: token, RefreshToken: "r1"}, "", false))

	c := newClient(t, srv.URL, WithTokenStore(store), WithTokenExpiryBuffer(time.Minute))
	_, err = c.Get(t.Context(), "/data", RequestConfig{})
	require.NoError(t, err)

	assert.Equal(t, int32(1), srv.refreshHits.Load())
	assert.Equal(t, int32(1), srv.dataHits.Load())
	assert.Equal(t, []string{"Bearer fresh"}, srv.bearers())
}

func TestClient_SkipAuth(t *testing.T) {
	srv := newAuthServer(t, "fresh", true, 0)
	store := newTokenStore()
	require.NoError(t, store.StoreAuth(auth.Tokens{AccessToken: "stale", RefreshToken: "r1"}, "", false))

	_, err := newClient(t, srv.URL, WithTokenStore(store)).Get(t.Context(), "/data", RequestConfig{SkipAuth: true})
	assert.Equal(t, apierr.CodeTokenExpired, apierr.CodeOf(err))
	assert.Equal(t, []string{""}, srv.bearers())
	assert.Equal(t, int32(0), srv.refreshHits.Load())
}

func TestClient_OfflineQueue(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(w, http.StatusOK, map[string]any{"n": 7})
	}))
	defer srv.Close()

	monitor := netstatus.New(netstatus.WithInitialStatus(false))
	defer monitor.Close()
	c := newClient(t, srv.URL, WithMonitor(monitor))

	type outcome struct {
		resp *Response
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		resp, err := c.Get(t.Context(), "/q", RequestConfig{})
		done <- outcome{resp, err}
	}()

	require.Eventually(t, func() bool { return monitor.QueueSize() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, int32(0), hits.Load(), "no transport call while offline")

	monitor.SetOnline(true)

	select {
	case out := <-done:
		require.NoError(t, out.err)
		assert.Equal(t, map[string]any{"n": float64(7)}, out.resp.Data)
	case <-time.After(2 * time.Second):
		t.Fatal("queued request did not complete")
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestClient_OfflineQueueExpires(t *testing.T) {
	monitor := netstatus.New(netstatus.WithInitialStatus(false))
	defer monitor.Close()
	c := newClient(t, "http://127.0.0.1:1", WithMonitor(monitor))

	errCh := make(chan error, 1)
	go func() {
		_, err := c.Get(t.Context(), "/q", RequestConfig{})
		errCh <- err
	}()

	require.Eventually(t, func() bool { return monitor.QueueSize() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, 1, monitor.ClearOldRequests(-time.Second))

	err := <-errCh
	assert.ErrorIs(t, err, apierr.ErrRequestExpired)
	assert.Equal(t, apierr.CodeOffline, apierr.CodeOf(err))
}

func TestClient_Login(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/login", r.URL.Path)
		var creds Credentials
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		if creds.Password != "demo123" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"code": "INVALID_CREDENTIALS", "message": "Invalid email or password"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"user":         map[string]any{"id": "u1"},
			"token":        "a1",
			"refreshToken": "r1",
			"expiresIn":    900,
		})
	}))
	defer srv.Close()

	t.Run("success", func(t *testing.T) {
		store := newTokenStore()
		c := newClient(t, srv.URL, WithTokenStore(store))

		login, err := c.Login(t.Context(), Credentials{Email: "demo@netprep.test", Password: "demo123"}, true)
		require.NoError(t, err)
		assert.Equal(t, 900, login.ExpiresIn)
		assert.Equal(t, "a1", store.AccessToken())
		assert.True(t, store.RememberMe())
		assert.JSONEq(t, `{"id":"u1"}`, store.User())

		c.Logout()
		assert.Empty(t, store.AccessToken())
	})

	t.Run("bad password", func(t *testing.T) {
		store := newTokenStore()
		c := newClient(t, srv.URL, WithTokenStore(store))

		_, err := c.Login(t.Context(), Credentials{Email: "demo@netprep.test", Password: "x"}, false)
		assert.Equal(t, apierr.CodeUnauthorized, apierr.CodeOf(err))
		assert.Equal(t, "Invalid email or password", err.(*apierr.Error).Message)
		assert.Empty(t, store.AccessToken())
	})
}
