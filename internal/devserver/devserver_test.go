package devserver

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/netplus/netprep/internal/apiclient"
	"github.com/netplus/netprep/internal/apierr"
	"github.com/netplus/netprep/internal/auth"
	"github.com/netplus/netprep/internal/db"
	"github.com/netplus/netprep/internal/progress"
	"github.com/netplus/netprep/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestServer(t *testing.T, cfg *Config) (*httptest.Server, *testClock) {
	t.Helper()
	if cfg == nil {
		cfg = DefaultConfig()
	}
	clock := &testClock{now: time.Now()}
	srv, err := New(cfg, WithLogger(slog.New(slog.DiscardHandler)), WithClock(clock.Now))
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, clock
}

func do(t *testing.T, method, url, token, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	var out map[string]any
	if method != http.MethodHead && res.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	}
	return res, out
}

func login(t *testing.T, baseURL string) (string, string) {
	t.Helper()
	res, body := do(t, http.MethodPost, baseURL+"/api/auth/login", "",
		`{"email":"demo@netprep.test","password":"demo123"}`)
	require.Equal(t, http.StatusOK, res.StatusCode)
	return body["token"].(string), body["refreshToken"].(string)
}

func newClient(t *testing.T, baseURL string) *apiclient.Client {
	t.Helper()
	store := auth.NewTokenStore(storage.NewMemoryStorage(), storage.NewMemoryStorage())
	c, err := apiclient.New(baseURL+"/api",
		apiclient.WithTokenStore(store),
		apiclient.WithSleep(func(context.Context, time.Duration) error { return nil }),
		apiclient.WithLogger(slog.New(slog.DiscardHandler)),
	)
	require.NoError(t, err)
	return c
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"defaults", func(*Config) {}, nil},
		{"no secret", func(c *Config) { c.AccessTokenSecret = "" }, ErrNoSecret},
		{"zero expiry", func(c *Config) { c.RefreshTokenExpiry = 0 }, ErrInvalidExpiry},
		{"relative base path", func(c *Config) { c.BasePath = "api" }, ErrInvalidBasePath},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}

	t.Run("bad rate", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.RateLimit = "lots"
		assert.Error(t, cfg.Validate())
	})
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	res, body := do(t, http.MethodGet, ts.URL+"/api/health", "", "")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "ok", body["status"])

	res, _ = do(t, http.MethodHead, ts.URL+"/api/health", "", "")
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestResponseHeaders(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	t.Run("gzip when accepted", func(t *testing.T) {
		req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, ts.URL+"/api/auth/login",
			strings.NewReader(`{"email":"demo@netprep.test","password":"demo123"}`))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept-Encoding", "gzip")

		// setting Accept-Encoding by hand turns off transparent decompression
		res, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer res.Body.Close()

		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, "gzip", res.Header.Get("Content-Encoding"))
		assert.Equal(t, "DENY", res.Header.Get("X-Frame-Options"))
		assert.Equal(t, "nosniff", res.Header.Get("X-Content-Type-Options"))
		assert.Equal(t, "no-referrer", res.Header.Get("Referrer-Policy"))

		zr, err := gzip.NewReader(res.Body)
		require.NoError(t, err)
		var body map[string]any
		require.NoError(t, json.NewDecoder(zr).Decode(&body))
		assert.NotEmpty(t, body["token"])
	})

	t.Run("health stays uncompressed", func(t *testing.T) {
		req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, ts.URL+"/api/health", nil)
		require.NoError(t, err)
		req.Header.Set("Accept-Encoding", "gzip")

		res, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer res.Body.Close()
		assert.Empty(t, res.Header.Get("Content-Encoding"))
		assert.Equal(t, "nosniff", res.Header.Get("X-Content-Type-Options"))
	})

	t.Run("client decodes compressed bodies", func(t *testing.T) {
		c := newClient(t, ts.URL)
		_, err := c.Login(t.Context(), apiclient.Credentials{Email: DemoEmail, Password: DemoPassword}, false)
		require.NoError(t, err)

		resp, err := c.Get(t.Context(), "/progress", apiclient.RequestConfig{})
		require.NoError(t, err)
		data, ok := resp.Data.(map[string]any)
		require.True(t, ok, "json body decoded, got %T", resp.Data)
		assert.Contains(t, data, "progress")
	})
}

func TestLogin(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	t.Run("success", func(t *testing.T) {
		res, body := do(t, http.MethodPost, ts.URL+"/api/auth/login", "",
			`{"email":" Demo@netprep.test ","password":"demo123"}`)
		require.Equal(t, http.StatusOK, res.StatusCode)
		assert.NotEmpty(t, body["token"])
		assert.NotEmpty(t, body["refreshToken"])
		assert.EqualValues(t, DefaultAccessTokenExpiry.Seconds(), body["expiresIn"])
		assert.Equal(t, map[string]any{"email": DemoEmail}, body["user"])
	})

	t.Run("bad password", func(t *testing.T) {
		res, body := do(t, http.MethodPost, ts.URL+"/api/auth/login", "",
			`{"email":"demo@netprep.test","password":"nope"}`)
		assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
		assert.Equal(t, codeInvalidCredentials, body["code"])
		assert.Equal(t, "Invalid email or password", body["message"])
	})

	t.Run("validation", func(t *testing.T) {
		res, body := do(t, http.MethodPost, ts.URL+"/api/auth/login", "", `{"email":""}`)
		assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
		assert.Equal(t, map[string]any{
			"email":    "Email is required",
			"password": "Password is required",
		}, body["errors"])
	})
}

func TestAuthMiddleware(t *testing.T) {
	ts, clock := newTestServer(t, nil)
	access, refresh := login(t, ts.URL)

	t.Run("missing header", func(t *testing.T) {
		res, body := do(t, http.MethodGet, ts.URL+"/api/progress", "", "")
		assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
		assert.Equal(t, codeUnauthorized, body["code"])
	})

	t.Run("refresh token is not an access token", func(t *testing.T) {
		res, body := do(t, http.MethodGet, ts.URL+"/api/progress", refresh, "")
		assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
		assert.Equal(t, codeUnauthorized, body["code"])
	})

	t.Run("valid", func(t *testing.T) {
		res, body := do(t, http.MethodGet, ts.URL+"/api/progress", access, "")
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, map[string]any{}, body["progress"])
	})

	t.Run("expired", func(t *testing.T) {
		clock.Advance(DefaultAccessTokenExpiry + time.Minute)
		res, body := do(t, http.MethodGet, ts.URL+"/api/progress", access, "")
		assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
		assert.Equal(t, codeTokenExpired, body["code"])
	})
}

func TestRefresh(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	access, refresh := login(t, ts.URL)

	res, body := do(t, http.MethodPost, ts.URL+"/api/auth/refresh", "", `{"refreshToken":"`+refresh+`"}`)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.NotEmpty(t, body["token"])
	assert.NotEqual(t, access, body["token"])

	res, body = do(t, http.MethodPost, ts.URL+"/api/auth/refresh", "", `{"refreshToken":"`+access+`"}`)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, codeInvalidRefresh, body["code"])

	res, _ = do(t, http.MethodPost, ts.URL+"/api/auth/refresh", "", `{}`)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestRateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimit = "2-M"
	ts, _ := newTestServer(t, cfg)

	for range 2 {
		res, _ := do(t, http.MethodGet, ts.URL+"/api/health", "", "")
		require.Equal(t, http.StatusOK, res.StatusCode)
	}

	res, body := do(t, http.MethodGet, ts.URL+"/api/health", "", "")
	assert.Equal(t, http.StatusTooManyRequests, res.StatusCode)
	assert.Equal(t, codeRateLimited, body["code"])
}

func TestProgressRoutes(t *testing.T) {
	ts, clock := newTestServer(t, nil)
	access, _ := login(t, ts.URL)

	res, body := do(t, http.MethodGet, ts.URL+"/api/progress/component/net-1", access, "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Nil(t, body["progress"])

	res, body = do(t, http.MethodPut, ts.URL+"/api/progress/component/net-1", access,
		`{"completed":true,"score":80,"attempts":1}`)
	require.Equal(t, http.StatusOK, res.StatusCode)
	rec := body["progress"].(map[string]any)
	assert.Equal(t, "net-1", rec["componentId"])
	assert.Equal(t, true, rec["completed"])
	assert.EqualValues(t, 80, rec["score"])

	// a newer client record wins, an older one loses
	newer := clock.Now().Add(time.Hour).UTC().Format(time.RFC3339Nano)
	syncBody := `{"progress":{` +
		`"net-1":{"componentId":"net-1","completed":false,"timeSpent":5,"lastVisited":"2020-01-01T00:00:00Z","attempts":0},` +
		`"net-2":{"componentId":"net-2","completed":true,"timeSpent":9,"lastVisited":"` + newer + `","attempts":2}}}`
	res, body = do(t, http.MethodPost, ts.URL+"/api/progress/sync", access, syncBody)
	require.Equal(t, http.StatusOK, res.StatusCode)
	merged := body["componentProgress"].(map[string]any)
	require.Len(t, merged, 2)
	assert.Equal(t, true, merged["net-1"].(map[string]any)["completed"])
	assert.Equal(t, true, merged["net-2"].(map[string]any)["completed"])
	conflicts := body["conflicts"].([]any)
	require.Len(t, conflicts, 1)
	assert.Equal(t, string(progress.ResolutionRemote), conflicts[0].(map[string]any)["resolution"])
	assert.EqualValues(t, 2, body["version"])

	res, _ = do(t, http.MethodPost, ts.URL+"/api/progress/reset", access, "")
	require.Equal(t, http.StatusOK, res.StatusCode)
	_, body = do(t, http.MethodGet, ts.URL+"/api/progress", access, "")
	assert.Equal(t, map[string]any{}, body["progress"])
}

func TestProgressIsPerUser(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Users["other@netprep.test"] = "other123"
	ts, _ := newTestServer(t, cfg)

	access, _ := login(t, ts.URL)
	res, _ := do(t, http.MethodPut, ts.URL+"/api/progress/component/net-1", access, `{"completed":true}`)
	require.Equal(t, http.StatusOK, res.StatusCode)

	_, body := do(t, http.MethodPost, ts.URL+"/api/auth/login", "",
		`{"email":"other@netprep.test","password":"other123"}`)
	_, body = do(t, http.MethodGet, ts.URL+"/api/progress", body["token"].(string), "")
	assert.Equal(t, map[string]any{}, body["progress"])
}

func TestClient_EndToEnd(t *testing.T) {
	ts, clock := newTestServer(t, nil)
	client := newClient(t, ts.URL)
	ctx := t.Context()

	t.Run("bad login", func(t *testing.T) {
		_, err := client.Login(ctx, apiclient.Credentials{Email: DemoEmail, Password: "wrong"}, false)
		assert.Equal(t, apierr.CodeUnauthorized, apierr.CodeOf(err))
		assert.Empty(t, client.TokenStore().AccessToken())
	})

	_, err := client.Login(ctx, apiclient.Credentials{Email: DemoEmail, Password: DemoPassword}, true)
	require.NoError(t, err)
	first := client.TokenStore().AccessToken()

	conn, err := db.Open(progress.Schema)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	svc := progress.NewService(client, progress.NewLocalStore(conn))

	done := true
	_, err = svc.Update(ctx, "net-1", progress.Update{Completed: &done})
	require.NoError(t, err)

	// the server now considers the access token expired, the client refreshes and replays
	clock.Advance(DefaultAccessTokenExpiry + time.Minute)
	res, err := svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.True(t, res.Resolved["net-1"].Completed)
	assert.NotEqual(t, first, client.TokenStore().AccessToken())

	t.Run("unknown route", func(t *testing.T) {
		_, err := client.Get(ctx, "/nope", apiclient.RequestConfig{})
		assert.Equal(t, apierr.CodeNotFound, apierr.CodeOf(err))
	})
}
