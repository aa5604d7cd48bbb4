// Package apiclient is the HTTP request pipeline: interceptors, bearer auth with
// refresh-and-replay, retry with backoff and the offline hand-off.
package apiclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/imroc/req/v3"
	"github.com/netplus/netprep/internal/apierr"
	"github.com/netplus/netprep/internal/auth"
	"github.com/netplus/netprep/internal/codec"
	"github.com/netplus/netprep/internal/metrics"
	"github.com/netplus/netprep/internal/netstatus"
	"github.com/netplus/netprep/internal/retry"
	"github.com/netplus/netprep/internal/version"
)

var ErrNoBaseURL = errors.New("apiclient: base url missing")

type Client struct {
	baseURL    string
	http       *req.Client
	headers    map[string]string
	timeout    time.Duration
	maxRetries int
	baseDelay  time.Duration

	monitor      *netstatus.Monitor
	store        *auth.TokenStore
	coordinator  *auth.Coordinator
	expiryBuffer time.Duration

	metrics *metrics.Metrics
	logger  *slog.Logger
	sleep   SleepFunc

	mu                   sync.RWMutex
	requestInterceptors  []RequestInterceptor
	responseInterceptors []ResponseInterceptor
	errorInterceptors    []ErrorInterceptor
}

// New creates a client for baseURL and installs the default interceptors.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, ErrNoBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("apiclient: parse base url: %w", err)
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		headers: map[string]string{
			HeaderContentType: contentTypeJSON,
			HeaderAccept:      contentTypeJSON,
			HeaderVersion:     version.Version,
			HeaderDeviceID:    DeviceID(),
		},
		timeout:      DefaultTimeout,
		maxRetries:   retry.DefaultMaxRetries,
		baseDelay:    retry.DefaultBaseDelay,
		expiryBuffer: DefaultTokenExpiryBuffer,
		logger:       slog.Default(),
		sleep:        sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.http == nil {
		c.http = req.C()
	}
	// the pipeline owns retries
	c.http.SetCommonRetryCount(0).
		SetUserAgent(UserAgent).
		SetJsonMarshal(codec.Marshal).
		SetJsonUnmarshal(codec.Unmarshal)

	if c.coordinator == nil && c.store != nil {
		c.coordinator = auth.NewCoordinator(c.store, c.refreshTokens, c.logger, c.metrics)
	}
	if c.coordinator != nil && c.store == nil {
		c.store = c.coordinator.Store()
	}

	if c.store != nil {
		if c.expiryBuffer > 0 {
			c.AddRequestInterceptor(c.proactiveRefresh)
		}
		c.AddRequestInterceptor(c.bearerAuth)
	}
	c.AddErrorInterceptor(c.refreshAndReplay)

	return c, nil
}

// BaseURL returns the base every endpoint is resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// TokenStore returns the store used for bearer auth, or nil.
func (c *Client) TokenStore() *auth.TokenStore {
	return c.store
}

func (c *Client) AddRequestInterceptor(ic RequestInterceptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requestInterceptors = append(c.requestInterceptors, ic)
}

func (c *Client) AddResponseInterceptor(ic ResponseInterceptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responseInterceptors = append(c.responseInterceptors, ic)
}

func (c *Client) AddErrorInterceptor(ic ErrorInterceptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errorInterceptors = append(c.errorInterceptors, ic)
}

// Request runs endpoint through the pipeline. Failures are always *apierr.Error.
func (c *Client) Request(ctx context.Context, endpoint string, cfg RequestConfig) (*Response, error) {
	if cfg.Method == "" {
		cfg.Method = http.MethodGet
	}
	cfg.Method = strings.ToUpper(cfg.Method)

	c.mu.RLock()
	requestInterceptors := c.requestInterceptors
	c.mu.RUnlock()

	for _, ic := range requestInterceptors {
		next, err := ic(ctx, cfg)
		if err != nil {
			apiErr := apierr.Classify(err)
			c.metrics.ObserveRequest(cfg.Method, string(apiErr.Code))
			return nil, apiErr
		}
		cfg = next
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = c.timeout
	}
	maxRetries := c.maxRetries
	if cfg.SkipRetry {
		maxRetries = 0
	}

	r := &Request{
		Method:   cfg.Method,
		Endpoint: endpoint,
		URL:      c.buildURL(endpoint, cfg.Params),
		Config:   cfg,
	}

	var (
		resp *Response
		err  error
	)
	if c.monitor != nil && !cfg.SkipQueue && !c.monitor.Status() {
		c.logger.Debug("offline, queueing request", "method", r.Method, "endpoint", endpoint)
		resp, err = netstatus.Queue(ctx, c.monitor, func(ctx context.Context) (*Response, error) {
			return c.attempt(ctx, r)
		})
		if err != nil && ctx.Err() == nil {
			err = apierr.Classify(err)
		}
	} else {
		resp, err = c.retryLoop(ctx, r, maxRetries)
	}

	if err != nil {
		if ctx.Err() != nil {
			// the caller gave up, not the per-attempt timeout
			c.metrics.ObserveRequest(r.Method, "canceled")
			return nil, ctx.Err()
		}
		c.metrics.ObserveRequest(r.Method, string(apierr.CodeOf(err)))
		return nil, err
	}
	c.metrics.ObserveRequest(r.Method, "ok")
	return resp, nil
}

func (c *Client) retryLoop(ctx context.Context, r *Request, maxRetries int) (*Response, error) {
	for attempt := 0; ; attempt++ {
		resp, err := c.attempt(ctx, r)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		apiErr := apierr.Classify(err)
		c.logger.Warn("request failed",
			"method", r.Method,
			"endpoint", r.Endpoint,
			"attempt", attempt+1,
			"code", apiErr.Code,
			"status", apiErr.StatusCode,
			"error", apiErr.Message,
		)

		if !retry.ShouldRetry(apiErr, attempt, maxRetries) {
			return nil, apiErr
		}

		delay := retry.Delay(attempt, c.baseDelay)
		c.metrics.ObserveRetry(string(apiErr.Code))
		c.logger.Debug("retrying request", "endpoint", r.Endpoint, "attempt", attempt+1, "delay", delay)
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// attempt sends r once and passes a failure through the error interceptors.
func (c *Client) attempt(ctx context.Context, r *Request) (*Response, error) {
	resp, err := c.exchange(ctx, r)
	if err == nil {
		return resp, nil
	}

	c.mu.RLock()
	errorInterceptors := c.errorInterceptors
	c.mu.RUnlock()

	for _, ic := range errorInterceptors {
		recovered, icErr := ic(ctx, r, err)
		if icErr == nil && recovered != nil {
			return recovered, nil
		}
		if icErr != nil {
			err = icErr
		}
	}
	return nil, apierr.Classify(err)
}

// exchange sends r and runs the response interceptors on success.
func (c *Client) exchange(ctx context.Context, r *Request) (*Response, error) {
	resp, err := c.send(ctx, r)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	responseInterceptors := c.responseInterceptors
	c.mu.RUnlock()

	for _, ic := range responseInterceptors {
		if resp, err = ic(ctx, resp); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func (c *Client) send(ctx context.Context, r *Request) (*Response, error) {
	c.metrics.ObserveAttempt()

	ctx, cancel := context.WithTimeout(ctx, r.Config.Timeout)
	defer cancel()

	hr := c.http.R().
		SetContext(ctx).
		SetHeaders(c.headers).
		SetHeaders(r.Config.Headers)

	if r.Config.Body != nil {
		body, err := encodeBody(r.Config.Body)
		if err != nil {
			return nil, err
		}
		hr.SetBodyBytes(body)
	}

	res, err := hr.Send(r.Method, r.URL)
	if err != nil {
		return nil, err
	}

	body, err := res.ToBytes()
	if err != nil {
		return nil, err
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &apierr.HTTPError{Status: res.StatusCode, Data: body}
	}

	data, err := parseBody(res.GetHeader(HeaderContentType), body)
	if err != nil {
		return nil, err
	}

	return &Response{
		Data:       data,
		Body:       body,
		Status:     res.StatusCode,
		StatusText: http.StatusText(res.StatusCode),
		Headers:    res.Header,
	}, nil
}

func encodeBody(body any) ([]byte, error) {
	switch v := body.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	b, err := codec.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("apiclient: encode body: %w", err)
	}
	return b, nil
}

func parseBody(contentType string, body []byte) (any, error) {
	if !codec.IsJSONContentType(contentType) {
		return string(body), nil
	}
	if len(body) == 0 {
		return nil, nil
	}
	var data any
	if err := codec.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("apiclient: decode response: %w", err)
	}
	return data, nil
}

// buildURL joins the base and endpoint and appends params as a query string.
func (c *Client) buildURL(endpoint string, params map[string]any) string {
	u := c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	if len(params) == 0 {
		return u
	}

	q := url.Values{}
	for k, v := range params {
		q.Add(k, fmt.Sprint(v))
	}

	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + q.Encode()
}

func (c *Client) Get(ctx context.Context, endpoint string, cfg RequestConfig) (*Response, error) {
	cfg.Method = http.MethodGet
	return c.Request(ctx, endpoint, cfg)
}

func (c *Client) Post(ctx context.Context, endpoint string, body any, cfg RequestConfig) (*Response, error) {
	cfg.Method = http.MethodPost
	cfg.Body = body
	return c.Request(ctx, endpoint, cfg)
}

func (c *Client) Put(ctx context.Context, endpoint string, body any, cfg RequestConfig) (*Response, error) {
	cfg.Method = http.MethodPut
	cfg.Body = body
	return c.Request(ctx, endpoint, cfg)
}

func (c *Client) Patch(ctx context.Context, endpoint string, body any, cfg RequestConfig) (*Response, error) {
	cfg.Method = http.MethodPatch
	cfg.Body = body
	return c.Request(ctx, endpoint, cfg)
}

func (c *Client) Delete(ctx context.Context, endpoint string, cfg RequestConfig) (*Response, error) {
	cfg.Method = http.MethodDelete
	return c.Request(ctx, endpoint, cfg)
}
