package apiclient

import (
	"context"
	"maps"
	"net/http"
	"time"

	"github.com/netplus/netprep/internal/codec"
)

const (
	HeaderAuthorization = "Authorization"
	HeaderContentType   = "Content-Type"
	HeaderAccept        = "Accept"
	HeaderUserAgent     = "User-Agent"
	HeaderVersion       = "X-Netprep-Version"
	HeaderDeviceID      = "X-Netprep-Device-Id"

	contentTypeJSON = "application/json"
)

// RequestConfig describes one call. Interceptors receive a copy and return an updated copy.
type RequestConfig struct {
	Method    string
	Headers   map[string]string
	Body      any
	Params    map[string]any
	Timeout   time.Duration
	SkipAuth  bool
	SkipRetry bool

	// SkipQueue sends the request even while offline instead of waiting in the offline queue.
	SkipQueue bool
}

// WithHeader returns a copy of c with the header set. The receiver's map is not modified.
func (c RequestConfig) WithHeader(key, value string) RequestConfig {
	headers := make(map[string]string, len(c.Headers)+1)
	maps.Copy(headers, c.Headers)
	headers[key] = value
	c.Headers = headers
	return c
}

// Request is a prepared call. Every attempt, including a replay after a token refresh,
// is sent from it.
type Request struct {
	Method   string
	Endpoint string
	URL      string
	Config   RequestConfig

	// Replayed is set once the request was resent with a refreshed token.
	Replayed bool
}

// Response is a successful (2xx) response.
type Response struct {
	// Data is the decoded JSON body, or the body as a string for other content types.
	Data       any
	Body       []byte
	Status     int
	StatusText string
	Headers    http.Header
}

// Decode unmarshals the raw body into v.
func (r *Response) Decode(v any) error {
	return codec.Unmarshal(r.Body, v)
}

// Decode unmarshals the response body into a T.
func Decode[T any](resp *Response) (T, error) {
	var v T
	if resp == nil || len(resp.Body) == 0 {
		return v, nil
	}
	err := resp.Decode(&v)
	return v, err
}

type (
	// RequestInterceptor runs before the URL is built.
	RequestInterceptor func(ctx context.Context, cfg RequestConfig) (RequestConfig, error)

	// ResponseInterceptor runs on every successful response.
	ResponseInterceptor func(ctx context.Context, resp *Response) (*Response, error)

	// ErrorInterceptor runs on a failed attempt. Returning a non-nil response with a nil error
	// recovers the attempt and stops the chain. Otherwise the returned error is passed on.
	ErrorInterceptor func(ctx context.Context, r *Request, err error) (*Response, error)
)
