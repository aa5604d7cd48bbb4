package apierr

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"syscall"

	"github.com/netplus/netprep/internal/codec"
)

// errorBody is the error payload shape servers are expected to send.
type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Errors  any    `json:"errors"`
}

// Classify maps any raw failure to a structured *Error. It never panics and never returns nil.
// Rules are evaluated in order and the first match wins.
func Classify(raw any) *Error {
	ts := timestamp()

	if raw == nil {
		return &Error{
			Code:        CodeUnknown,
			Message:     "Unknown error occurred",
			UserMessage: msgUnknown,
			Timestamp:   ts,
		}
	}

	err, isErr := raw.(error)
	if !isErr {
		return &Error{
			Code:        CodeUnknown,
			Message:     "Unknown error occurred",
			UserMessage: msgUnknown,
			Details:     raw,
			Timestamp:   ts,
		}
	}

	// already classified
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	if isNetworkFailure(err) {
		return &Error{
			Code:        CodeNetworkError,
			Message:     "Network request failed",
			UserMessage: msgNetwork,
			Timestamp:   ts,
			Retryable:   true,
			cause:       err,
		}
	}

	if isAbort(err) {
		return &Error{
			Code:        CodeTimeout,
			Message:     "Request timeout",
			UserMessage: msgTimeout,
			Timestamp:   ts,
			Retryable:   true,
			cause:       err,
		}
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		e := classifyStatus(httpErr)
		e.Timestamp = ts
		e.cause = err
		return e
	}

	return &Error{
		Code:        CodeUnknown,
		Message:     err.Error(),
		UserMessage: msgUnknown,
		Timestamp:   ts,
		cause:       err,
	}
}

func classifyStatus(httpErr *HTTPError) *Error {
	status := httpErr.Status
	body, decoded := decodeBody(httpErr.Data)

	msgOr := func(def string) string {
		if body.Message != "" {
			return body.Message
		}
		return def
	}

	switch status {
	case http.StatusUnauthorized:
		if body.Code == string(CodeTokenExpired) {
			return &Error{Code: CodeTokenExpired, Message: msgOr("Unauthorized"), UserMessage: msgTokenExpired, StatusCode: status}
		}
		return &Error{Code: CodeUnauthorized, Message: msgOr("Unauthorized"), UserMessage: msgUnauthorized, StatusCode: status}

	case http.StatusForbidden:
		return &Error{Code: CodeForbidden, Message: msgOr("Forbidden"), UserMessage: msgForbidden, StatusCode: status}

	case http.StatusNotFound:
		return &Error{Code: CodeNotFound, Message: msgOr("Not found"), UserMessage: msgNotFound, StatusCode: status}

	case http.StatusConflict:
		return &Error{Code: CodeConflict, Message: msgOr("Conflict"), UserMessage: msgOr(msgConflict), StatusCode: status}

	case http.StatusUnprocessableEntity:
		return &Error{
			Code:        CodeValidationError,
			Message:     msgOr("Validation error"),
			UserMessage: msgValidation,
			StatusCode:  status,
			Details:     FormatValidationErrors(body.Errors),
		}

	case http.StatusTooManyRequests:
		return &Error{Code: CodeRateLimited, Message: "Rate limit exceeded", UserMessage: msgRateLimited, StatusCode: status, Retryable: true}

	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		code := CodeServerError
		if status == http.StatusServiceUnavailable {
			code = CodeServiceUnavailable
		}
		return &Error{Code: code, Message: msgOr("Server error"), UserMessage: msgServer, StatusCode: status, Retryable: true}
	}

	return &Error{
		Code:        CodeUnknown,
		Message:     msgOr("Unknown error"),
		UserMessage: msgUnknown,
		StatusCode:  status,
		Details:     decoded,
	}
}

// decodeBody parses an error payload. Non-JSON bodies come back as their text.
func decodeBody(data []byte) (errorBody, any) {
	var body errorBody
	if len(data) == 0 {
		return body, nil
	}

	var decoded any
	if err := codec.Unmarshal(data, &decoded); err != nil {
		return body, string(data)
	}
	if m, ok := decoded.(map[string]any); ok {
		if s, ok := m["message"].(string); ok {
			body.Message = s
		}
		if s, ok := m["code"].(string); ok {
			body.Code = s
		}
		body.Errors = m["errors"]
	}
	return body, decoded
}

// isNetworkFailure reports transport-level failures where no response was received,
// excluding timeouts, which are classified separately.
func isNetworkFailure(err error) bool {
	if isAbort(err) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return !netErr.Timeout()
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF)
}

// isAbort reports cancellation or deadline expiry of the request context.
func isAbort(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
