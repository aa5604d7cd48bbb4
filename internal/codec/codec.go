// Package codec is the JSON codec shared by the HTTP client and the local stores.
// Build with `-tags sonic` to swap go-json for bytedance/sonic.
package codec

import "strings"

// IsJSONContentType reports whether a Content-Type header value denotes a JSON payload.
func IsJSONContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "application/json") || strings.Contains(ct, "+json")
}
