//go:build !sonic

package codec

import (
	"github.com/goccy/go-json"
)

var (
	Marshal       = json.Marshal
	Unmarshal     = json.Unmarshal
	MarshalIndent = json.MarshalIndent
)

// Valid reports whether data is a well-formed JSON document.
func Valid(data []byte) bool {
	return json.Valid(data)
}
