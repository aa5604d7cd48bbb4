//go:build sonic

package codec

import (
	"github.com/bytedance/sonic"
)

var (
	Marshal       = sonic.Marshal
	Unmarshal     = sonic.Unmarshal
	MarshalIndent = sonic.ConfigDefault.MarshalIndent
)

// Valid reports whether data is a well-formed JSON document.
func Valid(data []byte) bool {
	return sonic.Valid(data)
}
