// Package jsoncodec centralises JSON encoding for wire payloads so every
// component serialises envelopes the same way.
package jsoncodec

import (
	"bytes"
	"io"

	"github.com/bytedance/sonic"
)

var defaultConfig = sonic.ConfigStd

func Marshal(v any) ([]byte, error) {
	return defaultConfig.Marshal(v)
}

func Unmarshal(data []byte, v any) error {
	return defaultConfig.Unmarshal(data, v)
}

func Encode(w io.Writer, v any) error {
	enc := defaultConfig.NewEncoder(w)
	return enc.Encode(v)
}

func Decode(r io.Reader, v any) error {
	dec := defaultConfig.NewDecoder(r)
	return dec.Decode(v)
}

var nullLiteral = []byte("null")

// IsEmpty reports whether a payload carries no message at all: zero bytes,
// whitespace only, or the JSON literal null. Such payloads are dropped by the
// consumption engine without touching the delivery handle.
func IsEmpty(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, nullLiteral)
}
