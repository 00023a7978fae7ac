// Package noopcodec provides a codec that stores values verbatim.
package noopcodec

import (
	"bytes"

	"github.com/discochess/faultkv/internal/codec"
)

// Compile-time check that Codec implements codec.Codec.
var _ codec.Codec = (*Codec)(nil)

// Codec copies values without transforming them.
type Codec struct{}

// New returns a new no-op codec.
func New() *Codec {
	return &Codec{}
}

// Name returns "none".
func (c *Codec) Name() string {
	return "none"
}

// Encode returns a copy of src.
func (c *Codec) Encode(src []byte) ([]byte, error) {
	return bytes.Clone(nonNil(src)), nil
}

// Decode returns a copy of src.
func (c *Codec) Decode(src []byte) ([]byte, error) {
	return bytes.Clone(nonNil(src)), nil
}

// bytes.Clone(nil) is nil; an empty stored value must read back as empty.
func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
