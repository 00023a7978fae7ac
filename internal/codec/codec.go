// Package codec encodes values before a shard stores them, so a shard can
// model nodes that keep their payloads compressed.
package codec

// Codec converts values to and from their stored form.
// Implementations must be safe for concurrent use.
type Codec interface {
	// Name returns the codec name used in configuration ("none", "gzip", "zstd").
	Name() string

	// Encode returns the stored form of src. src is not retained.
	Encode(src []byte) ([]byte, error)

	// Decode reverses Encode. The result does not alias src.
	Decode(src []byte) ([]byte, error)
}
