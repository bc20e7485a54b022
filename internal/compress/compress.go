package compress

import "fmt"

// Compress encodes and decodes stored payloads.
type Compress interface {
	// Name identifies the encoding, it is recorded next to the payload.
	Name() string
	Encode(data []byte) ([]byte, error)
	Decode(data []byte) ([]byte, error)
}

const (
	NameNone   = "none"
	NameGZip   = "gzip"
	NameLZ4    = "lz4"
	NameBrotli = "brotli"
)

// New returns the encoder registered under name. An empty name selects Nop.
func New(name string) (Compress, error) {
	switch name {
	case "", NameNone:
		return NewNop(), nil
	case NameGZip:
		return NewGZip(), nil
	case NameLZ4:
		return NewLZ4(), nil
	case NameBrotli:
		return NewBrotli(), nil
	default:
		return nil, fmt.Errorf("unknown compression %q", name)
	}
}
