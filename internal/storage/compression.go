package storage

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// CompressionOptions configures how values are compressed at rest.
type CompressionOptions struct {
	// Values shorter than MinSize are stored as is.
	MinSize int
	// zstd level, 1 (fastest) to 4 (best)
	Level int
}

func DefaultCompressionOptions() CompressionOptions {
	return CompressionOptions{
		MinSize: 256,
		Level:   2,
	}
}

// Codec compresses values before they reach badger. Decode accepts both
// compressed and plain values, telling them apart by the zstd frame magic.
type Codec struct {
	opts CompressionOptions
	enc  *zstd.Encoder
	dec  *zstd.Decoder
}

func NewCodec(opts CompressionOptions) (*Codec, error) {
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(opts.Level)),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, fmt.Errorf("creating encoder: %w", err)
	}

	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("creating decoder: %w", err)
	}

	return &Codec{opts: opts, enc: enc, dec: dec}, nil
}

func (c *Codec) Encode(data []byte) []byte {
	if len(data) < c.opts.MinSize {
		return data
	}
	return c.enc.EncodeAll(data, make([]byte, 0, len(data)/2))
}

func (c *Codec) Decode(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, zstdMagic) {
		return data, nil
	}
	out, err := c.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing value: %w", err)
	}
	return out, nil
}

func (c *Codec) Close() {
	c.enc.Close()
	c.dec.Close()
}
