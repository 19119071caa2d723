package imaging

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"

	lru "github.com/hashicorp/golang-lru/v2"

	"postbot/internal/errors"
)

// Transcoder re-encodes uploaded images. The returned extension (without
// a dot) decides the file name the image is stored under.
type Transcoder interface {
	Transcode(ctx context.Context, data []byte) ([]byte, string, error)
}

// Reencoder decodes PNG, JPEG and GIF input and writes JPEG at Quality,
// or PNG when the image has transparency.
type Reencoder struct {
	Quality int
}

func NewReencoder(quality int) *Reencoder {
	if quality <= 0 || quality > 100 {
		quality = jpeg.DefaultQuality
	}
	return &Reencoder{Quality: quality}
}

func (r *Reencoder) Transcode(ctx context.Context, data []byte) ([]byte, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	if len(data) == 0 {
		return nil, "", errors.ValidationError("empty image", nil)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", errors.ValidationError("unsupported image", err.Error())
	}

	var buf bytes.Buffer
	if hasAlpha(img) || format == "gif" {
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return nil, "", errors.Internal("encoding png", err)
		}
		return buf.Bytes(), "png", nil
	}

	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: r.Quality}); err != nil {
		return nil, "", errors.Internal("encoding jpeg", err)
	}
	return buf.Bytes(), "jpg", nil
}

func hasAlpha(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	return true
}

type transcoded struct {
	data []byte
	ext  string
}

// Cached memoizes a Transcoder by input digest, so re-submitting the same
// upload does not pay for decoding twice.
type Cached struct {
	next  Transcoder
	cache *lru.Cache[string, transcoded]
}

func NewCached(next Transcoder, size int) (*Cached, error) {
	cache, err := lru.New[string, transcoded](size)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}
	return &Cached{next: next, cache: cache}, nil
}

func (c *Cached) Transcode(ctx context.Context, data []byte) ([]byte, string, error) {
	sum := sha256.Sum256(data)
	key := hex.EncodeToString(sum[:])

	if hit, ok := c.cache.Get(key); ok {
		return hit.data, hit.ext, nil
	}
	out, ext, err := c.next.Transcode(ctx, data)
	if err != nil {
		return nil, "", err
	}
	c.cache.Add(key, transcoded{data: out, ext: ext})
	return out, ext, nil
}
