package codec

import (
	"bytes"
	"io"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
	"github.com/ulikunitz/xz/lzma"
)

// noneCodec passes bytes through unchanged, used when a block should
// not be compressed at all.
type noneCodec struct{}

func (noneCodec) Compress(in []byte, _ int) ([]byte, error)          { return in, nil }
func (noneCodec) Decompress(in []byte, _ int) ([]byte, error)        { return in, nil }
func (noneCodec) CompressBound(n int) int                            { return n }

// zstdCodec wraps klauspost/compress/zstd, reusing one encoder per
// distinct compression level (callers pass a handful of levels at
// most) and a single decoder, matching the package-level
// reusable-codec pattern used for the same library elsewhere in the
// retrieval pack. zstd.Encoder and zstd.Decoder are safe for
// concurrent use once built.
type zstdCodec struct {
	dec *zstd.Decoder

	mu   sync.Mutex
	encs map[int]*zstd.Encoder
}

func newZstdCodec() *zstdCodec {
	dec, _ := zstd.NewReader(nil)
	return &zstdCodec{dec: dec, encs: make(map[int]*zstd.Encoder)}
}

func (c *zstdCodec) encoderFor(level int) (*zstd.Encoder, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if enc, ok := c.encs[level]; ok {
		return enc, nil
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return nil, errors.Wrap(err, "zstd encoder")
	}
	c.encs[level] = enc
	return enc, nil
}

func (c *zstdCodec) Compress(in []byte, level int) ([]byte, error) {
	enc, err := c.encoderFor(clampZstdLevel(level))
	if err != nil {
		return nil, err
	}
	return enc.EncodeAll(in, make([]byte, 0, c.CompressBound(len(in)))), nil
}

func (c *zstdCodec) Decompress(in []byte, sizeHint int) ([]byte, error) {
	out := make([]byte, 0, sizeHint)
	out, err := c.dec.DecodeAll(in, out)
	if err != nil {
		return nil, errors.Wrap(err, "zstd decode")
	}
	return out, nil
}

func (c *zstdCodec) CompressBound(n int) int {
	return n + (n / 2) + 256
}

func clampZstdLevel(level int) int {
	if level <= 0 {
		return 3
	}
	if level > 19 {
		return 19
	}
	return level
}

// lz4Codec wraps pierrec/lz4/v4 in block mode. Unlike the Rust
// reference (which uses lz4_flex's size-prepended framing), the .6cy
// block header already carries orig_size/comp_size, so this codec
// relies on the header for sizing instead of a self-describing frame.
//
// lz4.CompressBlock signals incompressible input by writing zero
// bytes rather than returning an error; block mode has no marker of
// its own to tell a stored chunk apart from a compressed one on
// decode, so this codec prefixes a one-byte tag to stay total over
// every input, matching the round-trip guarantee the other four
// codecs provide unconditionally.
type lz4Codec struct{}

const (
	lz4TagStored     byte = 0
	lz4TagCompressed byte = 1
)

func (lz4Codec) Compress(in []byte, _ int) ([]byte, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(in))+1)
	n, err := lz4.CompressBlock(in, dst[1:], nil)
	if err != nil {
		return nil, errors.Wrap(err, "lz4 compress")
	}
	if n == 0 {
		// incompressible (or empty) input: store it as-is.
		dst = dst[:len(in)+1]
		dst[0] = lz4TagStored
		copy(dst[1:], in)
		return dst, nil
	}
	dst = dst[:n+1]
	dst[0] = lz4TagCompressed
	return dst, nil
}

func (lz4Codec) Decompress(in []byte, sizeHint int) ([]byte, error) {
	if len(in) == 0 {
		return nil, errors.New("lz4: payload missing stored/compressed tag")
	}
	body := in[1:]
	if in[0] == lz4TagStored {
		out := make([]byte, len(body))
		copy(out, body)
		return out, nil
	}
	dst := make([]byte, sizeHint)
	n, err := lz4.UncompressBlock(body, dst)
	if err != nil {
		return nil, errors.Wrap(err, "lz4 decompress")
	}
	return dst[:n], nil
}

func (lz4Codec) CompressBound(n int) int {
	return lz4.CompressBlockBound(n) + 1
}

// brotliCodec wraps andybalholm/brotli.
type brotliCodec struct{}

func (brotliCodec) Compress(in []byte, level int) ([]byte, error) {
	buf := new(bytes.Buffer)
	w := brotli.NewWriterLevel(buf, clampBrotliLevel(level))
	if _, err := w.Write(in); err != nil {
		return nil, errors.Wrap(err, "brotli compress")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "brotli close")
	}
	return buf.Bytes(), nil
}

func (brotliCodec) Decompress(in []byte, sizeHint int) ([]byte, error) {
	r := brotli.NewReader(bytes.NewReader(in))
	out := make([]byte, 0, sizeHint)
	buf := bytes.NewBuffer(out)
	if _, err := io.Copy(buf, r); err != nil {
		return nil, errors.Wrap(err, "brotli decompress")
	}
	return buf.Bytes(), nil
}

func (brotliCodec) CompressBound(n int) int {
	return n + (n / 2) + 1024
}

func clampBrotliLevel(level int) int {
	if level < 0 {
		return 0
	}
	if level > 11 {
		return 11
	}
	return level
}

// lzmaCodec wraps ulikunitz/xz/lzma.
type lzmaCodec struct{}

func (lzmaCodec) Compress(in []byte, _ int) ([]byte, error) {
	buf := new(bytes.Buffer)
	w, err := lzma.NewWriter(buf)
	if err != nil {
		return nil, errors.Wrap(err, "lzma writer")
	}
	if _, err := w.Write(in); err != nil {
		return nil, errors.Wrap(err, "lzma compress")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "lzma close")
	}
	return buf.Bytes(), nil
}

func (lzmaCodec) Decompress(in []byte, sizeHint int) ([]byte, error) {
	r, err := lzma.NewReader(bytes.NewReader(in))
	if err != nil {
		return nil, errors.Wrap(err, "lzma reader")
	}
	out := make([]byte, 0, sizeHint)
	buf := bytes.NewBuffer(out)
	if _, err := io.Copy(buf, r); err != nil {
		return nil, errors.Wrap(err, "lzma decompress")
	}
	return buf.Bytes(), nil
}

func (lzmaCodec) CompressBound(n int) int {
	return n + n/2 + 4096
}
