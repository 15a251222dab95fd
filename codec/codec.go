package codec

// Codec compresses and decompresses block payloads. Implementations
// must be safe for concurrent use on disjoint buffers.
type Codec interface {
	// Compress returns the compressed form of in at the given level.
	// Level interpretation is codec-specific; codecs that do not
	// support levels ignore it.
	Compress(in []byte, level int) ([]byte, error)

	// Decompress expands in, using sizeHint as a capacity hint for the
	// output buffer (the exact decompressed length, per the block
	// header's orig_size field).
	Decompress(in []byte, sizeHint int) ([]byte, error)

	// CompressBound returns an upper bound on the compressed size of
	// an input of length n, used by plugin codecs to size buffers.
	CompressBound(n int) int
}
