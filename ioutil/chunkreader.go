// Package ioutil holds the streaming-ingestion helper the archive
// writer uses to split an io.Reader into fixed-size chunks. Unlike the
// teacher's block-aligned reader, .6cy blocks are never padded, so
// there is no Realign/Align step here.
package ioutil

import (
	"bytes"
	"io"
)

// ChunkReader splits a byte stream into fixed-size chunks, the unit the
// archive writer's encode pipeline operates on.
type ChunkReader struct {
	r         io.Reader
	ChunkSize int
}

// NewChunkReader wraps r, yielding chunks of at most chunkSize bytes.
func NewChunkReader(r io.Reader, chunkSize int) *ChunkReader {
	return &ChunkReader{r: r, ChunkSize: chunkSize}
}

// Next reads the next chunk. A short final chunk is returned with a
// nil error; the following call returns (nil, io.EOF).
func (cr *ChunkReader) Next() ([]byte, error) {
	buf := new(bytes.Buffer)
	n, err := io.CopyN(buf, cr.r, int64(cr.ChunkSize))
	if err == io.EOF {
		if n == 0 {
			return nil, io.EOF
		}
		return buf.Bytes(), nil
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
