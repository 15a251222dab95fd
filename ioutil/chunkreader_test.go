package ioutil_test

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/byte271/sixcy/ioutil"
)

func TestChunkReaderNext(t *testing.T) {
	testCases := []struct {
		name      string
		data      []byte
		chunkSize int
		expected  [][]byte
	}{
		{
			name:      "small chunk size",
			data:      []byte("Hello, world! This is a test."),
			chunkSize: 5,
			expected: [][]byte{
				[]byte("Hello"), []byte(", wor"), []byte("ld! T"),
				[]byte("his i"), []byte("s a t"), []byte("est."),
			},
		},
		{
			name:      "exact multiple",
			data:      []byte("1234567890"),
			chunkSize: 5,
			expected:  [][]byte{[]byte("12345"), []byte("67890")},
		},
		{
			name:      "chunk larger than input",
			data:      []byte("Hello, world!"),
			chunkSize: 100,
			expected:  [][]byte{[]byte("Hello, world!")},
		},
		{
			name:      "empty input",
			data:      []byte{},
			chunkSize: 10,
			expected:  [][]byte{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cr := ioutil.NewChunkReader(bytes.NewReader(tc.data), tc.chunkSize)
			var chunks [][]byte
			for {
				chunk, err := cr.Next()
				if err != nil {
					if !errors.Is(err, io.EOF) {
						t.Fatalf("unexpected error: %v", err)
					}
					break
				}
				chunks = append(chunks, chunk)
			}
			if len(chunks) != len(tc.expected) {
				t.Fatalf("got %d chunks, want %d", len(chunks), len(tc.expected))
			}
			for i, want := range tc.expected {
				if !bytes.Equal(chunks[i], want) {
					t.Errorf("chunk %d = %q, want %q", i, chunks[i], want)
				}
			}
		})
	}
}
