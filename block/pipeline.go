package block

import (
	"github.com/byte271/sixcy/codec"
	sixcrypto "github.com/byte271/sixcy/crypto"
	"github.com/byte271/sixcy/errs"
	"github.com/zeebo/blake3"
)

// sum256 computes the BLAKE3 content hash used for both block content
// hashes and the index root hash.
func sum256(data []byte) [ContentHashSize]byte {
	h := blake3.New()
	h.Write(data)
	var out [ContentHashSize]byte
	copy(out[:], h.Sum(nil))
	return out
}

// EncodeResult is the product of Encode: a header plus its on-disk
// payload bytes, ready to be written header-then-payload.
type EncodeResult struct {
	Header  Header
	Payload []byte
}

// EncodeParams controls how a single block is produced from a chunk of
// file plaintext.
type EncodeParams struct {
	BlockType  Type
	CodecUUID  codec.UUID
	Level      int
	FileID     uint32
	FileOffset uint64
	Key        *[sixcrypto.KeySize]byte // nil disables encryption
}

// Encode runs the strict five-step pipeline of spec.md §4.3: hash the
// plaintext, compress, optionally encrypt, then fill the header (its
// CRC32 is computed when Header.Marshal serializes it). Callers are
// responsible for the dedup-table lookup that
// precedes this (a CAS hit must skip Encode entirely and emit only a
// BlockRef).
func Encode(reg *codec.Registry, plaintext []byte, p EncodeParams) (*EncodeResult, error) {
	if len(plaintext) > 1<<32-1 {
		return nil, errs.New(errs.KindOutOfRange, "plaintext exceeds 4GiB single-block cap")
	}

	contentHash := sum256(plaintext)

	c, ok := reg.Lookup(p.CodecUUID)
	if !ok {
		return nil, errs.New(errs.KindUnknownCodec, "codec not registered for encode")
	}
	compressed, err := c.Compress(plaintext, p.Level)
	if err != nil {
		return nil, errs.Wrap(err, errs.KindCodecFailure, "compress")
	}

	payload := compressed
	var flags uint16
	if p.Key != nil {
		sealed, err := sixcrypto.Encrypt(*p.Key, compressed)
		if err != nil {
			return nil, errs.Wrap(err, errs.KindCodecFailure, "encrypt block payload")
		}
		payload = sealed
		flags |= FlagEncrypted
	}

	h := Header{
		BlockType:   p.BlockType,
		Flags:       flags,
		CodecUUID:   p.CodecUUID,
		FileID:      p.FileID,
		FileOffset:  p.FileOffset,
		OrigSize:    uint32(len(plaintext)),
		CompSize:    uint32(len(payload)),
		ContentHash: contentHash,
	}
	return &EncodeResult{Header: h, Payload: payload}, nil
}

// Decode reverses Encode: verify header fields, optionally decrypt,
// decompress, then verify the decompressed length and content hash
// against the header. Any mismatch at any step is fatal.
func Decode(reg *codec.Registry, h *Header, payload []byte, key *[sixcrypto.KeySize]byte) ([]byte, error) {
	if uint32(len(payload)) != h.CompSize {
		return nil, errs.New(errs.KindTruncated, "payload size does not match comp_size")
	}

	c, ok := reg.Lookup(h.CodecUUID)
	if !ok {
		return nil, errs.New(errs.KindUnknownCodec, "codec not registered for decode")
	}

	compressed := payload
	if h.Encrypted() {
		if key == nil {
			return nil, errs.New(errs.KindAuthFailed, "block is encrypted but no key supplied")
		}
		plain, err := sixcrypto.Decrypt(*key, payload)
		if err != nil {
			return nil, err // already errs.KindAuthFailed
		}
		compressed = plain
	}

	out, err := c.Decompress(compressed, int(h.OrigSize))
	if err != nil {
		return nil, errs.Wrap(err, errs.KindCodecFailure, "decompress")
	}
	if uint32(len(out)) != h.OrigSize {
		return nil, errs.New(errs.KindContentHash, "decompressed length does not match orig_size")
	}
	gotHash := sum256(out)
	if gotHash != h.ContentHash {
		return nil, errs.New(errs.KindContentHash, "content hash mismatch")
	}
	return out, nil
}
