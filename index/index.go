// Package index implements the .6cy archive's FileIndex: the JSON
// document listing every file, its block references, and the archive's
// root hash.
package index

import (
	"encoding/json"
	"fmt"

	"github.com/byte271/sixcy/codec"
	"github.com/byte271/sixcy/errs"
	"github.com/zeebo/blake3"
)

// SyntheticFileName is the naming convention used by forward-scan
// reconstruction (recovery.Scan, archive.ScanBlocks) when a file's real
// name is unknown because the INDEX block was never read.
func SyntheticFileName(fileID uint32) string {
	return fmt.Sprintf("file_%08x", fileID)
}

// BlockRef points at the on-disk location of one block (or, for a
// SOLID block, a slice of one) holding a chunk of a file's content.
type BlockRef struct {
	ContentHash  [32]byte `json:"content_hash"`
	ArchiveOffset uint64  `json:"archive_offset"`
	IntraOffset  uint64   `json:"intra_offset,omitempty"`
	IntraLength  uint64   `json:"intra_length,omitempty"`
}

// IsSolidSlice reports whether this BlockRef names a byte range inside
// a shared SOLID block rather than a whole dedicated DATA block.
func (b BlockRef) IsSolidSlice() bool { return b.IntraLength > 0 }

// FileIndexRecord describes one archived file.
type FileIndexRecord struct {
	ID               uint32            `json:"id"`
	ParentID         uint32            `json:"parent_id"`
	Name             string            `json:"name"`
	BlockRefs        []BlockRef        `json:"block_refs"`
	OriginalSize     uint64            `json:"original_size"`
	CompressedSize   uint64            `json:"compressed_size"`
	Metadata         map[string]string `json:"metadata,omitempty"`

	// DegradedIntegrity is set when this record was parsed from the
	// legacy offsets-only index shim: its BlockRefs carry zero
	// content hashes and integrity degrades to header CRC only.
	DegradedIntegrity bool `json:"-"`
}

// legacyRecord mirrors a pre-v3 record that stored bare block offsets
// instead of full BlockRefs.
type legacyRecord struct {
	ID             uint32            `json:"id"`
	ParentID       uint32            `json:"parent_id"`
	Name           string            `json:"name"`
	Offsets        []uint64          `json:"offsets"`
	OriginalSize   uint64            `json:"original_size"`
	CompressedSize uint64            `json:"compressed_size"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// UnmarshalJSON accepts either the current block_refs form or the
// legacy offsets form (accepted on read, never emitted by this
// module's writer).
func (r *FileIndexRecord) UnmarshalJSON(data []byte) error {
	type alias FileIndexRecord
	var a alias
	if err := json.Unmarshal(data, &a); err == nil && !hasOffsetsField(data) {
		*r = FileIndexRecord(a)
		return nil
	}
	var legacy legacyRecord
	if err := json.Unmarshal(data, &legacy); err != nil {
		return errs.Wrap(err, errs.KindIndexParse, "file index record")
	}
	r.ID = legacy.ID
	r.ParentID = legacy.ParentID
	r.Name = legacy.Name
	r.OriginalSize = legacy.OriginalSize
	r.CompressedSize = legacy.CompressedSize
	r.Metadata = legacy.Metadata
	r.DegradedIntegrity = true
	r.BlockRefs = make([]BlockRef, len(legacy.Offsets))
	for i, off := range legacy.Offsets {
		r.BlockRefs[i] = BlockRef{ArchiveOffset: off}
	}
	return nil
}

// hasOffsetsField reports whether data carries the legacy
// offsets-only shim's "offsets" key. A current-form v3 record never
// writes this key, even for a zero-block file whose block_refs
// marshals to null, so this is the only reliable signal that a record
// needs the degraded legacy path rather than block_refs being present
// or non-empty.
func hasOffsetsField(data []byte) bool {
	var probe struct {
		Offsets json.RawMessage `json:"offsets"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return false
	}
	return len(probe.Offsets) > 0
}

// FileIndex is the complete index document, serialized as JSON,
// Zstd-compressed, and stored unencrypted in the archive's INDEX block.
type FileIndex struct {
	Records  []FileIndexRecord `json:"records"`
	RootHash [32]byte          `json:"root_hash"`
}

// ComputeRootHash recomputes RootHash as the BLAKE3 digest over the
// concatenation of every BlockRef.ContentHash, in record order and then
// block order.
func (fi *FileIndex) ComputeRootHash() [32]byte {
	h := blake3.New()
	for _, rec := range fi.Records {
		for _, ref := range rec.BlockRefs {
			h.Write(ref.ContentHash[:])
		}
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Marshal serializes the index to JSON.
func (fi *FileIndex) Marshal() ([]byte, error) {
	b, err := json.Marshal(fi)
	if err != nil {
		return nil, errs.Wrap(err, errs.KindIndexParse, "marshal file index")
	}
	return b, nil
}

// Unmarshal parses a JSON-encoded FileIndex.
func Unmarshal(data []byte) (*FileIndex, error) {
	var fi FileIndex
	if err := json.Unmarshal(data, &fi); err != nil {
		return nil, errs.Wrap(err, errs.KindIndexParse, "unmarshal file index")
	}
	return &fi, nil
}

// IndexCodec is the codec always used to compress the INDEX block,
// independent of any per-archive default codec.
var IndexCodec = codec.ZstdUUID
