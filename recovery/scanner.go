// Package recovery implements the .6cy forward-scan recovery path: a
// reconstruction of an archive's file list and block health from the
// raw block stream, used when the INDEX block is missing or corrupt.
package recovery

import (
	"encoding/hex"
	"io"
	"sort"

	"github.com/byte271/sixcy/block"
	"github.com/byte271/sixcy/codec"
	"github.com/byte271/sixcy/errs"
	"github.com/byte271/sixcy/index"
	"github.com/byte271/sixcy/superblock"
	"github.com/sirupsen/logrus"
)

// Health is the verdict for one scanned block.
type Health int

const (
	Healthy Health = iota
	HeaderCorrupt
	TruncatedPayload
	UnknownCodec
)

// IsUsable reports whether a block can be safely re-read.
func (h Health) IsUsable() bool { return h == Healthy }

// ScannedBlock is a diagnostic record for one scanned block position.
type ScannedBlock struct {
	ArchiveOffset uint64
	Header        *block.Header // nil when the header itself failed to parse
	Health        Health

	// Populated for TruncatedPayload.
	DeclaredSize   uint32
	AvailableBytes uint64
	// Populated for UnknownCodec.
	UnknownUUIDHex string
}

// IsUsable mirrors the Rust reference's ScannedBlock::is_usable: health
// must be Healthy AND the header must have parsed.
func (sb ScannedBlock) IsUsable() bool {
	return sb.Health.IsUsable() && sb.Header != nil
}

// Quality rates the overall reliability of a recovery scan.
type Quality int

const (
	Full Quality = iota
	Partial
	HeaderOnly
	Catastrophic
)

func (q Quality) String() string {
	switch q {
	case Full:
		return "full"
	case Partial:
		return "partial"
	case HeaderOnly:
		return "header_only"
	default:
		return "catastrophic"
	}
}

// Report is the complete result of a Scan.
type Report struct {
	TotalScanned        int
	HealthyBlocks       int
	CorruptBlocks       int
	TruncatedBlocks     int
	UnknownCodecBlocks  int
	BytesScanned        uint64
	BlockLog            []ScannedBlock
	Index               index.FileIndex
	RecoverableBytes    uint64
	Quality             Quality
}

// HealthPct returns the percentage (0-100) of scanned blocks that were
// healthy; an empty scan reports 100 as a display-only convenience.
func (r *Report) HealthPct() float64 {
	if r.TotalScanned == 0 {
		return 100.0
	}
	return float64(r.HealthyBlocks) / float64(r.TotalScanned) * 100.0
}

// Scan performs the forward-scan reconstruction described in spec.md
// §4.7: read from offset 256, classify every block's health, and
// rebuild a (possibly partial) FileIndex from the healthy DATA blocks.
// Only genuine I/O errors propagate; corrupt/truncated/unknown-codec
// blocks are encoded in the returned Report instead of failing the
// call.
func Scan(r io.ReadSeeker, reg *codec.Registry) (*Report, error) {
	if reg == nil {
		reg = codec.DefaultRegistry
	}
	fileSize, err := streamSize(r)
	if err != nil {
		return nil, err
	}

	if _, err := r.Seek(superblock.Size, io.SeekStart); err != nil {
		return nil, errs.Wrap(err, errs.KindIO, "seek past superblock")
	}

	type posRef struct {
		offset uint64
		ref    index.BlockRef
	}
	chunks := make(map[uint32][]posRef)
	origSizes := make(map[uint32]uint64)

	rpt := &Report{BytesScanned: superblock.Size}

	for {
		pos, serr := r.Seek(0, io.SeekCurrent)
		if serr != nil {
			break
		}
		var hdrBuf [block.HeaderSize]byte
		n, rerr := io.ReadFull(r, hdrBuf[:])
		if n == 0 && rerr == io.EOF {
			break
		}
		rpt.BytesScanned += uint64(n)
		rpt.TotalScanned++

		if rerr != nil {
			// short/garbage read at EOF: treat as corrupt tail, stop.
			rpt.CorruptBlocks++
			rpt.BlockLog = append(rpt.BlockLog, ScannedBlock{ArchiveOffset: uint64(pos), Health: HeaderCorrupt})
			break
		}

		h, perr := block.Unmarshal(hdrBuf[:])
		if perr != nil {
			rpt.CorruptBlocks++
			rpt.BlockLog = append(rpt.BlockLog, ScannedBlock{ArchiveOffset: uint64(pos), Health: HeaderCorrupt})
			// resync: seek forward exactly 1 byte from the failed position
			if _, err := r.Seek(pos+1, io.SeekStart); err != nil {
				break
			}
			rpt.BytesScanned = uint64(pos) + 1 + uint64(block.HeaderSize)
			continue
		}

		if extra := int64(h.HeaderSize) - int64(block.HeaderSize); extra > 0 {
			if _, err := io.CopyN(io.Discard, r, extra); err != nil {
				rpt.CorruptBlocks++
				rpt.BlockLog = append(rpt.BlockLog, ScannedBlock{ArchiveOffset: uint64(pos), Health: HeaderCorrupt})
				break
			}
			rpt.BytesScanned += uint64(extra)
		}

		sb := ScannedBlock{ArchiveOffset: uint64(pos), Header: h}

		if !reg.Has(h.CodecUUID) && !h.CodecUUID.IsZero() {
			rpt.UnknownCodecBlocks++
			sb.Health = UnknownCodec
			sb.UnknownUUIDHex = hex.EncodeToString(h.CodecUUID[:])
		} else {
			streamPos, serr := r.Seek(0, io.SeekCurrent)
			if serr != nil {
				return nil, errs.Wrap(serr, errs.KindIO, "stream position during scan")
			}
			var remaining uint64
			if fileSize > uint64(streamPos) {
				remaining = fileSize - uint64(streamPos)
			}
			if remaining < uint64(h.CompSize) {
				rpt.TruncatedBlocks++
				sb.Health = TruncatedPayload
				sb.DeclaredSize = h.CompSize
				sb.AvailableBytes = remaining
			} else {
				rpt.HealthyBlocks++
				rpt.RecoverableBytes += uint64(h.OrigSize)
				sb.Health = Healthy
			}
		}

		usable := sb.IsUsable() && h.BlockType == block.TypeData
		if usable {
			fid := h.FileID
			end := h.FileOffset + uint64(h.OrigSize)
			if end > origSizes[fid] {
				origSizes[fid] = end
			}
			chunks[fid] = append(chunks[fid], posRef{
				offset: h.FileOffset,
				ref: index.BlockRef{
					ContentHash:   h.ContentHash,
					ArchiveOffset: uint64(pos),
				},
			})
		}

		rpt.BlockLog = append(rpt.BlockLog, sb)

		if _, err := r.Seek(int64(h.CompSize), io.SeekCurrent); err != nil {
			break
		}
		rpt.BytesScanned += uint64(h.CompSize)

		if h.BlockType == block.TypeIndex {
			break
		}
	}

	var records []index.FileIndexRecord
	for fid, refs := range chunks {
		sort.Slice(refs, func(i, j int) bool { return refs[i].offset < refs[j].offset })
		blockRefs := make([]index.BlockRef, len(refs))
		for i, c := range refs {
			blockRefs[i] = c.ref
		}
		records = append(records, index.FileIndexRecord{
			ID:           fid,
			Name:         syntheticName(fid),
			BlockRefs:    blockRefs,
			OriginalSize: origSizes[fid],
		})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })

	rpt.Index = index.FileIndex{Records: records}
	rpt.Index.RootHash = rpt.Index.ComputeRootHash()

	rpt.Quality = classifyQuality(rpt)

	logrus.WithFields(logrus.Fields{
		"total":   rpt.TotalScanned,
		"healthy": rpt.HealthyBlocks,
		"quality": rpt.Quality.String(),
	}).Info("recovery scan complete")

	return rpt, nil
}

func classifyQuality(r *Report) Quality {
	if r.TotalScanned == 0 {
		return Catastrophic
	}
	if len(r.Index.Records) == 0 {
		return HeaderOnly
	}
	pct := float64(r.HealthyBlocks) / float64(r.TotalScanned)
	switch {
	case pct >= 0.95:
		return Full
	case pct >= 0.50:
		return Partial
	default:
		return Catastrophic
	}
}

func syntheticName(fileID uint32) string {
	return index.SyntheticFileName(fileID)
}

func streamSize(r io.ReadSeeker) (uint64, error) {
	cur, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, errs.Wrap(err, errs.KindIO, "stream position")
	}
	end, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, errs.Wrap(err, errs.KindIO, "seek to end")
	}
	if _, err := r.Seek(cur, io.SeekStart); err != nil {
		return 0, errs.Wrap(err, errs.KindIO, "restore stream position")
	}
	return uint64(end), nil
}
