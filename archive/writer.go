package archive

import (
	"encoding/binary"
	"io"
	"os"
	"time"

	"github.com/byte271/sixcy/block"
	"github.com/byte271/sixcy/codec"
	sixcrypto "github.com/byte271/sixcy/crypto"
	"github.com/byte271/sixcy/errs"
	"github.com/byte271/sixcy/index"
	ioutil2 "github.com/byte271/sixcy/ioutil"
	"github.com/byte271/sixcy/superblock"
	"github.com/sirupsen/logrus"
)

// RecoveryCheckpoint records writer progress after one completed file,
// letting a reader forward-scan to a known-good position if the index
// is later lost.
type RecoveryCheckpoint struct {
	ArchiveOffset uint64 `json:"archive_offset"`
	LastFileID    uint32 `json:"last_file_id"`
	Timestamp     int64  `json:"timestamp"`
}

// RecoveryMap is the JSON blob appended after the INDEX block at
// finalize time.
type RecoveryMap struct {
	Checkpoints []RecoveryCheckpoint `json:"checkpoints"`
}

type dedupEntry struct {
	archiveOffset uint64
	compLen       uint64
}

// Writer implements the streaming .6cy archive write path: one call to
// AddFile per file, chunked and deduplicated against a CAS table, with
// a single Finalize call writing the INDEX block and patching the
// superblock. State machine: Fresh → WritingBlocks → [Solid] → Finalized.
type Writer struct {
	w          io.WriteSeeker
	Superblock *superblock.Superblock
	Index      index.FileIndex
	Recovery   RecoveryMap

	registry *codec.Registry
	log      *logrus.Entry

	chunkSize        int
	compressionLevel int
	encryptionKey    *[sixcrypto.KeySize]byte
	disableDedup     bool

	dedup map[[32]byte]dedupEntry

	solidBuffer     []byte
	solidCodec      *codec.UUID
	solidRanges     []solidRange

	finalized bool
}

type solidRange struct {
	fileID      uint32
	intraOffset uint64
	intraLength uint64
	contentHash [32]byte
}

// WriterOptions configures a new Writer.
type WriterOptions struct {
	ChunkSize        int
	CompressionLevel int
	EncryptionKey    *[sixcrypto.KeySize]byte
	Registry         *codec.Registry
	// DisableDedup skips the CAS table lookup/insert on every chunk,
	// trading a larger archive for a write path with no cross-chunk
	// bookkeeping.
	DisableDedup bool
}

// NewWriter creates a fresh archive on w, reserving the superblock's
// 256 bytes (overwritten with real values at Finalize).
func NewWriter(w io.WriteSeeker, opts WriterOptions) (*Writer, error) {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.CompressionLevel == 0 {
		opts.CompressionLevel = DefaultCompressionLevel
	}
	if opts.Registry == nil {
		opts.Registry = codec.DefaultRegistry
	}

	sb := superblock.New()
	if _, err := w.Seek(0, io.SeekStart); err != nil {
		return nil, errs.Wrap(err, errs.KindIO, "seek to start")
	}
	var reserved [superblock.Size]byte
	if _, err := w.Write(reserved[:]); err != nil {
		return nil, errs.Wrap(err, errs.KindIO, "reserve superblock")
	}

	return &Writer{
		w:                w,
		Superblock:       sb,
		registry:         opts.Registry,
		log:              logrus.WithField("component", "archive.writer"),
		chunkSize:        opts.ChunkSize,
		compressionLevel: opts.CompressionLevel,
		encryptionKey:    opts.EncryptionKey,
		disableDedup:     opts.DisableDedup,
		dedup:            make(map[[32]byte]dedupEntry),
	}, nil
}

func (wtr *Writer) streamPosition() (uint64, error) {
	pos, err := wtr.w.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, errs.Wrap(err, errs.KindIO, "stream position")
	}
	return uint64(pos), nil
}

func (wtr *Writer) writeBlock(h *block.Header, payload []byte) (uint64, error) {
	offset, err := wtr.streamPosition()
	if err != nil {
		return 0, err
	}
	raw := h.Marshal()
	if _, err := wtr.w.Write(raw[:]); err != nil {
		return 0, errs.Wrap(err, errs.KindIO, "write block header")
	}
	if _, err := wtr.w.Write(payload); err != nil {
		return 0, errs.Wrap(err, errs.KindIO, "write block payload")
	}
	return offset, nil
}

// StartSolidSession begins accumulating files into a single solid
// block compressed with codecUUID. Flushes any existing session first.
func (wtr *Writer) StartSolidSession(codecUUID codec.UUID) error {
	if err := wtr.FlushSolidSession(); err != nil {
		return err
	}
	c := codecUUID
	wtr.solidCodec = &c
	return nil
}

// FlushSolidSession compresses the accumulated solid buffer into one
// SOLID block and patches every pending file's BlockRefs with the
// block's archive offset and correct intra-range.
func (wtr *Writer) FlushSolidSession() error {
	if wtr.solidCodec == nil {
		return nil
	}
	c := *wtr.solidCodec
	wtr.solidCodec = nil

	if len(wtr.solidBuffer) == 0 {
		wtr.solidRanges = nil
		return nil
	}

	if err := wtr.Superblock.AddRequiredCodec(c); err != nil {
		return err
	}

	res, err := block.Encode(wtr.registry, wtr.solidBuffer, block.EncodeParams{
		BlockType: block.TypeSolid,
		CodecUUID: c,
		Level:     wtr.compressionLevel,
		FileID:    block.FileIDShared,
		Key:       wtr.encryptionKey,
	})
	if err != nil {
		return err
	}

	offset, err := wtr.writeBlock(&res.Header, res.Payload)
	if err != nil {
		return err
	}

	for _, r := range wtr.solidRanges {
		for i := range wtr.Index.Records {
			if wtr.Index.Records[i].ID == r.fileID {
				wtr.Index.Records[i].BlockRefs = append(wtr.Index.Records[i].BlockRefs, index.BlockRef{
					ContentHash:   r.contentHash,
					ArchiveOffset: offset,
					IntraOffset:   r.intraOffset,
					IntraLength:   r.intraLength,
				})
				wtr.Index.Records[i].CompressedSize = uint64(len(res.Payload))
				break
			}
		}
	}
	wtr.solidBuffer = nil
	wtr.solidRanges = nil
	return nil
}

// AddFile adds a file's full contents under name, using codecUUID.
//
// In solid mode (between StartSolidSession/FlushSolidSession), data
// accumulates in the shared buffer and its BlockRefs are filled by the
// next flush. Otherwise data is split into chunk_size pieces, each
// deduplicated against the CAS table before being compressed (and
// optionally encrypted) into its own DATA block.
func (wtr *Writer) AddFile(name string, data []byte, codecUUID codec.UUID) error {
	fileID := uint32(len(wtr.Index.Records))

	if wtr.solidCodec != nil {
		intraOffset := uint64(len(wtr.solidBuffer))
		contentHash := blake3Sum(data)
		wtr.solidRanges = append(wtr.solidRanges, solidRange{
			fileID:      fileID,
			intraOffset: intraOffset,
			intraLength: uint64(len(data)),
			contentHash: contentHash,
		})
		wtr.solidBuffer = append(wtr.solidBuffer, data...)
		wtr.Index.Records = append(wtr.Index.Records, index.FileIndexRecord{
			ID:           fileID,
			Name:         name,
			OriginalSize: uint64(len(data)),
		})
		return nil
	}

	if err := wtr.Superblock.AddRequiredCodec(codecUUID); err != nil {
		return err
	}

	rec := index.FileIndexRecord{
		ID:           fileID,
		Name:         name,
		OriginalSize: uint64(len(data)),
	}

	cr := ioutil2.NewChunkReader(bytesReader(data), wtr.chunkSize)
	var fileOffset uint64
	for {
		chunk, err := cr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errs.Wrap(err, errs.KindIO, "chunk file for writing")
		}
		if err := wtr.writeChunk(&rec, chunk, fileOffset, codecUUID); err != nil {
			return err
		}
		fileOffset += uint64(len(chunk))
	}

	pos, err := wtr.streamPosition()
	if err != nil {
		return err
	}
	wtr.Recovery.Checkpoints = append(wtr.Recovery.Checkpoints, RecoveryCheckpoint{
		ArchiveOffset: pos,
		LastFileID:    fileID,
		Timestamp:     checkpointTimestamp(),
	})

	wtr.Index.Records = append(wtr.Index.Records, rec)
	wtr.log.WithFields(logrus.Fields{"file": name, "id": fileID, "bytes": len(data)}).Debug("file written")
	return nil
}

func (wtr *Writer) writeChunk(rec *index.FileIndexRecord, chunk []byte, fileOffset uint64, codecUUID codec.UUID) error {
	contentHash := blake3Sum(chunk)

	if !wtr.disableDedup {
		if existing, hit := wtr.dedup[contentHash]; hit {
			rec.BlockRefs = append(rec.BlockRefs, index.BlockRef{
				ContentHash:   contentHash,
				ArchiveOffset: existing.archiveOffset,
			})
			rec.CompressedSize += existing.compLen
			return nil
		}
	}

	res, err := block.Encode(wtr.registry, chunk, block.EncodeParams{
		BlockType:  block.TypeData,
		CodecUUID:  codecUUID,
		Level:      wtr.compressionLevel,
		FileID:     rec.ID,
		FileOffset: fileOffset,
		Key:        wtr.encryptionKey,
	})
	if err != nil {
		return err
	}

	offset, err := wtr.writeBlock(&res.Header, res.Payload)
	if err != nil {
		return err
	}

	rec.CompressedSize += uint64(len(res.Payload))
	if !wtr.disableDedup {
		wtr.dedup[contentHash] = dedupEntry{archiveOffset: offset, compLen: uint64(len(res.Payload))}
	}
	rec.BlockRefs = append(rec.BlockRefs, index.BlockRef{
		ContentHash:   contentHash,
		ArchiveOffset: offset,
	})
	return nil
}

// AddFileStream ingests r directly without buffering the whole file in
// memory, using the same chunking/dedup path as AddFile. Inside a solid
// session, r is read in full and appended to the solid buffer.
func (wtr *Writer) AddFileStream(name string, r io.Reader, size uint64, codecUUID codec.UUID) error {
	if wtr.solidCodec != nil {
		data, err := io.ReadAll(r)
		if err != nil {
			return errs.Wrap(err, errs.KindIO, "read stream for solid session")
		}
		return wtr.AddFile(name, data, codecUUID)
	}

	fileID := uint32(len(wtr.Index.Records))
	if err := wtr.Superblock.AddRequiredCodec(codecUUID); err != nil {
		return err
	}
	rec := index.FileIndexRecord{ID: fileID, Name: name, OriginalSize: size}

	cr := ioutil2.NewChunkReader(r, wtr.chunkSize)
	var fileOffset uint64
	for {
		chunk, err := cr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errs.Wrap(err, errs.KindIO, "chunk stream for writing")
		}
		if err := wtr.writeChunk(&rec, chunk, fileOffset, codecUUID); err != nil {
			return err
		}
		fileOffset += uint64(len(chunk))
	}
	rec.OriginalSize = fileOffset

	pos, err := wtr.streamPosition()
	if err != nil {
		return err
	}
	wtr.Recovery.Checkpoints = append(wtr.Recovery.Checkpoints, RecoveryCheckpoint{
		ArchiveOffset: pos,
		LastFileID:    fileID,
		Timestamp:     checkpointTimestamp(),
	})
	wtr.Index.Records = append(wtr.Index.Records, rec)
	return nil
}

// AddFileFromPath ingests the file at path from disk under name, using
// the same chunking/dedup path as AddFileStream, and additionally
// collects real POSIX ownership/permission/xattr metadata via
// CollectPlatformMetadata, stashing the encoded blob under
// index.MetadataKey on the resulting record. This is the production
// path that exercises the platform-metadata supplement; AddFile and
// AddFileStream leave Metadata empty since neither has a filesystem
// path to stat.
func (wtr *Writer) AddFileFromPath(name, path string, codecUUID codec.UUID) error {
	f, err := os.Open(path)
	if err != nil {
		return errs.Wrap(err, errs.KindIO, "open file for ingestion")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return errs.Wrap(err, errs.KindIO, "stat file for ingestion")
	}
	meta, err := CollectPlatformMetadata(path, info)
	if err != nil {
		return err
	}

	fileID := uint32(len(wtr.Index.Records))
	if err := wtr.AddFileStream(name, f, uint64(info.Size()), codecUUID); err != nil {
		return err
	}
	return wtr.attachMetadata(fileID, meta)
}

// attachMetadata CBOR-encodes meta and stores it on the record
// identified by fileID, which must already be present in wtr.Index.
func (wtr *Writer) attachMetadata(fileID uint32, meta *index.PlatformMetadata) error {
	encoded, err := meta.Encode()
	if err != nil {
		return errs.Wrap(err, errs.KindCodecFailure, "encode platform metadata")
	}
	for i := range wtr.Index.Records {
		if wtr.Index.Records[i].ID != fileID {
			continue
		}
		if wtr.Index.Records[i].Metadata == nil {
			wtr.Index.Records[i].Metadata = make(map[string]string)
		}
		wtr.Index.Records[i].Metadata[index.MetadataKey] = encoded
		return nil
	}
	return errs.New(errs.KindOutOfRange, "no index record for file id")
}

// Finalize flushes any open solid session, writes the INDEX block
// (always Zstd, never encrypted), appends the recovery map, and
// patches the superblock at offset 0. Idempotent after success.
func (wtr *Writer) Finalize() error {
	if wtr.finalized {
		return nil
	}
	if err := wtr.FlushSolidSession(); err != nil {
		return err
	}

	wtr.Index.RootHash = wtr.Index.ComputeRootHash()

	indexPayload, err := wtr.Index.Marshal()
	if err != nil {
		return err
	}

	res, err := block.Encode(wtr.registry, indexPayload, block.EncodeParams{
		BlockType: block.TypeIndex,
		CodecUUID: index.IndexCodec,
		Level:     DefaultCompressionLevel,
		FileID:    block.FileIDShared,
	})
	if err != nil {
		return err
	}

	indexOffset, err := wtr.writeBlock(&res.Header, res.Payload)
	if err != nil {
		return err
	}

	recoveryBytes, err := marshalRecoveryMap(&wtr.Recovery)
	if err != nil {
		return err
	}
	var lenPrefix [8]byte
	binary.LittleEndian.PutUint64(lenPrefix[:], uint64(len(recoveryBytes)))
	if _, err := wtr.w.Write(lenPrefix[:]); err != nil {
		return errs.Wrap(err, errs.KindIO, "write recovery map length prefix")
	}
	if _, err := wtr.w.Write(recoveryBytes); err != nil {
		return errs.Wrap(err, errs.KindIO, "write recovery map")
	}

	wtr.Superblock.IndexOffset = indexOffset
	wtr.Superblock.IndexSize = uint64(len(res.Payload))
	if wtr.encryptionKey != nil {
		wtr.Superblock.Flags |= superblock.FlagEncrypted
	}

	if _, err := wtr.w.Seek(0, io.SeekStart); err != nil {
		return errs.Wrap(err, errs.KindIO, "seek to superblock")
	}
	sbBytes, err := wtr.Superblock.Marshal()
	if err != nil {
		return err
	}
	if _, err := wtr.w.Write(sbBytes[:]); err != nil {
		return errs.Wrap(err, errs.KindIO, "write superblock")
	}

	wtr.finalized = true
	wtr.log.WithField("files", len(wtr.Index.Records)).Info("archive finalized")
	return nil
}

func checkpointTimestamp() int64 { return time.Now().Unix() }

type byteReader struct {
	data []byte
	pos  int
}

func (b *byteReader) Read(p []byte) (int, error) {
	if b.pos >= len(b.data) {
		return 0, io.EOF
	}
	n := copy(p, b.data[b.pos:])
	b.pos += n
	return n, nil
}

func bytesReader(data []byte) io.Reader { return &byteReader{data: data} }
