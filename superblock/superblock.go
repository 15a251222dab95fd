// Package superblock implements the fixed 256-byte header at offset 0
// of every .6cy archive.
package superblock

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/byte271/sixcy/codec"
	"github.com/byte271/sixcy/errs"
	"github.com/google/uuid"
)

// Size is the fixed on-disk size of a superblock.
const Size = 256

// Magic identifies a .6cy archive.
var Magic = [4]byte{'.', '6', 'c', 'y'}

// FormatVersion is the only wire format this module reads or writes.
const FormatVersion uint32 = 3

// MinFormatVersion is the oldest format version this module accepts on
// open.
const MinFormatVersion uint32 = 3

// MaxRequiredCodecs bounds how many codec UUIDs fit in the fixed-size
// header.
const MaxRequiredCodecs = 13

// FlagEncrypted is set when any block in the archive is encrypted.
const FlagEncrypted uint32 = 0x0001

// Superblock is the archive's 256-byte header.
type Superblock struct {
	FormatVersion       uint32
	ArchiveUUID         [16]byte
	Flags               uint32
	IndexOffset         uint64
	IndexSize           uint64
	RequiredCodecUUIDs  []codec.UUID
}

// New returns a fresh superblock with a random archive UUID.
func New() *Superblock {
	return &Superblock{
		FormatVersion: FormatVersion,
		ArchiveUUID:   uuid.New(),
		RequiredCodecUUIDs: nil,
	}
}

// Encrypted reports whether the encrypted flag bit is set.
func (s *Superblock) Encrypted() bool { return s.Flags&FlagEncrypted != 0 }

// AddRequiredCodec records uuid as needed to read this archive. The
// all-zero None codec is never recorded (every reader supports it
// trivially) and duplicates are ignored.
func (s *Superblock) AddRequiredCodec(id codec.UUID) error {
	if id.IsZero() {
		return nil
	}
	for _, existing := range s.RequiredCodecUUIDs {
		if existing == id {
			return nil
		}
	}
	if len(s.RequiredCodecUUIDs) >= MaxRequiredCodecs {
		return errs.New(errs.KindOutOfRange, "too many required codecs for superblock")
	}
	s.RequiredCodecUUIDs = append(s.RequiredCodecUUIDs, id)
	return nil
}

// CheckCodecs verifies that every codec this archive requires is
// registered in reg. Called from Read so an archive needing an
// unavailable codec fails at open time, before any block is touched.
func (s *Superblock) CheckCodecs(reg *codec.Registry) error {
	for _, id := range s.RequiredCodecUUIDs {
		if !reg.Has(id) {
			return errs.New(errs.KindUnknownCodec, "archive requires codec "+id.String()+" which is not registered")
		}
	}
	return nil
}

// uuidEnd returns the offset just past the last populated required
// codec UUID: the CRC32 covers exactly [0, uuidEnd).
func uuidEnd(codecCount int) int { return 46 + codecCount*16 }

// Marshal encodes the superblock to its fixed 256-byte wire form.
func (s *Superblock) Marshal() ([Size]byte, error) {
	var buf [Size]byte
	if len(s.RequiredCodecUUIDs) > MaxRequiredCodecs {
		return buf, errs.New(errs.KindOutOfRange, "too many required codecs")
	}
	copy(buf[0:4], Magic[:])
	binary.LittleEndian.PutUint32(buf[4:8], s.FormatVersion)
	copy(buf[8:24], s.ArchiveUUID[:])
	binary.LittleEndian.PutUint32(buf[24:28], s.Flags)
	binary.LittleEndian.PutUint64(buf[28:36], s.IndexOffset)
	binary.LittleEndian.PutUint64(buf[36:44], s.IndexSize)
	binary.LittleEndian.PutUint16(buf[44:46], uint16(len(s.RequiredCodecUUIDs)))
	off := 46
	for _, id := range s.RequiredCodecUUIDs {
		copy(buf[off:off+16], id[:])
		off += 16
	}
	end := uuidEnd(len(s.RequiredCodecUUIDs))
	crc := crc32.ChecksumIEEE(buf[0:end])
	binary.LittleEndian.PutUint32(buf[end:end+4], crc)
	return buf, nil
}

// Read parses and validates a 256-byte superblock, checking magic,
// format version, header CRC32, and (if reg is non-nil) that every
// required codec is available.
func Read(raw []byte, reg *codec.Registry) (*Superblock, error) {
	if len(raw) < Size {
		return nil, errs.New(errs.KindTruncated, "short superblock")
	}
	if string(raw[0:4]) != string(Magic[:]) {
		return nil, errs.New(errs.KindMagic, "bad superblock magic")
	}
	version := binary.LittleEndian.Uint32(raw[4:8])
	if version < MinFormatVersion || version != FormatVersion {
		return nil, errs.New(errs.KindFormatVersion, "unsupported format version")
	}

	s := &Superblock{FormatVersion: version}
	copy(s.ArchiveUUID[:], raw[8:24])
	s.Flags = binary.LittleEndian.Uint32(raw[24:28])
	s.IndexOffset = binary.LittleEndian.Uint64(raw[28:36])
	s.IndexSize = binary.LittleEndian.Uint64(raw[36:44])
	count := int(binary.LittleEndian.Uint16(raw[44:46]))
	if count > MaxRequiredCodecs {
		return nil, errs.New(errs.KindOutOfRange, "required_codec_count exceeds maximum")
	}
	end := uuidEnd(count)
	if len(raw) < end+4 {
		return nil, errs.New(errs.KindTruncated, "superblock codec list truncated")
	}
	off := 46
	seen := make(map[codec.UUID]bool, count)
	for i := 0; i < count; i++ {
		var id codec.UUID
		copy(id[:], raw[off:off+16])
		if seen[id] {
			return nil, errs.New(errs.KindOutOfRange, "duplicate required codec uuid")
		}
		seen[id] = true
		s.RequiredCodecUUIDs = append(s.RequiredCodecUUIDs, id)
		off += 16
	}

	gotCRC := binary.LittleEndian.Uint32(raw[end : end+4])
	wantCRC := crc32.ChecksumIEEE(raw[0:end])
	if gotCRC != wantCRC {
		return nil, errs.New(errs.KindHeaderCRC, "superblock checksum mismatch")
	}

	if reg != nil {
		if err := s.CheckCodecs(reg); err != nil {
			return nil, err
		}
	}
	return s, nil
}
