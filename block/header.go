// Package block implements the 84-byte .6cy block header and the
// strict-order encode/decode pipeline that turns file chunks into
// on-disk blocks and back.
package block

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/byte271/sixcy/codec"
	"github.com/byte271/sixcy/errs"
)

// HeaderMagic identifies a block header ("BLCK").
const HeaderMagic uint32 = 0x424C434B

// HeaderVersion is the only header layout version this module writes.
const HeaderVersion uint16 = 1

// HeaderSize is the on-disk size of a header this module writes.
// Readers honor a larger header_size declared by the file (skipping the
// extension bytes as unknown), but always emit this value.
const HeaderSize uint16 = 84

// Type identifies what a block carries.
type Type uint16

const (
	TypeData  Type = 0
	TypeIndex Type = 1
	TypeSolid Type = 2
)

// Flag bits in Header.Flags.
const (
	FlagEncrypted uint16 = 0x0001
)

// FileIDShared is the sentinel file_id used by INDEX and SOLID blocks,
// which are not associated with a single file.
const FileIDShared uint32 = 0xFFFFFFFF

// ContentHashSize is the BLAKE3 digest length used for content_hash.
const ContentHashSize = 32

// Header is the 84-byte block header. HeaderCRC32 is computed and
// verified internally (see Marshal/Unmarshal) and intentionally has no
// exported setter, so callers cannot construct a header with a stale or
// forged checksum.
type Header struct {
	HeaderVersion uint16
	HeaderSize    uint16
	BlockType     Type
	Flags         uint16
	CodecUUID     codec.UUID
	FileID        uint32
	FileOffset    uint64
	OrigSize      uint32
	CompSize      uint32
	ContentHash   [ContentHashSize]byte

	headerCRC32 uint32
}

func (h *Header) Encrypted() bool { return h.Flags&FlagEncrypted != 0 }

// marshalPrefix writes everything but the trailing header_crc32 field,
// i.e. bytes [0, 80).
func (h *Header) marshalPrefix(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], HeaderMagic)
	binary.LittleEndian.PutUint16(buf[4:6], h.HeaderVersion)
	binary.LittleEndian.PutUint16(buf[6:8], h.HeaderSize)
	binary.LittleEndian.PutUint16(buf[8:10], uint16(h.BlockType))
	binary.LittleEndian.PutUint16(buf[10:12], h.Flags)
	copy(buf[12:28], h.CodecUUID[:])
	binary.LittleEndian.PutUint32(buf[28:32], h.FileID)
	binary.LittleEndian.PutUint64(buf[32:40], h.FileOffset)
	binary.LittleEndian.PutUint32(buf[40:44], h.OrigSize)
	binary.LittleEndian.PutUint32(buf[44:48], h.CompSize)
	copy(buf[48:80], h.ContentHash[:])
}

// Marshal encodes the full 84-byte header, computing header_crc32 over
// bytes [0, 80).
func (h *Header) Marshal() [HeaderSize]byte {
	var buf [HeaderSize]byte
	h.HeaderVersion = HeaderVersion
	h.HeaderSize = HeaderSize
	h.marshalPrefix(buf[:80])
	h.headerCRC32 = crc32.ChecksumIEEE(buf[:80])
	binary.LittleEndian.PutUint32(buf[80:84], h.headerCRC32)
	return buf
}

// Unmarshal parses a header from raw bytes, which must be at least 84
// bytes (the caller is responsible for reading header_size bytes total
// and passing along any extension bytes separately). It verifies the
// magic and the CRC32 before returning.
func Unmarshal(raw []byte) (*Header, error) {
	if len(raw) < int(HeaderSize) {
		return nil, errs.New(errs.KindTruncated, "short block header")
	}
	gotCRC := binary.LittleEndian.Uint32(raw[80:84])
	wantCRC := crc32.ChecksumIEEE(raw[0:80])
	if gotCRC != wantCRC {
		return nil, errs.New(errs.KindHeaderCRC, "block header checksum mismatch")
	}
	magic := binary.LittleEndian.Uint32(raw[0:4])
	if magic != HeaderMagic {
		return nil, errs.New(errs.KindMagic, "bad block magic")
	}
	h := &Header{
		HeaderVersion: binary.LittleEndian.Uint16(raw[4:6]),
		HeaderSize:    binary.LittleEndian.Uint16(raw[6:8]),
		BlockType:     Type(binary.LittleEndian.Uint16(raw[8:10])),
		Flags:         binary.LittleEndian.Uint16(raw[10:12]),
		FileID:        binary.LittleEndian.Uint32(raw[28:32]),
		FileOffset:    binary.LittleEndian.Uint64(raw[32:40]),
		OrigSize:      binary.LittleEndian.Uint32(raw[40:44]),
		CompSize:      binary.LittleEndian.Uint32(raw[44:48]),
		headerCRC32:   gotCRC,
	}
	copy(h.CodecUUID[:], raw[12:28])
	copy(h.ContentHash[:], raw[48:80])

	if h.HeaderSize < HeaderSize {
		return nil, errs.New(errs.KindOutOfRange, "header_size below minimum 84")
	}
	if h.BlockType > TypeSolid {
		return nil, errs.New(errs.KindOutOfRange, "unknown block_type")
	}
	return h, nil
}
