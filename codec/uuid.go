package codec

import "fmt"

// ID names a built-in codec by its frozen short alias. Short IDs are
// process-local conveniences; they are never written to disk.
type ID uint16

const (
	IDNone ID = iota
	IDZstd
	IDLZ4
	IDBrotli
	IDLZMA
)

func (id ID) String() string {
	switch id {
	case IDNone:
		return "none"
	case IDZstd:
		return "zstd"
	case IDLZ4:
		return "lz4"
	case IDBrotli:
		return "brotli"
	case IDLZMA:
		return "lzma"
	default:
		return "unknown"
	}
}

// UUID is the 16-byte on-disk codec identity, stored verbatim in
// little-endian RFC4122 field order — it is never byte-swapped when
// read from or written to a block header.
type UUID [16]byte

// Frozen codec UUIDs, little-endian wire form. Canonical display forms
// are documented next to each.
var (
	// 00000000-0000-0000-0000-000000000000
	NoneUUID = UUID{}

	// b28a9d4f-5e3c-4a1b-8f2e-7c6d9b0e1a2f
	ZstdUUID = UUID{
		0x4f, 0x9d, 0x8a, 0xb2,
		0x3c, 0x5e,
		0x1b, 0x4a,
		0x8f, 0x2e,
		0x7c, 0x6d, 0x9b, 0x0e, 0x1a, 0x2f,
	}

	// 3f7b2c8e-1a4d-4e9f-b6c3-5d8a2f7e0b1c
	LZ4UUID = UUID{
		0x8e, 0x2c, 0x7b, 0x3f,
		0x4d, 0x1a,
		0x9f, 0x4e,
		0xb6, 0xc3,
		0x5d, 0x8a, 0x2f, 0x7e, 0x0b, 0x1c,
	}

	// 9c1e5f3a-7b2d-4c8e-a5f1-2e6b9d0c3a7f
	BrotliUUID = UUID{
		0x3a, 0x5f, 0x1e, 0x9c,
		0x2d, 0x7b,
		0x8e, 0x4c,
		0xa5, 0xf1,
		0x2e, 0x6b, 0x9d, 0x0c, 0x3a, 0x7f,
	}

	// 4a8f2e1c-9b3d-4f7a-c2e8-6d5b1a0f3c9e
	LZMAUUID = UUID{
		0x1c, 0x2e, 0x8f, 0x4a,
		0x3d, 0x9b,
		0x7a, 0x4f,
		0xc2, 0xe8,
		0x6d, 0x5b, 0x1a, 0x0f, 0x3c, 0x9e,
	}
)

// String renders a wire-order UUID back into its canonical RFC4122
// display form by undoing the little-endian field swap.
func (u UUID) String() string {
	b := u
	return fmt.Sprintf("%02x%02x%02x%02x-%02x%02x-%02x%02x-%02x%02x-%02x%02x%02x%02x%02x%02x",
		b[3], b[2], b[1], b[0],
		b[5], b[4],
		b[7], b[6],
		b[8], b[9],
		b[10], b[11], b[12], b[13], b[14], b[15],
	)
}

func (u UUID) IsZero() bool { return u == NoneUUID }
