package block

import (
	"hash/crc32"
	"testing"

	"github.com/byte271/sixcy/codec"
	"github.com/davecgh/go-spew/spew"
)

func TestHeaderMarshalUnmarshalRoundTrip(t *testing.T) {
	h := &Header{
		BlockType:   TypeData,
		Flags:       FlagEncrypted,
		CodecUUID:   codec.ZstdUUID,
		FileID:      42,
		FileOffset:  4096,
		OrigSize:    1000,
		CompSize:    600,
		ContentHash: [ContentHashSize]byte{1, 2, 3},
	}
	raw := h.Marshal()

	got, err := Unmarshal(raw[:])
	if err != nil {
		t.Fatalf("Unmarshal: %v\n%s", err, spew.Sdump(raw))
	}
	if got.BlockType != h.BlockType || got.FileID != h.FileID || got.FileOffset != h.FileOffset ||
		got.OrigSize != h.OrigSize || got.CompSize != h.CompSize || got.CodecUUID != h.CodecUUID ||
		got.ContentHash != h.ContentHash || got.Flags != h.Flags {
		t.Errorf("round trip mismatch: got %s, want %s", spew.Sdump(got), spew.Sdump(h))
	}
	if got.HeaderVersion != HeaderVersion || got.HeaderSize != HeaderSize {
		t.Errorf("Marshal must always stamp HeaderVersion=%d HeaderSize=%d", HeaderVersion, HeaderSize)
	}
	if !got.Encrypted() {
		t.Error("Encrypted() should be true when FlagEncrypted is set")
	}
}

func TestUnmarshalRejectsBadCRC(t *testing.T) {
	h := &Header{BlockType: TypeData, CodecUUID: codec.NoneUUID}
	raw := h.Marshal()
	raw[0] ^= 0xFF // corrupt a byte covered by the CRC

	if _, err := Unmarshal(raw[:]); err == nil {
		t.Fatal("Unmarshal must reject a header with a bad CRC")
	}
}

func TestUnmarshalRejectsBadMagicEvenWithMatchingCRC(t *testing.T) {
	h := &Header{BlockType: TypeData, CodecUUID: codec.NoneUUID}
	raw := h.Marshal()
	// Corrupt the magic and recompute the CRC to match, isolating the
	// magic check from the CRC check.
	raw[0] = 0x00
	crc := crc32.ChecksumIEEE(raw[:80])
	raw[80] = byte(crc)
	raw[81] = byte(crc >> 8)
	raw[82] = byte(crc >> 16)
	raw[83] = byte(crc >> 24)

	_, err := Unmarshal(raw[:])
	if err == nil {
		t.Fatal("Unmarshal must reject a header with bad magic")
	}
}

func TestUnmarshalRejectsShortHeader(t *testing.T) {
	if _, err := Unmarshal(make([]byte, 10)); err == nil {
		t.Fatal("Unmarshal must reject a header shorter than 84 bytes")
	}
}

func TestUnmarshalRejectsUnknownBlockType(t *testing.T) {
	h := &Header{BlockType: Type(99), CodecUUID: codec.NoneUUID}
	raw := h.Marshal()
	if _, err := Unmarshal(raw[:]); err == nil {
		t.Fatal("Unmarshal must reject an unknown block_type")
	}
}

func TestUnmarshalHonorsLargerHeaderSize(t *testing.T) {
	h := &Header{BlockType: TypeData, CodecUUID: codec.NoneUUID}
	raw := h.Marshal()
	// A future extended header would declare a larger header_size; this
	// module must accept that as long as the first 84 bytes are valid.
	extended := append(raw[:], make([]byte, 16)...)
	extended[6] = 100 // header_size = 100, little-endian low byte
	crc := crc32.ChecksumIEEE(extended[:80])
	extended[80] = byte(crc)
	extended[81] = byte(crc >> 8)
	extended[82] = byte(crc >> 16)
	extended[83] = byte(crc >> 24)

	got, err := Unmarshal(extended)
	if err != nil {
		t.Fatalf("Unmarshal should accept a larger declared header_size: %v", err)
	}
	if got.HeaderSize != 100 {
		t.Errorf("HeaderSize = %d, want 100", got.HeaderSize)
	}
}
