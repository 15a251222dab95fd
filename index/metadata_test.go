package index

import "testing"

func TestPlatformMetadataEncodeDecodeRoundTrip(t *testing.T) {
	m := &PlatformMetadata{
		Common: &CommonMetadata{
			FileSize:    MakePointer(uint64(4096)),
			ModTimeUnix: MakePointer(int64(1700000000)),
			Mode:        MakePointer(uint32(0o644)),
		},
		Linux: &LinuxMetadata{
			POSIX: &POSIXMetadata{
				UID:   MakePointer(uint32(1000)),
				GID:   MakePointer(uint32(1000)),
				Nlink: MakePointer(uint32(1)),
			},
			Xattr: map[string][]byte{
				"user.comment": []byte("hello"),
			},
		},
	}

	encoded, err := m.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if encoded == "" {
		t.Fatal("Encode returned an empty string")
	}

	got, err := DecodeMetadata(encoded)
	if err != nil {
		t.Fatalf("DecodeMetadata: %v", err)
	}
	if got.Common == nil || *got.Common.FileSize != 4096 {
		t.Fatalf("Common.FileSize not round-tripped, got %+v", got.Common)
	}
	if got.Linux == nil || got.Linux.POSIX == nil || *got.Linux.POSIX.UID != 1000 {
		t.Fatalf("Linux.POSIX.UID not round-tripped, got %+v", got.Linux)
	}
	if string(got.Linux.Xattr["user.comment"]) != "hello" {
		t.Errorf("xattr not round-tripped: got %q", got.Linux.Xattr["user.comment"])
	}
	if got.Darwin != nil || got.WinNT != nil {
		t.Error("unset platform branches must decode as nil, not zero-valued structs")
	}
}

func TestDecodeMetadataRejectsBadHex(t *testing.T) {
	if _, err := DecodeMetadata("not valid hex!!"); err == nil {
		t.Fatal("DecodeMetadata must reject non-hex input")
	}
}

func TestMakePointer(t *testing.T) {
	p := MakePointer(42)
	if p == nil || *p != 42 {
		t.Errorf("MakePointer(42) = %v, want pointer to 42", p)
	}
}
