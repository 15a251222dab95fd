package codec

import "testing"

func TestUUIDStringCanonicalForm(t *testing.T) {
	tests := []struct {
		name string
		uuid UUID
		want string
	}{
		{"none", NoneUUID, "00000000-0000-0000-0000-000000000000"},
		{"zstd", ZstdUUID, "b28a9d4f-5e3c-4a1b-8f2e-7c6d9b0e1a2f"},
		{"lz4", LZ4UUID, "3f7b2c8e-1a4d-4e9f-b6c3-5d8a2f7e0b1c"},
		{"brotli", BrotliUUID, "9c1e5f3a-7b2d-4c8e-a5f1-2e6b9d0c3a7f"},
		{"lzma", LZMAUUID, "4a8f2e1c-9b3d-4f7a-c2e8-6d5b1a0f3c9e"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.uuid.String(); got != tc.want {
				t.Errorf("String() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestUUIDIsZero(t *testing.T) {
	if !NoneUUID.IsZero() {
		t.Error("NoneUUID.IsZero() = false, want true")
	}
	if ZstdUUID.IsZero() {
		t.Error("ZstdUUID.IsZero() = true, want false")
	}
}

func TestUUIDForRoundTrip(t *testing.T) {
	ids := []ID{IDNone, IDZstd, IDLZ4, IDBrotli, IDLZMA}
	for _, id := range ids {
		u, err := UUIDFor(id)
		if err != nil {
			t.Fatalf("UUIDFor(%v) error: %v", id, err)
		}
		got, ok := DefaultRegistry.ShortID(u)
		if !ok || got != id {
			t.Errorf("ShortID(UUIDFor(%v)) = %v, %v; want %v, true", id, got, ok, id)
		}
	}
}

func TestUUIDForUnknown(t *testing.T) {
	if _, err := UUIDFor(ID(999)); err == nil {
		t.Error("UUIDFor(999) should error for an unrecognized short id")
	}
}
