package archive

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCollectPlatformMetadataPOSIXFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "probe.txt")
	if err := os.WriteFile(path, []byte("contents"), 0o640); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}

	m, err := CollectPlatformMetadata(path, info)
	if err != nil {
		t.Fatalf("CollectPlatformMetadata: %v", err)
	}
	if m.Common == nil || *m.Common.FileSize != uint64(info.Size()) {
		t.Fatalf("Common.FileSize not populated correctly: %+v", m.Common)
	}
	if m.Linux == nil || m.Linux.POSIX == nil {
		t.Fatal("Linux.POSIX should be populated on a POSIX host")
	}
	if m.Linux.Xattr == nil {
		t.Error("Linux.Xattr should be a non-nil (possibly empty) map")
	}

	encoded, err := m.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if encoded == "" {
		t.Error("Encode produced an empty string")
	}
}
