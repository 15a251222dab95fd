package recovery

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/byte271/sixcy/archive"
	"github.com/byte271/sixcy/block"
	"github.com/byte271/sixcy/codec"
	"github.com/byte271/sixcy/superblock"
	"github.com/davecgh/go-spew/spew"
)

// memWriter is a minimal growable io.WriteSeeker, the stand-in for a
// real archive file used to build fixtures for the scanner tests.
type memWriter struct {
	buf []byte
	pos int
}

func (m *memWriter) Write(p []byte) (int, error) {
	end := m.pos + len(p)
	if end > len(m.buf) {
		grown := make([]byte, end)
		copy(grown, m.buf)
		m.buf = grown
	}
	n := copy(m.buf[m.pos:end], p)
	m.pos += n
	return n, nil
}

func (m *memWriter) Seek(offset int64, whence int) (int64, error) {
	var base int
	switch whence {
	case 0:
		base = 0
	case 1:
		base = m.pos
	case 2:
		base = len(m.buf)
	}
	m.pos = base + int(offset)
	return int64(m.pos), nil
}

func buildArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	mw := &memWriter{}
	w, err := archive.NewWriter(mw, archive.WriterOptions{})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	for name, content := range files {
		if err := w.AddFile(name, []byte(content), codec.ZstdUUID); err != nil {
			t.Fatalf("AddFile(%s): %v", name, err)
		}
	}
	if err := w.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	return mw.buf
}

func TestScanHealthyArchiveIsFullQuality(t *testing.T) {
	raw := buildArchive(t, map[string]string{"a.txt": "aaaa", "b.txt": "bbbb"})

	report, err := Scan(bytes.NewReader(raw), codec.DefaultRegistry)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if report.Quality != Full {
		t.Errorf("Quality = %v, want Full\n%s", report.Quality, spew.Sdump(report))
	}
	if report.HealthyBlocks == 0 {
		t.Error("HealthyBlocks should be non-zero for a clean archive")
	}
	if len(report.Index.Records) != 2 {
		t.Errorf("len(Index.Records) = %d, want 2", len(report.Index.Records))
	}
	if report.HealthPct() <= 0 {
		t.Errorf("HealthPct() = %v, want > 0", report.HealthPct())
	}
}

func TestScanDetectsCorruptHeaderAndResyncs(t *testing.T) {
	raw := buildArchive(t, map[string]string{"a.txt": "aaaa", "b.txt": "bbbb"})

	// Corrupt the first DATA block's header (right after the 256-byte
	// superblock) without destroying the rest of the stream.
	corrupted := append([]byte(nil), raw...)
	corrupted[256] ^= 0xFF

	report, err := Scan(bytes.NewReader(corrupted), codec.DefaultRegistry)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if report.CorruptBlocks == 0 {
		t.Error("expected at least one corrupt block to be detected")
	}
	foundCorrupt := false
	for _, sb := range report.BlockLog {
		if sb.Health == HeaderCorrupt {
			foundCorrupt = true
			if sb.IsUsable() {
				t.Error("a HeaderCorrupt block must never be usable")
			}
		}
	}
	if !foundCorrupt {
		t.Error("BlockLog should contain a HeaderCorrupt entry")
	}
}

func TestScanDetectsTruncatedPayload(t *testing.T) {
	// Incompressible content so the DATA block's comp_size stays large
	// and a small truncation inside its payload is unambiguous.
	incompressible := make([]byte, 5000)
	rand.New(rand.NewSource(1)).Read(incompressible)
	mw := &memWriter{}
	w, err := archive.NewWriter(mw, archive.WriterOptions{})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.AddFile("big.bin", incompressible, codec.ZstdUUID); err != nil {
		t.Fatalf("AddFile: %v", err)
	}
	if err := w.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	cut := superblock.Size + int(block.HeaderSize) + 50
	truncated := mw.buf[:cut]

	report, err := Scan(bytes.NewReader(truncated), codec.DefaultRegistry)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if report.TruncatedBlocks == 0 {
		t.Errorf("expected a TruncatedPayload classification\n%s", spew.Sdump(report.BlockLog))
	}
}

func TestScanEmptyStreamIsCatastrophic(t *testing.T) {
	report, err := Scan(bytes.NewReader(make([]byte, block.HeaderSize)), codec.DefaultRegistry)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if report.Quality != Catastrophic {
		t.Errorf("Quality = %v, want Catastrophic for a stream with no blocks", report.Quality)
	}
}

func TestScanUnknownCodecClassification(t *testing.T) {
	pluginUUID := codec.UUID{0xaa, 0xbb, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14}
	writerReg := codec.NewRegistry()
	if err := writerReg.Register(codec.Descriptor{
		UUID:          pluginUUID,
		ShortID:       codec.ID(200),
		ABIVersion:    codec.PluginABIVersion,
		Compress:      func(in []byte, level int) ([]byte, error) { return in, nil },
		Decompress:    func(in []byte, sizeHint int) ([]byte, error) { return in, nil },
		CompressBound: func(n int) int { return n },
	}); err != nil {
		t.Fatalf("Register plugin codec: %v", err)
	}

	mw := &memWriter{}
	w, err := archive.NewWriter(mw, archive.WriterOptions{Registry: writerReg})
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.AddFile("a.txt", []byte("aaaa"), pluginUUID); err != nil {
		t.Fatalf("AddFile: %v", err)
	}
	if err := w.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	// Scan with DefaultRegistry, which never learned about pluginUUID.
	report, err := Scan(bytes.NewReader(mw.buf), codec.DefaultRegistry)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if report.UnknownCodecBlocks == 0 {
		t.Error("expected at least one UnknownCodec classification for the plugin-only codec")
	}
}
