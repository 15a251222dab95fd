package recovery

import (
	"fmt"
	"io"
	"sort"

	"github.com/byte271/sixcy/archive"
	"github.com/byte271/sixcy/block"
	"github.com/byte271/sixcy/codec"
	sixcrypto "github.com/byte271/sixcy/crypto"
	"github.com/byte271/sixcy/errs"
	"github.com/sirupsen/logrus"
)

// ExtractRecoverable scans src and re-emits every healthy DATA block
// into a fresh archive written to dst, grouped and ordered by file,
// always re-compressed with Zstd regardless of the block's original
// codec. Returns the Report produced by scanning src.
func ExtractRecoverable(src io.ReadSeeker, dst io.WriteSeeker, decryptionKey *[sixcrypto.KeySize]byte) (*Report, error) {
	report, err := Scan(src, codec.DefaultRegistry)
	if err != nil {
		return nil, err
	}

	writer, err := archive.NewWriter(dst, archive.WriterOptions{
		ChunkSize:        archive.DefaultChunkSize,
		CompressionLevel: archive.DefaultCompressionLevel,
	})
	if err != nil {
		return nil, err
	}

	byFile := make(map[uint32][]ScannedBlock)
	for _, sb := range report.BlockLog {
		if !sb.IsUsable() || sb.Header.BlockType != block.TypeData {
			continue
		}
		byFile[sb.Header.FileID] = append(byFile[sb.Header.FileID], sb)
	}

	fileIDs := make([]uint32, 0, len(byFile))
	for fid := range byFile {
		fileIDs = append(fileIDs, fid)
	}
	sort.Slice(fileIDs, func(i, j int) bool { return fileIDs[i] < fileIDs[j] })

	for _, fid := range fileIDs {
		blocks := byFile[fid]
		sort.Slice(blocks, func(i, j int) bool { return blocks[i].Header.FileOffset < blocks[j].Header.FileOffset })

		name := fmt.Sprintf("recovered_file_%08x", fid)
		var data []byte
		for _, sb := range blocks {
			if _, err := src.Seek(int64(sb.ArchiveOffset)+int64(block.HeaderSize), io.SeekStart); err != nil {
				return nil, errs.Wrap(err, errs.KindIO, "seek to recoverable payload")
			}
			payload := make([]byte, sb.Header.CompSize)
			if _, err := io.ReadFull(src, payload); err != nil {
				return nil, errs.Wrap(err, errs.KindIO, "read recoverable payload")
			}
			chunk, derr := block.Decode(codec.DefaultRegistry, sb.Header, payload, decryptionKey)
			if derr != nil {
				// decompression failed despite a healthy header: skip this
				// chunk, not the whole file.
				logrus.WithField("file_id", fid).Warn("skipping chunk that failed to decode during recovery")
				continue
			}
			data = append(data, chunk...)
		}

		if len(data) > 0 {
			if err := writer.AddFile(name, data, codec.ZstdUUID); err != nil {
				return nil, err
			}
		}
	}

	if err := writer.Finalize(); err != nil {
		return nil, err
	}
	return report, nil
}

