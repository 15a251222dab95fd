// Package archive implements the .6cy high-level embedding surface: a
// single Archive type wrapping either a Writer or a Reader, matching
// the archive's read/write lifecycle one to one.
package archive

import (
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/byte271/sixcy/codec"
	sixcrypto "github.com/byte271/sixcy/crypto"
	"github.com/byte271/sixcy/errs"
	"github.com/byte271/sixcy/index"
	"github.com/byte271/sixcy/superblock"
)

// PackOptions configures Create.
type PackOptions struct {
	DefaultCodec codec.UUID
	Level        int
	ChunkSize    int
	// Password, if set, AES-256-GCM-encrypts every DATA/SOLID block.
	// Key = Argon2id(password, salt=archive_uuid).
	Password     string
	DisableDedup bool
}

// DefaultPackOptions mirrors PackOptions::default(): Zstd, level 3,
// 4 MiB chunks, no encryption.
func DefaultPackOptions() PackOptions {
	return PackOptions{
		DefaultCodec: codec.ZstdUUID,
		Level:        DefaultCompressionLevel,
		ChunkSize:    DefaultChunkSize,
	}
}

// FromProfile builds PackOptions from a loaded Profile.
func FromProfile(p Profile) (PackOptions, error) {
	c, err := codecByName(p.DefaultCodec)
	if err != nil {
		return PackOptions{}, err
	}
	return PackOptions{
		DefaultCodec: c,
		Level:        p.Level,
		ChunkSize:    p.ChunkSize,
		DisableDedup: p.DisableDedup,
	}, nil
}

// FileInfo is the lightweight descriptor returned by List/Stat.
type FileInfo struct {
	ID                uint32
	Name              string
	OriginalSize      uint64
	CompressedSize    uint64
	BlockCount        int
	FirstBlockHash    *[32]byte
	DegradedIntegrity bool
}

func fileInfoFromRecord(r *index.FileIndexRecord) FileInfo {
	fi := FileInfo{
		ID:                r.ID,
		Name:              r.Name,
		OriginalSize:      r.OriginalSize,
		CompressedSize:    r.CompressedSize,
		BlockCount:        len(r.BlockRefs),
		DegradedIntegrity: r.DegradedIntegrity,
	}
	if len(r.BlockRefs) > 0 {
		h := r.BlockRefs[0].ContentHash
		fi.FirstBlockHash = &h
	}
	return fi
}

// Archive is the primary embedding surface: open it for reading or
// create it for writing, never both at once.
type Archive struct {
	path         string
	f            *os.File
	writer       *Writer
	reader       *Reader
	defaultCodec codec.UUID
}

// Open opens an existing unencrypted archive for reading.
func Open(path string) (*Archive, error) {
	return openWithPassword(path, "")
}

// OpenEncrypted opens an existing archive for reading, deriving the
// decryption key from password and the archive's own stored UUID.
func OpenEncrypted(path, password string) (*Archive, error) {
	if password == "" {
		return nil, errs.New(errs.KindAuthFailed, "OpenEncrypted requires a non-empty password")
	}
	return openWithPassword(path, password)
}

func openWithPassword(path, password string) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(err, errs.KindIO, "open archive file")
	}

	var key *[sixcrypto.KeySize]byte
	if password != "" {
		var sbBuf [superblock.Size]byte
		if _, err := f.ReadAt(sbBuf[:], 0); err != nil {
			f.Close()
			return nil, errs.Wrap(err, errs.KindTruncated, "read superblock for key derivation")
		}
		sb, err := superblock.Read(sbBuf[:], nil)
		if err != nil {
			f.Close()
			return nil, err
		}
		derived := sixcrypto.DeriveKey(password, sb.ArchiveUUID)
		key = &derived
	}

	reader, err := OpenReader(f, ReaderOptions{DecryptionKey: key})
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Archive{path: path, f: f, reader: reader}, nil
}

// Create starts a new archive for writing at path.
func Create(path string, opts PackOptions) (*Archive, error) {
	if opts.ChunkSize == 0 {
		opts = mergeDefaults(opts)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errs.Wrap(err, errs.KindIO, "create archive file")
	}

	writer, err := NewWriter(f, WriterOptions{
		ChunkSize:        opts.ChunkSize,
		CompressionLevel: opts.Level,
		DisableDedup:     opts.DisableDedup,
	})
	if err != nil {
		f.Close()
		return nil, err
	}

	if opts.Password != "" {
		derived := sixcrypto.DeriveKey(opts.Password, writer.Superblock.ArchiveUUID)
		writer.encryptionKey = &derived
	}

	return &Archive{path: path, f: f, writer: writer, defaultCodec: opts.DefaultCodec}, nil
}

func mergeDefaults(opts PackOptions) PackOptions {
	d := DefaultPackOptions()
	if opts.DefaultCodec == (codec.UUID{}) {
		opts.DefaultCodec = d.DefaultCodec
	}
	if opts.Level == 0 {
		opts.Level = d.Level
	}
	if opts.ChunkSize == 0 {
		opts.ChunkSize = d.ChunkSize
	}
	return opts
}

// AddFile adds a file using this archive's default codec.
func (a *Archive) AddFile(name string, data []byte) error {
	if a.writer == nil {
		return errs.New(errs.KindIO, "archive is read-only")
	}
	return a.writer.AddFile(name, data, a.defaultCodec)
}

// AddFileWithCodec adds a file compressed with an explicit codec.
func (a *Archive) AddFileWithCodec(name string, data []byte, c codec.UUID) error {
	if a.writer == nil {
		return errs.New(errs.KindIO, "archive is read-only")
	}
	return a.writer.AddFile(name, data, c)
}

// AddFileFromPath ingests the file at path from disk under name, using
// this archive's default codec, and attaches real POSIX
// ownership/permission/xattr metadata collected from the live file.
func (a *Archive) AddFileFromPath(name, path string) error {
	if a.writer == nil {
		return errs.New(errs.KindIO, "archive is read-only")
	}
	return a.writer.AddFileFromPath(name, path, a.defaultCodec)
}

// BeginSolid starts a solid-mode session compressed with c.
func (a *Archive) BeginSolid(c codec.UUID) error {
	if a.writer == nil {
		return errs.New(errs.KindIO, "archive is read-only")
	}
	return a.writer.StartSolidSession(c)
}

// EndSolid flushes the current solid-mode session.
func (a *Archive) EndSolid() error {
	if a.writer == nil {
		return errs.New(errs.KindIO, "archive is read-only")
	}
	return a.writer.FlushSolidSession()
}

// Finalize completes the archive: writes the INDEX block, the recovery
// map, and patches the superblock. Must be called exactly once.
func (a *Archive) Finalize() error {
	if a.writer == nil {
		return errs.New(errs.KindIO, "archive is read-only")
	}
	if err := a.writer.Finalize(); err != nil {
		return err
	}
	return a.f.Close()
}

// List returns a descriptor for every file in the archive.
func (a *Archive) List() []FileInfo {
	var records []index.FileIndexRecord
	if a.reader != nil {
		records = a.reader.Index.Records
	} else {
		records = a.writer.Index.Records
	}
	out := make([]FileInfo, len(records))
	for i := range records {
		out[i] = fileInfoFromRecord(&records[i])
	}
	return out
}

// Stat returns the descriptor for a named file, if present.
func (a *Archive) Stat(name string) (FileInfo, bool) {
	for _, fi := range a.List() {
		if fi.Name == name {
			return fi, true
		}
	}
	return FileInfo{}, false
}

// PlatformMetadata returns the decoded POSIX/xattr metadata attached
// to a named file, if AddFileFromPath collected any for it.
func (a *Archive) PlatformMetadata(name string) (*index.PlatformMetadata, error) {
	var records []index.FileIndexRecord
	if a.reader != nil {
		records = a.reader.Index.Records
	} else {
		records = a.writer.Index.Records
	}
	for _, rec := range records {
		if rec.Name != name {
			continue
		}
		encoded, ok := rec.Metadata[index.MetadataKey]
		if !ok {
			return nil, errs.New(errs.KindIO, "no platform metadata recorded for "+name)
		}
		return index.DecodeMetadata(encoded)
	}
	return nil, errs.New(errs.KindIO, "file not found: "+name)
}

// ReadFile returns the complete decoded contents of a named file.
func (a *Archive) ReadFile(name string) ([]byte, error) {
	fi, ok := a.Stat(name)
	if !ok {
		return nil, errs.New(errs.KindIO, "file not found: "+name)
	}
	return a.ReadFileByID(fi.ID)
}

// ReadFileByID returns the complete decoded contents of a file by ID.
func (a *Archive) ReadFileByID(id uint32) ([]byte, error) {
	if a.reader == nil {
		return nil, errs.New(errs.KindIO, "archive is write-only")
	}
	return a.reader.ReadFileByID(id)
}

// ReadAt fills buf starting at offset within the named file's content.
func (a *Archive) ReadAt(name string, offset uint64, buf []byte) (int, error) {
	fi, ok := a.Stat(name)
	if !ok {
		return 0, errs.New(errs.KindIO, "file not found: "+name)
	}
	if a.reader == nil {
		return 0, errs.New(errs.KindIO, "archive is write-only")
	}
	return a.reader.ReadAt(fi.ID, offset, buf)
}

// RecoveryCheckpoints returns the write-time checkpoint log that
// Finalize stored after the INDEX block, one entry per completed
// non-solid file.
func (a *Archive) RecoveryCheckpoints() ([]RecoveryCheckpoint, error) {
	if a.reader == nil {
		return nil, errs.New(errs.KindIO, "archive is write-only")
	}
	m, err := a.reader.ReadRecoveryMap()
	if err != nil {
		return nil, err
	}
	return m.Checkpoints, nil
}

// ExtractAll writes every file in the archive into dest, creating it
// if necessary.
func (a *Archive) ExtractAll(dest string) error {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return errs.Wrap(err, errs.KindIO, "create extraction directory")
	}
	for _, fi := range a.List() {
		data, err := a.ReadFileByID(fi.ID)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dest, fi.Name), data, 0o644); err != nil {
			return errs.Wrap(err, errs.KindIO, "write extracted file")
		}
	}
	return nil
}

// Path returns the filesystem path this archive was opened/created from.
func (a *Archive) Path() string { return a.path }

// UUID returns the archive's UUID.
func (a *Archive) UUID() [16]byte {
	if a.reader != nil {
		return a.reader.Superblock.ArchiveUUID
	}
	return a.writer.Superblock.ArchiveUUID
}

// RootHashHex returns the hex-encoded root hash of the archive's index.
func (a *Archive) RootHashHex() string {
	if a.reader != nil {
		return hex.EncodeToString(a.reader.Index.RootHash[:])
	}
	return hex.EncodeToString(a.writer.Index.RootHash[:])
}

// Close releases the underlying file handle without finalizing a
// write-mode archive.
func (a *Archive) Close() error {
	return a.f.Close()
}
