package index

import (
	"encoding/hex"

	"github.com/fxamacker/cbor/v2"

	"github.com/byte271/sixcy/errs"
)

// MetadataKey is the well-known FileIndexRecord.Metadata key under
// which a hex-encoded CBOR-serialized PlatformMetadata blob is stashed,
// when present. The index wire format stays the plain JSON map spec.md
// §4.8 mandates; this is a layered convention on top of it, not a
// change to the map's type.
const MetadataKey = "platform"

// MakePointer returns a pointer to a copy of v, for building the
// optional pointer fields of PlatformMetadata from literals.
func MakePointer[T any](v T) *T { return &v }

// CommonMetadata holds fields every supported platform can report.
type CommonMetadata struct {
	FileSize    *uint64 `cbor:"0,keyasint,omitempty"`
	ModTimeUnix *int64  `cbor:"1,keyasint,omitempty"`
	Mode        *uint32 `cbor:"2,keyasint,omitempty"`
}

// POSIXMetadata holds fields common to every POSIX-ish platform
// (Linux and Darwin specialize further below).
type POSIXMetadata struct {
	UID   *uint32 `cbor:"0,keyasint,omitempty"`
	GID   *uint32 `cbor:"1,keyasint,omitempty"`
	Nlink *uint32 `cbor:"2,keyasint,omitempty"`
}

// LinuxMetadata adds Linux extended-attribute data to POSIXMetadata.
type LinuxMetadata struct {
	POSIX *POSIXMetadata    `cbor:"0,keyasint,omitempty"`
	Xattr map[string][]byte `cbor:"1,keyasint,omitempty"`
}

// DarwinMetadata adds Darwin's BSD flags to POSIXMetadata.
type DarwinMetadata struct {
	POSIX   *POSIXMetadata `cbor:"0,keyasint,omitempty"`
	Flags   *uint32        `cbor:"1,keyasint,omitempty"`
}

// WinNTMetadata holds Windows file attribute bits; present for
// completeness, unused by CollectPlatformMetadata on POSIX hosts.
type WinNTMetadata struct {
	Attributes *uint32 `cbor:"0,keyasint,omitempty"`
}

// PlatformMetadata is the optional, CBOR-encoded per-file metadata
// supplement. At most one platform-specific field is populated:
// CollectPlatformMetadata fills Linux whenever unix.Lstat succeeds on
// the host, and leaves every platform field nil when it fails.
type PlatformMetadata struct {
	Common *CommonMetadata `cbor:"0,keyasint,omitempty"`
	Linux  *LinuxMetadata  `cbor:"1,keyasint,omitempty"`
	Darwin *DarwinMetadata `cbor:"2,keyasint,omitempty"`
	WinNT  *WinNTMetadata  `cbor:"3,keyasint,omitempty"`
}

// Encode CBOR-encodes m and hex-encodes the result, ready to be stored
// under MetadataKey in a FileIndexRecord's Metadata map.
func (m *PlatformMetadata) Encode() (string, error) {
	b, err := cbor.Marshal(m)
	if err != nil {
		return "", errs.Wrap(err, errs.KindIndexParse, "cbor-encode platform metadata")
	}
	return hex.EncodeToString(b), nil
}

// DecodeMetadata parses a hex-encoded CBOR platform metadata blob, as
// produced by Encode.
func DecodeMetadata(hexStr string) (*PlatformMetadata, error) {
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		return nil, errs.Wrap(err, errs.KindIndexParse, "hex-decode platform metadata")
	}
	var m PlatformMetadata
	if err := cbor.Unmarshal(b, &m); err != nil {
		return nil, errs.Wrap(err, errs.KindIndexParse, "cbor-decode platform metadata")
	}
	return &m, nil
}
