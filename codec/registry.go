package codec

import (
	"fmt"
	"sync"

	"github.com/byte271/sixcy/errs"
)

// Registry maps codec UUIDs to their implementation. A process-wide
// DefaultRegistry is seeded with the five frozen built-ins; archives
// needing custom codecs create their own Registry and register plugins
// into it.
type Registry struct {
	mu      sync.RWMutex
	codecs  map[UUID]Codec
	shortID map[UUID]ID
	plugin  map[UUID]bool // true if this UUID was registered by a plugin, not a built-in
}

// NewRegistry returns a Registry seeded with the five built-in codecs.
func NewRegistry() *Registry {
	r := &Registry{
		codecs:  make(map[UUID]Codec),
		shortID: make(map[UUID]ID),
		plugin:  make(map[UUID]bool),
	}
	r.codecs[NoneUUID] = noneCodec{}
	r.codecs[ZstdUUID] = newZstdCodec()
	r.codecs[LZ4UUID] = lz4Codec{}
	r.codecs[BrotliUUID] = brotliCodec{}
	r.codecs[LZMAUUID] = lzmaCodec{}
	r.shortID[NoneUUID] = IDNone
	r.shortID[ZstdUUID] = IDZstd
	r.shortID[LZ4UUID] = IDLZ4
	r.shortID[BrotliUUID] = IDBrotli
	r.shortID[LZMAUUID] = IDLZMA
	return r
}

// DefaultRegistry is the process-wide registry used when an archive is
// not configured with one of its own.
var DefaultRegistry = NewRegistry()

// Lookup returns the codec registered for uuid.
func (r *Registry) Lookup(uuid UUID) (Codec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.codecs[uuid]
	return c, ok
}

// Has reports whether uuid is registered, without returning the codec.
func (r *Registry) Has(uuid UUID) bool {
	_, ok := r.Lookup(uuid)
	return ok
}

// Descriptor is a Go-idiomatic mirror of the frozen plugin ABI
// (original_source's SixcyCodecPlugin): a fixed UUID and short ID, an
// ABI version for forward-compatible field growth, and three function
// values standing in for the C ABI's raw function pointers. A genuine
// dlopen-based loader would fill these fields after loading a shared
// object; this module does not implement that loader (it requires
// cgo), but preserves the contract shape so one could be added without
// changing callers.
type Descriptor struct {
	UUID          UUID
	ShortID       ID
	ABIVersion    uint32
	Compress      func(in []byte, level int) ([]byte, error)
	Decompress    func(in []byte, sizeHint int) ([]byte, error)
	CompressBound func(n int) int
}

// PluginABIVersion is the highest ABI version this host understands.
// Descriptors declaring a higher version are rejected.
const PluginABIVersion = 1

type pluginCodec struct{ d Descriptor }

func (p pluginCodec) Compress(in []byte, level int) ([]byte, error) { return p.d.Compress(in, level) }
func (p pluginCodec) Decompress(in []byte, sizeHint int) ([]byte, error) {
	return p.d.Decompress(in, sizeHint)
}
func (p pluginCodec) CompressBound(n int) int { return p.d.CompressBound(n) }

// Register adds a plugin codec to the registry. Built-in codecs always
// shadow a plugin registered under the same UUID: registering a plugin
// whose UUID matches a built-in silently has no effect on lookups (the
// built-in continues to answer), per the collision rule resolved in
// spec.md's Open Questions. A collision between two plugins is a
// load-time error.
func (r *Registry) Register(d Descriptor) error {
	if d.ABIVersion > PluginABIVersion {
		return errs.New(errs.KindOutOfRange, fmt.Sprintf("plugin abi version %d unsupported (max %d)", d.ABIVersion, PluginABIVersion))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, isBuiltin := r.codecs[d.UUID]; isBuiltin && !r.plugin[d.UUID] {
		return nil // built-in shadows plugin, not an error
	}
	if _, exists := r.plugin[d.UUID]; exists {
		return errs.New(errs.KindOutOfRange, fmt.Sprintf("duplicate plugin codec uuid %s", d.UUID.String()))
	}
	r.codecs[d.UUID] = pluginCodec{d: d}
	r.shortID[d.UUID] = d.ShortID
	r.plugin[d.UUID] = true
	return nil
}

// ShortID returns the process-local short alias for uuid, if known.
func (r *Registry) ShortID(uuid UUID) (ID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.shortID[uuid]
	return id, ok
}

// UUIDFor returns the frozen UUID for one of the five built-in short
// IDs.
func UUIDFor(id ID) (UUID, error) {
	switch id {
	case IDNone:
		return NoneUUID, nil
	case IDZstd:
		return ZstdUUID, nil
	case IDLZ4:
		return LZ4UUID, nil
	case IDBrotli:
		return BrotliUUID, nil
	case IDLZMA:
		return LZMAUUID, nil
	default:
		return UUID{}, errs.New(errs.KindUnknownCodec, fmt.Sprintf("no built-in codec for short id %d", id))
	}
}
