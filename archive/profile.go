package archive

import (
	"io"
	"os"

	"github.com/byte271/sixcy/codec"
	"github.com/byte271/sixcy/errs"
	"gopkg.in/yaml.v2"
)

// DefaultChunkSize is the default file-chunking unit: 4 MiB.
const DefaultChunkSize = 4 * 1024 * 1024

// DefaultCompressionLevel is Zstd level 3.
const DefaultCompressionLevel = 3

// Profile is a YAML-loadable set of writer defaults, letting an
// embedder pin chunking/codec/level/dedup behavior outside of code.
type Profile struct {
	DefaultCodec string `yaml:"default_codec"`
	Level        int    `yaml:"level"`
	ChunkSize    int    `yaml:"chunk_size"`
	DisableDedup bool   `yaml:"disable_dedup"`
}

// DefaultProfile mirrors PackOptions::default().
func DefaultProfile() Profile {
	return Profile{
		DefaultCodec: "zstd",
		Level:        DefaultCompressionLevel,
		ChunkSize:    DefaultChunkSize,
	}
}

// LoadProfile reads a YAML-encoded Profile from r.
func LoadProfile(r io.Reader) (Profile, error) {
	p := DefaultProfile()
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&p); err != nil && err != io.EOF {
		return Profile{}, errs.Wrap(err, errs.KindIO, "decode profile yaml")
	}
	return p, nil
}

// LoadProfileFile reads a Profile from a YAML file on disk.
func LoadProfileFile(path string) (Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return Profile{}, errs.Wrap(err, errs.KindIO, "open profile file")
	}
	defer f.Close()
	return LoadProfile(f)
}

func codecByName(name string) (codec.UUID, error) {
	switch name {
	case "", "zstd":
		return codec.ZstdUUID, nil
	case "none":
		return codec.NoneUUID, nil
	case "lz4":
		return codec.LZ4UUID, nil
	case "brotli":
		return codec.BrotliUUID, nil
	case "lzma":
		return codec.LZMAUUID, nil
	default:
		return codec.UUID{}, errs.New(errs.KindUnknownCodec, "unknown codec name: "+name)
	}
}
