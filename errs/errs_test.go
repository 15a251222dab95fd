package errs

import (
	"errors"
	"testing"

	"github.com/davecgh/go-spew/spew"
)

func TestNewAndKindOf(t *testing.T) {
	err := New(KindMagic, "bad magic")
	if err == nil {
		t.Fatal("New returned nil")
	}
	kind, ok := KindOf(err)
	if !ok || kind != KindMagic {
		t.Fatalf("KindOf = %v, %v; want %v, true\n%s", kind, ok, KindMagic, spew.Sdump(err))
	}
}

func TestWrapNilIsNil(t *testing.T) {
	if Wrap(nil, KindIO, "anything") != nil {
		t.Error("Wrap(nil, ...) must return nil")
	}
}

func TestWrapPreservesKindAndChain(t *testing.T) {
	cause := errors.New("disk full")
	wrapped := Wrap(cause, KindIO, "writing block")

	if !Is(wrapped, KindIO) {
		t.Errorf("Is(wrapped, KindIO) = false; want true\n%s", spew.Sdump(wrapped))
	}
	if Is(wrapped, KindMagic) {
		t.Error("Is(wrapped, KindMagic) = true; want false")
	}
	if got := errors.Unwrap(wrapped); got == nil {
		t.Error("Unwrap returned nil, expected underlying cause")
	}
}

func TestIsWalksPlainErrorChain(t *testing.T) {
	inner := New(KindContentHash, "hash mismatch")
	outer := Wrap(inner, KindIO, "decode chunk")

	if !Is(outer, KindContentHash) {
		t.Fatal("Is should find KindContentHash through nested Error chain")
	}
}

func TestKindStringCoversAllValues(t *testing.T) {
	kinds := []Kind{
		KindIO, KindFormatVersion, KindMagic, KindHeaderCRC, KindContentHash,
		KindUnknownCodec, KindCodecFailure, KindAuthFailed, KindKDFFailed,
		KindIndexParse, KindOutOfRange, KindTruncated,
	}
	seen := make(map[string]bool)
	for _, k := range kinds {
		s := k.String()
		if s == "" || s == "unknown" {
			t.Errorf("Kind(%d).String() = %q, want a real name", k, s)
		}
		if seen[s] {
			t.Errorf("duplicate Kind string %q", s)
		}
		seen[s] = true
	}
}

func TestKindOfNoneFound(t *testing.T) {
	if _, ok := KindOf(errors.New("plain error")); ok {
		t.Error("KindOf on a plain error should report false")
	}
}
