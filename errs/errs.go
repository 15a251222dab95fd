// Package errs defines the typed error taxonomy callers use to
// distinguish .6cy failure categories (a corrupt header vs. a content
// hash mismatch vs. a wrong password require different handling).
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a failure. Every fatal error raised by the codec
// registry, crypto, block, superblock, index, or archive packages
// carries one. The built-in codec implementations return plain errors,
// which block wraps as KindCodecFailure.
type Kind int

const (
	KindIO Kind = iota
	KindFormatVersion
	KindMagic
	KindHeaderCRC
	KindContentHash
	KindUnknownCodec
	KindCodecFailure
	KindAuthFailed
	KindKDFFailed
	KindIndexParse
	KindOutOfRange
	KindTruncated
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindFormatVersion:
		return "format_version"
	case KindMagic:
		return "magic"
	case KindHeaderCRC:
		return "header_crc"
	case KindContentHash:
		return "content_hash"
	case KindUnknownCodec:
		return "unknown_codec"
	case KindCodecFailure:
		return "codec_failure"
	case KindAuthFailed:
		return "auth_failed"
	case KindKDFFailed:
		return "kdf_failed"
	case KindIndexParse:
		return "index_parse"
	case KindOutOfRange:
		return "out_of_range"
	case KindTruncated:
		return "truncated"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a Kind so callers can
// distinguish failure categories without string matching.
type Error struct {
	Kind  Kind
	cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("sixcy: %s: %v", e.Kind, e.cause)
}

func (e *Error) Unwrap() error { return e.cause }

// New wraps msg under the given Kind.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, cause: errors.New(msg)}
}

// Wrap annotates err with msg and tags it with kind. Returns nil if err
// is nil, matching errors.Wrap's convention.
func Wrap(err error, kind Kind, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, cause: errors.Wrap(err, msg)}
}

// Is reports whether err (or something it wraps) carries kind.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if as, ok := err.(*Error); ok {
			e = as
			if e.Kind == kind {
				return true
			}
			err = e.cause
			continue
		}
		type unwrapper interface{ Unwrap() error }
		u, ok := err.(unwrapper)
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// KindOf extracts the Kind from err, if any, and reports whether one
// was found.
func KindOf(err error) (Kind, bool) {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind, true
		}
		type unwrapper interface{ Unwrap() error }
		u, ok := err.(unwrapper)
		if !ok {
			return 0, false
		}
		err = u.Unwrap()
	}
	return 0, false
}
