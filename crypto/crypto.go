// Package crypto implements the .6cy archive's key derivation and
// per-block authenticated encryption: Argon2id for deriving a key from
// a user password, AES-256-GCM for sealing block payloads.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"io"

	"github.com/byte271/sixcy/errs"
	"golang.org/x/crypto/argon2"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// NonceSize is the GCM nonce length in bytes.
const NonceSize = 12

// TagSize is the GCM authentication tag length in bytes.
const TagSize = 16

// Argon2id parameters, fixed by the format: 64 MiB memory, 3 passes,
// single-threaded.
const (
	argonMemoryKiB = 64 * 1024
	argonTime      = 3
	argonThreads   = 1
)

// DeriveKey derives a 32-byte AES-256 key from password using Argon2id,
// salted with the archive's UUID bytes (the superblock's archive_uuid
// field doubles as the KDF salt, so the same password always yields the
// same key for a given archive).
func DeriveKey(password string, salt [16]byte) [KeySize]byte {
	key := argon2.IDKey([]byte(password), salt[:], argonTime, argonMemoryKiB, argonThreads, KeySize)
	var out [KeySize]byte
	copy(out[:], key)
	return out
}

// Encrypt seals plaintext under key with a fresh random nonce, returning
// nonce‖ciphertext‖tag.
func Encrypt(key [KeySize]byte, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, errs.Wrap(err, errs.KindCodecFailure, "aes cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errs.Wrap(err, errs.KindCodecFailure, "gcm init")
	}
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, errs.Wrap(err, errs.KindIO, "read nonce entropy")
	}
	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	out := make([]byte, 0, len(nonce)+len(sealed))
	out = append(out, nonce...)
	out = append(out, sealed...)
	return out, nil
}

// Decrypt opens a nonce‖ciphertext‖tag blob produced by Encrypt. A tag
// mismatch is reported as errs.KindAuthFailed.
func Decrypt(key [KeySize]byte, blob []byte) ([]byte, error) {
	if len(blob) < NonceSize+TagSize {
		return nil, errs.New(errs.KindTruncated, "encrypted payload too short")
	}
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, errs.Wrap(err, errs.KindCodecFailure, "aes cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errs.Wrap(err, errs.KindCodecFailure, "gcm init")
	}
	nonce, ciphertext := blob[:NonceSize], blob[NonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errs.Wrap(err, errs.KindAuthFailed, "gcm authentication failed")
	}
	return plaintext, nil
}
