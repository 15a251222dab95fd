package crypto

import (
	"bytes"
	"testing"

	"github.com/byte271/sixcy/errs"
)

func TestDeriveKeyDeterministic(t *testing.T) {
	salt := [16]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	k1 := DeriveKey("correct horse battery staple", salt)
	k2 := DeriveKey("correct horse battery staple", salt)
	if k1 != k2 {
		t.Error("DeriveKey must be deterministic for the same password and salt")
	}
}

func TestDeriveKeyDependsOnSaltAndPassword(t *testing.T) {
	salt1 := [16]byte{1}
	salt2 := [16]byte{2}
	k1 := DeriveKey("password", salt1)
	k2 := DeriveKey("password", salt2)
	if k1 == k2 {
		t.Error("different salts must derive different keys")
	}
	k3 := DeriveKey("different password", salt1)
	if k1 == k3 {
		t.Error("different passwords must derive different keys")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := DeriveKey("pw", [16]byte{9})
	plaintext := []byte("the eagle flies at midnight")

	blob, err := Encrypt(key, plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if len(blob) != NonceSize+len(plaintext)+TagSize {
		t.Fatalf("Encrypt output length = %d, want %d", len(blob), NonceSize+len(plaintext)+TagSize)
	}

	decrypted, err := Decrypt(key, blob)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Errorf("Decrypt = %q, want %q", decrypted, plaintext)
	}
}

func TestEncryptUsesRandomNonce(t *testing.T) {
	key := DeriveKey("pw", [16]byte{3})
	plaintext := []byte("same plaintext twice")

	blob1, err := Encrypt(key, plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	blob2, err := Encrypt(key, plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if bytes.Equal(blob1, blob2) {
		t.Error("two encryptions of the same plaintext must not produce identical ciphertext")
	}
}

func TestDecryptWrongKeyFails(t *testing.T) {
	key := DeriveKey("right password", [16]byte{7})
	wrongKey := DeriveKey("wrong password", [16]byte{7})

	blob, err := Encrypt(key, []byte("secret"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	_, err = Decrypt(wrongKey, blob)
	if err == nil {
		t.Fatal("Decrypt with the wrong key must fail")
	}
	if kind, ok := errs.KindOf(err); !ok || kind != errs.KindAuthFailed {
		t.Errorf("Decrypt wrong-key error kind = %v, %v; want KindAuthFailed, true", kind, ok)
	}
}

func TestDecryptTamperedCiphertextFails(t *testing.T) {
	key := DeriveKey("pw", [16]byte{4})
	blob, err := Encrypt(key, []byte("untampered"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	blob[len(blob)-1] ^= 0xFF // flip every bit of the last GCM tag byte
	if _, err := Decrypt(key, blob); err == nil {
		t.Error("Decrypt of tampered ciphertext must fail")
	}
}
