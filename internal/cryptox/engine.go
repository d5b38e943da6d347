// Package cryptox implements the symmetric cipher used for vault secrets.
//
// Every secret in the vault is encrypted under a single passphrase supplied
// once at construction. The scheme is passphrase-based AES-256-CTR with a
// per-message random salt and IV; the AES key is derived with PBKDF2-SHA256.
// The wire form is base64(salt || iv || ciphertext).
//
// The cipher is deliberately unauthenticated: Decrypt never reports a key
// mismatch. Decrypting with the wrong passphrase returns a wrong (possibly
// empty or garbled) string, exactly as the system it replaces behaved.
// Callers must not rely on Decrypt failing to detect a wrong key.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize   = 16
	ivSize     = aes.BlockSize
	keySize    = 32
	iterations = 4096
)

// Engine encrypts and decrypts vault secrets under one configured passphrase.
// The passphrase is injected at construction; there is no package-level key.
type Engine struct {
	passphrase []byte
}

// NewEngine returns an Engine bound to the given passphrase. The same
// passphrase must be used for every record in the vault.
func NewEngine(passphrase string) *Engine {
	return &Engine{passphrase: []byte(passphrase)}
}

func (e *Engine) deriveKey(salt []byte) []byte {
	return pbkdf2.Key(e.passphrase, salt, iterations, keySize, sha256.New)
}

// Encrypt encrypts plaintext and returns the base64-encoded wire form.
// A fresh salt and IV are drawn for every call, so encrypting the same
// plaintext twice yields different ciphertexts.
func (e *Engine) Encrypt(plaintext string) (string, error) {
	buf := make([]byte, saltSize+ivSize+len(plaintext))
	salt := buf[:saltSize]
	iv := buf[saltSize : saltSize+ivSize]

	if _, err := rand.Read(buf[:saltSize+ivSize]); err != nil {
		return "", fmt.Errorf("rand error: %w", err)
	}

	block, err := aes.NewCipher(e.deriveKey(salt))
	if err != nil {
		return "", fmt.Errorf("cipher init error: %w", err)
	}

	cipher.NewCTR(block, iv).XORKeyStream(buf[saltSize+ivSize:], []byte(plaintext))

	return base64.StdEncoding.EncodeToString(buf), nil
}

// Decrypt reverses Encrypt. It performs no integrity check: a wrong
// passphrase produces a wrong string, and malformed input produces "".
// It never returns an error.
func (e *Engine) Decrypt(cipherText string) string {
	raw, err := base64.StdEncoding.DecodeString(cipherText)
	if err != nil {
		return ""
	}
	if len(raw) < saltSize+ivSize {
		return ""
	}

	salt := raw[:saltSize]
	iv := raw[saltSize : saltSize+ivSize]
	ct := raw[saltSize+ivSize:]

	block, err := aes.NewCipher(e.deriveKey(salt))
	if err != nil {
		return ""
	}

	plaintext := make([]byte, len(ct))
	cipher.NewCTR(block, iv).XORKeyStream(plaintext, ct)

	return string(plaintext)
}
