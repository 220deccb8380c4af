package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// Placeholder is displayed in place of a message body that cannot be opened.
const Placeholder = "[unable to decrypt message]"

const nonceSize = 12

// DecryptionFailure is returned by Open for every kind of bad input.
type DecryptionFailure struct {
	Reason string
	Err    error
}

func (e *DecryptionFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decrypt: %s: %v", e.Reason, e.Err)
	}
	return "decrypt: " + e.Reason
}

func (e *DecryptionFailure) Unwrap() error { return e.Err }

func newGCM(key Key) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return aead, nil
}

// Seal encrypts plaintext with AES-256-GCM under key. The returned blob is
// base64(nonce || ciphertext), so Open needs nothing but the blob and the key.
func Seal(plaintext []byte, key Key) (string, error) {
	aead, err := newGCM(key)
	if err != nil {
		return "", err
	}

	out := make([]byte, nonceSize, nonceSize+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(out); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	out = aead.Seal(out, out[:nonceSize], plaintext, nil)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Open reverses Seal. Any error it returns is a *DecryptionFailure.
func Open(blob string, key Key) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, &DecryptionFailure{Reason: "malformed encoding", Err: err}
	}

	aead, err := newGCM(key)
	if err != nil {
		return nil, &DecryptionFailure{Reason: "cipher setup", Err: err}
	}
	if len(raw) < nonceSize+aead.Overhead() {
		return nil, &DecryptionFailure{Reason: fmt.Sprintf("blob too short: %d bytes", len(raw))}
	}

	plaintext, err := aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return nil, &DecryptionFailure{Reason: "authentication failed", Err: err}
	}
	return plaintext, nil
}

// Display opens blob for rendering, falling back to Placeholder.
func Display(blob string, key Key) string {
	plaintext, err := Open(blob, key)
	if err != nil {
		return Placeholder
	}
	return string(plaintext)
}
