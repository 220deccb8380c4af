package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the size of a pair key in bytes (AES-256).
	KeySize = 32

	pairSeparator = "\x00|\x00"
	pairKeySalt   = "pairchat/pair-key"
	pairKeyInfo   = "PAIRCHAT_PAIR_KEY_V1"
)

// Key is the symmetric key shared by exactly two participants.
type Key [KeySize]byte

// String returns a short fingerprint, never the key itself.
func (k Key) String() string {
	sum := sha256.Sum256(k[:])
	return hex.EncodeToString(sum[:4])
}

// DeriveKey derives the pair key of a and b. DeriveKey(a, b) == DeriveKey(b, a).
func DeriveKey(a, b string) Key {
	if b < a {
		a, b = b, a
	}
	secret := make([]byte, 0, len(a)+len(pairSeparator)+len(b))
	secret = append(secret, a...)
	secret = append(secret, pairSeparator...)
	secret = append(secret, b...)

	r := hkdf.New(sha256.New, secret, []byte(pairKeySalt), []byte(pairKeyInfo))

	var k Key
	if _, err := io.ReadFull(r, k[:]); err != nil {
		// hkdf only fails when asked for more than 255*HashLen bytes.
		panic(err)
	}
	return k
}
