package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"fmt"

	"github.com/dmitrijs2005/csvkeeper/internal/common"
)

// KeyWrapper seals per-file keys under a master key (envelope encryption),
// so the metadata store never holds a usable key.
type KeyWrapper struct {
	aead cipher.AEAD
}

// NewKeyWrapper creates an AES-256-GCM wrapper. masterKey must be 32 bytes.
func NewKeyWrapper(masterKey []byte) (*KeyWrapper, error) {
	if len(masterKey) != KeySize {
		return nil, &common.CryptoError{Op: "wrap", Message: fmt.Sprintf("master key must be %d bytes, got %d", KeySize, len(masterKey))}
	}
	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return nil, &common.CryptoError{Op: "wrap", Message: "create cipher", Err: err}
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, &common.CryptoError{Op: "wrap", Message: "create gcm", Err: err}
	}
	return &KeyWrapper{aead: aead}, nil
}

// Wrap returns hex(nonce || seal(key)).
func (w *KeyWrapper) Wrap(key []byte) (string, error) {
	nonce := common.GenerateRandByteArray(w.aead.NonceSize())
	sealed := w.aead.Seal(nonce, nonce, key, nil)
	return hex.EncodeToString(sealed), nil
}

// Unwrap reverses Wrap. It fails with *common.CryptoError on malformed input
// or when the wrapped key was not sealed under this master key.
func (w *KeyWrapper) Unwrap(wrapped string) ([]byte, error) {
	raw, err := hex.DecodeString(wrapped)
	if err != nil {
		return nil, &common.CryptoError{Op: "unwrap", Message: "wrapped key is not hex", Err: err}
	}
	ns := w.aead.NonceSize()
	if len(raw) < ns+w.aead.Overhead() {
		return nil, &common.CryptoError{Op: "unwrap", Message: "wrapped key is too short"}
	}
	key, err := w.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return nil, &common.CryptoError{Op: "unwrap", Message: "authentication failed", Err: err}
	}
	return key, nil
}
