// Package cryptox holds the cryptographic primitives of csvkeeper: the
// streaming per-file cipher, envelope wrapping of per-file keys under a
// master key, and master key derivation.
package cryptox

import (
	"crypto/aes"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/dmitrijs2005/csvkeeper/internal/common"
	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the size of a per-file key (AES-256).
	KeySize = 32
	// IVSize is the size of a per-file initialization vector.
	IVSize = aes.BlockSize
	// MACSize is the size of the authentication tag appended to every blob.
	MACSize = sha256.Size

	defaultChunkSize = 32 * 1024
)

var (
	encInfo = []byte("csvkeeper/v1 aes-256-cbc")
	macInfo = []byte("csvkeeper/v1 hmac-sha256")
)

// EncryptedStream is the result of FileCipher.Encrypt. Reading it yields the
// ciphertext; Key and IV must be persisted to decrypt it later.
type EncryptedStream struct {
	io.Reader
	Key []byte
	IV  []byte
}

// FileCipher encrypts and decrypts file contents as streams.
//
// Blobs are AES-256-CBC with PKCS#7 padding followed by an HMAC-SHA256 tag
// over iv||ciphertext. Cipher and MAC keys are derived from the per-file key
// with HKDF, so the per-file key itself is the only secret to persist.
type FileCipher struct {
	chunkSize int
}

// NewFileCipher returns a FileCipher reading its source in 32 KiB chunks.
func NewFileCipher() *FileCipher {
	return &FileCipher{chunkSize: defaultChunkSize}
}

// Encrypt generates a fresh random key and iv and returns a reader that
// encrypts plaintext as it is consumed.
func (c *FileCipher) Encrypt(plaintext io.Reader) (*EncryptedStream, error) {
	key := common.GenerateRandByteArray(KeySize)
	iv := common.GenerateRandByteArray(IVSize)

	r, err := c.EncryptWith(plaintext, key, iv)
	if err != nil {
		return nil, err
	}
	return &EncryptedStream{Reader: r, Key: key, IV: iv}, nil
}

// EncryptWith encrypts plaintext under the given key and iv. The output is
// deterministic for identical inputs.
func (c *FileCipher) EncryptWith(plaintext io.Reader, key, iv []byte) (io.Reader, error) {
	if err := checkMaterial("encrypt", key, iv); err != nil {
		return nil, err
	}
	encKey, macKey, err := deriveSubkeys(key)
	if err != nil {
		return nil, &common.CryptoError{Op: "encrypt", Message: "derive subkeys", Err: err}
	}
	return newEncryptReader(plaintext, encKey, macKey, iv, c.chunk())
}

// Decrypt returns a reader of the plaintext of ciphertext.
//
// Invalid key or iv sizes fail immediately. A truncated body, a body whose
// length is not a multiple of the block size, a MAC mismatch or invalid
// padding are reported by Read as *common.CryptoError once the end of the
// ciphertext is reached; the final block is withheld until the MAC verifies.
func (c *FileCipher) Decrypt(ciphertext io.Reader, key, iv []byte) (io.Reader, error) {
	if err := checkMaterial("decrypt", key, iv); err != nil {
		return nil, err
	}
	encKey, macKey, err := deriveSubkeys(key)
	if err != nil {
		return nil, &common.CryptoError{Op: "decrypt", Message: "derive subkeys", Err: err}
	}
	return newDecryptReader(ciphertext, encKey, macKey, iv, c.chunk())
}

func (c *FileCipher) chunk() int {
	if c == nil || c.chunkSize <= 0 {
		return defaultChunkSize
	}
	return c.chunkSize
}

func checkMaterial(op string, key, iv []byte) error {
	if len(key) != KeySize {
		return &common.CryptoError{Op: op, Message: fmt.Sprintf("key must be %d bytes, got %d", KeySize, len(key))}
	}
	if len(iv) != IVSize {
		return &common.CryptoError{Op: op, Message: fmt.Sprintf("iv must be %d bytes, got %d", IVSize, len(iv))}
	}
	return nil
}

func deriveSubkeys(key []byte) (encKey, macKey []byte, err error) {
	encKey = make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, key, nil, encInfo), encKey); err != nil {
		return nil, nil, err
	}
	macKey = make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, key, nil, macInfo), macKey); err != nil {
		return nil, nil, err
	}
	return encKey, macKey, nil
}
