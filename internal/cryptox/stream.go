package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"hash"
	"io"

	"github.com/dmitrijs2005/csvkeeper/internal/common"
)

// encryptReader pulls plaintext from src and hands out ciphertext blocks,
// followed by the MAC once src is exhausted.
type encryptReader struct {
	src     io.Reader
	mode    cipher.BlockMode
	mac     hash.Hash
	buf     []byte
	pending []byte
	out     []byte
	eof     bool
	done    bool
}

func newEncryptReader(src io.Reader, encKey, macKey, iv []byte, chunk int) (*encryptReader, error) {
	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, &common.CryptoError{Op: "encrypt", Message: "create cipher", Err: err}
	}
	mac := hmac.New(sha256.New, macKey)
	mac.Write(iv)

	return &encryptReader{
		src:  src,
		mode: cipher.NewCBCEncrypter(block, iv),
		mac:  mac,
		buf:  make([]byte, chunk),
	}, nil
}

func (r *encryptReader) Read(p []byte) (int, error) {
	for len(r.out) == 0 {
		if r.done {
			return 0, io.EOF
		}
		if err := r.fill(); err != nil {
			return 0, err
		}
	}
	n := copy(p, r.out)
	r.out = r.out[n:]
	return n, nil
}

func (r *encryptReader) fill() error {
	if r.eof {
		padded := pkcs7Pad(r.pending, aes.BlockSize)
		ct := make([]byte, len(padded))
		r.mode.CryptBlocks(ct, padded)
		r.mac.Write(ct)
		r.out = r.mac.Sum(ct)
		r.pending = nil
		r.done = true
		return nil
	}

	n, err := r.src.Read(r.buf)
	r.pending = append(r.pending, r.buf[:n]...)
	switch {
	case err == io.EOF:
		r.eof = true
	case err != nil:
		return err
	}

	full := len(r.pending) - len(r.pending)%aes.BlockSize
	if full > 0 {
		ct := make([]byte, full)
		r.mode.CryptBlocks(ct, r.pending[:full])
		r.mac.Write(ct)
		r.out = ct
		r.pending = append(r.pending[:0], r.pending[full:]...)
	}
	return nil
}

// decryptReader holds back the trailing MAC and the last block until src is
// exhausted, so padding is only inspected after the MAC has been verified.
type decryptReader struct {
	src     io.Reader
	mode    cipher.BlockMode
	mac     hash.Hash
	buf     []byte
	pending []byte
	out     []byte
	eof     bool
	done    bool
	err     error
}

func newDecryptReader(src io.Reader, encKey, macKey, iv []byte, chunk int) (*decryptReader, error) {
	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, &common.CryptoError{Op: "decrypt", Message: "create cipher", Err: err}
	}
	mac := hmac.New(sha256.New, macKey)
	mac.Write(iv)

	return &decryptReader{
		src:  src,
		mode: cipher.NewCBCDecrypter(block, iv),
		mac:  mac,
		buf:  make([]byte, chunk),
	}, nil
}

func (r *decryptReader) Read(p []byte) (int, error) {
	for len(r.out) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		if r.done {
			return 0, io.EOF
		}
		if err := r.fill(); err != nil {
			r.err = err
		}
	}
	n := copy(p, r.out)
	r.out = r.out[n:]
	return n, nil
}

func (r *decryptReader) fill() error {
	if r.eof {
		return r.finish()
	}

	n, err := r.src.Read(r.buf)
	r.pending = append(r.pending, r.buf[:n]...)
	switch {
	case err == io.EOF:
		r.eof = true
		return nil
	case err != nil:
		return err
	}

	// Keep the MAC and one block in reserve.
	avail := len(r.pending) - MACSize - aes.BlockSize
	if avail < aes.BlockSize {
		return nil
	}
	avail -= avail % aes.BlockSize

	r.mac.Write(r.pending[:avail])
	pt := make([]byte, avail)
	r.mode.CryptBlocks(pt, r.pending[:avail])
	r.out = pt
	r.pending = append(r.pending[:0], r.pending[avail:]...)
	return nil
}

func (r *decryptReader) finish() error {
	r.done = true
	rest := r.pending
	r.pending = nil

	if len(rest) < MACSize+aes.BlockSize {
		return &common.CryptoError{Op: "decrypt", Message: "ciphertext is too short"}
	}
	body, tag := rest[:len(rest)-MACSize], rest[len(rest)-MACSize:]
	if len(body)%aes.BlockSize != 0 {
		return &common.CryptoError{Op: "decrypt", Message: "ciphertext is not a multiple of the block size"}
	}

	r.mac.Write(body)
	if !hmac.Equal(tag, r.mac.Sum(nil)) {
		return &common.CryptoError{Op: "decrypt", Message: "authentication failed, data may be corrupted or tampered"}
	}

	pt := make([]byte, len(body))
	r.mode.CryptBlocks(pt, body)
	pt, err := pkcs7Unpad(pt, aes.BlockSize)
	if err != nil {
		return err
	}
	r.out = pt
	return nil
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	out := make([]byte, len(b)+n)
	copy(out, b)
	for i := len(b); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

func pkcs7Unpad(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, &common.CryptoError{Op: "decrypt", Message: "invalid padding"}
	}
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize {
		return nil, &common.CryptoError{Op: "decrypt", Message: "invalid padding"}
	}
	for _, v := range b[len(b)-n:] {
		if int(v) != n {
			return nil, &common.CryptoError{Op: "decrypt", Message: "invalid padding"}
		}
	}
	return b[:len(b)-n], nil
}
