package cryptox

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// DeriveMasterKey stretches a passphrase into a 32-byte master key with Argon2id.
func DeriveMasterKey(passphrase []byte, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, KeySize)
}

// MasterKey resolves the configured master key: an explicit hex key wins,
// otherwise the key is derived from passphrase and salt.
func MasterKey(hexKey, passphrase, salt string) ([]byte, error) {
	if hexKey != "" {
		key, err := hex.DecodeString(hexKey)
		if err != nil {
			return nil, fmt.Errorf("master key is not hex: %w", err)
		}
		if len(key) != KeySize {
			return nil, fmt.Errorf("master key must be %d bytes, got %d", KeySize, len(key))
		}
		return key, nil
	}
	if passphrase == "" || salt == "" {
		return nil, fmt.Errorf("either a master key or a passphrase with salt is required")
	}
	return DeriveMasterKey([]byte(passphrase), []byte(salt)), nil
}
