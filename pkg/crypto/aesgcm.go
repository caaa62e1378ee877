package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

var (
	ErrInvalidAESKeySize  = errors.New("invalid AES key size")
	ErrInvalidSealFormat  = errors.New("invalid sealed format, expecting base64 encoded nonce+ciphertext")
	ErrCiphertextTooShort = errors.New("ciphertext too short, cannot extract nonce")
	ErrDecryptionFailed   = errors.New("decryption failed")
)

const (
	// AES-256 requires a 32-byte key.
	aes256KeyBytes = 32
	// GCM standard nonce size.
	gcmNonceSizeBytes = 12
)

func newGCM(aesKeyHex string) (cipher.AEAD, error) {
	key, err := hex.DecodeString(aesKeyHex)
	if err != nil {
		return nil, fmt.Errorf("failed to decode AES key from hex: %w", err)
	}
	if len(key) != aes256KeyBytes {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidAESKeySize, aes256KeyBytes, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher block: %w", err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM cipher: %w", err)
	}
	return aesgcm, nil
}

// EncryptAESGCM seals plaintext with AES-256-GCM and returns base64 URL encoded nonce+ciphertext.
// The aesKeyHex is the 32-byte AES key, hex-encoded.
func EncryptAESGCM(aesKeyHex string, plaintext []byte) (string, error) {
	aesgcm, err := newGCM(aesKeyHex)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcmNonceSizeBytes)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := aesgcm.Seal(nonce, nonce, plaintext, nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

// DecryptAESGCM opens a value produced by EncryptAESGCM.
func DecryptAESGCM(aesKeyHex string, sealedB64 string) ([]byte, error) {
	aesgcm, err := newGCM(aesKeyHex)
	if err != nil {
		return nil, err
	}

	sealed, err := base64.URLEncoding.DecodeString(sealedB64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSealFormat, err)
	}

	if len(sealed) < gcmNonceSizeBytes {
		return nil, fmt.Errorf("%w: length %d, minimum %d", ErrCiphertextTooShort, len(sealed), gcmNonceSizeBytes)
	}

	nonce := sealed[:gcmNonceSizeBytes]
	ciphertext := sealed[gcmNonceSizeBytes:]

	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, nil) // No additional authenticated data (AAD)
	if err != nil {
		// Usually "cipher: message authentication failed": wrong key or tampered file.
		return nil, ErrDecryptionFailed
	}

	return plaintext, nil
}
