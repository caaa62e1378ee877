// Package credcodec serializes the credential pair for durable stores,
// sealing it with AES-GCM when a key is configured.
package credcodec

import (
	"encoding/json"
	"fmt"
	"strings"

	"gitlab.com/timkado/api/daisi-feed-client/internal/domain"
	"gitlab.com/timkado/api/daisi-feed-client/pkg/crypto"
)

const sealedPrefix = "aesgcm:"

// Encode returns the stored form of pair. With an empty key the pair is
// stored as plain JSON.
func Encode(pair domain.CredentialPair, aesKeyHex string) ([]byte, error) {
	raw, err := json.Marshal(pair)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal credential pair: %w", err)
	}
	if aesKeyHex == "" {
		return raw, nil
	}
	sealed, err := crypto.EncryptAESGCM(aesKeyHex, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to seal credential pair: %w", err)
	}
	return []byte(sealedPrefix + sealed), nil
}

// Decode is the inverse of Encode. A sealed payload without a key, or a
// partial pair, is an error; both credentials are restored or neither.
func Decode(data []byte, aesKeyHex string) (domain.CredentialPair, error) {
	text := strings.TrimSpace(string(data))
	raw := []byte(text)
	if strings.HasPrefix(text, sealedPrefix) {
		if aesKeyHex == "" {
			return domain.CredentialPair{}, fmt.Errorf("stored credentials are sealed but no auth.credential_aes_key is configured")
		}
		opened, err := crypto.DecryptAESGCM(aesKeyHex, strings.TrimPrefix(text, sealedPrefix))
		if err != nil {
			return domain.CredentialPair{}, fmt.Errorf("failed to open stored credentials: %w", err)
		}
		raw = opened
	}

	var pair domain.CredentialPair
	if err := json.Unmarshal(raw, &pair); err != nil {
		return domain.CredentialPair{}, fmt.Errorf("failed to unmarshal stored credentials: %w", err)
	}
	if pair.AccessCredential == "" || pair.RefreshCredential == "" {
		return domain.CredentialPair{}, fmt.Errorf("stored credential pair is incomplete")
	}
	return pair, nil
}
