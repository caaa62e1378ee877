package credcodec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/timkado/api/daisi-feed-client/internal/domain"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestEncodeDecodePlain(t *testing.T) {
	pair := domain.CredentialPair{AccessCredential: "a", RefreshCredential: "r"}
	data, err := Encode(pair, "")
	require.NoError(t, err)
	assert.JSONEq(t, `{"accessToken":"a","refreshToken":"r"}`, string(data))

	got, err := Decode(data, "")
	require.NoError(t, err)
	assert.Equal(t, pair, got)
}

func TestEncodeDecodeSealed(t *testing.T) {
	pair := domain.CredentialPair{AccessCredential: "a", RefreshCredential: "r"}
	data, err := Encode(pair, testKey)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), sealedPrefix))
	assert.NotContains(t, string(data), "refreshToken")

	got, err := Decode(data, testKey)
	require.NoError(t, err)
	assert.Equal(t, pair, got)

	_, err = Decode(data, "")
	assert.Error(t, err)
}

func TestDecodeRejectsPartialPair(t *testing.T) {
	_, err := Decode([]byte(`{"accessToken":"a"}`), "")
	assert.Error(t, err)
}
