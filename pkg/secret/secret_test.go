package secret

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCipherRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	c, err := NewCipher(key)
	require.NoError(t, err)

	enc, err := c.EncryptString("portal-password")
	require.NoError(t, err)
	assert.NotContains(t, enc, "portal-password")

	other, err := c.EncryptString("portal-password")
	require.NoError(t, err)
	assert.NotEqual(t, enc, other, "nonce must differ per call")

	plain, err := c.DecryptString(enc)
	require.NoError(t, err)
	assert.Equal(t, "portal-password", plain)
}

func TestCipherKeyFormats(t *testing.T) {
	raw := strings.Repeat("k", 32)
	_, err := NewCipher(raw)
	require.NoError(t, err)

	_, err = NewCipher(hex.EncodeToString([]byte(raw)))
	require.NoError(t, err)

	_, err = NewCipher("short")
	assert.Error(t, err)
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	a, err := NewCipher(strings.Repeat("a", 32))
	require.NoError(t, err)
	b, err := NewCipher(strings.Repeat("b", 32))
	require.NoError(t, err)

	enc, err := a.EncryptString("secret")
	require.NoError(t, err)

	_, err = b.DecryptString(enc)
	assert.ErrorIs(t, err, ErrInvalidCiphertext)

	_, err = a.DecryptString("not base64!")
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}
