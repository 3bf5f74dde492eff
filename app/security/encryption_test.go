package security

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	t.Setenv("APPDATA", t.TempDir())

	sealed, err := Encrypt("relay-token-123")
	require.NoError(t, err)
	assert.NotEqual(t, "relay-token-123", sealed)

	opened, err := Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "relay-token-123", opened)
}

func TestKeyFileIsCreatedOnce(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("APPDATA", dir)

	first, err := GenerateKeyIfNotExists()
	require.NoError(t, err)
	second, err := GenerateKeyIfNotExists()
	require.NoError(t, err)
	assert.Equal(t, first, second)

	info, err := os.Stat(filepath.Join(dir, "PrintRelay", keyFileName))
	require.NoError(t, err)
	assert.Equal(t, int64(keySize), info.Size())
}

func TestEncryptIfNeededSkipsSealedValues(t *testing.T) {
	t.Setenv("APPDATA", t.TempDir())

	sealed, err := EncryptIfNeeded("secret")
	require.NoError(t, err)

	again, err := EncryptIfNeeded(sealed)
	require.NoError(t, err)
	assert.Equal(t, sealed, again)
}

func TestDecryptRejectsPlainText(t *testing.T) {
	t.Setenv("APPDATA", t.TempDir())

	_, err := Decrypt("not-encrypted")
	assert.Error(t, err)
}
