package secret

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBox_RoundTrip(t *testing.T) {
	box, err := NewBox("a passphrase that is not hex")
	require.NoError(t, err)
	require.True(t, box.Enabled())

	sealed, err := box.Seal("smtp-password")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sealed, prefix))
	assert.NotContains(t, sealed, "smtp-password")

	plain, err := box.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "smtp-password", plain)
}

func TestBox_HexKey(t *testing.T) {
	box, err := NewBox(strings.Repeat("ab", 32))
	require.NoError(t, err)

	sealed, err := box.Seal("x")
	require.NoError(t, err)

	other, _ := NewBox(strings.Repeat("cd", 32))
	_, err = other.Open(sealed)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestBox_NonceIsFresh(t *testing.T) {
	box, _ := NewBox("k")
	a, _ := box.Seal("same")
	b, _ := box.Seal("same")
	assert.NotEqual(t, a, b)
}

func TestBox_NoKey(t *testing.T) {
	box, err := NewBox("")
	require.NoError(t, err)
	assert.False(t, box.Enabled())

	empty, err := box.Seal("")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = box.Seal("secret")
	assert.ErrorIs(t, err, ErrNoKey)
}

func TestBox_Malformed(t *testing.T) {
	box, _ := NewBox("k")
	for _, in := range []string{"plain", prefix + "!!!", prefix + "AAAA"} {
		_, err := box.Open(in)
		assert.ErrorIs(t, err, ErrMalformed, in)
	}
}
