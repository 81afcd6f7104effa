package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelink/carelink_backend/config"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestBase64Codec(t *testing.T) {
	var c Base64Codec

	enc, err := c.Encode("I have chest pain")
	require.NoError(t, err)
	assert.Equal(t, "SSBoYXZlIGNoZXN0IHBhaW4=", enc)

	dec, err := c.Decode(enc)
	require.NoError(t, err)
	assert.Equal(t, "I have chest pain", dec)

	_, err = c.Decode("not base64!")
	assert.Error(t, err)
}

func TestAESCodec(t *testing.T) {
	c, err := NewAESCodec(testKey)
	require.NoError(t, err)

	a, err := c.Encode("hello")
	require.NoError(t, err)
	b, err := c.Encode("hello")
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "nonce must differ per call")

	dec, err := c.Decode(a)
	require.NoError(t, err)
	assert.Equal(t, "hello", dec)

	other, err := NewAESCodec(strings.Repeat("ff", 32))
	require.NoError(t, err)
	_, err = other.Decode(a)
	assert.Error(t, err)
}

func TestNewAESCodecRejectsShortKey(t *testing.T) {
	_, err := NewAESCodec("abcd")
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = NewAESCodec("zz")
	assert.Error(t, err)
}

func TestDecryptTooShort(t *testing.T) {
	key, err := KeyFromHex(testKey)
	require.NoError(t, err)

	_, err = Decrypt(key, "AAEC")
	assert.ErrorIs(t, err, ErrCiphertextTooShort)
}

func TestNewCodec(t *testing.T) {
	c, err := NewCodec(config.MessagingConfig{})
	require.NoError(t, err)
	assert.IsType(t, Base64Codec{}, c)

	c, err = NewCodec(config.MessagingConfig{Codec: "aes", EncryptionKey: testKey})
	require.NoError(t, err)
	assert.IsType(t, &AESCodec{}, c)

	_, err = NewCodec(config.MessagingConfig{Codec: "rot13"})
	assert.Error(t, err)
}
