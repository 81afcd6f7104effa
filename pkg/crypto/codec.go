package crypto

import (
	"encoding/base64"
	"fmt"

	"github.com/carelink/carelink_backend/config"
)

// Codec transforms message content on its way into and out of storage.
// Base64Codec is an encoding only and gives no confidentiality.
type Codec interface {
	Encode(plain string) (string, error)
	Decode(stored string) (string, error)
}

type Base64Codec struct{}

func (Base64Codec) Encode(plain string) (string, error) {
	return base64.StdEncoding.EncodeToString([]byte(plain)), nil
}

func (Base64Codec) Decode(stored string) (string, error) {
	b, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}
	return string(b), nil
}

type AESCodec struct {
	key []byte
}

func NewAESCodec(hexKey string) (*AESCodec, error) {
	key, err := KeyFromHex(hexKey)
	if err != nil {
		return nil, err
	}
	return &AESCodec{key: key}, nil
}

func (c *AESCodec) Encode(plain string) (string, error) { return Encrypt(c.key, plain) }
func (c *AESCodec) Decode(stored string) (string, error) { return Decrypt(c.key, stored) }

// NewCodec picks the codec named by messaging.codec.
func NewCodec(cfg config.MessagingConfig) (Codec, error) {
	switch cfg.Codec {
	case "", "base64":
		return Base64Codec{}, nil
	case "aes":
		return NewAESCodec(cfg.EncryptionKey)
	default:
		return nil, fmt.Errorf("unknown message codec %q", cfg.Codec)
	}
}
