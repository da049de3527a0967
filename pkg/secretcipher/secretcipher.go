// Package secretcipher provides the symmetric cipher used to protect secret
// values at rest.
//
// The default implementation is Triple DES in ECB mode with PKCS#7 padding
// and base64 text encoding. It exists for compatibility with values already
// stored by existing deployments; callers that do not need that
// compatibility can supply their own SecretCipher.
package secretcipher

import (
	"bytes"
	"crypto/cipher"
	"crypto/des"
	"encoding/base64"
	"errors"
	"fmt"
)

// SecretCipher encrypts and decrypts secret values with a shared key.
type SecretCipher interface {
	// Encrypt returns the base64 encoded ciphertext of plaintext.
	Encrypt(key, plaintext []byte) ([]byte, error)

	// Decrypt reverses Encrypt.
	Decrypt(key, encoded []byte) ([]byte, error)
}

var (
	// ErrKeySize is returned for keys that are not 8, 16 or 24 bytes.
	ErrKeySize = errors.New("secretcipher: key must be 8, 16 or 24 bytes")

	// ErrCiphertext is returned for input that is not a whole number of
	// blocks or carries invalid padding.
	ErrCiphertext = errors.New("secretcipher: malformed ciphertext")
)

// TripleDES is the 3DES-ECB SecretCipher.
//
// An 8-byte key uses the same key for all three stages; a 16-byte key
// reuses its first half as the third stage.
type TripleDES struct{}

var _ SecretCipher = TripleDES{}

func (TripleDES) block(key []byte) (cipher.Block, error) {
	var k []byte
	switch len(key) {
	case 8:
		k = bytes.Repeat(key, 3)
	case 16:
		k = append(append(make([]byte, 0, 24), key...), key[:8]...)
	case 24:
		k = key
	default:
		return nil, fmt.Errorf("%w: got %d", ErrKeySize, len(key))
	}
	return des.NewTripleDESCipher(k)
}

// Encrypt implements SecretCipher.
func (c TripleDES) Encrypt(key, plaintext []byte) ([]byte, error) {
	b, err := c.block(key)
	if err != nil {
		return nil, err
	}

	bs := b.BlockSize()
	padded := pad(plaintext, bs)
	out := make([]byte, len(padded))
	for i := 0; i < len(padded); i += bs {
		b.Encrypt(out[i:i+bs], padded[i:i+bs])
	}

	enc := make([]byte, base64.StdEncoding.EncodedLen(len(out)))
	base64.StdEncoding.Encode(enc, out)
	return enc, nil
}

// Decrypt implements SecretCipher.
func (c TripleDES) Decrypt(key, encoded []byte) ([]byte, error) {
	b, err := c.block(key)
	if err != nil {
		return nil, err
	}

	raw := make([]byte, base64.StdEncoding.DecodedLen(len(encoded)))
	n, err := base64.StdEncoding.Decode(raw, bytes.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCiphertext, err)
	}
	raw = raw[:n]

	bs := b.BlockSize()
	if len(raw) == 0 || len(raw)%bs != 0 {
		return nil, ErrCiphertext
	}
	out := make([]byte, len(raw))
	for i := 0; i < len(raw); i += bs {
		b.Decrypt(out[i:i+bs], raw[i:i+bs])
	}
	return unpad(out, bs)
}

func pad(data []byte, bs int) []byte {
	n := bs - len(data)%bs
	return append(append(make([]byte, 0, len(data)+n), data...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(data []byte, bs int) ([]byte, error) {
	n := int(data[len(data)-1])
	if n == 0 || n > bs || n > len(data) {
		return nil, ErrCiphertext
	}
	for _, p := range data[len(data)-n:] {
		if int(p) != n {
			return nil, ErrCiphertext
		}
	}
	return data[:len(data)-n], nil
}

// EncodeText encrypts text with key using TripleDES.
func EncodeText(text, key string) (string, error) {
	out, err := TripleDES{}.Encrypt([]byte(key), []byte(text))
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// DecodeText decrypts text with key using TripleDES. The result is raw
// bytes; it is not guaranteed to be UTF-8.
func DecodeText(text, key string) ([]byte, error) {
	return TripleDES{}.Decrypt([]byte(key), []byte(text))
}
