package manager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/systmms/containerlib/pkg/backend"
)

// ErrSecretNotFound is returned by ToFile when the key is not stored
var ErrSecretNotFound = errors.New("secret not found")

// missingSecret is the default ToFile reads with to tell absent keys apart
const missingSecret = "\x00missing"

// InvalidEncodingError is returned by FromFile when a file read in text
// mode is not valid UTF-8.
type InvalidEncodingError struct {
	Path string
}

func (e *InvalidEncodingError) Error() string {
	return fmt.Sprintf("%s is not valid UTF-8 text; looks like a binary file (use binary mode)", e.Path)
}

// Is matches backend.ErrInvalidEncoding
func (e *InvalidEncodingError) Is(target error) bool {
	return target == backend.ErrInvalidEncoding
}

type fileOptions struct {
	codec  bool
	binary bool
	mode   os.FileMode
}

// FileOption tunes ToFile and FromFile
type FileOption func(*fileOptions)

// Decode decrypts the secret before ToFile writes it
func Decode() FileOption {
	return func(o *fileOptions) {
		o.codec = true
	}
}

// Encode encrypts the file content before FromFile stores it
func Encode() FileOption {
	return func(o *fileOptions) {
		o.codec = true
	}
}

// Binary handles the file as raw bytes. It implies Decode or Encode.
func Binary() FileOption {
	return func(o *fileOptions) {
		o.binary = true
		o.codec = true
	}
}

// FileMode sets the permissions of files created by ToFile (default 0600)
func FileMode(mode os.FileMode) FileOption {
	return func(o *fileOptions) {
		o.mode = mode
	}
}

func newFileOptions(opts []FileOption) fileOptions {
	o := fileOptions{mode: 0o600}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ToFile writes the secret stored under key to dest.
//
// With Decode the value is decrypted first; decrypted text that is not UTF-8
// is read as ISO-8859-1 and written as UTF-8. Binary writes the decrypted
// bytes untouched.
func (m *SecretManager) ToFile(ctx context.Context, key, dest string, opts ...FileOption) error {
	o := newFileOptions(opts)

	value, err := m.adapter.Get(ctx, key, missingSecret)
	if err != nil {
		return fmt.Errorf("failed to read secret %s: %w", key, err)
	}
	if value == missingSecret {
		return fmt.Errorf("%w: %s", ErrSecretNotFound, key)
	}

	content := []byte(value)
	if o.codec {
		content, err = m.Decrypt(ctx, value)
		if err != nil {
			return fmt.Errorf("failed to decode secret %s: %w", key, err)
		}
		if !o.binary && !utf8.Valid(content) {
			content, err = charmap.ISO8859_1.NewDecoder().Bytes(content)
			if err != nil {
				return fmt.Errorf("failed to convert secret %s from ISO-8859-1: %w", key, err)
			}
		}
	}

	if err := os.WriteFile(dest, content, o.mode); err != nil {
		return fmt.Errorf("failed to write secret %s to %s: %w", key, dest, err)
	}
	m.logger.WithField("key", key).Debug("wrote secret to %s", dest)
	return nil
}

// FromFile stores the content of src under key.
//
// In text mode src must be UTF-8. With Encode the content is encrypted
// first; Binary encrypts the raw bytes.
func (m *SecretManager) FromFile(ctx context.Context, key, src string, opts ...FileOption) error {
	o := newFileOptions(opts)

	content, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", src, err)
	}
	if !o.binary && !utf8.Valid(content) {
		return &InvalidEncodingError{Path: src}
	}

	value := string(content)
	if o.codec {
		value, err = m.Encrypt(ctx, content)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", src, err)
		}
	}

	ok, err := m.Set(ctx, key, value)
	if err != nil {
		return fmt.Errorf("failed to store secret %s: %w", key, err)
	}
	if !ok {
		return fmt.Errorf("secret %s was not stored by %s", key, m.adapter.Name())
	}
	m.logger.WithField("key", key).Debug("stored secret from %s", src)
	return nil
}
