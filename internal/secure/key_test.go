package secure

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{name: "seals salt", data: []byte("0123456789abcdef")},
		{name: "seals binary data", data: []byte{0x00, 0xFF, 0x10, 0x20}},
		{name: "rejects empty input", data: []byte{}, wantErr: ErrEmptyKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			k, err := NewKey(tt.data)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			defer k.Destroy()

			err = k.Use(func(material []byte) error {
				assert.Equal(t, tt.data, material)
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestNewKeyLeavesInputIntact(t *testing.T) {
	t.Parallel()

	input := []byte("aaaaaaaaaaaaaaaa")
	k, err := NewKey(input)
	require.NoError(t, err)
	defer k.Destroy()

	assert.Equal(t, []byte("aaaaaaaaaaaaaaaa"), input)
}

func TestKeyUsePropagatesError(t *testing.T) {
	t.Parallel()

	k, err := NewKey([]byte("salt"))
	require.NoError(t, err)
	defer k.Destroy()

	want := errors.New("cipher failed")
	assert.ErrorIs(t, k.Use(func([]byte) error { return want }), want)
}

func TestKeyDestroy(t *testing.T) {
	t.Parallel()

	k, err := NewKey([]byte("salt"))
	require.NoError(t, err)

	k.Destroy()
	k.Destroy()

	called := false
	err = k.Use(func([]byte) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrDestroyed)
	assert.False(t, called)
}
