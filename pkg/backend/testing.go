package backend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ContractTest describes an adapter under test.
type ContractTest struct {
	// CreateAdapter returns a fresh adapter over an empty namespace.
	CreateAdapter func(t *testing.T) Adapter
}

// RunContractTests runs the behaviour every Adapter must share.
func RunContractTests(t *testing.T, contract ContractTest) {
	t.Run("Contract", func(t *testing.T) {
		t.Run("Name", func(t *testing.T) {
			a := contract.CreateAdapter(t)
			assert.NotEmpty(t, a.Name())
			assert.Equal(t, a.Name(), a.Name())
		})

		t.Run("GetAllEmpty", func(t *testing.T) {
			a := contract.CreateAdapter(t)
			all, err := a.GetAll(context.Background())
			require.NoError(t, err)
			assert.NotNil(t, all)
			assert.Empty(t, all)
		})

		t.Run("GetMissingReturnsDefault", func(t *testing.T) {
			a := contract.CreateAdapter(t)
			v, err := a.Get(context.Background(), "missing-key", "fallback")
			require.NoError(t, err)
			assert.Equal(t, "fallback", v)
		})

		t.Run("SetThenGet", func(t *testing.T) {
			a := contract.CreateAdapter(t)
			ctx := context.Background()

			values := map[string]any{
				"hostname": "demo.example.com",
				"int":      1,
				"bool":     true,
				"nil":      nil,
				"list":     []string{},
				"bytes":    []byte("raw"),
			}
			for k, v := range values {
				ok, err := a.Set(ctx, k, v)
				require.NoError(t, err, k)
				assert.True(t, ok, k)

				want, err := SafeValue(v)
				require.NoError(t, err)
				got, err := a.Get(ctx, k, "")
				require.NoError(t, err)
				assert.Equal(t, want, got, k)
			}
		})

		t.Run("SetAllThenGetAll", func(t *testing.T) {
			a := contract.CreateAdapter(t)
			ctx := context.Background()

			ok, err := a.SetAll(ctx, map[string]any{"a": "1", "b": 2})
			require.NoError(t, err)
			assert.True(t, ok)

			all, err := a.GetAll(ctx)
			require.NoError(t, err)
			assert.Equal(t, map[string]string{"a": "1", "b": "2"}, all)
		})
	})
}
