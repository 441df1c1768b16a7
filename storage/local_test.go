package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_RoundTrip(t *testing.T) {
	root := t.TempDir()
	store := NewLocalStore(root, 0)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "uploads", "closet/processed/a.png", []byte("data"), "image/png"))

	_, err := os.Stat(filepath.Join(root, "uploads", "closet", "processed", "a.png"))
	require.NoError(t, err)

	got, err := store.Get(ctx, "uploads", "closet/processed/a.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), got)
}

func TestLocalStore_Errors(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()

	t.Run("not found", func(t *testing.T) {
		_, err := NewLocalStore(root, 0).Get(ctx, "b", "missing.jpg")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("too large", func(t *testing.T) {
		store := NewLocalStore(root, 2)
		require.NoError(t, store.Put(ctx, "b", "big.jpg", []byte("12345"), ""))
		_, err := store.Get(ctx, "b", "big.jpg")
		assert.ErrorIs(t, err, ErrTooLarge)
	})

	t.Run("escaping key", func(t *testing.T) {
		store := NewLocalStore(root, 0)
		assert.Error(t, store.Put(ctx, "b", "../../etc/x", []byte("x"), ""))
		_, err := store.Get(ctx, "..", "x")
		assert.Error(t, err)
	})

	t.Run("empty bucket", func(t *testing.T) {
		_, err := NewLocalStore(root, 0).Get(ctx, "", "a.jpg")
		assert.Error(t, err)
	})
}
