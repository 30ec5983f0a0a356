package tile

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"

	"github.com/tiledocs/tile/car"
	"github.com/tiledocs/tile/internal/tiletest"
)

const hashBLAKE3 = 0x1e

// fixture builds a container with one resource at /data backed by data.
func fixture(t *testing.T, data tiletest.Block) []byte {
	t.Helper()
	root := tiletest.CBORBlock(map[string]any{
		"name": "fixture",
		"resources": map[string]any{
			"/data": tiletest.Resource(data.ID, map[string]string{"content-type": "text/plain"}),
		},
	})
	return tiletest.Container([]car.ContentID{root.ID}, root, data)
}

func TestOpen(t *testing.T) {
	t.Parallel()

	data := tiletest.RawBlock([]byte("hello from disk"))
	path := filepath.Join(t.TempDir(), "fixture.tile")
	require.NoError(t, os.WriteFile(path, fixture(t, data), 0o600))

	tile, err := Open(path)
	require.NoError(t, err)

	assert.Equal(t, "fixture", tile.Manifest().Name)

	got, err := tile.ReadBlock(context.Background(), data.ID)
	require.NoError(t, err)
	assert.Equal(t, data.Data, got)

	require.NoError(t, tile.Close())
	assert.NoError(t, tile.Close(), "close is idempotent")
}

func TestOpenMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Open(filepath.Join(t.TempDir(), "no-such.tile"))
	require.Error(t, err)
}

func TestReadBlock(t *testing.T) {
	t.Parallel()

	data := tiletest.RawBlock([]byte("block payload"))
	container := fixture(t, data)

	t.Run("unindexed identifier", func(t *testing.T) {
		t.Parallel()
		tile, err := New(bytes.NewReader(container))
		require.NoError(t, err)

		stranger := tiletest.RawBlock([]byte("never stored"))
		_, err = tile.ReadBlock(context.Background(), stranger.ID)
		assert.ErrorIs(t, err, ErrDanglingReference)
	})

	t.Run("size limit", func(t *testing.T) {
		t.Parallel()
		tile, err := New(bytes.NewReader(container), WithMaxBlockSize(4))
		require.ErrorIs(t, err, ErrBlockTooLarge, "root block exceeds the limit")
		assert.Nil(t, tile)
	})

	t.Run("canceled context", func(t *testing.T) {
		t.Parallel()
		tile, err := New(bytes.NewReader(container))
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = tile.ReadBlock(ctx, data.ID)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestVerify(t *testing.T) {
	t.Parallel()

	t.Run("sha2-256 match", func(t *testing.T) {
		t.Parallel()
		data := tiletest.RawBlock([]byte("verified payload"))
		tile, err := New(bytes.NewReader(fixture(t, data)), WithVerify(true))
		require.NoError(t, err)

		got, err := tile.ReadBlock(context.Background(), data.ID)
		require.NoError(t, err)
		assert.Equal(t, data.Data, got)
	})

	t.Run("sha2-256 mismatch", func(t *testing.T) {
		t.Parallel()
		data := tiletest.RawBlock([]byte("soon to be corrupted"))
		container := fixture(t, data)

		// Flip one payload byte in place; the index still points at it.
		at := bytes.Index(container, data.Data)
		require.GreaterOrEqual(t, at, 0)
		container[at] ^= 0xff

		tile, err := New(bytes.NewReader(container), WithVerify(true))
		require.NoError(t, err)

		_, err = tile.ReadBlock(context.Background(), data.ID)
		assert.ErrorIs(t, err, ErrDigestMismatch)
	})

	t.Run("blake3 match", func(t *testing.T) {
		t.Parallel()
		payload := []byte("blake3 addressed payload")
		sum := blake3.Sum256(payload)
		data := tiletest.Block{
			ID:   tiletest.NewContentID(tiletest.CodecRaw, hashBLAKE3, sum[:]),
			Data: payload,
		}
		tile, err := New(bytes.NewReader(fixture(t, data)), WithVerify(true))
		require.NoError(t, err)

		got, err := tile.ReadBlock(context.Background(), data.ID)
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	})

	t.Run("blake3 extended output", func(t *testing.T) {
		t.Parallel()
		payload := []byte("xof addressed payload")
		hasher := blake3.New()
		_, _ = hasher.Write(payload)
		digest := make([]byte, 20)
		_, _ = hasher.Digest().Read(digest)
		data := tiletest.Block{
			ID:   tiletest.NewContentID(tiletest.CodecRaw, hashBLAKE3, digest),
			Data: payload,
		}
		tile, err := New(bytes.NewReader(fixture(t, data)), WithVerify(true))
		require.NoError(t, err)

		got, err := tile.ReadBlock(context.Background(), data.ID)
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	})

	t.Run("unknown hash passes through", func(t *testing.T) {
		t.Parallel()
		payload := []byte("unverifiable payload")
		data := tiletest.Block{
			ID:   tiletest.NewContentID(tiletest.CodecRaw, 0xb220, bytes.Repeat([]byte{0xab}, 32)),
			Data: payload,
		}
		tile, err := New(bytes.NewReader(fixture(t, data)), WithVerify(true))
		require.NoError(t, err)

		got, err := tile.ReadBlock(context.Background(), data.ID)
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	})
}
