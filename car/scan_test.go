package car_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiledocs/tile/car"
	"github.com/tiledocs/tile/internal/tiletest"
)

func scanBytes(t *testing.T, data []byte) (*car.Header, *car.Index, error) {
	t.Helper()
	return car.Scan(bytes.NewReader(data), int64(len(data)))
}

// assertIndexed checks that the index maps id exactly onto its data
// bytes within the container.
func assertIndexed(t *testing.T, container []byte, idx *car.Index, b tiletest.Block) {
	t.Helper()
	loc, ok := idx.Lookup(b.ID)
	require.True(t, ok, "block %s not indexed", b.ID)
	require.LessOrEqual(t, loc.Offset+loc.Length, uint64(len(container)))
	assert.Equal(t, b.Data, container[loc.Offset:loc.Offset+loc.Length], "block %s data range", b.ID)
}

func TestScan(t *testing.T) {
	t.Parallel()

	root := tiletest.CBORBlock(map[string]any{"name": "root"})
	b1 := tiletest.RawBlock([]byte("first block"))
	b2 := tiletest.RawBlock([]byte("second"))
	b3 := tiletest.RawBlock(bytes.Repeat([]byte{0xab}, 1024))
	roots := []car.ContentID{root.ID}

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()
		container := tiletest.Container(roots, root, b1, b2, b3)
		header, idx, err := scanBytes(t, container)
		require.NoError(t, err)

		assert.Equal(t, uint64(1), header.Version)
		assert.Equal(t, root.ID, header.Root())
		assert.Equal(t, 4, idx.Len())
		for _, b := range []tiletest.Block{root, b1, b2, b3} {
			assertIndexed(t, container, idx, b)
		}
	})

	t.Run("any block order", func(t *testing.T) {
		t.Parallel()
		orders := [][]tiletest.Block{
			{root, b1, b2, b3},
			{b3, b2, b1, root},
			{b2, root, b3, b1},
		}
		for _, blocks := range orders {
			container := tiletest.Container(roots, blocks...)
			_, idx, err := scanBytes(t, container)
			require.NoError(t, err)
			assert.Equal(t, 4, idx.Len())
			for _, b := range blocks {
				assertIndexed(t, container, idx, b)
			}
		}
	})

	t.Run("duplicate retains first occurrence", func(t *testing.T) {
		t.Parallel()
		short := tiletest.Container(roots, root, b1)
		full := tiletest.Container(roots, root, b1, b1)
		_, idx, err := scanBytes(t, full)
		require.NoError(t, err)

		assert.Equal(t, 2, idx.Len())
		loc, ok := idx.Lookup(b1.ID)
		require.True(t, ok)
		// The retained range lies within the prefix that held the
		// first copy.
		assert.LessOrEqual(t, loc.Offset+loc.Length, uint64(len(short)))
		assertIndexed(t, full, idx, b1)
	})

	t.Run("payloads never decoded", func(t *testing.T) {
		t.Parallel()
		// Block data that looks like broken framing must not matter:
		// the scan advances by declared lengths alone.
		junk := tiletest.RawBlock([]byte{0x80, 0x80, 0x80, 0x80})
		container := tiletest.Container(roots, root, junk, b1)
		_, idx, err := scanBytes(t, container)
		require.NoError(t, err)
		assert.Equal(t, 3, idx.Len())
		assertIndexed(t, container, idx, junk)
	})

	t.Run("zero block length terminates", func(t *testing.T) {
		t.Parallel()
		container := tiletest.Container(roots, root, b1)
		container = append(container, 0x00)
		_, idx, err := scanBytes(t, container)
		require.NoError(t, err)
		assert.Equal(t, 2, idx.Len())
	})

	t.Run("empty block sequence", func(t *testing.T) {
		t.Parallel()
		container := tiletest.Container(roots)
		header, idx, err := scanBytes(t, container)
		require.NoError(t, err)
		assert.Equal(t, root.ID, header.Root())
		assert.Equal(t, 0, idx.Len())
	})
}

func TestScanMalformed(t *testing.T) {
	t.Parallel()

	root := tiletest.CBORBlock(map[string]any{"name": "root"})
	b1 := tiletest.RawBlock([]byte("data"))
	roots := []car.ContentID{root.ID}

	t.Run("truncated block", func(t *testing.T) {
		t.Parallel()
		container := tiletest.Container(roots, root, b1)
		_, _, err := scanBytes(t, container[:len(container)-2])
		assert.ErrorIs(t, err, car.ErrTruncatedBlock)
	})

	t.Run("block length smaller than identifier", func(t *testing.T) {
		t.Parallel()
		container := tiletest.Container(roots, root)
		// A two-byte block cannot hold the 36-byte identifier that
		// starts it.
		container = binary.AppendUvarint(container, 2)
		container = append(container, b1.ID.Bytes()[:2]...)
		_, _, err := scanBytes(t, container)
		assert.ErrorIs(t, err, car.ErrCorruptBlockLength)
	})

	t.Run("malformed block length varint", func(t *testing.T) {
		t.Parallel()
		container := tiletest.Container(roots, root)
		container = append(container, 0x80)
		_, _, err := scanBytes(t, container)
		assert.ErrorIs(t, err, car.ErrMalformedVarint)
	})

	t.Run("missing root", func(t *testing.T) {
		t.Parallel()
		container := tiletest.Container(nil, root)
		_, _, err := scanBytes(t, container)
		assert.ErrorIs(t, err, car.ErrMissingRoot)
	})

	t.Run("header not CBOR", func(t *testing.T) {
		t.Parallel()
		container := binary.AppendUvarint(nil, 4)
		container = append(container, 0xff, 0xff, 0xff, 0xff)
		_, _, err := scanBytes(t, container)
		assert.ErrorIs(t, err, car.ErrInvalidHeader)
	})

	t.Run("header length exceeds file", func(t *testing.T) {
		t.Parallel()
		container := binary.AppendUvarint(nil, 1<<20)
		container = append(container, 0xa0)
		_, _, err := scanBytes(t, container)
		assert.ErrorIs(t, err, car.ErrInvalidHeader)
	})

	t.Run("empty file", func(t *testing.T) {
		t.Parallel()
		_, _, err := scanBytes(t, nil)
		assert.ErrorIs(t, err, car.ErrMalformedVarint)
	})
}
