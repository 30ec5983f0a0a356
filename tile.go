package tile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/sync/singleflight"

	"github.com/tiledocs/tile/car"
)

// DefaultMaxBlockSize is the default per-block size limit (256MB).
const DefaultMaxBlockSize = 256 << 20

// ByteSource provides random access to a container's bytes.
//
// Implementations exist for local files (wrapped by Open) and HTTP
// range requests (httpserve.Source); bytes.Reader satisfies it too.
// ReadAt must be safe for concurrent use: resolution issues overlapping
// positioned reads with no shared cursor.
type ByteSource interface {
	io.ReaderAt
	Size() int64
}

// Tile is one opened container: its manifest, its block index, and the
// byte source they refer into. All fields are immutable after New, so a
// Tile is safe for unbounded concurrent resolution.
type Tile struct {
	manifest     *Manifest
	index        *car.Index
	source       ByteSource
	closer       io.Closer
	verify       bool
	maxBlockSize uint64
	logger       *slog.Logger
	readGroup    singleflight.Group
}

// log returns the logger, falling back to a discard logger if nil.
func (t *Tile) log() *slog.Logger {
	if t.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return t.logger
}

// New opens a tile from an arbitrary byte source: one scan to build the
// block index, then a positioned read to decode the manifest from the
// root block. Nothing else is read until a resource is resolved.
func New(source ByteSource, opts ...Option) (*Tile, error) {
	t := &Tile{
		source:       source,
		maxBlockSize: DefaultMaxBlockSize,
	}
	for _, opt := range opts {
		opt(t)
	}

	header, index, err := car.Scan(source, source.Size())
	if err != nil {
		return nil, fmt.Errorf("scan container: %w", err)
	}
	manifest, err := decodeManifest(source, index, header.Root(), t.maxBlockSize)
	if err != nil {
		return nil, err
	}

	t.manifest = manifest
	t.index = index
	t.log().Debug("tile opened",
		"root", header.Root().String(),
		"blocks", index.Len(),
		"resources", len(manifest.Resources))
	return t, nil
}

// Open opens a tile container file from the filesystem. The file handle
// stays open for positioned reads and is released by Close.
func Open(path string, opts ...Option) (*Tile, error) {
	f, err := os.Open(path) //nolint:gosec // User-provided path is intentional
	if err != nil {
		return nil, fmt.Errorf("open container file: %w", err)
	}
	source, err := newFileSource(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	t, err := New(source, opts...)
	if err != nil {
		f.Close()
		return nil, err
	}
	t.closer = f
	return t, nil
}

// Manifest returns the decoded manifest. Read-only.
func (t *Tile) Manifest() *Manifest {
	return t.manifest
}

// Index returns the container's block index. Read-only.
func (t *Tile) Index() *car.Index {
	return t.index
}

// Close releases the underlying file handle, if any. Idempotent.
// Resolutions in flight when Close is called may fail with file-closed
// read errors; the index and manifest remain valid but unreachable.
func (t *Tile) Close() error {
	if t.closer == nil {
		return nil
	}
	err := t.closer.Close()
	t.closer = nil
	return err
}

// ReadBlock reads the raw bytes of the block identified by id.
// Concurrent reads of the same block are coalesced; the returned slice
// may be shared between callers and must not be modified.
func (t *Tile) ReadBlock(ctx context.Context, id car.ContentID) ([]byte, error) {
	loc, ok := t.index.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDanglingReference, id)
	}
	if t.maxBlockSize > 0 && loc.Length > t.maxBlockSize {
		return nil, fmt.Errorf("%w: block of %d bytes", ErrBlockTooLarge, loc.Length)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err, _ := t.readGroup.Do(id.KeyString(), func() (any, error) {
		buf := make([]byte, loc.Length)
		if err := readFullAt(t.source, buf, int64(loc.Offset)); err != nil {
			return nil, fmt.Errorf("read block %s: %w", id, err)
		}
		if t.verify {
			if err := verifyBlock(id, buf); err != nil {
				return nil, err
			}
		}
		return buf, nil
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return data.([]byte), nil //nolint:errcheck // type assertion always succeeds when err is nil
}

// fileSource wraps *os.File to implement ByteSource.
// os.File has ReadAt but not Size, so the size is cached at construction.
type fileSource struct {
	file *os.File
	size int64
}

func newFileSource(f *os.File) (*fileSource, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat container file: %w", err)
	}
	return &fileSource{file: f, size: info.Size()}, nil
}

// ReadAt implements io.ReaderAt.
func (fs *fileSource) ReadAt(p []byte, off int64) (int, error) {
	return fs.file.ReadAt(p, off)
}

// Size returns the total size of the file.
func (fs *fileSource) Size() int64 {
	return fs.size
}

// readFullAt reads exactly len(buf) bytes at off.
func readFullAt(src io.ReaderAt, buf []byte, off int64) error {
	n, err := src.ReadAt(buf, off)
	if n == len(buf) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return err
}
