// Package tile opens single-file "tile" documents, content-addressed
// CARv1 containers carrying a MASL manifest, and serves their
// resources on demand to a rendering surface.
//
// A tile file holds a header naming a root block, a manifest stored in
// that root block, and one content-addressed block per resource. Open
// scans the container once to index every block, decodes the manifest,
// and keeps the file handle for positioned reads; resource requests are
// then served by translating a manifest path into a byte range.
//
// # Quick Start
//
// Open a tile and serve its resources through a registry:
//
//	registry := tile.NewRegistry()
//	authority, _, err := registry.OpenFile("report.tile")
//	if err != nil {
//	    return err
//	}
//	result, err := registry.Resolve(ctx, authority, "/index.html")
//
// The registry is the unit of process-wide state: it maps authority
// strings to open tiles, emits an [Opened] notification per successful
// registration, and owns each tile's lifetime from open to close. UI
// layers consume only the notification and the Resolve function; the
// index and file handle stay internal.
//
// Manifests, indexes, and tiles are immutable after open, so Resolve
// may be called concurrently without limit. All reads are positioned
// (io.ReaderAt); no shared cursor exists to corrupt.
package tile
