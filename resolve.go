package tile

import (
	"context"
	"fmt"
)

// Result is a resolved resource: its raw bytes plus the headers the
// manifest declares for it. Data may be shared with concurrent
// resolutions of the same content and must be treated as read-only.
//
// The resolver never infers a content type; when the entry declares
// none, the serving boundary supplies its own default.
type Result struct {
	Data    []byte
	Headers []Header
}

// Resolve serves one resource request against this tile. Path matching
// is exact-string on the rooted path: no normalization, globbing, or
// directory-index fallback.
//
// Repeated resolution of the same path is idempotent; nothing in the
// tile is mutated, so calls may run concurrently without limit.
func (t *Tile) Resolve(ctx context.Context, path string) (*Result, error) {
	res, ok := t.manifest.Resources[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchResource, path)
	}
	data, err := t.ReadBlock(ctx, res.Src)
	if err != nil {
		return nil, err
	}
	t.log().Debug("resolved resource", "path", path, "bytes", len(data))
	return &Result{Data: data, Headers: res.Headers}, nil
}

// Resolve routes a resource request to the tile registered under
// authority and serves it. Each call is an independent read: a failure
// affects neither the tile nor other in-flight requests.
func (r *Registry) Resolve(ctx context.Context, authority, path string) (*Result, error) {
	t, ok := r.Lookup(authority)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTileNotFound, authority)
	}
	return t.Resolve(ctx, path)
}
