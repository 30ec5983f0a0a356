package tile

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// Opened is the notification emitted once per successful registration.
// It carries what external surfaces need to route requests, the
// authority and the manifest, and deliberately not the index or file
// handle, which stay internal to the registry.
type Opened struct {
	Authority string
	Manifest  *Manifest
}

// Registry is the process-wide table of open tiles, keyed by authority.
// It owns each registered tile's lifetime: Unregister and Close release
// the underlying file handles. Instances are independent; construct one
// per process, or one per test.
type Registry struct {
	mu       sync.Mutex
	tiles    map[string]*Tile
	onOpened []func(Opened)
	logger   *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithOpenedFunc registers a listener invoked exactly once per
// successful Register, after the tile is visible to Lookup. Listeners
// run synchronously on the registering goroutine.
func WithOpenedFunc(fn func(Opened)) RegistryOption {
	return func(r *Registry) {
		r.onOpened = append(r.onOpened, fn)
	}
}

// WithRegistryLogger sets the logger for registration lifecycle events.
// By default logs are discarded.
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{tiles: make(map[string]*Tile)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) log() *slog.Logger {
	if r.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.logger
}

// DeriveAuthority derives the authority under which a tile file is
// served: the filename stem (path minus directory minus extension),
// lowercased, with every character outside [a-z0-9] replaced by '-'.
// Deterministic and pure.
func DeriveAuthority(filename string) string {
	stem := filepath.Base(filename)
	stem = strings.TrimSuffix(stem, filepath.Ext(stem))
	if stem == "" || stem == "." || stem == string(filepath.Separator) {
		stem = "tile"
	}
	var b strings.Builder
	b.Grow(len(stem))
	for _, c := range strings.ToLower(stem) {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			b.WriteRune(c)
		} else {
			b.WriteByte('-')
		}
	}
	return b.String()
}

// Register adds t under authority and emits the Opened notification.
// The authority is used exactly as given, never rewritten; on collision
// the caller decides how to disambiguate (see RegisterUnique).
func (r *Registry) Register(authority string, t *Tile) error {
	r.mu.Lock()
	if _, ok := r.tiles[authority]; ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAuthorityCollision, authority)
	}
	r.tiles[authority] = t
	listeners := r.onOpened
	r.mu.Unlock()

	r.log().Info("tile registered", "authority", authority, "name", t.manifest.Name)
	ev := Opened{Authority: authority, Manifest: t.manifest}
	for _, fn := range listeners {
		fn(ev)
	}
	return nil
}

// RegisterUnique registers t under authority, retrying with "-2", "-3",
// … appended until no collision remains. Returns the authority actually
// registered.
func (r *Registry) RegisterUnique(authority string, t *Tile) (string, error) {
	candidate := authority
	for i := 2; ; i++ {
		err := r.Register(candidate, t)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, ErrAuthorityCollision) {
			return "", err
		}
		candidate = fmt.Sprintf("%s-%d", authority, i)
	}
}

// Lookup returns the tile registered under authority.
func (r *Registry) Lookup(authority string) (*Tile, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tiles[authority]
	return t, ok
}

// Unregister removes the tile registered under authority and releases
// its file handle. Unregistering an absent authority is a no-op.
func (r *Registry) Unregister(authority string) {
	r.mu.Lock()
	t, ok := r.tiles[authority]
	delete(r.tiles, authority)
	r.mu.Unlock()
	if !ok {
		return
	}
	if err := t.Close(); err != nil {
		r.log().Warn("close tile", "authority", authority, "error", err)
	}
	r.log().Info("tile unregistered", "authority", authority)
}

// Authorities returns the registered authorities, sorted.
func (r *Registry) Authorities() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.tiles))
	for authority := range r.tiles {
		out = append(out, authority)
	}
	slices.Sort(out)
	return out
}

// OpenFile opens the container file at path and registers it under its
// derived authority, disambiguating collisions with a numeric suffix.
// On any failure the file is closed and nothing is registered.
func (r *Registry) OpenFile(path string, opts ...Option) (string, *Tile, error) {
	t, err := Open(path, opts...)
	if err != nil {
		return "", nil, err
	}
	authority, err := r.RegisterUnique(DeriveAuthority(path), t)
	if err != nil {
		t.Close()
		return "", nil, err
	}
	return authority, t, nil
}

// Close unregisters every tile and releases their file handles.
func (r *Registry) Close() error {
	r.mu.Lock()
	tiles := r.tiles
	r.tiles = make(map[string]*Tile)
	r.mu.Unlock()

	var errs []error
	for authority, t := range tiles {
		if err := t.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", authority, err))
		}
	}
	return errors.Join(errs...)
}
