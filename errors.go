package tile

import "errors"

// Open-time errors. All are fatal to that open attempt: the tile is
// never registered and no partial state is retained.
var (
	// ErrRootNotIndexed is returned when the header's root identifier
	// has no corresponding block in the container.
	ErrRootNotIndexed = errors.New("tile: manifest root not present among blocks")

	// ErrInvalidManifest is returned when the root block does not
	// decode into a manifest with a well-formed resource map.
	ErrInvalidManifest = errors.New("tile: invalid manifest")
)

// Resolution errors. Each is fatal to a single request only, never to
// the tile or the registry.
var (
	// ErrTileNotFound is returned when no tile is registered under the
	// requested authority.
	ErrTileNotFound = errors.New("tile: no tile registered for authority")

	// ErrNoSuchResource is returned when the manifest declares no
	// resource at the requested path.
	ErrNoSuchResource = errors.New("tile: no resource at path")

	// ErrDanglingReference is returned when a referenced content
	// identifier is absent from the container index. It indicates a
	// corrupt or inconsistent container.
	ErrDanglingReference = errors.New("tile: content identifier not in container index")

	// ErrDigestMismatch is returned when block verification is enabled
	// and a block's bytes do not match the digest in its identifier.
	ErrDigestMismatch = errors.New("tile: block digest mismatch")

	// ErrBlockTooLarge is returned when a block exceeds the configured
	// size limit.
	ErrBlockTooLarge = errors.New("tile: block exceeds size limit")
)

// ErrAuthorityCollision is returned by Register when the authority is
// already taken. Callers may disambiguate and retry; RegisterUnique
// does so with a numeric suffix.
var ErrAuthorityCollision = errors.New("tile: authority already registered")
