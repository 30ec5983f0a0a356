package tile

import "log/slog"

// Option configures a Tile at open time.
type Option func(*Tile)

// WithVerify controls whether block reads recompute the digest embedded
// in the block's content identifier and reject mismatches. Off by
// default. Blocks hashed with an unrecognized function pass through
// unverified rather than failing.
func WithVerify(enabled bool) Option {
	return func(t *Tile) {
		t.verify = enabled
	}
}

// WithMaxBlockSize limits how many bytes a single block read may
// allocate, bounding what an untrusted container can make the process
// hold in memory. Set limit to 0 to disable the limit.
func WithMaxBlockSize(limit uint64) Option {
	return func(t *Tile) {
		t.maxBlockSize = limit
	}
}

// WithLogger sets the logger used for open and resolve diagnostics.
// By default logs are discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tile) {
		t.logger = logger
	}
}
