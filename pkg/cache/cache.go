// Package cache stores rendered frame rasters between runs.
//
// Rasterizing a frame is a pure function of its snapshot and the canvas
// options, so the render engine keys each raster by a hash of both and
// skips drawing when an identical frame was rendered before. Re-rendering a
// frame directory after appending a few frames only draws the new ones.
//
// Three backends implement [Cache]:
//
//   - [FileCache] persists entries under a directory (CLI --cache-dir)
//   - [MemoryCache] keeps entries for the lifetime of the process (the CLI default)
//   - [NullCache] disables caching
//
// Keys are produced by a [Keyer]; see [DefaultKeyer] and [ScopedKeyer].
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with optional expiry.
type Cache interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	Close() error
}
