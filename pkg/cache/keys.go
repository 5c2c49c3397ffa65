package cache

// Keyer generates cache keys for render products.
type Keyer interface {
	// RasterKey keys the raster of one frame snapshot.
	RasterKey(snapshotHash string, opts RasterKeyOpts) string
}

// RasterKeyOpts are the canvas options a raster depends on.
type RasterKeyOpts struct {
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Quality int    `json:"quality"`
	Palette string `json:"palette"` // digest of the fill colors
}

// DefaultKeyer hashes key components with SHA-256.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// RasterKey implements [Keyer].
func (DefaultKeyer) RasterKey(snapshotHash string, opts RasterKeyOpts) string {
	return hashKey("raster", snapshotHash, opts)
}

// ScopedKeyer prefixes every key of an inner Keyer. The CLI scopes keys by
// release so that a drawing change never serves stale rasters.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix. A nil inner keyer uses
// [DefaultKeyer].
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// RasterKey implements [Keyer].
func (k *ScopedKeyer) RasterKey(snapshotHash string, opts RasterKeyOpts) string {
	return k.prefix + k.inner.RasterKey(snapshotHash, opts)
}
