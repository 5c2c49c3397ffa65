package render

import (
	"bytes"
	"context"
	"image"
	"image/gif"
	"io"
	"path/filepath"
	"runtime"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/deckreel/pkg/cache"
	"github.com/matzehuels/deckreel/pkg/errors"
	"github.com/matzehuels/deckreel/pkg/observability"
	"github.com/matzehuels/deckreel/pkg/snapshot"
)

// Defaults applied by [NewEngine] to unset [Options] fields.
const (
	DefaultWidth   = 2000
	DefaultHeight  = 1200
	DefaultQuality = 10
	DefaultDelayMs = 100
)

// Options controls rasterization and encoding.
type Options struct {
	Width   int
	Height  int
	Quality int // palette sampling stride; 1 samples every pixel
	DelayMs int
	Workers int // 0 uses GOMAXPROCS
}

func (o *Options) setDefaults() {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Quality <= 0 {
		o.Quality = DefaultQuality
	}
	if o.DelayMs < 0 {
		o.DelayMs = DefaultDelayMs
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
}

// EngineOption configures an [Engine].
type EngineOption func(*Engine)

// WithCache sets the raster cache.
func WithCache(c cache.Cache) EngineOption { return func(e *Engine) { e.cache = c } }

// WithKeyer sets how raster cache keys are built.
func WithKeyer(k cache.Keyer) EngineOption { return func(e *Engine) { e.keyer = k } }

// WithLogger sets the logger for cache warnings.
func WithLogger(l *log.Logger) EngineOption { return func(e *Engine) { e.logger = l } }

// WithPalette sets the fill colors. Nil keeps [DefaultPalette].
func WithPalette(p *Palette) EngineOption { return func(e *Engine) { e.palette = p } }

// WithCacheTTL sets the expiry of cached rasters. Zero never expires.
func WithCacheTTL(ttl time.Duration) EngineOption { return func(e *Engine) { e.ttl = ttl } }

// Engine renders a directory of frame files into one animation.
type Engine struct {
	opts    Options
	cache   cache.Cache
	keyer   cache.Keyer
	logger  *log.Logger
	palette *Palette
	ttl     time.Duration

	paletteDigest string
}

// Result summarizes one render.
type Result struct {
	Path   string
	Frames int
	Cached int
	Bytes  int64
}

// NewEngine creates an engine. Without [WithCache] no rasters are reused.
func NewEngine(opts Options, eopts ...EngineOption) *Engine {
	opts.setDefaults()
	e := &Engine{
		opts:    opts,
		cache:   cache.NewNullCache(),
		keyer:   cache.NewDefaultKeyer(),
		logger:  log.New(io.Discard),
		palette: DefaultPalette(),
	}
	for _, o := range eopts {
		o(e)
	}
	if e.palette == nil {
		e.palette = DefaultPalette()
	}
	e.paletteDigest = e.palette.Digest()
	return e
}

// Options returns the engine's effective options.
func (e *Engine) Options() Options { return e.opts }

type rendered struct {
	img    *image.Paletted
	cached bool
}

// RenderDir renders every *.json frame in frameDir, in filename order, to a
// GIF at out. The artifact appears only after the whole sequence encodes.
func (e *Engine) RenderDir(ctx context.Context, frameDir, out string) (Result, error) {
	start := time.Now()
	paths, err := snapshot.ListFrames(frameDir)
	if err != nil {
		return Result{}, err
	}
	if len(paths) == 0 {
		return Result{}, errors.New(errors.ErrCodeInvalidInput, "no frame files in %s", frameDir)
	}

	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}
	e.logger.Info("rendering frames", "count", len(paths), "dir", frameDir)
	e.logger.Debug("frame files", "files", names)

	hooks := observability.Render()
	hooks.OnRenderStart(ctx, len(paths))
	res, err := e.render(ctx, paths, out)
	hooks.OnRenderComplete(ctx, res.Frames, res.Bytes, time.Since(start), err)
	if err != nil {
		return Result{}, err
	}

	e.logger.Info("animation written",
		"path", out,
		"frames", res.Frames,
		"cached", res.Cached,
		"size", humanize.Bytes(uint64(res.Bytes)),
		"took", time.Since(start).Round(time.Millisecond))
	return res, nil
}

func (e *Engine) render(ctx context.Context, paths []string, out string) (Result, error) {
	frames := make([]rendered, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i, p := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			t := time.Now()
			f, err := snapshot.ReadFrame(p)
			if err != nil {
				return err
			}
			img, cached, err := e.Frame(gctx, f)
			if err != nil {
				return err
			}
			frames[i] = rendered{img: img, cached: cached}
			observability.Render().OnFrameRendered(gctx, f.Index, cached, time.Since(t))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	enc := NewEncoder(e.opts.DelayMs)
	res := Result{Path: out}
	for _, f := range frames {
		enc.Add(f.img)
		if f.cached {
			res.Cached++
		}
	}
	size, err := enc.WriteFile(out)
	if err != nil {
		return Result{}, errors.Wrap(errors.ErrCodeInternal, err, "write animation %s", out)
	}
	res.Frames = enc.Len()
	res.Bytes = size
	return res, nil
}

// Frame rasterizes and quantizes one frame, reusing a cached raster of an
// identical snapshot when available.
func (e *Engine) Frame(ctx context.Context, f *snapshot.Frame) (*image.Paletted, bool, error) {
	hash, err := cache.HashJSON(f.Snapshot)
	if err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeInvalidFrame, err, "hash frame").WithFrame(f.Index).WithEvent(f.Label)
	}
	key := e.keyer.RasterKey(hash, cache.RasterKeyOpts{
		Width:   e.opts.Width,
		Height:  e.opts.Height,
		Quality: e.opts.Quality,
		Palette: e.paletteDigest,
	})

	if data, ok, err := e.cache.Get(ctx, key); err != nil {
		e.logger.Warn("raster cache read failed", "frame", f.Index, "err", err)
	} else if ok {
		if img, err := decodeRaster(data); err == nil {
			return img, true, nil
		}
		_ = e.cache.Delete(ctx, key)
	}

	img, err := Rasterize(f.Snapshot, e.opts.Width, e.opts.Height, e.palette)
	if err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeInvalidFrame, err, "rasterize").WithFrame(f.Index).WithEvent(f.Label)
	}
	p := Quantize(img, e.opts.Quality)

	if data, err := encodeRaster(p); err == nil {
		if err := e.cache.Set(ctx, key, data, e.ttl); err != nil {
			e.logger.Warn("raster cache write failed", "frame", f.Index, "err", err)
		}
	}
	return p, false, nil
}

// Rasters are cached as single-frame GIFs, which preserves the palette
// exactly.
func encodeRaster(p *image.Paletted) ([]byte, error) {
	var buf bytes.Buffer
	if err := gif.Encode(&buf, p, &gif.Options{NumColors: len(p.Palette)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeRaster(data []byte) (*image.Paletted, error) {
	img, err := gif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	p, ok := img.(*image.Paletted)
	if !ok {
		return nil, errors.New(errors.ErrCodeInternal, "cached raster is %T", img)
	}
	return p, nil
}
