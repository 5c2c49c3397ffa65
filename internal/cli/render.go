package cli

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/matzehuels/deckreel/pkg/errors"
	"github.com/matzehuels/deckreel/pkg/pipeline"
	"github.com/matzehuels/deckreel/pkg/render"
)

// renderOpts holds the flags of the render command.
type renderOpts struct {
	width    int
	height   int
	quality  int
	workers  int
	cacheDir string
	cacheTTL time.Duration
	noCache  bool
	palette  map[string]string // compound label -> hex color
}

// renderCommand creates the renderer process command.
func (c *CLI) renderCommand() *cobra.Command {
	var opts renderOpts

	cmd := &cobra.Command{
		Use:   "render <output.gif> <delayMs> <frameDir>",
		Short: "Render a frame directory into an animated GIF",
		Long: `Render every *.json frame in frameDir, in filename order, into one looping
animated GIF at output, with delayMs milliseconds between frames.

This is the renderer process that 'demo' and 'animate' invoke. It exits 0
when the animation was written and nonzero with diagnostics on stderr
otherwise.

When the working directory holds a renderer.toml manifest, its canvas and
cache settings are used unless overridden by flags.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			delay, err := strconv.Atoi(args[1])
			if err != nil || delay < 0 {
				return errors.New(errors.ErrCodeInvalidInput, "frame delay must be a non-negative integer, got %q", args[1])
			}
			if err := errors.ValidateArtifactPath(args[0]); err != nil {
				return err
			}
			applyManifest(cmd, &opts)
			return c.runRender(cmd.Context(), args[0], delay, args[2], opts)
		},
	}

	cmd.Flags().IntVar(&opts.width, "width", render.DefaultWidth, "canvas width in pixels")
	cmd.Flags().IntVar(&opts.height, "height", render.DefaultHeight, "canvas height in pixels")
	cmd.Flags().IntVar(&opts.quality, "quality", render.DefaultQuality, "palette sampling stride (1 = best)")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "parallel rasterizers (0 = GOMAXPROCS)")
	cmd.Flags().StringVar(&opts.cacheDir, "cache-dir", "", "persist rasters in this directory")
	cmd.Flags().DurationVar(&opts.cacheTTL, "cache-ttl", 7*24*time.Hour, "lifetime of cached rasters (0 keeps them forever)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the raster cache")
	cmd.Flags().StringToStringVar(&opts.palette, "color", nil, "compound colors, e.g. --color \"Compound E=#AA00AA\"")

	return cmd
}

// applyManifest fills canvas options from a renderer manifest in the working
// directory, for flags the caller did not set.
func applyManifest(cmd *cobra.Command, opts *renderOpts) {
	m, err := pipeline.ReadManifest(pipeline.ManifestFile)
	if err != nil {
		return
	}
	flags := cmd.Flags()
	if !flags.Changed("width") && m.Canvas.Width > 0 {
		opts.width = m.Canvas.Width
	}
	if !flags.Changed("height") && m.Canvas.Height > 0 {
		opts.height = m.Canvas.Height
	}
	if !flags.Changed("quality") && m.Canvas.Quality > 0 {
		opts.quality = m.Canvas.Quality
	}
	if !flags.Changed("cache-dir") && m.CacheDir != "" {
		opts.cacheDir = m.CacheDir
	}
}

func (c *CLI) runRender(ctx context.Context, output string, delay int, frameDir string, opts renderOpts) error {
	logger := loggerFromContext(ctx)

	rc, err := newRasterCache(opts.cacheDir, opts.noCache)
	if err != nil {
		return err
	}
	defer rc.Close()

	palette := render.DefaultPalette()
	for label, hex := range opts.palette {
		if err := palette.SetCompound(label, hex); err != nil {
			return err
		}
	}

	out, err := filepath.Abs(output)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "resolve %s", output)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "create output directory")
	}

	eng := render.NewEngine(render.Options{
		Width:   opts.width,
		Height:  opts.height,
		Quality: opts.quality,
		DelayMs: delay,
		Workers: opts.workers,
	},
		render.WithCache(rc),
		render.WithCacheTTL(opts.cacheTTL),
		render.WithKeyer(rasterKeyer()),
		render.WithLogger(logger),
		render.WithPalette(palette),
	)

	prog := newProgress(logger)
	res, err := eng.RenderDir(ctx, frameDir, out)
	if err != nil {
		return err
	}
	prog.done("render finished", "frames", res.Frames, "cached", res.Cached, "size", humanize.Bytes(uint64(res.Bytes)))
	return nil
}
