package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/matzehuels/deckreel/pkg/pipeline"
)

// runFlags are the run configuration flags shared by demo and animate. Only
// flags set on the command line override the configuration file.
type runFlags struct {
	frameDir string
	output   string
	delay    int
	width    int
	height   int
	quality  int
	timeout  time.Duration
	renderer []string
	cacheDir string
}

func (f *runFlags) bind(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.frameDir, "frame-dir", pipeline.DefaultFrameDir, "directory for frame files")
	fl.StringVarP(&f.output, "output", "o", pipeline.DefaultArtifactPath, "output GIF path")
	fl.IntVar(&f.delay, "delay", pipeline.DefaultFrameDelayMs, "delay between frames in milliseconds")
	fl.IntVar(&f.width, "width", 0, "canvas width in pixels (default from config or 2000)")
	fl.IntVar(&f.height, "height", 0, "canvas height in pixels (default from config or 1200)")
	fl.IntVar(&f.quality, "quality", 0, "palette sampling stride (default from config or 10)")
	fl.DurationVar(&f.timeout, "timeout", 0, "renderer timeout (0 waits forever)")
	fl.StringSliceVar(&f.renderer, "renderer", nil, "renderer command (default: this binary's render command)")
	fl.StringVar(&f.cacheDir, "cache-dir", "", "persist rasters in this directory")
}

// apply overrides opts with the flags set on cmd.
func (f *runFlags) apply(cmd *cobra.Command, opts *pipeline.Options) {
	fl := cmd.Flags()
	if fl.Changed("frame-dir") || opts.FrameDir == "" {
		opts.FrameDir = f.frameDir
	}
	if fl.Changed("output") || opts.ArtifactPath == "" {
		opts.ArtifactPath = f.output
	}
	if fl.Changed("delay") || opts.FrameDelayMs == 0 {
		opts.FrameDelayMs = f.delay
	}
	if fl.Changed("width") {
		opts.Width = f.width
	}
	if fl.Changed("height") {
		opts.Height = f.height
	}
	if fl.Changed("quality") {
		opts.Quality = f.quality
	}
	if fl.Changed("timeout") {
		opts.Timeout = f.timeout
	}
	if fl.Changed("renderer") {
		opts.Renderer = f.renderer
	}
	if fl.Changed("cache-dir") {
		opts.CacheDir = f.cacheDir
	}
}

// options loads the configuration file and applies the flags.
func (c *CLI) options(cmd *cobra.Command, f *runFlags) (pipeline.Options, error) {
	opts, err := c.loadOptions()
	if err != nil {
		return opts, err
	}
	f.apply(cmd, &opts)
	return opts, opts.ValidateAndSetDefaults()
}

// animateCommand creates the command that renders an existing frame
// directory through the render orchestrator.
func (c *CLI) animateCommand() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "animate [frameDir]",
		Short: "Render an existing frame directory through the renderer process",
		Long: `Render the frames of a previous run into an animated GIF.

animate stages the frame files present now into an isolated work area and
invokes the renderer on them, surfacing the renderer's diagnostics when it
fails. Use 'render' to run the renderer directly.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				if err := cmd.Flags().Set("frame-dir", args[0]); err != nil {
					return err
				}
			}
			opts, err := c.options(cmd, &flags)
			if err != nil {
				return err
			}
			return c.runAnimate(cmd.Context(), opts)
		},
	}
	flags.bind(cmd)

	return cmd
}

func (c *CLI) runAnimate(ctx context.Context, opts pipeline.Options) error {
	runner := pipeline.NewRunner(opts)
	if err := runner.Setup(ctx); err != nil {
		return err
	}
	defer runner.Close()

	res, err := c.renderWithSpinner(ctx, runner)
	if err != nil {
		return err
	}
	printSuccess("Animation written")
	printFile(res.Path)
	printRenderStats(res.Frames, 0, humanize.Bytes(uint64(res.Bytes)))
	return nil
}

// renderWithSpinner runs one orchestrated render with a progress spinner.
func (c *CLI) renderWithSpinner(ctx context.Context, runner *pipeline.Runner) (pipeline.Result, error) {
	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Rendering %s...", runner.Options().FrameDir))
	spinner.Start()

	res, err := runner.Render(ctx)
	if err != nil {
		spinner.StopWithError("Render failed")
		return res, err
	}
	spinner.Stop()
	return res, nil
}
