// Package pipeline ties frame capture to the external render step.
//
// It owns the run configuration ([Options]), the render orchestrator
// ([Runner]) that drives the renderer process, and the [Visualizer] session
// that attaches a capture recorder to a live resource tree and produces the
// animation when the run stops.
//
// # Usage
//
// Record a protocol run and render it:
//
//	vis, err := pipeline.NewVisualizer(deck, bus, pipeline.Options{
//	    FrameDir:     "visualization_frames",
//	    ArtifactPath: "protocol.gif",
//	    FrameDelayMs: 100,
//	    Logger:       logger,
//	})
//	if err != nil {
//	    return err
//	}
//	defer vis.Close()
//	if err := vis.Setup(ctx); err != nil { // frame 0
//	    return err
//	}
//	// ... run the protocol; every event fired on bus captures a frame
//	gif, err := vis.Stop(ctx)
//
// Render an existing frame directory without capturing:
//
//	runner := pipeline.NewRunner(opts)
//	if err := runner.Setup(ctx); err != nil {
//	    return err
//	}
//	defer runner.Close()
//	res, err := runner.Render(ctx)
//
// # Renderer Contract
//
// The renderer is any executable invoked as
//
//	<renderer...> <artifactPath> <frameDelayMs> <frameDir>
//
// that renders every *.json file in frameDir in lexicographic order into one
// animation at artifactPath, exiting 0 on success and nonzero with
// diagnostics on stderr otherwise. The default renderer is this binary's own
// "render" subcommand.
package pipeline

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/deckreel/pkg/errors"
	"github.com/matzehuels/deckreel/pkg/render"
)

// =============================================================================
// Default Values
// =============================================================================

const (
	// DefaultFrameDir is where frame files are written.
	DefaultFrameDir = "visualization_frames"

	// DefaultArtifactPath is where the animation is written.
	DefaultArtifactPath = "protocol.gif"

	// DefaultFrameDelayMs is the delay between animation frames.
	DefaultFrameDelayMs = render.DefaultDelayMs

	// RenderSubcommand is the subcommand of this binary that implements the
	// renderer contract.
	RenderSubcommand = "render"
)

// =============================================================================
// Options - Run Configuration
// =============================================================================

// Options is the run configuration. It can be loaded from a TOML file with
// [LoadOptions]; CLI flags override file values.
type Options struct {
	FrameDir     string        `toml:"frame_dir" json:"frame_dir"`
	ArtifactPath string        `toml:"artifact_path" json:"artifact_path"`
	FrameDelayMs int           `toml:"frame_delay_ms" json:"frame_delay_ms"`
	Width        int           `toml:"width" json:"width,omitempty"`
	Height       int           `toml:"height" json:"height,omitempty"`
	Quality      int           `toml:"quality" json:"quality,omitempty"`
	Timeout      time.Duration `toml:"timeout" json:"timeout,omitempty"` // 0 waits forever
	Renderer     []string      `toml:"renderer" json:"renderer,omitempty"`
	CacheDir     string        `toml:"cache_dir" json:"cache_dir,omitempty"`

	// Runtime options (not serialized)
	Logger *log.Logger `toml:"-" json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool
}

// SetDefaults fills unset fields.
func (o *Options) SetDefaults() {
	if o.FrameDir == "" {
		o.FrameDir = DefaultFrameDir
	}
	if o.ArtifactPath == "" {
		o.ArtifactPath = DefaultArtifactPath
	}
	if o.FrameDelayMs == 0 {
		o.FrameDelayMs = DefaultFrameDelayMs
	}
	if o.Width == 0 {
		o.Width = render.DefaultWidth
	}
	if o.Height == 0 {
		o.Height = render.DefaultHeight
	}
	if o.Quality == 0 {
		o.Quality = render.DefaultQuality
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// Validate checks field values. It does not touch the filesystem.
func (o *Options) Validate() error {
	if err := errors.ValidateArtifactPath(o.ArtifactPath); err != nil {
		return err
	}
	if o.FrameDir == "" {
		return errors.New(errors.ErrCodeInvalidPath, "frame directory is required")
	}
	if o.FrameDelayMs < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "frame delay must not be negative, got %dms", o.FrameDelayMs)
	}
	if o.Width < 0 || o.Height < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "canvas size must be positive, got %dx%d", o.Width, o.Height)
	}
	if o.Quality < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "quality must be positive, got %d", o.Quality)
	}
	if o.Timeout < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "timeout must not be negative, got %s", o.Timeout)
	}
	return nil
}

// ValidateAndSetDefaults applies defaults and validates. It is idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	o.SetDefaults()
	if err := o.Validate(); err != nil {
		return err
	}
	o.validated = true
	return nil
}

// RenderOptions returns the render engine options these settings imply.
func (o *Options) RenderOptions() render.Options {
	return render.Options{
		Width:   o.Width,
		Height:  o.Height,
		Quality: o.Quality,
		DelayMs: o.FrameDelayMs,
	}
}

// LoadOptions reads a TOML configuration file. Unknown keys are rejected.
func LoadOptions(path string) (Options, error) {
	var o Options
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return o, errors.Wrap(errors.ErrCodeFileNotFound, err, "config %s", path)
	}
	if err != nil {
		return o, fmt.Errorf("read config: %w", err)
	}
	md, err := toml.Decode(string(data), &o)
	if err != nil {
		return o, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return o, errors.New(errors.ErrCodeInvalidInput, "config %s: unknown key %q", path, undecoded[0].String())
	}
	return o, nil
}
