// Package cli implements the deckreel command-line interface.
//
// # Commands
//
//   - demo: run the scripted demo protocol with capture attached and render it
//   - render: the renderer process; turns a frame directory into a GIF
//   - animate: orchestrate rendering of an existing frame directory
//   - frames: list and check frame files
//   - tree: draw the resource hierarchy of one frame
//   - cache: manage the raster cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. The logger is
// carried on the command's context.Context and handed explicitly to the
// capture, render and pipeline packages.
package cli

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/deckreel/pkg/buildinfo"
	"github.com/matzehuels/deckreel/pkg/cache"
	"github.com/matzehuels/deckreel/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "deckreel"

	// configEnv names a configuration file when --config is not given.
	configEnv = "DECKREEL_CONFIG"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	verbose     bool
	configPath  string
	metricsFile string
	metrics     *metrics
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "deckreel records lab-automation protocol runs as animations",
		Long: `deckreel captures a snapshot of the deck after every liquid-handling
operation and state change of a protocol run, and renders the captured frames
into an animated GIF.`,
		Version:           buildinfo.Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.preRun,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "TOML configuration file (env "+configEnv+")")
	root.PersistentFlags().StringVar(&c.metricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")

	root.AddCommand(c.demoCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.animateCommand())
	root.AddCommand(c.framesCommand())
	root.AddCommand(c.treeCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

func (c *CLI) preRun(cmd *cobra.Command, args []string) error {
	if c.verbose {
		c.SetLogLevel(LogDebug)
	}
	if c.metricsFile != "" {
		c.metrics = newMetrics()
		c.metrics.install()
	}
	cmd.SetContext(withLogger(cmd.Context(), c.Logger))
	return nil
}

// =============================================================================
// Configuration
// =============================================================================

// loadOptions reads the configuration file named by --config or the
// environment. Without one it returns zero options, which take defaults.
func (c *CLI) loadOptions() (pipeline.Options, error) {
	path := c.configPath
	if path == "" {
		path = os.Getenv(configEnv)
	}
	if path == "" {
		return pipeline.Options{Logger: c.Logger}, nil
	}
	opts, err := pipeline.LoadOptions(path)
	if err != nil {
		return opts, err
	}
	c.Logger.Debug("loaded config", "path", path)
	opts.Logger = c.Logger
	return opts, nil
}

// =============================================================================
// Raster Cache
// =============================================================================

// newRasterCache opens the raster cache. An explicit dir selects a file cache
// there, noCache disables caching, and otherwise rasters are cached in
// memory for the lifetime of the process.
func newRasterCache(dir string, noCache bool) (cache.Cache, error) {
	switch {
	case noCache:
		return cache.NewNullCache(), nil
	case dir != "":
		return cache.NewFileCache(dir)
	default:
		return cache.NewMemoryCache(), nil
	}
}

// rasterKeyer scopes raster keys by build, so rasters drawn by another
// release are never reused.
func rasterKeyer() cache.Keyer {
	return cache.NewScopedKeyer(nil, buildinfo.CacheScope()+":")
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/deckreel/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
