package pipeline

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/deckreel/pkg/errors"
)

// ManifestFile is the name of the renderer manifest in the work area.
const ManifestFile = "renderer.toml"

// Capabilities a renderer must provide.
var Capabilities = []string{"raster-canvas-2d", "animation-encoder"}

// Manifest describes the staged renderer. It is written to the work area
// during Setup so the environment a render ran in can be inspected.
type Manifest struct {
	RunID        string    `toml:"run_id"`
	Command      []string  `toml:"command"`
	Capabilities []string  `toml:"capabilities"`
	Canvas       Canvas    `toml:"canvas"`
	CacheDir     string    `toml:"cache_dir,omitempty"`
	CreatedAt    time.Time `toml:"created_at"`
}

// Canvas is the render surface recorded in the manifest.
type Canvas struct {
	Width   int `toml:"width"`
	Height  int `toml:"height"`
	Quality int `toml:"quality"`
}

// Runner is the render orchestrator. It owns the boundary to the external
// renderer process: Setup stages the renderer once, each Render stages the
// current frames and invokes it, and Close removes the work area.
type Runner struct {
	opts   Options
	logger *log.Logger
	runID  string

	mu       sync.Mutex
	command  []string
	workDir  string
	manifest Manifest
	renders  int
}

// NewRunner creates an orchestrator. Options are validated by Setup.
func NewRunner(opts Options) *Runner {
	return &Runner{opts: opts, runID: uuid.NewString()}
}

// Options returns the runner's options, with defaults applied after Setup.
func (r *Runner) Options() Options { return r.opts }

// WorkDir returns the isolated work area, or "" before Setup.
func (r *Runner) WorkDir() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.workDir
}

// Manifest returns the manifest written by Setup.
func (r *Runner) Manifest() Manifest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.manifest
}

// Setup resolves the renderer executable, creates the work area and writes
// the renderer manifest. It runs once; failures are SETUP_FAILURE errors.
func (r *Runner) Setup(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.workDir != "" {
		return errors.New(errors.ErrCodeInvalidState, "renderer already set up in %s", r.workDir)
	}
	if err := r.opts.ValidateAndSetDefaults(); err != nil {
		return err
	}
	r.logger = r.opts.Logger.With("run", r.runID[:8])

	command, err := resolveRenderer(r.opts.Renderer)
	if err != nil {
		return err
	}

	// The renderer runs inside the work area, so every path it reads from
	// the manifest must be absolute.
	cacheDir := r.opts.CacheDir
	if cacheDir != "" {
		if cacheDir, err = filepath.Abs(cacheDir); err != nil {
			return errors.Wrap(errors.ErrCodeSetup, err, "resolve cache directory")
		}
	}

	dir, err := os.MkdirTemp("", "deckreel-"+r.runID[:8]+"-")
	if err != nil {
		return errors.Wrap(errors.ErrCodeSetup, err, "create work area")
	}

	manifest := Manifest{
		RunID:        r.runID,
		Command:      command,
		Capabilities: Capabilities,
		Canvas:       Canvas{Width: r.opts.Width, Height: r.opts.Height, Quality: r.opts.Quality},
		CacheDir:     cacheDir,
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	if err := writeManifest(filepath.Join(dir, ManifestFile), manifest); err != nil {
		os.RemoveAll(dir)
		return errors.Wrap(errors.ErrCodeSetup, err, "write renderer manifest")
	}

	r.command = command
	r.workDir = dir
	r.manifest = manifest
	r.logger.Debug("renderer ready", "command", command, "work_dir", dir)
	return nil
}

// resolveRenderer returns the absolute argv prefix of the renderer. An empty
// configuration selects this binary's render subcommand.
func resolveRenderer(renderer []string) ([]string, error) {
	if len(renderer) == 0 {
		exe, err := os.Executable()
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeSetup, err, "locate own executable")
		}
		return []string{exe, RenderSubcommand}, nil
	}
	path, err := exec.LookPath(renderer[0])
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSetup, err, "renderer %q not found", renderer[0])
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return append([]string{path}, renderer[1:]...), nil
}

func writeManifest(path string, m Manifest) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(m); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

// ReadManifest loads a renderer manifest.
func ReadManifest(path string) (Manifest, error) {
	var m Manifest
	if _, err := toml.DecodeFile(path, &m); err != nil {
		return m, errors.Wrap(errors.ErrCodeInvalidInput, err, "read manifest %s", path)
	}
	return m, nil
}

// Close removes the work area. It is safe to call more than once.
func (r *Runner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.workDir == "" {
		return nil
	}
	err := os.RemoveAll(r.workDir)
	r.workDir = ""
	return err
}
