package pipeline

import (
	"context"
	"fmt"
	"image/gif"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/deckreel/pkg/errors"
	"github.com/matzehuels/deckreel/pkg/event"
	"github.com/matzehuels/deckreel/pkg/render"
	"github.com/matzehuels/deckreel/pkg/resource"
	"github.com/matzehuels/deckreel/pkg/snapshot"
)

const fakeRendererEnv = "DECKREEL_FAKE_RENDERER"

// TestMain lets the test binary stand in for the renderer process. When
// fakeRendererEnv is set it behaves as the selected renderer and exits.
func TestMain(m *testing.M) {
	if mode := os.Getenv(fakeRendererEnv); mode != "" {
		os.Exit(fakeRenderer(mode, os.Args[len(os.Args)-3:]))
	}
	os.Exit(m.Run())
}

func fakeRenderer(mode string, args []string) int {
	artifact, delay, frameDir := args[0], args[1], args[2]
	switch mode {
	case "ok":
		paths, err := snapshot.ListFrames(frameDir)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Println("rendering", len(paths), "frames")
		if err := os.WriteFile(artifact, []byte(fmt.Sprintf("%s %d", delay, len(paths))), 0644); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0
	case "engine":
		ms, _ := strconv.Atoi(delay)
		eng := render.NewEngine(render.Options{Width: 200, Height: 120, DelayMs: ms})
		if _, err := eng.RenderDir(context.Background(), frameDir, artifact); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0
	case "fail":
		fmt.Fprintln(os.Stderr, "boom: canvas unavailable")
		return 3
	case "noop":
		return 0
	case "sleep":
		time.Sleep(10 * time.Second)
		return 0
	}
	return 2
}

func fakeOptions(t *testing.T, mode string) Options {
	t.Helper()
	t.Setenv(fakeRendererEnv, mode)
	dir := t.TempDir()
	return Options{
		FrameDir:     filepath.Join(dir, "frames"),
		ArtifactPath: filepath.Join(dir, "out", "protocol.gif"),
		FrameDelayMs: 100,
		Renderer:     []string{os.Args[0]},
	}
}

func writeFrames(t *testing.T, dir string, n int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	s := &snapshot.Snapshot{Name: "deck", Type: resource.TypeDeck, SizeX: 100, SizeY: 60, State: map[string]any{}, Children: []*snapshot.Snapshot{}}
	for i := 0; i < n; i++ {
		_, err := snapshot.WriteFrame(dir, i, "operation_aspirate", s)
		require.NoError(t, err)
	}
}

func setupRunner(t *testing.T, opts Options) *Runner {
	t.Helper()
	r := NewRunner(opts)
	require.NoError(t, r.Setup(context.Background()))
	t.Cleanup(func() { r.Close() })
	return r
}

func TestOptionsDefaults(t *testing.T) {
	var o Options
	require.NoError(t, o.ValidateAndSetDefaults())
	assert.Equal(t, DefaultFrameDir, o.FrameDir)
	assert.Equal(t, DefaultArtifactPath, o.ArtifactPath)
	assert.Equal(t, 100, o.FrameDelayMs)
	assert.Equal(t, render.DefaultWidth, o.Width)
	assert.NotNil(t, o.Logger)

	ro := o.RenderOptions()
	assert.Equal(t, 100, ro.DelayMs)
	assert.Equal(t, render.DefaultQuality, ro.Quality)
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		code errors.Code
	}{
		{"not a gif", Options{ArtifactPath: "out.png"}, errors.ErrCodeInvalidPath},
		{"negative delay", Options{FrameDelayMs: -1}, errors.ErrCodeInvalidInput},
		{"negative timeout", Options{Timeout: -time.Second}, errors.ErrCodeInvalidInput},
		{"negative size", Options{Width: -5}, errors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.ValidateAndSetDefaults()
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.GetCode(err))
		})
	}
}

func TestLoadOptions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deckreel.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
frame_dir = "frames"
artifact_path = "run.gif"
frame_delay_ms = 250
timeout = "30s"
renderer = ["deckreel", "render"]
`), 0644))

	o, err := LoadOptions(path)
	require.NoError(t, err)
	assert.Equal(t, "frames", o.FrameDir)
	assert.Equal(t, "run.gif", o.ArtifactPath)
	assert.Equal(t, 250, o.FrameDelayMs)
	assert.Equal(t, 30*time.Second, o.Timeout)
	assert.Equal(t, []string{"deckreel", "render"}, o.Renderer)

	require.NoError(t, os.WriteFile(path, []byte("frame_dlay_ms = 1\n"), 0644))
	_, err = LoadOptions(path)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))

	_, err = LoadOptions(filepath.Join(dir, "missing.toml"))
	assert.True(t, errors.Is(err, errors.ErrCodeFileNotFound))
}

func TestRunnerSetup(t *testing.T) {
	opts := fakeOptions(t, "ok")
	opts.Width = 640
	r := setupRunner(t, opts)

	dir := r.WorkDir()
	require.DirExists(t, dir)
	m, err := ReadManifest(filepath.Join(dir, ManifestFile))
	require.NoError(t, err)
	assert.Equal(t, Capabilities, m.Capabilities)
	assert.Equal(t, 640, m.Canvas.Width)
	assert.Equal(t, r.Manifest().RunID, m.RunID)
	assert.True(t, filepath.IsAbs(m.Command[0]))

	err = r.Setup(context.Background())
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidState))

	require.NoError(t, r.Close())
	assert.NoDirExists(t, dir)
	assert.NoError(t, r.Close())
}

func TestRunnerSetupMissingRenderer(t *testing.T) {
	opts := fakeOptions(t, "ok")
	opts.Renderer = []string{"deckreel-no-such-renderer"}
	err := NewRunner(opts).Setup(context.Background())
	assert.True(t, errors.Is(err, errors.ErrCodeSetup))
}

func TestRunnerRender(t *testing.T) {
	opts := fakeOptions(t, "ok")
	writeFrames(t, opts.FrameDir, 3)
	r := setupRunner(t, opts)

	res, err := r.Render(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Frames)
	assert.Contains(t, res.Stdout, "rendering 3 frames")

	data, err := os.ReadFile(opts.ArtifactPath)
	require.NoError(t, err)
	assert.Equal(t, "100 3", string(data))
	assert.Equal(t, int64(len(data)), res.Bytes)
}

func TestRunnerRenderBeforeSetup(t *testing.T) {
	_, err := NewRunner(fakeOptions(t, "ok")).Render(context.Background())
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidState))
}

func TestRunnerRenderNoFrames(t *testing.T) {
	opts := fakeOptions(t, "ok")
	require.NoError(t, os.MkdirAll(opts.FrameDir, 0755))
	r := setupRunner(t, opts)

	_, err := r.Render(context.Background())
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

func TestRunnerRenderNonzeroExit(t *testing.T) {
	opts := fakeOptions(t, "fail")
	writeFrames(t, opts.FrameDir, 1)
	r := setupRunner(t, opts)

	res, err := r.Render(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeRenderInvocation, errors.GetCode(err))
	assert.Contains(t, err.Error(), "status 3")
	assert.Contains(t, err.Error(), "boom: canvas unavailable")
	assert.Contains(t, res.Stderr, "boom")
	assert.NoFileExists(t, opts.ArtifactPath)
}

func TestRunnerRenderArtifactMissing(t *testing.T) {
	opts := fakeOptions(t, "noop")
	writeFrames(t, opts.FrameDir, 1)
	r := setupRunner(t, opts)

	_, err := r.Render(context.Background())
	assert.Equal(t, errors.ErrCodeRenderArtifactMissing, errors.GetCode(err))
}

func TestRunnerRenderStaleArtifact(t *testing.T) {
	opts := fakeOptions(t, "noop")
	writeFrames(t, opts.FrameDir, 1)
	require.NoError(t, os.MkdirAll(filepath.Dir(opts.ArtifactPath), 0755))
	require.NoError(t, os.WriteFile(opts.ArtifactPath, []byte("GIF89a"), 0644))
	r := setupRunner(t, opts)

	_, err := r.Render(context.Background())
	assert.Equal(t, errors.ErrCodeRenderArtifactMissing, errors.GetCode(err))
}

func TestRunnerRenderTimeout(t *testing.T) {
	opts := fakeOptions(t, "sleep")
	opts.Timeout = 200 * time.Millisecond
	writeFrames(t, opts.FrameDir, 1)
	r := setupRunner(t, opts)

	start := time.Now()
	_, err := r.Render(context.Background())
	assert.Equal(t, errors.ErrCodeTimeout, errors.GetCode(err))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRunnerStagesFramesAtInvocation(t *testing.T) {
	opts := fakeOptions(t, "ok")
	writeFrames(t, opts.FrameDir, 2)
	r := setupRunner(t, opts)

	_, err := r.Render(context.Background())
	require.NoError(t, err)
	writeFrames(t, opts.FrameDir, 4)
	_, err = r.Render(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(opts.ArtifactPath)
	require.NoError(t, err)
	assert.Equal(t, "100 4", string(data))
	assert.DirExists(t, filepath.Join(r.WorkDir(), "frames-1"))
	assert.DirExists(t, filepath.Join(r.WorkDir(), "frames-2"))
}

func buildDeck(t *testing.T) (*resource.Node, *resource.Node) {
	t.Helper()
	ctx := context.Background()
	deck := resource.NewDeck("deck", 300, 200, 0)
	plate := resource.NewPlate("plate", 2, 3, 9, 360)
	require.NoError(t, deck.Assign(ctx, plate, resource.Coordinate{X: 20, Y: 20}))
	return deck, plate
}

func TestVisualizerEndToEnd(t *testing.T) {
	opts := fakeOptions(t, "engine")
	deck, plate := buildDeck(t)
	bus := event.NewBus()
	deck.AttachBus(bus)

	vis, err := NewVisualizer(deck, bus, opts)
	require.NoError(t, err)
	defer vis.Close()

	ctx := context.Background()
	require.NoError(t, vis.Setup(ctx))
	require.NoError(t, bus.Fire(ctx, event.Op(event.Aspirate)))
	require.NoError(t, plate.Find("plate_well_A1").AddLiquid(ctx, "Compound A", 40))
	require.NoError(t, bus.Fire(ctx, event.Op(event.Dispense)))

	paths, err := snapshot.ListFrames(opts.FrameDir)
	require.NoError(t, err)
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}
	assert.Equal(t, []string{
		"frame_0000_initial_state.json",
		"frame_0001_operation_aspirate.json",
		"frame_0002_state_update_plate_well_A1.json",
		"frame_0003_operation_dispense.json",
	}, names)

	out, err := vis.Stop(ctx)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(out))

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	g, err := gif.DecodeAll(f)
	require.NoError(t, err)
	assert.Len(t, g.Image, 4)
	assert.Equal(t, 10, g.Delay[0])

	// Events after Stop are ignored.
	require.NoError(t, bus.Fire(ctx, event.Op(event.Aspirate)))
	assert.Equal(t, 4, vis.Recorder().Count())

	_, err = vis.Stop(ctx)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidState))
}

func TestVisualizerCaptureFailureIsFatal(t *testing.T) {
	opts := fakeOptions(t, "ok")
	deck, _ := buildDeck(t)
	bus := event.NewBus()

	vis, err := NewVisualizer(deck, bus, opts)
	require.NoError(t, err)
	defer vis.Close()
	require.NoError(t, vis.Setup(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = bus.Fire(ctx, event.Op(event.Aspirate))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeEventCapture, errors.GetCode(err))
	assert.Equal(t, 1, errors.FrameOf(err))
}

func TestNewVisualizerValidates(t *testing.T) {
	_, err := NewVisualizer(nil, event.NewBus(), Options{})
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))

	deck, _ := buildDeck(t)
	_, err = NewVisualizer(deck, event.NewBus(), Options{ArtifactPath: "x.mp4"})
	assert.Error(t, err)
}
