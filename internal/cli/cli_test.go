package cli

import (
	"bytes"
	"context"
	"image/gif"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/deckreel/pkg/capture"
	"github.com/matzehuels/deckreel/pkg/errors"
	"github.com/matzehuels/deckreel/pkg/event"
	"github.com/matzehuels/deckreel/pkg/protocol"
	"github.com/matzehuels/deckreel/pkg/snapshot"
)

const cliProcessEnv = "DECKREEL_CLI_PROCESS"

// TestMain lets the test binary act as the deckreel binary, so the demo can
// invoke its own render command as a separate process.
func TestMain(m *testing.M) {
	if os.Getenv(cliProcessEnv) != "" {
		if err := Execute(context.Background(), os.Args[1:], os.Stderr); err != nil {
			os.Stderr.WriteString(err.Error() + "\n")
			os.Exit(1)
		}
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func captureStdout(t *testing.T) *bytes.Buffer {
	t.Helper()
	prev := stdout
	var b bytes.Buffer
	stdout = &b
	t.Cleanup(func() { stdout = prev })
	return &b
}

// writeConfig writes a configuration that renders small canvases through
// the test binary.
func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	t.Setenv(cliProcessEnv, "1")

	path := filepath.Join(dir, "deckreel.toml")
	cfg := `frame_dir = "` + filepath.ToSlash(filepath.Join(dir, "frames")) + `"
artifact_path = "` + filepath.ToSlash(filepath.Join(dir, "out", "protocol.gif")) + `"
frame_delay_ms = 50
width = 200
height = 120
renderer = ["` + filepath.ToSlash(os.Args[0]) + `", "render"]
`
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0644))
	return path
}

// recordFrames captures the first reagent transfer of the demo script into
// a fresh frame directory: the initial state plus two frames per step.
func recordFrames(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "frames")

	deck, err := protocol.NewDemoDeck(ctx)
	require.NoError(t, err)
	bus := event.NewBus()
	deck.Root.AttachBus(bus)

	rec := capture.New(deck.Root, capture.NewDirStore(dir))
	require.NoError(t, rec.Setup(ctx))
	rec.Attach(bus)

	sim := protocol.NewSimulator(deck.Root, bus)
	require.NoError(t, sim.Run(ctx, protocol.DemoScript(1)[:4]))
	require.Equal(t, recordedFrames, rec.Count())
	return dir
}

const recordedFrames = 1 + 2*4

func TestDemoEndToEnd(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir)
	metricsFile := filepath.Join(dir, "metrics.prom")
	out := captureStdout(t)

	var logs syncBuffer
	err := Execute(context.Background(), []string{"demo", "--config", cfg, "--wells", "1", "--metrics-file", metricsFile}, &logs)
	require.NoError(t, err, "logs: %s", logs.String())

	frames, err := snapshot.LoadSequence(filepath.Join(dir, "frames"))
	require.NoError(t, err)
	require.NoError(t, snapshot.CheckSequence(frames))
	assert.Equal(t, "initial_state", frames[0].Label)
	assert.Equal(t, "state_update_tip_rack1_tipspot_A1", frames[1].Label)
	assert.Equal(t, "operation_pick_up_tips", frames[2].Label)
	assert.Len(t, frames, 1+2*16)

	f, err := os.Open(filepath.Join(dir, "out", "protocol.gif"))
	require.NoError(t, err)
	defer f.Close()
	g, err := gif.DecodeAll(f)
	require.NoError(t, err)
	assert.Len(t, g.Image, len(frames))
	assert.Equal(t, 5, g.Delay[0])
	assert.Equal(t, 200, g.Config.Width)

	assert.Contains(t, out.String(), "protocol.gif")
	assert.Contains(t, logs.String(), "protocol finished")

	prom, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "deckreel_frames_captured_total")
	assert.Contains(t, string(prom), `deckreel_renderer_invocations_total{code="OK",exit_code="0"} 1`)
}

func TestDemoScriptFile(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir)
	script := filepath.Join(dir, "steps.toml")
	require.NoError(t, os.WriteFile(script, []byte(`
[[step]]
op = "pick_up_tips"
resources = ["tip_rack1_tipspot_A1"]

[[step]]
op = "drop_tips"
resources = ["tip_rack1_tipspot_A1"]
`), 0644))
	captureStdout(t)

	err := Execute(context.Background(), []string{"demo", "--config", cfg, "--script", script}, &syncBuffer{})
	require.NoError(t, err)

	paths, err := snapshot.ListFrames(filepath.Join(dir, "frames"))
	require.NoError(t, err)
	assert.Len(t, paths, 5)
}

func TestDemoFailingStep(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir)
	script := filepath.Join(dir, "steps.toml")
	require.NoError(t, os.WriteFile(script, []byte(`
[[step]]
op = "drop_tips"
resources = ["tip_rack1_tipspot_A1"]
`), 0644))
	captureStdout(t)

	err := Execute(context.Background(), []string{"demo", "--config", cfg, "--script", script}, &syncBuffer{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidState), "err: %v", err)
}

func TestRenderCommand(t *testing.T) {
	frameDir := recordFrames(t)
	out := filepath.Join(t.TempDir(), "nested", "render.gif")

	err := Execute(context.Background(), []string{"render", out, "80", frameDir, "--width", "160", "--height", "100"}, &syncBuffer{})
	require.NoError(t, err)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	g, err := gif.DecodeAll(f)
	require.NoError(t, err)
	assert.Len(t, g.Image, recordedFrames)
	assert.Equal(t, 8, g.Delay[0])
	assert.Equal(t, 0, g.LoopCount)
}

func TestRenderCommandInvalidArgs(t *testing.T) {
	frameDir := recordFrames(t)
	out := filepath.Join(t.TempDir(), "render.gif")

	tests := []struct {
		name string
		args []string
		code errors.Code
	}{
		{"negative delay", []string{"render", "--", out, "-5", frameDir}, errors.ErrCodeInvalidInput},
		{"non-numeric delay", []string{"render", out, "fast", frameDir}, errors.ErrCodeInvalidInput},
		{"wrong extension", []string{"render", filepath.Join(t.TempDir(), "out.png"), "100", frameDir}, errors.ErrCodeInvalidPath},
		{"missing frames", []string{"render", out, "100", filepath.Join(t.TempDir(), "none")}, errors.ErrCodeFileNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Execute(context.Background(), tt.args, &syncBuffer{})
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.GetCode(err), "err: %v", err)
		})
	}
}

func TestAnimateCommand(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir)
	frameDir := recordFrames(t)
	artifact := filepath.Join(dir, "animated.gif")
	out := captureStdout(t)

	err := Execute(context.Background(), []string{"animate", frameDir, "--config", cfg, "-o", artifact, "--delay", "30"}, &syncBuffer{})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "animated.gif")

	f, err := os.Open(artifact)
	require.NoError(t, err)
	defer f.Close()
	g, err := gif.DecodeAll(f)
	require.NoError(t, err)
	assert.Len(t, g.Image, recordedFrames)
	assert.Equal(t, 3, g.Delay[0])
}

func TestFramesCommand(t *testing.T) {
	frameDir := recordFrames(t)
	out := captureStdout(t)

	err := Execute(context.Background(), []string{"frames", frameDir, "--check"}, &syncBuffer{})
	require.NoError(t, err)
	for _, want := range []string{"initial_state", "operation_pick_up_tips", "All 9 frames valid"} {
		assert.Contains(t, out.String(), want)
	}
}

func TestFramesCheckGap(t *testing.T) {
	frameDir := recordFrames(t)
	paths, err := snapshot.ListFrames(frameDir)
	require.NoError(t, err)
	require.NoError(t, os.Remove(paths[2]))
	captureStdout(t)

	err = Execute(context.Background(), []string{"frames", frameDir, "--check"}, &syncBuffer{})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidFrame, errors.GetCode(err))
	assert.Equal(t, 3, errors.FrameOf(err))
}

func TestTreeCommand(t *testing.T) {
	frameDir := recordFrames(t)
	paths, err := snapshot.ListFrames(frameDir)
	require.NoError(t, err)
	out := captureStdout(t)

	err = Execute(context.Background(), []string{"tree", paths[0], "--collapse"}, &syncBuffer{})
	require.NoError(t, err)
	dot := out.String()
	assert.True(t, strings.HasPrefix(dot, "digraph G {"))
	assert.Contains(t, dot, "plate1")
	assert.Contains(t, dot, "trough_carrier")

	err = Execute(context.Background(), []string{"tree", paths[0], "-f", "jpeg"}, &syncBuffer{})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.GetCode(err))
}

func TestRunFlagsOverrideConfig(t *testing.T) {
	cfg := writeConfig(t, t.TempDir())
	c := New(&syncBuffer{}, LogInfo)
	c.configPath = cfg

	var flags runFlags
	cmd := &cobra.Command{Use: "run"}
	flags.bind(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--delay", "250", "--width", "640"}))

	opts, err := c.options(cmd, &flags)
	require.NoError(t, err)
	assert.Equal(t, 250, opts.FrameDelayMs)
	assert.Equal(t, 640, opts.Width)
	assert.Equal(t, 120, opts.Height)
	assert.Equal(t, "protocol.gif", filepath.Base(opts.ArtifactPath))
}

func TestLoadOptionsFromEnv(t *testing.T) {
	cfg := writeConfig(t, t.TempDir())
	t.Setenv(configEnv, cfg)

	opts, err := New(&syncBuffer{}, LogInfo).loadOptions()
	require.NoError(t, err)
	assert.Equal(t, 50, opts.FrameDelayMs)
	assert.NotNil(t, opts.Logger)
}

func TestLoadOptionsUnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("frame_delay = 10\n"), 0644))

	c := New(&syncBuffer{}, LogInfo)
	c.configPath = path
	_, err := c.loadOptions()
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.GetCode(err))
}
