package pipeline

import (
	"bufio"
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/matzehuels/deckreel/pkg/errors"
	"github.com/matzehuels/deckreel/pkg/observability"
	"github.com/matzehuels/deckreel/pkg/snapshot"
)

// Result describes one renderer invocation.
type Result struct {
	Path     string
	Frames   int
	Bytes    int64
	Duration time.Duration
	Stdout   string
	Stderr   string
}

// Render stages the frame files present in the frame directory right now,
// invokes the renderer on them and waits for it. Frames written after the
// call starts are not part of this render.
//
// A renderer that cannot start or exits nonzero yields
// RENDER_INVOCATION_FAILURE with its stderr attached; a zero exit that leaves
// no new artifact yields RENDER_ARTIFACT_MISSING.
func (r *Runner) Render(ctx context.Context) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.workDir == "" {
		return Result{}, errors.New(errors.ErrCodeInvalidState, "renderer is not set up")
	}

	artifact, err := filepath.Abs(r.opts.ArtifactPath)
	if err != nil {
		return Result{}, errors.Wrap(errors.ErrCodeInvalidPath, err, "resolve artifact path")
	}
	if err := os.MkdirAll(filepath.Dir(artifact), 0755); err != nil {
		return Result{}, errors.Wrap(errors.ErrCodeInvalidPath, err, "create artifact directory")
	}

	r.renders++
	staged := filepath.Join(r.workDir, fmt.Sprintf("frames-%d", r.renders))
	n, err := stageFrames(r.opts.FrameDir, staged)
	if err != nil {
		return Result{}, err
	}
	if n == 0 {
		return Result{}, errors.New(errors.ErrCodeInvalidInput, "no frame files in %s", r.opts.FrameDir)
	}

	before, _ := os.Stat(artifact)

	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	argv := append(append([]string{}, r.command...), artifact, strconv.Itoa(r.opts.FrameDelayMs), staged)
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = r.workDir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Info("invoking renderer", "frames", n, "artifact", artifact)
	r.logger.Debug("renderer command", "argv", argv)

	hooks := observability.Invocation()
	hooks.OnInvoke(ctx, argv)
	start := time.Now()
	runErr := cmd.Run()
	took := time.Since(start)

	exitCode := -1
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}
	logLines(stdout.String(), func(line string) { r.logger.Debug("renderer", "stdout", line) })
	logLines(stderr.String(), func(line string) { r.logger.Warn("renderer", "stderr", line) })

	res := Result{Path: artifact, Frames: n, Duration: took, Stdout: stdout.String(), Stderr: stderr.String()}
	err = r.classify(ctx, runErr, exitCode, stderr.String())
	if err == nil {
		res.Bytes, err = checkArtifact(artifact, before)
	}
	hooks.OnInvokeComplete(ctx, exitCode, took, err)
	if err != nil {
		return res, err
	}

	r.logger.Info("render complete",
		"path", artifact,
		"frames", n,
		"size", humanize.Bytes(uint64(res.Bytes)),
		"took", took.Round(time.Millisecond))
	return res, nil
}

// classify maps the outcome of the renderer process to an error code.
func (r *Runner) classify(ctx context.Context, runErr error, exitCode int, stderr string) error {
	if runErr == nil {
		return nil
	}
	diag := strings.TrimSpace(stderr)
	switch {
	case stderrors.Is(ctx.Err(), context.DeadlineExceeded):
		return errors.Wrap(errors.ErrCodeTimeout, ctx.Err(), "renderer exceeded %s", r.opts.Timeout).WithDiagnostics(diag)
	case ctx.Err() != nil:
		return errors.Wrap(errors.ErrCodeRenderInvocation, ctx.Err(), "renderer interrupted").WithDiagnostics(diag)
	}
	var exitErr *exec.ExitError
	if stderrors.As(runErr, &exitErr) {
		return errors.Wrap(errors.ErrCodeRenderInvocation, runErr, "renderer exited with status %d", exitCode).WithDiagnostics(diag)
	}
	return errors.Wrap(errors.ErrCodeRenderInvocation, runErr, "start renderer").WithDiagnostics(diag)
}

// checkArtifact requires a file at path that did not exist before the
// invocation, or was replaced or modified by it.
func checkArtifact(path string, before os.FileInfo) (int64, error) {
	after, err := os.Stat(path)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeRenderArtifactMissing, err, "renderer exited 0 but wrote no artifact at %s", path)
	}
	if after.IsDir() {
		return 0, errors.New(errors.ErrCodeRenderArtifactMissing, "artifact path %s is a directory", path)
	}
	if before != nil && os.SameFile(before, after) && after.ModTime().Equal(before.ModTime()) && after.Size() == before.Size() {
		return 0, errors.New(errors.ErrCodeRenderArtifactMissing, "renderer exited 0 but left %s unchanged", path)
	}
	return after.Size(), nil
}

// stageFrames copies the frame files currently in src into dst and returns
// how many were copied.
func stageFrames(src, dst string) (int, error) {
	paths, err := snapshot.ListFrames(src)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(dst, 0755); err != nil {
		return 0, errors.Wrap(errors.ErrCodeInternal, err, "create staging directory")
	}
	for _, p := range paths {
		if err := copyFile(p, filepath.Join(dst, filepath.Base(p))); err != nil {
			return 0, errors.Wrap(errors.ErrCodeInternal, err, "stage %s", filepath.Base(p))
		}
	}
	return len(paths), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func logLines(s string, fn func(string)) {
	sc := bufio.NewScanner(strings.NewReader(s))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			fn(line)
		}
	}
}
