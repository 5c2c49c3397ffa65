package pipeline

import (
	"context"
	"sync"

	"github.com/matzehuels/deckreel/pkg/capture"
	"github.com/matzehuels/deckreel/pkg/errors"
	"github.com/matzehuels/deckreel/pkg/event"
	"github.com/matzehuels/deckreel/pkg/resource"
)

// Visualizer is one recording session: it captures a frame for every event
// fired on its bus between Setup and Stop, then renders the frames.
type Visualizer struct {
	bus      *event.Bus
	runner   *Runner
	recorder *capture.Recorder

	mu      sync.Mutex
	running bool
	stopped bool
}

// NewVisualizer creates a session for the tree rooted at root. Frames are
// written to opts.FrameDir.
func NewVisualizer(root resource.Resource, bus *event.Bus, opts Options) (*Visualizer, error) {
	if root == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "root resource is required")
	}
	if bus == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "event bus is required")
	}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	return &Visualizer{
		bus:      bus,
		runner:   NewRunner(opts),
		recorder: capture.New(root, capture.NewDirStore(opts.FrameDir), capture.WithLogger(opts.Logger)),
	}, nil
}

// Recorder returns the session's capture recorder.
func (v *Visualizer) Recorder() *capture.Recorder { return v.recorder }

// Runner returns the session's render orchestrator.
func (v *Visualizer) Runner() *Runner { return v.runner }

// Setup prepares the renderer, captures the initial state as frame 0 and
// starts listening for events.
func (v *Visualizer) Setup(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.running || v.stopped {
		return errors.New(errors.ErrCodeInvalidState, "visualizer already set up")
	}
	if err := v.runner.Setup(ctx); err != nil {
		return err
	}
	if err := v.recorder.Setup(ctx); err != nil {
		return err
	}
	v.bus.Subscribe(v.handle,
		event.KindOperation,
		event.KindResourceAssigned,
		event.KindResourceUnassigned,
		event.KindStateUpdate,
	)
	v.running = true
	return nil
}

func (v *Visualizer) handle(ctx context.Context, e event.Event) error {
	v.mu.Lock()
	running := v.running
	v.mu.Unlock()
	if !running {
		return nil
	}
	return v.recorder.Handle(ctx, e)
}

// Stop stops capturing and renders every frame captured so far. It returns
// the artifact path.
func (v *Visualizer) Stop(ctx context.Context) (string, error) {
	v.mu.Lock()
	if !v.running {
		v.mu.Unlock()
		return "", errors.New(errors.ErrCodeInvalidState, "visualizer is not running")
	}
	v.running = false
	v.stopped = true
	v.mu.Unlock()

	v.runner.logger.Info("capture stopped", "frames", v.recorder.Count())
	res, err := v.runner.Render(ctx)
	if err != nil {
		return "", err
	}
	return res.Path, nil
}

// Close releases the renderer's work area. Frame files are kept.
func (v *Visualizer) Close() error {
	v.mu.Lock()
	v.running = false
	v.mu.Unlock()
	return v.runner.Close()
}
