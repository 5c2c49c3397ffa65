// Package capture records a frame every time the protocol runtime fires an
// event.
//
// A [Recorder] is the callback registry and frame capture sequencer. It is
// attached to an [event.Bus]; every recognized event makes it serialize the
// whole resource tree, assign the next frame index, and persist the snapshot
// through a [Store]:
//
//	bus := event.NewBus()
//	rec := capture.New(deck, capture.NewDirStore("frames"), capture.WithLogger(logger))
//	if err := rec.Setup(ctx); err != nil { // frame 0: initial_state
//	    return err
//	}
//	rec.Attach(bus)
//	bus.Fire(ctx, event.Op(event.Aspirate)) // frame 1: operation_aspirate
//
// # Ordering
//
// Captures run synchronously on the firing goroutine and are serialized by
// the recorder, so capture order equals firing order. Indices start at 0
// and are contiguous: the counter only advances after a frame has been
// persisted. Visually identical consecutive states still produce separate
// frames.
//
// # Failure
//
// A failed capture returns an EVENT_CAPTURE_FAILURE carrying the event label
// and the frame index it would have received. The error propagates to the
// firer; frames already on disk stay there.
package capture

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/deckreel/pkg/errors"
	"github.com/matzehuels/deckreel/pkg/event"
	"github.com/matzehuels/deckreel/pkg/observability"
	"github.com/matzehuels/deckreel/pkg/resource"
	"github.com/matzehuels/deckreel/pkg/snapshot"
)

// State is the sequencer state.
type State int

// Sequencer states.
const (
	StateIdle State = iota
	StateCapturing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateCapturing:
		return "CAPTURING"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Store persists captured snapshots.
type Store interface {
	// Put stores s as frame index and returns where it was written.
	Put(ctx context.Context, index int, label string, s *snapshot.Snapshot) (string, error)
}

// Frame describes one persisted capture.
type Frame struct {
	Index    int
	Label    string
	Location string
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithLogger sets the recorder's logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithSerializer replaces the snapshot serializer. Tests use it to inject
// failures.
func WithSerializer(fn func(resource.Resource) (*snapshot.Snapshot, error)) Option {
	return func(r *Recorder) { r.serialize = fn }
}

// Recorder is the frame capture sequencer.
type Recorder struct {
	root      resource.Resource
	store     Store
	serialize func(resource.Resource) (*snapshot.Snapshot, error)
	logger    *log.Logger
	runID     string

	mu      sync.Mutex
	state   State
	next    int
	started bool
}

// New creates a recorder for the tree rooted at root.
func New(root resource.Resource, store Store, opts ...Option) *Recorder {
	r := &Recorder{
		root:      root,
		store:     store,
		serialize: snapshot.Serialize,
		logger:    log.NewWithOptions(io.Discard, log.Options{}),
		runID:     uuid.NewString(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("run", r.runID[:8])
	return r
}

// RunID identifies this recorder's capture run.
func (r *Recorder) RunID() string { return r.runID }

// Setup captures frame 0, the initial state before any operation runs. It
// must be called exactly once, before any other capture.
func (r *Recorder) Setup(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return errors.New(errors.ErrCodeInvalidState, "recorder already set up").WithFrame(r.next)
	}
	if _, err := r.captureLocked(ctx, event.Initial()); err != nil {
		return err
	}
	r.started = true
	return nil
}

// Attach subscribes the recorder to every capturable event kind on b.
func (r *Recorder) Attach(b *event.Bus) {
	b.Subscribe(r.Handle,
		event.KindOperation,
		event.KindResourceAssigned,
		event.KindResourceUnassigned,
		event.KindStateUpdate,
	)
}

// Handle is the [event.Handler] registered by Attach.
func (r *Recorder) Handle(ctx context.Context, e event.Event) error {
	_, err := r.Capture(ctx, e)
	return err
}

// Capture records one frame for e. It blocks until the frame is persisted.
func (r *Recorder) Capture(ctx context.Context, e event.Event) (Frame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return Frame{}, errors.New(errors.ErrCodeInvalidState, "capture before setup").
			WithEvent(e.Label())
	}
	if e.Kind == event.KindInitialState {
		return Frame{}, errors.New(errors.ErrCodeInvalidState, "initial state is captured by setup").
			WithEvent(e.Label()).WithFrame(r.next)
	}
	return r.captureLocked(ctx, e)
}

func (r *Recorder) captureLocked(ctx context.Context, e event.Event) (Frame, error) {
	index := r.next
	label := e.Label()
	start := time.Now()

	r.state = StateCapturing
	defer func() { r.state = StateIdle }()

	frame, err := r.persist(ctx, index, label)
	observability.Capture().OnCapture(ctx, index, label, e.Kind.String(), time.Since(start), err)
	if err != nil {
		r.logger.Error("capture failed", "frame", index, "event", label, "err", err)
		return Frame{}, errors.Wrap(errors.ErrCodeEventCapture, err, "capture %s", label).
			WithFrame(index).WithEvent(label)
	}

	r.next++
	r.logger.Debug("captured frame", "frame", index, "event", label, "at", frame.Location)
	return frame, nil
}

func (r *Recorder) persist(ctx context.Context, index int, label string) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	s, err := r.serialize(r.root)
	if err != nil {
		return Frame{}, err
	}
	loc, err := r.store.Put(ctx, index, label, s)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Index: index, Label: label, Location: loc}, nil
}

// Count returns the number of frames captured so far.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.next
}

// State returns the current sequencer state. While a capture runs, callers
// other than the capturing goroutine block until it finishes, so outside
// observers always see IDLE.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}
