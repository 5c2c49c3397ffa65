package protocol

import (
	"context"
	"io"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/deckreel/pkg/errors"
	"github.com/matzehuels/deckreel/pkg/event"
	"github.com/matzehuels/deckreel/pkg/resource"
)

// Step is one liquid-handling operation.
//
// Resources names the one target: a tip spot for single-channel tip
// operations, a tip rack for 96-head tip operations, a well or trough for
// single-channel liquid operations and a plate or trough for the 96-head.
type Step struct {
	Op        event.Operation `toml:"op"`
	Resources []string        `toml:"resources"`
	Volume    float64         `toml:"volume,omitempty"`
}

// channel is one pipetting channel.
type channel struct {
	tip      *resource.Node
	pos      int // tip spot index within its rack, for the 96-head
	contents []resource.Liquid
}

func (c *channel) volume() float64 { return resource.TotalVolume(c.contents) }

// take removes volume from the channel, last aspirated first.
func (c *channel) take(volume float64) []resource.Liquid {
	var out []resource.Liquid
	for volume > 0 && len(c.contents) > 0 {
		last := &c.contents[len(c.contents)-1]
		n := min(last.Volume, volume)
		out = append(out, resource.Liquid{Label: last.Label, Volume: n})
		last.Volume -= n
		volume -= n
		if last.Volume <= 0 {
			c.contents = c.contents[:len(c.contents)-1]
		}
	}
	return out
}

func (c *channel) hold(ls []resource.Liquid) {
	for _, l := range ls {
		if n := len(c.contents); n > 0 && c.contents[n-1].Label == l.Label {
			c.contents[n-1].Volume += l.Volume
			continue
		}
		c.contents = append(c.contents, l)
	}
}

// Simulator executes steps against a resource tree. The tree mutations fire
// their own state events through the tree's bus; the simulator fires the
// operation event after each step completes.
type Simulator struct {
	root   *resource.Node
	bus    *event.Bus
	logger *log.Logger

	single channel
	head   []channel
	steps  int
}

// NewSimulator creates a simulator for the tree rooted at root. Operation
// events are fired on bus; bus may be nil.
func NewSimulator(root *resource.Node, bus *event.Bus) *Simulator {
	return &Simulator{root: root, bus: bus, logger: log.NewWithOptions(io.Discard, log.Options{})}
}

// SetLogger sets the simulator's logger.
func (s *Simulator) SetLogger(l *log.Logger) {
	if l != nil {
		s.logger = l
	}
}

// Steps returns the number of steps executed.
func (s *Simulator) Steps() int { return s.steps }

// HasTip reports whether the single channel holds a tip.
func (s *Simulator) HasTip() bool { return s.single.tip != nil }

// Run executes steps in order and stops at the first error.
func (s *Simulator) Run(ctx context.Context, steps []Step) error {
	for i, st := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Apply(ctx, st); err != nil {
			s.logger.Error("step failed", "step", i, "op", st.Op, "err", err)
			return err
		}
	}
	return nil
}

// Apply executes one step and fires its operation event.
func (s *Simulator) Apply(ctx context.Context, st Step) error {
	var err error
	switch st.Op {
	case event.PickUpTips:
		err = s.pickUpTips(ctx, st)
	case event.DropTips:
		err = s.dropTips(ctx, st)
	case event.Aspirate:
		err = s.aspirate(ctx, st)
	case event.Dispense:
		err = s.dispense(ctx, st)
	case event.PickUpTips96:
		err = s.pickUpTips96(ctx, st)
	case event.DropTips96:
		err = s.dropTips96(ctx, st)
	case event.Aspirate96:
		err = s.aspirate96(ctx, st)
	case event.Dispense96:
		err = s.dispense96(ctx, st)
	default:
		return errors.New(errors.ErrCodeInvalidInput, "unknown operation %q", st.Op)
	}
	if err != nil {
		return err
	}
	s.steps++
	s.logger.Debug("step", "op", st.Op, "resources", st.Resources, "volume", st.Volume)
	if s.bus == nil {
		return nil
	}
	return s.bus.Fire(ctx, event.Op(st.Op))
}

func (s *Simulator) find(name string, types ...resource.Type) (*resource.Node, error) {
	n := s.root.Find(name)
	if n == nil {
		return nil, errors.New(errors.ErrCodeNotFound, "no resource named %q", name)
	}
	for _, t := range types {
		if n.Type() == t {
			return n, nil
		}
	}
	return nil, errors.New(errors.ErrCodeUnsupported, "%s is a %s, want %v", name, n.Type(), types)
}

func (s *Simulator) target(st Step, types ...resource.Type) (*resource.Node, error) {
	if len(st.Resources) != 1 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "%s takes one resource, got %d", st.Op, len(st.Resources))
	}
	return s.find(st.Resources[0], types...)
}

func (s *Simulator) pickUpTips(ctx context.Context, st Step) error {
	spot, err := s.target(st, resource.TypeTipSpot)
	if err != nil {
		return err
	}
	if s.single.tip != nil {
		return errors.New(errors.ErrCodeInvalidState, "channel already holds a tip from %s", s.single.tip.Name())
	}
	if !spot.HasTip() {
		return errors.New(errors.ErrCodeInvalidState, "no tip at %s", spot.Name())
	}
	s.single.tip = spot
	return spot.SetTip(ctx, false)
}

func (s *Simulator) dropTips(ctx context.Context, st Step) error {
	spot, err := s.target(st, resource.TypeTipSpot)
	if err != nil {
		return err
	}
	if s.single.tip == nil {
		return errors.New(errors.ErrCodeInvalidState, "channel holds no tip")
	}
	if spot.HasTip() {
		return errors.New(errors.ErrCodeInvalidState, "%s already holds a tip", spot.Name())
	}
	s.single = channel{}
	return spot.SetTip(ctx, true)
}

func (s *Simulator) aspirate(ctx context.Context, st Step) error {
	src, err := s.target(st, resource.TypeWell, resource.TypeTrough)
	if err != nil {
		return err
	}
	if s.single.tip == nil {
		return errors.New(errors.ErrCodeInvalidState, "aspirate without a tip")
	}
	removed, err := src.RemoveLiquid(ctx, st.Volume)
	if err != nil {
		return err
	}
	s.single.hold(removed)
	return nil
}

func (s *Simulator) dispense(ctx context.Context, st Step) error {
	dst, err := s.target(st, resource.TypeWell, resource.TypeTrough)
	if err != nil {
		return err
	}
	if s.single.tip == nil {
		return errors.New(errors.ErrCodeInvalidState, "dispense without a tip")
	}
	if held := s.single.volume(); st.Volume > held {
		return errors.New(errors.ErrCodeInvalidInput, "cannot dispense %g, channel holds %g", st.Volume, held)
	}
	for _, l := range s.single.take(st.Volume) {
		if err := dst.AddLiquid(ctx, l.Label, l.Volume); err != nil {
			return err
		}
	}
	return nil
}

func children(n *resource.Node, t resource.Type) []*resource.Node {
	var out []*resource.Node
	n.Walk(func(c *resource.Node) {
		if c.Type() == t {
			out = append(out, c)
		}
	})
	return out
}

func (s *Simulator) pickUpTips96(ctx context.Context, st Step) error {
	rack, err := s.target(st, resource.TypeTipRack)
	if err != nil {
		return err
	}
	if s.head != nil {
		return errors.New(errors.ErrCodeInvalidState, "96-head already holds tips")
	}
	spots := children(rack, resource.TypeTipSpot)
	head := make([]channel, 0, len(spots))
	for i, spot := range spots {
		if !spot.HasTip() {
			continue
		}
		if err := spot.SetTip(ctx, false); err != nil {
			return err
		}
		head = append(head, channel{tip: spot, pos: i})
	}
	if len(head) == 0 {
		return errors.New(errors.ErrCodeInvalidState, "no tips in %s", rack.Name())
	}
	s.head = head
	return nil
}

func (s *Simulator) dropTips96(ctx context.Context, st Step) error {
	rack, err := s.target(st, resource.TypeTipRack)
	if err != nil {
		return err
	}
	if s.head == nil {
		return errors.New(errors.ErrCodeInvalidState, "96-head holds no tips")
	}
	// Each tip goes back to the position it was picked up from.
	spots := children(rack, resource.TypeTipSpot)
	for _, c := range s.head {
		if c.pos >= len(spots) {
			return errors.New(errors.ErrCodeInvalidState, "%s has no spot for the tip from %s", rack.Name(), c.tip.Name())
		}
		if spots[c.pos].HasTip() {
			return errors.New(errors.ErrCodeInvalidState, "%s already holds a tip", spots[c.pos].Name())
		}
	}
	for _, c := range s.head {
		if err := spots[c.pos].SetTip(ctx, true); err != nil {
			return err
		}
	}
	s.head = nil
	return nil
}

// aspirate96 draws volume into every head channel, from each well of a plate
// or from one trough.
func (s *Simulator) aspirate96(ctx context.Context, st Step) error {
	src, err := s.target(st, resource.TypePlate, resource.TypeTrough)
	if err != nil {
		return err
	}
	if s.head == nil {
		return errors.New(errors.ErrCodeInvalidState, "aspirate96 without tips")
	}
	if src.Type() == resource.TypeTrough {
		for i := range s.head {
			removed, err := src.RemoveLiquid(ctx, st.Volume)
			if err != nil {
				return err
			}
			s.head[i].hold(removed)
		}
		return nil
	}
	wells := children(src, resource.TypeWell)
	for i := range s.head {
		if i >= len(wells) {
			break
		}
		removed, err := wells[i].RemoveLiquid(ctx, st.Volume)
		if err != nil {
			return err
		}
		s.head[i].hold(removed)
	}
	return nil
}

func (s *Simulator) dispense96(ctx context.Context, st Step) error {
	dst, err := s.target(st, resource.TypePlate)
	if err != nil {
		return err
	}
	if s.head == nil {
		return errors.New(errors.ErrCodeInvalidState, "dispense96 without tips")
	}
	wells := children(dst, resource.TypeWell)
	for i := range s.head {
		if i >= len(wells) {
			break
		}
		if held := s.head[i].volume(); st.Volume > held {
			return errors.New(errors.ErrCodeInvalidInput, "cannot dispense %g, channel %d holds %g", st.Volume, i, held)
		}
		for _, l := range s.head[i].take(st.Volume) {
			if err := wells[i].AddLiquid(ctx, l.Label, l.Volume); err != nil {
				return err
			}
		}
	}
	return nil
}
