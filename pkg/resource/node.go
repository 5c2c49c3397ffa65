package resource

import (
	"context"
	"fmt"

	"github.com/matzehuels/deckreel/pkg/errors"
	"github.com/matzehuels/deckreel/pkg/event"
)

// Node is the in-memory implementation of [Resource].
//
// A Node tree is owned by the protocol runtime and is not safe for
// concurrent mutation. When an event bus is attached to the root, structural
// changes fire resource-assigned / resource-unassigned events and state
// changes fire state-update events, synchronously on the mutating goroutine.
type Node struct {
	name     string
	typ      Type
	location Coordinate
	sizeX    float64
	sizeY    float64
	sizeZ    float64

	parent   *Node
	children []*Node
	bus      *event.Bus

	hasTip    bool
	liquids   []Liquid
	maxVolume float64
}

// NewNode creates a detached node. Prefer the typed constructors.
func NewNode(name string, typ Type, sizeX, sizeY, sizeZ float64) *Node {
	return &Node{name: name, typ: typ, sizeX: sizeX, sizeY: sizeY, sizeZ: sizeZ}
}

// NewDeck creates a deck root.
func NewDeck(name string, sizeX, sizeY, sizeZ float64) *Node {
	return NewNode(name, TypeDeck, sizeX, sizeY, sizeZ)
}

// NewCarrier creates a carrier with one resource holder per site. Sites are
// laid out front to back along y, each siteY deep.
func NewCarrier(name string, sizeX, sizeY, sizeZ float64, sites int, siteY float64) *Node {
	c := NewNode(name, TypeCarrier, sizeX, sizeY, sizeZ)
	for i := 0; i < sites; i++ {
		h := NewNode(fmt.Sprintf("%s-%d", name, i), TypeResourceHolder, sizeX, siteY, 0)
		h.location = Coordinate{X: 0, Y: float64(i) * siteY, Z: 0}
		h.parent = c
		c.children = append(c.children, h)
	}
	return c
}

// NewTipRack creates a rack of rows×cols tip spots on a square pitch, all
// holding a tip.
func NewTipRack(name string, rows, cols int, pitch float64) *Node {
	r := NewNode(name, TypeTipRack, float64(cols)*pitch+2*pitch, float64(rows)*pitch+2*pitch, 60)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			s := NewNode(fmt.Sprintf("%s_tipspot_%s", name, WellID(row, col)), TypeTipSpot, pitch*0.8, pitch*0.8, 0)
			s.location = gridLocation(row, col, pitch)
			s.hasTip = true
			s.parent = r
			r.children = append(r.children, s)
		}
	}
	return r
}

// NewPlate creates a plate of rows×cols wells on a square pitch.
func NewPlate(name string, rows, cols int, pitch, maxVolume float64) *Node {
	p := NewNode(name, TypePlate, float64(cols)*pitch+2*pitch, float64(rows)*pitch+2*pitch, 14)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			w := NewNode(fmt.Sprintf("%s_well_%s", name, WellID(row, col)), TypeWell, pitch*0.7, pitch*0.7, 10)
			w.location = gridLocation(row, col, pitch)
			w.maxVolume = maxVolume
			w.parent = p
			p.children = append(p.children, w)
		}
	}
	return p
}

// NewTrough creates a single-compartment reservoir.
func NewTrough(name string, sizeX, sizeY, sizeZ, maxVolume float64) *Node {
	t := NewNode(name, TypeTrough, sizeX, sizeY, sizeZ)
	t.maxVolume = maxVolume
	return t
}

func gridLocation(row, col int, pitch float64) Coordinate {
	return Coordinate{X: pitch + float64(col)*pitch, Y: pitch + float64(row)*pitch}
}

// WellID returns the A1-style identifier of a grid position.
func WellID(row, col int) string {
	label := ""
	for r := row; ; r = r/26 - 1 {
		label = string(rune('A'+r%26)) + label
		if r < 26 {
			break
		}
	}
	return fmt.Sprintf("%s%d", label, col+1)
}

// Name implements [Resource].
func (n *Node) Name() string { return n.name }

// Type implements [Resource].
func (n *Node) Type() Type { return n.typ }

// Location implements [Resource].
func (n *Node) Location() Coordinate { return n.location }

// Size implements [Resource].
func (n *Node) Size() (x, y, z float64) { return n.sizeX, n.sizeY, n.sizeZ }

// Children implements [Resource].
func (n *Node) Children() []Resource {
	out := make([]Resource, len(n.children))
	for i, c := range n.children {
		out[i] = c
	}
	return out
}

// Parent returns the parent node, or nil for a root.
func (n *Node) Parent() *Node { return n.parent }

// Child returns the i-th child, or nil when out of range.
func (n *Node) Child(i int) *Node {
	if i < 0 || i >= len(n.children) {
		return nil
	}
	return n.children[i]
}

// SerializeState implements [Resource].
func (n *Node) SerializeState() (map[string]any, error) {
	switch n.typ {
	case TypeTipSpot:
		return map[string]any{StateHasTip: n.hasTip}, nil
	case TypeWell, TypeTrough:
		liquids := make([]any, len(n.liquids))
		for i, l := range n.liquids {
			liquids[i] = []any{l.Label, l.Volume}
		}
		return map[string]any{
			StateLiquids:   liquids,
			StateMaxVolume: n.maxVolume,
		}, nil
	default:
		return nil, nil
	}
}

// Root returns the top of n's tree.
func (n *Node) Root() *Node {
	r := n
	for r.parent != nil {
		r = r.parent
	}
	return r
}

// AttachBus makes the tree rooted at n fire events on b. Passing nil detaches.
func (n *Node) AttachBus(b *event.Bus) {
	n.Root().bus = b
}

func (n *Node) fire(ctx context.Context, e event.Event) error {
	if b := n.Root().bus; b != nil {
		return b.Fire(ctx, e)
	}
	return nil
}

// Find returns the node named name in n's subtree, depth first.
func (n *Node) Find(name string) *Node {
	if n.name == name {
		return n
	}
	for _, c := range n.children {
		if f := c.Find(name); f != nil {
			return f
		}
	}
	return nil
}

// Walk calls fn for n and every descendant, parents before children.
func (n *Node) Walk(fn func(*Node)) {
	fn(n)
	for _, c := range n.children {
		c.Walk(fn)
	}
}

// Assign attaches child under n at the parent-relative location at and fires
// a resource-assigned event.
func (n *Node) Assign(ctx context.Context, child *Node, at Coordinate) error {
	if err := errors.ValidateResourceName(child.name); err != nil {
		return err
	}
	if child.parent != nil {
		return errors.New(errors.ErrCodeInvalidState, "%s is already assigned to %s", child.name, child.parent.name)
	}
	for a := n; a != nil; a = a.parent {
		if a == child {
			return errors.New(errors.ErrCodeInvalidState, "assigning %s under %s would create a cycle", child.name, n.name)
		}
	}
	root := n.Root()
	var dup string
	child.Walk(func(c *Node) {
		if dup == "" && root.Find(c.name) != nil {
			dup = c.name
		}
	})
	if dup != "" {
		return errors.New(errors.ErrCodeInvalidName, "resource %q already exists in %s", dup, root.name)
	}

	child.location = at
	child.parent = n
	child.bus = nil
	n.children = append(n.children, child)
	return n.fire(ctx, event.Assigned(child.name))
}

// Unassign detaches child from n and fires a resource-unassigned event.
func (n *Node) Unassign(ctx context.Context, child *Node) error {
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i:i], n.children[i+1:]...)
			child.parent = nil
			return n.fire(ctx, event.Unassigned(child.name))
		}
	}
	return errors.New(errors.ErrCodeNotFound, "%s is not a child of %s", child.name, n.name)
}

// HasTip reports whether a tip spot holds a tip.
func (n *Node) HasTip() bool { return n.hasTip }

// SetTip sets tip presence on a tip spot and fires a state-update event.
func (n *Node) SetTip(ctx context.Context, present bool) error {
	if n.typ != TypeTipSpot {
		return errors.New(errors.ErrCodeUnsupported, "%s (%s) does not hold tips", n.name, n.typ)
	}
	n.hasTip = present
	return n.fire(ctx, event.StateUpdated(n.name))
}

// Liquids returns a copy of the composition list.
func (n *Node) Liquids() []Liquid {
	return append([]Liquid(nil), n.liquids...)
}

// MaxVolume returns the capacity of a well or trough.
func (n *Node) MaxVolume() float64 { return n.maxVolume }

// AddLiquid adds volume of label to a well or trough and fires a state-update
// event. Volume of a label already present is merged into its entry.
func (n *Node) AddLiquid(ctx context.Context, label string, volume float64) error {
	if err := n.holdsLiquid(); err != nil {
		return err
	}
	if volume <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "volume must be positive, got %g", volume)
	}
	merged := false
	for i := range n.liquids {
		if n.liquids[i].Label == label {
			n.liquids[i].Volume += volume
			merged = true
			break
		}
	}
	if !merged {
		n.liquids = append(n.liquids, Liquid{Label: label, Volume: volume})
	}
	return n.fire(ctx, event.StateUpdated(n.name))
}

// RemoveLiquid removes volume from the top of the composition (last added
// first) and returns what was removed. It fires a state-update event.
func (n *Node) RemoveLiquid(ctx context.Context, volume float64) ([]Liquid, error) {
	if err := n.holdsLiquid(); err != nil {
		return nil, err
	}
	if total := TotalVolume(n.liquids); volume > total {
		return nil, errors.New(errors.ErrCodeInvalidInput, "cannot remove %g from %s holding %g", volume, n.name, total)
	}

	var removed []Liquid
	for volume > 0 && len(n.liquids) > 0 {
		last := &n.liquids[len(n.liquids)-1]
		take := min(last.Volume, volume)
		removed = append(removed, Liquid{Label: last.Label, Volume: take})
		last.Volume -= take
		volume -= take
		if last.Volume <= 0 {
			n.liquids = n.liquids[:len(n.liquids)-1]
		}
	}
	return removed, n.fire(ctx, event.StateUpdated(n.name))
}

func (n *Node) holdsLiquid() error {
	if n.typ != TypeWell && n.typ != TypeTrough {
		return errors.New(errors.ErrCodeUnsupported, "%s (%s) does not hold liquid", n.name, n.typ)
	}
	return nil
}

var _ Resource = (*Node)(nil)
