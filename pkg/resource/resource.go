// Package resource defines the hierarchical model of lab-automation hardware
// that deckreel captures: decks, carriers, resource holders, tip racks, tip
// spots, plates, wells and troughs.
//
// The capture core only reads a tree through the [Resource] interface. The
// in-memory [Node] implementation in this package is what the demo protocol
// and the tests drive; any protocol runtime can supply its own tree instead.
//
// # Geometry
//
// Every resource has a location relative to its parent and a size along x,
// y and z. Absolute locations are never stored; they are resolved by summing
// offsets from the root when a snapshot is taken.
//
// # State
//
// Resources that carry per-type state expose it through SerializeState as a
// type-keyed map:
//
//	tip spot:      {"has_tip": true}
//	well, trough:  {"liquids": [["Compound A", 30], ["Compound B", 70]], "max_volume": 360}
//
// Stateless resources return nil.
package resource

// Type is the stable semantic tag of a resource. It is what frame files store
// and what the renderer dispatches on.
type Type string

// Resource types.
const (
	TypeDeck           Type = "deck"
	TypeCarrier        Type = "carrier"
	TypeResourceHolder Type = "resource_holder"
	TypeTipRack        Type = "tip_rack"
	TypeTipSpot        Type = "tip_spot"
	TypePlate          Type = "plate"
	TypeWell           Type = "well"
	TypeTrough         Type = "trough"
)

// Types lists every known type.
var Types = []Type{
	TypeDeck, TypeCarrier, TypeResourceHolder, TypeTipRack,
	TypeTipSpot, TypePlate, TypeWell, TypeTrough,
}

// Known reports whether t is one of [Types].
func (t Type) Known() bool {
	for _, k := range Types {
		if k == t {
			return true
		}
	}
	return false
}

// Coordinate is a point in deck space, in millimeters.
type Coordinate struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns c translated by o.
func (c Coordinate) Add(o Coordinate) Coordinate {
	return Coordinate{X: c.X + o.X, Y: c.Y + o.Y, Z: c.Z + o.Z}
}

// Resource is a node of the hardware tree as seen by the capture core.
type Resource interface {
	// Name is unique within the tree.
	Name() string
	// Type is the semantic tag used for rendering.
	Type() Type
	// Location is relative to the parent; the root's location is its origin.
	Location() Coordinate
	// Size returns the extent along x, y and z.
	Size() (x, y, z float64)
	// Children are returned in a stable order.
	Children() []Resource
	// SerializeState returns the type-specific state, or nil when the
	// resource carries none.
	SerializeState() (map[string]any, error)
}

// State payload keys.
const (
	StateHasTip    = "has_tip"
	StateLiquids   = "liquids"
	StateMaxVolume = "max_volume"
)

// Liquid is one entry of a composition list.
type Liquid struct {
	Label  string
	Volume float64
}

// TotalVolume sums the volumes of ls.
func TotalVolume(ls []Liquid) float64 {
	var total float64
	for _, l := range ls {
		total += l.Volume
	}
	return total
}
