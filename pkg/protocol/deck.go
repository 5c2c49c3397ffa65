// Package protocol provides a demo deck layout and a scripted liquid-handling
// simulator.
//
// The simulator stands in for a protocol runtime: it mutates a
// [resource.Node] tree the way a liquid handler would and fires one
// operation event per step on the bus, so a capture recorder attached to the
// same bus sees exactly the event stream a real run produces.
//
//	deck, err := protocol.NewDemoDeck(ctx)
//	deck.Root.AttachBus(bus)
//	sim := protocol.NewSimulator(deck.Root, bus)
//	err = sim.Run(ctx, protocol.DemoScript(2))
package protocol

import (
	"context"
	"fmt"

	"github.com/matzehuels/deckreel/pkg/resource"
)

// Deck geometry, in millimeters.
const (
	DeckWidth  = 1360.0
	DeckDepth  = 653.5
	DeckHeight = 900.0

	// RailOffset is the x position of rail 1; RailPitch is the distance
	// between rails.
	RailOffset = 100.0
	RailPitch  = 22.5

	carrierY     = 63.0
	carrierZ     = 100.0
	carrierWidth = 135.0
	carrierDepth = 497.0
)

// Demo layout rails.
const (
	TipCarrierRails    = 15
	PlateCarrierRails  = 8
	TroughCarrierRails = 2
)

// Reagent troughs of the demo deck, in carrier site order, and the compound
// each starts filled with.
var Reagents = []struct {
	Trough   string
	Compound string
	Volume   float64
}{
	{"trough_halide", "Compound A", 20000},
	{"trough_boronic", "Compound B", 20000},
	{"trough_base", "Compound C", 20000},
	{"trough_catalyst", "Compound D", 10000},
}

// RailsToX returns the x position of a carrier placed on rails.
func RailsToX(rails int) float64 {
	return RailOffset + float64(rails-1)*RailPitch
}

// Deck is the demo deck and handles to its labware.
type Deck struct {
	Root    *resource.Node
	TipRack *resource.Node
	Plate   *resource.Node
	Troughs []*resource.Node
}

// NewDemoDeck builds the demo layout: a tip carrier with a 96-tip rack on
// rails 15, a plate carrier with a 96-well 360 µl plate on rails 8, and a
// trough carrier with four filled 25 ml reagent troughs on rails 2.
//
// The deck is built before any bus is attached, so construction fires no
// events.
func NewDemoDeck(ctx context.Context) (*Deck, error) {
	root := resource.NewDeck("deck", DeckWidth, DeckDepth, DeckHeight)

	tipCar := resource.NewCarrier("tip_carrier", carrierWidth, carrierDepth, 130, 5, carrierDepth/5)
	tips := resource.NewTipRack("tip_rack1", 8, 12, 9)
	if err := place(ctx, root, tipCar, TipCarrierRails, tips); err != nil {
		return nil, err
	}

	plateCar := resource.NewCarrier("plate_carrier", carrierWidth, carrierDepth, 130, 5, carrierDepth/5)
	plate := resource.NewPlate("plate1", 8, 12, 9, 360)
	if err := place(ctx, root, plateCar, PlateCarrierRails, plate); err != nil {
		return nil, err
	}

	troughCar := resource.NewCarrier("trough_carrier", 90, carrierDepth, 130, len(Reagents), carrierDepth/float64(len(Reagents)))
	troughs := make([]*resource.Node, len(Reagents))
	for i, r := range Reagents {
		t := resource.NewTrough(r.Trough, 40, 110, 45, 25000)
		if err := t.AddLiquid(ctx, r.Compound, r.Volume); err != nil {
			return nil, err
		}
		troughs[i] = t
	}
	if err := place(ctx, root, troughCar, TroughCarrierRails, troughs...); err != nil {
		return nil, err
	}

	return &Deck{Root: root, TipRack: tips, Plate: plate, Troughs: troughs}, nil
}

// place puts labware on consecutive sites of carrier and the carrier on the
// deck at rails.
func place(ctx context.Context, deck, carrier *resource.Node, rails int, labware ...*resource.Node) error {
	for i, l := range labware {
		site := carrier.Child(i)
		if site == nil {
			return fmt.Errorf("carrier %s has no site %d", carrier.Name(), i)
		}
		if err := site.Assign(ctx, l, resource.Coordinate{X: 4, Y: 4}); err != nil {
			return err
		}
	}
	return deck.Assign(ctx, carrier, resource.Coordinate{X: RailsToX(rails), Y: carrierY, Z: carrierZ})
}
