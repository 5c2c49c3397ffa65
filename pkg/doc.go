// Package pkg provides the core libraries for deckreel protocol recording.
//
// # Overview
//
// deckreel turns a liquid-handling protocol run into an animation: every
// operation and every tip or liquid change on the deck is captured as a
// snapshot frame, and the frames are rendered into a looping GIF.
//
//  1. [resource] - Deck, carriers, labware and containers with observable state
//  2. [event] - Typed events and the bus resources and operations fire on
//  3. [snapshot] - Serialized resource trees and the on-disk frame format
//  4. [capture] - Records one frame per event
//  5. [render] - Rasterizes frames and encodes the animation
//  6. [pipeline] - Runs the renderer process and ties capture to rendering
//  7. [protocol] - The demo deck and an operation simulator
//
// # Architecture
//
// The data flow of a recorded run:
//
//	protocol step
//	     ↓
//	[resource] state change → [event] bus
//	     ↓
//	[capture] recorder → frame_NNNN_<event>.json
//	     ↓
//	[pipeline] runner → renderer process → [render] engine
//	     ↓
//	protocol.gif
//
// # Quick Start
//
//	deck, _ := protocol.NewDemoDeck(ctx)
//	bus := event.NewBus()
//	deck.Root.AttachBus(bus)
//
//	vis, _ := pipeline.NewVisualizer(deck.Root, bus, pipeline.Options{})
//	defer vis.Close()
//	_ = vis.Setup(ctx)
//
//	sim := protocol.NewSimulator(deck.Root, bus)
//	_ = sim.Run(ctx, protocol.DemoScript(2))
//
//	path, _ := vis.Stop(ctx)
//
// # Supporting Packages
//
//   - [errors] - Coded errors carrying frame and event context
//   - [cache] - Raster cache backends
//   - [observability] - Capture, render and invocation hooks
//   - [buildinfo] - Version information
//
// [resource]: github.com/matzehuels/deckreel/pkg/resource
// [event]: github.com/matzehuels/deckreel/pkg/event
// [snapshot]: github.com/matzehuels/deckreel/pkg/snapshot
// [capture]: github.com/matzehuels/deckreel/pkg/capture
// [render]: github.com/matzehuels/deckreel/pkg/render
// [pipeline]: github.com/matzehuels/deckreel/pkg/pipeline
// [protocol]: github.com/matzehuels/deckreel/pkg/protocol
// [errors]: github.com/matzehuels/deckreel/pkg/errors
// [cache]: github.com/matzehuels/deckreel/pkg/cache
// [observability]: github.com/matzehuels/deckreel/pkg/observability
// [buildinfo]: github.com/matzehuels/deckreel/pkg/buildinfo
package pkg
