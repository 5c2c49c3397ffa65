// Package render turns captured frame files into an animated GIF.
//
// # Overview
//
// Each frame is a [snapshot.Snapshot] tree with absolute geometry. The
// engine draws it on a fixed white canvas and appends it to a looping
// animation, in index order:
//
//	eng := render.NewEngine(render.Options{DelayMs: 100}, render.WithLogger(logger))
//	res, err := eng.RenderDir(ctx, "visualization_frames", "protocol.gif")
//
// # Drawing Rules
//
// Nodes are drawn through a closed table keyed by resource type, parent
// before children, in snapshot order:
//
//   - deck, tip_rack, plate: filled and outlined rectangle
//   - tip_spot: rounded rectangle, plus a tip triangle when a tip is present
//   - well: circle; a pie chart of the liquid composition when non-empty
//   - trough: background, then a bottom-aligned liquid level clipped to an
//     inset rectangle, then the outline
//
// Carriers and resource holders are structural and not drawn. Geometry is
// multiplied by [Scale], inherited per [EffectiveScale].
//
// # Parallelism And Caching
//
// Frames of a closed sequence are rasterized in parallel, bounded by
// [Options].Workers, but always encoded in index order. With [WithCache] the
// quantized raster of each snapshot is cached by content hash, so identical
// states are drawn once.
//
// [snapshot.Snapshot]: github.com/matzehuels/deckreel/pkg/snapshot.Snapshot
package render
