// Package tree renders the resource hierarchy of one frame as a diagram.
//
// The hierarchy (deck, carriers, holders, labware, wells) is emitted as
// Graphviz DOT with one box per resource and an edge from each parent to its
// children, filled with the same colors the animation uses:
//
//	f, _ := snapshot.ReadFrame("frame_0003_operation_dispense.json")
//	dot := tree.ToDOT(f.Snapshot, tree.Options{Collapse: true})
//	svg, err := tree.RenderSVG(ctx, dot)
//
// With Collapse set, runs of leaf siblings of the same type
// (the 96 wells of a plate, the tip spots of a rack) are folded into one
// summary node such as "96 × well (12 filled)".
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz] for in-process SVG and PNG
// output; no system Graphviz installation is needed.
package tree
