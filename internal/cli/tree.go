package cli

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/deckreel/pkg/errors"
	"github.com/matzehuels/deckreel/pkg/render/tree"
	"github.com/matzehuels/deckreel/pkg/snapshot"
)

type treeOpts struct {
	format   string
	output   string
	detailed bool
	collapse bool
	depth    int
}

// treeCommand creates the command that draws the resource hierarchy of a
// single frame.
func (c *CLI) treeCommand() *cobra.Command {
	var opts treeOpts

	cmd := &cobra.Command{
		Use:   "tree <frame.json>",
		Short: "Draw the resource hierarchy of one frame",
		Long: `Draw the deck, carriers, labware and containers captured in one frame as
a hierarchy diagram. Wells and troughs are filled with the color of the first
compound they hold.

Output formats: dot (default, written to stdout), svg, png.`,
		Example: `  # Print DOT for the initial state
  deckreel tree frames/frame_0000_initial_state.json

  # SVG with wells folded into one node per plate
  deckreel tree frames/frame_0008_operation_dispense.json -f svg --collapse -o deck.svg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTree(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", "dot", "output format: dot, svg, png")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "show type, size and state on each node")
	cmd.Flags().BoolVar(&opts.collapse, "collapse", false, "fold same-type leaf siblings into one node")
	cmd.Flags().IntVar(&opts.depth, "depth", 0, "maximum depth below the deck (0 = unlimited)")

	return cmd
}

func runTree(ctx context.Context, path string, opts treeOpts) error {
	logger := loggerFromContext(ctx)

	f, err := snapshot.ReadFrame(path)
	if err != nil {
		return err
	}

	dot := tree.ToDOT(f.Snapshot, tree.Options{
		Detailed: opts.detailed,
		Collapse: opts.collapse,
		MaxDepth: opts.depth,
	})

	var data []byte
	switch strings.ToLower(opts.format) {
	case "dot":
		data = []byte(dot)
	case "svg":
		data, err = tree.RenderSVG(ctx, dot)
	case "png":
		data, err = tree.RenderPNG(ctx, dot)
	default:
		return errors.New(errors.ErrCodeInvalidInput, "unknown format %q (want dot, svg or png)", opts.format)
	}
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "render %s", opts.format)
	}

	if opts.output == "" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(opts.output, data, 0644); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "write %s", opts.output)
	}
	logger.Debug("tree written", "frame", f.Index, "event", f.Label, "nodes", f.Snapshot.Count())
	printFile(opts.output)
	return nil
}
