package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/deckreel/pkg/errors"
	"github.com/matzehuels/deckreel/pkg/event"
	"github.com/matzehuels/deckreel/pkg/pipeline"
	"github.com/matzehuels/deckreel/pkg/protocol"
	"github.com/matzehuels/deckreel/pkg/snapshot"
)

// demoCommand creates the command that records the demo protocol.
func (c *CLI) demoCommand() *cobra.Command {
	var (
		flags  runFlags
		wells  int
		script string
		keep   bool
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Record the demo protocol and render it",
		Long: `Build the demo deck (tip rack, 96-well plate and four reagent troughs),
run a scripted reagent addition with frame capture attached, and render the
captured frames into an animated GIF.

Every operation and every tip or liquid change becomes one frame. Use
--script to run a TOML step list instead of the built-in script.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := c.options(cmd, &flags)
			if err != nil {
				return err
			}
			steps := protocol.DemoScript(wells)
			if script != "" {
				if steps, err = protocol.LoadScript(script); err != nil {
					return err
				}
			}
			if !keep {
				if err := clearFrames(opts.FrameDir); err != nil {
					return err
				}
			}
			return c.runDemo(cmd.Context(), opts, steps)
		},
	}
	flags.bind(cmd)
	cmd.Flags().IntVar(&wells, "wells", 2, "number of plate wells the built-in script fills")
	cmd.Flags().StringVar(&script, "script", "", "TOML step list to run instead of the built-in script")
	cmd.Flags().BoolVar(&keep, "keep-frames", false, "keep existing frame files in the frame directory")

	return cmd
}

func (c *CLI) runDemo(ctx context.Context, opts pipeline.Options, steps []protocol.Step) error {
	logger := loggerFromContext(ctx)
	prog := newProgress(logger)

	deck, err := protocol.NewDemoDeck(ctx)
	if err != nil {
		return err
	}
	bus := event.NewBus()
	deck.Root.AttachBus(bus)

	vis, err := pipeline.NewVisualizer(deck.Root, bus, opts)
	if err != nil {
		return err
	}
	defer vis.Close()

	if err := vis.Setup(ctx); err != nil {
		return err
	}

	sim := protocol.NewSimulator(deck.Root, bus)
	sim.SetLogger(logger)
	if err := sim.Run(ctx, steps); err != nil {
		return err
	}
	prog.done("protocol finished", "steps", sim.Steps(), "frames", vis.Recorder().Count())

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Rendering %d frames...", vis.Recorder().Count()))
	spinner.Start()
	path, err := vis.Stop(ctx)
	if err != nil {
		spinner.StopWithError("Render failed")
		return err
	}
	spinner.Stop()

	printSuccess("Recorded %d steps", sim.Steps())
	printFile(path)
	printRenderStats(vis.Recorder().Count(), 0, "")
	return nil
}

// clearFrames removes frame files left in dir by an earlier run.
func clearFrames(dir string) error {
	paths, err := snapshot.ListFrames(dir)
	if errors.Is(err, errors.ErrCodeFileNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, p := range paths {
		if err := os.Remove(p); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "remove stale frame %s", p)
		}
	}
	return nil
}
