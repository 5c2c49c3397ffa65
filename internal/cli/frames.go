package cli

import (
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/matzehuels/deckreel/pkg/errors"
	"github.com/matzehuels/deckreel/pkg/pipeline"
	"github.com/matzehuels/deckreel/pkg/resource"
	"github.com/matzehuels/deckreel/pkg/snapshot"
)

// framesCommand creates the command that lists and checks frame files.
func (c *CLI) framesCommand() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "frames [frameDir]",
		Short: "List the frame files of a run",
		Long: `List the frame files in frameDir in render order, with the event that
triggered each capture. Every file is validated against the frame schema.

With --check the indices must also run 0..N-1 without gaps or duplicates.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := pipeline.DefaultFrameDir
			if len(args) == 1 {
				dir = args[0]
			}
			return runFrames(dir, check)
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "check that frame indices are contiguous")

	return cmd
}

func runFrames(dir string, check bool) error {
	paths, err := snapshot.ListFrames(dir)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		printInfo("No frames in %s", dir)
		return nil
	}

	var (
		rows   [][]string
		frames []*snapshot.Frame
		total  int64
	)
	for _, p := range paths {
		f, err := snapshot.ReadFrame(p)
		if err != nil {
			return err
		}
		frames = append(frames, f)

		info, err := os.Stat(p)
		if err != nil {
			return err
		}
		total += info.Size()
		rows = append(rows, []string{
			strconv.Itoa(f.Index),
			f.Label,
			strconv.Itoa(f.Snapshot.Count()),
			strconv.Itoa(filledContainers(f.Snapshot)),
			humanize.Bytes(uint64(info.Size())),
		})
	}

	printTable([]string{"#", "event", "resources", "filled", "size"}, rows)
	printDetail("%d frames, %s in %s", len(frames), humanize.Bytes(uint64(total)), dir)

	if check {
		if err := snapshot.CheckSequence(frames); err != nil {
			printWarning("%s", errors.UserMessage(err))
			return err
		}
		printSuccess("All %d frames valid", len(frames))
	}
	return nil
}

// filledContainers counts wells and troughs holding liquid.
func filledContainers(s *snapshot.Snapshot) int {
	n := 0
	s.Walk(func(s *snapshot.Snapshot) bool {
		if s.Type != resource.TypeWell && s.Type != resource.TypeTrough {
			return true
		}
		if liquids, ok := s.State[resource.StateLiquids].([]any); ok && len(liquids) > 0 {
			n++
		}
		return true
	})
	return n
}
