package cli

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/matzehuels/deckreel/pkg/cache"
)

// cacheCommand creates the raster cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the raster cache",
		Long: `Manage the on-disk raster cache used by 'render --cache-dir'.

Without --dir the subcommands act on the default cache directory
($XDG_CACHE_HOME/deckreel or ~/.cache/deckreel).`,
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", "", "cache directory (default: XDG cache directory)")

	cmd.AddCommand(c.cacheClearCommand(&dir))
	cmd.AddCommand(c.cachePathCommand(&dir))
	cmd.AddCommand(c.cacheStatsCommand(&dir))

	return cmd
}

// resolveCacheDir returns dir, or the default cache directory when empty.
func resolveCacheDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	d, err := cacheDir()
	if err != nil {
		return "", fmt.Errorf("get cache dir: %w", err)
	}
	return d, nil
}

// openFileCache opens the cache at dir without creating it. It returns nil
// when the directory does not exist.
func openFileCache(dir string) (*cache.FileCache, error) {
	d, err := resolveCacheDir(dir)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(d); os.IsNotExist(err) {
		return nil, nil
	}
	return cache.NewFileCache(d)
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached rasters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fc, err := openFileCache(*dir)
			if err != nil {
				return err
			}
			if fc == nil {
				printInfo("Cache is empty")
				return nil
			}

			count, err := fc.Clear()
			if err != nil {
				return err
			}
			printSuccess("Cleared %d cached rasters", count)
			printDetail("Directory: %s", fc.Dir())
			return nil
		},
	}
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache directory path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := resolveCacheDir(*dir)
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, d)
			return nil
		},
	}
}

// cacheStatsCommand creates the "cache stats" subcommand.
func (c *CLI) cacheStatsCommand(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show the number and size of cached rasters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fc, err := openFileCache(*dir)
			if err != nil {
				return err
			}
			if fc == nil {
				printInfo("Cache is empty")
				return nil
			}

			entries, size, err := fc.Stats()
			if err != nil {
				return err
			}
			printKeyValue("Directory", fc.Dir())
			printKeyValue("Entries", humanize.Comma(int64(entries)))
			printKeyValue("Size", humanize.Bytes(uint64(size)))
			return nil
		},
	}
}
