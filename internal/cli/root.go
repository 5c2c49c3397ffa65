package cli

import (
	"context"
	"io"

	"github.com/matzehuels/deckreel/pkg/buildinfo"
	"github.com/matzehuels/deckreel/pkg/observability"
)

// SetVersion sets the version information displayed by --version. It is
// called by the main package with values injected via ldflags at build time.
func SetVersion(v, c, d string) {
	if v != "" {
		buildinfo.Version = v
	}
	if c != "" {
		buildinfo.Commit = c
	}
	if d != "" {
		buildinfo.Date = d
	}
}

// Execute runs the deckreel CLI with args and returns an error if the
// command fails. Logs go to w. Metrics requested with --metrics-file are
// written whether or not the command succeeded.
//
// Example:
//
//	func main() {
//	    if err := cli.Execute(ctx, os.Args[1:], os.Stderr); err != nil {
//	        os.Exit(1)
//	    }
//	}
func Execute(ctx context.Context, args []string, w io.Writer) error {
	c := New(w, LogInfo)
	root := c.RootCommand()
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if c.metrics != nil {
		defer observability.Reset()
	}
	if merr := c.writeMetrics(); merr != nil && err == nil {
		err = merr
	}
	return err
}
