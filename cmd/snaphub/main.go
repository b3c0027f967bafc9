// snaphub: clipboard screenshot capture and image store.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags "-X main.Version=x.y.z".
var Version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "snaphub",
		Short: "Capture clipboard screenshots into a deduplicating image store",
		Long: `snaphub watches the system clipboard and stores every new image it sees
(raw bitmaps, copied image files, PNG content) in a flat, content-addressed
directory named by SHA-256.

Run "snaphub serve" to start the daemon. The other sub-commands talk to it over
a local socket, or over TCP with --server.

Config file search order (first found wins):
  /etc/snaphub/snaphub.toml
  $HOME/.config/snaphub/snaphub.toml
  path supplied via --config

All flags can be set via SNAPHUB_<FLAG> env vars or config-file keys.
See "snaphub serve --help" for the full flag reference.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newServeCmd(),
		newListCmd(),
		newSaveCmd(),
		newDeleteCmd(),
		newCleanupCmd(),
		newClearCmd(),
		newResetHashCmd(),
		newOCRCmd(),
		newCatCmd(),
		newCopyFileCmd(),
		newWatchCmd(),
		newStatusCmd(),
		newVersionCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("snaphub %s\n", Version)
		},
	}
}
