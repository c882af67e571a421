// cmd/harvest/main.go
//
// GRDC metadata harvester: CLI entry point.
//
// Commands
// --------
//
//   harvest run                 – one pass: connect, search since the last
//                                 success, fetch, validate, notify, persist
//   harvest validate FILE...    – check local XML files against a rule set
//   harvest serve               – scheduler, ops HTTP server, and rule
//                                 hot-reload in one long-running process
//
// `run` and `serve` read conf/harvest.yaml (see internal/config); `validate`
// needs no configuration.
//
// Large comment blocks are framed by blank “//” lines; inline comments use
// a single “//”.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "none"
)

var rootCmd = &cobra.Command{
	Use:     "harvest",
	Version: Version + " (" + Commit + ")",
	Short:   "Harvest and validate GRDC metadata records from GeoNetwork",
	Long: `harvest pulls ISO 19115-3 records changed since the last successful run
from a GeoNetwork catalogue, validates each one against a declarative rule
set, and reports invalid records to their contacts.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errInvalidRecords) {
			fmt.Fprintln(os.Stderr, styleFail.Render("error:"), err)
		}
		os.Exit(1)
	}
}
