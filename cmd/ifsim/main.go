// Ifsim - SNMP Interface Behavior Simulator
//
// ifsim animates a set of simulated network interfaces described by a YAML
// scenario: wrapping SNMP counters driven by traffic patterns, scheduled and
// random link flaps, speed changes, and threshold events. It feeds the
// monitoring tools that watch such interfaces without needing a single real
// switch.
//
//	ifsim run lab.yaml --redis localhost:6379   # animate, mirror state to Redis
//	ifsim snapshot lab.yaml --elapsed 48h       # emit an snmprec table walk
//	ifsim validate lab.yaml                     # check a scenario file
//	ifsim patterns lab.yaml                     # list traffic patterns
//	ifsim version
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/netsimkit/ifsim/pkg/util"
	"github.com/netsimkit/ifsim/pkg/version"
)

var (
	verboseFlag bool
	debugFlag   bool
	logJSONFlag bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ifsim",
	Short: "SNMP interface behavior simulator",
	Long: `Ifsim animates simulated network interfaces from a YAML scenario:
wrapping counters, traffic patterns, link flaps, speed changes, and
threshold events.

  ifsim run lab.yaml                     # animate until interrupted
  ifsim snapshot lab.yaml --elapsed 48h  # snmprec walk of a warmed-up system
  ifsim validate lab.yaml                # check a scenario file
  ifsim patterns                         # list built-in traffic patterns`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logJSONFlag {
			util.SetJSONFormat()
		}
		// Quiet by default; -v for the engine's info lines, --debug for
		// per-tick detail.
		switch {
		case debugFlag:
			return util.SetLogLevel("debug")
		case verboseFlag:
			return util.SetLogLevel("info")
		default:
			return util.SetLogLevel("warn")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Debug output")
	rootCmd.PersistentFlags().BoolVar(&logJSONFlag, "log-json", false, "Log in JSON format")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			if version.Version == "dev" {
				fmt.Println("ifsim dev build (use 'make build' for version info)")
			} else {
				fmt.Printf("ifsim %s (%s)\n", version.Version, version.GitCommit)
			}
		},
	})
}

// colorize wraps s in an ANSI code when stdout is a terminal and NO_COLOR
// is unset (per no-color.org).
func colorize(code, s string) string {
	if os.Getenv("NO_COLOR") != "" || !term.IsTerminal(int(os.Stdout.Fd())) {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

func green(s string) string { return colorize("32", s) }
func bold(s string) string  { return colorize("1", s) }
