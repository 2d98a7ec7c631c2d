package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/netsimkit/ifsim/pkg/simspec"
)

var validateCmd = &cobra.Command{
	Use:   "validate <scenario.yaml>",
	Short: "Check a scenario file",
	Long: `Validate parses a scenario and dry-runs it against a throwaway
engine, reporting unknown keys, bad engine settings, bad pattern
configurations, invalid interface definitions, and duplicates.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := simspec.Load(args[0])
		if err != nil {
			return err
		}
		if err := f.Validate(); err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		fmt.Printf("%s %s: %d interfaces, %d custom patterns\n",
			green("ok"), args[0], len(f.Interfaces), len(f.Patterns))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
