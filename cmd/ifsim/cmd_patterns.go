package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/netsimkit/ifsim/pkg/pattern"
	"github.com/netsimkit/ifsim/pkg/simspec"
)

var patternsCmd = &cobra.Command{
	Use:   "patterns [scenario.yaml]",
	Short: "List traffic patterns",
	Long: `Patterns lists the built-in traffic patterns, plus a scenario's
custom patterns when a file is given. Custom patterns are marked with
an asterisk.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng := pattern.NewEngine(nil, nil)
		custom := map[string]bool{}
		if len(args) == 1 {
			f, err := simspec.Load(args[0])
			if err != nil {
				return err
			}
			names := make([]string, 0, len(f.Patterns))
			for name := range f.Patterns {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				if err := eng.Define(name, f.Patterns[name].Config()); err != nil {
					return fmt.Errorf("pattern %q: %w", name, err)
				}
				custom[name] = true
			}
		}

		for _, name := range eng.Names() {
			cfg, _ := eng.Config(name)
			marker := " "
			if custom[name] {
				marker = "*"
			}
			fmt.Printf("%s %s %s\n", marker, bold(fmt.Sprintf("%-18s", name)), describe(cfg))
		}
		if len(custom) > 0 {
			fmt.Println("\n* defined by the scenario")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(patternsCmd)
}

// describe renders the tuning knobs that matter for each pattern kind.
func describe(cfg pattern.Config) string {
	switch cfg.Kind {
	case pattern.KindConstant:
		return fmt.Sprintf("constant        util=%.2f variance=%.2f", cfg.Utilization, cfg.Variance)
	case pattern.KindBusinessHours:
		return fmt.Sprintf("business_hours  baseline=%.2f peak=%.2f hours=%02d-%02d variance=%.2f",
			cfg.BaselineUtilization, cfg.PeakUtilization, cfg.PeakStartHour, cfg.PeakEndHour, cfg.Variance)
	case pattern.KindBursty:
		return fmt.Sprintf("bursty          idle=%.2f burst=%.2f every=%s for=%s variance=%.2f",
			cfg.IdleUtilization, cfg.BurstUtilization, cfg.BurstInterval, cfg.BurstDuration, cfg.Variance)
	case pattern.KindServerLoad:
		return fmt.Sprintf("server_load     base=%.2f peak-mult=%.1f peak-p=%.2f variance=%.2f",
			cfg.BaseUtilization, cfg.PeakMultiplier, cfg.PeakProbability, cfg.Variance)
	}
	return string(cfg.Kind)
}
