package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pluginmanifest/registry/internal/diagnostic"
	"github.com/pluginmanifest/registry/internal/semver"
)

var errNotSatisfied = errors.New("version does not satisfy range")

func newRangeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "range <expr> [version]",
		Short: "Parse a version range and optionally test a version against it",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			var report diagnostic.Report
			rng, ok := semver.ParseRangeCollect("range", args[0], &report)
			if !ok {
				fmt.Fprintln(out, report.Render())
				return fmt.Errorf("invalid range %q", args[0])
			}

			fmt.Fprintf(out, "range: %s\nkind:  %s\n", rng, rng.Kind)
			if rng.Min != nil {
				fmt.Fprintf(out, "min:   %s (%s)\n", rng.Min, inclusivity(rng.MinInclusive))
			}
			if rng.Max != nil {
				fmt.Fprintf(out, "max:   %s (%s)\n", rng.Max, inclusivity(rng.MaxInclusive))
			}

			if len(args) < 2 {
				return nil
			}
			v, ok := semver.ParseCollect("version", args[1], &report)
			if !ok {
				fmt.Fprintln(out, report.Render())
				return fmt.Errorf("invalid version %q", args[1])
			}
			if !rng.Contains(v) {
				fmt.Fprintf(out, "%s does not satisfy %s\n", v, rng)
				return errNotSatisfied
			}
			fmt.Fprintf(out, "%s satisfies %s\n", v, rng)
			return nil
		},
	}
}

func inclusivity(inclusive bool) string {
	if inclusive {
		return "inclusive"
	}
	return "exclusive"
}
