package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pluginmanifest/registry/internal/manifest"
	"github.com/pluginmanifest/registry/internal/validation"
)

func newValidateCmd() *cobra.Command {
	var (
		pretty   bool
		failFast bool
	)

	cmd := &cobra.Command{
		Use:   "validate <source>",
		Short: "Validate a plugin source and print the canonical document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := manifest.LoadSource(args[0])
			if err != nil {
				return err
			}

			doc, err := src.Draft().Render(validation.WithFailFast(failFast))
			var invalid *manifest.InvalidError
			if errors.As(err, &invalid) {
				fmt.Fprintln(cmd.OutOrStdout(), invalid.Report.Render())
				return fmt.Errorf("%s: %d problem(s)", args[0], invalid.Report.Len())
			}
			if err != nil {
				return err
			}
			return manifest.Encode(cmd.OutOrStdout(), doc, pretty)
		},
	}

	cmd.Flags().BoolVar(&pretty, "pretty", false, "indent the document")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "stop at the first problem")
	return cmd
}
