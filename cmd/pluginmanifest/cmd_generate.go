package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pluginmanifest/registry/internal/manifest"
	"github.com/pluginmanifest/registry/internal/validation"
)

// currentUser is replaced in tests
var currentUser = user.Current

func newGenerateCmd() *cobra.Command {
	var (
		defaults  manifest.Defaults
		resources string
		outDir    string
		pretty    bool
		failFast  bool
	)

	cmd := &cobra.Command{
		Use:   "generate <source>",
		Short: "Render manifest.json from a plugin source file",
		Long: `Loads a plugin source (.json, .yaml, .yml or .toml), fills blank fields
from the project flags and the current user, validates it and writes
manifest.json into the output directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := manifest.LoadSource(args[0])
			if err != nil {
				return err
			}

			defaults.UserName = userName()
			defaults.HasResources, err = hasResources(resources)
			if err != nil {
				return err
			}

			draft := src.Draft()
			for _, d := range draft.ApplyDefaults(defaults) {
				if d.Value == "" {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s left blank: %s\n", d.Field, d.Reason)
					continue
				}
				slog.Debug("defaulted field", "field", d.Field, "value", d.Value, "reason", d.Reason)
			}

			doc, err := draft.Render(validation.WithFailFast(failFast))
			if err != nil {
				return err
			}

			if err := os.MkdirAll(outDir, 0755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
			path := filepath.Join(outDir, manifest.FileName)
			if err := writeDocument(path, doc, pretty); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s for %s %s\n", path, doc.Identifier(), doc.Version)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&defaults.ProjectGroup, "group", "", "project group used when the source has none")
	flags.StringVar(&defaults.ProjectName, "name", "", "project name used when the source has none")
	flags.StringVar(&defaults.ProjectVersion, "version", "", "project version used when the source has none")
	flags.StringArrayVar(&defaults.MainCandidates, "main-candidate", nil, "discovered main type (repeatable)")
	flags.StringVar(&resources, "resources", "", "resource directory; a non-empty one marks the plugin as including an asset pack")
	flags.StringVarP(&outDir, "out", "o", ".", "output directory")
	flags.BoolVar(&pretty, "pretty", false, "indent the written document")
	flags.BoolVar(&failFast, "fail-fast", false, "stop validation at the first problem")

	return cmd
}

func writeDocument(path string, doc *manifest.Document, pretty bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := manifest.Encode(f, doc, pretty); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func userName() string {
	u, err := currentUser()
	if err != nil {
		slog.Debug("current user unavailable", "error", err)
		return ""
	}
	return u.Username
}

// hasResources reports whether dir exists and holds at least one entry
func hasResources(dir string) (bool, error) {
	if dir == "" {
		return false, nil
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read resources: %w", err)
	}
	return len(entries) > 0, nil
}
