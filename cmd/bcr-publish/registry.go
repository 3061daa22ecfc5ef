package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/uhthomas/bazel-central-registry/internal/fsys"
	"github.com/uhthomas/bazel-central-registry/registry"
)

func newAddCommand(logger *slog.Logger) *cobra.Command {
	var (
		root        string
		input       string
		homepage    string
		maintainers []string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a module version to the local registry",
		Long: `Reads a module description from --input and writes the new version
under modules/. A module seen for the first time is initialized with
--homepage and --maintainer. File paths in the description are resolved
relative to the description file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if input == "" {
				return fmt.Errorf("--input is required")
			}

			inputPath, err := filepath.Abs(input)
			if err != nil {
				return fmt.Errorf("resolving %s: %w", input, err)
			}
			src := fsys.NewOSFS(filepath.Dir(inputPath))

			m, err := registry.LoadModule(src, filepath.Base(inputPath))
			if err != nil {
				return err
			}

			client := registry.NewClient(fsys.NewOSFS(root),
				registry.WithSource(src),
				registry.WithLogger(logger),
			)

			exists, err := client.Contains(m.Name, "")
			if err != nil {
				return err
			}
			if !exists {
				parsed := make([]registry.Maintainer, 0, len(maintainers))
				for _, s := range maintainers {
					mt, err := registry.ParseMaintainer(s)
					if err != nil {
						return err
					}
					parsed = append(parsed, mt)
				}
				logger.Info("new module", "module", m.Name)
				if err := client.InitModule(m.Name, parsed, homepage); err != nil {
					return err
				}
			}

			if err := client.Add(m); err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "%s %s is added into the registry\n", m.Name, m.Version)
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", ".", "Local registry root")
	cmd.Flags().StringVar(&input, "input", "", "Module description JSON file")
	cmd.Flags().StringVar(&homepage, "homepage", "", "Homepage URL for a new module")
	cmd.Flags().StringArrayVar(&maintainers, "maintainer", nil, "Maintainer of a new module as name:email[:github]")
	return cmd
}

func newDeleteCommand(logger *slog.Logger) *cobra.Command {
	var root string

	cmd := &cobra.Command{
		Use:   "delete <module> <version>",
		Short: "Delete a module version from the local registry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := registry.NewClient(fsys.NewOSFS(root), registry.WithLogger(logger))
			if err := client.Delete(args[0], args[1]); err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "%s %s is deleted from the registry\n", args[0], args[1])
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", ".", "Local registry root")
	return cmd
}
