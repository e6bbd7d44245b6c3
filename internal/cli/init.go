package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"mdspider/internal/config"
	"mdspider/internal/tui"
)

// wizard is swapped in tests.
var wizard = tui.Run

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	var (
		force       bool
		interactive bool
	)
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a sample YAML configuration file",
		Long: `Write a sample YAML configuration file.

The sample crawls the Pulumi GCP API docs and shows every path rule option.
With --interactive the file is built from your answers instead.

Examples:
  # Create configs/mdspider.yaml
  mdspider init

  # Create a config at a specific path
  mdspider init docs.yaml

  # Answer a few questions first
  mdspider init -i docs.yaml`,
		Args:          usageArgs(cobra.MaximumNArgs(1)),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultConfigPath()
			if len(args) == 1 {
				path = args[0]
			}
			if !interactive {
				return writeSampleConfig(cmd.OutOrStdout(), path, force)
			}
			cfg, err := wizard(tui.IO{})
			if err != nil {
				return err
			}
			if err := writeConfig(path, cfg, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing configuration file")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Build the configuration from prompts")
	return cmd
}

func writeSampleConfig(w io.Writer, path string, force bool) error {
	if err := writeConfig(path, config.Sample(), force); err != nil {
		return err
	}
	fmt.Fprintf(w, "Sample YAML configuration written to %s\n", path)
	return nil
}

func writeConfig(path string, cfg config.Config, force bool) error {
	if err := config.WriteFile(path, cfg, force); err != nil {
		if errors.Is(err, config.ErrInvalidExtension) {
			return usageError(err)
		}
		return ExitError{Code: 1, Err: err}
	}
	return nil
}
