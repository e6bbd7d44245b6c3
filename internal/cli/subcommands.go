package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"mdspider/internal/subcommands/inspect"
	"mdspider/internal/subcommands/testconfigs"
)

// NewInspectCmd creates the inspect command.
func NewInspectCmd() *cobra.Command {
	var (
		configPath string
		opts       inspect.Options
	)
	cmd := &cobra.Command{
		Use:   "inspect <url>",
		Short: "Show how a single page would be extracted",
		Long: `Fetch one page and report the path rule that applies, what the target
and ignore selectors match, likely content containers, the links the crawl
would follow and structural problems in the extracted content.

Examples:
  # Overview using the discovered configuration
  mdspider inspect https://docs.example.com/guide/

  # Look at one selector only
  mdspider inspect --check-selector "div.docs-main-content" https://docs.example.com/

  # Print the converted markdown too
  mdspider inspect --preview -c docs.yaml https://docs.example.com/api/`,
		Args:          usageArgs(cobra.ExactArgs(1)),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			logger, err := NewLogger("warn", cfg.Log.Format)
			if err != nil {
				return usageError(err)
			}
			defer func() { _ = logger.Sync() }()

			opts.URL = args[0]
			opts.Config = cfg
			opts.Logger = logger
			if err := inspect.Run(cmd.Context(), opts, cmd.OutOrStdout()); err != nil {
				if isConfigError(err) {
					return usageError(err)
				}
				return err
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	f.StringVar(&opts.CheckSelector, "check-selector", "", "Only report on this CSS selector")
	f.BoolVarP(&opts.Preview, "preview", "p", false, "Print the converted markdown")
	f.IntVar(&opts.MaxLinks, "max-links", 20, "Followed links to list (0 = all)")
	return cmd
}

// NewTestConfigsCmd creates the test-configs command.
func NewTestConfigsCmd() *cobra.Command {
	var opts testconfigs.Options
	cmd := &cobra.Command{
		Use:   "test-configs [dir]",
		Short: "Validate every YAML configuration in a directory",
		Long: `Load and validate every .yaml/.yml file in a directory (configs/ by
default). With --fetch each seed URL is fetched once to confirm that its
target selectors still match content.`,
		Args:          usageArgs(cobra.MaximumNArgs(1)),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.Dir = args[0]
			}
			logger, err := NewLogger("warn", "console")
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			opts.Logger = logger

			_, err = testconfigs.Run(cmd.Context(), opts, cmd.OutOrStdout())
			if errors.Is(err, testconfigs.ErrFailed) {
				return ExitError{Code: 1, Err: err}
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&opts.Fetch, "fetch", false, "Fetch each seed URL and check the target selectors")
	return cmd
}
