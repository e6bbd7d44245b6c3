// Package cli wires the mdspider command line: flags, config discovery,
// logging and the crawl itself.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"mdspider/internal/config"
	"mdspider/internal/crawler"
	"mdspider/internal/metrics"
)

const banner = `
    Markdown Spider
    --------------------------
    Recursively crawls websites and saves content
    as markdown or HTML files
`

type rootOptions struct {
	url            string
	outputDir      string
	maxDepth       int
	numThreads     int
	throttle       float64
	debug          bool
	domainOnly     bool
	format         string
	userAgent      string
	maxChildren    int
	configPath     string
	generateConfig string
	forceOverwrite bool
	timeout        float64
	metricsAddr    string
	noFormat       bool
	quiet          bool
}

// NewRootCmd returns the mdspider command. Output goes to stdout and stderr;
// tests pass buffers.
func NewRootCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd, _ := newRootCmd(stdout, stderr)
	return cmd
}

func newRootCmd(stdout, stderr io.Writer) (*cobra.Command, *rootOptions) {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "mdspider",
		Short: "Recursively crawl websites and save content as markdown or HTML files",
		Long: `Recursively crawl websites and save content as markdown or HTML files.

Can be configured via command line options or a YAML config file.
Path-specific rules can be defined for different domains or URL paths.

Without --config, mdspider.yaml is looked up in the current directory,
configs/ and the user config directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) > 0 {
				return usageError(fmt.Errorf("unexpected argument %q", args[0]))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRoot(cmd, opts)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	f := cmd.Flags()
	f.StringVarP(&opts.url, "url", "u", "", "Base URL to start crawling from")
	f.StringVarP(&opts.outputDir, "output-dir", "o", config.DefaultOutputDir, "Directory to save files")
	f.IntVarP(&opts.maxDepth, "max-depth", "d", config.DefaultMaxDepth, "Maximum crawl depth")
	f.IntVarP(&opts.numThreads, "num-threads", "t", config.DefaultNumThreads, "Number of worker threads")
	f.Float64VarP(&opts.throttle, "throttle", "r", config.DefaultThrottle, "Delay between requests in seconds")
	f.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	f.BoolVar(&opts.domainOnly, "domain-only", false, "Only crawl URLs on the same domain")
	f.StringVarP(&opts.format, "format", "f", "md", "Output format (md|html)")
	f.StringVar(&opts.userAgent, "user-agent", "", "Custom User-Agent string")
	f.IntVar(&opts.maxChildren, "max-children", 0, "Maximum number of child URLs to process per page (0 = unlimited)")
	f.StringVarP(&opts.configPath, "config", "c", "", "Path to YAML configuration file")
	f.StringVarP(&opts.generateConfig, "generate-config", "g", "", "Generate a sample YAML configuration file and exit")
	f.BoolVar(&opts.forceOverwrite, "force-overwrite", false, "Force overwrite existing files")
	f.Float64Var(&opts.timeout, "timeout", config.DefaultTimeout, "Per-request timeout in seconds")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	f.BoolVar(&opts.noFormat, "no-format", false, "Skip the markdownlint formatting pass")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "Do not print the banner")

	cmd.AddCommand(NewInitCmd(), NewInspectCmd(), NewTestConfigsCmd())
	return cmd, opts
}

func runRoot(cmd *cobra.Command, opts *rootOptions) error {
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
	if !opts.quiet {
		fmt.Fprint(stderr, banner+"\n")
	}

	if opts.generateConfig != "" {
		return writeSampleConfig(stdout, opts.generateConfig, false)
	}

	cfg, cfgPath, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if err := applyFlags(cmd.Flags(), opts, &cfg); err != nil {
		return err
	}
	if cfg.URL == "" {
		return usageError(fmt.Errorf("%w: use --url or set url in the config file", config.ErrMissingURL))
	}

	logger, err := NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return usageError(err)
	}
	defer func() { _ = logger.Sync() }()
	if cfgPath != "" {
		logger.Info("loaded configuration", zap.String("path", cfgPath))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	spider, err := crawler.New(cfg, crawler.Deps{Logger: logger, Metrics: m})
	if err != nil {
		if isConfigError(err) {
			return usageError(err)
		}
		return err
	}

	if addr := spider.Config().MetricsAddr; addr != "" {
		srv := metrics.NewServer(addr, m, logger.Named("metrics"))
		srv.Start()
		defer func() {
			if err := srv.Shutdown(context.Background()); err != nil {
				logger.Warn("metrics server shutdown", zap.Error(err))
			}
		}()
	}

	stats, runErr := spider.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	if runErr != nil {
		fmt.Fprintln(stderr, "Interrupted; reporting partial results.")
	}

	if stats.Pages == 0 {
		fmt.Fprintln(stderr, "No pages were crawled. Check your configuration.")
		return ExitError{Code: 1}
	}

	outDir, err := filepath.Abs(spider.Config().OutputDir)
	if err != nil {
		outDir = spider.Config().OutputDir
	}
	fmt.Fprintf(stdout, "Successfully crawled %d pages!\n", stats.Pages)
	fmt.Fprintf(stdout, "Content saved to: %s\n", outDir)
	if stats.SummaryPath != "" {
		fmt.Fprintf(stdout, "Summary: %s\n", stats.SummaryPath)
	}
	return nil
}

// loadConfig reads the explicit path, or the first discovered mdspider.yaml.
// No file at all is fine; defaults and the environment still apply.
func loadConfig(explicit string) (config.Config, string, error) {
	path := explicit
	if path == "" {
		if found, ok := config.Discover(); ok {
			path = found
		}
	}
	v, err := config.NewViper(path)
	if err != nil {
		return config.Config{}, "", ExitError{Code: 1, Err: err}
	}
	cfg, err := config.Decode(v, path)
	if err != nil {
		return config.Config{}, "", ExitError{Code: 1, Err: err}
	}
	return cfg, path, nil
}

// applyFlags overlays only the flags the user actually passed, so defaults
// never mask values from the config file.
func applyFlags(flags *pflag.FlagSet, opts *rootOptions, cfg *config.Config) error {
	if flags.Changed("url") {
		cfg.URL = opts.url
	}
	if flags.Changed("output-dir") {
		cfg.OutputDir = opts.outputDir
	}
	if flags.Changed("max-depth") {
		cfg.MaxDepth = opts.maxDepth
	}
	if flags.Changed("num-threads") {
		cfg.NumThreads = opts.numThreads
	}
	if flags.Changed("throttle") {
		cfg.Throttle = opts.throttle
	}
	if flags.Changed("domain-only") {
		cfg.SameDomainOnly = opts.domainOnly
	}
	if flags.Changed("format") {
		switch opts.format {
		case "md", "html":
			cfg.FileExtension = "." + opts.format
		default:
			return usageError(fmt.Errorf("%w: --format must be md or html, got %q", config.ErrInvalidExtension, opts.format))
		}
	}
	if flags.Changed("user-agent") {
		if cfg.Headers == nil {
			cfg.Headers = map[string]string{}
		}
		for k := range cfg.Headers {
			if http.CanonicalHeaderKey(k) == "User-Agent" {
				delete(cfg.Headers, k)
			}
		}
		cfg.Headers["User-Agent"] = opts.userAgent
	}
	if flags.Changed("max-children") {
		cfg.MaxChildrenPerPage = opts.maxChildren
	}
	if flags.Changed("force-overwrite") {
		cfg.ForceOverwrite = opts.forceOverwrite
	}
	if flags.Changed("timeout") {
		cfg.Timeout = opts.timeout
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = opts.metricsAddr
	}
	if flags.Changed("no-format") && opts.noFormat {
		cfg.Format.Enabled = false
	}
	if opts.debug {
		cfg.Log.Level = "debug"
		cfg.Log.Format = "console"
	}
	return nil
}

func isConfigError(err error) bool {
	for _, target := range []error{
		config.ErrMissingURL,
		config.ErrInvalidURL,
		config.ErrInvalidExtension,
		config.ErrInvalidBackend,
		config.ErrInvalidPattern,
		config.ErrInvalidValue,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
