// Package tui runs the interactive configuration wizard behind
// "mdspider init --interactive".
package tui

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"mdspider/internal/config"
)

// IO overrides the terminal. Leave it zero to use stdin and stdout.
type IO struct {
	In  io.Reader
	Out io.Writer
	// Accessible swaps the full-screen form for plain line prompts.
	Accessible bool
}

// Run asks for the essentials of a crawl and returns a config built on top
// of config.Default.
func Run(rw IO) (config.Config, error) {
	state := newFormState()
	form := buildForm(state).WithTheme(huh.ThemeDracula())
	if rw.In != nil {
		form = form.WithInput(rw.In)
	}
	if rw.Out != nil {
		form = form.WithOutput(rw.Out)
	}
	if rw.Accessible {
		form = form.WithAccessible(true)
	}
	if err := form.Run(); err != nil {
		return config.Config{}, err
	}
	return state.toConfig()
}

type formState struct {
	urlStr       string
	outputDir    string
	depthStr     string
	threadsStr   string
	format       string
	pathPrefix   string
	targetSel    string
	ignoreSel    string
	excludePats  string
	languagePref string
}

func newFormState() *formState {
	return &formState{
		outputDir:  config.DefaultOutputDir,
		depthStr:   strconv.Itoa(config.DefaultMaxDepth),
		threadsStr: strconv.Itoa(config.DefaultNumThreads),
		format:     "md",
		targetSel:  "main, article",
		ignoreSel:  "nav, footer",
	}
}

func buildForm(state *formState) *huh.Form {
	return huh.NewForm(
		buildTargetGroup(state),
		buildCrawlGroup(state),
		buildRuleGroup(state),
	)
}

func buildTargetGroup(state *formState) *huh.Group {
	return huh.NewGroup(
		huh.NewInput().Title("Base URL").Placeholder("https://docs.example.com/").Value(&state.urlStr).
			Description("Crawling starts here.").
			Validate(validateURL),
		huh.NewInput().Title("Output dir").Value(&state.outputDir).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return errors.New("output dir is required")
				}
				return nil
			}),
		huh.NewSelect[string]().Title("Format").Value(&state.format).Options(
			huh.NewOption("Markdown (.md)", "md"),
			huh.NewOption("HTML (.html)", "html"),
		),
	).Title("Target")
}

func buildCrawlGroup(state *formState) *huh.Group {
	return huh.NewGroup(
		huh.NewInput().Title("Max depth").Description("Link hops to follow from the base URL.").
			Value(&state.depthStr).Validate(validateIntString(0, 100)),
		huh.NewInput().Title("Threads").Description("Pages fetched in parallel.").
			Value(&state.threadsStr).Validate(validateIntString(1, 256)),
	).Title("Crawl")
}

func buildRuleGroup(state *formState) *huh.Group {
	return huh.NewGroup(
		huh.NewInput().Title("Path prefix").Description("Optional: the rule applies under this URL prefix. Empty matches everything.").
			Value(&state.pathPrefix),
		huh.NewInput().Title("Target selectors").Description("Comma separated CSS selectors for the content.").
			Value(&state.targetSel),
		huh.NewInput().Title("Ignore selectors").Description("Comma separated CSS selectors to drop.").
			Value(&state.ignoreSel),
		huh.NewInput().Title("Exclude patterns").Description("Comma separated regular expressions of URLs to skip.").
			Value(&state.excludePats).Validate(validatePatterns),
		huh.NewInput().Title("Language variant").Description("Optional: keep only this tab in code-variant blocks (e.g. python).").
			Value(&state.languagePref),
	).Title("Path Rule")
}

func (s *formState) toConfig() (config.Config, error) {
	if err := validateURL(s.urlStr); err != nil {
		return config.Config{}, err
	}
	depth, err := parseNonNegativeInt(s.depthStr, "max depth must be an integer >= 0")
	if err != nil {
		return config.Config{}, err
	}
	threads, err := parsePositiveInt(s.threadsStr, "threads must be a positive integer")
	if err != nil {
		return config.Config{}, err
	}
	if err := validatePatterns(s.excludePats); err != nil {
		return config.Config{}, err
	}

	cfg := config.Default()
	cfg.URL = strings.TrimSpace(s.urlStr)
	cfg.OutputDir = strings.TrimSpace(s.outputDir)
	cfg.MaxDepth = depth
	cfg.NumThreads = threads
	cfg.FileExtension = "." + s.format

	rule := config.PathConfig{
		PathPrefix:      strings.TrimSpace(s.pathPrefix),
		TargetSelectors: splitList(s.targetSel),
		IgnoreSelectors: splitList(s.ignoreSel),
		ExcludePatterns: splitList(s.excludePats),
		LanguageVariant: strings.ToLower(strings.TrimSpace(s.languagePref)),
	}
	if len(rule.TargetSelectors) == 0 {
		rule.TargetSelectors = []string{"body"}
	}
	if rule.PathPrefix == "" {
		rule.Description = "Default configuration"
	}
	cfg.PathConfigs = []config.PathConfig{rule}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func validateURL(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("url is required")
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.New("url must be an absolute http(s) URL")
	}
	return nil
}

func validatePatterns(s string) error {
	for _, p := range splitList(s) {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("invalid pattern %q: %w", p, err)
		}
	}
	return nil
}

func parsePositiveInt(s, errMsg string) (int, error) {
	val, err := parseInt(s)
	if err != nil || val <= 0 {
		return 0, errors.New(errMsg)
	}
	return val, nil
}

func parseNonNegativeInt(s, errMsg string) (int, error) {
	val, err := parseInt(s)
	if err != nil || val < 0 {
		return 0, errors.New(errMsg)
	}
	return val, nil
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

func validateIntString(minVal, maxVal int) func(string) error {
	return func(s string) error {
		v, err := parseInt(s)
		if err != nil {
			return errors.New("must be an integer")
		}
		if v < minVal || v > maxVal {
			return fmt.Errorf("must be between %d and %d", minVal, maxVal)
		}
		return nil
	}
}
