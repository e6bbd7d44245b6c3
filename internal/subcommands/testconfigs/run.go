// Package testconfigs validates a directory of crawl configurations and can
// probe each seed URL to confirm its target selectors still match.
package testconfigs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"mdspider/internal/config"
	"mdspider/internal/fetch"
	"mdspider/internal/parse"
	"mdspider/internal/rules"
)

// ErrFailed reports that at least one configuration did not pass.
var ErrFailed = errors.New("configuration check failed")

type Options struct {
	Dir string
	// Fetch probes each seed URL in addition to validating the file.
	Fetch  bool
	Logger *zap.Logger
	// NewFetcher is swapped in tests.
	NewFetcher func(config.Config, *zap.Logger) (fetch.Fetcher, error)
}

type Result struct {
	File   string
	Status string
	Detail string
}

const (
	StatusOK      = "OK"
	StatusInvalid = "INVALID"
	StatusSkip    = "SKIP"
	StatusEmpty   = "EMPTY"
	StatusFailed  = "FAILED"
)

func Run(ctx context.Context, opts Options, w io.Writer) ([]Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	newFetcher := opts.NewFetcher
	if newFetcher == nil {
		newFetcher = fetch.New
	}

	dir := resolveDir(opts.Dir)
	files, err := configFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		fmt.Fprintf(w, "No configuration files in %s\n", dir)
		return nil, nil
	}

	results := make([]Result, 0, len(files))
	failed := 0
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := check(ctx, path, opts.Fetch, newFetcher, logger.With(zap.String("config", path)))
		if res.Status == StatusInvalid || res.Status == StatusFailed || res.Status == StatusEmpty {
			failed++
		}
		results = append(results, res)
		if res.Detail != "" {
			fmt.Fprintf(w, "%s: %s (%s)\n", res.File, res.Status, res.Detail)
		} else {
			fmt.Fprintf(w, "%s: %s\n", res.File, res.Status)
		}
	}

	if failed > 0 {
		return results, fmt.Errorf("%w: %d of %d", ErrFailed, failed, len(results))
	}
	return results, nil
}

func check(ctx context.Context, path string, probe bool, newFetcher func(config.Config, *zap.Logger) (fetch.Fetcher, error), logger *zap.Logger) Result {
	res := Result{File: filepath.Base(path)}

	cfg, err := config.Load(path)
	if err != nil {
		res.Status, res.Detail = StatusInvalid, err.Error()
		return res
	}
	if strings.TrimSpace(cfg.URL) == "" {
		res.Status, res.Detail = StatusSkip, "no url"
		return res
	}
	cfg, err = config.Normalize(cfg)
	if err != nil {
		res.Status, res.Detail = StatusInvalid, err.Error()
		return res
	}
	resolver, err := rules.New(cfg.PathConfigs, rules.Options{
		SeedURL:        cfg.URL,
		SameDomainOnly: cfg.SameDomainOnly,
		Logger:         logger,
	})
	if err != nil {
		res.Status, res.Detail = StatusInvalid, err.Error()
		return res
	}

	res.Status = StatusOK
	res.Detail = fmt.Sprintf("%s, %d path rules", cfg.URL, len(cfg.PathConfigs))
	if !probe {
		return res
	}

	fetcher, err := newFetcher(cfg, logger)
	if err != nil {
		res.Status, res.Detail = StatusInvalid, err.Error()
		return res
	}
	page, err := fetcher.Fetch(ctx, cfg.URL)
	if err != nil {
		res.Status, res.Detail = StatusFailed, err.Error()
		return res
	}
	ext, err := parse.Extract(string(page.Body), cfg.URL, resolver.Resolve(cfg.URL))
	if err != nil {
		res.Status, res.Detail = StatusFailed, err.Error()
		return res
	}
	if strings.TrimSpace(ext.Content) == "" {
		res.Status, res.Detail = StatusEmpty, "target selectors matched nothing at "+cfg.URL
		return res
	}
	res.Detail = fmt.Sprintf("%d bytes of content, %d links", len(ext.Content), len(ext.Links))
	return res
}

func configFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read configs dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func resolveDir(dir string) string {
	if strings.TrimSpace(dir) != "" {
		return dir
	}
	for _, candidate := range config.SearchDirs() {
		if candidate == "." {
			continue
		}
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return config.DefaultConfigDir
}
