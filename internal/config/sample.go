package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrSampleExists = errors.New("configuration file already exists")

// Sample is a documented starting point: the Pulumi GCP registry docs plus
// the Google Cloud pages they link to.
func Sample() Config {
	cfg := Default()
	cfg.URL = "https://www.pulumi.com/registry/packages/gcp/api-docs/"
	cfg.OutputDir = "./pulumi_gcp_docs"
	cfg.NumThreads = 12
	cfg.Headers = map[string]string{"User-Agent": "Documentation Spider Bot"}
	cfg.PathConfigs = []PathConfig{
		{
			PathPrefix:      "https://www.pulumi.com/registry/packages/gcp/api-docs/",
			TargetSelectors: []string{"div.docs-main-content"},
			IgnoreSelectors: []string{
				"nav",
				"footer",
				".header-nav",
				".docs-breadcrumb",
				"#accordion-package-card",
				".pulumi-ai-badge",
				".docs-table-of-contents",
				".package-details",
				"#package-details",
				"title",
			},
			ExcludePatterns: []string{
				"/typescript/",
				"/go/",
				"/csharp/",
				"/examples/",
				"/command-line/",
				"/changelog/",
			},
			LanguageVariant: "python",
			Description:     "Pulumi GCP API docs",
		},
		{
			PathPrefix:      "https://cloud.google.com/",
			TargetSelectors: []string{".devsite-article-body", "main", "article"},
			IgnoreSelectors: []string{
				"nav",
				"header",
				"footer",
				".devsite-feedback-balloon",
				".devsite-book-nav",
			},
			Description: "Google Cloud documentation",
		},
	}
	return cfg
}

func Marshal(cfg Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

// WriteFile writes cfg as YAML to path. Only .yaml and .yml are accepted.
func WriteFile(path string, cfg Config, force bool) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("%w: %q (please specify a .yaml or .yml file)", ErrInvalidExtension, path)
	}
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s (use --force to overwrite)", ErrSampleExists, path)
		}
	}

	data, err := Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0600)
}
