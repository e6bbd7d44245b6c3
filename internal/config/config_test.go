package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"mdspider/internal/config"
)

func TestLoadConfig(t *testing.T) {
	data := []byte(`url: https://example.com/docs/
output_dir: out/docs
max_depth: 2
num_threads: 4
throttle: 0.25
same_domain_only: true
file_extension: .html
max_children_per_page: 5
timeout: 3
headers:
  User-Agent: test-agent
cookies:
  SessionID: abc
path_configs:
  - path_prefix: https://example.com/docs/api/
    target_selectors: ["main"]
    ignore_selectors: ["nav", ".ads"]
    exclude_patterns: ["/v1/"]
    language_variant: python
    description: API docs
  - path_prefix: ""
    description: Everything else
visited:
  backend: memory
  ttl: 24h
format:
  enabled: false
`)

	dir := t.TempDir()
	path := filepath.Join(dir, "mdspider.yaml")
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.URL != "https://example.com/docs/" || cfg.OutputDir != "out/docs" {
		t.Fatalf("unexpected url/output: %q %q", cfg.URL, cfg.OutputDir)
	}
	if cfg.MaxDepth != 2 || cfg.NumThreads != 4 || cfg.MaxChildrenPerPage != 5 {
		t.Fatalf("unexpected numbers: %+v", cfg)
	}
	if cfg.ThrottleDuration() != 250*time.Millisecond {
		t.Fatalf("throttle = %s", cfg.ThrottleDuration())
	}
	if cfg.TimeoutDuration() != 3*time.Second {
		t.Fatalf("timeout = %s", cfg.TimeoutDuration())
	}
	if !cfg.SameDomainOnly || cfg.FileExtension != ".html" {
		t.Fatalf("unexpected flags: %+v", cfg)
	}
	if cfg.Headers["User-Agent"] != "test-agent" {
		t.Fatalf("header key case lost: %#v", cfg.Headers)
	}
	if cfg.Cookies["SessionID"] != "abc" {
		t.Fatalf("cookie key case lost: %#v", cfg.Cookies)
	}
	if cfg.Visited.TTL != 24*time.Hour {
		t.Fatalf("visited ttl = %s", cfg.Visited.TTL)
	}
	if cfg.Format.Enabled {
		t.Fatalf("format should be disabled")
	}
	if cfg.Format.Command != config.DefaultFormatCommand {
		t.Fatalf("format command default lost: %q", cfg.Format.Command)
	}

	want := config.PathConfig{
		PathPrefix:      "https://example.com/docs/api/",
		TargetSelectors: []string{"main"},
		IgnoreSelectors: []string{"nav", ".ads"},
		ExcludePatterns: []string{"/v1/"},
		LanguageVariant: "python",
		Description:     "API docs",
	}
	if len(cfg.PathConfigs) != 2 || !reflect.DeepEqual(cfg.PathConfigs[0], want) {
		t.Fatalf("path config mismatch\nexpected: %#v\ngot:      %#v", want, cfg.PathConfigs)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	def := config.Default()
	if cfg.MaxDepth != def.MaxDepth || cfg.NumThreads != def.NumThreads || cfg.Throttle != def.Throttle {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.OutputDir != config.DefaultOutputDir || cfg.FileExtension != config.DefaultFileExtension {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("MDSPIDER_MAX_DEPTH", "7")
	t.Setenv("MDSPIDER_VISITED_BACKEND", "redis")

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxDepth != 7 {
		t.Fatalf("MaxDepth = %d, want 7", cfg.MaxDepth)
	}
	if cfg.Visited.Backend != "redis" {
		t.Fatalf("Visited.Backend = %q, want redis", cfg.Visited.Backend)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestNormalize(t *testing.T) {
	valid := config.Default()
	valid.URL = "https://example.com"

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr error
	}{
		{name: "valid", mutate: func(*config.Config) {}},
		{name: "missing url", mutate: func(c *config.Config) { c.URL = "  " }, wantErr: config.ErrMissingURL},
		{name: "relative url", mutate: func(c *config.Config) { c.URL = "/docs" }, wantErr: config.ErrInvalidURL},
		{name: "ftp url", mutate: func(c *config.Config) { c.URL = "ftp://example.com" }, wantErr: config.ErrInvalidURL},
		{name: "bad extension", mutate: func(c *config.Config) { c.FileExtension = ".pdf" }, wantErr: config.ErrInvalidExtension},
		{name: "zero threads", mutate: func(c *config.Config) { c.NumThreads = 0 }, wantErr: config.ErrInvalidValue},
		{name: "negative depth", mutate: func(c *config.Config) { c.MaxDepth = -1 }, wantErr: config.ErrInvalidValue},
		{name: "unknown fetch backend", mutate: func(c *config.Config) { c.FetchBackend = "chrome" }, wantErr: config.ErrInvalidBackend},
		{name: "unknown visited backend", mutate: func(c *config.Config) { c.Visited.Backend = "etcd" }, wantErr: config.ErrInvalidBackend},
		{name: "redis without addr", mutate: func(c *config.Config) { c.Visited.Backend = "redis" }, wantErr: config.ErrInvalidValue},
		{
			name: "bad pattern",
			mutate: func(c *config.Config) {
				c.PathConfigs = []config.PathConfig{{PathPrefix: "", ExcludePatterns: []string{"("}}}
			},
			wantErr: config.ErrInvalidPattern,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			_, err := config.Normalize(cfg)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNormalize_SynthesizesDefaultPathConfig(t *testing.T) {
	cfg := config.Default()
	cfg.URL = "https://example.com"
	cfg.FileExtension = "markdown"

	got, err := config.Normalize(cfg)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !reflect.DeepEqual(got.PathConfigs, []config.PathConfig{config.DefaultPathConfig()}) {
		t.Fatalf("expected synthesized default, got %#v", got.PathConfigs)
	}
	if got.FileExtension != ".markdown" {
		t.Fatalf("FileExtension = %q", got.FileExtension)
	}
}

func TestNormalize_FillsTargetSelectors(t *testing.T) {
	cfg := config.Default()
	cfg.URL = "https://example.com"
	cfg.PathConfigs = []config.PathConfig{{PathPrefix: "https://example.com/a"}}

	got, err := config.Normalize(cfg)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !reflect.DeepEqual(got.PathConfigs[0].TargetSelectors, []string{"body"}) {
		t.Fatalf("TargetSelectors = %#v", got.PathConfigs[0].TargetSelectors)
	}
}

func TestSampleRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.yaml")
	if err := config.WriteFile(path, config.Sample(), false); err != nil {
		t.Fatalf("write sample: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load sample: %v", err)
	}
	cfg, err = config.Normalize(cfg)
	if err != nil {
		t.Fatalf("normalize sample: %v", err)
	}

	sample := config.Sample()
	if cfg.URL != sample.URL || cfg.NumThreads != 12 {
		t.Fatalf("sample fields lost: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.PathConfigs, sample.PathConfigs) {
		t.Fatalf("path configs mismatch\nexpected: %#v\ngot:      %#v", sample.PathConfigs, cfg.PathConfigs)
	}
	if cfg.Headers["User-Agent"] != "Documentation Spider Bot" {
		t.Fatalf("headers = %#v", cfg.Headers)
	}
	if cfg.Format.Timeout != config.DefaultFormatTimeout {
		t.Fatalf("format timeout = %s", cfg.Format.Timeout)
	}
}

func TestWriteFile_RejectsExtensionAndExisting(t *testing.T) {
	dir := t.TempDir()
	if err := config.WriteFile(filepath.Join(dir, "sample.toml"), config.Sample(), false); !errors.Is(err, config.ErrInvalidExtension) {
		t.Fatalf("expected ErrInvalidExtension, got %v", err)
	}

	path := filepath.Join(dir, "sample.yml")
	if err := config.WriteFile(path, config.Sample(), false); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := config.WriteFile(path, config.Sample(), false); !errors.Is(err, config.ErrSampleExists) {
		t.Fatalf("expected ErrSampleExists, got %v", err)
	}
	if err := config.WriteFile(path, config.Sample(), true); err != nil {
		t.Fatalf("forced write: %v", err)
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	if _, ok := config.Discover(); ok {
		t.Skip("a user-level mdspider.yaml exists; discovery result is environment dependent")
	}

	if err := os.MkdirAll(config.DefaultConfigDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(config.DefaultConfigPath(), []byte("url: https://example.com\n"), 0600); err != nil {
		t.Fatal(err)
	}
	path, ok := config.Discover()
	if !ok || path != config.DefaultConfigPath() {
		t.Fatalf("Discover() = %q, %v", path, ok)
	}
}
