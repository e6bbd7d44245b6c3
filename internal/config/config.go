package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	DefaultMaxDepth      = 3
	DefaultNumThreads    = 8
	DefaultThrottle      = 0.5
	DefaultFileExtension = ".md"
	DefaultOutputDir     = "./crawled_content"
	DefaultTimeout       = 10
	DefaultUserAgent     = "Generic Web Crawler"
	DefaultFetchBackend  = "http"
	DefaultVisitedStore  = "memory"
	DefaultFormatCommand = "npx markdownlint-cli2 --fix"
	DefaultFormatTimeout = 10 * time.Second
	DefaultKeyPrefix     = "mdspider:visited:"

	EnvPrefix = "MDSPIDER"
)

var (
	ErrMissingURL       = errors.New("no URL specified")
	ErrInvalidURL       = errors.New("invalid base URL")
	ErrInvalidExtension = errors.New("unsupported file extension")
	ErrInvalidBackend   = errors.New("unknown backend")
	ErrInvalidPattern   = errors.New("invalid path pattern")
	ErrInvalidValue     = errors.New("invalid value")
)

// PathConfig is the extraction and link-filter policy for URLs under PathPrefix.
// An empty PathPrefix makes the config the catch-all default.
type PathConfig struct {
	PathPrefix      string   `mapstructure:"path_prefix" yaml:"path_prefix"`
	TargetSelectors []string `mapstructure:"target_selectors" yaml:"target_selectors"`
	IgnoreSelectors []string `mapstructure:"ignore_selectors" yaml:"ignore_selectors,omitempty"`
	ExcludePatterns []string `mapstructure:"exclude_patterns" yaml:"exclude_patterns,omitempty"`
	IncludePatterns []string `mapstructure:"include_patterns" yaml:"include_patterns,omitempty"`
	LanguageVariant string   `mapstructure:"language_variant" yaml:"language_variant,omitempty"`
	Description     string   `mapstructure:"description" yaml:"description,omitempty"`
}

// DefaultPathConfig matches every URL and keeps the whole body.
func DefaultPathConfig() PathConfig {
	return PathConfig{
		PathPrefix:      "",
		TargetSelectors: []string{"body"},
		Description:     "Default configuration",
	}
}

type VisitedConfig struct {
	Backend       string        `mapstructure:"backend" yaml:"backend"`
	RedisAddr     string        `mapstructure:"redis_addr" yaml:"redis_addr,omitempty"`
	RedisPassword string        `mapstructure:"redis_password" yaml:"redis_password,omitempty"`
	RedisDB       int           `mapstructure:"redis_db" yaml:"redis_db,omitempty"`
	KeyPrefix     string        `mapstructure:"key_prefix" yaml:"key_prefix,omitempty"`
	TTL           time.Duration `mapstructure:"ttl" yaml:"ttl,omitempty"`
}

type FormatConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	Command string        `mapstructure:"command" yaml:"command"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Config is everything a crawl run needs. Throttle and Timeout are seconds.
type Config struct {
	URL                string            `mapstructure:"url" yaml:"url"`
	OutputDir          string            `mapstructure:"output_dir" yaml:"output_dir"`
	MaxDepth           int               `mapstructure:"max_depth" yaml:"max_depth"`
	NumThreads         int               `mapstructure:"num_threads" yaml:"num_threads"`
	Throttle           float64           `mapstructure:"throttle" yaml:"throttle"`
	SameDomainOnly     bool              `mapstructure:"same_domain_only" yaml:"same_domain_only"`
	FileExtension      string            `mapstructure:"file_extension" yaml:"file_extension"`
	MaxChildrenPerPage int               `mapstructure:"max_children_per_page" yaml:"max_children_per_page"`
	ForceOverwrite     bool              `mapstructure:"force_overwrite" yaml:"force_overwrite"`
	Timeout            float64           `mapstructure:"timeout" yaml:"timeout"`
	Headers            map[string]string `mapstructure:"headers" yaml:"headers,omitempty"`
	Cookies            map[string]string `mapstructure:"cookies" yaml:"cookies,omitempty"`
	PathConfigs        []PathConfig      `mapstructure:"path_configs" yaml:"path_configs"`

	FetchBackend  string        `mapstructure:"fetch_backend" yaml:"fetch_backend"`
	RateLimit     float64       `mapstructure:"rate_limit" yaml:"rate_limit"`
	RespectRobots bool          `mapstructure:"respect_robots" yaml:"respect_robots"`
	SitemapURL    string        `mapstructure:"sitemap_url" yaml:"sitemap_url,omitempty"`
	Visited       VisitedConfig `mapstructure:"visited" yaml:"visited"`
	Format        FormatConfig  `mapstructure:"format" yaml:"format"`
	MetricsAddr   string        `mapstructure:"metrics_addr" yaml:"metrics_addr,omitempty"`
	WriteIndex    bool          `mapstructure:"write_index" yaml:"write_index"`
	Log           LogConfig     `mapstructure:"log" yaml:"log"`
}

func Default() Config {
	return Config{
		OutputDir:     DefaultOutputDir,
		MaxDepth:      DefaultMaxDepth,
		NumThreads:    DefaultNumThreads,
		Throttle:      DefaultThrottle,
		FileExtension: DefaultFileExtension,
		Timeout:       DefaultTimeout,
		FetchBackend:  DefaultFetchBackend,
		Visited: VisitedConfig{
			Backend:   DefaultVisitedStore,
			KeyPrefix: DefaultKeyPrefix,
		},
		Format: FormatConfig{
			Enabled: true,
			Command: DefaultFormatCommand,
			Timeout: DefaultFormatTimeout,
		},
		WriteIndex: true,
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func (c Config) ThrottleDuration() time.Duration {
	return time.Duration(c.Throttle * float64(time.Second))
}

func (c Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout * float64(time.Second))
}

// NewViper returns a viper instance carrying every default, the MDSPIDER_
// environment overlay and, when path is non-empty, the YAML file.
func NewViper(path string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		return v, nil
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return v, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("url", d.URL)
	v.SetDefault("output_dir", d.OutputDir)
	v.SetDefault("max_depth", d.MaxDepth)
	v.SetDefault("num_threads", d.NumThreads)
	v.SetDefault("throttle", d.Throttle)
	v.SetDefault("same_domain_only", d.SameDomainOnly)
	v.SetDefault("file_extension", d.FileExtension)
	v.SetDefault("max_children_per_page", d.MaxChildrenPerPage)
	v.SetDefault("force_overwrite", d.ForceOverwrite)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("fetch_backend", d.FetchBackend)
	v.SetDefault("rate_limit", d.RateLimit)
	v.SetDefault("respect_robots", d.RespectRobots)
	v.SetDefault("sitemap_url", d.SitemapURL)
	v.SetDefault("visited.backend", d.Visited.Backend)
	v.SetDefault("visited.redis_addr", d.Visited.RedisAddr)
	v.SetDefault("visited.redis_password", d.Visited.RedisPassword)
	v.SetDefault("visited.redis_db", d.Visited.RedisDB)
	v.SetDefault("visited.key_prefix", d.Visited.KeyPrefix)
	v.SetDefault("visited.ttl", d.Visited.TTL)
	v.SetDefault("format.enabled", d.Format.Enabled)
	v.SetDefault("format.command", d.Format.Command)
	v.SetDefault("format.timeout", d.Format.Timeout)
	v.SetDefault("metrics_addr", d.MetricsAddr)
	v.SetDefault("write_index", d.WriteIndex)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Decode unmarshals v into a Config. path is the file v was read from, if any.
func Decode(v *viper.Viper, path string) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if path != "" {
		if err := restoreMapKeys(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

// Load reads a YAML config file (path may be empty) plus environment overrides.
// The result is not normalized; call Normalize before use.
func Load(path string) (Config, error) {
	v, err := NewViper(path)
	if err != nil {
		return Config{}, err
	}
	return Decode(v, path)
}

// viper lowercases map keys; cookie names are case-sensitive.
func restoreMapKeys(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	var raw struct {
		Headers map[string]string `yaml:"headers"`
		Cookies map[string]string `yaml:"cookies"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	if len(raw.Headers) > 0 {
		cfg.Headers = raw.Headers
	}
	if len(raw.Cookies) > 0 {
		cfg.Cookies = raw.Cookies
	}
	return nil
}

// Normalize fills derived defaults and validates cfg.
func Normalize(cfg Config) (Config, error) {
	cfg.URL = strings.TrimSpace(cfg.URL)
	if cfg.URL == "" {
		return cfg, ErrMissingURL
	}
	u, err := url.Parse(cfg.URL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return cfg, fmt.Errorf("%w: %q", ErrInvalidURL, cfg.URL)
	}

	if strings.TrimSpace(cfg.OutputDir) == "" {
		cfg.OutputDir = DefaultOutputDir
	}
	if cfg.NumThreads <= 0 {
		return cfg, fmt.Errorf("%w: num_threads must be positive, got %d", ErrInvalidValue, cfg.NumThreads)
	}
	if cfg.MaxDepth < 0 {
		return cfg, fmt.Errorf("%w: max_depth must be >= 0, got %d", ErrInvalidValue, cfg.MaxDepth)
	}
	if cfg.Throttle < 0 {
		return cfg, fmt.Errorf("%w: throttle must be >= 0, got %g", ErrInvalidValue, cfg.Throttle)
	}
	if cfg.MaxChildrenPerPage < 0 {
		return cfg, fmt.Errorf("%w: max_children_per_page must be >= 0, got %d", ErrInvalidValue, cfg.MaxChildrenPerPage)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	ext, err := normalizeExtension(cfg.FileExtension)
	if err != nil {
		return cfg, err
	}
	cfg.FileExtension = ext

	switch strings.ToLower(cfg.FetchBackend) {
	case "", "http":
		cfg.FetchBackend = "http"
	case "colly":
		cfg.FetchBackend = "colly"
	default:
		return cfg, fmt.Errorf("%w: fetch_backend %q (available: http, colly)", ErrInvalidBackend, cfg.FetchBackend)
	}

	switch strings.ToLower(cfg.Visited.Backend) {
	case "", "memory":
		cfg.Visited.Backend = "memory"
	case "redis":
		cfg.Visited.Backend = "redis"
		if cfg.Visited.RedisAddr == "" {
			return cfg, fmt.Errorf("%w: visited.redis_addr is required for the redis backend", ErrInvalidValue)
		}
	default:
		return cfg, fmt.Errorf("%w: visited.backend %q (available: memory, redis)", ErrInvalidBackend, cfg.Visited.Backend)
	}
	if cfg.Visited.KeyPrefix == "" {
		cfg.Visited.KeyPrefix = DefaultKeyPrefix
	}
	if cfg.Format.Command == "" {
		cfg.Format.Command = DefaultFormatCommand
	}
	if cfg.Format.Timeout <= 0 {
		cfg.Format.Timeout = DefaultFormatTimeout
	}

	paths, err := normalizePathConfigs(cfg.PathConfigs)
	if err != nil {
		return cfg, err
	}
	cfg.PathConfigs = paths
	return cfg, nil
}

func normalizeExtension(ext string) (string, error) {
	ext = strings.TrimSpace(ext)
	if ext == "" {
		return DefaultFileExtension, nil
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	switch strings.ToLower(ext) {
	case ".md", ".markdown", ".html", ".htm":
		return ext, nil
	}
	return "", fmt.Errorf("%w: %q (use .md, .markdown, .html or .htm)", ErrInvalidExtension, ext)
}

func normalizePathConfigs(in []PathConfig) ([]PathConfig, error) {
	if len(in) == 0 {
		return []PathConfig{DefaultPathConfig()}, nil
	}
	out := make([]PathConfig, 0, len(in))
	for _, pc := range in {
		if len(pc.TargetSelectors) == 0 {
			pc.TargetSelectors = []string{"body"}
		}
		for _, p := range append(append([]string(nil), pc.ExcludePatterns...), pc.IncludePatterns...) {
			if _, err := regexp.Compile(p); err != nil {
				return nil, fmt.Errorf("%w: %q under prefix %q: %v", ErrInvalidPattern, p, pc.PathPrefix, err)
			}
		}
		out = append(out, pc)
	}
	return out, nil
}
