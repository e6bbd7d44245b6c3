// Package rules decides which PathConfig governs a URL and whether the URL
// may be crawled at all.
package rules

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"mdspider/internal/config"
)

type policy struct {
	cfg     config.PathConfig
	exclude []*regexp.Regexp
	include []*regexp.Regexp
}

// Resolver is immutable after New and safe for concurrent use.
type Resolver struct {
	policies       []policy
	baseHost       string
	sameDomainOnly bool
	logger         *zap.Logger
}

type Options struct {
	SeedURL        string
	SameDomainOnly bool
	Logger         *zap.Logger
}

func New(cfgs []config.PathConfig, opts Options) (*Resolver, error) {
	if len(cfgs) == 0 {
		cfgs = []config.PathConfig{config.DefaultPathConfig()}
	}
	seed, err := url.Parse(opts.SeedURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidURL, err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Resolver{
		policies:       make([]policy, 0, len(cfgs)),
		baseHost:       seed.Host,
		sameDomainOnly: opts.SameDomainOnly,
		logger:         logger,
	}
	for _, cfg := range cfgs {
		p := policy{cfg: cfg}
		if p.exclude, err = compileAll(cfg.ExcludePatterns, cfg.PathPrefix); err != nil {
			return nil, err
		}
		if p.include, err = compileAll(cfg.IncludePatterns, cfg.PathPrefix); err != nil {
			return nil, err
		}
		r.policies = append(r.policies, p)
	}
	return r, nil
}

func compileAll(patterns []string, prefix string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	var errs []error
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %q under prefix %q: %v", config.ErrInvalidPattern, p, prefix, err))
			continue
		}
		out = append(out, re)
	}
	return out, errors.Join(errs...)
}

// Resolve returns the first config whose non-empty prefix starts rawURL,
// else the first empty-prefix config, else the first config.
func (r *Resolver) Resolve(rawURL string) config.PathConfig {
	return r.resolve(rawURL).cfg
}

func (r *Resolver) resolve(rawURL string) *policy {
	for i := range r.policies {
		p := &r.policies[i]
		if p.cfg.PathPrefix != "" && strings.HasPrefix(rawURL, p.cfg.PathPrefix) {
			return p
		}
	}
	for i := range r.policies {
		if r.policies[i].cfg.PathPrefix == "" {
			return &r.policies[i]
		}
	}
	return &r.policies[0]
}

// ShouldCrawl applies the domain restriction, the prefix match and the
// resolved policy's exclude/include patterns, in that order.
func (r *Resolver) ShouldCrawl(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		r.logger.Debug("rejected: unparsable url", zap.String("url", rawURL), zap.Error(err))
		return false
	}
	if r.sameDomainOnly && u.Host != r.baseHost {
		r.logger.Debug("rejected: domain restriction", zap.String("url", rawURL), zap.String("base_host", r.baseHost))
		return false
	}

	p := r.resolve(rawURL)
	if p.cfg.PathPrefix != "" && !strings.HasPrefix(rawURL, p.cfg.PathPrefix) {
		r.logger.Debug("rejected: no path prefix matched", zap.String("url", rawURL))
		return false
	}
	for _, re := range p.exclude {
		if re.MatchString(rawURL) {
			r.logger.Debug("rejected: exclude pattern", zap.String("url", rawURL), zap.String("pattern", re.String()))
			return false
		}
	}
	if len(p.include) > 0 {
		matched := false
		for _, re := range p.include {
			if re.MatchString(rawURL) {
				matched = true
				break
			}
		}
		if !matched {
			r.logger.Debug("rejected: no include pattern matched", zap.String("url", rawURL), zap.Strings("patterns", p.cfg.IncludePatterns))
			return false
		}
	}

	r.logger.Debug("accepted", zap.String("url", rawURL), zap.String("policy", p.cfg.Description), zap.String("prefix", p.cfg.PathPrefix))
	return true
}

func (r *Resolver) BaseHost() string {
	return r.baseHost
}
