package rules_test

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"mdspider/internal/config"
	"mdspider/internal/rules"
)

func newResolver(t *testing.T, cfgs []config.PathConfig, sameDomain bool) *rules.Resolver {
	t.Helper()
	r, err := rules.New(cfgs, rules.Options{SeedURL: "https://example.com/a", SameDomainOnly: sameDomain})
	if err != nil {
		t.Fatalf("rules.New: %v", err)
	}
	return r
}

func TestResolve_Precedence(t *testing.T) {
	cfgs := []config.PathConfig{
		{PathPrefix: "https://example.com/a/b", Description: "ab"},
		{PathPrefix: "https://example.com/a", Description: "a"},
		{PathPrefix: "", Description: "default"},
	}
	r := newResolver(t, cfgs, false)

	tests := []struct {
		url  string
		want string
	}{
		{"https://example.com/a/b/c", "ab"},
		{"https://example.com/a/x", "a"},
		{"https://example.com/z", "default"},
		{"https://other.org/a/b", "default"},
	}
	for _, tt := range tests {
		if got := r.Resolve(tt.url).Description; got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestResolve_FirstMatchWins(t *testing.T) {
	// A broader prefix listed first shadows a narrower one.
	cfgs := []config.PathConfig{
		{PathPrefix: "https://example.com/a", Description: "a"},
		{PathPrefix: "https://example.com/a/b", Description: "ab"},
	}
	r := newResolver(t, cfgs, false)
	if got := r.Resolve("https://example.com/a/b/c").Description; got != "a" {
		t.Fatalf("Resolve = %q, want a", got)
	}
}

func TestResolve_FallsBackToFirstWithoutDefault(t *testing.T) {
	cfgs := []config.PathConfig{
		{PathPrefix: "https://example.com/a", Description: "a"},
		{PathPrefix: "https://example.com/b", Description: "b"},
	}
	r := newResolver(t, cfgs, false)
	if got := r.Resolve("https://elsewhere.net/").Description; got != "a" {
		t.Fatalf("Resolve = %q, want first config", got)
	}
}

func TestResolve_EmptyListSynthesizesDefault(t *testing.T) {
	r := newResolver(t, nil, false)
	got := r.Resolve("https://example.com/anything")
	if got.PathPrefix != "" || len(got.TargetSelectors) != 1 || got.TargetSelectors[0] != "body" {
		t.Fatalf("unexpected default policy: %#v", got)
	}
}

func TestShouldCrawl(t *testing.T) {
	cfgs := []config.PathConfig{
		{
			PathPrefix:      "https://example.com/docs/",
			ExcludePatterns: []string{"/go/", `\.pdf$`},
			IncludePatterns: []string{"/api/", "/guide/"},
		},
		{
			PathPrefix:      "https://example.com/blog/",
			ExcludePatterns: []string{"draft"},
		},
	}

	tests := []struct {
		name       string
		cfgs       []config.PathConfig
		sameDomain bool
		url        string
		want       bool
	}{
		{name: "include match", cfgs: cfgs, url: "https://example.com/docs/api/x", want: true},
		{name: "include miss", cfgs: cfgs, url: "https://example.com/docs/other", want: false},
		{name: "exclude beats include", cfgs: cfgs, url: "https://example.com/docs/api/go/x", want: false},
		{name: "exclude regex", cfgs: cfgs, url: "https://example.com/docs/api/file.pdf", want: false},
		{name: "policy scoped exclude", cfgs: cfgs, url: "https://example.com/blog/post", want: true},
		{name: "policy scoped exclude hit", cfgs: cfgs, url: "https://example.com/blog/draft-1", want: false},
		{name: "no prefix match", cfgs: cfgs, url: "https://example.com/about", want: false},
		{name: "default matches all", cfgs: nil, url: "https://other.org/x", want: true},
		{name: "domain restriction", cfgs: nil, sameDomain: true, url: "https://other.org/x", want: false},
		{name: "domain restriction same host", cfgs: nil, sameDomain: true, url: "https://example.com/x", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newResolver(t, tt.cfgs, tt.sameDomain)
			if got := r.ShouldCrawl(tt.url); got != tt.want {
				t.Fatalf("ShouldCrawl(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestShouldCrawl_UsesResolvedPolicyNotDefault(t *testing.T) {
	// The empty-prefix default is listed first; the specific policy still owns
	// its URLs and its exclude pattern applies.
	cfgs := []config.PathConfig{
		{PathPrefix: ""},
		{PathPrefix: "https://example.com/docs/", ExcludePatterns: []string{"/internal/"}},
	}
	r := newResolver(t, cfgs, false)
	if r.ShouldCrawl("https://example.com/docs/internal/a") {
		t.Fatal("expected the /docs/ policy exclude pattern to reject the URL")
	}
	if !r.ShouldCrawl("https://example.com/other/internal/a") {
		t.Fatal("default policy has no excludes; URL should pass")
	}
}

func TestNew_InvalidPattern(t *testing.T) {
	_, err := rules.New([]config.PathConfig{{IncludePatterns: []string{"[a-"}}}, rules.Options{SeedURL: "https://example.com"})
	if !errors.Is(err, config.ErrInvalidPattern) {
		t.Fatalf("expected ErrInvalidPattern, got %v", err)
	}
}

func TestShouldCrawl_LogsReason(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	r, err := rules.New([]config.PathConfig{{ExcludePatterns: []string{"/private/"}}}, rules.Options{
		SeedURL: "https://example.com",
		Logger:  zap.New(core),
	})
	if err != nil {
		t.Fatal(err)
	}
	if r.ShouldCrawl("https://example.com/private/x") {
		t.Fatal("expected rejection")
	}
	entries := logs.FilterMessage("rejected: exclude pattern").All()
	if len(entries) != 1 {
		t.Fatalf("expected one exclude log entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["pattern"]; got != "/private/" {
		t.Fatalf("logged pattern = %v", got)
	}
}
