package frontier_test

import (
	"testing"

	"mdspider/internal/frontier"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://example.com/docs/", "https://example.com/docs"},
		{"https://example.com/docs", "https://example.com/docs"},
		{"https://example.com/docs#install", "https://example.com/docs"},
		{"https://example.com/docs/#install", "https://example.com/docs"},
		{"https://example.com/docs/?lang=go", "https://example.com/docs?lang=go"},
		{"https://example.com/docs?lang=go#x", "https://example.com/docs?lang=go"},
		{"https://example.com/", "https://example.com"},
		{"https://Example.com/Docs/", "https://Example.com/Docs"},
		{"https://example.com/a//", "https://example.com/a/"},
	}
	for _, tt := range tests {
		got, err := frontier.Normalize(tt.in)
		if err != nil {
			t.Fatalf("Normalize(%q) error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalize_Invalid(t *testing.T) {
	if _, err := frontier.Normalize("http://[::1"); err == nil {
		t.Fatal("expected error for malformed url")
	}
}

func TestResolve(t *testing.T) {
	page := "https://example.com/docs/guide"
	tests := []struct {
		name   string
		href   string
		want   string
		wantOK bool
	}{
		{name: "absolute", href: "https://other.org/x/", want: "https://other.org/x", wantOK: true},
		{name: "root relative", href: "/api/v1/", want: "https://example.com/api/v1", wantOK: true},
		{name: "relative child", href: "install", want: "https://example.com/docs/guide/install", wantOK: true},
		{name: "relative parent", href: "../intro", want: "https://example.com/docs/intro", wantOK: true},
		{name: "query kept", href: "search?q=a#top", want: "https://example.com/docs/guide/search?q=a", wantOK: true},
		{name: "fragment only", href: "#section", wantOK: false},
		{name: "javascript", href: "javascript:void(0)", wantOK: false},
		{name: "mailto", href: "mailto:a@example.com", wantOK: false},
		{name: "ftp", href: "ftp://example.com/file", wantOK: false},
		{name: "empty", href: "  ", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := frontier.Resolve(page, tt.href)
			if ok != tt.wantOK {
				t.Fatalf("Resolve(%q) ok = %v, want %v (got %q)", tt.href, ok, tt.wantOK, got)
			}
			if ok && got != tt.want {
				t.Fatalf("Resolve(%q) = %q, want %q", tt.href, got, tt.want)
			}
		})
	}
}

func TestResolve_PageWithQuery(t *testing.T) {
	got, ok := frontier.Resolve("https://example.com/docs?tab=1", "child")
	if !ok || got != "https://example.com/docs/child" {
		t.Fatalf("Resolve = %q, %v", got, ok)
	}
}
