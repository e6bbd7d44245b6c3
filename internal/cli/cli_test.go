package cli

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"

	"mdspider/internal/config"
	"mdspider/internal/tui"
)

// emptyConfig keeps config discovery away from whatever sits in the
// working directory.
func emptyConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(path, []byte("{}\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd(&stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	if err == nil {
		return 0
	}
	var exitErr ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

func TestApplyFlags_OnlyChanged(t *testing.T) {
	cmd, opts := newRootCmd(&bytes.Buffer{}, &bytes.Buffer{})
	if err := cmd.ParseFlags([]string{"--max-depth", "5", "--user-agent", "TestBot", "-f", "html", "--no-format", "--debug"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg := config.Default()
	cfg.URL = "https://from-file.example.com"
	cfg.NumThreads = 3
	cfg.Throttle = 2
	cfg.Headers = map[string]string{"user-agent": "FileBot", "Accept": "text/html"}

	if err := applyFlags(cmd.Flags(), opts, &cfg); err != nil {
		t.Fatalf("applyFlags: %v", err)
	}
	if cfg.URL != "https://from-file.example.com" {
		t.Fatalf("url overridden by unset flag: %q", cfg.URL)
	}
	if cfg.NumThreads != 3 || cfg.Throttle != 2 {
		t.Fatalf("unset flags overrode file values: threads=%d throttle=%v", cfg.NumThreads, cfg.Throttle)
	}
	if cfg.MaxDepth != 5 {
		t.Fatalf("expected max depth 5, got %d", cfg.MaxDepth)
	}
	if cfg.FileExtension != ".html" {
		t.Fatalf("expected .html, got %q", cfg.FileExtension)
	}
	if len(cfg.Headers) != 2 || cfg.Headers["User-Agent"] != "TestBot" || cfg.Headers["Accept"] != "text/html" {
		t.Fatalf("unexpected headers: %v", cfg.Headers)
	}
	if cfg.Format.Enabled {
		t.Fatal("expected --no-format to disable formatting")
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("expected debug level, got %q", cfg.Log.Level)
	}
}

func TestApplyFlags_InvalidFormat(t *testing.T) {
	cmd, opts := newRootCmd(&bytes.Buffer{}, &bytes.Buffer{})
	if err := cmd.ParseFlags([]string{"--format", "pdf"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	cfg := config.Default()
	err := applyFlags(cmd.Flags(), opts, &cfg)
	if exitCode(t, err) != 2 || !errors.Is(err, config.ErrInvalidExtension) {
		t.Fatalf("expected usage error for bad format, got %v", err)
	}
}

func TestRoot_MissingURL(t *testing.T) {
	_, stderr, err := execute(t, "-c", emptyConfig(t))
	if code := exitCode(t, err); code != 2 {
		t.Fatalf("expected exit 2, got %d (%v)", code, err)
	}
	if !errors.Is(err, config.ErrMissingURL) {
		t.Fatalf("expected ErrMissingURL, got %v", err)
	}
	if !strings.Contains(stderr, "Markdown Spider") {
		t.Fatalf("expected banner on stderr, got %q", stderr)
	}
}

func TestRoot_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"--bogus"}},
		{"bad int", []string{"--max-depth", "deep"}},
		{"positional", []string{"https://example.com"}},
		{"invalid url", []string{"-q", "--url", "not a url"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"-c", emptyConfig(t)}, tt.args...)
			_, _, err := execute(t, args...)
			if code := exitCode(t, err); code != 2 {
				t.Fatalf("expected exit 2, got %d (%v)", code, err)
			}
		})
	}
}

func TestRoot_QuietSuppressesBanner(t *testing.T) {
	_, stderr, _ := execute(t, "-q", "-c", emptyConfig(t))
	if strings.Contains(stderr, "Markdown Spider") {
		t.Fatalf("banner printed with --quiet: %q", stderr)
	}
}

func TestRoot_MissingConfigFile(t *testing.T) {
	_, _, err := execute(t, "-q", "-c", filepath.Join(t.TempDir(), "nope.yaml"))
	if code := exitCode(t, err); code != 1 {
		t.Fatalf("expected exit 1, got %d (%v)", code, err)
	}
}

func TestRoot_Crawls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		switch r.URL.Path {
		case "/":
			fmt.Fprint(w, `<html><body><main><h1>Home</h1><a href="/guide">Guide</a></main></body></html>`)
		case "/guide":
			fmt.Fprint(w, `<html><body><main><h1>Guide</h1><p>Steps.</p></main></body></html>`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	out := filepath.Join(t.TempDir(), "site")
	stdout, _, err := execute(t, "-q", "-c", emptyConfig(t),
		"--url", srv.URL+"/", "-o", out, "-r", "0", "-t", "2", "--no-format")
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}

	if !strings.Contains(stdout, "Successfully crawled 2 pages!") {
		t.Fatalf("unexpected stdout: %q", stdout)
	}
	abs, _ := filepath.Abs(out)
	if !strings.Contains(stdout, "Content saved to: "+abs) {
		t.Fatalf("expected absolute output dir in %q", stdout)
	}
	for _, name := range []string{"index.md", "guide.md", "crawl-index.json", "SUMMARY.md"} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Errorf("expected %s: %v", name, err)
		}
	}
	guide, err := os.ReadFile(filepath.Join(out, "guide.md"))
	if err != nil {
		t.Fatalf("read guide: %v", err)
	}
	if !strings.Contains(string(guide), "# Guide") {
		t.Fatalf("unexpected guide content: %q", guide)
	}
}

func TestRoot_ZeroPages(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, stderr, err := execute(t, "-q", "-c", emptyConfig(t),
		"--url", srv.URL+"/", "-o", t.TempDir(), "-r", "0", "--no-format")
	if code := exitCode(t, err); code != 1 {
		t.Fatalf("expected exit 1, got %d (%v)", code, err)
	}
	var exitErr ExitError
	if errors.As(err, &exitErr) && exitErr.Err != nil {
		t.Fatalf("expected a quiet exit, got %v", exitErr.Err)
	}
	if !strings.Contains(stderr, "No pages were crawled. Check your configuration.") {
		t.Fatalf("unexpected stderr: %q", stderr)
	}
}

func TestRoot_GenerateConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.yaml")
	stdout, _, err := execute(t, "-q", "-g", path)
	if err != nil {
		t.Fatalf("generate config: %v", err)
	}
	if !strings.Contains(stdout, "Sample YAML configuration written to "+path) {
		t.Fatalf("unexpected stdout: %q", stdout)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load generated config: %v", err)
	}
	if cfg.URL != config.Sample().URL {
		t.Fatalf("unexpected url %q", cfg.URL)
	}

	_, _, err = execute(t, "-q", "-g", filepath.Join(t.TempDir(), "sample.toml"))
	if code := exitCode(t, err); code != 2 {
		t.Fatalf("expected exit 2 for .toml, got %d (%v)", code, err)
	}
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "mdspider.yaml")

	if _, _, err := execute(t, "init", path); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file: %v", err)
	}

	_, _, err := execute(t, "init", path)
	if !errors.Is(err, config.ErrSampleExists) {
		t.Fatalf("expected ErrSampleExists, got %v", err)
	}

	if _, _, err := execute(t, "init", "--force", path); err != nil {
		t.Fatalf("init --force: %v", err)
	}
}

func TestInit_Interactive(t *testing.T) {
	orig := wizard
	t.Cleanup(func() { wizard = orig })

	want := config.Default()
	want.URL = "https://docs.example.com/"
	want.MaxDepth = 1
	want.PathConfigs = []config.PathConfig{{TargetSelectors: []string{"article"}}}
	wizard = func(tui.IO) (config.Config, error) { return want, nil }

	path := filepath.Join(t.TempDir(), "wizard.yaml")
	stdout, _, err := execute(t, "init", "-i", path)
	if err != nil {
		t.Fatalf("init -i: %v", err)
	}
	if !strings.Contains(stdout, "Configuration written to "+path) {
		t.Fatalf("unexpected stdout: %q", stdout)
	}
	got, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.URL != want.URL || got.MaxDepth != 1 || got.PathConfigs[0].TargetSelectors[0] != "article" {
		t.Fatalf("unexpected config: %+v", got)
	}

	wizard = func(tui.IO) (config.Config, error) { return config.Config{}, errors.New("aborted") }
	if _, _, err := execute(t, "init", "-i", filepath.Join(t.TempDir(), "x.yaml")); err == nil {
		t.Fatal("expected wizard error to surface")
	}
}

func TestNewLogger(t *testing.T) {
	for _, tc := range []struct{ level, format string }{
		{"info", "console"},
		{"debug", "json"},
		{"warn", ""},
	} {
		logger, err := NewLogger(tc.level, tc.format)
		if err != nil {
			t.Fatalf("NewLogger(%q, %q): %v", tc.level, tc.format, err)
		}
		_ = logger.Sync()
	}

	if _, err := NewLogger("loud", "console"); !errors.Is(err, config.ErrInvalidValue) {
		t.Fatalf("expected invalid level error, got %v", err)
	}
	if _, err := NewLogger("info", "xml"); !errors.Is(err, config.ErrInvalidValue) {
		t.Fatalf("expected invalid format error, got %v", err)
	}

	logger, _ := NewLogger("warn", "json")
	if logger.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("debug enabled at warn level")
	}
}

func TestExitError(t *testing.T) {
	inner := errors.New("boom")
	err := error(ExitError{Code: 3, Err: inner})
	if err.Error() != "boom" || !errors.Is(err, inner) {
		t.Fatalf("unexpected ExitError behaviour: %v", err)
	}
	if (ExitError{Code: 1}).Error() != "error" {
		t.Fatal("expected placeholder message")
	}
}

func TestInspectCmd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><main><h1>Inspect me</h1><p>body</p></main></body></html>`)
	}))
	defer srv.Close()

	stdout, _, err := execute(t, "inspect", "-c", emptyConfig(t), "--preview", srv.URL+"/page")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	for _, want := range []string{"Path rule: (default)", "- body: 1", "# Inspect me"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("inspect output missing %q\n%s", want, stdout)
		}
	}

	if _, _, err := execute(t, "inspect"); exitCode(t, err) != 2 {
		t.Fatalf("expected an error without a url, got %v", err)
	}
}

func TestTestConfigsCmd(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "ok.yaml"), []byte("url: https://example.com/\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	stdout, _, err := execute(t, "test-configs", dir)
	if err != nil {
		t.Fatalf("test-configs: %v", err)
	}
	if !strings.Contains(stdout, "ok.yaml: OK") {
		t.Fatalf("unexpected output: %q", stdout)
	}

	if err := os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("url: ftp://example.com/\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, _, err = execute(t, "test-configs", dir)
	if code := exitCode(t, err); code != 1 {
		t.Fatalf("expected exit 1, got %d (%v)", code, err)
	}
}
