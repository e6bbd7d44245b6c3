package format_test

import (
	"context"
	"runtime"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"mdspider/internal/config"
	"mdspider/internal/format"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell commands below assume a POSIX sh")
	}
}

func TestMarkdownlint_MissingCommandFallsBack(t *testing.T) {
	skipOnWindows(t)
	core, logs := observer.New(zapcore.WarnLevel)
	f := format.NewMarkdownlint("mdspider-no-such-formatter", time.Second, zap.New(core))

	in := "# Title\n\ntext\n"
	if got := f.Format(context.Background(), in); got != in {
		t.Fatalf("expected input back, got %q", got)
	}
	if logs.Len() != 1 {
		t.Fatalf("expected one warning, got %d", logs.Len())
	}

	// Once known to be missing the command is not retried.
	if got := f.Format(context.Background(), in); got != in {
		t.Fatalf("expected input back, got %q", got)
	}
	if logs.Len() != 1 {
		t.Fatalf("expected no new warning, got %d", logs.Len())
	}
}

func TestMarkdownlint_ReadsFixedFile(t *testing.T) {
	skipOnWindows(t)
	f := format.NewMarkdownlint(`sh -c 'printf "fixed\n" > "$0"'`, 5*time.Second, zap.NewNop())
	if got := f.Format(context.Background(), "draft"); got != "fixed\n" {
		t.Fatalf("got %q", got)
	}
}

func TestMarkdownlint_NonZeroExitKeepsFixes(t *testing.T) {
	skipOnWindows(t)
	f := format.NewMarkdownlint(`sh -c 'printf "partly fixed\n" > "$0"; exit 1'`, 5*time.Second, zap.NewNop())
	if got := f.Format(context.Background(), "draft"); got != "partly fixed\n" {
		t.Fatalf("got %q", got)
	}
}

func TestMarkdownlint_Timeout(t *testing.T) {
	skipOnWindows(t)
	core, logs := observer.New(zapcore.WarnLevel)
	f := format.NewMarkdownlint(`sh -c 'sleep 5'`, 100*time.Millisecond, zap.New(core))

	start := time.Now()
	if got := f.Format(context.Background(), "draft"); got != "draft" {
		t.Fatalf("got %q", got)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("timeout not enforced, took %s", elapsed)
	}
	if logs.FilterMessage("markdown formatting failed, keeping unformatted output").Len() != 1 {
		t.Fatalf("expected a warning, got %v", logs.All())
	}
}

func TestMarkdownlint_EmptyInputSkipsCommand(t *testing.T) {
	f := format.NewMarkdownlint("mdspider-no-such-formatter", time.Second, zap.NewNop())
	if got := f.Format(context.Background(), "  \n"); got != "  \n" {
		t.Fatalf("got %q", got)
	}
}

func TestNew(t *testing.T) {
	if _, ok := format.New(config.FormatConfig{Enabled: false}, nil).(format.Nop); !ok {
		t.Fatal("disabled formatting should give Nop")
	}
	if _, ok := format.New(config.FormatConfig{Enabled: true}, nil).(*format.Markdownlint); !ok {
		t.Fatal("enabled formatting should give Markdownlint")
	}
	if got := (format.Nop{}).Format(context.Background(), "x"); got != "x" {
		t.Fatalf("Nop changed input: %q", got)
	}
}
