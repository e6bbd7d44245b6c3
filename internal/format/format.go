// Package format post-processes generated Markdown with an external linter.
package format

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"mdspider/internal/config"
)

// Formatter rewrites a Markdown document. It never fails: on any problem the
// input comes back unchanged.
type Formatter interface {
	Format(ctx context.Context, markdown string) string
}

// Nop returns its input.
type Nop struct{}

func (Nop) Format(_ context.Context, markdown string) string { return markdown }

// New returns a Markdownlint formatter when formatting is enabled, Nop otherwise.
func New(cfg config.FormatConfig, logger *zap.Logger) Formatter {
	if !cfg.Enabled {
		return Nop{}
	}
	return NewMarkdownlint(cfg.Command, cfg.Timeout, logger)
}

// Markdownlint runs a fixer command (markdownlint-cli2 --fix by default) over
// a temp copy of the document and reads the result back.
type Markdownlint struct {
	command string
	timeout time.Duration
	logger  *zap.Logger

	// unavailable is set once the command turns out not to exist, so later
	// pages skip straight to the fallback.
	unavailable atomic.Bool
}

func NewMarkdownlint(command string, timeout time.Duration, logger *zap.Logger) *Markdownlint {
	command = strings.TrimSpace(command)
	if command == "" {
		command = config.DefaultFormatCommand
	}
	if timeout <= 0 {
		timeout = config.DefaultFormatTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Markdownlint{command: command, timeout: timeout, logger: logger}
}

func (m *Markdownlint) Format(ctx context.Context, markdown string) string {
	if strings.TrimSpace(markdown) == "" || m.unavailable.Load() {
		return markdown
	}
	out, err := m.run(ctx, markdown)
	if err != nil {
		m.logger.Warn("markdown formatting failed, keeping unformatted output",
			zap.String("command", m.command), zap.Error(err))
		return markdown
	}
	return out
}

func (m *Markdownlint) run(ctx context.Context, markdown string) (string, error) {
	tmp, err := os.CreateTemp("", "mdspider-*.md")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	path := tmp.Name()
	defer os.Remove(path)

	if _, err := tmp.WriteString(markdown); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	cmd, err := commandForShell(runCtx, m.command+" "+shellQuote(path))
	if err != nil {
		return "", err
	}
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	cmd.WaitDelay = time.Second

	if err := cmd.Run(); err != nil {
		if runCtx.Err() != nil {
			return "", fmt.Errorf("timed out after %s: %w", m.timeout, runCtx.Err())
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return "", fmt.Errorf("run %q: %w", m.command, err)
		}
		if code := exitErr.ExitCode(); code == 126 || code == 127 {
			m.unavailable.Store(true)
			return "", fmt.Errorf("command not available (exit %d): %s", code, strings.TrimSpace(output.String()))
		}
		// Lint findings that --fix could not repair still leave a fixed file.
		m.logger.Debug("formatter reported remaining issues",
			zap.Int("exit_code", exitErr.ExitCode()),
			zap.String("output", strings.TrimSpace(output.String())))
	}

	fixed, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read formatted file: %w", err)
	}
	return string(fixed), nil
}

func commandForShell(ctx context.Context, command string) (*exec.Cmd, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return nil, errors.New("empty command")
	}
	if runtime.GOOS == "windows" {
		return exec.CommandContext(ctx, "cmd", "/C", command), nil
	}
	return exec.CommandContext(ctx, "sh", "-c", command), nil
}

func shellQuote(s string) string {
	if runtime.GOOS == "windows" {
		return `"` + s + `"`
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
