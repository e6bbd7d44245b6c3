package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
)

const (
	AppName           = "mdspider"
	DefaultConfigDir  = "configs"
	DefaultConfigFile = "mdspider.yaml"
)

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir, DefaultConfigFile)
}

// XDGConfigDir is ~/.config/mdspider on Linux, the platform equivalent elsewhere.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

func SearchDirs() []string {
	return uniqueDirs([]string{
		".",
		DefaultConfigDir,
		XDGConfigDir(),
	})
}

// Discover returns the first mdspider.yaml (or .yml) found in SearchDirs.
func Discover() (string, bool) {
	for _, dir := range SearchDirs() {
		for _, name := range []string{DefaultConfigFile, strings.TrimSuffix(DefaultConfigFile, ".yaml") + ".yml"} {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, true
			}
		}
	}
	return "", false
}

func uniqueDirs(dirs []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		trimmed := strings.TrimSpace(dir)
		if trimmed == "" {
			continue
		}
		normalized := strings.ToLower(filepath.Clean(trimmed))
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
