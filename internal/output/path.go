package output

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	unsafeNameRe = regexp.MustCompile(`[^A-Za-z0-9_-]`)
	unsafeHostRe = regexp.MustCompile(`[^A-Za-z0-9._-]`)
)

// FilePath maps a page URL to its file under outputRoot. Pages on baseHost
// land directly under outputRoot; other hosts get a subdirectory named after
// the host without its "www." prefix. FilePath does not touch the disk.
func FilePath(rawURL, baseHost, outputRoot, ext string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("map %q: %w", rawURL, err)
	}

	dir := outputRoot
	if u.Host != baseHost {
		dir = filepath.Join(outputRoot, hostDir(u.Host))
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	name := "index"
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] != "" {
			name = parts[i]
			break
		}
	}

	// Nested directories only when every segment is non-empty; a path with
	// a doubled slash flattens to its last segment.
	if len(parts) > 1 && allNonEmpty(parts) {
		segs := make([]string, 0, len(parts))
		segs = append(segs, dir)
		for _, p := range parts[:len(parts)-1] {
			segs = append(segs, SanitizeName(p))
		}
		dir = filepath.Join(segs...)
	}

	file := SanitizeName(name) + normalizeExt(ext)
	if dir == outputRoot && isReserved(file) {
		file = SanitizeName(name) + "-page" + normalizeExt(ext)
	}
	return filepath.Join(dir, file), nil
}

// isReserved reports names of the run reports kept at the output root.
// The comparison ignores case for case-insensitive filesystems.
func isReserved(file string) bool {
	return strings.EqualFold(file, SummaryFile) || strings.EqualFold(file, CrawlIndexFile)
}

// SanitizeName replaces every character outside [A-Za-z0-9_-] with '-'.
func SanitizeName(name string) string {
	return unsafeNameRe.ReplaceAllString(name, "-")
}

func hostDir(host string) string {
	return unsafeHostRe.ReplaceAllString(strings.TrimPrefix(host, "www."), "-")
}

func allNonEmpty(parts []string) bool {
	for _, p := range parts {
		if p == "" {
			return false
		}
	}
	return true
}

func normalizeExt(ext string) string {
	ext = strings.TrimSpace(ext)
	if ext == "" || strings.HasPrefix(ext, ".") {
		return ext
	}
	return "." + ext
}

// IsMarkdownExt reports whether pages written with ext are converted to
// Markdown rather than passed through as HTML.
func IsMarkdownExt(ext string) bool {
	switch strings.ToLower(normalizeExt(ext)) {
	case ".md", ".markdown":
		return true
	}
	return false
}
