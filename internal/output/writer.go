package output

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// WriteStatus says what WriteFile did.
type WriteStatus int

const (
	Skipped WriteStatus = iota
	Created
	Updated
)

func (s WriteStatus) String() string {
	switch s {
	case Created:
		return "created"
	case Updated:
		return "updated"
	default:
		return "skipped"
	}
}

// WriteFile writes content to path, creating parent directories. An existing
// file is left alone unless force is set.
func WriteFile(path, content string, force bool) (WriteStatus, error) {
	status := Created
	info, err := os.Stat(path)
	switch {
	case err == nil:
		if info.IsDir() {
			return Skipped, fmt.Errorf("write %s: path is a directory", path)
		}
		if !force {
			return Skipped, nil
		}
		status = Updated
	case !errors.Is(err, fs.ErrNotExist):
		return Skipped, fmt.Errorf("stat %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return Skipped, fmt.Errorf("create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return Skipped, fmt.Errorf("write %s: %w", path, err)
	}
	return status, nil
}
