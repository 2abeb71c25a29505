package filestore

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Store persists uploaded documents under a flat namespace of base names.
type Store interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
	Dir() string
}

// CleanName reduces an uploaded file name to its base name. Names that would
// escape the directory are rejected.
func CleanName(name string) (string, error) {
	name = strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	base := filepath.Base(name)
	switch base {
	case "", ".", "..", "/":
		return "", fmt.Errorf("invalid file name: %q", name)
	}
	return base, nil
}
