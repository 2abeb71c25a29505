package filestore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

type localStore struct {
	dir string
}

func NewLocal(dir string) (Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("local store dir is required")
	}
	return &localStore{dir: dir}, nil
}

func (s *localStore) Dir() string {
	return s.dir
}

// Save writes r to dir/name, replacing an existing file of the same name.
func (s *localStore) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	_ = ctx
	base, err := CleanName(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(s.dir, base)
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", err
	}
	return path, nil
}
