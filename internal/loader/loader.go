package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var supportedExts = map[string]struct{}{
	".pdf": {},
	".txt": {},
	".md":  {},
}

func SupportedExt(name string) bool {
	_, ok := supportedExts[strings.ToLower(filepath.Ext(name))]
	return ok
}

type Config struct {
	ChunkWords    int
	MarkdownPlain bool
}

type Loader struct {
	chunkWords    int
	markdownPlain bool
}

func New(cfg Config) *Loader {
	words := cfg.ChunkWords
	if words <= 0 {
		words = DefaultChunkWords
	}
	return &Loader{chunkWords: words, markdownPlain: cfg.MarkdownPlain}
}

// ListFiles returns the supported regular files directly inside dir, sorted by
// name. A missing dir has no files.
func (l *Loader) ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !SupportedExt(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// LoadText extracts plain text from a supported file.
func (l *Loader) LoadText(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return pdfText(path)
	case ".md":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		if l.markdownPlain {
			return markdownPlainText(data), nil
		}
		return strings.ToValidUTF8(string(data), ""), nil
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return strings.ToValidUTF8(string(data), ""), nil
	}
}

func (l *Loader) Chunks(text string) iter.Seq[string] {
	return Chunks(text, l.chunkWords)
}
