package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/Aman-CERP/autoprice/internal/errors"
)

// Parse decodes one catalog file. It accepts a JSON array of documents or
// an object holding the array under "cars" or "documents".
func Parse(data []byte) ([]Document, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty catalog file")
	}

	if data[0] == '[' {
		var docs []Document
		if err := json.Unmarshal(data, &docs); err != nil {
			return nil, err
		}
		return docs, nil
	}

	var wrapper struct {
		Cars      []Document `json:"cars"`
		Documents []Document `json:"documents"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, err
	}
	if wrapper.Cars == nil && wrapper.Documents == nil {
		return nil, fmt.Errorf(`catalog object has no "cars" or "documents" array`)
	}
	return append(wrapper.Cars, wrapper.Documents...), nil
}

// LoadFile reads and parses a single catalog file.
func LoadFile(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	docs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return docs, nil
}

// LoadDir parses every *.json file in dir concurrently. Documents keep file
// name order, then in-file order. A file that cannot be read or parsed is
// logged and skipped; only a missing directory or a cancelled ctx fail.
func LoadDir(ctx context.Context, dir string) ([]Document, error) {
	files, err := ListFiles(dir)
	if err != nil {
		return nil, err
	}

	perFile := make([][]Document, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			docs, err := LoadFile(path)
			if err != nil {
				slog.Warn("catalog_file_skipped",
					slog.String("path", path),
					slog.String("error", err.Error()))
				return nil
			}
			perFile[i] = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Document
	for _, docs := range perFile {
		out = append(out, docs...)
	}
	slog.Debug("catalog_loaded",
		slog.String("dir", dir),
		slog.Int("files", len(files)),
		slog.Int("documents", len(out)))
	return out, nil
}

// ListFiles returns the sorted *.json files directly inside dir.
func ListFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeCatalogLoad,
			fmt.Sprintf("cannot read catalog directory %s", dir), err).
			WithSuggestion("set catalog.dir in .autoprice.yaml or pass --catalog")
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !IsCatalogFile(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// IsCatalogFile reports whether name looks like a catalog file.
func IsCatalogFile(name string) bool {
	base := filepath.Base(name)
	return strings.EqualFold(filepath.Ext(base), ".json") && !strings.HasPrefix(base, ".")
}
