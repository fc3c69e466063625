// Package discovery enumerates the test units under a directory tree.
package discovery

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mattn/go-zglob"
)

// TestUnit is a single executable test script.
type TestUnit struct {
	// Name is the path relative to the discovery root, slash separated,
	// with the extension stripped.
	Name string `json:"name"`
	// Path is the absolute path of the file.
	Path string `json:"path"`
}

// ErrRootNotFound is returned when the discovery root does not exist.
var ErrRootNotFound = errors.New("discovery root not found")

// Discover walks root recursively and returns every regular file matching
// pattern, sorted by path. A pattern without a slash is matched against the
// file's base name; otherwise it is matched against the slash separated
// path relative to root and may use "**". Directories listed in skip (for
// example the log directory) are not descended into. No match is not an
// error.
func Discover(root, pattern string, skip ...string) ([]TestUnit, error) {
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root %q: %w", root, err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRootNotFound, root)
		}

		return nil, fmt.Errorf("stat root %q: %w", root, err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("root %q is not a directory", root)
	}

	skipped := make(map[string]struct{}, len(skip))

	for _, dir := range skip {
		if dir == "" {
			continue
		}

		abs, err := filepath.Abs(dir)
		if err != nil {
			continue
		}

		skipped[abs] = struct{}{}
	}

	matchPath := strings.Contains(pattern, "/")
	units := make([]TestUnit, 0, 16)

	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if d.IsDir() {
			if _, ok := skipped[path]; ok && path != absRoot {
				return filepath.SkipDir
			}

			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return err
		}

		rel = filepath.ToSlash(rel)

		subject := d.Name()
		if matchPath {
			subject = rel
		}

		ok, err := zglob.Match(pattern, subject)
		if err != nil {
			return fmt.Errorf("matching %q: %w", rel, err)
		}

		if !ok {
			return nil
		}

		units = append(units, TestUnit{
			Name: strings.TrimSuffix(rel, filepath.Ext(rel)),
			Path: path,
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %q: %w", root, err)
	}

	sort.Slice(units, func(i, j int) bool {
		return units[i].Path < units[j].Path
	})

	return units, nil
}
