package source

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"sttbatch/internal/services"
)

// Directory lists files below a local root.
type Directory struct {
	root    string
	matcher Matcher
}

// NewDirectory returns a source rooted at root.
func NewDirectory(root string, matcher Matcher) *Directory {
	return &Directory{root: root, matcher: matcher}
}

// Root returns the directory being listed.
func (d *Directory) Root() string {
	return d.root
}

// List walks the root and returns matching regular files sorted by name.
func (d *Directory) List(ctx context.Context) ([]string, error) {
	info, err := os.Stat(d.root)
	if err != nil {
		return nil, services.Wrap(services.ErrSourceRead, component, "list", d.root, err)
	}
	if !info.IsDir() {
		return nil, services.Wrap(services.ErrSourceRead, component, "list", d.root, errors.New("not a directory"))
	}

	var names []string
	err = filepath.WalkDir(d.root, func(current string, entry fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			if current == d.root {
				return walkErr
			}
			// Unreadable subdirectories are skipped like unreadable files.
			if entry != nil && entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(d.root, current)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if entry.IsDir() {
			if rel != "." && d.matcher.SkipHidden && strings.HasPrefix(entry.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		if d.matcher.Match(rel) {
			names = append(names, rel)
		}
		return nil
	})
	if err != nil {
		return nil, services.Wrap(services.ErrSourceRead, component, "list", d.root, err)
	}
	sort.Strings(names)
	return names, nil
}

// Read returns the bytes of one listed file.
func (d *Directory) Read(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, services.Wrap(services.ErrSourceRead, component, "read", name, err)
	}
	if !fs.ValidPath(name) {
		return nil, services.Wrap(services.ErrSourceRead, component, "read", name, errors.New("invalid input name"))
	}
	data, err := os.ReadFile(filepath.Join(d.root, filepath.FromSlash(name)))
	if err != nil {
		return nil, services.Wrap(services.ErrSourceRead, component, "read", name, err)
	}
	return data, nil
}
