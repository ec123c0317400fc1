package sink

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"sttbatch/internal/services"
)

// File writes transcripts as text files under a root directory.
type File struct {
	root  string
	names namer
}

// NewFile returns a sink writing below root.
func NewFile(root, extension string) *File {
	return &File{root: root, names: namer{extension: extension}}
}

// Plan makes output names unique across sources.
func (f *File) Plan(sources []string) map[string]string {
	return f.names.plan(sources)
}

// Write replaces the transcript file atomically via a temp file and rename.
func (f *File) Write(ctx context.Context, sourceFile, transcript string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", services.Wrap(services.ErrPersistence, component, "write", sourceFile, err)
	}
	name := f.names.name(sourceFile)
	if !fs.ValidPath(name) {
		return "", services.Wrap(services.ErrPersistence, component, "write", sourceFile, errors.New("invalid transcript name"))
	}
	target := filepath.Join(f.root, filepath.FromSlash(name))
	if err := writeAtomic(target, []byte(transcript)); err != nil {
		return "", services.Wrap(services.ErrPersistence, component, "write", sourceFile, err)
	}
	return target, nil
}

// Close is a no-op.
func (f *File) Close() error {
	return nil
}

func writeAtomic(target string, data []byte) error {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return fmt.Errorf("rename transcript: %w", err)
	}
	return nil
}
