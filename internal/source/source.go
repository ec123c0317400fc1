package source

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"sttbatch/internal/config"
)

const component = "source"

// Source enumerates inputs and returns raw bytes per input name.
type Source interface {
	List(ctx context.Context) ([]string, error)
	Read(ctx context.Context, name string) ([]byte, error)
}

// ObjectReader is the object storage surface the s3 source needs.
type ObjectReader interface {
	List(ctx context.Context, prefix string) ([]string, error)
	Get(ctx context.Context, key string) ([]byte, error)
}

// Matcher decides which relative names are inputs.
type Matcher struct {
	Include    []string
	Exclude    []string
	SkipHidden bool
}

// Match reports whether name (slash separated, relative to the root) is
// selected. Matching ignores case so "*.mp3" also picks up "TALK.MP3".
func (m Matcher) Match(name string) bool {
	name = strings.TrimPrefix(path.Clean(name), "./")
	if name == "" || name == "." {
		return false
	}
	if m.SkipHidden && Hidden(name) {
		return false
	}
	lowered := strings.ToLower(name)
	if matchAny(m.Exclude, lowered) {
		return false
	}
	if len(m.Include) == 0 {
		return true
	}
	return matchAny(m.Include, lowered)
}

func matchAny(patterns []string, name string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(strings.ToLower(pattern), name); err == nil && ok {
			return true
		}
	}
	return false
}

// Hidden reports whether any segment of name starts with a dot.
func Hidden(name string) bool {
	for _, segment := range strings.Split(name, "/") {
		if strings.HasPrefix(segment, ".") && segment != "." && segment != ".." {
			return true
		}
	}
	return false
}

// FromConfig builds the configured source. store is required for the s3 kind.
func FromConfig(cfg *config.Config, store ObjectReader) (Source, error) {
	if cfg == nil {
		return nil, errors.New("source: config is required")
	}
	matcher := Matcher{
		Include:    cfg.Source.Include,
		Exclude:    cfg.Source.Exclude,
		SkipHidden: cfg.Source.SkipHidden,
	}
	switch cfg.Source.Kind {
	case config.SourceDir:
		return NewDirectory(cfg.Paths.InputDir, matcher), nil
	case config.SourceS3:
		if store == nil {
			return nil, errors.New("source: s3 source requires an object store")
		}
		return NewS3(store, cfg.S3.InputPrefix, matcher), nil
	default:
		return nil, fmt.Errorf("source: unsupported kind %q", cfg.Source.Kind)
	}
}
