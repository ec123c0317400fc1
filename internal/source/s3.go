package source

import (
	"context"
	"sort"
	"strings"

	"sttbatch/internal/services"
)

// S3 lists objects below a bucket prefix. Names exclude the prefix.
type S3 struct {
	store   ObjectReader
	prefix  string
	matcher Matcher
}

// NewS3 returns a source reading keys under prefix.
func NewS3(store ObjectReader, prefix string, matcher Matcher) *S3 {
	return &S3{store: store, prefix: prefix, matcher: matcher}
}

func (s *S3) List(ctx context.Context) ([]string, error) {
	keys, err := s.store.List(ctx, s.prefix)
	if err != nil {
		return nil, services.Wrap(services.ErrSourceRead, component, "list", s.prefix, err)
	}
	names := make([]string, 0, len(keys))
	for _, key := range keys {
		name := strings.TrimPrefix(key, s.prefix)
		// Folder placeholder objects end with a slash.
		if name == "" || strings.HasSuffix(name, "/") {
			continue
		}
		if s.matcher.Match(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *S3) Read(ctx context.Context, name string) ([]byte, error) {
	data, err := s.store.Get(ctx, s.prefix+name)
	if err != nil {
		return nil, services.Wrap(services.ErrSourceRead, component, "read", name, err)
	}
	return data, nil
}
