package sink

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"path"
	"strings"
	"sync"

	"sttbatch/internal/config"
)

const component = "sink"

// Sink writes one transcript and returns where it landed.
type Sink interface {
	Write(ctx context.Context, sourceFile, transcript string) (string, error)
	Close() error
}

// ObjectWriter is the object storage surface the s3 sink needs.
type ObjectWriter interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Bucket() string
}

// Planner is implemented by sinks that derive output names from source
// names. Plan sees the whole batch before any write and returns the sources
// whose output name had to change to stay unique.
type Planner interface {
	Plan(sources []string) map[string]string
}

var (
	_ Planner = (*File)(nil)
	_ Planner = (*S3)(nil)
	_ Planner = (*SQLite)(nil)
)

// TranscriptName maps a slash-separated source name to its transcript name:
// "talks/my.song.mp3" with ".txt" becomes "talks/my.song.txt".
func TranscriptName(sourceFile, extension string) string {
	name := cleanSource(sourceFile)
	if ext := path.Ext(name); ext != "" && ext != path.Base(name) {
		name = strings.TrimSuffix(name, ext)
	}
	return name + normalizeExtension(extension)
}

// OutputNames assigns every source a transcript name. Sources whose names
// collide, compared case-insensitively, keep their audio extension instead:
// "a.mp3" and "a.wav" become "a.mp3.txt" and "a.wav.txt".
func OutputNames(sources []string, extension string) map[string]string {
	names := make(map[string]string, len(sources))
	for _, source := range sources {
		names[source] = TranscriptName(source, extension)
	}
	for {
		groups := make(map[string][]string)
		for source, name := range names {
			key := strings.ToLower(name)
			groups[key] = append(groups[key], source)
		}
		changed := false
		for _, members := range groups {
			if len(members) < 2 {
				continue
			}
			for _, source := range members {
				if full := cleanSource(source) + normalizeExtension(extension); names[source] != full {
					names[source] = full
					changed = true
				}
			}
		}
		if !changed {
			return names
		}
	}
}

func cleanSource(sourceFile string) string {
	return strings.TrimPrefix(path.Clean(strings.ReplaceAll(sourceFile, "\\", "/")), "/")
}

func normalizeExtension(extension string) string {
	extension = strings.TrimSpace(extension)
	if extension != "" && !strings.HasPrefix(extension, ".") {
		extension = "." + extension
	}
	return extension
}

// namer resolves output names, honouring the renames made by the last Plan.
type namer struct {
	extension string

	mu      sync.RWMutex
	renamed map[string]string
}

func (n *namer) name(sourceFile string) string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if name, ok := n.renamed[sourceFile]; ok {
		return name
	}
	return TranscriptName(sourceFile, n.extension)
}

func (n *namer) plan(sources []string) map[string]string {
	renamed := make(map[string]string)
	for source, name := range OutputNames(sources, n.extension) {
		if name != TranscriptName(source, n.extension) {
			renamed[source] = name
		}
	}
	n.mu.Lock()
	n.renamed = renamed
	n.mu.Unlock()
	return maps.Clone(renamed)
}

// FromConfig opens the configured sink. store is required for the s3 kind.
func FromConfig(cfg *config.Config, store ObjectWriter) (Sink, error) {
	if cfg == nil {
		return nil, errors.New("sink: config is required")
	}
	switch cfg.Sink.Kind {
	case config.SinkFile:
		return NewFile(cfg.Paths.OutputDir, cfg.Sink.Extension), nil
	case config.SinkSQLite:
		return OpenSQLite(cfg.Sink.SQLitePath, cfg.Sink.Extension)
	case config.SinkS3:
		if store == nil {
			return nil, errors.New("sink: s3 sink requires an object store")
		}
		return NewS3(store, cfg.S3.OutputPrefix, cfg.Sink.Extension), nil
	default:
		return nil, fmt.Errorf("sink: unsupported kind %q", cfg.Sink.Kind)
	}
}
