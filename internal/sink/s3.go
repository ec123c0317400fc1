package sink

import (
	"context"
	"fmt"

	"sttbatch/internal/services"
)

const transcriptContentType = "text/plain; charset=utf-8"

// S3 uploads transcripts below a bucket prefix.
type S3 struct {
	store  ObjectWriter
	prefix string
	names  namer
}

// NewS3 returns a sink writing keys under prefix.
func NewS3(store ObjectWriter, prefix, extension string) *S3 {
	return &S3{store: store, prefix: prefix, names: namer{extension: extension}}
}

func (s *S3) Plan(sources []string) map[string]string {
	return s.names.plan(sources)
}

func (s *S3) Write(ctx context.Context, sourceFile, transcript string) (string, error) {
	key := s.prefix + s.names.name(sourceFile)
	if err := s.store.Put(ctx, key, []byte(transcript), transcriptContentType); err != nil {
		return "", services.Wrap(services.ErrPersistence, component, "upload", sourceFile, err)
	}
	return fmt.Sprintf("s3://%s/%s", s.store.Bucket(), key), nil
}

func (s *S3) Close() error {
	return nil
}
