package sink_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sttbatch/internal/config"
	"sttbatch/internal/services"
	"sttbatch/internal/sink"
)

func TestTranscriptName(t *testing.T) {
	cases := []struct {
		source, ext, want string
	}{
		{"a.mp3", ".txt", "a.txt"},
		{"my.song.mp3", ".txt", "my.song.txt"},
		{"talks/b.flac", "txt", "talks/b.txt"},
		{"noext", ".txt", "noext.txt"},
		{`win\c.wav`, ".md", "win/c.md"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, sink.TranscriptName(tc.source, tc.ext), tc.source)
	}
}

func TestOutputNamesKeepExtensionOnCollision(t *testing.T) {
	names := sink.OutputNames([]string{"a.mp3", "a.wav", "b.flac", "talks/c.ogg", "talks/C.opus", "a.mp3.wav"}, ".txt")
	assert.Equal(t, map[string]string{
		"a.mp3":        "a.mp3.txt",
		"a.wav":        "a.wav.txt",
		"b.flac":       "b.txt",
		"talks/c.ogg":  "talks/c.ogg.txt",
		"talks/C.opus": "talks/C.opus.txt",
		"a.mp3.wav":    "a.mp3.wav.txt",
	}, names)

	assert.Equal(t, map[string]string{"x.mp3": "x.txt"}, sink.OutputNames([]string{"x.mp3"}, "txt"))
	assert.Empty(t, sink.OutputNames(nil, ".txt"))
}

func TestFileSinkPlanSeparatesSameStemInputs(t *testing.T) {
	root := t.TempDir()
	s := sink.NewFile(root, ".txt")
	renamed := s.Plan([]string{"a.mp3", "a.wav", "b.mp3"})
	assert.Equal(t, map[string]string{"a.mp3": "a.mp3.txt", "a.wav": "a.wav.txt"}, renamed)

	ctx := context.Background()
	mp3, err := s.Write(ctx, "a.mp3", "one")
	require.NoError(t, err)
	wav, err := s.Write(ctx, "a.wav", "two")
	require.NoError(t, err)
	plain, err := s.Write(ctx, "b.mp3", "three")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "a.mp3.txt"), mp3)
	assert.Equal(t, filepath.Join(root, "a.wav.txt"), wav)
	assert.Equal(t, filepath.Join(root, "b.txt"), plain)
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestFileSinkWritesAndOverwrites(t *testing.T) {
	root := t.TempDir()
	s := sink.NewFile(root, ".txt")
	ctx := context.Background()

	location, err := s.Write(ctx, "talks/a.mp3", "hello")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "talks", "a.txt"), location)

	_, err = s.Write(ctx, "talks/a.mp3", "hello again")
	require.NoError(t, err)

	data, err := os.ReadFile(location)
	require.NoError(t, err)
	assert.Equal(t, "hello again", string(data))

	entries, err := os.ReadDir(filepath.Join(root, "talks"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
	require.NoError(t, s.Close())
}

func TestFileSinkReportsPersistenceError(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "blocked")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	s := sink.NewFile(blocker, ".txt")
	_, err := s.Write(context.Background(), "a.mp3", "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrPersistence)

	_, err = sink.NewFile(root, ".txt").Write(context.Background(), "../a.mp3", "x")
	assert.ErrorIs(t, err, services.ErrPersistence)
}

func TestSQLiteSinkUpserts(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "transcripts.db")
	s, err := sink.OpenSQLite(dbPath, ".txt")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ctx := services.WithJobID(context.Background(), "job-1")
	location, err := s.Write(ctx, "a.mp3", "hello")
	require.NoError(t, err)
	assert.Equal(t, dbPath+"#a.txt", location)

	ctx = services.WithJobID(context.Background(), "job-2")
	_, err = s.Write(ctx, "a.mp3", "hello again")
	require.NoError(t, err)

	rec, err := sink.SQLiteRecord(s, context.Background(), "a.mp3")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "hello again", rec.Transcript)
	assert.Equal(t, "job-2", rec.JobID)
	assert.Equal(t, "a.txt", rec.OutputName)
	assert.False(t, rec.WrittenAt.IsZero())

	n, err := sink.SQLiteCount(s, context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	missing, err := sink.SQLiteRecord(s, context.Background(), "b.mp3")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLiteSinkPlanKeepsOutputNamesUnique(t *testing.T) {
	s, err := sink.OpenSQLite(filepath.Join(t.TempDir(), "t.db"), ".txt")
	require.NoError(t, err)
	defer s.Close()

	s.Plan([]string{"a.mp3", "a.wav"})
	ctx := context.Background()
	_, err = s.Write(ctx, "a.mp3", "one")
	require.NoError(t, err)
	location, err := s.Write(ctx, "a.wav", "two")
	require.NoError(t, err)
	assert.Equal(t, s.Path()+"#a.wav.txt", location)

	rec, err := sink.SQLiteRecord(s, ctx, "a.mp3")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "a.mp3.txt", rec.OutputName)
}

func TestSQLiteSinkReopensExistingArchive(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "transcripts.db")
	first, err := sink.OpenSQLite(dbPath, ".txt")
	require.NoError(t, err)
	_, err = first.Write(context.Background(), "a.mp3", "hello")
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := sink.OpenSQLite(dbPath, ".txt")
	require.NoError(t, err)
	defer second.Close()
	n, err := sink.SQLiteCount(second, context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLiteSinkConcurrentWrites(t *testing.T) {
	s, err := sink.OpenSQLite(filepath.Join(t.TempDir(), "t.db"), ".txt")
	require.NoError(t, err)
	defer s.Close()

	var wg sync.WaitGroup
	for _, name := range []string{"a.mp3", "b.mp3", "c.mp3", "d.mp3", "e.mp3"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Write(context.Background(), name, "text "+name)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	n, err := sink.SQLiteCount(s, context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

type memoryBucket struct {
	objects map[string]string
	types   map[string]string
	err     error
}

func (m *memoryBucket) Put(_ context.Context, key string, body []byte, contentType string) error {
	if m.err != nil {
		return m.err
	}
	m.objects[key] = string(body)
	m.types[key] = contentType
	return nil
}

func (m *memoryBucket) Bucket() string { return "transcripts" }

func TestS3SinkUploadsUnderPrefix(t *testing.T) {
	bucket := &memoryBucket{objects: map[string]string{}, types: map[string]string{}}
	s := sink.NewS3(bucket, "out/", ".txt")

	location, err := s.Write(context.Background(), "sub/a.mp3", "hello")
	require.NoError(t, err)
	assert.Equal(t, "s3://transcripts/out/sub/a.txt", location)
	assert.Equal(t, "hello", bucket.objects["out/sub/a.txt"])
	assert.Equal(t, "text/plain; charset=utf-8", bucket.types["out/sub/a.txt"])

	bucket.err = errors.New("denied")
	_, err = s.Write(context.Background(), "b.mp3", "x")
	assert.ErrorIs(t, err, services.ErrPersistence)
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.OutputDir = t.TempDir()

	s, err := sink.FromConfig(&cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &sink.File{}, s)

	cfg.Sink.Kind = config.SinkSQLite
	cfg.Sink.SQLitePath = filepath.Join(t.TempDir(), "x.db")
	s, err = sink.FromConfig(&cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &sink.SQLite{}, s)
	require.NoError(t, s.Close())

	cfg.Sink.Kind = config.SinkS3
	_, err = sink.FromConfig(&cfg, nil)
	assert.Error(t, err)
}
