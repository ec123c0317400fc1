package objectstore

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects  map[string][]byte
	pageSize int
	putTypes map[string]string
	err      error
	listCall int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, putTypes: map[string]string{}, pageSize: 2}
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.listCall++
	if f.err != nil {
		return nil, f.err
	}
	keys := make([]string, 0, len(f.objects))
	for key := range f.objects {
		if strings.HasPrefix(key, aws.ToString(in.Prefix)) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	start := 0
	if token := aws.ToString(in.ContinuationToken); token != "" {
		for i, key := range keys {
			if key == token {
				start = i
				break
			}
		}
	}
	end := min(start+f.pageSize, len(keys))
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(keys))}
	for _, key := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(key)})
	}
	if end < len(keys) {
		out.NextContinuationToken = aws.String(keys[end])
	}
	return out, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("missing")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = data
	f.putTypes[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func TestListFollowsContinuationTokens(t *testing.T) {
	api := newFakeS3()
	for _, key := range []string{"in/a.mp3", "in/b.mp3", "in/c.wav", "in/sub/d.mp3", "other/e.mp3"} {
		api.objects[key] = []byte(key)
	}
	store := NewWithAPI(api, "audio")

	keys, err := store.List(context.Background(), "in/")
	require.NoError(t, err)
	assert.Equal(t, []string{"in/a.mp3", "in/b.mp3", "in/c.wav", "in/sub/d.mp3"}, keys)
	assert.Equal(t, 2, api.listCall)
}

func TestGetAndPut(t *testing.T) {
	api := newFakeS3()
	store := NewWithAPI(api, "audio")
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "out/a.txt", []byte("hello"), "text/plain; charset=utf-8"))
	assert.Equal(t, "text/plain; charset=utf-8", api.putTypes["out/a.txt"])

	data, err := store.Get(ctx, "out/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, "audio", store.Bucket())
}

func TestGetMissingKey(t *testing.T) {
	store := NewWithAPI(newFakeS3(), "audio")

	_, err := store.Get(context.Background(), "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrObjectNotFound)
	assert.Contains(t, err.Error(), "s3://audio/nope")
}

func TestErrorClassification(t *testing.T) {
	cases := map[string]error{
		"AccessDenied":       ErrAccessDenied,
		"SlowDown":           ErrThrottled,
		"InternalError":      ErrUnavailable,
		"NoSuchBucket":       ErrBucketNotFound,
		"SomethingUnrelated": nil,
	}
	for code, want := range cases {
		api := newFakeS3()
		api.err = &smithy.GenericAPIError{Code: code, Message: "boom"}
		store := NewWithAPI(api, "audio")

		_, err := store.List(context.Background(), "")
		require.Error(t, err, code)
		if want == nil {
			assert.Nil(t, classify(err), code)
			continue
		}
		assert.ErrorIs(t, err, want, code)
	}
}

func TestPing(t *testing.T) {
	api := newFakeS3()
	api.objects["a.mp3"] = []byte("x")
	store := NewWithAPI(api, "audio")
	require.NoError(t, store.Ping(context.Background()))
	assert.Equal(t, 1, api.listCall)

	api.err = &types.NoSuchBucket{Message: aws.String("gone")}
	err := store.Ping(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBucketNotFound)
}
