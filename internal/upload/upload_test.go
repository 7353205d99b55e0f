package upload

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChuLiYu/murdock-reporter/internal/config"
)

type putCall struct {
	bucket      string
	object      string
	contentType string
}

type fakeStore struct {
	mu        sync.Mutex
	buckets   map[string]bool
	puts      []putCall
	failOn    string
	existsErr error
}

func newFakeStore() *fakeStore { return &fakeStore{buckets: make(map[string]bool)} }

func (f *fakeStore) BucketExists(_ context.Context, bucket string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buckets[bucket], f.existsErr
}

func (f *fakeStore) MakeBucket(_ context.Context, bucket string, _ minio.MakeBucketOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buckets[bucket] = true
	return nil
}

func (f *fakeStore) FPutObject(_ context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if object == f.failOn {
		return minio.UploadInfo{}, errors.New("access denied")
	}
	st, err := os.Stat(filePath)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts = append(f.puts, putCall{bucket: bucket, object: object, contentType: opts.ContentType})
	return minio.UploadInfo{Bucket: bucket, Key: object, Size: st.Size()}, nil
}

func (f *fakeStore) objects() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.puts))
	for i, p := range f.puts {
		out[i] = p.object
	}
	sort.Strings(out)
	return out
}

func writeTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"builds.json":                        "[]",
		"badge.svg":                          "<svg/>",
		"output/builds/hello/native:gnu.txt": "ok",
		"output/builds/hello/app.json":       "{}",
		"stats.json.tmp":                     "partial",
	}
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return dir
}

func TestUploadDir(t *testing.T) {
	store := newFakeStore()
	u := New(store, Options{Bucket: "ci", Prefix: "/pr/42/", Concurrency: 2, Logger: zerolog.Nop()})

	summary, err := u.UploadDir(context.Background(), writeTree(t))
	require.NoError(t, err)

	assert.True(t, store.buckets["ci"], "bucket is created")
	assert.Equal(t, 4, summary.Files)
	assert.Equal(t, int64(2+6+2+2), summary.Bytes)
	assert.Equal(t, []string{
		"pr/42/badge.svg",
		"pr/42/builds.json",
		"pr/42/output/builds/hello/app.json",
		"pr/42/output/builds/hello/native:gnu.txt",
	}, store.objects())

	for _, p := range store.puts {
		assert.Equal(t, "ci", p.bucket)
		if p.object == "pr/42/badge.svg" {
			assert.Equal(t, "image/svg+xml", p.contentType)
		}
	}
}

func TestUploadDirFailure(t *testing.T) {
	store := newFakeStore()
	store.failOn = "builds.json"
	u := New(store, Options{Bucket: "ci", Concurrency: 1, Logger: zerolog.Nop()})

	_, err := u.UploadDir(context.Background(), writeTree(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "builds.json")
}

func TestEnsureBucketError(t *testing.T) {
	store := newFakeStore()
	store.existsErr = errors.New("unreachable")
	u := New(store, Options{Logger: zerolog.Nop()})
	assert.Error(t, u.EnsureBucket(context.Background()))
}

func TestObjectName(t *testing.T) {
	assert.Equal(t, "a/b.json", New(newFakeStore(), Options{}).ObjectName("a/b.json"))
	assert.Equal(t, "runs/7/a/b.json", New(newFakeStore(), Options{Prefix: "runs/7"}).ObjectName("a/b.json"))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/json", ContentType("stats.json"))
	assert.Equal(t, "text/plain; charset=utf-8", ContentType("x/board:gnu.txt"))
	assert.Equal(t, "image/svg+xml", ContentType("badge.SVG"))
	assert.Equal(t, "application/octet-stream", ContentType("blob.unknownext"))
}

func TestNewClientRequiresEndpoint(t *testing.T) {
	_, err := NewClient(config.UploadConfig{})
	assert.ErrorIs(t, err, ErrNoEndpoint)

	c, err := NewClient(config.UploadConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"})
	require.NoError(t, err)
	assert.NotNil(t, c)
}
