// Package upload publishes a report directory to S3-compatible storage.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ChuLiYu/murdock-reporter/internal/config"
	"github.com/ChuLiYu/murdock-reporter/internal/metrics"
)

// ErrNoEndpoint upload.endpoint 未設定
var ErrNoEndpoint = errors.New("upload: endpoint is required")

// ObjectStore is the subset of *minio.Client used here.
type ObjectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// NewClient connects to the endpoint configured in cfg.
func NewClient(cfg config.UploadConfig) (*minio.Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, ErrNoEndpoint
	}
	return minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
}

// Options configures an Uploader.
type Options struct {
	Bucket      string
	Region      string
	Prefix      string
	Concurrency int
	Metrics     *metrics.Collector
	Logger      zerolog.Logger
}

// Uploader copies files into one bucket.
type Uploader struct {
	store ObjectStore
	opts  Options
	log   zerolog.Logger
}

// Summary 上傳結果
type Summary struct {
	Files int
	Bytes int64
}

// New returns an Uploader writing through store.
func New(store ObjectStore, opts Options) *Uploader {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Bucket == "" {
		opts.Bucket = "murdock"
	}
	return &Uploader{
		store: store,
		opts:  opts,
		log:   opts.Logger.With().Str("component", "upload").Str("bucket", opts.Bucket).Logger(),
	}
}

// EnsureBucket creates the bucket when it does not exist yet.
func (u *Uploader) EnsureBucket(ctx context.Context) error {
	exists, err := u.store.BucketExists(ctx, u.opts.Bucket)
	if err != nil {
		return fmt.Errorf("upload: check bucket %s: %w", u.opts.Bucket, err)
	}
	if exists {
		return nil
	}
	if err := u.store.MakeBucket(ctx, u.opts.Bucket, minio.MakeBucketOptions{Region: u.opts.Region}); err != nil {
		return fmt.Errorf("upload: create bucket %s: %w", u.opts.Bucket, err)
	}
	u.log.Info().Msg("bucket created")
	return nil
}

// ObjectName maps a slash-separated relative path to its object key.
func (u *Uploader) ObjectName(rel string) string {
	if u.opts.Prefix == "" {
		return rel
	}
	return path.Join(strings.Trim(u.opts.Prefix, "/"), rel)
}

// UploadDir uploads every regular file below dir.
//
// The first failure cancels the remaining uploads.
func (u *Uploader) UploadDir(ctx context.Context, dir string) (Summary, error) {
	if err := u.EnsureBucket(ctx); err != nil {
		return Summary{}, err
	}

	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && !strings.HasSuffix(d.Name(), ".tmp") {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return Summary{}, fmt.Errorf("upload: walk %s: %w", dir, err)
	}

	var (
		uploaded atomic.Int64
		bytes    atomic.Int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.opts.Concurrency)
	for _, file := range files {
		file := file
		rel, err := filepath.Rel(dir, file)
		if err != nil {
			return Summary{}, fmt.Errorf("upload: %w", err)
		}
		object := u.ObjectName(filepath.ToSlash(rel))

		g.Go(func() error {
			info, err := u.store.FPutObject(gctx, u.opts.Bucket, object, file, minio.PutObjectOptions{
				ContentType: ContentType(file),
			})
			u.opts.Metrics.RecordUpload(err)
			if err != nil {
				return fmt.Errorf("upload: put %s: %w", object, err)
			}
			uploaded.Add(1)
			bytes.Add(info.Size)
			u.log.Debug().Str("object", object).Int64("size", info.Size).Msg("uploaded")
			return nil
		})
	}
	err = g.Wait()

	summary := Summary{Files: int(uploaded.Load()), Bytes: bytes.Load()}
	if err != nil {
		return summary, err
	}
	u.log.Info().Int("files", summary.Files).Int64("bytes", summary.Bytes).Msg("upload finished")
	return summary, nil
}

var contentTypes = map[string]string{
	".json": "application/json",
	".txt":  "text/plain; charset=utf-8",
	".svg":  "image/svg+xml",
	".html": "text/html; charset=utf-8",
}

// ContentType guesses the MIME type from the file extension.
func ContentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
