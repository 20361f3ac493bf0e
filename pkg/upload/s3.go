package upload

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/ethpandaops/pgbenchoor/pkg/config"
	"github.com/ethpandaops/pgbenchoor/pkg/reporter"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultPrefix is used when no prefix is configured.
const DefaultPrefix = "results"

// s3Uploader implements Uploader for S3-compatible storage.
type s3Uploader struct {
	log    logrus.FieldLogger
	cfg    *config.S3UploadConfig
	client *s3.Client
	reader *S3Reader
}

// Ensure interface compliance.
var _ Uploader = (*s3Uploader)(nil)

// NewS3Uploader creates a new S3 uploader from the given configuration.
func NewS3Uploader(
	log logrus.FieldLogger,
	cfg *config.S3UploadConfig,
) (Uploader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	client := newS3Client(cfg)

	return &s3Uploader{
		log:    log.WithField("component", "s3-uploader"),
		cfg:    cfg,
		client: client,
		reader: &S3Reader{
			log:    log.WithField("component", "s3-reader"),
			cfg:    cfg,
			client: client,
		},
	}, nil
}

func newS3Client(cfg *config.S3UploadConfig) *s3.Client {
	return s3.New(s3.Options{}, func(o *s3.Options) {
		if cfg.Region != "" {
			o.Region = cfg.Region
		} else {
			o.Region = "us-east-1"
		}

		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			// Many S3-compatible servers reject the default request checksums.
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		}

		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}

		if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
			o.Credentials = credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID, cfg.SecretAccessKey, "",
			)
		}
	})
}

// Preflight verifies S3 connectivity by writing a small test object.
func (u *s3Uploader) Preflight(ctx context.Context) error {
	content := fmt.Sprintf("pgbenchoor write test: %s", time.Now().UTC().Format(time.RFC3339))

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.cfg.Bucket),
		Key:         aws.String(".pgbenchoor-write-test"),
		Body:        strings.NewReader(content),
		ContentType: aws.String("text/plain"),
	})
	if err != nil {
		return fmt.Errorf("writing test object to s3://%s: %w", u.cfg.Bucket, err)
	}

	return nil
}

// Upload walks localDir and uploads all files to S3 under the configured
// prefix, up to cfg.Parallelism at a time.
func (u *s3Uploader) Upload(ctx context.Context, localDir string) error {
	prefix := u.resolvePrefix(filepath.Base(localDir))

	files, err := collectFiles(localDir)
	if err != nil {
		return fmt.Errorf("walking directory %s: %w", localDir, err)
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(max(u.cfg.Parallelism, 1))

	var uploaded atomic.Int64

	for _, relPath := range files {
		g.Go(func() error {
			key := prefix + "/" + filepath.ToSlash(relPath)

			if err := u.uploadFile(gCtx, filepath.Join(localDir, relPath), key); err != nil {
				return fmt.Errorf("uploading %s: %w", relPath, err)
			}

			uploaded.Add(1)

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	u.log.WithFields(logrus.Fields{
		"files":  uploaded.Load(),
		"bucket": u.cfg.Bucket,
		"prefix": prefix,
	}).Info("Upload completed")

	return nil
}

// UploadIndex merges the local index into the remote one. Entries present
// in both are taken from the local index.
func (u *s3Uploader) UploadIndex(ctx context.Context, index *reporter.Index) error {
	key := u.indexKey()

	data, err := u.reader.GetObject(ctx, key)
	if err != nil {
		return err
	}

	remote := &reporter.Index{}
	if data != nil {
		if err := json.Unmarshal(data, remote); err != nil {
			u.log.WithError(err).Warn("Remote index is unreadable, replacing it")

			remote = &reporter.Index{}
		}
	}

	merged, err := json.MarshalIndent(MergeIndex(remote, index), "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling index: %w", err)
	}

	if err := u.reader.PutObject(ctx, key, merged, "application/json"); err != nil {
		return err
	}

	u.log.WithFields(logrus.Fields{
		"key":     key,
		"entries": len(index.Entries),
	}).Info("Index uploaded")

	return nil
}

// RemoteRuns implements Uploader.
func (u *s3Uploader) RemoteRuns(ctx context.Context) ([]string, error) {
	return u.reader.ListRuns(ctx, u.basePrefix()+"/runs/")
}

// uploadFile uploads a single file to S3.
func (u *s3Uploader) uploadFile(ctx context.Context, localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer func() { _ = f.Close() }()

	input := &s3.PutObjectInput{
		Bucket:      aws.String(u.cfg.Bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(detectContentType(localPath)),
	}

	if u.cfg.StorageClass != "" {
		input.StorageClass = s3types.StorageClass(u.cfg.StorageClass)
	}

	if u.cfg.ACL != "" {
		input.ACL = s3types.ObjectCannedACL(u.cfg.ACL)
	}

	u.log.WithFields(logrus.Fields{
		"key":    key,
		"bucket": u.cfg.Bucket,
	}).Debug("Uploading file")

	if _, err := u.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("PutObject: %w", err)
	}

	return nil
}

func (u *s3Uploader) basePrefix() string {
	prefix := u.cfg.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}

	return strings.TrimRight(prefix, "/")
}

// resolvePrefix builds the S3 key prefix for a run directory.
func (u *s3Uploader) resolvePrefix(baseName string) string {
	return u.basePrefix() + "/runs/" + baseName
}

func (u *s3Uploader) indexKey() string {
	return u.basePrefix() + "/runs/" + reporter.IndexFile
}

// collectFiles returns the regular files below dir relative to it.
func collectFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(dir, path)
		if err != nil {
			return fmt.Errorf("computing relative path: %w", err)
		}

		files = append(files, relPath)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

// detectContentType returns a MIME type based on file extension.
func detectContentType(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return "application/octet-stream"
	}

	ct := mime.TypeByExtension(ext)
	if ct == "" {
		return "application/octet-stream"
	}

	return ct
}
