package upload

import (
	"context"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/ethpandaops/gatewaybench/pkg/config"
	"github.com/sirupsen/logrus"
)

const (
	defaultRegion = "us-east-1"
	defaultPrefix = "gatewaybench"
	markerKey     = ".gatewaybench-write-test"
)

type s3Uploader struct {
	log    logrus.FieldLogger
	cfg    *config.S3UploadConfig
	client *s3.Client
}

var _ Uploader = (*s3Uploader)(nil)

// NewS3Uploader creates an uploader for S3-compatible storage.
func NewS3Uploader(log logrus.FieldLogger, cfg *config.S3UploadConfig) (Uploader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("results_upload.s3.bucket is required")
	}

	return &s3Uploader{
		log:    log.WithField("component", "s3-uploader"),
		cfg:    cfg,
		client: newS3Client(cfg),
	}, nil
}

func newS3Client(cfg *config.S3UploadConfig) *s3.Client {
	return s3.New(s3.Options{}, func(o *s3.Options) {
		o.Region = defaultRegion
		if cfg.Region != "" {
			o.Region = cfg.Region
		}

		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
		}

		o.UsePathStyle = cfg.ForcePathStyle

		if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
			o.Credentials = credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID, cfg.SecretAccessKey, "",
			)
		}
	})
}

// Preflight implements Uploader.
func (u *s3Uploader) Preflight(ctx context.Context) error {
	content := fmt.Sprintf("gatewaybench write test: %s", time.Now().UTC().Format(time.RFC3339))

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.cfg.Bucket),
		Key:         aws.String(u.key(markerKey)),
		Body:        strings.NewReader(content),
		ContentType: aws.String("text/plain"),
	})
	if err != nil {
		return fmt.Errorf("writing test object to s3://%s: %w", u.cfg.Bucket, err)
	}

	return nil
}

// Upload implements Uploader.
func (u *s3Uploader) Upload(ctx context.Context, localDir, category, name string) (string, error) {
	info, err := os.Stat(localDir)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", localDir, err)
	}

	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", localDir)
	}

	if name == "" {
		name = filepath.Base(localDir)
	}

	prefix := u.key(category, name)

	var count int

	err = filepath.WalkDir(localDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(localDir, p)
		if err != nil {
			return fmt.Errorf("computing relative path: %w", err)
		}

		if err := u.uploadFile(ctx, p, prefix+"/"+filepath.ToSlash(rel)); err != nil {
			return fmt.Errorf("uploading %s: %w", rel, err)
		}

		count++

		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walking directory %s: %w", localDir, err)
	}

	u.log.WithFields(logrus.Fields{
		"files":  count,
		"bucket": u.cfg.Bucket,
		"prefix": prefix,
	}).Info("Upload completed")

	return prefix, nil
}

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

// key joins parts under the configured prefix.
func (u *s3Uploader) key(parts ...string) string {
	prefix := strings.Trim(u.cfg.Prefix, "/")
	if prefix == "" {
		prefix = defaultPrefix
	}

	return path.Join(append([]string{prefix}, parts...)...)
}

// detectContentType returns a MIME type based on file extension. Unit logs
// are served as plain text.
func detectContentType(p string) string {
	ext := filepath.Ext(p)

	switch ext {
	case "":
		return "application/octet-stream"
	case ".log":
		return "text/plain; charset=utf-8"
	case ".md":
		return "text/markdown; charset=utf-8"
	}

	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}

	return "application/octet-stream"
}
