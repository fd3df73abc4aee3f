// Package storage keeps service artifacts in S3-compatible object storage or
// on the local filesystem.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	registryapp "github.com/faasbill/backend/internal/application/registry"
	infraconfig "github.com/faasbill/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

var _ registryapp.ObjectStorage = (*S3ObjectStorage)(nil)

var errKeyRequired = errors.New("storage key is required")

const (
	defaultS3Endpoint = "http://localhost:9000"
	defaultS3Region   = "us-east-1"
	defaultPresignTTL = 15 * time.Minute
)

// S3ObjectStorage keeps artifacts in one bucket of AWS S3 or a compatible
// server such as MinIO.
type S3ObjectStorage struct {
	client     *s3.Client
	presigner  *s3.PresignClient
	bucket     string
	presignTTL time.Duration
	spoolDir   string
	logger     *zap.Logger
}

// S3ObjectStorageOption configures an S3ObjectStorage
type S3ObjectStorageOption func(*S3ObjectStorage)

func WithLogger(logger *zap.Logger) S3ObjectStorageOption {
	return func(s *S3ObjectStorage) { s.logger = logger }
}

// WithPresignExpiration overrides the default lifetime of download URLs
func WithPresignExpiration(d time.Duration) S3ObjectStorageOption {
	return func(s *S3ObjectStorage) { s.presignTTL = d }
}

// WithSpoolDir sets where uploads are buffered; empty means os.TempDir
func WithSpoolDir(dir string) S3ObjectStorageOption {
	return func(s *S3ObjectStorage) { s.spoolDir = dir }
}

// NewS3ObjectStorage builds a client from cfg with static credentials. No
// request is made; call EnsureBucket to verify connectivity.
func NewS3ObjectStorage(cfg *infraconfig.StorageConfig, opts ...S3ObjectStorageOption) (*S3ObjectStorage, error) {
	if err := checkS3Config(cfg); err != nil {
		return nil, err
	}
	endpoint, err := s3Endpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}
	region := cfg.Region
	if region == "" {
		region = defaultS3Region
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = cfg.UsePathStyle
	})

	s := &S3ObjectStorage{
		client:     client,
		presigner:  s3.NewPresignClient(client),
		bucket:     cfg.Bucket,
		presignTTL: cfg.PresignExpiration,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.presignTTL <= 0 {
		s.presignTTL = defaultPresignTTL
	}
	return s, nil
}

func checkS3Config(cfg *infraconfig.StorageConfig) error {
	switch {
	case cfg == nil:
		return errors.New("storage configuration is required")
	case cfg.Bucket == "":
		return errors.New("storage bucket is required")
	case cfg.AccessKey == "":
		return errors.New("storage access key is required")
	case cfg.SecretKey == "":
		return errors.New("storage secret key is required")
	}
	return nil
}

// s3Endpoint adds a scheme to bare host:port endpoints
func s3Endpoint(raw string, useSSL bool) (string, error) {
	if raw == "" {
		return defaultS3Endpoint, nil
	}
	if !strings.Contains(raw, "://") {
		scheme := "http://"
		if useSSL {
			scheme = "https://"
		}
		raw = scheme + raw
	}
	if _, err := url.Parse(raw); err != nil {
		return "", fmt.Errorf("invalid storage endpoint: %w", err)
	}
	return raw, nil
}

// isMissing reports whether err means the bucket or key does not exist.
// Some S3-compatible servers only say so in the error text.
func isMissing(err error) bool {
	var (
		notFound     *types.NotFound
		noSuchKey    *types.NoSuchKey
		noSuchBucket *types.NoSuchBucket
	)
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) || errors.As(err, &noSuchBucket) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "NotFound") || strings.Contains(msg, "NoSuchKey")
}

// EnsureBucket creates the bucket when it does not exist yet
func (s *S3ObjectStorage) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}
	if !isMissing(err) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	var owned *types.BucketAlreadyOwnedByYou
	if err != nil && !errors.As(err, &owned) {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	s.logger.Info("Artifact bucket created", zap.String("bucket", s.bucket))
	return nil
}

// Put uploads body to key. The body is spooled to a temporary file so the
// SDK gets a seekable payload it can sign and retry; size is advisory.
func (s *S3ObjectStorage) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	if key == "" {
		return errKeyRequired
	}
	spool, n, err := s.spool(body)
	if err != nil {
		return err
	}
	defer func() {
		_ = spool.Close()
		_ = os.Remove(spool.Name())
	}()

	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          spool,
		ContentLength: aws.Int64(n),
		ContentType:   aws.String(contentType),
	}); err != nil {
		return fmt.Errorf("failed to upload object: %w", err)
	}
	if size > 0 && size != n {
		s.logger.Warn("Artifact size differs from declared size",
			zap.String("key", key), zap.Int64("bytes", n), zap.Int64("declared_bytes", size))
	}
	return nil
}

func (s *S3ObjectStorage) spool(body io.Reader) (*os.File, int64, error) {
	f, err := os.CreateTemp(s.spoolDir, "artifact-*")
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create upload spool: %w", err)
	}
	n, err := io.Copy(f, body)
	if err == nil {
		_, err = f.Seek(0, io.SeekStart)
	}
	if err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return nil, 0, fmt.Errorf("failed to buffer upload body: %w", err)
	}
	return f, n, nil
}

// DownloadURL presigns a GET for key. A non-positive expiry uses the
// configured default.
func (s *S3ObjectStorage) DownloadURL(ctx context.Context, key string, expiresIn time.Duration) (string, error) {
	if key == "" {
		return "", errKeyRequired
	}
	if expiresIn <= 0 {
		expiresIn = s.presignTTL
	}
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiresIn))
	if err != nil {
		return "", fmt.Errorf("failed to generate download URL: %w", err)
	}
	return req.URL, nil
}

// Delete removes key; S3 treats a missing key as success
func (s *S3ObjectStorage) Delete(ctx context.Context, key string) error {
	if key == "" {
		return errKeyRequired
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// Exists reports whether key is present
func (s *S3ObjectStorage) Exists(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, errKeyRequired
	}
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	switch {
	case err == nil:
		return true, nil
	case isMissing(err):
		return false, nil
	}
	return false, fmt.Errorf("failed to check object existence: %w", err)
}

func (s *S3ObjectStorage) Bucket() string { return s.bucket }
