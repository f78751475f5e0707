// Package storage reads purchase ledgers and archives reconciliation reports
// on local disk or S3-compatible object storage.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/erp/catalogsync/internal/infrastructure/config"
)

// ErrObjectNotFound is returned when a ledger object or file does not exist
var ErrObjectNotFound = errors.New("storage: object not found")

const (
	defaultEndpoint = "http://localhost:9000"
	defaultRegion   = "us-east-1"
	defaultLinkTTL  = 15 * time.Minute
)

// Bucket is the S3-compatible bucket (AWS S3, MinIO, RustFS) holding the
// purchase ledgers and the archived reports
type Bucket struct {
	client  *s3.Client
	presign *s3.PresignClient
	name    string
	linkTTL time.Duration
	log     *zap.Logger
}

// NewBucket creates a client for cfg.Bucket. Credentials come from cfg only.
func NewBucket(ctx context.Context, cfg *config.StorageConfig, log *zap.Logger) (*Bucket, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	var missing []error
	if cfg.Bucket == "" {
		missing = append(missing, errors.New("storage bucket is required"))
	}
	if cfg.AccessKey == "" {
		missing = append(missing, errors.New("storage access key is required"))
	}
	if cfg.SecretKey == "" {
		missing = append(missing, errors.New("storage secret key is required"))
	}
	if err := errors.Join(missing...); err != nil {
		return nil, err
	}

	endpoint, err := endpointURL(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}
	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 client config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = cfg.UsePathStyle
	})

	if log == nil {
		log = zap.NewNop()
	}
	ttl := cfg.PresignExpiration
	if ttl <= 0 {
		ttl = defaultLinkTTL
	}
	return &Bucket{
		client:  client,
		presign: s3.NewPresignClient(client),
		name:    cfg.Bucket,
		linkTTL: ttl,
		log:     log.With(zap.String("bucket", cfg.Bucket)),
	}, nil
}

// endpointURL adds the scheme an endpoint given as host:port lacks
func endpointURL(endpoint string, useSSL bool) (string, error) {
	switch {
	case endpoint == "":
		endpoint = defaultEndpoint
	case strings.Contains(endpoint, "://"):
	case useSSL:
		endpoint = "https://" + endpoint
	default:
		endpoint = "http://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid storage endpoint %q", endpoint)
	}
	return endpoint, nil
}

// Name returns the configured bucket
func (b *Bucket) Name() string {
	return b.name
}

// EnsureExists creates the bucket when it is missing
func (b *Bucket) EnsureExists(ctx context.Context) error {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.name)})
	if err == nil {
		return nil
	}
	if !isNotFound(err) {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	b.log.Info("Creating storage bucket")
	_, err = b.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(b.name)})
	var owned *types.BucketAlreadyOwnedByYou
	if err != nil && !errors.As(err, &owned) {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Get streams key from bucket, the configured bucket when bucket is empty.
// The caller closes the reader.
func (b *Bucket) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	if key == "" {
		return nil, errors.New("storage key is required")
	}
	if bucket == "" {
		bucket = b.name
	}
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: s3://%s/%s", ErrObjectNotFound, bucket, key)
		}
		return nil, fmt.Errorf("failed to get s3://%s/%s: %w", bucket, key, err)
	}
	b.log.Debug("Reading object",
		zap.String("key", key),
		zap.Int64("size", aws.ToInt64(out.ContentLength)),
	)
	return out.Body, nil
}

// Exists reports whether key is present in the configured bucket
func (b *Bucket) Exists(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, errors.New("storage key is required")
	}
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(b.name), Key: aws.String(key)})
	switch {
	case err == nil:
		return true, nil
	case isNotFound(err):
		return false, nil
	default:
		return false, fmt.Errorf("failed to check %s: %w", key, err)
	}
}

// Put stores data under key
func (b *Bucket) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if key == "" {
		return errors.New("storage key is required")
	}
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.name),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}
	b.log.Info("Object stored", zap.String("key", key), zap.Int("bytes", len(data)))
	return nil
}

// PresignGet returns a download link for key valid for ttl, or for the
// configured presign expiration when ttl is zero
func (b *Bucket) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, time.Time, error) {
	if key == "" {
		return "", time.Time{}, errors.New("storage key is required")
	}
	if ttl <= 0 {
		ttl = b.linkTTL
	}
	req, err := b.presign.PresignGetObject(ctx,
		&s3.GetObjectInput{Bucket: aws.String(b.name), Key: aws.String(key)},
		s3.WithPresignExpires(ttl),
	)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return req.URL, time.Now().Add(ttl), nil
}

// isNotFound matches the typed errors and the bare codes some S3-compatible
// services answer HEAD requests with
func isNotFound(err error) bool {
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
