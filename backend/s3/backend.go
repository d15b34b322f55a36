// Package s3 provides an S3-compatible store for omnibatch.
//
// This store works with:
//   - AWS S3
//   - Cloudflare R2
//   - MinIO
//   - Any S3-compatible object storage
//
// Basic usage:
//
//	store, err := s3.New(s3.Config{
//	    Bucket: "training-data",
//	    Region: "us-east-1",
//	    Prefix: "imagenet/train",
//	})
//	sources, err := enumerate.ListStore(ctx, store, "", enumerate.Options{Pattern: "*.ndjson.gz"})
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/grokify/omnibatch"
)

func init() {
	omnibatch.Register("s3", NewFromConfig)
}

// Errors specific to the S3 store.
var (
	ErrBucketRequired = errors.New("s3: bucket is required")
)

// Client is the subset of the S3 API the store calls.
// *s3.Client satisfies it.
type Client interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// Store implements omnibatch.Store for S3-compatible storage.
type Store struct {
	client Client
	config Config
	closed bool
	mu     sync.RWMutex
}

// New creates a new S3 store with the given configuration.
func New(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var optFns []func(*config.LoadOptions) error

	if cfg.Region != "" {
		optFns = append(optFns, config.WithRegion(cfg.Region))
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		creds := credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			cfg.SessionToken,
		)
		optFns = append(optFns, config.WithCredentialsProvider(creds))
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), optFns...)
	if err != nil {
		return nil, fmt.Errorf("s3: loading AWS config: %w", err)
	}

	var s3OptFns []func(*s3.Options)

	if endpoint := cfg.endpointURL(); endpoint != "" {
		s3OptFns = append(s3OptFns, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}

	if cfg.UsePathStyle {
		s3OptFns = append(s3OptFns, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return NewWithClient(cfg, s3.NewFromConfig(awsCfg, s3OptFns...))
}

// NewWithClient creates a store over an existing client.
func NewWithClient(cfg Config, client Client) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Store{
		client: client,
		config: cfg,
	}, nil
}

// NewFromConfig creates a new S3 store from a config map.
// This is used by the omnibatch registry.
func NewFromConfig(configMap map[string]string) (omnibatch.Store, error) {
	cfg := ConfigFromMap(configMap)
	return New(cfg)
}

// NewReader streams the object stored under p.
func (s *Store) NewReader(ctx context.Context, p string, opts ...omnibatch.ReaderOption) (io.ReadCloser, error) {
	if err := s.checkClosed(); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := s.fullKey(p)
	cfg := omnibatch.ApplyReaderOptions(opts...)

	input := &s3.GetObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(key),
	}

	if cfg.Offset > 0 || cfg.Limit > 0 {
		var rangeHeader string
		if cfg.Limit > 0 {
			rangeHeader = fmt.Sprintf("bytes=%d-%d", cfg.Offset, cfg.Offset+cfg.Limit-1)
		} else {
			rangeHeader = fmt.Sprintf("bytes=%d-", cfg.Offset)
		}
		input.Range = aws.String(rangeHeader)
	}

	result, err := s.client.GetObject(ctx, input)
	if err != nil {
		return nil, s.translateError(err, p)
	}

	return result.Body, nil
}

// Exists checks if a path exists.
func (s *Store) Exists(ctx context.Context, p string) (bool, error) {
	if err := s.checkClosed(); err != nil {
		return false, err
	}

	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(s.fullKey(p)),
	})
	if err != nil {
		err = s.translateError(err, p)
		if omnibatch.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// List lists object keys with the given prefix, relative to the configured
// store prefix. Keys ending in "/" (directory markers) are skipped.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	if err := s.checkClosed(); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	paths := []string{}
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.config.Bucket),
		Prefix: aws.String(s.fullKey(prefix)),
	})

	for paginator.HasMorePages() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, s.translateError(err, prefix)
		}

		for _, obj := range page.Contents {
			if obj.Key == nil || strings.HasSuffix(*obj.Key, "/") {
				continue
			}
			relPath := strings.TrimPrefix(*obj.Key, s.config.Prefix)
			relPath = strings.TrimPrefix(relPath, "/")
			if relPath != "" {
				paths = append(paths, relPath)
			}
		}
	}

	return paths, nil
}

// Close releases any resources held by the store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

// Bucket returns the configured bucket name.
func (s *Store) Bucket() string {
	return s.config.Bucket
}

func (s *Store) fullKey(p string) string {
	p = strings.TrimPrefix(p, "/")
	if s.config.Prefix == "" {
		return p
	}
	if p == "" {
		return strings.TrimSuffix(s.config.Prefix, "/") + "/"
	}
	return path.Join(s.config.Prefix, p)
}

func (s *Store) checkClosed() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return omnibatch.ErrStoreClosed
	}
	return nil
}

// translateError converts S3 errors to omnibatch errors.
func (s *Store) translateError(err error, p string) error {
	if err == nil {
		return nil
	}

	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return fmt.Errorf("%w: %s", omnibatch.ErrNotFound, p)
	}

	var nf *types.NotFound
	if errors.As(err, &nf) {
		return fmt.Errorf("%w: %s", omnibatch.ErrNotFound, p)
	}

	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return fmt.Errorf("s3: bucket not found: %s", s.config.Bucket)
	}

	var apiErr interface{ ErrorCode() string }
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return fmt.Errorf("%w: %s", omnibatch.ErrNotFound, p)
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return fmt.Errorf("%w: %s", omnibatch.ErrPermissionDenied, p)
		}
	}

	return fmt.Errorf("s3: %w", err)
}

// Ensure Store implements omnibatch.Store
var _ omnibatch.Store = (*Store)(nil)
