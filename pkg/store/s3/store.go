// Package s3 provides a DocumentStore for a workbook kept as an object in
// S3-compatible storage (AWS S3, MinIO). The object's ETag is the version
// token.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/hashicorp/go-hclog"

	"github.com/hashicorp-forge/sheetwatch/pkg/store"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Config contains configuration for the S3 store.
type Config struct {
	Endpoint  string // Custom endpoint for MinIO or other S3-compatible services
	Region    string
	Bucket    string
	Key       string
	AccessKey string
	SecretKey string

	// RequestTimeout bounds each API call (default: 30s).
	RequestTimeout time.Duration

	Logger hclog.Logger
}

// Validate validates the S3 configuration.
func (c *Config) Validate() error {
	if c.Region == "" {
		return fmt.Errorf("region is required")
	}
	if c.Bucket == "" {
		return fmt.Errorf("bucket is required")
	}
	if c.Key == "" {
		return fmt.Errorf("key is required")
	}
	return nil
}

// API is the subset of the S3 client used by the store.
type API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Store reads and writes one object.
type Store struct {
	api    API
	bucket string
	key    string
	logger hclog.Logger
}

var _ store.DocumentStore = (*Store)(nil)

// New creates an S3 store from configuration.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid S3 configuration: %w", err)
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
		config.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewWithAPI(client, cfg.Bucket, cfg.Key, cfg.Logger), nil
}

// NewWithAPI creates a store around an existing client.
func NewWithAPI(api API, bucket, key string, logger hclog.Logger) *Store {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Store{
		api:    api,
		bucket: bucket,
		key:    key,
		logger: logger.Named("s3-store"),
	}
}

// Describe implements store.Describer.
func (s *Store) Describe() string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, s.key)
}

// FetchMetadata returns the object's ETag.
func (s *Store) FetchMetadata(ctx context.Context) (store.VersionToken, error) {
	out, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return "", classify("head object", err)
	}
	return store.VersionToken(aws.ToString(out.ETag)), nil
}

// FetchContent downloads the object.
func (s *Store) FetchContent(ctx context.Context) ([]byte, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return nil, classify("get object", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, &store.TransientError{Op: "get object", Err: err}
	}
	return data, nil
}

// StoreContent uploads the object and returns its new ETag.
func (s *Store) StoreContent(ctx context.Context, data []byte) (store.VersionToken, error) {
	out, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(xlsxContentType),
	})
	if err != nil {
		return "", classify("put object", err)
	}
	return store.VersionToken(aws.ToString(out.ETag)), nil
}

var authErrorCodes = map[string]bool{
	"AccessDenied":          true,
	"InvalidAccessKeyId":    true,
	"SignatureDoesNotMatch": true,
	"ExpiredToken":          true,
	"InvalidToken":          true,
}

// classify maps SDK errors onto the store taxonomy.
func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && authErrorCodes[apiErr.ErrorCode()] {
		return &store.AuthenticationError{Op: op, Err: err}
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		status := respErr.HTTPStatusCode()
		switch {
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			return &store.AuthenticationError{Op: op, Err: err}
		case store.IsRetryableStatus(status):
			return &store.TransientError{Op: op, StatusCode: status, Err: err}
		case status == http.StatusPreconditionFailed || status == http.StatusConflict:
			return &store.ConflictError{}
		default:
			return fmt.Errorf("failed to %s: %w", op, err)
		}
	}

	// No HTTP response at all: DNS, connection reset, timeout.
	return &store.TransientError{Op: op, Err: err}
}
