package store

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config holds connection settings for an S3-compatible store.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Secure    bool
	Bucket    string
	Prefix    string
}

// S3Client writes records as objects into a bucket, one object per record.
type S3Client struct {
	client *minio.Client
	bucket string
	prefix string
}

func NewS3Client(cfg S3Config) (*S3Client, error) {
	endpoint := cleanEndpoint(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	return &S3Client{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

func (c *S3Client) Put(ctx context.Context, id string, payload []byte, metadata map[string]string) error {
	_, err := c.client.PutObject(ctx, c.bucket, c.objectKey(id), bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
		ContentType:  "application/json",
		UserMetadata: metadata,
	})
	if err != nil {
		return classifyS3Error("s3 put", err)
	}
	return nil
}

func (c *S3Client) objectKey(id string) string {
	if c.prefix == "" {
		return id + ".json"
	}
	return c.prefix + "/" + id + ".json"
}

func classifyS3Error(op string, err error) *Error {
	var kind Kind
	switch minio.ToErrorResponse(err).Code {
	case "SlowDown", "TooManyRequests":
		kind = KindRateLimited
	case "RequestTimeout":
		kind = KindTimeout
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		kind = KindAuth
	case "InvalidArgument", "EntityTooLarge", "KeyTooLongError", "NoSuchBucket":
		kind = KindValidation
	default:
		kind = KindOf(err)
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// cleanEndpoint strips the URL scheme; the SDK wants a bare host:port.
func cleanEndpoint(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	endpoint = strings.TrimPrefix(endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")
	return strings.TrimRight(endpoint, "/")
}
