package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/noah-isme/ukm-attendance-api/pkg/config"
)

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Bucket stores objects in an S3 bucket that is publicly readable.
type S3Bucket struct {
	client  s3API
	bucket  string
	baseURL string
}

// NewS3Bucket loads AWS credentials from the default chain.
func NewS3Bucket(ctx context.Context, cfg config.S3Config) (*S3Bucket, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	awsConfig, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewS3BucketWithClient(s3.NewFromConfig(awsConfig), cfg), nil
}

// NewS3BucketWithClient is used by tests to inject a fake client.
func NewS3BucketWithClient(client s3API, cfg config.S3Config) *S3Bucket {
	baseURL := strings.TrimRight(cfg.PublicBaseURL, "/")
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
	return &S3Bucket{client: client, bucket: cfg.Bucket, baseURL: baseURL}
}

// Upload puts data at key.
func (b *S3Bucket) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return key, nil
}

// PublicURL returns the bucket URL for reference.
func (b *S3Bucket) PublicURL(_ context.Context, reference string) (string, error) {
	if reference == "" {
		return "", fmt.Errorf("reference required")
	}
	return b.baseURL + "/" + strings.TrimLeft(reference, "/"), nil
}

// Delete removes the object behind reference.
func (b *S3Bucket) Delete(ctx context.Context, reference string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(reference),
	})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", reference, err)
	}
	return nil
}
