package persist

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of *s3.Client used by S3Backend.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Backend stores each snapshot as one JSON object under prefix+key.
//
// Example usage:
//
//	cfg, _ := config.LoadDefaultConfig(ctx)
//	backend := persist.NewS3Backend(s3.NewFromConfig(cfg), "my-bucket", "redux/")
type S3Backend struct {
	client S3API
	bucket string
	prefix string
}

func NewS3Backend(client S3API, bucket, prefix string) *S3Backend {
	return &S3Backend{client: client, bucket: bucket, prefix: prefix}
}

func (b *S3Backend) objectKey(key string) string {
	return b.prefix + strings.TrimPrefix(key, "/")
}

func (b *S3Backend) Load(ctx context.Context, key string) ([]byte, bool, error) {
	if key == "" {
		return nil, false, ErrEmptyKey
	}
	if b.client == nil {
		return nil, false, ErrNilBackend
	}
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey(key)),
	})
	if err != nil {
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("persist: s3 get %q: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, false, fmt.Errorf("persist: s3 read %q: %w", key, err)
	}
	return data, true, nil
}

func (b *S3Backend) Save(ctx context.Context, key string, data []byte) error {
	if key == "" {
		return ErrEmptyKey
	}
	if b.client == nil {
		return ErrNilBackend
	}
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(b.objectKey(key)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"saved-at": time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return fmt.Errorf("persist: s3 put %q: %w", key, err)
	}
	return nil
}
