package cloud

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"
)

// S3API is the slice of the S3 API the bucket store needs.
type S3API interface {
	s3.ListObjectsV2APIClient
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// BucketStore manages the shared test bucket: fluent configs go in before a
// run, result archives after it, and everything is deleted at teardown.
type BucketStore struct {
	api    S3API
	bucket string
	logger *zap.Logger
}

// NewBucketStore wraps the test bucket.
func NewBucketStore(api S3API, bucket string, logger *zap.Logger) *BucketStore {
	return &BucketStore{api: api, bucket: bucket, logger: logger}
}

// PublishFluentConfig uploads one logger's extra Fluent Bit config and
// returns the object ARN the firelens container pulls it by.
func (b *BucketStore) PublishFluentConfig(ctx context.Context, localPath, key string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open fluent config: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := b.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   f,
	}); err != nil {
		return "", fmt.Errorf("upload fluent config %s: %w", key, err)
	}

	b.logger.Info("published fluent config",
		zap.String("bucket", b.bucket), zap.String("key", key))
	return fmt.Sprintf("arn:aws:s3:::%s/%s", b.bucket, key), nil
}

// Empty deletes every object in the bucket. The bucket name is reused
// between runs, so leftovers would pollute the next validation.
func (b *BucketStore) Empty(ctx context.Context) error {
	paginator := s3.NewListObjectsV2Paginator(b.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
	})

	deleted := 0
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("list bucket %s: %w", b.bucket, err)
		}
		if len(page.Contents) == 0 {
			continue
		}

		objects := make([]types.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			objects = append(objects, types.ObjectIdentifier{Key: obj.Key})
		}
		if _, err := b.api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(b.bucket),
			Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
		}); err != nil {
			return fmt.Errorf("delete objects in %s: %w", b.bucket, err)
		}
		deleted += len(objects)
	}

	b.logger.Info("emptied bucket",
		zap.String("bucket", b.bucket), zap.Int("objects", deleted))
	return nil
}

// ArchiveResults gzips a run summary and stores it alongside the test data
// for later inspection.
func (b *BucketStore) ArchiveResults(ctx context.Context, key string, data []byte) error {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		return fmt.Errorf("compress results: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("compress results: %w", err)
	}

	if _, err := b.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(b.bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(buf.Bytes()),
		ContentType:     aws.String("application/json"),
		ContentEncoding: aws.String("gzip"),
	}); err != nil {
		return fmt.Errorf("upload results archive %s: %w", key, err)
	}

	b.logger.Info("archived run results",
		zap.String("bucket", b.bucket), zap.String("key", key), zap.Int("raw_bytes", len(data)))
	return nil
}
