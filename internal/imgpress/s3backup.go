package imgpress

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/vgoulart/imgpress/internal/logger"
)

// OriginalBackup uploads a safety copy of an original file before a
// destructive step (in-place overwrite, rename, or delete).
type OriginalBackup interface {
	// BackupOriginal uploads the file at path under the given key.
	BackupOriginal(ctx context.Context, path, key string) error
}

// S3API captures the S3 operations used, so tests can supply a mock.
type S3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// s3Backup implements the OriginalBackup interface against S3.
type s3Backup struct {
	client S3API
	bucket string
}

// NewS3Backup creates an OriginalBackup using the default AWS
// credential chain.
func NewS3Backup(ctx context.Context, bucket string) (OriginalBackup, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &s3Backup{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
	}, nil
}

// newS3BackupWithClient creates an OriginalBackup with a caller-supplied
// client, used by tests.
func newS3BackupWithClient(client S3API, bucket string) OriginalBackup {
	return &s3Backup{client: client, bucket: bucket}
}

// BackupOriginal uploads the file under key, skipping the upload when an
// object with the same content already exists. An existing object with
// different content means a previous run already rewrote the local file;
// overwriting the remote copy would lose the true original, so that is
// an error.
func (b *s3Backup) BackupOriginal(ctx context.Context, path, key string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read original: %w", err)
	}

	sum := md5.Sum(data)
	localHash := hex.EncodeToString(sum[:])

	key = filepath.ToSlash(key)
	head, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		if extractETag(head.ETag) == localHash {
			logger.Debug("Original already backed up, skipping", "key", key, "hash", localHash)
			return nil
		}
		return fmt.Errorf("backup object %q exists with different content; refusing to overwrite", key)
	}
	if !isNotFoundError(err) {
		return fmt.Errorf("failed to check backup object: %w", err)
	}

	logger.Info("Uploading original to S3", "bucket", b.bucket, "key", key, "bytes", len(data))
	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("failed to upload original: %w", err)
	}
	return nil
}

// extractETag strips the surrounding quotes from an S3 ETag.
func extractETag(etag *string) string {
	if etag == nil {
		return ""
	}
	return strings.Trim(*etag, `"`)
}

// isNotFoundError checks if the error is an S3 NotFound error.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}

	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if apiErr.ErrorCode() == "NotFound" {
			return true
		}
	}

	// Check error message as fallback
	msg := err.Error()
	return strings.Contains(msg, "NotFound") || strings.Contains(msg, "StatusCode: 404")
}
