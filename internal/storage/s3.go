// Package storage stores message attachments. Only the blob is kept here;
// the database records how many attachments a message has.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"parley/internal/config"
	"parley/internal/domain"
	"parley/internal/domain/services"
)

// ObjectClient is the part of *s3.Client the store uses.
type ObjectClient interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Store writes attachments to an S3 bucket under
// [prefix/]messages/{message_id}/{uuid}-{filename}.
type S3Store struct {
	client   ObjectClient
	bucket   string
	prefix   string
	maxBytes int64
	logger   *slog.Logger
}

// NewS3Store creates a store on an existing client.
func NewS3Store(client ObjectClient, bucket, prefix string, logger *slog.Logger) *S3Store {
	return &S3Store{
		client:   client,
		bucket:   bucket,
		prefix:   strings.Trim(strings.TrimSpace(prefix), "/"),
		maxBytes: config.MaxAttachmentBytes,
		logger:   logger,
	}
}

// NewS3StoreFromConfig builds the S3 client from the default AWS credential
// chain (env, shared config, instance role).
func NewS3StoreFromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*S3Store, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 storage: S3_BUCKET is required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRequestChecksumCalculation(aws.RequestChecksumCalculationWhenRequired),
	)
	if err != nil {
		return nil, fmt.Errorf("s3 storage: load AWS config: %w", err)
	}
	usePathStyle := cfg.S3UsePathStyle
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = usePathStyle
	})
	return NewS3Store(client, cfg.S3Bucket, cfg.S3Prefix, logger), nil
}

// Enabled reports true; S3 accepts uploads.
func (s *S3Store) Enabled() bool { return true }

// Put uploads one attachment and returns its object key.
func (s *S3Store) Put(ctx context.Context, messageID int64, upload services.Upload) (string, error) {
	if upload.Body == nil {
		return "", fmt.Errorf("%w: attachment %s has no content", domain.ErrValidation, upload.Filename)
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(upload.Body, s.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("s3 storage: read upload: %w", err)
	}
	if n > s.maxBytes {
		return "", fmt.Errorf("%w: attachment %s exceeds %d bytes", domain.ErrValidation, upload.Filename, s.maxBytes)
	}

	key := s.objectKey(messageID, upload.Filename)
	contentType := upload.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &s.bucket,
		Key:           &key,
		Body:          bytes.NewReader(buf.Bytes()),
		ContentLength: aws.Int64(n),
		ContentType:   &contentType,
	})
	if err != nil {
		return "", fmt.Errorf("s3 storage: put object: %w", err)
	}

	s.logger.Debug("attachment uploaded",
		"bucket", s.bucket,
		"key", key,
		"size", n,
	)
	return key, nil
}

// Delete removes an uploaded object. S3 treats a missing key as success.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		return fmt.Errorf("s3 storage: delete object %s: %w", key, err)
	}
	s.logger.Debug("attachment deleted", "bucket", s.bucket, "key", key)
	return nil
}

func (s *S3Store) objectKey(messageID int64, filename string) string {
	key := fmt.Sprintf("messages/%d/%s-%s", messageID, uuid.NewString(), sanitizeFilename(filename))
	if s.prefix != "" {
		return s.prefix + "/" + key
	}
	return key
}

// sanitizeFilename drops any directory part and characters that would split
// the object key.
func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == '/' || r == 0x7f {
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return "file"
	}
	return name
}

// DisabledStore rejects every upload.
type DisabledStore struct{}

// Enabled reports false.
func (DisabledStore) Enabled() bool { return false }

// Put always fails.
func (DisabledStore) Put(context.Context, int64, services.Upload) (string, error) {
	return "", fmt.Errorf("%w: attachments are disabled", domain.ErrValidation)
}

// Delete is a no-op; nothing was ever stored.
func (DisabledStore) Delete(context.Context, string) error { return nil }

var (
	_ services.AttachmentStore = (*S3Store)(nil)
	_ services.AttachmentStore = DisabledStore{}
)
