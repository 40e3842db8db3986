// Package storage puts submission attachments into object storage and hands
// back a link the message can carry.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/divinahealthcare/site/internal/config"
	"github.com/divinahealthcare/site/internal/submit"
)

// ErrDisabled is returned when no object store is configured.
var ErrDisabled = errors.New("attachment storage is not configured")

// S3API is the part of the S3 client the uploader uses.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader stores attachments in an S3 or S3-compatible bucket.
type S3Uploader struct {
	client  S3API
	bucket  string
	prefix  string
	baseURL string
	now     func() time.Time
	newID   func() string
}

// NewS3Uploader builds an uploader from configuration. Static credentials are
// used when both keys are set; otherwise the default AWS chain applies.
func NewS3Uploader(ctx context.Context, cfg config.StorageConfig) (*S3Uploader, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3UploaderWithClient(client, cfg), nil
}

// NewS3UploaderWithClient builds an uploader on an existing client.
func NewS3UploaderWithClient(client S3API, cfg config.StorageConfig) *S3Uploader {
	return &S3Uploader{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  cfg.Prefix,
		baseURL: publicBaseURL(cfg),
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// publicBaseURL is where stored objects can be fetched from.
func publicBaseURL(cfg config.StorageConfig) string {
	switch {
	case cfg.PublicBaseURL != "":
		return strings.TrimRight(cfg.PublicBaseURL, "/")
	case cfg.Endpoint != "":
		return strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
}

// Upload stores a and returns its public URL.
func (u *S3Uploader) Upload(ctx context.Context, a *submit.Attachment) (string, error) {
	key := ObjectKey(u.prefix, u.now(), u.newID(), a.Filename)

	contentType := a.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:             aws.String(u.bucket),
		Key:                aws.String(key),
		Body:               bytes.NewReader(a.Data),
		ContentLength:      aws.Int64(a.Size()),
		ContentType:        aws.String(contentType),
		ContentDisposition: aws.String(fmt.Sprintf("attachment; filename=%q", SanitizeFilename(a.Filename))),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}

	return u.baseURL + "/" + key, nil
}

// Disabled rejects every upload. It stands in when STORAGE_PROVIDER=none so
// forms with attachments fail at the upload step with a clear message.
type Disabled struct{}

func (Disabled) Upload(context.Context, *submit.Attachment) (string, error) {
	return "", ErrDisabled
}

// New returns the uploader selected by cfg.
func New(ctx context.Context, cfg config.StorageConfig) (submit.Uploader, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "s3":
		return NewS3Uploader(ctx, cfg)
	case "", "none":
		return Disabled{}, nil
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}
