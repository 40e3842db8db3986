package storage

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/divinahealthcare/site/internal/config"
	"github.com/divinahealthcare/site/internal/submit"
)

type mockS3 struct {
	PutObjectFunc func(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

func (m *mockS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	return m.PutObjectFunc(ctx, params, optFns...)
}

func fixedUploader(client S3API, cfg config.StorageConfig) *S3Uploader {
	u := NewS3UploaderWithClient(client, cfg)
	u.now = func() time.Time { return time.Date(2025, 3, 4, 23, 0, 0, 0, time.UTC) }
	u.newID = func() string { return "abc" }
	return u
}

func TestS3Uploader_Upload(t *testing.T) {
	var got *s3.PutObjectInput
	var body []byte
	client := &mockS3{PutObjectFunc: func(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		got = in
		body, _ = io.ReadAll(in.Body)
		return &s3.PutObjectOutput{}, nil
	}}

	u := fixedUploader(client, config.StorageConfig{Bucket: "cvs", Region: "us-east-1", Prefix: "resumes"})
	url, err := u.Upload(context.Background(), &submit.Attachment{
		Filename:    "My CV (final).PDF",
		ContentType: "application/pdf",
		Data:        []byte("%PDF"),
	})

	require.NoError(t, err)
	assert.Equal(t, "https://cvs.s3.us-east-1.amazonaws.com/resumes/2025/03/04/abc-My-CV-final.pdf", url)
	assert.Equal(t, "cvs", aws.ToString(got.Bucket))
	assert.Equal(t, "resumes/2025/03/04/abc-My-CV-final.pdf", aws.ToString(got.Key))
	assert.Equal(t, "application/pdf", aws.ToString(got.ContentType))
	assert.Equal(t, int64(4), aws.ToInt64(got.ContentLength))
	assert.Equal(t, "%PDF", string(body))
}

func TestS3Uploader_Error(t *testing.T) {
	client := &mockS3{PutObjectFunc: func(context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return nil, errors.New("AccessDenied")
	}}

	u := fixedUploader(client, config.StorageConfig{Bucket: "cvs"})
	url, err := u.Upload(context.Background(), &submit.Attachment{Filename: "cv.pdf", Data: []byte("x")})

	assert.Empty(t, url)
	assert.ErrorContains(t, err, "AccessDenied")
}

func TestPublicBaseURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.StorageConfig
		want string
	}{
		{"explicit base", config.StorageConfig{PublicBaseURL: "https://files.example/", Bucket: "b"}, "https://files.example"},
		{"custom endpoint", config.StorageConfig{Endpoint: "https://minio.local:9000", Bucket: "b"}, "https://minio.local:9000/b"},
		{"aws", config.StorageConfig{Bucket: "b", Region: "eu-west-1"}, "https://b.s3.eu-west-1.amazonaws.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, publicBaseURL(tt.cfg))
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"cv.pdf", "cv.pdf"},
		{"My CV (final).PDF", "My-CV-final.pdf"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\ada\resume.docx`, "resume.docx"},
		{".pdf", "attachment.pdf"},
		{"", "attachment"},
		{"résumé.doc", "r-sum.doc"},
		{"cv.p d f", "cv"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestObjectKey_NoPrefix(t *testing.T) {
	now := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024/12/31/id-cv.pdf", ObjectKey("/", now, "id", "cv.pdf"))
}

func TestNew_SelectsProvider(t *testing.T) {
	u, err := New(context.Background(), config.StorageConfig{Provider: "none"})
	require.NoError(t, err)
	_, err = u.Upload(context.Background(), &submit.Attachment{Filename: "cv.pdf"})
	assert.ErrorIs(t, err, ErrDisabled)

	u, err = New(context.Background(), config.StorageConfig{Provider: " None "})
	require.NoError(t, err)
	assert.IsType(t, Disabled{}, u)

	u, err = New(context.Background(), config.StorageConfig{Provider: "S3", Region: "us-east-1", Bucket: "cv"})
	require.NoError(t, err)
	assert.IsType(t, &S3Uploader{}, u)

	_, err = New(context.Background(), config.StorageConfig{Provider: "ftp"})
	assert.Error(t, err)
}

func TestLimiter_AcquireRelease(t *testing.T) {
	limiter := NewLimiter(2, 20*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, limiter.Acquire(ctx))
	require.NoError(t, limiter.Acquire(ctx))
	assert.Equal(t, 2, limiter.ActiveCount())
	assert.Equal(t, LimiterStatus{Active: 2, Available: 0, MaxConcurrent: 2}, limiter.Status())
	assert.ErrorIs(t, limiter.Acquire(ctx), ErrTooManyUploads)

	limiter.Release()
	require.NoError(t, limiter.Acquire(ctx))
	limiter.Release()
	limiter.Release()
	assert.Equal(t, 0, limiter.ActiveCount())
}

func TestLimiter_BlocksWhenFull(t *testing.T) {
	limiter := NewLimiter(1, 50*time.Millisecond)
	ctx := context.Background()
	require.NoError(t, limiter.Acquire(ctx))

	err := limiter.Acquire(ctx)
	assert.ErrorIs(t, err, ErrTooManyUploads)
}

func TestLimiter_CallerCancellation(t *testing.T) {
	limiter := NewLimiter(1, time.Minute)
	require.NoError(t, limiter.Acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, limiter.Acquire(ctx), context.Canceled)
}

func TestLimiter_WaitForDrain(t *testing.T) {
	limiter := NewLimiter(2, time.Second)
	require.NoError(t, limiter.Acquire(context.Background()))

	go func() {
		time.Sleep(50 * time.Millisecond)
		limiter.Release()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, limiter.WaitForDrain(ctx))
}

func TestLimiter_WaitForDrainTimeout(t *testing.T) {
	limiter := NewLimiter(1, time.Second)
	require.NoError(t, limiter.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, limiter.WaitForDrain(ctx), context.DeadlineExceeded)
}

type slowUploader struct {
	inFlight, peak atomic.Int32
}

func (s *slowUploader) Upload(context.Context, *submit.Attachment) (string, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	return "https://files.example/x", nil
}

func TestLimited_BoundsConcurrency(t *testing.T) {
	inner := &slowUploader{}
	u := NewLimited(inner, NewLimiter(2, 5*time.Second))

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := u.Upload(context.Background(), &submit.Attachment{Filename: "cv.pdf"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, inner.peak.Load(), int32(2))
}
