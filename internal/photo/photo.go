// Package photo stores work-evidence photos in S3-compatible object storage
// and hands back durable URLs for task records.
package photo

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// MaxUploadBytes caps a single photo upload.
const MaxUploadBytes = 10 << 20

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Config holds S3-compatible storage configuration.
type Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	// PublicBaseURL is the URL prefix served back to clients. Defaults to
	// endpoint/bucket when empty.
	PublicBaseURL string
}

// Uploader stores photos under per-family prefixes.
type Uploader struct {
	client  s3Client
	bucket  string
	baseURL string
}

// NewUploader returns nil when the storage credentials are absent, which
// disables photo evidence for the deployment.
func NewUploader(cfg Config) *Uploader {
	if cfg.Bucket == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil
	}

	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		baseURL = strings.TrimSuffix(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}

	return &Uploader{
		client:  newS3Client(cfg),
		bucket:  cfg.Bucket,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

func newS3Client(cfg Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// newUploaderWithClient is a test seam.
func newUploaderWithClient(client s3Client, bucket, baseURL string) *Uploader {
	return &Uploader{client: client, bucket: bucket, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// Upload stores one photo and returns its durable URL. The key is random so
// uploads never collide or reveal task ordering.
func (u *Uploader) Upload(ctx context.Context, familyID int64, contentType string, body io.Reader, size int64) (string, error) {
	if size > MaxUploadBytes {
		return "", fmt.Errorf("photo exceeds %d bytes", MaxUploadBytes)
	}

	key := fmt.Sprintf("work-photos/%d/%s%s", familyID, uuid.NewString(), extFor(contentType))

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload photo: %w", err)
	}

	return u.baseURL + "/" + key, nil
}

// Delete removes a previously uploaded photo by its URL. URLs outside this
// uploader's prefix are ignored.
func (u *Uploader) Delete(ctx context.Context, url string) error {
	key, ok := strings.CutPrefix(url, u.baseURL+"/")
	if !ok {
		return nil
	}

	_, err := u.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete photo: %w", err)
	}
	return nil
}

// Owns reports whether a URL points into this uploader's bucket. Used to
// validate photo references submitted with a completion.
func (u *Uploader) Owns(url string) bool {
	return strings.HasPrefix(url, u.baseURL+"/")
}

func extFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return path.Ext(contentType)
	}
}
