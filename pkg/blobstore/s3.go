// Package blobstore wraps the S3 bucket that holds uploaded images. Clients
// either upload through the service or receive a presigned PUT ticket and
// upload directly, bypassing the service's size limits.
package blobstore

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// UploadTicket is everything a client needs to upload one object directly:
// where to PUT it, the object key, and the URL it will be served from.
type UploadTicket struct {
	UploadURL string `json:"upload_url"`
	Key       string `json:"key"`
	PublicURL string `json:"public_url"`
}

// Config holds the bucket identity, resolved once at startup and injected.
type Config struct {
	Bucket           string
	Region           string
	CloudFrontDomain string
	PresignExpiry    time.Duration
}

// S3Store stores image blobs in an S3 bucket under uuid-named keys.
type S3Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	cfg     Config
	log     *logrus.Logger
}

// NewS3Store creates an S3Store using the default AWS credential chain.
func NewS3Store(ctx context.Context, cfg Config, log *logrus.Logger) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("blobstore: bucket name is required")
	}
	if cfg.PresignExpiry <= 0 {
		cfg.PresignExpiry = time.Hour
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("blobstore: failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	return &S3Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		cfg:     cfg,
		log:     log,
	}, nil
}

// PresignUpload issues a presigned PUT ticket for a fresh object key.
func (s *S3Store) PresignUpload(ctx context.Context, filename, contentType string) (*UploadTicket, error) {
	key := s.objectKey(filename)

	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(s.cfg.PresignExpiry))
	if err != nil {
		return nil, fmt.Errorf("blobstore: failed to presign upload: %w", err)
	}

	s.log.WithField("key", key).Info("generated presigned upload url")
	return &UploadTicket{
		UploadURL: req.URL,
		Key:       key,
		PublicURL: s.publicURL(key),
	}, nil
}

// Upload writes the object through the service and returns its public URL.
func (s *S3Store) Upload(ctx context.Context, body io.Reader, filename, contentType string) (string, error) {
	key := s.objectKey(filename)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.cfg.Bucket),
		Key:          aws.String(key),
		Body:         body,
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("max-age=31536000"),
	})
	if err != nil {
		return "", fmt.Errorf("blobstore: failed to upload object: %w", err)
	}

	s.log.WithField("key", key).Info("uploaded object")
	return s.publicURL(key), nil
}

// Delete removes the object behind a public URL (CloudFront or direct S3).
func (s *S3Store) Delete(ctx context.Context, publicURL string) error {
	key, err := s.keyFromURL(publicURL)
	if err != nil {
		return err
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("blobstore: failed to delete object %s: %w", key, err)
	}

	s.log.WithField("key", key).Info("deleted object")
	return nil
}

func (s *S3Store) objectKey(filename string) string {
	return "posts/" + uuid.New().String() + strings.ToLower(filepath.Ext(filename))
}

func (s *S3Store) publicURL(key string) string {
	if s.cfg.CloudFrontDomain != "" {
		return fmt.Sprintf("https://%s/%s", s.cfg.CloudFrontDomain, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, key)
}

func (s *S3Store) keyFromURL(publicURL string) (string, error) {
	if s.cfg.CloudFrontDomain != "" {
		if _, after, found := strings.Cut(publicURL, s.cfg.CloudFrontDomain+"/"); found {
			return after, nil
		}
	}
	if _, after, found := strings.Cut(publicURL, ".amazonaws.com/"); found {
		return after, nil
	}
	return "", fmt.Errorf("blobstore: cannot derive object key from url %q", publicURL)
}
