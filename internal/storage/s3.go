package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// S3Config holds connection settings for the S3-compatible object store.
// Endpoint is optional — set it for MinIO or other S3-compatible services.
type S3Config struct {
	Endpoint     string
	Region       string
	AccessKey    string
	SecretKey    string
	Bucket       string
	UsePathStyle bool
	Prefix       string
	// URLTTL bounds the lifetime of presigned upload and display URLs.
	URLTTL time.Duration
}

// S3Store implements ObjectStore against S3. Storage IDs are the object
// keys themselves.
type S3Store struct {
	cfg     S3Config
	client  *s3.Client
	presign *s3.PresignClient
}

var _ ObjectStore = (*S3Store)(nil)

func NewS3Store(cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("s3 region is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("s3 credentials are required")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "images"
	}
	if cfg.URLTTL <= 0 {
		cfg.URLTTL = time.Hour
	}

	options := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: cfg.UsePathStyle,
	}
	if cfg.Endpoint != "" {
		options.BaseEndpoint = aws.String(cfg.Endpoint)
	}

	client := s3.New(options)

	return &S3Store{
		cfg:     cfg,
		client:  client,
		presign: s3.NewPresignClient(client),
	}, nil
}

func (s *S3Store) GenerateUploadURL(ctx context.Context, contentType string) (*UploadTarget, error) {
	if contentType == "" {
		contentType = "image/jpeg"
	}
	key := s.generateKey(contentType)

	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(s.cfg.URLTTL))
	if err != nil {
		return nil, fmt.Errorf("presigning upload url: %w", err)
	}

	return &UploadTarget{URL: req.URL, StorageID: key}, nil
}

func (s *S3Store) GetURL(ctx context.Context, storageID string) (string, error) {
	if storageID == "" {
		return "", fmt.Errorf("storage id is required")
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(storageID),
	}, s3.WithPresignExpires(s.cfg.URLTTL))
	if err != nil {
		return "", fmt.Errorf("presigning display url for %s: %w", storageID, err)
	}

	return req.URL, nil
}

func (s *S3Store) Store(ctx context.Context, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("no data to store")
	}
	if contentType == "" {
		contentType = "image/png"
	}

	key := s.generateKey(contentType)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("storing object: %w", err)
	}

	return key, nil
}

func (s *S3Store) Delete(ctx context.Context, storageID string) error {
	if storageID == "" {
		return fmt.Errorf("storage id is required")
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(storageID),
	})
	if err != nil {
		return fmt.Errorf("deleting object %s: %w", storageID, err)
	}

	return nil
}

// generateKey builds a date-partitioned object key, e.g.
// images/2026/08/31/7f9c….png
func (s *S3Store) generateKey(contentType string) string {
	now := time.Now().UTC()
	prefix := strings.Trim(s.cfg.Prefix, "/")
	return path.Join(
		prefix,
		fmt.Sprintf("%04d/%02d/%02d", now.Year(), now.Month(), now.Day()),
		uuid.NewString()+extensionFromContentType(contentType),
	)
}

func extensionFromContentType(contentType string) string {
	switch strings.ToLower(contentType) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}
