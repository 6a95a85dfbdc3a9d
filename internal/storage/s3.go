package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ErrBucketNotSet is returned when an S3Storage is constructed without a bucket.
var ErrBucketNotSet = errors.New("s3 bucket not set")

// S3Config holds the configuration for S3 delivery.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // Optional: custom S3-compatible endpoint
	AccessKeyID     string // Optional: static AWS access key ID
	SecretAccessKey string // Optional: static AWS secret access key
}

// S3Storage keeps composites on local disk through the embedded
// LocalStorage and publishes finished outputs to an S3 bucket.
type S3Storage struct {
	*LocalStorage
	client *s3.Client
	bucket string
	region string
}

// NewS3Storage creates an S3Storage that works out of dataDir locally
// and delivers outputs to the bucket described by cfg.
func NewS3Storage(dataDir string, cfg S3Config) (*S3Storage, error) {
	if cfg.Bucket == "" {
		return nil, ErrBucketNotSet
	}

	local, err := NewLocalStorage(dataDir)
	if err != nil {
		return nil, err
	}

	client, err := newS3Client(cfg)
	if err != nil {
		return nil, err
	}

	return &S3Storage{
		LocalStorage: local,
		client:       client,
		bucket:       cfg.Bucket,
		region:       cfg.Region,
	}, nil
}

func newS3Client(cfg S3Config) (*s3.Client, error) {
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return s3.NewFromConfig(awsCfg, clientOpts...), nil
}

// UploadToS3 uploads data under key and returns the public object URL.
// The object content type is inferred from the key's file extension.
func (s *S3Storage) UploadToS3(ctx context.Context, key string, data io.Reader) (string, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   data,
	}
	if ct := mime.TypeByExtension(filepath.Ext(key)); ct != "" {
		input.ContentType = aws.String(ct)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("upload to S3: %w", err)
	}

	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key), nil
}
