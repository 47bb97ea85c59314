package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"tush00nka/phonechat/internal/config"
)

const s3Prefix = "uploads"

// S3Storage хранит медиа в S3-совместимом бакете (AWS, MinIO)
type S3Storage struct {
	bucket    string
	publicURL string
	uploader  *manager.Uploader
	s3Client  *s3.Client
}

// NewS3Storage использует статические ключи, если задан S3_ACCESS_KEY_ID,
// иначе стандартную цепочку credentials AWS
func NewS3Storage(ctx context.Context, cfg *config.Config) (*S3Storage, error) {
	s3Opts := []func(*s3.Options){}

	if cfg.S3Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		})
	}

	var awsCfg aws.Config
	if cfg.S3AccessKeyID != "" {
		awsCfg = aws.Config{
			Region: cfg.S3Region,
			Credentials: credentials.NewStaticCredentialsProvider(
				cfg.S3AccessKeyID,
				cfg.S3SecretAccessKey,
				"",
			),
		}
	} else {
		loaded, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load aws config: %w", err)
		}
		awsCfg = loaded
	}

	s3Client := s3.NewFromConfig(awsCfg, s3Opts...)

	log.Printf("S3 storage initialized for bucket %s (endpoint %q)", cfg.S3BucketName, cfg.S3Endpoint)
	return &S3Storage{
		bucket:    cfg.S3BucketName,
		publicURL: strings.TrimSuffix(cfg.S3PublicURL, "/"),
		uploader:  manager.NewUploader(s3Client),
		s3Client:  s3Client,
	}, nil
}

// Save загружает объект в бакет под префиксом uploads/
func (s *S3Storage) Save(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	objectKey := s3Prefix + "/" + key

	result, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}

	if s.publicURL != "" {
		return s.publicURL + "/" + objectKey, nil
	}
	return result.Location, nil
}

// HealthCheck проверяет доступность бакета
func (s *S3Storage) HealthCheck(ctx context.Context) error {
	_, err := s.s3Client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return fmt.Errorf("storage health check failed: %w", err)
	}
	return nil
}
