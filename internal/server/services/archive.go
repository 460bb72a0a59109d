package services

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/mfuentesc/siidte/internal/server/models"
)

// Seams for testing the S3 wiring without a live backend.
var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in)
	}
)

// archiveStorageKey builds a date-partitioned object key. The uuid suffix
// keeps re-submissions of the same folio from colliding.
func archiveStorageKey(accountID string, folio int64) string {
	d := time.Now()
	return fmt.Sprintf("dte/%s/%d/%d/%d/F%d-%v.xml", accountID, d.Year(), d.Month(), d.Day(), folio, uuid.New())
}

func (s *SubmissionService) getS3Client() (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(context.Background(),
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	}), nil
}

// archiveSigned stores the signed document in the archive bucket. A no-op
// when archiving is disabled.
func (s *SubmissionService) archiveSigned(ctx context.Context, accountID string, invoice *models.Invoice, signed []byte) error {
	if !s.config.S3ArchiveEnabled {
		return nil
	}

	client, err := s.getS3Client()
	if err != nil {
		return err
	}

	bucket := s.config.S3Bucket
	key := archiveStorageKey(accountID, invoice.Folio)

	_, err = putObject(client, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
		Body:   bytes.NewReader(signed),
	})
	if err != nil {
		return err
	}

	s.log.Debug(ctx, "signed document archived", "key", key)
	return nil
}
