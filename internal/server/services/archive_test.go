package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sc "github.com/mfuentesc/siidte/internal/server/config"
	"github.com/mfuentesc/siidte/internal/server/models"
	"github.com/mfuentesc/siidte/internal/xmldsig"
)

func TestArchiveStorageKey(t *testing.T) {
	a := archiveStorageKey("acc-1", 42)
	b := archiveStorageKey("acc-1", 42)

	assert.True(t, strings.HasPrefix(a, "dte/acc-1/"))
	assert.True(t, strings.HasSuffix(a, ".xml"))
	assert.Contains(t, a, "F42-")
	assert.NotEqual(t, a, b, "keys must not collide across submissions")
}

func TestArchiveSigned_Disabled(t *testing.T) {
	cfg := &sc.Config{}
	cfg.LoadDefaults()

	svc := NewSubmissionService(nil, &fakeRepoManager{}, xmldsig.New(xmldsig.RSASHA1), &fakeUploader{}, cfg, testLogger())

	origLoad := loadDefaultAWSConfig
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		t.Error("AWS config must not be loaded when archiving is disabled")
		return aws.Config{}, nil
	}
	defer func() { loadDefaultAWSConfig = origLoad }()

	err := svc.archiveSigned(context.Background(), "acc-1", &models.Invoice{Folio: 1}, []byte("<DTE/>"))
	require.NoError(t, err)
}

func TestArchiveSigned_PutsObject(t *testing.T) {
	cfg := &sc.Config{}
	cfg.LoadDefaults()
	cfg.S3ArchiveEnabled = true

	svc := NewSubmissionService(nil, &fakeRepoManager{}, xmldsig.New(xmldsig.RSASHA1), &fakeUploader{}, cfg, testLogger())
	svc.now = func() time.Time { return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC) }

	var gotBucket, gotKey string
	var gotBody []byte

	origPut := putObject
	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		gotBucket = *in.Bucket
		gotKey = *in.Key
		var err error
		gotBody, err = io.ReadAll(in.Body)
		require.NoError(t, err)
		return &s3.PutObjectOutput{}, nil
	}
	defer func() { putObject = origPut }()

	signed := []byte(`<DTE version="1.0"/>`)
	err := svc.archiveSigned(context.Background(), "acc-1", &models.Invoice{Folio: 42}, signed)
	require.NoError(t, err)

	assert.Equal(t, cfg.S3Bucket, gotBucket)
	assert.Contains(t, gotKey, "F42-")
	assert.Equal(t, signed, gotBody)
}

func TestArchiveSigned_PutError(t *testing.T) {
	cfg := &sc.Config{}
	cfg.LoadDefaults()
	cfg.S3ArchiveEnabled = true

	svc := NewSubmissionService(nil, &fakeRepoManager{}, xmldsig.New(xmldsig.RSASHA1), &fakeUploader{}, cfg, testLogger())

	origPut := putObject
	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		return nil, errors.New("bucket unreachable")
	}
	defer func() { putObject = origPut }()

	err := svc.archiveSigned(context.Background(), "acc-1", &models.Invoice{Folio: 1}, []byte("<DTE/>"))
	require.Error(t, err)
}
