package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// cidMetadataKey is the object-metadata key Filebase-style pinning
// services report the assigned CID under after a PutObject.
const cidMetadataKey = "cid"

// S3Client uploads content to an S3-compatible IPFS pinning service
// (Filebase and friends): the object is put into a bucket and the
// service pins it, reporting the CID back through object metadata.
// Downloads go through the gateway layer, not S3.
type S3Client struct {
	client  *s3.Client
	bucket  string
	limiter *rate.Limiter
}

// NewS3Client initializes a pinning client against the configured
// S3-compatible endpoint.
func NewS3Client(ctx context.Context, cfg *Config) (*S3Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKey,
			cfg.S3SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 configuration: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		o.UsePathStyle = true
	})

	return &S3Client{
		client:  client,
		bucket:  cfg.S3Bucket,
		limiter: rate.NewLimiter(rate.Limit(2), 5),
	}, nil
}

// Demo reports whether this client performs real network uploads.
func (c *S3Client) Demo() bool { return false }

// Upload puts the payload into the pinning bucket and reads the
// assigned CID back from the object metadata.
func (c *S3Client) Upload(ctx context.Context, name string, data []byte) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter error: %v", err)
	}

	key := objectKey(name)
	_, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object: %w", err)
	}

	head, err := c.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("failed to read object metadata: %w", err)
	}

	cid, ok := head.Metadata[cidMetadataKey]
	if !ok || cid == "" {
		return "", fmt.Errorf("pinning service did not report a cid for %s", key)
	}

	logrus.WithFields(logrus.Fields{
		"key": key,
		"cid": cid,
	}).Info("Content pinned via S3 endpoint")
	return cid, nil
}

// Download is not served over S3: once only the CID is known there is
// no object key to fetch, so retrieval is the gateway layer's job.
func (c *S3Client) Download(ctx context.Context, cid string) ([]byte, error) {
	return nil, fmt.Errorf("s3 pinning client does not serve downloads; resolve %s via a gateway", cid)
}

func objectKey(name string) string {
	d := time.Now()
	return fmt.Sprintf("uploads/%d/%02d/%02d/%s-%s", d.Year(), d.Month(), d.Day(), uuid.NewString()[:8], name)
}
