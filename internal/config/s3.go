package config

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config locates the bucket that receives audit archives of deleted
// tenants.
type S3Config struct {
	AWSConfig
	BucketName string
}

func DefaultS3Config() *S3Config {
	return &S3Config{
		AWSConfig:  defaultAWSConfig("AWS_S3_ENDPOINT", ""),
		BucketName: getEnvWithDefault("S3_ARCHIVE_BUCKET", "tenant-audit-archives"),
	}
}

func (c *S3Config) GetClient(ctx context.Context) (*s3.Client, error) {
	cfg, err := c.load(ctx)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint := c.baseEndpoint(); endpoint != nil {
			// emulators serve buckets by path, not by virtual host
			o.BaseEndpoint = endpoint
			o.UsePathStyle = true
		}
	}), nil
}
