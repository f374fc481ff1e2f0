package config

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// SQSConfig holds one queue per background worker: tenant lifecycle
// (provision/deprovision), audit indexing and audit archiving.
type SQSConfig struct {
	AWSConfig
	LifecycleQueueURL string
	IndexQueueURL     string
	ArchiveQueueURL   string
}

func DefaultSQSConfig() *SQSConfig {
	const local = "http://localhost:4566/000000000000/"
	return &SQSConfig{
		AWSConfig:         defaultAWSConfig("AWS_SQS_ENDPOINT", "http://localhost:4566"),
		LifecycleQueueURL: getEnvWithDefault("AWS_SQS_LIFECYCLE_QUEUE_URL", local+"tenant-lifecycle-queue"),
		IndexQueueURL:     getEnvWithDefault("AWS_SQS_INDEX_QUEUE_URL", local+"audit-event-index-queue"),
		ArchiveQueueURL:   getEnvWithDefault("AWS_SQS_ARCHIVE_QUEUE_URL", local+"audit-event-archive-queue"),
	}
}

func (c *SQSConfig) GetClient() (*sqs.Client, error) {
	cfg, err := c.load(context.Background())
	if err != nil {
		return nil, err
	}

	return sqs.NewFromConfig(cfg, func(o *sqs.Options) {
		o.BaseEndpoint = c.baseEndpoint()
	}), nil
}
