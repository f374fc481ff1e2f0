package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/kingrain94/tenant-platform/internal/config"
	"github.com/kingrain94/tenant-platform/internal/domain"
)

type MessageType string

const (
	MessageTypeProvision   MessageType = "PROVISION"
	MessageTypeDeprovision MessageType = "DEPROVISION"
	MessageTypeIndex       MessageType = "INDEX"
	MessageTypeBulkIndex   MessageType = "BULK_INDEX"
	MessageTypeArchive     MessageType = "ARCHIVE"
)

type Message struct {
	Type       MessageType         `json:"type"`
	TenantID   string              `json:"tenant_id,omitempty"`
	SchemaName string              `json:"schema_name,omitempty"`
	Events     []domain.AuditEvent `json:"events,omitempty"`
	Timestamp  time.Time           `json:"timestamp"`
}

type ReceivedMessage struct {
	Message       Message
	ReceiptHandle *string
	// ReceiveCount is how many times SQS has handed out this message.
	ReceiveCount int
}

const (
	attrType   = "Type"
	attrTenant = "TenantId"
)

// Client is the subset of the SQS API the service uses.
type Client interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

type SQSService struct {
	client            Client
	lifecycleQueueURL string
	indexQueueURL     string
	archiveQueueURL   string
}

func NewSQSService(client Client, config *config.SQSConfig) *SQSService {
	return &SQSService{
		client:            client,
		lifecycleQueueURL: config.LifecycleQueueURL,
		indexQueueURL:     config.IndexQueueURL,
		archiveQueueURL:   config.ArchiveQueueURL,
	}
}

func (s *SQSService) LifecycleQueueURL() string { return s.lifecycleQueueURL }
func (s *SQSService) IndexQueueURL() string     { return s.indexQueueURL }
func (s *SQSService) ArchiveQueueURL() string   { return s.archiveQueueURL }

// SendProvisionMessage asks the provision worker to build the tenant schema.
func (s *SQSService) SendProvisionMessage(ctx context.Context, tenantID, schemaName string) error {
	return s.sendMessage(ctx, Message{
		Type:       MessageTypeProvision,
		TenantID:   tenantID,
		SchemaName: schemaName,
		Timestamp:  time.Now(),
	}, s.lifecycleQueueURL)
}

func (s *SQSService) SendDeprovisionMessage(ctx context.Context, tenantID string) error {
	return s.sendMessage(ctx, Message{
		Type:      MessageTypeDeprovision,
		TenantID:  tenantID,
		Timestamp: time.Now(),
	}, s.lifecycleQueueURL)
}

func (s *SQSService) SendIndexMessage(ctx context.Context, event *domain.AuditEvent) error {
	return s.sendMessage(ctx, Message{
		Type:      MessageTypeIndex,
		TenantID:  event.TenantID,
		Events:    []domain.AuditEvent{*event},
		Timestamp: event.Timestamp,
	}, s.indexQueueURL)
}

func (s *SQSService) SendBulkIndexMessage(ctx context.Context, events []domain.AuditEvent) error {
	if len(events) == 0 {
		return nil
	}

	return s.sendMessage(ctx, Message{
		Type:      MessageTypeBulkIndex,
		Events:    events,
		Timestamp: events[0].Timestamp,
	}, s.indexQueueURL)
}

// SendArchiveMessage asks the archive worker to export a tenant's audit trail.
func (s *SQSService) SendArchiveMessage(ctx context.Context, tenantID string) error {
	return s.sendMessage(ctx, Message{
		Type:      MessageTypeArchive,
		TenantID:  tenantID,
		Timestamp: time.Now(),
	}, s.archiveQueueURL)
}

// sendMessage publishes msg with its type and tenant copied into message
// attributes, so queue tooling can filter without decoding the body.
func (s *SQSService) sendMessage(ctx context.Context, msg Message, queueURL string) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal %s message: %w", msg.Type, err)
	}

	attrs := map[string]types.MessageAttributeValue{
		attrType: stringAttr(string(msg.Type)),
	}
	if msg.TenantID != "" {
		attrs[attrTenant] = stringAttr(msg.TenantID)
	}

	if _, err := s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:          aws.String(queueURL),
		MessageBody:       aws.String(string(body)),
		MessageAttributes: attrs,
	}); err != nil {
		return fmt.Errorf("failed to send %s message: %w", msg.Type, err)
	}
	return nil
}

func stringAttr(v string) types.MessageAttributeValue {
	return types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(v)}
}

// ReceiveMessages long-polls queueURL. A message whose body cannot be decoded
// is returned with an empty Type so the caller can drop it.
func (s *SQSService) ReceiveMessages(ctx context.Context, queueURL string, maxMessages int32, waitTimeSeconds int32) ([]ReceivedMessage, error) {
	output, err := s.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(queueURL),
		MaxNumberOfMessages:   maxMessages,
		WaitTimeSeconds:       waitTimeSeconds,
		MessageAttributeNames: []string{attrType, attrTenant},
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameApproximateReceiveCount,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to receive messages: %w", err)
	}

	messages := make([]ReceivedMessage, 0, len(output.Messages))
	for _, raw := range output.Messages {
		received := ReceivedMessage{ReceiptHandle: raw.ReceiptHandle, ReceiveCount: 1}
		if err := json.Unmarshal([]byte(aws.ToString(raw.Body)), &received.Message); err != nil {
			received.Message = Message{}
		}
		if n, err := strconv.Atoi(raw.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)]); err == nil {
			received.ReceiveCount = n
		}
		messages = append(messages, received)
	}
	return messages, nil
}

func (s *SQSService) DeleteMessage(ctx context.Context, queueURL string, receiptHandle *string) error {
	if _, err := s.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: receiptHandle,
	}); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}
