package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrain94/tenant-platform/internal/config"
	"github.com/kingrain94/tenant-platform/internal/domain"
)

type fakeClient struct {
	sent    []*sqs.SendMessageInput
	deleted []*sqs.DeleteMessageInput
	inbox   []types.Message
	sendErr error
}

func (f *fakeClient) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, in)
	return &sqs.SendMessageOutput{}, nil
}

func (f *fakeClient) ReceiveMessage(_ context.Context, _ *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	return &sqs.ReceiveMessageOutput{Messages: f.inbox}, nil
}

func (f *fakeClient) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, in)
	return &sqs.DeleteMessageOutput{}, nil
}

func newTestService(client *fakeClient) *SQSService {
	return NewSQSService(client, &config.SQSConfig{
		LifecycleQueueURL: "https://sqs.local/lifecycle",
		IndexQueueURL:     "https://sqs.local/index",
		ArchiveQueueURL:   "https://sqs.local/archive",
	})
}

func decodeSent(t *testing.T, in *sqs.SendMessageInput) Message {
	t.Helper()
	var msg Message
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(in.MessageBody)), &msg))
	return msg
}

func TestSendMessagesRouteToQueues(t *testing.T) {
	client := &fakeClient{}
	svc := newTestService(client)
	ctx := context.Background()
	event := &domain.AuditEvent{ID: "e1", TenantID: "t-acme", Action: domain.AuditActionLogin, Timestamp: time.Now().UTC()}

	require.NoError(t, svc.SendProvisionMessage(ctx, "t-acme", "tenant_acme"))
	require.NoError(t, svc.SendDeprovisionMessage(ctx, "t-acme"))
	require.NoError(t, svc.SendIndexMessage(ctx, event))
	require.NoError(t, svc.SendArchiveMessage(ctx, "t-acme"))
	require.Len(t, client.sent, 4)

	expected := []struct {
		queue string
		typ   MessageType
	}{
		{"https://sqs.local/lifecycle", MessageTypeProvision},
		{"https://sqs.local/lifecycle", MessageTypeDeprovision},
		{"https://sqs.local/index", MessageTypeIndex},
		{"https://sqs.local/archive", MessageTypeArchive},
	}
	for i, e := range expected {
		assert.Equal(t, e.queue, aws.ToString(client.sent[i].QueueUrl))
		msg := decodeSent(t, client.sent[i])
		assert.Equal(t, e.typ, msg.Type)
		assert.Equal(t, "t-acme", msg.TenantID)
	}

	provision := decodeSent(t, client.sent[0])
	assert.Equal(t, "tenant_acme", provision.SchemaName)

	index := decodeSent(t, client.sent[2])
	require.Len(t, index.Events, 1)
	assert.Equal(t, "e1", index.Events[0].ID)
}

func TestSendBulkIndexMessage(t *testing.T) {
	client := &fakeClient{}
	svc := newTestService(client)

	require.NoError(t, svc.SendBulkIndexMessage(context.Background(), nil))
	assert.Empty(t, client.sent)

	events := []domain.AuditEvent{{ID: "e1"}, {ID: "e2"}}
	require.NoError(t, svc.SendBulkIndexMessage(context.Background(), events))
	msg := decodeSent(t, client.sent[0])
	assert.Equal(t, MessageTypeBulkIndex, msg.Type)
	assert.Len(t, msg.Events, 2)
}

func TestSendMessageError(t *testing.T) {
	client := &fakeClient{sendErr: errors.New("throttled")}
	svc := newTestService(client)

	err := svc.SendArchiveMessage(context.Background(), "t-acme")

	assert.ErrorContains(t, err, "throttled")
}

func TestReceiveMessages(t *testing.T) {
	body, err := json.Marshal(Message{Type: MessageTypeProvision, TenantID: "t-acme", SchemaName: "tenant_acme"})
	require.NoError(t, err)
	client := &fakeClient{inbox: []types.Message{
		{Body: aws.String(string(body)), ReceiptHandle: aws.String("r1")},
		{Body: aws.String("not json"), ReceiptHandle: aws.String("r2")},
	}}
	svc := newTestService(client)

	messages, err := svc.ReceiveMessages(context.Background(), svc.LifecycleQueueURL(), 10, 20)

	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, MessageTypeProvision, messages[0].Message.Type)
	assert.Equal(t, "tenant_acme", messages[0].Message.SchemaName)
	assert.Equal(t, "r1", aws.ToString(messages[0].ReceiptHandle))
	assert.Empty(t, messages[1].Message.Type)

	require.NoError(t, svc.DeleteMessage(context.Background(), svc.LifecycleQueueURL(), messages[1].ReceiptHandle))
	require.Len(t, client.deleted, 1)
	assert.Equal(t, "r2", aws.ToString(client.deleted[0].ReceiptHandle))
}

func TestSendMessageAttributes(t *testing.T) {
	client := &fakeClient{}
	svc := newTestService(client)

	require.NoError(t, svc.SendProvisionMessage(context.Background(), "t-acme", "tenant_acme"))
	require.NoError(t, svc.SendBulkIndexMessage(context.Background(), []domain.AuditEvent{{ID: "e1"}}))

	attrs := client.sent[0].MessageAttributes
	assert.Equal(t, "PROVISION", aws.ToString(attrs["Type"].StringValue))
	assert.Equal(t, "t-acme", aws.ToString(attrs["TenantId"].StringValue))

	// bulk batches span tenants and carry no tenant attribute
	_, ok := client.sent[1].MessageAttributes["TenantId"]
	assert.False(t, ok)
}

func TestReceiveMessages_ReceiveCount(t *testing.T) {
	body, err := json.Marshal(Message{Type: MessageTypeArchive, TenantID: "t-acme"})
	require.NoError(t, err)
	client := &fakeClient{inbox: []types.Message{
		{
			Body:          aws.String(string(body)),
			ReceiptHandle: aws.String("r1"),
			Attributes:    map[string]string{"ApproximateReceiveCount": "3"},
		},
		{Body: aws.String(string(body)), ReceiptHandle: aws.String("r2")},
	}}
	svc := newTestService(client)

	messages, err := svc.ReceiveMessages(context.Background(), svc.ArchiveQueueURL(), 10, 0)

	require.NoError(t, err)
	assert.Equal(t, 3, messages[0].ReceiveCount)
	assert.Equal(t, 1, messages[1].ReceiveCount)
}
