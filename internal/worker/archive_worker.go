package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/kingrain94/tenant-platform/internal/config"
	"github.com/kingrain94/tenant-platform/internal/domain"
	"github.com/kingrain94/tenant-platform/internal/repository"
	"github.com/kingrain94/tenant-platform/internal/service/queue"
	"github.com/kingrain94/tenant-platform/pkg/logger"
)

const archivePageSize = 1000

// ObjectStore is the subset of the S3 API the archive worker uses.
type ObjectStore interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ArchiveWorker exports the audit trail of a deleted tenant to S3, then
// removes it from the catalog and from OpenSearch.
type ArchiveWorker struct {
	*poller
	catalog  repository.AuditEventRepository
	search   repository.OpenSearchRepository
	s3Client ObjectStore
	s3Config *config.S3Config
	now      func() time.Time
}

func NewArchiveWorker(
	sqsService *queue.SQSService,
	catalog repository.AuditEventRepository,
	search repository.OpenSearchRepository,
	s3Client ObjectStore,
	s3Config *config.S3Config,
	logger *logger.Logger,
	cfg *config.WorkerConfig,
) *ArchiveWorker {
	return newArchiveWorker(sqsService, sqsService.ArchiveQueueURL(), catalog, search, s3Client, s3Config, logger, cfg)
}

func newArchiveWorker(q MessageQueue, queueURL string, catalog repository.AuditEventRepository, search repository.OpenSearchRepository, s3Client ObjectStore, s3Config *config.S3Config, logger *logger.Logger, cfg *config.WorkerConfig) *ArchiveWorker {
	w := &ArchiveWorker{
		catalog:  catalog,
		search:   search,
		s3Client: s3Client,
		s3Config: s3Config,
		now:      time.Now,
	}
	w.poller = newPoller("archive", q, queueURL, cfg, logger, w.processArchiveMessage, queue.MessageTypeArchive)
	return w
}

type archiveDocument struct {
	TenantID   string              `json:"tenant_id"`
	ArchivedAt time.Time           `json:"archived_at"`
	EventCount int                 `json:"event_count"`
	Events     []domain.AuditEvent `json:"events"`
}

func (w *ArchiveWorker) processArchiveMessage(ctx context.Context, msg queue.Message) error {
	if msg.TenantID == "" {
		return domain.NewError(domain.CodeInvalidRequest, "archive message without tenant id")
	}
	log := w.logger.With(zap.String("tenant_id", msg.TenantID))

	events, err := w.collect(ctx, msg.TenantID)
	if err != nil {
		return err
	}

	if len(events) == 0 {
		log.Info("no audit events to archive")
	} else {
		key, err := w.upload(ctx, msg.TenantID, events)
		if err != nil {
			return err
		}
		log.Info("audit trail archived",
			zap.Int("events", len(events)),
			zap.String("location", fmt.Sprintf("s3://%s/%s", w.s3Config.BucketName, key)),
		)
	}

	// Only remove the events once the export is safely stored
	deleted, err := w.catalog.DeleteByTenant(ctx, msg.TenantID)
	if err != nil {
		return fmt.Errorf("failed to delete archived events: %w", err)
	}
	if err := w.search.DeleteIndex(ctx, msg.TenantID); err != nil {
		return fmt.Errorf("failed to delete audit indices: %w", err)
	}

	log.Info("archived audit events removed", zap.Int64("deleted", deleted))
	return nil
}

func (w *ArchiveWorker) collect(ctx context.Context, tenantID string) ([]domain.AuditEvent, error) {
	var events []domain.AuditEvent
	for offset := 0; ; offset += archivePageSize {
		page, err := w.catalog.List(ctx, domain.AuditEventFilter{
			TenantID: tenantID,
			Limit:    archivePageSize,
			Offset:   offset,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch events for archival: %w", err)
		}
		events = append(events, page...)
		if len(page) < archivePageSize {
			return events, nil
		}
	}
}

func (w *ArchiveWorker) upload(ctx context.Context, tenantID string, events []domain.AuditEvent) (string, error) {
	archivedAt := w.now().UTC()
	key := fmt.Sprintf("audit-events/%s/audit_events_%s.json", tenantID, archivedAt.Format("2006-01-02_15-04-05"))

	data, err := json.MarshalIndent(archiveDocument{
		TenantID:   tenantID,
		ArchivedAt: archivedAt,
		EventCount: len(events),
		Events:     events,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal archive: %w", err)
	}

	_, err = w.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.s3Config.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"tenant-id":   tenantID,
			"archived-at": archivedAt.Format(time.RFC3339),
			"event-count": fmt.Sprintf("%d", len(events)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload archive to S3: %w", err)
	}
	return key, nil
}
