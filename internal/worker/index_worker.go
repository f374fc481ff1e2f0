package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kingrain94/tenant-platform/internal/config"
	"github.com/kingrain94/tenant-platform/internal/domain"
	"github.com/kingrain94/tenant-platform/internal/repository"
	"github.com/kingrain94/tenant-platform/internal/service/queue"
	"github.com/kingrain94/tenant-platform/pkg/logger"
)

// IndexWorker persists queued audit events to the catalog and indexes them
// in OpenSearch. Both writes are keyed by event id, so a redelivered message
// changes nothing.
type IndexWorker struct {
	*poller
	catalog repository.AuditEventRepository
	search  repository.OpenSearchRepository
}

func NewIndexWorker(
	sqsService *queue.SQSService,
	catalog repository.AuditEventRepository,
	search repository.OpenSearchRepository,
	logger *logger.Logger,
	cfg *config.WorkerConfig,
) *IndexWorker {
	return newIndexWorker(sqsService, sqsService.IndexQueueURL(), catalog, search, logger, cfg)
}

func newIndexWorker(q MessageQueue, queueURL string, catalog repository.AuditEventRepository, search repository.OpenSearchRepository, logger *logger.Logger, cfg *config.WorkerConfig) *IndexWorker {
	w := &IndexWorker{catalog: catalog, search: search}
	w.poller = newPoller("index", q, queueURL, cfg, logger, w.processMessage,
		queue.MessageTypeIndex, queue.MessageTypeBulkIndex)
	return w
}

func (w *IndexWorker) processMessage(ctx context.Context, msg queue.Message) error {
	w.logger.Debug("indexing audit events", zap.String("type", string(msg.Type)), zap.Int("events", len(msg.Events)))

	switch {
	case msg.Type == queue.MessageTypeIndex && len(msg.Events) != 1:
		return domain.NewError(domain.CodeInvalidRequest, "invalid number of events for INDEX message: %d", len(msg.Events))
	case len(msg.Events) == 0:
		w.logger.Warn("empty events array for BULK_INDEX message")
		return nil
	}

	for i := range msg.Events {
		if err := w.catalog.Create(ctx, &msg.Events[i]); err != nil {
			return fmt.Errorf("failed to store audit event %s: %w", msg.Events[i].ID, err)
		}
	}

	if len(msg.Events) == 1 {
		return w.search.Index(ctx, &msg.Events[0])
	}
	return w.search.BulkIndex(ctx, msg.Events)
}
