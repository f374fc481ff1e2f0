package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kingrain94/tenant-platform/internal/domain"
	"github.com/kingrain94/tenant-platform/internal/repository"
	"github.com/kingrain94/tenant-platform/pkg/logger"
)

//go:generate mockery --name SQSService --output ../mocks
type SQSService interface {
	SendProvisionMessage(ctx context.Context, tenantID, schemaName string) error
	SendDeprovisionMessage(ctx context.Context, tenantID string) error
	SendIndexMessage(ctx context.Context, event *domain.AuditEvent) error
	SendArchiveMessage(ctx context.Context, tenantID string) error
}

//go:generate mockery --name EventPublisher --output ../mocks
type EventPublisher interface {
	Publish(ctx context.Context, event *domain.AuditEvent) error
}

// EventSink stores one audit event.
type EventSink interface {
	Create(ctx context.Context, event *domain.AuditEvent) error
}

type AuditService struct {
	repo      repository.Repository
	sqsSvc    SQSService
	publisher EventPublisher
	logger    *logger.Logger
}

func NewAuditService(repo repository.Repository, sqsSvc SQSService, logger *logger.Logger) *AuditService {
	return &AuditService{
		repo:   repo,
		sqsSvc: sqsSvc,
		logger: logger,
	}
}

// SetPublisher enables live streaming of recorded events.
func (s *AuditService) SetPublisher(publisher EventPublisher) {
	s.publisher = publisher
}

func stamp(event *domain.AuditEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
}

// Create stores the event in the catalog, then queues it for search indexing
// and publishes it to live subscribers. Only the catalog write can fail the
// call.
func (s *AuditService) Create(ctx context.Context, event *domain.AuditEvent) error {
	stamp(event)

	if err := s.repo.AuditEvent().Create(ctx, event); err != nil {
		return fmt.Errorf("failed to store audit event: %w", err)
	}

	if s.sqsSvc != nil {
		if err := s.sqsSvc.SendIndexMessage(ctx, event); err != nil {
			s.logger.Warn("failed to queue audit event for indexing", zap.String("event_id", event.ID), zap.Error(err))
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warn("failed to publish audit event", zap.String("event_id", event.ID), zap.Error(err))
		}
	}

	return nil
}

// List reads from OpenSearch when the filter narrows by principal, action or
// outcome and from the catalog otherwise.
func (s *AuditService) List(ctx context.Context, filter *domain.AuditEventFilter) ([]domain.AuditEvent, error) {
	if filter.Limit <= 0 || filter.Limit > 1000 {
		filter.Limit = 100
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	if hasSearchCriteria(filter) {
		events, err := s.repo.OpenSearch().Search(ctx, filter)
		if err == nil {
			return events, nil
		}
		s.logger.Warn("audit search failed, falling back to catalog", zap.Error(err))
	}

	return s.repo.AuditEvent().List(ctx, *filter)
}

func hasSearchCriteria(filter *domain.AuditEventFilter) bool {
	return filter.PrincipalID != "" || filter.Action != "" || filter.Outcome != ""
}

// QueueSink hands events to the index queue, where the index worker stores
// them. The gateway records through it and only ever reads the catalog.
type QueueSink struct {
	sqsSvc SQSService
}

func NewQueueSink(sqsSvc SQSService) *QueueSink {
	return &QueueSink{sqsSvc: sqsSvc}
}

func (q *QueueSink) Create(ctx context.Context, event *domain.AuditEvent) error {
	stamp(event)
	return q.sqsSvc.SendIndexMessage(ctx, event)
}

const defaultRecorderTimeout = 5 * time.Second

// AsyncRecorder decouples audit writes from request handling. Record never
// blocks: when the buffer is full the event is dropped and counted.
type AsyncRecorder struct {
	sink    EventSink
	events  chan *domain.AuditEvent
	logger  *logger.Logger
	timeout time.Duration
	dropped atomic.Int64

	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewAsyncRecorder(sink EventSink, buffer int, logger *logger.Logger) *AsyncRecorder {
	if buffer < 1 {
		buffer = 1
	}
	return &AsyncRecorder{
		sink:    sink,
		events:  make(chan *domain.AuditEvent, buffer),
		logger:  logger,
		timeout: defaultRecorderTimeout,
	}
}

func (r *AsyncRecorder) Record(_ context.Context, event *domain.AuditEvent) {
	stamp(event)
	select {
	case r.events <- event:
	default:
		n := r.dropped.Add(1)
		r.logger.Warn("audit buffer full, dropping event",
			zap.String("action", event.Action), zap.String("tenant_id", event.TenantID), zap.Int64("dropped_total", n))
	}
}

// Dropped is the number of events lost to a full buffer.
func (r *AsyncRecorder) Dropped() int64 {
	return r.dropped.Load()
}

func (r *AsyncRecorder) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for event := range r.events {
			r.write(event)
		}
	}()
}

// Stop flushes buffered events and returns once they are written.
func (r *AsyncRecorder) Stop() {
	r.stopOnce.Do(func() { close(r.events) })
	r.wg.Wait()
}

func (r *AsyncRecorder) write(event *domain.AuditEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.sink.Create(ctx, event); err != nil {
		r.logger.Error("failed to record audit event", err,
			zap.String("action", event.Action), zap.String("tenant_id", event.TenantID))
	}
}
