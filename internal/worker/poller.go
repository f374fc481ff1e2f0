package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kingrain94/tenant-platform/internal/config"
	"github.com/kingrain94/tenant-platform/internal/domain"
	"github.com/kingrain94/tenant-platform/internal/service/queue"
	"github.com/kingrain94/tenant-platform/pkg/logger"
)

//go:generate mockery --name MessageQueue --output ../mocks
type MessageQueue interface {
	ReceiveMessages(ctx context.Context, queueURL string, maxMessages int32, waitTimeSeconds int32) ([]queue.ReceivedMessage, error)
	DeleteMessage(ctx context.Context, queueURL string, receiptHandle *string) error
}

const defaultHandlerTimeout = 5 * time.Minute

type handlerFunc func(ctx context.Context, msg queue.Message) error

// poller runs workerCount goroutines that long-poll one queue. A message is
// deleted once handled, or once its failure is known to be permanent;
// anything else stays on the queue and is redelivered after the visibility
// timeout.
type poller struct {
	name           string
	queue          MessageQueue
	queueURL       string
	accepts        map[queue.MessageType]bool
	handle         handlerFunc
	logger         *logger.Logger
	workerCount    int
	pollInterval   time.Duration
	handlerTimeout time.Duration
	maxMessages    int32
	waitTime       int32

	ctx       context.Context
	cancel    context.CancelFunc
	waitGroup sync.WaitGroup
}

func newPoller(name string, q MessageQueue, queueURL string, cfg *config.WorkerConfig, log *logger.Logger, handle handlerFunc, accepts ...queue.MessageType) *poller {
	ctx, cancel := context.WithCancel(context.Background())
	p := &poller{
		name:           name,
		queue:          q,
		queueURL:       queueURL,
		accepts:        make(map[queue.MessageType]bool, len(accepts)),
		handle:         handle,
		logger:         log,
		workerCount:    cfg.Count,
		pollInterval:   cfg.PollInterval,
		handlerTimeout: cfg.HandlerTimeout,
		maxMessages:    10, // Process up to 10 messages at a time
		waitTime:       20, // Long polling: wait up to 20 seconds for messages
		ctx:            ctx,
		cancel:         cancel,
	}
	if p.workerCount < 1 {
		p.workerCount = 1
	}
	if p.handlerTimeout <= 0 {
		p.handlerTimeout = defaultHandlerTimeout
	}
	for _, t := range accepts {
		p.accepts[t] = true
	}
	return p
}

func (p *poller) Start() {
	p.logger.Infof("Starting %s workers...", p.name)

	for i := 0; i < p.workerCount; i++ {
		p.waitGroup.Add(1)
		go p.runWorker(i)
	}
}

// Stop ends the polling and waits for in-flight messages to finish.
func (p *poller) Stop() {
	p.logger.Infof("Stopping %s workers...", p.name)
	p.cancel()
	p.waitGroup.Wait()
	p.logger.Infof("All %s workers stopped", p.name)
}

func (p *poller) runWorker(workerID int) {
	defer p.waitGroup.Done()

	p.logger.Infof("%s worker %d started", p.name, workerID)

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			p.logger.Infof("%s worker %d shutting down", p.name, workerID)
			return
		case <-ticker.C:
			if err := p.processMessages(p.ctx); err != nil && p.ctx.Err() == nil {
				p.logger.Errorf("%s worker %d failed to process messages: %v", p.name, workerID, err)
			}
		}
	}
}

func (p *poller) processMessages(ctx context.Context) error {
	messages, err := p.queue.ReceiveMessages(ctx, p.queueURL, p.maxMessages, p.waitTime)
	if err != nil {
		return fmt.Errorf("failed to receive messages: %w", err)
	}

	for _, msg := range messages {
		if msg.ReceiveCount > 1 {
			p.logger.Infof("%s worker retrying %s message for tenant %s, delivery %d", p.name, msg.Message.Type, msg.Message.TenantID, msg.ReceiveCount)
		}
		if p.process(ctx, msg.Message) {
			// handled messages are deleted even when shutting down
			if err := p.queue.DeleteMessage(context.WithoutCancel(ctx), p.queueURL, msg.ReceiptHandle); err != nil {
				p.logger.Errorf("Failed to delete message: %v", err)
			}
		}
	}

	return nil
}

// process handles one message and reports whether it should be deleted.
func (p *poller) process(ctx context.Context, msg queue.Message) bool {
	if !p.accepts[msg.Type] {
		p.logger.Warnf("%s worker dropping message of unexpected type %q", p.name, msg.Type)
		return true
	}

	// a started message runs to completion even if Stop is called
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.handlerTimeout)
	defer cancel()

	err := p.handle(hctx, msg)
	if err == nil {
		return true
	}
	if permanent(err) {
		p.logger.Errorf("%s worker giving up on %s message for tenant %s: %v", p.name, msg.Type, msg.TenantID, err)
		return true
	}
	p.logger.Errorf("Failed to process %s message for tenant %s, leaving it for redelivery: %v", msg.Type, msg.TenantID, err)
	return false
}

// permanent reports whether retrying the message can never succeed: the
// failure carries a domain code other than Internal.
func permanent(err error) bool {
	var de *domain.Error
	return errors.As(err, &de) && de.Code != domain.CodeInternal
}
