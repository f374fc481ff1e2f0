package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/kingrain94/tenant-platform/internal/domain"
	"github.com/kingrain94/tenant-platform/pkg/logger"
)

const (
	channelPrefix = "audit_events:"

	// AllTenants subscribes to every channel, platform scope included.
	AllTenants = "*"

	platformChannel = "platform"
)

type RedisPubSub struct {
	client       *redis.Client
	logger       *logger.Logger
	subscribers  map[string]*redis.PubSub // scope -> subscription
	subscriberMu sync.RWMutex
}

func NewRedisPubSub(client *redis.Client, logger *logger.Logger) *RedisPubSub {
	return &RedisPubSub{
		client:      client,
		logger:      logger,
		subscribers: make(map[string]*redis.PubSub),
	}
}

// ChannelName maps a tenant id to its channel. Platform scope events, which
// carry no tenant id, share one channel.
func ChannelName(tenantID string) string {
	if tenantID == "" {
		return channelPrefix + platformChannel
	}
	return channelPrefix + tenantID
}

// Publish publishes an audit event to its tenant's channel.
func (ps *RedisPubSub) Publish(ctx context.Context, event *domain.AuditEvent) error {
	message, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	channel := ChannelName(event.TenantID)
	if err := ps.client.Publish(ctx, channel, message).Err(); err != nil {
		return fmt.Errorf("failed to publish to Redis channel %s: %w", channel, err)
	}

	return nil
}

// Subscribe delivers the events of one tenant, or of every tenant when scope
// is AllTenants, to callback until ctx ends or Unsubscribe is called.
func (ps *RedisPubSub) Subscribe(ctx context.Context, scope string, callback func(*domain.AuditEvent)) error {
	ps.subscriberMu.Lock()
	if _, exists := ps.subscribers[scope]; exists {
		ps.subscriberMu.Unlock()
		ps.logger.Debug("Already subscribed to audit scope " + scope)
		return nil
	}

	var sub *redis.PubSub
	if scope == AllTenants {
		sub = ps.client.PSubscribe(ctx, channelPrefix+"*")
	} else {
		sub = ps.client.Subscribe(ctx, ChannelName(scope))
	}
	ps.subscribers[scope] = sub
	ps.subscriberMu.Unlock()

	// Receive blocks until redis confirms, so no event published after
	// Subscribe returns is missed.
	if _, err := sub.Receive(ctx); err != nil {
		ps.Unsubscribe(scope)
		return fmt.Errorf("failed to subscribe to audit scope %s: %w", scope, err)
	}

	go func() {
		defer ps.release(scope, sub)

		ch := sub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event domain.AuditEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					ps.logger.Errorf("Failed to unmarshal audit event from channel %s: %v", msg.Channel, err)
					continue
				}
				callback(&event)

			case <-ctx.Done():
				return
			}
		}
	}()

	ps.logger.Infof("Subscribed to audit scope: %s", scope)
	return nil
}

func (ps *RedisPubSub) Unsubscribe(scope string) {
	ps.subscriberMu.Lock()
	defer ps.subscriberMu.Unlock()

	if sub, exists := ps.subscribers[scope]; exists {
		sub.Close()
		delete(ps.subscribers, scope)
		ps.logger.Infof("Unsubscribed from audit scope: %s", scope)
	}
}

// release drops sub only if it is still the registered subscription for
// scope, so a finished goroutine never closes a newer one.
func (ps *RedisPubSub) release(scope string, sub *redis.PubSub) {
	ps.subscriberMu.Lock()
	defer ps.subscriberMu.Unlock()

	if current, exists := ps.subscribers[scope]; exists && current == sub {
		delete(ps.subscribers, scope)
	}
	sub.Close()
}

func (ps *RedisPubSub) Close() {
	ps.subscriberMu.Lock()
	defer ps.subscriberMu.Unlock()

	for scope, sub := range ps.subscribers {
		sub.Close()
		delete(ps.subscribers, scope)
	}
}
