package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/spec-kit/policy-service/internal/config"
	"github.com/spec-kit/policy-service/internal/events"
	"github.com/spec-kit/policy-service/internal/persistence"
)

// NotificationService announces domain events: every event is logged,
// and when Redis is reachable the JSON payload is also published to the
// configured channel for downstream consumers.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	redis      *persistence.Redis
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, redis *persistence.Redis, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		redis:      redis,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventQuoteCreated, n.handleEvent)
	n.dispatcher.Subscribe(events.EventPolicyStateChanged, n.handleEvent)
	n.dispatcher.Subscribe(events.EventPaymentProcessed, n.handleEvent)
}

func (n *NotificationService) handleEvent(ctx context.Context, event events.Event) error {
	n.logger.Info(string(event.Type),
		zap.String("policy_id", event.PolicyID),
		zap.Any("payload", event.Payload))
	n.publishToChannel(ctx, event)
	return nil
}

func (n *NotificationService) publishToChannel(ctx context.Context, event events.Event) {
	if n.redis == nil || n.redis.Client == nil || n.cfg.Channel == "" {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		n.logger.Warn("marshal event", zap.Error(err))
		return
	}
	if err := n.redis.Client.Publish(ctx, n.cfg.Channel, payload).Err(); err != nil {
		n.logger.Debug("publish event to redis",
			zap.String("channel", n.cfg.Channel),
			zap.Error(err))
	}
}
