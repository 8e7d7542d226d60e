// Package worker provides async message processing on the event bus.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/opensource-finance/shopcore/internal/domain"
)

// Invalidator evicts hydrated rule trees.
type Invalidator interface {
	Invalidate(ruleID string)
}

// RuleChangedMessage is the payload of domain.TopicRuleChanged.
type RuleChangedMessage struct {
	RuleID string `json:"ruleId"`
}

// PublishRuleChanged announces that the conditions of a rule were written.
func PublishRuleChanged(ctx context.Context, bus domain.EventBus, ruleID string) error {
	payload, err := json.Marshal(RuleChangedMessage{RuleID: ruleID})
	if err != nil {
		return fmt.Errorf("failed to marshal rule change: %w", err)
	}
	return bus.Publish(ctx, domain.GlobalChannel, domain.TopicRuleChanged, payload)
}

// RuleInvalidator evicts cached rule trees when their conditions change,
// on this node or on any other node sharing the bus.
type RuleInvalidator struct {
	mu     sync.Mutex
	bus    domain.EventBus
	engine Invalidator

	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewRuleInvalidator creates a new invalidation worker.
func NewRuleInvalidator(bus domain.EventBus, engine Invalidator) *RuleInvalidator {
	ctx, cancel := context.WithCancel(context.Background())
	return &RuleInvalidator{
		bus:    bus,
		engine: engine,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to rule change events of every sales channel.
func (w *RuleInvalidator) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.GlobalChannel, domain.TopicRuleChanged, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", domain.TopicRuleChanged, err)
	}

	w.mu.Lock()
	w.subscriptions = append(w.subscriptions, sub)
	w.mu.Unlock()

	slog.Info("rule invalidator started", "topic", domain.TopicRuleChanged)
	return nil
}

func (w *RuleInvalidator) handleMessage(ctx context.Context, msg *domain.Message) error {
	var change RuleChangedMessage
	if err := json.Unmarshal(msg.Payload, &change); err != nil {
		slog.Error("failed to parse rule change message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}
	if change.RuleID == "" {
		return fmt.Errorf("rule change message %s without rule id", msg.ID)
	}

	w.engine.Invalidate(change.RuleID)

	slog.Debug("rule invalidated",
		"rule_id", change.RuleID,
		"sales_channel_id", msg.SalesChannelID,
	)
	return nil
}

// Stop gracefully stops the worker.
func (w *RuleInvalidator) Stop() error {
	w.cancel()

	w.mu.Lock()
	defer w.mu.Unlock()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	slog.Info("rule invalidator stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *RuleInvalidator) GetStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
