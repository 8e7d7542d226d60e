package domain

import (
	"context"
)

// EventBus defines the interface for asynchronous event delivery.
// Supports Go channels (Community) or NATS (Pro).
// Messages are isolated per sales channel; GlobalChannel addresses
// events that concern every channel.
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, salesChannelID string, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	// Returns a subscription that can be used to unsubscribe.
	Subscribe(ctx context.Context, salesChannelID string, topic string, handler MessageHandler) (Subscription, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message represents an event message.
type Message struct {
	ID             string            `json:"id"`
	SalesChannelID string            `json:"salesChannelId"`
	Topic          string            `json:"topic"`
	Payload        []byte            `json:"payload"`
	Metadata       map[string]string `json:"metadata"`
	Timestamp      int64             `json:"timestamp"`
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe stops receiving messages.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string

	// Channel settings (Community tier)
	ChannelBufferSize int

	// NATS settings (Pro tier)
	NATSUrl           string
	NATSToken         string
	NATSMaxReconnects int
	NATSReconnectWait int // seconds
}

// GlobalChannel is the sales channel id used for channel-independent events.
const GlobalChannel = "_global"

// Standard topic names.
const (
	TopicListingResult = "shopcore.product.listing.result"
	TopicRuleChanged   = "shopcore.rule.changed"
)
