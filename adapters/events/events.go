// Package events defines the broker contract shared by the NATS transport and
// the in-memory broker: named queues, one-way publish, and consumers whose
// unacknowledged deliveries are bounded by a prefetch limit.
package events

import (
	"context"
	"maps"
)

// Message is the unit of transmission.
type Message struct {
	Queue         string
	CorrelationID string
	ReplyTo       string
	MessageID     string
	Headers       map[string]string
	Body          []byte
	Redelivered   bool
}

// Header returns the value of a header, or "" when absent.
func (m *Message) Header(key string) string {
	if m.Headers == nil {
		return ""
	}
	return m.Headers[key]
}

// SetHeader sets a header, allocating the map on first use.
func (m *Message) SetHeader(key, value string) {
	if m.Headers == nil {
		m.Headers = map[string]string{}
	}
	m.Headers[key] = value
}

// Clone returns a copy that shares no mutable state with m.
func (m *Message) Clone() *Message {
	c := *m
	c.Headers = maps.Clone(m.Headers)
	c.Body = append([]byte(nil), m.Body...)
	return &c
}

// Delivery is a message handed to a consumer together with its settlement.
// Exactly one of Ack, Reject or Requeue takes effect; later calls are no-ops.
type Delivery interface {
	Message() *Message
	// Ack settles the delivery as processed.
	Ack() error
	// Reject settles the delivery as failed; it is not redelivered.
	Reject() error
	// Requeue hands the delivery back to the broker for redelivery.
	Requeue() error
}

// Handler processes one delivery. Invocations for one consumer are serial.
type Handler func(ctx context.Context, d Delivery)

// ConsumeOptions configures a consumer.
type ConsumeOptions struct {
	// Prefetch bounds unacknowledged deliveries; 0 means unbounded.
	Prefetch int
	// AutoAck settles each delivery as soon as it is handed out.
	AutoAck bool
	// Name identifies a durable consumer; defaults to the queue name.
	Name string
}

// Subscription is an active consumer.
type Subscription interface {
	Queue() string
	Unsubscribe() error
}

// Broker is the transport surface used by rpc and replication code.
type Broker interface {
	// DeclareQueue is idempotent for matching durability.
	DeclareQueue(ctx context.Context, name string, durable bool) error
	// DeclareReplyQueue creates an anonymous queue private to this broker handle.
	DeclareReplyQueue(ctx context.Context) (string, error)
	Publish(ctx context.Context, msg *Message) error
	Consume(ctx context.Context, queue string, opts ConsumeOptions, handler Handler) (Subscription, error)
	Ping(ctx context.Context) error
	Close() error
}
