package bus

import (
	"time"

	"github.com/google/uuid"
)

// Topics published by the engine. Subscribers filter by prefix, so
// "store." matches both store topics.
const (
	TopicConversationsRefreshed = "store.conversations_refreshed"
	TopicMessagesRefreshed      = "store.messages_refreshed"
	TopicSendConfirmed          = "send.confirmed"
	TopicSendFailed             = "send.failed"
	TopicReceiptMarked          = "receipt.marked"
	TopicPolicyChanged          = "policy.changed"
)

// Event is a domain event published on the bus.
type Event struct {
	ID      string
	Topic   string
	At      time.Time
	Payload any
}

// NewEvent stamps a payload with a fresh event id and the current time.
func NewEvent(topic string, payload any) Event {
	return Event{
		ID:      uuid.New().String(),
		Topic:   topic,
		At:      time.Now(),
		Payload: payload,
	}
}
