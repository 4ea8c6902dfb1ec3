// Package outbox implements the optimistic send path: local feedback first,
// remote confirmation later.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pmartins/studychat/internal/bus"
	"github.com/pmartins/studychat/internal/rest"
	"github.com/pmartins/studychat/internal/store"
	"go.uber.org/zap"
)

// ErrEmptyMessage rejects sends with neither content nor attachment.
var ErrEmptyMessage = errors.New("message needs content or an attachment")

// ErrBlocked rejects sends to blocked conversations before any network call.
var ErrBlocked = errors.New("conversation is blocked")

// Sender is the remote send call.
type Sender interface {
	SendMessage(ctx context.Context, req rest.SendRequest) (*store.Message, error)
}

// Gate is the policy check consulted before anything leaves the process.
type Gate interface {
	CanSend(conversationID string) bool
}

// SendFailed is the bus payload for a failed send. It carries the rejected
// content and attachment so the composer can be restored.
type SendFailed struct {
	ConversationID string
	TempID         string
	Content        string
	Attachment     *store.Attachment
	Err            error
}

// SendConfirmed is the bus payload for a reconciled send.
type SendConfirmed struct {
	ConversationID string
	TempID         string
	MessageID      string
}

// Controller accepts compose actions, appends a pending message
// synchronously, and reconciles the remote response.
type Controller struct {
	msgs    *store.MessageStore
	gate    Gate
	sender  Sender
	bus     *bus.Bus
	logger  *zap.Logger
	counter atomic.Int64
}

// NewController creates a send controller.
func NewController(msgs *store.MessageStore, gate Gate, sender Sender, b *bus.Bus, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{msgs: msgs, gate: gate, sender: sender, bus: b, logger: logger}
}

// Send validates the compose action, appends a pending message so the UI
// reflects it with zero latency, then dispatches the remote call in the
// background. Returns the temporary id of the optimistic entry.
//
// Failure handling is rollback-only: the pending entry is removed, a
// send.failed event carries the original payload, and no retry is attempted.
func (c *Controller) Send(ctx context.Context, conversationID string, kind store.Kind, content string, attachment *store.Attachment) (string, error) {
	if content == "" && attachment == nil {
		return "", ErrEmptyMessage
	}
	if !c.gate.CanSend(conversationID) {
		return "", fmt.Errorf("send to %s: %w", conversationID, ErrBlocked)
	}

	tempID := fmt.Sprintf("%s%d", store.TempIDPrefix, c.counter.Add(1))
	c.msgs.AppendPending(&store.Message{
		ID:             tempID,
		ConversationID: conversationID,
		SenderID:       store.SelfSenderID,
		Content:        content,
		Attachment:     attachment,
		CreatedAt:      time.Now().UnixMilli(),
	})

	go c.dispatch(ctx, conversationID, kind, tempID, content, attachment)
	return tempID, nil
}

func (c *Controller) dispatch(ctx context.Context, conversationID string, kind store.Kind, tempID, content string, attachment *store.Attachment) {
	remote, err := c.sender.SendMessage(ctx, rest.SendRequest{
		To:         conversationID,
		Kind:       kind,
		Content:    content,
		Attachment: attachment,
	})
	if err != nil {
		c.logger.Warn("send failed, rolling back optimistic message",
			zap.String("conversation_id", conversationID),
			zap.String("temp_id", tempID),
			zap.Error(err))
		c.msgs.RemovePending(conversationID, tempID)
		c.publish(bus.TopicSendFailed, SendFailed{
			ConversationID: conversationID,
			TempID:         tempID,
			Content:        content,
			Attachment:     attachment,
			Err:            err,
		})
		return
	}

	// The send response is the sole authority for turning the temp id into
	// the durable one; poll merges never do this.
	c.msgs.ConfirmPending(conversationID, tempID, remote)
	c.publish(bus.TopicSendConfirmed, SendConfirmed{
		ConversationID: conversationID,
		TempID:         tempID,
		MessageID:      remote.ID,
	})
}

func (c *Controller) publish(topic string, payload any) {
	if c.bus != nil {
		c.bus.Publish(bus.NewEvent(topic, payload))
	}
}
