// Package receipt turns unacknowledged inbound messages into read-mark
// requests against the remote store.
package receipt

import (
	"context"
	"sync"

	"github.com/pmartins/studychat/internal/bus"
	"github.com/pmartins/studychat/internal/status"
	"github.com/pmartins/studychat/internal/store"
	"go.uber.org/zap"
)

// ReadMarker is the remote read-mark call, batched per conversation.
type ReadMarker interface {
	MarkRead(ctx context.Context, conversationID string) error
}

// Tracker issues at most one outstanding read-mark request per conversation.
// Rapid successive poll ticks therefore cannot fan out into redundant calls;
// the next tick after completion picks up anything still unread.
type Tracker struct {
	marker ReadMarker
	bus    *bus.Bus
	logger *zap.Logger

	mu       sync.Mutex
	inFlight map[string]bool
}

// NewTracker creates a read-receipt tracker.
func NewTracker(marker ReadMarker, b *bus.Bus, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		marker:   marker,
		bus:      b,
		logger:   logger,
		inFlight: make(map[string]bool),
	}
}

// Observe runs after a successful message refresh for the active
// conversation. If any peer-authored message is not yet read, one batched
// read-mark request goes out, unless one is already outstanding.
func (t *Tracker) Observe(ctx context.Context, conversationID string, msgs []store.Message) {
	if !hasUnread(msgs) {
		return
	}

	t.mu.Lock()
	if t.inFlight[conversationID] {
		t.mu.Unlock()
		return
	}
	t.inFlight[conversationID] = true
	t.mu.Unlock()

	go t.mark(ctx, conversationID)
}

func (t *Tracker) mark(ctx context.Context, conversationID string) {
	err := t.marker.MarkRead(ctx, conversationID)

	t.mu.Lock()
	delete(t.inFlight, conversationID)
	t.mu.Unlock()

	if err != nil {
		// Next refresh re-observes and retries implicitly.
		t.logger.Warn("read-mark request failed",
			zap.String("conversation_id", conversationID), zap.Error(err))
		return
	}
	if t.bus != nil {
		t.bus.Publish(bus.NewEvent(bus.TopicReceiptMarked, conversationID))
	}
}

func hasUnread(msgs []store.Message) bool {
	for i := range msgs {
		m := &msgs[i]
		if !m.FromMe() && m.Status != status.Read {
			return true
		}
	}
	return false
}
