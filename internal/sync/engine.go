// Package sync keeps the in-memory stores consistent with the remote store
// over a request/response-only transport: two periodic pollers, idempotent
// merges, and a stale-response guard keyed by the active conversation.
package sync

import (
	"context"
	"sync"
	"time"

	"github.com/pmartins/studychat/internal/bus"
	"github.com/pmartins/studychat/internal/receipt"
	"github.com/pmartins/studychat/internal/store"
	"go.uber.org/zap"
)

// Backend is the slice of the remote API the pollers consume.
type Backend interface {
	ListConversations(ctx context.Context) ([]*store.Conversation, error)
	ListMessages(ctx context.Context, conversationID string, kind store.Kind) ([]*store.Message, error)
}

// Engine schedules the list and message polls and applies their results.
type Engine struct {
	backend Backend
	convs   *store.ConversationStore
	msgs    *store.MessageStore
	tracker *receipt.Tracker
	bus     *bus.Bus
	logger  *zap.Logger

	listInterval    time.Duration
	messageInterval time.Duration

	mu       sync.Mutex
	ctx      context.Context
	listTask *task
	msgTask  *task
	activeID string
}

// NewEngine creates a poller engine. tracker and b may be nil.
func NewEngine(backend Backend, convs *store.ConversationStore, msgs *store.MessageStore,
	tracker *receipt.Tracker, b *bus.Bus, logger *zap.Logger,
	listInterval, messageInterval time.Duration) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		backend:         backend,
		convs:           convs,
		msgs:            msgs,
		tracker:         tracker,
		bus:             b,
		logger:          logger,
		listInterval:    listInterval,
		messageInterval: messageInterval,
	}
}

// Mount starts the list poller. It runs until Unmount regardless of which
// conversation is open.
func (e *Engine) Mount(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listTask != nil {
		return
	}
	e.ctx = ctx
	e.listTask = startTask(ctx, "list", e.listInterval, e.refreshList)
	e.logger.Info("engine mounted", zap.Duration("list_interval", e.listInterval))
}

// Unmount stops both pollers.
func (e *Engine) Unmount() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listTask.stop()
	e.msgTask.stop()
	e.listTask, e.msgTask = nil, nil
	e.activeID = ""
	e.logger.Info("engine unmounted")
}

// OpenConversation makes a conversation active and starts its message
// poller. Any previous message poller is cancelled first; its late responses
// will fail the active-conversation check and be discarded.
func (e *Engine) OpenConversation(conversationID string, kind store.Kind) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ctx == nil {
		return
	}
	e.msgTask.stop()
	e.activeID = conversationID
	e.msgTask = startTask(e.ctx, "messages/"+conversationID, e.messageInterval,
		func(ctx context.Context) { e.refreshMessages(ctx, conversationID, kind) })
}

// CloseConversation stops the message poller and clears the active id.
func (e *Engine) CloseConversation() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.msgTask.stop()
	e.msgTask = nil
	e.activeID = ""
}

// ActiveConversation returns the id of the open conversation, if any.
func (e *Engine) ActiveConversation() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activeID
}

func (e *Engine) refreshList(ctx context.Context) {
	list, err := e.backend.ListConversations(ctx)
	if err != nil {
		// Transient: the store stays as-is, the next tick retries.
		e.logger.Warn("list poll failed", zap.Error(err))
		return
	}
	e.convs.UpsertFromRemote(list, e.msgs.HasPending)
	e.publish(bus.TopicConversationsRefreshed, len(list))
}

func (e *Engine) refreshMessages(ctx context.Context, conversationID string, kind store.Kind) {
	msgs, err := e.backend.ListMessages(ctx, conversationID, kind)
	if err != nil {
		e.logger.Warn("message poll failed",
			zap.String("conversation_id", conversationID), zap.Error(err))
		return
	}

	// Stale-response guard: the check happens at response time, not call
	// time. A response for a conversation no longer active is discarded, not
	// an error.
	e.mu.Lock()
	active := e.activeID == conversationID
	e.mu.Unlock()
	if !active {
		e.logger.Debug("discarding stale message poll response",
			zap.String("conversation_id", conversationID))
		return
	}

	e.msgs.MergeRemote(conversationID, msgs)
	e.publish(bus.TopicMessagesRefreshed, conversationID)

	if e.tracker != nil {
		e.tracker.Observe(ctx, conversationID, e.msgs.Snapshot(conversationID))
	}
}

func (e *Engine) publish(topic string, payload any) {
	if e.bus != nil {
		e.bus.Publish(bus.NewEvent(topic, payload))
	}
}
