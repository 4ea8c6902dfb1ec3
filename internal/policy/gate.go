// Package policy enforces block state before sends, independent of server
// round-trip latency.
package policy

import (
	"context"
	"fmt"

	"github.com/pmartins/studychat/internal/bus"
	"github.com/pmartins/studychat/internal/store"
	"go.uber.org/zap"
)

// Blocker is the remote side of block/unblock.
type Blocker interface {
	Block(ctx context.Context, userID string) error
	Unblock(ctx context.Context, userID string) error
}

// BlockCache persists the cached blocked flag across restarts.
type BlockCache interface {
	SetBlocked(conversationID string, blocked bool) error
}

// Gate answers "may this user be messaged" from local state only.
type Gate struct {
	convs   *store.ConversationStore
	backend Blocker
	cache   BlockCache
	bus     *bus.Bus
	logger  *zap.Logger
}

// NewGate creates a policy gate. cache may be nil (no persistence).
func NewGate(convs *store.ConversationStore, backend Blocker, cache BlockCache, b *bus.Bus, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{convs: convs, backend: backend, cache: cache, bus: b, logger: logger}
}

// CanSend reports whether the conversation's cached blocked flag allows a
// send. No network involved.
func (g *Gate) CanSend(conversationID string) bool {
	return !g.convs.IsBlocked(conversationID)
}

// Block calls the remote store and sets the local flag on success only.
// Sending while a block is still pending is the failure mode this guards
// against, so there is no optimistic path here.
func (g *Gate) Block(ctx context.Context, conversationID string) error {
	if err := g.backend.Block(ctx, conversationID); err != nil {
		return fmt.Errorf("block %s: %w", conversationID, err)
	}
	return g.applied(conversationID, true)
}

// Unblock mirrors Block.
func (g *Gate) Unblock(ctx context.Context, conversationID string) error {
	if err := g.backend.Unblock(ctx, conversationID); err != nil {
		return fmt.Errorf("unblock %s: %w", conversationID, err)
	}
	return g.applied(conversationID, false)
}

func (g *Gate) applied(conversationID string, blocked bool) error {
	g.convs.SetBlocked(conversationID, blocked)
	if g.cache != nil {
		if err := g.cache.SetBlocked(conversationID, blocked); err != nil {
			g.logger.Warn("failed to persist block state",
				zap.String("conversation_id", conversationID), zap.Error(err))
		}
	}
	if g.bus != nil {
		g.bus.Publish(bus.NewEvent(bus.TopicPolicyChanged, map[string]any{
			"conversation_id": conversationID,
			"blocked":         blocked,
		}))
	}
	return nil
}
