// Package api is the engine's in-process surface for the presentation
// layer: read-only store snapshots plus the action entry points. There is no
// IPC here; the UI links the engine and subscribes to the bus for change
// notification.
package api

import (
	"context"
	"fmt"

	"github.com/pmartins/studychat/internal/outbox"
	"github.com/pmartins/studychat/internal/policy"
	"github.com/pmartins/studychat/internal/receipt"
	"github.com/pmartins/studychat/internal/rest"
	"github.com/pmartins/studychat/internal/store"
	enginesync "github.com/pmartins/studychat/internal/sync"
	"go.uber.org/zap"
)

// Remote is the slice of backend operations the view calls directly
// (everything not already owned by a dedicated component).
type Remote interface {
	ClearHistory(ctx context.Context, conversationID string) error
	DeleteConversation(ctx context.Context, conversationID string) error
	CreateGroup(ctx context.Context, req rest.CreateGroupRequest) (*store.Conversation, error)
}

// OverlayWriter persists overlay flag changes. May be nil.
type OverlayWriter interface {
	SetFlag(conversationID string, flag store.Flag, value bool) error
	Remove(conversationID string) error
}

// View wires the stores and components into the surface the UI renders from.
type View struct {
	convs   *store.ConversationStore
	msgs    *store.MessageStore
	engine  *enginesync.Engine
	sends   *outbox.Controller
	gate    *policy.Gate
	tracker *receipt.Tracker
	remote  Remote
	prefs   OverlayWriter
	logger  *zap.Logger
}

// NewView assembles the presentation surface.
func NewView(convs *store.ConversationStore, msgs *store.MessageStore,
	engine *enginesync.Engine, sends *outbox.Controller, gate *policy.Gate,
	tracker *receipt.Tracker, remote Remote, prefs OverlayWriter, logger *zap.Logger) *View {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &View{
		convs:   convs,
		msgs:    msgs,
		engine:  engine,
		sends:   sends,
		gate:    gate,
		tracker: tracker,
		remote:  remote,
		prefs:   prefs,
		logger:  logger,
	}
}

// Conversations returns the current conversation list, pinned first.
func (v *View) Conversations() []store.Conversation {
	return v.convs.Snapshot()
}

// Messages returns the current log for a conversation.
func (v *View) Messages(conversationID string) []store.Message {
	return v.msgs.Snapshot(conversationID)
}

// OpenConversation makes a conversation active and starts its message poll.
func (v *View) OpenConversation(conversationID string, kind store.Kind) {
	v.engine.OpenConversation(conversationID, kind)
}

// CloseConversation stops the active message poll.
func (v *View) CloseConversation() {
	v.engine.CloseConversation()
}

// Send dispatches an optimistic send. For a first message to a peer with no
// history the conversation is created locally and reconciled by the next
// list poll.
func (v *View) Send(ctx context.Context, conversationID string, kind store.Kind, content string, attachment *store.Attachment) (string, error) {
	if _, ok := v.convs.Get(conversationID); !ok {
		v.convs.InsertLocalOnly(&store.Conversation{ID: conversationID, Kind: kind})
	}
	return v.sends.Send(ctx, conversationID, kind, content, attachment)
}

// MarkReadIfNeeded nudges the read-receipt tracker for the active
// conversation.
func (v *View) MarkReadIfNeeded(ctx context.Context) {
	active := v.engine.ActiveConversation()
	if active == "" {
		return
	}
	v.tracker.Observe(ctx, active, v.msgs.Snapshot(active))
}

// TogglePin flips the pinned overlay flag, write-through.
func (v *View) TogglePin(conversationID string, pinned bool) error {
	return v.setFlag(conversationID, store.FlagPinned, pinned)
}

// ToggleMute flips the muted overlay flag, write-through.
func (v *View) ToggleMute(conversationID string, muted bool) error {
	return v.setFlag(conversationID, store.FlagMuted, muted)
}

// ToggleMarkUnread flips the marked-unread overlay flag, write-through.
func (v *View) ToggleMarkUnread(conversationID string, marked bool) error {
	return v.setFlag(conversationID, store.FlagMarkedUnread, marked)
}

func (v *View) setFlag(conversationID string, flag store.Flag, value bool) error {
	if !v.convs.ApplyLocalFlag(conversationID, flag, value) {
		return fmt.Errorf("unknown conversation %q", conversationID)
	}
	if v.prefs != nil {
		if err := v.prefs.SetFlag(conversationID, flag, value); err != nil {
			v.logger.Warn("failed to persist overlay flag",
				zap.String("conversation_id", conversationID),
				zap.String("flag", string(flag)), zap.Error(err))
		}
	}
	return nil
}

// Block blocks the peer; local flag set on remote success only.
func (v *View) Block(ctx context.Context, conversationID string) error {
	return v.gate.Block(ctx, conversationID)
}

// Unblock unblocks the peer.
func (v *View) Unblock(ctx context.Context, conversationID string) error {
	return v.gate.Unblock(ctx, conversationID)
}

// ClearHistory clears the conversation's log, remote first, local on
// success (atomic whole-log clear).
func (v *View) ClearHistory(ctx context.Context, conversationID string) error {
	if err := v.remote.ClearHistory(ctx, conversationID); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	v.msgs.Clear(conversationID)
	return nil
}

// DeleteConversation removes the conversation and everything local to it.
func (v *View) DeleteConversation(ctx context.Context, conversationID string) error {
	if err := v.remote.DeleteConversation(ctx, conversationID); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	v.convs.Delete(conversationID)
	v.msgs.Drop(conversationID)
	if v.prefs != nil {
		if err := v.prefs.Remove(conversationID); err != nil {
			v.logger.Warn("failed to drop persisted overlay",
				zap.String("conversation_id", conversationID), zap.Error(err))
		}
	}
	return nil
}

// CreateGroup creates a group remotely and inserts it locally; the next
// list poll merges it by id.
func (v *View) CreateGroup(ctx context.Context, name string, memberIDs []string) (store.Conversation, error) {
	conv, err := v.remote.CreateGroup(ctx, rest.CreateGroupRequest{Name: name, MemberIDs: memberIDs})
	if err != nil {
		return store.Conversation{}, fmt.Errorf("create group: %w", err)
	}
	v.convs.InsertLocalOnly(conv)
	return *conv, nil
}
