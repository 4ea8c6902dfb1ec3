package api

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pmartins/studychat/internal/bus"
	"github.com/pmartins/studychat/internal/outbox"
	"github.com/pmartins/studychat/internal/policy"
	"github.com/pmartins/studychat/internal/receipt"
	"github.com/pmartins/studychat/internal/rest"
	"github.com/pmartins/studychat/internal/status"
	"github.com/pmartins/studychat/internal/store"
	enginesync "github.com/pmartins/studychat/internal/sync"
)

// fakeBackend implements every remote-facing interface the view's
// components consume.
type fakeBackend struct {
	mu           sync.Mutex
	sendErr      error
	clearErr     error
	deleteErr    error
	cleared      []string
	deleted      []string
	marked       []string
	groupCreated *rest.CreateGroupRequest
}

func (f *fakeBackend) ListConversations(context.Context) ([]*store.Conversation, error) {
	return nil, nil
}

func (f *fakeBackend) ListMessages(context.Context, string, store.Kind) ([]*store.Message, error) {
	return nil, nil
}

func (f *fakeBackend) SendMessage(_ context.Context, req rest.SendRequest) (*store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &store.Message{
		ID:             "srv-1",
		ConversationID: req.To,
		SenderID:       store.SelfSenderID,
		Content:        req.Content,
		Status:         status.Sent,
	}, nil
}

func (f *fakeBackend) MarkRead(_ context.Context, conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marked = append(f.marked, conversationID)
	return nil
}

func (f *fakeBackend) Block(context.Context, string) error   { return nil }
func (f *fakeBackend) Unblock(context.Context, string) error { return nil }

func (f *fakeBackend) ClearHistory(_ context.Context, conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clearErr != nil {
		return f.clearErr
	}
	f.cleared = append(f.cleared, conversationID)
	return nil
}

func (f *fakeBackend) DeleteConversation(_ context.Context, conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, conversationID)
	return nil
}

func (f *fakeBackend) CreateGroup(_ context.Context, req rest.CreateGroupRequest) (*store.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groupCreated = &req
	return &store.Conversation{ID: "g1", Kind: store.KindGroup, DisplayName: req.Name}, nil
}

type fakeOverlayWriter struct {
	mu      sync.Mutex
	flags   map[string]map[store.Flag]bool
	removed []string
	err     error
}

func newFakeOverlayWriter() *fakeOverlayWriter {
	return &fakeOverlayWriter{flags: make(map[string]map[store.Flag]bool)}
}

func (f *fakeOverlayWriter) SetFlag(id string, flag store.Flag, value bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.flags[id] == nil {
		f.flags[id] = make(map[store.Flag]bool)
	}
	f.flags[id][flag] = value
	return nil
}

func (f *fakeOverlayWriter) Remove(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, id)
	return nil
}

type fixture struct {
	view    *View
	backend *fakeBackend
	convs   *store.ConversationStore
	msgs    *store.MessageStore
	engine  *enginesync.Engine
	prefs   *fakeOverlayWriter
	bus     *bus.Bus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend := &fakeBackend{}
	convs := store.NewConversationStore(nil)
	msgs := store.NewMessageStore(nil)
	b := bus.New()
	gate := policy.NewGate(convs, backend, nil, b, nil)
	tracker := receipt.NewTracker(backend, b, nil)
	sends := outbox.NewController(msgs, gate, backend, b, nil)
	engine := enginesync.NewEngine(backend, convs, msgs, tracker, b, nil, time.Hour, time.Hour)
	prefs := newFakeOverlayWriter()
	view := NewView(convs, msgs, engine, sends, gate, tracker, backend, prefs, nil)
	return &fixture{view: view, backend: backend, convs: convs, msgs: msgs, engine: engine, prefs: prefs, bus: b}
}

func TestSendToNewPeerCreatesLocalConversation(t *testing.T) {
	f := newFixture(t)

	tempID, err := f.view.Send(context.Background(), "fresh-peer", store.KindDirect, "oi", nil)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if _, ok := f.convs.Get("fresh-peer"); !ok {
		t.Error("first send to an unknown peer must create a local conversation")
	}
	snap := f.msgs.Snapshot("fresh-peer")
	if len(snap) != 1 || snap[0].ID != tempID {
		t.Errorf("messages = %v, want single pending entry %s", snap, tempID)
	}
}

func TestSendToKnownConversationDoesNotReinsert(t *testing.T) {
	f := newFixture(t)
	f.convs.UpsertFromRemote([]*store.Conversation{{ID: "u1", DisplayName: "Ana"}}, nil)

	if _, err := f.view.Send(context.Background(), "u1", store.KindDirect, "oi", nil); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	c, _ := f.convs.Get("u1")
	if c.DisplayName != "Ana" {
		t.Errorf("existing conversation overwritten by send: %+v", c)
	}
}

func TestToggleFlagsWriteThrough(t *testing.T) {
	f := newFixture(t)
	f.convs.UpsertFromRemote([]*store.Conversation{{ID: "u1"}}, nil)

	if err := f.view.TogglePin("u1", true); err != nil {
		t.Fatalf("TogglePin() error = %v", err)
	}
	if err := f.view.ToggleMute("u1", true); err != nil {
		t.Fatalf("ToggleMute() error = %v", err)
	}
	if err := f.view.ToggleMarkUnread("u1", true); err != nil {
		t.Fatalf("ToggleMarkUnread() error = %v", err)
	}

	c, _ := f.convs.Get("u1")
	if !c.Pinned || !c.Muted || !c.MarkedUnread {
		t.Errorf("overlay flags not applied: %+v", c)
	}
	f.prefs.mu.Lock()
	defer f.prefs.mu.Unlock()
	for _, flag := range []store.Flag{store.FlagPinned, store.FlagMuted, store.FlagMarkedUnread} {
		if !f.prefs.flags["u1"][flag] {
			t.Errorf("flag %s not persisted", flag)
		}
	}
}

func TestToggleFlagUnknownConversation(t *testing.T) {
	f := newFixture(t)
	if err := f.view.TogglePin("ghost", true); err == nil {
		t.Error("TogglePin() on an unknown conversation must fail")
	}
}

func TestPersistenceFailureDoesNotFailToggle(t *testing.T) {
	f := newFixture(t)
	f.convs.UpsertFromRemote([]*store.Conversation{{ID: "u1"}}, nil)
	f.prefs.err = errors.New("disk full")

	if err := f.view.TogglePin("u1", true); err != nil {
		t.Fatalf("TogglePin() error = %v, want nil despite persistence failure", err)
	}
	c, _ := f.convs.Get("u1")
	if !c.Pinned {
		t.Error("in-memory flag must still be applied")
	}
}

func TestClearHistoryRemoteFirst(t *testing.T) {
	f := newFixture(t)
	f.msgs.MergeRemote("u1", []*store.Message{{ID: "m1", SenderID: "peer", Status: status.Sent}})

	f.backend.clearErr = errors.New("backend down")
	if err := f.view.ClearHistory(context.Background(), "u1"); err == nil {
		t.Fatal("ClearHistory() must surface the remote failure")
	}
	if len(f.msgs.Snapshot("u1")) != 1 {
		t.Error("log must be untouched when the remote clear fails")
	}

	f.backend.clearErr = nil
	if err := f.view.ClearHistory(context.Background(), "u1"); err != nil {
		t.Fatalf("ClearHistory() error = %v", err)
	}
	if len(f.msgs.Snapshot("u1")) != 0 {
		t.Error("log must be empty after a successful clear")
	}
}

func TestDeleteConversationRemovesEverything(t *testing.T) {
	f := newFixture(t)
	f.convs.UpsertFromRemote([]*store.Conversation{{ID: "u1"}}, nil)
	f.msgs.MergeRemote("u1", []*store.Message{{ID: "m1", SenderID: "peer", Status: status.Sent}})

	if err := f.view.DeleteConversation(context.Background(), "u1"); err != nil {
		t.Fatalf("DeleteConversation() error = %v", err)
	}
	if _, ok := f.convs.Get("u1"); ok {
		t.Error("conversation still present after delete")
	}
	if len(f.msgs.Snapshot("u1")) != 0 {
		t.Error("message log still present after delete")
	}
	f.prefs.mu.Lock()
	defer f.prefs.mu.Unlock()
	if len(f.prefs.removed) != 1 || f.prefs.removed[0] != "u1" {
		t.Errorf("persisted overlay not removed: %v", f.prefs.removed)
	}
}

func TestCreateGroupInsertsLocally(t *testing.T) {
	f := newFixture(t)

	conv, err := f.view.CreateGroup(context.Background(), "estudos", []string{"u1", "u2"})
	if err != nil {
		t.Fatalf("CreateGroup() error = %v", err)
	}
	if conv.Kind != store.KindGroup {
		t.Errorf("created conversation kind = %s, want group", conv.Kind)
	}
	if _, ok := f.convs.Get(conv.ID); !ok {
		t.Error("new group must show up in the store before the next list poll")
	}
	if f.backend.groupCreated == nil || f.backend.groupCreated.Name != "estudos" {
		t.Errorf("group request = %+v", f.backend.groupCreated)
	}
}

func TestMarkReadIfNeededTargetsActiveConversation(t *testing.T) {
	f := newFixture(t)
	f.msgs.MergeRemote("u1", []*store.Message{{ID: "m1", SenderID: "peer", Status: status.Sent}})

	// No active conversation: nothing happens.
	f.view.MarkReadIfNeeded(context.Background())
	time.Sleep(20 * time.Millisecond)
	f.backend.mu.Lock()
	if len(f.backend.marked) != 0 {
		t.Errorf("markRead fired with no active conversation: %v", f.backend.marked)
	}
	f.backend.mu.Unlock()

	f.engine.Mount(context.Background())
	defer f.engine.Unmount()
	f.view.OpenConversation("u1", store.KindDirect)
	f.view.MarkReadIfNeeded(context.Background())

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		f.backend.mu.Lock()
		n := len(f.backend.marked)
		f.backend.mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	f.backend.mu.Lock()
	defer f.backend.mu.Unlock()
	if len(f.backend.marked) == 0 || f.backend.marked[0] != "u1" {
		t.Errorf("markRead calls = %v, want one for u1", f.backend.marked)
	}
}
