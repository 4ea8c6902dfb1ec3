package store

import (
	"sync"

	"github.com/pmartins/studychat/internal/status"
	"go.uber.org/zap"
)

// conversationLog holds one conversation's ordered message log. Confirmed
// messages keep the insertion order of the remote payloads; pending messages
// always render after the last confirmed one. byID indexes both so the
// temp-to-durable swap is O(1).
type conversationLog struct {
	confirmed []*Message
	pending   []*Message
	byID      map[string]*Message
}

func newConversationLog() *conversationLog {
	return &conversationLog{byID: make(map[string]*Message)}
}

// MessageStore is the per-conversation ordered message log, holding both
// remote-confirmed and locally-pending entries.
type MessageStore struct {
	mu     sync.RWMutex
	logs   map[string]*conversationLog
	logger *zap.Logger
}

// NewMessageStore creates an empty message store.
func NewMessageStore(logger *zap.Logger) *MessageStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessageStore{
		logs:   make(map[string]*conversationLog),
		logger: logger,
	}
}

func (s *MessageStore) log(conversationID string) *conversationLog {
	l, ok := s.logs[conversationID]
	if !ok {
		l = newConversationLog()
		s.logs[conversationID] = l
	}
	return l
}

// MergeRemote merges a remote message payload into the conversation log.
// Unknown ids are appended in payload order; known ids only advance status
// (monotonically for everyone, regressions logged and ignored). The merge is
// idempotent and commutative with the send reconciliation path: a send
// response and a poll carrying the same confirmed message never double it,
// because the send response is the sole authority for converting a temp id
// and this merge is additive-only for ids not yet known.
func (s *MessageStore) MergeRemote(conversationID string, remote []*Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.log(conversationID)
	for _, rm := range remote {
		cur, ok := l.byID[rm.ID]
		if !ok {
			cp := *rm
			cp.ConversationID = conversationID
			l.confirmed = append(l.confirmed, &cp)
			l.byID[cp.ID] = &cp
			continue
		}
		next, regressed := status.Merge(cur.Status, rm.Status)
		if regressed {
			s.logger.Warn("remote reported status regression, ignoring",
				zap.String("conversation_id", conversationID),
				zap.String("msg_id", rm.ID),
				zap.String("held", string(cur.Status)),
				zap.String("reported", string(rm.Status)))
		}
		cur.Status = next
	}
}

// AppendPending appends an optimistic outbound message. The caller owns id
// generation (temp:<counter>).
func (s *MessageStore) AppendPending(msg *Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.log(msg.ConversationID)
	cp := *msg
	cp.Status = status.Pending
	l.pending = append(l.pending, &cp)
	l.byID[cp.ID] = &cp
}

// ConfirmPending swaps a temporary id for the remote-assigned one, in place:
// the same record object moves to the confirmed tail, which is exactly the
// position it rendered at while pending. If a concurrent poll already merged
// the remote id, the temp entry is dropped instead so the logical message
// exists exactly once. Reports whether the temp entry was found.
func (s *MessageStore) ConfirmPending(conversationID, tempID string, remote *Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.logs[conversationID]
	if !ok {
		return false
	}
	p, ok := l.byID[tempID]
	if !ok {
		return false
	}

	l.pending = removeMessage(l.pending, p)
	delete(l.byID, tempID)

	if _, dup := l.byID[remote.ID]; dup {
		// The poll fetched the confirmed message before the send response
		// landed. The poll's entry wins; the placeholder just goes away.
		s.logger.Debug("send response arrived after poll confirmed the message",
			zap.String("conversation_id", conversationID),
			zap.String("msg_id", remote.ID))
		return true
	}

	p.ID = remote.ID
	next, _ := status.Merge(p.Status, remote.Status)
	p.Status = next
	if remote.CreatedAt != 0 {
		p.CreatedAt = remote.CreatedAt
	}
	l.confirmed = append(l.confirmed, p)
	l.byID[p.ID] = p
	return true
}

// RemovePending rolls back an optimistic message after a send failure. The
// entry is removed entirely; no failed-state message lingers in the log.
func (s *MessageStore) RemovePending(conversationID, tempID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.logs[conversationID]
	if !ok {
		return false
	}
	p, ok := l.byID[tempID]
	if !ok {
		return false
	}
	l.pending = removeMessage(l.pending, p)
	delete(l.byID, tempID)
	return true
}

// HasPending reports whether the conversation has unreconciled outbound
// messages.
func (s *MessageStore) HasPending(conversationID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.logs[conversationID]
	return ok && len(l.pending) > 0
}

// Clear atomically empties a conversation's log.
func (s *MessageStore) Clear(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.logs[conversationID]; ok {
		s.logs[conversationID] = newConversationLog()
	}
}

// Drop forgets a conversation's log entirely (conversation deleted).
func (s *MessageStore) Drop(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.logs, conversationID)
}

// Snapshot returns a copy of the conversation log: confirmed messages in
// merge order, then pending ones.
func (s *MessageStore) Snapshot(conversationID string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.logs[conversationID]
	if !ok {
		return nil
	}
	out := make([]Message, 0, len(l.confirmed)+len(l.pending))
	for _, m := range l.confirmed {
		out = append(out, *m)
	}
	for _, m := range l.pending {
		out = append(out, *m)
	}
	return out
}

func removeMessage(list []*Message, target *Message) []*Message {
	for i, m := range list {
		if m == target {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
