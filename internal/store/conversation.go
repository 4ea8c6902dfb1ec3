package store

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// ConversationStore is the canonical in-memory table of conversations
// visible to the current user. The remote list is authoritative for
// existence and for every remote-derived field; the overlay flags are
// locally owned and survive refreshes.
type ConversationStore struct {
	mu     sync.RWMutex
	byID   map[string]*Conversation
	seed   map[string]OverlayState
	logger *zap.Logger
}

// OverlayState is a persisted overlay snapshot, applied once when its
// conversation first appears in the store.
type OverlayState struct {
	Pinned       bool
	Muted        bool
	MarkedUnread bool
	Blocked      bool
}

// NewConversationStore creates an empty conversation store.
func NewConversationStore(logger *zap.Logger) *ConversationStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversationStore{
		byID:   make(map[string]*Conversation),
		seed:   make(map[string]OverlayState),
		logger: logger,
	}
}

// RestoreOverlays registers persisted overlay state to apply when the named
// conversations first show up (on the initial list poll after a restart).
func (s *ConversationStore) RestoreOverlays(overlays map[string]OverlayState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, o := range overlays {
		if c, ok := s.byID[id]; ok {
			applyOverlay(c, o)
			continue
		}
		s.seed[id] = o
	}
}

func applyOverlay(c *Conversation, o OverlayState) {
	c.Pinned = o.Pinned
	c.Muted = o.Muted
	c.MarkedUnread = o.MarkedUnread
	if o.Blocked {
		c.Blocked = true
	}
}

// UpsertFromRemote replaces remote-derived fields for every conversation in
// the remote list, preserving overlay flags for conversations already held.
// Conversations absent from the remote list are dropped unless hasPending
// reports unreconciled outbound messages for them.
func (s *ConversationStore) UpsertFromRemote(list []*Conversation, hasPending func(id string) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(list))
	for _, rc := range list {
		seen[rc.ID] = struct{}{}
		cur, ok := s.byID[rc.ID]
		if !ok {
			cp := *rc
			if o, seeded := s.seed[cp.ID]; seeded {
				applyOverlay(&cp, o)
				delete(s.seed, cp.ID)
			}
			s.byID[cp.ID] = &cp
			continue
		}
		pinned, muted, marked := cur.Pinned, cur.Muted, cur.MarkedUnread
		*cur = *rc
		cur.Pinned, cur.Muted, cur.MarkedUnread = pinned, muted, marked
	}

	for id := range s.byID {
		if _, ok := seen[id]; ok {
			continue
		}
		if hasPending != nil && hasPending(id) {
			s.logger.Debug("retaining conversation absent from remote list",
				zap.String("conversation_id", id))
			continue
		}
		delete(s.byID, id)
	}
}

// ApplyLocalFlag mutates a single overlay flag. Idempotent; reports whether
// the conversation exists.
func (s *ConversationStore) ApplyLocalFlag(id string, flag Flag, value bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byID[id]
	if !ok {
		return false
	}
	switch flag {
	case FlagPinned:
		c.Pinned = value
	case FlagMuted:
		c.Muted = value
	case FlagMarkedUnread:
		c.MarkedUnread = value
	default:
		s.logger.Warn("unknown overlay flag", zap.String("flag", string(flag)))
		return false
	}
	return true
}

// SetBlocked updates the cached blocked flag for a conversation.
func (s *ConversationStore) SetBlocked(id string, blocked bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byID[id]
	if !ok {
		return false
	}
	c.Blocked = blocked
	return true
}

// InsertLocalOnly adds a conversation started locally with a peer that has
// no prior history. The next list refresh merges it by id without
// duplication. No-op if the id is already present.
func (s *ConversationStore) InsertLocalOnly(conv *Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[conv.ID]; ok {
		return
	}
	cp := *conv
	if o, seeded := s.seed[cp.ID]; seeded {
		applyOverlay(&cp, o)
		delete(s.seed, cp.ID)
	}
	s.byID[cp.ID] = &cp
}

// Delete removes a conversation. Reports whether it existed.
func (s *ConversationStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.byID[id]
	delete(s.byID, id)
	return ok
}

// Get returns a copy of the conversation with the given id.
func (s *ConversationStore) Get(id string) (Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.byID[id]
	if !ok {
		return Conversation{}, false
	}
	return *c, true
}

// IsBlocked returns the cached blocked flag. Unknown conversations are not
// blocked.
func (s *ConversationStore) IsBlocked(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.byID[id]
	return ok && c.Blocked
}

// Snapshot returns a copy of every conversation, pinned first, then by last
// message timestamp descending.
func (s *ConversationStore) Snapshot() []Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Conversation, 0, len(s.byID))
	for _, c := range s.byID {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Pinned != out[j].Pinned {
			return out[i].Pinned
		}
		if out[i].LastMessageAt != out[j].LastMessageAt {
			return out[i].LastMessageAt > out[j].LastMessageAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Len returns the number of conversations held.
func (s *ConversationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
