package store

import "testing"

func remoteList(ids ...string) []*Conversation {
	var out []*Conversation
	for i, id := range ids {
		out = append(out, &Conversation{
			ID:            id,
			Kind:          KindDirect,
			DisplayName:   "User " + id,
			LastMessageAt: int64(1000 * (i + 1)),
		})
	}
	return out
}

func TestUpsertFromRemotePreservesOverlayFlags(t *testing.T) {
	s := NewConversationStore(nil)
	s.UpsertFromRemote(remoteList("a", "b"), nil)

	if !s.ApplyLocalFlag("a", FlagPinned, true) {
		t.Fatal("ApplyLocalFlag failed for existing conversation")
	}
	s.ApplyLocalFlag("a", FlagMuted, true)
	s.ApplyLocalFlag("b", FlagMarkedUnread, true)

	// Any number of refreshes must leave the overlay untouched.
	for i := 0; i < 5; i++ {
		s.UpsertFromRemote(remoteList("a", "b"), nil)
	}

	a, _ := s.Get("a")
	if !a.Pinned || !a.Muted {
		t.Errorf("overlay flags lost on refresh: pinned=%v muted=%v", a.Pinned, a.Muted)
	}
	b, _ := s.Get("b")
	if !b.MarkedUnread {
		t.Error("marked-unread flag lost on refresh")
	}
}

func TestUpsertFromRemoteOverwritesRemoteFields(t *testing.T) {
	s := NewConversationStore(nil)
	s.UpsertFromRemote([]*Conversation{{ID: "a", LastMessagePreview: "old", UnreadCount: 1}}, nil)
	s.UpsertFromRemote([]*Conversation{{ID: "a", LastMessagePreview: "new", UnreadCount: 3}}, nil)

	a, _ := s.Get("a")
	if a.LastMessagePreview != "new" || a.UnreadCount != 3 {
		t.Errorf("remote fields not overwritten: %+v", a)
	}
}

func TestUpsertFromRemoteDropsAbsentConversations(t *testing.T) {
	s := NewConversationStore(nil)
	s.UpsertFromRemote(remoteList("a", "b"), nil)
	s.UpsertFromRemote(remoteList("a"), func(string) bool { return false })

	if _, ok := s.Get("b"); ok {
		t.Error("conversation absent from remote list should be dropped")
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestUpsertFromRemoteRetainsPendingConversations(t *testing.T) {
	s := NewConversationStore(nil)
	s.InsertLocalOnly(&Conversation{ID: "new-peer", Kind: KindDirect})

	s.UpsertFromRemote(remoteList("a"), func(id string) bool { return id == "new-peer" })

	if _, ok := s.Get("new-peer"); !ok {
		t.Error("conversation with pending outbound messages should be retained")
	}
}

func TestInsertLocalOnlyMergedWithoutDuplication(t *testing.T) {
	s := NewConversationStore(nil)
	s.InsertLocalOnly(&Conversation{ID: "peer", Kind: KindDirect, DisplayName: "local"})
	s.ApplyLocalFlag("peer", FlagPinned, true)

	// Next poll includes the peer: merged by id, one entry, overlay kept.
	s.UpsertFromRemote([]*Conversation{{ID: "peer", Kind: KindDirect, DisplayName: "remote", UnreadCount: 2}}, nil)

	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (no duplication)", s.Len())
	}
	c, _ := s.Get("peer")
	if c.DisplayName != "remote" {
		t.Errorf("DisplayName = %q, want remote-derived value", c.DisplayName)
	}
	if !c.Pinned {
		t.Error("overlay flag lost when local-only conversation was merged")
	}
}

func TestInsertLocalOnlyDoesNotClobberExisting(t *testing.T) {
	s := NewConversationStore(nil)
	s.UpsertFromRemote(remoteList("a"), nil)
	s.ApplyLocalFlag("a", FlagPinned, true)

	s.InsertLocalOnly(&Conversation{ID: "a"})

	a, _ := s.Get("a")
	if !a.Pinned {
		t.Error("InsertLocalOnly replaced an existing conversation")
	}
}

func TestApplyLocalFlagIdempotent(t *testing.T) {
	s := NewConversationStore(nil)
	s.UpsertFromRemote(remoteList("a"), nil)

	s.ApplyLocalFlag("a", FlagMuted, true)
	s.ApplyLocalFlag("a", FlagMuted, true)

	a, _ := s.Get("a")
	if !a.Muted {
		t.Error("flag not set")
	}

	if s.ApplyLocalFlag("missing", FlagMuted, true) {
		t.Error("ApplyLocalFlag on unknown conversation should report false")
	}
}

func TestSnapshotOrdering(t *testing.T) {
	s := NewConversationStore(nil)
	s.UpsertFromRemote([]*Conversation{
		{ID: "old", LastMessageAt: 100},
		{ID: "new", LastMessageAt: 300},
		{ID: "mid", LastMessageAt: 200},
	}, nil)
	s.ApplyLocalFlag("old", FlagPinned, true)

	snap := s.Snapshot()
	got := []string{snap[0].ID, snap[1].ID, snap[2].ID}
	want := []string{"old", "new", "mid"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("snapshot order = %v, want %v (pinned first, then recency)", got, want)
		}
	}
}

func TestBlockedFlag(t *testing.T) {
	s := NewConversationStore(nil)
	s.UpsertFromRemote(remoteList("a"), nil)

	if s.IsBlocked("a") {
		t.Error("fresh conversation should not be blocked")
	}
	if !s.SetBlocked("a", true) {
		t.Fatal("SetBlocked failed")
	}
	if !s.IsBlocked("a") {
		t.Error("blocked flag not set")
	}

	// The remote store echoes the flag on the next refresh.
	s.UpsertFromRemote([]*Conversation{{ID: "a", Blocked: true}}, nil)
	if !s.IsBlocked("a") {
		t.Error("blocked flag lost on refresh that echoes it")
	}
}

func TestDelete(t *testing.T) {
	s := NewConversationStore(nil)
	s.UpsertFromRemote(remoteList("a"), nil)

	if !s.Delete("a") {
		t.Error("Delete reported false for existing conversation")
	}
	if s.Delete("a") {
		t.Error("Delete reported true for missing conversation")
	}
}
