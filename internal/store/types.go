package store

import (
	"strings"

	"github.com/pmartins/studychat/internal/status"
)

// Kind discriminates direct and group conversations.
type Kind string

const (
	KindDirect Kind = "direct"
	KindGroup  Kind = "group"
)

// Presence mirrors the remote presence indicator for direct chats.
type Presence string

const (
	PresenceOnline  Presence = "online"
	PresenceBusy    Presence = "busy"
	PresenceAway    Presence = "away"
	PresenceOffline Presence = "offline"
)

// AttachmentKind tags the normalized attachment variant.
type AttachmentKind string

const (
	AttachmentImage AttachmentKind = "image"
	AttachmentFile  AttachmentKind = "file"
)

// Attachment is the single normalized attachment shape. The wire format is
// normalized into this at the rest boundary; nothing past it branches on
// payload shape.
type Attachment struct {
	Kind AttachmentKind
	Name string
	URL  string
}

// Flag names a locally-owned conversation overlay flag. The remote store has
// no concept of these, so list refreshes must never touch them.
type Flag string

const (
	FlagPinned       Flag = "pinned"
	FlagMuted        Flag = "muted"
	FlagMarkedUnread Flag = "marked_unread"
)

// Conversation is one entry in the conversation list. Remote-derived fields
// are overwritten wholesale on every list refresh; the overlay flags and
// nothing else survive refreshes.
type Conversation struct {
	ID                 string
	Kind               Kind
	DisplayName        string
	AvatarRef          string
	LastMessagePreview string
	LastMessageAt      int64
	UnreadCount        int

	// Overlay flags, locally owned.
	Pinned       bool
	Muted        bool
	MarkedUnread bool

	// Blocked is set by an explicit block/unblock call and echoed by the
	// remote store on the next full refresh.
	Blocked bool

	Presence    Presence // direct only
	MemberCount int      // group only
}

// SelfSenderID is the sender id the remote store uses for the current user.
const SelfSenderID = "me"

// TempIDPrefix marks locally-generated message ids that have not yet been
// swapped for a remote-assigned id.
const TempIDPrefix = "temp:"

// Message is one entry in a conversation log.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	Content        string
	Attachment     *Attachment
	Status         status.Status
	CreatedAt      int64
}

// FromMe reports whether the message was authored by the current user.
func (m *Message) FromMe() bool {
	return m.SenderID == SelfSenderID
}

// IsPending reports whether the message still carries a temporary id.
func (m *Message) IsPending() bool {
	return strings.HasPrefix(m.ID, TempIDPrefix)
}
