package rest

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/pmartins/studychat/internal/status"
	"github.com/pmartins/studychat/internal/store"
)

type wireConversation struct {
	ID                 string `json:"id"`
	Kind               string `json:"kind"`
	DisplayName        string `json:"display_name"`
	AvatarRef          string `json:"avatar_ref"`
	LastMessagePreview string `json:"last_message_preview"`
	LastMessageAt      int64  `json:"last_message_at"`
	UnreadCount        int    `json:"unread_count"`
	IsBlocked          bool   `json:"is_blocked"`
	Presence           string `json:"presence"`
	MemberCount        int    `json:"member_count"`
}

func (w *wireConversation) toStore() *store.Conversation {
	kind := store.Kind(w.Kind)
	if kind != store.KindGroup {
		kind = store.KindDirect
	}
	unread := w.UnreadCount
	if unread < 0 {
		unread = 0
	}
	return &store.Conversation{
		ID:                 w.ID,
		Kind:               kind,
		DisplayName:        w.DisplayName,
		AvatarRef:          w.AvatarRef,
		LastMessagePreview: w.LastMessagePreview,
		LastMessageAt:      w.LastMessageAt,
		UnreadCount:        unread,
		Blocked:            w.IsBlocked,
		Presence:           store.Presence(w.Presence),
		MemberCount:        w.MemberCount,
	}
}

type wireMessage struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversation_id"`
	SenderID       string          `json:"sender_id"`
	Content        string          `json:"content"`
	Attachment     json.RawMessage `json:"attachment"`
	Status         string          `json:"status"`
	CreatedAt      int64           `json:"created_at"`
}

func (w *wireMessage) toStore(conversationID string) (*store.Message, error) {
	att, err := normalizeAttachment(w.Attachment)
	if err != nil {
		return nil, fmt.Errorf("message %s: %w", w.ID, err)
	}
	st := status.Status(w.Status)
	if !status.Valid(st) {
		st = status.Sent
	}
	convID := w.ConversationID
	if convID == "" {
		convID = conversationID
	}
	return &store.Message{
		ID:             w.ID,
		ConversationID: convID,
		SenderID:       w.SenderID,
		Content:        w.Content,
		Attachment:     att,
		Status:         st,
		CreatedAt:      w.CreatedAt,
	}, nil
}

type wireAttachment struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	URL  string `json:"url"`
}

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true,
}

// normalizeAttachment folds the backend's two attachment shapes (bare URL
// string from older uploads, tagged object from newer ones) into the single
// variant the stores hold. Nothing past this point branches on wire shape.
func normalizeAttachment(raw json.RawMessage) (*store.Attachment, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}

	if strings.HasPrefix(trimmed, `"`) {
		var u string
		if err := json.Unmarshal(raw, &u); err != nil {
			return nil, fmt.Errorf("attachment url: %w", err)
		}
		if u == "" {
			return nil, nil
		}
		name := path.Base(u)
		kind := store.AttachmentFile
		if imageExtensions[strings.ToLower(path.Ext(u))] {
			kind = store.AttachmentImage
		}
		return &store.Attachment{Kind: kind, Name: name, URL: u}, nil
	}

	var w wireAttachment
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("attachment object: %w", err)
	}
	kind := store.AttachmentKind(w.Kind)
	if kind != store.AttachmentImage {
		kind = store.AttachmentFile
	}
	name := w.Name
	if name == "" {
		name = path.Base(w.URL)
	}
	return &store.Attachment{Kind: kind, Name: name, URL: w.URL}, nil
}
