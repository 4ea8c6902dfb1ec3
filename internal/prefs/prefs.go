package prefs

import (
	"fmt"
	"time"

	"github.com/pmartins/studychat/internal/store"
)

// Overlay is the persisted locally-owned state for one conversation.
type Overlay struct {
	ConversationID string
	Pinned         bool
	Muted          bool
	MarkedUnread   bool
	Blocked        bool
}

func flagColumn(flag store.Flag) (string, error) {
	switch flag {
	case store.FlagPinned:
		return "pinned", nil
	case store.FlagMuted:
		return "muted", nil
	case store.FlagMarkedUnread:
		return "marked_unread", nil
	default:
		return "", fmt.Errorf("unknown overlay flag %q", flag)
	}
}

// SetFlag writes a single overlay flag through to disk (idempotent upsert).
func (db *DB) SetFlag(conversationID string, flag store.Flag, value bool) error {
	col, err := flagColumn(flag)
	if err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	_, err = db.Exec(fmt.Sprintf(`
		INSERT INTO overlays (conversation_id, %s, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET
			%s = excluded.%s,
			updated_at = excluded.updated_at`, col, col, col),
		conversationID, value, now)
	return err
}

// SetBlocked writes the cached blocked flag through to disk.
func (db *DB) SetBlocked(conversationID string, blocked bool) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO overlays (conversation_id, blocked, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET
			blocked = excluded.blocked,
			updated_at = excluded.updated_at`,
		conversationID, blocked, now)
	return err
}

// All returns every persisted overlay, used to seed the conversation store
// when the engine mounts.
func (db *DB) All() ([]Overlay, error) {
	rows, err := db.Query(`
		SELECT conversation_id, pinned, muted, marked_unread, blocked
		FROM overlays`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Overlay
	for rows.Next() {
		var o Overlay
		if err := rows.Scan(&o.ConversationID, &o.Pinned, &o.Muted, &o.MarkedUnread, &o.Blocked); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Remove drops the persisted overlay for a deleted conversation.
func (db *DB) Remove(conversationID string) error {
	_, err := db.Exec(`DELETE FROM overlays WHERE conversation_id = ?`, conversationID)
	return err
}
