package history

import (
	"errors"
	"fmt"
	"time"

	"github.com/sherlockbot/sherlock/internal/chat"
)

// ErrInvalidRole is returned when appending a message whose role is outside
// the closed {user, assistant} set.
var ErrInvalidRole = errors.New("history: invalid role")

// Message is one persisted conversation turn.
type Message struct {
	ID        int64
	UserID    int64
	ChannelID int64
	Role      string
	Content   string
	CreatedAt time.Time
}

// Chat converts the record to the provider-agnostic chat shape.
func (m Message) Chat() chat.Message {
	return chat.Message{Role: m.Role, Content: m.Content}
}

// Stats aggregates a user's usage across all channels.
type Stats struct {
	TotalMessages int
	TotalChannels int
}

// timestampLayouts covers the serializations different writers may use:
// SQLite CURRENT_TIMESTAMP (second granularity), this process
// (sub-second granularity), and the T-separated variants of both.
var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// parseTimestamp converts a stored timestamp string to time.Time. A value
// that matches no known layout is a hard error, not a silently dropped row.
func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("history: unparseable timestamp %q", s)
}

func validRole(role string) bool {
	return role == chat.RoleUser || role == chat.RoleAssistant
}
