package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sherlockbot/sherlock/internal/chat"
)

// insertLayout is the timestamp serialization this process writes. It keeps
// sub-second precision so concurrent exchanges order deterministically.
const insertLayout = "2006-01-02 15:04:05.999999999"

// Store is the durable conversation log backed by SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the store at the given path, ensuring that the
// parent directory exists.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create db directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open db at %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db at %s: %w", path, err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// NewStore wraps an already-open database handle. Used by tests and the
// admin CLI, which open the database themselves.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Init creates the messages table and its lookup index.
func (s *Store) Init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			channel_id INTEGER NOT NULL,
			role TEXT NOT NULL CHECK(role IN ('user', 'assistant')),
			content TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_user_channel
		ON messages(user_id, channel_id, created_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("failed to init messages schema: %w", err)
	}
	return nil
}

// Append inserts a single message and returns its id.
func (s *Store) Append(userID, channelID int64, role, content string) (int64, error) {
	if !validRole(role) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	res, err := s.db.Exec(
		`INSERT INTO messages (user_id, channel_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		userID, channelID, role, content, s.now().UTC().Format(insertLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get message id: %w", err)
	}
	return id, nil
}

// AppendExchange persists one completed exchange: the user query followed by
// the assistant answer, in a single transaction so readers never observe a
// partial pair.
func (s *Store) AppendExchange(userID, channelID int64, question, answer string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin exchange tx: %w", err)
	}
	defer tx.Rollback()

	stamp := s.now().UTC().Format(insertLayout)
	for _, m := range []struct {
		role, content string
	}{
		{chat.RoleUser, question},
		{chat.RoleAssistant, answer},
	} {
		if _, err := tx.Exec(
			`INSERT INTO messages (user_id, channel_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
			userID, channelID, m.role, m.content, stamp,
		); err != nil {
			return fmt.Errorf("failed to insert %s message: %w", m.role, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit exchange: %w", err)
	}
	return nil
}

// Recent returns the most recent `limit` messages for the user in the given
// channel, ordered chronologically (oldest first). No matching records is an
// empty slice, not an error.
func (s *Store) Recent(userID, channelID int64, limit int) ([]Message, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, channel_id, role, content, created_at
		 FROM messages
		 WHERE user_id = ? AND channel_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		userID, channelID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var results []Message
	for rows.Next() {
		var m Message
		var createdAt string
		if err := rows.Scan(&m.ID, &m.UserID, &m.ChannelID, &m.Role, &m.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		m.CreatedAt, err = parseTimestamp(createdAt)
		if err != nil {
			return nil, err
		}
		results = append(results, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed reading history rows: %w", err)
	}

	// Reverse to chronological order.
	for i, j := 0, len(results)-1; i < j; i, j = i+1, j-1 {
		results[i], results[j] = results[j], results[i]
	}
	return results, nil
}

// RecentChat returns the recent history already converted to the shape the
// completion endpoint consumes.
func (s *Store) RecentChat(userID, channelID int64, limit int) ([]chat.Message, error) {
	records, err := s.Recent(userID, channelID, limit)
	if err != nil {
		return nil, err
	}
	messages := make([]chat.Message, 0, len(records))
	for _, m := range records {
		messages = append(messages, m.Chat())
	}
	return messages, nil
}

// Clear removes the user's history. A nil channelID clears every channel for
// that user. Returns the number of removed messages.
func (s *Store) Clear(userID int64, channelID *int64) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if channelID != nil {
		res, err = s.db.Exec(`DELETE FROM messages WHERE user_id = ? AND channel_id = ?`, userID, *channelID)
	} else {
		res, err = s.db.Exec(`DELETE FROM messages WHERE user_id = ?`, userID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to clear history: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count cleared rows: %w", err)
	}
	return removed, nil
}

// UserStats returns aggregate counts for the user across all channels.
func (s *Store) UserStats(userID int64) (Stats, error) {
	var stats Stats
	err := s.db.QueryRow(
		`SELECT COUNT(*), COUNT(DISTINCT channel_id) FROM messages WHERE user_id = ?`,
		userID,
	).Scan(&stats.TotalMessages, &stats.TotalChannels)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to query user stats: %w", err)
	}
	return stats, nil
}
