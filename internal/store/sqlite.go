package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// ErrNotFound is returned by write operations that matched no row,
// which covers both "absent" and "owned by someone else".
var ErrNotFound = errors.New("record not found")

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS users (
        id TEXT PRIMARY KEY, -- UUID
        name TEXT NOT NULL,
        email TEXT UNIQUE NOT NULL,
        password_hash TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS chats (
        chat_id TEXT NOT NULL,
        user_id TEXT NOT NULL,
        name TEXT NOT NULL DEFAULT 'Untitled',
        messages TEXT NOT NULL DEFAULT '[]', -- JSON array of messages
        created_at DATETIME NOT NULL,
        updated_at DATETIME NOT NULL,
        UNIQUE (chat_id, user_id),
        FOREIGN KEY (user_id) REFERENCES users (id)
    );

    CREATE TABLE IF NOT EXISTS commits (
        id INTEGER PRIMARY KEY AUTOINCREMENT, -- creation order for timestamp ties
        commit_id TEXT UNIQUE NOT NULL, -- UUID, never reused
        chat_id TEXT NOT NULL,
        user_id TEXT NOT NULL,
        name TEXT NOT NULL,
        messages TEXT NOT NULL, -- frozen JSON copy of the chat log
        timestamp DATETIME NOT NULL
    );

    CREATE INDEX IF NOT EXISTS idx_commits_chat ON commits (chat_id, user_id, timestamp);
    `
	_, err := s.db.Exec(schema)
	return err
}

// marshalMessages always produces a JSON array, never "null".
func marshalMessages(messages []Message) (string, error) {
	if messages == nil {
		messages = []Message{}
	}
	b, err := json.Marshal(messages)
	if err != nil {
		return "", fmt.Errorf("failed to marshal messages: %w", err)
	}
	return string(b), nil
}

func unmarshalMessages(raw string) ([]Message, error) {
	messages := []Message{}
	if raw == "" {
		return messages, nil
	}
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal messages: %w", err)
	}
	return messages, nil
}

// User methods

func (s *SQLiteStore) CreateUser(name, email, passwordHash string) (*User, error) {
	id := uuid.NewString()
	now := time.Now().UTC()
	_, err := s.db.Exec("INSERT INTO users (id, name, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)",
		id, name, email, passwordHash, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return &User{ID: id, Name: name, Email: email, PasswordHash: passwordHash, CreatedAt: now}, nil
}

func (s *SQLiteStore) GetUserByEmail(email string) (*User, error) {
	var user User
	err := s.db.QueryRow("SELECT id, name, email, password_hash, created_at FROM users WHERE email = ?", email).
		Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

func (s *SQLiteStore) GetUserByID(id string) (*User, error) {
	var user User
	err := s.db.QueryRow("SELECT id, name, email, password_hash, created_at FROM users WHERE id = ?", id).
		Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

// Chat methods

// GetOrCreateChat is idempotent: the UNIQUE(chat_id, user_id) constraint
// makes concurrent calls with the same pair converge on a single row.
func (s *SQLiteStore) GetOrCreateChat(chatID, userID string) (*Chat, error) {
	now := time.Now().UTC()
	_, err := s.db.Exec(`INSERT INTO chats (chat_id, user_id, name, messages, created_at, updated_at)
        VALUES (?, ?, 'Untitled', '[]', ?, ?)
        ON CONFLICT (chat_id, user_id) DO NOTHING`, chatID, userID, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert chat: %w", err)
	}
	chat, err := s.GetChatByID(chatID, userID)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, fmt.Errorf("chat %s missing after upsert", chatID)
	}
	return chat, nil
}

func (s *SQLiteStore) CreateChat(userID, name string) (*Chat, error) {
	chatID := uuid.NewString()
	now := time.Now().UTC()
	_, err := s.db.Exec("INSERT INTO chats (chat_id, user_id, name, messages, created_at, updated_at) VALUES (?, ?, ?, '[]', ?, ?)",
		chatID, userID, name, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert chat: %w", err)
	}
	return &Chat{ChatID: chatID, UserID: userID, Name: name, Messages: []Message{}, CreatedAt: now, UpdatedAt: now}, nil
}

// GetChatByID returns (nil, nil) when the chat does not exist for that
// owner; ownership misses are indistinguishable from absence.
func (s *SQLiteStore) GetChatByID(chatID, userID string) (*Chat, error) {
	var chat Chat
	var messagesJSON string
	err := s.db.QueryRow("SELECT chat_id, user_id, name, messages, created_at, updated_at FROM chats WHERE chat_id = ? AND user_id = ?",
		chatID, userID).Scan(&chat.ChatID, &chat.UserID, &chat.Name, &messagesJSON, &chat.CreatedAt, &chat.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}
	chat.Messages, err = unmarshalMessages(messagesJSON)
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

func (s *SQLiteStore) GetChatsByUserID(userID string) ([]ChatSummary, error) {
	rows, err := s.db.Query("SELECT chat_id, name, updated_at FROM chats WHERE user_id = ? ORDER BY updated_at DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chats: %w", err)
	}
	defer rows.Close()

	chats := []ChatSummary{}
	for rows.Next() {
		var chat ChatSummary
		if err := rows.Scan(&chat.ChatID, &chat.Name, &chat.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat row: %w", err)
		}
		chats = append(chats, chat)
	}
	return chats, rows.Err()
}

// ReplaceMessages overwrites the whole message log in one UPDATE. The
// single-row write is the unit of atomicity for chat mutations.
func (s *SQLiteStore) ReplaceMessages(chatID, userID string, messages []Message) error {
	messagesJSON, err := marshalMessages(messages)
	if err != nil {
		return err
	}

	res, err := s.db.Exec("UPDATE chats SET messages = ?, updated_at = ? WHERE chat_id = ? AND user_id = ?",
		messagesJSON, time.Now().UTC(), chatID, userID)
	if err != nil {
		return fmt.Errorf("failed to replace messages: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Commit methods

func (s *SQLiteStore) CreateCommit(commit *Commit) error {
	messagesJSON, err := marshalMessages(commit.Messages)
	if err != nil {
		return err
	}

	stmt, err := s.db.Prepare("INSERT INTO commits (commit_id, chat_id, user_id, name, messages, timestamp) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare commit insert: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.Exec(commit.CommitID, commit.ChatID, commit.UserID, commit.Name, messagesJSON, commit.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to execute commit insert: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetCommitByID(commitID, userID string) (*Commit, error) {
	var commit Commit
	var messagesJSON string
	err := s.db.QueryRow("SELECT commit_id, chat_id, user_id, name, messages, timestamp FROM commits WHERE commit_id = ? AND user_id = ?",
		commitID, userID).Scan(&commit.CommitID, &commit.ChatID, &commit.UserID, &commit.Name, &messagesJSON, &commit.Timestamp)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get commit: %w", err)
	}
	commit.Messages, err = unmarshalMessages(messagesJSON)
	if err != nil {
		return nil, err
	}
	return &commit, nil
}

// GetCommitsByChatID lists commits newest first. Equal timestamps keep
// their creation order via the autoincrement id.
func (s *SQLiteStore) GetCommitsByChatID(chatID, userID string) ([]Commit, error) {
	rows, err := s.db.Query("SELECT commit_id, chat_id, user_id, name, messages, timestamp FROM commits WHERE chat_id = ? AND user_id = ? ORDER BY timestamp DESC, id ASC",
		chatID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query commits: %w", err)
	}
	defer rows.Close()

	commits := []Commit{}
	for rows.Next() {
		var commit Commit
		var messagesJSON string
		if err := rows.Scan(&commit.CommitID, &commit.ChatID, &commit.UserID, &commit.Name, &messagesJSON, &commit.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan commit row: %w", err)
		}
		commit.Messages, err = unmarshalMessages(messagesJSON)
		if err != nil {
			return nil, err
		}
		commits = append(commits, commit)
	}
	return commits, rows.Err()
}

// RestoreCommit rewinds the chat to the given commit: every commit with
// a strictly later timestamp is deleted and the live log is overwritten
// with the commit's frozen copy. Both writes run in one transaction so a
// crash cannot leave the pruned history pointing past a stale log.
func (s *SQLiteStore) RestoreCommit(commit *Commit) error {
	messagesJSON, err := marshalMessages(commit.Messages)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin restore transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec("DELETE FROM commits WHERE chat_id = ? AND user_id = ? AND timestamp > ?",
		commit.ChatID, commit.UserID, commit.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to prune future commits: %w", err)
	}

	res, err := tx.Exec("UPDATE chats SET messages = ?, updated_at = ? WHERE chat_id = ? AND user_id = ?",
		messagesJSON, time.Now().UTC(), commit.ChatID, commit.UserID)
	if err != nil {
		return fmt.Errorf("failed to restore messages: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit restore transaction: %w", err)
	}
	return nil
}
