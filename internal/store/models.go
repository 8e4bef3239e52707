package store

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Do not expose this in JSON responses
	CreatedAt    time.Time `json:"created_at"`
}

type Message struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Chat is the live message log for one conversation. Messages are
// appended during normal chat and replaced wholesale on a restore.
type Chat struct {
	ChatID    string    `json:"chatId"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ChatSummary struct {
	ChatID    string    `json:"chatId"`
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Commit is an immutable snapshot of a chat's messages at a point in
// time. Commits are only ever created, or deleted when a later restore
// rewinds past them.
type Commit struct {
	CommitID  string    `json:"commitId"`
	ChatID    string    `json:"chatId"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Messages  []Message `json:"messages"`
	Timestamp time.Time `json:"timestamp"`
}
