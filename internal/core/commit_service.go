package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/notlevi911/vcs-for-llms/internal/store"
)

// CommitService manages the snapshot timeline of a chat: committing the
// current log, listing history, and rewinding to an earlier commit.
type CommitService struct {
	dbStore *store.SQLiteStore
}

func NewCommitService(db *store.SQLiteStore) *CommitService {
	return &CommitService{dbStore: db}
}

type CommitSummary struct {
	CommitID     string    `json:"commitId"`
	Name         string    `json:"name"`
	Timestamp    time.Time `json:"timestamp"`
	MessageCount int       `json:"messageCount"`
}

// CreateCommit freezes the chat's current messages under a fresh commit
// id. The message list is copied up front, so later turns on the live
// chat can never reach into the stored snapshot.
func (s *CommitService) CreateCommit(chatID, userID, name string) (*store.Commit, error) {
	chat, err := s.dbStore.GetChatByID(chatID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat for commit: %w", err)
	}
	if chat == nil {
		return nil, ErrChatNotFound
	}

	frozen := make([]store.Message, len(chat.Messages))
	copy(frozen, chat.Messages)

	commit := &store.Commit{
		CommitID:  uuid.NewString(),
		ChatID:    chatID,
		UserID:    userID,
		Name:      name,
		Messages:  frozen,
		Timestamp: time.Now().UTC(),
	}
	if err := s.dbStore.CreateCommit(commit); err != nil {
		return nil, err
	}
	return commit, nil
}

// FetchCommit rewinds the chat to the given commit: commits strictly
// after it are deleted and the live log is overwritten with its frozen
// messages. Fetching the newest commit prunes nothing and simply
// reinstates its state.
func (s *CommitService) FetchCommit(commitID, userID string) (*store.Commit, error) {
	commit, err := s.dbStore.GetCommitByID(commitID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load commit: %w", err)
	}
	if commit == nil {
		return nil, ErrCommitNotFound
	}

	if err := s.dbStore.RestoreCommit(commit); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, fmt.Errorf("failed to restore commit %s: %w", commitID, err)
	}
	return commit, nil
}

// GetCommitHistory lists a chat's commits newest first. A chat with no
// commits yields an empty history, not an error.
func (s *CommitService) GetCommitHistory(chatID, userID string) ([]CommitSummary, error) {
	commits, err := s.dbStore.GetCommitsByChatID(chatID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load commit history: %w", err)
	}

	summaries := make([]CommitSummary, 0, len(commits))
	for _, commit := range commits {
		summaries = append(summaries, CommitSummary{
			CommitID:     commit.CommitID,
			Name:         commit.Name,
			Timestamp:    commit.Timestamp,
			MessageCount: len(commit.Messages),
		})
	}
	return summaries, nil
}
