package core

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/notlevi911/vcs-for-llms/internal/store"
)

const promptPreamble = "You are PromptPilot, an AI-powered development assistant. " +
	"You help developers with coding, debugging, architecture decisions, and technical questions.\n\n"

type ChatService struct {
	dbStore *store.SQLiteStore
	llm     TextGenerator
}

func NewChatService(db *store.SQLiteStore, llm TextGenerator) *ChatService {
	return &ChatService{
		dbStore: db,
		llm:     llm,
	}
}

// User methods, thin wrappers so handlers never touch the store directly.

func (s *ChatService) CreateUser(name, email, passwordHash string) (*store.User, error) {
	existing, err := s.dbStore.GetUserByEmail(email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}
	return s.dbStore.CreateUser(name, email, passwordHash)
}

func (s *ChatService) GetUserByEmail(email string) (*store.User, error) {
	return s.dbStore.GetUserByEmail(email)
}

func (s *ChatService) GetUserByID(id string) (*store.User, error) {
	return s.dbStore.GetUserByID(id)
}

// EnsureChatExists is an idempotent get-or-create for the (chatID, userID)
// pair; absent chats come back as an empty "Untitled" log.
func (s *ChatService) EnsureChatExists(chatID, userID string) (*store.Chat, error) {
	return s.dbStore.GetOrCreateChat(chatID, userID)
}

func (s *ChatService) ListChats(userID string) ([]store.ChatSummary, error) {
	return s.dbStore.GetChatsByUserID(userID)
}

// NewChat creates an empty chat auto-named by position: Chat 1, Chat 2, ...
func (s *ChatService) NewChat(userID string) (*store.Chat, error) {
	existing, err := s.dbStore.GetChatsByUserID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats for naming: %w", err)
	}
	return s.dbStore.CreateChat(userID, fmt.Sprintf("Chat %d", len(existing)+1))
}

// GetChatMessages returns the live log, or an empty slice when the chat
// does not exist for that owner.
func (s *ChatService) GetChatMessages(chatID, userID string) ([]store.Message, error) {
	chat, err := s.dbStore.GetChatByID(chatID, userID)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return []store.Message{}, nil
	}
	return chat.Messages, nil
}

// ProcessMessage runs one turn: render the transcript into a prompt, ask
// the model, and persist both sides of the exchange. A model failure is
// downgraded to an apology message rather than surfaced — a broken
// backend must not cost the user their turn.
func (s *ChatService) ProcessMessage(ctx context.Context, chatID, userID, userMessage string) (string, time.Time, error) {
	chat, err := s.EnsureChatExists(chatID, userID)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to ensure chat exists: %w", err)
	}

	prompt := buildPrompt(chat.Messages, userMessage)

	assistantMessage, err := s.llm.Generate(ctx, prompt)
	if err != nil {
		log.Printf("LLM generation failed for chat %s: %v", chatID, err)
		assistantMessage = fmt.Sprintf("I apologize, but I'm having trouble processing your request right now. Error: %v", err)
	}

	now := time.Now().UTC()
	updated := make([]store.Message, 0, len(chat.Messages)+2)
	updated = append(updated, chat.Messages...)
	updated = append(updated,
		store.Message{Role: store.RoleUser, Content: userMessage, Timestamp: now},
		store.Message{Role: store.RoleAssistant, Content: assistantMessage, Timestamp: now},
	)

	if err := s.dbStore.ReplaceMessages(chatID, userID, updated); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to persist turn: %w", err)
	}

	return assistantMessage, now, nil
}

// buildPrompt renders the stored transcript plus the new user message
// into a single prompt: preamble, prior turns as Human:/Assistant:
// lines, then a trailing cue for the model to complete.
func buildPrompt(history []store.Message, userMessage string) string {
	var b strings.Builder
	b.WriteString(promptPreamble)

	if len(history) > 0 {
		b.WriteString("Previous conversation:\n")
		for _, msg := range history {
			switch msg.Role {
			case store.RoleUser:
				fmt.Fprintf(&b, "Human: %s\n", msg.Content)
			case store.RoleAssistant:
				fmt.Fprintf(&b, "Assistant: %s\n", msg.Content)
			}
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Human: %s\n", userMessage)
	b.WriteString("Assistant: ")
	return b.String()
}
