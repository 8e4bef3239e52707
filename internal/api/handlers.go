package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/notlevi911/vcs-for-llms/internal/auth"
	"github.com/notlevi911/vcs-for-llms/internal/core"
	"github.com/notlevi911/vcs-for-llms/internal/store"
)

type APIHandler struct {
	chatService   *core.ChatService
	commitService *core.CommitService
}

func NewAPIHandler(cs *core.ChatService, cms *core.CommitService) *APIHandler {
	return &APIHandler{chatService: cs, commitService: cms}
}

func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		userID, err := auth.ValidateJWT(tokenString)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		user, err := h.chatService.GetUserByID(userID)
		if err != nil {
			log.Printf("Error in JWTAuthMiddleware for user %s: %v", userID, err)
			http.Error(w, "Failed to process user identity", http.StatusInternalServerError)
			return
		}

		if user == nil {
			http.Error(w, "User not found", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), "userID", user.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (h *APIHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if req.Name == "" || !strings.Contains(req.Email, "@") {
		http.Error(w, "Name and a valid email are required", http.StatusBadRequest)
		return
	}
	if len(req.Password) < 6 {
		http.Error(w, "Password must be at least 6 characters", http.StatusBadRequest)
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Printf("Error hashing password for %s: %v", req.Email, err)
		http.Error(w, "Failed to process password", http.StatusInternalServerError)
		return
	}

	user, err := h.chatService.CreateUser(req.Name, req.Email, hashedPassword)
	if err != nil {
		if errors.Is(err, core.ErrEmailTaken) {
			http.Error(w, "Email already registered", http.StatusBadRequest)
			return
		}
		log.Printf("Error creating user %s: %v", req.Email, err)
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	token, err := auth.GenerateJWT(user.ID)
	if err != nil {
		log.Printf("Error generating JWT for user %s: %v", user.ID, err)
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(TokenResponse{AccessToken: token, TokenType: "bearer"})
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if req.Email == "" || req.Password == "" {
		http.Error(w, "Email and password are required", http.StatusBadRequest)
		return
	}

	user, err := h.chatService.GetUserByEmail(req.Email)
	if err != nil {
		log.Printf("Error getting user %s: %v", req.Email, err)
		http.Error(w, "Incorrect email or password", http.StatusUnauthorized)
		return
	}

	if user == nil || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		http.Error(w, "Incorrect email or password", http.StatusUnauthorized)
		return
	}

	token, err := auth.GenerateJWT(user.ID)
	if err != nil {
		log.Printf("Error generating JWT for user %s: %v", user.ID, err)
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(TokenResponse{AccessToken: token, TokenType: "bearer"})
}

type ListChatsResponse struct {
	Chats []store.ChatSummary `json:"chats"`
}

func (h *APIHandler) ListChatsHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(string)

	chats, err := h.chatService.ListChats(userID)
	if err != nil {
		log.Printf("Error listing chats for user %s: %v", userID, err)
		http.Error(w, "Failed to list chats", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(ListChatsResponse{Chats: chats})
}

func (h *APIHandler) NewChatHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(string)

	chat, err := h.chatService.NewChat(userID)
	if err != nil {
		log.Printf("Error creating chat for user %s: %v", userID, err)
		http.Error(w, "Failed to create chat", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(store.ChatSummary{ChatID: chat.ChatID, Name: chat.Name, UpdatedAt: chat.UpdatedAt})
}

type ChatMessagesResponse struct {
	ChatID   string          `json:"chatId"`
	Messages []store.Message `json:"messages"`
}

func (h *APIHandler) GetChatMessagesHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(string)
	chatID := chi.URLParam(r, "chatID")

	messages, err := h.chatService.GetChatMessages(chatID, userID)
	if err != nil {
		log.Printf("Error getting messages for user %s, chat %s: %v", userID, chatID, err)
		http.Error(w, "Failed to get chat messages", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(ChatMessagesResponse{ChatID: chatID, Messages: messages})
}

type ChatRequest struct {
	ChatID      string `json:"chatId"`
	UserMessage string `json:"userMessage"`
}

type ChatResponse struct {
	ChatID           string    `json:"chatId"`
	AssistantMessage string    `json:"assistantMessage"`
	Timestamp        time.Time `json:"timestamp"`
}

func (h *APIHandler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(string)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.ChatID == "" || req.UserMessage == "" {
		http.Error(w, "chatId and userMessage are required", http.StatusBadRequest)
		return
	}

	assistantMessage, timestamp, err := h.chatService.ProcessMessage(r.Context(), req.ChatID, userID, req.UserMessage)
	if err != nil {
		log.Printf("Error processing message for user %s, chat %s: %v", userID, req.ChatID, err)
		http.Error(w, "Chat processing failed", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(ChatResponse{ChatID: req.ChatID, AssistantMessage: assistantMessage, Timestamp: timestamp})
}

type CommitRequest struct {
	ChatID string `json:"chatId"`
	Name   string `json:"name"`
}

type CommitResponse struct {
	CommitID     string    `json:"commitId"`
	ChatID       string    `json:"chatId"`
	Name         string    `json:"name"`
	Timestamp    time.Time `json:"timestamp"`
	MessageCount int       `json:"messageCount"`
}

func (h *APIHandler) CommitHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(string)

	var req CommitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.ChatID == "" || req.Name == "" {
		http.Error(w, "chatId and name are required", http.StatusBadRequest)
		return
	}

	commit, err := h.commitService.CreateCommit(req.ChatID, userID, req.Name)
	if err != nil {
		if errors.Is(err, core.ErrChatNotFound) {
			http.Error(w, "Chat not found", http.StatusNotFound)
			return
		}
		log.Printf("Error creating commit for user %s, chat %s: %v", userID, req.ChatID, err)
		http.Error(w, "Commit creation failed", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(CommitResponse{
		CommitID:     commit.CommitID,
		ChatID:       commit.ChatID,
		Name:         commit.Name,
		Timestamp:    commit.Timestamp,
		MessageCount: len(commit.Messages),
	})
}

type FetchResponse struct {
	CommitID         string          `json:"commitId"`
	ChatID           string          `json:"chatId"`
	RestoredMessages []store.Message `json:"restoredMessages"`
	Timestamp        time.Time       `json:"timestamp"`
}

func (h *APIHandler) FetchCommitHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(string)
	commitID := chi.URLParam(r, "commitID")

	commit, err := h.commitService.FetchCommit(commitID, userID)
	if err != nil {
		if errors.Is(err, core.ErrCommitNotFound) || errors.Is(err, core.ErrChatNotFound) {
			http.Error(w, "Commit not found", http.StatusNotFound)
			return
		}
		log.Printf("Error fetching commit %s for user %s: %v", commitID, userID, err)
		http.Error(w, "Commit fetch failed", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(FetchResponse{
		CommitID:         commit.CommitID,
		ChatID:           commit.ChatID,
		RestoredMessages: commit.Messages,
		Timestamp:        time.Now().UTC(),
	})
}

type CommitHistoryResponse struct {
	ChatID     string               `json:"chatId"`
	Commits    []core.CommitSummary `json:"commits"`
	TotalCount int                  `json:"totalCount"`
}

func (h *APIHandler) CommitHistoryHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(string)
	chatID := chi.URLParam(r, "chatID")

	commits, err := h.commitService.GetCommitHistory(chatID, userID)
	if err != nil {
		log.Printf("Error getting commit history for user %s, chat %s: %v", userID, chatID, err)
		http.Error(w, "Failed to get commit history", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(CommitHistoryResponse{ChatID: chatID, Commits: commits, TotalCount: len(commits)})
}
