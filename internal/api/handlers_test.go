package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/notlevi911/vcs-for-llms/internal/config"
	"github.com/notlevi911/vcs-for-llms/internal/core"
	"github.com/notlevi911/vcs-for-llms/internal/store"
)

type fakeGenerator struct {
	reply string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return f.reply, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	config.AppConfig.JWTSecret = "test-secret"
	config.AppConfig.AllowedOrigins = []string{"*"}

	dbStore, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	t.Cleanup(func() { dbStore.Close() })

	chatService := core.NewChatService(dbStore, &fakeGenerator{reply: "sure thing"})
	commitService := core.NewCommitService(dbStore)
	srv := httptest.NewServer(NewRouter(NewAPIHandler(chatService, commitService)))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, token string, body any) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode request body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	fields := map[string]json.RawMessage{}
	json.NewDecoder(resp.Body).Decode(&fields)
	return resp, fields
}

func registerUser(t *testing.T, srv *httptest.Server, email string) string {
	t.Helper()
	resp, fields := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/register", "",
		map[string]string{"name": "Test User", "email": email, "password": "secret1"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Register returned %d", resp.StatusCode)
	}
	var token string
	json.Unmarshal(fields["access_token"], &token)
	if token == "" {
		t.Fatal("Register returned no token")
	}
	return token
}

func TestRegisterAndLogin(t *testing.T) {
	srv := newTestServer(t)

	registerUser(t, srv, "ada@example.com")

	// Duplicate email is rejected.
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/register", "",
		map[string]string{"name": "Again", "email": "ada@example.com", "password": "secret1"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Duplicate register returned %d, want 400", resp.StatusCode)
	}

	// Short password is rejected before any write.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/register", "",
		map[string]string{"name": "Short", "email": "short@example.com", "password": "abc"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Short-password register returned %d, want 400", resp.StatusCode)
	}

	resp, fields := doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/login", "",
		map[string]string{"email": "ada@example.com", "password": "secret1"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Login returned %d", resp.StatusCode)
	}
	var token string
	json.Unmarshal(fields["access_token"], &token)
	if token == "" {
		t.Error("Login returned no token")
	}

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/auth/login", "",
		map[string]string{"email": "ada@example.com", "password": "wrong-pass"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Bad login returned %d, want 401", resp.StatusCode)
	}
}

func TestRequiresAuth(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/v1/chat/list", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Unauthenticated list returned %d, want 401", resp.StatusCode)
	}
}

func TestChatCommitRestoreFlow(t *testing.T) {
	srv := newTestServer(t)
	token := registerUser(t, srv, "dev@example.com")

	// First turn creates the chat implicitly.
	resp, fields := doJSON(t, http.MethodPost, srv.URL+"/api/v1/chat", token,
		map[string]string{"chatId": "c1", "userMessage": "hi"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Chat returned %d", resp.StatusCode)
	}
	var assistant string
	json.Unmarshal(fields["assistantMessage"], &assistant)
	if assistant != "sure thing" {
		t.Errorf("Unexpected assistant message %q", assistant)
	}

	// Commit the two-message log.
	resp, fields = doJSON(t, http.MethodPost, srv.URL+"/api/v1/commits/commit", token,
		map[string]string{"chatId": "c1", "name": "checkpoint-1"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Commit returned %d", resp.StatusCode)
	}
	var commitID string
	var messageCount int
	json.Unmarshal(fields["commitId"], &commitID)
	json.Unmarshal(fields["messageCount"], &messageCount)
	if commitID == "" || messageCount != 2 {
		t.Fatalf("Unexpected commit response: id=%q count=%d", commitID, messageCount)
	}

	// Second turn grows the log to 4 messages.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/chat", token,
		map[string]string{"chatId": "c1", "userMessage": "bye"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Chat returned %d", resp.StatusCode)
	}

	resp, fields = doJSON(t, http.MethodGet, srv.URL+"/api/v1/chat/c1/messages", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Messages returned %d", resp.StatusCode)
	}
	var messages []store.Message
	json.Unmarshal(fields["messages"], &messages)
	if len(messages) != 4 {
		t.Fatalf("Expected 4 messages before restore, got %d", len(messages))
	}

	// Restore rewinds the live log to the checkpoint.
	resp, fields = doJSON(t, http.MethodPost, srv.URL+"/api/v1/commits/fetch/"+commitID, token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Fetch returned %d", resp.StatusCode)
	}
	var restored []store.Message
	json.Unmarshal(fields["restoredMessages"], &restored)
	if len(restored) != 2 {
		t.Fatalf("Expected 2 restored messages, got %d", len(restored))
	}

	resp, fields = doJSON(t, http.MethodGet, srv.URL+"/api/v1/chat/c1/messages", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Messages returned %d", resp.StatusCode)
	}
	json.Unmarshal(fields["messages"], &messages)
	if len(messages) != 2 {
		t.Errorf("Expected live log rewound to 2 messages, got %d", len(messages))
	}

	resp, fields = doJSON(t, http.MethodGet, srv.URL+"/api/v1/commits/c1", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("History returned %d", resp.StatusCode)
	}
	var totalCount int
	json.Unmarshal(fields["totalCount"], &totalCount)
	if totalCount != 1 {
		t.Errorf("Expected 1 commit in history, got %d", totalCount)
	}
}

func TestCommitMissingChatReturns404(t *testing.T) {
	srv := newTestServer(t)
	token := registerUser(t, srv, "dev@example.com")

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/commits/commit", token,
		map[string]string{"chatId": "nope", "name": "checkpoint"})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Commit on missing chat returned %d, want 404", resp.StatusCode)
	}
}

func TestOwnerIsolationOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	ownerToken := registerUser(t, srv, "owner@example.com")
	otherToken := registerUser(t, srv, "other@example.com")

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/chat", ownerToken,
		map[string]string{"chatId": "c1", "userMessage": "hi"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Chat returned %d", resp.StatusCode)
	}
	resp, fields := doJSON(t, http.MethodPost, srv.URL+"/api/v1/commits/commit", ownerToken,
		map[string]string{"chatId": "c1", "name": "private"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Commit returned %d", resp.StatusCode)
	}
	var commitID string
	json.Unmarshal(fields["commitId"], &commitID)

	// Another user cannot restore the commit, and the miss reads as 404.
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/commits/fetch/"+commitID, otherToken, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Foreign fetch returned %d, want 404", resp.StatusCode)
	}

	// Nor observe the owner's chat list.
	resp, fields = doJSON(t, http.MethodGet, srv.URL+"/api/v1/chat/list", otherToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("List returned %d", resp.StatusCode)
	}
	var chats []store.ChatSummary
	json.Unmarshal(fields["chats"], &chats)
	if len(chats) != 0 {
		t.Errorf("Expected other user to see no chats, got %d", len(chats))
	}

	// The owner's history is untouched.
	resp, fields = doJSON(t, http.MethodGet, srv.URL+"/api/v1/commits/c1", ownerToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("History returned %d", resp.StatusCode)
	}
	var totalCount int
	json.Unmarshal(fields["totalCount"], &totalCount)
	if totalCount != 1 {
		t.Errorf("Expected owner history of 1, got %d", totalCount)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(fmt.Sprintf("%s/health", srv.URL))
	if err != nil {
		t.Fatalf("Health request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Health returned %d", resp.StatusCode)
	}
}
