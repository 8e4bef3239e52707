package core

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/notlevi911/vcs-for-llms/internal/config"
)

// TextGenerator is the model backend contract: one prompt in, one
// completion out. The call may fail or time out; callers decide how to
// degrade.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// LLMService wraps a single Ollama client, constructed once at startup
// and shared across requests.
type LLMService struct {
	client  *api.Client
	model   string
	timeout time.Duration
}

func NewLLMService() *LLMService {
	base, err := url.Parse(config.AppConfig.OllamaBaseURL)
	if err != nil {
		log.Fatalf("Invalid OLLAMA_BASE_URL %q: %v", config.AppConfig.OllamaBaseURL, err)
	}

	return &LLMService{
		client:  api.NewClient(base, http.DefaultClient),
		model:   config.AppConfig.OllamaModel,
		timeout: time.Duration(config.AppConfig.LLMTimeoutSeconds) * time.Second,
	}
}

func (s *LLMService) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	stream := false
	req := &api.GenerateRequest{
		Model:  s.model,
		Prompt: prompt,
		Stream: &stream,
		Options: map[string]any{
			"temperature": 0.7,
			"top_p":       0.9,
		},
	}

	var response strings.Builder
	err := s.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		response.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama generate request failed: %w", err)
	}

	text := strings.TrimSpace(response.String())
	if text == "" {
		return "", fmt.Errorf("ollama returned an empty completion")
	}
	return text, nil
}
