package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/notlevi911/vcs-for-llms/internal/config"
	"github.com/notlevi911/vcs-for-llms/internal/middleware"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)       // Basic request logging
	r.Use(chimiddleware.Recoverer)    // Recover from panics
	r.Use(chimiddleware.StripSlashes) // Ensure consistent path handling
	r.Use(middleware.CORS(config.AppConfig.AllowedOrigins))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":"Welcome to PromptPilot API","status":"running"}`))
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","service":"PromptPilot Backend"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/auth/register", apiHandler.RegisterHandler)
		r.Post("/auth/login", apiHandler.LoginHandler)

		// User-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.JWTAuthMiddleware)

			// Chat routes
			r.Get("/chat/list", apiHandler.ListChatsHandler)
			r.Post("/chat/new", apiHandler.NewChatHandler)
			r.Get("/chat/{chatID}/messages", apiHandler.GetChatMessagesHandler)
			r.Post("/chat", apiHandler.ChatHandler)

			// Commit routes
			r.Post("/commits/commit", apiHandler.CommitHandler)
			r.Post("/commits/fetch/{commitID}", apiHandler.FetchCommitHandler)
			r.Get("/commits/{chatID}", apiHandler.CommitHistoryHandler)
		})
	})

	return r
}
