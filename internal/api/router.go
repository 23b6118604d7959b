package api

import (
	"net/http"

	"collabdesk/internal/middleware"

	"github.com/gorilla/mux"
)

func SetupRoutes(h *Handler) *mux.Router {
	r := mux.NewRouter()

	// Middleware runs in order: tracing, then recovery, then CORS
	r.Use(middleware.TracingMiddleware)
	r.Use(middleware.ErrorRecoveryMiddleware)
	r.Use(middleware.CORSMiddleware)

	// Public endpoints
	public := r.PathPrefix("/api").Subrouter()
	public.HandleFunc("/auth/login", h.Login).Methods("POST")
	public.HandleFunc("/auth/companies", h.CreateCompany).Methods("POST")
	public.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Authenticated endpoints
	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.AuthMiddleware(h.verifier))

	api.HandleFunc("/auth/users", h.CreateUser).Methods("POST")

	api.HandleFunc("/notes", h.CreateNote).Methods("POST")
	api.HandleFunc("/notes", h.ListNotes).Methods("GET")
	api.HandleFunc("/notes/{id}/lines", h.GetNoteLines).Methods("GET")

	api.HandleFunc("/tasks", h.CreateTask).Methods("POST")
	api.HandleFunc("/tasks", h.ListTasks).Methods("GET")
	api.HandleFunc("/tasks/{id}", h.UpdateTask).Methods("PUT")
	api.HandleFunc("/tasks/{id}", h.DeleteTask).Methods("DELETE")

	api.HandleFunc("/chats", h.CreateChat).Methods("POST")
	api.HandleFunc("/chats", h.ListChats).Methods("GET")
	api.HandleFunc("/chats/{id}/messages", h.ListChatMessages).Methods("GET")

	api.HandleFunc("/history", h.ListHistory).Methods("GET")

	// WebSocket routes authenticate themselves before upgrading
	r.HandleFunc("/ws/note/{id}", h.HandleNoteWebSocket)
	r.HandleFunc("/ws/chat/{id}", h.HandleChatWebSocket)

	return r
}
