package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"collabdesk/internal/auth"
	"collabdesk/internal/middleware"
	"collabdesk/internal/models"
	"collabdesk/internal/repository"
	"collabdesk/internal/services"
	"collabdesk/internal/services/collaboration"

	"github.com/gorilla/mux"
)

// Handler handles HTTP requests. Repositories are injected as concrete
// types; services through interfaces defined in this package.
type Handler struct {
	companyRepo *repository.CompanyRepositoryImpl
	userRepo    *repository.UserRepositoryImpl
	noteRepo    *repository.NoteRepositoryImpl
	taskRepo    *repository.TaskRepositoryImpl
	chatRepo    *repository.ChatRepositoryImpl
	opRepo      *repository.OperationRepositoryImpl
	history     HistoryService
	verifier    *auth.Verifier
	wsHandler   *collaboration.WebSocketHandler
}

func NewHandler(
	companyRepo *repository.CompanyRepositoryImpl,
	userRepo *repository.UserRepositoryImpl,
	noteRepo *repository.NoteRepositoryImpl,
	taskRepo *repository.TaskRepositoryImpl,
	chatRepo *repository.ChatRepositoryImpl,
	opRepo *repository.OperationRepositoryImpl,
	history HistoryService,
	verifier *auth.Verifier,
	wsHandler *collaboration.WebSocketHandler,
) *Handler {
	return &Handler{
		companyRepo: companyRepo,
		userRepo:    userRepo,
		noteRepo:    noteRepo,
		taskRepo:    taskRepo,
		chatRepo:    chatRepo,
		opRepo:      opRepo,
		history:     history,
		verifier:    verifier,
		wsHandler:   wsHandler,
	}
}

// Auth handlers

// Login verifies company code + username + password and issues a token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := h.userRepo.GetByUsername(r.Context(), req.CompanyCode, req.Username)
	if err != nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := h.verifier.IssueToken(user, req.CompanyCode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token":    token,
		"user_id":  user.ID,
		"username": user.Username,
		"role":     user.Role,
	})
}

// CreateCompany bootstraps a new tenant with its first manager account.
func (h *Handler) CreateCompany(w http.ResponseWriter, r *http.Request) {
	var req models.CompanyCreate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Code == "" || req.Name == "" || req.ManagerUsername == "" || req.ManagerPassword == "" {
		http.Error(w, "code, name, manager_username and manager_password are required", http.StatusBadRequest)
		return
	}

	company, err := h.companyRepo.Create(r.Context(), req.Code, req.Name)
	if err != nil {
		if errors.Is(err, repository.ErrCompanyExists) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	hash, err := auth.HashPassword(req.ManagerPassword)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	manager, err := h.userRepo.Create(r.Context(), company.ID, req.ManagerUsername, hash, models.RoleManager)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.history.Record(services.HistoryJob{
		Type:        models.OperationCreate,
		TargetType:  models.TargetUser,
		TargetID:    manager.ID,
		Data:        manager,
		PerformedBy: manager.ID,
		CompanyID:   company.ID,
	})

	writeJSON(w, http.StatusCreated, company)
}

// CreateUser lets a manager add a user to their own company.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity.Role != models.RoleManager && identity.Role != models.RoleAdmin {
		http.Error(w, "manager role required", http.StatusForbidden)
		return
	}

	var req models.UserCreate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Username == "" || req.Password == "" {
		http.Error(w, "username and password are required", http.StatusBadRequest)
		return
	}

	company, err := h.companyRepo.GetByCode(r.Context(), identity.CompanyCode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	user, err := h.userRepo.Create(r.Context(), company.ID, req.Username, hash, req.Role)
	if err != nil {
		if errors.Is(err, repository.ErrUsernameExists) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.history.Record(services.HistoryJob{
		Type:        models.OperationCreate,
		TargetType:  models.TargetUser,
		TargetID:    user.ID,
		Data:        user,
		PerformedBy: identity.UserID,
		CompanyID:   company.ID,
	})

	writeJSON(w, http.StatusCreated, user)
}

// Note handlers

func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	var req models.NoteCreate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	company, err := h.companyRepo.GetByCode(r.Context(), identity.CompanyCode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	note, err := h.noteRepo.Create(r.Context(), company.ID, req.Title, req.LineCount)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.history.Record(services.HistoryJob{
		Type:        models.OperationCreate,
		TargetType:  models.TargetNote,
		TargetID:    note.ID,
		Data:        note,
		PerformedBy: identity.UserID,
		CompanyID:   company.ID,
	})

	writeJSON(w, http.StatusCreated, note)
}

func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	company, err := h.companyRepo.GetByCode(r.Context(), identity.CompanyCode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	limit, offset := pagination(r)
	notes, err := h.noteRepo.ListInfo(r.Context(), company.ID, limit, offset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"notes": notes})
}

// GetNoteLines returns a page of a note's lines for the initial render;
// live updates arrive over the websocket afterwards.
func (h *Handler) GetNoteLines(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	noteID, err := pathID(r)
	if err != nil {
		http.Error(w, "invalid note id", http.StatusBadRequest)
		return
	}

	ok, err := h.noteRepo.HasAccess(r.Context(), noteID, identity.CompanyCode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "note not found", http.StatusNotFound)
		return
	}

	start, _ := strconv.Atoi(r.URL.Query().Get("start"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	lines, err := h.noteRepo.GetLines(r.Context(), noteID, start, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"lines": lines})
}

// Task handlers

func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	var req models.TaskCreate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Title == "" {
		http.Error(w, "title is required", http.StatusBadRequest)
		return
	}

	company, err := h.companyRepo.GetByCode(r.Context(), identity.CompanyCode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	task, err := h.taskRepo.Create(r.Context(), company.ID, &req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.history.Record(services.HistoryJob{
		Type:        models.OperationCreate,
		TargetType:  models.TargetTask,
		TargetID:    task.ID,
		Data:        task,
		PerformedBy: identity.UserID,
		CompanyID:   company.ID,
	})

	writeJSON(w, http.StatusCreated, task)
}

func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	company, err := h.companyRepo.GetByCode(r.Context(), identity.CompanyCode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	limit, offset := pagination(r)
	tasks, err := h.taskRepo.List(r.Context(), company.ID, limit, offset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"tasks": tasks})
}

func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	taskID, err := pathID(r)
	if err != nil {
		http.Error(w, "invalid task id", http.StatusBadRequest)
		return
	}

	var req models.TaskUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	company, err := h.companyRepo.GetByCode(r.Context(), identity.CompanyCode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	task, err := h.taskRepo.Update(r.Context(), company.ID, taskID, &req)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.history.Record(services.HistoryJob{
		Type:        models.OperationUpdate,
		TargetType:  models.TargetTask,
		TargetID:    task.ID,
		Data:        task,
		PerformedBy: identity.UserID,
		CompanyID:   company.ID,
	})

	writeJSON(w, http.StatusOK, task)
}

func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	taskID, err := pathID(r)
	if err != nil {
		http.Error(w, "invalid task id", http.StatusBadRequest)
		return
	}

	company, err := h.companyRepo.GetByCode(r.Context(), identity.CompanyCode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	if err := h.taskRepo.Delete(r.Context(), company.ID, taskID); err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.history.Record(services.HistoryJob{
		Type:        models.OperationDelete,
		TargetType:  models.TargetTask,
		TargetID:    taskID,
		Data:        map[string]uint{"id": taskID},
		PerformedBy: identity.UserID,
		CompanyID:   company.ID,
	})

	w.WriteHeader(http.StatusNoContent)
}

// Chat handlers

func (h *Handler) CreateChat(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	company, err := h.companyRepo.GetByCode(r.Context(), identity.CompanyCode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	chat, err := h.chatRepo.Create(r.Context(), company.ID, req.Name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, chat)
}

func (h *Handler) ListChats(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	company, err := h.companyRepo.GetByCode(r.Context(), identity.CompanyCode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	chats, err := h.chatRepo.List(r.Context(), company.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"chats": chats})
}

func (h *Handler) ListChatMessages(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	chatID, err := pathID(r)
	if err != nil {
		http.Error(w, "invalid chat id", http.StatusBadRequest)
		return
	}

	ok, err := h.chatRepo.HasAccess(r.Context(), chatID, identity.CompanyCode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "chat not found", http.StatusNotFound)
		return
	}

	limit, offset := pagination(r)
	messages, err := h.chatRepo.ListMessages(r.Context(), chatID, limit, offset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"messages": messages})
}

// History handlers

func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	company, err := h.companyRepo.GetByCode(r.Context(), identity.CompanyCode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	limit, offset := pagination(r)
	ops, err := h.opRepo.ListByCompany(r.Context(), company.ID, limit, offset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"operations": ops,
		"queued":     h.history.QueueLength(),
	})
}

// Helpers

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func pathID(r *http.Request) (uint, error) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(id), nil
}

func pagination(r *http.Request) (limit, offset int) {
	limit = 50
	if parsed, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && parsed > 0 {
		limit = parsed
	}
	if parsed, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && parsed > 0 {
		offset = parsed
	}
	return limit, offset
}
