package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/leavend/photorefine/internal/infra"
	"github.com/leavend/photorefine/internal/session"
)

type App struct {
	Sessions       *session.Registry
	Logger         *infra.Logger
	MaxUploadBytes int64
}

func NewApp(sessions *session.Registry, logger *infra.Logger, maxUploadBytes int64) *App {
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &App{Sessions: sessions, Logger: logger, MaxUploadBytes: maxUploadBytes}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]errorBody{"error": {Code: code, Message: message}})
}

// session resolves the {id} URL parameter, writing a 404 when it is unknown.
func (a *App) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := chi.URLParam(r, "id")
	s, ok := a.Sessions.Get(id)
	if !ok {
		a.error(w, http.StatusNotFound, "not_found", "session not found")
		return nil, false
	}
	return s, true
}
