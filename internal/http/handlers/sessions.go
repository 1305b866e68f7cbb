package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/leavend/photorefine/internal/datauri"
	"github.com/leavend/photorefine/internal/domain"
	"github.com/leavend/photorefine/internal/middleware"
	"github.com/leavend/photorefine/internal/session"
)

type sessionResponse struct {
	ID        string    `json:"id"`
	Locale    string    `json:"locale"`
	CreatedAt time.Time `json:"created_at"`
	domain.Snapshot
}

type promptRequest struct {
	Prompt *string `json:"prompt"`
}

// multipart overhead allowed on top of the image itself
const multipartSlack = 1 << 20

func (a *App) sessionJSON(w http.ResponseWriter, code int, s *session.Session) {
	a.json(w, code, sessionResponse{
		ID:        s.ID,
		Locale:    s.Locale,
		CreatedAt: s.CreatedAt,
		Snapshot:  s.Controller.Snapshot(),
	})
}

func (a *App) CreateSession(w http.ResponseWriter, r *http.Request) {
	s := a.Sessions.Create(middleware.LocaleFromContext(r.Context()))
	w.Header().Set("Location", "/v1/sessions/"+s.ID)
	a.sessionJSON(w, http.StatusCreated, s)
}

func (a *App) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	a.sessionJSON(w, http.StatusOK, s)
}

func (a *App) DeleteSession(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	a.Sessions.Delete(s.ID)
	w.WriteHeader(http.StatusNoContent)
}

// SelectImage accepts a multipart upload in the "file" field.
func (a *App) SelectImage(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	if a.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, a.MaxUploadBytes+multipartSlack)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.error(w, http.StatusRequestEntityTooLarge, "too_large", fmt.Sprintf("upload exceeds %d bytes", a.MaxUploadBytes))
			return
		}
		a.error(w, http.StatusBadRequest, "invalid_image", "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	if err := s.Controller.SelectImage(r.Context(), header.Filename, file); err != nil {
		if errors.Is(err, domain.ErrTooLarge) {
			a.error(w, http.StatusRequestEntityTooLarge, "too_large", err.Error())
			return
		}
		if errors.Is(err, domain.ErrInvalidImage) {
			a.error(w, http.StatusBadRequest, "invalid_image", err.Error())
			return
		}
		a.Logger.Error().Err(err).Str("session_id", s.ID).Msg("select image")
		a.error(w, http.StatusInternalServerError, "internal", "failed to read upload")
		return
	}
	a.sessionJSON(w, http.StatusOK, s)
}

func (a *App) SetPrompt(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	var req promptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Prompt == nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	s.Controller.SetPrompt(*req.Prompt)
	a.sessionJSON(w, http.StatusOK, s)
}

// Edit starts an edit in the background and answers 202. With ?wait=true the
// edit runs within the request and the final state is returned.
func (a *App) Edit(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))

	var err error
	if wait {
		err = s.Controller.RequestEdit(r.Context())
	} else {
		err = s.Controller.StartEdit(r.Context())
	}

	switch {
	case err == nil:
		if wait {
			a.sessionJSON(w, http.StatusOK, s)
		} else {
			a.sessionJSON(w, http.StatusAccepted, s)
		}
	case errors.Is(err, domain.ErrNoImage):
		a.error(w, http.StatusConflict, "no_image", "select an image before editing")
	case errors.Is(err, domain.ErrEditInProgress):
		a.error(w, http.StatusConflict, "edit_in_progress", "an edit is already running")
	case errors.Is(err, domain.ErrStaleResult):
		a.error(w, http.StatusConflict, "stale_result", "the session changed while the edit was running")
	default:
		a.Logger.Warn().Err(err).Str("session_id", s.ID).Msg("edit failed")
		a.error(w, http.StatusBadGateway, "edit_failed", s.Controller.State().Error)
	}
}

func (a *App) Reset(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	s.Controller.Reset()
	a.sessionJSON(w, http.StatusOK, s)
}

// Download serves the edited image as an attachment.
func (a *App) Download(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	edited := s.Controller.State().Edited
	if edited == "" {
		a.error(w, http.StatusNotFound, "no_result", "no edited image to download")
		return
	}
	mimeType, data, err := datauri.Parse(edited)
	if err != nil {
		a.Logger.Error().Err(err).Str("session_id", s.ID).Msg("decode edited image")
		a.error(w, http.StatusInternalServerError, "internal", "edited image is unreadable")
		return
	}
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", domain.DownloadFilename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
