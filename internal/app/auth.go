package app

import (
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"chizu/campus-client/internal/api"
	"chizu/campus-client/internal/httpx"
	"chizu/campus-client/internal/model"
)

// Account screens talk to the backend directly; the shell only tracks the
// signed-in user.

const minPasswordLength = 6

var shortPasswordMessage = fmt.Sprintf("password must be at least %d characters", minPasswordLength)

func (a *App) handleColleges(w http.ResponseWriter, r *http.Request) {
	colleges, err := a.client.Colleges(r.Context())
	if err != nil {
		a.writeUpstreamError(w, "list colleges", err)
		return
	}
	if colleges == nil {
		colleges = []model.College{}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"colleges": colleges})
}

func (a *App) handleRegister(w http.ResponseWriter, r *http.Request) {
	var reg api.Registration
	if err := httpx.DecodeJSON(r, &reg); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid payload")
		return
	}
	reg.Username = strings.TrimSpace(reg.Username)
	reg.Email = strings.TrimSpace(reg.Email)
	if reg.Username == "" || reg.Password == "" || reg.Email == "" {
		httpx.Error(w, http.StatusBadRequest, "username, password, and email are required")
		return
	}
	if utf8.RuneCountInString(reg.Password) < minPasswordLength {
		httpx.Error(w, http.StatusBadRequest, shortPasswordMessage)
		return
	}

	if err := a.client.Register(r.Context(), reg); err != nil {
		a.writeUpstreamError(w, "register", err)
		return
	}
	a.logger.Info("account registered", "username", reg.Username, "college", reg.College)
	httpx.WriteJSON(w, http.StatusCreated, map[string]string{"status": "registered"})
}

func (a *App) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil || strings.TrimSpace(req.Email) == "" {
		httpx.Error(w, http.StatusBadRequest, "email is required")
		return
	}

	if err := a.client.ForgotPassword(r.Context(), strings.TrimSpace(req.Email)); err != nil {
		a.writeUpstreamError(w, "request password reset", err)
		return
	}
	httpx.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

func (a *App) handleVerifyResetToken(w http.ResponseWriter, r *http.Request) {
	target, err := a.client.VerifyResetToken(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		a.writeUpstreamError(w, "verify reset token", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, target)
}

func (a *App) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.Token == "" || req.Password == "" {
		httpx.Error(w, http.StatusBadRequest, "token and password are required")
		return
	}
	if utf8.RuneCountInString(req.Password) < minPasswordLength {
		httpx.Error(w, http.StatusBadRequest, shortPasswordMessage)
		return
	}

	if err := a.client.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		a.writeUpstreamError(w, "reset password", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeUpstreamError passes backend client errors through and reports
// everything else as a bad gateway.
func (a *App) writeUpstreamError(w http.ResponseWriter, op string, err error) {
	status := api.StatusOf(err)
	if status < http.StatusBadRequest || status >= http.StatusInternalServerError {
		a.logger.Error("failed to "+op, "error", err)
		status = http.StatusBadGateway
	}
	httpx.Error(w, status, err.Error())
}
