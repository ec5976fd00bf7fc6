package app

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"chizu/campus-client/internal/httpx"
	"chizu/campus-client/internal/store"
)

func (a *App) serveConfig(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	persisted, err := a.store.AppConfig(ctx)
	if err != nil {
		a.logger.Error("failed to load app config", "error", err)
		httpx.Error(w, http.StatusInternalServerError, "failed to load config")
		return
	}

	active := map[string]any{
		"api_base_url":   a.cfg.APIBaseURL,
		"http_port":      a.cfg.HTTPPort,
		"metrics_port":   a.cfg.MetricsPort,
		"database_path":  a.cfg.DatabasePath,
		"log_level":      a.cfg.LogLevel,
		"routing_engine": routingEngine(a.cfg.Routing.APIKey),
		"mqtt_broker":    a.cfg.MQTT.Broker,
		"tile_url":       a.cfg.Map.TileURL,
		"mdns_enabled":   a.cfg.MDNS.Enabled,
	}

	response := struct {
		Active    map[string]any    `json:"active"`
		Persisted map[string]string `json:"persisted"`
	}{
		Active:    active,
		Persisted: persisted,
	}

	httpx.WriteJSON(w, http.StatusOK, response)
}

func routingEngine(apiKey string) string {
	if apiKey == "" {
		return "straight"
	}
	return "graphhopper"
}

func (a *App) updateConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HTTPPort   *int    `json:"http_port"`
		APIBaseURL *string `json:"api_base_url"`
		LogLevel   *string `json:"log_level"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid payload")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	type updateResult struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}

	var pending []updateResult

	if req.HTTPPort != nil {
		port := *req.HTTPPort
		if port < 1 || port > 65535 {
			httpx.Error(w, http.StatusBadRequest, "http_port must be between 1 and 65535")
			return
		}
		pending = append(pending, updateResult{Key: "http_port", Value: strconv.Itoa(port)})
	}

	if req.APIBaseURL != nil {
		base := strings.TrimSpace(*req.APIBaseURL)
		if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
			httpx.Error(w, http.StatusBadRequest, "api_base_url must be an http(s) URL")
			return
		}
		pending = append(pending, updateResult{Key: "api_base_url", Value: base})
	}

	if req.LogLevel != nil {
		level := strings.ToLower(strings.TrimSpace(*req.LogLevel))
		switch level {
		case "debug", "info", "warn", "error":
		default:
			httpx.Error(w, http.StatusBadRequest, "log_level must be one of debug, info, warn, error")
			return
		}
		pending = append(pending, updateResult{Key: "log_level", Value: level})
	}

	if len(pending) == 0 {
		httpx.Error(w, http.StatusBadRequest, "no supported fields provided")
		return
	}

	for _, u := range pending {
		if err := a.store.UpsertAppConfig(ctx, u.Key, u.Value); err != nil {
			a.logger.Error("failed to update "+u.Key, "error", err)
			httpx.Error(w, http.StatusInternalServerError, "failed to persist config")
			return
		}
	}

	resp := struct {
		Updates         []updateResult `json:"updates"`
		RequiresRestart bool           `json:"requires_restart"`
	}{
		Updates:         pending,
		RequiresRestart: true,
	}

	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (a *App) handleActionErrors(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		httpx.Error(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	limit := 25
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			if parsed > 0 && parsed <= 250 {
				limit = parsed
			}
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	entries, err := a.store.RecentActionErrors(ctx, limit)
	if err != nil {
		a.logger.Error("failed to load action errors", "error", err)
		httpx.Error(w, http.StatusInternalServerError, "failed to load action errors")
		return
	}
	if entries == nil {
		entries = []store.ActionError{}
	}

	httpx.WriteJSON(w, http.StatusOK, struct {
		Errors []store.ActionError `json:"errors"`
	}{Errors: entries})
}

func (a *App) handleWipeDatabase(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		httpx.Error(w, http.StatusServiceUnavailable, "store not initialized")
		return
	}

	var body struct {
		Confirm string `json:"confirm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid payload")
		return
	}

	if strings.ToLower(strings.TrimSpace(body.Confirm)) != "wipe" {
		httpx.Error(w, http.StatusBadRequest, "confirmation required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := a.store.WipeData(ctx); err != nil {
		a.logger.Error("wipe: failed", "error", err)
		httpx.Error(w, http.StatusInternalServerError, "failed to wipe data")
		return
	}

	a.logger.Warn("wipe: cached campus data and action errors cleared")
	w.WriteHeader(http.StatusNoContent)
}
