package handlers

import (
	"net/http"
	"time"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{
		"status":             "healthy",
		"timestamp":          a.now().Format(time.RFC3339),
		"message":            "AI Avatar API is running",
		"active_connections": a.ActiveConnections(),
	})
}

func (a *App) Config(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{"features": a.Features})
}
