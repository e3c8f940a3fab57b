// Command mock-room-provider stands in for the video-room service during
// local runs. Every POST /rooms gets a fresh opaque token.
package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"

	"github.com/google/uuid"

	"github.com/josh-kwaku/session-escrow/internal/logging"
)

type createRoomRequest struct {
	SessionID uuid.UUID `json:"session_id"`
}

func main() {
	logging.Init("mock-room-provider", "info", os.Getenv("APP_ENV"))

	addr := ":8081"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("POST /rooms", createRoom)

	slog.Info("mock room provider started", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func createRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == uuid.Nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session_id required"})
		return
	}

	token := "room_" + uuid.NewString()
	slog.Info("room created", "session_id", req.SessionID, "room_token", token)
	writeJSON(w, http.StatusCreated, map[string]string{"room_token": token})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
