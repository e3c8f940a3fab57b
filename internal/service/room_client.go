package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/session-escrow/internal/logging"
)

// RoomClient provisions video rooms on an external provider.
type RoomClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewRoomClient(baseURL string) *RoomClient {
	return &RoomClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

type roomRequest struct {
	SessionID string `json:"session_id"`
}

type roomResponse struct {
	RoomToken string `json:"room_token"`
}

func (c *RoomClient) CreateRoom(ctx context.Context, sessionID uuid.UUID) (string, error) {
	log := logging.FromContext(ctx)

	body, err := json.Marshal(roomRequest{SessionID: sessionID.String()})
	if err != nil {
		return "", fmt.Errorf("CreateRoom: marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rooms", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("CreateRoom: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	log.Info("room provider request sent", "session_id", sessionID)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("CreateRoom: send: %w", err)
	}
	defer resp.Body.Close()

	log.Info("room provider response received",
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("CreateRoom: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var out roomResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("CreateRoom: decode: %w", err)
	}
	if out.RoomToken == "" {
		return "", fmt.Errorf("CreateRoom: empty room token")
	}
	return out.RoomToken, nil
}
