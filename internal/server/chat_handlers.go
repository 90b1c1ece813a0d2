package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/intelverse/intelverse-go/internal/chat"
	"github.com/intelverse/intelverse-go/internal/logger"
)

type chatRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"sessionId"`
}

func decodeChatRequest(r *http.Request) (chatRequest, error) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, err
	}
	if req.SessionID == "" {
		req.SessionID = "default"
	}
	return req, nil
}

func chatErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, chat.ErrInvalidInput):
		return http.StatusBadRequest, "Query is required"
	default:
		return http.StatusInternalServerError, "Failed to process chat query"
	}
}

// handleChat is the blocking chat endpoint: one generation call, one
// JSON response.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	req, err := decodeChatRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	reply, err := s.coordinator.Answer(r.Context(), req.SessionID, req.Query)
	if err != nil {
		logger.L.Error("chat failed", "sessionId", req.SessionID, "error", err)
		status, msg := chatErrorStatus(err)
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

// handleChatStream is the SSE chat endpoint. The SSE channel is opened
// lazily on the first event, so failures before any output surface as
// a plain HTTP error rather than an empty stream.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	req, err := decodeChatRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var sw *sseWriter
	emit := func(ev chat.Event) error {
		if sw == nil {
			var err error
			if sw, err = newSSEWriter(w); err != nil {
				return err
			}
		}
		return sw.writeData(ev)
	}

	err = s.coordinator.RunExchange(r.Context(), req.SessionID, req.Query, emit)
	if err == nil {
		return
	}
	logger.L.Error("chat stream failed", "sessionId", req.SessionID, "error", err)
	if sw == nil {
		status, msg := chatErrorStatus(err)
		writeError(w, status, msg)
	}
	// With the stream already open the coordinator has either delivered
	// a terminal event itself or the client is gone; nothing to add.
}

// handleChatHistory returns the full history of one session.
func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		sessionID = "default"
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": s.coordinator.History(sessionID)})
}
