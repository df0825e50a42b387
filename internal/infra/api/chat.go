package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"jobflow/internal/domain"
	"jobflow/internal/domain/ports/adapter"
	"jobflow/internal/infra/metrics"
	"jobflow/internal/usecase"
)

type chatRequest struct {
	Messages json.RawMessage `json:"messages"`
}

type chatResponse struct {
	Reply string         `json:"reply"`
	Model string         `json:"model"`
	Usage *adapter.Usage `json:"usage"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	_ = decodeJSON(w, r, &req)

	// Anything that is not an array counts as an empty history.
	var raw []any
	if len(req.Messages) > 0 {
		if err := json.Unmarshal(req.Messages, &raw); err != nil {
			raw = nil
		}
	}

	start := time.Now()
	reply, err := s.chat.Reply(r.Context(), raw)
	if err != nil {
		var ue *domain.UpstreamError
		switch {
		case errors.As(err, &ue):
			reason := "upstream"
			if ue.Message == usecase.EmptyReplyMessage {
				reason = "empty_reply"
			}
			metrics.IncChatRejected(reason)
			metrics.ObserveChatUsage(ue.Provider, s.chatModel, 0, 0, time.Since(start).Milliseconds(), false)
		case errors.Is(err, domain.ErrInvalidArgument):
			metrics.IncChatRejected("no_message")
		}
		writeError(w, r, s.log, err)
		return
	}

	in, out := 0, 0
	if reply.Usage != nil {
		in, out = reply.Usage.InputTokens, reply.Usage.OutputTokens
	}
	metrics.ObserveChatUsage(reply.Provider, reply.Model, in, out, time.Since(start).Milliseconds(), true)

	writeJSON(w, r, http.StatusOK, chatResponse{Reply: reply.Reply, Model: reply.Model, Usage: reply.Usage})
}
