package api

import (
	"net/http"
	"time"

	"jobflow/internal/domain/model"
	"jobflow/internal/infra/logging"
	"jobflow/internal/infra/sse"

	"github.com/go-chi/chi/v5"
)

// streamRetryMillis is the reconnect delay announced to EventSource clients.
const streamRetryMillis = 10000

type flagsResponse struct {
	Flags model.FlagMap `json:"flags"`
}

type flagUpdateRequest struct {
	Enabled     *bool  `json:"enabled" validate:"required"`
	Description string `json:"description" validate:"max=500"`
}

func (s *Server) handleFlagList(w http.ResponseWriter, r *http.Request) {
	flags, err := s.flags.List(r.Context())
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, r, http.StatusOK, flagsResponse{Flags: flags})
}

// handleFlagStream holds the connection open and relays every flag broadcast.
// Nothing is replayed on connect; clients fetch the current map separately.
func (s *Server) handleFlagStream(w http.ResponseWriter, r *http.Request) {
	client, err := sse.NewStreamClient(w)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	if err := client.Open(streamRetryMillis); err != nil {
		return
	}

	s.stream.Add(client)
	defer func() {
		s.stream.Remove(client)
		client.Close()
	}()

	l := logging.With(r.Context(), s.log)
	l.Debug().Int("subscribers", s.stream.Len()).Msg("flag stream opened")

	var tick <-chan time.Time
	if s.keepalive > 0 {
		t := time.NewTicker(s.keepalive)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-r.Context().Done():
			l.Debug().Msg("flag stream closed")
			return
		case <-s.done:
			l.Debug().Msg("flag stream closed for shutdown")
			return
		case <-tick:
			if err := client.Ping(); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleFlagUpdate(w http.ResponseWriter, r *http.Request) {
	var req flagUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, r, http.StatusBadRequest, msgBadBody)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeMessage(w, r, http.StatusBadRequest, validationMessage(err))
		return
	}

	flags, err := s.flags.Set(r.Context(), chi.URLParam(r, "name"), *req.Enabled, req.Description)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, r, http.StatusOK, flagsResponse{Flags: flags})
}
