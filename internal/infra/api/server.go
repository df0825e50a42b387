// Package api serves the JobFlow HTTP surface.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"jobflow/internal/infra/metrics"
	"jobflow/internal/infra/sse"
	"jobflow/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Deps struct {
	Auth     *AuthManager
	Users    usecase.UserUseCase
	Payments usecase.PaymentUseCase
	Jobs     usecase.JobUseCase
	Chat     usecase.ChatUseCase
	Flags    usecase.FeatureFlagUseCase
	Stream   *sse.Broadcaster

	ChatLimiter   UserLimiter // nil disables the per-user chat window
	VerifyLimiter *IPLimiter  // nil disables the per-IP verify bucket
	Health        map[string]HealthCheck
}

type Options struct {
	Addr            string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	// Keepalive is the comment interval on the flag stream; zero disables it.
	Keepalive time.Duration
	ChatModel string
}

type Server struct {
	auth          *AuthManager
	users         usecase.UserUseCase
	payments      usecase.PaymentUseCase
	jobs          usecase.JobUseCase
	chat          usecase.ChatUseCase
	flags         usecase.FeatureFlagUseCase
	stream        *sse.Broadcaster
	chatLimiter   UserLimiter
	verifyLimiter *IPLimiter
	health        map[string]HealthCheck

	opts      Options
	keepalive time.Duration
	chatModel string
	log       *zerolog.Logger
	srv       *http.Server

	// done is closed when shutdown begins; long-lived handlers select on it.
	done        chan struct{}
	stopStreams func()
}

func NewServer(d Deps, opts Options, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "api").Logger()
	s := &Server{
		auth:          d.Auth,
		users:         d.Users,
		payments:      d.Payments,
		jobs:          d.Jobs,
		chat:          d.Chat,
		flags:         d.Flags,
		stream:        d.Stream,
		chatLimiter:   d.ChatLimiter,
		verifyLimiter: d.VerifyLimiter,
		health:        d.Health,
		opts:          opts,
		keepalive:     opts.Keepalive,
		chatModel:     opts.ChatModel,
		log:           &l,
		done:          make(chan struct{}),
	}
	s.stopStreams = sync.OnceFunc(func() { close(s.done) })
	s.srv = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.srv.RegisterOnShutdown(s.stopStreams)
	return s
}

// Routes builds the router. The flag stream is mounted outside the request timeout.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(s.log), RequestLog(s.log), Recover(s.log))
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, r, http.StatusNotFound, msgNotFound)
	})

	r.Get("/feature-flags/stream", s.handleFlagStream)

	r.Group(func(r chi.Router) {
		r.Use(Timeout(s.opts.RequestTimeout))

		r.Get("/health", s.handleHealth)
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
		r.Get("/feature-flags", s.handleFlagList)

		r.Route("/payments/payu", func(r chi.Router) {
			r.Post("/callback", s.handlePayUCallback)
			r.With(LimitByIP(s.verifyLimiter, func() { metrics.IncPayUVerify("rate_limited") })).
				Post("/verify", s.handlePayUVerify)
			r.With(Authenticate(s.auth, s.users, s.log)).Post("/init", s.handlePayUInit)
		})

		r.Group(func(r chi.Router) {
			r.Use(Authenticate(s.auth, s.users, s.log))

			r.Get("/me", s.handleMe)
			r.With(LimitChat(s.chatLimiter, s.log)).Post("/chat", s.handleChat)

			r.Route("/jobs", func(r chi.Router) {
				r.Get("/", s.handleJobList)
				r.Post("/", s.handleJobCreate)
				r.Put("/{id}", s.handleJobUpdate)
				r.Delete("/{id}", s.handleJobDelete)
			})

			r.With(RequireAdmin).Put("/admin/feature-flags/{name}", s.handleFlagUpdate)
		})
	})
	return r
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.log.Info().Str("addr", ln.Addr().String()).Msg("http server listening")
	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
// Open flag streams are told to finish as soon as shutdown begins.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.opts.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.ShutdownTimeout)
		defer cancel()
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := s.users.Me(r.Context(), currentUser(r).ID)
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, r, http.StatusOK, u)
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	status := http.StatusOK
	if len(s.health) > 0 {
		resp.Checks = make(map[string]string, len(s.health))
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		for name, check := range s.health {
			if err := check(ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
	}
	writeJSON(w, r, status, resp)
}
