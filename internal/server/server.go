// Package server exposes the chat pipeline over HTTP: an embedded single-page
// frontend, transcript replay, and a streaming NDJSON chat endpoint.
package server

import (
	"context"
	_ "embed"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Cyclone1070/sandchat/internal/chat"
)

//go:embed index.html
var indexHTML []byte

// chatRunner is the orchestrator seam.
type chatRunner interface {
	Run(ctx context.Context, prompt string) (<-chan chat.Message, <-chan error)
	History(ctx context.Context) ([]chat.Message, error)
}

// Server serves the chat frontend and API.
type Server struct {
	runner chatRunner
	logger *slog.Logger
	srv    *http.Server
}

// New creates a Server listening on addr.
func New(addr string, runner chatRunner, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		runner: runner,
		logger: logger.With("component", "server"),
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the route table. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /chat/", s.handleHistory)
	mux.HandleFunc("POST /chat/", s.handleChat)
	return mux
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		errc <- s.srv.ListenAndServe()
	}()
	s.logger.Info("listening", "addr", s.srv.Addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	err := <-errc
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// handleHistory replays the persisted transcript as NDJSON.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	messages, err := s.runner.History(r.Context())
	if err != nil {
		s.logger.Error("loading history", "error", err)
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}

	out := newNDJSONWriter(w)
	if out == nil {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	for _, msg := range messages {
		if err := out.Send(msg); err != nil {
			return
		}
	}
}

// handleChat runs one turn, streaming the echoed prompt, tool-events and
// cumulative model text as they happen.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	prompt := r.FormValue("prompt")
	if prompt == "" {
		http.Error(w, "prompt is required", http.StatusBadRequest)
		return
	}

	out := newNDJSONWriter(w)
	if out == nil {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	messages, errc := s.runner.Run(r.Context(), prompt)
	for msg := range messages {
		if err := out.Send(msg); err != nil {
			// Client went away; the orchestrator notices via r.Context().
			s.logger.Debug("client disconnected", "error", err)
			for range messages {
			}
			break
		}
	}

	// Headers are long gone, so a late failure can only be logged.
	if err := <-errc; err != nil {
		s.logger.Error("turn failed", "error", err)
	}
}
