// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

// Package control provides the HTTP control socket of a running host: its
// status, switching the active plugin, resizing and shutdown.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/frei0rhost/frei0rhost/internal/xdg"
)

// maxBody bounds a request body.
const maxBody = 4 << 10

// HealthResponse is returned by the /health endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// PluginStatus describes the requested and the active plugin.
type PluginStatus struct {
	// Requested is the latest requested path, "none" for no plugin.
	Requested string `json:"requested"`
	// Active is the path of the loaded plugin, empty while none is.
	Active string `json:"active,omitempty"`
	Name   string `json:"name,omitempty"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// StatusResponse is returned by the /status endpoint.
type StatusResponse struct {
	Running       bool         `json:"running"`
	PID           int          `json:"pid"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	Name          string       `json:"name"`
	Plugin        PluginStatus `json:"plugin"`
}

// SelectRequest is the body of POST /select.
type SelectRequest struct {
	// Plugin is a path, a file name in the plugin directories, or "none".
	Plugin string `json:"plugin"`
}

// ResizeRequest is the body of POST /resize.
type ResizeRequest struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// MessageResponse acknowledges a request or reports why it failed.
type MessageResponse struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Host is the running host as seen by the control socket.
type Host interface {
	// Select requests a plugin by reference; it fails when the reference
	// cannot be resolved.
	Select(ctx context.Context, ref string) error
	Resize(width, height int)
	Plugin() PluginStatus
}

// ShutdownFunc is called when shutdown is requested.
type ShutdownFunc func()

// Server runs HTTP over a Unix socket for process management.
type Server struct {
	name         string
	host         Host
	startTime    time.Time
	listener     net.Listener
	httpServer   *http.Server
	socketPath   string
	shutdownFunc ShutdownFunc
	running      atomic.Bool
}

// NewServer creates a control socket server. name distinguishes hosts
// running side by side.
func NewServer(name string, host Host, shutdownFunc ShutdownFunc) *Server {
	s := &Server{
		name:         name,
		host:         host,
		startTime:    time.Now(),
		shutdownFunc: shutdownFunc,
	}
	s.running.Store(true)
	return s
}

// SocketPath returns the path to the Unix socket of the host called name.
func SocketPath(name string) string {
	return filepath.Join(xdg.RuntimeDir(), fmt.Sprintf("frei0rhost-%s.sock", name))
}

// Handler returns the control API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /select", s.handleSelect)
	mux.HandleFunc("POST /resize", s.handleResize)
	mux.HandleFunc("POST /shutdown", s.handleShutdown)
	return mux
}

// Start begins listening on the Unix socket.
func (s *Server) Start() error {
	socketPath := SocketPath(s.name)
	s.socketPath = socketPath

	if err := xdg.EnsureDir(filepath.Dir(socketPath)); err != nil {
		return fmt.Errorf("failed to create runtime directory: %w", err)
	}

	// A socket left behind by a crashed host would block the listener.
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket: %w", err)
	}
	s.listener = listener

	if err := os.Chmod(socketPath, 0o600); err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("control socket server error",
				"name", s.name,
				"error", err,
			)
		}
	}()

	slog.Info("control socket listening", "path", socketPath)
	return nil
}

// Stop gracefully shuts down the control socket server.
func (s *Server) Stop(ctx context.Context) error {
	s.running.Store(false)

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown http server: %w", err)
		}
	}

	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			slog.Warn("failed to close control socket listener",
				"name", s.name,
				"error", err,
			)
		}
	}

	if s.socketPath != "" {
		if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove control socket file",
				"name", s.name,
				"path", s.socketPath,
				"error", err,
			)
		}
	}

	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.reply(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		Running:       s.running.Load(),
		PID:           os.Getpid(),
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Name:          s.name,
	}
	if s.host != nil {
		resp.Plugin = s.host.Plugin()
	}
	s.reply(w, http.StatusOK, resp)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Plugin == "" {
		s.reply(w, http.StatusBadRequest, MessageResponse{Error: "plugin is required"})
		return
	}
	if s.host == nil {
		s.reply(w, http.StatusServiceUnavailable, MessageResponse{Error: "no host attached"})
		return
	}
	if err := s.host.Select(r.Context(), req.Plugin); err != nil {
		s.reply(w, http.StatusBadRequest, MessageResponse{Error: err.Error()})
		return
	}
	slog.Info("plugin requested over control socket", "plugin", req.Plugin)
	s.reply(w, http.StatusAccepted, MessageResponse{Message: "plugin requested"})
}

func (s *Server) handleResize(w http.ResponseWriter, r *http.Request) {
	var req ResizeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Width <= 0 || req.Height <= 0 {
		s.reply(w, http.StatusBadRequest, MessageResponse{
			Error: fmt.Sprintf("invalid size %dx%d", req.Width, req.Height),
		})
		return
	}
	if s.host == nil {
		s.reply(w, http.StatusServiceUnavailable, MessageResponse{Error: "no host attached"})
		return
	}
	s.host.Resize(req.Width, req.Height)
	s.reply(w, http.StatusAccepted, MessageResponse{Message: "resize requested"})
}

func (s *Server) handleShutdown(w http.ResponseWriter, _ *http.Request) {
	s.reply(w, http.StatusOK, MessageResponse{Message: "shutdown initiated"})

	if s.shutdownFunc != nil {
		go s.shutdownFunc()
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.reply(w, http.StatusBadRequest, MessageResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func (s *Server) reply(w http.ResponseWriter, statusCode int, v any) {
	if err := writeJSON(w, statusCode, v); err != nil {
		slog.Error("failed to write control response",
			"name", s.name,
			"error", err,
		)
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON response: %w", err)
	}
	return nil
}
