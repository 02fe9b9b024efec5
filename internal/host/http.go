// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Frei0rHost Contributors

package host

import (
	"bufio"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/frei0rhost/frei0rhost/internal/plugin"
	"github.com/frei0rhost/frei0rhost/pkg/errutil"
)

// maxParamsBody bounds a POSTed assignment list.
const maxParamsBody = 64 << 10

// ParamsHandler exposes the active plugin's parameters over HTTP.
//
// GET returns the parameters as a JSON Schema whose defaults are the
// current values. POST takes one "name=value" assignment per line and
// queues them for the next tick.
type ParamsHandler struct {
	driver *Driver
}

// NewParamsHandler creates the handler for d.
func NewParamsHandler(d *Driver) *ParamsHandler {
	return &ParamsHandler{driver: d}
}

// ServeHTTP implements http.Handler.
func (h *ParamsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		h.schema(w)
	case http.MethodPost:
		h.apply(w, r)
	default:
		w.Header().Set("Allow", "GET, HEAD, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ParamsHandler) schema(w http.ResponseWriter) {
	s, ok := h.driver.Schema()
	if !ok {
		http.Error(w, "no active plugin", http.StatusServiceUnavailable)
		return
	}
	data, err := plugin.MarshalParamSchema(s.Info, s.Params, h.driver.Values())
	if err != nil {
		errutil.LogError(slog.Default(), "render parameter schema", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/schema+json")
	//nolint:errcheck // client may disconnect
	w.Write(data)
}

func (h *ParamsHandler) apply(w http.ResponseWriter, r *http.Request) {
	var texts []string
	scanner := bufio.NewScanner(io.LimitReader(r.Body, maxParamsBody))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" && !strings.HasPrefix(line, "#") {
			texts = append(texts, line)
		}
	}
	if err := scanner.Err(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(texts) == 0 {
		http.Error(w, "no assignments", http.StatusBadRequest)
		return
	}

	if err := h.driver.Apply(texts...); err != nil {
		status := http.StatusBadRequest
		if _, ok := h.driver.Schema(); !ok {
			status = http.StatusServiceUnavailable
		}
		http.Error(w, err.Error(), status)
		return
	}
	slog.Debug("queued parameter edits over HTTP", "count", len(texts), "remote", r.RemoteAddr)
	w.WriteHeader(http.StatusNoContent)
}
