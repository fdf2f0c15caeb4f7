package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/CTAG07/linetmpl/pkg/store"
	"github.com/CTAG07/linetmpl/pkg/subst"
)

// maxTemplateSize caps uploaded template bodies.
const maxTemplateSize = 1 << 20

// Server wires the template library and store to the HTTP surface.
type Server struct {
	config *ServerConfig
	logger *slog.Logger
	store  *store.Store
	lib    *store.Library
	mux    *http.ServeMux
}

// NewServer creates the server object and registers all routes on its mux.
func NewServer(config *ServerConfig, logger *slog.Logger, st *store.Store, lib *store.Library) *Server {
	s := &Server{
		config: config,
		logger: logger,
		store:  st,
		lib:    lib,
		mux:    http.NewServeMux(),
	}

	s.mux.HandleFunc("/t/", s.handleRender)
	s.mux.HandleFunc("/api/templates", s.handleList)
	s.mux.HandleFunc("/api/templates/", s.handleTemplateFile)
	s.mux.HandleFunc("/api/render/", s.handleRenderStored)
	s.mux.HandleFunc("/api/health", s.handleHealthCheck)

	return s
}

// handleRender streams a library template to the client. Placeholder values
// come from repeated "v" query parameters, so /t/greeting?v=Ann&v=Bob renders
// with ${0}=Ann and ${1}=Bob.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/t/")
	values := subst.Values(r.URL.Query()["v"])

	src, err := s.lib.Open(name)
	if errors.Is(err, store.ErrNotFound) {
		respondWithError(w, http.StatusNotFound, fmt.Sprintf("Template %q not found", name))
		return
	}
	if err != nil {
		s.logger.Error("Failed to open template", "template", name, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to open template")
		return
	}
	defer func(src *subst.FileSource) {
		_ = src.Close()
	}(src)

	s.logger.Info("Serving template",
		"template", name,
		"values", len(values),
		"remote_addr", r.RemoteAddr)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if !s.config.DripFeed.Enable || s.config.DripFeed.LineDelayMs < 0 {
		if err = subst.Render(w, src, values); err != nil {
			s.logger.Error("Failed to render template", "template", name, "error", err)
		}
		return
	}
	s.dripFeed(w, r, src, values, name)
}

// dripFeed writes the rendered template one line at a time with a delay
// between flushes. Terminators are retained so every chunk is a whole line
// and the stream concatenates back to the rendered template.
func (s *Server) dripFeed(w http.ResponseWriter, r *http.Request, src subst.LineSource, values subst.Values, name string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.logger.Warn("ResponseWriter does not support flushing, sending response at once.")
		if err := subst.Render(w, src, values); err != nil {
			s.logger.Error("Failed to render template", "template", name, "error", err)
		}
		return
	}

	if s.config.DripFeed.InitialDelayMs > 0 {
		time.Sleep(time.Duration(s.config.DripFeed.InitialDelayMs) * time.Millisecond)
	}

	src.KeepLineEnds(true)
	engine := subst.NewEngine(src)
	if err := engine.Start(values); err != nil {
		s.logger.Error("Failed to start render session", "template", name, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to render template")
		return
	}
	defer engine.End()

	delay := time.Duration(s.config.DripFeed.LineDelayMs) * time.Millisecond
	first := true
	for {
		line, err := engine.NextLine()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			s.logger.Error("Failed to render template line", "template", name, "error", err)
			return
		}
		if !first && delay > 0 {
			time.Sleep(delay)
		}
		first = false
		if _, err = w.Write(line); err != nil {
			s.logger.Error("Failed to write line to client", "error", err, "remote_addr", r.RemoteAddr)
			return // Stop if the client closes the connection.
		}
		flusher.Flush()
	}
}

// handleList returns the names of all templates: the filesystem library's
// catalog and the stored set, separately keyed.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	stored, err := s.store.List(r.Context())
	if err != nil {
		s.logger.Error("Failed to list stored templates", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to list templates")
		return
	}
	names := make([]string, 0, len(stored))
	for _, info := range stored {
		names = append(names, info.Name)
	}
	respondWithJSON(w, http.StatusOK, map[string][]string{
		"library": s.lib.Names(),
		"stored":  names,
	})
}

// handleTemplateFile fetches, uploads, or deletes a single stored template.
func (s *Server) handleTemplateFile(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/api/templates/")
	if name == "" {
		respondWithError(w, http.StatusBadRequest, "Template name is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		content, err := s.store.Get(r.Context(), name)
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, fmt.Sprintf("Template %q not found", name))
			return
		}
		if err != nil {
			s.logger.Error("Failed to load template", "template", name, "error", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to load template")
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write(content)
	case http.MethodPut:
		content, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxTemplateSize))
		if err != nil {
			respondWithError(w, http.StatusRequestEntityTooLarge, "Template too large")
			return
		}
		if err = s.store.Put(r.Context(), name, content); err != nil {
			s.logger.Error("Failed to store template", "template", name, "error", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to store template")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		err := s.store.Delete(r.Context(), name)
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, fmt.Sprintf("Template %q not found", name))
			return
		}
		if err != nil {
			s.logger.Error("Failed to delete template", "template", name, "error", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to delete template")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.Header().Set("Allow", "GET, PUT, DELETE")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleRenderStored renders a stored template with a JSON array of values in
// the request body.
func (s *Server) handleRenderStored(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/api/render/")

	var values subst.Values
	if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
		respondWithError(w, http.StatusBadRequest, "Request body must be a JSON array of strings")
		return
	}

	src, err := s.store.Source(r.Context(), name)
	if errors.Is(err, store.ErrNotFound) {
		respondWithError(w, http.StatusNotFound, fmt.Sprintf("Template %q not found", name))
		return
	}
	if err != nil {
		s.logger.Error("Failed to load template", "template", name, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to load template")
		return
	}

	var buf bytes.Buffer
	if err = subst.Render(&buf, src, values); err != nil {
		s.logger.Error("Failed to render template", "template", name, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to render template")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, _ *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		err := json.NewEncoder(w).Encode(payload)
		if err != nil {
			fmt.Printf("ERROR: Failed to encode JSON response: %v\n", err)
		}
	}
}
