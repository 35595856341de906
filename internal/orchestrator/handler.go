package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"yt-grab/internal/platform/metrics"
	"yt-grab/internal/ytdlp"
)

// contentTypes maps artifact extensions to response content types.
var contentTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".flac": "audio/flac",
	".wav":  "audio/wav",
	".aac":  "audio/aac",
	".m4a":  "audio/mp4",
	".zip":  "application/zip",
}

// Resolver fetches playlist/video metadata. Implemented by *ytdlp.Resolver.
type Resolver interface {
	Resolve(ctx context.Context, rawURL string) (*ytdlp.Playlist, error)
}

// DependencyChecker probes the external toolchain. Implemented by *ytdlp.Tool.
type DependencyChecker interface {
	CheckDependencies(ctx context.Context) ytdlp.Health
}

// Handler exposes orchestrator HTTP endpoints using go-chi.
type Handler struct {
	svc      *Service
	resolver Resolver
	registry *Registry
	checker  DependencyChecker
	log      *slog.Logger
	metrics  *metrics.Metrics
}

// NewHandler returns a Handler wired to the given collaborators.
// Metrics may be nil to disable metric recording (e.g. in tests).
func NewHandler(svc *Service, resolver Resolver, registry *Registry, checker DependencyChecker, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{svc: svc, resolver: resolver, registry: registry, checker: checker, log: log, metrics: m}
}

// Routes mounts all endpoints on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/api/playlist", h.ResolvePlaylist)
	r.Post("/api/download", h.StartDownload)
	r.Get("/api/download/file/{id}", h.FetchArtifact)
	r.Get("/api/health", h.Health)
}

// ResolvePlaylist handles GET /api/playlist?url=...
func (h *Handler) ResolvePlaylist(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		writeJSONError(w, http.StatusBadRequest, "Missing url parameter")
		return
	}
	if !ValidYouTubeURL(rawURL) {
		writeJSONError(w, http.StatusBadRequest, "Invalid YouTube URL")
		return
	}

	info, err := h.resolver.Resolve(r.Context(), rawURL)
	if err != nil {
		var resErr *ytdlp.ResolutionError
		msg := "Failed to fetch video info"
		if errors.As(err, &resErr) {
			msg = resErr.Message
		}
		h.log.Info("resolve failed", slog.String("url", rawURL), slog.String("error", err.Error()))
		writeJSONError(w, http.StatusInternalServerError, msg)
		return
	}

	h.log.Debug("resolved",
		slog.String("url", rawURL),
		slog.Int("videos", info.VideoCount),
	)
	writeJSON(w, http.StatusOK, info)
}

// StartDownload handles POST /api/download. Validation failures return a
// 4xx JSON error; otherwise the response is a server-sent event stream of
// session frames, ending after exactly one terminal event. Disconnecting
// cancels the session.
func (h *Handler) StartDownload(w http.ResponseWriter, r *http.Request) {
	var req DownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid download body", slog.String("error", err.Error()))
		writeJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.svc.ValidateRequest(&req); err != nil {
		var valErr *ValidationError
		msg := err.Error()
		if errors.As(err, &valErr) {
			msg = valErr.Message
		}
		writeJSONError(w, http.StatusBadRequest, msg)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	if h.metrics != nil {
		h.metrics.IncSessionsStarted()
		h.metrics.AddActiveSessions(1)
		defer h.metrics.AddActiveSessions(-1)
	}

	// The request context cancels when the client disconnects, which stops
	// the session. The stream must still be drained until close.
	for ev := range h.svc.Run(r.Context(), req) {
		payload, err := json.Marshal(ev)
		if err != nil {
			h.log.Error("event marshal failed", slog.String("error", err.Error()))
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
		h.recordEvent(ev)
	}
}

func (h *Handler) recordEvent(ev Event) {
	if h.metrics == nil {
		return
	}
	switch {
	case ev.Status == StatusDone:
		h.metrics.IncVideosDownloaded()
	case ev.Status == StatusError:
		h.metrics.IncVideosFailed()
	case ev.Type == "stopped":
		h.metrics.IncSessionsStopped()
	case ev.Type == "ready":
		h.metrics.IncArtifactsRegistered()
	}
}

// FetchArtifact handles GET /api/download/file/{id}. Redemption is
// single-use: the registry entry is removed up front and the workspace is
// deleted once the bytes have been delivered.
func (h *Handler) FetchArtifact(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	download, ok := h.registry.Take(id)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "Download not found or expired")
		return
	}

	f, err := os.Open(download.FilePath)
	if err != nil {
		h.log.Error("artifact open failed", slog.String("path", download.FilePath), slog.String("error", err.Error()))
		RemoveWorkspace(download.FilePath, h.log)
		writeJSONError(w, http.StatusInternalServerError, "Failed to serve file")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		RemoveWorkspace(download.FilePath, h.log)
		writeJSONError(w, http.StatusInternalServerError, "Failed to serve file")
		return
	}

	w.Header().Set("Content-Type", contentTypeFor(download.Filename))
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", url.PathEscape(download.Filename)))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, f); err != nil {
		h.log.Debug("artifact delivery interrupted", slog.String("id", id), slog.String("error", err.Error()))
	}

	RemoveWorkspace(download.FilePath, h.log)
	h.log.Info("artifact served", slog.String("id", id), slog.String("filename", download.Filename))
	if h.metrics != nil {
		h.metrics.IncArtifactsServed()
	}
}

// Health handles GET /api/health: availability of the external toolchain.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.checker.CheckDependencies(r.Context()))
}

func contentTypeFor(filename string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return ct
	}
	return "application/octet-stream"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
