package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"yt-grab/internal/ytdlp"
)

// DefaultMaxVideos bounds the number of videos in a single request.
const DefaultMaxVideos = 100

// allowedHosts is the fixed YouTube host allow-list for source URLs.
var allowedHosts = map[string]bool{
	"www.youtube.com":   true,
	"youtube.com":       true,
	"m.youtube.com":     true,
	"youtu.be":          true,
	"music.youtube.com": true,
}

var allowedQualities = map[int]bool{128: true, 192: true, 320: true}

// ValidYouTubeURL reports whether raw parses as a URL whose host is in the
// YouTube allow-list.
func ValidYouTubeURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return allowedHosts[u.Hostname()]
}

// ValidationError reports a malformed download request. It is returned
// before any workspace is created or process spawned.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// JobRunner runs one external download job. Implemented by *ytdlp.Runner;
// stubbed in tests.
type JobRunner interface {
	Run(ctx context.Context, job ytdlp.Job, cb ytdlp.Callbacks) error
}

// Service drives download sessions: one isolated workspace and one strictly
// sequential run of jobs per request, surfaced as a single event stream.
type Service struct {
	runner    JobRunner
	registry  *Registry
	maxVideos int
	baseDir   string
	log       *slog.Logger
}

// NewService returns a Service using the given runner and registry.
// If maxVideos <= 0, DefaultMaxVideos is used. Session workspaces are
// created under the system temp directory.
func NewService(runner JobRunner, registry *Registry, maxVideos int, log *slog.Logger) *Service {
	if maxVideos <= 0 {
		maxVideos = DefaultMaxVideos
	}
	return &Service{
		runner:    runner,
		registry:  registry,
		maxVideos: maxVideos,
		baseDir:   filepath.Join(os.TempDir(), "yt-grab"),
		log:       log,
	}
}

// ValidateRequest checks req and applies defaults (mp3, 128 kbps) in place.
// A *ValidationError is returned for an empty or oversized video list, a
// source URL outside the YouTube allow-list, or an unsupported format or
// quality. No external process is ever invoked for an invalid request.
func (s *Service) ValidateRequest(req *DownloadRequest) error {
	if len(req.Videos) == 0 {
		return &ValidationError{Message: "No videos provided"}
	}
	if len(req.Videos) > s.maxVideos {
		return &ValidationError{Message: "Too many videos in one request"}
	}
	for _, v := range req.Videos {
		if !ValidYouTubeURL(v.URL) {
			return &ValidationError{Message: "Invalid YouTube URL"}
		}
	}

	if req.Format == "" {
		req.Format = ytdlp.FormatMP3
	}
	if !req.Format.Valid() {
		return &ValidationError{Message: "Unsupported audio format"}
	}
	if req.Quality == 0 {
		req.Quality = 128
	}
	if !allowedQualities[req.Quality] {
		return &ValidationError{Message: "Unsupported audio quality"}
	}
	return nil
}

// Run starts a session for an already validated request and returns its
// event stream. The channel carries exactly one terminal event and is then
// closed; the consumer must drain it until close. Cancelling ctx stops the
// session cooperatively: the in-flight job is torn down, remaining videos
// are never started, and a stopped event terminates the stream.
func (s *Service) Run(ctx context.Context, req DownloadRequest) <-chan Event {
	events := make(chan Event)
	go s.runSession(ctx, req, events)
	return events
}

func (s *Service) runSession(ctx context.Context, req DownloadRequest, events chan<- Event) {
	defer close(events)

	sessionID := uuid.NewString()
	workspace := filepath.Join(s.baseDir, sessionID)
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		s.log.Error("workspace create failed", slog.String("error", err.Error()))
		events <- Event{Type: "error", Error: "Failed to create working directory"}
		return
	}

	log := s.log.With(slog.String("session_id", sessionID))
	log.Info("session started",
		slog.Int("videos", len(req.Videos)),
		slog.String("format", string(req.Format)),
		slog.Int("quality", req.Quality),
	)

	// Prime every video as queued before any job starts, so the consumer can
	// render the full set up front.
	for _, v := range req.Videos {
		events <- Event{VideoID: v.ID, Title: v.Title, Status: StatusQueued, Progress: 0}
	}

	cancelled := false
	for _, v := range req.Videos {
		if ctx.Err() != nil {
			cancelled = true
			break
		}

		job := ytdlp.Job{
			URL:       v.URL,
			VideoID:   v.ID,
			OutputDir: workspace,
			Format:    req.Format,
			Quality:   req.Quality,
		}
		err := s.runner.Run(ctx, job, ytdlp.Callbacks{
			OnProgress: func(id string, pct float64) {
				events <- Event{VideoID: id, Status: StatusDownloading, Progress: pct}
			},
			OnStatusChange: func(id, status string) {
				p := 0.0
				if status == "converting" {
					p = 100
				}
				events <- Event{VideoID: id, Status: Status(status), Progress: p}
			},
			OnError: func(id, msg string) {
				events <- Event{VideoID: id, Status: StatusError, Progress: 0, Error: msg}
			},
			OnDone: func(id string) {
				events <- Event{VideoID: id, Status: StatusDone, Progress: 100}
			},
		})
		if err != nil {
			if errors.Is(err, ytdlp.ErrCancelled) || ctx.Err() != nil {
				cancelled = true
				break
			}
			// Per-video failure: already surfaced via the error event, keep
			// going with the remaining videos.
			log.Warn("video failed", slog.String("video_id", v.ID), slog.String("error", err.Error()))
		}
	}

	if cancelled {
		log.Info("session stopped by client")
		events <- Event{Type: "stopped"}
		s.cleanupWorkspace(workspace)
		return
	}

	s.finalize(req, workspace, events, log)
}

// finalize scans the workspace and registers exactly one artifact: the file
// itself for a single download, a zip for several.
func (s *Service) finalize(req DownloadRequest, workspace string, events chan<- Event, log *slog.Logger) {
	files, err := collectAudioFiles(workspace)
	if err != nil || len(files) == 0 {
		// Reachable even without per-video errors: the scan is the final check.
		events <- Event{Type: "error", Error: "No files were downloaded successfully"}
		s.cleanupWorkspace(workspace)
		return
	}

	if len(files) == 1 {
		filename := files[0]
		id := s.registry.Put(filepath.Join(workspace, filename), filename)
		log.Info("artifact registered", slog.String("download_id", id), slog.String("filename", filename))
		events <- Event{Type: "ready", DownloadID: id, Filename: filename}
		return
	}

	slug := Slugify(req.PlaylistTitle)
	if slug == "" {
		slug = "playlist"
	}
	zipName := slug + ".zip"

	zipPath, err := buildArchive(workspace, zipName, files)
	if err != nil {
		log.Error("packaging failed", slog.String("error", err.Error()))
		events <- Event{Type: "error", Error: "Failed to package downloaded files"}
		s.cleanupWorkspace(workspace)
		return
	}

	id := s.registry.Put(zipPath, zipName)
	log.Info("artifact registered",
		slog.String("download_id", id),
		slog.String("filename", zipName),
		slog.Int("files", len(files)),
	)
	events <- Event{Type: "ready", DownloadID: id, Filename: zipName}
}

func (s *Service) cleanupWorkspace(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		s.log.Warn("workspace cleanup failed", slog.String("dir", dir), slog.String("error", err.Error()))
	}
}
