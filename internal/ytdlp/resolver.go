package ytdlp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Output buffer bounds for metadata dumps. Playlists can be large (one JSON
// record per entry), single videos carry full format tables.
const (
	singleVideoMaxOutput = 10 << 20
	playlistMaxOutput    = 50 << 20
)

// Video is the normalized descriptor for a single video. Fields are always
// populated; missing or placeholder metadata is replaced by fallbacks.
type Video struct {
	ID                string  `json:"id"`
	Title             string  `json:"title"`
	Duration          float64 `json:"duration"`
	DurationFormatted string  `json:"durationFormatted"`
	Thumbnail         string  `json:"thumbnail"`
	URL               string  `json:"url"`
	Uploader          string  `json:"uploader"`
}

// Playlist is an ordered set of videos. A single video resolves to a
// playlist of size one.
type Playlist struct {
	Title      string  `json:"title"`
	VideoCount int     `json:"videoCount"`
	Videos     []Video `json:"videos"`
}

// ResolutionError is returned when metadata resolution fails. Message is
// already translated for end users.
type ResolutionError struct {
	Message string
}

func (e *ResolutionError) Error() string {
	return e.Message
}

// Resolver fetches and normalizes video/playlist metadata by running the
// external tool in dump-metadata mode.
type Resolver struct {
	tool *Tool
	run  runCmdFunc
}

// NewResolver returns a Resolver that invokes the given Tool.
func NewResolver(tool *Tool) *Resolver {
	return &Resolver{tool: tool, run: runCommand}
}

// Resolve classifies rawURL as a playlist or a single video and returns the
// normalized descriptor. Any downstream failure is reported as a
// *ResolutionError with a translated message.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (*Playlist, error) {
	if isPlaylistURL(rawURL) {
		return r.resolvePlaylist(ctx, rawURL)
	}
	return r.resolveVideo(ctx, rawURL)
}

// isPlaylistURL reports whether the URL carries a playlist marker in its
// query string.
func isPlaylistURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Query().Has("list")
}

func (r *Resolver) resolveVideo(ctx context.Context, rawURL string) (*Playlist, error) {
	out, err := r.run(ctx, singleVideoMaxOutput, r.tool.YtDlp,
		"--dump-json",
		"--no-download",
		"--no-warnings",
		"--ffmpeg-location", r.tool.Ffmpeg,
		rawURL,
	)
	if err != nil {
		return nil, &ResolutionError{Message: FriendlyError(err.Error())}
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(out))), &data); err != nil {
		return nil, &ResolutionError{Message: genericFetchError}
	}
	video := parseVideoEntry(data)

	return &Playlist{
		Title:      video.Title,
		VideoCount: 1,
		Videos:     []Video{video},
	}, nil
}

func (r *Resolver) resolvePlaylist(ctx context.Context, rawURL string) (*Playlist, error) {
	out, err := r.run(ctx, playlistMaxOutput, r.tool.YtDlp,
		"--flat-playlist",
		"--dump-json",
		"--no-warnings",
		"--ffmpeg-location", r.tool.Ffmpeg,
		rawURL,
	)
	if err != nil {
		return nil, &ResolutionError{Message: FriendlyError(err.Error())}
	}

	lines := nonEmptyLines(string(out))
	videos := make([]Video, 0, len(lines))
	title := "Playlist"

	for i, line := range lines {
		var data map[string]any
		if err := json.Unmarshal([]byte(line), &data); err != nil {
			return nil, &ResolutionError{Message: genericFetchError}
		}
		// Playlist title rides on every flat entry; take it from the first.
		if i == 0 {
			if t := validString(data["playlist_title"]); t != "" {
				title = t
			}
		}
		videos = append(videos, parseVideoEntry(data))
	}

	return &Playlist{
		Title:      title,
		VideoCount: len(videos),
		Videos:     videos,
	}, nil
}

// parseVideoEntry normalizes one raw metadata record. Every field gets a
// per-field fallback when missing or set to a placeholder.
func parseVideoEntry(data map[string]any) Video {
	id := validString(data["id"])

	duration := 0.0
	if d, ok := data["duration"].(float64); ok {
		duration = d
	}

	title := validString(data["title"])
	if title == "" {
		title = "Unknown Title"
	}

	uploader := validString(data["uploader"])
	if uploader == "" {
		uploader = validString(data["channel"])
	}
	if uploader == "" {
		uploader = "Unknown"
	}

	thumbnail := validString(data["thumbnail"])
	if thumbnail == "" {
		thumbnail = fmt.Sprintf("https://i.ytimg.com/vi/%s/mqdefault.jpg", id)
	}

	pageURL := validString(data["webpage_url"])
	if pageURL == "" {
		pageURL = validString(data["url"])
	}
	if pageURL == "" {
		pageURL = fmt.Sprintf("https://www.youtube.com/watch?v=%s", id)
	}

	return Video{
		ID:                id,
		Title:             title,
		Duration:          duration,
		DurationFormatted: FormatDuration(int(duration)),
		Thumbnail:         thumbnail,
		URL:               pageURL,
		Uploader:          uploader,
	}
}

// validString returns val if it is a non-empty string and not one of the
// literal placeholders yt-dlp emits for absent metadata; otherwise "".
func validString(val any) string {
	s, ok := val.(string)
	if !ok || s == "" || s == "None" || s == "NA" {
		return ""
	}
	return s
}

// FormatDuration renders a duration in seconds as H:MM:SS when at least an
// hour, else M:SS. Negative or zero durations render as "0:00".
func FormatDuration(seconds int) string {
	if seconds <= 0 {
		return "0:00"
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
