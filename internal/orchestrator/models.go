package orchestrator

import (
	"time"

	"yt-grab/internal/ytdlp"
)

// Status is the per-video lifecycle state as seen by clients.
// Transitions run strictly forward; done and error are terminal.
type Status string

const (
	StatusQueued      Status = "queued"
	StatusDownloading Status = "downloading"
	StatusConverting  Status = "converting"
	StatusDone        Status = "done"
	StatusError       Status = "error"
)

// RequestedVideo identifies one video to download.
// This also matches the input JSON payload for download requests.
type RequestedVideo struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// DownloadRequest is the payload for starting a download session.
// Format defaults to mp3, Quality to 128 kbps; Quality is ignored for
// lossless formats.
type DownloadRequest struct {
	Videos        []RequestedVideo  `json:"videos"`
	PlaylistTitle string            `json:"playlistTitle,omitempty"`
	Format        ytdlp.AudioFormat `json:"format,omitempty"`
	Quality       int               `json:"quality,omitempty"`
}

// Event is one frame of the orchestration stream. Per-video frames carry
// VideoID/Status/Progress; terminal frames carry Type and end the stream.
type Event struct {
	VideoID  string  `json:"videoId,omitempty"`
	Title    string  `json:"title,omitempty"`
	Status   Status  `json:"status,omitempty"`
	Progress float64 `json:"progress"`
	Error    string  `json:"error,omitempty"`

	Type       string `json:"type,omitempty"` // "ready", "stopped", "error"
	DownloadID string `json:"downloadId,omitempty"`
	Filename   string `json:"filename,omitempty"`
}

// Terminal reports whether the event ends the stream.
func (e Event) Terminal() bool {
	return e.Type != ""
}

// PendingDownload is a finalized artifact awaiting retrieval. The registry
// owns its workspace directory until the entry is redeemed once or expires.
type PendingDownload struct {
	FilePath  string
	Filename  string
	CreatedAt time.Time
}
